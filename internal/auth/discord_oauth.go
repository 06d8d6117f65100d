package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultDiscordAuthorizeURL = "https://discord.com/api/oauth2/authorize"
	defaultDiscordTokenURL     = "https://discord.com/api/oauth2/token"
	defaultDiscordIdentityURL  = "https://discord.com/api/users/@me"

	discordCDNBase = "https://cdn.discordapp.com"

	defaultHTTPTimeout = 10 * time.Second
)

// DiscordOAuthConfig はDiscord OAuthプロバイダーの設定。
type DiscordOAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// テスト用にオーバーライド可能なURL
	AuthorizeURL string
	TokenURL     string
	IdentityURL  string

	// 外部呼び出しのタイムアウト。ゼロ値の場合は10秒。
	Timeout time.Duration
}

// DiscordOAuthProvider はDiscord OAuth 2.0によるアカウント連携を提供する。
type DiscordOAuthProvider struct {
	config     DiscordOAuthConfig
	httpClient *http.Client
}

// NewDiscordOAuthProvider はDiscordOAuthProviderを生成する。
func NewDiscordOAuthProvider(config DiscordOAuthConfig) *DiscordOAuthProvider {
	if config.AuthorizeURL == "" {
		config.AuthorizeURL = defaultDiscordAuthorizeURL
	}
	if config.TokenURL == "" {
		config.TokenURL = defaultDiscordTokenURL
	}
	if config.IdentityURL == "" {
		config.IdentityURL = defaultDiscordIdentityURL
	}
	if config.Timeout == 0 {
		config.Timeout = defaultHTTPTimeout
	}
	return &DiscordOAuthProvider{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
	}
}

// AuthorizeURL はDiscordの認可URLを生成する。
// スコープはidentifyのみ。stateはチケットIDをそのまま運び、
// 再エンコードや署名は行わない。
func (p *DiscordOAuthProvider) AuthorizeURL(state string) string {
	params := url.Values{
		"client_id":     {p.config.ClientID},
		"redirect_uri":  {p.config.RedirectURL},
		"response_type": {"code"},
		"scope":         {"identify"},
		"state":         {state},
	}
	return p.config.AuthorizeURL + "?" + params.Encode()
}

// discordTokenResponse はDiscordのトークンエンドポイントのレスポンス。
type discordTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Scope       string `json:"scope"`
}

// discordUser はDiscordの /users/@me エンドポイントのレスポンス。
type discordUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

// ExchangeCode は認可コードをアクセストークンに交換する。
func (p *DiscordOAuthProvider) ExchangeCode(ctx context.Context, code string) (string, error) {
	data := url.Values{
		"client_id":     {p.config.ClientID},
		"client_secret": {p.config.ClientSecret},
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {p.config.RedirectURL},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token exchange failed with status %d: %s", resp.StatusCode, string(body))
	}

	var tokenResp discordTokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return "", fmt.Errorf("failed to parse token response: %w", err)
	}

	if tokenResp.AccessToken == "" {
		return "", fmt.Errorf("empty access token in response")
	}

	return tokenResp.AccessToken, nil
}

// FetchProfile はアクセストークンでDiscordのユーザープロフィールを取得する。
func (p *DiscordOAuthProvider) FetchProfile(ctx context.Context, accessToken string) (*DiscordProfile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.IdentityURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create identity request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("identity request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read identity response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("identity fetch failed with status %d: %s", resp.StatusCode, string(body))
	}

	var user discordUser
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, fmt.Errorf("failed to parse identity response: %w", err)
	}

	if user.ID == "" {
		return nil, fmt.Errorf("empty id in identity response")
	}

	return &DiscordProfile{
		ID:        user.ID,
		Username:  user.Username,
		AvatarURL: avatarURL(user.ID, user.Avatar),
	}, nil
}

// avatarURL はアバターハッシュをCDNのURLに展開する。
// アバター未設定のユーザーは空文字を返す。
func avatarURL(userID, avatarHash string) string {
	if avatarHash == "" {
		return ""
	}
	return fmt.Sprintf("%s/avatars/%s/%s.png", discordCDNBase, userID, avatarHash)
}

// compile-time interface check
var _ IdentityProvider = (*DiscordOAuthProvider)(nil)
