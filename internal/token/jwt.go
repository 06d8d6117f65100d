// Package token はリンク完了時に発行するクレデンシャルの署名と検証を提供する。
package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hitoshi/linkbridge/internal/model"
)

const issuerName = "linkbridge"

// IssuerConfig はクレデンシャル発行の設定。
type IssuerConfig struct {
	Secret string        // HS256署名シークレット
	TTL    time.Duration // クレデンシャルの有効期間
}

// JWTIssuer はHS256署名のJWTクレデンシャルを発行する。
// アプリのクライアントはこのトークンをセッションと交換する。
type JWTIssuer struct {
	config IssuerConfig
}

// NewJWTIssuer はJWTIssuerを生成する。
func NewJWTIssuer(config IssuerConfig) *JWTIssuer {
	return &JWTIssuer{config: config}
}

// Claims はクレデンシャルに埋め込むクレーム。
// Subjectは内部ユーザーID、DiscordIDはリンクされた外部IDを保持する。
type Claims struct {
	DiscordID string `json:"discord_id,omitempty"`
	jwt.RegisteredClaims
}

// Issue は内部ユーザーIDに紐付いたクレデンシャルを発行する。
func (i *JWTIssuer) Issue(userID, discordID string) (string, error) {
	now := time.Now()
	claims := Claims{
		DiscordID: discordID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    issuerName,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.config.TTL)),
		},
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(i.config.Secret))
	if err != nil {
		return "", fmt.Errorf("%w: %v", model.ErrCredentialIssuance, err)
	}

	return signed, nil
}

// Parse はクレデンシャルを検証し、クレームを返す。
// 署名不正・期限切れの場合はエラーを返す。
func (i *JWTIssuer) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	t, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(i.config.Secret), nil
	}, jwt.WithIssuer(issuerName))
	if err != nil {
		return nil, fmt.Errorf("failed to parse credential: %w", err)
	}
	if !t.Valid {
		return nil, fmt.Errorf("invalid credential")
	}

	return claims, nil
}
