// Package auth はDiscordアカウントのリンクフローを提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/linkbridge/internal/model"
	"github.com/hitoshi/linkbridge/internal/repository"
)

// DiscordProfile はDiscordの識別エンドポイントから取得したプロフィール。
// 1回のコールバック処理の間だけ存在し、そのまま永続化されることはない。
type DiscordProfile struct {
	ID        string // snowflake ID（安定・不変）
	Username  string
	AvatarURL string
}

// IdentityProvider は外部認可プロバイダーへの操作のインターフェース。
// テストではhttptestまたはモックで差し替える。
type IdentityProvider interface {
	// AuthorizeURL は認可エンドポイントへのリダイレクトURLを生成する。
	AuthorizeURL(state string) string
	// ExchangeCode は認可コードをアクセストークンに交換する。
	ExchangeCode(ctx context.Context, code string) (string, error)
	// FetchProfile はアクセストークンでプロフィールを取得する。
	FetchProfile(ctx context.Context, accessToken string) (*DiscordProfile, error)
}

// CredentialIssuer はリンク完了時のクレデンシャル発行のインターフェース。
type CredentialIssuer interface {
	Issue(userID, discordID string) (string, error)
}

// ServiceConfig はリンクフローの設定。
type ServiceConfig struct {
	TicketTTL time.Duration // チケットの有効期限
}

// Service はリンクフロー全体を調整する。
// 開始時のチケット検証、コールバックでのコード交換とプロフィール取得、
// 突合、クレデンシャル発行を順に行う。途中の失敗はすべて終端で、
// リクエスト内のリトライは行わない。
type Service struct {
	provider   IdentityProvider
	ticketRepo repository.TicketRepository
	reconciler *Reconciler
	issuer     CredentialIssuer
	config     ServiceConfig
}

// NewService はServiceを生成する。
func NewService(
	provider IdentityProvider,
	ticketRepo repository.TicketRepository,
	reconciler *Reconciler,
	issuer CredentialIssuer,
	config ServiceConfig,
) *Service {
	return &Service{
		provider:   provider,
		ticketRepo: ticketRepo,
		reconciler: reconciler,
		issuer:     issuer,
		config:     config,
	}
}

// BeginAuthorization はリンクフローを開始する。
// チケットの形式・存在・未使用・期限内を検証したうえで、
// stateにチケットIDをそのまま載せた認可URLを返す。
func (s *Service) BeginAuthorization(ctx context.Context, ticketID string) (string, error) {
	if ticketID == "" {
		return "", model.ErrMissingParameter
	}
	if !validTicketID(ticketID) {
		return "", model.ErrMalformedTicket
	}

	ticket, err := s.ticketRepo.FindByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, model.ErrTicketNotFound) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", model.ErrPersistence, err)
	}

	if ticket.Used {
		return "", model.ErrTicketAlreadyUsed
	}
	if ticket.Expired(time.Now(), s.config.TicketTTL) {
		return "", model.ErrTicketExpired
	}

	return s.provider.AuthorizeURL(ticketID), nil
}

// CompleteAuthorization はプロバイダーからのコールバックを処理する。
// コード交換→プロフィール取得→突合→クレデンシャル発行を順に行い、
// 発行したクレデンシャル文字列を返す。操作の順序は固定で、
// 前段が失敗した場合は後段を呼ばない。
func (s *Service) CompleteAuthorization(ctx context.Context, code, state string) (string, error) {
	if code == "" || state == "" {
		return "", model.ErrMissingParameter
	}

	accessToken, err := s.provider.ExchangeCode(ctx, code)
	if err != nil {
		slog.Warn("token exchange failed",
			slog.String("ticket_id", state),
			slog.String("error", err.Error()),
		)
		return "", fmt.Errorf("%w: %v", model.ErrTokenExchangeFailed, err)
	}

	profile, err := s.provider.FetchProfile(ctx, accessToken)
	if err != nil {
		slog.Warn("identity fetch failed",
			slog.String("ticket_id", state),
			slog.String("error", err.Error()),
		)
		return "", fmt.Errorf("%w: %v", model.ErrIdentityFetchFailed, err)
	}

	userID, err := s.reconciler.Reconcile(ctx, profile, state)
	if err != nil {
		slog.Warn("reconciliation failed",
			slog.String("ticket_id", state),
			slog.String("discord_id", profile.ID),
			slog.String("error", err.Error()),
		)
		return "", err
	}

	credential, err := s.issuer.Issue(userID, profile.ID)
	if err != nil {
		slog.Error("credential issuance failed",
			slog.String("ticket_id", state),
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		if errors.Is(err, model.ErrCredentialIssuance) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", model.ErrCredentialIssuance, err)
	}

	slog.Info("link completed",
		slog.String("ticket_id", state),
		slog.String("user_id", userID),
		slog.String("discord_id", profile.ID),
	)

	return credential, nil
}

// validTicketID はチケットIDの形式を検証する。
// ストアへの問い合わせ前にゴミを弾くための軽い検査で、
// 本検証はストア参照（存在・未使用・期限）が行う。
func validTicketID(id string) bool {
	if len(id) < 16 || len(id) > 64 {
		return false
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '-' || c == '_':
		default:
			return false
		}
	}
	return true
}
