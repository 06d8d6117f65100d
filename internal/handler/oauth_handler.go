// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/hitoshi/linkbridge/internal/metrics"
	"github.com/hitoshi/linkbridge/internal/model"
)

// LinkServiceInterface はOAuthハンドラーが必要とするサービスインターフェース。
type LinkServiceInterface interface {
	BeginAuthorization(ctx context.Context, ticketID string) (string, error)
	CompleteAuthorization(ctx context.Context, code, state string) (string, error)
}

// OAuthHandlerConfig はOAuthハンドラーの設定。
type OAuthHandlerConfig struct {
	SuccessURL string // リンク成功時のリダイレクト先
	ErrorURL   string // リンク失敗時のリダイレクト先
}

// OAuthHandler はDiscordリンクフローのHTTPハンドラー。
type OAuthHandler struct {
	service OAuthHandlerService
	config  OAuthHandlerConfig
}

// OAuthHandlerService はサービスとメトリクスをまとめた依存。
type OAuthHandlerService struct {
	Link    LinkServiceInterface
	Metrics metrics.Recorder
}

// NewOAuthHandler はOAuthHandlerを生成する。
func NewOAuthHandler(service OAuthHandlerService, config OAuthHandlerConfig) *OAuthHandler {
	return &OAuthHandler{
		service: service,
		config:  config,
	}
}

// Start はリンクフローを開始する。
// GET /oauth/discord/start?state=xxx
//
// チケットが有効なら認可エンドポイントへリダイレクトし、
// 不正・期限切れ・使用済みなら400を返す。
func (h *OAuthHandler) Start(w http.ResponseWriter, r *http.Request) {
	ticketID := r.URL.Query().Get("state")

	authorizeURL, err := h.service.Link.BeginAuthorization(r.Context(), ticketID)
	if err != nil {
		h.recordFailure(err)
		h.writeStartError(w, err)
		return
	}

	http.Redirect(w, r, authorizeURL, http.StatusFound)
}

// Callback はプロバイダーからのコールバックを処理する。
// GET /oauth/discord/callback?code=xxx&state=yyy
//
// 成功時はクレデンシャルをクエリパラメータに付けて成功URLへ、
// フロー途中の失敗はエラーURLへリダイレクトする。
// code/state欠落のみ400を返す。
func (h *OAuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")

	start := time.Now()
	credential, err := h.service.Link.CompleteAuthorization(r.Context(), code, state)

	if err != nil {
		h.recordFailure(err)
		if errors.Is(err, model.ErrMissingParameter) {
			// コード交換まで到達していないのでレイテンシは記録しない
			http.Error(w, "missing code or state parameter", http.StatusBadRequest)
			return
		}
		h.recordExchangeLatency(time.Since(start))
		// 人間向けの応答であり、内部のエラー詳細をURLに漏らさない
		http.Redirect(w, r, h.config.ErrorURL, http.StatusFound)
		return
	}

	if h.service.Metrics != nil {
		h.service.Metrics.RecordLinkSuccess()
	}
	h.recordExchangeLatency(time.Since(start))

	http.Redirect(w, r, successRedirectURL(h.config.SuccessURL, credential), http.StatusFound)
}

// writeStartError は開始ルートの失敗をHTTPレスポンスに変換する。
// 機械起点の低リスクなルートなので、平文メッセージ付きの4xxを返す。
func (h *OAuthHandler) writeStartError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrMissingParameter):
		http.Error(w, "missing state parameter", http.StatusBadRequest)
	case errors.Is(err, model.ErrMalformedTicket):
		http.Error(w, "malformed state parameter", http.StatusBadRequest)
	case errors.Is(err, model.ErrTicketNotFound):
		http.Error(w, "unknown link ticket", http.StatusBadRequest)
	case errors.Is(err, model.ErrTicketExpired):
		http.Error(w, "link ticket expired", http.StatusBadRequest)
	case errors.Is(err, model.ErrTicketAlreadyUsed):
		http.Error(w, "link ticket already used", http.StatusBadRequest)
	default:
		slog.Error("begin authorization failed", slog.String("error", err.Error()))
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

// recordExchangeLatency はコールバック処理のレイテンシを記録する。
// コード交換が実際に走ったリクエストのみが対象。
func (h *OAuthHandler) recordExchangeLatency(d time.Duration) {
	if h.service.Metrics == nil {
		return
	}
	h.service.Metrics.RecordExchangeLatency(d)
}

// recordFailure は失敗の種別をステージ名に対応づけてメトリクスに記録する。
func (h *OAuthHandler) recordFailure(err error) {
	if h.service.Metrics == nil {
		return
	}
	h.service.Metrics.RecordLinkFailure(failureStage(err))
}

// failureStage はエラー種別からフローのステージ名を返す。
func failureStage(err error) string {
	switch {
	case errors.Is(err, model.ErrMissingParameter):
		return "input"
	case errors.Is(err, model.ErrMalformedTicket):
		return "input"
	case errors.Is(err, model.ErrTicketNotFound):
		return "ticket"
	case errors.Is(err, model.ErrTicketExpired):
		return "ticket"
	case errors.Is(err, model.ErrTicketAlreadyUsed):
		return "ticket"
	case errors.Is(err, model.ErrTokenExchangeFailed):
		return "token_exchange"
	case errors.Is(err, model.ErrIdentityFetchFailed):
		return "identity_fetch"
	case errors.Is(err, model.ErrPersistence):
		return "reconcile"
	case errors.Is(err, model.ErrCredentialIssuance):
		return "issuance"
	default:
		return "unknown"
	}
}

// successRedirectURL は成功URLにクレデンシャルをtokenクエリとして付与する。
func successRedirectURL(successURL, credential string) string {
	u, err := url.Parse(successURL)
	if err != nil {
		// 設定不備。クレデンシャルなしで素のURLに送る
		slog.Error("invalid success url", slog.String("error", err.Error()))
		return successURL
	}
	q := u.Query()
	q.Set("token", credential)
	u.RawQuery = q.Encode()
	return u.String()
}
