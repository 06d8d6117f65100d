package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/linkbridge/internal/metrics"
	"github.com/hitoshi/linkbridge/internal/middleware"
)

// HealthChecker は/healthが依存先の生存確認に使うインターフェース。
// *sql.DBのPingContextがそのまま満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// リンクフロー
	LinkService LinkServiceInterface
	OAuthConfig OAuthHandlerConfig

	// 結果ページ
	Pages   *PagesHandler
	AppSlug string

	// ミドルウェア依存
	RateLimiter *middleware.RateLimiter
	Logger      *slog.Logger

	// 周辺
	Health   HealthChecker
	Metrics  metrics.Recorder
	Gatherer prometheus.Gatherer
}

// NewRouter は全ルートとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → RateLimit（OAuthルートのみ）
//
// OAuthルートは未認証でインターネットに露出するため、IP単位のレート制限を掛ける。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	if deps.Logger != nil {
		r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	}

	oauthHandler := NewOAuthHandler(OAuthHandlerService{
		Link:    deps.LinkService,
		Metrics: deps.Metrics,
	}, deps.OAuthConfig)

	// OAuthフロー（レート制限つき）
	r.Group(func(r chi.Router) {
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.Middleware())
		}
		r.Get("/oauth/discord/start", oauthHandler.Start)
		r.Get("/oauth/discord/callback", oauthHandler.Callback)
	})

	// リンク結果ページ
	if deps.Pages != nil {
		r.Get("/"+deps.AppSlug+"-login-success", deps.Pages.LoginSuccess)
		r.Get("/"+deps.AppSlug+"-login-error", deps.Pages.LoginError)
	}

	// ヘルスチェック
	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		if deps.Health != nil {
			ctx, cancel := context.WithTimeout(req.Context(), 3*time.Second)
			defer cancel()
			if err := deps.Health.PingContext(ctx); err != nil {
				slog.Warn("health check failed", slog.String("error", err.Error()))
				http.Error(w, "unhealthy", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Prometheusスクレイプ
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	return r
}
