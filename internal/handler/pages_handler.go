package handler

import (
	"embed"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
)

//go:embed templates/*.html
var pageTemplates embed.FS

// PagesHandlerConfig はリンク結果ページの設定。
type PagesHandlerConfig struct {
	AppName     string // ページに表示するアプリケーション名
	AppLoginURL string // アプリのログイン画面のURL
}

// PagesHandler はリンク完了後に表示する静的ページのハンドラー。
type PagesHandler struct {
	config    PagesHandlerConfig
	templates *template.Template
}

// NewPagesHandler はPagesHandlerを生成する。
// テンプレートはバイナリに埋め込まれているため、パースエラーは起動時に検出される。
func NewPagesHandler(config PagesHandlerConfig) (*PagesHandler, error) {
	tmpl, err := template.ParseFS(pageTemplates, "templates/*.html")
	if err != nil {
		return nil, err
	}
	return &PagesHandler{
		config:    config,
		templates: tmpl,
	}, nil
}

// loginSuccessData はlogin_success.htmlに渡すデータ。
type loginSuccessData struct {
	AppName  string
	LoginURL string
}

// LoginSuccess はリンク成功ページを返す。
// GET /{slug}-login-success?token=xxx
//
// tokenまたはcustomTokenが付いていればアプリのログインリンクに引き継ぐ。
func (h *PagesHandler) LoginSuccess(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = r.URL.Query().Get("customToken")
	}

	loginURL := h.config.AppLoginURL
	if token != "" {
		if u, err := url.Parse(loginURL); err == nil {
			q := u.Query()
			q.Set("token", token)
			u.RawQuery = q.Encode()
			loginURL = u.String()
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.templates.ExecuteTemplate(w, "login_success.html", loginSuccessData{
		AppName:  h.config.AppName,
		LoginURL: loginURL,
	}); err != nil {
		slog.Error("failed to render login success page", slog.String("error", err.Error()))
	}
}

// LoginError はリンク失敗ページを返す。
// GET /{slug}-login-error
func (h *PagesHandler) LoginError(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.templates.ExecuteTemplate(w, "login_error.html", map[string]string{
		"AppName": h.config.AppName,
	}); err != nil {
		slog.Error("failed to render login error page", slog.String("error", err.Error()))
	}
}
