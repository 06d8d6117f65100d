package handler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/linkbridge/internal/model"
)

// --- モック定義 ---

type mockLinkService struct {
	beginFn    func(ctx context.Context, ticketID string) (string, error)
	completeFn func(ctx context.Context, code, state string) (string, error)
}

func (m *mockLinkService) BeginAuthorization(ctx context.Context, ticketID string) (string, error) {
	if m.beginFn != nil {
		return m.beginFn(ctx, ticketID)
	}
	return "", nil
}

func (m *mockLinkService) CompleteAuthorization(ctx context.Context, code, state string) (string, error) {
	if m.completeFn != nil {
		return m.completeFn(ctx, code, state)
	}
	return "", nil
}

type mockRecorder struct {
	successCalls int
	failureCalls int
	latencyCalls int
	stages       []string
}

func (m *mockRecorder) RecordLinkSuccess() { m.successCalls++ }

func (m *mockRecorder) RecordLinkFailure(stage string) {
	m.failureCalls++
	m.stages = append(m.stages, stage)
}

func (m *mockRecorder) RecordExchangeLatency(d time.Duration) { m.latencyCalls++ }

func newTestOAuthHandler(svc LinkServiceInterface) *OAuthHandler {
	return NewOAuthHandler(OAuthHandlerService{Link: svc}, OAuthHandlerConfig{
		SuccessURL: "http://localhost:3000/app-login-success",
		ErrorURL:   "http://localhost:3000/app-login-error",
	})
}

// --- テスト ---

func TestOAuthHandler_Start_RedirectsToAuthorizeURL(t *testing.T) {
	svc := &mockLinkService{
		beginFn: func(ctx context.Context, ticketID string) (string, error) {
			return "https://discord.com/oauth2/authorize?state=" + ticketID, nil
		},
	}
	h := newTestOAuthHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/oauth/discord/start?state=ticket-0123456789abcdef", nil)
	w := httptest.NewRecorder()

	h.Start(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusFound {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusFound)
	}

	location := resp.Header.Get("Location")
	if !strings.Contains(location, "discord.com/oauth2/authorize") {
		t.Errorf("Location = %q, should contain discord authorize URL", location)
	}
	if !strings.Contains(location, "state=ticket-0123456789abcdef") {
		t.Errorf("Location = %q, should carry the ticket id as state", location)
	}
}

func TestOAuthHandler_Start_TicketErrorsReturn400(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"missing parameter", model.ErrMissingParameter},
		{"malformed ticket", model.ErrMalformedTicket},
		{"unknown ticket", model.ErrTicketNotFound},
		{"expired ticket", model.ErrTicketExpired},
		{"used ticket", model.ErrTicketAlreadyUsed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockLinkService{
				beginFn: func(ctx context.Context, ticketID string) (string, error) {
					return "", tt.err
				},
			}
			h := newTestOAuthHandler(svc)

			req := httptest.NewRequest(http.MethodGet, "/oauth/discord/start?state=whatever-ticket-id", nil)
			w := httptest.NewRecorder()

			h.Start(w, req)

			if w.Result().StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
			}
		})
	}
}

func TestOAuthHandler_Start_PersistenceErrorReturns500(t *testing.T) {
	svc := &mockLinkService{
		beginFn: func(ctx context.Context, ticketID string) (string, error) {
			return "", fmt.Errorf("%w: connection refused", model.ErrPersistence)
		},
	}
	h := newTestOAuthHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/oauth/discord/start?state=ticket-0123456789abcdef", nil)
	w := httptest.NewRecorder()

	h.Start(w, req)

	if w.Result().StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusInternalServerError)
	}
}

func TestOAuthHandler_Callback_Success_RedirectsWithToken(t *testing.T) {
	svc := &mockLinkService{
		completeFn: func(ctx context.Context, code, state string) (string, error) {
			return "issued-credential-xyz", nil
		},
	}
	h := newTestOAuthHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/oauth/discord/callback?code=auth-code&state=ticket-0123456789abcdef", nil)
	w := httptest.NewRecorder()

	h.Callback(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusFound {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusFound)
	}

	location := resp.Header.Get("Location")
	if !strings.HasPrefix(location, "http://localhost:3000/app-login-success") {
		t.Errorf("Location = %q, should start with the success URL", location)
	}
	if !strings.Contains(location, "token=issued-credential-xyz") {
		t.Errorf("Location = %q, should carry the credential as token query", location)
	}
}

func TestOAuthHandler_Callback_MissingParamsReturn400(t *testing.T) {
	svc := &mockLinkService{
		completeFn: func(ctx context.Context, code, state string) (string, error) {
			return "", model.ErrMissingParameter
		},
	}
	h := newTestOAuthHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/oauth/discord/callback?code=auth-code", nil)
	w := httptest.NewRecorder()

	h.Callback(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
	}
}

func TestOAuthHandler_Callback_FlowFailuresRedirectToErrorURL(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"token exchange failed", model.ErrTokenExchangeFailed},
		{"identity fetch failed", model.ErrIdentityFetchFailed},
		{"ticket already used", model.ErrTicketAlreadyUsed},
		{"ticket not found", model.ErrTicketNotFound},
		{"persistence error", model.ErrPersistence},
		{"issuance failed", model.ErrCredentialIssuance},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockLinkService{
				completeFn: func(ctx context.Context, code, state string) (string, error) {
					return "", fmt.Errorf("%w: boom", tt.err)
				},
			}
			h := newTestOAuthHandler(svc)

			req := httptest.NewRequest(http.MethodGet, "/oauth/discord/callback?code=auth-code&state=ticket-0123456789abcdef", nil)
			w := httptest.NewRecorder()

			h.Callback(w, req)

			resp := w.Result()
			if resp.StatusCode != http.StatusFound {
				t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusFound)
			}

			location := resp.Header.Get("Location")
			if location != "http://localhost:3000/app-login-error" {
				t.Errorf("Location = %q, want error URL", location)
			}
			// 内部のエラー詳細がURLに漏れないこと
			if strings.Contains(location, "boom") {
				t.Errorf("Location %q leaks internal error detail", location)
			}
		})
	}
}

// レイテンシはコード交換が走ったコールバックのみ記録されることを検証
func TestOAuthHandler_Callback_LatencyObservedOnlyWhenExchangeRan(t *testing.T) {
	tests := []struct {
		name        string
		target      string
		completeErr error
		wantLatency int
		wantSuccess int
	}{
		{
			name:        "success records latency",
			target:      "/oauth/discord/callback?code=c&state=ticket-0123456789abcdef",
			completeErr: nil,
			wantLatency: 1,
			wantSuccess: 1,
		},
		{
			name:        "exchange failure records latency",
			target:      "/oauth/discord/callback?code=c&state=ticket-0123456789abcdef",
			completeErr: model.ErrTokenExchangeFailed,
			wantLatency: 1,
			wantSuccess: 0,
		},
		{
			name:        "missing params record no latency",
			target:      "/oauth/discord/callback?code=c",
			completeErr: model.ErrMissingParameter,
			wantLatency: 0,
			wantSuccess: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &mockRecorder{}
			svc := &mockLinkService{
				completeFn: func(ctx context.Context, code, state string) (string, error) {
					if tt.completeErr != nil {
						return "", tt.completeErr
					}
					return "cred", nil
				},
			}
			h := NewOAuthHandler(OAuthHandlerService{Link: svc, Metrics: rec}, OAuthHandlerConfig{
				SuccessURL: "http://localhost:3000/ok",
				ErrorURL:   "http://localhost:3000/ng",
			})

			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			w := httptest.NewRecorder()
			h.Callback(w, req)

			if rec.latencyCalls != tt.wantLatency {
				t.Errorf("latency observations = %d, want %d", rec.latencyCalls, tt.wantLatency)
			}
			if rec.successCalls != tt.wantSuccess {
				t.Errorf("success count = %d, want %d", rec.successCalls, tt.wantSuccess)
			}
		})
	}
}

func TestFailureStage_MapsErrorKinds(t *testing.T) {
	tests := []struct {
		err   error
		stage string
	}{
		{model.ErrMalformedTicket, "input"},
		{model.ErrTicketExpired, "ticket"},
		{model.ErrTokenExchangeFailed, "token_exchange"},
		{model.ErrIdentityFetchFailed, "identity_fetch"},
		{model.ErrPersistence, "reconcile"},
		{model.ErrCredentialIssuance, "issuance"},
	}

	for _, tt := range tests {
		if got := failureStage(tt.err); got != tt.stage {
			t.Errorf("failureStage(%v) = %q, want %q", tt.err, got, tt.stage)
		}
	}
}

func TestSuccessRedirectURL_PreservesExistingQuery(t *testing.T) {
	got := successRedirectURL("http://localhost:3000/done?lang=ja", "cred-123")
	if !strings.Contains(got, "lang=ja") {
		t.Errorf("url = %q, should keep existing query", got)
	}
	if !strings.Contains(got, "token=cred-123") {
		t.Errorf("url = %q, should append token", got)
	}
}
