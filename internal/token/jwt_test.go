package token

import (
	"testing"
	"time"
)

func TestJWTIssuer_IssueAndParse_RoundTrip(t *testing.T) {
	issuer := NewJWTIssuer(IssuerConfig{
		Secret: "test-secret",
		TTL:    1 * time.Hour,
	})

	signed, err := issuer.Issue("user-id-123", "123456789012345678")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if signed == "" {
		t.Fatal("expected non-empty credential")
	}

	claims, err := issuer.Parse(signed)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if claims.Subject != "user-id-123" {
		t.Errorf("subject = %q, want %q", claims.Subject, "user-id-123")
	}
	if claims.DiscordID != "123456789012345678" {
		t.Errorf("discord_id = %q, want %q", claims.DiscordID, "123456789012345678")
	}
	if claims.Issuer != "linkbridge" {
		t.Errorf("issuer = %q, want %q", claims.Issuer, "linkbridge")
	}
	if claims.ExpiresAt == nil || claims.ExpiresAt.Before(time.Now()) {
		t.Error("credential should not be expired")
	}
}

func TestJWTIssuer_Parse_WrongSecret_ReturnsError(t *testing.T) {
	issuer := NewJWTIssuer(IssuerConfig{Secret: "secret-a", TTL: time.Hour})
	other := NewJWTIssuer(IssuerConfig{Secret: "secret-b", TTL: time.Hour})

	signed, err := issuer.Issue("user-id-123", "")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	if _, err := other.Parse(signed); err == nil {
		t.Fatal("expected error for wrong secret")
	}
}

func TestJWTIssuer_Parse_Expired_ReturnsError(t *testing.T) {
	issuer := NewJWTIssuer(IssuerConfig{Secret: "test-secret", TTL: -1 * time.Minute})

	signed, err := issuer.Issue("user-id-123", "")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	if _, err := issuer.Parse(signed); err == nil {
		t.Fatal("expected error for expired credential")
	}
}

func TestJWTIssuer_Issue_EmptyDiscordID_OmitsClaim(t *testing.T) {
	issuer := NewJWTIssuer(IssuerConfig{Secret: "test-secret", TTL: time.Hour})

	signed, err := issuer.Issue("user-id-456", "")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	claims, err := issuer.Parse(signed)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if claims.DiscordID != "" {
		t.Errorf("discord_id = %q, want empty", claims.DiscordID)
	}
}
