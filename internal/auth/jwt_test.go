package auth

import (
	"testing"
	"time"
)

func TestSessionTokenRoundTrip(t *testing.T) {
	token, err := NewSessionToken("secret", "issuer", time.Minute, Claims{
		AccountID: "account-1",
		SessionID: "session-1",
	})
	if err != nil {
		t.Fatalf("token error: %v", err)
	}

	claims, err := ParseSessionToken("secret", "issuer", token)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if claims.AccountID != "account-1" || claims.SessionID != "session-1" {
		t.Fatalf("unexpected claims")
	}
}

func TestSessionTokenRejectsTampering(t *testing.T) {
	token, err := NewSessionToken("secret", "issuer", time.Minute, Claims{
		AccountID: "account-1",
		SessionID: "session-1",
	})
	if err != nil {
		t.Fatalf("token error: %v", err)
	}

	if _, err := ParseSessionToken("other-secret", "issuer", token); err == nil {
		t.Fatalf("expected wrong secret to fail")
	}
	if _, err := ParseSessionToken("secret", "other-issuer", token); err == nil {
		t.Fatalf("expected wrong issuer to fail")
	}
	if _, err := ParseSessionToken("secret", "issuer", token+"x"); err == nil {
		t.Fatalf("expected tampered token to fail")
	}
}

func TestSessionTokenExpiry(t *testing.T) {
	token, err := NewSessionToken("secret", "issuer", -time.Minute, Claims{
		AccountID: "account-1",
		SessionID: "session-1",
	})
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	if _, err := ParseSessionToken("secret", "issuer", token); err == nil {
		t.Fatalf("expected expired token to fail")
	}
}
