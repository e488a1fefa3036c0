package auth

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestGenerateVerifyRoundTrip(t *testing.T) {
	m := NewJWTManager("secret", time.Hour)
	id := uuid.New()

	tok, err := m.Generate(id, "Ann", "ann")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	claims, err := m.Verify(tok)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	got, err := claims.UserID()
	if err != nil || got != id {
		t.Fatalf("expected subject %s, got %s (%v)", id, got, err)
	}
	if claims.NickName != "ann" {
		t.Fatalf("expected nickName ann, got %q", claims.NickName)
	}
}

func TestVerifyRejectsOtherSecretAndExpired(t *testing.T) {
	tok, _ := NewJWTManager("a", time.Hour).Generate(uuid.New(), "", "")
	if _, err := NewJWTManager("b", time.Hour).Verify(tok); err == nil {
		t.Fatal("expected signature error")
	}

	expired, _ := NewJWTManager("a", -time.Minute).Generate(uuid.New(), "", "")
	if _, err := NewJWTManager("a", time.Hour).Verify(expired); err == nil {
		t.Fatal("expected expiry error")
	}
}

func TestExtractToken(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws?token=q", nil)
	if tok, _ := ExtractToken(r); tok != "q" {
		t.Fatalf("expected query token, got %q", tok)
	}

	r.Header.Set("Authorization", "Bearer h")
	if tok, _ := ExtractToken(r); tok != "h" {
		t.Fatalf("expected header token, got %q", tok)
	}

	if _, err := ExtractToken(httptest.NewRequest("GET", "/", nil)); err == nil {
		t.Fatal("expected missing token error")
	}
}
