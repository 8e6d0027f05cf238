package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/lumea-app/lumea-backend/pkg/config"
	"github.com/lumea-app/lumea-backend/pkg/enums"
)

func TestMintAndParseAccessToken(t *testing.T) {
	cfg := config.JWTConfig{
		Secret:            "secret",
		Issuer:            "lumea",
		ExpirationMinutes: 30,
	}
	now := time.Now().UTC()
	accountID := uuid.New()

	payload := AccessTokenPayload{
		AccountID: accountID,
		Role:      enums.AccountRoleHost,
	}

	token, err := MintAccessToken(cfg, now, payload)
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	claims, err := ParseAccessToken(cfg, token)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}

	if claims.AccountID != accountID {
		t.Fatalf("expected account_id %s, got %s", accountID, claims.AccountID)
	}
	if claims.Role != enums.AccountRoleHost {
		t.Fatalf("unexpected role %s", claims.Role)
	}
	if claims.ID == "" {
		t.Fatalf("expected a generated jti")
	}

	// RegisteredClaims is embedded, so access fields directly.
	if claims.Issuer != cfg.Issuer {
		t.Fatalf("expected issuer %s, got %s", cfg.Issuer, claims.Issuer)
	}

	exp := now.Add(time.Duration(cfg.ExpirationMinutes) * time.Minute)
	diff := claims.ExpiresAt.Sub(exp)
	if diff < 0 {
		diff = -diff
	}
	if diff >= time.Second {
		t.Fatalf("expected exp roughly %v, got %v (diff %v)", exp.UTC(), claims.ExpiresAt.UTC(), diff)
	}
}

func TestParseAccessTokenInvalidSignature(t *testing.T) {
	cfg := config.JWTConfig{
		Secret:            "secret",
		Issuer:            "lumea",
		ExpirationMinutes: 10,
	}
	now := time.Now()
	payload := AccessTokenPayload{
		AccountID: uuid.New(),
		Role:      enums.AccountRoleUser,
	}

	token, err := MintAccessToken(cfg, now, payload)
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	_, err = ParseAccessToken(cfg, token+"x")
	if err == nil {
		t.Fatal("expected invalid signature error")
	}
}

func TestParseAccessTokenExpired(t *testing.T) {
	cfg := config.JWTConfig{
		Secret:            "secret",
		Issuer:            "lumea",
		ExpirationMinutes: 15,
	}
	now := time.Now().Add(-time.Hour)
	payload := AccessTokenPayload{
		AccountID: uuid.New(),
		Role:      enums.AccountRoleAdmin,
	}

	token, err := MintAccessToken(cfg, now, payload)
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	_, err = ParseAccessToken(cfg, token)
	if err == nil {
		t.Fatal("expected expiration error")
	}
	if !strings.Contains(err.Error(), "expired") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestMintAccessTokenInvalidRole(t *testing.T) {
	cfg := config.JWTConfig{
		Secret:            "secret",
		Issuer:            "lumea",
		ExpirationMinutes: 5,
	}
	now := time.Now()
	payload := AccessTokenPayload{
		AccountID: uuid.New(),
		Role:      "",
	}

	if _, err := MintAccessToken(cfg, now, payload); err == nil {
		t.Fatal("expected invalid role error")
	}
}
