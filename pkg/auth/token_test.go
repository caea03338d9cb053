package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/tradeledger-backend/pkg/config"
	"github.com/angelmondragon/tradeledger-backend/pkg/enums"
)

func TestMintAndParseAccessToken(t *testing.T) {
	cfg := config.JWTConfig{Secret: "secret", Issuer: "tradeledger"}
	now := time.Now().UTC()
	userID := uuid.New()

	token, err := MintAccessToken(cfg, now, 30*time.Minute, AccessTokenPayload{UserID: userID, Role: enums.RoleAdmin})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	claims, err := ParseAccessToken(cfg, token)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.UserID != userID {
		t.Fatalf("expected user_id %s, got %s", userID, claims.UserID)
	}
	if claims.Role != enums.RoleAdmin {
		t.Fatalf("unexpected role %s", claims.Role)
	}
	if claims.Issuer != cfg.Issuer {
		t.Fatalf("expected issuer %s, got %s", cfg.Issuer, claims.Issuer)
	}
	if claims.ID == "" {
		t.Fatalf("expected jti to be generated")
	}

	exp := now.Add(30 * time.Minute)
	diff := claims.ExpiresAt.Sub(exp)
	if diff < 0 {
		diff = -diff
	}
	if diff >= time.Second {
		t.Fatalf("expected exp roughly %v, got %v", exp, claims.ExpiresAt.UTC())
	}
}

func TestParseAccessTokenInvalidSignature(t *testing.T) {
	cfg := config.JWTConfig{Secret: "secret", Issuer: "tradeledger"}
	token, err := MintAccessToken(cfg, time.Now(), 10*time.Minute, AccessTokenPayload{UserID: uuid.New(), Role: enums.RoleUser})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	other := cfg
	other.Secret = "other"
	if _, err := ParseAccessToken(other, token); err == nil {
		t.Fatalf("expected signature error")
	}
}

func TestParseAccessTokenRejectsExpiredAndForeignIssuer(t *testing.T) {
	cfg := config.JWTConfig{Secret: "secret", Issuer: "tradeledger"}
	expired, err := MintAccessToken(cfg, time.Now().Add(-2*time.Hour), time.Hour, AccessTokenPayload{UserID: uuid.New(), Role: enums.RoleUser})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}
	if _, err := ParseAccessToken(cfg, expired); err == nil || !strings.Contains(err.Error(), "expired") {
		t.Fatalf("expected expiry error, got %v", err)
	}

	foreign := cfg
	foreign.Issuer = "someone-else"
	token, _ := MintAccessToken(foreign, time.Now(), time.Hour, AccessTokenPayload{UserID: uuid.New(), Role: enums.RoleUser})
	if _, err := ParseAccessToken(cfg, token); err == nil {
		t.Fatalf("expected issuer error")
	}
}

func TestMintAccessTokenValidatesPayload(t *testing.T) {
	cfg := config.JWTConfig{Secret: "secret", Issuer: "tradeledger"}
	if _, err := MintAccessToken(cfg, time.Now(), time.Hour, AccessTokenPayload{Role: enums.RoleUser}); err == nil {
		t.Fatalf("expected error without user id")
	}
	if _, err := MintAccessToken(cfg, time.Now(), time.Hour, AccessTokenPayload{UserID: uuid.New(), Role: "root"}); err == nil {
		t.Fatalf("expected error for unknown role")
	}
}

func TestVerifierLeewayAcceptsSmallSkew(t *testing.T) {
	cfg := config.JWTConfig{Secret: "secret", Issuer: "tradeledger"}
	// expired five seconds ago
	token, err := MintAccessToken(cfg, time.Now().Add(-time.Minute), 55*time.Second, AccessTokenPayload{UserID: uuid.New(), Role: enums.RoleUser})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	strict, err := NewVerifier(cfg)
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	if _, err := strict.Verify(token); err == nil {
		t.Fatalf("expected expiry error without leeway")
	}

	cfg.Leeway = 30 * time.Second
	lenient, err := NewVerifier(cfg)
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	if _, err := lenient.Verify(token); err != nil {
		t.Fatalf("expected token within leeway to verify: %v", err)
	}
}

func TestVerifierRejectsSubjectMismatch(t *testing.T) {
	cfg := config.JWTConfig{Secret: "secret", Issuer: "tradeledger"}
	now := time.Now()
	claims := AccessTokenClaims{
		UserID: uuid.New(),
		Role:   enums.RoleUser,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Subject:   uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.Secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ParseAccessToken(cfg, token); err == nil || !strings.Contains(err.Error(), "subject") {
		t.Fatalf("expected subject mismatch, got %v", err)
	}
}

func TestVerifierRejectsNoneAlgorithm(t *testing.T) {
	cfg := config.JWTConfig{Secret: "secret", Issuer: "tradeledger"}
	now := time.Now()
	claims := AccessTokenClaims{
		UserID: uuid.New(),
		Role:   enums.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ParseAccessToken(cfg, token); err == nil {
		t.Fatalf("expected unsigned token to be rejected")
	}
}

func TestNewVerifierRequiresSecretAndIssuer(t *testing.T) {
	if _, err := NewVerifier(config.JWTConfig{Issuer: "tradeledger"}); err == nil {
		t.Fatalf("expected error without secret")
	}
	if _, err := NewVerifier(config.JWTConfig{Secret: "secret", Issuer: "  "}); err == nil {
		t.Fatalf("expected error without issuer")
	}
}
