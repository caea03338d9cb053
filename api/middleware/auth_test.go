package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/tradeledger-backend/pkg/auth"
	"github.com/angelmondragon/tradeledger-backend/pkg/config"
	"github.com/angelmondragon/tradeledger-backend/pkg/enums"
)

var testJWT = config.JWTConfig{Secret: "secret", Issuer: "issuer"}

func mintTestToken(t *testing.T, cfg config.JWTConfig, userID uuid.UUID, role enums.Role) string {
	t.Helper()
	token, err := auth.MintAccessToken(cfg, time.Now(), time.Hour, auth.AccessTokenPayload{UserID: userID, Role: role})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func withAuthorization(method, value string) *http.Request {
	req := httptest.NewRequest(method, "/api/v1/wallets", nil)
	if value != "" {
		req.Header.Set("Authorization", value)
	}
	return req
}

func TestAuthChallengesBadCredentials(t *testing.T) {
	valid := mintTestToken(t, testJWT, uuid.New(), enums.RoleUser)
	foreign := mintTestToken(t, config.JWTConfig{Secret: "other", Issuer: "issuer"}, uuid.New(), enums.RoleUser)

	cases := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"garbage token", "Bearer invalid"},
		{"missing scheme", valid},
		{"basic scheme", "Basic " + valid},
		{"blank bearer", "Bearer   "},
		{"foreign signature", "Bearer " + foreign},
	}
	reached := false
	handler := Auth(testJWT, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
	}))
	for _, tc := range cases {
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, withAuthorization(http.MethodGet, tc.header))
		if resp.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401 got %d", tc.name, resp.Code)
		}
		if resp.Header().Get("WWW-Authenticate") == "" {
			t.Fatalf("%s: missing WWW-Authenticate challenge", tc.name)
		}
	}
	if reached {
		t.Fatalf("handler reached without valid credentials")
	}
}

func TestAuthPublishesCallerIdentity(t *testing.T) {
	userID := uuid.New()
	token := mintTestToken(t, testJWT, userID, enums.RoleUser)

	var gotUser uuid.UUID
	var gotRole string
	handler := Auth(testJWT, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = UserUUIDFromContext(r.Context())
		gotRole = RoleFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, withAuthorization(http.MethodGet, "bearer "+token))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if gotUser != userID || gotRole != string(enums.RoleUser) {
		t.Fatalf("caller = (%s, %s), want (%s, user)", gotUser, gotRole, userID)
	}
}

func TestAuthRejectsEverythingWithoutSecret(t *testing.T) {
	token := mintTestToken(t, testJWT, uuid.New(), enums.RoleAdmin)
	handler := Auth(config.JWTConfig{Issuer: "issuer"}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, withAuthorization(http.MethodGet, "Bearer "+token))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestRequireRoleGatesAdminRoutes(t *testing.T) {
	handler := Auth(testJWT, nil)(RequireRole(enums.RoleAdmin, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))

	for role, want := range map[enums.Role]int{
		enums.RoleUser:  http.StatusForbidden,
		enums.RoleAdmin: http.StatusNoContent,
	} {
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, withAuthorization(http.MethodPost, "Bearer "+mintTestToken(t, testJWT, uuid.New(), role)))
		if resp.Code != want {
			t.Fatalf("role %s: expected %d got %d", role, want, resp.Code)
		}
	}
}
