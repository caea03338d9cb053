package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/tradeledger-backend/api/controllers"
	"github.com/angelmondragon/tradeledger-backend/internal/ledger"
	"github.com/angelmondragon/tradeledger-backend/internal/wallets"
	"github.com/angelmondragon/tradeledger-backend/pkg/auth"
	"github.com/angelmondragon/tradeledger-backend/pkg/config"
	"github.com/angelmondragon/tradeledger-backend/pkg/db/models"
	"github.com/angelmondragon/tradeledger-backend/pkg/enums"
	"github.com/angelmondragon/tradeledger-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/tradeledger-backend/pkg/redis"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubLedger struct {
	ledger.Service
	transfers   atomic.Int32
	withdrawals atomic.Int32
}

func (s *stubLedger) Transfer(ctx context.Context, input ledger.TransferInput) (*ledger.Result, error) {
	s.transfers.Add(1)
	return &ledger.Result{TransactionID: uuid.New(), NewBalance: decimal.NewFromInt(75)}, nil
}

func (s *stubLedger) RequestWithdrawal(ctx context.Context, input ledger.WithdrawalInput) (*ledger.Result, error) {
	s.withdrawals.Add(1)
	return &ledger.Result{TransactionID: uuid.New(), NewBalance: decimal.NewFromInt(10)}, nil
}

type stubWallets struct{}

func (stubWallets) GetBalance(ctx context.Context, key models.WalletKey) (*models.Wallet, error) {
	return &models.Wallet{UserID: key.UserID, Currency: key.Currency, Type: key.Type}, nil
}

func (stubWallets) List(ctx context.Context, userID uuid.UUID) ([]models.Wallet, error) {
	return []models.Wallet{}, nil
}

var _ wallets.Service = stubWallets{}

type stubSettings struct{}

func (stubSettings) Set(context.Context, string, string) error { return nil }

func (stubSettings) Refresh(context.Context) error { return nil }

func (stubSettings) Snapshot() map[string]string { return map[string]string{} }

func (stubSettings) LoadedAt() time.Time { return time.Time{} }

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "0"},
		JWT: config.JWTConfig{Secret: "router-secret", Issuer: "tradeledger-test"},
		RateLimit: config.RateLimitConfig{
			WithdrawalWindow: time.Hour,
			WithdrawalLimit:  1,
			OrderWindow:      time.Minute,
			OrderLimit:       5,
		},
	}
}

func newTestRouter(t *testing.T, cfg *config.Config, ledgerSvc ledger.Service) http.Handler {
	t.Helper()
	mr := miniredis.RunT(t)
	raw := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = raw.Close() })
	redisClient := pkgredis.NewFromRaw(raw)

	logg := logger.New(logger.Options{ServiceName: "test", Level: logger.ParseLevel("debug"), Output: io.Discard})
	return NewRouter(cfg, logg, Deps{
		Ledger:      ledgerSvc,
		Wallets:     stubWallets{},
		Settings:    stubSettings{},
		Idempotency: redisClient,
		RateLimiter: redisClient,
		Pingers:     map[string]controllers.Pinger{"db": stubPinger{}, "redis": redisClient},
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("# metrics"))
		}),
	})
}

func buildToken(t *testing.T, cfg *config.Config, userID uuid.UUID, role enums.Role) string {
	t.Helper()
	token, err := auth.MintAccessToken(cfg.JWT, time.Now(), time.Hour, auth.AccessTokenPayload{UserID: userID, Role: role})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func TestHealthAndMetricsArePublic(t *testing.T) {
	router := newTestRouter(t, testConfig(), &stubLedger{})

	for _, path := range []string{"/health/live", "/health/ready", "/metrics"} {
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, path, nil))
		if resp.Code != http.StatusOK {
			t.Fatalf("expected 200 for %s got %d", path, resp.Code)
		}
	}
}

func TestPrivateGroupRejectsMissingJWT(t *testing.T) {
	router := newTestRouter(t, testConfig(), &stubLedger{})
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/wallets", nil))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token got %d", resp.Code)
	}
}

func TestPrivateGroupSucceedsWithJWT(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(t, cfg, &stubLedger{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/wallets/spot/USDT", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, uuid.New(), enums.RoleUser))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestAdminGroupRequiresAdminRole(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(t, cfg, &stubLedger{})

	user := httptest.NewRequest(http.MethodGet, "/api/v1/admin/settings", nil)
	user.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, uuid.New(), enums.RoleUser))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, user)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for user got %d", resp.Code)
	}

	admin := httptest.NewRequest(http.MethodGet, "/api/v1/admin/settings", nil)
	admin.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, uuid.New(), enums.RoleAdmin))
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, admin)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin got %d", resp.Code)
	}
}

func TestTransferReplaysRepeatedIdempotencyKey(t *testing.T) {
	cfg := testConfig()
	ledgerSvc := &stubLedger{}
	router := newTestRouter(t, cfg, ledgerSvc)
	token := buildToken(t, cfg, uuid.New(), enums.RoleUser)
	body := `{"currency":"USDT","fromType":"spot","toType":"fiat","amount":"25"}`

	send := func(key string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/wallets/transfer", strings.NewReader(body))
		req.Header.Set("Authorization", "Bearer "+token)
		if key != "" {
			req.Header.Set("Idempotency-Key", key)
		}
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		return resp
	}

	if resp := send(""); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without idempotency key got %d", resp.Code)
	}

	first := send("transfer-1")
	if first.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", first.Code, first.Body.String())
	}
	second := send("transfer-1")
	if second.Code != http.StatusCreated {
		t.Fatalf("expected replayed 201 got %d", second.Code)
	}
	if second.Header().Get("Idempotent-Replay") != "true" {
		t.Fatalf("expected replay header on second response")
	}
	if second.Body.String() != first.Body.String() {
		t.Fatalf("expected identical replay body")
	}
	if n := ledgerSvc.transfers.Load(); n != 1 {
		t.Fatalf("expected one ledger transfer got %d", n)
	}
}

func TestWithdrawalsAreRateLimitedPerUser(t *testing.T) {
	cfg := testConfig()
	ledgerSvc := &stubLedger{}
	router := newTestRouter(t, cfg, ledgerSvc)
	token := buildToken(t, cfg, uuid.New(), enums.RoleUser)

	send := func(key string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/wallets/withdrawals",
			strings.NewReader(`{"currency":"USDT","walletType":"spot","amount":"5","address":"T9yD14Nj9j7xAB4dbGeiX9h8unkKHxuWwb"}`))
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Idempotency-Key", key)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		return resp.Code
	}

	if code := send("w-1"); code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", code)
	}
	if code := send("w-2"); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 got %d", code)
	}
	if n := ledgerSvc.withdrawals.Load(); n != 1 {
		t.Fatalf("expected one withdrawal got %d", n)
	}
}
