package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/tradeledger-backend/api/responses"
	"github.com/angelmondragon/tradeledger-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/tradeledger-backend/pkg/errors"
	"github.com/angelmondragon/tradeledger-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/tradeledger-backend/pkg/redis"
)

const (
	defaultIdempotencyTTL  = 24 * time.Hour
	criticalIdempotencyTTL = 7 * 24 * time.Hour

	// IdempotencyKeyHeader carries the client key on money-moving requests.
	IdempotencyKeyHeader = "Idempotency-Key"
	replayHeader         = "Idempotent-Replay"
	inFlightMarker       = "in-flight"

	maxReplayBody = 1 << 20
)

// replayRoute selects the POST routes whose responses are recorded. A route
// matches when its path starts with prefix and, if set, ends with suffix.
type replayRoute struct {
	prefix string
	suffix string
	exact  bool
	ttl    time.Duration
}

func (rr replayRoute) matches(path string) bool {
	if rr.exact {
		return path == rr.prefix
	}
	return strings.HasPrefix(path, rr.prefix) && strings.HasSuffix(path, rr.suffix)
}

var replayRoutes = []replayRoute{
	// requests that create a money movement
	{prefix: "/api/v1/wallets/transfer", exact: true, ttl: criticalIdempotencyTTL},
	{prefix: "/api/v1/wallets/withdrawals", exact: true, ttl: criticalIdempotencyTTL},
	{prefix: "/api/v1/investments", exact: true, ttl: criticalIdempotencyTTL},
	{prefix: "/api/v1/p2p/trades", exact: true, ttl: criticalIdempotencyTTL},
	{prefix: "/api/v1/binary/orders", exact: true, ttl: criticalIdempotencyTTL},
	{prefix: "/api/v1/exchange/orders", exact: true, ttl: criticalIdempotencyTTL},
	{prefix: "/api/v1/admin/deposits", exact: true, ttl: criticalIdempotencyTTL},
	// lifecycle actions on an existing entity
	{prefix: "/api/v1/investments/", suffix: "/cancel", ttl: defaultIdempotencyTTL},
	{prefix: "/api/v1/binary/orders/", suffix: "/cancel", ttl: defaultIdempotencyTTL},
	{prefix: "/api/v1/exchange/orders/", suffix: "/cancel", ttl: defaultIdempotencyTTL},
	{prefix: "/api/v1/p2p/trades/", ttl: defaultIdempotencyTTL},
	{prefix: "/api/v1/admin/withdrawals/", ttl: defaultIdempotencyTTL},
	{prefix: "/api/v1/admin/exchange/orders/", ttl: defaultIdempotencyTTL},
	{prefix: "/api/v1/admin/p2p/trades/", ttl: defaultIdempotencyTTL},
}

type idempotencyRecord struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body"`
	RequestHash string `json:"request_hash"`
}

// Idempotency records the response of a money-moving request under the
// caller's Idempotency-Key and replays it for repeats. The key is reserved
// before the handler runs so a concurrent duplicate gets a conflict instead
// of a second execution. 5xx and retryable responses release the key.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ttl, ok := routeTTL(r.Method, requestRoute(r))
			if !ok || store == nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()

			clientKey := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
			switch {
			case clientKey == "":
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
				return
			case len(clientKey) > models.MaxIdempotencyKeyLen:
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header too long"))
				return
			}

			body, err := io.ReadAll(io.LimitReader(r.Body, maxReplayBody+1))
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request"))
				return
			}
			if len(body) > maxReplayBody {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "request body too large"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			hash := requestHash(body)
			key := store.IdempotencyKey(buildScope(r), clientKey)
			reserved, err := store.SetNX(ctx, key, inFlightMarker, ttl)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve idempotency key"))
				return
			}
			if !reserved {
				replay(w, r, store, key, hash, logg)
				return
			}

			var captured bytes.Buffer
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			ww.Tee(&captured)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			// Detached: the record must land even if the client hung up.
			storeCtx := context.WithoutCancel(ctx)
			if !replayable(status, ww.Header()) {
				logIdempotency(storeCtx, logg, "release idempotency key", store.Del(storeCtx, key))
				return
			}
			payload, err := json.Marshal(idempotencyRecord{
				Status:      status,
				ContentType: ww.Header().Get("Content-Type"),
				Body:        captured.Bytes(),
				RequestHash: hash,
			})
			if err != nil {
				logIdempotency(storeCtx, logg, "marshal idempotency record", err)
				logIdempotency(storeCtx, logg, "release idempotency key", store.Del(storeCtx, key))
				return
			}
			logIdempotency(storeCtx, logg, "persist idempotency record", store.Set(storeCtx, key, string(payload), ttl))
		})
	}
}

func replay(w http.ResponseWriter, r *http.Request, store pkgredis.IdempotencyStore, key, hash string, logg *logger.Logger) {
	ctx := r.Context()
	stored, err := store.Get(ctx, key)
	switch {
	case errors.Is(err, redis.Nil) || stored == inFlightMarker:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConflict, "request with this idempotency key is in progress"))
		return
	case err != nil:
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
		return
	}

	var record idempotencyRecord
	if err := json.Unmarshal([]byte(stored), &record); err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record"))
		return
	}
	if record.RequestHash != hash {
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
		return
	}
	if record.ContentType != "" {
		w.Header().Set("Content-Type", record.ContentType)
	}
	w.Header().Set(replayHeader, "true")
	w.WriteHeader(record.Status)
	_, _ = w.Write(record.Body)
}

// replayable reports whether a response is final for its key. Server errors
// and anything the client was told to retry (Retry-After) release the key so
// the retry reaches the handler.
func replayable(status int, h http.Header) bool {
	return status < http.StatusInternalServerError && h.Get("Retry-After") == ""
}

// buildScope ties a key to the caller and the concrete path, so the same
// client key on two different investments never collides.
func buildScope(r *http.Request) string {
	return strings.Join([]string{UserIDFromContext(r.Context()), r.Method, r.URL.Path}, "|")
}

func requestHash(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// requestRoute prefers the chi template. Group middleware runs before the
// sub-router resolves the route, so a partial pattern falls back to the path.
func requestRoute(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" && !strings.Contains(pattern, "*") {
			return pattern
		}
	}
	return r.URL.Path
}

func routeTTL(method, route string) (time.Duration, bool) {
	if method != http.MethodPost || route == "" {
		return 0, false
	}
	for _, rr := range replayRoutes {
		if rr.matches(route) {
			return rr.ttl, true
		}
	}
	return 0, false
}

func logIdempotency(ctx context.Context, logg *logger.Logger, msg string, err error) {
	if logg != nil && err != nil {
		logg.Error(ctx, msg, err)
	}
}
