package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/angelmondragon/tradeledger-backend/api/responses"
	pkgAuth "github.com/angelmondragon/tradeledger-backend/pkg/auth"
	"github.com/angelmondragon/tradeledger-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/tradeledger-backend/pkg/errors"
	"github.com/angelmondragon/tradeledger-backend/pkg/logger"
)

var errNoBearer = errors.New("bearer token required")

// Auth resolves the caller of a ledger request from its bearer token. The
// user id it stores is what wallet, order and trade ownership checks compare
// against.
// A config that cannot build a verifier rejects every request rather than
// letting one through unauthenticated.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	verifier, verr := pkgAuth.NewVerifier(cfg)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if verr != nil {
				unauthorized(w, r, logg, verr, "token verification unavailable")
				return
			}
			token, err := bearerToken(r)
			if err != nil {
				unauthorized(w, r, logg, err, "missing credentials")
				return
			}
			claims, err := verifier.Verify(token)
			if err != nil {
				unauthorized(w, r, logg, err, "invalid token")
				return
			}

			ctx := WithRole(WithUserID(r.Context(), claims.UserID.String()), string(claims.Role))
			if logg != nil {
				ctx = logg.WithUserID(ctx, claims.UserID.String())
				ctx = logg.WithField(ctx, "actor_role", string(claims.Role))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", errNoBearer
	}
	if token = strings.TrimSpace(token); token == "" {
		return "", errNoBearer
	}
	return token, nil
}

func unauthorized(w http.ResponseWriter, r *http.Request, logg *logger.Logger, cause error, msg string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="tradeledger"`)
	responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, cause, msg))
}
