package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/tradeledger-backend/api/middleware"
	"github.com/angelmondragon/tradeledger-backend/api/responses"
	"github.com/angelmondragon/tradeledger-backend/internal/ledger"
	"github.com/angelmondragon/tradeledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tradeledger-backend/pkg/errors"
)

// requireUser returns the authenticated caller or an Unauthorized error.
func requireUser(r *http.Request) (uuid.UUID, error) {
	id := middleware.UserUUIDFromContext(r.Context())
	if id == uuid.Nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	return id, nil
}

func idempotencyKey(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(middleware.IdempotencyKeyHeader))
}

func isAdmin(r *http.Request) bool {
	return middleware.RoleFromContext(r.Context()) == string(enums.RoleAdmin)
}

func invalidField(field string, err error) error {
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+field).WithDetails(map[string]string{field: err.Error()})
}

// writeResult answers 201 for a freshly created entity and 200 for actions
// and replays.
func writeResult(w http.ResponseWriter, res *ledger.Result, created bool) {
	status := http.StatusOK
	if created && !res.Replayed {
		status = http.StatusCreated
	}
	responses.WriteSuccessStatus(w, status, res)
}
