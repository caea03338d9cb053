package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/tradeledger-backend/api/responses"
	"github.com/angelmondragon/tradeledger-backend/api/validators"
	"github.com/angelmondragon/tradeledger-backend/internal/transactions"
	"github.com/angelmondragon/tradeledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tradeledger-backend/pkg/errors"
	"github.com/angelmondragon/tradeledger-backend/pkg/logger"
)

// ListTransactions pages through the caller's ledger, newest first.
func ListTransactions(svc transactions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := requireUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var filter transactions.Filter
		q := r.URL.Query()
		if raw := strings.TrimSpace(q.Get("type")); raw != "" {
			if filter.Type, err = enums.ParseTransactionType(raw); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid transaction type"))
				return
			}
		}
		if raw := strings.TrimSpace(q.Get("status")); raw != "" {
			if filter.Status, err = enums.ParseTransactionStatus(raw); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid transaction status"))
				return
			}
		}
		if raw := strings.TrimSpace(q.Get("walletId")); raw != "" {
			walletID, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, invalidField("walletId", err))
				return
			}
			filter.WalletID = walletID
		}

		page, err := svc.List(r.Context(), userID, filter, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

func GetTransaction(svc transactions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := requireUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		txn, err := svc.Get(r.Context(), userID, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, txn)
	}
}
