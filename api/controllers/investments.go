package controllers

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/tradeledger-backend/api/responses"
	"github.com/angelmondragon/tradeledger-backend/api/validators"
	"github.com/angelmondragon/tradeledger-backend/internal/investments"
	"github.com/angelmondragon/tradeledger-backend/internal/ledger"
	"github.com/angelmondragon/tradeledger-backend/pkg/enums"
	"github.com/angelmondragon/tradeledger-backend/pkg/logger"
)

type createInvestmentRequest struct {
	Plan       string          `json:"plan" validate:"required,max=64"`
	Currency   string          `json:"currency" validate:"required,currency"`
	WalletType string          `json:"walletType" validate:"required,wallet_type"`
	Amount     decimal.Decimal `json:"amount"`
}

func CreateInvestment(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := requireUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body createInvestmentRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		walletType, err := enums.ParseWalletType(body.WalletType)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, invalidField("walletType", err))
			return
		}

		res, err := svc.CreateInvestment(r.Context(), ledger.CreateInvestmentInput{
			UserID:         userID,
			Plan:           validators.SanitizeString(body.Plan, 64),
			Currency:       body.Currency,
			WalletType:     walletType,
			Amount:         body.Amount,
			IdempotencyKey: idempotencyKey(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeResult(w, res, true)
	}
}

// CancelInvestment refunds an active investment. Repeating it is a no-op.
func CancelInvestment(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
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

		res, err := svc.CancelInvestment(r.Context(), ledger.CancelInvestmentInput{
			UserID:         userID,
			InvestmentID:   id,
			IdempotencyKey: idempotencyKey(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeResult(w, res, false)
	}
}

func ListInvestments(svc investments.Service, logg *logger.Logger) http.HandlerFunc {
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
		page, err := svc.List(r.Context(), userID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

func GetInvestment(svc investments.Service, logg *logger.Logger) http.HandlerFunc {
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
		inv, err := svc.Get(r.Context(), userID, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, inv)
	}
}
