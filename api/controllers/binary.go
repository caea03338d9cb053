package controllers

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/tradeledger-backend/api/responses"
	"github.com/angelmondragon/tradeledger-backend/api/validators"
	"github.com/angelmondragon/tradeledger-backend/internal/binary"
	"github.com/angelmondragon/tradeledger-backend/internal/ledger"
	"github.com/angelmondragon/tradeledger-backend/pkg/enums"
	"github.com/angelmondragon/tradeledger-backend/pkg/logger"
)

type placeBinaryOrderRequest struct {
	Symbol          string          `json:"symbol" validate:"required,symbol"`
	Currency        string          `json:"currency" validate:"omitempty,currency"`
	WalletType      string          `json:"walletType" validate:"required,wallet_type"`
	Side            string          `json:"side" validate:"required"`
	Amount          decimal.Decimal `json:"amount"`
	DurationSeconds int             `json:"durationSeconds" validate:"required,min=1"`
}

// PlaceBinaryOrder stakes funds on the price direction of a symbol.
func PlaceBinaryOrder(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := requireUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body placeBinaryOrderRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		walletType, err := enums.ParseWalletType(body.WalletType)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, invalidField("walletType", err))
			return
		}
		side, err := enums.ParseBinaryOrderSide(body.Side)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, invalidField("side", err))
			return
		}

		res, err := svc.PlaceBinaryOrder(r.Context(), ledger.PlaceBinaryOrderInput{
			UserID:         userID,
			Symbol:         body.Symbol,
			Currency:       body.Currency,
			WalletType:     walletType,
			Side:           side,
			Amount:         body.Amount,
			Duration:       time.Duration(body.DurationSeconds) * time.Second,
			IdempotencyKey: idempotencyKey(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeResult(w, res, true)
	}
}

func CancelBinaryOrder(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
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
		res, err := svc.CancelBinaryOrder(r.Context(), ledger.EntityActionInput{
			UserID:         userID,
			EntityID:       id,
			IdempotencyKey: idempotencyKey(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeResult(w, res, false)
	}
}

func ListBinaryOrders(svc binary.Service, logg *logger.Logger) http.HandlerFunc {
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
