package controllers

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/tradeledger-backend/api/responses"
	"github.com/angelmondragon/tradeledger-backend/api/validators"
	"github.com/angelmondragon/tradeledger-backend/internal/exchange"
	"github.com/angelmondragon/tradeledger-backend/internal/ledger"
	"github.com/angelmondragon/tradeledger-backend/pkg/enums"
	"github.com/angelmondragon/tradeledger-backend/pkg/logger"
)

type placeExchangeOrderRequest struct {
	Symbol     string          `json:"symbol" validate:"required,symbol"`
	WalletType string          `json:"walletType" validate:"required,wallet_type"`
	Side       string          `json:"side" validate:"required"`
	Type       string          `json:"type" validate:"required"`
	Amount     decimal.Decimal `json:"amount"`
	Price      decimal.Decimal `json:"price"`
}

// PlaceExchangeOrder holds the quote (buy) or base (sell) amount for a spot
// order.
func PlaceExchangeOrder(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := requireUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body placeExchangeOrderRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		walletType, err := enums.ParseWalletType(body.WalletType)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, invalidField("walletType", err))
			return
		}
		side, err := enums.ParseOrderSide(body.Side)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, invalidField("side", err))
			return
		}
		orderType, err := enums.ParseOrderType(body.Type)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, invalidField("type", err))
			return
		}

		res, err := svc.PlaceExchangeOrder(r.Context(), ledger.PlaceExchangeOrderInput{
			UserID:         userID,
			Symbol:         body.Symbol,
			WalletType:     walletType,
			Side:           side,
			Type:           orderType,
			Amount:         body.Amount,
			Price:          body.Price,
			IdempotencyKey: idempotencyKey(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeResult(w, res, true)
	}
}

func CancelExchangeOrder(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
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
		res, err := svc.CancelExchangeOrder(r.Context(), ledger.EntityActionInput{
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

func ListExchangeOrders(svc exchange.Service, logg *logger.Logger) http.HandlerFunc {
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
		page, err := svc.List(r.Context(), userID, enums.ExchangeOrderStatus(parseOptionalStatus(r)), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}
