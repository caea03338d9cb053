package controllers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/tradeledger-backend/api/responses"
	"github.com/angelmondragon/tradeledger-backend/api/validators"
	"github.com/angelmondragon/tradeledger-backend/internal/ledger"
	"github.com/angelmondragon/tradeledger-backend/internal/p2p"
	"github.com/angelmondragon/tradeledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tradeledger-backend/pkg/errors"
	"github.com/angelmondragon/tradeledger-backend/pkg/logger"
)

// P2PAction names a lifecycle step on an open trade.
type P2PAction string

const (
	P2PActionPaid    P2PAction = "paid"
	P2PActionDispute P2PAction = "dispute"
	P2PActionRelease P2PAction = "release"
	P2PActionCancel  P2PAction = "cancel"
)

type openTradeRequest struct {
	BuyerID      uuid.UUID       `json:"buyerId" validate:"required"`
	Currency     string          `json:"currency" validate:"required,currency"`
	WalletType   string          `json:"walletType" validate:"required,wallet_type"`
	Amount       decimal.Decimal `json:"amount"`
	Price        decimal.Decimal `json:"price"`
	FiatCurrency string          `json:"fiatCurrency" validate:"required,currency"`
}

// OpenP2PTrade escrows the seller's (caller's) funds for a buyer.
func OpenP2PTrade(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := requireUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body openTradeRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		walletType, err := enums.ParseWalletType(body.WalletType)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, invalidField("walletType", err))
			return
		}

		res, err := svc.OpenP2PTrade(r.Context(), ledger.OpenP2PTradeInput{
			SellerID:       userID,
			BuyerID:        body.BuyerID,
			Currency:       body.Currency,
			WalletType:     walletType,
			Amount:         body.Amount,
			Price:          body.Price,
			FiatCurrency:   body.FiatCurrency,
			IdempotencyKey: idempotencyKey(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeResult(w, res, true)
	}
}

// P2PTradeAction runs one lifecycle step. On the admin routes the caller's
// role lifts the party checks.
func P2PTradeAction(svc ledger.Service, action P2PAction, logg *logger.Logger) http.HandlerFunc {
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
		input := ledger.P2PTradeActionInput{
			UserID:         userID,
			TradeID:        id,
			Admin:          isAdmin(r),
			IdempotencyKey: idempotencyKey(r),
		}

		var res *ledger.Result
		switch action {
		case P2PActionPaid:
			res, err = svc.MarkP2PTradePaid(r.Context(), input)
		case P2PActionDispute:
			res, err = svc.DisputeP2PTrade(r.Context(), input)
		case P2PActionRelease:
			res, err = svc.ReleaseP2PTrade(r.Context(), input)
		case P2PActionCancel:
			res, err = svc.CancelP2PTrade(r.Context(), input)
		default:
			err = pkgerrors.Newf(pkgerrors.CodeValidation, "unknown trade action %q", action)
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeResult(w, res, false)
	}
}

func ListP2PTrades(svc p2p.Service, logg *logger.Logger) http.HandlerFunc {
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
		page, err := svc.List(r.Context(), userID, enums.P2PTradeStatus(parseOptionalStatus(r)), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

func GetP2PTrade(svc p2p.Service, logg *logger.Logger) http.HandlerFunc {
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
		trade, err := svc.Get(r.Context(), userID, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, trade)
	}
}
