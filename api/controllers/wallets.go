package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/tradeledger-backend/api/responses"
	"github.com/angelmondragon/tradeledger-backend/api/validators"
	"github.com/angelmondragon/tradeledger-backend/internal/ledger"
	"github.com/angelmondragon/tradeledger-backend/internal/wallets"
	"github.com/angelmondragon/tradeledger-backend/pkg/db/models"
	"github.com/angelmondragon/tradeledger-backend/pkg/enums"
	"github.com/angelmondragon/tradeledger-backend/pkg/logger"
)

// ListWallets returns every balance record the caller owns.
func ListWallets(svc wallets.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := requireUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.List(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// GetWallet returns one balance record addressed by type and currency.
func GetWallet(svc wallets.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := requireUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		walletType, err := enums.ParseWalletType(chi.URLParam(r, "walletType"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, invalidField("walletType", err))
			return
		}
		wallet, err := svc.GetBalance(r.Context(), models.NewWalletKey(userID, chi.URLParam(r, "currency"), walletType))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, wallet)
	}
}

type transferRequest struct {
	ToUserID *uuid.UUID      `json:"toUserId"`
	Currency string          `json:"currency" validate:"required,currency"`
	FromType string          `json:"fromType" validate:"required,wallet_type"`
	ToType   string          `json:"toType" validate:"required,wallet_type"`
	Amount   decimal.Decimal `json:"amount"`
}

// Transfer moves funds between two wallets. Without toUserId it moves
// between the caller's own wallet types.
func Transfer(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := requireUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body transferRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		fromType, err := enums.ParseWalletType(body.FromType)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, invalidField("fromType", err))
			return
		}
		toType, err := enums.ParseWalletType(body.ToType)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, invalidField("toType", err))
			return
		}
		toUser := userID
		if body.ToUserID != nil {
			toUser = *body.ToUserID
		}

		res, err := svc.Transfer(r.Context(), ledger.TransferInput{
			UserID:         userID,
			ToUserID:       toUser,
			Currency:       body.Currency,
			FromType:       fromType,
			ToType:         toType,
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

type withdrawalRequest struct {
	Currency   string          `json:"currency" validate:"required,currency"`
	WalletType string          `json:"walletType" validate:"required,wallet_type"`
	Amount     decimal.Decimal `json:"amount"`
	Address    string          `json:"address" validate:"required,max=256"`
}

// RequestWithdrawal debits the wallet and leaves a PENDING withdrawal for
// admin review.
func RequestWithdrawal(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := requireUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body withdrawalRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		walletType, err := enums.ParseWalletType(body.WalletType)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, invalidField("walletType", err))
			return
		}

		res, err := svc.RequestWithdrawal(r.Context(), ledger.WithdrawalInput{
			UserID:         userID,
			Currency:       body.Currency,
			WalletType:     walletType,
			Amount:         body.Amount,
			Address:        validators.SanitizeString(body.Address, 256),
			IdempotencyKey: idempotencyKey(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeResult(w, res, true)
	}
}

func parseOptionalStatus(r *http.Request) string {
	return strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("status")))
}
