package controllers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/tradeledger-backend/api/responses"
	"github.com/angelmondragon/tradeledger-backend/api/validators"
	"github.com/angelmondragon/tradeledger-backend/internal/ledger"
	"github.com/angelmondragon/tradeledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tradeledger-backend/pkg/errors"
	"github.com/angelmondragon/tradeledger-backend/pkg/logger"
)

// SettingsAdmin is the write side of the settings cache.
type SettingsAdmin interface {
	Set(ctx context.Context, key, value string) error
	Refresh(ctx context.Context) error
	Snapshot() map[string]string
	LoadedAt() time.Time
}

type depositRequest struct {
	UserID     uuid.UUID       `json:"userId" validate:"required"`
	Currency   string          `json:"currency" validate:"required,currency"`
	WalletType string          `json:"walletType" validate:"required,wallet_type"`
	Amount     decimal.Decimal `json:"amount"`
	Reference  string          `json:"reference" validate:"max=128"`
}

// AdminDeposit credits a user's wallet after an off-platform deposit was
// confirmed.
func AdminDeposit(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := requireUser(r); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body depositRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		walletType, err := enums.ParseWalletType(body.WalletType)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, invalidField("walletType", err))
			return
		}

		res, err := svc.Deposit(r.Context(), ledger.DepositInput{
			UserID:         body.UserID,
			Currency:       body.Currency,
			WalletType:     walletType,
			Amount:         body.Amount,
			Reference:      validators.SanitizeString(body.Reference, 128),
			IdempotencyKey: idempotencyKey(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeResult(w, res, true)
	}
}

type settleWithdrawalRequest struct {
	Reason string `json:"reason" validate:"max=256"`
}

// SettleWithdrawal approves or rejects a PENDING withdrawal. Rejection
// refunds the held amount.
func SettleWithdrawal(svc ledger.Service, approve bool, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actorID, err := requireUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body settleWithdrawalRequest
		if err := decodeOptionalBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := ledger.SettleWithdrawalInput{
			ActorID:        actorID,
			TransactionID:  id,
			Reason:         validators.SanitizeString(body.Reason, 256),
			IdempotencyKey: idempotencyKey(r),
		}
		var res *ledger.Result
		if approve {
			res, err = svc.ApproveWithdrawal(r.Context(), input)
		} else {
			res, err = svc.RejectWithdrawal(r.Context(), input)
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeResult(w, res, false)
	}
}

type fillExchangeOrderRequest struct {
	FillPrice decimal.Decimal `json:"fillPrice"`
}

// FillExchangeOrder settles an open order. Without fillPrice it fills at the
// order price.
func FillExchangeOrder(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actorID, err := requireUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body fillExchangeOrderRequest
		if err := decodeOptionalBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		res, err := svc.FillExchangeOrder(r.Context(), ledger.FillExchangeOrderInput{
			ActorID:        actorID,
			OrderID:        id,
			FillPrice:      body.FillPrice,
			IdempotencyKey: idempotencyKey(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeResult(w, res, false)
	}
}

type putSettingRequest struct {
	Value string `json:"value" validate:"required,max=256"`
}

func ListSettings(settings SettingsAdmin, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, map[string]any{
			"settings": settings.Snapshot(),
			"loadedAt": settings.LoadedAt(),
		})
	}
}

// PutSetting writes a value through to the store and reloads the cache.
func PutSetting(settings SettingsAdmin, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimSpace(chi.URLParam(r, "key"))
		if key == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "setting key is required"))
			return
		}
		var body putSettingRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := settings.Set(r.Context(), key, strings.TrimSpace(body.Value)); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if logg != nil {
			logg.Info(logg.WithFields(r.Context(), map[string]any{"setting": key}), "settings.updated")
		}
		responses.WriteSuccess(w, map[string]string{"key": key, "value": strings.TrimSpace(body.Value)})
	}
}

func RefreshSettings(settings SettingsAdmin, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := settings.Refresh(r.Context()); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"loadedAt": settings.LoadedAt()})
	}
}

// decodeOptionalBody accepts an empty body for endpoints whose payload is
// entirely optional.
func decodeOptionalBody(r *http.Request, dest any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	return validators.DecodeJSONBody(r, dest)
}
