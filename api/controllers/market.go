package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/tradeledger-backend/api/responses"
	"github.com/angelmondragon/tradeledger-backend/api/validators"
	"github.com/angelmondragon/tradeledger-backend/internal/market"
	"github.com/angelmondragon/tradeledger-backend/pkg/logger"
)

func MarketTicker(gw market.Gateway, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		symbol, err := market.NormalizeSymbol(chi.URLParam(r, "symbol"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ticker, err := gw.FetchTicker(r.Context(), symbol)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, ticker)
	}
}

func MarketOrderBook(gw market.Gateway, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		symbol, err := market.NormalizeSymbol(chi.URLParam(r, "symbol"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		depth, err := validators.ParseQueryInt(r, "limit", market.DefaultDepth, 1, market.MaxDepth)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		book, err := gw.FetchOrderBook(r.Context(), symbol, depth)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, book)
	}
}
