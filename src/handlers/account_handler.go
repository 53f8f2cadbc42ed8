package handlers

import (
	"context"
	"net/http"

	"finpilot-server/src/cache"
	db "finpilot-server/src/db/sql"
	"finpilot-server/src/finance"
	"finpilot-server/src/middleware"
	"finpilot-server/src/models"
)

func GetAccounts(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		accounts, err := cached(env, r, cache.KeyAccounts, "accounts", nil, nil,
			func(ctx context.Context) ([]models.ConnectedAccount, error) {
				return db.GetConnectedAccounts(ctx, env.DB, userID)
			})
		if err != nil {
			fail(w, r, err, "Failed to retrieve accounts")
			return
		}
		writeJSON(w, http.StatusOK, accounts)
	}
}

func GetNetWorth(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		nw, err := cached(env, r, cache.KeyNetWorth, "net-worth", nil, nil,
			func(ctx context.Context) (finance.NetWorth, error) {
				totals, err := db.GetBalanceTotals(ctx, env.DB, userID)
				if err != nil {
					return finance.NetWorth{}, err
				}
				return finance.ComputeNetWorth(totals), nil
			})
		if err != nil {
			fail(w, r, err, "Failed to compute net worth")
			return
		}
		writeJSON(w, http.StatusOK, nw)
	}
}
