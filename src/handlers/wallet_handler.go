package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"finpilot-server/src/cache"
	db "finpilot-server/src/db/sql"
	"finpilot-server/src/middleware"
	"finpilot-server/src/models"
	"finpilot-server/src/wallet"
)

func GetWallets(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		wallets, err := cached(env, r, cache.KeyWallets, "wallets", nil, nil,
			func(ctx context.Context) ([]models.CryptoWallet, error) {
				return db.GetWallets(ctx, env.DB, userID)
			})
		if err != nil {
			fail(w, r, err, "Failed to retrieve wallets")
			return
		}
		writeJSON(w, http.StatusOK, wallets)
	}
}

// AddWallet stores a watch-only wallet after validating its address for
// the chain, including the EIP-55 checksum when one is present.
func AddWallet(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		var req struct {
			Chain   string `json:"chain"`
			Address string `json:"address"`
			Label   string `json:"label"`
		}
		if err := decodeJSON(w, r, &req); err != nil {
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}

		chain := strings.ToLower(strings.TrimSpace(req.Chain))
		address, err := wallet.NormalizeAddress(chain, strings.TrimSpace(req.Address))
		if err != nil {
			if errors.Is(err, wallet.ErrUnknownChain) || errors.Is(err, wallet.ErrBadAddress) || errors.Is(err, wallet.ErrBadChecksum) {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			fail(w, r, err, "Failed to validate address")
			return
		}

		created, err := db.CreateWallet(r.Context(), env.DB, &models.CryptoWallet{
			UserID:  userID,
			Chain:   chain,
			Address: address,
			Label:   strings.TrimSpace(req.Label),
		})
		if err != nil {
			fail(w, r, err, "Failed to add wallet")
			return
		}
		mutated(env, r, cache.WalletAdd)
		writeJSON(w, http.StatusCreated, created)
	}
}

func RemoveWallet(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		walletID, err := uuidParam(r, "id")
		if err != nil {
			http.Error(w, "invalid wallet id", http.StatusBadRequest)
			return
		}
		if err := db.DeleteWallet(r.Context(), env.DB, userID, walletID); err != nil {
			fail(w, r, err, "Failed to remove wallet")
			return
		}
		mutated(env, r, cache.WalletRemove)
		w.WriteHeader(http.StatusNoContent)
	}
}

func GetWalletNotifications(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		unread := r.URL.Query().Get("unread") == "true"
		notes, err := cached(env, r, cache.KeyWalletNotifications, "wallet-notifications", nil,
			map[string]any{"unread": unread},
			func(ctx context.Context) ([]models.WalletNotification, error) {
				return db.GetWalletNotifications(ctx, env.DB, userID, unread)
			})
		if err != nil {
			fail(w, r, err, "Failed to retrieve wallet notifications")
			return
		}
		writeJSON(w, http.StatusOK, notes)
	}
}

func MarkWalletNotificationRead(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		id, err := uuidParam(r, "id")
		if err != nil {
			http.Error(w, "invalid notification id", http.StatusBadRequest)
			return
		}
		if err := db.MarkWalletNotificationRead(r.Context(), env.DB, userID, id); err != nil {
			fail(w, r, err, "Failed to mark notification read")
			return
		}
		mutated(env, r, cache.WalletNotificationRead)
		w.WriteHeader(http.StatusNoContent)
	}
}

// GetIntegrationStatus shows provider quota and circuit-breaker state. The
// rows are shared, so the cache entry is too.
func GetIntegrationStatus(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		quotas, err := cachedShared(env, r, cache.KeyIntegrationStatus, "integrations/status", nil,
			func(ctx context.Context) ([]models.APIQuota, error) {
				return db.GetAPIQuotas(ctx, env.DB)
			})
		if err != nil {
			fail(w, r, err, "Failed to retrieve integration status")
			return
		}
		writeJSON(w, http.StatusOK, quotas)
	}
}
