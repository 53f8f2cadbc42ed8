package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"finpilot-server/src/cache"
	db "finpilot-server/src/db/sql"
	"finpilot-server/src/middleware"
	"finpilot-server/src/models"
	"finpilot-server/src/plaid"

	"github.com/jackc/pgx/v5"
)

type SyncSummary struct {
	Added    int `json:"added"`
	Modified int `json:"modified"`
	Removed  int `json:"removed"`
}

func CreateLinkToken(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())

		token, err := env.Plaid.CreateLinkToken(r.Context(), userID.String())
		if err != nil {
			fail(w, r, err, "Failed to create link token")
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"link_token": token})
	}
}

// ExchangePublicToken finishes a Link flow: it stores the item, its accounts
// and the first page of transactions.
func ExchangePublicToken(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		var req struct {
			PublicToken string `json:"public_token"`
		}
		if err := decodeJSON(w, r, &req); err != nil || req.PublicToken == "" {
			http.Error(w, "public_token is required", http.StatusBadRequest)
			return
		}

		linked, err := env.Plaid.ExchangePublicToken(r.Context(), req.PublicToken)
		if err != nil {
			fail(w, r, err, "Failed to exchange public token")
			return
		}

		item, err := db.SavePlaidItem(r.Context(), env.DB, &models.PlaidItem{
			UserID:          userID,
			ItemID:          linked.ItemID,
			AccessToken:     linked.AccessToken,
			InstitutionID:   linked.InstitutionID,
			InstitutionName: linked.InstitutionName,
		})
		if err != nil {
			fail(w, r, err, "Failed to save plaid item")
			return
		}
		slog.Info("Linked plaid item", "user_id", userID, "item_id", item.ItemID, "institution", item.InstitutionName)

		summary, err := syncItem(r.Context(), env, item)
		if err != nil {
			// The link itself succeeded; the next webhook retries the sync.
			slog.Error("Initial sync failed", "item_id", item.ItemID, "error", err)
		}
		mutated(env, r, cache.AccountLink)
		mutated(env, r, cache.TransactionSync)

		accounts, err := db.GetConnectedAccounts(r.Context(), env.DB, userID)
		if err != nil {
			fail(w, r, err, "Failed to load accounts")
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"accounts": accounts, "sync": summary})
	}
}

func SyncAccount(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		accountID, err := uuidParam(r, "account_id")
		if err != nil {
			http.Error(w, "invalid account id", http.StatusBadRequest)
			return
		}

		item, err := db.GetPlaidItemForAccount(r.Context(), env.DB, userID, accountID)
		if err != nil {
			fail(w, r, err, "Failed to find plaid item")
			return
		}

		summary, err := syncItem(r.Context(), env, item)
		if err != nil {
			fail(w, r, err, "Failed to sync transactions")
			return
		}
		mutated(env, r, cache.TransactionSync)
		writeJSON(w, http.StatusOK, summary)
	}
}

// PlaidWebhook is public. The Plaid-Verification header is checked against
// the body before anything is trusted.
func PlaidWebhook(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
		if err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
		if err := env.Plaid.VerifyWebhook(r.Context(), body, r.Header.Get("Plaid-Verification")); err != nil {
			slog.Warn("Rejected plaid webhook", "error", err)
			http.Error(w, "unverified webhook", http.StatusUnauthorized)
			return
		}

		var hook struct {
			WebhookType string `json:"webhook_type"`
			WebhookCode string `json:"webhook_code"`
			ItemID      string `json:"item_id"`
		}
		if err := json.Unmarshal(body, &hook); err != nil {
			http.Error(w, "invalid webhook", http.StatusBadRequest)
			return
		}
		slog.Info("Plaid webhook", "type", hook.WebhookType, "code", hook.WebhookCode, "item_id", hook.ItemID)

		item, err := db.GetPlaidItemByItemID(r.Context(), env.DB, hook.ItemID)
		if errors.Is(err, db.ErrNotFound) {
			// Unlinked since; nothing to do.
			w.WriteHeader(http.StatusOK)
			return
		}
		if err != nil {
			fail(w, r, err, "Failed to look up plaid item")
			return
		}

		switch {
		case hook.WebhookType == "TRANSACTIONS" && hook.WebhookCode == "SYNC_UPDATES_AVAILABLE":
			// Plaid expects a quick answer; sync in the background.
			go func() {
				ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), 2*time.Minute)
				defer cancel()
				if _, err := syncItem(ctx, env, item); err != nil {
					slog.Error("Webhook sync failed", "item_id", item.ItemID, "error", err)
					return
				}
				env.Invalidator.Mutated(item.UserID.String(), cache.TransactionSync)
			}()
		case hook.WebhookType == "ITEM" && hook.WebhookCode == "ERROR":
			if err := db.UpdatePlaidItemStatus(r.Context(), env.DB, item.ID, "error"); err != nil {
				fail(w, r, err, "Failed to update item status")
				return
			}
			env.Invalidator.Mutated(item.UserID.String(), cache.AccountLink)
		}
		w.WriteHeader(http.StatusOK)
	}
}

// DeleteAccount unlinks one account. When it was the item's last account
// the item is removed at Plaid too.
func DeleteAccount(env *Env) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		accountID, err := uuidParam(r, "account_id")
		if err != nil {
			http.Error(w, "invalid account id", http.StatusBadRequest)
			return
		}

		item, err := db.GetPlaidItemForAccount(r.Context(), env.DB, userID, accountID)
		if err != nil {
			fail(w, r, err, "Failed to find account")
			return
		}
		remaining, err := db.DeleteConnectedAccount(r.Context(), env.DB, userID, accountID)
		if err != nil {
			fail(w, r, err, "Failed to delete account")
			return
		}
		if remaining == 0 {
			if err := env.Plaid.RemoveItem(r.Context(), item.AccessToken); err != nil {
				slog.Error("Failed to remove item at plaid", "item_id", item.ItemID, "error", err)
			}
			if err := db.DeletePlaidItem(r.Context(), env.DB, userID, item.ID); err != nil {
				fail(w, r, err, "Failed to delete plaid item")
				return
			}
		}

		mutated(env, r, cache.AccountUnlink)
		w.WriteHeader(http.StatusNoContent)
	}
}

// syncItem refreshes balances and pulls every transaction change since the
// stored cursor. The cursor only advances if everything was saved.
func syncItem(ctx context.Context, env *Env, item *models.PlaidItem) (*SyncSummary, error) {
	accounts, err := env.Plaid.Accounts(ctx, item.AccessToken)
	if err != nil {
		return nil, err
	}
	result, err := env.Plaid.SyncTransactions(ctx, item.AccessToken, item.SyncCursor)
	if err != nil {
		return nil, err
	}

	err = pgx.BeginFunc(ctx, env.DB, func(tx pgx.Tx) error {
		if err := db.SaveAccounts(ctx, tx, item, accounts); err != nil {
			return err
		}
		upserts := append(result.Added, result.Modified...)
		if _, err := db.SaveSyncedTransactions(ctx, tx, item, upserts, result.Removed); err != nil {
			return err
		}
		return db.UpdateSyncCursor(ctx, tx, item.ID, result.Cursor)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store sync for item %s: %w", item.ItemID, err)
	}
	item.SyncCursor = result.Cursor

	summary := &SyncSummary{Added: len(result.Added), Modified: len(result.Modified), Removed: len(result.Removed)}
	slog.Info("Synced plaid item", "item_id", item.ItemID, "added", summary.Added, "modified", summary.Modified, "removed", summary.Removed)
	return summary, nil
}

var _ PlaidService = (*plaid.Service)(nil)
