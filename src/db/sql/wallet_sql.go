package db

import (
	"context"
	"errors"

	"finpilot-server/src/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

var ErrDuplicateWallet = errors.New("wallet already added")

func CreateWallet(ctx context.Context, q DBTX, w *models.CryptoWallet) (*models.CryptoWallet, error) {
	var out models.CryptoWallet
	err := q.QueryRow(ctx, `
		INSERT INTO crypto_wallets (user_id, chain, address, label)
		VALUES ($1, $2, $3, $4)
		RETURNING id, user_id, chain, address, label, created_at
	`, w.UserID, w.Chain, w.Address, w.Label).
		Scan(&out.ID, &out.UserID, &out.Chain, &out.Address, &out.Label, &out.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrDuplicateWallet
		}
		return nil, err
	}
	return &out, nil
}

func GetWallets(ctx context.Context, q DBTX, userID uuid.UUID) ([]models.CryptoWallet, error) {
	rows, err := q.Query(ctx, `
		SELECT id, user_id, chain, address, label, created_at
		FROM crypto_wallets WHERE user_id = $1
		ORDER BY created_at
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	wallets := []models.CryptoWallet{}
	for rows.Next() {
		var w models.CryptoWallet
		if err := rows.Scan(&w.ID, &w.UserID, &w.Chain, &w.Address, &w.Label, &w.CreatedAt); err != nil {
			return nil, err
		}
		wallets = append(wallets, w)
	}
	return wallets, rows.Err()
}

func DeleteWallet(ctx context.Context, q DBTX, userID, walletID uuid.UUID) error {
	return expectOne(q.Exec(ctx, `DELETE FROM crypto_wallets WHERE id = $1 AND user_id = $2`, walletID, userID))
}

func GetWalletNotifications(ctx context.Context, q DBTX, userID uuid.UUID, unreadOnly bool) ([]models.WalletNotification, error) {
	rows, err := q.Query(ctx, `
		SELECT id, user_id, wallet_id, kind, message, read, created_at
		FROM wallet_notifications
		WHERE user_id = $1 AND (NOT $2 OR NOT read)
		ORDER BY created_at DESC
		LIMIT 100
	`, userID, unreadOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notes := []models.WalletNotification{}
	for rows.Next() {
		var n models.WalletNotification
		if err := rows.Scan(&n.ID, &n.UserID, &n.WalletID, &n.Kind, &n.Message, &n.Read, &n.CreatedAt); err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

func MarkWalletNotificationRead(ctx context.Context, q DBTX, userID, notificationID uuid.UUID) error {
	return expectOne(q.Exec(ctx,
		`UPDATE wallet_notifications SET read = TRUE WHERE id = $1 AND user_id = $2`,
		notificationID, userID))
}

// GetAPIQuotas returns the provider quota rows. They are shared by all users.
func GetAPIQuotas(ctx context.Context, q DBTX) ([]models.APIQuota, error) {
	rows, err := q.Query(ctx, `
		SELECT provider, calls_today, daily_limit, circuit_state, failure_count, open_until, updated_at
		FROM api_quotas
		ORDER BY provider
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	quotas := []models.APIQuota{}
	for rows.Next() {
		var a models.APIQuota
		if err := rows.Scan(&a.Provider, &a.CallsToday, &a.DailyLimit, &a.CircuitState, &a.FailureCount, &a.OpenUntil, &a.UpdatedAt); err != nil {
			return nil, err
		}
		quotas = append(quotas, a)
	}
	return quotas, rows.Err()
}
