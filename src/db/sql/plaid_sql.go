package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"finpilot-server/src/finance"
	"finpilot-server/src/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/plaid/plaid-go/v41/plaid"
	"github.com/shopspring/decimal"
)

const plaidItemColumns = `id, user_id, item_id, access_token, institution_id, institution_name, COALESCE(sync_cursor, ''), status, created_at`

func scanPlaidItem(row pgx.Row) (*models.PlaidItem, error) {
	var item models.PlaidItem
	err := row.Scan(&item.ID, &item.UserID, &item.ItemID, &item.AccessToken, &item.InstitutionID,
		&item.InstitutionName, &item.SyncCursor, &item.Status, &item.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &item, nil
}

// SavePlaidItem stores a newly linked item. Relinking the same Plaid item
// replaces its access token.
func SavePlaidItem(ctx context.Context, q DBTX, item *models.PlaidItem) (*models.PlaidItem, error) {
	query := `
		INSERT INTO plaid_items (user_id, item_id, access_token, institution_id, institution_name, status)
		VALUES ($1, $2, $3, $4, $5, 'active')
		ON CONFLICT (item_id) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			institution_name = EXCLUDED.institution_name,
			status = 'active'
		RETURNING ` + plaidItemColumns
	return scanPlaidItem(q.QueryRow(ctx, query, item.UserID, item.ItemID, item.AccessToken, item.InstitutionID, item.InstitutionName))
}

// GetPlaidItemByItemID looks an item up by Plaid's item id, as webhooks carry it.
func GetPlaidItemByItemID(ctx context.Context, q DBTX, itemID string) (*models.PlaidItem, error) {
	query := `SELECT ` + plaidItemColumns + ` FROM plaid_items WHERE item_id = $1`
	return scanPlaidItem(q.QueryRow(ctx, query, itemID))
}

// GetPlaidItemForAccount returns the item a connected account belongs to.
func GetPlaidItemForAccount(ctx context.Context, q DBTX, userID, accountID uuid.UUID) (*models.PlaidItem, error) {
	query := `
		SELECT p.id, p.user_id, p.item_id, p.access_token, p.institution_id, p.institution_name,
			COALESCE(p.sync_cursor, ''), p.status, p.created_at
		FROM plaid_items p
		JOIN connected_accounts a ON a.plaid_item_id = p.id
		WHERE a.id = $1 AND a.user_id = $2
	`
	return scanPlaidItem(q.QueryRow(ctx, query, accountID, userID))
}

func UpdateSyncCursor(ctx context.Context, q DBTX, itemID uuid.UUID, cursor string) error {
	_, err := q.Exec(ctx, `UPDATE plaid_items SET sync_cursor = $1 WHERE id = $2`, cursor, itemID)
	return err
}

func UpdatePlaidItemStatus(ctx context.Context, q DBTX, itemID uuid.UUID, status string) error {
	_, err := q.Exec(ctx, `UPDATE plaid_items SET status = $1 WHERE id = $2`, status, itemID)
	return err
}

func DeletePlaidItem(ctx context.Context, q DBTX, userID, itemID uuid.UUID) error {
	return expectOne(q.Exec(ctx, `DELETE FROM plaid_items WHERE id = $1 AND user_id = $2`, itemID, userID))
}

const accountColumns = `id, user_id, plaid_item_id, plaid_account_id, institution_name, name, official_name,
	mask, type, subtype, current_balance, available_balance, currency, updated_at`

func GetConnectedAccounts(ctx context.Context, q DBTX, userID uuid.UUID) ([]models.ConnectedAccount, error) {
	query := `SELECT ` + accountColumns + ` FROM connected_accounts WHERE user_id = $1 ORDER BY institution_name, name`
	rows, err := q.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	accounts := []models.ConnectedAccount{}
	for rows.Next() {
		var a models.ConnectedAccount
		err := rows.Scan(&a.ID, &a.UserID, &a.PlaidItemID, &a.PlaidAccountID, &a.InstitutionName, &a.Name, &a.OfficialName,
			&a.Mask, &a.Type, &a.Subtype, &a.CurrentBalance, &a.AvailableBalance, &a.Currency, &a.UpdatedAt)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// DeleteConnectedAccount removes an account and its transactions. It reports
// how many accounts the parent item still has.
func DeleteConnectedAccount(ctx context.Context, q DBTX, userID, accountID uuid.UUID) (remaining int, err error) {
	var itemID uuid.UUID
	err = q.QueryRow(ctx,
		`DELETE FROM connected_accounts WHERE id = $1 AND user_id = $2 RETURNING plaid_item_id`,
		accountID, userID).Scan(&itemID)
	if err != nil {
		return 0, notFound(err)
	}
	err = q.QueryRow(ctx, `SELECT COUNT(*) FROM connected_accounts WHERE plaid_item_id = $1`, itemID).Scan(&remaining)
	return remaining, err
}

// SaveAccounts upserts the accounts Plaid reports for item.
func SaveAccounts(ctx context.Context, q DBTX, item *models.PlaidItem, accounts []plaid.AccountBase) error {
	query := `
		INSERT INTO connected_accounts (user_id, plaid_item_id, plaid_account_id, institution_name, name,
			official_name, mask, type, subtype, current_balance, available_balance, currency)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (plaid_account_id) DO UPDATE SET
			name = EXCLUDED.name,
			official_name = EXCLUDED.official_name,
			current_balance = EXCLUDED.current_balance,
			available_balance = EXCLUDED.available_balance,
			updated_at = NOW()
	`
	for _, acc := range accounts {
		balances := acc.GetBalances()
		currency := balances.GetIsoCurrencyCode()
		if currency == "" {
			currency = "USD"
		}
		_, err := q.Exec(ctx, query,
			item.UserID,
			item.ID,
			acc.GetAccountId(),
			item.InstitutionName,
			acc.GetName(),
			acc.GetOfficialName(),
			acc.GetMask(),
			string(acc.GetType()),
			string(acc.GetSubtype()),
			nullDecimal(balances.GetCurrentOk()),
			nullDecimal(balances.GetAvailableOk()),
			currency,
		)
		if err != nil {
			return fmt.Errorf("failed to save account %s: %w", acc.GetAccountId(), err)
		}
	}
	return nil
}

// upsertSyncedTransactionSQL writes one Plaid transaction. A category the
// user set by hand survives later syncs.
const upsertSyncedTransactionSQL = `
	INSERT INTO transactions (user_id, account_id, plaid_transaction_id, amount, name, merchant_name, category, date, pending)
	SELECT $1, a.id, $2, $3, $4, $5, $6, $7, $8
	FROM connected_accounts a
	WHERE a.plaid_account_id = $9 AND a.user_id = $1
	ON CONFLICT (plaid_transaction_id) DO UPDATE SET
		amount = EXCLUDED.amount,
		name = EXCLUDED.name,
		merchant_name = EXCLUDED.merchant_name,
		category = CASE WHEN transactions.category_locked THEN transactions.category ELSE EXCLUDED.category END,
		date = EXCLUDED.date,
		pending = EXCLUDED.pending
`

// syncedRow is the part of a Plaid transaction categorisation reads.
type syncedRow struct {
	Name           string
	MerchantName   *string
	Amount         decimal.Decimal
	PlaidAccountID string
	PlaidPrimary   string
}

// categorizeSynced returns the first matching rule's category, else Plaid's
// primary category. accountNames maps Plaid account ids to account names
// so `account` conditions see the same value ApplyCategoryRules does.
func categorizeSynced(rules []models.CategoryRule, accountNames map[string]string, row syncedRow) string {
	in := finance.RuleInput{
		Name:        row.Name,
		Amount:      row.Amount.InexactFloat64(),
		AccountName: accountNames[row.PlaidAccountID],
	}
	if row.MerchantName != nil {
		in.MerchantName = *row.MerchantName
	}
	if rule, ok := finance.MatchRule(rules, in); ok {
		return rule.Category
	}
	if row.PlaidPrimary == "" {
		return "uncategorized"
	}
	return strings.ToLower(row.PlaidPrimary)
}

// plaidAccountNames maps the user's Plaid account ids to account names.
func plaidAccountNames(ctx context.Context, q DBTX, userID uuid.UUID) (map[string]string, error) {
	rows, err := q.Query(ctx, `SELECT plaid_account_id, name FROM connected_accounts WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := make(map[string]string)
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		names[id] = name
	}
	return names, rows.Err()
}

// SaveSyncedTransactions upserts added and modified Plaid transactions for
// item and deletes removed ones. Category rules are applied to every row
// written; rows no rule matches take Plaid's primary category. Accounts must
// be saved first.
func SaveSyncedTransactions(ctx context.Context, q DBTX, item *models.PlaidItem, upserts []plaid.Transaction, removed []string) (int, error) {
	rules, err := GetCategoryRules(ctx, q, item.UserID)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch category rules: %w", err)
	}
	finance.SortRules(rules)

	accountNames, err := plaidAccountNames(ctx, q, item.UserID)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch account names: %w", err)
	}

	written := 0
	for _, txn := range upserts {
		date, err := time.Parse(time.DateOnly, txn.GetDate())
		if err != nil {
			return written, fmt.Errorf("bad date %q on transaction %s: %w", txn.GetDate(), txn.GetTransactionId(), err)
		}

		row := syncedRow{
			Name:           txn.GetName(),
			Amount:         decimal.NewFromFloat(txn.GetAmount()),
			PlaidAccountID: txn.GetAccountId(),
		}
		if m := txn.GetMerchantName(); m != "" {
			row.MerchantName = &m
		}
		if pfc, ok := txn.GetPersonalFinanceCategoryOk(); ok && pfc != nil {
			row.PlaidPrimary = pfc.GetPrimary()
		}

		tag, err := q.Exec(ctx, upsertSyncedTransactionSQL,
			item.UserID,
			txn.GetTransactionId(),
			row.Amount,
			row.Name,
			row.MerchantName,
			categorizeSynced(rules, accountNames, row),
			date,
			txn.GetPending(),
			row.PlaidAccountID,
		)
		if err != nil {
			return written, fmt.Errorf("failed to save transaction %s: %w", txn.GetTransactionId(), err)
		}
		written += int(tag.RowsAffected())
	}

	if len(removed) > 0 {
		_, err := q.Exec(ctx,
			`DELETE FROM transactions WHERE user_id = $1 AND plaid_transaction_id = ANY($2)`,
			item.UserID, removed)
		if err != nil {
			return written, fmt.Errorf("failed to delete removed transactions: %w", err)
		}
	}
	return written, nil
}

func nullDecimal(v *float64, ok bool) decimal.NullDecimal {
	if !ok || v == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(decimal.NewFromFloat(*v))
}
