package cache

// MutationTag names a write that has just completed.
type MutationTag string

// Cache partitions. Each read endpoint stores its results under one of these.
const (
	KeyAccounts            = "connected_accounts"
	KeyTransactions        = "transactions"
	KeyBudgets             = "budgets"
	KeyBudgetPacing        = "budget_pacing"
	KeyGoals               = "goals"
	KeyPots                = "pots"
	KeyDebts               = "debts"
	KeyCategoryRules       = "category_rules"
	KeyProfile             = "profile"
	KeyRoundups            = "roundups"
	KeyInsights            = "ai_insights"
	KeyWallets             = "crypto_wallets"
	KeyWalletNotifications = "wallet_notifications"
	KeyIntegrationStatus   = "api_quotas"
	KeyNetWorth            = "net_worth"
	KeyCryptoPrices        = "crypto_prices"
	KeyStockQuotes         = "stock_quotes"
	KeyExchangeRates       = "exchange_rates"
)

const (
	AccountLink            MutationTag = "account:link"
	AccountUnlink          MutationTag = "account:unlink"
	TransactionSync        MutationTag = "transaction:sync"
	TransactionCreate      MutationTag = "transaction:create"
	TransactionCategorize  MutationTag = "transaction:categorize"
	TransactionDelete      MutationTag = "transaction:delete"
	BudgetCreate           MutationTag = "budget:create"
	BudgetUpdate           MutationTag = "budget:update"
	BudgetDelete           MutationTag = "budget:delete"
	GoalCreate             MutationTag = "goal:create"
	GoalContribute         MutationTag = "goal:contribute"
	GoalDelete             MutationTag = "goal:delete"
	PotCreate              MutationTag = "pot:create"
	PotDeposit             MutationTag = "pot:deposit"
	PotWithdraw            MutationTag = "pot:withdraw"
	DebtCreate             MutationTag = "debt:create"
	DebtPayment            MutationTag = "debt:payment"
	RuleCreate             MutationTag = "rule:create"
	RuleDelete             MutationTag = "rule:delete"
	RuleApply              MutationTag = "rule:apply"
	RoundupSweep           MutationTag = "roundup:sweep"
	ProfileUpdate          MutationTag = "profile:update"
	InsightCreate          MutationTag = "insight:create"
	WalletAdd              MutationTag = "wallet:add"
	WalletRemove           MutationTag = "wallet:remove"
	WalletNotificationRead MutationTag = "wallet_notification:read"
)

// invalidationMap is the static mutation -> stale partitions table.
// Order matters: the first key is the one the UI is looking at.
var invalidationMap = map[MutationTag][]string{
	AccountLink:            {KeyAccounts, KeyTransactions, KeyNetWorth, KeyBudgetPacing},
	AccountUnlink:          {KeyAccounts, KeyTransactions, KeyNetWorth, KeyBudgetPacing, KeyRoundups},
	TransactionSync:        {KeyTransactions, KeyAccounts, KeyBudgetPacing, KeyRoundups, KeyNetWorth},
	TransactionCreate:      {KeyTransactions, KeyBudgetPacing, KeyRoundups},
	TransactionCategorize:  {KeyTransactions, KeyBudgetPacing},
	TransactionDelete:      {KeyTransactions, KeyBudgetPacing, KeyRoundups},
	BudgetCreate:           {KeyBudgets, KeyBudgetPacing},
	BudgetUpdate:           {KeyBudgets, KeyBudgetPacing},
	BudgetDelete:           {KeyBudgets, KeyBudgetPacing},
	GoalCreate:             {KeyGoals, KeyProfile},
	GoalContribute:         {KeyGoals, KeyProfile, KeyNetWorth},
	GoalDelete:             {KeyGoals},
	PotCreate:              {KeyPots},
	PotDeposit:             {KeyPots, KeyProfile, KeyNetWorth},
	PotWithdraw:            {KeyPots, KeyNetWorth},
	DebtCreate:             {KeyDebts, KeyNetWorth},
	DebtPayment:            {KeyDebts, KeyProfile, KeyNetWorth},
	RuleCreate:             {KeyCategoryRules},
	RuleDelete:             {KeyCategoryRules},
	RuleApply:              {KeyTransactions, KeyBudgetPacing},
	RoundupSweep:           {KeyRoundups, KeyPots, KeyProfile, KeyNetWorth},
	ProfileUpdate:          {KeyProfile, KeyRoundups},
	InsightCreate:          {KeyInsights},
	WalletAdd:              {KeyWallets, KeyWalletNotifications, KeyNetWorth},
	WalletRemove:           {KeyWallets, KeyWalletNotifications, KeyNetWorth},
	WalletNotificationRead: {KeyWalletNotifications},
}

// InvalidationKeys returns the partitions made stale by tag. Unknown tags
// return an empty slice. The result is a copy.
func InvalidationKeys(tag MutationTag) []string {
	keys := invalidationMap[tag]
	out := make([]string, len(keys))
	copy(out, keys)
	return out
}

// MutationTags lists every known tag.
func MutationTags() []MutationTag {
	tags := make([]MutationTag, 0, len(invalidationMap))
	for tag := range invalidationMap {
		tags = append(tags, tag)
	}
	return tags
}

// partitionsForTable maps a table name from a change notification to the
// partitions it feeds.
var partitionsForTable = map[string][]string{
	"connected_accounts":   {KeyAccounts, KeyNetWorth},
	"transactions":         {KeyTransactions, KeyBudgetPacing, KeyRoundups},
	"budgets":              {KeyBudgets, KeyBudgetPacing},
	"goals":                {KeyGoals},
	"pots":                 {KeyPots, KeyNetWorth},
	"debts":                {KeyDebts, KeyNetWorth},
	"category_rules":       {KeyCategoryRules},
	"profiles":             {KeyProfile},
	"ai_insights":          {KeyInsights},
	"crypto_wallets":       {KeyWallets, KeyNetWorth},
	"wallet_notifications": {KeyWalletNotifications},
	"api_quotas":           {KeyIntegrationStatus},
}

// TablePartitions returns the partitions backed by table, or an empty slice.
func TablePartitions(table string) []string {
	keys := partitionsForTable[table]
	out := make([]string, len(keys))
	copy(out, keys)
	return out
}
