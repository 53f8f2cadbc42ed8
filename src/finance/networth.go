package finance

import "github.com/shopspring/decimal"

// BalanceTotals are the raw sums a net worth is built from.
type BalanceTotals struct {
	Cash   decimal.Decimal // depository and investment accounts
	Credit decimal.Decimal // credit and loan account balances
	Pots   decimal.Decimal
	Debts  decimal.Decimal // manually tracked debts still open
}

type NetWorth struct {
	Assets      decimal.Decimal `json:"assets"`
	Liabilities decimal.Decimal `json:"liabilities"`
	Total       decimal.Decimal `json:"total"`
}

func ComputeNetWorth(t BalanceTotals) NetWorth {
	assets := t.Cash.Add(t.Pots)
	liabilities := t.Credit.Abs().Add(t.Debts)
	return NetWorth{
		Assets:      assets,
		Liabilities: liabilities,
		Total:       assets.Sub(liabilities),
	}
}
