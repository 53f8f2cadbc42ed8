package finance

import (
	"errors"
	"fmt"
	"time"

	"finpilot-server/src/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PacingStatus string

const (
	PacingUnder    PacingStatus = "under"
	PacingOnTrack  PacingStatus = "on_track"
	PacingOver     PacingStatus = "over"
	PacingExceeded PacingStatus = "exceeded"
)

var ErrUnknownPeriod = errors.New("unknown budget period")

// pacingTolerance is the band around the expected spend that counts as on track.
var pacingTolerance = decimal.NewFromFloat(0.10)

type BudgetPace struct {
	BudgetID       uuid.UUID       `json:"budget_id"`
	Category       string          `json:"category"`
	Period         string          `json:"period"`
	PeriodStart    time.Time       `json:"period_start"`
	PeriodEnd      time.Time       `json:"period_end"`
	ElapsedDays    int             `json:"elapsed_days"`
	TotalDays      int             `json:"total_days"`
	Amount         decimal.Decimal `json:"amount"`
	Spent          decimal.Decimal `json:"spent"`
	Expected       decimal.Decimal `json:"expected"`
	Projected      decimal.Decimal `json:"projected"`
	Remaining      decimal.Decimal `json:"remaining"`
	DailyAllowance decimal.Decimal `json:"daily_allowance"`
	Status         PacingStatus    `json:"status"`
}

// PeriodBounds returns the [start, end) window containing now. Weeks start
// on Monday. Bounds are in now's location.
func PeriodBounds(period string, now time.Time) (time.Time, time.Time, error) {
	y, m, d := now.Date()
	switch period {
	case models.PeriodMonthly:
		start := time.Date(y, m, 1, 0, 0, 0, 0, now.Location())
		return start, start.AddDate(0, 1, 0), nil
	case models.PeriodWeekly:
		offset := (int(now.Weekday()) + 6) % 7
		start := time.Date(y, m, d-offset, 0, 0, 0, 0, now.Location())
		return start, start.AddDate(0, 0, 7), nil
	default:
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %q", ErrUnknownPeriod, period)
	}
}

// Pace compares spent-to-date against a straight-line spend of the budget
// across its period.
func Pace(b models.Budget, spent decimal.Decimal, now time.Time) (BudgetPace, error) {
	start, end, err := PeriodBounds(b.Period, now)
	if err != nil {
		return BudgetPace{}, err
	}

	total := daysBetween(start, end)
	elapsed := daysBetween(start, now) + 1
	if elapsed > total {
		elapsed = total
	}

	totalD := decimal.NewFromInt(int64(total))
	elapsedD := decimal.NewFromInt(int64(elapsed))
	expected := b.Amount.Mul(elapsedD).Div(totalD).Round(2)
	projected := spent.Mul(totalD).Div(elapsedD).Round(2)
	remaining := b.Amount.Sub(spent)

	allowance := decimal.Zero
	if remaining.IsPositive() {
		daysLeft := total - elapsed + 1
		allowance = remaining.Div(decimal.NewFromInt(int64(daysLeft))).Round(2)
	}

	return BudgetPace{
		BudgetID:       b.ID,
		Category:       b.Category,
		Period:         b.Period,
		PeriodStart:    start,
		PeriodEnd:      end,
		ElapsedDays:    elapsed,
		TotalDays:      total,
		Amount:         b.Amount,
		Spent:          spent,
		Expected:       expected,
		Projected:      projected,
		Remaining:      remaining,
		DailyAllowance: allowance,
		Status:         paceStatus(b.Amount, spent, expected),
	}, nil
}

func paceStatus(amount, spent, expected decimal.Decimal) PacingStatus {
	if spent.GreaterThan(amount) {
		return PacingExceeded
	}
	band := expected.Mul(pacingTolerance)
	switch {
	case spent.GreaterThan(expected.Add(band)):
		return PacingOver
	case spent.LessThan(expected.Sub(band)):
		return PacingUnder
	default:
		return PacingOnTrack
	}
}

// SpentByCategory sums debits per category for transactions dated in [start, end).
func SpentByCategory(txns []models.Transaction, start, end time.Time) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal)
	for _, txn := range txns {
		if txn.Date.Before(start) || !txn.Date.Before(end) || !txn.Amount.IsPositive() {
			continue
		}
		out[txn.Category] = out[txn.Category].Add(txn.Amount)
	}
	return out
}

func daysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}
