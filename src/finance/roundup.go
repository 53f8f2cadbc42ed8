package finance

import (
	"errors"

	"finpilot-server/src/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	MinRoundupMultiplier = 1
	MaxRoundupMultiplier = 10
)

var ErrInvalidMultiplier = errors.New("round-up multiplier must be between 1 and 10")

type RoundUp struct {
	TransactionID uuid.UUID       `json:"transaction_id"`
	Name          string          `json:"name"`
	Amount        decimal.Decimal `json:"amount"`
	RoundUp       decimal.Decimal `json:"round_up"`
}

type RoundUpPreview struct {
	Multiplier int             `json:"multiplier"`
	Items      []RoundUp       `json:"items"`
	Total      decimal.Decimal `json:"total"`
}

// RoundUpAmount is the spare change to the next whole unit, scaled by
// multiplier. Credits and whole amounts round up by zero.
func RoundUpAmount(amount decimal.Decimal, multiplier int) (decimal.Decimal, error) {
	if multiplier < MinRoundupMultiplier || multiplier > MaxRoundupMultiplier {
		return decimal.Zero, ErrInvalidMultiplier
	}
	if !amount.IsPositive() {
		return decimal.Zero, nil
	}
	spare := amount.Ceil().Sub(amount)
	return spare.Mul(decimal.NewFromInt(int64(multiplier))), nil
}

// PreviewRoundUps computes round-ups for settled, unswept debits.
func PreviewRoundUps(txns []models.Transaction, multiplier int) (RoundUpPreview, error) {
	preview := RoundUpPreview{Multiplier: multiplier, Items: []RoundUp{}, Total: decimal.Zero}
	if multiplier < MinRoundupMultiplier || multiplier > MaxRoundupMultiplier {
		return preview, ErrInvalidMultiplier
	}
	for _, txn := range txns {
		if txn.Pending || txn.RoundupSwept {
			continue
		}
		r, err := RoundUpAmount(txn.Amount, multiplier)
		if err != nil {
			return preview, err
		}
		if r.IsZero() {
			continue
		}
		preview.Items = append(preview.Items, RoundUp{
			TransactionID: txn.ID,
			Name:          txn.Name,
			Amount:        txn.Amount,
			RoundUp:       r,
		})
		preview.Total = preview.Total.Add(r)
	}
	return preview, nil
}

func (p RoundUpPreview) TransactionIDs() []uuid.UUID {
	ids := make([]uuid.UUID, len(p.Items))
	for i, item := range p.Items {
		ids[i] = item.TransactionID
	}
	return ids
}
