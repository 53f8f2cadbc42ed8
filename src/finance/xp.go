package finance

import "math"

// XP granted per action.
const (
	XPGoalContribution = 10
	XPDebtPayment      = 15
	XPPotDeposit       = 5
	XPRoundupSweep     = 5
)

// LevelForXP grows with the square root of XP: 100 XP reaches level 2,
// 400 level 3, 900 level 4.
func LevelForXP(xp int) int {
	if xp <= 0 {
		return 1
	}
	return int(math.Sqrt(float64(xp)/100)) + 1
}
