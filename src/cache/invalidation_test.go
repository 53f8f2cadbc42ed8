package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInvalidationKeys(t *testing.T) {
	tests := []struct {
		tag  MutationTag
		want []string
	}{
		{GoalContribute, []string{KeyGoals, KeyProfile, KeyNetWorth}},
		{TransactionCategorize, []string{KeyTransactions, KeyBudgetPacing}},
		{WalletNotificationRead, []string{KeyWalletNotifications}},
		{MutationTag("goal:explode"), []string{}},
		{MutationTag(""), []string{}},
	}

	for _, tt := range tests {
		t.Run(string(tt.tag), func(t *testing.T) {
			got := InvalidationKeys(tt.tag)
			assert.NotNil(t, got)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInvalidationKeysReturnsCopy(t *testing.T) {
	keys := InvalidationKeys(BudgetCreate)
	keys[0] = "tampered"
	assert.Equal(t, KeyBudgets, InvalidationKeys(BudgetCreate)[0])
}

func TestEveryTagHasKeys(t *testing.T) {
	for _, tag := range MutationTags() {
		assert.NotEmpty(t, InvalidationKeys(tag), "tag %s", tag)
	}
}

func TestTablePartitions(t *testing.T) {
	assert.Equal(t, []string{KeyGoals}, TablePartitions("goals"))
	assert.Equal(t, []string{}, TablePartitions("users"))
}
