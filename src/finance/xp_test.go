package finance

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevelForXP(t *testing.T) {
	tests := []struct {
		xp   int
		want int
	}{
		{-5, 1},
		{0, 1},
		{99, 1},
		{100, 2},
		{399, 2},
		{400, 3},
		{2500, 6},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LevelForXP(tt.xp), "xp=%d", tt.xp)
	}
}
