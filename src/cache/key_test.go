package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCreateCacheKey(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		same bool
	}{
		{
			name: "filter field order is ignored",
			a:    CreateCacheKey("GET", "transactions", nil, map[string]any{"a": 1, "b": 2}),
			b:    CreateCacheKey("GET", "transactions", nil, map[string]any{"b": 2, "a": 1}),
			same: true,
		},
		{
			name: "nested filter order is ignored",
			a: CreateCacheKey("GET", "transactions", &Page{0, 50}, map[string]any{
				"range": map[string]any{"from": "2026-01-01", "to": "2026-01-31"},
				"category": "FOOD_AND_DRINK",
			}),
			b: CreateCacheKey("GET", "transactions", &Page{0, 50}, map[string]any{
				"category": "FOOD_AND_DRINK",
				"range":    map[string]any{"to": "2026-01-31", "from": "2026-01-01"},
			}),
			same: true,
		},
		{
			name: "method is case-insensitive",
			a:    CreateCacheKey("get", "goals", nil, nil),
			b:    CreateCacheKey("GET", "goals", nil, map[string]any{}),
			same: true,
		},
		{
			name: "pagination window separates keys",
			a:    CreateCacheKey("GET", "transactions", &Page{0, 50}, nil),
			b:    CreateCacheKey("GET", "transactions", &Page{50, 50}, nil),
			same: false,
		},
		{
			name: "filter values separate keys",
			a:    CreateCacheKey("GET", "transactions", nil, map[string]any{"a": 1}),
			b:    CreateCacheKey("GET", "transactions", nil, map[string]any{"a": 2}),
			same: false,
		},
		{
			name: "resource separates keys",
			a:    CreateCacheKey("GET", "goals", nil, nil),
			b:    CreateCacheKey("GET", "pots", nil, nil),
			same: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.same {
				assert.Equal(t, tt.a, tt.b)
			} else {
				assert.NotEqual(t, tt.a, tt.b)
			}
		})
	}
}

func TestCreateCacheKeyFormat(t *testing.T) {
	key := CreateCacheKey("GET", "transactions", &Page{Offset: 0, Limit: 25}, map[string]any{"b": true, "a": "x"})
	assert.Equal(t, `GET:transactions:0-25:{"a":"x","b":true}`, key)
	assert.Equal(t, "GET:goals:*:{}", CreateCacheKey("GET", "goals", nil, nil))
}

func TestCreateCacheKeyUnencodableFilters(t *testing.T) {
	ch := make(chan int)
	a := CreateCacheKey("GET", "x", nil, map[string]any{"z": 1, "ch": ch})
	b := CreateCacheKey("GET", "x", nil, map[string]any{"ch": ch, "z": 1})
	assert.Equal(t, a, b)
}
