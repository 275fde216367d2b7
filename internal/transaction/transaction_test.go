package transaction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDefaults(t *testing.T) {
	tx := Normalize(map[string]any{})

	assert.Equal(t, "info", tx.Type)
	assert.Equal(t, 0.0, tx.Amount)
	assert.Equal(t, "", tx.Timestamp)
	assert.Equal(t, "", tx.ToUser)
}

func TestNormalizeNil(t *testing.T) {
	tx := Normalize(nil)
	assert.Equal(t, "info", tx.Type)
	assert.Equal(t, 0.0, tx.Amount)
}

func TestNormalizeFieldAliases(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
		want Transaction
	}{
		{
			name: "canonical names win",
			raw: map[string]any{
				"type": "deposit", "action": "ignored",
				"amount": 200.0, "value": 999.0,
				"timestamp": "2026-01-02 10:00:00", "time": "x", "date": "y",
				"to_user": "bob", "to": "z", "recipient": "w",
			},
			want: Transaction{Type: "deposit", Amount: 200, Timestamp: "2026-01-02 10:00:00", ToUser: "bob"},
		},
		{
			name: "fallback names",
			raw: map[string]any{
				"action": "Withdraw",
				"value":  50.5,
				"time":   "yesterday",
				"to":     "carol",
			},
			want: Transaction{Type: "Withdraw", Amount: 50.5, Timestamp: "yesterday", ToUser: "carol"},
		},
		{
			name: "last aliases",
			raw: map[string]any{
				"date":      "2026-02-03",
				"recipient": "dave",
			},
			want: Transaction{Type: "info", Amount: 0, Timestamp: "2026-02-03", ToUser: "dave"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.raw))
		})
	}
}

func TestNormalizeAmountCoercion(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
		want float64
	}{
		{"float", map[string]any{"amount": 10.5}, 10.5},
		{"int", map[string]any{"amount": 7}, 7},
		{"numeric string", map[string]any{"amount": "42.25"}, 42.25},
		{"negative kept", map[string]any{"amount": -200.0}, -200},
		{"garbage string degrades", map[string]any{"amount": "not a number"}, 0},
		{"object degrades", map[string]any{"amount": map[string]any{}}, 0},
		{"nil falls through to value", map[string]any{"amount": nil, "value": 3.0}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.raw).Amount)
		})
	}
}

// Normalizing an already-canonical record must be a no-op.
func TestNormalizeIdempotent(t *testing.T) {
	raws := []map[string]any{
		{},
		{"type": "deposit", "amount": 200.0, "timestamp": "ts", "to_user": "bob"},
		{"action": "Withdraw", "value": "12", "date": "d"},
		{"amount": "garbage"},
	}

	for _, raw := range raws {
		once := Normalize(raw)
		again := Normalize(map[string]any{
			"type":      once.Type,
			"amount":    once.Amount,
			"timestamp": once.Timestamp,
			"to_user":   once.ToUser,
		})
		// Empty canonical strings resolve to the same defaults.
		assert.Equal(t, once.Type, again.Type)
		assert.Equal(t, once.Amount, again.Amount)
		assert.Equal(t, once.Timestamp, again.Timestamp)
		assert.Equal(t, once.ToUser, again.ToUser)
	}
}

func TestNormalizeAll(t *testing.T) {
	out := NormalizeAll(nil)
	require.NotNil(t, out)
	assert.Empty(t, out)

	out = NormalizeAll([]map[string]any{
		{"type": "Deposit", "amount": 200.0},
		nil,
	})
	require.Len(t, out, 2)
	assert.Equal(t, "Deposit", out[0].Type)
	assert.Equal(t, "info", out[1].Type)
}

// Unknown extra fields (server-assigned IDs and the like) are ignored.
func TestNormalizeIgnoresUnknownFields(t *testing.T) {
	tx := Normalize(map[string]any{
		"id":     "9b2d6f3e",
		"type":   "Deposit",
		"amount": 1.0,
		"extra":  []any{1, 2, 3},
	})
	assert.Equal(t, Transaction{Type: "Deposit", Amount: 1}, tx)
}
