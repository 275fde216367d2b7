// Package transaction defines the canonical transaction record and the
// normalization of heterogeneous server history entries into it.
package transaction

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// DefaultType is assigned when a source record carries no usable type.
const DefaultType = "info"

// Transaction is the canonical shape every history entry is coerced into,
// regardless of how the server names its fields.
type Transaction struct {
	Type      string  `json:"type"`
	Amount    float64 `json:"amount"`
	Timestamp string  `json:"timestamp"`
	ToUser    string  `json:"to_user,omitempty"`
}

// Normalize maps an arbitrary server record into a canonical Transaction.
// Field resolution, first present wins: type from "type" then "action";
// amount from "amount" then "value"; timestamp from "timestamp", "time" or
// "date"; to_user from "to_user", "to" or "recipient". Missing or
// uncoercible fields degrade to defaults; Normalize never fails.
func Normalize(raw map[string]any) Transaction {
	tx := Transaction{Type: DefaultType}
	if raw == nil {
		return tx
	}

	if s, ok := firstString(raw, "type", "action"); ok {
		tx.Type = s
	}
	if n, ok := firstNumber(raw, "amount", "value"); ok {
		tx.Amount = n
	}
	if s, ok := firstString(raw, "timestamp", "time", "date"); ok {
		tx.Timestamp = s
	}
	if s, ok := firstString(raw, "to_user", "to", "recipient"); ok {
		tx.ToUser = s
	}
	return tx
}

// NormalizeAll maps a raw history into canonical form. A nil or non-list
// history yields an empty slice, never nil.
func NormalizeAll(raw []map[string]any) []Transaction {
	out := make([]Transaction, 0, len(raw))
	for _, r := range raw {
		out = append(out, Normalize(r))
	}
	return out
}

func firstString(raw map[string]any, keys ...string) (string, bool) {
	for _, key := range keys {
		v, ok := raw[key]
		if !ok || v == nil {
			continue
		}
		switch s := v.(type) {
		case string:
			if s != "" {
				return s, true
			}
		default:
			return fmt.Sprint(v), true
		}
	}
	return "", false
}

func firstNumber(raw map[string]any, keys ...string) (float64, bool) {
	for _, key := range keys {
		v, ok := raw[key]
		if !ok || v == nil {
			continue
		}
		if n, ok := coerceNumber(v); ok {
			return n, true
		}
		// Present but uncoercible: degrade to the default rather than
		// trying later aliases.
		return 0, false
	}
	return 0, false
}

func coerceNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
