package account

import (
	"encoding/json"

	"ladderbot/internal/bybit"
)

// MergeOrderDeltas applies raw order payloads onto prev by order_id: a
// matched entry is patched by unmarshalling the payload into a copy of the
// stored value, so fields the payload omits keep their previous value.
// Unmatched payloads are appended, entries absent from deltas are kept, and
// malformed elements are skipped. A partial push update never removes
// anything. Idempotent: applying the same deltas twice changes nothing more.
func MergeOrderDeltas(prev []bybit.ActiveOrder, deltas []json.RawMessage) []bybit.ActiveOrder {
	if len(deltas) == 0 {
		return prev
	}
	merged := append([]bybit.ActiveOrder(nil), prev...)
	for _, raw := range deltas {
		var id struct {
			OrderID string `json:"order_id"`
		}
		if err := json.Unmarshal(raw, &id); err != nil || id.OrderID == "" {
			continue
		}
		found := false
		for i := range merged {
			if merged[i].OrderID != id.OrderID {
				continue
			}
			patched := merged[i]
			if err := json.Unmarshal(raw, &patched); err == nil {
				merged[i] = patched
			}
			found = true
		}
		if !found {
			var fresh bybit.ActiveOrder
			if err := json.Unmarshal(raw, &fresh); err == nil {
				merged = append(merged, fresh)
			}
		}
	}
	return merged
}

// MergeBalance applies a partial wallet payload onto cur. Unmarshalling into
// a copy of the current value leaves every field the payload omits at its
// previous value — the shallow merge the wallet push topic requires.
func MergeBalance(cur bybit.Balance, raw json.RawMessage) (bybit.Balance, error) {
	merged := cur
	if err := json.Unmarshal(raw, &merged); err != nil {
		return cur, err
	}
	return merged, nil
}
