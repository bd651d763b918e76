package account

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ladderbot/internal/bybit"
)

func rawDeltas(elems ...string) []json.RawMessage {
	out := make([]json.RawMessage, len(elems))
	for i, e := range elems {
		out[i] = json.RawMessage(e)
	}
	return out
}

func TestMergeOrderDeltas(t *testing.T) {
	prev := []bybit.ActiveOrder{
		{OrderID: "a", OrderStatus: "New", Symbol: "BTCUSDT", Price: 100, Qty: 1},
		{OrderID: "b", OrderStatus: "New", Symbol: "BTCUSDT", Price: 101, Qty: 2},
	}

	t.Run("patches matched and appends unmatched", func(t *testing.T) {
		merged := MergeOrderDeltas(prev, rawDeltas(
			`{"order_id":"b","order_status":"PartiallyFilled","cum_exec_qty":0.5}`,
			`{"order_id":"c","order_status":"New","qty":3}`,
		))

		require.Len(t, merged, 3)
		assert.Equal(t, "New", merged[0].OrderStatus)
		assert.Equal(t, "PartiallyFilled", merged[1].OrderStatus)
		assert.Equal(t, 0.5, merged[1].CumExecQty)
		assert.Equal(t, "c", merged[2].OrderID)
	})

	t.Run("omitted fields keep their previous value", func(t *testing.T) {
		merged := MergeOrderDeltas(prev, rawDeltas(`{"order_id":"a","order_status":"PartiallyFilled","cum_exec_qty":0.1}`))

		require.Len(t, merged, 2)
		assert.Equal(t, "PartiallyFilled", merged[0].OrderStatus)
		assert.Equal(t, 0.1, merged[0].CumExecQty)
		assert.Equal(t, 100.0, merged[0].Price)
		assert.Equal(t, 1.0, merged[0].Qty)
		assert.Equal(t, "BTCUSDT", merged[0].Symbol)
	})

	t.Run("idempotent", func(t *testing.T) {
		deltas := rawDeltas(`{"order_id":"b","order_status":"Filled"}`)
		once := MergeOrderDeltas(prev, deltas)
		twice := MergeOrderDeltas(once, deltas)
		assert.Equal(t, once, twice)
	})

	t.Run("absent entries survive", func(t *testing.T) {
		merged := MergeOrderDeltas(prev, rawDeltas(`{"order_id":"c"}`))
		assert.Equal(t, "a", merged[0].OrderID)
		assert.Equal(t, "b", merged[1].OrderID)
	})

	t.Run("empty delta is a no-op", func(t *testing.T) {
		assert.Equal(t, prev, MergeOrderDeltas(prev, nil))
	})

	t.Run("malformed elements are skipped", func(t *testing.T) {
		merged := MergeOrderDeltas(prev, rawDeltas(`{`, `{"order_status":"Filled"}`))
		assert.Equal(t, prev, merged)
	})

	t.Run("does not mutate inputs", func(t *testing.T) {
		MergeOrderDeltas(prev, rawDeltas(`{"order_id":"a","order_status":"Filled"}`))
		assert.Equal(t, "New", prev[0].OrderStatus)
	})
}

func TestMergeBalance(t *testing.T) {
	cur := bybit.Balance{WalletBalance: 100, AvailableBalance: 80}

	t.Run("shallow merge preserves untouched fields", func(t *testing.T) {
		merged, err := MergeBalance(cur, json.RawMessage(`{"available_balance": 50}`))
		require.NoError(t, err)
		assert.Equal(t, 100.0, merged.WalletBalance)
		assert.Equal(t, 50.0, merged.AvailableBalance)
	})

	t.Run("malformed payload leaves state intact", func(t *testing.T) {
		merged, err := MergeBalance(cur, json.RawMessage(`{`))
		assert.Error(t, err)
		assert.Equal(t, cur, merged)
	})
}
