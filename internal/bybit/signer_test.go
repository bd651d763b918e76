package bybit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSerializeParams(t *testing.T) {
	t.Run("keys sorted ascending", func(t *testing.T) {
		s := SerializeParams(map[string]string{"b": "2", "a": "1"})
		assert.Equal(t, "a=1&b=2", s)
	})
	t.Run("empty map", func(t *testing.T) {
		assert.Equal(t, "", SerializeParams(nil))
	})
	t.Run("stable across calls", func(t *testing.T) {
		p := map[string]string{"symbol": "BTCUSDT", "api_key": "k", "limit": "50"}
		assert.Equal(t, SerializeParams(p), SerializeParams(p))
	})
}

func TestSign(t *testing.T) {
	// Digest checked against an independent HMAC-SHA256 implementation.
	const want = "37601846638b0a57d132222950740684dd61e7f9c05bd4a08f671c7e220cb6ee"
	got := Sign("a=1&b=2&timestamp=1640000000000", "secret")
	assert.Equal(t, want, got)
	assert.Equal(t, got, Sign("a=1&b=2&timestamp=1640000000000", "secret"))
}

func TestSignParams(t *testing.T) {
	now := time.UnixMilli(1640000000000)
	params := map[string]string{"b": "2", "a": "1"}
	SignParams(params, "secret", now)

	assert.Equal(t, "1640000000000", params["timestamp"])
	assert.Equal(t,
		"37601846638b0a57d132222950740684dd61e7f9c05bd4a08f671c7e220cb6ee",
		params["sign"])
}

func TestStreamSignature(t *testing.T) {
	now := time.UnixMilli(1640000000000)
	expires, sig := StreamSignature("secret", now)

	assert.Equal(t, int64(1640000005000), expires)
	assert.Equal(t,
		"6b623bbf29ee71f9f3a440c25559e2fb99d601f16f58e24c931f80e936cb0c1b",
		sig)
}
