// Package bybit implements the Bybit v2 linear REST client, the request
// signer, and the public/private stream subscriptions.
package bybit

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Auth carries the per-account credentials. Every authenticated call signs
// with them; the signer itself keeps no state.
type Auth struct {
	APIKey string
	Secret string
}

// SerializeParams joins params as key=value&key=value with keys sorted
// ascending. Stable and injective over a fixed key set, which is what makes
// the signature reproducible server-side.
func SerializeParams(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(params[k])
	}
	return b.String()
}

// Sign computes the HMAC-SHA256 digest of message keyed by secret,
// lower-case hex encoded.
func Sign(message, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}

// SignParams stamps the millisecond timestamp, signs the sorted
// serialization of every parameter (timestamp included), and attaches the
// digest as "sign". The map is modified in place.
func SignParams(params map[string]string, secret string, now time.Time) {
	params["timestamp"] = strconv.FormatInt(now.UnixMilli(), 10)
	params["sign"] = Sign(SerializeParams(params), secret)
}

// StreamExpiryWindow is how far in the future the private stream handshake
// signature is valid. Bybit rejects expiries more than a few seconds out.
const StreamExpiryWindow = 5 * time.Second

// StreamSignature returns the expires timestamp and the handshake signature
// ("GET/realtime" + expires) for the private stream.
func StreamSignature(secret string, now time.Time) (expires int64, signature string) {
	expires = now.Add(StreamExpiryWindow).UnixMilli()
	return expires, Sign("GET/realtime"+strconv.FormatInt(expires, 10), secret)
}
