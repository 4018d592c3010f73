package lemonsqueezy

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// SignatureHeader carries the hex HMAC-SHA256 of the webhook body.
const SignatureHeader = "X-Signature"

// VerifySignature reports whether signature is the hex encoded HMAC-SHA256 of
// raw under the webhook secret. It never panics; a missing, malformed or
// mismatched signature yields false.
func (c *Client) VerifySignature(raw []byte, signature string) bool {
	return VerifySignature(c.secret, raw, signature)
}

func VerifySignature(secret, raw []byte, signature string) bool {
	if signature == "" || len(secret) == 0 {
		return false
	}
	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write(raw)
	want := mac.Sum(nil)

	if len(got) != len(want) {
		return false
	}
	return hmac.Equal(got, want)
}

// Sign returns the hex signature Lemon Squeezy would send for raw.
func Sign(secret, raw []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(raw)
	return hex.EncodeToString(mac.Sum(nil))
}
