// Package platform talks to the chat platform: webhook signature
// verification and the outbound reply/push messaging API.
package platform

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
)

// Sign computes the webhook signature for a raw body: base64-encoded
// HMAC-SHA256 over the exact bytes received. Re-serializing a parsed body
// would break verification, so callers must pass the raw request body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)

	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks the signature header against the raw body using
// a constant-time comparison.
func VerifySignature(secret string, body []byte, signature string) bool {
	if signature == "" {
		return false
	}

	return hmac.Equal([]byte(Sign(secret, body)), []byte(signature))
}
