package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const signaturePrefix = "sha256="

// Sign returns the hex HMAC-SHA256 of payload keyed by secret.
func Sign(secret string, payload []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

// SignatureHeader is the value sent in X-WorkSphere-Signature.
func SignatureHeader(secret string, payload []byte) string {
	return signaturePrefix + Sign(secret, payload)
}

// Verify reports whether signature matches body for secret. The sha256=
// prefix is optional so receivers can pass the raw header value.
func Verify(secret string, body []byte, signature string) bool {
	signature = strings.TrimPrefix(signature, signaturePrefix)
	expected := Sign(secret, body)
	return hmac.Equal([]byte(expected), []byte(signature))
}
