package webhooks

import (
	"testing"
)

func TestSign(t *testing.T) {
	secret := "secret"
	payload := []byte("payload")

	// Calculated using: echo -n "payload" | openssl dgst -sha256 -hmac "secret"
	expected := "b82fcb791acec57859b989b430a826488ce2e479fdf92326bd0a2e8375a42ba4"

	got := Sign(secret, payload)

	if got != expected {
		t.Errorf("Sign() = %v, want %v", got, expected)
	}
	if h := SignatureHeader(secret, payload); h != "sha256="+expected {
		t.Errorf("SignatureHeader() = %v", h)
	}
}

func TestVerify(t *testing.T) {
	body := []byte(`{"id":"evt_1"}`)
	sig := SignatureHeader("whsec_abc", body)

	tests := []struct {
		name      string
		secret    string
		body      []byte
		signature string
		want      bool
	}{
		{"prefixed", "whsec_abc", body, sig, true},
		{"bare hex", "whsec_abc", body, Sign("whsec_abc", body), true},
		{"wrong secret", "whsec_other", body, sig, false},
		{"tampered body", "whsec_abc", []byte(`{"id":"evt_2"}`), sig, false},
		{"empty signature", "whsec_abc", body, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Verify(tt.secret, tt.body, tt.signature); got != tt.want {
				t.Errorf("Verify() = %v, want %v", got, tt.want)
			}
		})
	}
}
