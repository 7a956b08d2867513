package signature_test

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/xraph/courier/signature"
)

func TestSignKnownVector(t *testing.T) {
	payload := []byte(`{"event":"deal.created"}`)
	secret := "whsec_testsecret123"

	got := signature.Sign(payload, secret)

	// Compute expected HMAC-SHA256 independently.
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := "sha256=" + hex.EncodeToString(mac.Sum(nil))

	if got != expected {
		t.Errorf("Sign() = %q, want %q", got, expected)
	}
}

func TestSignVerifyRoundTrip(t *testing.T) {
	payload := []byte(`{"deal_id":"deal_01h2x","amount":9900}`)
	secret := "whsec_roundtripsecret"

	sig := signature.Sign(payload, secret)
	if !signature.Verify(payload, secret, sig) {
		t.Error("Verify() returned false for valid signature")
	}
}

func TestVerifyTamperedPayload(t *testing.T) {
	payload := []byte(`{"original":true}`)
	secret := "whsec_tampersecret"

	sig := signature.Sign(payload, secret)

	tampered := []byte(`{"original":false}`)
	if signature.Verify(tampered, secret, sig) {
		t.Error("Verify() returned true for tampered payload")
	}
}

func TestVerifyWrongSecret(t *testing.T) {
	payload := []byte(`{"data":"value"}`)

	sig := signature.Sign(payload, "whsec_correct")

	if signature.Verify(payload, "whsec_wrong", sig) {
		t.Error("Verify() returned true for wrong secret")
	}
}

func TestSignerMethodsMatchPackageFunctions(t *testing.T) {
	signer := signature.NewSigner()
	payload := []byte(`{"x":1}`)
	secret := "whsec_methods"

	if signer.Sign(payload, secret) != signature.Sign(payload, secret) {
		t.Error("Signer.Sign disagrees with package Sign")
	}
	if !signer.Verify(payload, secret, signature.Sign(payload, secret)) {
		t.Error("Signer.Verify rejected a valid signature")
	}
}
