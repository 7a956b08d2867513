package envelope_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/xraph/courier/catalog"
	"github.com/xraph/courier/envelope"
	"github.com/xraph/courier/signature"
)

func TestSealProducesCanonicalBody(t *testing.T) {
	env, err := envelope.Seal(catalog.DealCreated, map[string]any{"deal_id": "d1"}, map[string]string{"source": "test"})
	if err != nil {
		t.Fatal(err)
	}

	var decoded struct {
		Event     string            `json:"event"`
		Timestamp time.Time         `json:"timestamp"`
		Data      map[string]any    `json:"data"`
		Metadata  map[string]string `json:"metadata"`
	}
	if err := json.Unmarshal(env.Body(), &decoded); err != nil {
		t.Fatal(err)
	}

	if decoded.Event != "deal.created" {
		t.Errorf("event = %q", decoded.Event)
	}
	if decoded.Timestamp.IsZero() {
		t.Error("timestamp missing from body")
	}
	if decoded.Data["deal_id"] != "d1" {
		t.Errorf("data = %v", decoded.Data)
	}
	if decoded.Metadata["source"] != "test" {
		t.Errorf("metadata = %v", decoded.Metadata)
	}
}

func TestSealUnserializablePayload(t *testing.T) {
	_, err := envelope.Seal(catalog.DealCreated, make(chan int), nil)
	if err == nil {
		t.Fatal("expected error for unserializable payload")
	}
}

func TestResumePreservesExactBytes(t *testing.T) {
	env, err := envelope.Seal(catalog.PaymentFailed, map[string]any{"invoice": "inv_1", "amount": 50}, nil)
	if err != nil {
		t.Fatal(err)
	}

	resumed := envelope.Resume(env.Event, env.Timestamp, env.Body())

	if string(resumed.Body()) != string(env.Body()) {
		t.Fatalf("resumed body differs:\n  original: %s\n  resumed:  %s", env.Body(), resumed.Body())
	}
}

func TestResumedSignatureMatchesOriginal(t *testing.T) {
	env, err := envelope.Seal(catalog.UserCreated, map[string]any{"user_id": "u1"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	secret := "whsec_retrysecret"

	original := signature.Sign(env.Body(), secret)

	resumed := envelope.Resume(env.Event, env.Timestamp, env.Body())
	retried := signature.Sign(resumed.Body(), secret)

	if original != retried {
		t.Error("retry signature differs from original delivery signature")
	}
}
