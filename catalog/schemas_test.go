package catalog_test

import (
	"encoding/json"
	"testing"

	"github.com/xraph/courier/catalog"
)

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

func amountSchema() json.RawMessage {
	return mustJSON(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"amount":   map[string]any{"type": "number"},
			"currency": map[string]any{"type": "string"},
		},
		"required": []any{"amount"},
	})
}

func TestSchemasSetUnknownEvent(t *testing.T) {
	s := catalog.NewSchemas()

	err := s.Set(catalog.Name("made.up"), amountSchema())
	if err == nil {
		t.Fatal("expected error attaching schema to unknown event")
	}
}

func TestSchemasSetMalformedSchema(t *testing.T) {
	s := catalog.NewSchemas()

	err := s.Set(catalog.PaymentSucceeded, json.RawMessage(`{"type": 42}`))
	if err == nil {
		t.Fatal("expected error compiling malformed schema")
	}
}

func TestSchemasValidatePayload(t *testing.T) {
	s := catalog.NewSchemas()

	if err := s.Set(catalog.PaymentSucceeded, amountSchema()); err != nil {
		t.Fatal(err)
	}

	valid := map[string]any{"amount": 99.00, "currency": "USD"}
	if err := s.ValidatePayload(catalog.PaymentSucceeded, valid); err != nil {
		t.Fatal("valid payload rejected:", err)
	}

	invalid := map[string]any{"currency": "USD"}
	if err := s.ValidatePayload(catalog.PaymentSucceeded, invalid); err == nil {
		t.Fatal("payload missing required field accepted")
	}
}

func TestSchemasNoSchemaAlwaysPasses(t *testing.T) {
	s := catalog.NewSchemas()

	if err := s.ValidatePayload(catalog.DealCreated, map[string]any{"anything": true}); err != nil {
		t.Fatal("event without schema should accept any payload, got:", err)
	}
}

func TestValidatorNilSchema(t *testing.T) {
	v := catalog.NewValidator()

	if err := v.Validate(nil, map[string]any{"key": "value"}); err != nil {
		t.Fatal("nil schema should skip validation, got:", err)
	}
}

func TestValidatorWrongType(t *testing.T) {
	v := catalog.NewValidator()

	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"count": map[string]any{"type": "integer"},
		},
	}

	if err := v.Validate(schema, map[string]any{"count": "three"}); err == nil {
		t.Fatal("expected validation error for wrong type")
	}
}
