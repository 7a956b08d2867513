package catalog

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Schemas holds optional JSON Schema payload definitions per event type.
// When a schema is attached, Dispatch validates the payload against it
// before fanning out. Events without a schema accept any payload.
type Schemas struct {
	mu        sync.RWMutex
	schemas   map[Name]json.RawMessage
	validator *Validator
}

// NewSchemas creates an empty schema registry.
func NewSchemas() *Schemas {
	return &Schemas{
		schemas:   make(map[Name]json.RawMessage),
		validator: NewValidator(),
	}
}

// Set attaches a JSON Schema (draft-07 or later) to a catalog event.
// Attaching to an unknown event is rejected.
func (s *Schemas) Set(name Name, schema json.RawMessage) error {
	if !Known(name) {
		return fmt.Errorf("catalog: unknown event %q", name)
	}

	// Compile eagerly so a malformed schema fails at registration time.
	if _, err := s.validator.compile(schema); err != nil {
		return fmt.Errorf("catalog: schema for %q: %w", name, err)
	}

	s.mu.Lock()
	s.schemas[name] = schema
	s.mu.Unlock()
	return nil
}

// ValidatePayload checks data against the schema registered for name.
// Events without a registered schema always pass.
func (s *Schemas) ValidatePayload(name Name, data any) error {
	s.mu.RLock()
	schema, ok := s.schemas[name]
	s.mu.RUnlock()

	if !ok {
		return nil
	}
	return s.validator.Validate(schema, data)
}
