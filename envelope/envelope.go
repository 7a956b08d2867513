// Package envelope builds the canonical payload wrapper delivered to every
// matching subscriber for one dispatch.
//
// An envelope is sealed exactly once: the serialized body bytes are computed
// at construction and reused for every subscriber and every retry, so the
// HMAC signature is always computed over the exact bytes on the wire.
package envelope

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/xraph/courier/catalog"
)

// Envelope is the canonical wrapper for one dispatched event.
// It is transient: only its sealed bytes are ever persisted, as payload
// snapshots on delivery attempts and retry queue entries.
type Envelope struct {
	Event     catalog.Name      `json:"event"`
	Timestamp time.Time         `json:"timestamp"`
	Data      any               `json:"data"`
	Metadata  map[string]string `json:"metadata,omitempty"`

	body []byte
}

// Seal builds an envelope for the given event and payload and serializes it.
// The timestamp is captured once, at dispatch time.
func Seal(event catalog.Name, data any, metadata map[string]string) (*Envelope, error) {
	env := &Envelope{
		Event:     event,
		Timestamp: time.Now().UTC(),
		Data:      data,
		Metadata:  metadata,
	}

	body, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("envelope: seal %s: %w", event, err)
	}
	env.body = body

	return env, nil
}

// Resume reconstructs an envelope from a persisted snapshot without
// re-serializing, preserving the original bytes exactly. Used by the retry
// worker so retried deliveries carry an identical body and signature base.
func Resume(event catalog.Name, timestamp time.Time, body []byte) *Envelope {
	return &Envelope{
		Event:     event,
		Timestamp: timestamp,
		body:      body,
	}
}

// Body returns the sealed envelope bytes. These are the exact bytes sent as
// the HTTP request body and the exact bytes signed.
func (e *Envelope) Body() []byte {
	return e.body
}
