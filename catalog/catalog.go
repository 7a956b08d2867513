// Package catalog defines the closed set of business event types that can be
// dispatched through Courier.
//
// The catalog is fixed at compile time: adding an event means adding a Name
// constant and its definition here. Parse rejects anything else, so an
// unrecognized event name is a construction-time error rather than a silent
// no-op somewhere downstream.
package catalog

import (
	"fmt"
	"sort"
)

// Name is a dot-separated business event type name.
// Convention: "<resource>.<action>", e.g. "deal.created".
type Name string

// The full event catalog.
const (
	UserCreated Name = "user.created"
	UserUpdated Name = "user.updated"
	UserDeleted Name = "user.deleted"

	ClientCreated Name = "client.created"
	ClientUpdated Name = "client.updated"
	ClientDeleted Name = "client.deleted"

	DealCreated      Name = "deal.created"
	DealUpdated      Name = "deal.updated"
	DealDeleted      Name = "deal.deleted"
	DealStageChanged Name = "deal.stage_changed"

	MessageSent Name = "message.sent"

	SequenceStarted   Name = "sequence.started"
	SequenceCompleted Name = "sequence.completed"
	SequenceStopped   Name = "sequence.stopped"

	PaymentSucceeded Name = "payment.succeeded"
	PaymentFailed    Name = "payment.failed"

	SubscriptionCreated  Name = "subscription.created"
	SubscriptionUpdated  Name = "subscription.updated"
	SubscriptionCanceled Name = "subscription.canceled"
)

// Definition describes one event type in the catalog.
type Definition struct {
	// Name is the event type name.
	Name Name `json:"name"`

	// Description is a human-readable explanation of when this event fires.
	Description string `json:"description"`

	// Group is the category the event belongs to, for docs/UI grouping.
	Group string `json:"group"`
}

var definitions = map[Name]Definition{
	UserCreated: {UserCreated, "A user account was created.", "users"},
	UserUpdated: {UserUpdated, "A user account was updated.", "users"},
	UserDeleted: {UserDeleted, "A user account was deleted.", "users"},

	ClientCreated: {ClientCreated, "A client record was created.", "clients"},
	ClientUpdated: {ClientUpdated, "A client record was updated.", "clients"},
	ClientDeleted: {ClientDeleted, "A client record was deleted.", "clients"},

	DealCreated:      {DealCreated, "A deal was created.", "deals"},
	DealUpdated:      {DealUpdated, "A deal was updated.", "deals"},
	DealDeleted:      {DealDeleted, "A deal was deleted.", "deals"},
	DealStageChanged: {DealStageChanged, "A deal moved to a different pipeline stage.", "deals"},

	MessageSent: {MessageSent, "An outbound message was sent.", "messaging"},

	SequenceStarted:   {SequenceStarted, "A contact was enrolled in a sequence.", "sequences"},
	SequenceCompleted: {SequenceCompleted, "A sequence ran to completion for a contact.", "sequences"},
	SequenceStopped:   {SequenceStopped, "A sequence was stopped before completion.", "sequences"},

	PaymentSucceeded: {PaymentSucceeded, "A payment was collected successfully.", "payments"},
	PaymentFailed:    {PaymentFailed, "A payment attempt failed.", "payments"},

	SubscriptionCreated:  {SubscriptionCreated, "A billing subscription was started.", "billing"},
	SubscriptionUpdated:  {SubscriptionUpdated, "A billing subscription changed plan or quantity.", "billing"},
	SubscriptionCanceled: {SubscriptionCanceled, "A billing subscription was canceled.", "billing"},
}

// Parse validates a raw string against the catalog and returns its Name.
func Parse(s string) (Name, error) {
	name := Name(s)
	if _, ok := definitions[name]; !ok {
		return "", fmt.Errorf("catalog: unknown event %q", s)
	}
	return name, nil
}

// Known reports whether name is part of the catalog.
func Known(name Name) bool {
	_, ok := definitions[name]
	return ok
}

// Lookup returns the definition for a catalog name.
func Lookup(name Name) (Definition, bool) {
	def, ok := definitions[name]
	return def, ok
}

// All returns every definition in the catalog, sorted by name.
func All() []Definition {
	result := make([]Definition, 0, len(definitions))
	for _, def := range definitions {
		result = append(result, def)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result
}

// String implements fmt.Stringer.
func (n Name) String() string { return string(n) }
