package catalog_test

import (
	"sort"
	"testing"

	"github.com/xraph/courier/catalog"
)

func TestParseKnownEvent(t *testing.T) {
	name, err := catalog.Parse("deal.created")
	if err != nil {
		t.Fatal(err)
	}
	if name != catalog.DealCreated {
		t.Errorf("Parse() = %q, want %q", name, catalog.DealCreated)
	}
}

func TestParseUnknownEvent(t *testing.T) {
	for _, raw := range []string{"", "nope", "deal.exploded", "DEAL.CREATED"} {
		if _, err := catalog.Parse(raw); err == nil {
			t.Errorf("Parse(%q) accepted an unknown event", raw)
		}
	}
}

func TestKnown(t *testing.T) {
	if !catalog.Known(catalog.PaymentFailed) {
		t.Error("Known(payment.failed) = false")
	}
	if catalog.Known(catalog.Name("made.up")) {
		t.Error("Known(made.up) = true")
	}
}

func TestGroups(t *testing.T) {
	cases := map[catalog.Name]string{
		catalog.PaymentSucceeded:     "payments",
		catalog.PaymentFailed:        "payments",
		catalog.SubscriptionCreated:  "billing",
		catalog.SubscriptionCanceled: "billing",
	}
	for name, group := range cases {
		def, ok := catalog.Lookup(name)
		if !ok {
			t.Fatalf("Lookup(%q) not found", name)
		}
		if def.Group != group {
			t.Errorf("group of %q = %q, want %q", name, def.Group, group)
		}
	}
}

func TestLookup(t *testing.T) {
	def, ok := catalog.Lookup(catalog.UserCreated)
	if !ok {
		t.Fatal("Lookup(user.created) not found")
	}
	if def.Name != catalog.UserCreated {
		t.Errorf("definition name = %q", def.Name)
	}
	if def.Group != "users" {
		t.Errorf("definition group = %q, want users", def.Group)
	}
	if def.Description == "" {
		t.Error("definition description is empty")
	}

	if _, ok := catalog.Lookup(catalog.Name("made.up")); ok {
		t.Error("Lookup(made.up) found a definition")
	}
}

func TestAllSortedAndComplete(t *testing.T) {
	all := catalog.All()

	if len(all) != 19 {
		t.Fatalf("expected 19 catalog entries, got %d", len(all))
	}

	sorted := sort.SliceIsSorted(all, func(i, j int) bool {
		return all[i].Name < all[j].Name
	})
	if !sorted {
		t.Error("All() is not sorted by name")
	}

	for _, def := range all {
		if !catalog.Known(def.Name) {
			t.Errorf("All() returned unknown event %q", def.Name)
		}
		if def.Group == "" {
			t.Errorf("event %q has no group", def.Name)
		}
	}
}
