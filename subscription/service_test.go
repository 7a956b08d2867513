package subscription_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/xraph/courier"
	"github.com/xraph/courier/catalog"
	"github.com/xraph/courier/delivery"
	"github.com/xraph/courier/id"
	"github.com/xraph/courier/internal/entity"
	"github.com/xraph/courier/retry"
	"github.com/xraph/courier/stats"
	"github.com/xraph/courier/store/memory"
	"github.com/xraph/courier/subscription"
)

// recordingAuditor captures audit actions in order.
type recordingAuditor struct {
	actions []string
}

func (a *recordingAuditor) Record(_ context.Context, action string, _ string, _ map[string]string) {
	a.actions = append(a.actions, action)
}

func setup(t *testing.T) (*subscription.Service, *memory.Store, *recordingAuditor) {
	t.Helper()
	store := memory.New()
	auditor := &recordingAuditor{}
	svc := subscription.NewService(store, store, auditor, stats.NewAggregator(store), nil)
	return svc, store, auditor
}

func intPtr(v int) *int { return &v }

func validInput() subscription.Input {
	return subscription.Input{
		TenantID: "t1",
		Name:     "CRM Sync",
		URL:      "https://example.com/hooks/crm",
		Events:   []catalog.Name{catalog.DealCreated, catalog.DealStageChanged},
	}
}

func TestCreateAppliesDefaults(t *testing.T) {
	svc, _, auditor := setup(t)

	sub, err := svc.Create(context.Background(), validInput())
	if err != nil {
		t.Fatal(err)
	}

	if !sub.Active {
		t.Error("new subscription should default to active")
	}
	if sub.RetryPolicy != subscription.DefaultRetryPolicy() {
		t.Errorf("retry policy = %+v", sub.RetryPolicy)
	}
	if sub.TimeoutSeconds != subscription.DefaultTimeoutSeconds {
		t.Errorf("timeout = %d", sub.TimeoutSeconds)
	}
	if !strings.HasPrefix(sub.Secret, "whsec_") {
		t.Errorf("generated secret = %q, want whsec_ prefix", sub.Secret)
	}
	if len(sub.Secret) != 70 {
		t.Errorf("generated secret length = %d, want 70", len(sub.Secret))
	}

	if len(auditor.actions) != 1 || auditor.actions[0] != "webhook.created" {
		t.Errorf("audit actions = %v", auditor.actions)
	}
}

func TestCreateHonorsProvidedSecret(t *testing.T) {
	svc, _, _ := setup(t)

	in := validInput()
	in.Secret = "whsec_customsecret"

	sub, err := svc.Create(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}
	if sub.Secret != "whsec_customsecret" {
		t.Errorf("secret = %q", sub.Secret)
	}
}

func TestCreatePartialRetryPolicy(t *testing.T) {
	svc, _, _ := setup(t)

	in := validInput()
	in.RetryPolicy = &subscription.RetryPolicyPatch{MaxRetries: intPtr(5)}

	sub, err := svc.Create(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}

	// Omitted fields stay at their defaults instead of zeroing out.
	want := subscription.DefaultRetryPolicy()
	want.MaxRetries = 5
	if sub.RetryPolicy != want {
		t.Errorf("retry policy = %+v, want %+v", sub.RetryPolicy, want)
	}
}

func TestUpdatePartialRetryPolicy(t *testing.T) {
	svc, _, _ := setup(t)

	sub, err := svc.Create(context.Background(), validInput())
	if err != nil {
		t.Fatal(err)
	}

	delay := 120
	updated, err := svc.Update(context.Background(), sub.ID, subscription.Update{
		RetryPolicy: &subscription.RetryPolicyPatch{BaseDelaySeconds: &delay},
	})
	if err != nil {
		t.Fatal(err)
	}

	want := sub.RetryPolicy
	want.BaseDelaySeconds = 120
	if updated.RetryPolicy != want {
		t.Errorf("retry policy = %+v, want %+v", updated.RetryPolicy, want)
	}
}

func TestCreateValidation(t *testing.T) {
	svc, _, _ := setup(t)

	cases := []struct {
		name  string
		mod   func(*subscription.Input)
		field string
	}{
		{"missing name", func(in *subscription.Input) { in.Name = "" }, "name"},
		{"missing url", func(in *subscription.Input) { in.URL = "" }, "url"},
		{"bad scheme", func(in *subscription.Input) { in.URL = "ftp://example.com" }, "url"},
		{"no events", func(in *subscription.Input) { in.Events = nil }, "events"},
		{"unknown event", func(in *subscription.Input) { in.Events = []catalog.Name{"made.up"} }, "events"},
		{"max retries over ceiling", func(in *subscription.Input) {
			in.RetryPolicy = &subscription.RetryPolicyPatch{MaxRetries: intPtr(11)}
		}, "retry_config.max_retries"},
		{"timeout over ceiling", func(in *subscription.Input) {
			timeout := 120
			in.TimeoutSeconds = &timeout
		}, "timeout"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validInput()
			tc.mod(&in)

			_, err := svc.Create(context.Background(), in)
			var verrs subscription.ValidationErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("expected validation errors, got %v", err)
			}

			found := false
			for _, fe := range verrs {
				if fe.Field == tc.field {
					found = true
				}
			}
			if !found {
				t.Errorf("no error for field %q in %v", tc.field, verrs)
			}
		})
	}
}

func TestUpdatePartialMerge(t *testing.T) {
	svc, _, _ := setup(t)

	sub, err := svc.Create(context.Background(), validInput())
	if err != nil {
		t.Fatal(err)
	}

	newName := "CRM Sync v2"
	updated, err := svc.Update(context.Background(), sub.ID, subscription.Update{Name: &newName})
	if err != nil {
		t.Fatal(err)
	}

	if updated.Name != "CRM Sync v2" {
		t.Errorf("name = %q", updated.Name)
	}
	if updated.URL != sub.URL {
		t.Error("URL changed on a name-only update")
	}
	if len(updated.Events) != 2 {
		t.Error("events changed on a name-only update")
	}
}

func TestUpdateRejectsInvalidMerge(t *testing.T) {
	svc, _, _ := setup(t)

	sub, err := svc.Create(context.Background(), validInput())
	if err != nil {
		t.Fatal(err)
	}

	badURL := "not-a-url"
	if _, err := svc.Update(context.Background(), sub.ID, subscription.Update{URL: &badURL}); err == nil {
		t.Fatal("expected validation error for invalid URL")
	}
}

func TestRotateSecret(t *testing.T) {
	svc, store, auditor := setup(t)

	sub, err := svc.Create(context.Background(), validInput())
	if err != nil {
		t.Fatal(err)
	}
	old := sub.Secret

	rotated, err := svc.RotateSecret(context.Background(), sub.ID)
	if err != nil {
		t.Fatal(err)
	}

	if rotated == old {
		t.Error("rotated secret equals the old one")
	}
	if !strings.HasPrefix(rotated, "whsec_") || len(rotated) != 70 {
		t.Errorf("rotated secret = %q", rotated)
	}

	stored, err := store.GetSubscription(context.Background(), sub.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Secret != rotated {
		t.Error("stored secret differs from the returned one")
	}

	last := auditor.actions[len(auditor.actions)-1]
	if last != "webhook.secret_rotated" {
		t.Errorf("last audit action = %q", last)
	}
}

func TestDeleteCascades(t *testing.T) {
	svc, store, _ := setup(t)
	ctx := context.Background()

	sub, err := svc.Create(ctx, validInput())
	if err != nil {
		t.Fatal(err)
	}

	// Seed dependent rows.
	att := &delivery.Attempt{
		Entity:         entity.New(),
		ID:             id.NewAttemptID(),
		SubscriptionID: sub.ID,
		Event:          catalog.DealCreated,
		Outcome:        delivery.OutcomeFailed,
		AttemptNumber:  1,
	}
	if err := store.CreateAttempt(ctx, att); err != nil {
		t.Fatal(err)
	}
	entry := &retry.Entry{
		Entity:         entity.New(),
		ID:             id.NewRetryID(),
		SubscriptionID: sub.ID,
		AttemptID:      att.ID,
		Event:          catalog.DealCreated,
		AttemptNumber:  2,
		ScheduledAt:    time.Now().UTC().Add(time.Minute),
	}
	if err := store.EnqueueRetry(ctx, entry); err != nil {
		t.Fatal(err)
	}

	if err := svc.Delete(ctx, sub.ID); err != nil {
		t.Fatal(err)
	}

	if _, err := store.GetSubscription(ctx, sub.ID); !errors.Is(err, courier.ErrSubscriptionNotFound) {
		t.Errorf("get after delete = %v", err)
	}
	atts, err := store.ListAttempts(ctx, sub.ID, delivery.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(atts) != 0 {
		t.Errorf("attempts after delete = %d", len(atts))
	}
	retries, err := store.ListRetries(ctx, sub.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(retries) != 0 {
		t.Errorf("retries after delete = %d", len(retries))
	}
}

func TestSetActive(t *testing.T) {
	svc, store, auditor := setup(t)
	ctx := context.Background()

	sub, err := svc.Create(ctx, validInput())
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.SetActive(ctx, sub.ID, false); err != nil {
		t.Fatal(err)
	}

	stored, _ := store.GetSubscription(ctx, sub.ID)
	if stored.Active {
		t.Error("subscription still active after deactivation")
	}
	last := auditor.actions[len(auditor.actions)-1]
	if last != "webhook.deactivated" {
		t.Errorf("last audit action = %q", last)
	}
}

func TestListJoinsStatsAndSummary(t *testing.T) {
	svc, store, _ := setup(t)
	ctx := context.Background()

	active, err := svc.Create(ctx, validInput())
	if err != nil {
		t.Fatal(err)
	}

	in := validInput()
	in.Name = "Paused Hook"
	inactive := false
	in.Active = &inactive
	if _, err := svc.Create(ctx, in); err != nil {
		t.Fatal(err)
	}

	// Two attempts for the active subscription, one success.
	for _, outcome := range []delivery.Outcome{delivery.OutcomeSuccess, delivery.OutcomeFailed} {
		att := &delivery.Attempt{
			Entity:         entity.New(),
			ID:             id.NewAttemptID(),
			SubscriptionID: active.ID,
			Event:          catalog.DealCreated,
			Outcome:        outcome,
			AttemptNumber:  1,
		}
		if err := store.CreateAttempt(ctx, att); err != nil {
			t.Fatal(err)
		}
	}

	result, err := svc.List(ctx, "t1", subscription.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}

	if result.Total != 2 {
		t.Errorf("total = %d", result.Total)
	}
	if result.Summary.Total != 2 || result.Summary.Active != 1 || result.Summary.Inactive != 1 {
		t.Errorf("summary = %+v", result.Summary)
	}

	for _, rec := range result.Records {
		if rec.Stats == nil {
			t.Fatalf("record %q missing stats", rec.Name)
		}
		if rec.ID == active.ID {
			if rec.Stats.Total != 2 {
				t.Errorf("stats total = %d", rec.Stats.Total)
			}
			if rec.Stats.SuccessRate != 0.5 {
				t.Errorf("success rate = %f", rec.Stats.SuccessRate)
			}
		}
	}
}
