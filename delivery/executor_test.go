package delivery_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/xraph/courier/catalog"
	"github.com/xraph/courier/delivery"
	"github.com/xraph/courier/envelope"
	"github.com/xraph/courier/id"
	"github.com/xraph/courier/internal/entity"
	"github.com/xraph/courier/signature"
	"github.com/xraph/courier/stats"
	"github.com/xraph/courier/subscription"
)

// attemptStore captures persisted attempts.
type attemptStore struct {
	mu       sync.Mutex
	attempts []*delivery.Attempt
}

func (s *attemptStore) CreateAttempt(_ context.Context, att *delivery.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts = append(s.attempts, att)
	return nil
}

func (s *attemptStore) GetAttempt(_ context.Context, _ id.ID) (*delivery.Attempt, error) {
	return nil, nil
}

func (s *attemptStore) ListAttempts(_ context.Context, _ id.ID, _ delivery.ListOpts) ([]*delivery.Attempt, error) {
	return nil, nil
}

func (s *attemptStore) DeleteAttemptsBySubscription(_ context.Context, _ id.ID) error {
	return nil
}

func (s *attemptStore) AttemptStats(_ context.Context, _ id.ID, _ time.Time) (stats.Row, error) {
	return stats.Row{}, nil
}

// captureScheduler records retry handoffs.
type captureScheduler struct {
	mu     sync.Mutex
	failed []*delivery.Attempt
}

func (s *captureScheduler) ScheduleRetry(_ context.Context, _ *subscription.Subscription, _ *envelope.Envelope, failed *delivery.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed = append(s.failed, failed)
	return nil
}

func (s *captureScheduler) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.failed)
}

func newSubscription(url string) *subscription.Subscription {
	return &subscription.Subscription{
		Entity:   entity.New(),
		ID:       id.NewSubscriptionID(),
		TenantID: "t1",
		Name:     "Test Hook",
		URL:      url,
		Events:   []catalog.Name{catalog.DealCreated},
		Secret:   "whsec_executortest",
		Active:   true,
		RetryPolicy: subscription.RetryPolicy{
			MaxRetries:        3,
			BaseDelaySeconds:  60,
			BackoffMultiplier: 2,
		},
		TimeoutSeconds: 5,
	}
}

func sealTestEnvelope(t *testing.T) *envelope.Envelope {
	t.Helper()
	env, err := envelope.Seal(catalog.DealCreated, map[string]any{"deal_id": "d1"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	return env
}

func TestDeliverSuccess(t *testing.T) {
	var (
		gotHeaders http.Header
		gotBody    []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, "ok")
	}))
	defer srv.Close()

	store := &attemptStore{}
	sched := &captureScheduler{}
	exec := delivery.NewExecutor(store, sched, delivery.ExecutorConfig{}, nil)

	sub := newSubscription(srv.URL)
	env := sealTestEnvelope(t)

	att := exec.Deliver(context.Background(), sub, env, 1)

	if !att.Succeeded() {
		t.Fatalf("outcome = %q, status = %d, response = %q", att.Outcome, att.StatusCode, att.Response)
	}
	if att.StatusCode != http.StatusOK {
		t.Errorf("status = %d", att.StatusCode)
	}
	if att.Response != "ok" {
		t.Errorf("response = %q", att.Response)
	}
	if att.AttemptNumber != 1 {
		t.Errorf("attempt number = %d", att.AttemptNumber)
	}

	if string(gotBody) != string(env.Body()) {
		t.Error("request body differs from envelope bytes")
	}
	if ct := gotHeaders.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	if ua := gotHeaders.Get("User-Agent"); ua != "Cadence-Webhooks/1.0" {
		t.Errorf("User-Agent = %q", ua)
	}
	if del := gotHeaders.Get(delivery.HeaderDelivery); del != att.ID.String() {
		t.Errorf("%s = %q, want attempt ID %q", delivery.HeaderDelivery, del, att.ID)
	}
	if ev := gotHeaders.Get(delivery.HeaderEvent); ev != "deal.created" {
		t.Errorf("%s = %q", delivery.HeaderEvent, ev)
	}
	if ts := gotHeaders.Get(delivery.HeaderTimestamp); ts != env.Timestamp.UTC().Format(time.RFC3339) {
		t.Errorf("%s = %q", delivery.HeaderTimestamp, ts)
	}

	// The signature must verify against the bytes the receiver actually got.
	sig := gotHeaders.Get(delivery.HeaderSignature)
	if !signature.Verify(gotBody, sub.Secret, sig) {
		t.Errorf("signature %q does not verify against received body", sig)
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.attempts) != 1 {
		t.Fatalf("persisted attempts = %d, want 1", len(store.attempts))
	}
	if sched.count() != 0 {
		t.Error("successful delivery must not reach the retry scheduler")
	}
}

func TestDeliverFailureSchedulesRetry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	store := &attemptStore{}
	sched := &captureScheduler{}
	exec := delivery.NewExecutor(store, sched, delivery.ExecutorConfig{}, nil)

	sub := newSubscription(srv.URL)
	att := exec.Deliver(context.Background(), sub, sealTestEnvelope(t), 1)

	if att.Outcome != delivery.OutcomeFailed {
		t.Fatalf("outcome = %q", att.Outcome)
	}
	if att.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d", att.StatusCode)
	}
	if sched.count() != 1 {
		t.Fatalf("scheduler calls = %d, want 1", sched.count())
	}
	if sched.failed[0].ID != att.ID {
		t.Error("scheduler received a different attempt")
	}
}

func TestDeliverRetryNotRescheduledByExecutor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	store := &attemptStore{}
	sched := &captureScheduler{}
	exec := delivery.NewExecutor(store, sched, delivery.ExecutorConfig{}, nil)

	sub := newSubscription(srv.URL)
	exec.Deliver(context.Background(), sub, sealTestEnvelope(t), 2)

	// Renewed failures are the retry worker's responsibility.
	if sched.count() != 0 {
		t.Errorf("scheduler calls = %d, want 0 for attempt > 1", sched.count())
	}
}

func TestDeliverRetriesDisabled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	store := &attemptStore{}
	sched := &captureScheduler{}
	exec := delivery.NewExecutor(store, sched, delivery.ExecutorConfig{}, nil)

	sub := newSubscription(srv.URL)
	sub.RetryPolicy.MaxRetries = 0
	exec.Deliver(context.Background(), sub, sealTestEnvelope(t), 1)

	if sched.count() != 0 {
		t.Errorf("scheduler calls = %d, want 0 when retries are disabled", sched.count())
	}
}

func TestDeliverTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close() // connection refused

	store := &attemptStore{}
	exec := delivery.NewExecutor(store, nil, delivery.ExecutorConfig{}, nil)

	att := exec.Deliver(context.Background(), newSubscription(url), sealTestEnvelope(t), 1)

	if att.Outcome != delivery.OutcomeFailed {
		t.Fatalf("outcome = %q", att.Outcome)
	}
	if att.StatusCode != 0 {
		t.Errorf("status = %d, want 0 for transport failure", att.StatusCode)
	}
	if att.Response == "" {
		t.Error("transport error text missing")
	}
}

func TestDeliverTimeout(t *testing.T) {
	stall := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		<-stall
	}))
	defer srv.Close()
	defer close(stall)

	exec := delivery.NewExecutor(&attemptStore{}, nil, delivery.ExecutorConfig{}, nil)

	sub := newSubscription(srv.URL)
	sub.TimeoutSeconds = 1

	start := time.Now()
	att := exec.Deliver(context.Background(), sub, sealTestEnvelope(t), 1)
	elapsed := time.Since(start)

	if att.Outcome != delivery.OutcomeFailed {
		t.Fatalf("outcome = %q", att.Outcome)
	}
	if att.StatusCode != 0 {
		t.Errorf("status = %d, want 0 for a hung subscriber", att.StatusCode)
	}
	if att.Response == "" {
		t.Error("timeout error text missing")
	}
	if elapsed > 2*time.Second {
		t.Errorf("delivery took %v, want bounded by the 1s subscription timeout", elapsed)
	}
}

func TestDeliverTruncatesResponse(t *testing.T) {
	long := strings.Repeat("x", 5000)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, long)
	}))
	defer srv.Close()

	exec := delivery.NewExecutor(&attemptStore{}, nil, delivery.ExecutorConfig{}, nil)

	att := exec.Deliver(context.Background(), newSubscription(srv.URL), sealTestEnvelope(t), 1)

	if len(att.Response) != 1000 {
		t.Errorf("response length = %d, want 1000", len(att.Response))
	}
}

func TestDeliverTruncatesOnRuneBoundary(t *testing.T) {
	// A two-byte rune straddles the truncation point.
	long := strings.Repeat("x", 999) + strings.Repeat("é", 100)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, long)
	}))
	defer srv.Close()

	exec := delivery.NewExecutor(&attemptStore{}, nil, delivery.ExecutorConfig{}, nil)

	att := exec.Deliver(context.Background(), newSubscription(srv.URL), sealTestEnvelope(t), 1)

	if !utf8.ValidString(att.Response) {
		t.Error("stored response contains a split rune")
	}
	if len(att.Response) != 999 {
		t.Errorf("response length = %d, want 999 after backing off the split rune", len(att.Response))
	}
}

func TestDeliverCustomHeaders(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	exec := delivery.NewExecutor(&attemptStore{}, nil, delivery.ExecutorConfig{}, nil)

	sub := newSubscription(srv.URL)
	sub.Headers = map[string]string{"Authorization": "Bearer token123"}

	att := exec.Deliver(context.Background(), sub, sealTestEnvelope(t), 1)

	if !att.Succeeded() {
		t.Fatalf("outcome = %q", att.Outcome)
	}
	if auth := got.Get("Authorization"); auth != "Bearer token123" {
		t.Errorf("Authorization = %q", auth)
	}
}

func TestDeliverNoSecretNoSignature(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	exec := delivery.NewExecutor(&attemptStore{}, nil, delivery.ExecutorConfig{}, nil)

	sub := newSubscription(srv.URL)
	sub.Secret = ""
	exec.Deliver(context.Background(), sub, sealTestEnvelope(t), 1)

	if sig := got.Get(delivery.HeaderSignature); sig != "" {
		t.Errorf("signature header = %q, want empty without a secret", sig)
	}
}
