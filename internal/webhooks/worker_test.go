package webhooks

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"borderfleet/internal/model"
	"borderfleet/internal/store"
)

type recordStore struct {
	*store.Memory
	mu    sync.Mutex
	marks []MarkRec
	fails []FailRec
}
type MarkRec struct {
	ID            string
	Success       bool
	Code, Latency int
	LastErr       string
}
type FailRec struct {
	ID            string
	Code, Latency int
	LastErr       string
}

func (r *recordStore) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode, latencyMs int) error {
	r.mu.Lock()
	r.marks = append(r.marks, MarkRec{ID: id, Success: success, Code: responseCode, Latency: latencyMs, LastErr: lastError})
	r.mu.Unlock()
	return r.Memory.MarkWebhookDelivery(ctx, id, success, nextAttemptAt, lastError, responseCode, latencyMs)
}
func (r *recordStore) FailWebhookDelivery(ctx context.Context, id, lastError string, responseCode, latencyMs int) error {
	r.mu.Lock()
	r.fails = append(r.fails, FailRec{ID: id, Code: responseCode, Latency: latencyMs, LastErr: lastError})
	r.mu.Unlock()
	return r.Memory.FailWebhookDelivery(ctx, id, lastError, responseCode, latencyMs)
}

func TestWorkerProcessOnce_SuccessAndSignature(t *testing.T) {
	var gotSig, gotType string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get("X-Signature")
		gotType = r.Header.Get("X-Event-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(200)
	}))
	defer srv.Close()

	rs := &recordStore{Memory: store.NewMemory()}
	w := &Worker{Store: rs, HTTP: srv.Client(), Stop: make(chan struct{}), MaxAttempts: 3}
	body := []byte(`{"id":"evt1"}`)
	id, err := rs.Memory.EnqueueWebhook(context.Background(), "t1", "", model.EventPlanCompleted, srv.URL, "secret", body)
	if err != nil || id == "" {
		t.Fatalf("enqueue failed: %v", err)
	}

	w.processOnce()

	if gotType != model.EventPlanCompleted {
		t.Fatalf("missing event type header, got %q", gotType)
	}
	if !VerifyHMAC("secret", gotBody, gotSig) {
		t.Fatalf("signature does not verify: sig=%q body=%s", gotSig, gotBody)
	}
	if len(rs.marks) == 0 || !rs.marks[0].Success || rs.marks[0].Code != 200 {
		t.Fatalf("expected mark success, got: %+v", rs.marks)
	}
}

func TestWorkerProcessOnce_RetryThenFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(500) }))
	defer srv.Close()
	rs := &recordStore{Memory: store.NewMemory()}
	w := &Worker{Store: rs, HTTP: srv.Client(), Stop: make(chan struct{}), MaxAttempts: 2}
	id, _ := rs.Memory.EnqueueWebhook(context.Background(), "t1", "", model.EventPlanFailed, srv.URL, "", []byte(`{}`))

	// attempt 1 of 2 schedules a retry
	w.processOnce()
	if len(rs.marks) != 1 || rs.marks[0].Success || rs.marks[0].Code != 500 {
		t.Fatalf("expected retry mark, got marks=%+v fails=%+v", rs.marks, rs.fails)
	}

	// force the retry due now, attempt 2 of 2 dead-letters it
	if err := rs.Memory.RetryWebhookDelivery(context.Background(), "t1", id); err != nil {
		t.Fatalf("requeue: %v", err)
	}
	w.processOnce()
	if len(rs.fails) != 1 || rs.fails[0].ID != id {
		t.Fatalf("expected terminal failure, got fails=%+v", rs.fails)
	}
}

func TestWorkerUnreachableEndpointRecordsError(t *testing.T) {
	rs := &recordStore{Memory: store.NewMemory()}
	w := NewWorker(rs, time.Second, 3)
	w.HTTP = &http.Client{Timeout: 200 * time.Millisecond}
	_, _ = rs.Memory.EnqueueWebhook(context.Background(), "t1", "", model.EventPlanCompleted, "http://127.0.0.1:1", "", []byte(`{}`))
	w.processOnce()
	if len(rs.marks) != 1 || rs.marks[0].Success || rs.marks[0].LastErr == "" {
		t.Fatalf("expected connection error recorded, got %+v", rs.marks)
	}
}

func TestNextBackoffDoublesAndCaps(t *testing.T) {
	if nextBackoff(0) != time.Second {
		t.Fatalf("first retry should wait 1s, got %v", nextBackoff(0))
	}
	if nextBackoff(3) != 8*time.Second {
		t.Fatalf("fourth retry should wait 8s, got %v", nextBackoff(3))
	}
	if nextBackoff(100) != 17*time.Minute+4*time.Second {
		t.Fatalf("backoff should clamp the shift, got %v", nextBackoff(100))
	}
}

func TestSignHMACRoundTrip(t *testing.T) {
	body, _ := json.Marshal(map[string]string{"id": "evt_5"})
	sig := SignHMAC("s3cret", body)
	if !VerifyHMAC("s3cret", body, sig) {
		t.Fatalf("signature should verify")
	}
	if VerifyHMAC("other", body, sig) {
		t.Fatalf("wrong secret should not verify")
	}
	if VerifyHMAC("s3cret", append(body, 'x'), sig) {
		t.Fatalf("tampered body should not verify")
	}
	if VerifyHMAC("s3cret", body, "zz not hex") {
		t.Fatalf("non-hex signature should not verify")
	}
}
