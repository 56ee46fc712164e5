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

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"patrolnav/internal/model"
	"patrolnav/internal/store"
)

type recordStore struct {
	*store.Memory
	mu    sync.Mutex
	marks []markRec
	fails []failRec
}

type markRec struct {
	ID      string
	Success bool
	Code    int
	LastErr string
	Next    *time.Time
}

type failRec struct {
	ID      string
	Code    int
	LastErr string
}

func (r *recordStore) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
	r.mu.Lock()
	r.marks = append(r.marks, markRec{ID: id, Success: success, Code: responseCode, LastErr: lastError, Next: nextAttemptAt})
	r.mu.Unlock()
	return r.Memory.MarkWebhookDelivery(ctx, id, success, nextAttemptAt, lastError, responseCode, latencyMs)
}

func (r *recordStore) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
	r.mu.Lock()
	r.fails = append(r.fails, failRec{ID: id, Code: responseCode, LastErr: lastError})
	r.mu.Unlock()
	return r.Memory.FailWebhookDelivery(ctx, id, lastError, responseCode, latencyMs)
}

func newTestWorker(s store.Store, client *http.Client, maxAttempts int) *Worker {
	w := NewWorker(s, maxAttempts, time.Second, zerolog.Nop())
	w.HTTP = client
	return w
}

func TestWorkerProcessOnce_SuccessAndSignature(t *testing.T) {
	var gotSig, gotType string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get(SignatureHeader)
		gotType = r.Header.Get("X-Event-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	rs := &recordStore{Memory: store.NewMemory()}
	w := newTestWorker(rs, srv.Client(), 3)
	payload := []byte(`{"id":"evt1"}`)
	id, err := rs.Memory.EnqueueWebhook(context.Background(), "t1", "sub1", model.EventPatrolPlanCreated, srv.URL, "secret", payload)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	w.processOnce()

	assert.Equal(t, model.EventPatrolPlanCreated, gotType)
	assert.True(t, VerifyHMAC("secret", gotBody, gotSig))
	require.Len(t, rs.marks, 1)
	assert.True(t, rs.marks[0].Success)
	assert.Equal(t, http.StatusNoContent, rs.marks[0].Code)

	due, err := rs.FetchDueWebhookDeliveries(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestWorkerProcessOnce_RetryThenDeadLetter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx := context.Background()
	rs := &recordStore{Memory: store.NewMemory()}
	w := newTestWorker(rs, srv.Client(), 2)
	id, err := rs.Memory.EnqueueWebhook(ctx, "t1", "sub1", model.EventIncidentReported, srv.URL, "", []byte(`{}`))
	require.NoError(t, err)

	w.processOnce()
	require.Len(t, rs.marks, 1)
	assert.False(t, rs.marks[0].Success)
	assert.Equal(t, "HTTP 500", rs.marks[0].LastErr)
	require.NotNil(t, rs.marks[0].Next)
	assert.True(t, rs.marks[0].Next.After(time.Now()))
	assert.Empty(t, rs.fails)

	require.NoError(t, rs.RetryWebhookDelivery(ctx, "t1", id))
	w.processOnce()
	require.Len(t, rs.fails, 1)
	assert.Equal(t, id, rs.fails[0].ID)

	dlq, _, err := rs.ListWebhookDLQ(ctx, "t1", "", time.Time{}, "", 0)
	require.NoError(t, err)
	assert.Len(t, dlq, 1)
}

func TestWorkerUnreachableEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	rs := &recordStore{Memory: store.NewMemory()}
	w := newTestWorker(rs, &http.Client{Timeout: time.Second}, 1)
	_, err := rs.Memory.EnqueueWebhook(context.Background(), "t1", "sub1", model.EventCapacityPlanCreated, url, "", []byte(`{}`))
	require.NoError(t, err)

	w.processOnce()
	require.Len(t, rs.fails, 1)
	assert.Zero(t, rs.fails[0].Code)
	assert.NotEmpty(t, rs.fails[0].LastErr)
}

func TestPublisherEmit(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	_, err := mem.CreateSubscription(ctx, model.SubscriptionRequest{TenantID: "t1", URL: "http://a", Events: []string{model.EventPatrolPlanCreated}, Secret: "k"})
	require.NoError(t, err)
	_, err = mem.CreateSubscription(ctx, model.SubscriptionRequest{TenantID: "t1", URL: "http://b", Events: []string{model.EventIncidentReported}})
	require.NoError(t, err)

	p := NewPublisher(mem, zerolog.Nop())
	n, err := p.Emit(ctx, "t1", model.EventPatrolPlanCreated, map[string]any{"routesCreated": 2})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	due, err := mem.FetchDueWebhookDeliveries(ctx, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "http://a", due[0].URL)
	assert.Equal(t, "k", due[0].Secret)

	var env Envelope
	require.NoError(t, json.Unmarshal(due[0].Payload, &env))
	assert.Equal(t, model.EventPatrolPlanCreated, env.Type)
	assert.Equal(t, "t1", env.TenantID)
	assert.Contains(t, env.ID, "evt_")

	n, err = p.Emit(ctx, "t2", model.EventPatrolPlanCreated, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestNextBackoff(t *testing.T) {
	assert.Equal(t, time.Second, nextBackoff(0))
	assert.Equal(t, 8*time.Second, nextBackoff(3))
	assert.Equal(t, time.Hour, nextBackoff(50))
}
