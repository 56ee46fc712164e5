package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"patrolnav/internal/model"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
	mu        sync.Mutex
	incidents map[string][]model.Incident     // tenant -> incidents in arrival order
	subs      map[string][]model.Subscription // tenant -> subscriptions
	// Webhooks queue state
	deliveries         map[string]*memDelivery // id -> delivery state
	deliveryOrder      []string                // enqueue order across tenants
	deliveriesByTenant map[string][]string     // tenant -> delivery ids
	dlq                []dlqEntry              // dead-lettered deliveries
}

func NewMemory() *Memory {
	return &Memory{
		incidents:          map[string][]model.Incident{},
		subs:               map[string][]model.Subscription{},
		deliveries:         map[string]*memDelivery{},
		deliveriesByTenant: map[string][]string{},
	}
}

// memDelivery augments WebhookDelivery with scheduling/metrics
type memDelivery struct {
	WebhookDelivery
	NextAttemptAt time.Time
	LastError     string
	ResponseCode  int
	LatencyMs     int
	DeliveredAt   *time.Time
}

// CreateIncidents validates all reports first and stores none if any is invalid.
func (m *Memory) CreateIncidents(ctx context.Context, tenantID string, in []model.IncidentIn) ([]model.Incident, error) {
	now := time.Now()
	out := make([]model.Incident, 0, len(in))
	for _, i := range in {
		inc, err := newIncident(tenantID, i, now)
		if err != nil {
			return nil, err
		}
		out = append(out, inc)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.incidents[tenantID] = append(m.incidents[tenantID], out...)
	return out, nil
}

func (m *Memory) ListIncidents(ctx context.Context, tenantID string, since time.Time, cursor string, limit int) ([]model.Incident, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.incidents[tenantID]
	start := 0
	if cursor != "" {
		for i := range list {
			if list[i].ID == cursor {
				start = i + 1
				break
			}
		}
	}
	limit = pageSize(limit)
	out := []model.Incident{}
	next := ""
	for i := start; i < len(list); i++ {
		if !since.IsZero() && list[i].OccurredAt.Before(since) {
			continue
		}
		if len(out) == limit {
			next = out[len(out)-1].ID
			break
		}
		out = append(out, list[i])
	}
	return out, next, nil
}

func (m *Memory) CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := model.Subscription{ID: uuid.New().String(), TenantID: req.TenantID, URL: req.URL, Events: req.Events, Secret: req.Secret}
	m.subs[req.TenantID] = append(m.subs[req.TenantID], s)
	return s, nil
}

func (m *Memory) GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Subscription
	for _, s := range m.subs[tenantID] {
		for _, e := range s.Events {
			if e == eventType {
				out = append(out, s)
				break
			}
		}
	}
	return out, nil
}

func (m *Memory) ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]model.Subscription, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.subs[tenantID]
	start := 0
	if cursor != "" {
		for i := range list {
			if list[i].ID == cursor {
				start = i + 1
				break
			}
		}
	}
	end := min(start+pageSize(limit), len(list))
	items := append([]model.Subscription{}, list[start:end]...)
	next := ""
	if end < len(list) {
		next = list[end-1].ID
	}
	return items, next, nil
}

func (m *Memory) DeleteSubscription(ctx context.Context, tenantID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	arr := m.subs[tenantID]
	out := make([]model.Subscription, 0, len(arr))
	for _, s := range arr {
		if s.ID != id {
			out = append(out, s)
		}
	}
	if len(out) == len(arr) {
		return ErrNotFound
	}
	m.subs[tenantID] = out
	return nil
}

// Webhook deliveries
func (m *Memory) EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New().String()
	d := &memDelivery{WebhookDelivery: WebhookDelivery{ID: id, TenantID: tenantID, SubscriptionID: subscriptionID, EventType: eventType, URL: url, Secret: secret, Payload: payload, Status: DeliveryPending}, NextAttemptAt: time.Now()}
	m.deliveries[id] = d
	m.deliveryOrder = append(m.deliveryOrder, id)
	m.deliveriesByTenant[tenantID] = append(m.deliveriesByTenant[tenantID], id)
	return id, nil
}

func (m *Memory) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	out := []WebhookDelivery{}
	for _, id := range m.deliveryOrder {
		d := m.deliveries[id]
		if (d.Status == DeliveryPending || d.Status == DeliveryRetry) && !d.NextAttemptAt.After(now) {
			out = append(out, d.WebhookDelivery)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (m *Memory) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.deliveries[id]
	if d == nil {
		return ErrNotFound
	}
	d.Attempts++
	d.ResponseCode = responseCode
	d.LatencyMs = latencyMs
	if success {
		d.Status = DeliveryDelivered
		now := time.Now()
		d.DeliveredAt = &now
		return nil
	}
	d.Status = DeliveryRetry
	d.LastError = lastError
	if nextAttemptAt != nil {
		d.NextAttemptAt = *nextAttemptAt
	} else {
		d.NextAttemptAt = time.Now().Add(time.Minute)
	}
	return nil
}

func (m *Memory) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.deliveries[id]
	if d == nil {
		return ErrNotFound
	}
	d.Status = DeliveryFailed
	d.LastError = lastError
	d.ResponseCode = responseCode
	d.LatencyMs = latencyMs
	m.dlq = append(m.dlq, dlqEntry{
		ID:             uuid.New().String(),
		DeliveryID:     d.ID,
		TenantID:       d.TenantID,
		SubscriptionID: d.SubscriptionID,
		EventType:      d.EventType,
		URL:            d.URL,
		Secret:         d.Secret,
		Payload:        d.Payload,
		Attempts:       d.Attempts + 1,
		LastError:      lastError,
		ResponseCode:   responseCode,
		LatencyMs:      latencyMs,
		CreatedAt:      time.Now(),
	})
	return nil
}

func (m *Memory) ListWebhookDeliveries(ctx context.Context, tenantID, status, cursor string, limit int) ([]map[string]any, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := m.deliveriesByTenant[tenantID]
	start := 0
	if cursor != "" {
		for i, id := range ids {
			if id == cursor {
				start = i + 1
				break
			}
		}
	}
	limit = pageSize(limit)
	out := []map[string]any{}
	next := ""
	for _, id := range ids[start:] {
		d := m.deliveries[id]
		if status != "" && d.Status != status {
			continue
		}
		if len(out) == limit {
			next = out[len(out)-1]["id"].(string)
			break
		}
		item := map[string]any{"id": d.ID, "eventType": d.EventType, "status": d.Status, "attempts": d.Attempts, "url": d.URL}
		if !d.NextAttemptAt.IsZero() {
			item["nextAttemptAt"] = d.NextAttemptAt
		}
		if d.LastError != "" {
			item["lastError"] = d.LastError
		}
		out = append(out, item)
	}
	return out, next, nil
}

func (m *Memory) RetryWebhookDelivery(ctx context.Context, tenantID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.deliveries[id]
	if d == nil || d.TenantID != tenantID {
		return ErrNotFound
	}
	d.Status = DeliveryPending
	d.NextAttemptAt = time.Now()
	return nil
}

func (m *Memory) ListWebhookDLQ(ctx context.Context, tenantID, eventType string, olderThan time.Time, cursor string, limit int) ([]map[string]any, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	limit = pageSize(limit)
	out := []map[string]any{}
	next := ""
	started := cursor == ""
	for _, e := range m.dlq {
		if !started {
			started = e.ID == cursor
			continue
		}
		if e.TenantID != tenantID || (eventType != "" && !strings.EqualFold(e.EventType, eventType)) {
			continue
		}
		if !olderThan.IsZero() && !e.CreatedAt.Before(olderThan) {
			continue
		}
		if len(out) == limit {
			next = out[len(out)-1]["id"].(string)
			break
		}
		out = append(out, e.view())
	}
	return out, next, nil
}

// RequeueWebhookDLQ moves a dead letter back onto the delivery queue with a fresh attempt count.
func (m *Memory) RequeueWebhookDLQ(ctx context.Context, tenantID, id string) error {
	m.mu.Lock()
	idx := -1
	for i, e := range m.dlq {
		if e.ID == id && e.TenantID == tenantID {
			idx = i
			break
		}
	}
	if idx < 0 {
		m.mu.Unlock()
		return ErrNotFound
	}
	e := m.dlq[idx]
	m.dlq = append(m.dlq[:idx], m.dlq[idx+1:]...)
	m.mu.Unlock()
	_, err := m.EnqueueWebhook(ctx, e.TenantID, e.SubscriptionID, e.EventType, e.URL, e.Secret, e.Payload)
	return err
}
