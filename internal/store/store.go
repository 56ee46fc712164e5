package store

import (
	"context"
	"errors"
	"time"

	"patrolnav/internal/model"
)

// Store is the persistence interface used by the API server.
type Store interface {
	// Incidents
	CreateIncidents(ctx context.Context, tenantID string, in []model.IncidentIn) ([]model.Incident, error)
	ListIncidents(ctx context.Context, tenantID string, since time.Time, cursor string, limit int) (items []model.Incident, nextCursor string, err error)

	// Subscriptions
	CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error)
	GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error)
	ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]model.Subscription, string, error)
	DeleteSubscription(ctx context.Context, tenantID, id string) error

	// Webhook deliveries
	EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error)
	FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error)
	MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error
	FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error
	ListWebhookDeliveries(ctx context.Context, tenantID, status, cursor string, limit int) ([]map[string]any, string, error)
	RetryWebhookDelivery(ctx context.Context, tenantID, id string) error

	// Dead-letter queue
	ListWebhookDLQ(ctx context.Context, tenantID, eventType string, olderThan time.Time, cursor string, limit int) ([]map[string]any, string, error)
	RequeueWebhookDLQ(ctx context.Context, tenantID, id string) error
}

var ErrNotFound = errors.New("not found")

// DefaultPageSize applies when a caller passes no usable limit.
const DefaultPageSize = 100

func pageSize(limit int) int {
	if limit <= 0 || limit > 500 {
		return DefaultPageSize
	}
	return limit
}
