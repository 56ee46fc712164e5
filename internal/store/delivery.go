package store

import "time"

// Delivery statuses.
const (
	DeliveryPending   = "pending"
	DeliveryRetry     = "retry"
	DeliveryDelivered = "delivered"
	DeliveryFailed    = "failed"
)

type WebhookDelivery struct {
	ID             string
	TenantID       string
	SubscriptionID string
	EventType      string
	URL            string
	Secret         string
	Payload        []byte
	Status         string
	Attempts       int
}

// dlqEntry is a delivery that exhausted its attempts.
type dlqEntry struct {
	ID             string
	DeliveryID     string
	TenantID       string
	SubscriptionID string
	EventType      string
	URL            string
	Secret         string
	Payload        []byte
	Attempts       int
	LastError      string
	ResponseCode   int
	LatencyMs      int
	CreatedAt      time.Time
}

func (e dlqEntry) view() map[string]any {
	return map[string]any{
		"id":           e.ID,
		"deliveryId":   e.DeliveryID,
		"eventType":    e.EventType,
		"url":          e.URL,
		"lastError":    e.LastError,
		"attempts":     e.Attempts,
		"createdAt":    e.CreatedAt,
		"responseCode": e.ResponseCode,
		"latencyMs":    e.LatencyMs,
	}
}
