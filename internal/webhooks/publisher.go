package webhooks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"patrolnav/internal/store"
)

type Publisher struct {
	Store store.Store
	Log   zerolog.Logger
}

func NewPublisher(s store.Store, log zerolog.Logger) *Publisher {
	return &Publisher{Store: s, Log: log.With().Str("component", "webhooks").Logger()}
}

// Envelope is the JSON body posted to subscribers.
type Envelope struct {
	ID       string    `json:"id"`
	Type     string    `json:"type"`
	TenantID string    `json:"tenantId"`
	TS       time.Time `json:"ts"`
	Data     any       `json:"data"`
}

// Emit enqueues one delivery per subscription of the tenant that names eventType.
// It returns the number of deliveries enqueued.
func (p *Publisher) Emit(ctx context.Context, tenantID, eventType string, data any) (int, error) {
	subs, err := p.Store.GetSubscriptionsForEvent(ctx, tenantID, eventType)
	if err != nil {
		return 0, fmt.Errorf("load subscriptions: %w", err)
	}
	if len(subs) == 0 {
		return 0, nil
	}
	body, err := json.Marshal(Envelope{
		ID:       "evt_" + uuid.NewString(),
		Type:     eventType,
		TenantID: tenantID,
		TS:       time.Now().UTC(),
		Data:     data,
	})
	if err != nil {
		return 0, fmt.Errorf("encode event: %w", err)
	}
	n := 0
	for _, s := range subs {
		if _, err := p.Store.EnqueueWebhook(ctx, tenantID, s.ID, eventType, s.URL, s.Secret, body); err != nil {
			p.Log.Warn().Err(err).Str("subscription", s.ID).Str("event", eventType).Msg("enqueue webhook failed")
			continue
		}
		n++
	}
	return n, nil
}
