package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"patrolnav/internal/model"
)

func fp(v float64) *float64 { return &v }

func TestMemoryIncidents(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, err := m.CreateIncidents(ctx, "t1", []model.IncidentIn{{Lat: fp(12.9), Lng: fp(77.6)}, {Lat: fp(12.9)}})
	require.ErrorIs(t, err, ErrInvalidIncident)
	items, _, err := m.ListIncidents(ctx, "t1", time.Time{}, "", 0)
	require.NoError(t, err)
	assert.Empty(t, items, "a failed batch stores nothing")

	in := []model.IncidentIn{
		{Lat: fp(12.93), Lng: fp(77.61), Type: " Theft ", OccurredAt: "2025-01-01T21:00:00Z"},
		{Lat: fp(12.94), Lng: fp(77.59), OccurredAt: "2025-03-01 08:30:00"},
		{Lat: fp(12.92), Lng: fp(77.62), OccurredAt: "2025-05-01"},
	}
	created, err := m.CreateIncidents(ctx, "t1", in)
	require.NoError(t, err)
	require.Len(t, created, 3)
	assert.Equal(t, "theft", created[0].Type)
	assert.Equal(t, 21, created[0].OccurredAt.Hour())

	page, next, err := m.ListIncidents(ctx, "t1", time.Time{}, "", 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, page[1].ID, next)
	rest, next, err := m.ListIncidents(ctx, "t1", time.Time{}, next, 2)
	require.NoError(t, err)
	assert.Len(t, rest, 1)
	assert.Empty(t, next)

	since := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	recent, _, err := m.ListIncidents(ctx, "t1", since, "", 0)
	require.NoError(t, err)
	assert.Len(t, recent, 2)

	other, _, _ := m.ListIncidents(ctx, "t2", time.Time{}, "", 0)
	assert.Empty(t, other)
}

func TestMemoryIncidentValidation(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	bad := []model.IncidentIn{
		{Lat: fp(91), Lng: fp(0)},
		{Lat: fp(0), Lng: fp(0), Severity: -1},
		{Lat: fp(0), Lng: fp(0), OccurredAt: "yesterday"},
	}
	for _, in := range bad {
		_, err := m.CreateIncidents(ctx, "t1", []model.IncidentIn{in})
		assert.ErrorIs(t, err, ErrInvalidIncident)
	}
}

func TestMemorySubscriptions(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	s, err := m.CreateSubscription(ctx, model.SubscriptionRequest{TenantID: "t1", URL: "http://x", Events: []string{model.EventPatrolPlanCreated}})
	require.NoError(t, err)
	_, err = m.CreateSubscription(ctx, model.SubscriptionRequest{TenantID: "t1", URL: "http://y", Events: []string{model.EventIncidentReported}})
	require.NoError(t, err)

	subs, err := m.GetSubscriptionsForEvent(ctx, "t1", model.EventPatrolPlanCreated)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, s.ID, subs[0].ID)

	page, next, err := m.ListSubscriptions(ctx, "t1", "", 1)
	require.NoError(t, err)
	assert.Len(t, page, 1)
	assert.Equal(t, s.ID, next)

	require.NoError(t, m.DeleteSubscription(ctx, "t1", s.ID))
	assert.ErrorIs(t, m.DeleteSubscription(ctx, "t1", s.ID), ErrNotFound)
}

func TestMemoryDeliveryLifecycle(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	id, err := m.EnqueueWebhook(ctx, "t1", "sub1", model.EventPatrolPlanCreated, "http://x", "s", []byte(`{}`))
	require.NoError(t, err)

	due, err := m.FetchDueWebhookDeliveries(ctx, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)

	later := time.Now().Add(time.Hour)
	require.NoError(t, m.MarkWebhookDelivery(ctx, id, false, &later, "boom", 500, 12))
	due, _ = m.FetchDueWebhookDeliveries(ctx, 10)
	assert.Empty(t, due, "retry is scheduled in the future")

	require.NoError(t, m.RetryWebhookDelivery(ctx, "t1", id))
	assert.ErrorIs(t, m.RetryWebhookDelivery(ctx, "t2", id), ErrNotFound)
	due, _ = m.FetchDueWebhookDeliveries(ctx, 10)
	require.Len(t, due, 1)
	assert.Equal(t, 1, due[0].Attempts)

	require.NoError(t, m.FailWebhookDelivery(ctx, id, "gave up", 500, 10))
	items, _, err := m.ListWebhookDeliveries(ctx, "t1", DeliveryFailed, "", 0)
	require.NoError(t, err)
	require.Len(t, items, 1)

	dlq, _, err := m.ListWebhookDLQ(ctx, "t1", "", time.Time{}, "", 0)
	require.NoError(t, err)
	require.Len(t, dlq, 1)
	assert.Equal(t, id, dlq[0]["deliveryId"])
	assert.Equal(t, 2, dlq[0]["attempts"])

	dlqID := dlq[0]["id"].(string)
	assert.ErrorIs(t, m.RequeueWebhookDLQ(ctx, "t2", dlqID), ErrNotFound)
	require.NoError(t, m.RequeueWebhookDLQ(ctx, "t1", dlqID))
	dlq, _, _ = m.ListWebhookDLQ(ctx, "t1", "", time.Time{}, "", 0)
	assert.Empty(t, dlq)
	due, _ = m.FetchDueWebhookDeliveries(ctx, 10)
	require.Len(t, due, 1)
	assert.Equal(t, "sub1", due[0].SubscriptionID)
	assert.Zero(t, due[0].Attempts)
}
