package integrations

import (
	"context"

	"patrolnav/internal/model"
)

// IncidentSource is implemented by adapters that pull incident reports from an external feed.
type IncidentSource interface {
	Name() string
	FetchIncidents(ctx context.Context) (IncidentBatch, error)
}

// IncidentBatch is one pull from a source. Rows the adapter could not map are
// reported in Skipped and do not fail the batch.
type IncidentBatch struct {
	Incidents []model.IncidentIn
	Skipped   []RowError
}

type RowError struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}
