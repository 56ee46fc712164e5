package store

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"patrolnav/internal/model"
)

// ErrInvalidIncident wraps every validation failure of an incoming incident.
var ErrInvalidIncident = errors.New("invalid incident")

var occurredLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"}

// newIncident validates an incoming report and fills server-side fields.
func newIncident(tenantID string, in model.IncidentIn, now time.Time) (model.Incident, error) {
	if in.Lat == nil || in.Lng == nil {
		return model.Incident{}, fmt.Errorf("%w: lat and lng are required", ErrInvalidIncident)
	}
	if *in.Lat < -90 || *in.Lat > 90 || *in.Lng < -180 || *in.Lng > 180 {
		return model.Incident{}, fmt.Errorf("%w: coordinates out of range", ErrInvalidIncident)
	}
	if in.Severity < 0 {
		return model.Incident{}, fmt.Errorf("%w: severity must be >= 0", ErrInvalidIncident)
	}
	occurred := now
	if s := strings.TrimSpace(in.OccurredAt); s != "" {
		var err error
		occurred, err = parseOccurred(s)
		if err != nil {
			return model.Incident{}, fmt.Errorf("%w: occurredAt %q", ErrInvalidIncident, s)
		}
	}
	return model.Incident{
		ID:         uuid.New().String(),
		TenantID:   tenantID,
		Lat:        *in.Lat,
		Lng:        *in.Lng,
		Location:   strings.TrimSpace(in.Location),
		Type:       strings.ToLower(strings.TrimSpace(in.Type)),
		Severity:   in.Severity,
		OccurredAt: occurred.UTC(),
		CreatedAt:  now.UTC(),
	}, nil
}

func parseOccurred(s string) (time.Time, error) {
	var err error
	for _, layout := range occurredLayouts {
		var t time.Time
		if t, err = time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, err
}
