// Package csvfeed reads incident exports in the
// latitude,longitude,time,crime_type,severity,district CSV layout.
package csvfeed

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"patrolnav/internal/integrations"
	"patrolnav/internal/model"
)

// ErrNoCoordinates is returned when the header names neither a latitude nor a longitude column.
var ErrNoCoordinates = errors.New("csv header must include latitude and longitude columns")

var aliases = map[string]string{
	"latitude":   "lat",
	"lat":        "lat",
	"longitude":  "lng",
	"lon":        "lng",
	"lng":        "lng",
	"time":       "time",
	"occurredat": "time",
	"crime_type": "type",
	"type":       "type",
	"severity":   "severity",
	"district":   "location",
	"location":   "location",
}

// Adapter parses a single CSV document.
type Adapter struct {
	R io.Reader
}

func New(r io.Reader) Adapter { return Adapter{R: r} }

func (a Adapter) Name() string { return "csv-feed" }

func (a Adapter) FetchIncidents(ctx context.Context) (integrations.IncidentBatch, error) {
	cr := csv.NewReader(a.R)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return integrations.IncidentBatch{Incidents: []model.IncidentIn{}}, nil
		}
		return integrations.IncidentBatch{}, fmt.Errorf("read header: %w", err)
	}
	cols := map[string]int{}
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if field, ok := aliases[key]; ok {
			if _, seen := cols[field]; !seen {
				cols[field] = i
			}
		}
	}
	if _, ok := cols["lat"]; !ok {
		return integrations.IncidentBatch{}, ErrNoCoordinates
	}
	if _, ok := cols["lng"]; !ok {
		return integrations.IncidentBatch{}, ErrNoCoordinates
	}

	batch := integrations.IncidentBatch{Incidents: []model.IncidentIn{}}
	for row := 2; ; row++ {
		if err := ctx.Err(); err != nil {
			return integrations.IncidentBatch{}, err
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return integrations.IncidentBatch{}, fmt.Errorf("row %d: %w", row, err)
		}
		in, reason := mapRow(rec, cols)
		if reason != "" {
			batch.Skipped = append(batch.Skipped, integrations.RowError{Row: row, Reason: reason})
			continue
		}
		batch.Incidents = append(batch.Incidents, in)
	}
	return batch, nil
}

func mapRow(rec []string, cols map[string]int) (model.IncidentIn, string) {
	get := func(field string) string {
		i, ok := cols[field]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}
	lat, err := strconv.ParseFloat(get("lat"), 64)
	if err != nil {
		return model.IncidentIn{}, "invalid latitude"
	}
	lng, err := strconv.ParseFloat(get("lng"), 64)
	if err != nil {
		return model.IncidentIn{}, "invalid longitude"
	}
	in := model.IncidentIn{
		Lat:        &lat,
		Lng:        &lng,
		Location:   get("location"),
		Type:       get("type"),
		OccurredAt: get("time"),
	}
	if s := get("severity"); s != "" {
		sev, err := strconv.Atoi(s)
		if err != nil || sev < 0 {
			return model.IncidentIn{}, "invalid severity"
		}
		in.Severity = sev
	}
	return in, ""
}
