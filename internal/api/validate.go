package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"patrolnav/internal/model"
	"patrolnav/internal/patrol"
)

// Request validation errors. Both map to 400.
var (
	ErrInvalidInputFormat = errors.New("payload must be a hotspot record or a list of hotspot records")
	ErrMissingField       = errors.New("missing required field")
)

// validateAllocateRequest converts the proportional-model request into engine
// hotspots. lat, lng and location are required; incidents defaults to 0.
func validateAllocateRequest(req *model.AllocateRequest) ([]patrol.Hotspot, error) {
	out := make([]patrol.Hotspot, 0, len(req.Hotspots))
	for i, h := range req.Hotspots {
		switch {
		case h.Lat == nil:
			return nil, fmt.Errorf("%w: hotspots[%d].lat", ErrMissingField, i)
		case h.Lng == nil:
			return nil, fmt.Errorf("%w: hotspots[%d].lng", ErrMissingField, i)
		case h.Location == nil:
			return nil, fmt.Errorf("%w: hotspots[%d].location", ErrMissingField, i)
		}
		incidents := 0
		if h.Incidents != nil {
			incidents = *h.Incidents
		}
		if incidents < 0 {
			return nil, fmt.Errorf("hotspots[%d].incidents: %w", i, patrol.ErrNegativeIncidents)
		}
		out = append(out, patrol.Hotspot{ID: h.ID, Lat: *h.Lat, Lng: *h.Lng, Location: *h.Location, Incidents: incidents})
	}
	return out, nil
}

// unitRequest is the decoded capacity-model payload.
type unitRequest struct {
	Hotspots []patrol.Hotspot
	Units    *int
	Capacity *int
}

// parseUnitPayload accepts {hotspots, num_units, capacity|capacity_per_unit},
// a single hotspot record, or a list of hotspot records. Absent numeric fields
// are zero and a record without zone_id takes its index.
func parseUnitPayload(payload any) (unitRequest, error) {
	var req unitRequest
	data := payload
	if obj, ok := payload.(map[string]any); ok {
		if hs, ok := obj["hotspots"]; ok {
			data = hs
		}
		var err error
		if req.Units, err = optionalInt(obj, "num_units"); err != nil {
			return req, err
		}
		if req.Capacity, err = optionalInt(obj, "capacity", "capacity_per_unit"); err != nil {
			return req, err
		}
	}

	var records []any
	switch v := data.(type) {
	case map[string]any:
		records = []any{v}
	case []any:
		records = v
	default:
		return req, ErrInvalidInputFormat
	}
	req.Hotspots = make([]patrol.Hotspot, 0, len(records))
	for i, r := range records {
		rec, ok := r.(map[string]any)
		if !ok {
			return req, fmt.Errorf("%w: hotspots[%d] is not an object", ErrInvalidInputFormat, i)
		}
		zone, err := zoneID(rec, i)
		if err != nil {
			return req, fmt.Errorf("%w: hotspots[%d]", err, i)
		}
		lat, _ := firstNumber(rec, "latitude", "lat")
		lng, _ := firstNumber(rec, "longitude", "lon", "lng")
		risk, _ := firstNumber(rec, "risk_score")
		req.Hotspots = append(req.Hotspots, patrol.Hotspot{ID: &zone, Lat: lat, Lng: lng, RiskScore: risk})
	}
	return req, nil
}

// zoneID reads zone_id or id as an integer, falling back to the record index
// when neither is set. Fractional or non-numeric ids are rejected.
func zoneID(rec map[string]any, fallback int) (int, error) {
	for _, k := range []string{"zone_id", "id"} {
		v, ok := rec[k]
		if !ok || v == nil {
			continue
		}
		var s string
		switch t := v.(type) {
		case json.Number:
			s = t.String()
		case string:
			s = strings.TrimSpace(t)
		case float64:
			s = strconv.FormatFloat(t, 'f', -1, 64)
		}
		if n, err := strconv.Atoi(s); err == nil {
			return n, nil
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil && f == math.Trunc(f) && math.Abs(f) <= 1<<53 {
			return int(f), nil
		}
		return 0, fmt.Errorf("%w: %s must be an integer", ErrInvalidInputFormat, k)
	}
	return fallback, nil
}

// firstNumber returns the first key of rec holding a number or numeric string.
func firstNumber(rec map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		switch v := rec[k].(type) {
		case json.Number:
			if f, err := v.Float64(); err == nil {
				return f, true
			}
		case float64:
			return v, true
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}

func optionalInt(obj map[string]any, keys ...string) (*int, error) {
	for _, k := range keys {
		v, ok := obj[k]
		if !ok || v == nil {
			continue
		}
		var n int
		var err error
		switch t := v.(type) {
		case json.Number:
			var i int64
			i, err = t.Int64()
			n = int(i)
		case string:
			n, err = strconv.Atoi(strings.TrimSpace(t))
		default:
			err = fmt.Errorf("unexpected %T", v)
		}
		if err != nil {
			return nil, fmt.Errorf("%s must be an integer", k)
		}
		return &n, nil
	}
	return nil, nil
}

// queryInt parses a non-negative integer query parameter, returning def when
// the parameter is absent.
func queryInt(q url.Values, key string, def int) (int, error) {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", key)
	}
	return n, nil
}
