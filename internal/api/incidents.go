package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"patrolnav/internal/cluster"
	"patrolnav/internal/integrations"
	"patrolnav/internal/integrations/csvfeed"
	"patrolnav/internal/model"
	"patrolnav/internal/scoring"
	"patrolnav/internal/store"
)

// IncidentsHandler handles POST/GET /v1/incidents
func (s *Server) IncidentsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		p := s.getPrincipal(r)
		if !p.CanReport() {
			writeProblem(w, http.StatusForbidden, "Forbidden", "dispatcher or admin required", r.URL.Path)
			return
		}
		var req struct {
			Incidents []model.IncidentIn `json:"incidents"`
		}
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		created, ok := s.recordIncidents(w, r, p.Tenant, req.Incidents, "api")
		if !ok {
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"created": len(created), "items": created})
	case http.MethodGet:
		p := s.getPrincipal(r)
		q := r.URL.Query()
		since, err := parseSince(q.Get("since"))
		if err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid since", err.Error(), r.URL.Path)
			return
		}
		limit, err := queryInt(q, "limit", store.DefaultPageSize)
		if err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid limit", err.Error(), r.URL.Path)
			return
		}
		items, next, err := s.Store.ListIncidents(r.Context(), p.Tenant, since, q.Get("cursor"), limit)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "List incidents failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// IncidentImportHandler handles POST /v1/incidents/import with a CSV export body.
func (s *Server) IncidentImportHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	p := s.getPrincipal(r)
	if !p.CanReport() {
		writeProblem(w, http.StatusForbidden, "Forbidden", "dispatcher or admin required", r.URL.Path)
		return
	}
	var src integrations.IncidentSource = csvfeed.New(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	batch, err := src.FetchIncidents(r.Context())
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid CSV", err.Error(), r.URL.Path)
		return
	}
	if len(batch.Skipped) > 0 {
		s.Log.Warn().Str("source", src.Name()).Int("skipped", len(batch.Skipped)).Msg("import skipped rows")
	}
	created, ok := s.recordIncidents(w, r, p.Tenant, batch.Incidents, src.Name())
	if !ok {
		return
	}
	skipped := batch.Skipped
	if skipped == nil {
		skipped = []integrations.RowError{}
	}
	writeJSON(w, http.StatusCreated, map[string]any{"created": len(created), "skipped": skipped})
}

// recordIncidents stores a batch and announces it. It writes the error
// response itself and reports whether the caller should continue.
func (s *Server) recordIncidents(w http.ResponseWriter, r *http.Request, tenant string, in []model.IncidentIn, source string) ([]model.Incident, bool) {
	created, err := s.Store.CreateIncidents(r.Context(), tenant, in)
	if errors.Is(err, store.ErrInvalidIncident) {
		writeProblem(w, http.StatusBadRequest, "Invalid incident", err.Error(), r.URL.Path)
		return nil, false
	}
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Create incidents failed", err.Error(), r.URL.Path)
		return nil, false
	}
	if len(created) == 0 {
		return created, true
	}
	ids := make([]string, len(created))
	for i, c := range created {
		ids[i] = c.ID
	}
	s.Log.Info().Str("tenant", tenant).Str("source", source).Int("count", len(created)).Msg("incidents recorded")
	s.emit(r.Context(), tenant, TopicIncidents, model.EventIncidentReported, map[string]any{
		"count":  len(created),
		"ids":    ids,
		"source": source,
	})
	return created, true
}

// HotspotsHandler handles GET /v1/hotspots: stored incidents clustered into
// hotspots, ready to post to /api/allocate-patrol.
func (s *Server) HotspotsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	p := s.getPrincipal(r)
	q := r.URL.Query()
	radius := s.Cfg.HotspotRadiusM
	if v := q.Get("radiusM"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			writeProblem(w, http.StatusBadRequest, "Invalid radiusM", "radiusM must be a positive number", r.URL.Path)
			return
		}
		radius = f
	}
	minIncidents, err := queryInt(q, "minIncidents", s.Cfg.MinIncidents)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid minIncidents", err.Error(), r.URL.Path)
		return
	}
	since, err := parseSince(q.Get("since"))
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid since", err.Error(), r.URL.Path)
		return
	}

	incidents, err := s.allIncidents(r.Context(), p.Tenant, since)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "List incidents failed", err.Error(), r.URL.Path)
		return
	}
	points := make([]cluster.Point, len(incidents))
	for i, inc := range incidents {
		label := inc.Location
		if label == "" {
			label = inc.Type
		}
		points[i] = cluster.Point{Lat: inc.Lat, Lng: inc.Lng, Label: label}
		if s.Scorer != nil {
			risk, err := s.Scorer.Score(scoring.VectorFor(s.Scorer, incidentRecord(inc)))
			if err != nil {
				writeProblem(w, http.StatusInternalServerError, "Scoring failed", err.Error(), r.URL.Path)
				return
			}
			points[i].Risk = risk
		}
	}

	hs := cluster.Aggregate(points, radius, minIncidents)
	out := make([]model.HotspotView, len(hs))
	for i, h := range hs {
		out[i] = model.HotspotView{ID: h.ZoneID(i + 1), Lat: h.Lat, Lng: h.Lng, Location: h.Location, Incidents: h.Incidents, RiskScore: h.RiskScore}
	}
	writeJSON(w, http.StatusOK, map[string]any{"hotspots": out, "incidents": len(incidents), "radiusM": radius})
}

// allIncidents pages through the tenant's incidents.
func (s *Server) allIncidents(ctx context.Context, tenant string, since time.Time) ([]model.Incident, error) {
	var out []model.Incident
	cursor := ""
	for {
		items, next, err := s.Store.ListIncidents(ctx, tenant, since, cursor, 500)
		if err != nil {
			return nil, err
		}
		out = append(out, items...)
		if next == "" {
			return out, nil
		}
		cursor = next
	}
}

func incidentRecord(inc model.Incident) scoring.Record {
	return scoring.Record{
		"latitude":  inc.Lat,
		"longitude": inc.Lng,
		"time":      inc.OccurredAt.Format(time.RFC3339),
		"severity":  float64(inc.Severity),
	}
}

func parseSince(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, v)
}
