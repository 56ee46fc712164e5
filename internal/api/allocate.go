package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"patrolnav/internal/metrics"
	"patrolnav/internal/model"
	"patrolnav/internal/patrol"
	"patrolnav/internal/scoring"
)

const maxBodyBytes = 8 << 20

// AllocatePatrolHandler handles POST /api/allocate-patrol (proportional officers
// balanced into routes).
func (s *Server) AllocatePatrolHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req model.AllocateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	hotspots, err := validateAllocateRequest(&req)
	if err != nil {
		title := "Invalid allocation request"
		if errors.Is(err, ErrMissingField) {
			title = "Missing field"
		}
		writeProblem(w, http.StatusBadRequest, title, err.Error(), r.URL.Path)
		return
	}
	officers, shift := patrol.DefaultTotalOfficers, patrol.DefaultShiftMinutes
	if req.TotalOfficers != nil {
		officers = *req.TotalOfficers
	}
	if req.PatrolShiftMinutes != nil {
		shift = *req.PatrolShiftMinutes
	}

	plan, err := patrol.BuildPatrolPlan(patrol.PlanRequest{Hotspots: hotspots, TotalOfficers: officers, ShiftMinutes: shift})
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid allocation request", err.Error(), r.URL.Path)
		return
	}

	resp := model.AllocateResponse{PatrolPlan: make([]model.PatrolPoint, 0, len(plan.Entries)), Summary: summaryView(plan.Summary)}
	for _, e := range plan.Entries {
		resp.PatrolPlan = append(resp.PatrolPlan, model.PatrolPoint{
			ID:                     e.Hotspot.ID,
			Lat:                    e.Hotspot.Lat,
			Lng:                    e.Hotspot.Lng,
			Location:               e.Hotspot.Location,
			Incidents:              e.Hotspot.Incidents,
			Priority:               string(e.Priority),
			RecommendedOfficers:    e.RecommendedOfficers,
			RecommendedTimeMinutes: e.RecommendedMinutes,
			RouteID:                e.RouteID,
		})
	}
	if len(plan.Entries) == 0 {
		writeJSON(w, http.StatusOK, resp)
		return
	}
	if r.URL.Query().Get("routes") == "1" {
		for _, rt := range plan.Routes {
			resp.Routes = append(resp.Routes, model.RouteSummary{RouteID: rt.ID, Hotspots: len(rt.Entries), Incidents: rt.Load, Minutes: rt.Minutes, OverShift: rt.OverShift})
		}
	}

	loads := make([]float64, len(plan.Routes))
	for i, rt := range plan.Routes {
		loads[i] = float64(rt.Load)
	}
	metrics.Allocations.WithLabelValues("proportional").Inc()
	metrics.ObserveRouteLoads(loads)
	over := plan.OverShiftRoutes()
	metrics.OverShiftRoutes.Add(float64(len(over)))
	for _, rt := range over {
		s.Log.Warn().Int("routeId", rt.ID).Int("minutes", rt.Minutes).Int("shiftMinutes", plan.ShiftMinutes).Msg("route exceeds patrol shift")
	}
	s.Log.Info().
		Stringer("rankedBy", patrol.ByIncidents).
		Int("hotspots", plan.Summary.RequestedHotspots).
		Int("routes", plan.Summary.RoutesCreated).
		Int("officers", plan.Summary.TotalOfficersAvailable).
		Int("loadSpread", patrol.LoadSpread(plan.Routes)).
		Msg("patrol plan built")

	p := s.getPrincipal(r)
	evt := summaryView(plan.Summary)
	evt["shift_minutes"] = plan.ShiftMinutes
	evt["over_shift_routes"] = len(over)
	s.emit(r.Context(), p.Tenant, TopicPlans, model.EventPatrolPlanCreated, evt)
	writeJSON(w, http.StatusOK, resp)
}

func summaryView(sum patrol.Summary) map[string]any {
	if sum.Message != "" {
		return map[string]any{"message": sum.Message}
	}
	return map[string]any{
		"requested_hotspots":       sum.RequestedHotspots,
		"routes_created":           sum.RoutesCreated,
		"total_officers_available": sum.TotalOfficersAvailable,
		"total_incidents":          sum.TotalIncidents,
	}
}

// AllocateUnitsHandler handles POST /api/allocate_patrols (fixed-capacity units).
// The unassigned tail is reported in X-Unassigned-Count, or in the body with ?envelope=1.
func (s *Server) AllocateUnitsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	payload, err := decodeAny(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil || payload == nil {
		detail := "empty payload"
		if err != nil {
			detail = err.Error()
		}
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", detail, r.URL.Path)
		return
	}
	req, err := parseUnitPayload(payload)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid input format", err.Error(), r.URL.Path)
		return
	}

	plan := patrol.BuildUnitPlan(patrol.UnitRequest{Hotspots: req.Hotspots, Units: req.Units, Capacity: req.Capacity})
	assignments := make([]model.UnitAssignment, 0, plan.Assigned())
	for _, rec := range plan.Records() {
		assignments = append(assignments, model.UnitAssignment{
			Unit:      rec.Unit,
			ZoneID:    rec.Hotspot.ZoneID(0),
			Latitude:  rec.Hotspot.Lat,
			Longitude: rec.Hotspot.Lng,
			RiskScore: rec.Hotspot.RiskScore,
		})
	}
	unassigned := make([]model.Zone, 0, len(plan.Unassigned))
	for _, h := range plan.Unassigned {
		unassigned = append(unassigned, model.Zone{ZoneID: h.ZoneID(0), Latitude: h.Lat, Longitude: h.Lng, RiskScore: h.RiskScore})
	}

	metrics.Allocations.WithLabelValues("capacity").Inc()
	metrics.UnassignedHotspots.Add(float64(len(unassigned)))
	log := s.Log.Info()
	if len(unassigned) > 0 {
		log = s.Log.Warn()
	}
	log.Stringer("rankedBy", patrol.ByRiskScore).Int("units", plan.UnitCount).Int("capacity", plan.Capacity).Int("assigned", len(assignments)).Int("unassigned", len(unassigned)).Msg("capacity plan built")

	p := s.getPrincipal(r)
	s.emit(r.Context(), p.Tenant, TopicPlans, model.EventCapacityPlanCreated, map[string]any{
		"units":      plan.UnitCount,
		"assigned":   len(assignments),
		"unassigned": len(unassigned),
	})

	w.Header().Set("X-Unassigned-Count", strconv.Itoa(len(unassigned)))
	if r.URL.Query().Get("envelope") == "1" {
		writeJSON(w, http.StatusOK, model.UnitEnvelope{Assignments: assignments, Unassigned: unassigned, Units: plan.UnitCount, Capacity: plan.Capacity})
		return
	}
	writeJSON(w, http.StatusOK, assignments)
}

// PredictHotspotsHandler handles POST /api/predict_hotspots?topn=N. The body is
// one incident record or a list of them; the response is the topn records by
// descending risk_score.
func (s *Server) PredictHotspotsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.Scorer == nil {
		writeProblem(w, http.StatusServiceUnavailable, "Model unavailable", "risk model is not loaded", r.URL.Path)
		return
	}
	payload, err := decodeAny(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil || payload == nil {
		detail := "empty payload"
		if err != nil {
			detail = err.Error()
		}
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", detail, r.URL.Path)
		return
	}
	var records []scoring.Record
	switch v := payload.(type) {
	case map[string]any:
		records = []scoring.Record{v}
	case []any:
		for i, item := range v {
			rec, ok := item.(map[string]any)
			if !ok {
				writeProblem(w, http.StatusBadRequest, "Invalid payload format", "record "+strconv.Itoa(i)+" is not an object", r.URL.Path)
				return
			}
			records = append(records, rec)
		}
	default:
		writeProblem(w, http.StatusBadRequest, "Invalid payload format", ErrInvalidInputFormat.Error(), r.URL.Path)
		return
	}

	out, err := scoring.RankRecords(records, s.Scorer, scoring.ParseTopN(r.URL.Query().Get("topn")))
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Scoring failed", err.Error(), r.URL.Path)
		return
	}
	metrics.Predictions.Add(float64(len(records)))
	writeJSON(w, http.StatusOK, out)
}

// decodeAny decodes a single JSON value keeping numbers as json.Number.
func decodeAny(r io.Reader) (any, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}
