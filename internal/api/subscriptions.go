package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"patrolnav/internal/model"
	"patrolnav/internal/store"
)

// SubscriptionsHandler handles POST/GET /v1/subscriptions
func (s *Server) SubscriptionsHandler(w http.ResponseWriter, r *http.Request) {
	p := s.getPrincipal(r)
	if !p.IsAdmin() {
		writeProblem(w, http.StatusForbidden, "Forbidden", "admin required", r.URL.Path)
		return
	}
	switch r.Method {
	case http.MethodPost:
		var req model.SubscriptionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		req.TenantID = p.Tenant
		if err := validateSubscription(req); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid subscription", err.Error(), r.URL.Path)
			return
		}
		sub, err := s.Store.CreateSubscription(r.Context(), req)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Create subscription failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusCreated, sub)
	case http.MethodGet:
		cursor := r.URL.Query().Get("cursor")
		limit, err := queryInt(r.URL.Query(), "limit", store.DefaultPageSize)
		if err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid limit", err.Error(), r.URL.Path)
			return
		}
		items, next, err := s.Store.ListSubscriptions(r.Context(), p.Tenant, cursor, limit)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "List subscriptions failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func validateSubscription(req model.SubscriptionRequest) error {
	u, err := url.Parse(req.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("url must be an absolute http(s) URL")
	}
	if len(req.Events) == 0 {
		return errors.New("events must not be empty")
	}
	for _, e := range req.Events {
		if !slices.Contains(model.KnownEvents, e) {
			return fmt.Errorf("unknown event %q (allowed: %s)", e, strings.Join(model.KnownEvents, ","))
		}
	}
	return nil
}

// SubscriptionByIDHandler handles DELETE /v1/subscriptions/{id}
func (s *Server) SubscriptionByIDHandler(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/subscriptions/")
	if id == "" || strings.Contains(id, "/") {
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
		return
	}
	if r.Method != http.MethodDelete {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	p := s.getPrincipal(r)
	if !p.IsAdmin() {
		writeProblem(w, http.StatusForbidden, "Forbidden", "admin required", r.URL.Path)
		return
	}
	if err := s.Store.DeleteSubscription(r.Context(), p.Tenant, id); err != nil {
		writeStoreError(w, r, "Delete subscription failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Admin: webhook deliveries list and retry
func (s *Server) WebhookDeliveriesHandler(w http.ResponseWriter, r *http.Request) {
	p := s.getPrincipal(r)
	if !p.IsAdmin() {
		writeProblem(w, http.StatusForbidden, "Forbidden", "admin required", r.URL.Path)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	limit, err := queryInt(q, "limit", store.DefaultPageSize)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid limit", err.Error(), r.URL.Path)
		return
	}
	items, next, err := s.Store.ListWebhookDeliveries(r.Context(), p.Tenant, q.Get("status"), q.Get("cursor"), limit)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "List deliveries failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
}

// WebhookDeliveryRetryHandler handles POST /v1/admin/webhook-deliveries/{id}/retry
func (s *Server) WebhookDeliveryRetryHandler(w http.ResponseWriter, r *http.Request) {
	if !strings.HasSuffix(r.URL.Path, "/retry") {
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
		return
	}
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	p := s.getPrincipal(r)
	if !p.IsAdmin() {
		writeProblem(w, http.StatusForbidden, "Forbidden", "admin required", r.URL.Path)
		return
	}
	id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/v1/admin/webhook-deliveries/"), "/retry")
	if err := s.Store.RetryWebhookDelivery(r.Context(), p.Tenant, id); err != nil {
		writeStoreError(w, r, "Retry delivery failed", err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]int{"accepted": 1})
}

// Admin: webhook DLQ list and requeue
func (s *Server) WebhookDLQHandler(w http.ResponseWriter, r *http.Request) {
	p := s.getPrincipal(r)
	if !p.IsAdmin() {
		writeProblem(w, http.StatusForbidden, "Forbidden", "admin required", r.URL.Path)
		return
	}
	if r.URL.Path == "/v1/admin/webhook-dlq" && r.Method == http.MethodGet {
		q := r.URL.Query()
		limit, err := queryInt(q, "limit", store.DefaultPageSize)
		if err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid limit", err.Error(), r.URL.Path)
			return
		}
		olderThanHours, err := queryInt(q, "olderThanHours", 0)
		if err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid olderThanHours", err.Error(), r.URL.Path)
			return
		}
		var older time.Time
		if olderThanHours > 0 {
			older = time.Now().Add(-time.Duration(olderThanHours) * time.Hour)
		}
		items, next, err := s.Store.ListWebhookDLQ(r.Context(), p.Tenant, q.Get("eventType"), older, q.Get("cursor"), limit)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "List DLQ failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
		return
	}
	if strings.HasPrefix(r.URL.Path, "/v1/admin/webhook-dlq/") && strings.HasSuffix(r.URL.Path, "/requeue") && r.Method == http.MethodPost {
		id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/v1/admin/webhook-dlq/"), "/requeue")
		if err := s.Store.RequeueWebhookDLQ(r.Context(), p.Tenant, id); err != nil {
			writeStoreError(w, r, "Requeue failed", err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]int{"accepted": 1})
		return
	}
	writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
}

func writeStoreError(w http.ResponseWriter, r *http.Request, title string, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeProblem(w, http.StatusNotFound, "Not Found", err.Error(), r.URL.Path)
		return
	}
	writeProblem(w, http.StatusInternalServerError, title, err.Error(), r.URL.Path)
}
