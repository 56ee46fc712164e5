package webhooks

import (
	"bytes"
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"patrolnav/internal/metrics"
	"patrolnav/internal/store"
)

// Worker polls the store for due deliveries and posts them to subscribers.
type Worker struct {
	Store       store.Store
	HTTP        *http.Client
	MaxAttempts int
	Interval    time.Duration
	Log         zerolog.Logger

	stop chan struct{}
	done sync.WaitGroup
}

func NewWorker(s store.Store, maxAttempts int, interval time.Duration, log zerolog.Logger) *Worker {
	if maxAttempts < 1 {
		maxAttempts = 10
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &Worker{
		Store:       s,
		HTTP:        &http.Client{Timeout: 5 * time.Second},
		MaxAttempts: maxAttempts,
		Interval:    interval,
		Log:         log.With().Str("component", "webhook-worker").Logger(),
		stop:        make(chan struct{}),
	}
}

func (w *Worker) Start() {
	w.done.Add(1)
	go func() {
		defer w.done.Done()
		ticker := time.NewTicker(w.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-w.stop:
				return
			case <-ticker.C:
				w.processOnce()
			}
		}
	}()
}

// Stop ends the polling loop and waits for the in-flight batch.
func (w *Worker) Stop() {
	close(w.stop)
	w.done.Wait()
}

func (w *Worker) processOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	items, err := w.Store.FetchDueWebhookDeliveries(ctx, 50)
	if err != nil {
		w.Log.Error().Err(err).Msg("fetch due deliveries")
		return
	}
	for _, it := range items {
		w.deliver(ctx, it)
	}
}

func (w *Worker) deliver(ctx context.Context, it store.WebhookDelivery) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, it.URL, bytes.NewReader(it.Payload))
	if err != nil {
		_ = w.Store.FailWebhookDelivery(ctx, it.ID, err.Error(), 0, 0)
		w.record(it.EventType, store.DeliveryFailed, 0)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Event-Type", it.EventType)
	req.Header.Set("X-Delivery-Id", it.ID)
	if it.Secret != "" {
		req.Header.Set(SignatureHeader, SignHMAC(it.Secret, it.Payload))
	}

	start := time.Now()
	resp, err := w.HTTP.Do(req)
	latency := int(time.Since(start).Milliseconds())
	code := 0
	success := false
	lastErr := ""
	if err != nil {
		lastErr = err.Error()
	} else {
		code = resp.StatusCode
		_ = resp.Body.Close()
		success = code >= 200 && code < 300
		if !success {
			lastErr = "HTTP " + strconv.Itoa(code)
		}
	}

	log := w.Log.With().Str("delivery", it.ID).Str("event", it.EventType).Int("code", code).Int("attempt", it.Attempts+1).Logger()
	switch {
	case success:
		_ = w.Store.MarkWebhookDelivery(ctx, it.ID, true, nil, "", code, latency)
		w.record(it.EventType, store.DeliveryDelivered, latency)
		log.Debug().Int("latencyMs", latency).Msg("webhook delivered")
	case it.Attempts+1 >= w.MaxAttempts:
		_ = w.Store.FailWebhookDelivery(ctx, it.ID, lastErr, code, latency)
		w.record(it.EventType, store.DeliveryFailed, latency)
		log.Warn().Str("error", lastErr).Msg("webhook moved to dead-letter queue")
	default:
		next := time.Now().Add(nextBackoff(it.Attempts))
		_ = w.Store.MarkWebhookDelivery(ctx, it.ID, false, &next, lastErr, code, latency)
		w.record(it.EventType, store.DeliveryRetry, latency)
		log.Info().Str("error", lastErr).Time("nextAttemptAt", next).Msg("webhook retry scheduled")
	}
}

func (w *Worker) record(eventType, status string, latencyMs int) {
	metrics.WebhookDeliveries.WithLabelValues(eventType, status).Inc()
	metrics.WebhookLatency.WithLabelValues(eventType, status).Observe(float64(latencyMs))
}

// nextBackoff doubles from one second per attempt, capped at one hour.
func nextBackoff(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	if attempts > 12 {
		attempts = 12
	}
	return min(time.Second*time.Duration(1<<attempts), time.Hour)
}
