package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"patrolnav/internal/model"
)

type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Postgres{db: db}, nil
}

// Ping checks connectivity; used by the readiness probe.
func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func (p *Postgres) Close() error { return p.db.Close() }

// MigrateDir applies every *.sql file in dir in lexical order. Applied files
// are recorded in schema_migrations and skipped on later runs.
func (p *Postgres) MigrateDir(dir string) error {
	ctx := context.Background()
	if _, err := p.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (name text PRIMARY KEY, applied_at timestamptz NOT NULL DEFAULT now())`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}
	files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return err
	}
	sort.Strings(files)
	for _, f := range files {
		name := filepath.Base(f)
		var seen string
		err := p.db.QueryRowContext(ctx, `SELECT name FROM schema_migrations WHERE name=$1`, name).Scan(&seen)
		if err == nil {
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		body, err := os.ReadFile(f)
		if err != nil {
			return err
		}
		tx, err := p.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, string(body)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %s: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (name) VALUES ($1)`, name); err != nil {
			_ = tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}

// CreateIncidents inserts all reports in one transaction.
func (p *Postgres) CreateIncidents(ctx context.Context, tenantID string, in []model.IncidentIn) ([]model.Incident, error) {
	now := time.Now()
	out := make([]model.Incident, 0, len(in))
	for _, i := range in {
		inc, err := newIncident(tenantID, i, now)
		if err != nil {
			return nil, err
		}
		out = append(out, inc)
	}
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()
	for _, inc := range out {
		_, err := tx.ExecContext(ctx, `INSERT INTO incidents (id, tenant_id, lat, lng, location, type, severity, occurred_at, created_at)
            VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			inc.ID, tenantID, inc.Lat, inc.Lng, nullIfEmpty(inc.Location), nullIfEmpty(inc.Type), inc.Severity, inc.OccurredAt, inc.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("insert incident: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Postgres) ListIncidents(ctx context.Context, tenantID string, since time.Time, cursor string, limit int) ([]model.Incident, string, error) {
	limit = pageSize(limit)
	q := `SELECT id::text, lat, lng, COALESCE(location,''), COALESCE(type,''), severity, occurred_at, created_at FROM incidents WHERE tenant_id=$1`
	args := []any{tenantID}
	if !since.IsZero() {
		args = append(args, since)
		q += fmt.Sprintf(` AND occurred_at >= $%d`, len(args))
	}
	if cursor != "" {
		args = append(args, cursor)
		q += fmt.Sprintf(` AND (created_at, id) > (SELECT created_at, id FROM incidents WHERE id::text = $%d)`, len(args))
	}
	args = append(args, limit)
	q += fmt.Sprintf(` ORDER BY created_at, id LIMIT $%d`, len(args))
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	out := []model.Incident{}
	for rows.Next() {
		inc := model.Incident{TenantID: tenantID}
		if err := rows.Scan(&inc.ID, &inc.Lat, &inc.Lng, &inc.Location, &inc.Type, &inc.Severity, &inc.OccurredAt, &inc.CreatedAt); err != nil {
			return nil, "", err
		}
		out = append(out, inc)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}
	next := ""
	if len(out) == limit {
		next = out[len(out)-1].ID
	}
	return out, next, nil
}

func (p *Postgres) CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
	id := uuid.New().String()
	ev, _ := json.Marshal(req.Events)
	_, err := p.db.ExecContext(ctx, `INSERT INTO subscriptions (id, tenant_id, url, events, secret) VALUES ($1,$2,$3,$4,$5)`, id, req.TenantID, req.URL, ev, req.Secret)
	if err != nil {
		return model.Subscription{}, err
	}
	return model.Subscription{ID: id, TenantID: req.TenantID, URL: req.URL, Events: req.Events, Secret: req.Secret}, nil
}

func (p *Postgres) GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error) {
	filter, _ := json.Marshal([]string{eventType})
	rows, err := p.db.QueryContext(ctx, `SELECT id::text, url, secret, events FROM subscriptions WHERE tenant_id=$1 AND events @> $2::jsonb`, tenantID, string(filter))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSubscriptions(rows, tenantID)
}

func (p *Postgres) ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]model.Subscription, string, error) {
	limit = pageSize(limit)
	var rows *sql.Rows
	var err error
	if cursor != "" {
		rows, err = p.db.QueryContext(ctx, `SELECT id::text, url, secret, events FROM subscriptions WHERE tenant_id=$1 AND id::text > $2 ORDER BY id LIMIT $3`, tenantID, cursor, limit)
	} else {
		rows, err = p.db.QueryContext(ctx, `SELECT id::text, url, secret, events FROM subscriptions WHERE tenant_id=$1 ORDER BY id LIMIT $2`, tenantID, limit)
	}
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	out, err := scanSubscriptions(rows, tenantID)
	if err != nil {
		return nil, "", err
	}
	next := ""
	if len(out) == limit {
		next = out[len(out)-1].ID
	}
	return out, next, nil
}

func scanSubscriptions(rows *sql.Rows, tenantID string) ([]model.Subscription, error) {
	out := []model.Subscription{}
	for rows.Next() {
		var s model.Subscription
		var secret sql.NullString
		var ev []byte
		if err := rows.Scan(&s.ID, &s.URL, &secret, &ev); err != nil {
			return nil, err
		}
		s.TenantID = tenantID
		s.Secret = secret.String
		_ = json.Unmarshal(ev, &s.Events)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *Postgres) DeleteSubscription(ctx context.Context, tenantID, id string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE tenant_id=$1 AND id::text=$2`, tenantID, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// Webhook deliveries
func (p *Postgres) EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
	id := uuid.New().String()
	dk := computeDedupKey(payload)
	_, err := p.db.ExecContext(ctx, `INSERT INTO webhook_deliveries (id, tenant_id, subscription_id, event_type, url, secret, payload, status, attempts, next_attempt_at, dedup_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,'pending',0,now(),$8)
        ON CONFLICT (tenant_id, event_type, url, dedup_key) DO NOTHING`, id, tenantID, nullIfEmpty(subscriptionID), eventType, url, nullIfEmpty(secret), payload, dk)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (p *Postgres) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id::text, tenant_id, COALESCE(subscription_id::text,''), event_type, url, COALESCE(secret,''), payload, status, attempts
        FROM webhook_deliveries WHERE status IN ('pending','retry') AND next_attempt_at <= now() ORDER BY next_attempt_at ASC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []WebhookDelivery{}
	for rows.Next() {
		var d WebhookDelivery
		if err := rows.Scan(&d.ID, &d.TenantID, &d.SubscriptionID, &d.EventType, &d.URL, &d.Secret, &d.Payload, &d.Status, &d.Attempts); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (p *Postgres) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
	if success {
		_, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='delivered', delivered_at=now(), updated_at=now(), response_code=$2, latency_ms=$3 WHERE id=$1`, id, responseCode, latencyMs)
		return err
	}
	if nextAttemptAt == nil {
		t := time.Now().Add(time.Minute)
		nextAttemptAt = &t
	}
	_, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='retry', last_error=$2, next_attempt_at=$3, updated_at=now(), response_code=$4, latency_ms=$5 WHERE id=$1`,
		id, nullIfEmpty(lastError), *nextAttemptAt, responseCode, latencyMs)
	return err
}

// FailWebhookDelivery marks the delivery failed and copies it into the dead-letter table.
func (p *Postgres) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, `UPDATE webhook_deliveries SET status='failed', last_error=$2, updated_at=now(), response_code=$3, latency_ms=$4 WHERE id=$1`, id, nullIfEmpty(lastError), responseCode, latencyMs); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO webhook_dlq (id, tenant_id, delivery_id, subscription_id, event_type, url, secret, payload, attempts, last_error, response_code, latency_ms)
        SELECT $2, tenant_id, id, subscription_id, event_type, url, secret, payload, attempts+1, $3, $4, $5 FROM webhook_deliveries WHERE id=$1`,
		id, uuid.New().String(), nullIfEmpty(lastError), responseCode, latencyMs)
	if err != nil {
		return err
	}
	return tx.Commit()
}

func (p *Postgres) ListWebhookDeliveries(ctx context.Context, tenantID, status, cursor string, limit int) ([]map[string]any, string, error) {
	limit = pageSize(limit)
	q := `SELECT id::text, event_type, status, attempts, next_attempt_at, COALESCE(last_error,''), url FROM webhook_deliveries WHERE tenant_id=$1`
	args := []any{tenantID}
	if status != "" {
		args = append(args, status)
		q += fmt.Sprintf(` AND status=$%d`, len(args))
	}
	if cursor != "" {
		args = append(args, cursor)
		q += fmt.Sprintf(` AND id::text > $%d`, len(args))
	}
	args = append(args, limit)
	q += fmt.Sprintf(` ORDER BY id LIMIT $%d`, len(args))
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	out := []map[string]any{}
	var last string
	for rows.Next() {
		var id, typ, st, lastErr, url string
		var attempts int
		var nextAt sql.NullTime
		if err := rows.Scan(&id, &typ, &st, &attempts, &nextAt, &lastErr, &url); err != nil {
			return nil, "", err
		}
		m := map[string]any{"id": id, "eventType": typ, "status": st, "attempts": attempts, "url": url}
		if nextAt.Valid {
			m["nextAttemptAt"] = nextAt.Time
		}
		if lastErr != "" {
			m["lastError"] = lastErr
		}
		out = append(out, m)
		last = id
	}
	next := ""
	if len(out) == limit {
		next = last
	}
	return out, next, rows.Err()
}

func (p *Postgres) RetryWebhookDelivery(ctx context.Context, tenantID, id string) error {
	res, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET status='pending', next_attempt_at=now(), updated_at=now() WHERE tenant_id=$1 AND id::text=$2`, tenantID, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (p *Postgres) ListWebhookDLQ(ctx context.Context, tenantID, eventType string, olderThan time.Time, cursor string, limit int) ([]map[string]any, string, error) {
	limit = pageSize(limit)
	q := `SELECT id::text, COALESCE(delivery_id::text,''), event_type, url, COALESCE(last_error,''), attempts, created_at, COALESCE(response_code,0), COALESCE(latency_ms,0) FROM webhook_dlq WHERE tenant_id=$1`
	args := []any{tenantID}
	if eventType != "" {
		args = append(args, eventType)
		q += fmt.Sprintf(` AND event_type=$%d`, len(args))
	}
	if !olderThan.IsZero() {
		args = append(args, olderThan)
		q += fmt.Sprintf(` AND created_at < $%d`, len(args))
	}
	if cursor != "" {
		args = append(args, cursor)
		q += fmt.Sprintf(` AND id::text > $%d`, len(args))
	}
	args = append(args, limit)
	q += fmt.Sprintf(` ORDER BY id LIMIT $%d`, len(args))
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	out := []map[string]any{}
	for rows.Next() {
		var e dlqEntry
		if err := rows.Scan(&e.ID, &e.DeliveryID, &e.EventType, &e.URL, &e.LastError, &e.Attempts, &e.CreatedAt, &e.ResponseCode, &e.LatencyMs); err != nil {
			return nil, "", err
		}
		out = append(out, e.view())
	}
	next := ""
	if len(out) == limit {
		next = out[len(out)-1]["id"].(string)
	}
	return out, next, rows.Err()
}

func (p *Postgres) RequeueWebhookDLQ(ctx context.Context, tenantID, id string) error {
	var subID, et, url, secret string
	var payload []byte
	err := p.db.QueryRowContext(ctx, `SELECT COALESCE(subscription_id::text,''), event_type, url, COALESCE(secret,''), payload FROM webhook_dlq WHERE tenant_id=$1 AND id::text=$2`, tenantID, id).
		Scan(&subID, &et, &url, &secret, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	// The failed delivery still holds the dedup key; clear it so the requeued copy is accepted.
	if _, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET dedup_key=NULL WHERE tenant_id=$1 AND id=(SELECT delivery_id FROM webhook_dlq WHERE id::text=$2)`, tenantID, id); err != nil {
		return err
	}
	if _, err := p.EnqueueWebhook(ctx, tenantID, subID, et, url, secret, payload); err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, `DELETE FROM webhook_dlq WHERE tenant_id=$1 AND id::text=$2`, tenantID, id)
	return err
}

// computeDedupKey uses the event id when the payload carries one, else a short content hash.
func computeDedupKey(payload []byte) string {
	var m map[string]any
	if json.Unmarshal(payload, &m) == nil {
		if v, ok := m["id"].(string); ok && v != "" {
			return v
		}
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:8])
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullIfEmpty(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}
