//go:build postgres_integration

package store

import (
	"os"
	"testing"
	"time"

	"patrolnav/internal/model"
)

func TestPostgresConnectivityAndMigrate(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping integration test")
	}
	p, err := NewPostgres(dsn)
	if err != nil {
		t.Fatalf("NewPostgres: %v", err)
	}
	defer p.Close()
	if err := p.Ping(t.Context()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if err := p.MigrateDir("../../db/migrations"); err != nil {
		t.Fatalf("MigrateDir: %v", err)
	}
	lat, lng := 12.93, 77.61
	tenant := "t_it_" + time.Now().Format("150405.000")
	created, err := p.CreateIncidents(t.Context(), tenant, []model.IncidentIn{{Lat: &lat, Lng: &lng, Type: "theft", Severity: 2}})
	if err != nil || len(created) != 1 {
		t.Fatalf("CreateIncidents: %v (%d)", err, len(created))
	}
	items, _, err := p.ListIncidents(t.Context(), tenant, time.Time{}, "", 10)
	if err != nil || len(items) != 1 {
		t.Fatalf("ListIncidents: %v (%d)", err, len(items))
	}
}
