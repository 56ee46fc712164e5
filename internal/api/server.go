package api

import (
	"context"
	"errors"
	"os"

	"github.com/rs/zerolog"

	"patrolnav/internal/auth"
	"patrolnav/internal/config"
	"patrolnav/internal/scoring"
	"patrolnav/internal/store"
	"patrolnav/internal/webhooks"
)

type Server struct {
	Cfg    *config.Config
	Log    zerolog.Logger
	Store  store.Store
	Pub    *webhooks.Publisher
	Auth   *auth.Verifier
	Broker EventBroker
	// Scorer is nil when no model artifact could be loaded; prediction then answers 503.
	Scorer scoring.Scorer
}

// NewServer wires the server from configuration. With no DATABASE_URL the
// in-memory store is used; with no REDIS_URL events stay in process.
func NewServer(cfg *config.Config, log zerolog.Logger) (*Server, error) {
	var s store.Store
	if cfg.DatabaseURL == "" {
		s = store.NewMemory()
	} else {
		sp, err := store.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if cfg.DBMigrate {
			if err := sp.MigrateDir(cfg.MigrationsDir); err != nil {
				log.Warn().Err(err).Str("dir", cfg.MigrationsDir).Msg("migrations failed")
			}
		}
		s = sp
	}

	var broker EventBroker = NewBroker()
	if cfg.RedisURL != "" {
		rb, err := NewRedisBroker(cfg.RedisURL, log)
		if err != nil {
			log.Warn().Err(err).Msg("redis broker unavailable, using in-process broker")
		} else {
			broker = rb
		}
	}

	srv := &Server{
		Cfg:    cfg,
		Log:    log,
		Store:  s,
		Pub:    webhooks.NewPublisher(s, log),
		Auth:   auth.NewVerifier(cfg.Auth),
		Broker: broker,
	}
	model, err := scoring.Load(cfg.ModelPath)
	switch {
	case err == nil:
		srv.Scorer = model
		log.Info().Str("model", model.Name).Int("classes", len(model.Classes)).Msg("risk model loaded")
	case errors.Is(err, os.ErrNotExist):
		log.Warn().Str("path", cfg.ModelPath).Msg("risk model not found, prediction disabled")
	default:
		log.Warn().Err(err).Str("path", cfg.ModelPath).Msg("risk model invalid, prediction disabled")
	}
	return srv, nil
}

// NewWebhookWorker creates a background worker for webhook deliveries.
func (s *Server) NewWebhookWorker() *webhooks.Worker {
	return webhooks.NewWorker(s.Store, s.Cfg.WebhookMaxAttempts, s.Cfg.WebhookInterval, s.Log)
}

// Close releases the store and broker connections.
func (s *Server) Close() {
	type closer interface{ Close() error }
	if c, ok := s.Store.(closer); ok {
		_ = c.Close()
	}
	if c, ok := s.Broker.(closer); ok {
		_ = c.Close()
	}
}

func (s *Server) emit(ctx context.Context, tenant, topic, eventType string, data map[string]any) {
	s.Broker.Publish(topic, Event{Type: eventType, Data: data})
	if _, err := s.Pub.Emit(ctx, tenant, eventType, data); err != nil {
		s.Log.Warn().Err(err).Str("event", eventType).Msg("webhook fan-out failed")
	}
}
