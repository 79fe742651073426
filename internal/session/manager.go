package session

import (
	"errors"
	"log/slog"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/ginjaninja78/gradesum/internal/config"
	"github.com/ginjaninja78/gradesum/internal/converter"
	"github.com/ginjaninja78/gradesum/internal/logging"
	"github.com/ginjaninja78/gradesum/internal/metrics"
)

// ErrSessionNotFound is returned for an unknown, expired or malformed id.
var ErrSessionNotFound = errors.New("session not found")

// Manager creates sessions and keeps them alive while they are used.
// Sessions idle for longer than the configured TTL are evicted.
type Manager struct {
	store     *gocache.Cache
	converter *converter.Converter
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// NewManager creates a Manager. All sessions share one ingestion pipeline
// built from cfg.Ingest.
func NewManager(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *Manager {
	mgr := &Manager{
		store:     gocache.New(cfg.Session.TTL, cfg.Session.CleanupInterval),
		converter: converter.New(cfg.Ingest, logging.WithComponent(logger, "converter"), m),
		logger:    logger,
		metrics:   m,
	}

	mgr.store.OnEvicted(func(id string, _ interface{}) {
		mgr.metrics.SessionClosed()
		mgr.logger.Info("session closed", slog.String("session", id))
	})

	return mgr
}

// Create starts a new empty session.
func (m *Manager) Create() *Session {
	id := uuid.NewString()
	s := New(id, m.converter, m.logger, m.metrics)

	m.store.Set(id, s, gocache.DefaultExpiration)
	m.metrics.SessionOpened()
	m.logger.Info("session opened", slog.String("session", id))

	return s
}

// Get returns the session with the given id and extends its lifetime.
func (m *Manager) Get(id string) (*Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrSessionNotFound
	}

	v, ok := m.store.Get(id)
	if !ok {
		return nil, ErrSessionNotFound
	}

	// Replace fails if the janitor evicted the session after the lookup.
	s := v.(*Session)
	if err := m.store.Replace(id, s, gocache.DefaultExpiration); err != nil {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Delete ends a session.
func (m *Manager) Delete(id string) error {
	if _, ok := m.store.Get(id); !ok {
		return ErrSessionNotFound
	}
	m.store.Delete(id)
	return nil
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	return m.store.ItemCount()
}
