package realtime

import (
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/factory-portal/internal/config"
	"github.com/spec-kit/factory-portal/internal/domain"
	"github.com/spec-kit/factory-portal/internal/events"
)

// Manager enforces the singleton invariant: exactly one upstream channel per
// user for the lifetime of their session, no matter how many tabs open or
// how often the navigation shell remounts. Diagnostic handling is wired into
// the channel at construction, so repeated acquisition cannot attach it
// twice.
type Manager struct {
	cfg        config.RealtimeConfig
	dispatcher events.Dispatcher
	logger     *zap.Logger

	mu       sync.Mutex
	channels map[string]*Channel
}

// NewManager builds the manager.
func NewManager(cfg config.RealtimeConfig, dispatcher events.Dispatcher, logger *zap.Logger) *Manager {
	return &Manager{
		cfg:        cfg,
		dispatcher: dispatcher,
		logger:     logger,
		channels:   make(map[string]*Channel),
	}
}

// Acquire returns the user's channel, constructing and starting it on first
// call. Later calls reuse the existing connection; they also supply the
// token in case the channel was first built without one.
func (m *Manager) Acquire(sess *domain.Session) *Channel {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ch, ok := m.channels[sess.UserID]; ok {
		ch.SupplyToken(sess.Token)
		return ch
	}

	ch := newChannel(m.cfg.URL, sess.UserID, sess.Token,
		m.cfg.ReconnectMaxAttempts, m.cfg.ReconnectBackoffCap(),
		m.dispatcher, m.logger)
	m.channels[sess.UserID] = ch
	go ch.run()
	m.logger.Info("realtime channel created", zap.String("user_id", sess.UserID))
	return ch
}

// Lookup returns the user's channel without constructing one.
func (m *Manager) Lookup(userID string) (*Channel, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.channels[userID]
	return ch, ok
}

// Release tears down the user's channel on logout.
func (m *Manager) Release(userID string) {
	m.mu.Lock()
	ch, ok := m.channels[userID]
	delete(m.channels, userID)
	m.mu.Unlock()

	if ok {
		ch.Close()
		m.logger.Info("realtime channel released", zap.String("user_id", userID))
	}
}

// Shutdown closes every channel at application shutdown.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	channels := make([]*Channel, 0, len(m.channels))
	for _, ch := range m.channels {
		channels = append(channels, ch)
	}
	m.channels = make(map[string]*Channel)
	m.mu.Unlock()

	for _, ch := range channels {
		ch.Close()
	}
}
