package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/factory-portal/internal/domain"
	apperrors "github.com/spec-kit/factory-portal/pkg/util"
)

// PanelRefresher is the slice of the panel service the poller drives.
type PanelRefresher interface {
	RefreshNotifications(ctx context.Context, sess *domain.Session) error
	RefreshMessages(ctx context.Context, sess *domain.Session) error
}

// RefreshPoller drives periodic panel refreshes per active session. It is
// the fallback data path: when the realtime channel is degraded, panels stay
// populated from here. Failures degrade silently in the UI but are logged.
type RefreshPoller struct {
	panels   PanelRefresher
	interval time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// NewRefreshPoller builds the poller.
func NewRefreshPoller(panels PanelRefresher, interval time.Duration, logger *zap.Logger) *RefreshPoller {
	return &RefreshPoller{
		panels:   panels,
		interval: interval,
		logger:   logger,
		cancels:  make(map[string]context.CancelFunc),
	}
}

// Track starts polling for the session's user. Tracking an already tracked
// user is a no-op, so shell remounts never spawn extra tickers.
func (w *RefreshPoller) Track(sess *domain.Session) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.cancels[sess.UserID]; ok {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	w.cancels[sess.UserID] = cancel
	go w.loop(ctx, sess)
}

// Forget stops polling for a user on logout.
func (w *RefreshPoller) Forget(userID string) {
	w.mu.Lock()
	cancel, ok := w.cancels[userID]
	delete(w.cancels, userID)
	w.mu.Unlock()
	if ok {
		cancel()
	}
}

// Shutdown stops every poll loop.
func (w *RefreshPoller) Shutdown() {
	w.mu.Lock()
	for userID, cancel := range w.cancels {
		cancel()
		delete(w.cancels, userID)
	}
	w.mu.Unlock()
}

func (w *RefreshPoller) loop(ctx context.Context, sess *domain.Session) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.panels.RefreshNotifications(ctx, sess); err != nil {
				if apperrors.HasCode(err, "SESSION_EXPIRED") {
					w.logger.Info("poller stopping, session expired",
						zap.String("user_id", sess.UserID))
					w.Forget(sess.UserID)
					return
				}
				w.logger.Warn("background notification refresh failed", zap.Error(err))
			}
			if err := w.panels.RefreshMessages(ctx, sess); err != nil {
				w.logger.Warn("background message refresh failed", zap.Error(err))
			}
		}
	}
}
