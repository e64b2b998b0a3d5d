package session

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/factory-portal/internal/backend"
	"github.com/spec-kit/factory-portal/internal/config"
	"github.com/spec-kit/factory-portal/internal/domain"
	"github.com/spec-kit/factory-portal/internal/persistence"
	apperrors "github.com/spec-kit/factory-portal/pkg/util"
)

// Store is the single source of truth for who is logged in and with what
// authority. Only Store operations write the persisted credential entry;
// every other component treats sessions as read-only.
type Store struct {
	backend  backend.Client
	sessions Repository
	diags    persistence.DiagnosticsStore
	logger   *zap.Logger
	ttl      time.Duration
}

// NewStore builds the store.
func NewStore(client backend.Client, sessions Repository, diags persistence.DiagnosticsStore, cfg config.SessionConfig, logger *zap.Logger) *Store {
	return &Store{
		backend:  client,
		sessions: sessions,
		diags:    diags,
		logger:   logger,
		ttl:      cfg.TTL(),
	}
}

// Login authenticates against the backend and persists the resulting
// session. On failure the error is already classified and no state mutates.
func (s *Store) Login(ctx context.Context, identifier, secret string, isUsername bool) (*domain.Session, error) {
	if strings.TrimSpace(identifier) == "" || secret == "" {
		return nil, apperrors.NewValidationError("identifier and password required", nil)
	}

	result, err := s.backend.Login(ctx, identifier, secret, isUsername)
	if err != nil {
		return nil, err
	}

	role, known := domain.ParseRole(result.User.Role)
	if !known {
		s.logger.Warn("unrecognized role from backend, using fallback",
			zap.String("role", result.User.Role),
			zap.String("user_id", result.User.ID))
	}

	now := time.Now()
	sess := &domain.Session{
		ID:        uuid.NewString(),
		UserID:    result.User.ID,
		Name:      result.User.Name,
		Email:     result.User.Email,
		Role:      role,
		Token:     result.Token,
		IssuedAt:  now,
		ExpiresAt: result.ExpiresAt,
		Confirmed: true, // login itself is identity-confirming
	}
	if sess.ExpiresAt.IsZero() {
		if meta, err := InspectToken(result.Token); err == nil {
			sess.ExpiresAt = meta.ExpiresAt
		}
	}

	if err := s.sessions.Save(ctx, sess, s.ttl); err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if err := s.diags.MarkLastLogin(ctx, sess.UserID, now); err != nil {
		s.logger.Warn("failed to record last-login marker", zap.Error(err))
	}

	s.logger.Info("session created",
		zap.String("user_id", sess.UserID),
		zap.String("role", string(sess.Role)),
		zap.String("effective_role", string(sess.EffectiveRole())))
	return sess, nil
}

// Logout clears the persisted session and the last-login marker. Subsequent
// resolves are unauthenticated immediately, no network round-trip.
func (s *Store) Logout(ctx context.Context, sessionID string) {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		s.logger.Warn("logout: session lookup failed", zap.Error(err))
	}
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		s.logger.Warn("logout: session delete failed", zap.Error(err))
	}
	if sess != nil {
		if err := s.diags.ClearLastLogin(ctx, sess.UserID); err != nil {
			s.logger.Warn("logout: last-login clear failed", zap.Error(err))
		}
		s.logger.Info("session destroyed", zap.String("user_id", sess.UserID))
	}
}

// Resolve rehydrates the session for one request. A locally expired token
// purges the entry and falls back to unauthenticated; a store failure
// degrades to unauthenticated rather than crashing the request.
func (s *Store) Resolve(ctx context.Context, sessionID string) *domain.Session {
	if sessionID == "" {
		return nil
	}
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		s.logger.Warn("session resolve degraded to unauthenticated", zap.Error(err))
		return nil
	}
	if sess == nil {
		return nil
	}
	if !sess.IsAuthenticated() {
		s.Invalidate(ctx, sess.ID)
		return nil
	}
	return sess
}

// Current resolves and, when still unconfirmed, confirms the session against
// the backend. The error return is non-nil only for inconclusive outcomes
// (backend unreachable): guards render a loading state, not a redirect.
func (s *Store) Current(ctx context.Context, sessionID string) (*domain.Session, error) {
	sess := s.Resolve(ctx, sessionID)
	if sess == nil {
		return nil, nil
	}
	if sess.Confirmed {
		return sess, nil
	}

	profile, err := s.backend.Profile(ctx, sess.Token)
	if err != nil {
		if apperrors.HasCode(err, "SESSION_EXPIRED") {
			// Definitive: the token is dead. Clear and fall back to login.
			s.Invalidate(ctx, sess.ID)
			return nil, nil
		}
		// Inconclusive: the stored session may still be valid.
		return sess, err
	}

	sess.Name = profile.Name
	sess.Email = profile.Email
	if role, known := domain.ParseRole(profile.Role); known {
		sess.Role = role
	}
	sess.Confirmed = true
	if err := s.sessions.Save(ctx, sess, s.ttl); err != nil {
		s.logger.Warn("failed to persist confirmed session", zap.Error(err))
	}
	return sess, nil
}

// Invalidate removes a session after a detected 401 or local expiry. Shared
// by every authenticated call site; never retries.
func (s *Store) Invalidate(ctx context.Context, sessionID string) {
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		s.logger.Warn("session invalidation failed", zap.Error(err))
	}
}
