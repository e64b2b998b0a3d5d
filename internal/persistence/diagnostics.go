package persistence

import (
	"context"
	"encoding/json"
	"strconv"
	"time"
)

const (
	errorLogKey  = "portal:diag:errors"
	errorLogCap  = 10
	lastLoginKey = "portal:last_login:"
	renderAvgKey = "portal:metrics:render_avg_ms"
	lastLoginTTL = 30 * 24 * time.Hour
)

// ErrorEntry is one record in the capped uncaught-error log.
type ErrorEntry struct {
	Time    time.Time `json:"time"`
	Path    string    `json:"path"`
	Message string    `json:"message"`
}

// DiagnosticsStore persists the small operational state the portal keeps for
// itself: a most-recent-10 log of uncaught errors, per-user last-login
// markers and the render-time metric. Never contains secrets.
type DiagnosticsStore interface {
	RecordUncaughtError(ctx context.Context, entry ErrorEntry) error
	RecentErrors(ctx context.Context) ([]ErrorEntry, error)
	MarkLastLogin(ctx context.Context, userID string, at time.Time) error
	LastLogin(ctx context.Context, userID string) (time.Time, bool)
	RecordRenderTime(ctx context.Context, avg time.Duration) error
	ClearLastLogin(ctx context.Context, userID string) error
}

// RedisDiagnostics implements DiagnosticsStore on the shared Redis client.
type RedisDiagnostics struct {
	redis *Redis
}

// NewRedisDiagnostics builds the store.
func NewRedisDiagnostics(r *Redis) *RedisDiagnostics {
	return &RedisDiagnostics{redis: r}
}

// RecordUncaughtError prepends the entry and trims the log to its cap.
func (d *RedisDiagnostics) RecordUncaughtError(ctx context.Context, entry ErrorEntry) error {
	encoded, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	pipe := d.redis.Client.TxPipeline()
	pipe.LPush(ctx, errorLogKey, encoded)
	pipe.LTrim(ctx, errorLogKey, 0, errorLogCap-1)
	_, err = pipe.Exec(ctx)
	return err
}

// RecentErrors returns the capped log, newest first.
func (d *RedisDiagnostics) RecentErrors(ctx context.Context) ([]ErrorEntry, error) {
	raw, err := d.redis.Client.LRange(ctx, errorLogKey, 0, errorLogCap-1).Result()
	if err != nil {
		return nil, err
	}
	entries := make([]ErrorEntry, 0, len(raw))
	for _, item := range raw {
		var entry ErrorEntry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// MarkLastLogin stores the marker that login UX reads on the next visit.
func (d *RedisDiagnostics) MarkLastLogin(ctx context.Context, userID string, at time.Time) error {
	return d.redis.Client.Set(ctx, lastLoginKey+userID, at.UTC().Format(time.RFC3339), lastLoginTTL).Err()
}

// LastLogin reads the marker; ok is false when none is stored.
func (d *RedisDiagnostics) LastLogin(ctx context.Context, userID string) (time.Time, bool) {
	raw, err := d.redis.Client.Get(ctx, lastLoginKey+userID).Result()
	if err != nil {
		return time.Time{}, false
	}
	at, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false
	}
	return at, true
}

// ClearLastLogin removes the marker on logout.
func (d *RedisDiagnostics) ClearLastLogin(ctx context.Context, userID string) error {
	return d.redis.Client.Del(ctx, lastLoginKey+userID).Err()
}

// RecordRenderTime persists the current mean request duration.
func (d *RedisDiagnostics) RecordRenderTime(ctx context.Context, avg time.Duration) error {
	return d.redis.Client.Set(ctx, renderAvgKey, strconv.FormatInt(avg.Milliseconds(), 10), 0).Err()
}
