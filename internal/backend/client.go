package backend

import (
	"context"
	"time"

	"github.com/spec-kit/factory-portal/internal/domain"
)

// LoginResult is the identity payload returned by a successful login call.
type LoginResult struct {
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expires_at"`
	User      domain.Profile `json:"user"`
}

// BackupFile describes one server-side backup archive.
type BackupFile struct {
	Filename  string    `json:"filename"`
	SizeBytes int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
}

// Client abstracts the operations backend REST API. The portal owns no data
// of its own; every collection it renders comes through this interface.
type Client interface {
	Login(ctx context.Context, identifier, secret string, isUsername bool) (*LoginResult, error)
	Profile(ctx context.Context, token string) (*domain.Profile, error)

	Notifications(ctx context.Context, token string) ([]domain.Notification, error)
	MarkNotificationRead(ctx context.Context, token, id string) error

	Messages(ctx context.Context, token string) ([]domain.Message, error)
	ChatHistory(ctx context.Context, token, partnerID string) ([]domain.Message, error)
	SendMessage(ctx context.Context, token, partnerID, body string) error
	MarkMessageRead(ctx context.Context, token, id string) error
	SearchUsers(ctx context.Context, token, query string) ([]domain.DirectoryUser, error)

	ListBackups(ctx context.Context, token string) ([]BackupFile, error)
	CreateBackup(ctx context.Context, token string) (*BackupFile, error)
	DownloadBackup(ctx context.Context, token, filename string) ([]byte, error)
	DeleteBackup(ctx context.Context, token, filename string) error
}
