package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/factory-portal/internal/config"
	"github.com/spec-kit/factory-portal/internal/domain"
	apperrors "github.com/spec-kit/factory-portal/pkg/util"
)

// HTTPClient implements Client against the operations backend over REST.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
	logger     *zap.Logger
}

// NewHTTPClient builds a client with the configured fixed call timeout.
func NewHTTPClient(cfg config.BackendConfig, logger *zap.Logger) *HTTPClient {
	maxRetries := cfg.RetryMaxAttempts
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &HTTPClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout()},
		maxRetries: maxRetries,
		logger:     logger,
	}
}

type loginRequest struct {
	Identifier string `json:"identifier"`
	Secret     string `json:"password"`
	IsUsername bool   `json:"is_username"`
}

type sendMessageRequest struct {
	ReceiverID string `json:"receiver_id"`
	Body       string `json:"body"`
}

// Login authenticates against POST /api/auth/login. Failures are classified
// so the session layer can report them without inspecting HTTP details.
func (c *HTTPClient) Login(ctx context.Context, identifier, secret string, isUsername bool) (*LoginResult, error) {
	var result LoginResult
	err := c.do(ctx, http.MethodPost, "/api/auth/login", "", loginRequest{
		Identifier: identifier,
		Secret:     secret,
		IsUsername: isUsername,
	}, &result)
	if err != nil {
		if apperrors.HasCode(err, "SESSION_EXPIRED") {
			// A 401 on the login endpoint means rejected credentials, not an
			// expired session.
			return nil, apperrors.NewInvalidCredentials()
		}
		if apperrors.HasCode(err, "FORBIDDEN") {
			return nil, apperrors.NewInactiveAccount()
		}
		return nil, err
	}
	return &result, nil
}

// Profile fetches the identity record for the token's owner.
func (c *HTTPClient) Profile(ctx context.Context, token string) (*domain.Profile, error) {
	var profile domain.Profile
	if err := c.do(ctx, http.MethodGet, "/api/profile", token, nil, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// Notifications lists the owner's notifications, newest first.
func (c *HTTPClient) Notifications(ctx context.Context, token string) ([]domain.Notification, error) {
	var items []domain.Notification
	if err := c.do(ctx, http.MethodGet, "/api/notifications", token, nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// MarkNotificationRead flips one notification's read flag server-side.
func (c *HTTPClient) MarkNotificationRead(ctx context.Context, token, id string) error {
	path := fmt.Sprintf("/api/notifications/%s/read", url.PathEscape(id))
	return c.do(ctx, http.MethodPatch, path, token, nil, nil)
}

// Messages lists the owner's message inbox, newest first.
func (c *HTTPClient) Messages(ctx context.Context, token string) ([]domain.Message, error) {
	var items []domain.Message
	if err := c.do(ctx, http.MethodGet, "/api/messages", token, nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// ChatHistory returns the ordered exchange with one partner.
func (c *HTTPClient) ChatHistory(ctx context.Context, token, partnerID string) ([]domain.Message, error) {
	path := fmt.Sprintf("/api/messages/chat/%s", url.PathEscape(partnerID))
	var items []domain.Message
	if err := c.do(ctx, http.MethodGet, path, token, nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// SendMessage posts a direct message to a partner.
func (c *HTTPClient) SendMessage(ctx context.Context, token, partnerID, body string) error {
	return c.do(ctx, http.MethodPost, "/api/messages/send", token, sendMessageRequest{
		ReceiverID: partnerID,
		Body:       body,
	}, nil)
}

// MarkMessageRead flips one message's unread flag server-side.
func (c *HTTPClient) MarkMessageRead(ctx context.Context, token, id string) error {
	path := fmt.Sprintf("/api/messages/%s/read", url.PathEscape(id))
	return c.do(ctx, http.MethodPatch, path, token, nil, nil)
}

// SearchUsers queries the chat partner directory.
func (c *HTTPClient) SearchUsers(ctx context.Context, token, query string) ([]domain.DirectoryUser, error) {
	path := "/api/messages/search-users?query=" + url.QueryEscape(query)
	var items []domain.DirectoryUser
	if err := c.do(ctx, http.MethodGet, path, token, nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// ListBackups enumerates server-side backup archives. Admin-only upstream.
func (c *HTTPClient) ListBackups(ctx context.Context, token string) ([]BackupFile, error) {
	var items []BackupFile
	if err := c.do(ctx, http.MethodGet, "/api/backup/list", token, nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// CreateBackup requests a new backup archive.
func (c *HTTPClient) CreateBackup(ctx context.Context, token string) (*BackupFile, error) {
	var file BackupFile
	if err := c.do(ctx, http.MethodPost, "/api/backup/create", token, nil, &file); err != nil {
		return nil, err
	}
	return &file, nil
}

// DownloadBackup streams one backup archive into memory.
func (c *HTTPClient) DownloadBackup(ctx context.Context, token, filename string) ([]byte, error) {
	path := fmt.Sprintf("/api/backup/download/%s", url.PathEscape(filename))
	req, err := c.newRequest(ctx, http.MethodGet, path, token, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.NewBackendUnavailable(err)
	}
	defer resp.Body.Close()
	if err := classifyStatus(resp); err != nil {
		return nil, err
	}
	return io.ReadAll(resp.Body)
}

// DeleteBackup removes one backup archive.
func (c *HTTPClient) DeleteBackup(ctx context.Context, token, filename string) error {
	path := fmt.Sprintf("/api/backup/delete/%s", url.PathEscape(filename))
	return c.do(ctx, http.MethodDelete, path, token, nil, nil)
}

// do executes one JSON call with the fixed client timeout. The only automatic
// retry is for 429 responses: bounded attempts, honoring Retry-After when the
// server provides it, else exponential backoff. Every other failure surfaces
// once through the normal error path.
func (c *HTTPClient) do(ctx context.Context, method, path, token string, body, out any) error {
	for attempt := 0; ; attempt++ {
		req, err := c.newRequest(ctx, method, path, token, body)
		if err != nil {
			return err
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return apperrors.NewBackendUnavailable(err)
		}

		if resp.StatusCode == http.StatusTooManyRequests && attempt < c.maxRetries-1 {
			delay := retryDelay(resp.Header.Get("Retry-After"), attempt)
			io.Copy(io.Discard, resp.Body) //nolint:errcheck
			resp.Body.Close()
			c.logger.Warn("backend rate limited, retrying",
				zap.String("path", path),
				zap.Int("attempt", attempt+1),
				zap.Duration("delay", delay))
			select {
			case <-time.After(delay):
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err = c.decode(resp, out)
		resp.Body.Close()
		return err
	}
}

func (c *HTTPClient) newRequest(ctx context.Context, method, path, token string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, apperrors.NewInternalError(err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *HTTPClient) decode(resp *http.Response, out any) error {
	if err := classifyStatus(resp); err != nil {
		return err
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body) //nolint:errcheck
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.NewDomainError("MALFORMED_PAYLOAD", "malformed backend payload", http.StatusBadGateway, nil)
	}
	return nil
}

// classifyStatus maps upstream status codes into the DomainError taxonomy.
func classifyStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized:
		return apperrors.NewSessionExpired()
	case resp.StatusCode == http.StatusForbidden:
		return apperrors.NewForbidden("insufficient backend authority")
	case resp.StatusCode == http.StatusNotFound:
		return apperrors.NewNotFound("backend resource", nil)
	case resp.StatusCode == http.StatusTooManyRequests:
		after, _ := strconv.Atoi(resp.Header.Get("Retry-After"))
		return apperrors.NewRateLimited(after)
	default:
		return apperrors.NewDomainError("BACKEND_ERROR",
			fmt.Sprintf("backend returned status %d", resp.StatusCode),
			http.StatusBadGateway, nil)
	}
}

// retryDelay honors Retry-After when present, in either the delta-seconds or
// the HTTP-date form, else doubles from 500ms.
func retryDelay(retryAfter string, attempt int) time.Duration {
	if retryAfter != "" {
		if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
		if at, err := http.ParseTime(retryAfter); err == nil {
			if d := time.Until(at); d > 0 {
				return d
			}
		}
	}
	return time.Duration(math.Pow(2, float64(attempt))) * 500 * time.Millisecond
}
