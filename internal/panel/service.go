package panel

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/factory-portal/internal/backend"
	"github.com/spec-kit/factory-portal/internal/config"
	"github.com/spec-kit/factory-portal/internal/domain"
	"github.com/spec-kit/factory-portal/internal/events"
)

// Service reconciles notification and message state per user from two data
// paths: rate-limited REST refreshes and realtime push events.
type Service struct {
	backend backend.Client
	logger  *zap.Logger
	window  time.Duration
	now     func() time.Time

	mu     sync.Mutex
	panels map[string]*userPanel
}

// NewService builds the service.
func NewService(client backend.Client, cfg config.PanelConfig, logger *zap.Logger) *Service {
	return &Service{
		backend: client,
		logger:  logger,
		window:  cfg.RefreshCooldown(),
		now:     time.Now,
		panels:  make(map[string]*userPanel),
	}
}

// RegisterHandlers subscribes the service to realtime events.
func (s *Service) RegisterHandlers(dispatcher events.Dispatcher) {
	dispatcher.Subscribe(events.EventNotificationReceived, s.handleNotificationReceived)
	dispatcher.Subscribe(events.EventMessageReceived, s.handleMessageReceived)
	dispatcher.Subscribe(events.EventRealtimeStateChanged, s.handleRealtimeStateChanged)
}

func (s *Service) panel(userID string) *userPanel {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.panels[userID]
	if !ok {
		p = newUserPanel(s.window)
		s.panels[userID] = p
	}
	return p
}

// Forget drops a user's panel state on logout.
func (s *Service) Forget(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.panels, userID)
}

// RefreshNotifications fetches the notification list unless the cool-down
// window is still open, in which case the trigger is silently dropped. A
// failed fetch resets the collection and counter rather than leaving stale
// data beside a wrong count.
func (s *Service) RefreshNotifications(ctx context.Context, sess *domain.Session) error {
	p := s.panel(sess.UserID)
	if !p.notificationsCooldown.allow(s.now()) {
		return nil
	}
	return s.fetchNotifications(ctx, sess, p)
}

func (s *Service) fetchNotifications(ctx context.Context, sess *domain.Session, p *userPanel) error {
	items, err := s.backend.Notifications(ctx, sess.Token)

	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		p.notifications = nil
		p.unreadNotifications = 0
		return err
	}

	kept := make([]domain.Notification, 0, len(items))
	unread := 0
	for _, item := range items {
		if item.ID == "" {
			s.logger.Warn("notification without id in fetch payload, dropped",
				zap.String("user_id", sess.UserID))
			continue
		}
		if !item.Read {
			unread++
		}
		kept = append(kept, item)
	}
	p.notifications = kept
	p.unreadNotifications = unread
	return nil
}

// RefreshMessages fetches the message inbox under the same cool-down policy.
func (s *Service) RefreshMessages(ctx context.Context, sess *domain.Session) error {
	p := s.panel(sess.UserID)
	if !p.messagesCooldown.allow(s.now()) {
		return nil
	}
	return s.fetchMessages(ctx, sess, p)
}

func (s *Service) fetchMessages(ctx context.Context, sess *domain.Session, p *userPanel) error {
	items, err := s.backend.Messages(ctx, sess.Token)

	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		p.messages = nil
		p.unreadMessages = 0
		return err
	}

	kept := make([]domain.Message, 0, len(items))
	unread := 0
	for _, item := range items {
		if item.ID == "" {
			s.logger.Warn("message without id in fetch payload, dropped",
				zap.String("user_id", sess.UserID))
			continue
		}
		if item.Unread {
			unread++
		}
		kept = append(kept, item)
	}
	p.messages = kept
	p.unreadMessages = unread
	return nil
}

// RefreshUsers fetches the chat partner directory under the cool-down policy.
func (s *Service) RefreshUsers(ctx context.Context, sess *domain.Session) error {
	p := s.panel(sess.UserID)
	if !p.usersCooldown.allow(s.now()) {
		return nil
	}
	items, err := s.backend.SearchUsers(ctx, sess.Token, "")

	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		p.users = nil
		return err
	}
	p.users = items
	return nil
}

// MarkNotificationRead updates one notification in place after the backend
// accepts the change. No refetch; counters never drop below zero; repeated
// calls are idempotent.
func (s *Service) MarkNotificationRead(ctx context.Context, sess *domain.Session, id string) error {
	if id == "" {
		s.logger.Warn("mark notification read called without id",
			zap.String("user_id", sess.UserID))
		return nil
	}
	if err := s.backend.MarkNotificationRead(ctx, sess.Token, id); err != nil {
		return err
	}

	p := s.panel(sess.UserID)
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.notifications {
		if p.notifications[i].ID != id {
			continue
		}
		if !p.notifications[i].Read {
			p.notifications[i].Read = true
			if p.unreadNotifications > 0 {
				p.unreadNotifications--
			}
		}
		break
	}
	return nil
}

// MarkMessageRead mirrors MarkNotificationRead for the message inbox.
func (s *Service) MarkMessageRead(ctx context.Context, sess *domain.Session, id string) error {
	if id == "" {
		s.logger.Warn("mark message read called without id",
			zap.String("user_id", sess.UserID))
		return nil
	}
	if err := s.backend.MarkMessageRead(ctx, sess.Token, id); err != nil {
		return err
	}

	p := s.panel(sess.UserID)
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.messages {
		if p.messages[i].ID != id {
			continue
		}
		if p.messages[i].Unread {
			p.messages[i].Unread = false
			if p.unreadMessages > 0 {
				p.unreadMessages--
			}
		}
		break
	}
	return nil
}

// OpenConversation sets the active chat partner, loads the scoped history
// and clears any in-progress search.
func (s *Service) OpenConversation(ctx context.Context, sess *domain.Session, partnerID string) error {
	if partnerID == "" {
		return nil
	}
	history, err := s.backend.ChatHistory(ctx, sess.Token, partnerID)

	p := s.panel(sess.UserID)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.searchResults = nil
	if err != nil {
		p.activePartnerID = ""
		p.chatHistory = nil
		return err
	}
	p.activePartnerID = partnerID
	p.chatHistory = history
	return nil
}

// SendMessage posts a message and then refreshes both the chat history and
// the inbox. Both refreshes are required: the two lists are independent and
// neither is derived from the other. Empty bodies and missing partners are
// no-ops with no network call.
func (s *Service) SendMessage(ctx context.Context, sess *domain.Session, partnerID, body string) error {
	if partnerID == "" || strings.TrimSpace(body) == "" {
		return nil
	}
	if err := s.backend.SendMessage(ctx, sess.Token, partnerID, body); err != nil {
		return err
	}

	p := s.panel(sess.UserID)
	if history, err := s.backend.ChatHistory(ctx, sess.Token, partnerID); err == nil {
		p.mu.Lock()
		p.chatHistory = history
		p.mu.Unlock()
	} else {
		s.logger.Warn("post-send chat history refresh failed", zap.Error(err))
	}
	if err := s.fetchMessages(ctx, sess, p); err != nil {
		s.logger.Warn("post-send inbox refresh failed", zap.Error(err))
	}
	return nil
}

// SearchUsers queries the partner directory, storing results as the
// in-progress search state.
func (s *Service) SearchUsers(ctx context.Context, sess *domain.Session, query string) error {
	if strings.TrimSpace(query) == "" {
		return nil
	}
	results, err := s.backend.SearchUsers(ctx, sess.Token, query)

	p := s.panel(sess.UserID)
	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		p.searchResults = nil
		return err
	}
	p.searchResults = results
	return nil
}

// OpenPanel makes one floating surface active. Panels are mutually
// exclusive: opening one closes the others and resets search and selection.
func (s *Service) OpenPanel(userID string, kind Kind) {
	p := s.panel(userID)
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.activePanel == kind {
		p.activePanel = PanelNone
	} else {
		p.activePanel = kind
	}
	p.searchResults = nil
	p.activePartnerID = ""
	p.chatHistory = nil
}

// Snapshot returns the current view model and drains pending toasts, so each
// pushed notification surfaces at most one toast.
func (s *Service) Snapshot(userID string) View {
	p := s.panel(userID)
	p.mu.Lock()
	defer p.mu.Unlock()

	view := View{
		Notifications:       append([]domain.Notification(nil), p.notifications...),
		UnreadNotifications: p.unreadNotifications,
		Messages:            append([]domain.Message(nil), p.messages...),
		UnreadMessages:      p.unreadMessages,
		Conversations:       conversationsFrom(p.messages),
		Users:               append([]domain.DirectoryUser(nil), p.users...),
		ActivePanel:         p.activePanel,
		ActivePartnerID:     p.activePartnerID,
		ChatHistory:         append([]domain.Message(nil), p.chatHistory...),
		SearchResults:       append([]domain.DirectoryUser(nil), p.searchResults...),
		Toasts:              p.pendingToasts,
		RealtimeState:       p.realtimeState,
	}
	p.pendingToasts = nil
	for i := range p.notifications {
		p.notifications[i].IsNew = false
	}
	return view
}

func (s *Service) handleNotificationReceived(_ context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.NotificationReceivedPayload)
	if !ok {
		return nil
	}

	p := s.panel(event.UserID)
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, existing := range p.notifications {
		if existing.ID == payload.Notification.ID {
			return nil
		}
	}
	p.notifications = append([]domain.Notification{payload.Notification}, p.notifications...)
	if !payload.Notification.Read {
		p.unreadNotifications++
	}
	if payload.Notification.IsNew {
		p.pendingToasts = append(p.pendingToasts, Toast{
			ID:    payload.Notification.ID,
			Title: payload.Notification.Title,
			Body:  payload.Notification.Body,
		})
	}
	return nil
}

func (s *Service) handleMessageReceived(_ context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.MessageReceivedPayload)
	if !ok {
		return nil
	}

	p := s.panel(event.UserID)
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, existing := range p.messages {
		if existing.ID == payload.Message.ID {
			return nil
		}
	}
	p.messages = append([]domain.Message{payload.Message}, p.messages...)
	if payload.Message.Unread {
		p.unreadMessages++
	}
	if p.activePartnerID != "" && payload.Message.OtherPersonID == p.activePartnerID {
		p.chatHistory = append(p.chatHistory, payload.Message)
	}
	return nil
}

func (s *Service) handleRealtimeStateChanged(_ context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.RealtimeStateChangedPayload)
	if !ok {
		return nil
	}
	p := s.panel(event.UserID)
	p.mu.Lock()
	p.realtimeState = payload.State
	p.mu.Unlock()
	return nil
}

// conversationsFrom derives per-partner summaries from the flat inbox.
func conversationsFrom(messages []domain.Message) []domain.Conversation {
	index := make(map[string]int)
	conversations := make([]domain.Conversation, 0)
	for _, msg := range messages {
		at, ok := index[msg.OtherPersonID]
		if !ok {
			index[msg.OtherPersonID] = len(conversations)
			conversations = append(conversations, domain.Conversation{
				PartnerID:   msg.OtherPersonID,
				PartnerName: msg.OtherPersonName,
				PartnerRole: msg.OtherPersonRole,
				LastMessage: msg,
			})
			at = len(conversations) - 1
		}
		if msg.Time.After(conversations[at].LastMessage.Time) {
			conversations[at].LastMessage = msg
		}
		if msg.Unread {
			conversations[at].UnreadCount++
		}
	}
	return conversations
}
