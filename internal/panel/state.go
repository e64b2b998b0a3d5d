package panel

import (
	"sync"
	"time"

	"github.com/spec-kit/factory-portal/internal/domain"
)

// Kind names one floating panel surface.
type Kind string

const (
	PanelNone          Kind = ""
	PanelProfile       Kind = "profile"
	PanelNotifications Kind = "notifications"
	PanelMessages      Kind = "messages"
)

// Toast is one transient notification surfaced exactly once.
type Toast struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Body  string `json:"body"`
}

// userPanel holds one user's reconciled view model. Data arrives from two
// sources, periodic fetch and realtime push, and all mutation happens under
// the mutex so interleaved responses stay consistent.
type userPanel struct {
	mu sync.Mutex

	notifications       []domain.Notification
	unreadNotifications int
	messages            []domain.Message
	unreadMessages      int
	users               []domain.DirectoryUser

	activePanel     Kind
	activePartnerID string
	chatHistory     []domain.Message
	searchResults   []domain.DirectoryUser

	pendingToasts []Toast
	realtimeState string

	notificationsCooldown *cooldown
	messagesCooldown      *cooldown
	usersCooldown         *cooldown
}

func newUserPanel(window time.Duration) *userPanel {
	return &userPanel{
		notificationsCooldown: newCooldown(window),
		messagesCooldown:      newCooldown(window),
		usersCooldown:         newCooldown(window),
	}
}

// View is the JSON snapshot consumed by the navigation shell.
type View struct {
	Notifications       []domain.Notification  `json:"notifications"`
	UnreadNotifications int                    `json:"unread_notifications"`
	Messages            []domain.Message       `json:"messages"`
	UnreadMessages      int                    `json:"unread_messages"`
	Conversations       []domain.Conversation  `json:"conversations"`
	Users               []domain.DirectoryUser `json:"users"`
	ActivePanel         Kind                   `json:"active_panel"`
	ActivePartnerID     string                 `json:"active_partner_id,omitempty"`
	ChatHistory         []domain.Message       `json:"chat_history,omitempty"`
	SearchResults       []domain.DirectoryUser `json:"search_results,omitempty"`
	Toasts              []Toast                `json:"toasts,omitempty"`
	RealtimeState       string                 `json:"realtime_state"`
}
