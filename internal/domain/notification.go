package domain

import "time"

// Notification is a single entry in the bell panel, owned by one user.
type Notification struct {
	ID    string    `json:"id"`
	Title string    `json:"title"`
	Body  string    `json:"body"`
	Time  time.Time `json:"time"`
	Read  bool      `json:"read"`
	// IsNew marks an item that arrived over the realtime channel and has not
	// yet been surfaced as a toast. Transient, never persisted.
	IsNew bool `json:"is_new,omitempty"`
}
