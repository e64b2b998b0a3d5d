// Package realtime maintains one push connection per signed-in user and
// broadcasts typed events to whichever component subscribes. Subscribers
// attach and detach listeners; the connection itself is never theirs to
// manage.
package realtime

import "encoding/json"

// Envelope is the wire format of one inbound realtime event.
type Envelope struct {
	Op   string          `json:"op"`
	Data json.RawMessage `json:"d,omitempty"`
}

// Inbound operations pushed by the backend.
const (
	OpNotification = "notification"
	OpMessage      = "message"
)

// State names the channel lifecycle.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	// StateFailed is entered after reconnect attempts are exhausted. The
	// channel stays constructed; the app continues on the polling path.
	StateFailed State = "reconnect_failed"
	StateClosed State = "closed"
)
