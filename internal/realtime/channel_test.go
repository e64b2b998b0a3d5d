package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/factory-portal/internal/config"
	"github.com/spec-kit/factory-portal/internal/domain"
	"github.com/spec-kit/factory-portal/internal/events"
)

// recordingDispatcher captures published events for assertion.
type recordingDispatcher struct {
	mu     sync.Mutex
	events []events.Event
}

func (d *recordingDispatcher) Publish(_ context.Context, event events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	return nil
}

func (d *recordingDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func (d *recordingDispatcher) ofType(t events.EventType) []events.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	var matched []events.Event
	for _, e := range d.events {
		if e.Type == t {
			matched = append(matched, e)
		}
	}
	return matched
}

var upgrader = websocket.Upgrader{}

// pushServer accepts one connection, sends frames, then idles until closed.
func pushServer(t *testing.T, frames []string, gotToken *string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if gotToken != nil {
			*gotToken = r.URL.Query().Get("token")
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		for _, frame := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
				return
			}
		}
		// Hold the connection open so the channel does not enter reconnect.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestChannelPublishesValidEventsOnly(t *testing.T) {
	frames := []string{
		`{"op":"notification","d":{"id":"n1","title":"Batch ready"}}`,
		`{"op":"notification","d":{"title":"no id, dropped"}}`,
		`{"op":"message","d":{"id":"m1","body":"hello"}}`,
		`{"op":"message","d":"not an object"}`,
		`{"op":"telemetry","d":{}}`,
	}
	var gotToken string
	srv := pushServer(t, frames, &gotToken)
	defer srv.Close()

	dispatcher := &recordingDispatcher{}
	ch := newChannel(wsURL(srv), "u1", "token-1", 5, 8*time.Second, dispatcher, zap.NewNop())
	go ch.run()
	defer ch.Close()

	require.Eventually(t, func() bool {
		return len(dispatcher.ofType(events.EventMessageReceived)) == 1
	}, 3*time.Second, 10*time.Millisecond)

	assert.Equal(t, "token-1", gotToken, "handshake carries the session token")

	notifications := dispatcher.ofType(events.EventNotificationReceived)
	require.Len(t, notifications, 1, "the id-less notification never reaches a collection")
	payload, ok := notifications[0].Payload.(events.NotificationReceivedPayload)
	require.True(t, ok)
	assert.Equal(t, "n1", payload.Notification.ID)
	assert.True(t, payload.Notification.IsNew, "pushed notifications are toast candidates")
	assert.Equal(t, "u1", notifications[0].UserID)

	messages := dispatcher.ofType(events.EventMessageReceived)
	require.Len(t, messages, 1)
	msgPayload, ok := messages[0].Payload.(events.MessageReceivedPayload)
	require.True(t, ok)
	assert.Equal(t, "m1", msgPayload.Message.ID)
}

func TestChannelStateTransitionsToConnected(t *testing.T) {
	srv := pushServer(t, nil, nil)
	defer srv.Close()

	dispatcher := &recordingDispatcher{}
	ch := newChannel(wsURL(srv), "u1", "token-1", 5, 8*time.Second, dispatcher, zap.NewNop())
	go ch.run()
	defer ch.Close()

	require.Eventually(t, func() bool {
		return ch.State() == StateConnected
	}, 3*time.Second, 10*time.Millisecond)

	states := dispatcher.ofType(events.EventRealtimeStateChanged)
	require.NotEmpty(t, states)
	first, ok := states[0].Payload.(events.RealtimeStateChangedPayload)
	require.True(t, ok)
	assert.Equal(t, string(StateConnecting), first.State)
}

func TestChannelGivesUpAfterBoundedAttempts(t *testing.T) {
	// A server that is immediately closed refuses every dial.
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := wsURL(srv)
	srv.Close()

	dispatcher := &recordingDispatcher{}
	ch := newChannel(url, "u1", "token-1", 2, time.Second, dispatcher, zap.NewNop())
	go ch.run()
	defer ch.Close()

	require.Eventually(t, func() bool {
		return ch.State() == StateFailed
	}, 5*time.Second, 20*time.Millisecond)

	states := dispatcher.ofType(events.EventRealtimeStateChanged)
	require.NotEmpty(t, states)
	last, ok := states[len(states)-1].Payload.(events.RealtimeStateChangedPayload)
	require.True(t, ok)
	assert.Equal(t, string(StateFailed), last.State)
	assert.Equal(t, 2, last.Attempts)
}

func TestChannelFlappingUpstreamExhaustsBudget(t *testing.T) {
	// The upstream accepts the handshake, then drops the connection right
	// away. Each accepted-then-dropped cycle must burn a reconnect attempt
	// with backoff in between, not reset the budget and re-dial in a tight
	// loop.
	var dials int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&dials, 1)
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_ = conn.Close()
	}))
	defer srv.Close()

	dispatcher := &recordingDispatcher{}
	ch := newChannel(wsURL(srv), "u1", "token-1", 2, time.Second, dispatcher, zap.NewNop())
	go ch.run()
	defer ch.Close()

	require.Eventually(t, func() bool {
		return ch.State() == StateFailed
	}, 5*time.Second, 20*time.Millisecond)
	assert.LessOrEqual(t, atomic.LoadInt32(&dials), int32(2), "dials stay within the attempt budget")
}

func TestSupplyTokenReplacesCredential(t *testing.T) {
	// Tokens seen by the upstream, one per dial.
	var mu sync.Mutex
	var tokens []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		tokens = append(tokens, r.URL.Query().Get("token"))
		mu.Unlock()
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_ = conn.Close()
	}))
	defer srv.Close()

	dispatcher := &recordingDispatcher{}
	ch := newChannel(wsURL(srv), "u1", "token-old", 5, time.Second, dispatcher, zap.NewNop())
	go ch.run()
	defer ch.Close()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(tokens) >= 1
	}, 3*time.Second, 10*time.Millisecond)

	ch.SupplyToken("")
	ch.SupplyToken("token-fresh")

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(tokens) >= 2 && tokens[len(tokens)-1] == "token-fresh"
	}, 5*time.Second, 20*time.Millisecond, "the next dial carries the replaced token")
}

func TestChannelParksWithoutToken(t *testing.T) {
	srv := pushServer(t, nil, nil)
	defer srv.Close()

	dispatcher := &recordingDispatcher{}
	ch := newChannel(wsURL(srv), "u1", "", 5, 8*time.Second, dispatcher, zap.NewNop())
	go ch.run()
	defer ch.Close()

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, StateDisconnected, ch.State(), "no dial happens before a token arrives")

	ch.SupplyToken("token-late")
	require.Eventually(t, func() bool {
		return ch.State() == StateConnected
	}, 3*time.Second, 10*time.Millisecond)
}

func TestNextBackoffCaps(t *testing.T) {
	assert.Equal(t, time.Second, nextBackoff(500*time.Millisecond, 8*time.Second))
	assert.Equal(t, 8*time.Second, nextBackoff(5*time.Second, 8*time.Second))
	assert.Equal(t, 8*time.Second, nextBackoff(8*time.Second, 8*time.Second))
}

func TestManagerSingletonPerUser(t *testing.T) {
	srv := pushServer(t, nil, nil)
	defer srv.Close()

	manager := NewManager(config.RealtimeConfig{
		URL:                  wsURL(srv),
		ReconnectMaxAttempts: 5,
	}, &recordingDispatcher{}, zap.NewNop())
	defer manager.Shutdown()

	sess := &domain.Session{UserID: "u1", Token: "token-1"}
	first := manager.Acquire(sess)
	second := manager.Acquire(sess)
	assert.Same(t, first, second, "remounting never creates a second connection")

	other := manager.Acquire(&domain.Session{UserID: "u2", Token: "token-2"})
	assert.NotSame(t, first, other)

	manager.Release("u1")
	_, ok := manager.Lookup("u1")
	assert.False(t, ok)

	replacement := manager.Acquire(sess)
	assert.NotSame(t, first, replacement, "a fresh login gets a fresh channel")
}
