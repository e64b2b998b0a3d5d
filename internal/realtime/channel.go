package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/spec-kit/factory-portal/internal/domain"
	"github.com/spec-kit/factory-portal/internal/events"
)

const (
	handshakeTimeout = 10 * time.Second
	readLimit        = 1 << 16
	initialBackoff   = 500 * time.Millisecond

	// stableConnWindow is how long a connection must stay up before the
	// reconnect budget resets. A connection dropped sooner counts as a
	// failed attempt, so a flapping upstream still exhausts the budget
	// instead of being re-dialed in a tight loop forever.
	stableConnWindow = 30 * time.Second
)

// Channel is one persistent upstream connection for one user. It dials with
// the session's bearer token, validates inbound events and publishes them on
// the dispatcher in arrival order. On abnormal close it reconnects a bounded
// number of times with capped backoff, then degrades to StateFailed without
// taking the app down.
type Channel struct {
	url         string
	userID      string
	dispatcher  events.Dispatcher
	logger      *zap.Logger
	maxAttempts int
	backoffCap  time.Duration
	dialer      *websocket.Dialer

	mu       sync.Mutex
	state    State
	token    string
	tokenSet chan struct{}
	conn     *websocket.Conn

	done     chan struct{}
	stopOnce sync.Once
}

func newChannel(url, userID, token string, maxAttempts int, backoffCap time.Duration, dispatcher events.Dispatcher, logger *zap.Logger) *Channel {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	ch := &Channel{
		url:         url,
		userID:      userID,
		dispatcher:  dispatcher,
		logger:      logger,
		maxAttempts: maxAttempts,
		backoffCap:  backoffCap,
		dialer:      &websocket.Dialer{HandshakeTimeout: handshakeTimeout},
		state:       StateDisconnected,
		token:       token,
		tokenSet:    make(chan struct{}),
		done:        make(chan struct{}),
	}
	if token != "" {
		close(ch.tokenSet)
	}
	return ch
}

// SupplyToken provides the handshake credential. A channel built without one
// stays parked until the first call; later calls replace the stored token so
// the next dial authenticates with the fresh credential.
func (c *Channel) SupplyToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if token == "" || token == c.token {
		return
	}
	first := c.token == ""
	c.token = token
	if first {
		close(c.tokenSet)
	}
}

// State reports the current lifecycle state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Close tears the connection down. Called only on logout or app shutdown,
// never by individual subscribers.
func (c *Channel) Close() {
	c.stopOnce.Do(func() {
		close(c.done)
		c.mu.Lock()
		c.state = StateClosed
		if c.conn != nil {
			_ = c.conn.Close()
		}
		c.mu.Unlock()
	})
}

// run is the connection loop: dial, read until failure, reconnect with
// backoff, give up after maxAttempts consecutive failures.
func (c *Channel) run() {
	select {
	case <-c.tokenSet:
	case <-c.done:
		return
	}

	attempts := 0
	backoff := initialBackoff
	for {
		select {
		case <-c.done:
			return
		default:
		}

		c.setState(StateConnecting, attempts)
		conn, err := c.dial()
		if err != nil {
			attempts++
			c.logger.Warn("realtime connect failed",
				zap.String("user_id", c.userID),
				zap.Int("attempt", attempts),
				zap.Error(err))
			if c.exhausted(attempts) {
				return
			}
			if !c.wait(backoff) {
				return
			}
			backoff = nextBackoff(backoff, c.backoffCap)
			continue
		}

		connectedAt := time.Now()
		c.setState(StateConnected, 0)
		c.readLoop(conn)

		select {
		case <-c.done:
			return
		default:
		}

		if time.Since(connectedAt) >= stableConnWindow {
			attempts = 0
			backoff = initialBackoff
		} else {
			// A handshake that is accepted and then dropped is a failed
			// attempt, not a recovery.
			attempts++
			if c.exhausted(attempts) {
				return
			}
		}
		c.setState(StateDisconnected, attempts)
		if !c.wait(backoff) {
			return
		}
		backoff = nextBackoff(backoff, c.backoffCap)
	}
}

// exhausted transitions to StateFailed once the attempt budget is spent.
func (c *Channel) exhausted(attempts int) bool {
	if attempts < c.maxAttempts {
		return false
	}
	c.setState(StateFailed, attempts)
	c.logger.Error("realtime reconnect attempts exhausted",
		zap.String("user_id", c.userID),
		zap.Int("attempts", attempts))
	return true
}

// wait sleeps for the backoff delay, reporting false when the channel is
// closed first.
func (c *Channel) wait(d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-c.done:
		return false
	}
}

func (c *Channel) dial() (*websocket.Conn, error) {
	c.mu.Lock()
	url := c.url + "?token=" + c.token
	c.mu.Unlock()

	conn, resp, err := c.dialer.Dial(url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	conn.SetReadLimit(readLimit)

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	return conn, nil
}

func (c *Channel) readLoop(conn *websocket.Conn) {
	defer conn.Close()
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("realtime connection dropped",
					zap.String("user_id", c.userID), zap.Error(err))
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			c.logger.Warn("realtime event not parseable, dropped",
				zap.String("user_id", c.userID), zap.Error(err))
			continue
		}
		c.handleEvent(env)
	}
}

// handleEvent validates and forwards one inbound event. Payloads without an
// id never reach any collection.
func (c *Channel) handleEvent(env Envelope) {
	switch env.Op {
	case OpNotification:
		var notification domain.Notification
		if err := json.Unmarshal(env.Data, &notification); err != nil {
			c.logger.Warn("malformed notification event, dropped", zap.Error(err))
			return
		}
		if notification.ID == "" {
			c.logger.Warn("notification event without id, dropped",
				zap.String("user_id", c.userID))
			return
		}
		notification.IsNew = true
		c.publish(events.Event{
			ID:        notification.ID,
			Type:      events.EventNotificationReceived,
			UserID:    c.userID,
			Timestamp: time.Now(),
			Payload:   events.NotificationReceivedPayload{Notification: notification},
		})

	case OpMessage:
		var message domain.Message
		if err := json.Unmarshal(env.Data, &message); err != nil {
			c.logger.Warn("malformed message event, dropped", zap.Error(err))
			return
		}
		if message.ID == "" {
			c.logger.Warn("message event without id, dropped",
				zap.String("user_id", c.userID))
			return
		}
		c.publish(events.Event{
			ID:        message.ID,
			Type:      events.EventMessageReceived,
			UserID:    c.userID,
			Timestamp: time.Now(),
			Payload:   events.MessageReceivedPayload{Message: message},
		})

	default:
		c.logger.Debug("unknown realtime op, ignored", zap.String("op", env.Op))
	}
}

func (c *Channel) setState(state State, attempts int) {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	changed := c.state != state
	c.state = state
	c.mu.Unlock()

	if !changed {
		return
	}
	c.publish(events.Event{
		Type:      events.EventRealtimeStateChanged,
		UserID:    c.userID,
		Timestamp: time.Now(),
		Payload:   events.RealtimeStateChangedPayload{State: string(state), Attempts: attempts},
	})
}

func (c *Channel) publish(event events.Event) {
	_ = c.dispatcher.Publish(context.Background(), event)
}

func nextBackoff(current, cap time.Duration) time.Duration {
	next := current * 2
	if cap > 0 && next > cap {
		return cap
	}
	return next
}
