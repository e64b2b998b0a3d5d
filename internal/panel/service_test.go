package panel

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/factory-portal/internal/backend"
	"github.com/spec-kit/factory-portal/internal/config"
	"github.com/spec-kit/factory-portal/internal/domain"
	"github.com/spec-kit/factory-portal/internal/events"
)

type stubClient struct {
	backend.Client

	notifications []domain.Notification
	messages      []domain.Message
	users         []domain.DirectoryUser
	history       []domain.Message
	err           error

	notificationCalls int
	messageCalls      int
	searchCalls       int
	historyCalls      int
	sendCalls         int
	markNotifCalls    int
	markMsgCalls      int
}

func (s *stubClient) Notifications(context.Context, string) ([]domain.Notification, error) {
	s.notificationCalls++
	return s.notifications, s.err
}

func (s *stubClient) Messages(context.Context, string) ([]domain.Message, error) {
	s.messageCalls++
	return s.messages, s.err
}

func (s *stubClient) SearchUsers(context.Context, string, string) ([]domain.DirectoryUser, error) {
	s.searchCalls++
	return s.users, s.err
}

func (s *stubClient) ChatHistory(context.Context, string, string) ([]domain.Message, error) {
	s.historyCalls++
	return s.history, s.err
}

func (s *stubClient) SendMessage(context.Context, string, string, string) error {
	s.sendCalls++
	return s.err
}

func (s *stubClient) MarkNotificationRead(context.Context, string, string) error {
	s.markNotifCalls++
	return s.err
}

func (s *stubClient) MarkMessageRead(context.Context, string, string) error {
	s.markMsgCalls++
	return s.err
}

func testSession() *domain.Session {
	return &domain.Session{UserID: "u1", Token: "token", ExpiresAt: time.Now().Add(time.Hour)}
}

// newTestService pins the clock so cool-down behavior is deterministic.
func newTestService(client *stubClient) (*Service, *time.Time) {
	svc := NewService(client, config.PanelConfig{RefreshCooldownSeconds: 10}, zap.NewNop())
	now := time.Now()
	svc.now = func() time.Time { return now }
	return svc, &now
}

func TestRefreshNotificationsCooldown(t *testing.T) {
	client := &stubClient{notifications: []domain.Notification{{ID: "n1"}}}
	svc, now := newTestService(client)
	ctx := context.Background()
	sess := testSession()

	require.NoError(t, svc.RefreshNotifications(ctx, sess))
	require.NoError(t, svc.RefreshNotifications(ctx, sess))
	require.NoError(t, svc.RefreshNotifications(ctx, sess))
	assert.Equal(t, 1, client.notificationCalls, "triggers inside the window collapse to one call")

	*now = now.Add(11 * time.Second)
	require.NoError(t, svc.RefreshNotifications(ctx, sess))
	assert.Equal(t, 2, client.notificationCalls)
}

func TestRefreshNotificationsDropsItemsWithoutID(t *testing.T) {
	client := &stubClient{notifications: []domain.Notification{
		{ID: "n1", Read: false},
		{ID: "", Title: "phantom"},
		{ID: "n2", Read: true},
	}}
	svc, _ := newTestService(client)
	sess := testSession()

	require.NoError(t, svc.RefreshNotifications(context.Background(), sess))

	view := svc.Snapshot(sess.UserID)
	assert.Len(t, view.Notifications, 2)
	assert.Equal(t, 1, view.UnreadNotifications)
}

func TestRefreshFailureResetsCollection(t *testing.T) {
	client := &stubClient{notifications: []domain.Notification{{ID: "n1"}}}
	svc, now := newTestService(client)
	sess := testSession()

	require.NoError(t, svc.RefreshNotifications(context.Background(), sess))
	assert.Equal(t, 1, svc.Snapshot(sess.UserID).UnreadNotifications)

	client.err = errors.New("backend down")
	*now = now.Add(11 * time.Second)
	assert.Error(t, svc.RefreshNotifications(context.Background(), sess))

	view := svc.Snapshot(sess.UserID)
	assert.Empty(t, view.Notifications, "stale data never sits beside a wrong count")
	assert.Zero(t, view.UnreadNotifications)
}

func TestMarkNotificationReadIsIdempotent(t *testing.T) {
	client := &stubClient{notifications: []domain.Notification{
		{ID: "n1", Read: false},
		{ID: "n2", Read: false},
	}}
	svc, _ := newTestService(client)
	sess := testSession()
	ctx := context.Background()

	require.NoError(t, svc.RefreshNotifications(ctx, sess))
	require.Equal(t, 2, svc.Snapshot(sess.UserID).UnreadNotifications)

	require.NoError(t, svc.MarkNotificationRead(ctx, sess, "n1"))
	assert.Equal(t, 1, svc.Snapshot(sess.UserID).UnreadNotifications)

	require.NoError(t, svc.MarkNotificationRead(ctx, sess, "n1"))
	assert.Equal(t, 1, svc.Snapshot(sess.UserID).UnreadNotifications, "repeat marking never double-decrements")

	require.NoError(t, svc.MarkNotificationRead(ctx, sess, "n2"))
	require.NoError(t, svc.MarkNotificationRead(ctx, sess, "n2"))
	assert.Zero(t, svc.Snapshot(sess.UserID).UnreadNotifications, "counter floors at zero")
}

func TestMarkNotificationReadEmptyIDIsNoOp(t *testing.T) {
	client := &stubClient{}
	svc, _ := newTestService(client)

	require.NoError(t, svc.MarkNotificationRead(context.Background(), testSession(), ""))
	assert.Zero(t, client.markNotifCalls)
}

func TestMarkMessageReadFloorsAtZero(t *testing.T) {
	client := &stubClient{messages: []domain.Message{{ID: "m1", Unread: true}}}
	svc, _ := newTestService(client)
	sess := testSession()
	ctx := context.Background()

	require.NoError(t, svc.RefreshMessages(ctx, sess))
	require.Equal(t, 1, svc.Snapshot(sess.UserID).UnreadMessages)

	require.NoError(t, svc.MarkMessageRead(ctx, sess, "m1"))
	require.NoError(t, svc.MarkMessageRead(ctx, sess, "m1"))
	assert.Zero(t, svc.Snapshot(sess.UserID).UnreadMessages)
}

func TestSendMessageEmptyBodyIsNoOp(t *testing.T) {
	client := &stubClient{}
	svc, _ := newTestService(client)
	ctx := context.Background()
	sess := testSession()

	require.NoError(t, svc.SendMessage(ctx, sess, "p1", "   "))
	require.NoError(t, svc.SendMessage(ctx, sess, "", "hello"))
	assert.Zero(t, client.sendCalls, "nothing crosses the network for an empty send")
}

func TestSendMessageRefreshesHistoryAndInbox(t *testing.T) {
	client := &stubClient{
		history:  []domain.Message{{ID: "m1", OtherPersonID: "p1", Body: "hello"}},
		messages: []domain.Message{{ID: "m1", OtherPersonID: "p1", Body: "hello", Unread: false}},
	}
	svc, _ := newTestService(client)
	sess := testSession()

	require.NoError(t, svc.SendMessage(context.Background(), sess, "p1", "hello"))

	assert.Equal(t, 1, client.sendCalls)
	assert.Equal(t, 1, client.historyCalls, "chat history refreshes after send")
	assert.Equal(t, 1, client.messageCalls, "inbox refreshes after send, independent of the history")
}

func TestOpenConversationLoadsHistoryAndClearsSearch(t *testing.T) {
	client := &stubClient{
		users:   []domain.DirectoryUser{{ID: "p1", Name: "Grace"}},
		history: []domain.Message{{ID: "m1", OtherPersonID: "p1"}},
	}
	svc, _ := newTestService(client)
	sess := testSession()
	ctx := context.Background()

	require.NoError(t, svc.SearchUsers(ctx, sess, "gra"))
	require.NotEmpty(t, svc.Snapshot(sess.UserID).SearchResults)

	require.NoError(t, svc.OpenConversation(ctx, sess, "p1"))

	view := svc.Snapshot(sess.UserID)
	assert.Equal(t, "p1", view.ActivePartnerID)
	assert.Len(t, view.ChatHistory, 1)
	assert.Empty(t, view.SearchResults)
}

func TestOpenPanelTogglesAndStaysExclusive(t *testing.T) {
	svc, _ := newTestService(&stubClient{})

	svc.OpenPanel("u1", PanelNotifications)
	assert.Equal(t, PanelNotifications, svc.Snapshot("u1").ActivePanel)

	svc.OpenPanel("u1", PanelMessages)
	assert.Equal(t, PanelMessages, svc.Snapshot("u1").ActivePanel, "opening one panel closes the other")

	svc.OpenPanel("u1", PanelMessages)
	assert.Equal(t, PanelNone, svc.Snapshot("u1").ActivePanel, "reopening the active panel closes it")
}

func TestPushedNotificationSurfacesOneToast(t *testing.T) {
	svc, _ := newTestService(&stubClient{})
	dispatcher := events.NewInMemoryDispatcher()
	svc.RegisterHandlers(dispatcher)

	err := dispatcher.Publish(context.Background(), events.Event{
		Type:   events.EventNotificationReceived,
		UserID: "u1",
		Payload: events.NotificationReceivedPayload{
			Notification: domain.Notification{ID: "n1", Title: "Batch ready", IsNew: true},
		},
	})
	require.NoError(t, err)

	view := svc.Snapshot("u1")
	require.Len(t, view.Toasts, 1)
	assert.Equal(t, "Batch ready", view.Toasts[0].Title)
	assert.Equal(t, 1, view.UnreadNotifications)

	assert.Empty(t, svc.Snapshot("u1").Toasts, "a toast surfaces exactly once")
}

func TestPushedNotificationDeduplicatesByID(t *testing.T) {
	svc, _ := newTestService(&stubClient{})
	dispatcher := events.NewInMemoryDispatcher()
	svc.RegisterHandlers(dispatcher)

	event := events.Event{
		Type:   events.EventNotificationReceived,
		UserID: "u1",
		Payload: events.NotificationReceivedPayload{
			Notification: domain.Notification{ID: "n1", IsNew: true},
		},
	}
	require.NoError(t, dispatcher.Publish(context.Background(), event))
	require.NoError(t, dispatcher.Publish(context.Background(), event))

	view := svc.Snapshot("u1")
	assert.Len(t, view.Notifications, 1)
	assert.Equal(t, 1, view.UnreadNotifications)
}

func TestPushedMessageAppendsToActiveChat(t *testing.T) {
	client := &stubClient{history: []domain.Message{}}
	svc, _ := newTestService(client)
	dispatcher := events.NewInMemoryDispatcher()
	svc.RegisterHandlers(dispatcher)
	sess := testSession()

	require.NoError(t, svc.OpenConversation(context.Background(), sess, "p1"))

	require.NoError(t, dispatcher.Publish(context.Background(), events.Event{
		Type:   events.EventMessageReceived,
		UserID: "u1",
		Payload: events.MessageReceivedPayload{
			Message: domain.Message{ID: "m9", OtherPersonID: "p1", Body: "on my way", Unread: true},
		},
	}))

	view := svc.Snapshot("u1")
	require.Len(t, view.ChatHistory, 1)
	assert.Equal(t, "on my way", view.ChatHistory[0].Body)
	assert.Equal(t, 1, view.UnreadMessages)
}

func TestRealtimeStateReachesSnapshot(t *testing.T) {
	svc, _ := newTestService(&stubClient{})
	dispatcher := events.NewInMemoryDispatcher()
	svc.RegisterHandlers(dispatcher)

	require.NoError(t, dispatcher.Publish(context.Background(), events.Event{
		Type:    events.EventRealtimeStateChanged,
		UserID:  "u1",
		Payload: events.RealtimeStateChangedPayload{State: "reconnect_failed", Attempts: 5},
	}))

	assert.Equal(t, "reconnect_failed", svc.Snapshot("u1").RealtimeState)
}

func TestConversationsDeriveFromInbox(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	client := &stubClient{messages: []domain.Message{
		{ID: "m1", OtherPersonID: "p1", OtherPersonName: "Grace", Body: "first", Time: base, Unread: true},
		{ID: "m2", OtherPersonID: "p1", OtherPersonName: "Grace", Body: "latest", Time: base.Add(time.Hour), Unread: true},
		{ID: "m3", OtherPersonID: "p2", OtherPersonName: "Lin", Body: "hi", Time: base},
	}}
	svc, _ := newTestService(client)
	sess := testSession()

	require.NoError(t, svc.RefreshMessages(context.Background(), sess))

	view := svc.Snapshot(sess.UserID)
	require.Len(t, view.Conversations, 2)
	assert.Equal(t, "latest", view.Conversations[0].LastMessage.Body)
	assert.Equal(t, 2, view.Conversations[0].UnreadCount)
	assert.Equal(t, "Lin", view.Conversations[1].PartnerName)
}

func TestForgetDropsPanelState(t *testing.T) {
	client := &stubClient{notifications: []domain.Notification{{ID: "n1"}}}
	svc, _ := newTestService(client)
	sess := testSession()

	require.NoError(t, svc.RefreshNotifications(context.Background(), sess))
	require.NotEmpty(t, svc.Snapshot(sess.UserID).Notifications)

	svc.Forget(sess.UserID)
	assert.Empty(t, svc.Snapshot(sess.UserID).Notifications)
}
