package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streampay-hq/streampay-engine/pkg/logger"
	"github.com/streampay-hq/streampay-engine/pkg/models"
)

// fakeNotificationStore records inserted notifications and serves chat links.
type fakeNotificationStore struct {
	mu        sync.Mutex
	inserted  []models.Notification
	insertErr error
	chatID    string
	chatErr   error
}

func (m *fakeNotificationStore) InsertNotification(_ context.Context, _ string, n models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return m.insertErr
	}
	m.inserted = append(m.inserted, n)
	return nil
}

func (m *fakeNotificationStore) TelegramChatID(_ context.Context, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.chatID, m.chatErr
}

func testNotification() models.Notification {
	return models.Notification{
		Type:    models.NotificationExecutionSuccess,
		Title:   "Payment Sent Successfully",
		Message: "Rent: 1000 USDC sent",
		Data:    map[string]string{"intentId": "intent-1"},
	}
}

func TestNotifyStoresInApp(t *testing.T) {
	store := &fakeNotificationStore{}
	svc := NewService(store, "", false, &logger.EmptyLogger{})

	svc.Notify(context.Background(), "user-1", testNotification())

	require.Len(t, store.inserted, 1)
	assert.Equal(t, "Payment Sent Successfully", store.inserted[0].Title)
}

func TestNotifySendsTelegramWhenLinked(t *testing.T) {
	var got map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bottest-token/sendMessage", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	store := &fakeNotificationStore{chatID: "chat-77"}
	svc := NewService(store, "test-token", true, &logger.EmptyLogger{})
	svc.apiBase = server.URL

	svc.Notify(context.Background(), "user-1", testNotification())

	require.NotNil(t, got)
	assert.Equal(t, "chat-77", got["chat_id"])
	assert.Equal(t, "HTML", got["parse_mode"])
	assert.Contains(t, got["text"], "Payment Sent Successfully")
}

func TestNotifySkipsTelegramWhenNotLinked(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	store := &fakeNotificationStore{chatID: ""}
	svc := NewService(store, "test-token", true, &logger.EmptyLogger{})
	svc.apiBase = server.URL

	svc.Notify(context.Background(), "user-1", testNotification())

	assert.False(t, called)
	assert.Len(t, store.inserted, 1)
}

func TestNotifyTelegramDisabledWithoutToken(t *testing.T) {
	svc := NewService(&fakeNotificationStore{chatID: "chat-77"}, "", true, &logger.EmptyLogger{})
	assert.False(t, svc.telegram)
}

func TestNotifyDeliveryFailuresAreContained(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	store := &fakeNotificationStore{chatID: "chat-77", insertErr: errors.New("database is down")}
	svc := NewService(store, "test-token", true, &logger.EmptyLogger{})
	svc.apiBase = server.URL

	assert.NotPanics(t, func() {
		svc.Notify(context.Background(), "user-1", testNotification())
	})
}
