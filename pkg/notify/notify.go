package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/streampay-hq/streampay-engine/pkg/logger"
	"github.com/streampay-hq/streampay-engine/pkg/metrics"
	"github.com/streampay-hq/streampay-engine/pkg/models"
)

const defaultTelegramAPIBase = "https://api.telegram.org"

// NotificationStore is the subset of the store the notifier needs.
type NotificationStore interface {
	InsertNotification(ctx context.Context, userID string, n models.Notification) error
	TelegramChatID(ctx context.Context, userID string) (string, error)
}

// Service fans a notification out to every configured channel. Delivery is
// best-effort: a channel failure is logged and counted but never propagated,
// so notification problems cannot affect payment outcomes.
type Service struct {
	store    NotificationStore
	botToken string
	telegram bool
	apiBase  string
	client   *http.Client
	logger   logger.Logger
}

func NewService(store NotificationStore, botToken string, telegramEnabled bool, log logger.Logger) *Service {
	return &Service{
		store:    store,
		botToken: botToken,
		telegram: telegramEnabled && botToken != "",
		apiBase:  defaultTelegramAPIBase,
		client:   &http.Client{Timeout: 10 * time.Second},
		logger:   log,
	}
}

// Notify stores the notification in-app and, when the user has a linked
// Telegram chat, pushes it there as well.
func (s *Service) Notify(ctx context.Context, userID string, n models.Notification) {
	if err := s.store.InsertNotification(ctx, userID, n); err != nil {
		metrics.NotificationsSent.WithLabelValues(string(n.Type), "inapp_failed").Inc()
		s.logger.ErrorWithScope(logger.Notify, "Failed to store notification for user %s: %v", userID, err)
	} else {
		metrics.NotificationsSent.WithLabelValues(string(n.Type), "inapp").Inc()
	}

	if !s.telegram {
		return
	}

	chatID, err := s.store.TelegramChatID(ctx, userID)
	if err != nil {
		s.logger.ErrorWithScope(logger.Notify, "Telegram link lookup failed for user %s: %v", userID, err)
		return
	}
	if chatID == "" {
		return
	}

	if err := s.sendTelegram(ctx, chatID, n); err != nil {
		metrics.NotificationsSent.WithLabelValues(string(n.Type), "telegram_failed").Inc()
		s.logger.ErrorWithScope(logger.Notify, "Telegram delivery failed for user %s: %v", userID, err)
		return
	}
	metrics.NotificationsSent.WithLabelValues(string(n.Type), "telegram").Inc()
	s.logger.DebugWithScope(logger.Notify, "Telegram notification sent to chat %s", chatID)
}

func (s *Service) sendTelegram(ctx context.Context, chatID string, n models.Notification) error {
	payload := map[string]string{
		"chat_id":    chatID,
		"text":       fmt.Sprintf("%s <b>%s</b>\n%s", typeIcon(n.Type), n.Title, n.Message),
		"parse_mode": "HTML",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.apiBase, s.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram API returned status %d", resp.StatusCode)
	}
	return nil
}

func typeIcon(t models.NotificationType) string {
	switch t {
	case models.NotificationExecutionSuccess:
		return "✅"
	case models.NotificationExecutionDelayed:
		return "⏳"
	case models.NotificationExecutionFailed:
		return "❌"
	default:
		return "\U0001F514"
	}
}
