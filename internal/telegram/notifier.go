// Package telegram pushes notifications to users who linked a Telegram chat,
// and runs the bot that performs the linking.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"unicode/utf8"

	"travelmate/backend/internal/localization"
	"travelmate/backend/internal/models"
	"travelmate/backend/internal/notify"
	"travelmate/backend/internal/storage"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

const previewRunes = 80

// Sender is satisfied by *tgbotapi.BotAPI.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Directory is the part of storage the bot and notifier read and write.
type Directory interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByTelegramChatID(ctx context.Context, chatID int64) (*models.User, error)
	LinkTelegramChat(ctx context.Context, userID string, chatID int64) error
	SetUserLanguage(ctx context.Context, userID, language string) error
	GetRequestByID(ctx context.Context, id string) (*models.ConnectionRequest, error)
	GetRoomByID(ctx context.Context, id string) (*models.ChatRoom, error)
}

// Notifier renders realtime events as localized Telegram messages.
// It implements notify.Sender.
type Notifier struct {
	bot       Sender
	dir       Directory
	localizer *localization.Localizer
	log       *logrus.Logger
}

func NewNotifier(bot Sender, dir Directory, localizer *localization.Localizer, log *logrus.Logger) *Notifier {
	return &Notifier{bot: bot, dir: dir, localizer: localizer, log: log}
}

// Send delivers event to userID's linked chat. Users without a chat are
// skipped silently.
func (n *Notifier) Send(ctx context.Context, userID string, event models.RealtimeEvent) error {
	user, err := n.dir.GetUserByID(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("telegram: user %s: %w", userID, notify.ErrUndeliverable)
	}
	if err != nil {
		return err
	}
	if user.TelegramChatID == nil {
		return nil
	}

	text := n.render(ctx, user.Language, event)
	if text == "" {
		return nil
	}

	_, err = n.bot.Send(tgbotapi.NewMessage(*user.TelegramChatID, text))
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusForbidden {
		// The user blocked the bot.
		return fmt.Errorf("telegram: chat %d: %s: %w", *user.TelegramChatID, apiErr.Message, notify.ErrUndeliverable)
	}
	if err != nil {
		return fmt.Errorf("telegram: send to %s: %w", userID, err)
	}

	n.log.WithFields(logrus.Fields{"user_id": userID, "event": event.Type}).Debug("telegram: push sent")
	return nil
}

func (n *Notifier) render(ctx context.Context, lang string, event models.RealtimeEvent) string {
	name := n.displayName(ctx, lang, event.SenderID)

	switch event.Type {
	case models.EventRequestReceived:
		if req, err := n.dir.GetRequestByID(ctx, event.RequestID); err == nil && req.Message != "" {
			return n.localizer.Format(lang, "request_received_with_message", map[string]string{
				"name":    name,
				"message": truncate(req.Message, previewRunes),
			})
		}
		return n.localizer.Format(lang, "request_received", map[string]string{"name": name})

	case models.EventRequestAccepted:
		return n.localizer.Format(lang, "request_accepted", map[string]string{"name": name})

	case models.EventMessageNew:
		if event.Message == nil {
			return ""
		}
		values := map[string]string{"name": name, "preview": truncate(event.Message.Content, previewRunes)}
		room, err := n.dir.GetRoomByID(ctx, event.RoomID)
		if err == nil && room.Type == models.RoomGathering && room.RoomName != "" {
			values["room"] = room.RoomName
			return n.localizer.Format(lang, "message_new_gathering", values)
		}
		return n.localizer.Format(lang, "message_new", values)

	default:
		return ""
	}
}

func (n *Notifier) displayName(ctx context.Context, lang, userID string) string {
	if userID != "" {
		if u, err := n.dir.GetUserByID(ctx, userID); err == nil && u.DisplayName != "" {
			return u.DisplayName
		}
	}
	return n.localizer.GetString(lang, "someone")
}

func truncate(s string, runes int) string {
	if utf8.RuneCountInString(s) <= runes {
		return s
	}
	r := []rune(s)
	return string(r[:runes]) + "…"
}
