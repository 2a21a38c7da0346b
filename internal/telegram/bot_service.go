package telegram

import (
	"context"
	"errors"
	"slices"
	"strings"

	"travelmate/backend/internal/localization"
	"travelmate/backend/internal/storage"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// BotAPI is the subset of *tgbotapi.BotAPI the bot loop needs.
type BotAPI interface {
	Sender
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// BotService receives Telegram updates and handles the account commands:
// /start <token> links the chat, /lang <code> switches notification language.
type BotService struct {
	BotAPI    BotAPI
	Directory Directory
	Localizer *localization.Localizer
	secret    []byte
	log       *logrus.Logger
}

// Connect authorizes against the Bot API with token.
func Connect(token string, log *logrus.Logger) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	bot.Debug = false
	log.WithField("bot", bot.Self.UserName).Info("telegram: authorized")
	return bot, nil
}

func NewBotService(api BotAPI, dir Directory, localizer *localization.Localizer, secret []byte, log *logrus.Logger) *BotService {
	return &BotService{BotAPI: api, Directory: dir, Localizer: localizer, secret: secret, log: log}
}

// Run polls for updates until ctx is cancelled.
func (s *BotService) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := s.BotAPI.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			s.BotAPI.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			s.HandleUpdate(ctx, update)
		}
	}
}

// HandleUpdate processes a single update. Anything but a known command is ignored.
func (s *BotService) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || !msg.IsCommand() {
		return
	}

	lang := localization.DefaultLanguage
	if msg.From != nil && msg.From.LanguageCode != "" {
		lang = msg.From.LanguageCode
	}

	switch msg.Command() {
	case "start":
		s.reply(msg.Chat.ID, lang, s.handleStart(ctx, msg.Chat.ID, strings.TrimSpace(msg.CommandArguments())))
	case "lang":
		s.handleLang(ctx, msg.Chat.ID, lang, strings.TrimSpace(msg.CommandArguments()))
	}
}

func (s *BotService) handleStart(ctx context.Context, chatID int64, token string) string {
	if token == "" {
		return "start_hint"
	}

	userID, err := ParseLinkToken(s.secret, token)
	if err != nil {
		s.log.WithError(err).WithField("chat_id", chatID).Info("telegram: rejected link token")
		return "link_invalid"
	}

	if err := s.Directory.LinkTelegramChat(ctx, userID, chatID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "link_invalid"
		}
		s.log.WithError(err).WithFields(logrus.Fields{"chat_id": chatID, "user_id": userID}).Error("telegram: link failed")
		return "link_failed"
	}

	s.log.WithFields(logrus.Fields{"chat_id": chatID, "user_id": userID}).Info("telegram: chat linked")
	return "link_ok"
}

func (s *BotService) handleLang(ctx context.Context, chatID int64, lang, requested string) {
	user, err := s.Directory.GetUserByTelegramChatID(ctx, chatID)
	if err != nil {
		s.reply(chatID, lang, "not_linked")
		return
	}

	if !slices.Contains(s.Localizer.Languages(), requested) {
		s.reply(chatID, user.Language, "lang_usage")
		return
	}

	if err := s.Directory.SetUserLanguage(ctx, user.ID, requested); err != nil {
		s.reply(chatID, user.Language, "link_failed")
		return
	}
	s.reply(chatID, requested, "lang_ok")
}

func (s *BotService) reply(chatID int64, lang, key string) {
	msg := tgbotapi.NewMessage(chatID, s.Localizer.GetString(lang, key))
	if _, err := s.BotAPI.Send(msg); err != nil {
		s.log.WithError(err).WithField("chat_id", chatID).Warn("telegram: reply failed")
	}
}
