package telegram

import (
	"context"
	"sync"
	"testing"
	"time"

	"travelmate/backend/internal/localization"
	"travelmate/backend/internal/logger"
	"travelmate/backend/internal/models"
	"travelmate/backend/internal/notify"
	"travelmate/backend/internal/storage"
	"travelmate/backend/internal/storage/storagetest"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("link-secret")

type fakeBot struct {
	mu    sync.Mutex
	texts []string
	err   error
}

func (b *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		b.texts = append(b.texts, msg.Text)
	}
	return tgbotapi.Message{}, b.err
}

func (b *fakeBot) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return make(chan tgbotapi.Update)
}

func (b *fakeBot) StopReceivingUpdates() {}

func (b *fakeBot) Sent() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.texts...)
}

func command(chatID int64, text, name string) tgbotapi.Update {
	return tgbotapi.Update{
		Message: &tgbotapi.Message{
			Text:     text,
			Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(name) + 1}},
			From:     &tgbotapi.User{ID: chatID, LanguageCode: "en"},
			Chat:     tgbotapi.Chat{ID: chatID},
		},
	}
}

func newLocalizer(t *testing.T) *localization.Localizer {
	t.Helper()
	l, err := localization.Default()
	require.NoError(t, err)
	return l
}

func linkedUser(t *testing.T, st storage.Storage, id string, chatID int64, lang string) {
	t.Helper()
	u := storagetest.SeedUser(t, st, id, "Lviv", "Lviv Oblast")
	u.Language = lang
	require.NoError(t, st.SaveUser(context.Background(), u))
	require.NoError(t, st.LinkTelegramChat(context.Background(), id, chatID))
}

func TestLinkToken_RoundTrip(t *testing.T) {
	userID := "3f0c2a4e-7d43-4b8e-9a51-0c2d7e1f5b6a"
	token := LinkToken(testSecret, userID)
	assert.LessOrEqual(t, len(token), 64)

	got, err := ParseLinkToken(testSecret, token)
	require.NoError(t, err)
	assert.Equal(t, userID, got)

	_, err = ParseLinkToken([]byte("other"), token)
	assert.Error(t, err)
	_, err = ParseLinkToken(testSecret, userID)
	assert.Error(t, err)
	_, err = ParseLinkToken(testSecret, "_abc")
	assert.Error(t, err)
}

func TestBotService_StartLinksChat(t *testing.T) {
	ctx := context.Background()
	st := storagetest.New(t)
	storagetest.SeedUser(t, st, "a", "Lviv", "Lviv Oblast")
	bot := &fakeBot{}
	svc := NewBotService(bot, st, newLocalizer(t), testSecret, logger.Discard())

	svc.HandleUpdate(ctx, command(42, "/start "+LinkToken(testSecret, "a"), "start"))

	user, err := st.GetUserByTelegramChatID(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "a", user.ID)
	assert.Equal(t, []string{newLocalizer(t).GetString("en", "link_ok")}, bot.Sent())
}

func TestBotService_StartRejectsForgedToken(t *testing.T) {
	ctx := context.Background()
	st := storagetest.New(t)
	storagetest.SeedUser(t, st, "a", "Lviv", "Lviv Oblast")
	bot := &fakeBot{}
	svc := NewBotService(bot, st, newLocalizer(t), testSecret, logger.Discard())

	svc.HandleUpdate(ctx, command(42, "/start "+LinkToken([]byte("forged"), "a"), "start"))
	svc.HandleUpdate(ctx, command(42, "/start", "start"))

	_, err := st.GetUserByTelegramChatID(ctx, 42)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	l := newLocalizer(t)
	assert.Equal(t, []string{l.GetString("en", "link_invalid"), l.GetString("en", "start_hint")}, bot.Sent())
}

func TestBotService_LangCommand(t *testing.T) {
	ctx := context.Background()
	st := storagetest.New(t)
	linkedUser(t, st, "a", 42, "en")
	bot := &fakeBot{}
	l := newLocalizer(t)
	svc := NewBotService(bot, st, l, testSecret, logger.Discard())

	svc.HandleUpdate(ctx, command(42, "/lang uk", "lang"))
	svc.HandleUpdate(ctx, command(42, "/lang xx", "lang"))
	svc.HandleUpdate(ctx, command(7, "/lang uk", "lang"))

	user, err := st.GetUserByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "uk", user.Language)
	assert.Equal(t, []string{
		l.GetString("uk", "lang_ok"),
		l.GetString("uk", "lang_usage"),
		l.GetString("en", "not_linked"),
	}, bot.Sent())
}

func TestBotService_IgnoresPlainText(t *testing.T) {
	bot := &fakeBot{}
	svc := NewBotService(bot, storagetest.New(t), newLocalizer(t), testSecret, logger.Discard())

	svc.HandleUpdate(context.Background(), tgbotapi.Update{Message: &tgbotapi.Message{Text: "hello", Chat: tgbotapi.Chat{ID: 1}}})
	svc.HandleUpdate(context.Background(), tgbotapi.Update{})
	assert.Empty(t, bot.Sent())
}

func TestNotifier_LocalizedRequestAndMessage(t *testing.T) {
	ctx := context.Background()
	st := storagetest.New(t)
	linkedUser(t, st, "b", 42, "uk")
	sender := storagetest.SeedUser(t, st, "a", "Lviv", "Lviv Oblast")
	sender.DisplayName = "Olena"
	require.NoError(t, st.SaveUser(ctx, sender))

	req := &models.ConnectionRequest{SenderID: "a", ReceiverID: "b", Status: models.RequestPending, Message: "coffee?", CreatedAt: time.Now().UTC()}
	require.NoError(t, st.CreateRequest(ctx, req))

	bot := &fakeBot{}
	n := NewNotifier(bot, st, newLocalizer(t), logger.Discard())

	require.NoError(t, n.Send(ctx, "b", models.RealtimeEvent{Type: models.EventRequestReceived, RequestID: req.ID, SenderID: "a"}))
	require.NoError(t, n.Send(ctx, "b", models.RealtimeEvent{
		Type:     models.EventMessageNew,
		RoomID:   "missing-room",
		SenderID: "a",
		Message:  &models.Message{Content: "привіт"},
	}))

	assert.Equal(t, []string{
		"🤝 Olena хоче познайомитися з вами: \"coffee?\"",
		"💬 Olena: привіт",
	}, bot.Sent())
}

func TestNotifier_SkipsUnlinkedAndCounters(t *testing.T) {
	ctx := context.Background()
	st := storagetest.New(t)
	storagetest.SeedUser(t, st, "a", "Lviv", "Lviv Oblast")
	linkedUser(t, st, "b", 42, "en")
	bot := &fakeBot{}
	n := NewNotifier(bot, st, newLocalizer(t), logger.Discard())

	require.NoError(t, n.Send(ctx, "a", models.RealtimeEvent{Type: models.EventRequestAccepted, SenderID: "b"}))
	require.NoError(t, n.Send(ctx, "b", models.RealtimeEvent{Type: models.EventCounters}))
	assert.Empty(t, bot.Sent())

	err := n.Send(ctx, "ghost", models.RealtimeEvent{Type: models.EventRequestAccepted})
	assert.ErrorIs(t, err, notify.ErrUndeliverable)
}

func TestNotifier_BlockedBotIsUndeliverable(t *testing.T) {
	ctx := context.Background()
	st := storagetest.New(t)
	linkedUser(t, st, "b", 42, "en")
	bot := &fakeBot{err: &tgbotapi.Error{Code: 403, Message: "Forbidden: bot was blocked by the user"}}
	n := NewNotifier(bot, st, newLocalizer(t), logger.Discard())

	err := n.Send(ctx, "b", models.RealtimeEvent{Type: models.EventRequestAccepted, SenderID: "a"})
	assert.ErrorIs(t, err, notify.ErrUndeliverable)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 3))
	assert.Equal(t, "ab…", truncate("abc", 2))
}
