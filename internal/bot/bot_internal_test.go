package bot

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"testing"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"opguide/internal/domain"
	"opguide/internal/fetcher/inventory"
	"opguide/internal/opguide"
	"opguide/internal/ratelimiter"
	"opguide/internal/summarizer"
)

const testChatID = 100

type fakeAPI struct {
	mu        sync.Mutex
	messages  []*tgbot.SendMessageParams
	edits     []*tgbot.EditMessageTextParams
	documents []sentDocument
	answers   []string
}

type sentDocument struct {
	fileName string
	data     []byte
	caption  string
}

func (f *fakeAPI) SendMessage(_ context.Context, params *tgbot.SendMessageParams) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, params)
	return &models.Message{ID: len(f.messages)}, nil
}

func (f *fakeAPI) SendDocument(_ context.Context, params *tgbot.SendDocumentParams) (*models.Message, error) {
	upload, ok := params.Document.(*models.InputFileUpload)
	if !ok {
		return nil, errors.New("unexpected document type")
	}

	data, err := io.ReadAll(upload.Data)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.documents = append(f.documents, sentDocument{fileName: upload.Filename, data: data, caption: params.Caption})
	return &models.Message{}, nil
}

func (f *fakeAPI) EditMessageText(_ context.Context, params *tgbot.EditMessageTextParams) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, params)
	return &models.Message{}, nil
}

func (f *fakeAPI) AnswerCallbackQuery(_ context.Context, params *tgbot.AnswerCallbackQueryParams) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, params.Text)
	return true, nil
}

func (f *fakeAPI) SendChatAction(context.Context, *tgbot.SendChatActionParams) (bool, error) {
	return true, nil
}

func (f *fakeAPI) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	texts := make([]string, 0, len(f.messages))
	for _, m := range f.messages {
		texts = append(texts, m.Text)
	}
	return texts
}

func (f *fakeAPI) lastMessage() *tgbot.SendMessageParams {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.messages[len(f.messages)-1]
}

type passthroughLimiter struct{}

func (passthroughLimiter) Send(ctx context.Context, _ int64, send ratelimiter.SendFunc) error {
	return send(ctx)
}

func (passthroughLimiter) Stop() {}

type memSettings struct {
	mu       sync.Mutex
	settings map[int64]domain.ChatSettings
}

func (m *memSettings) GetChatSettingsWithDefault(_ context.Context, chatID int64) (*domain.ChatSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.settings[chatID]; ok {
		return &s, nil
	}
	return &domain.ChatSettings{ChatID: chatID}, nil
}

func (m *memSettings) UpsertChatSettings(_ context.Context, settings *domain.ChatSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[settings.ChatID] = *settings
	return nil
}

type stubSummarizer struct{}

func (stubSummarizer) Summarize(_ context.Context, input summarizer.Input) (string, error) {
	if strings.Contains(input.ResourceType, "Firewall") {
		return "", errors.New("model unavailable")
	}
	return "summary of " + input.ResourceName, nil
}

func newTestBot(t *testing.T, allowedUsers ...int64) (*Bot, *fakeAPI, *memSettings) {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	api := &fakeAPI{}
	settings := &memSettings{settings: make(map[int64]domain.ChatSettings)}
	service := opguide.NewService(opguide.Options{
		Fetcher:    inventory.NewMock(),
		Summarizer: stubSummarizer{},
	}, log)

	b := newBot(api, service, settings, allowedUsers, log)
	b.rateLimiter.Stop()
	b.rateLimiter = passthroughLimiter{}

	return b, api, settings
}

func messageUpdate(userID int64, text string) *models.Update {
	return &models.Update{
		Message: &models.Message{
			ID:   1,
			From: &models.User{ID: userID},
			Chat: models.Chat{ID: testChatID, Type: models.ChatTypePrivate},
			Text: text,
		},
	}
}

func callbackUpdate(userID int64, data string) *models.Update {
	return &models.Update{
		CallbackQuery: &models.CallbackQuery{
			ID:   "cb",
			From: models.User{ID: userID},
			Message: models.MaybeInaccessibleMessage{
				Message: &models.Message{ID: 7, Chat: models.Chat{ID: testChatID}},
			},
			Data: data,
		},
	}
}

func toggleData(b *Bot, index int) string {
	return typesToggleCallbackPrefix + typesFingerprint(b.chatSession(testChatID).Types()) + "_" + strconv.Itoa(index)
}

func TestCommand(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"/fetch", "/fetch"},
		{"  /Types  ", "/types"},
		{"/summarize@opguide_bot now", "/summarize"},
		{"", ""},
		{"hello", "hello"},
	}

	for _, test := range tests {
		t.Run(test.text, func(t *testing.T) {
			if got := command(test.text); got != test.want {
				t.Errorf("Expected %q, got %q", test.want, got)
			}
		})
	}
}

func TestUserNotAllowedIsIgnored(t *testing.T) {
	b, api, _ := newTestBot(t, 1)

	b.handleUpdate(context.Background(), messageUpdate(2, "/start"))

	if len(api.texts()) != 0 {
		t.Fatalf("Expected no messages, got %v", api.texts())
	}

	b.handleUpdate(context.Background(), messageUpdate(1, "/start"))

	if texts := api.texts(); len(texts) != 1 || !strings.Contains(texts[0], "Welcome") {
		t.Fatalf("Expected welcome message, got %v", texts)
	}
}

func TestFetchShowsTypesKeyboard(t *testing.T) {
	b, api, _ := newTestBot(t)

	b.handleUpdate(context.Background(), messageUpdate(1, "/fetch"))

	texts := api.texts()
	if len(texts) != 2 {
		t.Fatalf("Expected 2 messages, got %v", texts)
	}
	if texts[0] != `✅ Fetched 8 resources of 7 types\.` {
		t.Fatalf("Unexpected fetch message %q", texts[0])
	}

	markup, ok := api.lastMessage().ReplyMarkup.(*models.InlineKeyboardMarkup)
	if !ok {
		t.Fatalf("Expected inline keyboard")
	}
	// 7 toggles in rows of two, then select all/clear and summarize/return.
	if len(markup.InlineKeyboard) != 6 {
		t.Fatalf("Expected 6 keyboard rows, got %d", len(markup.InlineKeyboard))
	}
	if first := markup.InlineKeyboard[0][0]; first.Text != "⬜️ App Service" || first.CallbackData != toggleData(b, 0) {
		t.Fatalf("Unexpected first toggle %+v", first)
	}
}

func TestSummarizeRequiresSelection(t *testing.T) {
	b, api, _ := newTestBot(t)
	ctx := context.Background()

	b.handleUpdate(ctx, messageUpdate(1, "/summarize"))
	if !strings.Contains(api.lastMessage().Text, "/fetch") {
		t.Fatalf("Expected fetch hint, got %q", api.lastMessage().Text)
	}

	b.handleUpdate(ctx, messageUpdate(1, "/fetch"))
	b.handleUpdate(ctx, messageUpdate(1, "/summarize"))
	if !strings.Contains(api.lastMessage().Text, "/types") {
		t.Fatalf("Expected types hint, got %q", api.lastMessage().Text)
	}

	b.handleUpdate(ctx, messageUpdate(1, "/opguide"))
	if !strings.Contains(api.lastMessage().Text, "/summarize") {
		t.Fatalf("Expected summarize hint, got %q", api.lastMessage().Text)
	}
}

func TestToggleSummarizeAndOpGuide(t *testing.T) {
	b, api, settings := newTestBot(t)
	ctx := context.Background()

	b.handleUpdate(ctx, messageUpdate(1, "/fetch"))
	// App Service and Firewall.
	b.handleUpdate(ctx, callbackUpdate(1, toggleData(b, 0)))
	b.handleUpdate(ctx, callbackUpdate(1, toggleData(b, 3)))

	if got := b.chatSession(testChatID).Selected(); len(got) != 2 || got[0] != "App Service" || got[1] != "Firewall" {
		t.Fatalf("Unexpected selection %v", got)
	}
	if len(api.edits) != 2 || api.edits[1].Text != typesText(2, 7) {
		t.Fatalf("Expected keyboard to be refreshed, got %d edits", len(api.edits))
	}

	before := len(api.texts())
	b.handleUpdate(ctx, messageUpdate(1, "/summarize"))
	texts := api.texts()[before:]

	if len(texts) != 3 {
		t.Fatalf("Expected 2 group messages and an outcome, got %v", texts)
	}
	if texts[0] != "*\\-\\-\\- App Service \\(2\\) \\-\\-\\-*\nsummary of App Service Summary" {
		t.Fatalf("Unexpected App Service message %q", texts[0])
	}
	if !strings.Contains(texts[1], "Error summarizing: model unavailable") {
		t.Fatalf("Unexpected Firewall message %q", texts[1])
	}
	if !strings.Contains(texts[2], "1 failed") {
		t.Fatalf("Unexpected outcome %q", texts[2])
	}

	saved := settings.settings[testChatID]
	if len(saved.ReportTypes) != 2 {
		t.Fatalf("Expected report types to be saved, got %+v", saved)
	}

	b.handleUpdate(ctx, messageUpdate(1, "/opguide"))

	if len(api.documents) != 1 {
		t.Fatalf("Expected one document, got %d", len(api.documents))
	}
	doc := api.documents[0]
	if !strings.HasPrefix(doc.fileName, "Azure_OpGuide_") || !strings.HasSuffix(doc.fileName, ".docx") {
		t.Fatalf("Unexpected file name %q", doc.fileName)
	}
	if !strings.Contains(string(doc.data), "Error summarizing: model unavailable") {
		t.Fatalf("Expected failure in document, got %q", doc.data)
	}
	if doc.caption != "📄 *Azure OpGuide*\n2 types, 1 failed\\." {
		t.Fatalf("Unexpected caption %q", doc.caption)
	}
}

func TestSelectAllAndClear(t *testing.T) {
	b, _, _ := newTestBot(t)
	ctx := context.Background()

	b.handleUpdate(ctx, messageUpdate(1, "/fetch"))
	b.handleUpdate(ctx, callbackUpdate(1, typesAllCallback))

	if got := b.chatSession(testChatID).Selected(); len(got) != 7 {
		t.Fatalf("Expected all 7 types, got %v", got)
	}

	b.handleUpdate(ctx, callbackUpdate(1, typesClearCallback))

	if got := b.chatSession(testChatID).Selected(); len(got) != 0 {
		t.Fatalf("Expected empty selection, got %v", got)
	}
}

func TestToggleOutOfRange(t *testing.T) {
	b, api, _ := newTestBot(t)
	ctx := context.Background()

	b.handleUpdate(ctx, callbackUpdate(1, toggleData(b, 9)))

	if len(api.answers) != 1 || api.answers[0] != "❌ Failed." {
		t.Fatalf("Expected failure answer, got %v", api.answers)
	}
}

func TestToggleFromOutdatedKeyboardIsRejected(t *testing.T) {
	b, api, _ := newTestBot(t)
	ctx := context.Background()

	b.handleUpdate(ctx, messageUpdate(1, "/fetch"))
	outdated := toggleData(b, 0)

	// A refetch that returns a different inventory shifts the indexes.
	sess := b.chatSession(testChatID)
	sess.SetResources([]domain.Resource{
		{ID: "1", Name: "KV-Prod", Type: "Key Vault"},
		{ID: "2", Name: "st-prod-logs", Type: "Storage Account"},
	})

	b.handleUpdate(ctx, callbackUpdate(1, outdated))

	if len(api.answers) != 1 || api.answers[0] != "❌ Failed." {
		t.Fatalf("Expected failure answer, got %v", api.answers)
	}
	if got := sess.Selected(); len(got) != 0 {
		t.Fatalf("Expected untouched selection, got %v", got)
	}

	b.handleUpdate(ctx, callbackUpdate(1, toggleData(b, 0)))

	if got := sess.Selected(); len(got) != 1 || got[0] != "Key Vault" {
		t.Fatalf("Expected Key Vault to be selected, got %v", got)
	}
}

func TestSummarizeCancelledReturnsError(t *testing.T) {
	b, api, _ := newTestBot(t)

	b.handleUpdate(context.Background(), messageUpdate(1, "/fetch"))
	b.handleUpdate(context.Background(), callbackUpdate(1, typesAllCallback))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := b.handleSummarizeCommand(ctx, testChatID)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if api.lastMessage().Text != failedText {
		t.Fatalf("Expected failure message, got %q", api.lastMessage().Text)
	}
}

func TestSettingsHour(t *testing.T) {
	b, api, settings := newTestBot(t)
	ctx := context.Background()

	b.handleUpdate(ctx, callbackUpdate(1, "settings_hour_07"))

	saved := settings.settings[testChatID]
	if saved.AutoOpGuideHourUTC == nil || *saved.AutoOpGuideHourUTC != 7 {
		t.Fatalf("Expected hour 7, got %+v", saved)
	}
	if !strings.Contains(api.lastMessage().Text, "07:00") {
		t.Fatalf("Expected settings message with hour, got %q", api.lastMessage().Text)
	}

	b.handleUpdate(ctx, callbackUpdate(1, settingsHourOffCallback))

	if saved = settings.settings[testChatID]; saved.AutoOpGuideHourUTC != nil {
		t.Fatalf("Expected auto OpGuide off, got %+v", saved)
	}

	b.handleUpdate(ctx, callbackUpdate(1, "settings_hour_24"))

	if last := api.answers[len(api.answers)-1]; last != "❌ Failed." {
		t.Fatalf("Expected failure answer, got %q", last)
	}
}

func TestSettingsHourKeyboard(t *testing.T) {
	keyboard := getSettingsHourKeyboard()

	// 24 hours in rows of six, then off and return.
	if len(keyboard) != 6 {
		t.Fatalf("Expected 6 rows, got %d", len(keyboard))
	}
	if got := keyboard[3][5].CallbackData; got != "settings_hour_23" {
		t.Fatalf("Expected last hour button, got %q", got)
	}
	if got := keyboard[4][0].CallbackData; got != settingsHourOffCallback {
		t.Fatalf("Expected off button, got %q", got)
	}
}
