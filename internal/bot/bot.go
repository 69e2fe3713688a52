package bot

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"opguide/internal/domain"
	"opguide/internal/opguide"
	"opguide/internal/ratelimiter"
	"opguide/internal/session"
)

const updateProcessingTimeout = 10 * time.Minute

// telegramAPI is the subset of the Bot API client used by the handlers.
type telegramAPI interface {
	SendMessage(ctx context.Context, params *tgbot.SendMessageParams) (*models.Message, error)
	SendDocument(ctx context.Context, params *tgbot.SendDocumentParams) (*models.Message, error)
	EditMessageText(ctx context.Context, params *tgbot.EditMessageTextParams) (*models.Message, error)
	AnswerCallbackQuery(ctx context.Context, params *tgbot.AnswerCallbackQueryParams) (bool, error)
	SendChatAction(ctx context.Context, params *tgbot.SendChatActionParams) (bool, error)
}

type rateLimiter interface {
	Send(ctx context.Context, chatID int64, send ratelimiter.SendFunc) error
	Stop()
}

type settingsStore interface {
	GetChatSettingsWithDefault(ctx context.Context, chatID int64) (*domain.ChatSettings, error)
	UpsertChatSettings(ctx context.Context, settings *domain.ChatSettings) error
}

type Bot struct {
	client       *tgbot.Bot
	api          telegramAPI
	rateLimiter  rateLimiter
	db           settingsStore
	service      *opguide.Service
	sessions     *session.Store
	allowedUsers []int64
	now          func() time.Time
	log          *slog.Logger
}

func New(
	token string,
	service *opguide.Service,
	db settingsStore,
	allowedUsers []int64,
	log *slog.Logger,
) (*Bot, error) {
	b := newBot(nil, service, db, allowedUsers, log)

	client, err := tgbot.New(
		strings.TrimSpace(token),
		tgbot.WithDefaultHandler(func(ctx context.Context, _ *tgbot.Bot, update *models.Update) {
			b.handleUpdate(ctx, update)
		}),
	)
	if err != nil {
		b.Stop()
		return nil, fmt.Errorf("create bot client: %w", err)
	}

	b.client = client
	b.api = client

	return b, nil
}

func newBot(
	api telegramAPI,
	service *opguide.Service,
	db settingsStore,
	allowedUsers []int64,
	log *slog.Logger,
) *Bot {
	return &Bot{
		api:          api,
		rateLimiter:  ratelimiter.New(log),
		db:           db,
		service:      service,
		sessions:     session.NewStore(),
		allowedUsers: allowedUsers,
		now:          time.Now,
		log:          log,
	}
}

// Start receives updates until ctx is done.
func (b *Bot) Start(ctx context.Context) {
	b.log.InfoContext(ctx, "Bot is started")

	b.client.Start(ctx)

	b.log.InfoContext(ctx, "Bot context is done",
		"error", ctx.Err())
}

func (b *Bot) Stop() {
	if b.rateLimiter != nil {
		b.rateLimiter.Stop()
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update *models.Update) {
	updateCtx, cancel := context.WithTimeout(ctx, updateProcessingTimeout)
	defer cancel()

	switch {
	case update.Message != nil:
		message := update.Message
		chatID := message.Chat.ID

		if message.From == nil || !b.userAllowed(message.From.ID) {
			b.log.DebugContext(updateCtx, "User is not allowed",
				"chatID", chatID,
				"chatType", message.Chat.Type)

			return
		}

		if err := b.handleMessage(updateCtx, message); err != nil {
			b.log.ErrorContext(updateCtx, "Failed to handle message",
				"error", err,
				"chatID", chatID,
				"userID", message.From.ID,
				"chatType", message.Chat.Type,
				"messageID", message.ID)
		}

	case update.CallbackQuery != nil:
		callback := update.CallbackQuery
		chatID := callbackChatID(callback)

		if !b.userAllowed(callback.From.ID) {
			b.log.DebugContext(updateCtx, "User is not allowed",
				"userID", callback.From.ID,
				"chatID", chatID,
				"username", callback.From.Username,
				"data", callback.Data)

			return
		}

		if err := b.handleCallbackQuery(updateCtx, callback); err != nil {
			b.log.ErrorContext(updateCtx, "Failed to handle callback query",
				"error", err,
				"chatID", chatID,
				"userID", callback.From.ID,
				"data", callback.Data)
		}
	}
}

func (b *Bot) userAllowed(userID int64) bool {
	return len(b.allowedUsers) == 0 || slices.Contains(b.allowedUsers, userID)
}

func (b *Bot) chatSession(chatID int64) *session.Session {
	return b.sessions.GetOrCreate(chatSessionKey(chatID))
}

func chatSessionKey(chatID int64) string {
	return "chat:" + strconv.FormatInt(chatID, 10)
}

func callbackChatID(callback *models.CallbackQuery) int64 {
	if callback != nil && callback.Message.Message != nil {
		return callback.Message.Message.Chat.ID
	}

	return 0
}

// SendOpGuide delivers a generated OpGuide with the per-type outcome as the
// caption.
func (b *Bot) SendOpGuide(
	ctx context.Context,
	chatID int64,
	doc opguide.Document,
	summaries map[string]domain.GroupSummary,
) error {
	return b.sendDocument(ctx, chatID, doc, outcomeCaption(summaries))
}
