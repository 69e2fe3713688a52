package bot

import (
	"context"
	"strings"

	"github.com/go-telegram/bot/models"
)

const unknownText = `✖️ Unknown command\.

Use /menu to see what I can do\.`

func (b *Bot) handleMessage(ctx context.Context, message *models.Message) error {
	chatID := message.Chat.ID

	return b.withSpinner(ctx, chatID, func() error {
		switch command(message.Text) {
		case "/start":
			return b.handleStartCommand(ctx, chatID)
		case "/menu":
			return b.handleMenuCommand(ctx, chatID)
		case "/fetch":
			return b.handleFetchCommand(ctx, chatID)
		case "/types":
			return b.handleTypesCommand(ctx, chatID)
		case "/summarize":
			return b.handleSummarizeCommand(ctx, chatID)
		case "/opguide":
			return b.handleOpGuideCommand(ctx, chatID)
		case "/settings":
			return b.handleSettingsCommand(ctx, chatID)
		default:
			return b.sendMessageWithKeyboard(ctx, chatID, unknownText, getMenuKeyboard())
		}
	})
}

// command extracts the bot command, dropping arguments and the @botname
// suffix used in group chats.
func command(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}

	cmd, _, _ := strings.Cut(fields[0], "@")
	return strings.ToLower(cmd)
}
