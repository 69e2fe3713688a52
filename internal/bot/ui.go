package bot

import (
	"context"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const sendSpinnerInterval = 4 * time.Second

func (b *Bot) sendTyping(ctx context.Context, chatID int64) {
	_, err := b.api.SendChatAction(ctx, &tgbot.SendChatActionParams{
		ChatID: chatID,
		Action: models.ChatActionTyping,
	})
	if err != nil && ctx.Err() == nil {
		b.log.ErrorContext(ctx, "Failed to send chat action",
			"error", err,
			"chatID", chatID)
	}
}

func (b *Bot) withSpinner(ctx context.Context, chatID int64, fn func() error) error {
	spinnerCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	defer func() {
		cancel()
		<-done
	}()

	go func() {
		defer close(done)

		b.sendTyping(spinnerCtx, chatID)

		t := time.NewTicker(sendSpinnerInterval)
		defer t.Stop()

		for {
			select {
			case <-spinnerCtx.Done():
				return
			case <-t.C:
				b.sendTyping(spinnerCtx, chatID)
			}
		}
	}()

	return fn()
}
