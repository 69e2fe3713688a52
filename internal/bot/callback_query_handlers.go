package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

func (b *Bot) handleCallbackQuery(ctx context.Context, callback *models.CallbackQuery) error {
	chatID := callbackChatID(callback)
	if chatID == 0 {
		return b.answerCallback(ctx, callback, "")
	}

	return b.withSpinner(ctx, chatID, func() error {
		data := strings.TrimSpace(callback.Data)

		switch data {
		case "menu":
			return b.withEmptyCallbackAnswer(ctx, callback, func() error {
				return b.handleMenuCommand(ctx, chatID)
			})
		case "menu_fetch":
			return b.withEmptyCallbackAnswer(ctx, callback, func() error {
				return b.handleFetchCommand(ctx, chatID)
			})
		case "menu_types":
			return b.withEmptyCallbackAnswer(ctx, callback, func() error {
				return b.handleTypesCommand(ctx, chatID)
			})
		case "menu_summarize":
			return b.withEmptyCallbackAnswer(ctx, callback, func() error {
				return b.handleSummarizeCommand(ctx, chatID)
			})
		case "menu_opguide":
			return b.withEmptyCallbackAnswer(ctx, callback, func() error {
				return b.handleOpGuideCommand(ctx, chatID)
			})
		case "menu_settings":
			return b.withEmptyCallbackAnswer(ctx, callback, func() error {
				return b.handleSettingsCommand(ctx, chatID)
			})
		case typesAllCallback:
			return b.handleTypesSelectQuery(ctx, callback, chatID, true)
		case typesClearCallback:
			return b.handleTypesSelectQuery(ctx, callback, chatID, false)
		case settingsHourOffCallback:
			return b.handleSettingsHourQuery(ctx, callback, chatID, nil)
		}

		if payload, ok := strings.CutPrefix(data, typesToggleCallbackPrefix); ok {
			return b.handleTypesToggleQuery(ctx, callback, chatID, payload)
		}

		if hourUTCStr, ok := strings.CutPrefix(data, settingsHourCallbackPrefix); ok {
			hourUTC, err := strconv.ParseInt(strings.TrimSpace(hourUTCStr), 10, 64)
			if err != nil {
				return b.errorCallbackAnswer(ctx, callback, fmt.Errorf("parse hourUTC: %w", err))
			}
			if hourUTC < 0 || hourUTC >= hoursPerDay {
				return b.errorCallbackAnswer(ctx, callback, fmt.Errorf("hourUTC %d is out of range", hourUTC))
			}

			return b.handleSettingsHourQuery(ctx, callback, chatID, &hourUTC)
		}

		return b.answerCallback(ctx, callback, "")
	})
}

func (b *Bot) handleTypesToggleQuery(
	ctx context.Context,
	callback *models.CallbackQuery,
	chatID int64,
	payload string,
) error {
	sess := b.chatSession(chatID)
	types := sess.Types()

	fingerprint, indexStr, _ := strings.Cut(strings.TrimSpace(payload), "_")
	if fingerprint != typesFingerprint(types) {
		return b.errorCallbackAnswer(ctx, callback, fmt.Errorf("types keyboard %q is outdated", fingerprint))
	}

	index, err := strconv.Atoi(indexStr)
	if err != nil || index < 0 || index >= len(types) {
		return b.errorCallbackAnswer(ctx, callback, fmt.Errorf("resolve type index %q of %d", indexStr, len(types)))
	}

	if err = sess.Toggle(types[index]); err != nil {
		return b.errorCallbackAnswer(ctx, callback, fmt.Errorf("toggle type: %w", err))
	}

	return b.withEmptyCallbackAnswer(ctx, callback, func() error {
		return b.refreshTypesKeyboard(ctx, callback, chatID)
	})
}

func (b *Bot) handleTypesSelectQuery(
	ctx context.Context,
	callback *models.CallbackQuery,
	chatID int64,
	all bool,
) error {
	sess := b.chatSession(chatID)

	var types []string
	if all {
		types = sess.Types()
	}

	if err := sess.Select(types); err != nil {
		return b.errorCallbackAnswer(ctx, callback, fmt.Errorf("select types: %w", err))
	}

	return b.withEmptyCallbackAnswer(ctx, callback, func() error {
		return b.refreshTypesKeyboard(ctx, callback, chatID)
	})
}

func (b *Bot) refreshTypesKeyboard(ctx context.Context, callback *models.CallbackQuery, chatID int64) error {
	sess := b.chatSession(chatID)
	types := sess.Types()
	selected := sess.Selected()

	return b.rateLimiter.Send(ctx, chatID, func(ctx context.Context) error {
		_, err := b.api.EditMessageText(ctx, &tgbot.EditMessageTextParams{
			ChatID:    chatID,
			MessageID: callback.Message.Message.ID,
			Text:      typesText(len(selected), len(types)),
			ParseMode: models.ParseModeMarkdown,
			ReplyMarkup: &models.InlineKeyboardMarkup{
				InlineKeyboard: getTypesKeyboard(types, selectedSet(selected)),
			},
		})
		return err
	})
}

func (b *Bot) handleSettingsHourQuery(
	ctx context.Context,
	callback *models.CallbackQuery,
	chatID int64,
	hourUTC *int64,
) error {
	settings, err := b.db.GetChatSettingsWithDefault(ctx, chatID)
	if err != nil {
		return b.errorCallbackAnswer(ctx, callback, fmt.Errorf("get chat settings with default: %w", err))
	}

	settings.AutoOpGuideHourUTC = hourUTC
	if err = b.db.UpsertChatSettings(ctx, settings); err != nil {
		return b.errorCallbackAnswer(ctx, callback, fmt.Errorf("upsert chat settings: %w", err))
	}

	if err = b.answerCallback(ctx, callback, "✅ Settings are updated."); err != nil {
		return err
	}

	return b.handleSettingsCommand(ctx, chatID)
}

func (b *Bot) withEmptyCallbackAnswer(
	ctx context.Context,
	callback *models.CallbackQuery,
	fn func() error,
) error {
	var errs []error

	if err := b.answerCallback(ctx, callback, ""); err != nil {
		errs = append(errs, err)
	}

	if err := fn(); err != nil {
		errs = append(errs, fmt.Errorf("call fn: %w", err))
	}

	return errors.Join(errs...)
}

func (b *Bot) errorCallbackAnswer(
	ctx context.Context,
	callback *models.CallbackQuery,
	err error,
) error {
	if sendErr := b.answerCallback(ctx, callback, "❌ Failed."); sendErr != nil {
		return errors.Join(err, sendErr)
	}
	return err
}

func (b *Bot) answerCallback(ctx context.Context, callback *models.CallbackQuery, text string) error {
	if _, err := b.api.AnswerCallbackQuery(ctx, &tgbot.AnswerCallbackQueryParams{
		CallbackQueryID: callback.ID,
		Text:            text,
	}); err != nil {
		return fmt.Errorf("answer callback query: %w", err)
	}
	return nil
}
