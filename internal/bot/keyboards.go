package bot

import (
	"bytes"
	"context"
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"opguide/internal/opguide"
)

const (
	hoursPerDay                 = 24
	settingsHourKeyboardRowSize = 6
	settingsHourCallbackPrefix  = "settings_hour_"
	settingsHourOffCallback     = "settings_hour_off"
	typesToggleCallbackPrefix   = "types_toggle_"
	typesAllCallback            = "types_all"
	typesClearCallback          = "types_clear"
	typesKeyboardRowSize        = 2
	maxCaptionLength            = 1024
)

func (b *Bot) sendMessageWithKeyboard(
	ctx context.Context,
	chatID int64,
	text string,
	keyboard [][]models.InlineKeyboardButton,
) error {
	normalizedText := strings.ToValidUTF8(text, "?")
	if normalizedText != text {
		b.log.WarnContext(ctx, "Message text had invalid UTF-8 and was normalized",
			"chatID", chatID,
			"originalLen", len(text),
			"normalizedLen", len(normalizedText))
	}

	params := &tgbot.SendMessageParams{
		ChatID: chatID,
		Text:   normalizedText,
		// See https://core.telegram.org/bots/api#markdownv2-style.
		ParseMode:          models.ParseModeMarkdown,
		LinkPreviewOptions: &models.LinkPreviewOptions{IsDisabled: tgbot.True()},
	}
	if len(keyboard) > 0 {
		params.ReplyMarkup = &models.InlineKeyboardMarkup{InlineKeyboard: keyboard}
	}

	return b.rateLimiter.Send(ctx, chatID, func(ctx context.Context) error {
		_, err := b.api.SendMessage(ctx, params)
		return err
	})
}

func (b *Bot) sendDocument(ctx context.Context, chatID int64, doc opguide.Document, caption string) error {
	return b.rateLimiter.Send(ctx, chatID, func(ctx context.Context) error {
		_, err := b.api.SendDocument(ctx, &tgbot.SendDocumentParams{
			ChatID: chatID,
			Document: &models.InputFileUpload{
				Filename: doc.FileName,
				Data:     bytes.NewReader(doc.Data),
			},
			Caption:   caption,
			ParseMode: models.ParseModeMarkdown,
		})
		return err
	})
}

func getReturnKeyboard() [][]models.InlineKeyboardButton {
	return [][]models.InlineKeyboardButton{
		{{Text: "⬅️ Return to menu", CallbackData: "menu"}},
	}
}

func getMenuKeyboard() [][]models.InlineKeyboardButton {
	return [][]models.InlineKeyboardButton{
		{
			{Text: "☁️ Fetch resources", CallbackData: "menu_fetch"},
			{Text: "🗂 Resource types", CallbackData: "menu_types"},
		},
		{
			{Text: "🧠 Summarize", CallbackData: "menu_summarize"},
			{Text: "📄 OpGuide", CallbackData: "menu_opguide"},
		},
		{
			{Text: "⚙️ Settings", CallbackData: "menu_settings"},
		},
	}
}

// getTypesKeyboard renders one toggle per fetched type. Callback data carries
// the index into types because type names may exceed the 64 byte limit, and
// a fingerprint of types so a keyboard from an older fetch is rejected.
func getTypesKeyboard(types []string, selected map[string]bool) [][]models.InlineKeyboardButton {
	var keyboard [][]models.InlineKeyboardButton
	var row []models.InlineKeyboardButton

	fingerprint := typesFingerprint(types)

	for i, t := range types {
		mark := "⬜️"
		if selected[t] {
			mark = "✅"
		}

		row = append(row, models.InlineKeyboardButton{
			Text:         mark + " " + t,
			CallbackData: typesToggleCallbackPrefix + fingerprint + "_" + strconv.Itoa(i),
		})

		if len(row) == typesKeyboardRowSize {
			keyboard = append(keyboard, row)
			row = nil
		}
	}
	if len(row) > 0 {
		keyboard = append(keyboard, row)
	}

	keyboard = append(keyboard,
		[]models.InlineKeyboardButton{
			{Text: "☑️ Select all", CallbackData: typesAllCallback},
			{Text: "✖️ Clear", CallbackData: typesClearCallback},
		},
		[]models.InlineKeyboardButton{
			{Text: "🧠 Summarize", CallbackData: "menu_summarize"},
			{Text: "⬅️ Return to menu", CallbackData: "menu"},
		},
	)

	return keyboard
}

func getSettingsHourKeyboard() [][]models.InlineKeyboardButton {
	var keyboard [][]models.InlineKeyboardButton

	for i := 0; i < hoursPerDay; i += settingsHourKeyboardRowSize {
		var row []models.InlineKeyboardButton

		for j := i; j < i+settingsHourKeyboardRowSize && j < hoursPerDay; j++ {
			hour := fmt.Sprintf("%02d", j)
			row = append(row, models.InlineKeyboardButton{
				Text:         hour,
				CallbackData: settingsHourCallbackPrefix + hour,
			})
		}

		keyboard = append(keyboard, row)
	}

	return append(keyboard,
		[]models.InlineKeyboardButton{{Text: "🔕 Off", CallbackData: settingsHourOffCallback}},
		[]models.InlineKeyboardButton{{Text: "⬅️ Return to menu", CallbackData: "menu"}},
	)
}

func typesFingerprint(types []string) string {
	h := fnv.New32a()
	for _, t := range types {
		h.Write([]byte(t))
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%08x", h.Sum32())
}
