package bot

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"opguide/internal/domain"
	"opguide/internal/markdown"
	"opguide/internal/opguide"
)

const maxSummaryLength = 3500

const welcomeText = `🤖 *Welcome to Azure OpGuide\!*

I turn your Azure resources into an operational guide\. I can help you:

– Fetch the resources of your subscription with /fetch
– Choose which resource types to cover with /types
– Summarize every selected type with /summarize
– Download the OpGuide document with /opguide
– Receive the OpGuide daily at a chosen hour with /settings`

const settingsText = `*⚙️ Settings*

Current UTC time is %s\.

Daily auto\-OpGuide hour \(UTC\) is %s\.
Report types: %s\.

You can choose a different hour below:`

const failedText = "❌ Failed\\."

func (b *Bot) handleStartCommand(ctx context.Context, chatID int64) error {
	return b.sendMessageWithKeyboard(ctx, chatID, welcomeText, getMenuKeyboard())
}

func (b *Bot) handleMenuCommand(ctx context.Context, chatID int64) error {
	return b.sendMessageWithKeyboard(ctx, chatID, "❔ *Choose an option:*", getMenuKeyboard())
}

func (b *Bot) handleFetchCommand(ctx context.Context, chatID int64) error {
	sess := b.chatSession(chatID)

	resources, err := b.service.Fetch(ctx, sess)
	if err != nil {
		errs := []error{fmt.Errorf("fetch resources: %w", err)}

		sendErr := b.sendMessageWithKeyboard(ctx, chatID,
			"❌ Failed to fetch resources: "+markdown.EscapeV2(err.Error()),
			getReturnKeyboard())
		if sendErr != nil {
			errs = append(errs, fmt.Errorf("send message with keyboard: %w", sendErr))
		}

		return errors.Join(errs...)
	}

	if len(resources) == 0 {
		return b.sendMessageWithKeyboard(ctx, chatID, "✖️ No resources were found\\.", getReturnKeyboard())
	}

	text := fmt.Sprintf("✅ Fetched %d resources of %d types\\.", len(resources), len(sess.Types()))
	if err = b.sendMessageWithKeyboard(ctx, chatID, text, nil); err != nil {
		return fmt.Errorf("send message with keyboard: %w", err)
	}

	return b.handleTypesCommand(ctx, chatID)
}

func (b *Bot) handleTypesCommand(ctx context.Context, chatID int64) error {
	sess := b.chatSession(chatID)

	types := sess.Types()
	if len(types) == 0 {
		return b.sendMessageWithKeyboard(ctx, chatID,
			"✖️ Nothing is fetched yet\\. Use /fetch first\\.",
			getMenuKeyboard())
	}

	return b.sendMessageWithKeyboard(ctx, chatID,
		typesText(len(sess.Selected()), len(types)),
		getTypesKeyboard(types, selectedSet(sess.Selected())))
}

func (b *Bot) handleSummarizeCommand(ctx context.Context, chatID int64) error {
	sess := b.chatSession(chatID)

	summaries, err := b.service.Summarize(ctx, sess)
	if err != nil {
		var errs []error

		text := failedText
		switch {
		case errors.Is(err, opguide.ErrNoResources):
			text = "✖️ Nothing is fetched yet\\. Use /fetch first\\."
		case errors.Is(err, opguide.ErrNoTypesSelected):
			text = "✖️ No resource types are selected\\. Use /types first\\."
		case errors.Is(err, opguide.ErrStaleSelection):
			text = "⚠️ Resources or selection changed while summarizing\\. Please summarize again\\."
		default:
			errs = append(errs, fmt.Errorf("summarize: %w", err))
		}

		if err = b.sendMessageWithKeyboard(ctx, chatID, text, getMenuKeyboard()); err != nil {
			errs = append(errs, fmt.Errorf("send message with keyboard: %w", err))
		}

		return errors.Join(errs...)
	}

	var errs []error

	for _, resourceType := range slices.Sorted(maps.Keys(summaries)) {
		if err = b.sendMessageWithKeyboard(ctx, chatID, formatGroupSummary(summaries[resourceType]), nil); err != nil {
			errs = append(errs, fmt.Errorf("send group summary: %w", err))
		}
	}

	b.saveReportTypes(ctx, chatID, sess.Selected())

	if err = b.sendMessageWithKeyboard(ctx, chatID, outcomeText(summaries), getMenuKeyboard()); err != nil {
		errs = append(errs, fmt.Errorf("send message with keyboard: %w", err))
	}

	return errors.Join(errs...)
}

func (b *Bot) handleOpGuideCommand(ctx context.Context, chatID int64) error {
	sess := b.chatSession(chatID)

	doc, err := b.service.Document(ctx, sess)
	if err != nil {
		var errs []error

		text := failedText
		if errors.Is(err, opguide.ErrNotSummarized) {
			text = "✖️ Nothing is summarized yet\\. Use /summarize first\\."
		} else {
			errs = append(errs, fmt.Errorf("generate document: %w", err))
		}

		if sendErr := b.sendMessageWithKeyboard(ctx, chatID, text, getMenuKeyboard()); sendErr != nil {
			errs = append(errs, fmt.Errorf("send message with keyboard: %w", sendErr))
		}

		return errors.Join(errs...)
	}

	if err = b.sendDocument(ctx, chatID, doc, outcomeCaption(sess.Summaries())); err != nil {
		return fmt.Errorf("send document: %w", err)
	}

	return nil
}

func (b *Bot) handleSettingsCommand(ctx context.Context, chatID int64) error {
	settings, err := b.db.GetChatSettingsWithDefault(ctx, chatID)
	if err != nil {
		errs := []error{fmt.Errorf("get chat settings with default: %w", err)}

		sendErr := b.sendMessageWithKeyboard(ctx, chatID, failedText, getReturnKeyboard())
		if sendErr != nil {
			errs = append(errs, fmt.Errorf("send message with keyboard: %w", sendErr))
		}

		return errors.Join(errs...)
	}

	hourUTCStr := "off"
	if settings.AutoOpGuideHourUTC != nil {
		hourUTCStr = fmt.Sprintf("%02d:00", *settings.AutoOpGuideHourUTC)
	}

	reportTypes := "all fetched types"
	if len(settings.ReportTypes) > 0 {
		reportTypes = strings.Join(settings.ReportTypes, ", ")
	}

	if err = b.sendMessageWithKeyboard(ctx, chatID,
		fmt.Sprintf(settingsText,
			b.now().UTC().Format("15:04"),
			hourUTCStr,
			markdown.EscapeV2(reportTypes)),
		getSettingsHourKeyboard(),
	); err != nil {
		return fmt.Errorf("send message with keyboard: %w", err)
	}

	return nil
}

// saveReportTypes remembers the last summarized selection for the daily
// OpGuide.
func (b *Bot) saveReportTypes(ctx context.Context, chatID int64, types []string) {
	settings, err := b.db.GetChatSettingsWithDefault(ctx, chatID)
	if err == nil {
		settings.ReportTypes = types
		err = b.db.UpsertChatSettings(ctx, settings)
	}

	if err != nil {
		b.log.ErrorContext(ctx, "Failed to save report types",
			"error", err,
			"chatID", chatID,
			"reportTypes", types)
	}
}

func typesText(selected, total int) string {
	return fmt.Sprintf("🗂 *Select resource types* \\(%d of %d selected\\):", selected, total)
}

func selectedSet(types []string) map[string]bool {
	set := make(map[string]bool, len(types))
	for _, t := range types {
		set[t] = true
	}
	return set
}

func formatGroupSummary(gs domain.GroupSummary) string {
	header := "*" + markdown.EscapeV2(opguide.SectionHeader(gs.ResourceType, gs.Count)) + "*\n"

	if gs.Failed() {
		return header + "⚠️ Error summarizing: " + markdown.EscapeV2(markdown.Truncate(gs.Error, maxSummaryLength))
	}

	return header + markdown.EscapeV2(markdown.Truncate(gs.Summary, maxSummaryLength))
}

func countFailed(summaries map[string]domain.GroupSummary) int {
	failed := 0
	for _, gs := range summaries {
		if gs.Failed() {
			failed++
		}
	}
	return failed
}

func outcomeText(summaries map[string]domain.GroupSummary) string {
	failed := countFailed(summaries)
	if failed == 0 {
		return fmt.Sprintf("✅ Summarized %d types\\. Use /opguide to download the document\\.", len(summaries))
	}

	return fmt.Sprintf("⚠️ Summarized %d types, %d failed\\. Use /opguide to download the document\\.",
		len(summaries), failed)
}

func outcomeCaption(summaries map[string]domain.GroupSummary) string {
	caption := fmt.Sprintf("📄 *Azure OpGuide*\n%d types, %d failed\\.", len(summaries), countFailed(summaries))
	return markdown.Truncate(caption, maxCaptionLength)
}
