package opguide

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"opguide/internal/domain"
	"opguide/internal/summarizer"
)

const (
	unknownSummarizeError = "An unknown error occurred during summarization."
	resourceDelimiter     = "---"
)

var errEmptySummary = errors.New("summary is empty")

// BatchSummarizer summarizes groups of resources one summarizer call per
// group. A failing group is recorded and never stops the remaining ones.
type BatchSummarizer struct {
	summarizer  summarizer.Summarizer
	callTimeout time.Duration
	observe     func(outcome string, d time.Duration)
	log         *slog.Logger
}

// NewBatchSummarizer builds a batch summarizer. A zero callTimeout leaves
// summarizer calls unbounded.
func NewBatchSummarizer(
	s summarizer.Summarizer,
	callTimeout time.Duration,
	log *slog.Logger,
) *BatchSummarizer {
	return &BatchSummarizer{
		summarizer:  s,
		callTimeout: callTimeout,
		log:         log,
	}
}

// SummarizeGroups processes groups sequentially in Groups.Types order.
func (b *BatchSummarizer) SummarizeGroups(
	ctx context.Context,
	groups Groups,
) map[string]domain.GroupSummary {
	result := make(map[string]domain.GroupSummary, len(groups))

	for _, resourceType := range groups.Types() {
		resources := groups[resourceType]
		count := len(resources)
		if count == 0 {
			continue
		}

		b.log.InfoContext(ctx, "Summarizing resource type",
			"resourceType", resourceType,
			"count", count)

		summary, err := b.call(ctx, summarizer.Input{
			ResourceType:          "Batch Summary for " + resourceType,
			ResourceName:          resourceType + " Summary",
			ResourceConfiguration: BuildGroupPrompt(resourceType, resources),
		})
		if err != nil {
			b.log.WarnContext(ctx, "Failed to summarize resource type",
				"error", err,
				"resourceType", resourceType,
				"count", count)

			result[resourceType] = domain.GroupSummary{
				ResourceType: resourceType,
				Count:        count,
				Error:        errorMessage(err),
			}
			continue
		}

		result[resourceType] = domain.GroupSummary{
			ResourceType: resourceType,
			Count:        count,
			Summary:      summary,
		}
	}

	return result
}

// SummarizeResources summarizes every resource on its own, in input order.
func (b *BatchSummarizer) SummarizeResources(
	ctx context.Context,
	resources []domain.Resource,
) []domain.ResourceSummary {
	result := make([]domain.ResourceSummary, 0, len(resources))

	for _, r := range resources {
		summary, err := b.call(ctx, summarizer.Input{
			ResourceType:          r.Type,
			ResourceName:          r.Name,
			ResourceConfiguration: r.Configuration,
			ResourceUsage:         r.Usage,
		})
		if err != nil {
			b.log.WarnContext(ctx, "Failed to summarize resource",
				"error", err,
				"resourceID", r.ID,
				"resourceType", r.Type)

			result = append(result, domain.ResourceSummary{Resource: r, Error: errorMessage(err)})
			continue
		}

		result = append(result, domain.ResourceSummary{Resource: r, Summary: summary})
	}

	return result
}

func (b *BatchSummarizer) call(ctx context.Context, input summarizer.Input) (summary string, err error) {
	if b.summarizer == nil {
		return "", errors.New("summarizer is not configured")
	}

	if b.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.callTimeout)
		defer cancel()
	}

	start := time.Now()
	defer func() {
		if b.observe == nil {
			return
		}
		outcome := "success"
		if err != nil {
			outcome = "error"
		}
		b.observe(outcome, time.Since(start))
	}()

	summary, err = b.summarizer.Summarize(ctx, input)
	if err != nil {
		return "", err
	}

	summary = strings.TrimSpace(summary)
	if summary == "" {
		return "", errEmptySummary
	}

	return summary, nil
}

// BuildGroupPrompt lists every resource of a group, each block closed by a
// delimiter line. Usage is omitted when empty.
func BuildGroupPrompt(resourceType string, resources []domain.Resource) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Summarize the following Azure resources of type %s:\n\n", resourceType)

	for _, r := range resources {
		fmt.Fprintf(&b, "Resource Name: %s\n", r.Name)
		fmt.Fprintf(&b, "Resource ID: %s\n", r.ID)
		fmt.Fprintf(&b, "Location: %s\n", r.Location)
		fmt.Fprintf(&b, "Resource Group: %s\n", r.ResourceGroup)
		fmt.Fprintf(&b, "Configuration: %s\n", r.Configuration)
		if r.Usage != "" {
			fmt.Fprintf(&b, "Usage: %s\n", r.Usage)
		}
		b.WriteString(resourceDelimiter)
		b.WriteString("\n")
	}

	return b.String()
}

// errorMessage passes the collaborator's message through verbatim.
func errorMessage(err error) string {
	if msg := strings.TrimSpace(err.Error()); msg != "" {
		return msg
	}
	return unknownSummarizeError
}
