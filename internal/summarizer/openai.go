package summarizer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
)

const (
	baseMaxOutputTokens  int64 = 1024
	limitMaxOutputTokens int64 = 4096

	systemPrompt = `You are an expert Azure cloud engineer.

You will generate a concise summary of an Azure resource based on its configuration and usage.

Rules:
- Plain text, no Markdown headings.
- Mention tiers, SKUs, regions and redundancy settings when present.
- Call out anything an operator should watch (high utilisation, missing HTTPS, weak redundancy).
- When several resources are listed, summarize them as a group and name outliers.`
)

// OpenAISummarizer calls OpenAI's Responses API to produce summaries.
type OpenAISummarizer struct {
	client openai.Client
	model  openai.ChatModel
}

// NewOpenAISummarizer builds a new summarizer instance. An empty model selects
// the default one.
func NewOpenAISummarizer(apiKey string, model string) (*OpenAISummarizer, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("api key is empty")
	}

	chatModel := openai.ChatModelGPT5Mini2025_08_07
	if model = strings.TrimSpace(model); model != "" {
		chatModel = openai.ChatModel(model)
	}

	return &OpenAISummarizer{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  chatModel,
	}, nil
}

// Summarize produces a single summary of a resource or a batch of resources.
func (s *OpenAISummarizer) Summarize(
	ctx context.Context,
	input Input,
) (string, error) {
	userPrompt := BuildUserPrompt(input)
	if userPrompt == "" {
		return "", errors.New("input is empty")
	}

	maxOutputTokens := baseMaxOutputTokens
	for {
		resp, err := s.client.Responses.New(ctx, responses.ResponseNewParams{
			Model:           s.model,
			MaxOutputTokens: openai.Int(maxOutputTokens),
			Reasoning: responses.ReasoningParam{
				Effort: openai.ReasoningEffortLow,
			},
			Instructions: openai.String(systemPrompt),
			Input: responses.ResponseNewParamsInputUnion{
				OfString: openai.String(userPrompt),
			},
		})
		if err != nil {
			return "", fmt.Errorf("do request: %w", err)
		}

		if resp.Status == "incomplete" {
			if resp.IncompleteDetails.Reason == "max_output_tokens" && maxOutputTokens < limitMaxOutputTokens {
				maxOutputTokens = min(maxOutputTokens*2, limitMaxOutputTokens)
				continue
			}
			return "", fmt.Errorf(
				"response is incomplete (reason = %s, maxOutputTokens = %d)",
				resp.IncompleteDetails.Reason,
				maxOutputTokens,
			)
		}

		summary := strings.TrimSpace(resp.OutputText())
		if summary == "" {
			return "", fmt.Errorf("output text is missing (status = %s)", resp.Status)
		}
		return summary, nil
	}
}

// BuildUserPrompt renders the input the way the model expects it. It returns
// an empty string when there is nothing to summarize.
func BuildUserPrompt(input Input) string {
	configuration := strings.TrimSpace(input.ResourceConfiguration)
	usage := strings.TrimSpace(input.ResourceUsage)
	if configuration == "" && usage == "" {
		return ""
	}

	var b strings.Builder
	b.WriteString("Resource Type: ")
	b.WriteString(strings.TrimSpace(input.ResourceType))
	b.WriteString("\nResource Name: ")
	b.WriteString(strings.TrimSpace(input.ResourceName))
	b.WriteString("\nConfiguration Details: ")
	b.WriteString(configuration)
	b.WriteString("\nUsage Metrics: ")
	b.WriteString(usage)
	b.WriteString("\n\nSummary:")

	return b.String()
}
