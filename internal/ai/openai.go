package ai

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const defaultOpenAIModel = "gpt-4o-mini"

// OpenAI narrates through the chat completions API with a strict JSON schema
// response format. BaseURL lets it target any compatible server.
type OpenAI struct {
	Model   string
	Timeout time.Duration
	client  openai.Client
	logger  *slog.Logger
}

func NewOpenAI(apiKey, baseURL, model string, logger *slog.Logger) *OpenAI {
	if model == "" || model == "sonnet" {
		model = defaultOpenAIModel
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(2),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	return &OpenAI{
		Model:  model,
		client: openai.NewClient(opts...),
		logger: logger,
	}
}

func (o *OpenAI) Narrate(ctx context.Context, d Digest) (*Narrative, error) {
	userPrompt, err := buildUserPrompt(d)
	if err != nil {
		return nil, err
	}

	ctx, cancel := withTimeout(ctx, o.Timeout)
	defer cancel()

	o.logger.Debug("requesting OpenAI narrative", "model", o.Model, "days", len(d.Days), "user_prompt_len", len(userPrompt))

	start := time.Now()
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:        "narrative",
					Description: openai.String("Narrative summary of a productivity period"),
					Schema:      narrativeSchema,
					Strict:      openai.Bool(true),
				},
			},
		},
	})
	if err != nil {
		o.logger.Error("OpenAI request failed", "error", err, "elapsed", time.Since(start))
		return nil, fmt.Errorf("requesting narrative: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("OpenAI returned no choices")
	}

	content := resp.Choices[0].Message.Content
	o.logger.Debug("OpenAI narrative received",
		"elapsed", time.Since(start),
		"finish_reason", resp.Choices[0].FinishReason,
		"content", truncateStr(content, 2000),
	)

	if refusal := resp.Choices[0].Message.Refusal; refusal != "" {
		return nil, fmt.Errorf("model refused: %s", refusal)
	}
	return parseNarrative(content)
}
