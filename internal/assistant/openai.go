package assistant

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

type OpenAIResponder struct {
	client            *openai.Client
	model             string
	systemInstruction string
	maxTokens         int
	temperature       float64
	logger            *zap.Logger
}

func NewOpenAIResponder(apiKey string, model string, systemInstruction string, maxTokens int, temperature float64, logger *zap.Logger) *OpenAIResponder {
	return NewOpenAIResponderWithClient(openai.NewClient(apiKey), model, systemInstruction, maxTokens, temperature, logger)
}

// NewOpenAIResponderWithClient uses an existing client, e.g. one pointed at
// a compatible endpoint.
func NewOpenAIResponderWithClient(client *openai.Client, model string, systemInstruction string, maxTokens int, temperature float64, logger *zap.Logger) *OpenAIResponder {
	return &OpenAIResponder{
		client:            client,
		model:             model,
		systemInstruction: systemInstruction,
		maxTokens:         maxTokens,
		temperature:       temperature,
		logger:            logger,
	}
}

func (r *OpenAIResponder) Respond(ctx context.Context, prompt string) (string, error) {
	resp, err := r.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: r.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: r.systemInstruction,
				},
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
			MaxTokens:   r.maxTokens,
			Temperature: float32(r.temperature),
		},
	)
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyResponse
	}

	r.logger.Debug("OpenAI reply received",
		zap.String("model", r.model),
		zap.Int("total_tokens", resp.Usage.TotalTokens))
	return text, nil
}
