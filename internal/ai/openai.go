package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/matheus3301/tgtriage/internal/apperr"
	"github.com/matheus3301/tgtriage/internal/config"
	"github.com/openai/openai-go"
	openaiopt "github.com/openai/openai-go/option"
)

type openAI struct {
	client    openai.Client
	model     string
	fastModel string
	maxTokens int64
}

func newOpenAI(cfg config.AIConfig) *openAI {
	opts := []openaiopt.RequestOption{
		openaiopt.WithAPIKey(cfg.APIKey),
		openaiopt.WithMaxRetries(0),
	}
	if t := cfg.RequestTimeout(); t > 0 {
		opts = append(opts, openaiopt.WithRequestTimeout(t))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openaiopt.WithBaseURL(cfg.BaseURL))
	}

	maxTokens := cfg.MaxResponseTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &openAI{
		client:    openai.NewClient(opts...),
		model:     pick(cfg.Model, DefaultOpenAIModel),
		fastModel: pick(cfg.FollowUpModel, DefaultOpenAIFastModel),
		maxTokens: int64(maxTokens),
	}
}

func (o *openAI) Name() string { return config.ProviderOpenAI }

func (o *openAI) Complete(ctx context.Context, req Request) (string, error) {
	model := o.model
	if req.Fast {
		model = o.fastModel
	}

	var messages []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.User))

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:     model,
		Messages:  messages,
		MaxTokens: openai.Int(o.maxTokens),
	})
	if err != nil {
		return "", openAIError(err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", apperr.New(apperr.InvalidResponse, "openai.complete", errors.New("no choices"))
	}
	return resp.Choices[0].Message.Content, nil
}

func openAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apperr.HTTPStatus("openai.complete", apiErr.StatusCode, apiErr.Error())
	}
	return fmt.Errorf("openai.complete: %w", err)
}
