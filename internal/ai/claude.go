package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/matheus3301/tgtriage/internal/apperr"
	"github.com/matheus3301/tgtriage/internal/config"
)

type claude struct {
	client    anthropic.Client
	model     string
	fastModel string
	maxTokens int64
}

func newClaude(cfg config.AIConfig) *claude {
	// Retries are owned by the retry policy, not the SDK.
	opts := []anthropicopt.RequestOption{
		anthropicopt.WithAPIKey(cfg.APIKey),
		anthropicopt.WithMaxRetries(0),
	}
	if t := cfg.RequestTimeout(); t > 0 {
		opts = append(opts, anthropicopt.WithRequestTimeout(t))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, anthropicopt.WithBaseURL(cfg.BaseURL))
	}

	maxTokens := cfg.MaxResponseTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &claude{
		client:    anthropic.NewClient(opts...),
		model:     pick(cfg.Model, DefaultClaudeModel),
		fastModel: pick(cfg.FollowUpModel, DefaultClaudeFastModel),
		maxTokens: int64(maxTokens),
	}
}

func (c *claude) Name() string { return config.ProviderClaude }

func (c *claude) Complete(ctx context.Context, req Request) (string, error) {
	model := c.model
	if req.Fast {
		model = c.fastModel
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: c.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.User)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Type: "text", Text: req.System}}
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", claudeError(err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return "", apperr.New(apperr.InvalidResponse, "claude.complete", errors.New("no text content"))
	}
	return text.String(), nil
}

func claudeError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apperr.HTTPStatus("claude.complete", apiErr.StatusCode, apiErr.Error())
	}
	return fmt.Errorf("claude.complete: %w", err)
}
