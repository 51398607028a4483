package ai

import (
	"context"
	"strings"
	"time"

	"github.com/matheus3301/tgtriage/internal/config"
	"github.com/matheus3301/tgtriage/internal/metrics"
	"go.uber.org/zap"
)

// Request is one system/user prompt pair.
type Request struct {
	System string
	User   string
	// Fast selects the provider's cheaper model, used for per-chat calls.
	Fast bool
}

// Provider is a remote inference endpoint returning free text.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (string, error)
}

const (
	DefaultClaudeModel     = "claude-sonnet-4-20250514"
	DefaultClaudeFastModel = "claude-3-5-haiku-20241022"
	DefaultOpenAIModel     = "gpt-4o-mini"
	DefaultOpenAIFastModel = "gpt-4o-mini"
	DefaultMaxTokens       = 4096
)

// New selects the provider named by cfg. A missing key or an unknown
// provider yields the not-configured provider.
func New(cfg config.AIConfig, logger *zap.Logger) Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.AIConfigured() {
		return None{}
	}
	var p Provider
	switch cfg.Provider {
	case config.ProviderClaude:
		p = newClaude(cfg)
	case config.ProviderOpenAI:
		p = newOpenAI(cfg)
	default:
		return None{}
	}
	return &instrumented{next: p, logger: logger.Named("ai")}
}

// IsConfigured reports whether p can answer requests.
func IsConfigured(p Provider) bool {
	_, none := p.(None)
	return p != nil && !none
}

// TestConnection sends a minimal prompt and reports whether the reply says OK.
func TestConnection(ctx context.Context, p Provider) (bool, error) {
	out, err := p.Complete(ctx, Request{
		System: "You are a connectivity check.",
		User:   "Reply with exactly: OK",
		Fast:   true,
	})
	if err != nil {
		return false, err
	}
	return strings.Contains(strings.ToUpper(out), "OK"), nil
}

// instrumented records call metrics and logs failures at debug level.
type instrumented struct {
	next   Provider
	logger *zap.Logger
}

func (i *instrumented) Name() string { return i.next.Name() }

func (i *instrumented) Complete(ctx context.Context, req Request) (string, error) {
	start := time.Now()
	out, err := i.next.Complete(ctx, req)
	metrics.AICallDuration.WithLabelValues(i.next.Name()).Observe(time.Since(start).Seconds())
	result := "ok"
	if err != nil {
		result = "error"
		i.logger.Debug("completion failed",
			zap.String("provider", i.next.Name()),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
	}
	metrics.AICalls.WithLabelValues(i.next.Name(), result).Inc()
	return out, err
}

func pick(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
