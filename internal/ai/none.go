package ai

import (
	"context"

	"github.com/matheus3301/tgtriage/internal/apperr"
)

// None is the provider used when no AI backend is configured. Every call
// fails with NotConfigured.
type None struct{}

func (None) Name() string { return "none" }

func (None) Complete(context.Context, Request) (string, error) {
	return "", apperr.New(apperr.NotConfigured, "ai.complete", nil)
}
