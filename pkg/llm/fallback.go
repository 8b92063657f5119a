package llm

import (
	"context"
	"errors"
	"log/slog"
)

// fallbackChain tries the primary model, then each fallback in order,
// until one succeeds. Context cancellation is terminal: a cancelled
// call never advances to the next model.
type fallbackChain struct {
	primary   ChatModel
	fallbacks []ChatModel
}

func newFallbackChain(primary ChatModel, fallbacks []ChatModel) ChatModel {
	if len(fallbacks) == 0 {
		return primary
	}
	return &fallbackChain{primary: primary, fallbacks: fallbacks}
}

func (c *fallbackChain) Name() string { return c.primary.Name() }

func (c *fallbackChain) Complete(ctx context.Context, messages []Message) (string, error) {
	text, err := c.primary.Complete(ctx, messages)
	if err == nil {
		return text, nil
	}
	if ctx.Err() != nil {
		return "", err
	}
	lastErr := err
	for _, alt := range c.fallbacks {
		slog.Warn("Model call failed, trying fallback",
			"model", c.primary.Name(), "fallback", alt.Name(), "error", lastErr)
		text, err = alt.Complete(ctx, messages)
		if err == nil {
			return text, nil
		}
		if ctx.Err() != nil {
			return "", err
		}
		lastErr = err
	}
	return "", errors.Join(errors.New("all models in fallback chain failed"), lastErr)
}
