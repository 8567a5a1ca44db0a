package nlu

import (
	"context"
	"log/slog"

	"github.com/sukrithpvs/HSBC/internal/domain"
)

// ResolverChain tries the primary resolver and falls back to the
// deterministic one on any failure. A nil primary means fallback-only
// operation (capability not configured).
type ResolverChain struct {
	primary  Resolver
	fallback Resolver
	logger   *slog.Logger
}

// NewResolverChain builds the try-primary-else-fallback resolver policy.
func NewResolverChain(primary Resolver, fallback Resolver, logger *slog.Logger) *ResolverChain {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResolverChain{primary: primary, fallback: fallback, logger: logger}
}

// Resolve never returns an error: the fallback resolver is total.
func (c *ResolverChain) Resolve(ctx context.Context, utterance string, convo *domain.ConversationContext) (*Analysis, error) {
	if c.primary != nil {
		analysis, err := c.primary.Resolve(ctx, utterance, convo)
		if err == nil {
			return analysis, nil
		}
		c.logger.Warn("primary intent resolution failed, using fallback",
			"session_id", convo.SessionID, "error", err)
	}
	return c.fallback.Resolve(ctx, utterance, convo)
}

// ComposerChain tries the primary composer and falls back to templates on
// any failure.
type ComposerChain struct {
	primary  Composer
	fallback Composer
	logger   *slog.Logger
}

// NewComposerChain builds the try-primary-else-fallback composer policy.
func NewComposerChain(primary Composer, fallback Composer, logger *slog.Logger) *ComposerChain {
	if logger == nil {
		logger = slog.Default()
	}
	return &ComposerChain{primary: primary, fallback: fallback, logger: logger}
}

// Compose never returns an error: the template composer is total. All
// output, regardless of source, has already been scrubbed by the composer
// that produced it.
func (c *ComposerChain) Compose(ctx context.Context, utterance string, convo *domain.ConversationContext, payload Payload) (string, error) {
	if c.primary != nil {
		text, err := c.primary.Compose(ctx, utterance, convo, payload)
		if err == nil {
			return text, nil
		}
		c.logger.Warn("primary response composition failed, using template fallback",
			"session_id", convo.SessionID, "action", payload.Action, "error", err)
	}
	return c.fallback.Compose(ctx, utterance, convo, payload)
}

var (
	_ Resolver = (*ResolverChain)(nil)
	_ Composer = (*ComposerChain)(nil)
)
