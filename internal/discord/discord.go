package discord

import (
	"context"

	"github.com/datnguyendev/social-watch-discord-bot/internal/domain"
)

// Sink delivers one post to one subscription's channel. Best-effort: the
// caller logs failures and never retries.
type Sink interface {
	Deliver(ctx context.Context, post *domain.Post, sub *domain.Subscription) error
}
