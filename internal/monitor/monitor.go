package monitor

import (
	"context"

	"github.com/datnguyendev/social-watch-discord-bot/internal/domain"
)

// Client is the hybrid ingestion orchestrator: it owns the stream client and
// the adaptive poller, reconciles events from both against the subscription
// store, and guarantees at most one notification per (subscription, post)
// pair within the dedup window.
type Client interface {
	Start(ctx context.Context) error
	Stop() error

	// WatchAccount persists a subscription, wires the account into the
	// matching detection path and runs the immediate baseline check.
	WatchAccount(ctx context.Context, sub domain.Subscription) (*domain.Subscription, error)

	// UnwatchAccount removes a subscription and, when it was the last one
	// for the account, stops watching the account entirely.
	UnwatchAccount(ctx context.Context, guildID string, platform domain.Platform, handle string) error
}
