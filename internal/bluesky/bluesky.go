package bluesky

import (
	"context"

	"github.com/datnguyendev/social-watch-discord-bot/internal/fetcher"
)

// Resolver resolves a handle to its stable DID.
type Resolver interface {
	Resolve(ctx context.Context, handle string) (string, error)
}

// Client is the REST surface of the Bluesky appview used by this bot.
type Client interface {
	fetcher.Client
	Resolver
}
