package fetcher

import (
	"context"
	"errors"

	"github.com/datnguyendev/social-watch-discord-bot/internal/domain"
)

var ErrAccountNotFound = errors.New("account not found")

// Client fetches the most recent post for an account on one platform.
// A nil post with a nil error means the account has no posts.
type Client interface {
	Platform() domain.Platform
	FetchLatestPost(ctx context.Context, handle string) (*domain.Post, error)
	IsValidAccount(handle string) bool
}

// Registry holds one fetcher per platform.
type Registry map[domain.Platform]Client

func NewRegistry(clients ...Client) Registry {
	reg := make(Registry, len(clients))
	for _, c := range clients {
		reg[c.Platform()] = c
	}
	return reg
}

func (r Registry) For(platform domain.Platform) (Client, bool) {
	c, ok := r[platform]
	return c, ok
}
