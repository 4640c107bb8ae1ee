package mastodon

import (
	"github.com/datnguyendev/social-watch-discord-bot/internal/fetcher"
)

// Client is the REST surface of a Mastodon server used by this bot.
type Client interface {
	fetcher.Client
}
