package store

import (
	"context"
	"time"

	"github.com/datnguyendev/social-watch-discord-bot/internal/domain"
)

// Update is one fallback-scan result: a post newer than what the
// subscription's channel has been told about.
type Update struct {
	Post         *domain.Post
	Subscription *domain.Subscription
}

type Store interface {
	Create(ctx context.Context, sub domain.Subscription) (*domain.Subscription, error)
	Delete(ctx context.Context, guildID string, platform domain.Platform, handle string) error
	GetByGuild(ctx context.Context, guildID string) ([]*domain.Subscription, error)
	GetForAccount(ctx context.Context, platform domain.Platform, handle string) ([]*domain.Subscription, error)
	GetAllActive(ctx context.Context) ([]*domain.Subscription, error)
	GetUniqueHandles(ctx context.Context, platform domain.Platform) ([]string, error)
	UpdateLastPost(ctx context.Context, id int64, uri string, timestamp time.Time) error

	// CheckForUpdates scans every active subscription through the platform
	// fetchers and returns the posts newer than each one's last-seen mark.
	// Used only by the fallback path.
	CheckForUpdates(ctx context.Context) ([]Update, error)
}
