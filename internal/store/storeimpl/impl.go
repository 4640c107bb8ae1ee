package storeimpl

import (
	"context"
	"time"

	"go.uber.org/fx"

	"github.com/datnguyendev/social-watch-discord-bot/internal/domain"
	"github.com/datnguyendev/social-watch-discord-bot/internal/fetcher"
	"github.com/datnguyendev/social-watch-discord-bot/internal/repositories/subscription"
	"github.com/datnguyendev/social-watch-discord-bot/internal/store"
	"github.com/datnguyendev/social-watch-discord-bot/pkg/logger"
)

type Opts struct {
	fx.In

	Repo     subscription.Repository
	Fetchers fetcher.Registry
	Logger   logger.Logger
}

type StoreImpl struct {
	Repo     subscription.Repository
	Fetchers fetcher.Registry
	Logger   logger.Logger
}

func New(opts Opts) *StoreImpl {
	return &StoreImpl{
		Repo:     opts.Repo,
		Fetchers: opts.Fetchers,
		Logger:   opts.Logger.WithComponent("SubscriptionStore"),
	}
}

var _ store.Store = (*StoreImpl)(nil)

func (s *StoreImpl) Create(ctx context.Context, sub domain.Subscription) (*domain.Subscription, error) {
	return s.Repo.Create(ctx, sub)
}

func (s *StoreImpl) Delete(ctx context.Context, guildID string, platform domain.Platform, handle string) error {
	return s.Repo.Delete(ctx, guildID, platform, handle)
}

func (s *StoreImpl) GetByGuild(ctx context.Context, guildID string) ([]*domain.Subscription, error) {
	return s.Repo.GetByGuild(ctx, guildID)
}

func (s *StoreImpl) GetForAccount(ctx context.Context, platform domain.Platform, handle string) ([]*domain.Subscription, error) {
	return s.Repo.GetForAccount(ctx, platform, handle)
}

func (s *StoreImpl) GetAllActive(ctx context.Context) ([]*domain.Subscription, error) {
	return s.Repo.GetAllActive(ctx)
}

func (s *StoreImpl) GetUniqueHandles(ctx context.Context, platform domain.Platform) ([]string, error) {
	return s.Repo.GetUniqueHandles(ctx, platform)
}

func (s *StoreImpl) UpdateLastPost(ctx context.Context, id int64, uri string, timestamp time.Time) error {
	return s.Repo.UpdateLastPost(ctx, id, uri, timestamp)
}

type accountKey struct {
	platform domain.Platform
	handle   string
}

// CheckForUpdates fetches each tracked account once and matches the result
// against every subscription on that account. Subscriptions with no last-seen
// mark are skipped here; baselining them is the monitor's job.
func (s *StoreImpl) CheckForUpdates(ctx context.Context) ([]store.Update, error) {
	subs, err := s.Repo.GetAllActive(ctx)
	if err != nil {
		return nil, err
	}

	byAccount := make(map[accountKey][]*domain.Subscription)
	for _, sub := range subs {
		k := accountKey{platform: sub.Platform, handle: domain.NormalizeHandle(sub.AccountHandle)}
		byAccount[k] = append(byAccount[k], sub)
	}

	var updates []store.Update
	for k, accountSubs := range byAccount {
		client, ok := s.Fetchers.For(k.platform)
		if !ok {
			s.Logger.Warn("No fetcher for platform", "platform", k.platform)
			continue
		}

		post, err := client.FetchLatestPost(ctx, k.handle)
		if err != nil {
			s.Logger.Warn("Fetch failed during update scan", "platform", k.platform, "handle", k.handle, "error", err)
			continue
		}
		if post == nil {
			continue
		}

		for _, sub := range accountSubs {
			if sub.LastPostTimestamp == nil {
				continue
			}
			if domain.IsNewerPost(sub.LastPostURI, sub.LastPostTimestamp, post.URI, post.Timestamp) {
				updates = append(updates, store.Update{Post: post, Subscription: sub})
			}
		}
	}

	return updates, nil
}
