package monitorimpl

import (
	"context"

	"github.com/datnguyendev/social-watch-discord-bot/internal/domain"
	"github.com/datnguyendev/social-watch-discord-bot/pkg/errors"
)

func (m *MonitorImpl) WatchAccount(ctx context.Context, sub domain.Subscription) (*domain.Subscription, error) {
	client, ok := m.Fetchers.For(sub.Platform)
	if !ok {
		return nil, errors.Wrap(errors.ErrInvalidInput, "unsupported platform")
	}
	if !client.IsValidAccount(sub.AccountHandle) {
		return nil, errors.Wrap(errors.ErrInvalidInput, "malformed account handle")
	}

	created, err := m.Store.Create(ctx, sub)
	if err != nil {
		return nil, err
	}

	switch created.Platform {
	case domain.PlatformBluesky:
		if err := m.watchStreamHandle(ctx, created.AccountHandle); err != nil {
			m.Logger.Warn("Handle not resolvable, stream path disabled for it",
				"handle", created.AccountHandle, "error", err)
		}
	case domain.PlatformMastodon:
		if m.Poller != nil {
			m.Poller.AddAccount(created.AccountHandle)
		}
	}

	// Establish the baseline now instead of waiting for the next natural
	// poll or stream event.
	m.immediateCheck(ctx, created)

	return created, nil
}

func (m *MonitorImpl) UnwatchAccount(ctx context.Context, guildID string, platform domain.Platform, handle string) error {
	if err := m.Store.Delete(ctx, guildID, platform, handle); err != nil {
		return err
	}

	remaining, err := m.Store.GetForAccount(ctx, platform, handle)
	if err != nil {
		m.Logger.Error("Failed to check remaining subscriptions", "handle", handle, "error", err)
		return nil
	}
	if len(remaining) > 0 {
		return nil
	}

	switch platform {
	case domain.PlatformBluesky:
		m.unwatchStreamHandle(handle)
	case domain.PlatformMastodon:
		if m.Poller != nil {
			m.Poller.RemoveAccount(handle)
		}
	}
	return nil
}

// immediateCheck fetches the account's latest post once, outside the normal
// cadence, and runs it through the announce path. For a fresh subscription
// that records the baseline without announcing.
func (m *MonitorImpl) immediateCheck(ctx context.Context, sub *domain.Subscription) {
	client, ok := m.Fetchers.For(sub.Platform)
	if !ok {
		return
	}

	fetchCtx, cancel := context.WithTimeout(ctx, m.fetchTimeout())
	defer cancel()

	post, err := client.FetchLatestPost(fetchCtx, sub.AccountHandle)
	if err != nil {
		m.Logger.Warn("Immediate check failed", "handle", sub.AccountHandle, "error", err)
		return
	}
	if post == nil {
		return
	}

	m.announce(ctx, post, sub)
}
