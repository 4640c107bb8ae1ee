package monitorimpl

import (
	"context"

	"github.com/datnguyendev/social-watch-discord-bot/internal/domain"
	"github.com/datnguyendev/social-watch-discord-bot/internal/stream"
)

func (m *MonitorImpl) consumeStream(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-m.Stream.Events():
			if !ok {
				return
			}
			// Stream deliveries may race the fallback poll; the handler
			// guards per-uri, so handle each event on its own goroutine.
			go m.handleStreamEvent(ctx, ev)
		case err, ok := <-m.Stream.Errors():
			if !ok {
				return
			}
			m.Logger.Error("Stream error", "instance", m.id, "error", err)
		}
	}
}

func (m *MonitorImpl) consumePoller(ctx context.Context) {
	if m.Poller == nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case polled, ok := <-m.Poller.Posts():
			if !ok {
				return
			}
			m.handlePolledPost(ctx, polled.Post, polled.Handle)
		case pollErr, ok := <-m.Poller.Errors():
			if !ok {
				return
			}
			m.Logger.Warn("Poll error", "handle", pollErr.Handle, "error", pollErr.Err)
		}
	}
}

// handleStreamEvent processes one raw commit event from the firehose.
func (m *MonitorImpl) handleStreamEvent(ctx context.Context, ev stream.PostEvent) {
	handle, ok := m.handleForDid(ev.Did)
	if !ok {
		return
	}

	normalized := domain.NormalizeURI(ev.URI)
	if !m.tryBeginProcessing(normalized) {
		m.Logger.Debug("Duplicate delivery already in flight", "uri", ev.URI)
		return
	}
	defer m.endProcessing(normalized)

	post := m.fetchPostDetail(ctx, handle, ev)

	subs, err := m.Store.GetForAccount(ctx, domain.PlatformBluesky, handle)
	if err != nil {
		m.Logger.Error("Failed to load subscriptions", "handle", handle, "error", err)
		return
	}

	for _, sub := range subs {
		m.announce(ctx, post, sub)
	}
}

// fetchPostDetail loads the full post for rendering. The raw commit record
// has no media or label information, so prefer the fetcher's view when it
// still points at the same post.
func (m *MonitorImpl) fetchPostDetail(ctx context.Context, handle string, ev stream.PostEvent) *domain.Post {
	fallback := &domain.Post{
		URI:          ev.URI,
		CID:          ev.CID,
		AuthorHandle: handle,
		Text:         ev.Record.Text,
		Timestamp:    ev.Record.CreatedAt,
		Platform:     domain.PlatformBluesky,
	}

	client, ok := m.Fetchers.For(domain.PlatformBluesky)
	if !ok {
		return fallback
	}

	fetchCtx, cancel := context.WithTimeout(ctx, m.fetchTimeout())
	defer cancel()

	post, err := client.FetchLatestPost(fetchCtx, handle)
	if err != nil || post == nil {
		if err != nil {
			m.Logger.Warn("Post detail fetch failed, using commit record", "handle", handle, "error", err)
		}
		return fallback
	}
	if domain.NormalizeURI(post.URI) != domain.NormalizeURI(ev.URI) {
		// The appview has not indexed the commit yet, or a newer post
		// already landed. Announce what the stream delivered.
		return fallback
	}
	return post
}

// handlePolledPost runs the poll-path events through the same decision
// pipeline. Polling is serialized per account, so no in-flight guard here.
func (m *MonitorImpl) handlePolledPost(ctx context.Context, post *domain.Post, handle string) {
	subs, err := m.Store.GetForAccount(ctx, domain.PlatformMastodon, handle)
	if err != nil {
		m.Logger.Error("Failed to load subscriptions", "handle", handle, "error", err)
		return
	}

	for _, sub := range subs {
		m.announce(ctx, post, sub)
	}
}

// runFallbackPoll covers stream gaps: missed identifiers, resolver failures,
// transient disconnects. Intentionally redundant with the stream path; the
// dedup cache keeps it quiet.
func (m *MonitorImpl) runFallbackPoll(ctx context.Context) {
	updates, err := m.Store.CheckForUpdates(ctx)
	if err != nil {
		m.Logger.Error("Fallback poll failed", "instance", m.id, "error", err)
		return
	}

	if len(updates) > 0 {
		m.Logger.Info("Fallback poll found updates", "count", len(updates))
	}

	for _, update := range updates {
		m.announce(ctx, update.Post, update.Subscription)
	}
}

// announce is the single place where "is this post new, and have we already
// told this channel about it" is decided, regardless of the detection path.
func (m *MonitorImpl) announce(ctx context.Context, post *domain.Post, sub *domain.Subscription) {
	if post == nil || sub == nil {
		return
	}

	if m.Dedup.Seen(sub.ID, post.URI) {
		return
	}

	// First observation for this subscription: record the post as the
	// baseline but do not announce, or every restart would blast each
	// subscriber's most recent post.
	if sub.LastPostTimestamp == nil {
		m.Dedup.Mark(sub.ID, post.URI)
		m.persistLastSeen(ctx, sub, post)
		m.Logger.Info("Recorded baseline", "subscription", sub.ID, "uri", post.URI)
		return
	}

	if !domain.IsNewerPost(sub.LastPostURI, sub.LastPostTimestamp, post.URI, post.Timestamp) {
		return
	}

	m.Dedup.Mark(sub.ID, post.URI)
	m.persistLastSeen(ctx, sub, post)

	if err := m.Sink.Deliver(ctx, post, sub); err != nil {
		m.Logger.Error("Notification delivery failed", "subscription", sub.ID, "channel", sub.ChannelID, "error", err)
	}
}

// persistLastSeen writes the high-water mark. Last-writer-wins on the two
// columns; the in-process guard is what prevents double-send.
func (m *MonitorImpl) persistLastSeen(ctx context.Context, sub *domain.Subscription, post *domain.Post) {
	if err := m.Store.UpdateLastPost(ctx, sub.ID, post.URI, post.Timestamp); err != nil {
		m.Logger.Error("Failed to persist last-seen post", "subscription", sub.ID, "error", err)
	}
	ts := post.Timestamp
	sub.LastPostURI = post.URI
	sub.LastPostTimestamp = &ts
}
