package monitorimpl

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/datnguyendev/social-watch-discord-bot/internal/dedup"
	"github.com/datnguyendev/social-watch-discord-bot/internal/domain"
	"github.com/datnguyendev/social-watch-discord-bot/internal/fetcher"
	"github.com/datnguyendev/social-watch-discord-bot/internal/store"
	"github.com/datnguyendev/social-watch-discord-bot/internal/stream"
	"github.com/datnguyendev/social-watch-discord-bot/pkg/config"
	"github.com/datnguyendev/social-watch-discord-bot/pkg/logger"
)

type fakeStore struct {
	mu   sync.Mutex
	subs map[int64]*domain.Subscription

	lastPostCalls []int64
}

func newFakeStore(subs ...*domain.Subscription) *fakeStore {
	s := &fakeStore{subs: make(map[int64]*domain.Subscription)}
	for _, sub := range subs {
		s.subs[sub.ID] = sub
	}
	return s
}

func (s *fakeStore) Create(_ context.Context, sub domain.Subscription) (*domain.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub.ID = int64(len(s.subs) + 1)
	sub.AccountHandle = domain.NormalizeHandle(sub.AccountHandle)
	s.subs[sub.ID] = &sub
	return &sub, nil
}

func (s *fakeStore) Delete(_ context.Context, guildID string, platform domain.Platform, handle string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sub := range s.subs {
		if sub.GuildID == guildID && sub.Platform == platform && sub.AccountHandle == domain.NormalizeHandle(handle) {
			delete(s.subs, id)
		}
	}
	return nil
}

func (s *fakeStore) GetByGuild(_ context.Context, guildID string) ([]*domain.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Subscription
	for _, sub := range s.subs {
		if sub.GuildID == guildID {
			out = append(out, sub)
		}
	}
	return out, nil
}

func (s *fakeStore) GetForAccount(_ context.Context, platform domain.Platform, handle string) ([]*domain.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Subscription
	for _, sub := range s.subs {
		if sub.Platform == platform && sub.AccountHandle == domain.NormalizeHandle(handle) {
			out = append(out, sub)
		}
	}
	return out, nil
}

func (s *fakeStore) GetAllActive(_ context.Context) ([]*domain.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Subscription
	for _, sub := range s.subs {
		out = append(out, sub)
	}
	return out, nil
}

func (s *fakeStore) GetUniqueHandles(_ context.Context, platform domain.Platform) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]struct{})
	var out []string
	for _, sub := range s.subs {
		if sub.Platform != platform {
			continue
		}
		if _, ok := seen[sub.AccountHandle]; !ok {
			seen[sub.AccountHandle] = struct{}{}
			out = append(out, sub.AccountHandle)
		}
	}
	return out, nil
}

func (s *fakeStore) UpdateLastPost(_ context.Context, id int64, uri string, timestamp time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastPostCalls = append(s.lastPostCalls, id)
	if sub, ok := s.subs[id]; ok {
		ts := timestamp
		sub.LastPostURI = uri
		sub.LastPostTimestamp = &ts
	}
	return nil
}

func (s *fakeStore) CheckForUpdates(context.Context) ([]store.Update, error) {
	return nil, nil
}

type fakeSink struct {
	deliveries atomic.Int64
	mu         sync.Mutex
	sent       []string
}

func (f *fakeSink) Deliver(_ context.Context, post *domain.Post, sub *domain.Subscription) error {
	f.deliveries.Add(1)
	f.mu.Lock()
	f.sent = append(f.sent, post.URI)
	f.mu.Unlock()
	return nil
}

type fakeBlueskyClient struct {
	mu     sync.Mutex
	latest map[string]*domain.Post
}

func (f *fakeBlueskyClient) Platform() domain.Platform  { return domain.PlatformBluesky }
func (f *fakeBlueskyClient) IsValidAccount(string) bool { return true }

func (f *fakeBlueskyClient) FetchLatestPost(_ context.Context, handle string) (*domain.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.latest[handle], nil
}

func (f *fakeBlueskyClient) Resolve(_ context.Context, handle string) (string, error) {
	return "did:plc:" + handle, nil
}

func newTestMonitor(st store.Store, sink *fakeSink, bsky *fakeBlueskyClient) *MonitorImpl {
	cfg := &config.Config{}
	cfg.Monitor.DedupTTL = 5 * time.Minute
	cfg.Monitor.FetchTimeout = time.Second

	// Never connected in tests; AddIdentifier works offline.
	streamClient := stream.NewClient(stream.Config{
		URL:            "wss://example.invalid/subscribe",
		Collection:     "app.bsky.feed.post",
		MaxWatchedDids: 100,
	}, logger.New(logger.Opts{}))

	return &MonitorImpl{
		Store:       st,
		Stream:      streamClient,
		Fetchers:    fetcher.NewRegistry(bsky),
		Resolver:    bsky,
		Sink:        sink,
		Logger:      logger.New(logger.Opts{}),
		Config:      cfg,
		Dedup:       dedup.NewCache(cfg.Monitor.DedupTTL),
		didToHandle: make(map[string]string),
		handleToDid: make(map[string]string),
		processing:  make(map[string]struct{}),
	}
}

func ts(s string) *time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return &t
}

func TestAnnounce_IdempotentWithinTTL(t *testing.T) {
	sub := &domain.Subscription{
		ID: 1, GuildID: "g1", ChannelID: "c1",
		Platform: domain.PlatformBluesky, AccountHandle: "alice.bsky.social",
		LastPostURI: "at://did:plc:alice/app.bsky.feed.post/old", LastPostTimestamp: ts("2024-01-01T00:00:00Z"),
	}
	st := newFakeStore(sub)
	sink := &fakeSink{}
	m := newTestMonitor(st, sink, &fakeBlueskyClient{})

	post := &domain.Post{
		URI:       "at://did:plc:alice/app.bsky.feed.post/new",
		Timestamp: ts("2024-01-02T00:00:00Z").UTC(),
		Platform:  domain.PlatformBluesky,
	}

	for i := 0; i < 5; i++ {
		m.announce(context.Background(), post, sub)
	}

	if got := sink.deliveries.Load(); got != 1 {
		t.Errorf("deliveries = %d, want exactly 1", got)
	}
}

func TestAnnounce_BaselineSuppression(t *testing.T) {
	sub := &domain.Subscription{
		ID: 1, GuildID: "g1", ChannelID: "c1",
		Platform: domain.PlatformBluesky, AccountHandle: "alice.bsky.social",
	}
	st := newFakeStore(sub)
	sink := &fakeSink{}
	m := newTestMonitor(st, sink, &fakeBlueskyClient{})

	post := &domain.Post{
		URI:       "at://did:plc:alice/app.bsky.feed.post/first",
		Timestamp: ts("2024-01-02T00:00:00Z").UTC(),
		Platform:  domain.PlatformBluesky,
	}

	m.announce(context.Background(), post, sub)

	if got := sink.deliveries.Load(); got != 0 {
		t.Errorf("deliveries = %d, want 0 for the baseline", got)
	}
	if sub.LastPostURI != post.URI {
		t.Errorf("last-seen uri = %q, want the baseline recorded", sub.LastPostURI)
	}
	if len(st.lastPostCalls) != 1 {
		t.Errorf("UpdateLastPost calls = %d, want 1", len(st.lastPostCalls))
	}
}

func TestAnnounce_OlderPostIgnored(t *testing.T) {
	sub := &domain.Subscription{
		ID: 1, Platform: domain.PlatformBluesky, AccountHandle: "alice.bsky.social",
		LastPostURI: "at://did:plc:alice/app.bsky.feed.post/new", LastPostTimestamp: ts("2024-01-02T00:00:00Z"),
	}
	st := newFakeStore(sub)
	sink := &fakeSink{}
	m := newTestMonitor(st, sink, &fakeBlueskyClient{})

	post := &domain.Post{
		URI:       "at://did:plc:alice/app.bsky.feed.post/old",
		Timestamp: ts("2024-01-01T00:00:00Z").UTC(),
	}

	m.announce(context.Background(), post, sub)

	if got := sink.deliveries.Load(); got != 0 {
		t.Errorf("deliveries = %d, want 0 for an older post", got)
	}
	if len(st.lastPostCalls) != 0 {
		t.Errorf("UpdateLastPost calls = %d, want 0", len(st.lastPostCalls))
	}
}

func TestProcessingGuard_SingleWinner(t *testing.T) {
	m := newTestMonitor(newFakeStore(), &fakeSink{}, &fakeBlueskyClient{})

	const racers = 16
	var winners atomic.Int64
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if m.tryBeginProcessing("at://x") {
				winners.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	if got := winners.Load(); got != 1 {
		t.Errorf("winners = %d, want exactly 1", got)
	}

	m.endProcessing("at://x")
	if !m.tryBeginProcessing("at://x") {
		t.Error("guard should be reusable after release")
	}
}

func TestHandleStreamEvent_UnknownDidDiscarded(t *testing.T) {
	sub := &domain.Subscription{
		ID: 1, Platform: domain.PlatformBluesky, AccountHandle: "alice.bsky.social",
		LastPostTimestamp: ts("2024-01-01T00:00:00Z"),
	}
	st := newFakeStore(sub)
	sink := &fakeSink{}
	m := newTestMonitor(st, sink, &fakeBlueskyClient{})

	m.handleStreamEvent(context.Background(), stream.PostEvent{
		Did: "did:plc:unknown",
		URI: "at://did:plc:unknown/app.bsky.feed.post/1",
	})

	if got := sink.deliveries.Load(); got != 0 {
		t.Errorf("deliveries = %d, want 0 for an unwatched did", got)
	}
}

// A stream event and a fallback poll report the same new post. Exactly one
// notification may reach the channel, and the persisted mark must advance.
func TestStreamAndFallbackRace_SingleNotification(t *testing.T) {
	sub := &domain.Subscription{
		ID: 7, GuildID: "g1", ChannelID: "c1",
		Platform: domain.PlatformBluesky, AccountHandle: "alice.bsky.social",
		LastPostURI:       "at://did:plc:alice.bsky.social/app.bsky.feed.post/old",
		LastPostTimestamp: ts("2024-01-01T00:00:00Z"),
	}
	st := newFakeStore(sub)
	sink := &fakeSink{}

	post := &domain.Post{
		URI:          "at://did:plc:alice.bsky.social/app.bsky.feed.post/x",
		AuthorHandle: "alice.bsky.social",
		Text:         "hello",
		Timestamp:    ts("2024-01-02T00:00:00Z").UTC(),
		Platform:     domain.PlatformBluesky,
	}
	bsky := &fakeBlueskyClient{latest: map[string]*domain.Post{"alice.bsky.social": post}}

	m := newTestMonitor(st, sink, bsky)
	m.didToHandle["did:plc:alice.bsky.social"] = "alice.bsky.social"
	m.handleToDid["alice.bsky.social"] = "did:plc:alice.bsky.social"

	// Stream event first.
	m.handleStreamEvent(context.Background(), stream.PostEvent{
		Did:    "did:plc:alice.bsky.social",
		URI:    post.URI,
		Record: stream.PostRecord{Text: "hello", CreatedAt: post.Timestamp},
		TimeUS: 1,
	})

	// Fallback poll catches up 500ms later with the same post.
	m.announce(context.Background(), post, sub)

	if got := sink.deliveries.Load(); got != 1 {
		t.Errorf("deliveries = %d, want exactly 1", got)
	}
	if sub.LastPostURI != post.URI {
		t.Errorf("persisted uri = %q, want %q", sub.LastPostURI, post.URI)
	}
	if sub.LastPostTimestamp == nil || !sub.LastPostTimestamp.Equal(post.Timestamp) {
		t.Errorf("persisted timestamp = %v, want %v", sub.LastPostTimestamp, post.Timestamp)
	}
}

func TestWatchAccount_ImmediateBaseline(t *testing.T) {
	st := newFakeStore()
	sink := &fakeSink{}
	post := &domain.Post{
		URI:       "at://did:plc:bob.bsky.social/app.bsky.feed.post/latest",
		Timestamp: ts("2024-03-01T00:00:00Z").UTC(),
		Platform:  domain.PlatformBluesky,
	}
	bsky := &fakeBlueskyClient{latest: map[string]*domain.Post{"bob.bsky.social": post}}
	m := newTestMonitor(st, sink, bsky)

	created, err := m.WatchAccount(context.Background(), domain.Subscription{
		GuildID: "g1", ChannelID: "c1",
		Platform: domain.PlatformBluesky, AccountHandle: "Bob.bsky.social",
	})
	if err != nil {
		t.Fatal(err)
	}

	if got := sink.deliveries.Load(); got != 0 {
		t.Errorf("deliveries = %d, want 0 on subscribe", got)
	}
	if created.LastPostURI != post.URI {
		t.Errorf("baseline uri = %q, want %q", created.LastPostURI, post.URI)
	}
	if _, ok := m.handleForDid("did:plc:bob.bsky.social"); !ok {
		t.Error("handle should be watched after subscribe")
	}
}

func TestStopWithoutStartIsSafe(t *testing.T) {
	m := newTestMonitor(newFakeStore(), &fakeSink{}, &fakeBlueskyClient{})
	if err := m.Stop(); err != nil {
		t.Fatal(err)
	}
	if err := m.Stop(); err != nil {
		t.Fatal(err)
	}
}
