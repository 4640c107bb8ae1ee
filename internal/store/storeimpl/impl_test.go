package storeimpl

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	"github.com/datnguyendev/social-watch-discord-bot/internal/domain"
	"github.com/datnguyendev/social-watch-discord-bot/internal/fetcher"
	mock_subscription "github.com/datnguyendev/social-watch-discord-bot/internal/repositories/subscription/mocks"
	"github.com/datnguyendev/social-watch-discord-bot/pkg/logger"
)

type stubFetcher struct {
	platform domain.Platform
	posts    map[string]*domain.Post
	errs     map[string]error
	calls    int
}

func (s *stubFetcher) Platform() domain.Platform  { return s.platform }
func (s *stubFetcher) IsValidAccount(string) bool { return true }

func (s *stubFetcher) FetchLatestPost(_ context.Context, handle string) (*domain.Post, error) {
	s.calls++
	if err := s.errs[handle]; err != nil {
		return nil, err
	}
	return s.posts[handle], nil
}

func newTestStore(repo *mock_subscription.MockRepository, fetchers ...fetcher.Client) *StoreImpl {
	return New(Opts{
		Repo:     repo,
		Fetchers: fetcher.NewRegistry(fetchers...),
		Logger:   logger.New(logger.Opts{}),
	})
}

func ts(s string) *time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return &t
}

func TestCheckForUpdates_ReturnsNewerPosts(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mock_subscription.NewMockRepository(ctrl)

	oldTS := ts("2024-01-01T00:00:00Z")
	subs := []*domain.Subscription{
		{ID: 1, Platform: domain.PlatformMastodon, AccountHandle: "alice@example.social",
			LastPostURI: "https://example.social/@alice/1", LastPostTimestamp: oldTS},
		{ID: 2, Platform: domain.PlatformMastodon, AccountHandle: "alice@example.social",
			LastPostURI: "https://example.social/@alice/2", LastPostTimestamp: ts("2024-02-01T00:00:00Z")},
	}
	repo.EXPECT().GetAllActive(gomock.Any()).Return(subs, nil)

	newPost := &domain.Post{
		URI:       "https://example.social/@alice/2",
		Timestamp: ts("2024-02-01T00:00:00Z").UTC(),
		Platform:  domain.PlatformMastodon,
	}
	masto := &stubFetcher{
		platform: domain.PlatformMastodon,
		posts:    map[string]*domain.Post{"alice@example.social": newPost},
	}

	s := newTestStore(repo, masto)
	updates, err := s.CheckForUpdates(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if len(updates) != 1 {
		t.Fatalf("updates = %d, want 1", len(updates))
	}
	if updates[0].Subscription.ID != 1 {
		t.Errorf("updated subscription = %d, want 1", updates[0].Subscription.ID)
	}
	if masto.calls != 1 {
		t.Errorf("fetch calls = %d, want 1 (one per account, not per subscription)", masto.calls)
	}
}

func TestCheckForUpdates_SkipsUnbaselinedSubscriptions(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mock_subscription.NewMockRepository(ctrl)

	subs := []*domain.Subscription{
		{ID: 1, Platform: domain.PlatformMastodon, AccountHandle: "fresh@example.social"},
	}
	repo.EXPECT().GetAllActive(gomock.Any()).Return(subs, nil)

	masto := &stubFetcher{
		platform: domain.PlatformMastodon,
		posts: map[string]*domain.Post{"fresh@example.social": {
			URI:       "https://example.social/@fresh/1",
			Timestamp: time.Now(),
		}},
	}

	s := newTestStore(repo, masto)
	updates, err := s.CheckForUpdates(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(updates) != 0 {
		t.Errorf("updates = %d, want 0 (baselining is the monitor's job)", len(updates))
	}
}

func TestCheckForUpdates_FetchFailureSkipsAccountOnly(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mock_subscription.NewMockRepository(ctrl)

	subs := []*domain.Subscription{
		{ID: 1, Platform: domain.PlatformMastodon, AccountHandle: "broken@example.social",
			LastPostURI: "u1", LastPostTimestamp: ts("2024-01-01T00:00:00Z")},
		{ID: 2, Platform: domain.PlatformMastodon, AccountHandle: "alice@example.social",
			LastPostURI: "u2", LastPostTimestamp: ts("2024-01-01T00:00:00Z")},
	}
	repo.EXPECT().GetAllActive(gomock.Any()).Return(subs, nil)

	masto := &stubFetcher{
		platform: domain.PlatformMastodon,
		errs:     map[string]error{"broken@example.social": errors.New("boom")},
		posts: map[string]*domain.Post{"alice@example.social": {
			URI:       "https://example.social/@alice/9",
			Timestamp: ts("2024-03-01T00:00:00Z").UTC(),
		}},
	}

	s := newTestStore(repo, masto)
	updates, err := s.CheckForUpdates(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(updates) != 1 || updates[0].Subscription.ID != 2 {
		t.Fatalf("updates = %+v, want only subscription 2", updates)
	}
}

func TestCheckForUpdates_RepoErrorPropagates(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mock_subscription.NewMockRepository(ctrl)
	repo.EXPECT().GetAllActive(gomock.Any()).Return(nil, errors.New("db down"))

	s := newTestStore(repo)
	if _, err := s.CheckForUpdates(context.Background()); err == nil {
		t.Fatal("expected the repository error to propagate")
	}
}
