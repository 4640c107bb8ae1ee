package poller

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/datnguyendev/social-watch-discord-bot/internal/domain"
	"github.com/datnguyendev/social-watch-discord-bot/pkg/logger"
)

type fakeFetcher struct {
	posts map[string]*domain.Post
	errs  map[string]error
	calls map[string]int
}

func (f *fakeFetcher) Platform() domain.Platform { return domain.PlatformMastodon }

func (f *fakeFetcher) IsValidAccount(string) bool { return true }

func (f *fakeFetcher) FetchLatestPost(_ context.Context, handle string) (*domain.Post, error) {
	f.calls[handle]++
	if err := f.errs[handle]; err != nil {
		return nil, err
	}
	return f.posts[handle], nil
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		posts: make(map[string]*domain.Post),
		errs:  make(map[string]error),
		calls: make(map[string]int),
	}
}

func testConfig() Config {
	return Config{
		BaseInterval: 80 * time.Second,
		MinInterval:  30 * time.Second,
		MaxInterval:  10 * time.Minute,
	}
}

func newTestPoller(f *fakeFetcher) *Poller {
	return New(testConfig(), f, logger.New(logger.Opts{}))
}

func TestPoller_IntervalShrinksOnActivity(t *testing.T) {
	f := newFakeFetcher()
	f.posts["alice"] = &domain.Post{URI: "uri-1", Timestamp: time.Now()}
	p := newTestPoller(f)
	p.AddAccount("alice")

	p.pollAccount(context.Background(), "alice")
	<-p.Posts()

	if got := p.accounts["alice"].interval; got != 40*time.Second {
		t.Errorf("interval after activity = %v, want 40s", got)
	}

	// Same post again: no shrink, no emit.
	p.pollAccount(context.Background(), "alice")
	select {
	case polled := <-p.Posts():
		t.Fatalf("unexpected repeat emit: %+v", polled)
	default:
	}
	if got := p.accounts["alice"].interval; got != 40*time.Second {
		t.Errorf("interval after quiet poll = %v, want unchanged 40s", got)
	}
}

func TestPoller_IntervalClampedAtMin(t *testing.T) {
	f := newFakeFetcher()
	p := newTestPoller(f)
	p.AddAccount("alice")

	for i := 0; i < 10; i++ {
		f.posts["alice"] = &domain.Post{URI: time.Now().Add(time.Duration(i) * time.Second).String()}
		p.pollAccount(context.Background(), "alice")
		<-p.Posts()
	}

	if got := p.accounts["alice"].interval; got != testConfig().MinInterval {
		t.Errorf("interval = %v, want clamped at %v", got, testConfig().MinInterval)
	}
}

func TestPoller_DecayRelaxesIntervals(t *testing.T) {
	f := newFakeFetcher()
	p := newTestPoller(f)
	p.AddAccount("alice")
	p.accounts["alice"].interval = 40 * time.Second

	p.DecayActivityCounts()

	if got := p.accounts["alice"].interval; got != 50*time.Second {
		t.Errorf("interval after decay = %v, want 50s", got)
	}

	for i := 0; i < 50; i++ {
		p.DecayActivityCounts()
	}
	if got := p.accounts["alice"].interval; got != testConfig().MaxInterval {
		t.Errorf("interval after long decay = %v, want clamped at %v", got, testConfig().MaxInterval)
	}
}

func TestPoller_FailureDoesNotStopOtherAccounts(t *testing.T) {
	f := newFakeFetcher()
	f.errs["broken"] = errors.New("boom")
	f.posts["alice"] = &domain.Post{URI: "uri-1", Timestamp: time.Now()}
	p := newTestPoller(f)
	p.AddAccount("broken")
	p.AddAccount("alice")

	for _, handle := range p.dueAccounts() {
		p.pollAccount(context.Background(), handle)
	}

	if f.calls["alice"] != 1 {
		t.Errorf("alice polled %d times, want 1", f.calls["alice"])
	}
	select {
	case polled := <-p.Posts():
		if polled.Handle != "alice" {
			t.Errorf("polled handle = %q", polled.Handle)
		}
	default:
		t.Error("expected a post from the healthy account")
	}
	select {
	case pollErr := <-p.Errors():
		if pollErr.Handle != "broken" {
			t.Errorf("error handle = %q", pollErr.Handle)
		}
	default:
		t.Error("expected an error from the broken account")
	}
}

func TestPoller_RemoveAccountStopsScheduling(t *testing.T) {
	f := newFakeFetcher()
	p := newTestPoller(f)
	p.AddAccount("alice")
	p.RemoveAccount("alice")

	if due := p.dueAccounts(); len(due) != 0 {
		t.Errorf("dueAccounts = %v, want empty", due)
	}
}
