package poller

import (
	"context"
	"sync"
	"time"

	"github.com/datnguyendev/social-watch-discord-bot/internal/domain"
	"github.com/datnguyendev/social-watch-discord-bot/internal/fetcher"
	"github.com/datnguyendev/social-watch-discord-bot/pkg/logger"
)

const (
	shrinkFactor = 0.5
	decayFactor  = 1.25
	tickEvery    = 5 * time.Second
)

// PolledPost pairs a fetched post with the handle it was polled for.
type PolledPost struct {
	Post   *domain.Post
	Handle string
}

// PollError pairs a poll failure with the handle it occurred for.
type PollError struct {
	Err    error
	Handle string
}

type Config struct {
	BaseInterval time.Duration
	MinInterval  time.Duration
	MaxInterval  time.Duration
}

type accountState struct {
	interval time.Duration
	nextPoll time.Time
	lastURI  string
}

// Poller checks pull-only accounts on a per-account cadence. Accounts that
// post often are polled more often; the decay step relaxes intervals back
// upward so a quiet account does not stay on a tight loop forever.
type Poller struct {
	cfg    Config
	fetch  fetcher.Client
	logger logger.Logger
	posts  chan PolledPost
	errors chan PollError

	mu       sync.Mutex
	accounts map[string]*accountState
	running  bool
	cancel   context.CancelFunc
}

func New(cfg Config, fetch fetcher.Client, log logger.Logger) *Poller {
	return &Poller{
		cfg:      cfg,
		fetch:    fetch,
		logger:   log.WithComponent("AdaptivePoller"),
		posts:    make(chan PolledPost, 64),
		errors:   make(chan PollError, 8),
		accounts: make(map[string]*accountState),
	}
}

func (p *Poller) Posts() <-chan PolledPost {
	return p.posts
}

func (p *Poller) Errors() <-chan PollError {
	return p.errors
}

func (p *Poller) AddAccount(handle string) {
	handle = domain.NormalizeHandle(handle)
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.accounts[handle]; ok {
		return
	}
	p.accounts[handle] = &accountState{
		interval: p.cfg.BaseInterval,
		nextPoll: time.Now(),
	}
}

func (p *Poller) RemoveAccount(handle string) {
	handle = domain.NormalizeHandle(handle)
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.accounts, handle)
}

func (p *Poller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}
	p.running = true
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	go p.loop(ctx)
}

func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return
	}
	p.running = false
	p.cancel()
}

// DecayActivityCounts relaxes every account's interval back toward the max.
func (p *Poller) DecayActivityCounts() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, state := range p.accounts {
		state.interval = clamp(
			time.Duration(float64(state.interval)*decayFactor),
			p.cfg.MinInterval, p.cfg.MaxInterval,
		)
	}
}

func (p *Poller) loop(ctx context.Context) {
	ticker := time.NewTicker(tickEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, handle := range p.dueAccounts() {
				p.pollAccount(ctx, handle)
			}
		}
	}
}

func (p *Poller) dueAccounts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	var due []string
	for handle, state := range p.accounts {
		if !state.nextPoll.After(now) {
			due = append(due, handle)
		}
	}
	return due
}

// pollAccount checks one account. A failure here never stops the batch.
func (p *Poller) pollAccount(ctx context.Context, handle string) {
	post, err := p.fetch.FetchLatestPost(ctx, handle)
	if err != nil {
		p.logger.Warn("Poll failed", "handle", handle, "error", err)
		select {
		case p.errors <- PollError{Err: err, Handle: handle}:
		default:
		}
		p.reschedule(handle, false)
		return
	}

	fresh := false
	if post != nil {
		p.mu.Lock()
		state, ok := p.accounts[handle]
		if ok && state.lastURI != domain.NormalizeURI(post.URI) {
			state.lastURI = domain.NormalizeURI(post.URI)
			fresh = true
		}
		p.mu.Unlock()

		if fresh {
			p.posts <- PolledPost{Post: post, Handle: handle}
		}
	}

	p.reschedule(handle, fresh)
}

// reschedule sets the account's next poll time, tightening the interval
// when the poll produced a new post.
func (p *Poller) reschedule(handle string, active bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	state, ok := p.accounts[handle]
	if !ok {
		return
	}
	if active {
		state.interval = clamp(
			time.Duration(float64(state.interval)*shrinkFactor),
			p.cfg.MinInterval, p.cfg.MaxInterval,
		)
	}
	state.nextPoll = time.Now().Add(state.interval)
}

func clamp(d, min, max time.Duration) time.Duration {
	if d < min {
		return min
	}
	if d > max {
		return max
	}
	return d
}
