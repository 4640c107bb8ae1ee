package monitorimpl

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"go.uber.org/fx"

	"github.com/datnguyendev/social-watch-discord-bot/internal/bluesky"
	"github.com/datnguyendev/social-watch-discord-bot/internal/dedup"
	"github.com/datnguyendev/social-watch-discord-bot/internal/discord"
	"github.com/datnguyendev/social-watch-discord-bot/internal/domain"
	"github.com/datnguyendev/social-watch-discord-bot/internal/fetcher"
	"github.com/datnguyendev/social-watch-discord-bot/internal/monitor"
	"github.com/datnguyendev/social-watch-discord-bot/internal/poller"
	"github.com/datnguyendev/social-watch-discord-bot/internal/store"
	"github.com/datnguyendev/social-watch-discord-bot/internal/stream"
	"github.com/datnguyendev/social-watch-discord-bot/pkg/config"
	"github.com/datnguyendev/social-watch-discord-bot/pkg/logger"
)

type state int

const (
	stateStopped state = iota
	stateStarting
	stateRunning
	stateStopping
)

type Opts struct {
	fx.In

	Store    store.Store
	Fetchers fetcher.Registry
	Resolver bluesky.Resolver
	Sink     discord.Sink
	Logger   logger.Logger
	Config   *config.Config
}

type MonitorImpl struct {
	Store    store.Store
	Fetchers fetcher.Registry
	Resolver bluesky.Resolver
	Sink     discord.Sink
	Logger   logger.Logger
	Config   *config.Config

	Stream *stream.Client
	Poller *poller.Poller
	Dedup  *dedup.Cache

	id        string
	scheduler gocron.Scheduler
	cancel    context.CancelFunc

	stateMu sync.Mutex
	state   state

	mapsMu      sync.Mutex
	didToHandle map[string]string
	handleToDid map[string]string

	processingMu sync.Mutex
	processing   map[string]struct{}
}

func New(opts Opts) *MonitorImpl {
	m := &MonitorImpl{
		Store:       opts.Store,
		Fetchers:    opts.Fetchers,
		Resolver:    opts.Resolver,
		Sink:        opts.Sink,
		Logger:      opts.Logger.WithComponent("Monitor"),
		Config:      opts.Config,
		Dedup:       dedup.NewCache(opts.Config.Monitor.DedupTTL),
		id:          uuid.NewString(),
		didToHandle: make(map[string]string),
		handleToDid: make(map[string]string),
		processing:  make(map[string]struct{}),
	}

	m.Stream = stream.NewClient(stream.Config{
		URL:               opts.Config.Bluesky.JetstreamURL,
		Collection:        opts.Config.Bluesky.PostCollection,
		MaxWatchedDids:    opts.Config.Bluesky.MaxWatchedDids,
		ReconnectBase:     opts.Config.Bluesky.ReconnectBase,
		ReconnectMax:      opts.Config.Bluesky.ReconnectMax,
		MaxReconnects:     opts.Config.Bluesky.MaxReconnects,
		HeartbeatInterval: opts.Config.Bluesky.HeartbeatInterval,
		StaleThreshold:    opts.Config.Bluesky.StaleThreshold,
	}, opts.Logger)

	mastodonFetcher, ok := opts.Fetchers.For(domain.PlatformMastodon)
	if ok {
		m.Poller = poller.New(poller.Config{
			BaseInterval: opts.Config.Monitor.PollBaseInterval,
			MinInterval:  opts.Config.Monitor.PollMinInterval,
			MaxInterval:  opts.Config.Monitor.PollMaxInterval,
		}, mastodonFetcher, opts.Logger)
	}

	return m
}

var _ monitor.Client = (*MonitorImpl)(nil)

func (m *MonitorImpl) Start(ctx context.Context) error {
	m.stateMu.Lock()
	if m.state != stateStopped {
		m.stateMu.Unlock()
		return nil
	}
	m.state = stateStarting
	m.stateMu.Unlock()

	m.Logger.Info("Starting monitor", "instance", m.id)

	runCtx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel

	if err := m.watchKnownStreamHandles(ctx); err != nil {
		cancel()
		m.setState(stateStopped)
		return err
	}
	m.Stream.Connect()

	if m.Poller != nil {
		handles, err := m.Store.GetUniqueHandles(ctx, domain.PlatformMastodon)
		if err != nil {
			cancel()
			m.Stream.Disconnect()
			m.setState(stateStopped)
			return fmt.Errorf("load mastodon handles: %w", err)
		}
		for _, handle := range handles {
			m.Poller.AddAccount(handle)
		}
		m.Poller.Start()
	}

	go m.consumeStream(runCtx)
	go m.consumePoller(runCtx)

	if err := m.startSchedulers(runCtx); err != nil {
		cancel()
		m.Stream.Disconnect()
		if m.Poller != nil {
			m.Poller.Stop()
		}
		m.setState(stateStopped)
		return err
	}

	m.setState(stateRunning)
	m.Logger.Info("Monitor running", "instance", m.id)
	return nil
}

// Stop is idempotent and safe to call multiple times.
func (m *MonitorImpl) Stop() error {
	m.stateMu.Lock()
	if m.state != stateRunning && m.state != stateStarting {
		m.stateMu.Unlock()
		return nil
	}
	m.state = stateStopping
	m.stateMu.Unlock()

	m.Logger.Info("Stopping monitor", "instance", m.id)

	m.Stream.Disconnect()
	if m.Poller != nil {
		m.Poller.Stop()
	}
	if m.scheduler != nil {
		if err := m.scheduler.Shutdown(); err != nil {
			m.Logger.Error("Failed to shut down scheduler", "error", err)
		}
		m.scheduler = nil
	}
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}

	m.setState(stateStopped)
	return nil
}

func (m *MonitorImpl) setState(s state) {
	m.stateMu.Lock()
	m.state = s
	m.stateMu.Unlock()
}

// watchKnownStreamHandles resolves every known streaming-platform handle and
// registers the DIDs. A handle that fails to resolve is logged and simply not
// watched; the fallback poll still covers it.
func (m *MonitorImpl) watchKnownStreamHandles(ctx context.Context) error {
	handles, err := m.Store.GetUniqueHandles(ctx, domain.PlatformBluesky)
	if err != nil {
		return fmt.Errorf("load bluesky handles: %w", err)
	}

	for _, handle := range handles {
		if err := m.watchStreamHandle(ctx, handle); err != nil {
			m.Logger.Warn("Skipping unresolvable handle", "handle", handle, "error", err)
		}
	}
	return nil
}

func (m *MonitorImpl) watchStreamHandle(ctx context.Context, handle string) error {
	handle = domain.NormalizeHandle(handle)

	m.mapsMu.Lock()
	_, known := m.handleToDid[handle]
	m.mapsMu.Unlock()
	if known {
		return nil
	}

	did, err := m.Resolver.Resolve(ctx, handle)
	if err != nil {
		return err
	}

	m.mapsMu.Lock()
	m.didToHandle[did] = handle
	m.handleToDid[handle] = did
	m.mapsMu.Unlock()

	if _, err := m.Stream.AddIdentifier(did); err != nil {
		m.Logger.Warn("Watch set full, relying on fallback poll", "handle", handle, "error", err)
	}
	return nil
}

func (m *MonitorImpl) unwatchStreamHandle(handle string) {
	handle = domain.NormalizeHandle(handle)

	m.mapsMu.Lock()
	did, ok := m.handleToDid[handle]
	if ok {
		delete(m.handleToDid, handle)
		delete(m.didToHandle, did)
	}
	m.mapsMu.Unlock()

	if ok {
		m.Stream.RemoveIdentifier(did)
	}
}

func (m *MonitorImpl) handleForDid(did string) (string, bool) {
	m.mapsMu.Lock()
	defer m.mapsMu.Unlock()
	handle, ok := m.didToHandle[did]
	return handle, ok
}

func (m *MonitorImpl) startSchedulers(ctx context.Context) error {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(m.Config.Monitor.FallbackPollInterval),
		gocron.NewTask(func() {
			if ctx.Err() != nil {
				return
			}
			m.runFallbackPoll(ctx)
		}),
	)
	if err != nil {
		return fmt.Errorf("schedule fallback poll: %w", err)
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(m.Config.Monitor.ActivityDecayEvery),
		gocron.NewTask(func() {
			if ctx.Err() != nil || m.Poller == nil {
				return
			}
			m.Poller.DecayActivityCounts()
		}),
	)
	if err != nil {
		return fmt.Errorf("schedule activity decay: %w", err)
	}

	scheduler.Start()
	m.scheduler = scheduler
	return nil
}

// tryBeginProcessing wins or loses the race for a uri currently in flight.
func (m *MonitorImpl) tryBeginProcessing(normalizedURI string) bool {
	m.processingMu.Lock()
	defer m.processingMu.Unlock()
	if _, busy := m.processing[normalizedURI]; busy {
		return false
	}
	m.processing[normalizedURI] = struct{}{}
	return true
}

func (m *MonitorImpl) endProcessing(normalizedURI string) {
	m.processingMu.Lock()
	defer m.processingMu.Unlock()
	delete(m.processing, normalizedURI)
}

func (m *MonitorImpl) fetchTimeout() time.Duration {
	return m.Config.Monitor.FetchTimeout
}
