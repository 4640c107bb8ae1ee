package config

import (
	"log"
	"sync"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	App struct {
		Env       string `env:"APP_ENV" env-default:"development"`
		Port      int    `env:"APP_PORT" env-default:"8080"`
		SentryUrl string `env:"SENTRY_URL"`
	}
	Postgres struct {
		Port    int    `env:"POSTGRES_PORT"`
		Host    string `env:"POSTGRES_HOST"`
		User    string `env:"POSTGRES_USER"`
		Pass    string `env:"POSTGRES_PASS"`
		Name    string `env:"POSTGRES_NAME"`
		SslMode string `env:"POSTGRES_SSL_MODE" env-default:"disable"`
	}
	Discord struct {
		Token string `env:"DISCORD_TOKEN"`
	}
	Bluesky struct {
		AppViewURL        string        `env:"BLUESKY_APPVIEW_URL" env-default:"https://public.api.bsky.app"`
		JetstreamURL      string        `env:"BLUESKY_JETSTREAM_URL" env-default:"wss://jetstream2.us-east.bsky.network/subscribe"`
		PostCollection    string        `env:"BLUESKY_POST_COLLECTION" env-default:"app.bsky.feed.post"`
		MaxWatchedDids    int           `env:"BLUESKY_MAX_WATCHED_DIDS" env-default:"100"`
		ReconnectBase     time.Duration `env:"BLUESKY_RECONNECT_BASE" env-default:"1s"`
		ReconnectMax      time.Duration `env:"BLUESKY_RECONNECT_MAX" env-default:"30s"`
		MaxReconnects     int           `env:"BLUESKY_MAX_RECONNECTS" env-default:"0"`
		HeartbeatInterval time.Duration `env:"BLUESKY_HEARTBEAT_INTERVAL" env-default:"30s"`
		StaleThreshold    time.Duration `env:"BLUESKY_STALE_THRESHOLD" env-default:"120s"`
	}
	Mastodon struct {
		DefaultServer string `env:"MASTODON_DEFAULT_SERVER" env-default:"https://mastodon.social"`
	}
	Monitor struct {
		FallbackPollInterval time.Duration `env:"MONITOR_FALLBACK_POLL_INTERVAL" env-default:"2m"`
		DedupTTL             time.Duration `env:"MONITOR_DEDUP_TTL" env-default:"5m"`
		FetchTimeout         time.Duration `env:"MONITOR_FETCH_TIMEOUT" env-default:"10s"`
		PollBaseInterval     time.Duration `env:"MONITOR_POLL_BASE_INTERVAL" env-default:"90s"`
		PollMinInterval      time.Duration `env:"MONITOR_POLL_MIN_INTERVAL" env-default:"30s"`
		PollMaxInterval      time.Duration `env:"MONITOR_POLL_MAX_INTERVAL" env-default:"10m"`
		ActivityDecayEvery   time.Duration `env:"MONITOR_ACTIVITY_DECAY_EVERY" env-default:"15m"`
	}
}

var (
	once sync.Once
	cfg  *Config
)

func New() (*Config, error) {
	once.Do(func() {
		cfg = &Config{}
		if err := cleanenv.ReadEnv(cfg); err != nil {
			help, _ := cleanenv.GetDescription(cfg, nil)
			log.Fatalf("Failed to read configuration: %v\n%v", err, help)
		}
	})
	return cfg, nil
}
