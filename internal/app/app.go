package app

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"go.uber.org/fx"

	"github.com/datnguyendev/social-watch-discord-bot/internal/bluesky"
	"github.com/datnguyendev/social-watch-discord-bot/internal/bluesky/blueskyimpl"
	"github.com/datnguyendev/social-watch-discord-bot/internal/discord"
	"github.com/datnguyendev/social-watch-discord-bot/internal/discord/discordimpl"
	"github.com/datnguyendev/social-watch-discord-bot/internal/fetcher"
	"github.com/datnguyendev/social-watch-discord-bot/internal/mastodon"
	"github.com/datnguyendev/social-watch-discord-bot/internal/mastodon/mastodonimpl"
	_ "github.com/datnguyendev/social-watch-discord-bot/internal/migrations"
	"github.com/datnguyendev/social-watch-discord-bot/internal/monitor"
	"github.com/datnguyendev/social-watch-discord-bot/internal/monitor/monitorimpl"
	"github.com/datnguyendev/social-watch-discord-bot/internal/pgx"
	repositories "github.com/datnguyendev/social-watch-discord-bot/internal/repositories/fx"
	"github.com/datnguyendev/social-watch-discord-bot/internal/store"
	"github.com/datnguyendev/social-watch-discord-bot/internal/store/storeimpl"
	"github.com/datnguyendev/social-watch-discord-bot/pkg/config"
	"github.com/datnguyendev/social-watch-discord-bot/pkg/logger"
)

var Module = fx.Options(
	fx.Provide(
		config.New,
		logger.FxOption,
		pgx.New,
	),
	fx.Provide(
		fx.Annotate(
			discordimpl.New,
			fx.As(new(discord.Sink)),
		),
		fx.Annotate(
			blueskyimpl.New,
			fx.As(new(bluesky.Client)),
		),
		fx.Annotate(
			mastodonimpl.New,
			fx.As(new(mastodon.Client)),
		),
		func(b bluesky.Client) bluesky.Resolver {
			return b
		},
		func(b bluesky.Client, m mastodon.Client) fetcher.Registry {
			return fetcher.NewRegistry(b, m)
		},
		fx.Annotate(
			storeimpl.New,
			fx.As(new(store.Store)),
		),
		fx.Annotate(
			monitorimpl.New,
			fx.As(new(monitor.Client)),
		),
	),
	repositories.Module,
	fx.Invoke(
		func(c *config.Config) error {
			if err := goose.SetDialect("pgx"); err != nil {
				return err
			}

			db, err := sql.Open("postgres",
				fmt.Sprintf("dbname=%s user=%s password=%s host=%s port=%d sslmode=%s ",
					c.Postgres.Name, c.Postgres.User, c.Postgres.Pass, c.Postgres.Host, c.Postgres.Port, c.Postgres.SslMode,
				),
			)
			if err != nil {
				return err
			}
			defer db.Close()

			return goose.Up(db, ".")
		}),
	fx.Invoke(run),
)

func run(lc fx.Lifecycle, log logger.Logger, cfg *config.Config, mClient monitor.Client) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go startHttpServer(log, cfg)

			if err := mClient.Start(ctx); err != nil {
				log.Error("Monitor start error", "Error", err)
				return err
			}
			return nil
		},
		OnStop: func(context.Context) error {
			return mClient.Stop()
		},
	})
}

func startHttpServer(log logger.Logger, cfg *config.Config) {
	http.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		healthCheckHandler(w, r, log)
	})

	log.Info(fmt.Sprintf("Starting server on :%d", cfg.App.Port))

	if err := http.ListenAndServe(fmt.Sprintf(":%d", cfg.App.Port), nil); err != nil {
		log.Error("Server failed to start: %v", err)
	}
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request, logger logger.Logger) {
	logger.Info("Health check request received", "Method", r.Method, "URL", r.URL.String())
	w.Header().Set("Content-Type", "text/plain")
	if _, err := w.Write([]byte("ok")); err != nil {
		logger.Error("Failed to write response", "Error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
