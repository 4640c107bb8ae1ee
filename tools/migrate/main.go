package main

import (
	"flag"
	"fmt"
	"log"

	"database/sql"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"

	_ "github.com/datnguyendev/social-watch-discord-bot/internal/migrations"
	"github.com/datnguyendev/social-watch-discord-bot/pkg/config"
)

func main() {
	command := flag.String("command", "up", "goose command: up, down, status")
	flag.Parse()

	cfg, err := config.New()
	if err != nil {
		log.Fatalf("read config: %v", err)
	}

	if err := goose.SetDialect("pgx"); err != nil {
		log.Fatalf("set dialect: %v", err)
	}

	db, err := sql.Open("postgres",
		fmt.Sprintf("dbname=%s user=%s password=%s host=%s port=%d sslmode=%s ",
			cfg.Postgres.Name, cfg.Postgres.User, cfg.Postgres.Pass, cfg.Postgres.Host, cfg.Postgres.Port, cfg.Postgres.SslMode,
		),
	)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	switch *command {
	case "up":
		err = goose.Up(db, ".")
	case "down":
		err = goose.Down(db, ".")
	case "status":
		err = goose.Status(db, ".")
	default:
		log.Fatalf("unknown command %q", *command)
	}
	if err != nil {
		log.Fatalf("goose %s: %v", *command, err)
	}
}
