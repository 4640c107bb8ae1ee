package migrations

import (
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigration(upInit, downInit)
}

func upInit(tx *sql.Tx) error {
	_, err := tx.Exec(`
	CREATE TABLE subscriptions (
		id SERIAL PRIMARY KEY,
		guild_id VARCHAR NOT NULL,
		channel_id VARCHAR NOT NULL,
		platform VARCHAR NOT NULL,
		account_handle VARCHAR NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (guild_id, platform, account_handle)
	);
	`)
	if err != nil {
		return err
	}
	return nil
}

func downInit(tx *sql.Tx) error {
	_, err := tx.Exec(`
	DROP TABLE subscriptions;
	`)
	if err != nil {
		return err
	}
	return nil
}
