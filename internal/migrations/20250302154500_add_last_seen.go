package migrations

import (
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigration(upAddLastSeen, downAddLastSeen)
}

func upAddLastSeen(tx *sql.Tx) error {
	_, err := tx.Exec(`
	ALTER TABLE subscriptions
		ADD COLUMN last_post_uri VARCHAR,
		ADD COLUMN last_post_timestamp TIMESTAMPTZ;
	CREATE INDEX idx_subscriptions_platform_handle ON subscriptions (platform, account_handle);
	`)
	if err != nil {
		return err
	}
	return nil
}

func downAddLastSeen(tx *sql.Tx) error {
	_, err := tx.Exec(`
	DROP INDEX idx_subscriptions_platform_handle;
	ALTER TABLE subscriptions
		DROP COLUMN last_post_uri,
		DROP COLUMN last_post_timestamp;
	`)
	if err != nil {
		return err
	}
	return nil
}
