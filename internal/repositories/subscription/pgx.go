package subscription

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/datnguyendev/social-watch-discord-bot/internal/domain"
	"github.com/datnguyendev/social-watch-discord-bot/internal/repositories"
	"github.com/datnguyendev/social-watch-discord-bot/pkg/logger"

	sq "github.com/Masterminds/squirrel"
)

type PgxRepository struct {
	pool   *pgxpool.Pool
	logger logger.Logger
}

func NewPgxRepository(pool *pgxpool.Pool, logger logger.Logger) *PgxRepository {
	return &PgxRepository{
		pool:   pool,
		logger: logger.WithComponent("SubscriptionRepo"),
	}
}

var _ Repository = (*PgxRepository)(nil)

const columns = "id, guild_id, channel_id, platform, account_handle, last_post_uri, last_post_timestamp, created_at"

func (r *PgxRepository) Create(ctx context.Context, sub domain.Subscription) (*domain.Subscription, error) {
	query, args, err := repositories.SqBuilder.
		Insert("subscriptions").
		Columns("guild_id", "channel_id", "platform", "account_handle").
		Values(sub.GuildID, sub.ChannelID, sub.Platform, domain.NormalizeHandle(sub.AccountHandle)).
		Suffix("RETURNING " + columns).
		ToSql()
	if err != nil {
		return nil, repositories.ErrBadQuery
	}

	row := r.pool.QueryRow(ctx, query, args...)
	created, err := scanSubscription(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrAlreadyExists
		}
		return nil, err
	}
	return created, nil
}

func (r *PgxRepository) Delete(ctx context.Context, guildID string, platform domain.Platform, handle string) error {
	query, args, err := repositories.SqBuilder.
		Delete("subscriptions").
		Where(sq.Eq{
			"guild_id":       guildID,
			"platform":       platform,
			"account_handle": domain.NormalizeHandle(handle),
		}).
		ToSql()
	if err != nil {
		return repositories.ErrBadQuery
	}

	result, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *PgxRepository) GetByGuild(ctx context.Context, guildID string) ([]*domain.Subscription, error) {
	query, args, err := repositories.SqBuilder.
		Select(columns).
		From("subscriptions").
		Where(sq.Eq{"guild_id": guildID}).
		OrderBy("account_handle ASC").
		ToSql()
	if err != nil {
		return nil, repositories.ErrBadQuery
	}

	return r.querySubscriptions(ctx, query, args...)
}

func (r *PgxRepository) GetForAccount(ctx context.Context, platform domain.Platform, handle string) ([]*domain.Subscription, error) {
	query, args, err := repositories.SqBuilder.
		Select(columns).
		From("subscriptions").
		Where(sq.Eq{
			"platform":       platform,
			"account_handle": domain.NormalizeHandle(handle),
		}).
		ToSql()
	if err != nil {
		return nil, repositories.ErrBadQuery
	}

	return r.querySubscriptions(ctx, query, args...)
}

func (r *PgxRepository) GetAllActive(ctx context.Context) ([]*domain.Subscription, error) {
	query, args, err := repositories.SqBuilder.
		Select(columns).
		From("subscriptions").
		OrderBy("id ASC").
		ToSql()
	if err != nil {
		return nil, repositories.ErrBadQuery
	}

	return r.querySubscriptions(ctx, query, args...)
}

func (r *PgxRepository) GetUniqueHandles(ctx context.Context, platform domain.Platform) ([]string, error) {
	query, args, err := repositories.SqBuilder.
		Select("DISTINCT account_handle").
		From("subscriptions").
		Where(sq.Eq{"platform": platform}).
		ToSql()
	if err != nil {
		return nil, repositories.ErrBadQuery
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var handles []string
	for rows.Next() {
		var handle string
		if err := rows.Scan(&handle); err != nil {
			return nil, err
		}
		handles = append(handles, handle)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return handles, nil
}

func (r *PgxRepository) UpdateLastPost(ctx context.Context, id int64, uri string, timestamp time.Time) error {
	query, args, err := repositories.SqBuilder.
		Update("subscriptions").
		Set("last_post_uri", uri).
		Set("last_post_timestamp", timestamp).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return repositories.ErrBadQuery
	}

	result, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *PgxRepository) querySubscriptions(ctx context.Context, query string, args ...any) ([]*domain.Subscription, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []*domain.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return subs, nil
}

func scanSubscription(row pgx.Row) (*domain.Subscription, error) {
	var sub domain.Subscription
	var lastURI *string
	var lastTS *time.Time
	if err := row.Scan(
		&sub.ID,
		&sub.GuildID,
		&sub.ChannelID,
		&sub.Platform,
		&sub.AccountHandle,
		&lastURI,
		&lastTS,
		&sub.CreatedAt,
	); err != nil {
		return nil, err
	}
	if lastURI != nil {
		sub.LastPostURI = *lastURI
	}
	sub.LastPostTimestamp = lastTS
	return &sub, nil
}
