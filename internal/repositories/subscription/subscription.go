package subscription

import (
	"context"
	"errors"
	"time"

	"github.com/datnguyendev/social-watch-discord-bot/internal/domain"
)

var (
	ErrAlreadyExists = errors.New("subscription already exists")
	ErrNotFound      = errors.New("subscription not found")
)

//go:generate go run go.uber.org/mock/mockgen -source=subscription.go -destination=mocks/mock.go
type Repository interface {
	Create(ctx context.Context, sub domain.Subscription) (*domain.Subscription, error)
	Delete(ctx context.Context, guildID string, platform domain.Platform, handle string) error
	GetByGuild(ctx context.Context, guildID string) ([]*domain.Subscription, error)
	GetForAccount(ctx context.Context, platform domain.Platform, handle string) ([]*domain.Subscription, error)
	GetAllActive(ctx context.Context) ([]*domain.Subscription, error)
	GetUniqueHandles(ctx context.Context, platform domain.Platform) ([]string, error)
	UpdateLastPost(ctx context.Context, id int64, uri string, timestamp time.Time) error
}
