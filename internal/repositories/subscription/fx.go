package subscription

import (
	"go.uber.org/fx"
)

var Module = fx.Module("subscription_repository",
	fx.Provide(
		NewPgxRepository,
		fx.Annotate(
			func(repo *PgxRepository) Repository {
				return repo
			},
			fx.As(new(Repository)),
		),
	),
)
