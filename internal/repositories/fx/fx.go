package fx

import (
	"github.com/datnguyendev/social-watch-discord-bot/internal/repositories/subscription"
	"go.uber.org/fx"
)

var Module = fx.Options(
	subscription.Module,
)
