package registry

import (
	"context"

	"github.com/jonboulle/clockwork"
	"github.com/webitel/pricing-sync-service/internal/domain/model"
	"go.uber.org/fx"
)

var Module = fx.Module("registry",
	fx.Provide(
		// [OWNED_STATE] The hub is created once with the default state and owns it until shutdown.
		func(clock clockwork.Clock) (*Hub, error) {
			initial, err := model.NewSnapshot(model.NewDefaultState(clock.Now().UnixMilli()))
			if err != nil {
				return nil, err
			}
			return NewHub(initial, WithClock(clock)), nil
		},
		func(h *Hub) Hubber { return h },
	),
	fx.Invoke(func(lc fx.Lifecycle, h Hubber) {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				h.Shutdown() // [GRACEFUL_SHUTDOWN] Close every live connection
				return nil
			},
		})
	}),
)
