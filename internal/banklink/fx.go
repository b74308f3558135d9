package banklink

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/banklabs/banklink/internal/audit"
	"github.com/banklabs/banklink/internal/banklink/adapters/aab"
	"github.com/banklabs/banklink/internal/banklink/adapters/ec"
	"github.com/banklabs/banklink/internal/banklink/adapters/ipizza"
	"github.com/banklabs/banklink/internal/banklink/adapters/solo"
	"github.com/banklabs/banklink/internal/banklink/delivery"
	"github.com/banklabs/banklink/internal/banklink/domain"
	"github.com/banklabs/banklink/internal/banklink/registry"
	"github.com/banklabs/banklink/internal/banklink/replay"
	"github.com/banklabs/banklink/internal/banklink/repository"
	"github.com/banklabs/banklink/internal/banklink/sequence"
	"github.com/banklabs/banklink/internal/banklink/service"
	"github.com/banklabs/banklink/internal/config"
	merchantdomain "github.com/banklabs/banklink/internal/merchant/domain"
)

var Module = fx.Module("banklink",
	fx.Provide(repository.Provide),
	fx.Provide(sequence.NewCounter),
	fx.Provide(replay.NewGuard),
	fx.Provide(func(cfg config.Config) *delivery.Deliverer {
		return delivery.NewDeliverer(cfg.CallbackTimeout, cfg.Hostname)
	}),
	fx.Provide(NewRegistry),
	fx.Provide(func(reg *registry.Registry, merchants merchantdomain.Repository, payments domain.PaymentRepository, attempts audit.Repository, cfg config.Config, log *zap.Logger) *service.Service {
		return service.New(reg, merchants, payments, attempts, cfg.Hostname, log)
	}),
)

// NewRegistry binds every protocol factory to the bank roster. Adding a
// protocol means adding its factory here.
func NewRegistry(cfg config.Config, seq *sequence.Counter, del *delivery.Deliverer, guard *replay.Guard) *registry.Registry {
	return registry.New(cfg, []domain.Factory{
		ipizza.NewFactory(seq, del),
		solo.NewFactory(seq, del),
		aab.NewFactory(seq),
		ec.NewFactory(seq, del, guard),
	})
}
