package probe

import (
	"github.com/horockey/svcreg/internal/model"
)

type Gateway interface {
	model.MetricsProvider
	model.Prober
}
