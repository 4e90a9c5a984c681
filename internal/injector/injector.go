//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package injector

import (
	"github.com/google/wire"

	"github.com/zeusync/robosim/internal/app"
	"github.com/zeusync/robosim/internal/core/control"
	"github.com/zeusync/robosim/internal/core/events/bus"
)

func InitializeApp(cfg app.Config) (*app.App, error) {
	wire.Build(app.ProvideLogger, bus.New, control.DefaultRegistry, app.New)
	return nil, nil
}
