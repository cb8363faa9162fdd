//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"github.com/google/wire"

	"bytepad-backend/internal/config"
)

// InitializeContainer wires the application. The returned cleanup flushes
// traces and logs.
func InitializeContainer(ctx context.Context, cfg *config.Config, opts Options) (*Container, func(), error) {
	wire.Build(SuperSet)
	return nil, nil, nil
}
