//go:build wireinject
// +build wireinject

// Package wire 提供依赖注入配置
package wire

import (
	"context"

	"github.com/google/wire"

	"z-ebook-api/internal/config"
	"z-ebook-api/internal/interfaces/http/router"
)

// InitializeApp 初始化 API 网关（带路由器）
func InitializeApp(ctx context.Context, cfg *config.Config) (*router.Router, func(), error) {
	wire.Build(
		PostgresSet,
		RedisSet,
		VectorSet,
		GenerationSet,
		RouterSet,
	)
	return nil, nil, nil
}

// InitializeWorker 初始化异步生成任务执行器
func InitializeWorker(ctx context.Context, cfg *config.Config) (*Worker, func(), error) {
	wire.Build(
		PostgresSet,
		RedisSet,
		VectorSet,
		GenerationSet,
		wire.Struct(new(Worker), "*"),
	)
	return nil, nil, nil
}
