package wire

import (
	"context"
	"strings"

	"github.com/google/wire"

	"z-ebook-api/internal/application/story/chapter"
	"z-ebook-api/internal/application/story/illustration"
	"z-ebook-api/internal/application/story/memory"
	"z-ebook-api/internal/application/story/orchestrator"
	"z-ebook-api/internal/application/story/outline"
	"z-ebook-api/internal/application/story/repetition"
	"z-ebook-api/internal/application/story/summary"
	"z-ebook-api/internal/config"
	"z-ebook-api/internal/domain/repository"
	"z-ebook-api/internal/infrastructure/embedding"
	"z-ebook-api/internal/infrastructure/image"
	"z-ebook-api/internal/infrastructure/llm"
	"z-ebook-api/internal/infrastructure/messaging"
	"z-ebook-api/internal/infrastructure/persistence/milvus"
	"z-ebook-api/internal/infrastructure/persistence/postgres"
	"z-ebook-api/internal/infrastructure/persistence/redis"
	"z-ebook-api/internal/interfaces/http/handler"
	"z-ebook-api/internal/interfaces/http/middleware"
	"z-ebook-api/internal/interfaces/http/router"
	workflowport "z-ebook-api/internal/workflow/port"
	"z-ebook-api/pkg/logger"
)

// Worker job-worker 运行所需的依赖
type Worker struct {
	Orchestrator *orchestrator.Orchestrator
	Generations  repository.GenerationRepository
	RedisClient  *redis.Client
	Cache        *redis.Cache
}

// PostgresSet PostgreSQL 提供者集合
var PostgresSet = wire.NewSet(
	ProvidePostgresClient,
	postgres.NewGenerationRepository,
	postgres.NewOutlineRepository,
	postgres.NewStoryStateRepository,
	postgres.NewChapterSummaryRepository,
	wire.Bind(new(repository.GenerationRepository), new(*postgres.GenerationRepository)),
	wire.Bind(new(repository.OutlineRepository), new(*postgres.OutlineRepository)),
	wire.Bind(new(repository.StoryStateRepository), new(*postgres.StoryStateRepository)),
	wire.Bind(new(repository.ChapterSummaryRepository), new(*postgres.ChapterSummaryRepository)),
)

// RedisSet Redis 提供者集合
var RedisSet = wire.NewSet(
	ProvideRedisClient,
	redis.NewCache,
	wire.Bind(new(memory.KVCache), new(*redis.Cache)),
	ProvideSnapshotStore,
)

// VectorSet 章节向量存储与重复检测
var VectorSet = wire.NewSet(
	ProvideMilvusClientOptional,
	ProvideChapterEmbeddingStore,
	ProvideChapterEmbedder,
	ProvideRepetitionDetector,
)

// GenerationSet 生成流程
var GenerationSet = wire.NewSet(
	llm.NewEinoFactory,
	wire.Bind(new(workflowport.ChatModelFactory), new(*llm.EinoFactory)),
	outline.NewPlanner,
	chapter.NewGenerator,
	summary.NewSummarizer,
	ProvideIllustrator,
	ProvideOrchestrator,
)

// RouterSet HTTP 层
var RouterSet = wire.NewSet(
	ProvideJobPublisher,
	ProvideRateLimiter,
	ProvideHealthHandler,
	wire.Bind(new(handler.GenerationRunner), new(*orchestrator.Orchestrator)),
	handler.NewGenerationHandler,
	router.New,
)

// ProvidePostgresClient 提供 PostgreSQL 客户端，auto_migrate 时建表
func ProvidePostgresClient(cfg *config.Config) (*postgres.Client, func(), error) {
	client, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		_ = client.Close()
	}
	return client, cleanup, nil
}

// ProvideRedisClient 提供 Redis 客户端
func ProvideRedisClient(cfg *config.Config) (*redis.Client, func(), error) {
	client, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		_ = client.Close()
	}
	return client, cleanup, nil
}

func ProvideSnapshotStore(cache memory.KVCache, cfg *config.Config) *memory.SnapshotStore {
	return memory.NewSnapshotStore(cache, cfg.Cache.MemoryTTL)
}

// ProvideRateLimiter 限流关闭时返回 nil，中间件直接放行
func ProvideRateLimiter(client *redis.Client, cfg *config.Config) middleware.RateLimiter {
	if !cfg.Security.RateLimit.Enabled {
		return nil
	}
	return redis.NewRateLimiter(client)
}

// ProvideJobPublisher 提供异步任务生产者
func ProvideJobPublisher(client *redis.Client, cfg *config.Config) handler.JobPublisher {
	return messaging.NewProducer(client.Redis(), int64(cfg.Messaging.RedisStream.MaxLen))
}

// ProvideMilvusClientOptional vector.backend 不是 milvus 或连接失败时返回 nil
func ProvideMilvusClientOptional(ctx context.Context, cfg *config.Config) (*milvus.Client, func(), error) {
	if !strings.EqualFold(cfg.Vector.Backend, "milvus") {
		return nil, func() {}, nil
	}
	client, err := milvus.NewClient(ctx, &cfg.Vector.Milvus)
	if err != nil {
		logger.Warn(ctx, "milvus not available, falling back to postgres embeddings", "error", err.Error())
		return nil, func() {}, nil
	}
	cleanup := func() {
		_ = client.Close()
	}
	return client, cleanup, nil
}

// ProvideChapterEmbeddingStore Milvus 可用时使用 Milvus，否则使用 PostgreSQL
func ProvideChapterEmbeddingStore(ctx context.Context, cfg *config.Config, pg *postgres.Client, mc *milvus.Client) repository.ChapterEmbeddingRepository {
	if mc != nil {
		store := milvus.NewChapterStore(mc, cfg.Embedding.Dimension)
		err := store.EnsureCollection(ctx)
		if err == nil {
			return store
		}
		logger.Warn(ctx, "milvus collection unavailable, falling back to postgres embeddings", "error", err.Error())
	}
	return postgres.NewChapterEmbeddingRepository(pg)
}

func ProvideChapterEmbedder(ctx context.Context, cfg *config.Config) repetition.Embedder {
	return embedding.NewChapterEmbedder(ctx, &cfg.Embedding)
}

func ProvideRepetitionDetector(embedder repetition.Embedder, store repository.ChapterEmbeddingRepository, cfg *config.Config) *repetition.Detector {
	return repetition.NewDetector(embedder, store, cfg.Generation.RepetitionThreshold)
}

// ProvideIllustrator 图片服务未启用时插图为空操作
func ProvideIllustrator(cfg *config.Config) *illustration.Illustrator {
	var gen illustration.ImageGenerator
	if c := image.NewClient(&cfg.Image); c != nil {
		gen = c
	}
	return illustration.NewIllustrator(gen, illustration.Config{Timeout: cfg.Image.Timeout})
}

// ProvideOrchestrator 组装生成编排器
func ProvideOrchestrator(
	cfg *config.Config,
	planner *outline.Planner,
	writer *chapter.Generator,
	summarizer *summary.Summarizer,
	detector *repetition.Detector,
	illustrator *illustration.Illustrator,
	generations repository.GenerationRepository,
	outlines repository.OutlineRepository,
	states repository.StoryStateRepository,
	summaries repository.ChapterSummaryRepository,
	snapshots *memory.SnapshotStore,
) *orchestrator.Orchestrator {
	provider, pc := cfg.ResolveProvider()
	return orchestrator.New(orchestrator.Config{
		RepetitionThreshold: detector.Threshold(),
		CallTimeout:         cfg.Generation.CallTimeout,
		ExcerptWords:        cfg.Generation.ExcerptWords,
		DefaultChapters:     cfg.Generation.DefaultChapters,
		MaxChapters:         cfg.Generation.MaxChapters,
		DefaultFormat:       cfg.Generation.DefaultFormat,
		CoverEnabled:        cfg.Image.CoverEnabled,
		Provider:            provider,
		Model:               pc.Model,
	}, orchestrator.Deps{
		Planner:     planner,
		Writer:      writer,
		Summarizer:  summarizer,
		Detector:    detector,
		Illustrator: illustrator,
		Generations: generations,
		Outlines:    outlines,
		States:      states,
		Summaries:   summaries,
		Snapshots:   snapshots,
	})
}

// ProvideHealthHandler PostgreSQL 与 Redis 为必需依赖，Milvus 为可选
func ProvideHealthHandler(cfg *config.Config, pg *postgres.Client, rc *redis.Client, mc *milvus.Client) *handler.HealthHandler {
	required := map[string]handler.Pinger{
		"postgres": pg,
		"redis":    rc,
	}
	optional := map[string]handler.Pinger{}
	if mc != nil {
		optional["milvus"] = mc
	}
	return handler.NewHealthHandler(cfg.App.Version, required, optional)
}
