// Package main 异步生成任务执行器入口（job-worker）
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"z-ebook-api/internal/application/story/orchestrator"
	"z-ebook-api/internal/config"
	"z-ebook-api/internal/domain/entity"
	"z-ebook-api/internal/infrastructure/messaging"
	einoobs "z-ebook-api/internal/observability/eino"
	"z-ebook-api/internal/wire"
	apperrors "z-ebook-api/pkg/errors"
	"z-ebook-api/pkg/logger"
	"z-ebook-api/pkg/tracer"
)

const dlqAlertThreshold = 100

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Observability.Logging.Level, cfg.Observability.Logging.Format)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown, err := tracer.Init(ctx, tracer.Config{
		ServiceName: "job-worker",
		Endpoint:    cfg.Observability.Tracing.Endpoint,
		SampleRate:  cfg.Observability.Tracing.SampleRate,
		Enabled:     cfg.Observability.Tracing.Enabled,
	})
	if err != nil {
		logger.Fatal(ctx, "failed to init tracer", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	einoobs.Init()

	worker, cleanup, err := wire.InitializeWorker(ctx, cfg)
	if err != nil {
		logger.Fatal(ctx, "failed to initialize worker", err)
	}
	defer cleanup()

	streamCfg := cfg.Messaging.RedisStream
	consumer := messaging.NewConsumer(worker.RedisClient.Redis(), messaging.ConsumerConfig{
		Stream:        messaging.StreamEbookGenerate,
		Group:         consumerGroup(streamCfg.ConsumerGroupPrefix),
		ConsumerName:  hostnameConsumerName(),
		BlockTimeout:  streamCfg.BlockTimeout,
		ClaimInterval: streamCfg.ClaimInterval,
		RetryLimit:    streamCfg.RetryLimit,
		Backoff: messaging.BackoffConfig{
			Initial:    streamCfg.RetryBackoff.Initial,
			Max:        streamCfg.RetryBackoff.Max,
			Multiplier: streamCfg.RetryBackoff.Multiplier,
		},
	})
	consumer.RegisterHandler(messaging.MessageTypeGenerate, generationHandler(worker))

	log := logger.FromContext(ctx)
	log.Info("job-worker started")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return consumer.Run(gctx)
	})
	g.Go(func() error {
		consumer.MonitorDLQ(gctx, dlqAlertThreshold)
		return nil
	})

	<-gctx.Done()
	log.Info("job-worker shutting down")
	consumer.Stop()

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error(context.Background(), "job-worker exited with error", err)
		os.Exit(1)
	}
}

// generationHandler 执行一次异步生成；返回错误时消息留在 PEL 等待重投
func generationHandler(w *wire.Worker) messaging.MessageHandler {
	return func(ctx context.Context, msg *messaging.Message) error {
		var job messaging.GenerationJobMessage
		if err := msg.UnmarshalPayload(&job); err != nil {
			logger.Error(ctx, "invalid generation job payload", err, "message_id", msg.ID)
			return nil
		}

		rec, err := w.Generations.GetByID(ctx, job.GenerationID)
		if err != nil {
			return err
		}
		if rec != nil && rec.Status == entity.GenerationStatusCompleted {
			logger.Info(ctx, "generation already completed, skipping", "generation_id", job.GenerationID)
			return nil
		}
		// 重投时丢弃上一次运行残留的记忆快照
		if err := w.Cache.InvalidateGeneration(ctx, job.GenerationID); err != nil {
			logger.Warn(ctx, "failed to invalidate memory cache", "generation_id", job.GenerationID, "error", err.Error())
		}

		req := orchestrator.Request{
			GenerationID: job.GenerationID,
			UserID:       job.UserID,
			SourceText:   job.SourceText,
			ChapterCount: job.ChapterCount,
			Format:       job.Format,
			Theme:        job.Theme,
			WithImages:   job.WithImages,
		}
		err = w.Orchestrator.Run(ctx, req, func(ev orchestrator.Event) bool {
			switch ev.Type {
			case orchestrator.EventChapter:
				logger.Info(ctx, "chapter generated",
					"chapter", ev.CurrentChapter,
					"total", ev.TotalChapters,
					"progress", ev.Progress,
				)
			case orchestrator.EventMemoryCheck:
				logger.Warn(ctx, "repetition detected", "chapter", ev.CurrentChapter)
			case orchestrator.EventComplete:
				logger.Info(ctx, "generation completed", "chapters", ev.TotalChapters)
			default:
				logger.Debug(ctx, "generation event", "type", string(ev.Type), "progress", ev.Progress)
			}
			return true
		})
		if err != nil && apperrors.CodeOf(err) == apperrors.CodeInvalidParam {
			logger.Warn(ctx, "generation job rejected", "generation_id", job.GenerationID, "error", err.Error())
			return nil
		}
		return err
	}
}

func consumerGroup(prefix string) messaging.ConsumerGroup {
	if prefix == "" {
		return messaging.ConsumerGroupEbookWorkers
	}
	return messaging.ConsumerGroup(prefix + ":" + string(messaging.ConsumerGroupEbookWorkers))
}

func hostnameConsumerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
