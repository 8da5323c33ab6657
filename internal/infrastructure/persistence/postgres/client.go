// Package postgres 生成记录与故事记忆的 PostgreSQL 存储
package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"z-ebook-api/internal/config"
	"z-ebook-api/pkg/logger"
)

var tracer = otel.Tracer("postgres")

const pingTimeout = 5 * time.Second

// Client GORM 连接
type Client struct {
	db *gorm.DB
}

func dsn(cfg *config.PostgresConfig) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode)
}

// NewClient 打开连接池，auto_migrate 打开时同步表结构
func NewClient(cfg *config.PostgresConfig) (*Client, error) {
	// 章节正文很长，参数化输出并只保留慢查询与错误
	gl := gormlogger.New(
		slog.NewLogLogger(logger.Default().Handler(), slog.LevelWarn),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			ParameterizedQueries:      true,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn(cfg)), &gorm.Config{Logger: gl, TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres %s:%d/%s: %w", cfg.Host, cfg.Port, cfg.Database, err)
	}

	pool, err := db.DB()
	if err != nil {
		return nil, err
	}
	pool.SetMaxOpenConns(cfg.MaxOpenConns)
	pool.SetMaxIdleConns(cfg.MaxIdleConns)
	pool.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	pool.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := pool.PingContext(ctx); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	c := &Client{db: db}
	if cfg.AutoMigrate {
		if err := c.Migrate(ctx); err != nil {
			_ = pool.Close()
			return nil, err
		}
	}
	return c, nil
}

// Migrate 同步五张业务表
func (c *Client) Migrate(ctx context.Context) error {
	models := []any{
		&generationRow{},
		&outlineRow{},
		&storyStateRow{},
		&chapterSummaryRow{},
		&chapterEmbeddingRow{},
	}
	if err := c.db.WithContext(ctx).AutoMigrate(models...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

func (c *Client) Close() error {
	pool, err := c.db.DB()
	if err != nil {
		return err
	}
	return pool.Close()
}

// HealthCheck 就绪探测，走连接池 Ping
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "postgres.HealthCheck")
	defer span.End()

	pool, err := c.db.DB()
	if err == nil {
		err = pool.PingContext(ctx)
	}
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("postgres health check failed: %w", err)
	}
	return nil
}
