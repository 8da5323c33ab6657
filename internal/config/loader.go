package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const (
	configDir  = "configs"
	envVarName = "APP_ENV"
	defaultEnv = "development"
)

// ${VAR} 或 ${VAR:default}
var placeholder = regexp.MustCompile(`\$\{(\w+)(:([^}]*))?\}`)

// Load 读取 configs/ 目录
func Load() (*Config, error) {
	return LoadFrom(configDir)
}

// LoadFrom 依次叠加 config.yaml、config.<APP_ENV>.yaml 与环境变量（a.b 对应 A_B），
// 缺失的键使用 defaults 中的值，最后做结构校验。
func LoadFrom(dir string) (*Config, error) {
	env := os.Getenv(envVarName)
	if env == "" {
		env = defaultEnv
	}

	v := viper.New()
	v.SetConfigType("yaml")
	for key, val := range defaults {
		v.SetDefault(key, val)
	}

	if err := mergeFile(v, filepath.Join(dir, "config.yaml"), true); err != nil {
		return nil, err
	}
	if err := mergeFile(v, filepath.Join(dir, "config."+env+".yaml"), false); err != nil {
		return nil, err
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := new(Config)
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// mergeFile 展开占位符后合并进 viper；required 为 false 时文件可以不存在
func mergeFile(v *viper.Viper, path string, required bool) error {
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) && !required {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := v.MergeConfig(bytes.NewReader([]byte(expandEnv(string(raw))))); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// expandEnv 变量未设置且没有默认值时保留原样
func expandEnv(s string) string {
	return placeholder.ReplaceAllStringFunc(s, func(m string) string {
		g := placeholder.FindStringSubmatch(m)
		if val, ok := os.LookupEnv(g[1]); ok {
			return val
		}
		if g[2] != "" {
			return g[3]
		}
		return m
	})
}

var validate = validator.New()

// Validate 结构校验，外加提供商引用检查
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	refs := map[string]string{"default provider": c.LLM.DefaultProvider}
	if c.Generation.Provider != "" {
		refs["generation provider"] = c.Generation.Provider
	}
	for what, name := range refs {
		if _, ok := c.LLM.Providers[name]; !ok {
			return fmt.Errorf("invalid config: %s %q is not configured", what, name)
		}
	}
	return nil
}

// defaults 写超时为 0，整本书的流式生成可能持续数分钟
var defaults = map[string]any{
	"app.name":    "z-ebook-api",
	"app.version": "v0.0.0",
	"app.env":     "development",

	"server.http.host":          "0.0.0.0",
	"server.http.port":          8080,
	"server.http.read_timeout":  "30s",
	"server.http.write_timeout": "0s",
	"server.http.idle_timeout":  "120s",

	"database.postgres.host":               "localhost",
	"database.postgres.port":               5432,
	"database.postgres.user":               "postgres",
	"database.postgres.database":           "z_ebook",
	"database.postgres.ssl_mode":           "disable",
	"database.postgres.max_open_conns":     50,
	"database.postgres.max_idle_conns":     10,
	"database.postgres.conn_max_lifetime":  "30m",
	"database.postgres.conn_max_idle_time": "5m",
	"database.postgres.auto_migrate":       false,

	"cache.redis.host":           "localhost",
	"cache.redis.port":           6379,
	"cache.redis.db":             0,
	"cache.redis.pool_size":      100,
	"cache.redis.min_idle_conns": 10,
	"cache.redis.dial_timeout":   "5s",
	"cache.redis.read_timeout":   "3s",
	"cache.redis.write_timeout":  "3s",
	"cache.memory_ttl":           "1h",

	"vector.backend":                     "postgres",
	"vector.milvus.host":                 "localhost",
	"vector.milvus.port":                 19530,
	"vector.milvus.collection_prefix":    "z_ebook",
	"vector.milvus.hnsw_m":               16,
	"vector.milvus.hnsw_ef_construction": 200,

	"embedding.provider":   "hashing",
	"embedding.dimension":  384,
	"embedding.batch_size": 32,
	"embedding.timeout":    "30s",

	"image.enabled":         false,
	"image.base_url":        "https://api.openai.com/v1",
	"image.model":           "dall-e-3",
	"image.size":            "1024x1024",
	"image.quality":         "standard",
	"image.timeout":         "60s",
	"image.rate_per_minute": 5,
	"image.burst":           1,
	"image.cover_enabled":   true,

	"generation.default_chapters":     3,
	"generation.max_chapters":         30,
	"generation.default_format":       "short-story",
	"generation.repetition_threshold": 0.85,
	"generation.call_timeout":         "60s",
	"generation.excerpt_words":        200,

	"messaging.redis_stream.max_len":                  10000,
	"messaging.redis_stream.consumer_group_prefix":    "z-ebook",
	"messaging.redis_stream.block_timeout":            "5s",
	"messaging.redis_stream.claim_interval":           "5m",
	"messaging.redis_stream.retry_limit":              3,
	"messaging.redis_stream.retry_backoff.initial":    "10s",
	"messaging.redis_stream.retry_backoff.max":        "5m",
	"messaging.redis_stream.retry_backoff.multiplier": 2.0,

	"observability.logging.level":       "info",
	"observability.logging.format":      "json",
	"observability.tracing.enabled":     false,
	"observability.tracing.endpoint":    "localhost:4317",
	"observability.tracing.sample_rate": 1.0,
	"observability.metrics.enabled":     true,
	"observability.metrics.path":        "/metrics",

	"security.jwt.required":                    false,
	"security.jwt.issuer":                      "z-ebook",
	"security.jwt.expiration":                  "24h",
	"security.rate_limit.enabled":              true,
	"security.rate_limit.generations_per_hour": 10,
}
