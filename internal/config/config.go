// Package config YAML + 环境变量配置
package config

import (
	"time"
)

// Config 对应 configs/config.yaml 的顶层结构
type Config struct {
	App           AppConfig           `yaml:"app" mapstructure:"app"`
	Server        ServerConfig        `yaml:"server" mapstructure:"server"`
	Database      DatabaseConfig      `yaml:"database" mapstructure:"database"`
	Cache         CacheConfig         `yaml:"cache" mapstructure:"cache"`
	Vector        VectorConfig        `yaml:"vector" mapstructure:"vector"`
	LLM           LLMConfig           `yaml:"llm" mapstructure:"llm"`
	Embedding     EmbeddingConfig     `yaml:"embedding" mapstructure:"embedding"`
	Image         ImageConfig         `yaml:"image" mapstructure:"image"`
	Generation    GenerationConfig    `yaml:"generation" mapstructure:"generation"`
	Messaging     MessagingConfig     `yaml:"messaging" mapstructure:"messaging"`
	Observability ObservabilityConfig `yaml:"observability" mapstructure:"observability"`
	Security      SecurityConfig      `yaml:"security" mapstructure:"security"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	Name    string `yaml:"name" mapstructure:"name" validate:"required"`
	Version string `yaml:"version" mapstructure:"version"`
	Env     string `yaml:"env" mapstructure:"env" validate:"oneof=development test staging production"`
}

type ServerConfig struct {
	HTTP HTTPServerConfig `yaml:"http" mapstructure:"http"`
}

type HTTPServerConfig struct {
	Host         string        `yaml:"host" mapstructure:"host"`
	Port         int           `yaml:"port" mapstructure:"port" validate:"min=1,max=65535"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `yaml:"postgres" mapstructure:"postgres"`
}

// PostgresConfig auto_migrate 打开时启动即同步表结构
type PostgresConfig struct {
	Host            string        `yaml:"host" mapstructure:"host" validate:"required"`
	Port            int           `yaml:"port" mapstructure:"port" validate:"min=1,max=65535"`
	User            string        `yaml:"user" mapstructure:"user" validate:"required"`
	Password        string        `yaml:"password" mapstructure:"password"`
	Database        string        `yaml:"database" mapstructure:"database" validate:"required"`
	SSLMode         string        `yaml:"ssl_mode" mapstructure:"ssl_mode"`
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" mapstructure:"conn_max_idle_time"`
	AutoMigrate     bool          `yaml:"auto_migrate" mapstructure:"auto_migrate"`
}

type CacheConfig struct {
	Redis RedisConfig `yaml:"redis" mapstructure:"redis"`
	// MemoryTTL 记忆快照缓存过期时间
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
}

type RedisConfig struct {
	Host         string        `yaml:"host" mapstructure:"host" validate:"required"`
	Port         int           `yaml:"port" mapstructure:"port" validate:"min=1,max=65535"`
	Password     string        `yaml:"password" mapstructure:"password"`
	DB           int           `yaml:"db" mapstructure:"db"`
	PoolSize     int           `yaml:"pool_size" mapstructure:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns" mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout" mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
}

type VectorConfig struct {
	// Backend 章节向量存储后端：milvus 或 postgres
	Backend string       `yaml:"backend" mapstructure:"backend" validate:"oneof=milvus postgres"`
	Milvus  MilvusConfig `yaml:"milvus" mapstructure:"milvus"`
}

// MilvusConfig 集合名为 <collection_prefix>_chapter_embeddings
type MilvusConfig struct {
	Host               string `yaml:"host" mapstructure:"host"`
	Port               int    `yaml:"port" mapstructure:"port"`
	User               string `yaml:"user" mapstructure:"user"`
	Password           string `yaml:"password" mapstructure:"password"`
	CollectionPrefix   string `yaml:"collection_prefix" mapstructure:"collection_prefix"`
	HNSWM              int    `yaml:"hnsw_m" mapstructure:"hnsw_m"`
	HNSWEfConstruction int    `yaml:"hnsw_ef_construction" mapstructure:"hnsw_ef_construction"`
}

type LLMConfig struct {
	DefaultProvider string                    `yaml:"default_provider" mapstructure:"default_provider" validate:"required"`
	Providers       map[string]ProviderConfig `yaml:"providers" mapstructure:"providers" validate:"required,dive"`
}

// ProviderConfig OpenAI 兼容的聊天模型端点
type ProviderConfig struct {
	APIKey      string        `yaml:"api_key" mapstructure:"api_key"`
	BaseURL     string        `yaml:"base_url" mapstructure:"base_url"`
	Model       string        `yaml:"model" mapstructure:"model" validate:"required"`
	MaxTokens   int           `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64       `yaml:"temperature" mapstructure:"temperature" validate:"gte=0,lte=2"`
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// EmbeddingConfig provider 取 hashing、http 或 openai
type EmbeddingConfig struct {
	// Provider 为空或 hashing 时使用本地确定性向量化；http 对接自建 embedding 服务
	Provider  string        `yaml:"provider" mapstructure:"provider" validate:"omitempty,oneof=openai http hashing"`
	APIKey    string        `yaml:"api_key" mapstructure:"api_key"`
	Model     string        `yaml:"model" mapstructure:"model"`
	Dimension int           `yaml:"dimension" mapstructure:"dimension" validate:"min=8"`
	Endpoint  string        `yaml:"endpoint" mapstructure:"endpoint"`
	BatchSize int           `yaml:"batch_size" mapstructure:"batch_size"`
	Timeout   time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// ImageConfig 插图生成配置
type ImageConfig struct {
	Enabled       bool          `yaml:"enabled" mapstructure:"enabled"`
	APIKey        string        `yaml:"api_key" mapstructure:"api_key"`
	BaseURL       string        `yaml:"base_url" mapstructure:"base_url"`
	Model         string        `yaml:"model" mapstructure:"model"`
	Size          string        `yaml:"size" mapstructure:"size"`
	Quality       string        `yaml:"quality" mapstructure:"quality"`
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	RatePerMinute float64       `yaml:"rate_per_minute" mapstructure:"rate_per_minute"`
	Burst         int           `yaml:"burst" mapstructure:"burst"`
	CoverEnabled  bool          `yaml:"cover_enabled" mapstructure:"cover_enabled"`
}

// GenerationConfig 生成流程配置
type GenerationConfig struct {
	DefaultChapters     int           `yaml:"default_chapters" mapstructure:"default_chapters" validate:"min=1"`
	MaxChapters         int           `yaml:"max_chapters" mapstructure:"max_chapters" validate:"gtefield=DefaultChapters"`
	DefaultFormat       string        `yaml:"default_format" mapstructure:"default_format" validate:"required"`
	RepetitionThreshold float64       `yaml:"repetition_threshold" mapstructure:"repetition_threshold" validate:"gt=0,lte=1"`
	CallTimeout         time.Duration `yaml:"call_timeout" mapstructure:"call_timeout"`
	ExcerptWords        int           `yaml:"excerpt_words" mapstructure:"excerpt_words" validate:"min=1"`
	// Provider/Model 为空时使用 llm.default_provider
	Provider string `yaml:"provider" mapstructure:"provider"`
	Model    string `yaml:"model" mapstructure:"model"`
}

type MessagingConfig struct {
	RedisStream RedisStreamConfig `yaml:"redis_stream" mapstructure:"redis_stream"`
}

// RedisStreamConfig 异步生成任务队列
type RedisStreamConfig struct {
	MaxLen              int           `yaml:"max_len" mapstructure:"max_len"`
	ConsumerGroupPrefix string        `yaml:"consumer_group_prefix" mapstructure:"consumer_group_prefix"`
	BlockTimeout        time.Duration `yaml:"block_timeout" mapstructure:"block_timeout"`
	ClaimInterval       time.Duration `yaml:"claim_interval" mapstructure:"claim_interval"`
	RetryLimit          int           `yaml:"retry_limit" mapstructure:"retry_limit"`
	RetryBackoff        BackoffConfig `yaml:"retry_backoff" mapstructure:"retry_backoff"`
}

type BackoffConfig struct {
	Initial    time.Duration `yaml:"initial" mapstructure:"initial"`
	Max        time.Duration `yaml:"max" mapstructure:"max"`
	Multiplier float64       `yaml:"multiplier" mapstructure:"multiplier"`
}

type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`
	Tracing TracingConfig `yaml:"tracing" mapstructure:"tracing"`
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
}

// LoggingConfig format 取 json 或 text
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level" validate:"oneof=debug info warn warning error"`
	Format string `yaml:"format" mapstructure:"format" validate:"oneof=json text"`
}

// TracingConfig OTLP gRPC 导出
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled" mapstructure:"enabled"`
	Endpoint   string  `yaml:"endpoint" mapstructure:"endpoint"`
	SampleRate float64 `yaml:"sample_rate" mapstructure:"sample_rate" validate:"gte=0,lte=1"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"`
}

type SecurityConfig struct {
	JWT       JWTConfig       `yaml:"jwt" mapstructure:"jwt"`
	RateLimit RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
	CORS      CORSConfig      `yaml:"cors" mapstructure:"cors"`
}

type JWTConfig struct {
	// Required 为 false 时无令牌请求以 anonymous 身份继续
	Required   bool          `yaml:"required" mapstructure:"required"`
	Secret     string        `yaml:"secret" mapstructure:"secret" validate:"required_if=Required true"`
	Issuer     string        `yaml:"issuer" mapstructure:"issuer"`
	Expiration time.Duration `yaml:"expiration" mapstructure:"expiration"`
}

// RateLimitConfig 只作用于生成入口
type RateLimitConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// GenerationsPerHour 每个用户每小时允许发起的生成次数
	GenerationsPerHour int `yaml:"generations_per_hour" mapstructure:"generations_per_hour"`
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods" mapstructure:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers" mapstructure:"allowed_headers"`
}

// ResolveProvider 返回生成流程使用的提供商名称与配置
func (c *Config) ResolveProvider() (string, ProviderConfig) {
	name := c.Generation.Provider
	if name == "" {
		name = c.LLM.DefaultProvider
	}
	p := c.LLM.Providers[name]
	if c.Generation.Model != "" {
		p.Model = c.Generation.Model
	}
	return name, p
}
