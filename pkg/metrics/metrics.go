// Package metrics Prometheus 指标，统一挂在 z_ebook 命名空间下
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "z_ebook"

func counterVec(subsystem, name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: subsystem, Name: name, Help: help,
	}, labels)
}

func histogramVec(subsystem, name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	return promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: subsystem, Name: name, Help: help, Buckets: buckets,
	}, labels)
}

// HTTP
var (
	HTTPRequestsTotal = counterVec("http", "requests_total",
		"HTTP requests by route and status", "method", "path", "status")
	HTTPRequestDuration = histogramVec("http", "request_duration_seconds",
		"HTTP request latency; streaming routes cover the whole generation",
		[]float64{.01, .05, .25, 1, 5, 30, 120, 600}, "method", "path")
)

// 生成流水线
var (
	GenerationRunsTotal = counterVec("generation", "runs_total",
		"Generation runs by format and terminal status", "format", "status")
	GenerationRunDuration = histogramVec("generation", "run_duration_seconds",
		"Wall time of a full generation run",
		[]float64{10, 30, 60, 120, 300, 600, 1200}, "format")
	ActiveGenerations = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: "generation", Name: "active",
		Help: "Generations currently running in this process",
	})
	ChaptersGeneratedTotal = counterVec("generation", "chapters_total",
		"Chapters written", "format")
	ChapterWordCount = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: "generation", Name: "chapter_word_count",
		Help:    "Words per generated chapter",
		Buckets: []float64{100, 400, 800, 1200, 1600, 2400, 4000},
	})
	StageDuration = histogramVec("generation", "stage_duration_seconds",
		"Latency of one pipeline stage (outline, chapter, summary, state, embedding, image)",
		[]float64{.05, .25, 1, 5, 10, 30, 60, 120}, "stage")
)

// 记忆与重复检测
var (
	RepetitionWarningsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "memory", Name: "repetition_warnings_total",
		Help: "Chapters flagged as too similar to an earlier chapter",
	})
	RepetitionSimilarity = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: "memory", Name: "max_similarity",
		Help:    "Highest cosine similarity against earlier chapters",
		Buckets: []float64{.1, .3, .5, .7, .8, .85, .9, .95, 1},
	})
)

// ImageGenerationTotal 封面与插图请求，kind=cover|chapter
var ImageGenerationTotal = counterVec("image", "generation_total",
	"Image generation attempts", "kind", "status")

// LLM 调用，由 eino 全局回调写入
var (
	LLMTokensUsed = counterVec("llm", "tokens_used_total",
		"Tokens consumed; type is prompt or completion", "workflow", "provider", "model", "type")
	LLMCallDuration = histogramVec("llm", "call_duration_seconds",
		"Chat model call latency", []float64{1, 5, 10, 30, 60, 120}, "workflow", "provider", "model")
	LLMCallTotal = counterVec("llm", "call_total",
		"Chat model calls by outcome", "workflow", "provider", "model", "status")
)

// 依赖
var (
	MilvusSearchDuration = histogramVec("milvus", "search_duration_seconds",
		"Chapter embedding query latency", []float64{.01, .05, .1, .25, .5, 1}, "collection")
	MilvusSearchTotal = counterVec("milvus", "search_total",
		"Chapter embedding queries by outcome", "collection", "status")

	RedisStreamLag = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: "redis", Name: "stream_lag",
		Help: "Stream length; reported for the dead letter stream",
	}, []string{"stream", "consumer_group"})
	RedisStreamProcessed = counterVec("redis", "stream_processed_total",
		"Stream messages by outcome", "stream", "status")
)
