// Package orchestrator 驱动一次电子书生成：大纲 -> 逐章（上下文、正文、摘要、重复检测、状态、持久化）-> 完成。
//
// 章节严格串行；除插图外任何组件失败都会立即终止本次生成并推送一个 error 事件，
// 已持久化的章节保持有效。
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"z-ebook-api/internal/application/story/chapter"
	"z-ebook-api/internal/application/story/memory"
	"z-ebook-api/internal/application/story/outline"
	"z-ebook-api/internal/application/story/repetition"
	"z-ebook-api/internal/application/story/summary"
	"z-ebook-api/internal/domain/entity"
	"z-ebook-api/internal/domain/repository"
	wfmodel "z-ebook-api/internal/workflow/model"
	apperrors "z-ebook-api/pkg/errors"
	"z-ebook-api/pkg/logger"
	"z-ebook-api/pkg/metrics"
)

var tracer = otel.Tracer("story.orchestrator")

// ErrStopped 调用方关闭了事件流
var ErrStopped = errors.New("event stream closed by caller")

// OutlinePlanner 大纲规划
type OutlinePlanner interface {
	Plan(ctx context.Context, in outline.PlanInput) (*entity.StoryOutline, *wfmodel.LLMUsageMeta, error)
}

// ChapterWriter 单章生成
type ChapterWriter interface {
	Generate(ctx context.Context, in chapter.Input) (*chapter.Output, *wfmodel.LLMUsageMeta, error)
}

// ChapterSummarizer 章节摘要
type ChapterSummarizer interface {
	Summarize(ctx context.Context, in summary.Input) (*memory.ChapterOutcome, *wfmodel.LLMUsageMeta, error)
}

// RepetitionChecker 重复检测
type RepetitionChecker interface {
	Check(ctx context.Context, generationID, chapterText string, chapterNumber int, threshold float64) (*repetition.Result, error)
	Record(ctx context.Context, emb *entity.ChapterEmbedding) error
}

// Illustrator 插图旁路，失败返回 nil
type Illustrator interface {
	Enabled() bool
	ForChapter(ctx context.Context, chapterNumber int, title, content string) *entity.GeneratedImage
	ForCover(ctx context.Context, title, description string) *entity.GeneratedImage
}

// Config 运行参数
type Config struct {
	RepetitionThreshold float64
	// CallTimeout 单次外部调用超时，超时即失败
	CallTimeout     time.Duration
	ExcerptWords    int
	DefaultChapters int
	MaxChapters     int
	DefaultFormat   string
	CoverEnabled    bool

	Provider string
	Model    string

	Clock func() time.Time
}

// Deps 协作方
type Deps struct {
	Planner     OutlinePlanner
	Writer      ChapterWriter
	Summarizer  ChapterSummarizer
	Detector    RepetitionChecker
	Illustrator Illustrator

	Generations repository.GenerationRepository
	Outlines    repository.OutlineRepository
	States      repository.StoryStateRepository
	Summaries   repository.ChapterSummaryRepository
	// Snapshots 可选，为空时不写快照
	Snapshots *memory.SnapshotStore
}

// Request 单次生成请求
type Request struct {
	GenerationID string `json:"generationId"`
	UserID       string `json:"userId"`
	SourceText   string `json:"sourceText"`
	ChapterCount int    `json:"chapterCount"`
	Format       string `json:"format"`
	Theme        string `json:"theme"`
	WithImages   bool   `json:"withImages"`
}

type Orchestrator struct {
	cfg  Config
	deps Deps
}

func New(cfg Config, deps Deps) *Orchestrator {
	if cfg.RepetitionThreshold <= 0 || cfg.RepetitionThreshold > 1 {
		cfg.RepetitionThreshold = repetition.DefaultThreshold
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 60 * time.Second
	}
	if cfg.ExcerptWords <= 0 {
		cfg.ExcerptWords = memory.DefaultExcerptWords
	}
	if cfg.DefaultChapters <= 0 {
		cfg.DefaultChapters = 3
	}
	if cfg.DefaultFormat == "" {
		cfg.DefaultFormat = outline.DefaultFormat
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Orchestrator{cfg: cfg, deps: deps}
}

// Normalize 填充默认值并校验请求
func (o *Orchestrator) Normalize(req Request) (Request, error) {
	req.SourceText = strings.TrimSpace(req.SourceText)
	req.Format = strings.TrimSpace(req.Format)
	req.Theme = strings.TrimSpace(req.Theme)
	if req.ChapterCount == 0 {
		req.ChapterCount = o.cfg.DefaultChapters
	}
	if req.Format == "" {
		req.Format = o.cfg.DefaultFormat
	}
	if strings.TrimSpace(req.GenerationID) == "" {
		return req, apperrors.ErrInvalidParam.WithDetail("generation id is required")
	}
	if req.SourceText == "" {
		return req, apperrors.ErrInvalidParam.WithDetail("source text is required")
	}
	if req.ChapterCount < 1 {
		return req, apperrors.ErrInvalidParam.WithDetail("chapter count must be >= 1")
	}
	if o.cfg.MaxChapters > 0 && req.ChapterCount > o.cfg.MaxChapters {
		return req, apperrors.ErrInvalidParam.WithDetail(fmt.Sprintf("chapter count must be <= %d", o.cfg.MaxChapters))
	}
	return req, nil
}

// Run 执行一次完整生成，事件按顺序推送给 emit。
// 返回 nil 表示已推送 complete 事件；返回错误时若调用方仍在则已推送 error 事件。
func (o *Orchestrator) Run(ctx context.Context, req Request, emit Emitter) error {
	req, err := o.Normalize(req)
	r := &run{
		o:     o,
		req:   req,
		emit:  emit,
		phase: PhaseIdle,
		start: o.cfg.Clock(),
	}
	if err != nil {
		r.fail(ctx, err)
		return err
	}

	ctx = logger.WithContext(ctx, logger.GenerationIDKey, req.GenerationID)
	if req.UserID != "" {
		ctx = logger.WithContext(ctx, logger.UserIDKey, req.UserID)
	}
	ctx, span := tracer.Start(ctx, "orchestrator.Run")
	span.SetAttributes(
		attribute.String("generation.id", req.GenerationID),
		attribute.Int("generation.chapters", req.ChapterCount),
		attribute.String("generation.format", req.Format),
	)
	defer span.End()

	metrics.ActiveGenerations.Inc()
	defer metrics.ActiveGenerations.Dec()

	logger.Info(ctx, "generation started", "chapters", req.ChapterCount, "format", req.Format, "with_images", req.WithImages)

	if err := r.execute(ctx); err != nil {
		span.RecordError(err)
		r.fail(ctx, err)
		return err
	}

	metrics.GenerationRunsTotal.WithLabelValues(req.Format, "completed").Inc()
	metrics.GenerationRunDuration.WithLabelValues(req.Format).Observe(o.cfg.Clock().Sub(r.start).Seconds())
	logger.Info(ctx, "generation completed", "chapters", req.ChapterCount, "words", r.totalWords)
	return nil
}

// run 单次生成的可变状态，只在一个 goroutine 内使用
type run struct {
	o    *Orchestrator
	req  Request
	emit Emitter

	phase      Phase
	stopped    bool
	terminated bool
	start      time.Time

	outline    *entity.StoryOutline
	state      *entity.StoryState
	summaries  []*entity.ChapterSummary
	totalWords int
}

func (r *run) send(ev Event) {
	if r.stopped || r.terminated || r.emit == nil {
		return
	}
	ev.GenerationID = r.req.GenerationID
	if ev.Type.IsTerminal() {
		r.terminated = true
	}
	if !r.emit(ev) {
		r.stopped = true
	}
}

func (r *run) progress(pct int, msg string, chapterNumber int) {
	r.send(Event{
		Type:                   EventProgress,
		Progress:               pct,
		Message:                msg,
		CurrentChapter:         chapterNumber,
		TotalChapters:          r.req.ChapterCount,
		EstimatedTimeRemaining: r.estimateRemaining(),
	})
}

// checkpoint 在每次外部调用前检查调用方是否已离开
func (r *run) checkpoint(ctx context.Context) error {
	if r.stopped {
		return ErrStopped
	}
	return ctx.Err()
}

func (r *run) enter(ctx context.Context, p Phase) {
	r.phase = p
	logger.Debug(ctx, "generation phase", "phase", string(p))
}

// call 为单次外部调用派生超时上下文
func (r *run) call(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.o.cfg.CallTimeout)
}

// deadline 调用超时而错误链上丢失了 DeadlineExceeded 时补回
func deadline(callCtx context.Context, err error) error {
	if err == nil || errors.Is(err, context.DeadlineExceeded) || !errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %w", err, context.DeadlineExceeded)
}

func (r *run) observeStage(stage string, started time.Time) {
	metrics.StageDuration.WithLabelValues(stage).Observe(r.o.cfg.Clock().Sub(started).Seconds())
}

func (r *run) execute(ctx context.Context) error {
	deps := r.o.deps
	id := r.req.GenerationID
	n := r.req.ChapterCount

	r.progress(5, "Initializing story memory system...", 0)
	if err := r.checkpoint(ctx); err != nil {
		return err
	}
	if err := r.createPlaceholder(ctx); err != nil {
		return err
	}

	r.enter(ctx, PhasePlanningOutline)
	r.progress(10, "Creating comprehensive story outline...", 0)
	if err := r.checkpoint(ctx); err != nil {
		return err
	}
	if err := r.planOutline(ctx); err != nil {
		return err
	}
	r.send(Event{
		Type:          EventOutline,
		Progress:      20,
		Message:       fmt.Sprintf("Story outline created: %s", r.outline.BookTitle),
		TotalChapters: n,
		Outline:       r.outline,
	})
	r.generateCover(ctx)

	r.enter(ctx, PhaseInitializingState)
	r.state = memory.InitializeState(r.outline)
	if err := deps.States.Upsert(ctx, r.state); err != nil {
		return apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to save story state")
	}
	r.saveSnapshot(ctx)
	r.progress(25, "Story memory initialized", 0)

	for i := 1; i <= n; i++ {
		if err := r.checkpoint(ctx); err != nil {
			return err
		}
		if err := r.chapter(logger.WithContext(ctx, logger.ChapterKey, i), i); err != nil {
			return err
		}
	}
	if err := r.checkpoint(ctx); err != nil {
		return err
	}

	r.progress(90, "Saving your ebook...", 0)
	if err := deps.Generations.MarkCompleted(ctx, id, n, r.totalWords); err != nil {
		return apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to mark generation completed")
	}
	r.phase = PhaseCompleted
	r.send(Event{
		Type:          EventComplete,
		Progress:      100,
		TotalChapters: n,
		Message:       fmt.Sprintf("Your ebook \"%s\" is ready: %d chapters, %d words", r.outline.BookTitle, n, r.totalWords),
	})
	return nil
}

// createPlaceholder 创建占位记录；并发请求已创建同一记录时视为成功
func (r *run) createPlaceholder(ctx context.Context) error {
	rec := entity.NewEbookGeneration(r.req.GenerationID, r.req.UserID, r.req.Format, r.req.Theme, r.req.ChapterCount)
	err := r.o.deps.Generations.CreatePlaceholder(ctx, rec)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, apperrors.ErrPersistenceConflict):
		logger.Info(ctx, "generation record already exists, continuing")
		return nil
	default:
		return apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to create generation record")
	}
}

func (r *run) planOutline(ctx context.Context) error {
	deps := r.o.deps
	started := r.o.cfg.Clock()
	callCtx, cancel := r.call(ctx)
	ol, meta, err := deps.Planner.Plan(callCtx, outline.PlanInput{
		SourceText:   r.req.SourceText,
		ChapterCount: r.req.ChapterCount,
		Format:       r.req.Format,
		ThemeHint:    r.req.Theme,
		Provider:     r.o.cfg.Provider,
		Model:        r.o.cfg.Model,
	})
	err = deadline(callCtx, err)
	cancel()
	r.observeStage("outline", started)
	if err != nil {
		return err
	}
	logUsage(ctx, "outline", meta)

	ol.GenerationID = r.req.GenerationID
	ol.UserID = r.req.UserID
	if ol.CreatedAt.IsZero() {
		ol.CreatedAt = r.o.cfg.Clock()
	}
	r.outline = ol

	// 重试沿用同一 ID，旧运行的摘要属于被替换的大纲
	if err := deps.Summaries.DeleteByGeneration(ctx, r.req.GenerationID); err != nil {
		return apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to clear previous summaries")
	}
	if err := deps.Outlines.Save(ctx, ol); err != nil {
		return apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to save outline")
	}
	if err := deps.Generations.UpdateOutlineMetadata(ctx, r.req.GenerationID, ol.BookTitle, ol.BookDescription, ol.TotalChapters); err != nil {
		return apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to update generation metadata")
	}
	return nil
}

func (r *run) generateCover(ctx context.Context) {
	ill := r.o.deps.Illustrator
	if !r.req.WithImages || !r.o.cfg.CoverEnabled || ill == nil || !ill.Enabled() {
		return
	}
	img := ill.ForCover(ctx, r.outline.BookTitle, r.outline.BookDescription)
	if img == nil {
		return
	}
	if err := r.o.deps.Generations.SetCoverImage(ctx, r.req.GenerationID, *img); err != nil {
		logger.Warn(ctx, "failed to save cover image", "error", err.Error())
		return
	}
	r.send(Event{Type: EventProgress, Progress: 20, Message: "Cover image created", TotalChapters: r.req.ChapterCount, Image: img})
}

func (r *run) chapter(ctx context.Context, i int) error {
	deps := r.o.deps
	n := r.req.ChapterCount
	base := chapterProgress(i, n)
	started := r.o.cfg.Clock()

	title := r.outline.ChapterTitle(i)
	if strings.TrimSpace(title) == "" {
		title = fmt.Sprintf("Chapter %d", i)
	}

	r.enter(ctx, PhaseGeneratingChapter)
	r.progress(base, fmt.Sprintf("Writing chapter %d of %d: %s", i, n, title), i)
	if err := r.checkpoint(ctx); err != nil {
		return err
	}
	storyContext := memory.BuildContext(r.outline, r.summaries, r.state, i)
	callCtx, cancel := r.call(ctx)
	out, meta, err := deps.Writer.Generate(callCtx, chapter.Input{
		ChapterNumber: i,
		ChapterTitle:  title,
		Context:       storyContext,
		SourceText:    r.req.SourceText,
		Format:        r.req.Format,
		Provider:      r.o.cfg.Provider,
		Model:         r.o.cfg.Model,
	})
	err = deadline(callCtx, err)
	cancel()
	r.observeStage("chapter", started)
	if err != nil {
		return err
	}
	logUsage(ctx, "chapter", meta)

	var image *entity.GeneratedImage
	if r.req.WithImages && deps.Illustrator != nil && deps.Illustrator.Enabled() {
		image = deps.Illustrator.ForChapter(ctx, i, out.Title, out.Content)
	}

	r.enter(ctx, PhaseSummarizing)
	r.progress(base+5, fmt.Sprintf("Processing chapter %d memory...", i), i)
	if err := r.checkpoint(ctx); err != nil {
		return err
	}
	sumStarted := r.o.cfg.Clock()
	priorTexts := make([]string, 0, len(r.summaries))
	for _, s := range r.summaries {
		priorTexts = append(priorTexts, s.Summary)
	}
	callCtx, cancel = r.call(ctx)
	outcome, meta, err := deps.Summarizer.Summarize(callCtx, summary.Input{
		Title:          out.Title,
		Content:        out.Content,
		ChapterNumber:  i,
		PriorSummaries: priorTexts,
		Provider:       r.o.cfg.Provider,
		Model:          r.o.cfg.Model,
	})
	err = deadline(callCtx, err)
	cancel()
	r.observeStage("summary", sumStarted)
	if err != nil {
		return err
	}
	logUsage(ctx, "summary", meta)

	chapterSummary := &entity.ChapterSummary{
		GenerationID:          r.req.GenerationID,
		OutlineID:             r.state.OutlineID,
		UserID:                r.req.UserID,
		ChapterNumber:         i,
		ChapterTitle:          out.Title,
		Summary:               outcome.Summary,
		KeyEvents:             outcome.KeyEvents,
		CharacterDevelopments: outcome.CharacterDevelopments,
		LastChapterExcerpt:    memory.ExtractLastWords(out.Content, r.o.cfg.ExcerptWords),
		WordCount:             out.WordCount,
		CharCount:             len([]rune(out.Content)),
		CreatedAt:             r.o.cfg.Clock(),
	}

	r.enter(ctx, PhaseCheckingRepetition)
	rep := r.checkRepetition(ctx, i, out)

	r.state = memory.ApplyChapterOutcome(r.state, i, outcome)

	r.enter(ctx, PhasePersistingChapter)
	if err := deps.Summaries.Save(ctx, chapterSummary); err != nil {
		return apperrors.Wrapf(err, apperrors.CodeDatabaseError, "failed to save chapter %d summary", i)
	}
	if err := deps.States.Upsert(ctx, r.state); err != nil {
		return apperrors.Wrapf(err, apperrors.CodeDatabaseError, "failed to save story state after chapter %d", i)
	}
	if err := deps.Generations.AppendChapter(ctx, r.req.GenerationID, entity.GeneratedChapter{
		Number:    i,
		Title:     out.Title,
		Content:   out.Content,
		WordCount: out.WordCount,
	}, image); err != nil {
		return apperrors.Wrapf(err, apperrors.CodeDatabaseError, "failed to save chapter %d", i)
	}
	r.summaries = append(r.summaries, chapterSummary)
	r.totalWords += out.WordCount
	r.saveSnapshot(ctx)

	metrics.ChaptersGeneratedTotal.WithLabelValues(r.req.Format).Inc()
	metrics.ChapterWordCount.Observe(float64(out.WordCount))
	r.observeStage("chapter_total", started)

	r.send(Event{
		Type:                   EventChapter,
		Progress:               base + 10,
		CurrentChapter:         i,
		TotalChapters:          n,
		ChapterTitle:           out.Title,
		ChapterContent:         out.Content,
		Image:                  image,
		Message:                fmt.Sprintf("Chapter %d completed", i),
		EstimatedTimeRemaining: r.estimateRemaining(),
	})
	if rep.IsRepetitive {
		r.send(Event{
			Type:           EventMemoryCheck,
			Progress:       base + 10,
			CurrentChapter: i,
			TotalChapters:  n,
			Message:        fmt.Sprintf("Chapter %d may repeat content from chapter(s) %s", i, joinInts(rep.SimilarChapters)),
			MemoryWarning:  newMemoryWarning(rep),
		})
	}
	logger.Info(ctx, "chapter completed", "title", out.Title, "words", out.WordCount,
		"max_similarity", rep.MaxSimilarity, "phase", string(r.phase))
	return nil
}

// checkRepetition 检测失败只记录日志，结果按不重复处理
func (r *run) checkRepetition(ctx context.Context, i int, out *chapter.Output) *repetition.Result {
	det := r.o.deps.Detector
	if det == nil {
		return &repetition.Result{SimilarChapters: []int{}}
	}
	started := r.o.cfg.Clock()
	callCtx, cancel := r.call(ctx)
	res, err := det.Check(callCtx, r.req.GenerationID, out.Content, i, r.o.cfg.RepetitionThreshold)
	cancel()
	r.observeStage("repetition", started)
	if err != nil {
		logger.Warn(ctx, "repetition check failed, treating chapter as unique", "error", err.Error())
		return &repetition.Result{SimilarChapters: []int{}}
	}

	if len(res.Vector) > 0 {
		emb := &entity.ChapterEmbedding{
			GenerationID:          r.req.GenerationID,
			ChapterNumber:         i,
			ChapterTitle:          out.Title,
			Vector:                res.Vector,
			TextContent:           out.Content,
			ContentType:           entity.ContentTypeChapter,
			MaxSimilarityScore:    res.MaxSimilarity,
			SimilarChapterNumbers: res.SimilarChapters,
			CreatedAt:             r.o.cfg.Clock(),
		}
		if err := det.Record(ctx, emb); err != nil {
			logger.Warn(ctx, "failed to record chapter embedding", "error", err.Error())
		}
	}
	return res
}

func (r *run) saveSnapshot(ctx context.Context) {
	snaps := r.o.deps.Snapshots
	if snaps == nil {
		return
	}
	snap := &memory.Snapshot{Outline: r.outline, State: r.state, Summaries: r.summaries}
	if err := snaps.Save(ctx, r.req.GenerationID, snap); err != nil {
		logger.Warn(ctx, "failed to cache memory snapshot", "error", err.Error())
	}
}

// fail 进入终态 Failed：标记记录并推送唯一的 error 事件
func (r *run) fail(ctx context.Context, err error) {
	r.phase = PhaseFailed
	status := "failed"
	if errors.Is(err, ErrStopped) {
		status = "cancelled"
	}
	metrics.GenerationRunsTotal.WithLabelValues(r.req.Format, status).Inc()

	msg := errorMessage(err)
	logger.Error(ctx, "generation failed", err, "status", status)

	if gens := r.o.deps.Generations; gens != nil && !errors.Is(err, apperrors.ErrInvalidParam) {
		// 调用方断开后仍需落库终态
		if mErr := gens.MarkFailed(context.WithoutCancel(ctx), r.req.GenerationID, msg); mErr != nil {
			logger.Warn(ctx, "failed to mark generation failed", "error", mErr.Error())
		}
	}

	r.send(Event{
		Type:           EventError,
		Message:        msg,
		Code:           string(apperrors.CodeOf(err)),
		TotalChapters:  r.req.ChapterCount,
		CurrentChapter: len(r.summaries),
		Progress:       0,
	})
}

// estimateRemaining 按已完成章节的平均耗时估算剩余秒数
func (r *run) estimateRemaining() int {
	done := len(r.summaries)
	if done == 0 {
		return 0
	}
	perChapter := r.o.cfg.Clock().Sub(r.start) / time.Duration(done)
	remaining := r.req.ChapterCount - done
	if remaining <= 0 {
		return 0
	}
	return int((perChapter * time.Duration(remaining)).Seconds())
}

func errorMessage(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "Generation timed out while waiting for the AI service. Please try again."
	}
	if errors.Is(err, ErrStopped) {
		return "Generation stopped: client disconnected"
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		if appErr.Detail != "" {
			return appErr.Message + ": " + appErr.Detail
		}
		return appErr.Message
	}
	return err.Error()
}

func logUsage(ctx context.Context, stage string, meta *wfmodel.LLMUsageMeta) {
	if meta == nil {
		return
	}
	logger.Debug(ctx, "llm usage",
		"stage", stage,
		"provider", meta.Provider,
		"model", meta.Model,
		"prompt_tokens", meta.PromptTokens,
		"completion_tokens", meta.CompletionTokens,
	)
}

func joinInts(nums []int) string {
	parts := make([]string, 0, len(nums))
	for _, n := range nums {
		parts = append(parts, fmt.Sprintf("%d", n))
	}
	return strings.Join(parts, ", ")
}
