// Package handler 提供 HTTP 请求处理器
package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/singleflight"

	"z-ebook-api/internal/application/story/memory"
	"z-ebook-api/internal/application/story/orchestrator"
	"z-ebook-api/internal/domain/entity"
	"z-ebook-api/internal/domain/repository"
	"z-ebook-api/internal/infrastructure/messaging"
	"z-ebook-api/internal/interfaces/http/dto"
	apperrors "z-ebook-api/pkg/errors"
	"z-ebook-api/pkg/logger"
)

// AnonymousUser 未携带令牌时的调用方身份
const AnonymousUser = "anonymous"

const wsWriteTimeout = 10 * time.Second

// GenerationRunner 同步执行一次生成
type GenerationRunner interface {
	Normalize(req orchestrator.Request) (orchestrator.Request, error)
	Run(ctx context.Context, req orchestrator.Request, emit orchestrator.Emitter) error
}

// JobPublisher 异步生成任务入队
type JobPublisher interface {
	PublishGeneration(ctx context.Context, job *messaging.GenerationJobMessage) (string, error)
}

// GenerationHandler 电子书生成处理器
type GenerationHandler struct {
	runner      GenerationRunner
	publisher   JobPublisher
	generations repository.GenerationRepository
	outlines    repository.OutlineRepository
	states      repository.StoryStateRepository
	summaries   repository.ChapterSummaryRepository
	snapshots   *memory.SnapshotStore
	upgrader    websocket.Upgrader

	snapshotLoads singleflight.Group
}

// NewGenerationHandler 创建生成处理器；publisher 为空时异步入口返回 503
func NewGenerationHandler(
	runner GenerationRunner,
	publisher JobPublisher,
	generations repository.GenerationRepository,
	outlines repository.OutlineRepository,
	states repository.StoryStateRepository,
	summaries repository.ChapterSummaryRepository,
	snapshots *memory.SnapshotStore,
) *GenerationHandler {
	return &GenerationHandler{
		runner:      runner,
		publisher:   publisher,
		generations: generations,
		outlines:    outlines,
		states:      states,
		summaries:   summaries,
		snapshots:   snapshots,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 16384,
			// 跨域由 CORS 中间件与鉴权控制
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// currentUser 鉴权中间件注入的用户，缺省为 anonymous
func currentUser(c *gin.Context) string {
	if id := c.GetString("user_id"); id != "" {
		return id
	}
	return AnonymousUser
}

// prepare 分配生成 ID 并校验请求
func (h *GenerationHandler) prepare(c *gin.Context, body *dto.CreateGenerationRequest) (orchestrator.Request, error) {
	return h.runner.Normalize(body.ToRequest(uuid.NewString(), currentUser(c)))
}

// StreamSSE 以 SSE 推送生成事件
// @Summary 流式生成电子书
// @Tags Generations
// @Accept json
// @Produce text/event-stream
// @Param body body dto.CreateGenerationRequest true "生成请求"
// @Success 200 "SSE stream"
// @Failure 400 {object} dto.ErrorResponse
// @Router /v1/generations/stream [post]
func (h *GenerationHandler) StreamSSE(c *gin.Context) {
	var body dto.CreateGenerationRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	req, err := h.prepare(c, &body)
	if err != nil {
		dto.FromError(c, err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Header("X-Generation-ID", req.GenerationID)
	c.Status(http.StatusOK)

	ctx := c.Request.Context()
	emit := func(ev orchestrator.Event) bool {
		if ctx.Err() != nil {
			return false
		}
		c.SSEvent("", ev)
		c.Writer.Flush()
		return ctx.Err() == nil
	}

	if err := h.runner.Run(ctx, req, emit); err != nil && !errors.Is(err, orchestrator.ErrStopped) {
		logger.Warn(ctx, "sse generation ended with error", "generation_id", req.GenerationID, "error", err.Error())
	}
}

// StreamWS 以 WebSocket 推送生成事件，首条客户端消息为请求 JSON
// @Summary WebSocket 生成电子书
// @Tags Generations
// @Router /v1/generations/ws [get]
func (h *GenerationHandler) StreamWS(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade 已写出错误响应
		logger.Warn(c.Request.Context(), "websocket upgrade failed", "error", err.Error())
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	var body dto.CreateGenerationRequest
	if err := conn.ReadJSON(&body); err != nil {
		h.wsReject(conn, apperrors.ErrInvalidParam.WithDetail("invalid request message"))
		return
	}
	if err := binding.Validator.ValidateStruct(&body); err != nil {
		h.wsReject(conn, apperrors.ErrInvalidParam.WithDetail(err.Error()))
		return
	}
	req, err := h.prepare(c, &body)
	if err != nil {
		h.wsReject(conn, err)
		return
	}

	// 客户端关闭或断开时停止生成
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	emit := func(ev orchestrator.Event) bool {
		if ctx.Err() != nil {
			return false
		}
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteJSON(ev); err != nil {
			cancel()
			return false
		}
		return true
	}

	if err := h.runner.Run(ctx, req, emit); err != nil && !errors.Is(err, orchestrator.ErrStopped) {
		logger.Warn(ctx, "websocket generation ended with error", "generation_id", req.GenerationID, "error", err.Error())
	}

	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
}

// wsReject 以单个 error 事件拒绝请求
func (h *GenerationHandler) wsReject(conn *websocket.Conn, err error) {
	appErr := apperrors.AsAppError(err)
	msg := appErr.Message
	if appErr.Detail != "" {
		msg += ": " + appErr.Detail
	}
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	_ = conn.WriteJSON(orchestrator.Event{
		Type:    orchestrator.EventError,
		Message: msg,
		Code:    string(appErr.Code),
	})
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, msg),
		time.Now().Add(time.Second))
}

// Enqueue 创建 draft 记录并投递异步任务
// @Summary 异步生成电子书
// @Tags Generations
// @Accept json
// @Produce json
// @Param body body dto.CreateGenerationRequest true "生成请求"
// @Success 202 {object} dto.Response[dto.GenerationAcceptedResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 503 {object} dto.ErrorResponse
// @Router /v1/generations [post]
func (h *GenerationHandler) Enqueue(c *gin.Context) {
	if h.publisher == nil {
		dto.ServiceUnavailable(c, "async generation is not enabled")
		return
	}

	var body dto.CreateGenerationRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	req, err := h.prepare(c, &body)
	if err != nil {
		dto.FromError(c, err)
		return
	}

	ctx := logger.WithContext(c.Request.Context(), logger.GenerationIDKey, req.GenerationID)
	rec := entity.NewEbookGeneration(req.GenerationID, req.UserID, req.Format, req.Theme, req.ChapterCount)
	rec.Status = entity.GenerationStatusDraft
	if err := h.generations.CreatePlaceholder(ctx, rec); err != nil {
		logger.Error(ctx, "failed to create draft generation", err)
		dto.FromError(c, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to create generation record"))
		return
	}

	msgID, err := h.publisher.PublishGeneration(ctx, &messaging.GenerationJobMessage{
		GenerationID: req.GenerationID,
		UserID:       req.UserID,
		SourceText:   req.SourceText,
		ChapterCount: req.ChapterCount,
		Format:       req.Format,
		Theme:        req.Theme,
		WithImages:   req.WithImages,
		RequestID:    c.GetString("request_id"),
		TraceID:      c.GetString("trace_id"),
	})
	if err != nil {
		logger.Error(ctx, "failed to enqueue generation", err)
		if mErr := h.generations.MarkFailed(context.WithoutCancel(ctx), req.GenerationID, "failed to enqueue generation"); mErr != nil {
			logger.Warn(ctx, "failed to mark generation failed", "error", mErr.Error())
		}
		dto.FromError(c, apperrors.Wrap(err, apperrors.CodeQueueError, "failed to enqueue generation"))
		return
	}

	logger.Info(ctx, "generation enqueued", "message_id", msgID, "chapters", req.ChapterCount)
	dto.Accepted(c, &dto.GenerationAcceptedResponse{
		GenerationID: req.GenerationID,
		Status:       string(entity.GenerationStatusDraft),
		MessageID:    msgID,
	})
}

// load 读取记录并校验归属；他人的记录按不存在处理
func (h *GenerationHandler) load(c *gin.Context) (*entity.EbookGeneration, bool) {
	id := dto.BindGenerationID(c)
	if _, err := uuid.Parse(id); err != nil {
		dto.BadRequest(c, "invalid generation id")
		return nil, false
	}
	g, err := h.generations.GetByID(c.Request.Context(), id)
	if err != nil {
		logger.Error(c.Request.Context(), "failed to get generation", err, "generation_id", id)
		dto.FromError(c, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to get generation"))
		return nil, false
	}
	if g == nil || (g.UserID != currentUser(c) && g.UserID != AnonymousUser) {
		dto.FromError(c, apperrors.ErrGenerationNotFound)
		return nil, false
	}
	return g, true
}

// Get 获取生成记录
// @Summary 获取生成记录
// @Tags Generations
// @Produce json
// @Param id path string true "生成 ID"
// @Success 200 {object} dto.Response[dto.GenerationResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/generations/{id} [get]
func (h *GenerationHandler) Get(c *gin.Context) {
	g, ok := h.load(c)
	if !ok {
		return
	}
	dto.Success(c, dto.ToGenerationResponse(g, true))
}

// List 列出当前用户的生成记录
// @Summary 列出生成记录
// @Tags Generations
// @Produce json
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Success 200 {object} dto.Response[dto.GenerationListResponse]
// @Router /v1/generations [get]
func (h *GenerationHandler) List(c *gin.Context) {
	page := dto.BindPage(c)
	result, err := h.generations.ListByUser(c.Request.Context(), currentUser(c), page.Pagination())
	if err != nil {
		logger.Error(c.Request.Context(), "failed to list generations", err)
		dto.FromError(c, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to list generations"))
		return
	}

	items := make([]*dto.GenerationResponse, 0, len(result.Items))
	for _, g := range result.Items {
		items = append(items, dto.ToGenerationResponse(g, false))
	}
	dto.SuccessWithPage(c, &dto.GenerationListResponse{Generations: items},
		dto.NewPageMeta(result.Page, result.PageSize, result.Total))
}

// Memory 获取记忆视图，优先读缓存快照
// @Summary 获取故事记忆
// @Tags Generations
// @Produce json
// @Param id path string true "生成 ID"
// @Success 200 {object} dto.Response[dto.MemoryResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/generations/{id}/memory [get]
func (h *GenerationHandler) Memory(c *gin.Context) {
	g, ok := h.load(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	snap, err := h.snapshots.Load(ctx, g.ID)
	if err != nil {
		logger.Warn(ctx, "failed to load memory snapshot", "generation_id", g.ID, "error", err.Error())
	}
	if snap != nil {
		dto.Success(c, dto.ToMemoryResponse(g.ID, "cache", snap))
		return
	}

	// 同一生成的并发未命中只读一次存储，读取不随首个请求断开而取消
	loadCtx := context.WithoutCancel(ctx)
	v, err, _ := h.snapshotLoads.Do(g.ID, func() (any, error) {
		return h.loadSnapshot(loadCtx, g.ID)
	})
	if err != nil {
		logger.Error(ctx, "failed to load memory", err, "generation_id", g.ID)
		dto.FromError(c, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to load memory"))
		return
	}
	snap = v.(*memory.Snapshot)
	// 运行中的记录由编排器逐章刷新快照
	if !g.Status.IsTerminal() {
		dto.Success(c, dto.ToMemoryResponse(g.ID, "store", snap))
		return
	}
	if err := h.snapshots.Save(ctx, g.ID, snap); err != nil {
		logger.Warn(ctx, "failed to cache memory snapshot", "generation_id", g.ID, "error", err.Error())
	}
	dto.Success(c, dto.ToMemoryResponse(g.ID, "store", snap))
}

func (h *GenerationHandler) loadSnapshot(ctx context.Context, generationID string) (*memory.Snapshot, error) {
	ol, err := h.outlines.GetByGeneration(ctx, generationID)
	if err != nil {
		return nil, err
	}
	state, err := h.states.GetByGeneration(ctx, generationID)
	if err != nil {
		return nil, err
	}
	sums, err := h.summaries.ListByGeneration(ctx, generationID)
	if err != nil {
		return nil, err
	}
	return &memory.Snapshot{Outline: ol, State: state, Summaries: sums}, nil
}
