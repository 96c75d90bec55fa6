package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/shalynjjj/prompt2CAD/api"
	"github.com/shalynjjj/prompt2CAD/internal/cad"
	"github.com/shalynjjj/prompt2CAD/internal/pipeline"
)

// PipelineService 是 Orchestrator 对 HTTP 层暴露的操作
type PipelineService interface {
	GenerateSilhouette(ctx context.Context, req pipeline.GenerateRequest) *pipeline.Result
	EditSilhouette(ctx context.Context, req pipeline.EditRequest) *pipeline.Result
	ExtrudeTo3D(ctx context.Context, req pipeline.ExtrudeRequest) *pipeline.Result
	GetSession(ctx context.Context, sessionID string) *pipeline.Result
	ChatCAD(ctx context.Context, req cad.ChatRequest) *pipeline.Result
	History(ctx context.Context, sessionID string) *pipeline.Result
}

// =============================================================================
// 🧩 流水线 Handler
// =============================================================================

// PipelineHandler 处理剪影、挤出、会话与 CAD 对话请求
type PipelineHandler struct {
	svc       PipelineService
	logger    *zap.Logger
	maxUpload int64
}

// NewPipelineHandler 创建流水线处理器；maxUpload <= 0 时使用 10 MB
func NewPipelineHandler(svc PipelineService, maxUpload int64, logger *zap.Logger) *PipelineHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxUpload <= 0 {
		maxUpload = api.DefaultMaxUploadBytes
	}
	return &PipelineHandler{
		svc:       svc,
		logger:    logger.With(zap.String("component", "pipeline_handler")),
		maxUpload: maxUpload,
	}
}

// HandleGenerate 处理 POST /api/v1/silhouette
// @Summary 生成剪影
// @Tags 剪影
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "照片"
// @Param session_id formData string false "会话 ID"
// @Success 200 {object} pipeline.Result
// @Failure 400 {object} pipeline.Result
// @Failure 502 {object} pipeline.Result
// @Router /api/v1/silhouette [post]
func (h *PipelineHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	if err := parseUpload(w, r, h.maxUpload); err != nil {
		writeInvalid(w, "", err)
		return
	}
	sessionID := formString(r, api.FieldSessionID)
	img, err := formImage(r, api.FieldFile, true)
	if err != nil {
		writeInvalid(w, sessionID, err)
		return
	}

	WriteResult(w, h.svc.GenerateSilhouette(r.Context(), pipeline.GenerateRequest{
		Image:     img,
		SessionID: sessionID,
	}))
}

// HandleEdit 处理 POST /api/v1/silhouette/edit
// @Summary 编辑剪影
// @Tags 剪影
// @Accept multipart/form-data
// @Produce json
// @Param session_id formData string true "会话 ID"
// @Param prompt formData string true "编辑指令"
// @Param file formData file true "标注后的剪影"
// @Param version formData string false "目标版本，缺省为最新版本加一"
// @Success 200 {object} pipeline.Result
// @Router /api/v1/silhouette/edit [post]
func (h *PipelineHandler) HandleEdit(w http.ResponseWriter, r *http.Request) {
	if err := parseUpload(w, r, h.maxUpload); err != nil {
		writeInvalid(w, "", err)
		return
	}
	sessionID := formString(r, api.FieldSessionID)
	if err := requireField(sessionID, api.FieldSessionID); err != nil {
		writeInvalid(w, "", err)
		return
	}
	prompt := formString(r, api.FieldPrompt)
	if err := requireField(prompt, api.FieldPrompt); err != nil {
		writeInvalid(w, sessionID, err)
		return
	}
	version, err := formVersion(r, api.FieldVersion)
	if err != nil {
		writeInvalid(w, sessionID, err)
		return
	}
	img, err := formImage(r, api.FieldFile, true)
	if err != nil {
		writeInvalid(w, sessionID, err)
		return
	}

	WriteResult(w, h.svc.EditSilhouette(r.Context(), pipeline.EditRequest{
		SessionID:    sessionID,
		Instructions: prompt,
		MarkedImage:  img,
		Version:      version,
	}))
}

// HandleExtrude 处理 POST /api/v1/extrude
// @Summary 挤出 3D 模型
// @Tags 模型
// @Accept json
// @Produce json
// @Param request body api.ExtrudeRequest true "挤出参数"
// @Success 200 {object} pipeline.Result
// @Failure 404 {object} pipeline.Result "没有剪影"
// @Failure 422 {object} pipeline.Result "剪影没有深度信息"
// @Router /api/v1/extrude [post]
func (h *PipelineHandler) HandleExtrude(w http.ResponseWriter, r *http.Request) {
	var req api.ExtrudeRequest
	if err := DecodeJSONBody(w, r, &req); err != nil {
		writeInvalid(w, "", err)
		return
	}
	if err := requireField(req.SessionID, api.FieldSessionID); err != nil {
		writeInvalid(w, "", err)
		return
	}

	WriteResult(w, h.svc.ExtrudeTo3D(r.Context(), pipeline.ExtrudeRequest{
		SessionID:     req.SessionID,
		DepthDivWidth: req.DepthDivWidth,
		AspectRatio:   req.AspectRatio,
		Strategy:      req.Strategy,
	}))
}

// HandleSession 处理 GET /api/v1/sessions/{id}
// @Summary 查询会话
// @Tags 会话
// @Produce json
// @Param id path string true "会话 ID"
// @Success 200 {object} pipeline.Result
// @Failure 404 {object} pipeline.Result
// @Router /api/v1/sessions/{id} [get]
func (h *PipelineHandler) HandleSession(w http.ResponseWriter, r *http.Request) {
	WriteResult(w, h.svc.GetSession(r.Context(), r.PathValue("id")))
}

// HandleCADChat 处理 POST /api/v1/cad/chat
// @Summary OpenSCAD 对话
// @Tags CAD
// @Accept multipart/form-data
// @Produce json
// @Param prompt formData string true "设计描述或修改要求"
// @Param session_id formData string false "会话 ID"
// @Param image formData file false "参考图片"
// @Success 200 {object} pipeline.Result
// @Router /api/v1/cad/chat [post]
func (h *PipelineHandler) HandleCADChat(w http.ResponseWriter, r *http.Request) {
	if err := parseUpload(w, r, h.maxUpload); err != nil {
		writeInvalid(w, "", err)
		return
	}
	sessionID := formString(r, api.FieldSessionID)
	prompt := formString(r, api.FieldPrompt)
	if err := requireField(prompt, api.FieldPrompt); err != nil {
		writeInvalid(w, sessionID, err)
		return
	}
	img, err := formImage(r, api.FieldImage, false)
	if err != nil {
		writeInvalid(w, sessionID, err)
		return
	}

	WriteResult(w, h.svc.ChatCAD(r.Context(), cad.ChatRequest{
		SessionID: sessionID,
		Prompt:    prompt,
		Image:     img,
	}))
}

// HandleCADHistory 处理 GET /api/v1/cad/history/{id}
// @Summary CAD 对话历史
// @Tags CAD
// @Produce json
// @Param id path string true "会话 ID"
// @Success 200 {object} pipeline.Result
// @Router /api/v1/cad/history/{id} [get]
func (h *PipelineHandler) HandleCADHistory(w http.ResponseWriter, r *http.Request) {
	WriteResult(w, h.svc.History(r.Context(), r.PathValue("id")))
}
