package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/shalynjjj/prompt2CAD/internal/artifact"
)

// EventStreamer 把会话事件推送到已升级的连接
type EventStreamer interface {
	Serve(w http.ResponseWriter, r *http.Request, sessionID string)
}

// EventsHandler 处理 GET /api/v1/sessions/{id}/events
type EventsHandler struct {
	stream EventStreamer
	logger *zap.Logger
}

// NewEventsHandler 创建事件流处理器
func NewEventsHandler(stream EventStreamer, logger *zap.Logger) *EventsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventsHandler{stream: stream, logger: logger}
}

// HandleEvents 校验会话 ID 后升级为 WebSocket
// @Summary 会话进度事件
// @Tags 会话
// @Param id path string true "会话 ID"
// @Success 101 "WebSocket 升级"
// @Router /api/v1/sessions/{id}/events [get]
func (h *EventsHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	if err := artifact.ValidateSessionID(sessionID); err != nil {
		writeInvalid(w, sessionID, err)
		return
	}
	h.stream.Serve(w, r, sessionID)
}
