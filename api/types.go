package api

// 路由路径
const (
	PathSilhouette     = "/api/v1/silhouette"
	PathSilhouetteEdit = "/api/v1/silhouette/edit"
	PathExtrude        = "/api/v1/extrude"
	PathCADChat        = "/api/v1/cad/chat"
	PathCADHistory     = "/api/v1/cad/history/{id}"
	PathSession        = "/api/v1/sessions/{id}"
	PathSessionEvents  = "/api/v1/sessions/{id}/events"
	PathStatic         = "/static/"
)

// 表单字段
const (
	FieldFile      = "file"
	FieldImage     = "image"
	FieldSessionID = "session_id"
	FieldPrompt    = "prompt"
	FieldVersion   = "version"
)

// DefaultMaxUploadBytes 单次上传的默认上限（10 MB）
const DefaultMaxUploadBytes int64 = 10 << 20

// ExtrudeRequest 是 POST /api/v1/extrude 的 JSON 请求体。
// @Description 将最新的剪影挤出为 3D 网格
type ExtrudeRequest struct {
	// 会话 ID
	SessionID string `json:"session_id" example:"7c9e6679-7425-40de-944b-e07fc1f90ae7"`
	// 深度与宽度之比（grid 策略必填，正数）
	DepthDivWidth float64 `json:"depth_div_width" example:"0.3"`
	// 行方向缩放，0 表示 1.0
	AspectRatio float64 `json:"aspect_ratio,omitempty" example:"1.0"`
	// 网格策略：grid（默认）或 sidewall
	Strategy string `json:"strategy,omitempty" example:"grid"`
}

// VersionInfo 是 /version 的响应数据
type VersionInfo struct {
	Version   string `json:"version"`
	BuildTime string `json:"build_time"`
	GitCommit string `json:"git_commit"`
}
