// Package api 定义 prompt2CAD HTTP API 的路由路径、表单字段与 JSON 请求体。
//
// # API 概览
//
//   - POST /api/v1/silhouette：上传照片，分析比例并生成第一版剪影
//   - POST /api/v1/silhouette/edit：按自然语言指令与标注图编辑剪影
//   - POST /api/v1/extrude：将最新剪影挤出为 STL 并渲染预览
//   - POST /api/v1/cad/chat：OpenSCAD 对话式建模
//   - GET /api/v1/cad/history/{id}：CAD 对话历史
//   - GET /api/v1/sessions/{id}：会话的比例分析与产物清单
//   - GET /api/v1/sessions/{id}/events：阶段进度 WebSocket 推送
//
// # 认证
//
// 配置了 server.api_keys 时，请求需携带 X-API-Key 头；
// 配置了 server.jwt.secret 时，也接受 Authorization: Bearer <token>。
package api
