// 版权所有 2024 prompt2CAD Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
Package handlers 提供 prompt2CAD HTTP API 的请求处理器。

# 核心类型

  - PipelineHandler：剪影生成与编辑、3D 挤出、会话查询、CAD 对话与历史
  - EventsHandler：会话阶段事件的 WebSocket 推送
  - HealthHandler：/health、/ready 与 /version，可注册数据库、Redis、存储检查

流水线端点统一写出结果信封 {success, session_id, data, message, error}，
状态码由错误码映射；请求无法解析时返回 400。上传经内容嗅探，仅接受图片，
总大小受 server.max_upload_bytes 约束。
*/
package handlers
