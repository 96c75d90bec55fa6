// 版权所有 2024 prompt2CAD Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
Package main 提供 prompt2CAD 服务端程序入口。

# 概述

cmd/prompt2cad 组装照片到钥匙扣的完整流水线：比例分析、剪影生成与编辑、
高度图挤出、STL 写出与预览渲染，以及可选的 OpenSCAD 对话建模。
程序支持 YAML 配置、结构化日志（zap）、Prometheus 指标、OpenTelemetry
追踪与配置热重载。

# 子命令

  - serve    启动 API 与 Metrics 两个端口
  - migrate  数据库迁移（golang-migrate）
  - version  打印构建信息
  - health   探测运行中服务的 /health

# 中间件链

Recovery → RequestID → SecurityHeaders → Tracing → RequestLogger →
Metrics → CORS → RateLimiter → Authenticate。其中限流参数、API Key
与日志级别可通过配置热重载在线调整。

# 构建注入

Version、BuildTime、GitCommit 通过 -ldflags 设置。
*/
package main
