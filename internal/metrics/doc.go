// 版权所有 2024 prompt2CAD Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的指标采集能力，覆盖 HTTP、
流水线阶段、会话锁、外部协作方、网格与缓存等维度。

# 概述

本包通过 Collector 统一注册和记录 Prometheus 指标，使用 promauto
自动注册机制。所有指标按 namespace 隔离。

# 主要能力

  - HTTP 指标：请求总数、耗时、请求/响应体大小，状态码归类为 2xx/3xx/4xx/5xx。
  - 流水线指标：按 stage/result 统计执行次数与耗时。
  - 会话锁指标：等待耗时 Histogram 与超时计数。
  - 协作方指标：analysis / silhouette / render / llm / openscad 调用次数与耗时。
  - 网格指标：按策略统计三角形数量分布。
  - 缓存与数据库指标：命中/未命中、连接数与查询耗时。
*/
package metrics
