// Copyright (c) prompt2CAD Authors.
// Licensed under the MIT License.

/*
Package types 提供 prompt2CAD 服务的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 heightmap、mesh、pipeline、
api 等上层模块提供统一的错误契约与 context 传播工具。

# 核心类型

  - Error / ErrorCode: 结构化错误体系，含 HTTP 状态码、Retryable、Provider 标记
  - 几何错误码：NO_DEPTH_INFORMATION / INVALID_HEIGHT_FIELD / DEGENERATE_MESH
  - 流水线错误码：COLLABORATOR_FAILURE / LOCK_TIMEOUT / ARTIFACT_NOT_FOUND

# 主要能力

  - 错误工具链：WrapError / AsError / IsErrorCode / IsRetryable / StatusForCode
  - Context 传播：WithTraceID / WithRequestID / WithSessionID / WithStage
*/
package types
