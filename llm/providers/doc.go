/*
# 概述

包 providers 提供 OpenAI 兼容协议的公共适配层：请求/响应结构体、
消息与工具格式转换、HTTP 错误语义映射。

# 核心函数

  - MapHTTPError: 将 HTTP 状态码映射为语义化的 llm.Error（含 Retryable 标记）
  - NetworkError: 传输层错误映射
  - ConvertMessagesToOpenAI / ConvertToolsToOpenAI / ConvertToolChoice: 格式转换
  - ToLLMChatResponse: OpenAI 兼容响应到 llm.ChatResponse 的转换
  - ChooseModel: 按优先级选择模型（请求 > 默认 > 兜底）
*/
package providers
