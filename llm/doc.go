// 版权所有 2024 prompt2CAD Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 llm 提供统一的大语言模型接入层，包括 Provider 抽象、聊天请求与响应模型、
以及错误语义。

# 概述

上层协作方（比例分析、OpenSCAD 代码生成）只依赖 [Provider] 接口，
具体的 HTTP 协议由 llm/providers/openaicompat 实现。

# 核心类型

  - [Provider]：Completion / HealthCheck / Name
  - [ChatRequest] / [ChatResponse]：聊天请求与响应，支持工具调用
  - [Message]：消息，可携带 [ImageContent] 图片用于视觉模型
  - [Error]：带错误码、HTTP 状态与可重试标记的上游错误

# 相关子包

- llm/providers：OpenAI 兼容协议的公共转换与错误映射。
- llm/providers/openaicompat：OpenAI 兼容 Chat Completions 实现。
- llm/factory：按厂商名称创建 Provider。
- llm/image：图像编辑（gpt-image-1）实现。
- llm/retry：指数退避重试。
- llm/tokenizer：Token 计数与预算截断。
*/
package llm
