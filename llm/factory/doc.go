// 版权所有 2024 prompt2CAD Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

// Package factory 按名称创建 LLM Provider。
//
// 所有支持的厂商（openai、deepseek、qwen、glm、kimi、mistral、grok、
// doubao、openrouter）都暴露 OpenAI 兼容的 Chat Completions 接口，
// 工厂只为每个厂商记录默认 BaseURL、端点路径与兜底模型，
// 再交给 openaicompat 统一实现，并附带可配置次数的退避重试。
package factory
