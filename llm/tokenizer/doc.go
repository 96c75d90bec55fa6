// Package tokenizer 提供统一的 Token 计数接口，
// 支持 tiktoken 精确计数与字符估算器，用于 OpenSCAD 提示词的 Token 预算管理。
package tokenizer
