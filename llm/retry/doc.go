// Package retry 提供指数退避重试，用于模型 API 与外部协作方调用。
// 默认只重试被标记为可重试的错误（见 IsTransient）。
package retry
