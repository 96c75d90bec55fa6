package ctxkeys

import "context"

// contextKey 用于在 context 中存储值的键类型
type contextKey string

const (
	promptVersionKey contextKey = "prompt_version"
	llmModelKey      contextKey = "llm_model"
)

// WithPromptVersion 设置 OpenSCAD 提示词版本
func WithPromptVersion(ctx context.Context, version string) context.Context {
	return context.WithValue(ctx, promptVersionKey, version)
}

// PromptVersion 获取 OpenSCAD 提示词版本
func PromptVersion(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(promptVersionKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// WithLLMModel 设置 LLM 模型（用于覆盖默认模型）
func WithLLMModel(ctx context.Context, model string) context.Context {
	return context.WithValue(ctx, llmModelKey, model)
}

// LLMModel 获取 LLM 模型
func LLMModel(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(llmModelKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
