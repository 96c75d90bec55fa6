// =============================================================================
// 🤖 MockProvider - LLM Provider Mock 实现
// =============================================================================
// 用于测试的 LLM Provider Mock，支持固定响应、工具调用、错误注入与调用记录
//
// 使用方法:
//
//	provider := mocks.NewMockProvider().WithResponse("cube([10,10,10]);")
//	resp, err := provider.Completion(ctx, req)
// =============================================================================
package mocks

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/shalynjjj/prompt2CAD/llm"
)

// MockProvider 是 llm.Provider 的可编程实现
type MockProvider struct {
	mu sync.Mutex

	name             string
	response         string
	toolCalls        []llm.ToolCall
	err              error
	failAfter        int
	delay            time.Duration
	promptTokens     int
	completionTokens int
	completionFn     func(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error)

	calls []MockProviderCall
}

// MockProviderCall 记录单次调用
type MockProviderCall struct {
	Request  *llm.ChatRequest
	Response *llm.ChatResponse
	Error    error
}

// NewMockProvider 创建新的 MockProvider
func NewMockProvider() *MockProvider {
	return &MockProvider{
		name:             "mock",
		response:         "Mock response",
		promptTokens:     10,
		completionTokens: 20,
	}
}

// WithName 设置 Provider 名称
func (m *MockProvider) WithName(name string) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.name = name
	return m
}

// WithResponse 设置固定响应内容
func (m *MockProvider) WithResponse(response string) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.response = response
	return m
}

// WithToolCall 追加一个工具调用，args 会被序列化为 JSON
func (m *MockProvider) WithToolCall(name string, args any) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, err := json.Marshal(args)
	if err != nil {
		panic(err)
	}
	m.toolCalls = append(m.toolCalls, llm.ToolCall{
		ID:        fmt.Sprintf("call_%d", len(m.toolCalls)+1),
		Name:      name,
		Arguments: raw,
	})
	return m
}

// WithRawToolCall 追加一个参数原样返回的工具调用
func (m *MockProvider) WithRawToolCall(name string, raw json.RawMessage) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.toolCalls = append(m.toolCalls, llm.ToolCall{
		ID:        fmt.Sprintf("call_%d", len(m.toolCalls)+1),
		Name:      name,
		Arguments: raw,
	})
	return m
}

// WithError 设置返回错误
func (m *MockProvider) WithError(err error) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// WithFailAfter 在成功 n 次后开始返回 WithError 设置的错误
func (m *MockProvider) WithFailAfter(n int) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAfter = n
	return m
}

// WithDelay 设置模拟延迟，延迟期间响应 ctx 取消
func (m *MockProvider) WithDelay(d time.Duration) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
	return m
}

// WithTokenUsage 设置 Token 使用量
func (m *MockProvider) WithTokenUsage(prompt, completion int) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.promptTokens = prompt
	m.completionTokens = completion
	return m
}

// WithCompletionFunc 设置自定义 Completion 实现，优先级最高
func (m *MockProvider) WithCompletionFunc(fn func(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error)) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completionFn = fn
	return m
}

// Name 返回 Provider 名称
func (m *MockProvider) Name() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.name
}

// HealthCheck 在未注入错误时报告健康
func (m *MockProvider) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil && m.failAfter == 0 {
		return &llm.HealthStatus{Healthy: false}, m.err
	}
	return &llm.HealthStatus{Healthy: true, Latency: time.Millisecond}, nil
}

// Completion 返回预设响应并记录调用
func (m *MockProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	m.mu.Lock()
	fn := m.completionFn
	delay := m.delay
	callIndex := len(m.calls)
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			m.record(req, nil, ctx.Err())
			return nil, ctx.Err()
		}
	}

	if fn != nil {
		resp, err := fn(ctx, req)
		m.record(req, resp, err)
		return resp, err
	}

	m.mu.Lock()
	shouldFail := m.err != nil && callIndex >= m.failAfter
	err := m.err
	resp := &llm.ChatResponse{
		ID:       fmt.Sprintf("mock-%d", callIndex+1),
		Provider: m.name,
		Model:    req.Model,
		Choices: []llm.ChatChoice{{
			FinishReason: "stop",
			Message: llm.Message{
				Role:      llm.RoleAssistant,
				Content:   m.response,
				ToolCalls: append([]llm.ToolCall(nil), m.toolCalls...),
			},
		}},
		Usage: llm.ChatUsage{
			PromptTokens:     m.promptTokens,
			CompletionTokens: m.completionTokens,
			TotalTokens:      m.promptTokens + m.completionTokens,
		},
		CreatedAt: time.Now(),
	}
	if len(m.toolCalls) > 0 {
		resp.Choices[0].FinishReason = "tool_calls"
	}
	m.mu.Unlock()

	if shouldFail {
		m.record(req, nil, err)
		return nil, err
	}
	m.record(req, resp, nil)
	return resp, nil
}

func (m *MockProvider) record(req *llm.ChatRequest, resp *llm.ChatResponse, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockProviderCall{Request: req, Response: resp, Error: err})
}

// GetCalls 返回所有调用记录
func (m *MockProvider) GetCalls() []MockProviderCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockProviderCall(nil), m.calls...)
}

// GetCallCount 返回调用次数
func (m *MockProvider) GetCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// GetLastCall 返回最后一次调用，没有调用时返回 nil
func (m *MockProvider) GetLastCall() *MockProviderCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return nil
	}
	c := m.calls[len(m.calls)-1]
	return &c
}

// Reset 清空调用记录
func (m *MockProvider) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// --- 便捷构造函数 ---

// NewSuccessProvider 创建总是返回固定文本的 Provider
func NewSuccessProvider(response string) *MockProvider {
	return NewMockProvider().WithResponse(response)
}

// NewErrorProvider 创建总是返回错误的 Provider
func NewErrorProvider(err error) *MockProvider {
	return NewMockProvider().WithError(err)
}

// NewToolCallProvider 创建返回单个工具调用的 Provider
func NewToolCallProvider(name string, args any) *MockProvider {
	return NewMockProvider().WithResponse("").WithToolCall(name, args)
}
