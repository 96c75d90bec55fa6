package mocks

import (
	"context"
	"encoding/base64"
	"sync"
	"time"

	"github.com/shalynjjj/prompt2CAD/llm/image"
)

// MockImageProvider 是 image.Provider 的可编程实现
type MockImageProvider struct {
	mu sync.Mutex

	name   string
	output []byte
	err    error
	editFn func(ctx context.Context, req *image.EditRequest) (*image.EditResponse, error)

	requests []*image.EditRequest
}

// NewMockImageProvider 创建返回 output 的图像 Provider
func NewMockImageProvider(output []byte) *MockImageProvider {
	return &MockImageProvider{name: "mock-image", output: output}
}

// WithError 设置返回错误
func (m *MockImageProvider) WithError(err error) *MockImageProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// WithEditFunc 设置自定义 Edit 实现
func (m *MockImageProvider) WithEditFunc(fn func(ctx context.Context, req *image.EditRequest) (*image.EditResponse, error)) *MockImageProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.editFn = fn
	return m
}

// Name 返回 Provider 名称
func (m *MockImageProvider) Name() string { return m.name }

// Edit 记录请求并返回预设图像
func (m *MockImageProvider) Edit(ctx context.Context, req *image.EditRequest) (*image.EditResponse, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	fn, err, output := m.editFn, m.err, m.output
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return &image.EditResponse{
		Provider:  m.name,
		Model:     req.Model,
		Images:    []image.ImageData{{B64JSON: base64.StdEncoding.EncodeToString(output)}},
		Usage:     image.ImageUsage{ImagesGenerated: 1},
		CreatedAt: time.Now(),
	}, nil
}

// Requests 返回收到的全部请求
func (m *MockImageProvider) Requests() []*image.EditRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*image.EditRequest(nil), m.requests...)
}
