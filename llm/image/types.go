package image

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"
)

// EditRequest 描述一次图像编辑请求，Images 为 PNG 字节，至少一张.
type EditRequest struct {
	Images  [][]byte          `json:"-"`
	Mask    []byte            `json:"-"`
	Prompt  string            `json:"prompt"`
	Model   string            `json:"model,omitempty"`
	N       int               `json:"n,omitempty"`
	Size    string            `json:"size,omitempty"`    // 1024x1024, 1536x1024, auto
	Quality string            `json:"quality,omitempty"` // low, medium, high, auto
	TraceID string            `json:"trace_id,omitempty"`
	Meta    map[string]string `json:"metadata,omitempty"`
}

// EditResponse 是图像编辑结果.
type EditResponse struct {
	Provider  string      `json:"provider"`
	Model     string      `json:"model"`
	Images    []ImageData `json:"images"`
	Usage     ImageUsage  `json:"usage,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// ImageData 是一张生成的图像.
type ImageData struct {
	URL     string `json:"url,omitempty"`
	B64JSON string `json:"b64_json,omitempty"`
}

// ImageUsage 是用量统计.
type ImageUsage struct {
	ImagesGenerated int `json:"images_generated"`
	InputTokens     int `json:"input_tokens,omitempty"`
	OutputTokens    int `json:"output_tokens,omitempty"`
}

// FirstImage 解码第一张 base64 图像.
func (r *EditResponse) FirstImage() ([]byte, error) {
	if r == nil || len(r.Images) == 0 {
		return nil, fmt.Errorf("image response contains no images")
	}
	if r.Images[0].B64JSON == "" {
		return nil, fmt.Errorf("image response has no b64_json payload")
	}
	data, err := base64.StdEncoding.DecodeString(r.Images[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("decode b64_json: %w", err)
	}
	return data, nil
}

// Provider 定义图像编辑提供者接口.
type Provider interface {
	// Edit 按提示词修改输入图像.
	Edit(ctx context.Context, req *EditRequest) (*EditResponse, error)

	// Name 返回提供者名称.
	Name() string
}
