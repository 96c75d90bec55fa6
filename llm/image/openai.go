package image

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/shalynjjj/prompt2CAD/internal/tlsutil"
	"github.com/shalynjjj/prompt2CAD/llm"
	"github.com/shalynjjj/prompt2CAD/llm/providers"
	"github.com/shalynjjj/prompt2CAD/llm/retry"
)

// OpenAIProvider 使用 OpenAI Images API 执行图像编辑.
type OpenAIProvider struct {
	cfg     OpenAIConfig
	client  *http.Client
	retryer retry.Retryer
	logger  *zap.Logger
}

var _ Provider = (*OpenAIProvider)(nil)

// NewOpenAIProvider 创建 OpenAI 图像提供者，policy 为 nil 时不重试.
func NewOpenAIProvider(cfg OpenAIConfig, policy *retry.RetryPolicy, logger *zap.Logger) *OpenAIProvider {
	defaults := DefaultOpenAIConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaults.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaults.Model
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaults.Timeout
	}
	if policy == nil {
		policy = &retry.RetryPolicy{MaxRetries: 0}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &OpenAIProvider{
		cfg:     cfg,
		client:  tlsutil.SecureHTTPClient(cfg.Timeout),
		retryer: retry.NewBackoffRetryer(policy, logger),
		logger:  logger.With(zap.String("provider", "openai-image")),
	}
}

func (p *OpenAIProvider) Name() string { return "openai-image" }

type imagesResponse struct {
	Created int64 `json:"created"`
	Data    []struct {
		URL     string `json:"url,omitempty"`
		B64JSON string `json:"b64_json,omitempty"`
	} `json:"data"`
	Usage *struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage,omitempty"`
}

// Edit 修改已存在的图像.
func (p *OpenAIProvider) Edit(ctx context.Context, req *EditRequest) (*EditResponse, error) {
	if req == nil || len(req.Images) == 0 {
		return nil, &llm.Error{
			Code:       llm.ErrInvalidRequest,
			Message:    "image is required",
			HTTPStatus: http.StatusBadRequest,
			Provider:   p.Name(),
		}
	}
	model := req.Model
	if model == "" {
		model = p.cfg.Model
	}

	body, contentType, err := p.buildForm(req, model)
	if err != nil {
		return nil, fmt.Errorf("build edit form: %w", err)
	}

	start := time.Now()
	resp, err := retry.DoWithResultTyped(p.retryer, ctx, func() (*EditResponse, error) {
		return p.doEdit(ctx, body, contentType, model)
	})
	if err != nil {
		p.logger.Warn("image edit failed",
			zap.String("model", model),
			zap.String("trace_id", req.TraceID),
			zap.Duration("latency", time.Since(start)),
			zap.Error(err))
		return nil, err
	}
	p.logger.Debug("image edit done",
		zap.String("model", model),
		zap.Int("images", len(resp.Images)),
		zap.Duration("latency", time.Since(start)))
	return resp, nil
}

func (p *OpenAIProvider) buildForm(req *EditRequest, model string) ([]byte, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	field := "image"
	if len(req.Images) > 1 {
		field = "image[]"
	}
	for i, img := range req.Images {
		if err := writePNGPart(writer, field, fmt.Sprintf("image_%d.png", i), img); err != nil {
			return nil, "", err
		}
	}
	if len(req.Mask) > 0 {
		if err := writePNGPart(writer, "mask", "mask.png", req.Mask); err != nil {
			return nil, "", err
		}
	}

	n := req.N
	if n <= 0 {
		n = 1
	}
	size := req.Size
	if size == "" {
		size = p.cfg.Size
	}
	fields := [][2]string{
		{"prompt", req.Prompt},
		{"model", model},
		{"n", strconv.Itoa(n)},
	}
	if size != "" {
		fields = append(fields, [2]string{"size", size})
	}
	if req.Quality != "" {
		fields = append(fields, [2]string{"quality", req.Quality})
	}
	for _, f := range fields {
		if err := writer.WriteField(f[0], f[1]); err != nil {
			return nil, "", err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), writer.FormDataContentType(), nil
}

func writePNGPart(w *multipart.Writer, field, filename string, data []byte) error {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, field, filename))
	h.Set("Content-Type", "image/png")
	part, err := w.CreatePart(h)
	if err != nil {
		return err
	}
	_, err = part.Write(data)
	return err
}

func (p *OpenAIProvider) doEdit(ctx context.Context, body []byte, contentType, model string) (*EditResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(p.cfg.BaseURL, "/")+"/v1/images/edits",
		bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	httpReq.Header.Set("Content-Type", contentType)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, providers.NetworkError(err, p.Name())
	}
	defer providers.SafeCloseBody(resp.Body)

	if resp.StatusCode >= 400 {
		msg := providers.ReadErrorMessage(resp.Body)
		return nil, providers.MapHTTPError(resp.StatusCode, msg, p.Name())
	}

	var iResp imagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&iResp); err != nil {
		return nil, &llm.Error{
			Code:       llm.ErrUpstreamError,
			Message:    fmt.Sprintf("decode images response: %v", err),
			HTTPStatus: http.StatusBadGateway,
			Provider:   p.Name(),
		}
	}

	images := make([]ImageData, len(iResp.Data))
	for i, d := range iResp.Data {
		images[i] = ImageData{URL: d.URL, B64JSON: d.B64JSON}
	}
	out := &EditResponse{
		Provider:  p.Name(),
		Model:     model,
		Images:    images,
		Usage:     ImageUsage{ImagesGenerated: len(images)},
		CreatedAt: time.Now(),
	}
	if iResp.Created != 0 {
		out.CreatedAt = time.Unix(iResp.Created, 0)
	}
	if iResp.Usage != nil {
		out.Usage.InputTokens = iResp.Usage.InputTokens
		out.Usage.OutputTokens = iResp.Usage.OutputTokens
	}
	return out, nil
}
