package factory

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/shalynjjj/prompt2CAD/config"
	"github.com/shalynjjj/prompt2CAD/llm"
	"github.com/shalynjjj/prompt2CAD/llm/providers/openaicompat"
	"github.com/shalynjjj/prompt2CAD/llm/retry"
)

// ProviderConfig 是工厂接受的通用配置
type ProviderConfig struct {
	APIKey     string        `json:"api_key" yaml:"api_key"`
	BaseURL    string        `json:"base_url" yaml:"base_url"`
	Model      string        `json:"model,omitempty" yaml:"model,omitempty"`
	Timeout    time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	MaxRetries int           `json:"max_retries,omitempty" yaml:"max_retries,omitempty"`
}

// preset 描述一个 OpenAI 兼容厂商的默认端点
type preset struct {
	baseURL       string
	endpointPath  string
	modelsPath    string
	fallbackModel string
	headers       func(r *http.Request, apiKey string)
}

var presets = map[string]preset{
	"openai": {
		baseURL:       "https://api.openai.com",
		fallbackModel: "gpt-4o",
	},
	"deepseek": {
		baseURL:       "https://api.deepseek.com",
		endpointPath:  "/chat/completions",
		modelsPath:    "/models",
		fallbackModel: "deepseek-chat",
	},
	"qwen": {
		baseURL:       "https://dashscope.aliyuncs.com",
		endpointPath:  "/compatible-mode/v1/chat/completions",
		modelsPath:    "/compatible-mode/v1/models",
		fallbackModel: "qwen-vl-max",
	},
	"glm": {
		baseURL:       "https://open.bigmodel.cn",
		endpointPath:  "/api/paas/v4/chat/completions",
		modelsPath:    "/api/paas/v4/models",
		fallbackModel: "glm-4v-plus",
	},
	"kimi": {
		baseURL:       "https://api.moonshot.cn",
		fallbackModel: "moonshot-v1-8k-vision-preview",
	},
	"mistral": {
		baseURL:       "https://api.mistral.ai",
		fallbackModel: "pixtral-large-latest",
	},
	"grok": {
		baseURL:       "https://api.x.ai",
		fallbackModel: "grok-2-vision",
	},
	"doubao": {
		baseURL:       "https://ark.cn-beijing.volces.com",
		endpointPath:  "/api/v3/chat/completions",
		modelsPath:    "/api/v3/models",
		fallbackModel: "doubao-1.5-vision-pro-32k",
	},
	"openrouter": {
		baseURL:       "https://openrouter.ai/api",
		fallbackModel: "openai/gpt-4o",
		headers: func(r *http.Request, apiKey string) {
			r.Header.Set("Authorization", "Bearer "+apiKey)
			r.Header.Set("Content-Type", "application/json")
			r.Header.Set("X-Title", "prompt2CAD")
		},
	},
}

// aliases 指向 presets 中的规范名称
var aliases = map[string]string{
	"zhipu":     "glm",
	"moonshot":  "kimi",
	"dashscope": "qwen",
	"xai":       "grok",
	"ark":       "doubao",
	// 自建的 OpenAI 兼容网关（vLLM、Ollama 等）需自行提供 base_url
	"openai-compatible": "openai",
}

// SupportedProviders 返回全部可用的 Provider 名称（含别名），按字母排序
func SupportedProviders() []string {
	names := make([]string, 0, len(presets)+len(aliases))
	for n := range presets {
		names = append(names, n)
	}
	for n := range aliases {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// NewProviderFromConfig 按名称创建 Provider。
// 所有厂商都走 OpenAI Chat Completions 协议，仅端点与默认模型不同。
func NewProviderFromConfig(name string, cfg ProviderConfig, logger *zap.Logger) (llm.Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	key := strings.ToLower(strings.TrimSpace(name))
	if canonical, ok := aliases[key]; ok {
		key = canonical
	}
	p, ok := presets[key]
	if !ok {
		return nil, fmt.Errorf("unknown provider %q (supported: %s)", name, strings.Join(SupportedProviders(), ", "))
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("provider %q requires an api key", name)
	}

	baseURL := p.baseURL
	if cfg.BaseURL != "" {
		baseURL = cfg.BaseURL
	}

	policy := retry.DefaultRetryPolicy()
	policy.MaxRetries = cfg.MaxRetries

	return openaicompat.New(openaicompat.Config{
		ProviderName:   key,
		APIKey:         cfg.APIKey,
		BaseURL:        baseURL,
		DefaultModel:   cfg.Model,
		FallbackModel:  p.fallbackModel,
		Timeout:        cfg.Timeout,
		EndpointPath:   p.endpointPath,
		ModelsEndpoint: p.modelsPath,
		BuildHeaders:   p.headers,
		Retry:          policy,
	}, logger), nil
}

// FromLLMConfig 由应用的 llm 配置段创建 Provider
func FromLLMConfig(cfg config.LLMConfig, logger *zap.Logger) (llm.Provider, error) {
	return NewProviderFromConfig(cfg.Provider, ProviderConfig{
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		Model:      cfg.Model,
		Timeout:    cfg.Timeout,
		MaxRetries: cfg.MaxRetries,
	}, logger)
}
