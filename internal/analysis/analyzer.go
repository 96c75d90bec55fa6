package analysis

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/shalynjjj/prompt2CAD/llm"
	"github.com/shalynjjj/prompt2CAD/types"
)

// ToolName is the function the model must call.
const ToolName = "extract_keychain_proportions"

// ErrNoFunctionCall is the collaborator message when the model answers in prose.
const ErrNoFunctionCall = "No function call returned"

const ratioPrompt = `You are measuring a keychain from a single photo.
Estimate its relative proportions with the width as the 1.0 baseline:
length relative to width, and thickness (depth) relative to width.
Also judge the visual complexity of the outline.
Report the values by calling extract_keychain_proportions.`

var toolParameters = json.RawMessage(`{
	"type": "object",
	"properties": {
		"width": {"type": "number", "description": "Width (baseline 1.0)"},
		"length": {"type": "number", "description": "Length relative to width"},
		"thickness": {"type": "number", "description": "Thickness/depth"},
		"complexity": {
			"type": "string",
			"enum": ["simple", "moderate", "complex"],
			"description": "Visual complexity"
		}
	},
	"required": ["width", "length", "thickness", "complexity"]
}`)

// Config controls the analysis request.
type Config struct {
	Model       string
	MaxTokens   int
	ImageDetail string
	Timeout     time.Duration
}

// DefaultConfig returns the gpt-4o vision settings.
func DefaultConfig() Config {
	return Config{
		Model:       "gpt-4o",
		MaxTokens:   500,
		ImageDetail: "high",
		Timeout:     60 * time.Second,
	}
}

// Analyzer extracts proportions from a photo.
type Analyzer struct {
	provider llm.Provider
	cfg      Config
	logger   *zap.Logger
}

// New creates an Analyzer backed by provider.
func New(provider llm.Provider, cfg Config, logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultConfig()
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = def.MaxTokens
	}
	if cfg.ImageDetail == "" {
		cfg.ImageDetail = def.ImageDetail
	}
	return &Analyzer{
		provider: provider,
		cfg:      cfg,
		logger:   logger.With(zap.String("component", "analysis")),
	}
}

// Analyze sends the PNG to the vision model and parses the forced tool call.
func (a *Analyzer) Analyze(ctx context.Context, png []byte) (*types.Analysis, error) {
	if len(png) == 0 {
		return nil, types.NewError(types.ErrInvalidRequest, "image is empty")
	}

	req := &llm.ChatRequest{
		Model: a.cfg.Model,
		Messages: []llm.Message{{
			Role:    llm.RoleUser,
			Content: ratioPrompt,
			Images: []llm.ImageContent{{
				URL:    "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
				Detail: a.cfg.ImageDetail,
			}},
		}},
		Tools: []llm.ToolSchema{{
			Name:        ToolName,
			Description: "Extract dimensional proportions from keychain image",
			Parameters:  toolParameters,
		}},
		ToolChoice: ToolName,
		MaxTokens:  a.cfg.MaxTokens,
		Timeout:    a.cfg.Timeout,
	}
	if traceID, ok := types.TraceID(ctx); ok {
		req.TraceID = traceID
	}

	resp, err := a.provider.Completion(ctx, req)
	if err != nil {
		return nil, llm.CollaboratorError(a.provider.Name(), err)
	}

	call, ok := llm.FindToolCall(resp, ToolName)
	if !ok {
		a.logger.Warn("model returned no tool call", zap.String("model", resp.Model))
		return nil, types.NewError(types.ErrCollaboratorFailure, ErrNoFunctionCall).
			WithProvider(a.provider.Name())
	}

	var out types.Analysis
	if err := json.Unmarshal(call.Arguments, &out); err != nil {
		return nil, types.NewError(types.ErrCollaboratorFailure, "invalid proportion arguments").
			WithCause(err).
			WithProvider(a.provider.Name())
	}
	if err := out.Validate(); err != nil {
		return nil, types.NewError(types.ErrCollaboratorFailure, "invalid proportions").
			WithCause(err).
			WithProvider(a.provider.Name())
	}
	out.RatioString = out.Ratio()

	a.logger.Info("proportions extracted",
		zap.String("ratio", out.RatioString),
		zap.String("complexity", string(out.Complexity)),
		zap.Int("total_tokens", resp.Usage.TotalTokens))
	return &out, nil
}
