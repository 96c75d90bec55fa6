package cad

import (
	"context"
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/shalynjjj/prompt2CAD/llm"
	"github.com/shalynjjj/prompt2CAD/llm/tokenizer"
	"github.com/shalynjjj/prompt2CAD/types"
)

const systemPrompt = `You are an expert OpenSCAD programmer.
Your task is to write OpenSCAD code based on user requirements.

Rules:
1. Output ONLY the raw OpenSCAD code.
2. Do NOT output conversational text, markdown blocks, or explanations.
3. Always use '$fn=100;' for spheres and cylinders to ensure smoothness.
4. Use module-based design.
5. Ensure the code is valid and compilable.`

// CoderConfig controls OpenSCAD generation.
type CoderConfig struct {
	Model       string
	Temperature float32
	MaxTokens   int
	// CodeBudget caps the tokens of previous code embedded in a revision prompt.
	CodeBudget int
	Timeout    time.Duration
}

// DefaultCoderConfig returns gpt-4o at temperature 0.1 with 1500 output tokens.
func DefaultCoderConfig() CoderConfig {
	return CoderConfig{
		Model:       "gpt-4o",
		Temperature: 0.1,
		MaxTokens:   1500,
		CodeBudget:  6000,
		Timeout:     90 * time.Second,
	}
}

// Generation is one model answer.
type Generation struct {
	Code      string
	Model     string
	Usage     llm.ChatUsage
	Truncated bool
}

// Coder turns user requests into OpenSCAD source.
type Coder struct {
	provider  llm.Provider
	tokenizer tokenizer.Tokenizer
	cfg       CoderConfig
	logger    *zap.Logger
}

// NewCoder creates a Coder. A nil tokenizer uses tokenizer.ForModel.
func NewCoder(provider llm.Provider, tk tokenizer.Tokenizer, cfg CoderConfig, logger *zap.Logger) *Coder {
	def := DefaultCoderConfig()
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = def.MaxTokens
	}
	if cfg.CodeBudget <= 0 {
		cfg.CodeBudget = def.CodeBudget
	}
	if tk == nil {
		tk = tokenizer.ForModel(cfg.Model)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coder{
		provider:  provider,
		tokenizer: tk,
		cfg:       cfg,
		logger:    logger.With(zap.String("component", "cad_coder")),
	}
}

// BuildPrompt renders the user prompt, embedding previous code when revising.
func BuildPrompt(userText, previousCode string) string {
	if strings.TrimSpace(previousCode) != "" {
		return fmt.Sprintf(`Here is the EXISTING OpenSCAD code:
----------------
%s
----------------

User Feedback/Modification Request: %q

Task: Rewrite the code to implement the feedback. Keep the rest of the model structure intact.
Output ONLY the full valid OpenSCAD code.`, previousCode, userText)
	}
	return fmt.Sprintf(`User Request: %q

Task: Write OpenSCAD code to create this object.
Output ONLY the code.`, userText)
}

// Generate asks the model for OpenSCAD code. refImage is an optional PNG sketch.
func (c *Coder) Generate(ctx context.Context, userText, previousCode string, refImage []byte) (*Generation, error) {
	if strings.TrimSpace(userText) == "" {
		return nil, types.NewError(types.ErrInvalidRequest, "prompt is empty")
	}

	previous, truncated, err := tokenizer.FitLines(c.tokenizer, previousCode, c.cfg.CodeBudget)
	if err != nil {
		return nil, fmt.Errorf("count previous code tokens: %w", err)
	}
	if truncated {
		c.logger.Warn("previous code truncated to token budget", zap.Int("budget", c.cfg.CodeBudget))
	}

	user := llm.Message{Role: llm.RoleUser, Content: BuildPrompt(userText, previous)}
	if len(refImage) > 0 {
		user.Images = []llm.ImageContent{{
			URL:    "data:image/png;base64," + base64.StdEncoding.EncodeToString(refImage),
			Detail: "auto",
		}}
	}
	req := &llm.ChatRequest{
		Model:       c.cfg.Model,
		Messages:    []llm.Message{{Role: llm.RoleSystem, Content: systemPrompt}, user},
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
		Timeout:     c.cfg.Timeout,
	}
	if traceID, ok := types.TraceID(ctx); ok {
		req.TraceID = traceID
	}

	resp, err := c.provider.Completion(ctx, req)
	if err != nil {
		return nil, llm.CollaboratorError(c.provider.Name(), err)
	}
	choice, err := llm.FirstChoice(resp)
	if err != nil {
		return nil, types.NewError(types.ErrCollaboratorFailure, err.Error()).WithProvider(c.provider.Name())
	}
	code := CleanMarkdown(choice.Message.Content)
	if code == "" {
		return nil, types.NewError(types.ErrCollaboratorFailure, "model returned no code").WithProvider(c.provider.Name())
	}

	return &Generation{
		Code:      code,
		Model:     resp.Model,
		Usage:     resp.Usage,
		Truncated: truncated,
	}, nil
}

var (
	leadingFence  = regexp.MustCompile("^```[a-zA-Z]*\n")
	trailingFence = regexp.MustCompile("\n```$")
)

// CleanMarkdown strips a leading ```lang fence line and a trailing ``` fence.
func CleanMarkdown(text string) string {
	text = leadingFence.ReplaceAllString(strings.TrimSpace(text), "")
	text = trailingFence.ReplaceAllString(strings.TrimSpace(text), "")
	return strings.TrimSpace(text)
}
