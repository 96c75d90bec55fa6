package cad

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/shalynjjj/prompt2CAD/internal/artifact"
	"github.com/shalynjjj/prompt2CAD/internal/ctxkeys"
	"github.com/shalynjjj/prompt2CAD/types"
)

// DefaultPromptVersion tags AI turns when the context carries no version.
const DefaultPromptVersion = "v1"

// Generator produces OpenSCAD code.
type Generator interface {
	Generate(ctx context.Context, userText, previousCode string, refImage []byte) (*Generation, error)
}

// Builder compiles OpenSCAD sources.
type Builder interface {
	Compile(ctx context.Context, scadPath, pngPath, stlPath string) (*CompileResult, error)
}

// ArtifactStore is the subset of the artifact store the workflow writes to.
type ArtifactStore interface {
	Put(ctx context.Context, sessionID string, kind artifact.Kind, version int, data []byte) (*artifact.Artifact, error)
	Locate(sessionID string, kind artifact.Kind, version int) (filePath, url string, err error)
	Register(ctx context.Context, sessionID string, kind artifact.Kind, version int) (*artifact.Artifact, error)
}

// TokenRecorder receives model token usage.
type TokenRecorder interface {
	RecordLLMTokens(model string, promptTokens, completionTokens int)
}

// ChatRequest is one user turn.
type ChatRequest struct {
	SessionID string
	Prompt    string
	Image     []byte
}

// ChatResponse carries the artifacts of one AI turn.
type ChatResponse struct {
	Message         string         `json:"message"`
	SessionID       string         `json:"session_id"`
	Turn            int            `json:"turn"`
	PreviewImageURL string         `json:"preview_image_url"`
	STLFileURL      string         `json:"stl_file_url"`
	SCADCodeURL     string         `json:"scad_code_url"`
	SCADContent     string         `json:"scad_content"`
	Compile         *CompileResult `json:"compile,omitempty"`
}

// Workflow runs CAD chat turns. Callers serialize turns of one session.
type Workflow struct {
	coder    Generator
	compiler Builder
	history  *HistoryStore
	store    ArtifactStore
	tokens   TokenRecorder
	logger   *zap.Logger
}

// WorkflowOption configures a Workflow.
type WorkflowOption func(*Workflow)

// WithTokenRecorder reports model usage to r.
func WithTokenRecorder(r TokenRecorder) WorkflowOption {
	return func(w *Workflow) { w.tokens = r }
}

// NewWorkflow wires the CAD chat components.
func NewWorkflow(coder Generator, compiler Builder, history *HistoryStore, store ArtifactStore, logger *zap.Logger, opts ...WorkflowOption) *Workflow {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &Workflow{
		coder:    coder,
		compiler: compiler,
		history:  history,
		store:    store,
		logger:   logger.With(zap.String("component", "cad_workflow")),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Chat generates, stores and compiles the code for one turn.
func (w *Workflow) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if err := artifact.ValidateSessionID(req.SessionID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, types.NewError(types.ErrInvalidRequest, "prompt is required")
	}
	logger := w.logger.With(zap.String("session_id", req.SessionID))

	turn, err := w.history.NextTurn(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}

	var refURL string
	if len(req.Image) > 0 {
		a, err := w.store.Put(ctx, req.SessionID, artifact.KindCADRef, turn, req.Image)
		if err != nil {
			return nil, fmt.Errorf("store reference image: %w", err)
		}
		refURL = a.URL
	}
	if _, err := w.history.AddUserMessage(ctx, req.SessionID, req.Prompt, refURL); err != nil {
		return nil, err
	}

	previous, err := w.history.LatestCode(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}

	gen, err := w.coder.Generate(ctx, req.Prompt, previous, req.Image)
	if err != nil {
		return nil, err
	}
	if w.tokens != nil {
		w.tokens.RecordLLMTokens(gen.Model, gen.Usage.PromptTokens, gen.Usage.CompletionTokens)
	}

	scad, err := w.store.Put(ctx, req.SessionID, artifact.KindSCAD, turn, []byte(gen.Code))
	if err != nil {
		return nil, fmt.Errorf("store scad: %w", err)
	}

	files := Files{SCAD: scad.URL}
	pngPath, _, err := w.store.Locate(req.SessionID, artifact.KindCADPreview, turn)
	if err != nil {
		return nil, err
	}
	stlPath, _, err := w.store.Locate(req.SessionID, artifact.KindCADMesh, turn)
	if err != nil {
		return nil, err
	}

	result, err := w.compiler.Compile(ctx, scad.Path, pngPath, stlPath)
	if err != nil {
		return nil, fmt.Errorf("compile scad: %w", err)
	}
	if result.OK() {
		preview, err := w.store.Register(ctx, req.SessionID, artifact.KindCADPreview, turn)
		if err != nil {
			return nil, fmt.Errorf("register preview: %w", err)
		}
		mesh, err := w.store.Register(ctx, req.SessionID, artifact.KindCADMesh, turn)
		if err != nil {
			return nil, fmt.Errorf("register mesh: %w", err)
		}
		files.Preview = preview.URL
		files.STL = mesh.URL
	}

	version := DefaultPromptVersion
	if v, ok := ctxkeys.PromptVersion(ctx); ok {
		version = v
	}
	message := "Generated 3D model based on your prompt."
	if !result.OK() {
		message = "Generated OpenSCAD code, but compilation failed."
	}
	if _, err := w.history.AddAIMessage(ctx, req.SessionID, message, gen.Code, files, version); err != nil {
		return nil, err
	}

	logger.Info("cad turn completed",
		zap.Int("turn", turn),
		zap.Bool("compiled", result.OK()),
		zap.Bool("code_truncated", gen.Truncated))

	return &ChatResponse{
		Message:         message,
		SessionID:       req.SessionID,
		Turn:            turn,
		PreviewImageURL: files.Preview,
		STLFileURL:      files.STL,
		SCADCodeURL:     files.SCAD,
		SCADContent:     gen.Code,
		Compile:         result,
	}, nil
}

// History returns the chat history of a session.
func (w *Workflow) History(ctx context.Context, sessionID string) ([]ChatMessage, error) {
	if err := artifact.ValidateSessionID(sessionID); err != nil {
		return nil, err
	}
	return w.history.SessionHistory(ctx, sessionID)
}
