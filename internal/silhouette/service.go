package silhouette

import (
	"bytes"
	"context"
	"strings"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	"github.com/shalynjjj/prompt2CAD/llm"
	"github.com/shalynjjj/prompt2CAD/llm/image"
	"github.com/shalynjjj/prompt2CAD/types"
)

const extractionPrompt = `Convert this photo into a flat 2D silhouette of the main object for a keychain.
Fill the object solid black and make the background pure white.
No shading, gradients, text or outlines. Keep the original outline and proportions.`

const editTemplate = `This is a black-on-white keychain silhouette. Areas marked in red show where to change it.
Apply the following change and remove every red mark from the result: {instruction}
Keep the output a solid black silhouette on a pure white background with no shading.`

// EditPrompt embeds the user instruction into the edit template.
func EditPrompt(instruction string) string {
	return strings.ReplaceAll(editTemplate, "{instruction}", strings.TrimSpace(instruction))
}

// Service generates and edits silhouettes.
type Service struct {
	provider image.Provider
	model    string
	logger   *zap.Logger
}

// New creates a Service; an empty model uses the provider default.
func New(provider image.Provider, model string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		provider: provider,
		model:    model,
		logger:   logger.With(zap.String("component", "silhouette")),
	}
}

// Generate extracts a silhouette from the original photo.
func (s *Service) Generate(ctx context.Context, original []byte) ([]byte, error) {
	if len(original) == 0 {
		return nil, types.NewError(types.ErrInvalidRequest, "image is empty")
	}
	return s.edit(ctx, original, extractionPrompt)
}

// Edit applies instructions to a marked silhouette.
func (s *Service) Edit(ctx context.Context, marked []byte, instructions string) ([]byte, error) {
	if len(marked) == 0 {
		return nil, types.NewError(types.ErrInvalidRequest, "marked image is empty")
	}
	if strings.TrimSpace(instructions) == "" {
		return nil, types.NewError(types.ErrInvalidRequest, "edit instructions are empty")
	}
	return s.edit(ctx, marked, EditPrompt(instructions))
}

func (s *Service) edit(ctx context.Context, img []byte, prompt string) ([]byte, error) {
	req := &image.EditRequest{
		Images: [][]byte{img},
		Prompt: prompt,
		Model:  s.model,
		N:      1,
	}
	if traceID, ok := types.TraceID(ctx); ok {
		req.TraceID = traceID
	}

	resp, err := s.provider.Edit(ctx, req)
	if err != nil {
		return nil, llm.CollaboratorError(s.provider.Name(), err)
	}
	out, err := resp.FirstImage()
	if err != nil {
		return nil, types.NewError(types.ErrCollaboratorFailure, err.Error()).WithProvider(s.provider.Name())
	}
	if _, err := imaging.Decode(bytes.NewReader(out)); err != nil {
		return nil, types.NewError(types.ErrCollaboratorFailure, "image service returned an undecodable image").
			WithCause(err).
			WithProvider(s.provider.Name())
	}

	s.logger.Debug("silhouette produced", zap.Int("bytes", len(out)), zap.String("model", resp.Model))
	return out, nil
}
