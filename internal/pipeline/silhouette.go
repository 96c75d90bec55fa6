package pipeline

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/shalynjjj/prompt2CAD/internal/artifact"
	"github.com/shalynjjj/prompt2CAD/types"
)

func newSessionID() string {
	return uuid.NewString()
}

// GenerateRequest starts a session from a photo.
type GenerateRequest struct {
	Image     []byte
	SessionID string
}

// EditRequest revises a silhouette. Version <= 0 means latest+1.
type EditRequest struct {
	SessionID    string
	Instructions string
	MarkedImage  []byte
	Version      int
}

// GenerateSilhouette stores the upload, analyzes its proportions and saves
// the silhouette as the next version of the session (v1 for a new session).
func (o *Orchestrator) GenerateSilhouette(ctx context.Context, req GenerateRequest) *Result {
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = o.newID()
	}
	return o.run(ctx, StageGenerate, sessionID, func(ctx context.Context) (map[string]any, string, error) {
		original, err := NormalizePNG(req.Image)
		if err != nil {
			return nil, "", err
		}
		if err := o.store.EnsureSession(ctx, sessionID); err != nil {
			return nil, "", err
		}
		orig, err := o.store.Put(ctx, sessionID, artifact.KindOriginal, 0, original)
		if err != nil {
			return nil, "", err
		}

		var analysis *types.Analysis
		err = o.call(ctx, "analyzer", func(ctx context.Context) error {
			var err error
			analysis, err = o.analyzer.Analyze(ctx, original)
			return err
		})
		if err != nil {
			return nil, "", collaboratorFailure("analyzer", err)
		}
		if err := o.store.SaveAnalysis(ctx, sessionID, *analysis); err != nil {
			return nil, "", err
		}

		var silhouette []byte
		err = o.call(ctx, "silhouette", func(ctx context.Context) error {
			var err error
			silhouette, err = o.silhouette.Generate(ctx, original)
			return err
		})
		if err != nil {
			return nil, "", collaboratorFailure("silhouette", err)
		}
		latest, err := o.store.LatestVersion(ctx, sessionID, artifact.KindSilhouette)
		if err != nil {
			return nil, "", err
		}
		version := latest + 1
		sil, err := o.store.Put(ctx, sessionID, artifact.KindSilhouette, version, silhouette)
		if err != nil {
			return nil, "", err
		}

		return map[string]any{
			"original":      refOf(orig),
			"analysis":      analysis,
			"silhouette_2d": refOf(sil),
			"version":       artifact.VersionTag(version),
		}, "2D silhouette generated successfully.", nil
	})
}

// EditSilhouette applies instructions to a marked silhouette and stores the
// result under the requested version.
func (o *Orchestrator) EditSilhouette(ctx context.Context, req EditRequest) *Result {
	return o.run(ctx, StageEdit, req.SessionID, func(ctx context.Context) (map[string]any, string, error) {
		if strings.TrimSpace(req.Instructions) == "" {
			return nil, "", types.NewError(types.ErrInvalidRequest, "instructions are required")
		}
		marked, err := NormalizePNG(req.MarkedImage)
		if err != nil {
			return nil, "", err
		}
		if err := o.store.EnsureSession(ctx, req.SessionID); err != nil {
			return nil, "", err
		}

		version := req.Version
		if version <= 0 {
			latest, err := o.store.LatestVersion(ctx, req.SessionID, artifact.KindSilhouette)
			if err != nil {
				return nil, "", err
			}
			version = latest + 1
		}

		var edited []byte
		err = o.call(ctx, "silhouette", func(ctx context.Context) error {
			var err error
			edited, err = o.silhouette.Edit(ctx, marked, req.Instructions)
			return err
		})
		if err != nil {
			return nil, "", collaboratorFailure("silhouette", err)
		}
		sil, err := o.store.Put(ctx, req.SessionID, artifact.KindSilhouette, version, edited)
		if err != nil {
			return nil, "", err
		}

		tag := artifact.VersionTag(version)
		return map[string]any{
			"silhouette_2d": refOf(sil),
			"version":       tag,
		}, "2D silhouette edited successfully (version " + tag + ").", nil
	})
}
