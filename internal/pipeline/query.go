package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/shalynjjj/prompt2CAD/internal/artifact"
	"github.com/shalynjjj/prompt2CAD/internal/cad"
	"github.com/shalynjjj/prompt2CAD/types"
)

// ChatCAD runs one CAD chat turn under the session lock.
func (o *Orchestrator) ChatCAD(ctx context.Context, req cad.ChatRequest) *Result {
	if req.SessionID == "" {
		req.SessionID = o.newID()
	}
	return o.run(ctx, StageChatCAD, req.SessionID, func(ctx context.Context) (map[string]any, string, error) {
		if o.cad == nil {
			return nil, "", types.NewError(types.ErrServiceUnavailable, "cad workflow is not configured")
		}
		if err := o.store.EnsureSession(ctx, req.SessionID); err != nil {
			return nil, "", err
		}
		resp, err := o.cad.Chat(ctx, req)
		if err != nil {
			return nil, "", collaboratorFailure("cad", err)
		}
		return map[string]any{
			"turn":              resp.Turn,
			"preview_image_url": resp.PreviewImageURL,
			"stl_file_url":      resp.STLFileURL,
			"scad_code_url":     resp.SCADCodeURL,
			"scad_content":      resp.SCADContent,
			"compile":           resp.Compile,
		}, resp.Message, nil
	})
}

// GetSession returns the analysis and artifact listing of a session.
// It takes no lock.
func (o *Orchestrator) GetSession(ctx context.Context, sessionID string) *Result {
	return o.read(ctx, "get_session", sessionID, func(ctx context.Context) (map[string]any, error) {
		ok, err := o.store.SessionExists(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, types.Errorf(types.ErrArtifactNotFound, "session %s not found", sessionID)
		}

		data := map[string]any{}
		analysis, err := o.store.LoadAnalysis(ctx, sessionID)
		switch {
		case err == nil:
			data["analysis"] = analysis
		case !types.IsErrorCode(err, types.ErrArtifactNotFound):
			return nil, err
		}

		list, err := o.store.List(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		refs := make([]ArtifactRef, 0, len(list))
		latest := 0
		for i := range list {
			refs = append(refs, refOf(&list[i]))
			if list[i].Kind == artifact.KindSilhouette && list[i].Version > latest {
				latest = list[i].Version
			}
		}
		data["artifacts"] = refs
		if latest > 0 {
			data["latest_silhouette"] = artifact.VersionTag(latest)
		}
		return data, nil
	})
}

// History returns the CAD chat history of a session. It takes no lock.
func (o *Orchestrator) History(ctx context.Context, sessionID string) *Result {
	return o.read(ctx, "history", sessionID, func(ctx context.Context) (map[string]any, error) {
		if o.cad == nil {
			return nil, types.NewError(types.ErrServiceUnavailable, "cad workflow is not configured")
		}
		msgs, err := o.cad.History(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		return map[string]any{"history": msgs}, nil
	})
}

// read runs a lock-free query with the same envelope and panic guard as run.
func (o *Orchestrator) read(ctx context.Context, name, sessionID string, fn func(ctx context.Context) (map[string]any, error)) (res *Result) {
	ctx, span := o.tracer.Start(ctx, "pipeline."+name)
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("query panicked", zap.String("query", name), zap.Any("panic", r), zap.Stack("stack"))
			res = failure(sessionID, types.Errorf(types.ErrInternalError, "internal error: %v", r))
		}
	}()

	if err := artifact.ValidateSessionID(sessionID); err != nil {
		return failure(sessionID, err)
	}
	data, err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		return failure(sessionID, err)
	}
	return success(sessionID, data, "")
}
