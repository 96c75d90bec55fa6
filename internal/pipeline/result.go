package pipeline

import (
	"net/http"

	"github.com/shalynjjj/prompt2CAD/internal/artifact"
	"github.com/shalynjjj/prompt2CAD/types"
)

// Result is the envelope every entry point returns.
type Result struct {
	Success   bool           `json:"success"`
	SessionID string         `json:"session_id"`
	Data      map[string]any `json:"data,omitempty"`
	Message   string         `json:"message,omitempty"`
	Error     string         `json:"error,omitempty"`

	// Code classifies a failure for transports; it is not part of the envelope.
	Code types.ErrorCode `json:"-"`
}

// HTTPStatus maps the result to a response status.
func (r *Result) HTTPStatus() int {
	if r.Success {
		return http.StatusOK
	}
	return types.StatusForCode(r.Code)
}

func success(sessionID string, data map[string]any, message string) *Result {
	return &Result{Success: true, SessionID: sessionID, Data: data, Message: message}
}

// failure renders err into a result. A typed error contributes its code and
// its own message, so collaborator text reaches the caller verbatim.
func failure(sessionID string, err error) *Result {
	res := &Result{SessionID: sessionID, Error: err.Error(), Code: types.ErrInternalError}
	if e, ok := types.AsError(err); ok {
		res.Code = e.Code
		res.Error = e.Message
	}
	return res
}

// ArtifactRef is the public reference to a stored artifact.
type ArtifactRef struct {
	Kind     artifact.Kind `json:"kind,omitempty"`
	URLPath  string        `json:"url_path"`
	Version  string        `json:"version,omitempty"`
	Size     int64         `json:"size,omitempty"`
	Checksum string        `json:"checksum,omitempty"`
}

func refOf(a *artifact.Artifact) ArtifactRef {
	if a == nil {
		return ArtifactRef{}
	}
	ref := ArtifactRef{Kind: a.Kind, URLPath: a.URL, Size: a.Size, Checksum: a.Checksum}
	if a.Kind == artifact.KindSilhouette {
		ref.Version = artifact.VersionTag(a.Version)
	}
	return ref
}
