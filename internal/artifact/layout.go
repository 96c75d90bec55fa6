package artifact

import (
	"fmt"
	"regexp"

	"github.com/shalynjjj/prompt2CAD/types"
)

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidateSessionID rejects ids that are unsafe to embed in file names.
func ValidateSessionID(id string) error {
	if !sessionIDPattern.MatchString(id) {
		return types.Errorf(types.ErrInvalidRequest, "invalid session id %q", id)
	}
	return nil
}

// Dirs lists the static sub-directories used by the store.
var Dirs = []string{"uploads", "processed", "stl", "renders", "cad"}

// location returns the static sub-directory and file name for an artifact.
func location(sessionID string, kind Kind, version int) (dir, name string, err error) {
	switch kind {
	case KindOriginal:
		return "uploads", sessionID + "_original.png", nil
	case KindSilhouette:
		if version < 1 {
			return "", "", types.Errorf(types.ErrInvalidRequest, "silhouette version must be >= 1, got %d", version)
		}
		return "processed", fmt.Sprintf("%s_2d_v%d.png", sessionID, version), nil
	case KindMesh:
		return "stl", sessionID + "_3d.stl", nil
	case KindRender:
		return "renders", sessionID + "_render.png", nil
	case KindSCAD:
		return "cad", fmt.Sprintf("%s_%d.scad", sessionID, version), nil
	case KindCADPreview:
		return "cad", fmt.Sprintf("%s_%d.png", sessionID, version), nil
	case KindCADMesh:
		return "cad", fmt.Sprintf("%s_%d.stl", sessionID, version), nil
	case KindCADRef:
		return "uploads", fmt.Sprintf("%s_cad_%d.png", sessionID, version), nil
	default:
		return "", "", types.Errorf(types.ErrInvalidRequest, "unknown artifact kind %q", kind)
	}
}

// normalizeVersion pins single-slot kinds to version 0.
func normalizeVersion(kind Kind, version int) int {
	switch kind {
	case KindSilhouette, KindSCAD, KindCADPreview, KindCADMesh, KindCADRef:
		return version
	default:
		return 0
	}
}

// VersionTag renders a silhouette version as "v<N>".
func VersionTag(version int) string {
	return fmt.Sprintf("v%d", version)
}
