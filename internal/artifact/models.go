package artifact

import (
	"time"
)

// Kind names an artifact category.
type Kind string

// Artifact kinds.
const (
	KindOriginal   Kind = "original"
	KindSilhouette Kind = "silhouette"
	KindMesh       Kind = "mesh"
	KindRender     Kind = "render"
	KindSCAD       Kind = "scad"
	KindCADPreview Kind = "cad_preview"
	KindCADMesh    Kind = "cad_mesh"
	KindCADRef     Kind = "cad_reference"
)

// Session is one row per session id.
type Session struct {
	ID        string    `gorm:"primaryKey;size:64" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Session) TableName() string {
	return "sessions"
}

// Artifact is the metadata of one stored blob.
type Artifact struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	SessionID string    `gorm:"size:64;not null;uniqueIndex:idx_artifact_key" json:"session_id"`
	Kind      Kind      `gorm:"size:32;not null;uniqueIndex:idx_artifact_key" json:"kind"`
	Version   int       `gorm:"not null;default:0;uniqueIndex:idx_artifact_key" json:"version"`
	Path      string    `gorm:"size:512;not null" json:"-"`
	URL       string    `gorm:"size:512;not null" json:"url"`
	Size      int64     `gorm:"not null;default:0" json:"size"`
	Checksum  string    `gorm:"size:64" json:"checksum"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Artifact) TableName() string {
	return "artifacts"
}

// AnalysisRecord persists the proportion analysis of a session.
type AnalysisRecord struct {
	SessionID   string    `gorm:"primaryKey;size:64" json:"session_id"`
	Width       float64   `gorm:"not null" json:"width"`
	Length      float64   `gorm:"not null" json:"length"`
	Thickness   float64   `gorm:"not null" json:"thickness"`
	Complexity  string    `gorm:"size:16;not null" json:"complexity"`
	RatioString string    `gorm:"size:64" json:"ratio_string"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (AnalysisRecord) TableName() string {
	return "analyses"
}

// Models lists every table owned by this package.
func Models() []any {
	return []any{&Session{}, &Artifact{}, &AnalysisRecord{}}
}
