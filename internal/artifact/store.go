package artifact

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/shalynjjj/prompt2CAD/types"
)

// AnalysisCache is an optional read-through cache for analysis records.
type AnalysisCache interface {
	GetAnalysis(ctx context.Context, sessionID string) (*types.Analysis, error)
	SetAnalysis(ctx context.Context, sessionID string, a types.Analysis) error
}

// Config locates the blob directory and its public URL prefix.
type Config struct {
	Root      string `yaml:"root" json:"root"`
	URLPrefix string `yaml:"url_prefix" json:"url_prefix"`
}

// DefaultConfig returns the default storage layout.
func DefaultConfig() Config {
	return Config{
		Root:      "./static",
		URLPrefix: "/static",
	}
}

// Store persists artifact metadata through GORM and blobs on disk.
type Store struct {
	db     *gorm.DB
	config Config
	cache  AnalysisCache
	logger *zap.Logger
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithAnalysisCache attaches a read-through cache for analyses.
func WithAnalysisCache(c AnalysisCache) StoreOption {
	return func(s *Store) { s.cache = c }
}

// NewStore creates the blob directories and returns a store.
func NewStore(db *gorm.DB, config Config, logger *zap.Logger, opts ...StoreOption) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("db cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Root == "" {
		config.Root = DefaultConfig().Root
	}
	if config.URLPrefix == "" {
		config.URLPrefix = DefaultConfig().URLPrefix
	}
	for _, d := range Dirs {
		if err := os.MkdirAll(filepath.Join(config.Root, d), 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir %s: %w", d, err)
		}
	}

	s := &Store{
		db:     db,
		config: config,
		logger: logger.With(zap.String("component", "artifact_store")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// AutoMigrate creates or updates the tables owned by the store.
func (s *Store) AutoMigrate() error {
	if err := s.db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to auto migrate artifacts: %w", err)
	}
	return nil
}

// Root returns the blob root directory.
func (s *Store) Root() string {
	return s.config.Root
}

// EnsureSession records the session row if it does not exist yet.
func (s *Store) EnsureSession(ctx context.Context, sessionID string) error {
	if err := ValidateSessionID(sessionID); err != nil {
		return err
	}
	sess := Session{ID: sessionID}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoUpdates: clause.AssignmentColumns([]string{"updated_at"})}).
		Create(&sess).Error
	if err != nil {
		return fmt.Errorf("ensure session %s: %w", sessionID, err)
	}
	return nil
}

// SessionExists reports whether the session row exists.
func (s *Store) SessionExists(ctx context.Context, sessionID string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&Session{}).Where("id = ?", sessionID).Count(&count).Error; err != nil {
		return false, fmt.Errorf("lookup session %s: %w", sessionID, err)
	}
	return count > 0, nil
}

// Locate returns where an artifact lives on disk and its public URL without
// touching either.
func (s *Store) Locate(sessionID string, kind Kind, version int) (filePath, url string, err error) {
	if err := ValidateSessionID(sessionID); err != nil {
		return "", "", err
	}
	dir, name, err := location(sessionID, kind, normalizeVersion(kind, version))
	if err != nil {
		return "", "", err
	}
	return filepath.Join(s.config.Root, dir, name), path.Join(s.config.URLPrefix, dir, name), nil
}

// Put writes data as the (session, kind, version) artifact. A second write to
// the same key overwrites the first.
func (s *Store) Put(ctx context.Context, sessionID string, kind Kind, version int, data []byte) (*Artifact, error) {
	filePath, _, err := s.Locate(sessionID, kind, version)
	if err != nil {
		return nil, err
	}
	if err := writeFileAtomic(filePath, data); err != nil {
		return nil, err
	}
	return s.Register(ctx, sessionID, kind, version)
}

// Register records metadata for a blob that was already written at the
// location returned by Locate.
func (s *Store) Register(ctx context.Context, sessionID string, kind Kind, version int) (*Artifact, error) {
	filePath, url, err := s.Locate(sessionID, kind, version)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read artifact %s: %w", filePath, err)
	}
	sum := sha256.Sum256(data)

	a := &Artifact{
		SessionID: sessionID,
		Kind:      kind,
		Version:   normalizeVersion(kind, version),
		Path:      filePath,
		URL:       url,
		Size:      int64(len(data)),
		Checksum:  hex.EncodeToString(sum[:]),
	}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}, {Name: "kind"}, {Name: "version"}},
		DoUpdates: clause.AssignmentColumns([]string{"path", "url", "size", "checksum", "updated_at"}),
	}).Create(a).Error
	if err != nil {
		return nil, fmt.Errorf("record artifact %s/%s/%d: %w", sessionID, kind, a.Version, err)
	}

	s.logger.Debug("artifact stored",
		zap.String("session_id", sessionID),
		zap.String("kind", string(kind)),
		zap.Int("version", a.Version),
		zap.Int64("size", a.Size))
	return a, nil
}

// Get loads one artifact and its bytes.
func (s *Store) Get(ctx context.Context, sessionID string, kind Kind, version int) (*Artifact, []byte, error) {
	var a Artifact
	err := s.db.WithContext(ctx).
		Where("session_id = ? AND kind = ? AND version = ?", sessionID, kind, normalizeVersion(kind, version)).
		First(&a).Error
	if err != nil {
		return nil, nil, s.notFound(err, "%s %s v%d not found", sessionID, kind, version)
	}
	return s.load(&a)
}

// Latest loads the artifact of kind with the highest version number.
func (s *Store) Latest(ctx context.Context, sessionID string, kind Kind) (*Artifact, []byte, error) {
	var a Artifact
	err := s.db.WithContext(ctx).
		Where("session_id = ? AND kind = ?", sessionID, kind).
		Order("version DESC").
		First(&a).Error
	if err != nil {
		return nil, nil, s.notFound(err, "no %s artifact for session %s", kind, sessionID)
	}
	return s.load(&a)
}

// LatestVersion returns the highest stored version of kind, or 0.
func (s *Store) LatestVersion(ctx context.Context, sessionID string, kind Kind) (int, error) {
	var v sql.NullInt64
	err := s.db.WithContext(ctx).Model(&Artifact{}).
		Where("session_id = ? AND kind = ?", sessionID, kind).
		Select("MAX(version)").
		Row().Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("latest %s version for %s: %w", kind, sessionID, err)
	}
	return int(v.Int64), nil
}

// List returns every artifact of a session ordered by kind and version.
func (s *Store) List(ctx context.Context, sessionID string) ([]Artifact, error) {
	var out []Artifact
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("kind ASC, version ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list artifacts for %s: %w", sessionID, err)
	}
	return out, nil
}

// SaveAnalysis upserts the analysis of a session.
func (s *Store) SaveAnalysis(ctx context.Context, sessionID string, a types.Analysis) error {
	if a.RatioString == "" {
		a.RatioString = a.Ratio()
	}
	rec := AnalysisRecord{
		SessionID:   sessionID,
		Width:       a.Width,
		Length:      a.Length,
		Thickness:   a.Thickness,
		Complexity:  string(a.Complexity),
		RatioString: a.RatioString,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"width", "length", "thickness", "complexity", "ratio_string", "updated_at"}),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("save analysis for %s: %w", sessionID, err)
	}

	if s.cache != nil {
		if err := s.cache.SetAnalysis(ctx, sessionID, a); err != nil {
			s.logger.Warn("analysis cache write failed", zap.String("session_id", sessionID), zap.Error(err))
		}
	}
	return nil
}

// LoadAnalysis reads the analysis of a session, consulting the cache first.
func (s *Store) LoadAnalysis(ctx context.Context, sessionID string) (*types.Analysis, error) {
	if s.cache != nil {
		if a, err := s.cache.GetAnalysis(ctx, sessionID); err == nil {
			return a, nil
		}
	}

	var rec AnalysisRecord
	if err := s.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&rec).Error; err != nil {
		return nil, s.notFound(err, "no analysis for session %s", sessionID)
	}
	a := &types.Analysis{
		Width:       rec.Width,
		Length:      rec.Length,
		Thickness:   rec.Thickness,
		Complexity:  types.Complexity(rec.Complexity),
		RatioString: rec.RatioString,
	}
	if s.cache != nil {
		if err := s.cache.SetAnalysis(ctx, sessionID, *a); err != nil {
			s.logger.Warn("analysis cache fill failed", zap.String("session_id", sessionID), zap.Error(err))
		}
	}
	return a, nil
}

func (s *Store) load(a *Artifact) (*Artifact, []byte, error) {
	data, err := os.ReadFile(a.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, types.Errorf(types.ErrArtifactNotFound, "blob for %s %s v%d is missing", a.SessionID, a.Kind, a.Version)
		}
		return nil, nil, fmt.Errorf("read artifact %s: %w", a.Path, err)
	}
	return a, data, nil
}

func (s *Store) notFound(err error, format string, args ...any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return types.Errorf(types.ErrArtifactNotFound, format, args...)
	}
	return fmt.Errorf("query artifact: %w", err)
}

func writeFileAtomic(filePath string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(filePath), ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", filePath, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", filePath, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod %s: %w", filePath, err)
	}
	if err := os.Rename(tmpName, filePath); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename %s: %w", filePath, err)
	}
	return nil
}
