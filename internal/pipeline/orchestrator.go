package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/shalynjjj/prompt2CAD/internal/artifact"
	"github.com/shalynjjj/prompt2CAD/internal/cad"
	"github.com/shalynjjj/prompt2CAD/internal/events"
	"github.com/shalynjjj/prompt2CAD/internal/heightmap"
	"github.com/shalynjjj/prompt2CAD/types"
)

// Stage names used for spans, events and metrics.
const (
	StageGenerate = "generate_silhouette"
	StageEdit     = "edit_silhouette"
	StageExtrude  = "extrude_to_3d"
	StageChatCAD  = "chat_cad"
)

const tracerName = "prompt2cad/pipeline"

// Analyzer extracts proportions from a photo.
type Analyzer interface {
	Analyze(ctx context.Context, png []byte) (*types.Analysis, error)
}

// SilhouetteService turns photos into silhouettes and edits them.
type SilhouetteService interface {
	Generate(ctx context.Context, original []byte) ([]byte, error)
	Edit(ctx context.Context, marked []byte, instructions string) ([]byte, error)
}

// PreviewRenderer draws a PNG preview of STL bytes.
type PreviewRenderer interface {
	Render(ctx context.Context, stlData []byte) ([]byte, error)
}

// ArtifactStore persists session artifacts and the analysis record.
type ArtifactStore interface {
	EnsureSession(ctx context.Context, sessionID string) error
	SessionExists(ctx context.Context, sessionID string) (bool, error)
	Put(ctx context.Context, sessionID string, kind artifact.Kind, version int, data []byte) (*artifact.Artifact, error)
	Latest(ctx context.Context, sessionID string, kind artifact.Kind) (*artifact.Artifact, []byte, error)
	LatestVersion(ctx context.Context, sessionID string, kind artifact.Kind) (int, error)
	List(ctx context.Context, sessionID string) ([]artifact.Artifact, error)
	SaveAnalysis(ctx context.Context, sessionID string, a types.Analysis) error
	LoadAnalysis(ctx context.Context, sessionID string) (*types.Analysis, error)
}

// CADWorkflow runs CAD chat turns.
type CADWorkflow interface {
	Chat(ctx context.Context, req cad.ChatRequest) (*cad.ChatResponse, error)
	History(ctx context.Context, sessionID string) ([]cad.ChatMessage, error)
}

// EventPublisher receives stage progress events.
type EventPublisher interface {
	Publish(e events.Event)
}

// Locker serializes stages per session.
type Locker interface {
	Acquire(ctx context.Context, sessionID string) error
	Release(sessionID string) error
}

// Recorder receives pipeline metrics.
type Recorder interface {
	RecordStage(stage string, success bool, duration time.Duration)
	RecordMesh(strategy string, triangles int)
	RecordCollaboratorCall(collaborator string, success bool, duration time.Duration)
}

// Config tunes the geometric stages.
type Config struct {
	// PointsMaxSide bounds the silhouette before side-wall point extraction.
	PointsMaxSide int `yaml:"points_max_side" json:"points_max_side"`
	// PointsThreshold binarizes the silhouette for side-wall extraction.
	PointsThreshold uint8 `yaml:"points_threshold" json:"points_threshold"`
	// ThicknessScale converts the relative analysis thickness to mesh units.
	ThicknessScale float64 `yaml:"thickness_scale" json:"thickness_scale"`
}

// DefaultConfig returns the side-wall defaults.
func DefaultConfig() Config {
	return Config{
		PointsMaxSide:   heightmap.DefaultMaxSide,
		PointsThreshold: heightmap.DefaultThreshold,
		ThicknessScale:  10,
	}
}

// Orchestrator runs pipeline stages under per-session locks.
type Orchestrator struct {
	analyzer   Analyzer
	silhouette SilhouetteService
	renderer   PreviewRenderer
	store      ArtifactStore
	locks      Locker

	cad      CADWorkflow
	events   EventPublisher
	recorder Recorder
	tracer   trace.Tracer
	meters   stageMeters
	newID    func() string

	cfg    Config
	logger *zap.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithCADWorkflow enables ChatCAD and History.
func WithCADWorkflow(w CADWorkflow) Option {
	return func(o *Orchestrator) { o.cad = w }
}

// WithEvents publishes stage events to p.
func WithEvents(p EventPublisher) Option {
	return func(o *Orchestrator) { o.events = p }
}

// WithRecorder reports metrics to r.
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

// WithTracerProvider overrides the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *Orchestrator) { o.tracer = tp.Tracer(tracerName) }
}

// WithMeterProvider overrides the global meter provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *Orchestrator) { o.meters = newStageMeters(mp.Meter(tracerName)) }
}

// WithIDGenerator overrides session id allocation.
func WithIDGenerator(fn func() string) Option {
	return func(o *Orchestrator) { o.newID = fn }
}

// WithConfig sets the geometric tuning.
func WithConfig(cfg Config) Option {
	return func(o *Orchestrator) { o.cfg = cfg }
}

// New creates an Orchestrator.
func New(analyzer Analyzer, silhouette SilhouetteService, renderer PreviewRenderer, store ArtifactStore, locks Locker, logger *zap.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &Orchestrator{
		analyzer:   analyzer,
		silhouette: silhouette,
		renderer:   renderer,
		store:      store,
		locks:      locks,
		tracer:     otel.Tracer(tracerName),
		meters:     newStageMeters(otel.Meter(tracerName)),
		newID:      newSessionID,
		cfg:        DefaultConfig(),
		logger:     logger.With(zap.String("component", "pipeline")),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.cfg.ThicknessScale <= 0 {
		o.cfg.ThicknessScale = DefaultConfig().ThicknessScale
	}
	return o
}

// stageFunc does the work of one stage and returns the result payload.
type stageFunc func(ctx context.Context) (data map[string]any, message string, err error)

// run executes fn as a locked stage for sessionID.
func (o *Orchestrator) run(ctx context.Context, stage, sessionID string, fn stageFunc) *Result {
	start := time.Now()
	ctx, span := o.tracer.Start(ctx, "pipeline."+stage,
		trace.WithAttributes(attribute.String("session.id", sessionID)))
	defer span.End()

	logger := o.logger.With(zap.String("stage", stage), zap.String("session_id", sessionID))
	o.publish(sessionID, stage, events.StatusStarted, "")

	data, message, err := o.locked(ctx, sessionID, logger, fn)
	duration := time.Since(start)
	if o.recorder != nil {
		o.recorder.RecordStage(stage, err == nil, duration)
	}
	o.meters.recordStage(ctx, stage, err == nil, duration)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		res := failure(sessionID, err)
		span.SetAttributes(attribute.String("error.code", string(res.Code)))
		o.publish(sessionID, stage, events.StatusFailed, res.Error)
		logger.Warn("stage failed",
			zap.String("code", string(res.Code)),
			zap.Duration("duration", duration),
			zap.Error(err))
		return res
	}

	o.publish(sessionID, stage, events.StatusCompleted, message)
	logger.Info("stage completed", zap.Duration("duration", duration))
	return success(sessionID, data, message)
}

// locked holds the session lock around fn and converts panics into errors.
func (o *Orchestrator) locked(ctx context.Context, sessionID string, logger *zap.Logger, fn stageFunc) (data map[string]any, message string, err error) {
	if err := artifact.ValidateSessionID(sessionID); err != nil {
		return nil, "", err
	}
	if err := o.locks.Acquire(ctx, sessionID); err != nil {
		return nil, "", err
	}
	defer func() {
		if rerr := o.locks.Release(sessionID); rerr != nil {
			logger.Error("session lock release failed", zap.Error(rerr))
		}
	}()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("stage panicked", zap.Any("panic", r), zap.Stack("stack"))
			err = types.Errorf(types.ErrInternalError, "internal error: %v", r)
		}
	}()
	return fn(ctx)
}

// call times one collaborator invocation in its own span.
func (o *Orchestrator) call(ctx context.Context, collaborator string, fn func(ctx context.Context) error) error {
	start := time.Now()
	ctx, span := o.tracer.Start(ctx, "collaborator."+collaborator)
	defer span.End()

	err := fn(ctx)
	if o.recorder != nil {
		o.recorder.RecordCollaboratorCall(collaborator, err == nil, time.Since(start))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (o *Orchestrator) publish(sessionID, stage string, status events.Status, message string) {
	if o.events == nil {
		return
	}
	o.events.Publish(events.Event{
		SessionID: sessionID,
		Stage:     stage,
		Status:    status,
		Message:   message,
		Timestamp: time.Now().UTC(),
	})
}

// collaboratorFailure wraps untyped collaborator errors, keeping their text.
func collaboratorFailure(name string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := types.AsError(err); ok {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return types.NewError(types.ErrTimeout, fmt.Sprintf("%s: %v", name, err)).WithCause(err)
	}
	return types.NewError(types.ErrCollaboratorFailure, err.Error()).WithCause(err).WithProvider(name)
}
