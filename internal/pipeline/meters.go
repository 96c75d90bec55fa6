package pipeline

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// OTel instrument names exported through the OTLP metric pipeline.
const (
	MetricStageDuration = "prompt2cad.pipeline.stage.duration"
	MetricMeshTriangles = "prompt2cad.pipeline.mesh.triangles"
)

// stageMeters mirrors the stage and mesh metrics onto an OTel meter.
type stageMeters struct {
	duration  metric.Float64Histogram
	triangles metric.Int64Histogram
}

func newStageMeters(m metric.Meter) stageMeters {
	out := stageMeters{
		duration:  noop.Float64Histogram{},
		triangles: noop.Int64Histogram{},
	}
	if d, err := m.Float64Histogram(MetricStageDuration,
		metric.WithDescription("Pipeline stage duration"),
		metric.WithUnit("s")); err == nil {
		out.duration = d
	}
	if t, err := m.Int64Histogram(MetricMeshTriangles,
		metric.WithDescription("Triangles per generated mesh"),
		metric.WithUnit("{triangle}")); err == nil {
		out.triangles = t
	}
	return out
}

func (s stageMeters) recordStage(ctx context.Context, stage string, success bool, d time.Duration) {
	s.duration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("stage", stage),
		attribute.Bool("success", success)))
}

func (s stageMeters) recordMesh(ctx context.Context, strategy string, triangles int) {
	s.triangles.Record(ctx, int64(triangles), metric.WithAttributes(
		attribute.String("strategy", strategy)))
}
