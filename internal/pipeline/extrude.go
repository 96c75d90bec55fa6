package pipeline

import (
	"context"
	"image"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/shalynjjj/prompt2CAD/internal/artifact"
	"github.com/shalynjjj/prompt2CAD/internal/heightmap"
	"github.com/shalynjjj/prompt2CAD/internal/mesh"
	"github.com/shalynjjj/prompt2CAD/internal/stl"
)

// ExtrudeRequest turns the latest silhouette into a mesh.
type ExtrudeRequest struct {
	SessionID     string  `json:"session_id"`
	DepthDivWidth float64 `json:"depth_div_width"`
	AspectRatio   float64 `json:"aspect_ratio"`
	Strategy      string  `json:"strategy"`
}

// ExtrudeTo3D meshes the highest silhouette version, stores the STL and
// renders a preview. A failed render leaves render_image empty.
func (o *Orchestrator) ExtrudeTo3D(ctx context.Context, req ExtrudeRequest) *Result {
	return o.run(ctx, StageExtrude, req.SessionID, func(ctx context.Context) (map[string]any, string, error) {
		strategy, err := mesh.Lookup(req.Strategy)
		if err != nil {
			return nil, "", err
		}

		src, data, err := o.store.Latest(ctx, req.SessionID, artifact.KindSilhouette)
		if err != nil {
			return nil, "", err
		}
		img, err := heightmap.Decode(data)
		if err != nil {
			return nil, "", err
		}

		in, err := o.meshInput(ctx, req, strategy.Name(), img)
		if err != nil {
			return nil, "", err
		}
		m, err := strategy.Build(in)
		if err != nil {
			return nil, "", err
		}
		stlData, err := stl.Encode(m)
		if err != nil {
			return nil, "", err
		}

		trace.SpanFromContext(ctx).SetAttributes(
			attribute.String("mesh.strategy", strategy.Name()),
			attribute.Int("mesh.triangles", m.TriangleCount()),
			attribute.Int("silhouette.version", src.Version))
		if o.recorder != nil {
			o.recorder.RecordMesh(strategy.Name(), m.TriangleCount())
		}
		o.meters.recordMesh(ctx, strategy.Name(), m.TriangleCount())

		stored, err := o.store.Put(ctx, req.SessionID, artifact.KindMesh, 0, stlData)
		if err != nil {
			return nil, "", err
		}

		message := "3D model generated successfully."
		var render ArtifactRef
		var png []byte
		err = o.call(ctx, "renderer", func(ctx context.Context) error {
			var err error
			png, err = o.renderer.Render(ctx, stlData)
			return err
		})
		if err == nil {
			var r *artifact.Artifact
			r, err = o.store.Put(ctx, req.SessionID, artifact.KindRender, 0, png)
			render = refOf(r)
		}
		if err != nil {
			o.logger.Warn("preview render failed",
				zap.String("session_id", req.SessionID),
				zap.Error(err))
			render = ArtifactRef{Kind: artifact.KindRender}
			message = "3D model generated, but the preview could not be rendered: " + err.Error()
		}

		return map[string]any{
			"stl_file":       refOf(stored),
			"render_image":   render,
			"triangles":      m.TriangleCount(),
			"strategy":       strategy.Name(),
			"source_version": artifact.VersionTag(src.Version),
		}, message, nil
	})
}

// meshInput extracts the data shape the chosen strategy consumes.
func (o *Orchestrator) meshInput(ctx context.Context, req ExtrudeRequest, strategy string, img image.Image) (mesh.Input, error) {
	if strategy == mesh.StrategySideWall {
		analysis, err := o.store.LoadAnalysis(ctx, req.SessionID)
		if err != nil {
			return mesh.Input{}, err
		}
		pts, err := heightmap.Points(img, o.cfg.PointsMaxSide, o.cfg.PointsThreshold)
		if err != nil {
			return mesh.Input{}, err
		}
		return mesh.Input{Points: pts, Thickness: analysis.Thickness * o.cfg.ThicknessScale}, nil
	}

	field, err := heightmap.Extract(img)
	if err != nil {
		return mesh.Input{}, err
	}
	return mesh.Input{Field: field, DepthDivWidth: req.DepthDivWidth, AspectRatio: req.AspectRatio}, nil
}
