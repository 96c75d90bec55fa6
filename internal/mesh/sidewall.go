package mesh

import (
	"math"

	"github.com/unixpickle/model3d/model3d"

	"github.com/shalynjjj/prompt2CAD/internal/heightmap"
	"github.com/shalynjjj/prompt2CAD/types"
)

// DefaultMaxPoints caps the sampled point count of SideWallStrategy.
const DefaultMaxPoints = 5000

// SideWallStrategy builds a double-layer side-wall shell from a sparse point
// list. Consecutive points are joined in scan order and the loop is closed
// between the last and the first point. The result is a shell, not a solid.
type SideWallStrategy struct {
	MaxPoints int
}

// Name implements Strategy.
func (SideWallStrategy) Name() string { return StrategySideWall }

// Build implements Strategy.
func (s SideWallStrategy) Build(in Input) (*Mesh, error) {
	if !(in.Thickness > 0) || math.IsInf(in.Thickness, 0) {
		return nil, types.Errorf(types.ErrInvalidRequest, "thickness must be positive, got %v", in.Thickness)
	}

	pts := Sample(in.Points, s.maxPoints())
	n := len(pts)
	if n < 2 {
		return nil, types.Errorf(types.ErrDegenerateMesh, "side wall needs at least 2 points, got %d", n)
	}

	vertices := make([]model3d.Coord3D, 2*n)
	for i, p := range pts {
		vertices[i] = model3d.Coord3D{X: float64(p.X), Y: float64(p.Y), Z: 0}
		vertices[i+n] = model3d.Coord3D{X: float64(p.X), Y: float64(p.Y), Z: in.Thickness}
	}

	faces := make([][3]int, 0, 2*(n-1)+2)
	for i := 0; i < n-1; i++ {
		faces = append(faces,
			[3]int{i, i + 1, i + n},
			[3]int{i + 1, i + 1 + n, i + n},
		)
	}
	faces = append(faces,
		[3]int{n - 1, 0, 2*n - 1},
		[3]int{0, n, 2*n - 1},
	)

	m := &Mesh{Vertices: vertices, Faces: faces}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func (s SideWallStrategy) maxPoints() int {
	if s.MaxPoints <= 0 {
		return DefaultMaxPoints
	}
	return s.MaxPoints
}

// Sample keeps every ceil(n/limit)-th point when there are more than limit
// points. The stride spans the whole scan, so the result never exceeds limit.
func Sample(pts []heightmap.Point, limit int) []heightmap.Point {
	if limit <= 0 || len(pts) <= limit {
		return pts
	}
	step := (len(pts) + limit - 1) / limit
	out := make([]heightmap.Point, 0, (len(pts)+step-1)/step)
	for i := 0; i < len(pts); i += step {
		out = append(out, pts[i])
	}
	return out
}
