package mesh

import (
	"math"

	"github.com/unixpickle/model3d/model3d"

	"github.com/shalynjjj/prompt2CAD/types"
)

// GridStrategy extrudes a dense height field into the surface
// z = rows * depth * h(i, j), emitting two triangles per interior cell.
type GridStrategy struct{}

// Name implements Strategy.
func (GridStrategy) Name() string { return StrategyGrid }

// Build implements Strategy.
func (GridStrategy) Build(in Input) (*Mesh, error) {
	if in.Field == nil {
		return nil, types.NewError(types.ErrInvalidRequest, "grid strategy needs a dense height field")
	}
	aspect := in.AspectRatio
	if aspect == 0 {
		aspect = 1.0
	}
	if !(in.DepthDivWidth > 0) || math.IsInf(in.DepthDivWidth, 0) {
		return nil, types.Errorf(types.ErrInvalidRequest, "depth_div_width must be positive, got %v", in.DepthDivWidth)
	}
	if !(aspect > 0) || math.IsInf(aspect, 0) {
		return nil, types.Errorf(types.ErrInvalidRequest, "aspect_ratio must be positive, got %v", in.AspectRatio)
	}

	rows, cols := in.Field.Rows, in.Field.Cols
	if rows < 2 || cols < 2 {
		return nil, types.Errorf(types.ErrDegenerateMesh,
			"height field %dx%d has no interior cells", rows, cols)
	}

	field, err := in.Field.Normalize()
	if err != nil {
		return nil, err
	}

	scale := float64(rows) * in.DepthDivWidth
	vertices := make([]model3d.Coord3D, rows*cols)
	for i := 0; i < rows; i++ {
		x := float64(i) * aspect
		for j := 0; j < cols; j++ {
			vertices[i*cols+j] = model3d.Coord3D{X: x, Y: float64(j), Z: scale * field.At(i, j)}
		}
	}

	idx := func(i, j int) int { return i*cols + j }
	faces := make([][3]int, 0, 2*(rows-1)*(cols-1))
	for i := 0; i < rows-1; i++ {
		for j := 0; j < cols-1; j++ {
			faces = append(faces,
				[3]int{idx(i+1, j), idx(i, j+1), idx(i, j)},
				[3]int{idx(i+1, j+1), idx(i, j+1), idx(i+1, j)},
			)
		}
	}

	m := &Mesh{Vertices: vertices, Faces: faces}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}
