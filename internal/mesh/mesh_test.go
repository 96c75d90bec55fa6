package mesh

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/unixpickle/model3d/model3d"

	"github.com/shalynjjj/prompt2CAD/internal/heightmap"
	"github.com/shalynjjj/prompt2CAD/types"
)

func constField(rows, cols int, v float64) *heightmap.Field {
	values := make([]float64, rows*cols)
	for i := range values {
		values[i] = v
	}
	return &heightmap.Field{Rows: rows, Cols: cols, Values: values}
}

func TestGrid_ThreeByThreeCenterPeak(t *testing.T) {
	f, err := heightmap.FromRows([][]float64{
		{0, 0, 0},
		{0, 1, 0},
		{0, 0, 0},
	})
	require.NoError(t, err)

	m, err := GridStrategy{}.Build(Input{Field: f, DepthDivWidth: 0.3, AspectRatio: 1.0})
	require.NoError(t, err)

	assert.Len(t, m.Vertices, 9)
	assert.Equal(t, 8, m.TriangleCount())
	center := m.Vertices[1*3+1]
	assert.InDelta(t, 0.9, center.Z, 1e-9)
	assert.InDelta(t, 1.0, center.X, 1e-9)
	assert.InDelta(t, 1.0, center.Y, 1e-9)
	for i, v := range m.Vertices {
		if i != 4 {
			assert.Zero(t, v.Z)
		}
	}
}

func TestGrid_DefaultAspectRatio(t *testing.T) {
	f := constField(3, 2, 1)
	m, err := GridStrategy{}.Build(Input{Field: f, DepthDivWidth: 1})
	require.NoError(t, err)

	lo, hi := m.Bounds()
	assert.Equal(t, model3d.Coord3D{X: 0, Y: 0, Z: 3}, lo)
	assert.Equal(t, model3d.Coord3D{X: 2, Y: 1, Z: 3}, hi)
}

func TestGrid_ConsistentWinding(t *testing.T) {
	f := constField(4, 5, 0.5)
	m, err := GridStrategy{}.Build(Input{Field: f, DepthDivWidth: 0.2, AspectRatio: 1.5})
	require.NoError(t, err)

	for i, tri := range m.Triangles() {
		n := tri[1].Sub(tri[0]).Cross(tri[2].Sub(tri[0]))
		assert.Greater(t, n.Z, 0.0, "triangle %d winds the wrong way", i)
	}
}

func TestGrid_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   Input
		code types.ErrorCode
	}{
		{"nil field", Input{DepthDivWidth: 1}, types.ErrInvalidRequest},
		{"single row", Input{Field: constField(1, 5, 1), DepthDivWidth: 1}, types.ErrDegenerateMesh},
		{"single column", Input{Field: constField(5, 1, 1), DepthDivWidth: 1}, types.ErrDegenerateMesh},
		{"empty", Input{Field: &heightmap.Field{}, DepthDivWidth: 1}, types.ErrDegenerateMesh},
		{"all zero", Input{Field: constField(3, 3, 0), DepthDivWidth: 1}, types.ErrNoDepthInformation},
		{"all negative", Input{Field: constField(3, 3, -1), DepthDivWidth: 1}, types.ErrNoDepthInformation},
		{"nan cell", Input{Field: &heightmap.Field{Rows: 2, Cols: 2, Values: []float64{1, math.NaN(), 0, 0}}, DepthDivWidth: 1}, types.ErrInvalidHeightField},
		{"inf cell", Input{Field: &heightmap.Field{Rows: 2, Cols: 2, Values: []float64{1, math.Inf(1), 0, 0}}, DepthDivWidth: 1}, types.ErrInvalidHeightField},
		{"zero depth", Input{Field: constField(3, 3, 1)}, types.ErrInvalidRequest},
		{"negative aspect", Input{Field: constField(3, 3, 1), DepthDivWidth: 1, AspectRatio: -1}, types.ErrInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := GridStrategy{}.Build(tt.in)
			require.Error(t, err)
			assert.True(t, types.IsErrorCode(err, tt.code), "got %v", err)
		})
	}
}

func TestProperty_GridTriangleCount(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("grid emits 2(R-1)(C-1) triangles with valid indices", prop.ForAll(
		func(rows, cols int) bool {
			m, err := GridStrategy{}.Build(Input{
				Field:         constField(rows, cols, 0.7),
				DepthDivWidth: 0.1,
				AspectRatio:   1.3,
			})
			if err != nil {
				return false
			}
			return m.TriangleCount() == 2*(rows-1)*(cols-1) &&
				len(m.Vertices) == rows*cols &&
				m.Validate() == nil
		},
		gen.IntRange(2, 40),
		gen.IntRange(2, 40),
	))

	properties.TestingRun(t)
}

func TestProperty_GridScaling(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	base := func(rows, cols int) *heightmap.Field {
		values := make([]float64, rows*cols)
		for i := range values {
			values[i] = float64(i%7) + 1
		}
		return &heightmap.Field{Rows: rows, Cols: cols, Values: values}
	}

	properties.Property("doubling depth doubles every z", prop.ForAll(
		func(rows, cols int, depth float64) bool {
			f := base(rows, cols)
			a, err1 := GridStrategy{}.Build(Input{Field: f, DepthDivWidth: depth})
			b, err2 := GridStrategy{}.Build(Input{Field: f, DepthDivWidth: 2 * depth})
			if err1 != nil || err2 != nil {
				return false
			}
			for i := range a.Vertices {
				if math.Abs(2*a.Vertices[i].Z-b.Vertices[i].Z) > 1e-9*math.Max(1, b.Vertices[i].Z) {
					return false
				}
			}
			return true
		},
		gen.IntRange(2, 12),
		gen.IntRange(2, 12),
		gen.Float64Range(0.01, 5),
	))

	properties.Property("aspect ratio scales only x", prop.ForAll(
		func(rows, cols int, aspect float64) bool {
			f := base(rows, cols)
			a, err1 := GridStrategy{}.Build(Input{Field: f, DepthDivWidth: 0.5, AspectRatio: 1})
			b, err2 := GridStrategy{}.Build(Input{Field: f, DepthDivWidth: 0.5, AspectRatio: aspect})
			if err1 != nil || err2 != nil {
				return false
			}
			for i := range a.Vertices {
				va, vb := a.Vertices[i], b.Vertices[i]
				if math.Abs(va.X*aspect-vb.X) > 1e-9 || va.Y != vb.Y || va.Z != vb.Z {
					return false
				}
			}
			return true
		},
		gen.IntRange(2, 12),
		gen.IntRange(2, 12),
		gen.Float64Range(0.1, 10),
	))

	properties.Property("scaling the field does not move vertices", prop.ForAll(
		func(rows, cols int, k float64) bool {
			f := base(rows, cols)
			scaled := &heightmap.Field{Rows: rows, Cols: cols, Values: make([]float64, len(f.Values))}
			for i, v := range f.Values {
				scaled.Values[i] = v * k
			}
			a, err1 := GridStrategy{}.Build(Input{Field: f, DepthDivWidth: 0.5})
			b, err2 := GridStrategy{}.Build(Input{Field: scaled, DepthDivWidth: 0.5})
			if err1 != nil || err2 != nil {
				return false
			}
			for i := range a.Vertices {
				if math.Abs(a.Vertices[i].Z-b.Vertices[i].Z) > 1e-9*math.Max(1, a.Vertices[i].Z) {
					return false
				}
			}
			return true
		},
		gen.IntRange(2, 12),
		gen.IntRange(2, 12),
		gen.Float64Range(0.01, 100),
	))

	properties.TestingRun(t)
}

func linePoints(n int) []heightmap.Point {
	pts := make([]heightmap.Point, n)
	for i := range pts {
		pts[i] = heightmap.Point{X: i % 97, Y: i / 97}
	}
	return pts
}

func TestSideWall_Counts(t *testing.T) {
	tests := []struct {
		name      string
		points    int
		wantVerts int
		wantTris  int
	}{
		{"two points", 2, 4, 4},
		{"ten points", 10, 20, 20},
		{"at cap", DefaultMaxPoints, 2 * DefaultMaxPoints, 2*(DefaultMaxPoints-1) + 2},
		{"twice the cap", 2 * DefaultMaxPoints, 2 * DefaultMaxPoints, 2*(DefaultMaxPoints-1) + 2},
		{"above cap", 12345, 2 * 4115, 2*(4115-1) + 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := SideWallStrategy{}.Build(Input{Points: linePoints(tt.points), Thickness: 2.5})
			require.NoError(t, err)
			assert.Len(t, m.Vertices, tt.wantVerts)
			assert.Equal(t, tt.wantTris, m.TriangleCount())
			require.NoError(t, m.Validate())

			n := len(m.Vertices) / 2
			for i := 0; i < n; i++ {
				assert.Zero(t, m.Vertices[i].Z)
				assert.Equal(t, 2.5, m.Vertices[i+n].Z)
			}
		})
	}
}

func TestSideWall_ClosesLoop(t *testing.T) {
	m, err := SideWallStrategy{}.Build(Input{Points: linePoints(5), Thickness: 1})
	require.NoError(t, err)

	last := m.Faces[len(m.Faces)-2:]
	assert.Equal(t, [3]int{4, 0, 9}, last[0])
	assert.Equal(t, [3]int{0, 5, 9}, last[1])
}

func TestSideWall_Errors(t *testing.T) {
	_, err := SideWallStrategy{}.Build(Input{Points: linePoints(1), Thickness: 1})
	assert.True(t, types.IsErrorCode(err, types.ErrDegenerateMesh))

	_, err = SideWallStrategy{}.Build(Input{Thickness: 1})
	assert.True(t, types.IsErrorCode(err, types.ErrDegenerateMesh))

	_, err = SideWallStrategy{}.Build(Input{Points: linePoints(3)})
	assert.True(t, types.IsErrorCode(err, types.ErrInvalidRequest))
}

func TestSample(t *testing.T) {
	pts := linePoints(10)
	assert.Len(t, Sample(pts, 20), 10)

	got := Sample(pts, 4)
	require.Len(t, got, 4)
	assert.Equal(t, []heightmap.Point{pts[0], pts[3], pts[6], pts[9]}, got)

	got = Sample(linePoints(11), 5)
	require.Len(t, got, 4)
	assert.Equal(t, linePoints(11)[9], got[3])
}

func TestSample_CoversWholeScan(t *testing.T) {
	pts := make([]heightmap.Point, 9999)
	for i := range pts {
		pts[i] = heightmap.Point{X: 0, Y: i}
	}

	got := Sample(pts, DefaultMaxPoints)
	assert.LessOrEqual(t, len(got), DefaultMaxPoints)
	assert.Equal(t, 0, got[0].Y)
	assert.Equal(t, 9998, got[len(got)-1].Y)
	for i := 1; i < len(got); i++ {
		assert.Equal(t, 2, got[i].Y-got[i-1].Y)
	}
}

func TestLookup(t *testing.T) {
	s, err := Lookup("")
	require.NoError(t, err)
	assert.Equal(t, StrategyGrid, s.Name())

	s, err = Lookup(StrategySideWall)
	require.NoError(t, err)
	assert.Equal(t, StrategySideWall, s.Name())

	_, err = Lookup("voxel")
	assert.True(t, types.IsErrorCode(err, types.ErrInvalidRequest))
	assert.Equal(t, []string{StrategyGrid, StrategySideWall}, Names())
}

func TestMesh_ValidateRejectsDanglingIndex(t *testing.T) {
	m := &Mesh{
		Vertices: []model3d.Coord3D{{}, {X: 1}, {Y: 1}},
		Faces:    [][3]int{{0, 1, 3}},
	}
	assert.True(t, types.IsErrorCode(m.Validate(), types.ErrDegenerateMesh))
}
