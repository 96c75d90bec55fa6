package heightmap

import (
	"math"

	"github.com/shalynjjj/prompt2CAD/types"
)

// Field is a row-major 2D height field.
type Field struct {
	Rows   int
	Cols   int
	Values []float64
}

// NewField builds a field from row-major values.
func NewField(rows, cols int, values []float64) (*Field, error) {
	if rows < 0 || cols < 0 {
		return nil, types.Errorf(types.ErrInvalidHeightField, "negative field shape %dx%d", rows, cols)
	}
	if len(values) != rows*cols {
		return nil, types.Errorf(types.ErrInvalidHeightField,
			"field shape %dx%d needs %d values, got %d", rows, cols, rows*cols, len(values))
	}
	return &Field{Rows: rows, Cols: cols, Values: values}, nil
}

// FromRows builds a field from a slice of equally sized rows.
func FromRows(rows [][]float64) (*Field, error) {
	if len(rows) == 0 {
		return &Field{}, nil
	}
	cols := len(rows[0])
	values := make([]float64, 0, len(rows)*cols)
	for i, r := range rows {
		if len(r) != cols {
			return nil, types.Errorf(types.ErrInvalidHeightField,
				"row %d has %d columns, want %d", i, len(r), cols)
		}
		values = append(values, r...)
	}
	return &Field{Rows: len(rows), Cols: cols, Values: values}, nil
}

// At returns the value at row i, column j.
func (f *Field) At(i, j int) float64 {
	return f.Values[i*f.Cols+j]
}

// Max returns the global maximum, or 0 for an empty field.
func (f *Field) Max() float64 {
	if len(f.Values) == 0 {
		return 0
	}
	m := f.Values[0]
	for _, v := range f.Values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

// Validate rejects NaN and infinite cells.
func (f *Field) Validate() error {
	if len(f.Values) != f.Rows*f.Cols {
		return types.Errorf(types.ErrInvalidHeightField,
			"field shape %dx%d does not match %d values", f.Rows, f.Cols, len(f.Values))
	}
	for idx, v := range f.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return types.Errorf(types.ErrInvalidHeightField,
				"non-finite height %v at row %d, column %d", v, idx/f.Cols, idx%f.Cols)
		}
	}
	return nil
}

// Normalize returns a copy of the field divided by its global maximum.
func (f *Field) Normalize() (*Field, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	peak := f.Max()
	if peak <= 0 {
		return nil, types.NewError(types.ErrNoDepthInformation,
			"image contains no depth information (all pixels are black)")
	}
	out := make([]float64, len(f.Values))
	for i, v := range f.Values {
		out[i] = v / peak
	}
	return &Field{Rows: f.Rows, Cols: f.Cols, Values: out}, nil
}
