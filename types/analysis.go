package types

import (
	"fmt"
	"math"
	"strconv"
)

// Complexity classifies how detailed a keychain design is.
type Complexity string

// Complexity values.
const (
	ComplexitySimple   Complexity = "simple"
	ComplexityModerate Complexity = "moderate"
	ComplexityComplex  Complexity = "complex"
)

// Valid reports whether c is one of the known categories.
func (c Complexity) Valid() bool {
	switch c {
	case ComplexitySimple, ComplexityModerate, ComplexityComplex:
		return true
	}
	return false
}

// Analysis holds relative proportions of the photographed object.
// Width is normalized to 1.0.
type Analysis struct {
	Width       float64    `json:"width"`
	Length      float64    `json:"length"`
	Thickness   float64    `json:"thickness"`
	Complexity  Complexity `json:"complexity"`
	RatioString string     `json:"ratio_string"`
}

// Validate checks that every proportion is a positive finite number.
func (a Analysis) Validate() error {
	for name, v := range map[string]float64{"width": a.Width, "length": a.Length, "thickness": a.Thickness} {
		if !(v > 0) || math.IsInf(v, 0) {
			return Errorf(ErrInvalidRequest, "analysis %s must be positive, got %v", name, v)
		}
	}
	if !a.Complexity.Valid() {
		return Errorf(ErrInvalidRequest, "unknown complexity %q", a.Complexity)
	}
	return nil
}

// Ratio formats "length:width:thickness".
func (a Analysis) Ratio() string {
	return fmt.Sprintf("%s:%s:%s", formatFloat(a.Length), formatFloat(a.Width), formatFloat(a.Thickness))
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
