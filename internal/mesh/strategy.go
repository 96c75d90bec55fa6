package mesh

import (
	"fmt"
	"sort"

	"github.com/shalynjjj/prompt2CAD/internal/heightmap"
	"github.com/shalynjjj/prompt2CAD/types"
)

// Strategy names.
const (
	StrategyGrid     = "grid"
	StrategySideWall = "sidewall"
)

// Input carries whichever upstream data shape a strategy consumes.
type Input struct {
	// Field feeds GridStrategy.
	Field *heightmap.Field
	// DepthDivWidth scales z for GridStrategy.
	DepthDivWidth float64
	// AspectRatio scales the row axis for GridStrategy. Zero means 1.0.
	AspectRatio float64

	// Points feeds SideWallStrategy.
	Points []heightmap.Point
	// Thickness is the back-layer z for SideWallStrategy.
	Thickness float64
}

// Strategy builds a mesh from an Input.
type Strategy interface {
	Name() string
	Build(in Input) (*Mesh, error)
}

var registry = map[string]Strategy{
	StrategyGrid:     GridStrategy{},
	StrategySideWall: SideWallStrategy{MaxPoints: DefaultMaxPoints},
}

// Lookup resolves a strategy by name. An empty name selects the grid.
func Lookup(name string) (Strategy, error) {
	if name == "" {
		name = StrategyGrid
	}
	s, ok := registry[name]
	if !ok {
		return nil, types.NewError(types.ErrInvalidRequest,
			fmt.Sprintf("unknown mesh strategy %q (known: %v)", name, Names()))
	}
	return s, nil
}

// Names lists the registered strategy names.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
