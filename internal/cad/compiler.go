package cad

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/fogleman/gg"
	"github.com/unixpickle/model3d/model3d"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/shalynjjj/prompt2CAD/internal/mesh"
	"github.com/shalynjjj/prompt2CAD/internal/stl"
)

// CompilerConfig controls the openscad subprocess.
type CompilerConfig struct {
	Binary     string        `yaml:"binary" json:"binary"`
	UseXvfb    bool          `yaml:"use_xvfb" json:"use_xvfb"`
	XvfbBinary string        `yaml:"xvfb_binary" json:"xvfb_binary"`
	ImageSize  string        `yaml:"image_size" json:"image_size"`
	Timeout    time.Duration `yaml:"timeout" json:"timeout"`
	Mock       bool          `yaml:"mock" json:"mock"`
}

// DefaultCompilerConfig returns the headless openscad setup.
func DefaultCompilerConfig() CompilerConfig {
	return CompilerConfig{
		Binary:     "openscad",
		UseXvfb:    true,
		XvfbBinary: "xvfb-run",
		ImageSize:  "800,600",
		Timeout:    2 * time.Minute,
	}
}

// CompileResult reports the outcome of one compilation.
type CompileResult struct {
	PreviewOK bool          `json:"preview_ok"`
	MeshOK    bool          `json:"mesh_ok"`
	Errors    []string      `json:"errors,omitempty"`
	Warnings  []string      `json:"warnings,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// OK reports whether both outputs were produced.
func (r *CompileResult) OK() bool {
	return r != nil && r.PreviewOK && r.MeshOK
}

// Compiler renders .scad sources into a PNG preview and an STL mesh.
type Compiler struct {
	cfg    CompilerConfig
	logger *zap.Logger
	// run is swapped in tests.
	run func(ctx context.Context, name string, args ...string) (stderr string, err error)
}

// NewCompiler creates a Compiler.
func NewCompiler(cfg CompilerConfig, logger *zap.Logger) *Compiler {
	def := DefaultCompilerConfig()
	if cfg.Binary == "" {
		cfg.Binary = def.Binary
	}
	if cfg.XvfbBinary == "" {
		cfg.XvfbBinary = def.XvfbBinary
	}
	if cfg.ImageSize == "" {
		cfg.ImageSize = def.ImageSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Compiler{
		cfg:    cfg,
		logger: logger.With(zap.String("component", "cad_compiler")),
		run:    runCommand,
	}
}

func runCommand(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stderr.String(), err
}

// PreviewCommand returns the argv for the PNG preview.
func (c *Compiler) PreviewCommand(scadPath, pngPath string) []string {
	args := []string{c.cfg.Binary, "-o", pngPath, scadPath, "--imgsize=" + c.cfg.ImageSize}
	if c.cfg.UseXvfb {
		args = append([]string{c.cfg.XvfbBinary, "-a"}, args...)
	}
	return args
}

// MeshCommand returns the argv for the STL export.
func (c *Compiler) MeshCommand(scadPath, stlPath string) []string {
	return []string{c.cfg.Binary, "-o", stlPath, scadPath}
}

// Compile produces pngPath and stlPath from scadPath concurrently.
// A failed compilation is reported in the result, not as an error.
func (c *Compiler) Compile(ctx context.Context, scadPath, pngPath, stlPath string) (*CompileResult, error) {
	start := time.Now()
	if c.cfg.Mock {
		if err := writePlaceholders(pngPath, stlPath); err != nil {
			return nil, err
		}
		return &CompileResult{PreviewOK: true, MeshOK: true, Duration: time.Since(start)}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	var previewLog, meshLog string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		previewLog, err = c.exec(gctx, c.PreviewCommand(scadPath, pngPath), pngPath)
		return err
	})
	g.Go(func() error {
		var err error
		meshLog, err = c.exec(gctx, c.MeshCommand(scadPath, stlPath), stlPath)
		return err
	})
	runErr := g.Wait()

	result := &CompileResult{Duration: time.Since(start)}
	for _, log := range []string{previewLog, meshLog} {
		errs, warns := ParseDiagnostics(log)
		result.Errors = append(result.Errors, errs...)
		result.Warnings = append(result.Warnings, warns...)
	}
	if runErr != nil {
		if len(result.Errors) == 0 {
			result.Errors = append(result.Errors, runErr.Error())
		}
		c.logger.Warn("openscad compilation failed",
			zap.String("scad", scadPath),
			zap.Strings("errors", result.Errors),
			zap.Error(runErr))
		return result, nil
	}

	result.PreviewOK = true
	result.MeshOK = true
	c.logger.Info("openscad compilation done",
		zap.String("scad", scadPath),
		zap.Int("warnings", len(result.Warnings)),
		zap.Duration("duration", result.Duration))
	return result, nil
}

func (c *Compiler) exec(ctx context.Context, argv []string, output string) (string, error) {
	stderr, err := c.run(ctx, argv[0], argv[1:]...)
	if err != nil {
		if ctx.Err() != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return stderr, fmt.Errorf("%s timed out: %w", argv[0], ctx.Err())
		}
		return stderr, fmt.Errorf("%s failed: %w", argv[0], err)
	}
	if _, statErr := os.Stat(output); statErr != nil {
		return stderr, fmt.Errorf("%s produced no output %s", argv[0], output)
	}
	return stderr, nil
}

// ParseDiagnostics splits openscad stderr into ERROR and WARNING lines.
func ParseDiagnostics(stderr string) (errs, warnings []string) {
	for _, line := range strings.Split(stderr, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "ERROR:"):
			errs = append(errs, strings.TrimSpace(strings.TrimPrefix(line, "ERROR:")))
		case strings.HasPrefix(line, "WARNING:"):
			warnings = append(warnings, strings.TrimSpace(strings.TrimPrefix(line, "WARNING:")))
		}
	}
	return errs, warnings
}

// writePlaceholders writes a grey card and a unit cube.
func writePlaceholders(pngPath, stlPath string) error {
	dc := gg.NewContext(800, 600)
	dc.SetRGB(0.93, 0.93, 0.93)
	dc.Clear()
	dc.SetRGB(0.4, 0.4, 0.45)
	dc.DrawStringAnchored("OpenSCAD preview (mock renderer)", 400, 300, 0.5, 0.5)
	if err := dc.SavePNG(pngPath); err != nil {
		return fmt.Errorf("write mock preview: %w", err)
	}

	data, err := stl.Encode(unitCube())
	if err != nil {
		return fmt.Errorf("encode mock mesh: %w", err)
	}
	if err := os.WriteFile(stlPath, data, 0o644); err != nil {
		return fmt.Errorf("write mock mesh: %w", err)
	}
	return nil
}

func unitCube() *mesh.Mesh {
	m := &mesh.Mesh{}
	for i := 0; i < 8; i++ {
		m.Vertices = append(m.Vertices, model3d.Coord3D{
			X: float64(i & 1),
			Y: float64((i >> 1) & 1),
			Z: float64((i >> 2) & 1),
		})
	}
	m.Faces = [][3]int{
		{0, 2, 1}, {1, 2, 3}, // z=0
		{4, 5, 6}, {5, 7, 6}, // z=1
		{0, 1, 4}, {1, 5, 4}, // y=0
		{2, 6, 3}, {3, 6, 7}, // y=1
		{0, 4, 2}, {2, 4, 6}, // x=0
		{1, 3, 5}, {3, 7, 5}, // x=1
	}
	return m
}
