package heightmap

import (
	"image"

	"github.com/disintegration/imaging"

	"github.com/shalynjjj/prompt2CAD/types"
)

const (
	// DefaultMaxSide bounds the longest side before binarization.
	DefaultMaxSide = 512
	// DefaultThreshold is the gray level above which a pixel is foreground.
	DefaultThreshold uint8 = 128
)

// Point is a foreground pixel coordinate.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Points returns foreground pixels in row-major scan order after the
// image is grayscaled, fitted within maxSide and binarized at threshold.
func Points(img image.Image, maxSide int, threshold uint8) ([]Point, error) {
	if img == nil {
		return nil, types.NewError(types.ErrInvalidRequest, "nil image")
	}
	if maxSide <= 0 {
		maxSide = DefaultMaxSide
	}

	gray := imaging.Grayscale(img)
	fitted := imaging.Fit(gray, maxSide, maxSide, imaging.Lanczos)

	b := fitted.Bounds()
	w, h := b.Dx(), b.Dy()
	var pts []Point
	for y := 0; y < h; y++ {
		row := fitted.Pix[y*fitted.Stride:]
		for x := 0; x < w; x++ {
			if row[x*4] > threshold {
				pts = append(pts, Point{X: x, Y: y})
			}
		}
	}
	if len(pts) == 0 {
		return nil, types.NewError(types.ErrNoDepthInformation, "no foreground pixels above threshold")
	}
	return pts, nil
}
