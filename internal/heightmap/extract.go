package heightmap

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"github.com/shalynjjj/prompt2CAD/types"
)

// Channel selects the colour channel that carries depth.
type Channel int

const (
	// ChannelBlue is the first channel of BGR-ordered decoders.
	ChannelBlue Channel = iota
	ChannelGreen
	ChannelRed
)

// nrgbaOffset maps a Channel to its byte offset inside an NRGBA pixel.
func (c Channel) nrgbaOffset() int {
	switch c {
	case ChannelRed:
		return 0
	case ChannelGreen:
		return 1
	default:
		return 2
	}
}

// Options tune dense extraction.
type Options struct {
	Channel Channel
}

// DefaultOptions returns the extraction defaults.
func DefaultOptions() Options {
	return Options{Channel: ChannelBlue}
}

// Decode decodes PNG or JPEG bytes.
func Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, types.NewError(types.ErrInvalidRequest, "empty image data")
	}
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, types.NewError(types.ErrInvalidRequest, "failed to decode image").WithCause(err)
	}
	return img, nil
}

// Extract builds a normalized height field with DefaultOptions.
func Extract(img image.Image) (*Field, error) {
	return ExtractWithOptions(img, DefaultOptions())
}

// ExtractWithOptions inverts the image, rotates it 90 degrees clockwise and
// normalizes the chosen channel by its global maximum. Grayscale sources
// carry the same value in every channel.
func ExtractWithOptions(img image.Image, opts Options) (*Field, error) {
	if img == nil {
		return nil, types.NewError(types.ErrInvalidRequest, "nil image")
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, types.Errorf(types.ErrDegenerateMesh, "empty image %dx%d", b.Dx(), b.Dy())
	}

	// Rotate270 is counter-clockwise, i.e. 90 degrees clockwise.
	rotated := imaging.Rotate270(imaging.Invert(img))

	rb := rotated.Bounds()
	rows, cols := rb.Dy(), rb.Dx()
	off := opts.Channel.nrgbaOffset()

	values := make([]float64, rows*cols)
	for i := 0; i < rows; i++ {
		line := rotated.Pix[i*rotated.Stride : i*rotated.Stride+cols*4]
		for j := 0; j < cols; j++ {
			values[i*cols+j] = float64(line[j*4+off])
		}
	}

	field, err := NewField(rows, cols, values)
	if err != nil {
		return nil, err
	}
	normalized, err := field.Normalize()
	if err != nil {
		return nil, fmt.Errorf("extract height field: %w", err)
	}
	return normalized, nil
}

// ExtractBytes decodes data and extracts its height field.
func ExtractBytes(data []byte) (*Field, error) {
	img, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return Extract(img)
}
