package pipeline

import (
	"bytes"
	"fmt"

	"github.com/disintegration/imaging"

	"github.com/shalynjjj/prompt2CAD/types"
)

// NormalizePNG decodes any supported upload, applies EXIF orientation and
// re-encodes it as PNG.
func NormalizePNG(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, types.NewError(types.ErrInvalidRequest, "image is empty")
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, types.NewError(types.ErrInvalidRequest, "unsupported image").WithCause(err)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
