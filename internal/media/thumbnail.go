package media

import (
	"bytes"
	"fmt"

	"github.com/disintegration/imaging"
)

// Thumbnail decodes an image and returns a PNG scaled to width, keeping aspect ratio.
// Images already narrower than width are re-encoded unchanged in size.
func Thumbnail(data []byte, width int) ([]byte, error) {
	src, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	if width > 0 && src.Bounds().Dx() > width {
		src = imaging.Resize(src, width, 0, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, src, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}
