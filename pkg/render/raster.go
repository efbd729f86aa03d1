package render

import (
	"bytes"
	"fmt"
	"image"

	// Decoders for the formats a render engine may return.
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/gomcpgo/photo_edit_session/pkg/types"
)

// RasterSize reads the pixel size and format of an encoded raster without
// decoding its pixels.
func RasterSize(raster []byte) (types.Size, string, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(raster))
	if err != nil {
		return types.Size{}, "", fmt.Errorf("read raster header: %w", err)
	}
	return types.Size{Width: cfg.Width, Height: cfg.Height}, format, nil
}
