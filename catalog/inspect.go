package catalog

import (
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/webp"
)

// ImageInspector reads pixel dimensions from an image file. Implementations
// fail soft: unreadable or undecodable files yield (0, 0), a degraded-data
// marker rather than an error.
type ImageInspector interface {
	Dimensions(path string) (width, height int)
}

// DecodeInspector reads dimensions from the image header without decoding
// pixel data. JPEG, PNG and WebP are registered.
type DecodeInspector struct{}

func (DecodeInspector) Dimensions(path string) (int, int) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0
	}
	return cfg.Width, cfg.Height
}

// NullInspector stands in when image decoding is unavailable or unwanted;
// every file reports zero dimensions.
type NullInspector struct{}

func (NullInspector) Dimensions(string) (int, int) { return 0, 0 }
