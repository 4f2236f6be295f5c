package catalog

import (
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/rwcarlsen/goexif/exif"
	"golang.org/x/image/draw"
)

// Thumbnailer writes downscaled copies of bag photos. Destinations are
// skipped when already newer than their source, so repeated passes are cheap.
type Thumbnailer struct {
	MaxSide int
	Quality int
}

func (t *Thumbnailer) maxSide() int {
	if t.MaxSide > 0 {
		return t.MaxSide
	}
	return 1600
}

func (t *Thumbnailer) quality() int {
	if t.Quality > 0 {
		return t.Quality
	}
	return 88
}

// target resolves the path Make will actually write: destinations that are
// neither JPEG nor PNG are re-encoded as .jpg.
func (t *Thumbnailer) target(dst string) string {
	switch strings.ToLower(filepath.Ext(dst)) {
	case ".jpg", ".jpeg", ".png":
		return dst
	}
	return strings.TrimSuffix(dst, filepath.Ext(dst)) + ".jpg"
}

// Make creates or refreshes the thumbnail for src at dst. Returns false when
// dst is already up to date (mtime check). Destinations that are neither JPEG
// nor PNG are re-encoded as .jpg; the up-to-date check runs against the
// re-encoded name, so such thumbnails are not regenerated every pass.
func (t *Thumbnailer) Make(src, dst string) (bool, error) {
	dst = t.target(dst)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return false, err
	}
	srcInfo, err := os.Stat(src)
	if err != nil {
		return false, err
	}
	if dstInfo, err := os.Stat(dst); err == nil && !dstInfo.ModTime().Before(srcInfo.ModTime()) {
		return false, nil
	}

	f, err := os.Open(src)
	if err != nil {
		return false, err
	}
	img, _, err := image.Decode(f)
	_ = f.Close()
	if err != nil {
		return false, err
	}

	img = applyOrientation(img, readOrientation(src))

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if longSide := max(w, h); longSide > t.maxSide() {
		scale := float64(t.maxSide()) / float64(longSide)
		nw, nh := int(float64(w)*scale), int(float64(h)*scale)
		if nw < 1 {
			nw = 1
		}
		if nh < 1 {
			nh = 1
		}
		scaled := image.NewRGBA(image.Rect(0, 0, nw, nh))
		draw.CatmullRom.Scale(scaled, scaled.Bounds(), img, b, draw.Over, nil)
		img = scaled
	}

	ext := strings.ToLower(filepath.Ext(dst))

	out, err := os.Create(dst)
	if err != nil {
		return false, err
	}
	switch ext {
	case ".png":
		err = png.Encode(out, img)
	default:
		err = jpeg.Encode(out, img, &jpeg.Options{Quality: t.quality()})
	}
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(dst)
		return false, err
	}
	return true, nil
}

// RunThumbs refreshes thumbnails for every bag under root. Per-file failures
// are skipped, never fatal; a missing root is.
func RunThumbs(root string, schema *Schema, t *Thumbnailer) (made, upToDate int, err error) {
	if schema == nil {
		schema = MustSchema()
	}
	if t == nil {
		t = &Thumbnailer{}
	}
	dirs, err := findPhotoDirs(root)
	if err != nil {
		return 0, 0, err
	}
	made, upToDate = refreshThumbs(dirs, schema, t, nil)
	return made, upToDate, nil
}

func refreshThumbs(dirs []string, schema *Schema, t *Thumbnailer, debugf func(string, ...any)) (made, upToDate int) {
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		thumbsDir := filepath.Join(filepath.Dir(dir), "thumbnails")
		for _, e := range entries {
			if e.IsDir() || !schema.AllowedExt(e.Name()) {
				continue
			}
			ok, err := t.Make(filepath.Join(dir, e.Name()), filepath.Join(thumbsDir, e.Name()))
			if err != nil {
				if debugf != nil {
					debugf("thumbnail failed name=%q err=%v", e.Name(), err)
				}
				continue
			}
			if ok {
				made++
			} else {
				upToDate++
			}
		}
	}
	return made, upToDate
}

// readOrientation extracts the EXIF orientation tag, defaulting to 1
// (upright) when the file carries no usable EXIF block.
func readOrientation(path string) int {
	f, err := os.Open(path)
	if err != nil {
		return 1
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	o, err := tag.Int(0)
	if err != nil || o < 1 || o > 8 {
		return 1
	}
	return o
}

// applyOrientation bakes the EXIF orientation into the pixel data, the way
// cameras expect viewers to display it.
func applyOrientation(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return flipH(img)
	case 3:
		return rotate180(img)
	case 4:
		return flipV(img)
	case 5:
		return transpose(img)
	case 6:
		return rotate90(img)
	case 7:
		return transverse(img)
	case 8:
		return rotate270(img)
	default:
		return img
	}
}

func flipH(src image.Image) image.Image {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			dst.Set(b.Dx()-1-x, y, src.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return dst
}

func flipV(src image.Image) image.Image {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			dst.Set(x, b.Dy()-1-y, src.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return dst
}

func rotate90(src image.Image) image.Image {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dy(), b.Dx()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			dst.Set(b.Dy()-1-y, x, src.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return dst
}

func rotate180(src image.Image) image.Image {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			dst.Set(b.Dx()-1-x, b.Dy()-1-y, src.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return dst
}

func rotate270(src image.Image) image.Image {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dy(), b.Dx()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			dst.Set(y, b.Dx()-1-x, src.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return dst
}

func transpose(src image.Image) image.Image {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dy(), b.Dx()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			dst.Set(y, x, src.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return dst
}

func transverse(src image.Image) image.Image {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dy(), b.Dx()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			dst.Set(b.Dy()-1-y, b.Dx()-1-x, src.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return dst
}
