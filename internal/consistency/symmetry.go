package consistency

import (
	"bytes"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// MirrorQuadrants copies the top-left quadrant into the other three so the
// result is symmetric about both centre lines. Odd dimensions share the
// centre row or column.
func MirrorQuadrants(img image.Image) *image.NRGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	qw, qh := (w+1)/2, (h+1)/2

	quad := imaging.Crop(img, image.Rect(b.Min.X, b.Min.Y, b.Min.X+qw, b.Min.Y+qh))

	dst := imaging.New(w, h, color.NRGBA{})
	dst = imaging.Paste(dst, quad, image.Pt(0, 0))
	dst = imaging.Paste(dst, imaging.FlipH(quad), image.Pt(w-qw, 0))
	dst = imaging.Paste(dst, imaging.FlipV(quad), image.Pt(0, h-qh))
	dst = imaging.Paste(dst, imaging.Rotate180(quad), image.Pt(w-qw, h-qh))
	return dst
}

// SymmetrizePNG decodes an image, mirrors its quadrants and re-encodes it as PNG.
func SymmetrizePNG(raw []byte) ([]byte, error) {
	src, err := imaging.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableImage, err)
	}
	return encodePNG(MirrorQuadrants(src))
}
