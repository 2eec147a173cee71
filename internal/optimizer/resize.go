package optimizer

import (
	"image"
	"math"

	"golang.org/x/image/draw"
)

// TargetSize returns the output dimensions for a w x h bitmap bounded by
// maxWidth. Images at or below maxWidth keep their size; wider images are
// scaled to maxWidth with height round(h*maxWidth/w), at least 1.
func TargetSize(w, h, maxWidth int) (int, int) {
	if w <= maxWidth {
		return w, h
	}
	nh := int(math.Round(float64(h) * float64(maxWidth) / float64(w)))
	return maxWidth, max(1, nh)
}

// Resize scales img down to maxWidth with Catmull-Rom interpolation. It
// returns img itself when no scaling is needed.
func Resize(img image.Image, maxWidth int) image.Image {
	b := img.Bounds()
	w, h := TargetSize(b.Dx(), b.Dy(), maxWidth)
	if w == b.Dx() && h == b.Dy() {
		return img
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
