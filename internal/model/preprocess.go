package model

import (
	"image"

	"github.com/nfnt/resize"
)

// Preprocessor turns one image into the float layout a model was exported
// with. Each channel value v in [0,255] becomes (v*Scale - Mean[c]) / Std[c].
type Preprocessor struct {
	Width  int
	Height int
	Layout Layout
	Scale  float32
	Mean   [3]float32
	Std    [3]float32
	// BGR swaps channel order, for models trained on OpenCV-decoded images.
	BGR bool
}

// SampleSize is the number of floats one image occupies.
func (p Preprocessor) SampleSize() int {
	return 3 * p.Width * p.Height
}

// Fill writes img into dst, which must hold SampleSize values. img itself is
// never modified; resizing produces a new image.
func (p Preprocessor) Fill(dst []float32, img image.Image) {
	b := img.Bounds()
	if b.Dx() != p.Width || b.Dy() != p.Height {
		img = resize.Resize(uint(p.Width), uint(p.Height), img, resize.Lanczos3)
		b = img.Bounds()
	}

	plane := p.Width * p.Height
	for y := 0; y < p.Height; y++ {
		for x := 0; x < p.Width; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			ch := [3]float32{float32(r >> 8), float32(g >> 8), float32(bl >> 8)}
			if p.BGR {
				ch[0], ch[2] = ch[2], ch[0]
			}
			for c := 0; c < 3; c++ {
				v := (ch[c]*p.Scale - p.Mean[c]) / p.Std[c]
				pixel := y*p.Width + x
				if p.Layout == LayoutNCHW {
					dst[c*plane+pixel] = v
				} else {
					dst[pixel*3+c] = v
				}
			}
		}
	}
}

func argmax(row []float32) int {
	best := 0
	for i, v := range row {
		if v > row[best] {
			best = i
		}
	}
	return best
}
