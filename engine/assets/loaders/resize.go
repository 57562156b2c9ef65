package loaders

import (
	"image"

	"github.com/anthonynsimon/bild/transform"
)

// Resize scales img to w x h with a linear filter.
func Resize(img *image.NRGBA, w, h int) *image.NRGBA {
	if b := img.Bounds(); b.Dx() == w && b.Dy() == h {
		return img
	}
	return ToNRGBA(transform.Resize(img, w, h, transform.Linear))
}

// MipChain returns img followed by successively halved levels down to 1x1.
func MipChain(img *image.NRGBA) []*image.NRGBA {
	chain := []*image.NRGBA{img}
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	for w > 1 || h > 1 {
		w, h = max(w/2, 1), max(h/2, 1)
		next := ToNRGBA(transform.Resize(chain[len(chain)-1], w, h, transform.Box))
		chain = append(chain, next)
	}
	return chain
}
