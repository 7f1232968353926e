package segment

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
)

// cutout keeps the pixels of src under mask and makes the rest transparent.
func cutout(src image.Image, mask *image.Alpha) (*image.NRGBA, error) {
	b := src.Bounds()
	if mask.Bounds().Dx() != b.Dx() || mask.Bounds().Dy() != b.Dy() {
		return nil, fmt.Errorf("mask is %dx%d, image is %dx%d", mask.Bounds().Dx(), mask.Bounds().Dy(), b.Dx(), b.Dy())
	}
	full := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(full, full.Bounds(), src, b.Min, draw.Src)
	out := image.NewNRGBA(full.Bounds())
	mb := mask.Bounds()
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			if mask.AlphaAt(mb.Min.X+x, mb.Min.Y+y).A == 0 {
				continue
			}
			c := full.NRGBAAt(x, y)
			out.SetNRGBA(x, y, color.NRGBA{R: c.R, G: c.G, B: c.B, A: 255})
		}
	}
	return out, nil
}
