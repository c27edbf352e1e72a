package vision

import (
	"image"
	"image/color"
	"math"
)

// GaussianBlur returns a blurred copy of the frame using a separable
// Gaussian kernel of the given odd size. Sigma is derived from the kernel
// size the same way OpenCV does when none is given, so decode behavior
// matches the blur variants the decoder was tuned against.
func GaussianBlur(src *image.Gray, ksize int) *image.Gray {
	if ksize < 3 || ksize%2 == 0 {
		return src
	}

	kernel := gaussianKernel(ksize)
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	radius := ksize / 2

	tmp := image.NewGray(bounds)
	dst := image.NewGray(bounds)

	// Horizontal pass
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var sum float64
			for k := -radius; k <= radius; k++ {
				sx := clampInt(x+k, 0, w-1)
				sum += kernel[k+radius] * float64(src.GrayAt(bounds.Min.X+sx, bounds.Min.Y+y).Y)
			}
			tmp.SetGray(bounds.Min.X+x, bounds.Min.Y+y, grayOf(sum))
		}
	}

	// Vertical pass
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var sum float64
			for k := -radius; k <= radius; k++ {
				sy := clampInt(y+k, 0, h-1)
				sum += kernel[k+radius] * float64(tmp.GrayAt(bounds.Min.X+x, bounds.Min.Y+sy).Y)
			}
			dst.SetGray(bounds.Min.X+x, bounds.Min.Y+y, grayOf(sum))
		}
	}

	return dst
}

func gaussianKernel(ksize int) []float64 {
	sigma := 0.3*(float64(ksize-1)*0.5-1) + 0.8
	radius := ksize / 2

	kernel := make([]float64, ksize)
	var sum float64
	for i := -radius; i <= radius; i++ {
		v := math.Exp(-float64(i*i) / (2 * sigma * sigma))
		kernel[i+radius] = v
		sum += v
	}
	for i := range kernel {
		kernel[i] /= sum
	}
	return kernel
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func grayOf(v float64) color.Gray {
	if v < 0 {
		v = 0
	}
	if v > 255 {
		v = 255
	}
	return color.Gray{Y: uint8(v + 0.5)}
}
