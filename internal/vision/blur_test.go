package vision

import (
	"image"
	"testing"
)

func TestGaussianBlurPreservesUniformImage(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 16, 16))
	for i := range src.Pix {
		src.Pix[i] = 128
	}

	dst := GaussianBlur(src, 5)
	if dst.Bounds() != src.Bounds() {
		t.Fatalf("bounds changed: %v -> %v", src.Bounds(), dst.Bounds())
	}
	for i, p := range dst.Pix {
		if p != 128 {
			t.Fatalf("pixel %d = %d, want 128", i, p)
		}
	}
}

func TestGaussianBlurSoftensEdge(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 16, 16))
	// Left half black, right half white.
	for y := 0; y < 16; y++ {
		for x := 8; x < 16; x++ {
			src.Pix[y*src.Stride+x] = 255
		}
	}

	dst := GaussianBlur(src, 5)
	at := dst.GrayAt(8, 8).Y
	if at == 0 || at == 255 {
		t.Errorf("edge pixel = %d, want an intermediate value", at)
	}
	// Far from the edge the image is untouched.
	if got := dst.GrayAt(1, 8).Y; got != 0 {
		t.Errorf("left pixel = %d, want 0", got)
	}
	if got := dst.GrayAt(14, 8).Y; got != 255 {
		t.Errorf("right pixel = %d, want 255", got)
	}
}

func TestGaussianBlurRejectsBadKernelSize(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 8, 8))
	if got := GaussianBlur(src, 4); got != src {
		t.Error("even kernel size should return the source unchanged")
	}
	if got := GaussianBlur(src, 1); got != src {
		t.Error("kernel size below 3 should return the source unchanged")
	}
}

func TestGaussianKernelNormalized(t *testing.T) {
	for _, ksize := range blurVariants {
		kernel := gaussianKernel(ksize)
		var sum float64
		for _, v := range kernel {
			sum += v
		}
		if diff := sum - 1.0; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("kernel %d sums to %v, want 1.0", ksize, sum)
		}
	}
}
