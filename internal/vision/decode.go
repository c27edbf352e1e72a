package vision

import (
	"errors"
	"image"
)

// blurVariants are the kernel sizes tried in addition to the raw frame.
// Partial motion blur often defeats a decode of the sharp frame while a
// softened copy still resolves.
var blurVariants = []int{5, 7}

// DecodeBest attempts a decode against the raw frame and its blurred
// variants and keeps the result with the largest resolved code region.
// A non-nil error is returned only when no variant decoded and at least
// one decoder call failed.
func DecodeBest(dec Decoder, frame *image.Gray) (string, Quad, bool, error) {
	var (
		bestText   string
		bestRegion Quad
		bestExtent float64
		found      bool
		errs       []error
	)

	try := func(img *image.Gray) {
		text, region, ok, err := dec.Decode(img)
		if err != nil {
			errs = append(errs, err)
			return
		}
		if !ok || text == "" {
			return
		}
		if extent := region.Extent(); !found || extent > bestExtent {
			bestText, bestRegion, bestExtent = text, region, extent
			found = true
		}
	}

	try(frame)
	for _, ksize := range blurVariants {
		try(GaussianBlur(frame, ksize))
	}

	if found {
		return bestText, bestRegion, true, nil
	}
	return "", Quad{}, false, errors.Join(errs...)
}
