// Package vision holds the geometric primitives shared by the navigation
// machine and the external perception capabilities (fiducial detection,
// pose solving, code decoding). The capabilities themselves are consumed
// through interfaces; this package does not implement detection algorithms.
package vision

import (
	"fmt"
	"image"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Marker is one detected fiducial in one frame.
type Marker struct {
	ID      int
	Corners Quad
}

// Confidence returns the regularity heuristic for the marker's quad.
func (m Marker) Confidence() float64 {
	return m.Corners.Confidence()
}

// CameraModel carries the static camera calibration and the physical size
// of the fiducial markers. Built once at startup, never mutated.
type CameraModel struct {
	Intrinsics *mat.Dense // 3x3 camera matrix
	DistCoeffs []float64
	MarkerSize float64 // physical marker edge length, meters

	objectPoints []r3.Vec
}

// NewCameraModel validates the calibration and precomputes the physical
// corner points of a marker of the configured size.
func NewCameraModel(intrinsics *mat.Dense, distCoeffs []float64, markerSize float64) (*CameraModel, error) {
	if intrinsics == nil {
		return nil, fmt.Errorf("camera intrinsics are required")
	}
	if r, c := intrinsics.Dims(); r != 3 || c != 3 {
		return nil, fmt.Errorf("camera intrinsics must be 3x3, got %dx%d", r, c)
	}
	if markerSize <= 0 {
		return nil, fmt.Errorf("marker size must be positive, got %f", markerSize)
	}

	half := markerSize / 2
	return &CameraModel{
		Intrinsics: intrinsics,
		DistCoeffs: distCoeffs,
		MarkerSize: markerSize,
		objectPoints: []r3.Vec{
			{X: half, Y: -half},
			{X: -half, Y: -half},
			{X: -half, Y: half},
			{X: half, Y: half},
		},
	}, nil
}

// ObjectPoints returns the marker's corner coordinates in its own physical
// frame, ordered to match the corners a Detector reports.
func (c *CameraModel) ObjectPoints() []r3.Vec {
	return c.objectPoints
}

// Detector finds fiducial markers in a frame.
type Detector interface {
	Detect(frame *image.Gray) ([]Marker, error)
}

// PoseSolver estimates the translation from the camera to a marker given
// the marker's physical corner points and their detected image positions.
// The translation is in the solver's camera frame; only its Euclidean norm
// is treated as load-bearing by the callers.
type PoseSolver interface {
	Solve(objectPoints []r3.Vec, imagePoints Quad, camera *CameraModel) (translation r3.Vec, ok bool, err error)
}

// Decoder reads an embedded code from a frame. found is false when no code
// is present; err reports decoder malfunction, not absence.
type Decoder interface {
	Decode(frame *image.Gray) (text string, region Quad, found bool, err error)
}
