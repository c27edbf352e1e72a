package app

import (
	"image"
	"log/slog"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/MANTISS02/warehouse-drone/internal/flight"
	"github.com/MANTISS02/warehouse-drone/internal/vision"
)

// blindDetector sees no markers in any frame.
type blindDetector struct{}

func (blindDetector) Detect(*image.Gray) ([]vision.Marker, error) { return nil, nil }

// blindSolver never resolves a pose.
type blindSolver struct{}

func (blindSolver) Solve([]r3.Vec, vision.Quad, *vision.CameraModel) (r3.Vec, bool, error) {
	return r3.Vec{}, false, nil
}

// blindDecoder never resolves a code.
type blindDecoder struct{}

func (blindDecoder) Decode(*image.Gray) (string, vision.Quad, bool, error) {
	return "", vision.Quad{}, false, nil
}

// DryRunCollaborators builds a full collaborator set with no hardware
// attached: a simulated flight link, a blank frame source, and perception
// stubs that never detect anything. The session runs the takeoff, search
// and landing sequence and finalizes an empty session record.
func DryRunCollaborators(config *Config, logger *slog.Logger) Collaborators {
	return Collaborators{
		Drone: flight.NewSimulator(flight.WithSimLogger(logger)),
		Camera: &flight.BlankFrames{
			Width:    config.Camera.FrameWidth,
			Height:   config.Camera.FrameHeight,
			Interval: 50 * time.Millisecond,
		},
		Detector: blindDetector{},
		Solver:   blindSolver{},
		Decoder:  blindDecoder{},
	}
}
