// Package flight defines the low-level flight and camera primitives the
// navigation core consumes. Concrete transports (vendor SDK links) live
// with the integration, not here.
package flight

import (
	"context"
	"image"
)

// Velocity is a body-frame velocity command. VX is lateral (right
// positive), VY is forward, VZ is vertical (up positive) and YawRate is
// the rotation rate, all in the units the flight link expects.
type Velocity struct {
	VX      float64
	VY      float64
	VZ      float64
	YawRate float64
}

// Hover is the zero command: hold position.
var Hover = Velocity{}

// Controller is the set of flight primitives the session runner and the
// navigation machine rely on. Implementations are not required to be safe
// for concurrent use; the core calls them from a single goroutine.
type Controller interface {
	Arm() error
	Takeoff() error
	GoToLocalPoint(x, y, z, yaw float64) error
	PointReached() (bool, error)
	SetVelocityBody(v Velocity) error
	Land() error
	Close() error
}

// FrameSource delivers camera frames. NextFrame blocks until a frame is
// available, the context is done, or the source fails. A (nil, nil) return
// means no frame was ready; the caller simply retries.
type FrameSource interface {
	NextFrame(ctx context.Context) (*image.Gray, error)
}
