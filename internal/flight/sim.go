package flight

import (
	"context"
	"image"
	"io"
	"log/slog"
	"sync/atomic"
	"time"
)

// Simulator implements Controller without hardware. It acknowledges every
// maneuver, integrates nothing, and logs the commands it receives. Used
// for dry-run flights and tests.
type Simulator struct {
	logger *slog.Logger

	armed    bool
	airborne bool
	closed   bool

	// Commands retains every velocity command received, newest last.
	Commands []Velocity
}

// NewSimulator creates a Simulator with a discard logger.
func NewSimulator(options ...func(*Simulator)) *Simulator {
	s := Simulator{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, option := range options {
		option(&s)
	}
	return &s
}

// WithSimLogger sets the logger for the simulator.
func WithSimLogger(logger *slog.Logger) func(*Simulator) {
	return func(s *Simulator) {
		s.logger = logger.With(slog.String("link", "sim"))
	}
}

func (s *Simulator) Arm() error {
	s.armed = true
	s.logger.Info("armed")
	return nil
}

func (s *Simulator) Takeoff() error {
	s.airborne = true
	s.logger.Info("takeoff")
	return nil
}

func (s *Simulator) GoToLocalPoint(x, y, z, yaw float64) error {
	s.logger.Info("go to local point",
		slog.Float64("x", x), slog.Float64("y", y),
		slog.Float64("z", z), slog.Float64("yaw", yaw))
	return nil
}

func (s *Simulator) PointReached() (bool, error) {
	return true, nil
}

func (s *Simulator) SetVelocityBody(v Velocity) error {
	s.Commands = append(s.Commands, v)
	s.logger.Debug("velocity command",
		slog.Float64("vx", v.VX), slog.Float64("vy", v.VY),
		slog.Float64("vz", v.VZ), slog.Float64("yawRate", v.YawRate))
	return nil
}

func (s *Simulator) Land() error {
	s.airborne = false
	s.logger.Info("land")
	return nil
}

func (s *Simulator) Close() error {
	s.closed = true
	s.logger.Info("connection closed")
	return nil
}

// Airborne reports whether the simulated drone is in the air.
func (s *Simulator) Airborne() bool { return s.airborne }

// Closed reports whether the connection has been released.
func (s *Simulator) Closed() bool { return s.closed }

// BlankFrames is a FrameSource producing empty gray frames at a fixed
// rate, for flights without a camera attached.
type BlankFrames struct {
	Width    int
	Height   int
	Interval time.Duration

	count atomic.Int64
}

func (b *BlankFrames) NextFrame(ctx context.Context) (*image.Gray, error) {
	interval := b.Interval
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(interval):
	}
	b.count.Add(1)
	return image.NewGray(image.Rect(0, 0, b.Width, b.Height)), nil
}

// FrameCount returns the number of frames delivered so far.
func (b *BlankFrames) FrameCount() int64 { return b.count.Load() }
