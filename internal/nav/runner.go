package nav

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/MANTISS02/warehouse-drone/internal/flight"
)

const (
	// pointPollInterval is how often the runner checks whether a
	// commanded point has been reached.
	pointPollInterval = 100 * time.Millisecond
	// defaultReturnTimeout bounds the return-to-launch wait during
	// shutdown; landing proceeds when it expires.
	defaultReturnTimeout = 10 * time.Second
)

// Session terminal statuses.
const (
	StatusCompleted   = "completed"
	StatusInterrupted = "interrupted"
	StatusFailed      = "failed"
)

// SessionStore finalizes the session record.
type SessionStore interface {
	EndSession(sessionUUID, status string, report any) (bool, error)
}

// FrameObserver is called with each processed frame and the machine state
// after the step, outside the failure path of the control loop. Used for
// display overlays.
type FrameObserver interface {
	Observe(frame *image.Gray, status Status)
}

// WithRunnerLogger sets the runner's logger.
func WithRunnerLogger(logger *slog.Logger) func(*Runner) {
	return func(r *Runner) {
		r.logger = logger.With(slog.String("component", "session"))
	}
}

// WithTakeoffHeight sets the start-point height commanded after takeoff.
func WithTakeoffHeight(h float64) func(*Runner) {
	return func(r *Runner) {
		r.takeoffHeight = h
	}
}

// WithReturnHeight sets the height of the return-to-launch point.
func WithReturnHeight(h float64) func(*Runner) {
	return func(r *Runner) {
		r.returnHeight = h
	}
}

// WithReturnTimeout bounds the return-to-launch wait during shutdown.
func WithReturnTimeout(d time.Duration) func(*Runner) {
	return func(r *Runner) {
		if d > 0 {
			r.returnTimeout = d
		}
	}
}

// WithFrameObserver attaches a per-frame observer.
func WithFrameObserver(obs FrameObserver) func(*Runner) {
	return func(r *Runner) {
		r.observer = obs
	}
}

// WithRunnerClock overrides the runner's time source, for tests.
func WithRunnerClock(now func() time.Time) func(*Runner) {
	return func(r *Runner) {
		r.now = now
	}
}

// Runner is the top-level driver of one scanning flight: startup, the
// frame loop, and the guaranteed shutdown/finalization sequence. The
// control loop is single-threaded; the drone and camera are never touched
// from another goroutine.
type Runner struct {
	machine   *Machine
	drone     flight.Controller
	camera    flight.FrameSource
	store     SessionStore
	notifier  Notifier
	sessionID string

	observer FrameObserver
	logger   *slog.Logger
	now      func() time.Time

	takeoffHeight float64
	returnHeight  float64
	returnTimeout time.Duration

	finalize sync.Once
}

// NewRunner creates a session runner.
func NewRunner(machine *Machine, drone flight.Controller, camera flight.FrameSource, store SessionStore, notifier Notifier, sessionID string, options ...func(*Runner)) *Runner {
	r := Runner{
		machine:       machine,
		drone:         drone,
		camera:        camera,
		store:         store,
		notifier:      notifier,
		sessionID:     sessionID,
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:           time.Now,
		takeoffHeight: 0.95,
		returnHeight:  0.8,
		returnTimeout: defaultReturnTimeout,
	}
	for _, option := range options {
		option(&r)
	}
	return &r
}

// Run flies the session to completion. It returns when the context is
// cancelled (external termination), the flight fails, or the frame source
// ends. The landing and session finalization sequence executes exactly
// once on every exit path.
func (r *Runner) Run(ctx context.Context) (err error) {
	results := r.machine.BeginFlight(r.now())

	defer func() {
		status := StatusCompleted
		switch {
		case err != nil:
			results.RecordError(err.Error())
			status = StatusFailed
		case ctx.Err() != nil:
			status = StatusInterrupted
		}
		r.shutdown(status, results)
	}()

	r.notify("Scanning flight started")
	r.logger.Info("starting flight", slog.String("session", r.sessionID))

	if err = r.drone.Arm(); err != nil {
		return fmt.Errorf("arming: %w", err)
	}
	if err = r.drone.Takeoff(); err != nil {
		return fmt.Errorf("taking off: %w", err)
	}
	if err = r.drone.GoToLocalPoint(0, 0, r.takeoffHeight, 0); err != nil {
		return fmt.Errorf("flying to start point: %w", err)
	}
	if err = r.awaitPoint(ctx); err != nil {
		return err
	}

	for {
		if ctx.Err() != nil {
			return nil
		}

		frame, ferr := r.camera.NextFrame(ctx)
		if ferr != nil {
			if errors.Is(ferr, context.Canceled) || errors.Is(ferr, context.DeadlineExceeded) {
				return nil
			}
			// Frame-drop tolerant: a failed read is retried, a late
			// frame is simply processed when it arrives.
			r.logger.Warn("reading frame", slog.String("error", ferr.Error()))
			continue
		}
		if frame == nil {
			continue
		}

		if err = r.machine.Step(frame); err != nil {
			return fmt.Errorf("processing frame: %w", err)
		}

		if r.observer != nil {
			r.observer.Observe(frame, r.machine.Status())
		}
	}
}

// awaitPoint polls until the commanded point is reached or the context is
// cancelled.
func (r *Runner) awaitPoint(ctx context.Context) error {
	for {
		reached, err := r.drone.PointReached()
		if err != nil {
			return fmt.Errorf("checking point reached: %w", err)
		}
		if reached {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(pointPollInterval):
		}
	}
}

// shutdown performs the safe-landing and session finalization sequence.
// The sync.Once makes it run at most once no matter how many exit paths
// race into it; every failure inside is logged and the sequence continues,
// so the session record is always finalized.
func (r *Runner) shutdown(status string, results *Results) {
	r.finalize.Do(func() {
		r.logger.Info("flight ending, returning to launch", slog.String("status", status))
		r.notify("Flight ending, returning to launch point")

		if err := r.drone.SetVelocityBody(flight.Hover); err != nil {
			r.logger.Error("stopping motion", slog.String("error", err.Error()))
		}

		if err := r.drone.GoToLocalPoint(0, 0, r.returnHeight, 0); err != nil {
			r.logger.Error("commanding return point", slog.String("error", err.Error()))
		} else {
			// Bounded wait: land where we are if the return point is not
			// reached in time.
			deadline := r.now().Add(r.returnTimeout)
			for r.now().Before(deadline) {
				reached, err := r.drone.PointReached()
				if err != nil {
					r.logger.Error("checking return point", slog.String("error", err.Error()))
					break
				}
				if reached {
					break
				}
				time.Sleep(pointPollInterval)
			}
		}

		if err := r.drone.Land(); err != nil {
			r.logger.Error("landing", slog.String("error", err.Error()))
		}
		if err := r.drone.Close(); err != nil {
			r.logger.Error("closing flight connection", slog.String("error", err.Error()))
		}

		results.Finalize(r.now())
		report := results.Report()

		if ended, err := r.store.EndSession(r.sessionID, status, report); err != nil {
			r.logger.Error("finalizing session", slog.String("error", err.Error()))
		} else if !ended {
			r.logger.Warn("session already finalized or unknown", slog.String("session", r.sessionID))
		}

		r.notify(results.Summary())
		r.logger.Info("session finalized",
			slog.String("session", r.sessionID),
			slog.String("status", status),
			slog.Int("scanned", len(results.ScannedCodes)))
	})
}

func (r *Runner) notify(text string) {
	if r.notifier != nil {
		r.notifier.Enqueue(text)
	}
}
