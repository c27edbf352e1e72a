package hud

import (
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/MANTISS02/warehouse-drone/internal/nav"
)

// Snapshotter implements nav.FrameObserver: every N frames it renders the
// overlay and writes a PNG into the output directory. Failures are logged
// and dropped, never surfaced to the control loop.
type Snapshotter struct {
	annotator *Annotator
	dir       string
	every     int
	logger    *slog.Logger

	frameCount int
	saved      int
}

// WithSnapshotLogger sets the snapshotter's logger.
func WithSnapshotLogger(logger *slog.Logger) func(*Snapshotter) {
	return func(s *Snapshotter) {
		s.logger = logger.With(slog.String("component", "hud"))
	}
}

// NewSnapshotter creates a Snapshotter writing every Nth annotated frame
// into dir.
func NewSnapshotter(annotator *Annotator, dir string, every int, options ...func(*Snapshotter)) (*Snapshotter, error) {
	if every <= 0 {
		every = 30
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating snapshot directory: %w", err)
	}

	s := Snapshotter{
		annotator: annotator,
		dir:       dir,
		every:     every,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, option := range options {
		option(&s)
	}
	return &s, nil
}

// Observe renders and saves the frame when its turn comes up.
func (s *Snapshotter) Observe(frame *image.Gray, status nav.Status) {
	s.frameCount++
	if s.frameCount%s.every != 0 {
		return
	}

	img, err := s.annotator.Render(frame, status)
	if err != nil {
		s.logger.Warn("rendering overlay", slog.String("error", err.Error()))
		return
	}

	s.saved++
	path := filepath.Join(s.dir, fmt.Sprintf("frame_%06d.png", s.frameCount))
	if err := savePNG(path, img); err != nil {
		s.logger.Warn("saving snapshot", slog.String("error", err.Error()))
	}
}

// Saved returns the number of snapshots written so far.
func (s *Snapshotter) Saved() int { return s.saved }

func savePNG(path string, img image.Image) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}
	defer func() {
		if cErr := f.Close(); cErr != nil && err == nil {
			err = fmt.Errorf("closing file: %w", cErr)
		}
	}()

	if err = png.Encode(f, img); err != nil {
		return fmt.Errorf("encoding png: %w", err)
	}
	return nil
}
