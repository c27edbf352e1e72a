// Package nav implements the perception-driven navigation core: the state
// machine that turns camera frames and marker/code detections into velocity
// commands, and the session runner that drives it.
package nav

import (
	"fmt"
	"image"
	"io"
	"log/slog"
	"math"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/MANTISS02/warehouse-drone/internal/flight"
	"github.com/MANTISS02/warehouse-drone/internal/storage"
	"github.com/MANTISS02/warehouse-drone/internal/vision"
)

// Phase is the behavioral mode of the navigation machine.
type Phase int

const (
	// PhaseFollowing tracks a marker and closes on the stand-off distance.
	PhaseFollowing Phase = iota
	// PhaseScanningCode hunts for the embedded code at the locked marker.
	PhaseScanningCode
	// PhaseRetreating backs away for a fixed duration before resuming.
	PhaseRetreating
)

func (p Phase) String() string {
	switch p {
	case PhaseScanningCode:
		return "scanning"
	case PhaseRetreating:
		return "retreating"
	default:
		return "following"
	}
}

const (
	// markerlessYawSearchAfter is the consecutive markerless frame count
	// that starts the yaw sweep.
	markerlessYawSearchAfter = 5
	// markerlessRetreatAfter is the consecutive markerless frame count
	// that triggers disengagement.
	markerlessRetreatAfter = 10
	// maxCodeRetries bounds consecutive failed code reads at one marker.
	maxCodeRetries = 5
)

// VelocitySink receives body-frame velocity commands.
type VelocitySink interface {
	SetVelocityBody(v flight.Velocity) error
}

// Persistence is the slice of the store the machine writes scan outcomes
// through.
type Persistence interface {
	FindItem(code string) (*storage.Item, error)
	AddItem(code, name, shelf, position string) (*storage.Item, error)
	RecordScan(operation string, itemID *int64, result, sessionUUID string) error
}

// Notifier accepts status text for best-effort delivery.
type Notifier interface {
	Enqueue(text string)
}

// Deps are the external collaborators the machine consumes.
type Deps struct {
	Detector vision.Detector
	Solver   vision.PoseSolver
	Decoder  vision.Decoder
	Velocity VelocitySink
	Store    Persistence
	Notifier Notifier
}

// WithLogger sets the machine's logger.
func WithLogger(logger *slog.Logger) func(*Machine) {
	return func(m *Machine) {
		m.logger = logger.With(slog.String("component", "nav"))
	}
}

// WithClock overrides the machine's time source, for tests.
func WithClock(now func() time.Time) func(*Machine) {
	return func(m *Machine) {
		m.now = now
	}
}

// WithSleep overrides the stabilization sleep, for tests.
func WithSleep(sleep func(time.Duration)) func(*Machine) {
	return func(m *Machine) {
		m.sleep = sleep
	}
}

type yawSearchState struct {
	Active    bool
	Angle     float64
	Direction float64 // +1 sweeps toward the upper bound, -1 toward the lower
}

type scanDirection int

const (
	scanUp scanDirection = iota
	scanDown
)

// Machine is the navigation state machine. It consumes one frame at a
// time on a single goroutine, emits velocity commands, and records scan
// outcomes. Persistence and notification failures never change its phase.
type Machine struct {
	profile   SpeedProfile
	camera    *vision.CameraModel
	locations map[int]Location
	sessionID string

	detector vision.Detector
	solver   vision.PoseSolver
	decoder  vision.Decoder
	velocity VelocitySink
	store    Persistence
	notifier Notifier

	logger *slog.Logger
	now    func() time.Time
	sleep  func(time.Duration)

	phase   Phase
	lock    LockState
	results *Results

	framesWithoutMarker int
	lastControl         time.Time
	yawSearch           yawSearchState
	retreatStart        time.Time
	retryCount          int

	scanHeight float64
	scanDir    scanDirection

	lastConfidence float64
	lastDistance   float64
	lastCorners    vision.Quad
}

// NewMachine creates a navigation machine. The location map is treated as
// immutable; BeginFlight must be called before the first Step.
func NewMachine(profile SpeedProfile, camera *vision.CameraModel, locations map[int]Location, sessionID string, deps Deps, options ...func(*Machine)) *Machine {
	m := Machine{
		profile:   profile,
		camera:    camera,
		locations: locations,
		sessionID: sessionID,
		detector:  deps.Detector,
		solver:    deps.Solver,
		decoder:   deps.Decoder,
		velocity:  deps.Velocity,
		store:     deps.Store,
		notifier:  deps.Notifier,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:       time.Now,
		sleep:     time.Sleep,
	}
	for _, option := range options {
		option(&m)
	}
	return &m
}

// BeginFlight resets the machine for a new session and returns the
// results aggregate the session runner will finalize.
func (m *Machine) BeginFlight(now time.Time) *Results {
	m.phase = PhaseFollowing
	m.lock.Release()
	m.framesWithoutMarker = 0
	m.lastControl = time.Time{}
	m.yawSearch = yawSearchState{Active: true, Direction: 1}
	m.retryCount = 0
	m.results = NewResults(now)
	return m.results
}

// Phase returns the current behavioral mode.
func (m *Machine) Phase() Phase {
	return m.phase
}

// Step processes one camera frame. The returned error is reserved for
// velocity-link failures; perception and persistence problems are logged
// and absorbed.
func (m *Machine) Step(frame *image.Gray) error {
	switch m.phase {
	case PhaseRetreating:
		return m.stepRetreat()
	case PhaseScanningCode:
		return m.stepScan(frame)
	default:
		return m.stepFollow(frame)
	}
}

func (m *Machine) stepFollow(frame *image.Gray) error {
	markers, err := m.detector.Detect(frame)
	if err != nil {
		m.logger.Warn("detecting markers", slog.String("error", err.Error()))
	}

	valid := markers[:0:0]
	for _, mk := range markers {
		if mk.Confidence() < m.profile.ConfidenceThreshold {
			continue
		}
		if m.results.HasMarker(mk.ID) {
			continue
		}
		valid = append(valid, mk)
	}

	if len(valid) == 0 {
		return m.markerlessFrame()
	}

	selected, ok := m.selectMarker(valid)
	if !ok {
		// Locked marker briefly out of sight, hold off this frame.
		return nil
	}

	m.framesWithoutMarker = 0
	if m.yawSearch.Active {
		m.yawSearch.Active = false
		m.logger.Debug("marker acquired, yaw search off")
	}
	m.lastConfidence = selected.Confidence()
	m.lastCorners = selected.Corners

	translation, solved, err := m.solver.Solve(m.camera.ObjectPoints(), selected.Corners, m.camera)
	if err != nil {
		m.logger.Warn("solving pose", slog.Int("marker", selected.ID), slog.String("error", err.Error()))
		return nil
	}
	if !solved {
		return nil
	}

	distance := r3.Norm(translation)
	m.lastDistance = distance

	bounds := frame.Bounds()
	frameW, frameH := float64(bounds.Dx()), float64(bounds.Dy())
	center := selected.Corners.Centroid()

	atDistance := math.Abs(distance-m.profile.TargetDistance) <= m.profile.DistanceThreshold
	centered := math.Abs(center.X-frameW/2) < m.profile.PreciseCenterThreshold &&
		math.Abs(center.Y-frameH/2) < m.profile.PreciseCenterThreshold

	if atDistance && centered {
		m.logger.Info("marker centered at stand-off distance, stabilizing",
			slog.Int("marker", selected.ID), slog.Float64("distance", distance))
		if err := m.velocity.SetVelocityBody(flight.Hover); err != nil {
			return fmt.Errorf("holding position: %w", err)
		}
		m.sleep(m.profile.StabilizationTime)
		m.enterScan()
		return nil
	}

	now := m.now()
	if now.Sub(m.lastControl) < m.profile.ControlDelay {
		return nil
	}

	v := controlCommand(&m.profile, frameW, frameH, center, distance)
	m.lastControl = now
	if err := m.velocity.SetVelocityBody(v); err != nil {
		return fmt.Errorf("sending velocity command: %w", err)
	}
	return nil
}

// selectMarker picks the marker to track among valid candidates: the
// locked one when visible, otherwise the nearest by pose translation norm.
// ok is false when the lock is held but its marker is briefly missing.
func (m *Machine) selectMarker(valid []vision.Marker) (vision.Marker, bool) {
	if m.lock.Locked {
		for _, mk := range valid {
			if mk.ID == m.lock.ID {
				m.lock.Seen()
				return mk, true
			}
		}
		if !m.lock.Miss(m.profile.MaxLostFrames) {
			return vision.Marker{}, false
		}
		m.logger.Info("locked marker lost, releasing lock")
	}

	best := 0
	bestDistance := math.Inf(1)
	for i, mk := range valid {
		translation, solved, err := m.solver.Solve(m.camera.ObjectPoints(), mk.Corners, m.camera)
		if err != nil {
			m.logger.Warn("solving pose for candidate",
				slog.Int("marker", mk.ID), slog.String("error", err.Error()))
			continue
		}
		if !solved {
			continue
		}
		if d := r3.Norm(translation); d < bestDistance {
			bestDistance = d
			best = i
		}
	}

	m.lock.Acquire(valid[best].ID, m.now())
	m.logger.Info("locked new marker", slog.Int("marker", valid[best].ID))
	return valid[best], true
}

// markerlessFrame handles a frame with no usable marker while following:
// after five such frames the yaw sweep kicks in, after ten the machine
// disengages.
func (m *Machine) markerlessFrame() error {
	m.framesWithoutMarker++

	if m.framesWithoutMarker > markerlessRetreatAfter {
		m.logger.Info("marker lost, disengaging",
			slog.Int("framesWithoutMarker", m.framesWithoutMarker))
		m.yawSearch.Active = false
		return m.enterRetreat()
	}

	if m.framesWithoutMarker > markerlessYawSearchAfter && m.yawSearch.Active {
		now := m.now()
		if now.Sub(m.lastControl) < m.profile.ControlDelay {
			return nil
		}

		yawRate := m.yawSearch.Direction * m.profile.YawSpeed
		if err := m.velocity.SetVelocityBody(flight.Velocity{YawRate: yawRate}); err != nil {
			return fmt.Errorf("sending yaw search command: %w", err)
		}

		m.yawSearch.Angle += m.yawSearch.Direction * m.profile.SearchYawRate * m.profile.ControlDelay.Seconds()
		if m.yawSearch.Angle >= m.profile.SearchYawMax || m.yawSearch.Angle <= m.profile.SearchYawMin {
			m.yawSearch.Direction = -m.yawSearch.Direction
			m.logger.Debug("yaw search bound reached, reversing",
				slog.Float64("angle", m.yawSearch.Angle))
		}
		m.lastControl = now
	}
	return nil
}

func (m *Machine) enterScan() {
	m.phase = PhaseScanningCode
	m.scanHeight = m.profile.MinHeight
	m.scanDir = scanUp
	m.retryCount = 0
}

type scanOutcome int

const (
	outcomeStored scanOutcome = iota
	outcomeDuplicate
	outcomeInvalidFormat
	outcomeInvalidLocation
	outcomeStoreFailed
)

func (m *Machine) stepScan(frame *image.Gray) error {
	text, _, found, err := vision.DecodeBest(m.decoder, frame)
	if err != nil {
		m.logger.Warn("decoding code", slog.String("error", err.Error()))
	}

	if !found {
		return m.scanSweep()
	}

	m.results.TotalAttempts++
	m.logger.Info("code decoded", slog.String("text", text))

	switch m.processCode(text) {
	case outcomeStored, outcomeDuplicate:
		return m.enterRetreat()
	default:
		m.retryCount++
		if m.retryCount >= maxCodeRetries {
			m.logger.Warn("giving up on code after repeated failures",
				slog.Int("attempts", m.retryCount))
			return m.enterRetreat()
		}
		return nil
	}
}

// scanSweep oscillates vertically while no code resolves: up at full
// vertical speed to the search ceiling, down at half speed back to the
// initial height.
func (m *Machine) scanSweep() error {
	now := m.now()
	if now.Sub(m.lastControl) < m.profile.ControlDelay {
		return nil
	}

	var vz float64
	switch m.scanDir {
	case scanDown:
		if m.scanHeight <= m.profile.MinHeight {
			m.scanDir = scanUp
			vz = m.profile.VerticalSpeed
		} else {
			vz = -m.profile.VerticalSpeed * 0.5
		}
	default:
		if m.scanHeight >= m.profile.MaxSearchHeight {
			m.scanDir = scanDown
			vz = -m.profile.VerticalSpeed * 0.5
		} else {
			vz = m.profile.VerticalSpeed
		}
	}

	if err := m.velocity.SetVelocityBody(flight.Velocity{VZ: vz}); err != nil {
		return fmt.Errorf("sending search sweep command: %w", err)
	}
	m.scanHeight += vz * m.profile.ControlDelay.Seconds()
	m.lastControl = now
	return nil
}

// processCode classifies and persists one decoded payload. Store failures
// are absorbed into the outcome; they never abort the flight.
func (m *Machine) processCode(raw string) scanOutcome {
	if m.results.HasCode(raw) {
		m.logger.Info("code already scanned this session")
		m.markScanned(raw)
		return outcomeDuplicate
	}

	location, mapped := m.locations[m.lock.ID]
	if !m.lock.Locked || !mapped {
		m.logger.Warn("no location for scanned code", slog.Int("marker", m.lock.ID))
		m.notify("Could not resolve a location for the scanned code")
		m.recordScan(nil, "invalid_location: "+raw)
		m.results.CodeFailed(raw)
		return outcomeInvalidLocation
	}

	payload, err := ParsePayload(raw)
	if err != nil {
		m.logger.Warn("parsing payload", slog.String("error", err.Error()))
		m.notify("Scanned code is missing required fields")
		m.recordScan(nil, "invalid_format: "+raw)
		m.results.CodeFailed(raw)
		return outcomeInvalidFormat
	}

	existing, err := m.store.FindItem(payload.Code)
	if err != nil {
		m.logger.Error("looking up item", slog.String("error", err.Error()))
		m.results.CodeFailed(raw)
		return outcomeStoreFailed
	}
	if existing != nil {
		m.logger.Info("item already stored", slog.String("code", existing.QRCode))
		m.notify(fmt.Sprintf("Item %s (%s) already stored at %s, %s",
			existing.QRCode, existing.Name, existing.Shelf, existing.Position))
		m.markScanned(raw)
		return outcomeDuplicate
	}

	item, err := m.store.AddItem(payload.Code, payload.Name, location.ShelfLabel(), location.PositionLabel())
	if err != nil {
		m.logger.Error("storing item", slog.String("error", err.Error()))
		m.notify("Failed to store the scanned item")
		m.results.CodeFailed(raw)
		return outcomeStoreFailed
	}

	m.recordScan(&item.ID, "success")
	m.markScanned(raw)
	m.notify(fmt.Sprintf("New item %s (%s) stored at %s, %s (marker %d)",
		item.QRCode, item.Name, item.Shelf, item.Position, m.lock.ID))
	return outcomeStored
}

// markScanned records a successful code outcome and retires the locked
// marker from future candidate selection.
func (m *Machine) markScanned(raw string) {
	m.results.CodeScanned(raw)
	m.results.SuccessfulScans++
	if m.lock.Locked {
		m.results.MarkerScanned(m.lock.ID)
	}
	m.retryCount = 0
}

func (m *Machine) enterRetreat() error {
	m.phase = PhaseRetreating
	m.retreatStart = m.now()
	m.logger.Info("retreat started")
	if err := m.velocity.SetVelocityBody(flight.Velocity{VY: -m.profile.RetreatSpeed}); err != nil {
		return fmt.Errorf("sending retreat command: %w", err)
	}
	return nil
}

// stepRetreat keeps backing away until the configured wall-clock duration
// has elapsed, regardless of what the camera sees.
func (m *Machine) stepRetreat() error {
	if m.now().Sub(m.retreatStart) < m.profile.RetreatTime {
		if err := m.velocity.SetVelocityBody(flight.Velocity{VY: -m.profile.RetreatSpeed}); err != nil {
			return fmt.Errorf("sending retreat command: %w", err)
		}
		return nil
	}

	if err := m.velocity.SetVelocityBody(flight.Hover); err != nil {
		return fmt.Errorf("holding position: %w", err)
	}

	m.lock.Release()
	m.framesWithoutMarker = 0
	m.retryCount = 0
	m.yawSearch = yawSearchState{Active: true, Direction: 1}
	m.phase = PhaseFollowing
	m.logger.Info("retreat complete, resuming search")
	return nil
}

func (m *Machine) notify(text string) {
	if m.notifier != nil {
		m.notifier.Enqueue(text)
	}
}

func (m *Machine) recordScan(itemID *int64, result string) {
	if err := m.store.RecordScan("scan", itemID, result, m.sessionID); err != nil {
		m.logger.Error("recording scan event", slog.String("error", err.Error()))
	}
}

// Status is a read-only snapshot of the machine for display overlays.
type Status struct {
	Phase          Phase
	YawSearching   bool
	LockedMarker   int
	Locked         bool
	Confidence     float64
	Distance       float64
	TargetCorners  vision.Quad
	ScannedMarkers []int
	RetreatElapsed time.Duration
	ScanHeight     float64
}

// Status reports the current machine state. Call from the control
// goroutine only.
func (m *Machine) Status() Status {
	s := Status{
		Phase:        m.phase,
		YawSearching: m.yawSearch.Active,
		LockedMarker: m.lock.ID,
		Locked:       m.lock.Locked,
		Confidence:   m.lastConfidence,
		Distance:     m.lastDistance,
		ScanHeight:   m.scanHeight,
	}
	if m.lock.Locked {
		s.TargetCorners = m.lastCorners
	}
	if m.results != nil {
		s.ScannedMarkers = sortedMarkers(m.results.ScannedMarkers)
	}
	if m.phase == PhaseRetreating {
		s.RetreatElapsed = m.now().Sub(m.retreatStart)
	}
	return s
}
