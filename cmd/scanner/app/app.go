// Package app wires the scanner's collaborators together and runs one
// scanning session.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/MANTISS02/warehouse-drone/internal/flight"
	"github.com/MANTISS02/warehouse-drone/internal/hud"
	"github.com/MANTISS02/warehouse-drone/internal/nav"
	"github.com/MANTISS02/warehouse-drone/internal/notify"
	"github.com/MANTISS02/warehouse-drone/internal/storage"
	"github.com/MANTISS02/warehouse-drone/internal/vision"
)

// Collaborators are the hardware- and transport-facing pieces the
// application is handed by main. Everything else is built from the
// configuration.
type Collaborators struct {
	Drone    flight.Controller
	Camera   flight.FrameSource
	Detector vision.Detector
	Solver   vision.PoseSolver
	Decoder  vision.Decoder
	Sender   notify.Sender
}

// Run executes one scanning session end to end: it opens the store,
// starts a session record, launches the notification dispatcher, and
// drives the flight until ctx is cancelled or the flight ends.
func Run(ctx context.Context, config *Config, logger *slog.Logger, c Collaborators) error {
	camera, err := config.Camera.Model()
	if err != nil {
		return fmt.Errorf("building camera model: %w", err)
	}

	store, err := storage.New(filepath.Join(config.Storage.DataDirectory, config.Storage.DatabaseFile))
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer func() {
		if cErr := store.Close(); cErr != nil {
			logger.Error("closing store", slog.String("error", cErr.Error()))
		}
	}()

	sessionID := uuid.NewString()
	if err = store.StartSession(sessionID); err != nil {
		return fmt.Errorf("starting session: %w", err)
	}
	logger.Info("session started", slog.String("session", sessionID))

	sender := c.Sender
	if sender == nil {
		sender = notify.LogSender(logger)
	}
	dispatcher := notify.NewDispatcher(sender,
		notify.WithBuffer(config.Notifications.Buffer),
		notify.WithLogger(logger))

	// The dispatcher outlives the flight context so the final summary is
	// delivered after the runner returns.
	notifyCtx, stopNotify := context.WithCancel(context.Background())
	dispatcher.Start(notifyCtx)
	defer func() {
		stopNotify()
		dispatcher.Wait()
	}()

	locations := make(map[int]nav.Location, len(config.Locations))
	for id, loc := range config.Locations {
		locations[id] = nav.Location{Shelf: loc.Shelf, Position: loc.Position}
	}

	machine := nav.NewMachine(config.Speeds.Profile(), camera, locations, sessionID, nav.Deps{
		Detector: c.Detector,
		Solver:   c.Solver,
		Decoder:  c.Decoder,
		Velocity: c.Drone,
		Store:    store,
		Notifier: dispatcher,
	}, nav.WithLogger(logger))

	options := []func(*nav.Runner){
		nav.WithRunnerLogger(logger),
		nav.WithTakeoffHeight(config.Flight.TakeoffHeight),
		nav.WithReturnHeight(config.Flight.ReturnHeight),
		nav.WithReturnTimeout(secondsToDuration(config.Flight.ReturnTimeout)),
	}

	if config.HUD.Enabled {
		annotator, err := hud.New(config.HUD.FontFile)
		if err != nil {
			return fmt.Errorf("creating overlay annotator: %w", err)
		}
		snapshotter, err := hud.NewSnapshotter(annotator, config.HUD.OutputDirectory, config.HUD.Every,
			hud.WithSnapshotLogger(logger))
		if err != nil {
			return fmt.Errorf("creating snapshotter: %w", err)
		}
		options = append(options, nav.WithFrameObserver(snapshotter))
	}

	runner := nav.NewRunner(machine, c.Drone, c.Camera, store, dispatcher, sessionID, options...)
	return runner.Run(ctx)
}
