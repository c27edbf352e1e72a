package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/MANTISS02/warehouse-drone/cmd/scanner/app"
)

func main() {
	configFile := flag.String("c", "config.yaml", "Path to the configuration file")
	dryRun := flag.Bool("dry-run", false, "Fly a simulated session without hardware")
	flag.Parse()

	level := new(slog.LevelVar)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	config, err := app.LoadConfig(*configFile)
	if err != nil {
		logger.Error("loading configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logLevel, err := config.Settings.Level()
	if err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	level.Set(logLevel)

	var collaborators app.Collaborators
	if *dryRun {
		collaborators = app.DryRunCollaborators(config, logger)
	} else {
		// TODO: bind the vendor MAVLink transport and camera stream here
		// once the flight link package lands.
		logger.Error("flight link not configured, use -dry-run",
			slog.String("error", errNoFlightLink.Error()))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, config, logger, collaborators); err != nil {
		logger.Error("session failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

var errNoFlightLink = errors.New("no flight controller transport is wired in this build")
