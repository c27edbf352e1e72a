package app

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"

	"github.com/MANTISS02/warehouse-drone/internal/nav"
	"github.com/MANTISS02/warehouse-drone/internal/vision"
)

// Config represents the main application configuration.
type Config struct {
	Settings      Settings               `yaml:"settings"`
	Speeds        SpeedsConfig           `yaml:"speeds"`
	Camera        CameraConfig           `yaml:"camera"`
	Flight        FlightConfig           `yaml:"flight"`
	Locations     map[int]LocationConfig `yaml:"locations"`
	Storage       StorageConfig          `yaml:"storage"`
	Notifications NotificationsConfig    `yaml:"notifications"`
	HUD           HUDConfig              `yaml:"hud"`
}

// Settings represents global application settings.
type Settings struct {
	LogLevel string `yaml:"logLevel"`
}

// Level parses the configured log level, defaulting to info.
func (s Settings) Level() (slog.Level, error) {
	if s.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(s.LogLevel)); err != nil {
		return 0, fmt.Errorf("parsing log level %q: %w", s.LogLevel, err)
	}
	return level, nil
}

// SpeedsConfig tunes the navigation machine. Durations are in seconds.
type SpeedsConfig struct {
	MaxSpeed               float64 `yaml:"maxSpeed"`
	MinSpeed               float64 `yaml:"minSpeed"`
	TargetDistance         float64 `yaml:"targetDistance"`
	DistanceThreshold      float64 `yaml:"distanceThreshold"`
	YawSpeed               float64 `yaml:"yawSpeed"`
	CenteringSpeed         float64 `yaml:"centeringSpeed"`
	VerticalSpeed          float64 `yaml:"verticalSpeed"`
	CenterThreshold        float64 `yaml:"centerThreshold"`
	PreciseCenterThreshold float64 `yaml:"preciseCenterThreshold"`
	ControlDelay           float64 `yaml:"controlDelay"`
	StabilizationTime      float64 `yaml:"stabilizationTime"`
	RetreatSpeed           float64 `yaml:"retreatSpeed"`
	RetreatTime            float64 `yaml:"retreatTime"`
	MinHeight              float64 `yaml:"minHeight"`
	MaxSearchHeight        float64 `yaml:"maxSearchHeight"`
	ConfidenceThreshold    float64 `yaml:"confidenceThreshold"`
	MaxLostFrames          int     `yaml:"maxLostFrames"`
	SearchYawMin           float64 `yaml:"searchYawMin"`
	SearchYawMax           float64 `yaml:"searchYawMax"`
	SearchYawRate          float64 `yaml:"searchYawRate"`
}

// Profile converts the YAML tuning to the machine's speed profile.
func (c SpeedsConfig) Profile() nav.SpeedProfile {
	return nav.SpeedProfile{
		MaxSpeed:               c.MaxSpeed,
		MinSpeed:               c.MinSpeed,
		TargetDistance:         c.TargetDistance,
		DistanceThreshold:      c.DistanceThreshold,
		YawSpeed:               c.YawSpeed,
		CenteringSpeed:         c.CenteringSpeed,
		VerticalSpeed:          c.VerticalSpeed,
		CenterThreshold:        c.CenterThreshold,
		PreciseCenterThreshold: c.PreciseCenterThreshold,
		ControlDelay:           secondsToDuration(c.ControlDelay),
		StabilizationTime:      secondsToDuration(c.StabilizationTime),
		RetreatSpeed:           c.RetreatSpeed,
		RetreatTime:            secondsToDuration(c.RetreatTime),
		MinHeight:              c.MinHeight,
		MaxSearchHeight:        c.MaxSearchHeight,
		ConfidenceThreshold:    c.ConfidenceThreshold,
		MaxLostFrames:          c.MaxLostFrames,
		SearchYawMin:           c.SearchYawMin,
		SearchYawMax:           c.SearchYawMax,
		SearchYawRate:          c.SearchYawRate,
	}
}

// CameraConfig carries the static camera calibration.
type CameraConfig struct {
	FrameWidth  int         `yaml:"frameWidth"`
	FrameHeight int         `yaml:"frameHeight"`
	MarkerSize  float64     `yaml:"markerSize"`
	Intrinsics  [][]float64 `yaml:"intrinsics"`
	DistCoeffs  []float64   `yaml:"distCoeffs"`
}

// Model builds the immutable camera model from the calibration.
func (c CameraConfig) Model() (*vision.CameraModel, error) {
	if len(c.Intrinsics) != 3 {
		return nil, fmt.Errorf("camera intrinsics must have 3 rows, got %d", len(c.Intrinsics))
	}
	data := make([]float64, 0, 9)
	for i, row := range c.Intrinsics {
		if len(row) != 3 {
			return nil, fmt.Errorf("camera intrinsics row %d must have 3 columns, got %d", i, len(row))
		}
		data = append(data, row...)
	}
	return vision.NewCameraModel(mat.NewDense(3, 3, data), c.DistCoeffs, c.MarkerSize)
}

// FlightConfig tunes the session runner. Durations are in seconds.
type FlightConfig struct {
	TakeoffHeight float64 `yaml:"takeoffHeight"`
	ReturnHeight  float64 `yaml:"returnHeight"`
	ReturnTimeout float64 `yaml:"returnTimeout"`
}

// LocationConfig maps one marker id to a shelf/position slot.
type LocationConfig struct {
	Shelf    string `yaml:"shelf"`
	Position string `yaml:"position"`
}

// StorageConfig represents storage settings.
type StorageConfig struct {
	DataDirectory string `yaml:"dataDirectory"`
	DatabaseFile  string `yaml:"databaseFile"`
}

// NotificationsConfig represents the outbound queue settings.
type NotificationsConfig struct {
	Buffer int `yaml:"buffer"`
}

// HUDConfig represents the overlay snapshot settings.
type HUDConfig struct {
	Enabled         bool   `yaml:"enabled"`
	FontFile        string `yaml:"fontFile"`
	OutputDirectory string `yaml:"outputDirectory"`
	Every           int    `yaml:"every"`
}

// DefaultConfig returns the configuration the airframe was calibrated
// with; a YAML file overrides individual fields.
func DefaultConfig() *Config {
	return &Config{
		Settings: Settings{LogLevel: "info"},
		Speeds: SpeedsConfig{
			MaxSpeed:               0.18,
			MinSpeed:               0.10,
			TargetDistance:         1.35,
			DistanceThreshold:      0.05,
			YawSpeed:               0.10,
			CenteringSpeed:         0.12,
			VerticalSpeed:          0.09,
			CenterThreshold:        70,
			PreciseCenterThreshold: 70,
			ControlDelay:           0.8,
			StabilizationTime:      5.0,
			RetreatSpeed:           0.2,
			RetreatTime:            3.0,
			MinHeight:              0.4,
			MaxSearchHeight:        2.0,
			ConfidenceThreshold:    0.65,
			MaxLostFrames:          15,
			SearchYawMin:           -45,
			SearchYawMax:           45,
			SearchYawRate:          15,
		},
		Camera: CameraConfig{
			FrameWidth:  640,
			FrameHeight: 480,
			MarkerSize:  0.1,
			Intrinsics: [][]float64{
				{921.170702, 0, 459.904354},
				{0, 919.018377, 351.238301},
				{0, 0, 1},
			},
			DistCoeffs: []float64{0, 0, 0, 0, 0},
		},
		Flight: FlightConfig{
			TakeoffHeight: 0.95,
			ReturnHeight:  0.8,
			ReturnTimeout: 10,
		},
		Locations: map[int]LocationConfig{
			0: {Shelf: "1", Position: "2"},
			1: {Shelf: "1", Position: "1"},
			2: {Shelf: "1", Position: "2"},
			3: {Shelf: "1", Position: "1"},
			4: {Shelf: "2", Position: "3"},
		},
		Storage: StorageConfig{
			DataDirectory: "data",
			DatabaseFile:  "warehouse.db",
		},
		Notifications: NotificationsConfig{Buffer: 64},
		HUD: HUDConfig{
			OutputDirectory: "snapshots",
			Every:           30,
		},
	}
}

// LoadConfig reads the YAML configuration at path on top of the defaults.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading configuration: %w", err)
	}
	if err = yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	profile := config.Speeds.Profile()
	if err = profile.Validate(); err != nil {
		return nil, fmt.Errorf("invalid speeds configuration: %w", err)
	}
	if len(config.Locations) == 0 {
		return nil, fmt.Errorf("at least one marker location is required")
	}
	return config, nil
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
