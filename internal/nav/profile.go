package nav

import (
	"fmt"
	"time"
)

// SpeedProfile is the per-session tuning for the navigation machine.
// Created once at session start and never mutated. Linear speeds are in
// m/s, pixel thresholds in px, angles in degrees.
type SpeedProfile struct {
	MaxSpeed float64 // forward/back speed ceiling
	MinSpeed float64 // forward/back speed floor

	TargetDistance    float64 // stand-off distance to the marker, meters
	DistanceThreshold float64 // acceptable deviation from TargetDistance

	YawSpeed       float64 // yaw rate ceiling
	CenteringSpeed float64 // lateral speed ceiling
	VerticalSpeed  float64 // vertical speed ceiling

	CenterThreshold        float64 // pixel deadband for coarse centering
	PreciseCenterThreshold float64 // pixel bound for the scan handoff

	ControlDelay      time.Duration // minimum interval between commands
	StabilizationTime time.Duration // hold before switching to code scan

	RetreatSpeed float64       // backward speed of the disengage maneuver
	RetreatTime  time.Duration // wall-clock length of the maneuver

	MinHeight       float64 // initial height of the code search sweep
	MaxSearchHeight float64 // sweep ceiling

	ConfidenceThreshold float64 // minimum marker confidence to consider
	MaxLostFrames       int     // lock released after this many misses

	SearchYawMin  float64 // yaw-search lower angle bound
	SearchYawMax  float64 // yaw-search upper angle bound
	SearchYawRate float64 // yaw-search angular rate, deg/s
}

// DefaultSpeedProfile returns the tuning the airframe was calibrated with.
func DefaultSpeedProfile() SpeedProfile {
	return SpeedProfile{
		MaxSpeed:               0.18,
		MinSpeed:               0.10,
		TargetDistance:         1.35,
		DistanceThreshold:      0.05,
		YawSpeed:               0.10,
		CenteringSpeed:         0.12,
		VerticalSpeed:          0.09,
		CenterThreshold:        70,
		PreciseCenterThreshold: 70,
		ControlDelay:           800 * time.Millisecond,
		StabilizationTime:      5 * time.Second,
		RetreatSpeed:           0.2,
		RetreatTime:            3 * time.Second,
		MinHeight:              0.4,
		MaxSearchHeight:        2.0,
		ConfidenceThreshold:    0.65,
		MaxLostFrames:          15,
		SearchYawMin:           -45,
		SearchYawMax:           45,
		SearchYawRate:          15,
	}
}

// Validate reports the first tuning value that cannot work.
func (p *SpeedProfile) Validate() error {
	switch {
	case p.MaxSpeed <= 0:
		return fmt.Errorf("max speed must be positive, got %f", p.MaxSpeed)
	case p.MinSpeed <= 0 || p.MinSpeed > p.MaxSpeed:
		return fmt.Errorf("min speed must be in (0, %f], got %f", p.MaxSpeed, p.MinSpeed)
	case p.TargetDistance <= 0:
		return fmt.Errorf("target distance must be positive, got %f", p.TargetDistance)
	case p.DistanceThreshold <= 0:
		return fmt.Errorf("distance threshold must be positive, got %f", p.DistanceThreshold)
	case p.YawSpeed <= 0 || p.CenteringSpeed <= 0 || p.VerticalSpeed <= 0:
		return fmt.Errorf("axis speeds must be positive")
	case p.ControlDelay <= 0:
		return fmt.Errorf("control delay must be positive, got %s", p.ControlDelay)
	case p.RetreatSpeed <= 0 || p.RetreatTime <= 0:
		return fmt.Errorf("retreat speed and time must be positive")
	case p.MinHeight <= 0 || p.MaxSearchHeight <= p.MinHeight:
		return fmt.Errorf("search heights must satisfy 0 < min < max, got %f..%f", p.MinHeight, p.MaxSearchHeight)
	case p.ConfidenceThreshold <= 0 || p.ConfidenceThreshold > 1:
		return fmt.Errorf("confidence threshold must be in (0, 1], got %f", p.ConfidenceThreshold)
	case p.MaxLostFrames <= 0:
		return fmt.Errorf("max lost frames must be positive, got %d", p.MaxLostFrames)
	case p.SearchYawMin >= p.SearchYawMax:
		return fmt.Errorf("yaw search bounds must satisfy min < max, got %f..%f", p.SearchYawMin, p.SearchYawMax)
	case p.SearchYawRate <= 0:
		return fmt.Errorf("yaw search rate must be positive, got %f", p.SearchYawRate)
	}
	return nil
}
