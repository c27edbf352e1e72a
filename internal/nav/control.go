package nav

import (
	"math"

	"github.com/MANTISS02/warehouse-drone/internal/flight"
	"github.com/MANTISS02/warehouse-drone/internal/vision"
)

// controlCommand converts the marker's pixel offset from frame center and
// the distance error into a body-frame velocity command.
//
// Horizontal axis: outside a quarter-frame deadband the command is a
// full-magnitude yaw plus lateral move toward the marker. Inside it, yaw
// and lateral scale linearly with the offset; the lateral component is
// floored at half its maximum and, while that floor holds, the yaw command
// is halved so the two corrections do not fight each other.
//
// Forward/back is only commanded once the marker is horizontally centered,
// proportional to the distance error with a minimum-speed floor and an
// extra 0.4 damping factor close to the target. A vertical correction
// active near the target also halves the forward command.
func controlCommand(p *SpeedProfile, frameW, frameH float64, center vision.Point, distance float64) flight.Velocity {
	dx := center.X - frameW/2
	dy := center.Y - frameH/2
	distanceError := distance - p.TargetDistance

	var v flight.Velocity

	quarter := frameW / 4
	if math.Abs(dx) > quarter {
		v.YawRate = p.YawSpeed * sign(dx)
		v.VX = p.CenteringSpeed * sign(dx)
	} else {
		ratio := math.Abs(dx) / quarter
		v.YawRate = p.YawSpeed * ratio * sign(dx)

		lateral := p.CenteringSpeed * ratio
		if lateral < p.CenteringSpeed*0.5 {
			lateral = p.CenteringSpeed * 0.5
			v.YawRate *= 0.5
		}
		v.VX = lateral * sign(dx)
	}

	// Image y grows downward, climb to correct a high marker.
	if math.Abs(dy) > p.CenterThreshold {
		v.VZ = -p.VerticalSpeed * sign(dy)
	}

	if math.Abs(dx) < p.CenterThreshold && math.Abs(distanceError) >= p.DistanceThreshold {
		forward := p.MaxSpeed * (math.Abs(distanceError) / p.TargetDistance)
		if forward < p.MinSpeed {
			forward = p.MinSpeed
		}
		if math.Abs(distanceError) < 0.2 {
			forward *= 0.4
		}
		v.VY = forward * sign(distanceError)
	}

	if v.VZ != 0 && distance < p.TargetDistance*1.2 {
		v.VY *= 0.5
	}

	return clampVelocity(p, v)
}

// clampVelocity bounds every axis to its configured maximum.
func clampVelocity(p *SpeedProfile, v flight.Velocity) flight.Velocity {
	v.VX = clamp(v.VX, p.CenteringSpeed)
	v.VY = clamp(v.VY, p.MaxSpeed)
	v.VZ = clamp(v.VZ, p.VerticalSpeed)
	v.YawRate = clamp(v.YawRate, p.YawSpeed)
	return v
}

func clamp(v, bound float64) float64 {
	return math.Max(-bound, math.Min(v, bound))
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
