package radar

import (
	"math"
	"time"

	"signal-hud.klederson.com/internal/config"
)

// Sweep is the rotating highlight drawn around the local node.
type Sweep struct {
	Angle float64 // radians [0, 2π)

	start time.Time
	rpm   float64
	trail float64 // radians
}

func NewSweep(now time.Time) *Sweep {
	return &Sweep{
		start: now,
		rpm:   config.SweepSpeedRPM,
		trail: config.SweepTrailDeg * math.Pi / 180,
	}
}

// Update advances the angle to the given instant.
func (s *Sweep) Update(now time.Time) {
	elapsed := now.Sub(s.start).Seconds()
	s.Angle = NormalizeAngle(elapsed * s.rpm / 60 * 2 * math.Pi)
}

func (s *Sweep) Degrees() float64 {
	return s.Angle * 180 / math.Pi
}

// Intensity is 1 at the sweep head, falling linearly to 0 at the end of the
// trail. A nil Sweep has no intensity anywhere.
func (s *Sweep) Intensity(angle float64) float64 {
	if s == nil {
		return 0
	}
	behind := NormalizeAngle(s.Angle - angle)
	if behind > s.trail {
		return 0
	}
	return 1 - behind/s.trail
}
