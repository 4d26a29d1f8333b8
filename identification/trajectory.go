// Package identification closes the simulate-and-identify loop for static
// posture optimization: it holds a robot at fixed postures, samples the joint
// torques needed to hold them against gravity, and estimates the gravity
// parameters (link masses and first moments) from those samples.
package identification

import (
	"github.com/pkg/errors"
)

// Posture is one static joint configuration, held starting at StartTime.
type Posture struct {
	StartTime float64   `json:"start_time"`
	Angles    []float64 `json:"angles"`
}

// FixedPostureTrajectory holds a robot still at a sequence of postures.
// Postures must be ordered by start time and share one angle length.
type FixedPostureTrajectory struct {
	postures []Posture
	dofs     int
}

// NewFixedPostureTrajectory validates and wraps an ordered posture sequence.
func NewFixedPostureTrajectory(postures []Posture) (*FixedPostureTrajectory, error) {
	if len(postures) == 0 {
		return nil, errors.New("trajectory needs at least one posture")
	}
	dofs := len(postures[0].Angles)
	for i, p := range postures {
		if len(p.Angles) != dofs {
			return nil, errors.Errorf("posture %d has %d angles, want %d", i, len(p.Angles), dofs)
		}
		if i > 0 && p.StartTime <= postures[i-1].StartTime {
			return nil, errors.Errorf("posture %d start time %f not after previous", i, p.StartTime)
		}
	}
	return &FixedPostureTrajectory{postures: postures, dofs: dofs}, nil
}

// Postures returns the ordered postures of the trajectory.
func (t *FixedPostureTrajectory) Postures() []Posture {
	return t.postures
}

// DoF returns the number of joint angles per posture.
func (t *FixedPostureTrajectory) DoF() int {
	return t.dofs
}

// At returns the angles held at time tm: the posture with the latest start
// time not after tm, or the first posture for times before it.
func (t *FixedPostureTrajectory) At(tm float64) []float64 {
	angles := t.postures[0].Angles
	for _, p := range t.postures {
		if p.StartTime > tm {
			break
		}
		angles = p.Angles
	}
	return angles
}

// Duration returns the total trajectory duration, assuming the last posture
// is held as long as the spacing between the final two postures. A
// single-posture trajectory is held for one second.
func (t *FixedPostureTrajectory) Duration() float64 {
	last := t.postures[len(t.postures)-1].StartTime
	if len(t.postures) == 1 {
		return last + 1
	}
	hold := last - t.postures[len(t.postures)-2].StartTime
	return last + hold
}
