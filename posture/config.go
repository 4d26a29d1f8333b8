// Package posture searches for static robot postures that avoid
// self-collision and maximize the quality of gravity-parameter
// identification, using a constrained nonlinear optimizer over joint angles.
package posture

import (
	"encoding/json"
	"os"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// Defaults for optional tunables.
const (
	defaultNumPostures        = 5
	defaultLocalOptIterations = 10
	defaultSamplesPerPosture  = 10
	defaultPostureHold        = 0.05
)

// AngleRange is a per-joint override of the angle bounds used for optimization,
// tighter than (or replacing) the joint's physical limit.
type AngleRange struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// Config enumerates every recognized tunable of a posture optimization run.
type Config struct {
	// URDF is the path of the robot description file.
	URDF string `json:"urdf"`
	// NumPostures is how many static postures to optimize.
	NumPostures int `json:"num_postures"`
	// Gravity is the world gravity vector; zero means standard gravity -Z.
	Gravity [3]float64 `json:"gravity,omitempty"`

	// IgnoreLinks lists links excluded from all collision checking.
	IgnoreLinks []string `json:"ignore_links,omitempty"`
	// IgnorePairs lists link pairs excluded from collision checking, in either order.
	IgnorePairs [][2]string `json:"ignore_pairs,omitempty"`

	// AngleRanges optionally overrides joint bounds by DoF index; nil entries
	// use the joint's physical limit.
	AngleRanges []*AngleRange `json:"angle_ranges,omitempty"`
	// InitialPostures optionally seeds the initial angle values by posture
	// index; postures without an entry start at zero.
	InitialPostures [][]float64 `json:"initial_postures,omitempty"`

	// LocalOptIterations scales the solver's evaluation budget.
	LocalOptIterations int `json:"local_opt_iterations"`
	// PostureHold is the time each posture is held, in seconds.
	PostureHold float64 `json:"posture_hold"`
	// SamplesPerPosture is how many torque samples the simulation takes per posture.
	SamplesPerPosture int `json:"samples_per_posture"`
	// TorqueNoiseStd is the simulated torque measurement noise.
	TorqueNoiseStd float64 `json:"torque_noise_std"`
	// Seed seeds the simulated measurement noise.
	Seed int64 `json:"seed"`

	// ProgressPlot, when non-empty, is the path of a PNG plot of objective
	// value and feasibility per iteration, written at the end of the run.
	ProgressPlot string `json:"progress_plot,omitempty"`
	// Verbose enables per-evaluation angle and constraint logging.
	Verbose bool `json:"verbose"`
}

// DefaultConfig returns a config with every tunable at its default.
func DefaultConfig() *Config {
	return &Config{
		NumPostures:        defaultNumPostures,
		Gravity:            [3]float64{0, 0, -9.81},
		LocalOptIterations: defaultLocalOptIterations,
		PostureHold:        defaultPostureHold,
		SamplesPerPosture:  defaultSamplesPerPosture,
	}
}

// LoadConfig reads a JSON config file, filling unset tunables with defaults.
func LoadConfig(path string) (*Config, error) {
	//nolint:gosec
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the config for values no run could accept.
func (c *Config) Validate() error {
	if c.NumPostures < 1 {
		return errors.Errorf("num_postures must be at least 1, got %d", c.NumPostures)
	}
	if c.LocalOptIterations < 1 {
		return errors.Errorf("local_opt_iterations must be at least 1, got %d", c.LocalOptIterations)
	}
	if c.PostureHold <= 0 {
		return errors.Errorf("posture_hold must be positive, got %f", c.PostureHold)
	}
	if c.TorqueNoiseStd < 0 {
		return errors.Errorf("torque_noise_std can not be negative, got %f", c.TorqueNoiseStd)
	}
	for i, r := range c.AngleRanges {
		if r != nil && r.Lower > r.Upper {
			return errors.Errorf("angle_ranges[%d] has lower %f above upper %f", i, r.Lower, r.Upper)
		}
	}
	return nil
}

// GravityVector returns the configured gravity as a vector, defaulting to -Z
// standard gravity when unset.
func (c *Config) GravityVector() r3.Vector {
	g := r3.Vector{X: c.Gravity[0], Y: c.Gravity[1], Z: c.Gravity[2]}
	if g.Norm() == 0 {
		return r3.Vector{Z: -9.81}
	}
	return g
}
