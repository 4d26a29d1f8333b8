package identification

import (
	"math/rand"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/viam-labs/postureopt/referenceframe"
)

// SimulationConfig are the tunables of the static-torque simulation.
type SimulationConfig struct {
	// Gravity is the world gravity vector, m/s^2.
	Gravity r3.Vector
	// SamplesPerPosture is how many torque samples are taken while each posture is held.
	SamplesPerPosture int
	// TorqueNoiseStd is the standard deviation of the Gaussian noise added to
	// each simulated torque sample. Zero yields noise-free measurements.
	TorqueNoiseStd float64
	// Seed seeds the measurement noise so repeated simulations of the same
	// trajectory produce identical data.
	Seed int64
}

// TrajectoryData is the raw output of a simulation run: sampled joint
// positions and the torques measured while holding them.
type TrajectoryData struct {
	Times     []float64
	Positions *mat.Dense // one row per sample, one column per joint
	Torques   *mat.Dense // one row per sample, one column per joint
}

// NumSamples returns the number of rows in the data.
func (d *TrajectoryData) NumSamples() int {
	return len(d.Times)
}

// SimulateFunc is the simulation pipeline contract consumed by the optimizer.
type SimulateFunc func(cfg SimulationConfig, traj *FixedPostureTrajectory, model *referenceframe.Model) (*TrajectoryData, error)

// Simulate holds the robot at each posture of the trajectory and samples the
// joint torques required to hold it against gravity, with measurement noise.
// The noise stream is seeded per call, so the function is deterministic.
func Simulate(cfg SimulationConfig, traj *FixedPostureTrajectory, model *referenceframe.Model) (*TrajectoryData, error) {
	if traj == nil {
		return nil, errors.New("nil trajectory")
	}
	dofs := len(model.DoF())
	if traj.DoF() != dofs {
		return nil, errors.Errorf("trajectory has %d dofs, model has %d", traj.DoF(), dofs)
	}
	samples := cfg.SamplesPerPosture
	if samples < 1 {
		samples = 1
	}

	truth := mat.NewVecDense(NumParams(model), TruthParams(model))
	//nolint:gosec
	noise := rand.New(rand.NewSource(cfg.Seed))

	postures := traj.Postures()
	n := len(postures) * samples
	times := make([]float64, 0, n)
	positions := mat.NewDense(n, dofs, nil)
	torques := mat.NewDense(n, dofs, nil)

	row := 0
	for p, posture := range postures {
		regressor, err := GravityRegressor(model, cfg.Gravity, posture.Angles)
		if err != nil {
			return nil, errors.Wrapf(err, "posture %d", p)
		}
		var tau mat.VecDense
		tau.MulVec(regressor, truth)

		hold := traj.Duration() / float64(len(postures))
		for s := 0; s < samples; s++ {
			times = append(times, posture.StartTime+hold*float64(s)/float64(samples))
			positions.SetRow(row, posture.Angles)
			for j := 0; j < dofs; j++ {
				torques.Set(row, j, tau.AtVec(j)+noise.NormFloat64()*cfg.TorqueNoiseStd)
			}
			row++
		}
	}
	return &TrajectoryData{Times: times, Positions: positions, Torques: torques}, nil
}
