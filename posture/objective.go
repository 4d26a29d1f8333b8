package posture

import (
	"github.com/edaniels/golog"
	"github.com/pkg/errors"

	"github.com/viam-labs/postureopt/identification"
	"github.com/viam-labs/postureopt/referenceframe"
)

// CallKind tags an objective evaluation: a real optimizer step, or a call
// issued purely to estimate a derivative by finite differences. The evaluator
// behaves identically in both cases except for progress recording, which
// gradient probes suppress.
type CallKind int

// The two kinds of objective call.
const (
	Step CallKind = iota
	GradientProbe
)

// Evaluation is the outcome of one objective call.
type Evaluation struct {
	// F is the squared parameter identification error.
	F float64
	// G is the clearance constraint vector, one entry per (posture, unordered
	// link pair); feasible means every entry is strictly positive.
	G []float64
	// Feasible caches whether all of G is strictly positive.
	Feasible bool
}

// Incumbent tracks the best feasible solution seen during one run. Some
// solvers report only their final iterate, not the best point ever visited,
// so the evaluator keeps it itself. It only ever improves: an infeasible or
// worse candidate never overwrites it.
type Incumbent struct {
	f   float64
	x   []float64
	set bool
}

// Best returns the incumbent objective value and solution vector; ok is false
// when no feasible candidate has been seen yet.
func (inc *Incumbent) Best() (float64, []float64, bool) {
	return inc.f, inc.x, inc.set
}

// offer installs the candidate if it is feasible progress.
func (inc *Incumbent) offer(f float64, x []float64) bool {
	if inc.set && f >= inc.f {
		return false
	}
	inc.f = f
	inc.x = append([]float64(nil), x...)
	inc.set = true
	return true
}

// ObjectiveEvaluator is the black-box function handed to the constrained
// optimizer: it scores a full posture vector by how well gravity parameters
// can be identified from it, and reports self-collision clearances as the
// constraint vector.
type ObjectiveEvaluator struct {
	cfg        *Config
	model      *referenceframe.Model
	collisions *CollisionEvaluator
	estimator  *identification.Estimator
	simulate   identification.SimulateFunc
	logger     golog.Logger

	iterCnt   int
	iterMax   int
	incumbent Incumbent
	progress  *ProgressRecorder
}

// NewObjectiveEvaluator wires the evaluator. A nil simulate falls back to the
// built-in static-torque simulation; progress may be nil to disable recording.
// Counters and the incumbent start fresh, scoped to one optimization run.
func NewObjectiveEvaluator(
	cfg *Config,
	model *referenceframe.Model,
	collisions *CollisionEvaluator,
	estimator *identification.Estimator,
	simulate identification.SimulateFunc,
	progress *ProgressRecorder,
	logger golog.Logger,
) *ObjectiveEvaluator {
	if simulate == nil {
		simulate = identification.Simulate
	}
	return &ObjectiveEvaluator{
		cfg:        cfg,
		model:      model,
		collisions: collisions,
		estimator:  estimator,
		simulate:   simulate,
		progress:   progress,
		logger:     logger,
	}
}

// Incumbent returns the best feasible solution tracker.
func (e *ObjectiveEvaluator) Incumbent() *Incumbent {
	return &e.incumbent
}

// Iterations returns how many times Evaluate has been called this run.
func (e *ObjectiveEvaluator) Iterations() int {
	return e.iterCnt
}

// SetIterationBudget records the expected evaluation budget, used only for
// progress reporting.
func (e *ObjectiveEvaluator) SetIterationBudget(n int) {
	e.iterMax = n
}

// Postures reshapes a flat posture-major decision vector into postures, each
// stamped with its hold start time.
func (e *ObjectiveEvaluator) Postures(x []float64) []identification.Posture {
	numDofs := len(e.model.DoF())
	postures := make([]identification.Posture, 0, e.cfg.NumPostures)
	for p := 0; p < e.cfg.NumPostures; p++ {
		postures = append(postures, identification.Posture{
			StartTime: float64(p) * e.cfg.PostureHold,
			Angles:    append([]float64(nil), x[p*numDofs:(p+1)*numDofs]...),
		})
	}
	return postures
}

// Evaluate scores one candidate posture vector. It returns an error when the
// simulate or identify stages fail; the caller is expected to abort the
// solver rather than feed it a fabricated objective value.
func (e *ObjectiveEvaluator) Evaluate(x []float64, kind CallKind) (*Evaluation, error) {
	e.iterCnt++
	if e.iterMax > 0 {
		e.logger.Infof("iter #%d/%d", e.iterCnt, e.iterMax)
	} else {
		e.logger.Infof("iter #%d", e.iterCnt)
	}

	numDofs := len(e.model.DoF())
	if len(x) != e.cfg.NumPostures*numDofs {
		return nil, errors.Errorf("wanted %d design variables, got %d", e.cfg.NumPostures*numDofs, len(x))
	}

	// clearance constraints: every link against every other, in fixed pair
	// order, for every posture
	numLinks := e.model.NumLinks()
	g := make([]float64, 0, NumConstraints(e.cfg.NumPostures, numLinks))
	for p := 0; p < e.cfg.NumPostures; p++ {
		q := x[p*numDofs : (p+1)*numDofs]
		for l0 := 0; l0 < numLinks-1; l0++ {
			for l1 := l0 + 1; l1 < numLinks; l1++ {
				value, err := e.collisions.LinkDistance(q, l0, l1)
				if err != nil {
					return nil, errors.Wrapf(err, "constraint (%d, %d, %d)", p, l0, l1)
				}
				g = append(g, value)
			}
		}
	}

	// simulate holding the candidate postures, then identify from the data
	trajectory, err := identification.NewFixedPostureTrajectory(e.Postures(x))
	if err != nil {
		return nil, err
	}
	data, err := e.simulate(identification.SimulationConfig{
		Gravity:           e.cfg.GravityVector(),
		SamplesPerPosture: e.cfg.SamplesPerPosture,
		TorqueNoiseStd:    e.cfg.TorqueNoiseStd,
		Seed:              e.cfg.Seed,
	}, trajectory, e.model)
	if err != nil {
		return nil, errors.Wrap(err, "simulation failed")
	}
	result, err := e.estimator.Estimate(data)
	if err != nil {
		return nil, errors.Wrap(err, "identification failed")
	}
	f := e.estimator.GravityError(result)

	feasible := true
	for _, value := range g {
		if value <= 0 {
			feasible = false
			break
		}
	}

	if e.progress != nil && kind != GradientProbe {
		e.progress.Append(e.iterCnt, f, feasible)
	}

	if bestF, _, ok := e.incumbent.Best(); ok {
		e.logger.Infof("objective function value: %g (last best: %g)", f, bestF)
	} else {
		e.logger.Infof("objective function value: %g", f)
	}
	if kind == GradientProbe {
		e.logger.Debug("(gradient evaluation)")
	}
	e.logger.Debugf("parameter error: %v", e.estimator.ParamError(result))
	if e.cfg.Verbose {
		e.logger.Debugf("angles: %v", x)
		e.logger.Debugf("constraints (link distances): %v", g)
	}

	if feasible {
		e.incumbent.offer(f, x)
	} else {
		e.logger.Info("constraints not met")
	}

	return &Evaluation{F: f, G: g, Feasible: feasible}, nil
}
