package posture

import (
	"context"

	"github.com/edaniels/golog"
	"github.com/go-nlopt/nlopt"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"github.com/viam-labs/postureopt/identification"
	"github.com/viam-labs/postureopt/referenceframe"
)

var errNoSolve = errors.New("optimizer produced no solution and no feasible candidate was seen")

const (
	// finite-difference step for gradient probes
	defaultJump = 1e-8
	// relative objective/variable tolerances handed to the solver
	defaultFtolRel = 1e-9
	defaultXtolRel = 1e-9
	// slack allowed on constraint satisfaction inside the solver
	defaultConstraintTol = 1e-6
)

// PostureOptimizer wires the problem formulation, constraint evaluation, and
// objective into one constrained optimization run.
type PostureOptimizer struct {
	cfg        *Config
	model      *referenceframe.Model
	adjacency  *AdjacencyGraph
	collisions *CollisionEvaluator
	objective  *ObjectiveEvaluator
	progress   *ProgressRecorder
	problem    *Problem
	logger     golog.Logger
}

// NewPostureOptimizer loads the configured URDF and assembles an optimizer
// using the built-in simulate and identify stages.
func NewPostureOptimizer(cfg *Config, logger golog.Logger) (*PostureOptimizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	model, err := referenceframe.ParseURDFFile(cfg.URDF, "")
	if err != nil {
		return nil, err
	}
	return NewPostureOptimizerForModel(cfg, model, nil, logger)
}

// NewPostureOptimizerForModel assembles an optimizer around an existing model.
// A nil simulate uses the built-in static-torque simulation.
func NewPostureOptimizerForModel(
	cfg *Config,
	model *referenceframe.Model,
	simulate identification.SimulateFunc,
	logger golog.Logger,
) (*PostureOptimizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	adjacency := NewAdjacencyGraph(model)
	collisions, err := NewCollisionEvaluator(model, adjacency, cfg, logger)
	if err != nil {
		return nil, err
	}
	problem, err := BuildProblem(cfg, model)
	if err != nil {
		return nil, err
	}
	var progress *ProgressRecorder
	if cfg.ProgressPlot != "" {
		progress = NewProgressRecorder()
	}
	estimator := identification.NewEstimator(model, cfg.GravityVector())
	objective := NewObjectiveEvaluator(cfg, model, collisions, estimator, simulate, progress, logger)
	return &PostureOptimizer{
		cfg:        cfg,
		model:      model,
		adjacency:  adjacency,
		collisions: collisions,
		objective:  objective,
		progress:   progress,
		problem:    problem,
		logger:     logger,
	}, nil
}

// Problem returns the decision-variable and constraint layout of the run.
func (po *PostureOptimizer) Problem() *Problem {
	return po.problem
}

// evalBudget sizes the solver's evaluation cap from the problem dimensions.
// This is solver folklore for gradient-based SQP methods, a tuning knob
// rather than a guaranteed bound.
func evalBudget(numVars, numConstraints, localIterations int) int {
	return (2*numVars+numConstraints)*localIterations + 2*numVars
}

// chooseSolution picks between the solver's final iterate and the best
// feasible candidate seen during the run. The incumbent wins whenever the
// final iterate is missing, could not be evaluated, is infeasible, or scores
// strictly worse: a solver stopping on its evaluation budget can end on an
// iterate inside the infeasible region, and a low objective value there is
// worthless.
func chooseSolution(solution []float64, score float64, finalEval *Evaluation, incumbent *Incumbent) ([]float64, bool) {
	bestF, x, ok := incumbent.Best()
	if !ok {
		return solution, false
	}
	if solution == nil || finalEval == nil || !finalEval.Feasible || bestF < score {
		return x, true
	}
	return solution, false
}

type optimizeReturn struct {
	solution []float64
	score    float64
	err      error
}

// Run performs one constrained optimization and returns the resulting fixed
// posture trajectory. The best feasible candidate seen during the run wins
// over the solver's final iterate when it is strictly better.
func (po *PostureOptimizer) Run(ctx context.Context) (*identification.FixedPostureTrajectory, error) {
	numVars := po.problem.NumVars()
	numConstraints := po.problem.Constraints.Count
	budget := evalBudget(numVars, numConstraints, po.cfg.LocalOptIterations)
	po.objective.SetIterationBudget(budget)
	po.logger.Infof("optimizing %d postures: %d variables, %d constraints, eval budget %d",
		po.cfg.NumPostures, numVars, numConstraints, budget)

	opt, err := nlopt.NewNLopt(nlopt.LD_SLSQP, uint(numVars))
	if err != nil {
		return nil, errors.Wrap(err, "nlopt creation error")
	}
	defer opt.Destroy()

	lower, upper := po.problem.Bounds()

	// Evaluations are memoized on x so the objective and constraint callbacks
	// issued by the solver at the same point share one simulate+identify.
	cache := make(map[string]*Evaluation, numVars+2)
	var evalErr error
	evaluate := func(x []float64, kind CallKind) *Evaluation {
		if evalErr != nil {
			return nil
		}
		if ctx.Err() != nil {
			evalErr = ctx.Err()
			multierr.AppendInto(&evalErr, opt.ForceStop())
			return nil
		}
		key := floatsToKey(x)
		if ev, ok := cache[key]; ok {
			return ev
		}
		ev, err := po.objective.Evaluate(x, kind)
		if err != nil {
			// an invalid evaluation must stop the solver, not feed it a
			// fabricated objective value
			evalErr = err
			multierr.AppendInto(&evalErr, opt.ForceStop())
			return nil
		}
		if len(ev.G) != numConstraints {
			evalErr = errors.Errorf("constraint vector length %d does not match declared group size %d",
				len(ev.G), numConstraints)
			multierr.AppendInto(&evalErr, opt.ForceStop())
			return nil
		}
		if len(cache) > 4*(numVars+2) {
			cache = make(map[string]*Evaluation, numVars+2)
		}
		cache[key] = ev
		return ev
	}

	// perturb returns x with variable i stepped by the jump, flipping the
	// step direction at the upper bound
	perturb := func(x []float64, i int) ([]float64, bool) {
		probe := append([]float64(nil), x...)
		probe[i] += defaultJump
		if probe[i] >= upper[i] {
			probe[i] -= 2 * defaultJump
			return probe, true
		}
		return probe, false
	}

	minFunc := func(x, gradient []float64) float64 {
		ev := evaluate(x, Step)
		if ev == nil {
			return 0
		}
		for i := range gradient {
			probe, flipped := perturb(x, i)
			pev := evaluate(probe, GradientProbe)
			if pev == nil {
				return 0
			}
			gradient[i] = (pev.F - ev.F) / defaultJump
			if flipped {
				gradient[i] *= -1
			}
		}
		return ev.F
	}

	// nlopt wants inequality constraints as fc(x) <= 0, so the clearance
	// vector is negated
	conFunc := func(result, x, gradient []float64) {
		ev := evaluate(x, Step)
		if ev == nil {
			for j := range result {
				result[j] = 0
			}
			return
		}
		for j := range result {
			result[j] = -ev.G[j]
		}
		if len(gradient) > 0 {
			for i := 0; i < numVars; i++ {
				probe, flipped := perturb(x, i)
				pev := evaluate(probe, GradientProbe)
				if pev == nil {
					return
				}
				for j := 0; j < numConstraints; j++ {
					d := -(pev.G[j] - ev.G[j]) / defaultJump
					if flipped {
						d *= -1
					}
					gradient[j*numVars+i] = d
				}
			}
		}
	}

	constraintTol := make([]float64, numConstraints)
	for i := range constraintTol {
		constraintTol[i] = defaultConstraintTol
	}
	err = multierr.Combine(
		opt.SetLowerBounds(lower),
		opt.SetUpperBounds(upper),
		opt.SetFtolRel(defaultFtolRel),
		opt.SetXtolRel(defaultXtolRel),
		opt.SetMaxEval(budget),
		opt.SetMinObjective(minFunc),
		opt.AddInequalityMConstraint(conFunc, constraintTol),
	)
	if err != nil {
		return nil, errors.Wrap(err, "nlopt configuration error")
	}

	solveChan := make(chan *optimizeReturn, 1)
	goutils.PanicCapturingGo(func() {
		solution, score, err := opt.Optimize(po.problem.InitialVector())
		solveChan <- &optimizeReturn{solution, score, err}
	})
	var solved *optimizeReturn
	select {
	case <-ctx.Done():
		err = multierr.Combine(ctx.Err(), opt.ForceStop())
		solved = <-solveChan
		multierr.AppendInto(&err, solved.err)
		return nil, err
	case solved = <-solveChan:
	}

	if evalErr != nil {
		return nil, evalErr
	}
	if solved.err != nil {
		// this just *happens* sometimes in nonlinear problems; the incumbent
		// may still hold a usable solution
		po.logger.Warnw("solver finished with error", "error", solved.err)
	}

	// the final iterate's feasibility decides below whether the incumbent
	// replaces it; it is usually still in the evaluation cache
	var finalEval *Evaluation
	if solved.solution != nil {
		var ok bool
		if finalEval, ok = cache[floatsToKey(solved.solution)]; !ok {
			if ev, err := po.objective.Evaluate(solved.solution, Step); err == nil {
				finalEval = ev
			}
		}
	}
	best, usedIncumbent := chooseSolution(solved.solution, solved.score, finalEval, po.objective.Incumbent())
	if usedIncumbent {
		bestF, _, _ := po.objective.Incumbent().Best()
		po.logger.Infof("using best feasible candidate seen (f=%g) over final iterate (f=%g)", bestF, solved.score)
	}
	if best == nil {
		return nil, multierr.Combine(errNoSolve, solved.err)
	}

	if po.progress != nil && po.progress.Len() > 0 {
		if err := po.progress.WritePNG(po.cfg.ProgressPlot); err != nil {
			po.logger.Warnw("failed to write progress plot", "error", err)
		}
	}

	return identification.NewFixedPostureTrajectory(po.objective.Postures(best))
}
