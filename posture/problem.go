package posture

import (
	"fmt"
	"math"

	"github.com/pkg/errors"

	"github.com/viam-labs/postureopt/referenceframe"
)

// Variable is one continuous decision variable handed to the solver.
type Variable struct {
	Name    string
	Initial float64
	Lower   float64
	Upper   float64
}

// ConstraintGroup is one inequality constraint group: every entry of the
// constraint vector must lie within [Lower, Upper] to be feasible.
type ConstraintGroup struct {
	Name  string
	Count int
	Lower float64
	Upper float64
}

// Problem is the full decision-variable and constraint layout of one posture
// optimization: one variable per (posture, joint) and one clearance
// constraint per (posture, unordered link pair).
type Problem struct {
	Name        string
	Variables   []Variable
	Constraints ConstraintGroup

	numPostures int
	numDofs     int
}

// NumVars returns the number of decision variables.
func (p *Problem) NumVars() int {
	return len(p.Variables)
}

// InitialVector returns the initial values of all variables in order.
func (p *Problem) InitialVector() []float64 {
	x := make([]float64, 0, len(p.Variables))
	for _, v := range p.Variables {
		x = append(x, v.Initial)
	}
	return x
}

// Bounds returns the lower and upper bounds of all variables in order.
func (p *Problem) Bounds() ([]float64, []float64) {
	lower := make([]float64, 0, len(p.Variables))
	upper := make([]float64, 0, len(p.Variables))
	for _, v := range p.Variables {
		lower = append(lower, v.Lower)
		upper = append(upper, v.Upper)
	}
	return lower, upper
}

// NumConstraints returns the length of the constraint vector: one entry per
// posture per unordered link pair.
func NumConstraints(numPostures, numLinks int) int {
	return numPostures * (numLinks * (numLinks - 1) / 2)
}

// BuildProblem lays out decision variables and the clearance constraint group
// for the configured number of postures. Variables are posture-major,
// joint-minor, named deterministically by posture and joint index. Bounds
// come from the per-joint override range when configured, else the joint's
// physical limit; initial values come from the configured per-posture initial
// posture when present, else zero.
func BuildProblem(cfg *Config, model *referenceframe.Model) (*Problem, error) {
	limits := model.DoF()
	numDofs := len(limits)
	if numDofs == 0 {
		return nil, errors.New("model has no movable joints to optimize")
	}
	for p, initial := range cfg.InitialPostures {
		if len(initial) != numDofs {
			return nil, errors.Errorf("initial posture %d has %d angles, want %d", p, len(initial), numDofs)
		}
	}

	problem := &Problem{
		Name:        "posture optimization",
		Variables:   make([]Variable, 0, cfg.NumPostures*numDofs),
		numPostures: cfg.NumPostures,
		numDofs:     numDofs,
	}
	for p := 0; p < cfg.NumPostures; p++ {
		for d := 0; d < numDofs; d++ {
			lower := limits[d].Min
			upper := limits[d].Max
			if len(cfg.AngleRanges) > d && cfg.AngleRanges[d] != nil {
				lower = cfg.AngleRanges[d].Lower
				upper = cfg.AngleRanges[d].Upper
			}
			initial := 0.0
			if len(cfg.InitialPostures) > p {
				initial = cfg.InitialPostures[p][d]
			}
			problem.Variables = append(problem.Variables, Variable{
				Name:    fmt.Sprintf("p_%d q_%d", p, d),
				Initial: initial,
				Lower:   lower,
				Upper:   upper,
			})
		}
	}
	problem.Constraints = ConstraintGroup{
		Name:  "g",
		Count: NumConstraints(cfg.NumPostures, model.NumLinks()),
		Lower: 0.0,
		Upper: math.Inf(1),
	}
	return problem, nil
}
