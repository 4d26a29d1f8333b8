package identification

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/viam-labs/postureopt/referenceframe"
)

// identifiableColumnTol is the relative column-norm threshold below which a
// parameter is considered unexcited by the data and excluded from comparison.
const identifiableColumnTol = 1e-8

// Estimator identifies gravity parameters from simulated trajectory data and
// compares them against the model's ground truth.
type Estimator struct {
	model   *referenceframe.Model
	gravity r3.Vector
	truth   []float64
}

// EstimationResult holds one identification outcome.
type EstimationResult struct {
	// Params is the estimated gravity parameter vector, laid out as TruthParams.
	Params []float64
	// Identifiable lists the parameter indices actually excited by the data;
	// only these are meaningful in Params.
	Identifiable []int
}

// NewEstimator creates an estimator for the given model and gravity vector.
func NewEstimator(model *referenceframe.Model, gravity r3.Vector) *Estimator {
	return &Estimator{model: model, gravity: gravity, truth: TruthParams(model)}
}

// Truth returns the ground-truth gravity parameter vector.
func (e *Estimator) Truth() []float64 {
	return e.truth
}

// Estimate stacks the gravity regressors of every sample and solves the
// minimum-norm least squares problem for the parameter vector via SVD.
func (e *Estimator) Estimate(data *TrajectoryData) (*EstimationResult, error) {
	if data == nil || data.NumSamples() == 0 {
		return nil, errors.New("no trajectory data to identify from")
	}
	dofs := len(e.model.DoF())
	nParams := NumParams(e.model)
	nSamples := data.NumSamples()

	stacked := mat.NewDense(nSamples*dofs, nParams, nil)
	rhs := mat.NewVecDense(nSamples*dofs, nil)
	for s := 0; s < nSamples; s++ {
		regressor, err := GravityRegressor(e.model, e.gravity, mat.Row(nil, s, data.Positions))
		if err != nil {
			return nil, errors.Wrapf(err, "sample %d", s)
		}
		for j := 0; j < dofs; j++ {
			for k := 0; k < nParams; k++ {
				stacked.Set(s*dofs+j, k, regressor.At(j, k))
			}
			rhs.SetVec(s*dofs+j, data.Torques.At(s, j))
		}
	}

	var svd mat.SVD
	if !svd.Factorize(stacked, mat.SVDThin) {
		return nil, errors.New("SVD of stacked regressor failed")
	}
	rank := svd.Rank(1e-10)
	if rank == 0 {
		return nil, errors.New("stacked regressor has rank zero, no parameter is excited")
	}
	var sol mat.VecDense
	svd.SolveVecTo(&sol, rhs, rank)

	params := make([]float64, nParams)
	for k := 0; k < nParams; k++ {
		params[k] = sol.AtVec(k)
	}
	return &EstimationResult{
		Params:       params,
		Identifiable: identifiableColumns(stacked),
	}, nil
}

// GravityError returns the squared Euclidean norm of the difference between
// the estimated and ground-truth parameters, restricted to the identifiable set.
func (e *Estimator) GravityError(result *EstimationResult) float64 {
	sum := 0.
	for _, k := range result.Identifiable {
		d := result.Params[k] - e.truth[k]
		sum += d * d
	}
	return sum
}

// ParamError returns the per-parameter signed error over the identifiable set.
func (e *Estimator) ParamError(result *EstimationResult) []float64 {
	errs := make([]float64, 0, len(result.Identifiable))
	for _, k := range result.Identifiable {
		errs = append(errs, result.Params[k]-e.truth[k])
	}
	return errs
}

// identifiableColumns returns indices of regressor columns whose norm is a
// meaningful fraction of the largest column norm.
func identifiableColumns(a *mat.Dense) []int {
	rows, cols := a.Dims()
	norms := make([]float64, cols)
	maxNorm := 0.
	for k := 0; k < cols; k++ {
		sum := 0.
		for r := 0; r < rows; r++ {
			v := a.At(r, k)
			sum += v * v
		}
		norms[k] = math.Sqrt(sum)
		if norms[k] > maxNorm {
			maxNorm = norms[k]
		}
	}
	if maxNorm == 0 {
		return nil
	}
	idx := make([]int, 0, cols)
	for k := 0; k < cols; k++ {
		if norms[k] > identifiableColumnTol*maxNorm {
			idx = append(idx, k)
		}
	}
	return idx
}
