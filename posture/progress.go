package posture

import (
	"image/color"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// ProgressRecorder collects the per-iteration objective value and
// constraint-satisfaction flag of an optimization run and renders them as a
// plot once the run is over.
type ProgressRecorder struct {
	iterations []float64
	values     []float64
	feasible   []bool
}

// NewProgressRecorder returns an empty recorder.
func NewProgressRecorder() *ProgressRecorder {
	return &ProgressRecorder{}
}

// Append records one real (non-probe) objective evaluation.
func (r *ProgressRecorder) Append(iteration int, f float64, feasible bool) {
	r.iterations = append(r.iterations, float64(iteration))
	r.values = append(r.values, f)
	r.feasible = append(r.feasible, feasible)
}

// Len returns the number of recorded evaluations.
func (r *ProgressRecorder) Len() int {
	return len(r.iterations)
}

// WritePNG renders the objective trace to a PNG file. Feasible iterations are
// drawn as filled green points, infeasible ones red.
func (r *ProgressRecorder) WritePNG(path string) error {
	if len(r.iterations) == 0 {
		return errors.New("no progress recorded")
	}

	p := plot.New()
	p.Title.Text = "posture optimization"
	p.X.Label.Text = "iteration"
	p.Y.Label.Text = "parameter error"

	line := make(plotter.XYs, len(r.iterations))
	var feasiblePts, infeasiblePts plotter.XYs
	for i := range r.iterations {
		pt := plotter.XY{X: r.iterations[i], Y: r.values[i]}
		line[i] = pt
		if r.feasible[i] {
			feasiblePts = append(feasiblePts, pt)
		} else {
			infeasiblePts = append(infeasiblePts, pt)
		}
	}

	trace, err := plotter.NewLine(line)
	if err != nil {
		return errors.Wrap(err, "failed to build objective trace")
	}
	trace.Color = color.Gray{Y: 128}
	p.Add(trace)

	for _, group := range []struct {
		pts plotter.XYs
		col color.RGBA
	}{
		{feasiblePts, color.RGBA{G: 180, A: 255}},
		{infeasiblePts, color.RGBA{R: 200, A: 255}},
	} {
		if len(group.pts) == 0 {
			continue
		}
		scatter, err := plotter.NewScatter(group.pts)
		if err != nil {
			return errors.Wrap(err, "failed to build feasibility scatter")
		}
		scatter.GlyphStyle.Color = group.col
		p.Add(scatter)
	}

	if err := p.Save(8*vg.Inch, 5*vg.Inch, path); err != nil {
		return errors.Wrap(err, "failed to save progress plot")
	}
	return nil
}
