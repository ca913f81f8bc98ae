package eval

import (
	"fmt"

	evalerrors "github.com/ben-gid/traffic-eval/internal/errors"
	"github.com/ben-gid/traffic-eval/internal/labels"
	"gonum.org/v1/gonum/stat"
)

type ClassMetrics struct {
	Label     string
	Precision float64
	Recall    float64
	F1        float64
	Support   int
}

type Average struct {
	Precision float64
	Recall    float64
	F1        float64
	Support   int
}

// Report is one model's scores over the canonical label space. Classes and
// both axes of Confusion follow Labels.
type Report struct {
	Model       string
	Labels      []string
	Accuracy    float64
	Correct     int
	Total       int
	Classes     []ClassMetrics
	MacroAvg    Average
	WeightedAvg Average
	// Confusion[i][j] counts samples of true class i predicted as class j.
	Confusion [][]int
}

// Evaluate scores predictions against ground truth. It depends only on its
// arguments, so repeated calls yield identical reports.
func Evaluate(model string, space *labels.Space, truth, pred []string) (*Report, error) {
	if len(truth) != len(pred) {
		return nil, &evalerrors.EvaluationError{
			Model:  model,
			Reason: fmt.Sprintf("%d ground-truth labels but %d predictions", len(truth), len(pred)),
		}
	}
	if len(truth) == 0 {
		return nil, &evalerrors.EvaluationError{Model: model, Reason: "no samples"}
	}

	n := space.Len()
	confusion := make([][]int, n)
	for i := range confusion {
		confusion[i] = make([]int, n)
	}
	correct := 0
	for k := range truth {
		ti, ok := space.Index(truth[k])
		if !ok {
			return nil, &evalerrors.EvaluationError{Model: model, Reason: fmt.Sprintf("ground truth %q at %d is not a known class", truth[k], k)}
		}
		pi, ok := space.Index(pred[k])
		if !ok {
			return nil, &evalerrors.EvaluationError{Model: model, Reason: fmt.Sprintf("prediction %q at %d is not a known class", pred[k], k)}
		}
		confusion[ti][pi]++
		if ti == pi {
			correct++
		}
	}

	names := space.Names()
	r := &Report{
		Model:     model,
		Labels:    names,
		Accuracy:  float64(correct) / float64(len(truth)),
		Correct:   correct,
		Total:     len(truth),
		Classes:   make([]ClassMetrics, n),
		Confusion: confusion,
	}

	precision := make([]float64, n)
	recall := make([]float64, n)
	f1 := make([]float64, n)
	support := make([]float64, n)
	for i := 0; i < n; i++ {
		tp := confusion[i][i]
		rowSum, colSum := 0, 0
		for j := 0; j < n; j++ {
			rowSum += confusion[i][j]
			colSum += confusion[j][i]
		}
		precision[i] = ratio(tp, colSum)
		recall[i] = ratio(tp, rowSum)
		f1[i] = harmonic(precision[i], recall[i])
		support[i] = float64(rowSum)
		r.Classes[i] = ClassMetrics{
			Label:     names[i],
			Precision: precision[i],
			Recall:    recall[i],
			F1:        f1[i],
			Support:   rowSum,
		}
	}

	r.MacroAvg = Average{
		Precision: stat.Mean(precision, nil),
		Recall:    stat.Mean(recall, nil),
		F1:        stat.Mean(f1, nil),
		Support:   len(truth),
	}
	r.WeightedAvg = Average{
		Precision: stat.Mean(precision, support),
		Recall:    stat.Mean(recall, support),
		F1:        stat.Mean(f1, support),
		Support:   len(truth),
	}
	return r, nil
}

// ratio is num/den, or 0 when den is 0.
func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

func harmonic(p, r float64) float64 {
	if p+r == 0 {
		return 0
	}
	return 2 * p * r / (p + r)
}

// Trace is the number of correctly classified samples.
func (r *Report) Trace() int {
	t := 0
	for i := range r.Confusion {
		t += r.Confusion[i][i]
	}
	return t
}
