package eval

import (
	"bytes"
	"errors"
	"math/rand"
	"testing"

	evalerrors "github.com/ben-gid/traffic-eval/internal/errors"
	"github.com/ben-gid/traffic-eval/internal/labels"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func space(t *testing.T, names ...string) *labels.Space {
	t.Helper()
	s, err := labels.NewSpace(names)
	require.NoError(t, err)
	return s
}

func TestEvaluate_StopYield(t *testing.T) {
	truth := []string{"stop", "stop", "yield", "yield"}
	pred := []string{"stop", "yield", "stop", "yield"}
	r, err := Evaluate("m", space(t, "yield", "stop"), truth, pred)
	require.NoError(t, err)

	assert.Equal(t, 0.5, r.Accuracy)
	assert.Equal(t, [][]int{{1, 1}, {1, 1}}, r.Confusion)
	assert.Equal(t, []string{"stop", "yield"}, r.Labels)
	for _, c := range r.Classes {
		assert.InDelta(t, 0.5, c.Precision, 1e-12)
		assert.InDelta(t, 0.5, c.Recall, 1e-12)
		assert.InDelta(t, 0.5, c.F1, 1e-12)
		assert.Equal(t, 2, c.Support)
	}
}

func TestEvaluate_StopYieldMostlyStop(t *testing.T) {
	truth := []string{"stop", "stop", "yield", "yield"}
	pred := []string{"stop", "yield", "stop", "stop"}
	r, err := Evaluate("m", space(t, "stop", "yield"), truth, pred)
	require.NoError(t, err)

	assert.Equal(t, 0.25, r.Accuracy)
	assert.Equal(t, [][]int{{1, 1}, {2, 0}}, r.Confusion)

	stop := r.Classes[0]
	assert.InDelta(t, 1.0/3, stop.Precision, 1e-12)
	assert.InDelta(t, 0.5, stop.Recall, 1e-12)
	assert.InDelta(t, 0.4, stop.F1, 1e-12)

	yield := r.Classes[1]
	assert.Zero(t, yield.Precision)
	assert.Zero(t, yield.Recall)
	assert.Zero(t, yield.F1)

	assert.InDelta(t, 1.0/6, r.MacroAvg.Precision, 1e-12)
	assert.InDelta(t, 0.25, r.WeightedAvg.Recall, 1e-12)
}

func TestEvaluate_SingleSample(t *testing.T) {
	r, err := Evaluate("m", space(t, "stop"), []string{"stop"}, []string{"stop"})
	require.NoError(t, err)
	assert.Equal(t, 1.0, r.Accuracy)
	assert.Equal(t, [][]int{{1}}, r.Confusion)
	assert.Equal(t, 1.0, r.Classes[0].F1)
}

func TestEvaluate_AbsentClassesKeepZeroRows(t *testing.T) {
	r, err := Evaluate("m", space(t, "merge", "stop", "yield"), []string{"stop", "yield"}, []string{"stop", "stop"})
	require.NoError(t, err)
	require.Len(t, r.Classes, 3)
	merge := r.Classes[0]
	assert.Equal(t, "merge", merge.Label)
	assert.Equal(t, 0, merge.Support)
	assert.Zero(t, merge.Precision)
	assert.Zero(t, merge.Recall)
	assert.Zero(t, merge.F1)
	// yield is never predicted: precision 0 rather than NaN.
	assert.Zero(t, r.Classes[2].Precision)
}

func TestEvaluate_MatrixInvariants(t *testing.T) {
	names := []string{"a", "b", "c", "d", "e"}
	rng := rand.New(rand.NewSource(3))
	truth := make([]string, 200)
	pred := make([]string, 200)
	for i := range truth {
		truth[i] = names[rng.Intn(len(names))]
		if rng.Float64() < 0.6 {
			pred[i] = truth[i]
		} else {
			pred[i] = names[rng.Intn(len(names))]
		}
	}
	r, err := Evaluate("m", space(t, names...), truth, pred)
	require.NoError(t, err)

	counts := map[string]int{}
	for _, l := range truth {
		counts[l]++
	}
	for i, row := range r.Confusion {
		sum := 0
		for _, v := range row {
			sum += v
		}
		assert.Equal(t, counts[names[i]], sum, "row %s", names[i])
		assert.Equal(t, counts[names[i]], r.Classes[i].Support)
	}
	assert.InDelta(t, r.Accuracy, float64(r.Trace())/float64(r.Total), 1e-12)
}

func TestEvaluate_Errors(t *testing.T) {
	s := space(t, "stop", "yield")
	var evalErr *evalerrors.EvaluationError

	_, err := Evaluate("m", s, []string{"stop", "yield"}, []string{"stop"})
	assert.True(t, errors.As(err, &evalErr))

	_, err = Evaluate("m", s, nil, nil)
	assert.True(t, errors.As(err, &evalErr))

	_, err = Evaluate("m", s, []string{"stop"}, []string{"merge"})
	assert.True(t, errors.As(err, &evalErr))
}

func TestReport_OutputIsIdempotent(t *testing.T) {
	s := space(t, "stop", "yield")
	truth := []string{"stop", "stop", "yield", "yield"}
	pred := []string{"stop", "yield", "stop", "yield"}

	first, err := Evaluate("m", s, truth, pred)
	require.NoError(t, err)
	second, err := Evaluate("m", s, truth, pred)
	require.NoError(t, err)

	var a, b bytes.Buffer
	_, err = first.WriteTo(&a)
	require.NoError(t, err)
	_, err = second.WriteTo(&b)
	require.NoError(t, err)
	assert.Equal(t, a.Bytes(), b.Bytes())
	assert.Contains(t, a.String(), "===== m =====")
	assert.Contains(t, a.String(), "Accuracy: 0.5000 (2/4)")
	assert.Contains(t, a.String(), "weighted avg")
	assert.Equal(t, a.String(), first.String())
}

func TestReports_AreIndependent(t *testing.T) {
	s := space(t, "stop", "yield")
	truth := []string{"stop", "stop", "yield", "yield"}
	predA := []string{"stop", "stop", "yield", "stop"}
	predB := []string{"yield", "yield", "yield", "yield"}

	aFirst, err := Evaluate("A", s, truth, predA)
	require.NoError(t, err)
	bSecond, err := Evaluate("B", s, truth, predB)
	require.NoError(t, err)

	bFirst, err := Evaluate("B", s, truth, predB)
	require.NoError(t, err)
	aSecond, err := Evaluate("A", s, truth, predA)
	require.NoError(t, err)

	assert.Equal(t, aFirst.String(), aSecond.String())
	assert.Equal(t, bFirst.String(), bSecond.String())
	assert.Equal(t, 0.75, aFirst.Accuracy)
	assert.Equal(t, 0.5, bFirst.Accuracy)
}

func TestWriteComparison(t *testing.T) {
	s := space(t, "stop", "yield")
	a, err := Evaluate("tf1", s, []string{"stop", "yield"}, []string{"stop", "yield"})
	require.NoError(t, err)
	b, err := Evaluate("tf2", s, []string{"stop", "yield"}, []string{"stop", "stop"})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteComparison(&buf, []*Report{a, b}, []Failure{{Model: "fastai", Stage: "load", Err: errors.New("x")}}))
	out := buf.String()
	assert.Contains(t, out, "tf1")
	assert.Contains(t, out, "1.0000")
	assert.Contains(t, out, "0.5000")
	assert.Contains(t, out, "fastai")
	assert.Contains(t, out, "failed at load")
}
