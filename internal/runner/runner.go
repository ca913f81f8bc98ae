package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ben-gid/traffic-eval/internal/corpus"
	evalerrors "github.com/ben-gid/traffic-eval/internal/errors"
	"github.com/ben-gid/traffic-eval/internal/labels"
	"github.com/ben-gid/traffic-eval/internal/model"
	"github.com/montanaflynn/stats"
	"github.com/rs/zerolog/log"
)

const DefaultBatchSize = 32

// Result holds one raw prediction per corpus sample, position-aligned with
// corpus.Samples, and the wall time of every adapter call.
type Result struct {
	Model   string
	Raw     []labels.Raw
	Batches []time.Duration
}

// Latency summarizes per-batch wall time in milliseconds.
type Latency struct {
	Mean float64
	P50  float64
	P95  float64
}

func (r *Result) Latency() (Latency, error) {
	if len(r.Batches) == 0 {
		return Latency{}, fmt.Errorf("no batches recorded")
	}
	ms := make(stats.Float64Data, len(r.Batches))
	for i, d := range r.Batches {
		ms[i] = float64(d.Microseconds()) / 1000
	}
	var l Latency
	var err error
	if l.Mean, err = ms.Mean(); err != nil {
		return Latency{}, err
	}
	if l.P50, err = ms.Percentile(50); err != nil {
		return Latency{}, err
	}
	if l.P95, err = ms.Percentile(95); err != nil {
		return Latency{}, err
	}
	return l, nil
}

// Run feeds the corpus through adapter in slices of batchSize. The output
// has exactly c.Len() predictions in corpus order; on any failure it returns
// an InferenceError carrying the corpus index and no predictions at all.
func Run(ctx context.Context, adapter model.Adapter, c *corpus.Corpus, batchSize int) (*Result, error) {
	if batchSize < 1 {
		batchSize = DefaultBatchSize
	}
	images := c.Images()
	res := &Result{Model: adapter.Name(), Raw: make([]labels.Raw, 0, len(images))}

	for start := 0; start < len(images); start += batchSize {
		end := min(start+batchSize, len(images))
		began := time.Now()
		raw, err := adapter.PredictBatch(ctx, images[start:end])
		res.Batches = append(res.Batches, time.Since(began))
		if err != nil {
			return nil, wrapInference(adapter.Name(), start, err)
		}
		if len(raw) != end-start {
			return nil, &evalerrors.InferenceError{
				Model: adapter.Name(), Index: start,
				Err: fmt.Errorf("adapter returned %d predictions for %d samples", len(raw), end-start),
			}
		}
		res.Raw = append(res.Raw, raw...)
	}

	if l, err := res.Latency(); err == nil {
		log.Info().
			Str("model", res.Model).
			Int("samples", len(res.Raw)).
			Int("batches", len(res.Batches)).
			Float64("batch_ms_mean", l.Mean).
			Float64("batch_ms_p50", l.P50).
			Float64("batch_ms_p95", l.P95).
			Msg("predictions complete")
	}
	return res, nil
}

// wrapInference rebases an adapter-relative sample index onto the corpus.
func wrapInference(name string, offset int, err error) error {
	var infErr *evalerrors.InferenceError
	if errors.As(err, &infErr) {
		idx := offset
		if infErr.Index >= 0 {
			idx += infErr.Index
		}
		return &evalerrors.InferenceError{Model: name, Index: idx, Err: infErr.Err}
	}
	return &evalerrors.InferenceError{Model: name, Index: offset, Err: err}
}
