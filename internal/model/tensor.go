package model

import (
	"context"
	"fmt"
	"image"
	"sync"

	evalerrors "github.com/ben-gid/traffic-eval/internal/errors"
	"github.com/ben-gid/traffic-eval/internal/labels"
)

// TensorAdapter serves models that expect every input resized, normalized
// and stacked into one tensor. Images are packed into the session's fixed
// batch; a short final batch is zero-padded and the padding rows ignored.
type TensorAdapter struct {
	name    string
	session Session
	pre     Preprocessor
	scheme  labels.Scheme
	vocab   []string

	mu  sync.Mutex
	buf []float32
}

func NewTensorAdapter(name string, session Session, pre Preprocessor, scheme labels.Scheme, vocab []string) *TensorAdapter {
	return &TensorAdapter{
		name:    name,
		session: session,
		pre:     pre,
		scheme:  scheme,
		vocab:   vocab,
		buf:     make([]float32, session.BatchSize()*pre.SampleSize()),
	}
}

func (a *TensorAdapter) Name() string { return a.name }

func (a *TensorAdapter) Scheme() labels.Scheme { return a.scheme }

func (a *TensorAdapter) Vocab() []string { return a.vocab }

func (a *TensorAdapter) PredictBatch(ctx context.Context, images []image.Image) ([]labels.Raw, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	batch := a.session.BatchSize()
	sample := a.pre.SampleSize()
	classes := a.session.Classes()
	out := make([]labels.Raw, 0, len(images))

	for start := 0; start < len(images); start += batch {
		if err := ctx.Err(); err != nil {
			return nil, &evalerrors.InferenceError{Model: a.name, Index: start, Err: err}
		}
		end := min(start+batch, len(images))

		clear(a.buf)
		for i := start; i < end; i++ {
			off := (i - start) * sample
			a.pre.Fill(a.buf[off:off+sample], images[i])
		}

		scores, err := a.session.Run(a.buf)
		if err != nil {
			return nil, &evalerrors.InferenceError{Model: a.name, Index: start, Err: err}
		}
		if len(scores) < (end-start)*classes {
			return nil, &evalerrors.InferenceError{
				Model: a.name, Index: start,
				Err: fmt.Errorf("model returned %d scores for %d samples of %d classes", len(scores), end-start, classes),
			}
		}
		for i := 0; i < end-start; i++ {
			out = append(out, labels.IndexOf(argmax(scores[i*classes:(i+1)*classes])))
		}
	}
	return out, nil
}

func (a *TensorAdapter) Close() error {
	return a.session.Close()
}
