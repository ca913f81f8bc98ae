package model

import (
	"context"
	"fmt"
	"image"
	"math"
	"sync"

	evalerrors "github.com/ben-gid/traffic-eval/internal/errors"
	"github.com/ben-gid/traffic-eval/internal/labels"
)

// Prediction is a learner's answer for one image. Class is empty when the
// learner only knows its own index.
type Prediction struct {
	Class      string
	Index      int
	Confidence float32
}

// Learner is a model that accepts one raw image at a time and handles its
// own preprocessing.
type Learner interface {
	Predict(ctx context.Context, img image.Image) (Prediction, error)
	Vocab() []string
	Close() error
}

// LearnerAdapter degrades batch prediction to one Learner call per image.
type LearnerAdapter struct {
	name    string
	learner Learner
}

func NewLearnerAdapter(name string, learner Learner) *LearnerAdapter {
	return &LearnerAdapter{name: name, learner: learner}
}

func (a *LearnerAdapter) Name() string { return a.name }

func (a *LearnerAdapter) Scheme() labels.Scheme {
	if len(a.learner.Vocab()) > 0 {
		return labels.SchemeVocab
	}
	return labels.SchemeCanonical
}

func (a *LearnerAdapter) Vocab() []string { return a.learner.Vocab() }

func (a *LearnerAdapter) PredictBatch(ctx context.Context, images []image.Image) ([]labels.Raw, error) {
	out := make([]labels.Raw, len(images))
	for i, img := range images {
		if err := ctx.Err(); err != nil {
			return nil, &evalerrors.InferenceError{Model: a.name, Index: i, Err: err}
		}
		p, err := a.learner.Predict(ctx, img)
		if err != nil {
			return nil, &evalerrors.InferenceError{Model: a.name, Index: i, Err: err}
		}
		if p.Class != "" {
			out[i] = labels.NameOf(p.Class)
		} else {
			out[i] = labels.IndexOf(p.Index)
		}
	}
	return out, nil
}

func (a *LearnerAdapter) Close() error {
	return a.learner.Close()
}

// OnnxLearner is an exported learner bundle: a single-image ONNX session
// with the learner's own vocabulary and normalization.
type OnnxLearner struct {
	session Session
	pre     Preprocessor
	vocab   []string

	mu  sync.Mutex
	buf []float32
}

func newOnnxLearner(session Session, pre Preprocessor, vocab []string) (*OnnxLearner, error) {
	if session.BatchSize() != 1 {
		return nil, fmt.Errorf("learner session must take one image, has batch %d", session.BatchSize())
	}
	if session.Classes() != len(vocab) {
		return nil, fmt.Errorf("learner outputs %d classes but lists %d", session.Classes(), len(vocab))
	}
	return &OnnxLearner{
		session: session,
		pre:     pre,
		vocab:   vocab,
		buf:     make([]float32, pre.SampleSize()),
	}, nil
}

func (l *OnnxLearner) Vocab() []string { return l.vocab }

func (l *OnnxLearner) Predict(_ context.Context, img image.Image) (Prediction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.pre.Fill(l.buf, img)
	scores, err := l.session.Run(l.buf)
	if err != nil {
		return Prediction{}, err
	}
	if len(scores) < len(l.vocab) {
		return Prediction{}, fmt.Errorf("model returned %d scores for %d classes", len(scores), len(l.vocab))
	}
	scores = scores[:len(l.vocab)]
	idx := argmax(scores)
	return Prediction{Class: l.vocab[idx], Index: idx, Confidence: softmaxAt(scores, idx)}, nil
}

func (l *OnnxLearner) Close() error {
	return l.session.Close()
}

func softmaxAt(scores []float32, idx int) float32 {
	peak := float64(scores[idx])
	var sum float64
	for _, s := range scores {
		sum += math.Exp(float64(s) - peak)
	}
	return float32(1 / sum)
}
