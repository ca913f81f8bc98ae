package model

import (
	"context"
	"image"

	"github.com/ben-gid/traffic-eval/internal/labels"
)

// Adapter gives every trained classifier the same prediction call. The raw
// predictions it returns are in the model's native label representation;
// Scheme and Vocab tell a labels.Reconciler how to read them.
//
// PredictBatch returns exactly one prediction per input image, in input
// order, or an error. It never modifies the images.
type Adapter interface {
	Name() string
	Scheme() labels.Scheme
	Vocab() []string
	PredictBatch(ctx context.Context, images []image.Image) ([]labels.Raw, error)
	Close() error
}
