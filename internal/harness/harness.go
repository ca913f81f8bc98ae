package harness

import (
	"context"
	"fmt"

	"github.com/ben-gid/traffic-eval/internal/config"
	"github.com/ben-gid/traffic-eval/internal/corpus"
	"github.com/ben-gid/traffic-eval/internal/eval"
	"github.com/ben-gid/traffic-eval/internal/labels"
	"github.com/ben-gid/traffic-eval/internal/model"
	"github.com/ben-gid/traffic-eval/internal/runner"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

type Stage string

const (
	StageLoad      Stage = "load"
	StagePredict   Stage = "predict"
	StageReconcile Stage = "reconcile"
	StageEvaluate  Stage = "evaluate"
)

// StageError names the model and the stage at which its evaluation stopped.
type StageError struct {
	Model string
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("model %s failed at %s: %v", e.Model, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Outcome is the result for one model: a report, or the stage error that
// prevented it.
type Outcome struct {
	Model  string
	Report *eval.Report
	Err    *StageError
}

// Loader turns a model spec into a ready adapter.
type Loader func(ctx context.Context, spec model.Spec) (model.Adapter, error)

type Harness struct {
	corpus      *corpus.Corpus
	truth       []string
	load        Loader
	batchSize   int
	parallelism int
	logger      zerolog.Logger
}

type Option func(*Harness)

func WithBatchSize(n int) Option {
	return func(h *Harness) { h.batchSize = n }
}

// WithParallelism bounds how many models are evaluated at once. Each model
// still gets its own adapter; only the corpus is shared.
func WithParallelism(n int) Option {
	return func(h *Harness) {
		if n > 0 {
			h.parallelism = n
		}
	}
}

func New(c *corpus.Corpus, load Loader, opts ...Option) *Harness {
	h := &Harness{
		corpus:      c,
		truth:       c.Truth(),
		load:        load,
		batchSize:   runner.DefaultBatchSize,
		parallelism: 1,
		logger:      log.With().Str("run", uuid.NewString()).Logger(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Evaluate runs every spec through load, predict, reconcile and evaluate.
// A failing model yields an Outcome with Err set; the remaining models still
// run. Outcomes are returned in spec order.
func (h *Harness) Evaluate(ctx context.Context, specs []model.Spec) []Outcome {
	outcomes := make([]Outcome, len(specs))
	g := new(errgroup.Group)
	g.SetLimit(h.parallelism)
	for i := range specs {
		i := i
		g.Go(func() error {
			outcomes[i] = h.evaluateOne(ctx, specs[i])
			return nil
		})
	}
	g.Wait()
	return outcomes
}

func (h *Harness) evaluateOne(ctx context.Context, spec model.Spec) Outcome {
	logger := h.logger.With().Str("model", spec.Name).Logger()
	fail := func(stage Stage, err error) Outcome {
		logger.Error().Err(err).Str("stage", string(stage)).Msg("model evaluation failed")
		return Outcome{Model: spec.Name, Err: &StageError{Model: spec.Name, Stage: stage, Err: err}}
	}

	logger.Info().Str("path", spec.Path).Msg("loading model")
	adapter, err := h.load(ctx, spec)
	if err != nil {
		return fail(StageLoad, err)
	}
	defer func() {
		if err := adapter.Close(); err != nil {
			logger.Warn().Err(err).Msg("failed to release model")
		}
	}()

	batch := spec.BatchSize
	if batch < 1 {
		batch = h.batchSize
	}
	res, err := runner.Run(ctx, adapter, h.corpus, batch)
	if err != nil {
		return fail(StagePredict, err)
	}

	reconciler, err := labels.NewReconciler(h.corpus.Classes, adapter.Scheme(), adapter.Vocab())
	if err != nil {
		return fail(StageReconcile, err)
	}
	pred, err := reconciler.Reconcile(res.Raw)
	if err != nil {
		return fail(StageReconcile, err)
	}

	report, err := eval.Evaluate(spec.Name, h.corpus.Classes, h.truth, pred)
	if err != nil {
		return fail(StageEvaluate, err)
	}
	logger.Info().Float64("accuracy", report.Accuracy).Msg("model evaluated")
	return Outcome{Model: spec.Name, Report: report}
}

// Specs converts configured models into adapter specs.
func Specs(models []config.ModelConfig) []model.Spec {
	specs := make([]model.Spec, len(models))
	for i, m := range models {
		specs[i] = model.Spec{
			Name:         m.Name,
			Kind:         model.Kind(m.Kind),
			Path:         m.Path,
			MetadataPath: m.Metadata,
			BatchSize:    m.BatchSize,
			LabelScheme:  m.LabelScheme,
		}
	}
	return specs
}

// Split separates successful reports from failures, keeping order.
func Split(outcomes []Outcome) ([]*eval.Report, []eval.Failure) {
	var reports []*eval.Report
	var failures []eval.Failure
	for _, o := range outcomes {
		if o.Err != nil {
			failures = append(failures, eval.Failure{Model: o.Model, Stage: string(o.Err.Stage), Err: o.Err.Err})
			continue
		}
		reports = append(reports, o.Report)
	}
	return reports, failures
}
