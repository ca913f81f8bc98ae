package model

import (
	"fmt"
	"os"

	evalerrors "github.com/ben-gid/traffic-eval/internal/errors"
	"github.com/ben-gid/traffic-eval/internal/labels"
	"github.com/rs/zerolog/log"
)

// Open loads the artifact described by spec and binds the preprocessing its
// metadata declares. Every failure is a ModelLoadError.
func Open(rt *Runtime, spec Spec) (Adapter, error) {
	fail := func(err error) (Adapter, error) {
		return nil, &evalerrors.ModelLoadError{Path: spec.Path, Err: err}
	}

	if _, err := os.Stat(spec.Path); err != nil {
		return fail(err)
	}
	meta, err := LoadMetadata(spec.metadataPath())
	if err != nil {
		return fail(err)
	}
	if spec.LabelScheme != "" {
		meta.LabelScheme = spec.LabelScheme
	}
	kind := spec.Kind
	if kind == "" {
		kind = KindTensor
	}
	if kind != KindTensor && kind != KindLearner {
		return fail(fmt.Errorf("unknown model kind %q", kind))
	}
	if err := meta.normalize(kind); err != nil {
		return fail(err)
	}
	if rt == nil {
		return fail(fmt.Errorf("onnx runtime not initialized"))
	}

	batch := spec.BatchSize
	if kind == KindLearner {
		batch = 1
		if meta.InputShape[0] > 1 {
			return fail(fmt.Errorf("learner input_shape %v must take one image", meta.InputShape))
		}
	}
	session, err := newOrtSession(rt, spec.Path, meta, batch)
	if err != nil {
		return fail(err)
	}

	var adapter Adapter
	if kind == KindLearner {
		learner, err := newOnnxLearner(session, meta.preprocessor(), meta.Classes)
		if err != nil {
			session.Close()
			return fail(err)
		}
		adapter = NewLearnerAdapter(spec.Name, learner)
	} else {
		scheme, _ := labels.ParseScheme(meta.LabelScheme)
		adapter = NewTensorAdapter(spec.Name, session, meta.preprocessor(), scheme, meta.Classes)
	}

	log.Info().
		Str("model", spec.Name).
		Str("kind", string(kind)).
		Str("path", spec.Path).
		Ints64("input_shape", meta.InputShape).
		Str("label_scheme", meta.LabelScheme).
		Int("batch", session.BatchSize()).
		Msg("model loaded")
	return adapter, nil
}
