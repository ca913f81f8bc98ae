package errors

import "fmt"

// CorpusError reports a test set that could not be loaded. Loading is
// all-or-nothing, so no samples accompany it.
type CorpusError struct {
	Path string
	Err  error
}

func (e *CorpusError) Error() string {
	return fmt.Sprintf("corpus %s: %v", e.Path, e.Err)
}

func (e *CorpusError) Unwrap() error { return e.Err }

type ModelLoadError struct {
	Path string
	Err  error
}

func (e *ModelLoadError) Error() string {
	return fmt.Sprintf("load model %s: %v", e.Path, e.Err)
}

func (e *ModelLoadError) Unwrap() error { return e.Err }

// InferenceError carries the corpus position of the first sample whose
// prediction failed. Index is -1 when the position is unknown.
type InferenceError struct {
	Model string
	Index int
	Err   error
}

func (e *InferenceError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("inference %s: %v", e.Model, e.Err)
	}
	return fmt.Sprintf("inference %s at sample %d: %v", e.Model, e.Index, e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }

// LabelMappingError means a model predicted something outside the canonical
// label space.
type LabelMappingError struct {
	Position int
	Value    string
	Reason   string
}

func (e *LabelMappingError) Error() string {
	return fmt.Sprintf("label mapping at position %d: %s %s", e.Position, e.Value, e.Reason)
}

type EvaluationError struct {
	Model  string
	Reason string
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("evaluate %s: %s", e.Model, e.Reason)
}
