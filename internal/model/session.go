package model

import (
	"fmt"

	ort "github.com/yalue/onnxruntime_go"
)

// Session runs a fixed-size batch through a model. Input holds
// BatchSize()*sample floats; the result holds BatchSize()*Classes() scores.
type Session interface {
	Run(input []float32) ([]float32, error)
	BatchSize() int
	Classes() int
	Close() error
}

type ortSession struct {
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	batch        int
	classes      int
}

// newOrtSession creates an ONNX Runtime session with tensors pre-allocated
// for batch samples. A dynamic batch dimension in the metadata is replaced
// by batch; a fixed one must match it.
func newOrtSession(rt *Runtime, modelPath string, meta *Metadata, batch int) (*ortSession, error) {
	inputDims := append([]int64(nil), meta.InputShape...)
	outputDims := append([]int64(nil), meta.OutputShape...)
	if inputDims[0] > 0 {
		batch = int(inputDims[0])
	}
	if batch < 1 {
		batch = 1
	}
	inputDims[0] = int64(batch)
	outputDims[0] = int64(batch)

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(inputDims...))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(outputDims...))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	options, release, err := rt.sessionOptions()
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, err
	}
	defer release()

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{meta.InputName}, []string{meta.OutputName},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		options)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &ortSession{
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
		batch:        batch,
		classes:      int(outputDims[1]),
	}, nil
}

func (s *ortSession) Run(input []float32) ([]float32, error) {
	data := s.inputTensor.GetData()
	if len(input) != len(data) {
		return nil, fmt.Errorf("expected %d input values, got %d", len(data), len(input))
	}
	copy(data, input)

	if err := s.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	out := s.outputTensor.GetData()
	return append([]float32(nil), out...), nil
}

func (s *ortSession) BatchSize() int { return s.batch }

func (s *ortSession) Classes() int { return s.classes }

func (s *ortSession) Close() error {
	if s.inputTensor != nil {
		s.inputTensor.Destroy()
	}
	if s.outputTensor != nil {
		s.outputTensor.Destroy()
	}
	if s.session != nil {
		return s.session.Destroy()
	}
	return nil
}
