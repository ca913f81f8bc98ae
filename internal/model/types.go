package model

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ben-gid/traffic-eval/internal/labels"
)

// Kind selects the adapter variant for a model artifact.
type Kind string

const (
	// KindTensor models take externally preprocessed, batched tensors.
	KindTensor Kind = "tensor"
	// KindLearner models take one raw image and preprocess it themselves.
	KindLearner Kind = "learner"
)

type Layout string

const (
	LayoutNHWC Layout = "nhwc"
	LayoutNCHW Layout = "nchw"
)

const currentFormatVersion = 1

// Metadata is the JSON side-car exported next to every model artifact.
// Version 0 files (no format_version) only carry shapes, classes and
// image_size; everything else takes its default.
type Metadata struct {
	FormatVersion int       `json:"format_version"`
	InputName     string    `json:"input_name"`
	OutputName    string    `json:"output_name"`
	InputShape    []int64   `json:"input_shape"`
	OutputShape   []int64   `json:"output_shape"`
	Classes       []string  `json:"classes"`
	ImageSize     int       `json:"image_size"`
	Layout        Layout    `json:"layout"`
	PixelRange    string    `json:"pixel_range"`
	ChannelOrder  string    `json:"channel_order"`
	Mean          []float32 `json:"mean"`
	Std           []float32 `json:"std"`
	LabelScheme   string    `json:"label_scheme"`
}

// Spec describes one model to evaluate.
type Spec struct {
	Name         string
	Kind         Kind
	Path         string
	MetadataPath string
	// BatchSize is used when the exported input shape has a dynamic batch
	// dimension.
	BatchSize int
	// LabelScheme overrides the metadata label_scheme when set.
	LabelScheme string
}

func (s Spec) metadataPath() string {
	if s.MetadataPath != "" {
		return s.MetadataPath
	}
	return strings.TrimSuffix(s.Path, filepath.Ext(s.Path)) + ".json"
}

func LoadMetadata(path string) (*Metadata, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}
	var m Metadata
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("failed to parse metadata: %w", err)
	}
	return &m, nil
}

// normalize fills defaults for the given adapter kind and checks that the
// shapes agree with each other.
func (m *Metadata) normalize(kind Kind) error {
	if m.FormatVersion > currentFormatVersion || m.FormatVersion < 0 {
		return fmt.Errorf("unsupported metadata format_version %d", m.FormatVersion)
	}
	if m.InputName == "" {
		m.InputName = "input"
	}
	if m.OutputName == "" {
		m.OutputName = "output"
	}
	if len(m.InputShape) != 4 {
		return fmt.Errorf("input_shape must have 4 dimensions, got %v", m.InputShape)
	}
	if len(m.OutputShape) != 2 {
		return fmt.Errorf("output_shape must have 2 dimensions, got %v", m.OutputShape)
	}
	if m.OutputShape[1] <= 0 {
		return fmt.Errorf("output_shape %v has no class dimension", m.OutputShape)
	}

	if m.Layout == "" {
		switch {
		case m.InputShape[1] == 3:
			m.Layout = LayoutNCHW
		case m.InputShape[3] == 3:
			m.Layout = LayoutNHWC
		default:
			return fmt.Errorf("cannot infer layout from input_shape %v", m.InputShape)
		}
	}
	var h, w, c int64
	switch m.Layout {
	case LayoutNCHW:
		c, h, w = m.InputShape[1], m.InputShape[2], m.InputShape[3]
	case LayoutNHWC:
		h, w, c = m.InputShape[1], m.InputShape[2], m.InputShape[3]
	default:
		return fmt.Errorf("unknown layout %q", m.Layout)
	}
	if c != 3 {
		return fmt.Errorf("expected 3 channels, input_shape %v has %d", m.InputShape, c)
	}
	if h <= 0 || w <= 0 {
		return fmt.Errorf("input_shape %v must have fixed spatial dimensions", m.InputShape)
	}
	if m.ImageSize != 0 && (int64(m.ImageSize) != h || int64(m.ImageSize) != w) {
		return fmt.Errorf("image_size %d disagrees with input_shape %v", m.ImageSize, m.InputShape)
	}

	if m.PixelRange == "" {
		m.PixelRange = "unit"
	}
	if m.PixelRange != "unit" && m.PixelRange != "byte" {
		return fmt.Errorf("unknown pixel_range %q", m.PixelRange)
	}
	if m.ChannelOrder == "" {
		m.ChannelOrder = "rgb"
	}
	if m.ChannelOrder != "rgb" && m.ChannelOrder != "bgr" {
		return fmt.Errorf("unknown channel_order %q", m.ChannelOrder)
	}
	if kind == KindLearner && m.Mean == nil && m.Std == nil {
		m.Mean = []float32{0.485, 0.456, 0.406}
		m.Std = []float32{0.229, 0.224, 0.225}
	}
	if (m.Mean != nil && len(m.Mean) != 3) || (m.Std != nil && len(m.Std) != 3) {
		return fmt.Errorf("mean and std need 3 values each")
	}
	for _, s := range m.Std {
		if s == 0 {
			return fmt.Errorf("std must be non-zero")
		}
	}

	if m.LabelScheme == "" {
		if len(m.Classes) > 0 {
			m.LabelScheme = string(labels.SchemeVocab)
		} else {
			m.LabelScheme = string(labels.SchemeCanonical)
		}
	}
	scheme, err := labels.ParseScheme(m.LabelScheme)
	if err != nil {
		return err
	}
	if scheme == labels.SchemeVocab && int64(len(m.Classes)) != m.OutputShape[1] {
		return fmt.Errorf("%d classes but output_shape %v", len(m.Classes), m.OutputShape)
	}
	if kind == KindLearner && len(m.Classes) == 0 {
		return fmt.Errorf("learner metadata must list its classes")
	}
	return nil
}

func (m *Metadata) preprocessor() Preprocessor {
	p := Preprocessor{Layout: m.Layout, Scale: 1.0 / 255, BGR: m.ChannelOrder == "bgr"}
	if m.Layout == LayoutNCHW {
		p.Height, p.Width = int(m.InputShape[2]), int(m.InputShape[3])
	} else {
		p.Height, p.Width = int(m.InputShape[1]), int(m.InputShape[2])
	}
	if m.PixelRange == "byte" {
		p.Scale = 1
	}
	p.Mean = [3]float32{0, 0, 0}
	p.Std = [3]float32{1, 1, 1}
	if m.Mean != nil {
		copy(p.Mean[:], m.Mean)
	}
	if m.Std != nil {
		copy(p.Std[:], m.Std)
	}
	return p
}
