package model

import (
	"fmt"
	"strconv"

	"github.com/rs/zerolog/log"
	ort "github.com/yalue/onnxruntime_go"
)

type RuntimeOptions struct {
	// SharedLibraryPath points at libonnxruntime. Empty uses the library's
	// platform default.
	SharedLibraryPath string
	// DisableAcceleration keeps every session on the CPU provider.
	DisableAcceleration bool
	CUDADevice          int
	IntraOpThreads      int
}

// Runtime owns the process-wide ONNX Runtime environment. Create it once at
// startup and Close it after every adapter has been closed.
type Runtime struct {
	opts RuntimeOptions
}

func NewRuntime(opts RuntimeOptions) (*Runtime, error) {
	if opts.SharedLibraryPath != "" {
		ort.SetSharedLibraryPath(opts.SharedLibraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
	}
	log.Info().
		Bool("acceleration", !opts.DisableAcceleration).
		Int("intra_op_threads", opts.IntraOpThreads).
		Msg("onnx runtime initialized")
	return &Runtime{opts: opts}, nil
}

// sessionOptions builds options for one session. The returned release func
// must be called once the session has been created.
func (r *Runtime) sessionOptions() (*ort.SessionOptions, func(), error) {
	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create session options: %w", err)
	}
	release := func() { options.Destroy() }

	if r.opts.IntraOpThreads > 0 {
		if err := options.SetIntraOpNumThreads(r.opts.IntraOpThreads); err != nil {
			release()
			return nil, nil, fmt.Errorf("failed to set intra-op threads: %w", err)
		}
	}
	if r.opts.DisableAcceleration {
		return options, release, nil
	}

	cuda, err := ort.NewCUDAProviderOptions()
	if err != nil {
		log.Warn().Err(err).Msg("CUDA provider unavailable, using CPU")
		return options, release, nil
	}
	if err := cuda.Update(map[string]string{"device_id": strconv.Itoa(r.opts.CUDADevice)}); err != nil {
		cuda.Destroy()
		log.Warn().Err(err).Msg("invalid CUDA provider options, using CPU")
		return options, release, nil
	}
	if err := options.AppendExecutionProviderCUDA(cuda); err != nil {
		cuda.Destroy()
		log.Warn().Err(err).Msg("failed to enable CUDA provider, using CPU")
		return options, release, nil
	}
	return options, func() {
		cuda.Destroy()
		options.Destroy()
	}, nil
}

func (r *Runtime) Close() error {
	return ort.DestroyEnvironment()
}
