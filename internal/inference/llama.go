package inference

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// LlamaOptions configures LlamaRuntime.
type LlamaOptions struct {
	// ModelsDir is searched for GGUF files by identifier.
	ModelsDir   string
	ContextSize int
	Threads     int

	// ServerURL points at a llama.cpp server used by PipelineByName.
	ServerURL     string
	ServerAPIKey  string
	// ServerTimeout bounds the model listing done while resolving a
	// pipeline. Completions are never given a deadline.
	ServerTimeout time.Duration
	// HTTPClient overrides the client used to reach the server.
	HTTPClient *http.Client
}

// LlamaRuntime loads GGUF models in-process through llama.cpp and resolves
// by-name pipelines against a llama.cpp server.
type LlamaRuntime struct {
	opts   LlamaOptions
	server *serverClient
	logger *slog.Logger
}

// NewLlamaRuntime creates a runtime. It performs no I/O.
func NewLlamaRuntime(opts LlamaOptions, logger *slog.Logger) *LlamaRuntime {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Threads <= 0 {
		opts.Threads = 1
	}
	return &LlamaRuntime{
		opts:   opts,
		server: newServerClient(opts.ServerURL, opts.ServerAPIKey, opts.ServerTimeout, opts.HTTPClient),
		logger: logger.With("component", "llama_runtime"),
	}
}

// AcceleratorAvailable probes for an NVIDIA driver on the host.
func (r *LlamaRuntime) AcceleratorAvailable() bool {
	return acceleratorPresent(acceleratorProbePaths)
}

type ggufTokenizer struct {
	name string
	path string
}

func (t ggufTokenizer) Name() string { return t.name }

// LoadTokenizer resolves the GGUF file for id; llama.cpp keeps the vocabulary
// inside the model file, so the tokenizer is the validated file itself.
func (r *LlamaRuntime) LoadTokenizer(_ context.Context, id string) (Tokenizer, error) {
	path, err := resolveModelPath(r.opts.ModelsDir, id)
	if err != nil {
		return nil, err
	}
	if err := checkGGUF(path); err != nil {
		return nil, err
	}
	r.logger.Debug("Tokenizer resolved", "model", id, "path", path)
	return ggufTokenizer{name: id, path: path}, nil
}

// LoadModel loads the weights for id with the given placement.
func (r *LlamaRuntime) LoadModel(_ context.Context, id string, opts LoadOptions) (Model, error) {
	path, err := resolveModelPath(r.opts.ModelsDir, id)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("Loading weights", "model", id, "path", path,
		"half_precision", opts.HalfPrecision, "gpu_layers", opts.GPULayers, "context_size", r.opts.ContextSize)

	m, err := loadLlamaModel(id, path, r.opts.ContextSize, opts)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// NewPipeline binds a model returned by LoadModel.
func (r *LlamaRuntime) NewPipeline(tok Tokenizer, model Model, device Device) (Pipeline, error) {
	lm, ok := model.(*llamaModel)
	if !ok {
		return nil, fmt.Errorf("unsupported model type %T", model)
	}
	if gt, ok := tok.(ggufTokenizer); ok && gt.name != lm.name {
		return nil, fmt.Errorf("tokenizer %q does not match model %q", gt.name, lm.name)
	}
	return &llamaPipeline{model: lm, threads: r.opts.Threads, device: device}, nil
}

// PipelineByName asks the llama.cpp server whether it serves id.
func (r *LlamaRuntime) PipelineByName(ctx context.Context, id string, device Device) (Pipeline, error) {
	return r.server.pipeline(ctx, id, device)
}

// llamaPipeline runs Predict on an in-process model. It must not be used
// concurrently; the worker pool serializes calls.
type llamaPipeline struct {
	model   *llamaModel
	threads int
	device  Device
}

func (p *llamaPipeline) Run(ctx context.Context, prompt string, params Params) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	continuation, err := p.model.predict(prompt, params, p.threads)
	if err != nil {
		return nil, err
	}
	return []Candidate{{GeneratedText: prompt + continuation}}, nil
}

func (p *llamaPipeline) Close() error {
	return p.model.Close()
}

func (m *llamaModel) Name() string { return m.name }

// samplingTemperature maps do_sample=false to greedy decoding.
func samplingTemperature(p Params) float32 {
	if !p.DoSample {
		return 0
	}
	return float32(p.Temperature)
}
