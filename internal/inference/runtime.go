package inference

import (
	"context"
)

// Params are the sampling controls for a single generation call.
type Params struct {
	MaxNewTokens int
	Temperature  float64
	TopP         float64
	DoSample     bool
}

// Candidate is one generation returned by a Pipeline. GeneratedText holds the
// prompt followed by the continuation.
type Candidate struct {
	GeneratedText string `json:"generated_text"`
}

// LoadOptions controls how model weights are placed.
type LoadOptions struct {
	// HalfPrecision keeps the context in 16-bit floats.
	HalfPrecision bool
	// GPULayers is the number of layers offloaded to the accelerator.
	GPULayers int
}

// Tokenizer is a resolved tokenizer artifact.
type Tokenizer interface {
	Name() string
}

// Model is a loaded causal language model.
type Model interface {
	Name() string
	Close() error
}

// Pipeline binds a tokenizer, a model and a device into a single callable.
type Pipeline interface {
	// Run generates text for prompt. The result is usually []Candidate, but
	// callers must accept any other value.
	Run(ctx context.Context, prompt string, params Params) (any, error)
	Close() error
}

// Runtime is the text-generation library the Engine drives.
type Runtime interface {
	AcceleratorAvailable() bool
	LoadTokenizer(ctx context.Context, id string) (Tokenizer, error)
	LoadModel(ctx context.Context, id string, opts LoadOptions) (Model, error)
	NewPipeline(tok Tokenizer, model Model, device Device) (Pipeline, error)
	// PipelineByName resolves a ready pipeline from the identifier alone.
	// It is slower and more permissive than the direct path.
	PipelineByName(ctx context.Context, id string, device Device) (Pipeline, error)
}
