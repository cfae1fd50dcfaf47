// Package inference owns the loaded text-generation model and serves blocking
// generation calls. An Engine is built once at startup and shared by every
// request; it performs device placement during construction only.
package inference

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// Engine holds one loaded pipeline.
type Engine struct {
	modelID  string
	device   Device
	pipeline Pipeline
	logger   *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

// NewEngine resolves the device, loads the tokenizer and model directly and
// falls back to Runtime.PipelineByName if any direct step fails. When both
// paths fail it returns a *LoadError and the caller must not serve requests.
func NewEngine(ctx context.Context, rt Runtime, modelID, deviceSelector string, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	log := logger.With("component", "inference_engine")

	device := ResolveDevice(deviceSelector, rt.AcceleratorAvailable())
	log.Info("Loading model", "model", modelID, "device_selector", deviceSelector, "device", device.String())
	startTime := time.Now()

	pipeline, directErr := loadDirect(ctx, rt, modelID, device)
	if directErr != nil {
		log.Warn("Direct model load failed, falling back to pipeline by name",
			"model", modelID, "device", device.String(), "error", directErr)

		var fallbackErr error
		pipeline, fallbackErr = rt.PipelineByName(ctx, modelID, device)
		if fallbackErr != nil {
			loadErr := &LoadError{ModelID: modelID, Device: device, Direct: directErr, Fallback: fallbackErr}
			log.Error("Model could not be loaded", "error", loadErr)
			return nil, loadErr
		}
	}

	log.Info("Model loaded",
		"model", modelID,
		"device", device.String(),
		"fallback", directErr != nil,
		"duration", time.Since(startTime))

	return &Engine{
		modelID:  modelID,
		device:   device,
		pipeline: pipeline,
		logger:   log,
	}, nil
}

func loadDirect(ctx context.Context, rt Runtime, modelID string, device Device) (Pipeline, error) {
	tok, err := rt.LoadTokenizer(ctx, modelID)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer: %w", err)
	}
	model, err := rt.LoadModel(ctx, modelID, device.LoadOptions())
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}
	pipeline, err := rt.NewPipeline(tok, model, device)
	if err != nil {
		_ = model.Close()
		return nil, fmt.Errorf("build pipeline: %w", err)
	}
	return pipeline, nil
}

// ModelID returns the identifier the engine was built with.
func (e *Engine) ModelID() string { return e.modelID }

// Device returns the resolved compute target.
func (e *Engine) Device() Device { return e.device }

// Generate runs the pipeline once and returns the first candidate's text,
// which includes the prompt verbatim. Temperature and topP are passed through
// unvalidated. Generate blocks for the whole computation and is meant to be
// called from a worker, not from an update handler directly.
func (e *Engine) Generate(ctx context.Context, prompt string, maxNewTokens int, temperature, topP float64, doSample bool) (string, error) {
	if maxNewTokens <= 0 {
		return "", fmt.Errorf("%w: %w (got %d)", ErrGeneration, ErrInvalidMaxNewTokens, maxNewTokens)
	}

	params := Params{
		MaxNewTokens: maxNewTokens,
		Temperature:  temperature,
		TopP:         topP,
		DoSample:     doSample,
	}
	e.logger.DebugContext(ctx, "Generating",
		"prompt_chars", len(prompt),
		"max_new_tokens", params.MaxNewTokens,
		"temperature", params.Temperature,
		"top_p", params.TopP,
		"do_sample", params.DoSample)

	out, err := e.pipeline.Run(ctx, prompt, params)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrGeneration, err)
	}
	return firstText(out)
}

// firstText extracts the generated text from a pipeline result. Values that
// are not a candidate list are rendered with fmt.Sprint.
func firstText(out any) (string, error) {
	switch v := out.(type) {
	case []Candidate:
		if len(v) == 0 {
			return "", fmt.Errorf("%w: pipeline returned no candidates", ErrGeneration)
		}
		return v[0].GeneratedText, nil
	case string:
		return v, nil
	default:
		return fmt.Sprint(out), nil
	}
}

// Close releases the pipeline. It is safe to call more than once.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		e.closeErr = e.pipeline.Close()
		e.logger.Info("Model released", "model", e.modelID)
	})
	return e.closeErr
}
