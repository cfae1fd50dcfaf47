package inference

import (
	"errors"
	"fmt"
)

var (
	// ErrGeneration wraps every failure of Engine.Generate.
	ErrGeneration = errors.New("generation failed")
	// ErrInvalidMaxNewTokens is returned when max_new_tokens is not positive.
	ErrInvalidMaxNewTokens = errors.New("max_new_tokens must be positive")
	// ErrModelNotFound is returned when an identifier resolves to no model.
	ErrModelNotFound = errors.New("model not found")
	// ErrRuntimeNotBuilt is returned by the in-process runtime when the binary
	// was built without the 'llama' tag.
	ErrRuntimeNotBuilt = errors.New("llama support not built (missing 'llama' build tag)")
	// ErrServerNotConfigured is returned by PipelineByName without a server URL.
	ErrServerNotConfigured = errors.New("llama server url not configured")
)

// LoadError reports that both the direct load and the by-name fallback failed.
type LoadError struct {
	ModelID  string
	Device   Device
	Direct   error
	Fallback error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load model %q on %s: direct load: %v; fallback pipeline: %v",
		e.ModelID, e.Device, e.Direct, e.Fallback)
}

// Unwrap exposes both causes to errors.Is and errors.As.
func (e *LoadError) Unwrap() []error {
	return []error{e.Direct, e.Fallback}
}
