//go:build !llama

package inference

// Default builds stay CGO-free: the in-process runtime refuses to load and
// NewEngine falls back to the llama.cpp server.

type llamaModel struct {
	name string
}

func loadLlamaModel(name, path string, contextSize int, opts LoadOptions) (*llamaModel, error) {
	return nil, ErrRuntimeNotBuilt
}

func (m *llamaModel) predict(prompt string, p Params, threads int) (string, error) {
	return "", ErrRuntimeNotBuilt
}

func (m *llamaModel) Close() error {
	return nil
}
