//go:build llama

package inference

import (
	llama "github.com/go-skynet/go-llama.cpp"
)

// llamaModel owns an in-process llama.cpp context.
type llamaModel struct {
	name string
	l    *llama.LLama
}

func loadLlamaModel(name, path string, contextSize int, opts LoadOptions) (*llamaModel, error) {
	mo := []llama.ModelOption{
		llama.SetContext(contextSize),
	}
	if opts.GPULayers > 0 {
		mo = append(mo, llama.SetGPULayers(opts.GPULayers))
	}
	if opts.HalfPrecision {
		mo = append(mo, llama.EnableF16Memory)
	}

	l, err := llama.New(path, mo...)
	if err != nil {
		return nil, err
	}
	return &llamaModel{name: name, l: l}, nil
}

func (m *llamaModel) predict(prompt string, p Params, threads int) (string, error) {
	po := []llama.PredictOption{
		llama.SetTokens(p.MaxNewTokens),
		llama.SetThreads(threads),
		llama.SetTopP(float32(p.TopP)),
		llama.SetTemperature(samplingTemperature(p)),
	}
	return m.l.Predict(prompt, po...)
}

func (m *llamaModel) Close() error {
	if m.l != nil {
		m.l.Free()
		m.l = nil
	}
	return nil
}
