package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"time"
)

const maxErrorBody = 4096

// serverClient talks to a llama.cpp server through its OpenAI-compatible API.
type serverClient struct {
	baseURL    string
	apiKey     string
	timeout    time.Duration
	httpClient *http.Client
}

func newServerClient(baseURL, apiKey string, timeout time.Duration, httpClient *http.Client) *serverClient {
	if httpClient == nil {
		tr := &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:        10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		}
		// Deadlines come from the request context.
		httpClient = &http.Client{Transport: tr}
	}
	return &serverClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		timeout:    timeout,
		httpClient: httpClient,
	}
}

type modelList struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

// completionRequest is the payload for POST /v1/completions. Temperature and
// top_p are always sent so that zero values reach the server.
type completionRequest struct {
	Model       string  `json:"model,omitempty"`
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float32 `json:"temperature"`
	TopP        float32 `json:"top_p"`
	Stream      bool    `json:"stream"`
}

type completionResponse struct {
	Choices []struct {
		Text         string `json:"text"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// pipeline resolves id against the models the server advertises. A server
// that lists no models is trusted to serve whatever it was started with.
func (c *serverClient) pipeline(ctx context.Context, id string, device Device) (Pipeline, error) {
	if c.baseURL == "" {
		return nil, ErrServerNotConfigured
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: empty model identifier", ErrModelNotFound)
	}

	served, err := c.listModels(ctx)
	if err != nil {
		return nil, err
	}
	model := id
	if len(served) > 0 {
		var ok bool
		if model, ok = matchServedModel(served, id); !ok {
			return nil, fmt.Errorf("%w: %q is not served by %s (serving %s)",
				ErrModelNotFound, id, c.baseURL, strings.Join(served, ", "))
		}
	}
	return &serverPipeline{client: c, model: model, device: device}, nil
}

func matchServedModel(served []string, id string) (string, bool) {
	want := strings.ToLower(strings.TrimSuffix(filepath.Base(id), ggufExt))
	for _, m := range served {
		if m == id {
			return m, true
		}
	}
	for _, m := range served {
		if strings.ToLower(strings.TrimSuffix(filepath.Base(m), ggufExt)) == want {
			return m, true
		}
	}
	return "", false
}

func (c *serverClient) listModels(ctx context.Context) ([]string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/models", nil)
	if err != nil {
		return nil, err
	}
	body, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}

	var list modelList
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("decode model list: %w", err)
	}
	ids := make([]string, 0, len(list.Data))
	for _, m := range list.Data {
		if m.ID != "" {
			ids = append(ids, m.ID)
		}
	}
	return ids, nil
}

// complete runs one generation. It carries no deadline of its own: a slow
// generation runs until the server answers or the connection fails.
func (c *serverClient) complete(ctx context.Context, model, prompt string, p Params) (any, error) {
	payload, err := json.Marshal(completionRequest{
		Model:       model,
		Prompt:      prompt,
		MaxTokens:   p.MaxNewTokens,
		Temperature: samplingTemperature(p),
		TopP:        float32(p.TopP),
		Stream:      false,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var resp completionResponse
	if err := json.Unmarshal(body, &resp); err != nil || len(resp.Choices) == 0 {
		return string(body), nil
	}
	candidates := make([]Candidate, 0, len(resp.Choices))
	for _, choice := range resp.Choices {
		candidates = append(candidates, Candidate{GeneratedText: prompt + choice.Text})
	}
	return candidates, nil
}

func (c *serverClient) do(req *http.Request) ([]byte, error) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("llama server http error: %s: %s", resp.Status, strings.TrimSpace(string(b)))
	}
	return io.ReadAll(resp.Body)
}

// withTimeout bounds startup calls such as model listing. Zero means no deadline.
func (c *serverClient) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout > 0 {
		return context.WithTimeout(ctx, c.timeout)
	}
	return context.WithCancel(ctx)
}

// serverPipeline generates through the server; the device is informational
// since the server owns placement.
type serverPipeline struct {
	client *serverClient
	model  string
	device Device
}

func (p *serverPipeline) Run(ctx context.Context, prompt string, params Params) (any, error) {
	return p.client.complete(ctx, p.model, prompt, params)
}

func (p *serverPipeline) Close() error { return nil }
