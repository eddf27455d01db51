// Package provider implements the provider facade of SPEC_FULL §4.5: the
// generate/generate_stream contract the orchestration loop calls against
// an LLM, mediated entirely through a loaded extension's provider world
// (per spec.md §4.5's "Implementation via extension" paragraph — this
// facade never talks to a vendor HTTP endpoint directly) with the HTTP
// transport, SSE framing, synthetic-streaming fallback, and tool-call
// delta reassembly grounded on the reference repository's
// internal/infra/llm/{openai_client.go,openai_responses_client.go,
// stream_scanner.go,streaming_adapter.go,retry_client.go}.
package provider

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"agentcore/internal/agenterrors"
	"agentcore/internal/core"
	"agentcore/internal/extension"
)

const (
	streamScannerInitialBuffer = 64 * 1024
	streamScannerMaxBuffer     = 512 * 1024

	// syntheticChunkSize is the fixed piece length the synthetic streaming
	// fallback splits a non-streaming response's content into, so a
	// provider-extension that never implements handle_stream_chunk still
	// produces a plausible sequence of StreamChunks rather than one giant
	// chunk.
	syntheticChunkSize = 48

	// breakerFailureThreshold and breakerResetTimeout size the circuit
	// breaker guarding the provider HTTP transport: consecutive connection
	// failures or non-2xx responses trip it before max_retries is spent
	// dialing a collaborator that is already down.
	breakerFailureThreshold = 5
	breakerResetTimeout     = 30 * time.Second
)

// Extension narrows *extension.Instance to the provider-world calls this
// facade needs, so tests can substitute a fake.
type Extension interface {
	FormatRequest(ctx context.Context, messages []extension.ProviderMessage, cfg extension.ProviderConfigArgs, tools []extension.ProviderTool) (string, error)
	ParseResponse(ctx context.Context, body, model string) (extension.AssistantMessage, error)
	HandleStreamChunk(ctx context.Context, chunk string) (*extension.ContentDelta, error)
	SupportsStreaming(ctx context.Context, model string) (bool, error)
	GetAPIURL(ctx context.Context, baseURL, model string) (string, error)
}

// HTTPDoer is the narrow *http.Client surface the facade depends on.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Facade is the provider abstraction the orchestration loop drives.
// It owns the HTTP client and SSE decoding; every request/response shape
// decision is delegated to the loaded extension.
type Facade struct {
	ext     Extension
	http    HTTPDoer
	baseURL string
	apiKey  string
	breaker *agenterrors.CircuitBreaker
}

// New builds a Facade over ext, calling baseURL with apiKey as a bearer
// token. httpClient may be nil, in which case http.DefaultClient is used.
func New(ext Extension, httpClient HTTPDoer, baseURL, apiKey string) *Facade {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Facade{
		ext:     ext,
		http:    httpClient,
		baseURL: baseURL,
		apiKey:  apiKey,
		breaker: agenterrors.NewCircuitBreaker(breakerFailureThreshold, breakerResetTimeout),
	}
}

// breakerAllow reports whether a call should proceed, tolerating a Facade
// built via a bare struct literal (as provider_test.go's SSE-only tests do)
// where breaker was never set.
func (f *Facade) breakerAllow() bool {
	if f.breaker == nil {
		return true
	}
	return f.breaker.Allow()
}

func (f *Facade) breakerRecordSuccess() {
	if f.breaker != nil {
		f.breaker.RecordSuccess()
	}
}

func (f *Facade) breakerRecordFailure() {
	if f.breaker != nil {
		f.breaker.RecordFailure()
	}
}

func toProviderMessages(messages []core.Message) []extension.ProviderMessage {
	out := make([]extension.ProviderMessage, len(messages))
	for i, m := range messages {
		out[i] = extension.ProviderMessage{Role: string(m.Role), Content: m.Text}
	}
	return out
}

func toProviderTools(defs []core.InvokerDefinition) []extension.ProviderTool {
	out := make([]extension.ProviderTool, len(defs))
	for i, d := range defs {
		out[i] = extension.ProviderTool{Name: d.Name, Description: d.Description, Parameters: d.Parameters}
	}
	return out
}

func (f *Facade) buildRequest(ctx context.Context, messages []core.Message, cfg core.GenerateConfig) (*http.Request, error) {
	var maxTokens *uint32
	if cfg.MaxTokens != nil {
		v := uint32(*cfg.MaxTokens)
		maxTokens = &v
	}
	providerCfg := extension.ProviderConfigArgs{
		Model:        cfg.Model,
		Temperature:  float32(cfg.Temperature),
		MaxTokens:    maxTokens,
		EnableStream: cfg.Streaming,
	}

	body, err := f.ext.FormatRequest(ctx, toProviderMessages(messages), providerCfg, toProviderTools(cfg.Tools))
	if err != nil {
		return nil, agenterrors.Wrap(agenterrors.KindProtocol, err)
	}

	url, err := f.ext.GetAPIURL(ctx, f.baseURL, cfg.Model)
	if err != nil {
		return nil, agenterrors.Wrap(agenterrors.KindProtocol, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(body))
	if err != nil {
		return nil, agenterrors.Wrap(agenterrors.KindTransport, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if cfg.Streaming {
		req.Header.Set("Accept", "text/event-stream")
	} else {
		req.Header.Set("Accept", "application/json")
	}
	if f.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+f.apiKey)
	}
	return req, nil
}

// Generate issues one non-streaming provider call: build the request via
// the extension, POST it, and ask the extension to parse the response
// body into a GenerateResult.
func (f *Facade) Generate(ctx context.Context, messages []core.Message, cfg core.GenerateConfig) (core.GenerateResult, error) {
	cfg.Streaming = false
	req, err := f.buildRequest(ctx, messages, cfg)
	if err != nil {
		return core.GenerateResult{}, err
	}

	if !f.breakerAllow() {
		return core.GenerateResult{}, agenterrors.New(agenterrors.KindTransport, "provider circuit breaker open", nil)
	}

	resp, err := f.http.Do(req)
	if err != nil {
		f.breakerRecordFailure()
		return core.GenerateResult{}, agenterrors.Wrap(agenterrors.KindTransport, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		f.breakerRecordFailure()
		return core.GenerateResult{}, agenterrors.Wrap(agenterrors.KindTransport, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		f.breakerRecordFailure()
		return core.GenerateResult{}, agenterrors.New(agenterrors.KindTransport, fmt.Sprintf("provider returned HTTP %d: %s", resp.StatusCode, string(respBody)), nil)
	}
	f.breakerRecordSuccess()

	parsed, err := f.ext.ParseResponse(ctx, string(respBody), cfg.Model)
	if err != nil {
		return core.GenerateResult{}, agenterrors.Wrap(agenterrors.KindProtocol, err)
	}

	calls := make([]core.ToolCall, len(parsed.ToolCalls))
	for i, c := range parsed.ToolCalls {
		calls[i] = core.ToolCall{ID: c.ID, Name: c.Name, Arguments: c.Arguments}
	}
	return core.GenerateResult{Content: parsed.Content, ToolCalls: calls}, nil
}

// GenerateStream issues a provider call and delivers StreamChunks on the
// returned channel. If the extension's provider reports no native
// streaming support for this model, the facade falls back to a single
// Generate call whose content is split into fixed-size synthetic chunks,
// mirroring the reference repository's EnsureStreamingClient fallback
// adapter (streaming_adapter.go) generalized from full-content-in-one-
// chunk to fixed-size pieces so downstream consumers exercise the same
// incremental-rendering path regardless of provider capability. The
// channel is closed when the stream ends or ctx is cancelled; a dropped
// receiver (abandoned channel) terminates the underlying HTTP response
// promptly via ctx cancellation, satisfying the facade's cancel-safety
// requirement.
func (f *Facade) GenerateStream(ctx context.Context, messages []core.Message, cfg core.GenerateConfig) (<-chan core.StreamChunk, error) {
	supportsStreaming, err := f.ext.SupportsStreaming(ctx, cfg.Model)
	if err != nil {
		return nil, agenterrors.Wrap(agenterrors.KindProtocol, err)
	}
	if !supportsStreaming {
		return f.syntheticStream(ctx, messages, cfg)
	}

	cfg.Streaming = true
	req, err := f.buildRequest(ctx, messages, cfg)
	if err != nil {
		return nil, err
	}

	if !f.breakerAllow() {
		return nil, agenterrors.New(agenterrors.KindTransport, "provider circuit breaker open", nil)
	}

	resp, err := f.http.Do(req)
	if err != nil {
		f.breakerRecordFailure()
		return nil, agenterrors.Wrap(agenterrors.KindTransport, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		f.breakerRecordFailure()
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(resp.Body)
		return nil, agenterrors.New(agenterrors.KindTransport, fmt.Sprintf("provider returned HTTP %d: %s", resp.StatusCode, string(respBody)), nil)
	}
	f.breakerRecordSuccess()

	out := make(chan core.StreamChunk)
	go f.pumpSSE(ctx, resp.Body, out)
	return out, nil
}

func (f *Facade) syntheticStream(ctx context.Context, messages []core.Message, cfg core.GenerateConfig) (<-chan core.StreamChunk, error) {
	result, err := f.Generate(ctx, messages, cfg)
	if err != nil {
		return nil, err
	}

	out := make(chan core.StreamChunk)
	go func() {
		defer close(out)
		content := result.Content
		for len(content) > 0 {
			n := syntheticChunkSize
			if n > len(content) {
				n = len(content)
			}
			select {
			case out <- core.StreamChunk{Kind: core.ChunkText, Text: content[:n]}:
			case <-ctx.Done():
				return
			}
			content = content[n:]
		}
		for i, call := range result.ToolCalls {
			argsJSON, _ := json.Marshal(call.Arguments)
			select {
			case out <- core.StreamChunk{Kind: core.ChunkToolDelta, Delta: core.ToolCallDelta{Index: i, ID: call.ID, Name: call.Name, ArgumentsDelta: string(argsJSON)}}:
			case <-ctx.Done():
				return
			}
		}
		select {
		case out <- core.StreamChunk{Kind: core.ChunkDone}:
		case <-ctx.Done():
		}
	}()
	return out, nil
}

func (f *Facade) pumpSSE(ctx context.Context, body io.ReadCloser, out chan<- core.StreamChunk) {
	defer close(out)
	defer body.Close()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, streamScannerInitialBuffer), streamScannerMaxBuffer)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" {
			continue
		}
		if payload == "[DONE]" {
			break
		}

		delta, err := f.ext.HandleStreamChunk(ctx, payload)
		if err != nil {
			select {
			case out <- core.StreamChunk{Kind: core.ChunkError, Err: agenterrors.Wrap(agenterrors.KindProtocol, err)}:
			case <-ctx.Done():
			}
			return
		}
		if delta == nil {
			continue
		}
		if delta.Text != "" {
			select {
			case out <- core.StreamChunk{Kind: core.ChunkText, Text: delta.Text}:
			case <-ctx.Done():
				return
			}
		}
		if delta.ToolDelta != nil {
			td := delta.ToolDelta
			argsJSON, _ := json.Marshal(td.Arguments)
			select {
			case out <- core.StreamChunk{Kind: core.ChunkToolDelta, Delta: core.ToolCallDelta{ID: td.ID, Name: td.Name, ArgumentsDelta: string(argsJSON)}}:
			case <-ctx.Done():
				return
			}
		}
		if delta.Done {
			break
		}
	}

	if err := scanner.Err(); err != nil {
		select {
		case out <- core.StreamChunk{Kind: core.ChunkError, Err: agenterrors.Wrap(agenterrors.KindTransport, err)}:
		default:
		}
		return
	}

	select {
	case out <- core.StreamChunk{Kind: core.ChunkDone}:
	case <-ctx.Done():
	}
}

// ReassembleToolCalls folds a sequence of ToolCallDeltas into complete
// ToolCalls, keyed by Index per SPEC_FULL §4.5: ID and Name are
// set-once, ArgumentsDelta is append-only, matching the reference
// repository's toolAccumulator map in openai_client.go's StreamComplete.
func ReassembleToolCalls(deltas []core.ToolCallDelta) []core.ToolCall {
	type acc struct {
		id, name string
		args     strings.Builder
	}
	order := make([]int, 0)
	byIndex := make(map[int]*acc)

	for _, d := range deltas {
		a, ok := byIndex[d.Index]
		if !ok {
			a = &acc{}
			byIndex[d.Index] = a
			order = append(order, d.Index)
		}
		if d.ID != "" && a.id == "" {
			a.id = d.ID
		}
		if d.Name != "" && a.name == "" {
			a.name = d.Name
		}
		if d.ArgumentsDelta != "" {
			a.args.WriteString(d.ArgumentsDelta)
		}
	}

	calls := make([]core.ToolCall, 0, len(order))
	for _, idx := range order {
		a := byIndex[idx]
		var args map[string]any
		_ = json.Unmarshal([]byte(a.args.String()), &args)
		calls = append(calls, core.ToolCall{ID: a.id, Name: a.name, Arguments: args})
	}
	return calls
}
