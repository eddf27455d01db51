package provider

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"agentcore/internal/agenterrors"
	"agentcore/internal/core"
	"agentcore/internal/extension"
)

type fakeExtension struct {
	formatRequestBody string
	apiURL            string
	supportsStreaming bool
	parseResponse     extension.AssistantMessage
	streamChunks      map[string]*extension.ContentDelta
}

func (f *fakeExtension) FormatRequest(context.Context, []extension.ProviderMessage, extension.ProviderConfigArgs, []extension.ProviderTool) (string, error) {
	return f.formatRequestBody, nil
}

func (f *fakeExtension) ParseResponse(context.Context, string, string) (extension.AssistantMessage, error) {
	return f.parseResponse, nil
}

func (f *fakeExtension) HandleStreamChunk(_ context.Context, chunk string) (*extension.ContentDelta, error) {
	return f.streamChunks[chunk], nil
}

func (f *fakeExtension) SupportsStreaming(context.Context, string) (bool, error) {
	return f.supportsStreaming, nil
}

func (f *fakeExtension) GetAPIURL(context.Context, string, string) (string, error) {
	return f.apiURL, nil
}

type fakeHTTPDoer struct {
	statusCode int
	body       string
	sse        bool
}

func (f *fakeHTTPDoer) Do(req *http.Request) (*http.Response, error) {
	body := f.body
	return &http.Response{
		StatusCode: f.statusCode,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}, nil
}

func TestGenerateHappyPath(t *testing.T) {
	t.Parallel()
	ext := &fakeExtension{
		formatRequestBody: `{"model":"gpt"}`,
		apiURL:            "https://example.test/v1/chat",
		parseResponse:     extension.AssistantMessage{Content: "hello"},
	}
	doer := &fakeHTTPDoer{statusCode: 200, body: `{"content":"hello"}`}
	facade := New(ext, doer, "https://example.test", "key-123")

	result, err := facade.Generate(context.Background(), []core.Message{{Role: core.RoleUser, Text: "hi"}}, core.GenerateConfig{Model: "gpt"})
	require.NoError(t, err)
	require.Equal(t, "hello", result.Content)
}

func TestGenerateHTTPErrorIsTransport(t *testing.T) {
	t.Parallel()
	ext := &fakeExtension{formatRequestBody: "{}", apiURL: "https://example.test"}
	doer := &fakeHTTPDoer{statusCode: 500, body: "boom"}
	facade := New(ext, doer, "https://example.test", "")

	_, err := facade.Generate(context.Background(), nil, core.GenerateConfig{Model: "gpt"})
	require.Error(t, err)
	require.Equal(t, agenterrors.KindTransport, agenterrors.KindOf(err))
}

func TestGenerateStreamFallsBackToSyntheticChunking(t *testing.T) {
	t.Parallel()
	ext := &fakeExtension{
		formatRequestBody: "{}",
		apiURL:            "https://example.test",
		supportsStreaming: false,
		parseResponse:     extension.AssistantMessage{Content: strings.Repeat("x", 100)},
	}
	doer := &fakeHTTPDoer{statusCode: 200, body: "{}"}
	facade := New(ext, doer, "https://example.test", "")

	stream, err := facade.GenerateStream(context.Background(), nil, core.GenerateConfig{Model: "gpt"})
	require.NoError(t, err)

	var total int
	var sawDone bool
	for chunk := range stream {
		switch chunk.Kind {
		case core.ChunkText:
			total += len(chunk.Text)
		case core.ChunkDone:
			sawDone = true
		}
	}
	require.Equal(t, 100, total)
	require.True(t, sawDone)
}

func TestReassembleToolCallsByIndexSetOnceAppendOnly(t *testing.T) {
	t.Parallel()
	deltas := []core.ToolCallDelta{
		{Index: 0, ID: "call_1", Name: "run_command"},
		{Index: 0, ArgumentsDelta: `{"cmd"`},
		{Index: 0, ArgumentsDelta: `:"ls"}`},
		{Index: 1, ID: "call_2", Name: "submit", ArgumentsDelta: "{}"},
	}
	calls := ReassembleToolCalls(deltas)
	require.Len(t, calls, 2)
	require.Equal(t, "call_1", calls[0].ID)
	require.Equal(t, "run_command", calls[0].Name)
	require.Equal(t, "ls", calls[0].Arguments["cmd"])
	require.Equal(t, "submit", calls[1].Name)
}

func TestPumpSSETerminatesOnDoneMarker(t *testing.T) {
	t.Parallel()
	sse := "data: hello\n\ndata: [DONE]\n\n"
	ext := &fakeExtension{
		streamChunks: map[string]*extension.ContentDelta{
			"hello": {Text: "hello"},
		},
	}
	facade := &Facade{ext: ext}

	out := make(chan core.StreamChunk)
	go facade.pumpSSE(context.Background(), io.NopCloser(strings.NewReader(sse)), out)

	var texts []string
	var sawDone bool
	for chunk := range out {
		if chunk.Kind == core.ChunkText {
			texts = append(texts, chunk.Text)
		}
		if chunk.Kind == core.ChunkDone {
			sawDone = true
		}
	}
	require.Equal(t, []string{"hello"}, texts)
	require.True(t, sawDone)
}

func TestPumpSSEStopsOnContextCancellation(t *testing.T) {
	t.Parallel()
	reader, writer := io.Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ext := &fakeExtension{streamChunks: map[string]*extension.ContentDelta{}}
	facade := &Facade{ext: ext}

	out := make(chan core.StreamChunk)
	go facade.pumpSSE(ctx, reader, out)

	go func() {
		w := bufio.NewWriter(writer)
		_, _ = w.WriteString("data: never-seen\n\n")
		_ = w.Flush()
		_ = writer.Close()
	}()

	for range out {
	}
}
