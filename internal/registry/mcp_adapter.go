package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"agentcore/internal/agenterrors"
	"agentcore/internal/core"
	"agentcore/internal/observability"
)

// mcpBreakerThreshold and mcpBreakerReset size the per-server circuit
// breaker guarding MCP RPC calls, matching the provider facade's defaults
// so a wedged server stops being retried well before max_retries is spent
// dialing it.
const (
	mcpBreakerThreshold = 5
	mcpBreakerReset     = 30 * time.Second
)

// MCPServerConfig is one entry of the ".mcp.json"-style configuration
// shape the reference repository's internal/infra/mcp/config.go reads
// (`{"mcpServers": {name: {command, args, env}}}`), narrowed to the
// stdio transport mark3labs/mcp-go's client package ships.
type MCPServerConfig struct {
	Command string
	Args    []string
	Env     map[string]string
}

// MCPAdapter discovers tools from a set of stdio MCP servers and tags them
// core.SourceMCP, per SPEC_FULL §4.3's adapter trait. Grounded on the
// reference repository's internal/infra/mcp/registry.go loadServerTools
// warn-and-continue pattern: a server that fails to start or list tools is
// logged and skipped, never failing discovery for the rest.
type MCPAdapter struct {
	servers  map[string]MCPServerConfig
	log      observability.Logger
	clients  map[string]*mcpclient.Client
	breakers map[string]*agenterrors.CircuitBreaker
}

// NewMCPAdapter builds an adapter over the given named server configs.
func NewMCPAdapter(servers map[string]MCPServerConfig, log observability.Logger) *MCPAdapter {
	return &MCPAdapter{
		servers:  servers,
		log:      observability.OrNop(log),
		clients:  map[string]*mcpclient.Client{},
		breakers: map[string]*agenterrors.CircuitBreaker{},
	}
}

// breakerFor returns the per-server circuit breaker guarding connect and RPC
// calls against name, creating one on first use.
func (a *MCPAdapter) breakerFor(name string) *agenterrors.CircuitBreaker {
	if b, ok := a.breakers[name]; ok {
		return b
	}
	b := agenterrors.NewCircuitBreaker(mcpBreakerThreshold, mcpBreakerReset)
	a.breakers[name] = b
	return b
}

func (a *MCPAdapter) Source() core.InvokerSource { return core.SourceMCP }

// Discover starts each configured server over stdio, lists its tools, and
// converts each into a DiscoveredCapability backed by an Executor that
// calls back into that server. A server that fails to start or whose
// ListTools call fails is skipped with a warning rather than aborting the
// whole scan.
func (a *MCPAdapter) Discover() ([]DiscoveredCapability, error) {
	ctx := context.Background()
	var out []DiscoveredCapability

	for name, cfg := range a.servers {
		breaker := a.breakerFor(name)
		if !breaker.Allow() {
			a.log.Warn("mcp server %q unavailable: circuit breaker open", name)
			continue
		}

		c, err := a.connect(ctx, name, cfg)
		if err != nil {
			breaker.RecordFailure()
			a.log.Warn("mcp server %q unavailable: %v", name, err)
			continue
		}
		breaker.RecordSuccess()

		result, err := c.ListTools(ctx, mcp.ListToolsRequest{})
		if err != nil {
			a.log.Warn("mcp server %q: list tools failed: %v", name, err)
			continue
		}

		for _, t := range result.Tools {
			def := core.InvokerDefinition{
				Name:           t.Name,
				Description:    t.Description,
				Parameters:     schemaToMap(t.InputSchema),
				Source:         core.SourceMCP,
				SourceMetadata: map[string]any{"server": name},
			}
			out = append(out, DiscoveredCapability{
				Definition: def,
				Executor:   &mcpExecutor{client: c, server: name, tool: t.Name, breaker: breaker},
			})
		}
	}

	return out, nil
}

func (a *MCPAdapter) connect(ctx context.Context, name string, cfg MCPServerConfig) (*mcpclient.Client, error) {
	if c, ok := a.clients[name]; ok {
		return c, nil
	}

	var env []string
	for k, v := range cfg.Env {
		env = append(env, k+"="+v)
	}

	c, err := mcpclient.NewStdioMCPClient(cfg.Command, env, cfg.Args...)
	if err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}
	if _, err := c.Initialize(ctx, mcp.InitializeRequest{}); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("initialize: %w", err)
	}

	a.clients[name] = c
	return c, nil
}

// Close tears down every started server process.
func (a *MCPAdapter) Close() error {
	var firstErr error
	for _, c := range a.clients {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func schemaToMap(schema mcp.ToolInputSchema) map[string]any {
	data, err := json.Marshal(schema)
	if err != nil {
		return map[string]any{}
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return map[string]any{}
	}
	return out
}

// mcpExecutor forwards a dispatched tool call to its owning MCP server,
// per spec.md §9 Design Note (c): dispatch never special-cases source by
// name prefix, only by the InvokerDefinition's tagged Source.
type mcpExecutor struct {
	client  *mcpclient.Client
	server  string
	tool    string
	breaker *agenterrors.CircuitBreaker
}

func (e *mcpExecutor) Execute(arguments map[string]any) (string, error) {
	if !e.breaker.Allow() {
		return "", fmt.Errorf("mcp server %q: circuit breaker open", e.server)
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = e.tool
	req.Params.Arguments = arguments

	result, err := e.client.CallTool(context.Background(), req)
	if err != nil {
		e.breaker.RecordFailure()
		return "", fmt.Errorf("mcp server %q: call %s: %w", e.server, e.tool, err)
	}

	var sb []byte
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			sb = append(sb, []byte(tc.Text)...)
		}
	}
	if result.IsError {
		e.breaker.RecordFailure()
		return "", fmt.Errorf("mcp server %q: tool %s reported an error: %s", e.server, e.tool, string(sb))
	}
	e.breaker.RecordSuccess()
	return string(sb), nil
}
