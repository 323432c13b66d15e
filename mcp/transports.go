package mcp

import (
	"context"
	"fmt"
	"sort"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	mcpproto "github.com/mark3labs/mcp-go/mcp"
)

// Built-in transport kinds.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
	TransportSSE   = "sse"
)

// Tool describes a tool discovered on an MCP server.
type Tool struct {
	Server      string
	Name        string
	Description string
}

// Session is a connected MCP server.
type Session interface {
	ListTools(ctx context.Context) ([]Tool, error)
	Close() error
}

// Dialer connects to a server of one transport kind.
type Dialer func(ctx context.Context, name string, cfg ServerConfig) (Session, error)

// TransportRegistry maps transport kinds to dialers. Build it during
// startup and hand it to NewProvider.
type TransportRegistry struct {
	dialers map[string]Dialer
}

func NewTransportRegistry() *TransportRegistry {
	return &TransportRegistry{dialers: map[string]Dialer{}}
}

// DefaultTransports registers stdio, http (streamable) and sse.
func DefaultTransports() *TransportRegistry {
	r := NewTransportRegistry()
	r.Register(TransportStdio, dialStdio)
	r.Register(TransportHTTP, dialStreamableHTTP)
	r.Register(TransportSSE, dialSSE)
	return r
}

func (r *TransportRegistry) Register(kind string, d Dialer) {
	r.dialers[kind] = d
}

func (r *TransportRegistry) Kinds() []string {
	out := make([]string, 0, len(r.dialers))
	for k := range r.dialers {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Dial connects using the server's transport kind.
func (r *TransportRegistry) Dial(ctx context.Context, name string, cfg ServerConfig) (Session, error) {
	kind := cfg.TransportKind()
	d, ok := r.dialers[kind]
	if !ok {
		return nil, fmt.Errorf("unknown MCP transport: %s", kind)
	}
	return d(ctx, name, cfg)
}

func dialStdio(ctx context.Context, name string, cfg ServerConfig) (Session, error) {
	command := cfg.Command
	if command == "" {
		command = "npx"
	}
	env := make([]string, 0, len(cfg.Env))
	for k, v := range cfg.Env {
		env = append(env, k+"="+v)
	}
	c, err := client.NewStdioMCPClient(command, env, cfg.Args...)
	if err != nil {
		return nil, fmt.Errorf("mcp %s: start stdio: %w", name, err)
	}
	return initialize(ctx, name, c)
}

func dialStreamableHTTP(ctx context.Context, name string, cfg ServerConfig) (Session, error) {
	var opts []transport.StreamableHTTPCOption
	if len(cfg.Headers) > 0 {
		opts = append(opts, transport.WithHTTPHeaders(cfg.Headers))
	}
	c, err := client.NewStreamableHttpClient(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("mcp %s: http client: %w", name, err)
	}
	if err := c.Start(ctx); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("mcp %s: start http: %w", name, err)
	}
	return initialize(ctx, name, c)
}

func dialSSE(ctx context.Context, name string, cfg ServerConfig) (Session, error) {
	var opts []transport.ClientOption
	if len(cfg.Headers) > 0 {
		opts = append(opts, transport.WithHeaders(cfg.Headers))
	}
	c, err := client.NewSSEMCPClient(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("mcp %s: sse client: %w", name, err)
	}
	if err := c.Start(ctx); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("mcp %s: start sse: %w", name, err)
	}
	return initialize(ctx, name, c)
}

func initialize(ctx context.Context, name string, c *client.Client) (Session, error) {
	req := mcpproto.InitializeRequest{}
	req.Params.ProtocolVersion = mcpproto.LATEST_PROTOCOL_VERSION
	req.Params.ClientInfo = mcpproto.Implementation{Name: "promocopy", Version: "0.1.0"}
	if _, err := c.Initialize(ctx, req); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("mcp %s: initialize: %w", name, err)
	}
	return &clientSession{name: name, c: c}, nil
}

type clientSession struct {
	name string
	c    *client.Client
}

func (s *clientSession) ListTools(ctx context.Context) ([]Tool, error) {
	res, err := s.c.ListTools(ctx, mcpproto.ListToolsRequest{})
	if err != nil {
		return nil, err
	}
	out := make([]Tool, 0, len(res.Tools))
	for _, t := range res.Tools {
		out = append(out, Tool{Server: s.name, Name: t.Name, Description: t.Description})
	}
	return out, nil
}

func (s *clientSession) Close() error {
	return s.c.Close()
}
