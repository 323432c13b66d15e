package mcp

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const maxConcurrentDials = 4

// ProviderOptions configures a Provider.
type ProviderOptions struct {
	ServersPath string
	Transports  *TransportRegistry
	Logger      *zap.Logger
}

// Provider connects to the enabled servers on first use, caches their tool
// lists for the process lifetime and answers per-stage lookups. Servers
// that fail to connect are logged and skipped. A config that fails to load
// leaves the provider unconnected so the next call tries again.
type Provider struct {
	opts   ProviderOptions
	logger *zap.Logger

	mu        sync.Mutex
	connected bool
	cfg       Config
	sessions  []Session
	tools     []Tool
}

func NewProvider(opts ProviderOptions) *Provider {
	if opts.Transports == nil {
		opts.Transports = DefaultTransports()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{opts: opts, logger: logger.Named("mcp")}
}

// Connect runs discovery if it has not succeeded yet. Sessions outlive the
// caller: they are dialed with ctx's values but without its cancellation.
func (p *Provider) Connect(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.connected {
		return
	}
	cfg, err := LoadConfig(p.opts.ServersPath)
	if err != nil {
		p.logger.Warn("load mcp config", zap.Error(err))
		return
	}
	p.cfg = cfg
	dialCtx := context.WithoutCancel(ctx)

	servers := cfg.EnabledServers()
	names := make([]string, 0, len(servers))
	for name := range servers {
		names = append(names, name)
	}
	sort.Strings(names)

	// 各服务器并发连接，结果按名字顺序合并。
	type dialResult struct {
		sess  Session
		tools []Tool
	}
	results := make([]dialResult, len(names))
	var g errgroup.Group
	g.SetLimit(maxConcurrentDials)
	for i, name := range names {
		sc := servers[name]
		g.Go(func() error {
			sess, err := p.opts.Transports.Dial(dialCtx, name, sc)
			if err != nil {
				p.logger.Warn("failed to add mcp server", zap.String("server", name), zap.Error(err))
				return nil
			}
			results[i].sess = sess
			tools, err := sess.ListTools(dialCtx)
			if err != nil {
				p.logger.Warn("failed to list mcp tools", zap.String("server", name), zap.Error(err))
				return nil
			}
			results[i].tools = filterTools(tools, sc.ToolsFilter)
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range results {
		if r.sess == nil {
			continue
		}
		p.sessions = append(p.sessions, r.sess)
		p.tools = append(p.tools, r.tools...)
	}
	p.connected = true
	p.logger.Debug("mcp tools discovered", zap.Int("servers", len(p.sessions)), zap.Int("tools", len(p.tools)))
}

// Available reports whether at least one server connected.
func (p *Provider) Available(ctx context.Context) bool {
	p.Connect(ctx)
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sessions) > 0
}

// AllTools returns every discovered tool.
func (p *Provider) AllTools(ctx context.Context) []Tool {
	p.Connect(ctx)
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Tool, len(p.tools))
	copy(out, p.tools)
	return out
}

// ToolsForStage returns discovered tools named in names. A nil names slice
// falls back to stage_tools.<stage> from mcp_servers.yaml.
func (p *Provider) ToolsForStage(ctx context.Context, stage string, names []string) ([]Tool, error) {
	p.Connect(ctx)
	p.mu.Lock()
	defer p.mu.Unlock()
	if names == nil {
		names = p.cfg.StageTools[stage]
	}
	if len(names) == 0 {
		return nil, nil
	}
	out := filterTools(p.tools, names)
	if len(out) < len(names) {
		found := map[string]bool{}
		for _, t := range out {
			found[t.Name] = true
		}
		var missing []string
		for _, n := range names {
			if !found[n] {
				missing = append(missing, n)
			}
		}
		p.logger.Debug("mcp tools not found for stage", zap.String("stage", stage), zap.Strings("missing", missing))
	}
	return out, nil
}

// Close closes every open session.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var first error
	for _, s := range p.sessions {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	p.sessions = nil
	return first
}

func filterTools(tools []Tool, names []string) []Tool {
	if len(names) == 0 {
		return tools
	}
	allow := make(map[string]bool, len(names))
	for _, n := range names {
		allow[n] = true
	}
	var out []Tool
	for _, t := range tools {
		if allow[t.Name] {
			out = append(out, t)
		}
	}
	return out
}
