// Package stagectx assembles the per-stage prompt context: the stage's block
// from stage_contexts.yaml, its prompt template file, the registered skills
// for the stage and any MCP tools the stage asks for.
package stagectx

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"promocopy/mcp"
	"promocopy/skills"
)

// StageConfig is one entry under `stages:` in stage_contexts.yaml.
type StageConfig struct {
	PromptTemplate string         `yaml:"prompt_template"`
	MCPTools       ToolNames      `yaml:"mcp_tools"`
	Extra          map[string]any `yaml:",inline"`
}

// ToolNames decodes a YAML list of tool names; any other shape is empty.
type ToolNames []string

func (t *ToolNames) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.SequenceNode {
		*t = nil
		return nil
	}
	var names []string
	if err := node.Decode(&names); err != nil {
		*t = nil
		return nil
	}
	*t = names
	return nil
}

type stageContexts struct {
	Stages map[string]StageConfig `yaml:"stages"`
}

// ToolProvider looks up external tools for a stage.
type ToolProvider interface {
	ToolsForStage(ctx context.Context, stage string, names []string) ([]mcp.Tool, error)
}

// Context is built fresh for every stage invocation.
type Context struct {
	Config         StageConfig
	PromptTemplate string
	SkillsContent  string
	Skills         []skills.Skill
	Tools          []mcp.Tool
	Platform       string
	Style          string
}

type Options struct {
	// ConfigDir holds stage_contexts.yaml and the template files it references.
	ConfigDir string
	Skills    *skills.Registry
	Tools     ToolProvider
	Logger    *zap.Logger
}

// Resolver loads stage contexts. It reads the config files on every call.
type Resolver struct {
	opts   Options
	logger *zap.Logger
}

func NewResolver(opts Options) *Resolver {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Skills == nil {
		opts.Skills = skills.NewRegistry()
	}
	return &Resolver{opts: opts, logger: logger.Named("stagectx")}
}

// StageConfig returns the YAML block for stage, empty when absent.
func (r *Resolver) StageConfig(stage string) StageConfig {
	data, err := os.ReadFile(filepath.Join(r.opts.ConfigDir, "stage_contexts.yaml"))
	if err != nil {
		return StageConfig{}
	}
	var sc stageContexts
	if err := yaml.Unmarshal(data, &sc); err != nil {
		r.logger.Warn("parse stage_contexts.yaml", zap.Error(err))
		return StageConfig{}
	}
	return sc.Stages[stage]
}

// PromptTemplate reads a template path relative to the config dir; "" if missing.
func (r *Resolver) PromptTemplate(rel string) string {
	if rel == "" {
		return ""
	}
	data, err := os.ReadFile(filepath.Join(r.opts.ConfigDir, rel))
	if err != nil {
		return ""
	}
	return string(data)
}

// Load resolves the full context for stage.
func (r *Resolver) Load(ctx context.Context, stage, platform, style string) Context {
	cfg := r.StageConfig(stage)
	stageSkills := r.opts.Skills.ForStage(stage)

	out := Context{
		Config:         cfg,
		PromptTemplate: r.PromptTemplate(cfg.PromptTemplate),
		SkillsContent:  JoinSkills(stageSkills),
		Skills:         stageSkills,
		Platform:       platform,
		Style:          style,
	}

	if len(cfg.MCPTools) > 0 && r.opts.Tools != nil {
		tools, err := r.opts.Tools.ToolsForStage(ctx, stage, cfg.MCPTools)
		if err != nil {
			r.logger.Debug("mcp tools unavailable", zap.String("stage", stage), zap.Error(err))
		} else {
			out.Tools = tools
		}
	}
	return out
}

// JoinSkills concatenates skill contents separated by a blank line.
func JoinSkills(list []skills.Skill) string {
	parts := make([]string, 0, len(list))
	for _, sk := range list {
		parts = append(parts, sk.Content)
	}
	return strings.Join(parts, "\n\n")
}
