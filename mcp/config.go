// Package mcp discovers external tools from MCP servers configured in
// mcp_servers.yaml and maps them to pipeline stages.
package mcp

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// ServerConfig is one entry under `servers:`.
type ServerConfig struct {
	Transport   string            `yaml:"transport"`
	Command     string            `yaml:"command"`
	Args        []string          `yaml:"args"`
	Env         map[string]string `yaml:"env"`
	URL         string            `yaml:"url"`
	Headers     map[string]string `yaml:"headers"`
	Enabled     *bool             `yaml:"enabled"`
	ToolsFilter []string          `yaml:"tools_filter"`
}

// IsEnabled defaults to true when unset.
func (c ServerConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// TransportKind defaults to stdio.
func (c ServerConfig) TransportKind() string {
	if c.Transport == "" {
		return TransportStdio
	}
	return c.Transport
}

// Config mirrors mcp_servers.yaml.
type Config struct {
	Servers    map[string]ServerConfig `yaml:"servers"`
	StageTools map[string][]string     `yaml:"stage_tools"`
}

// EnabledServers returns servers whose enabled flag is not false.
func (c Config) EnabledServers() map[string]ServerConfig {
	out := map[string]ServerConfig{}
	for name, s := range c.Servers {
		if s.IsEnabled() {
			out[name] = s
		}
	}
	return out
}

// LoadConfig reads mcp_servers.yaml and expands ${VAR} / $VAR in every
// string value. A missing file is an empty config.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Config{Servers: map[string]ServerConfig{}}, nil
	}
	if err != nil {
		return Config{}, err
	}
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	expanded, err := yaml.Marshal(ExpandEnv(raw, os.LookupEnv))
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := yaml.Unmarshal(expanded, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if cfg.Servers == nil {
		cfg.Servers = map[string]ServerConfig{}
	}
	return cfg, nil
}

var envRe = regexp.MustCompile(`\$\{([^}]+)\}|\$(\w+)`)

// ExpandEnv replaces ${VAR} and $VAR in strings, recursing into maps and
// slices. Unknown variables are left untouched.
func ExpandEnv(v any, lookup func(string) (string, bool)) any {
	switch t := v.(type) {
	case string:
		return envRe.ReplaceAllStringFunc(t, func(m string) string {
			sub := envRe.FindStringSubmatch(m)
			name := sub[1]
			if name == "" {
				name = sub[2]
			}
			if val, ok := lookup(name); ok {
				return val
			}
			return m
		})
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = ExpandEnv(val, lookup)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = ExpandEnv(val, lookup)
		}
		return out
	default:
		return v
	}
}
