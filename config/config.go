package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"promocopy/deploy"
	"promocopy/generator"
)

// Settings 是服务的全部运行配置，来自环境变量（可由 .env 提供）。
type Settings struct {
	Provider string

	// 文本生成（text-to-text）
	MainBaseURL string
	MainModel   string
	MainAPIKey  string

	// 图文理解（text+image-to-text），未配置时回落到主模型
	VLMBaseURL string
	VLMModel   string
	VLMAPIKey  string

	// 文生图，未配置时回落到主模型
	ImageGenBaseURL string
	ImageGenModel   string
	ImageGenAPIKey  string

	ForbiddenWordsFile string
	SafetyUseLLM       bool
	SafetyLLMModel     string

	SkillsDirs string
	ConfigDir  string

	LogLevel   string
	ServerAddr string
}

// Load reads .env (if present) and then the process environment.
func Load() Settings {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv resolves Settings through getenv, applying defaults.
func FromEnv(getenv func(string) string) Settings {
	get := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}
	return Settings{
		Provider:           get("LLM_PROVIDER", "openai"),
		MainBaseURL:        get("LLM_MAIN_BASE_URL", "http://localhost:8000/v1"),
		MainModel:          get("LLM_MAIN_MODEL", "Qwen/Qwen2.5-7B"),
		MainAPIKey:         get("LLM_MAIN_MODEL_API_KEY", "not-needed"),
		VLMBaseURL:         get("VLM_TEXT_GEN_BASE_URL", ""),
		VLMModel:           get("VLM_TEXT_GEN_MODEL", ""),
		VLMAPIKey:          get("VLM_TEXT_GEN_MODEL_API_KEY", ""),
		ImageGenBaseURL:    get("LLM_IMAGE_GEN_BASE_URL", ""),
		ImageGenModel:      get("LLM_IMAGE_GEN_MODEL", ""),
		ImageGenAPIKey:     get("LLM_IMAGE_GEN_MODEL_API_KEY", ""),
		ForbiddenWordsFile: get("FORBIDDEN_WORDS_FILE", ""),
		SafetyUseLLM:       parseBool(getenv("SAFETY_USE_LLM"), true),
		SafetyLLMModel:     get("SAFETY_LLM_MODEL", ""),
		SkillsDirs:         get("SKILLS_DIRS", ""),
		ConfigDir:          get("CONFIG_DIR", "config"),
		LogLevel:           get("LOG_LEVEL", "INFO"),
		ServerAddr:         get("SERVER_ADDR", ":8000"),
	}
}

func parseBool(raw string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on", "y", "t":
		return true
	case "0", "false", "no", "off", "n", "f":
		return false
	default:
		return def
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// ConfigPath is ConfigDir resolved against the working directory.
func (s Settings) ConfigPath() string {
	if filepath.IsAbs(s.ConfigDir) {
		return s.ConfigDir
	}
	wd, err := os.Getwd()
	if err != nil {
		return s.ConfigDir
	}
	return filepath.Join(wd, s.ConfigDir)
}

func (s Settings) StageContextsPath() string {
	return filepath.Join(s.ConfigPath(), "stage_contexts.yaml")
}

func (s Settings) MCPServersPath() string {
	return filepath.Join(s.ConfigPath(), "mcp_servers.yaml")
}

func (s Settings) SafetyPromptPath() string {
	return filepath.Join(s.ConfigPath(), "prompts", "safety_check.txt")
}

func (s Settings) ModelDeploymentDir() string {
	return filepath.Join(s.ConfigPath(), "model_deployment")
}

func (s Settings) BuiltinSkillsDir() string {
	return filepath.Join(s.ConfigPath(), "skills", "builtin")
}

// ExtraSkillsDirs splits SKILLS_DIRS on commas.
func (s Settings) ExtraSkillsDirs() []string {
	var dirs []string
	for _, p := range strings.Split(s.SkillsDirs, ",") {
		if p = strings.TrimSpace(p); p != "" {
			dirs = append(dirs, p)
		}
	}
	return dirs
}

// SkillPaths returns the builtin skill dir followed by SKILLS_DIRS.
func (s Settings) SkillPaths() []string {
	return append([]string{s.BuiltinSkillsDir()}, s.ExtraSkillsDirs()...)
}

func (s Settings) TextLLM() generator.LLMSettings {
	return generator.LLMSettings{
		Provider: s.Provider,
		Model:    s.MainModel,
		APIKey:   s.MainAPIKey,
		BaseURL:  s.MainBaseURL,
	}
}

func (s Settings) VisionLLM() generator.LLMSettings {
	return generator.LLMSettings{
		Provider: s.Provider,
		Model:    firstNonEmpty(s.VLMModel, s.MainModel),
		APIKey:   firstNonEmpty(s.VLMAPIKey, s.MainAPIKey),
		BaseURL:  firstNonEmpty(s.VLMBaseURL, s.MainBaseURL),
	}
}

// JudgeLLM is the safety reviewer model: main endpoint, optional model override.
func (s Settings) JudgeLLM() generator.LLMSettings {
	return generator.LLMSettings{
		Provider: s.Provider,
		Model:    firstNonEmpty(s.SafetyLLMModel, s.MainModel),
		APIKey:   s.MainAPIKey,
		BaseURL:  s.MainBaseURL,
	}
}

// ImageGenEnabled 仅在显式配置了生图端点或模型时开启。
func (s Settings) ImageGenEnabled() bool {
	return s.ImageGenBaseURL != "" || s.ImageGenModel != ""
}

// ImageGenSize reads agent.default_size from model_deployment/image_gen.yaml.
func (s Settings) ImageGenSize() string {
	store := deploy.NewStore(s.ModelDeploymentDir())
	if size, ok := store.AgentImageConfig()["default_size"].(string); ok && size != "" {
		return size
	}
	return "1024x1024"
}

func (s Settings) ImageGen() generator.ImageSettings {
	return generator.ImageSettings{
		BaseURL: firstNonEmpty(s.ImageGenBaseURL, s.MainBaseURL),
		Model:   firstNonEmpty(s.ImageGenModel, s.MainModel),
		APIKey:  firstNonEmpty(s.ImageGenAPIKey, s.MainAPIKey),
		Size:    s.ImageGenSize(),
	}
}
