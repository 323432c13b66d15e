package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envOf(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestFromEnvDefaults(t *testing.T) {
	s := FromEnv(envOf(nil))

	assert.Equal(t, "openai", s.Provider)
	assert.Equal(t, "http://localhost:8000/v1", s.MainBaseURL)
	assert.Equal(t, "Qwen/Qwen2.5-7B", s.MainModel)
	assert.Equal(t, "not-needed", s.MainAPIKey)
	assert.True(t, s.SafetyUseLLM)
	assert.Equal(t, "config", s.ConfigDir)
	assert.Equal(t, ":8000", s.ServerAddr)
	assert.False(t, s.ImageGenEnabled())
}

func TestVisionAndJudgeFallBackToMain(t *testing.T) {
	s := FromEnv(envOf(map[string]string{
		"LLM_MAIN_MODEL":     "qwen-main",
		"VLM_TEXT_GEN_MODEL": "qwen-vl",
		"SAFETY_LLM_MODEL":   "",
	}))

	vision := s.VisionLLM()
	assert.Equal(t, "qwen-vl", vision.Model)
	assert.Equal(t, s.MainBaseURL, vision.BaseURL)
	assert.Equal(t, s.MainAPIKey, vision.APIKey)

	judge := s.JudgeLLM()
	assert.Equal(t, "qwen-main", judge.Model)
}

func TestImageGenSettings(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "model_deployment"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "model_deployment", "image_gen.yaml"),
		[]byte("agent:\n  default_size: 768x768\n"), 0o644))

	s := FromEnv(envOf(map[string]string{
		"CONFIG_DIR":             dir,
		"LLM_IMAGE_GEN_BASE_URL": "http://img:9000",
	}))

	assert.True(t, s.ImageGenEnabled())
	img := s.ImageGen()
	assert.Equal(t, "http://img:9000", img.BaseURL)
	assert.Equal(t, s.MainModel, img.Model)
	assert.Equal(t, "768x768", img.Size)

	s.ConfigDir = t.TempDir()
	assert.Equal(t, "1024x1024", s.ImageGenSize())
}

func TestParseBool(t *testing.T) {
	assert.True(t, parseBool("yes", false))
	assert.True(t, parseBool(" TRUE ", false))
	assert.False(t, parseBool("0", true))
	assert.False(t, parseBool("off", true))
	assert.True(t, parseBool("", true))
	assert.False(t, parseBool("maybe", false))

	s := FromEnv(envOf(map[string]string{"SAFETY_USE_LLM": "false"}))
	assert.False(t, s.SafetyUseLLM)
}

func TestSkillPaths(t *testing.T) {
	s := FromEnv(envOf(map[string]string{
		"CONFIG_DIR":  "/etc/promocopy",
		"SKILLS_DIRS": " /opt/skills , ,./more",
	}))
	assert.Equal(t, []string{"/etc/promocopy/skills/builtin", "/opt/skills", "./more"}, s.SkillPaths())
	assert.Equal(t, "/etc/promocopy/stage_contexts.yaml", s.StageContextsPath())
	assert.Equal(t, "/etc/promocopy/prompts/safety_check.txt", s.SafetyPromptPath())
}
