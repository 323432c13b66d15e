package deploy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeYAML(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+".yaml"), []byte(body), 0o644))
}

func TestVLLMArgs(t *testing.T) {
	dir := t.TempDir()
	writeYAML(t, dir, "main", `
backend: vllm
model_id: Qwen/Qwen3-30B-A3B
vllm:
  host: 0.0.0.0
  port: 8000
  tensor_parallel_size: 2
  gpu_memory_utilization: 0.9
  max_model_len: 32768
`)
	writeYAML(t, dir, "vl", `
backend: vllm
model_id: Qwen/Qwen3-VL-8B
vllm:
  tensor_parallel_size: 1
`)
	writeYAML(t, dir, "image_gen", `
backend: diffusers
model_id: Qwen/Qwen-Image-2512
`)

	s := NewStore(dir)
	assert.Equal(t, []string{
		"Qwen/Qwen3-30B-A3B",
		"--host", "0.0.0.0",
		"--port", "8000",
		"--tensor-parallel-size", "2",
		"--gpu-memory-utilization", "0.9",
		"--max-model-len", "32768",
	}, s.VLLMArgs(ModelMain))
	assert.Equal(t, []string{"Qwen/Qwen3-VL-8B"}, s.VLLMArgs(ModelVision))
	assert.Empty(t, s.VLLMArgs(ModelImageGen))
	assert.Empty(t, s.VLLMArgs("missing"))
}

func TestDiffusersDefaultsAndOverrides(t *testing.T) {
	dir := t.TempDir()
	writeYAML(t, dir, "image_gen", `
model_id: custom/image
diffusers:
  port: 8003
  device: cpu
agent:
  default_size: 768x768
`)
	s := NewStore(dir)

	params := s.DiffusersServerParams(map[string]any{"host": "127.0.0.1", "port": nil})
	assert.Equal(t, "127.0.0.1", params["host"])
	assert.Equal(t, 8003, params["port"])

	pipe := s.DiffusersPipelineParams()
	assert.Equal(t, "custom/image", pipe["model_id"])
	assert.Equal(t, "cpu", pipe["device"])
	assert.Equal(t, "bfloat16", pipe["torch_dtype"])

	inf := s.DiffusersInferenceDefaults()
	assert.Equal(t, 1024, inf["default_width"])
	assert.Equal(t, 50, inf["num_inference_steps"])

	assert.Equal(t, "768x768", s.AgentImageConfig()["default_size"])
}

func TestStoreMissingDirIsEmpty(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "nope"))
	assert.Empty(t, s.Load(ModelMain))
	assert.Empty(t, s.AgentImageConfig())
	assert.Equal(t, "Qwen/Qwen-Image-2512", s.DiffusersPipelineParams()["model_id"])
}

func TestStoreLoadReturnsCopy(t *testing.T) {
	dir := t.TempDir()
	writeYAML(t, dir, "main", "backend: vllm\nmodel_id: m\n")
	s := NewStore(dir)

	cfg := s.Load(ModelMain)
	cfg["backend"] = "changed"
	assert.Equal(t, "vllm", s.Load(ModelMain)["backend"])
}
