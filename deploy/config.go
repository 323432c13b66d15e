// Package deploy reads config/model_deployment/*.yaml and turns it into
// launch arguments for the local model servers (vLLM for text/vision,
// the diffusers image server for text-to-image).
package deploy

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// Known deployment names.
const (
	ModelMain     = "main"
	ModelVision   = "vl"
	ModelImageGen = "image_gen"
)

// Store loads and caches one YAML document per model name.
type Store struct {
	dir string

	mu    sync.Mutex
	cache map[string]map[string]any
}

func NewStore(dir string) *Store {
	return &Store{dir: dir, cache: map[string]map[string]any{}}
}

func (s *Store) load(name string) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cfg, ok := s.cache[name]; ok {
		return cfg
	}
	cfg := map[string]any{}
	data, err := os.ReadFile(filepath.Join(s.dir, name+".yaml"))
	if err == nil {
		var parsed map[string]any
		if yaml.Unmarshal(data, &parsed) == nil && parsed != nil {
			cfg = parsed
		}
	}
	s.cache[name] = cfg
	return cfg
}

// Load returns a shallow copy of the named config.
func (s *Store) Load(name string) map[string]any {
	return copyMap(s.load(name))
}

// VLLMConfig returns the vllm block with model_id filled in, or an empty map
// when the model is not served by vLLM.
func (s *Store) VLLMConfig(name string) map[string]any {
	cfg := s.load(name)
	if cfg["backend"] != "vllm" {
		return map[string]any{}
	}
	out := copyMap(section(cfg, "vllm"))
	if _, ok := out["model_id"]; !ok {
		out["model_id"] = stringOf(cfg["model_id"])
	}
	return out
}

// VLLMArgs builds `vllm serve` arguments from the config file.
func (s *Store) VLLMArgs(name string) []string {
	v := s.VLLMConfig(name)
	modelID := stringOf(v["model_id"])
	if modelID == "" {
		return nil
	}
	args := []string{modelID}
	if host := stringOf(v["host"]); host != "" {
		args = append(args, "--host", host)
	}
	if port := stringOf(v["port"]); port != "" && port != "0" {
		args = append(args, "--port", port)
	}
	if tp, ok := toInt(v["tensor_parallel_size"]); ok && tp > 1 {
		args = append(args, "--tensor-parallel-size", fmt.Sprint(tp))
	}
	if gpu := stringOf(v["gpu_memory_utilization"]); gpu != "" && gpu != "0" {
		args = append(args, "--gpu-memory-utilization", gpu)
	}
	if maxLen := stringOf(v["max_model_len"]); maxLen != "" && maxLen != "0" {
		args = append(args, "--max-model-len", maxLen)
	}
	return args
}

// DiffusersConfig returns the diffusers block of image_gen.yaml.
func (s *Store) DiffusersConfig() map[string]any {
	return copyMap(section(s.load(ModelImageGen), "diffusers"))
}

// DiffusersServerParams returns host/port for the image server; non-nil overrides win.
func (s *Store) DiffusersServerParams(overrides map[string]any) map[string]any {
	diff := s.DiffusersConfig()
	params := map[string]any{
		"host": valueOr(diff, "host", "0.0.0.0"),
		"port": valueOr(diff, "port", 8002),
	}
	for _, k := range []string{"host", "port"} {
		if v, ok := overrides[k]; ok && v != nil {
			params[k] = v
		}
	}
	return params
}

func (s *Store) DiffusersPipelineParams() map[string]any {
	cfg := s.load(ModelImageGen)
	diff := section(cfg, "diffusers")
	return map[string]any{
		"model_id":    valueOr(cfg, "model_id", "Qwen/Qwen-Image-2512"),
		"device":      valueOr(diff, "device", "cuda"),
		"torch_dtype": valueOr(diff, "torch_dtype", "bfloat16"),
	}
}

func (s *Store) DiffusersInferenceDefaults() map[string]any {
	diff := s.DiffusersConfig()
	return map[string]any{
		"default_width":           valueOr(diff, "default_width", 1024),
		"default_height":          valueOr(diff, "default_height", 1024),
		"num_inference_steps":     valueOr(diff, "num_inference_steps", 50),
		"true_cfg_scale":          valueOr(diff, "true_cfg_scale", 4.0),
		"default_negative_prompt": valueOr(diff, "default_negative_prompt", "低分辨率，低画质，肢体畸形，手指畸形，画面过饱和，蜡像感。"),
	}
}

// AgentImageConfig is the agent block of image_gen.yaml (default_size for API requests).
func (s *Store) AgentImageConfig() map[string]any {
	return copyMap(section(s.load(ModelImageGen), "agent"))
}

func section(cfg map[string]any, key string) map[string]any {
	if m, ok := cfg[key].(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

func valueOr(m map[string]any, key string, def any) any {
	if v, ok := m[key]; ok && v != nil {
		return v
	}
	return def
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func stringOf(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
