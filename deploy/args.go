package deploy

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"sort"
	"strings"
)

// KV holds parsed `--key value` pairs; a bare flag maps to "" with Flag set.
type KV map[string]KVValue

type KVValue struct {
	Value string
	Flag  bool
}

// ParseKVArgs splits args into a positional prefix and key/value options.
// `-key v` and `--key v` take the next token unless it starts with "-";
// otherwise the key is a boolean flag. Dashes in keys become underscores.
func ParseKVArgs(args []string) ([]string, KV) {
	var positional []string
	kv := KV{}
	for i := 0; i < len(args); i++ {
		a := args[i]
		if strings.HasPrefix(a, "-") && len(a) > 1 {
			key := strings.ReplaceAll(strings.TrimLeft(a, "-"), "-", "_")
			if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				kv[key] = KVValue{Value: args[i+1]}
				i++
			} else {
				kv[key] = KVValue{Flag: true}
			}
			continue
		}
		positional = append(positional, a)
	}
	return positional, kv
}

// KVToArgs renders options as `--key value` in sorted key order.
func KVToArgs(kv KV) []string {
	keys := make([]string, 0, len(kv))
	for k := range kv {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var out []string
	for _, k := range keys {
		out = append(out, "--"+strings.ReplaceAll(k, "_", "-"))
		if v := kv[k]; !v.Flag {
			out = append(out, v.Value)
		}
	}
	return out
}

// MergeVLLMArgs keeps the config positional args and lets overrides win on
// matching keys. Positional args in overrides are ignored.
func MergeVLLMArgs(configArgs, overrides []string) []string {
	pos, cfgKV := ParseKVArgs(configArgs)
	_, overKV := ParseKVArgs(overrides)
	for k, v := range overKV {
		cfgKV[k] = v
	}
	return append(pos, KVToArgs(cfgKV)...)
}

// LaunchVLLM runs `vllm serve` for a text model (main or vl) and returns its
// exit code.
func LaunchVLLM(ctx context.Context, store *Store, name string, overrides []string, stdout, stderr io.Writer) (int, error) {
	name = strings.ToLower(name)
	if name != ModelMain && name != ModelVision {
		return 1, fmt.Errorf("unknown model %q: use main or vl", name)
	}
	configArgs := store.VLLMArgs(name)
	if len(configArgs) == 0 {
		return 1, fmt.Errorf("no vLLM config for %s", name)
	}
	merged := MergeVLLMArgs(configArgs, overrides)

	cmd := exec.CommandContext(ctx, "vllm", append([]string{"serve"}, merged...)...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	fmt.Fprintln(stdout, "Running:", strings.Join(cmd.Args, " "))
	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return exitErr.ExitCode(), nil
		}
		return 1, err
	}
	return 0, nil
}
