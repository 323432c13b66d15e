package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"promocopy/deploy"
)

var launchCmd = &cobra.Command{
	Use:   "launch",
	Short: "Launch model servers from model_deployment configs",
}

var launchVLLMCmd = &cobra.Command{
	Use:   "vllm <main|vl> [vllm args...]",
	Short: "Run `vllm serve` with the model's config; extra args override it",
	Long: `Reads <config_dir>/model_deployment/<name>.yaml (backend: vllm) and runs
vllm serve with the merged arguments. Arguments after the name override the
config, e.g.

  promocopy launch vllm main --port 8001 --max-model-len 8192`,
	Args:               cobra.MinimumNArgs(1),
	DisableFlagParsing: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		store := deploy.NewStore(settings.ModelDeploymentDir())
		code, err := deploy.LaunchVLLM(cmd.Context(), store, args[0], args[1:], os.Stdout, os.Stderr)
		if err != nil {
			return err
		}
		if code != 0 {
			return exitCodeError{code: code}
		}
		return nil
	},
}

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Inspect model deployment configs",
}

var deployShowCmd = &cobra.Command{
	Use:   "show <main|vl|image_gen>",
	Short: "Print the resolved deployment config as YAML",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store := deploy.NewStore(settings.ModelDeploymentDir())
		cfg := store.Load(args[0])
		if len(cfg) == 0 {
			return errors.New("no config found for " + args[0])
		}
		if args[0] == deploy.ModelImageGen {
			cfg["server"] = store.DiffusersServerParams(nil)
			cfg["pipeline"] = store.DiffusersPipelineParams()
			cfg["inference"] = store.DiffusersInferenceDefaults()
		} else if vargs := store.VLLMArgs(args[0]); len(vargs) > 0 {
			cfg["vllm_args"] = vargs
		}
		out, err := yaml.Marshal(cfg)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}
