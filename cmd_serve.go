package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"promocopy/agent"
	"promocopy/config"
	"promocopy/generator"
	"promocopy/mcp"
	"promocopy/safety"
	"promocopy/server"
	"promocopy/skills"
	"promocopy/stagectx"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API (/api/health, /api/generate)",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides SERVER_ADDR)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tools := mcp.NewProvider(mcp.ProviderOptions{
		ServersPath: settings.MCPServersPath(),
		Transports:  mcp.DefaultTransports(),
		Logger:      logger,
	})
	defer tools.Close()
	tools.Connect(ctx)

	pipeline, err := buildPipeline(ctx, settings, tools, logger)
	if err != nil {
		return err
	}
	srv, err := server.New(pipeline, server.Options{Logger: logger})
	if err != nil {
		return err
	}

	listen := settings.ServerAddr
	if serveAddr != "" {
		listen = serveAddr
	}
	httpServer := &http.Server{Addr: listen, Handler: srv.Routes()}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting web server", zap.String("addr", listen))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// buildPipeline 按配置组装技能、阶段上下文、模型、生图与安全检查。
func buildPipeline(ctx context.Context, s config.Settings, tools stagectx.ToolProvider, logger *zap.Logger) (*agent.Pipeline, error) {
	registry := skills.NewRegistry()
	skills.LoadDirs(registry, s.SkillPaths(), logger)

	resolver := stagectx.NewResolver(stagectx.Options{
		ConfigDir: s.ConfigPath(),
		Skills:    registry,
		Tools:     tools,
		Logger:    logger,
	})

	textCfg := s.TextLLM()
	text, err := generator.NewLLM(ctx, &textCfg)
	if err != nil {
		return nil, fmt.Errorf("text model: %w", err)
	}
	visionCfg := s.VisionLLM()
	vision, err := generator.NewLLM(ctx, &visionCfg)
	if err != nil {
		return nil, fmt.Errorf("vision model: %w", err)
	}

	var judge generator.LLMClient
	if s.SafetyUseLLM {
		judgeCfg := s.JudgeLLM()
		judge, err = generator.NewLLM(ctx, &judgeCfg)
		if err != nil {
			return nil, fmt.Errorf("safety model: %w", err)
		}
	}
	checker := safety.NewChecker(safety.Options{
		Words:        safety.FileWords{Path: s.ForbiddenWordsFile},
		UseLLM:       s.SafetyUseLLM,
		Judge:        judge,
		TemplatePath: s.SafetyPromptPath(),
		Logger:       logger,
	})

	nodes := &agent.Nodes{
		Models:          generator.Models{Text: text, Vision: vision},
		ImageGenEnabled: s.ImageGenEnabled(),
		Safety:          checker,
		Contexts:        resolver,
		Logger:          logger,
	}
	if nodes.ImageGenEnabled {
		images, err := generator.NewImageClient(s.ImageGen())
		if err != nil {
			return nil, fmt.Errorf("image generation: %w", err)
		}
		nodes.Images = images
	}
	return agent.NewPipeline(nodes, logger), nil
}
