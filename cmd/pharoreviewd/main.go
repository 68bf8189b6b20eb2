// pharoreviewd serves the LLM-driven Pharo refactoring pipeline over HTTP.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"pharoreview/internal/config"
	"pharoreview/internal/gateway"
	"pharoreview/internal/logging"
	"pharoreview/internal/mcp"
	"pharoreview/internal/perception"
	"pharoreview/internal/pipeline"
	"pharoreview/internal/server"
	"pharoreview/internal/service"
)

var (
	flagConfig string
	flagListen string
	flagModel  string
	flagDebug  bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "pharoreviewd",
		Short: "LLM-driven refactoring service for a remote Pharo image",
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
	serveCmd.Flags().StringVar(&flagConfig, "config", "config.yaml", "path to config file")
	serveCmd.Flags().StringVar(&flagListen, "listen", "", "listen address override")
	serveCmd.Flags().StringVar(&flagModel, "model", "", "model id override")
	serveCmd.Flags().BoolVar(&flagDebug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(serveCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServe() error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return err
	}
	if flagListen != "" {
		cfg.Server.ListenAddr = flagListen
	}
	if flagModel != "" {
		cfg.LLM.Model = flagModel
	}
	if flagDebug {
		cfg.Debug = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(cfg.Debug)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	oracle, err := perception.NewGeminiClient(ctx,
		cfg.LLM.APIKey,
		cfg.LLM.Model,
		config.ParseDuration(cfg.LLM.Timeout, 10*time.Minute),
		logging.Named(logger, logging.ComponentLLM))
	if err != nil {
		return err
	}

	transport := mcp.NewStdioTransport(mcp.StdioOptions{
		Command: cfg.Pharo.Command,
		Args:    cfg.Pharo.Args,
		Dir:     cfg.Pharo.WorkingDirectory,
		Env:     map[string]string{"PHARO_SERVER_URL": cfg.Pharo.ServerURL},
		Timeout: config.ParseDuration(cfg.Pharo.Timeout, 30*time.Second),
		Logger:  logging.Named(logger, logging.ComponentMCP),
	})

	gw := gateway.New(transport, logging.Named(logger, logging.ComponentGateway))
	defer func() { _ = gw.Close() }()

	pipe := pipeline.New(oracle, gw, pipeline.Options{
		MaxValidationIterations: cfg.Pipeline.MaxValidationIterations,
		MaxToolCalls:            cfg.Pipeline.MaxToolCalls,
		ToolTimeout:             config.ParseDuration(cfg.Pipeline.ToolTimeout, 2*time.Minute),
	}, logging.Named(logger, logging.ComponentPipeline))

	executor := service.NewExecutor(pipe, logging.Named(logger, logging.ComponentService))
	srv := server.New(executor, cfg, logging.Named(logger, logging.ComponentServer))

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	logger.Info("pharoreviewd started",
		zap.String("addr", cfg.Server.ListenAddr),
		zap.String("model", cfg.LLM.Model))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		config.ParseDuration(cfg.Server.ShutdownTimeout, 10*time.Second))
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
