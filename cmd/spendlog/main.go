package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"spendlog/internal/backend"
	"spendlog/internal/cli"
	apphttp "spendlog/internal/http"
	applog "spendlog/internal/log"
	"spendlog/internal/remote"
	"spendlog/internal/services"
	"spendlog/internal/wire"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	cfg := cli.LoadAndValidateConfig(logger)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}

	factory := backend.NewFactory(logger)
	result, err := factory.CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to create backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	// The pipeline only exists when a parser endpoint is configured;
	// without it the API still serves records and summaries.
	var pipeline *services.Pipeline
	if cfg.ParserEndpoint != "" {
		codec := &wire.Codec{}
		if cfg.ParserStrictTimestamps {
			codec.Mode = wire.Strict
		}

		parserLog := applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentRemote)
		var diagnostics remote.DiagnosticsPublisher
		if result.AMQP != nil {
			diagnostics = result.AMQP
		}
		parser := remote.New(remote.Config{
			Endpoint:    cfg.ParserEndpoint,
			Timeout:     cfg.ParserTimeout,
			Codec:       codec,
			Diagnostics: diagnostics,
			Logger:      parserLog,
		})

		pipelineLog := applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentPipeline)
		pipeline = services.NewPipeline(parser, result.Backend, pipelineLog)
	} else {
		logger.Info("No PARSER_ENDPOINT configured, prompt submission disabled")
	}

	srv := apphttp.NewServer(":"+cfg.Port, result.Backend, pipeline)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 60 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
		defer cancel()
		if pipeline != nil {
			pipeline.Close()
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		if result.Cleanup != nil {
			if err := result.Cleanup(); err != nil {
				logger.Error("Backend cleanup error", "error", err)
			}
		}
	})

	logger.Info("Starting spendlog server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"parser_enabled", pipeline != nil)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
