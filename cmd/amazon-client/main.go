package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/RevoLand/amazon-client/internal/app"
	"github.com/RevoLand/amazon-client/internal/common"
	"github.com/RevoLand/amazon-client/internal/server"
	"github.com/ternarybob/arbor"
)

// configPaths is a custom flag type that allows multiple -config flags
type configPaths []string

func (c *configPaths) String() string {
	return fmt.Sprintf("%v", *c)
}

func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

var (
	configFiles  configPaths
	showVersion  = flag.Bool("version", false, "Print version information")
	showVersionV = flag.Bool("v", false, "Print version information (shorthand)")
)

func init() {
	flag.Var(&configFiles, "config", "Configuration file path (can be specified multiple times, later files override earlier ones)")
	flag.Var(&configFiles, "c", "Configuration file path (shorthand)")
}

func main() {
	defer common.RecoverWithCrashFile()

	flag.Parse()

	if *showVersion || *showVersionV {
		fmt.Printf("amazon-client version %s\n", common.GetFullVersion())
		os.Exit(0)
	}

	if len(configFiles) == 0 {
		if _, err := os.Stat("amazon-client.toml"); err == nil {
			configFiles = append(configFiles, "amazon-client.toml")
		}
	}

	// Startup order: config (defaults -> files -> env), logger, banner
	config, err := common.LoadFromFiles(configFiles...)
	if err != nil {
		tempLogger := arbor.NewLogger()
		tempLogger.Fatal().Strs("paths", configFiles).Err(err).Msg("Failed to load configuration")
		os.Exit(1)
	}

	common.InstallCrashHandler(config.Storage.Diagnostics.Dir)
	logger := common.InitLogger(config)
	common.PrintBanner(config, logger)

	logger.Debug().
		Str("address", config.Connection.Address).
		Str("badger_path", config.Storage.Badger.Path).
		Str("diagnostics_dir", config.Storage.Diagnostics.Dir).
		Str("log_level", config.Logging.Level).
		Strs("log_output", config.Logging.Output).
		Msg("Resolved configuration (sanitized)")

	application, err := app.New(config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize application")
		os.Exit(1)
	}

	if err := application.Start(); err != nil {
		application.Close()
		logger.Fatal().Err(err).Msg("Failed to start application")
		os.Exit(1)
	}

	var srv *server.Server
	if config.Status.Enabled {
		srv = server.New(application)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Error().Str("panic", fmt.Sprintf("%v", r)).Msg("Status server goroutine panicked")
				}
			}()

			if err := srv.Start(); err != nil {
				logger.Error().Err(err).Msg("Status server failed")
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received")

	if srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error().Err(err).Msg("Status server shutdown failed")
		}
		cancel()
	}

	if err := application.Close(); err != nil {
		logger.Error().Err(err).Msg("Application shutdown failed")
		os.Exit(1)
	}

	logger.Info().Msg("Worker stopped")
}
