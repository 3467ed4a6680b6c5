package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mordilloSan/go-logger/logger"
	"github.com/spf13/pflag"

	"hashdb/internal/app"
	"hashdb/internal/config"
	"hashdb/internal/report"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run executes one invocation and returns the process exit status. The
// report owns stdout; go-logger prints debug and info lines there too, so
// those levels are only enabled on request and never for JSON output.
func run(args []string) int {
	cfg, err := config.FromArgs("hashdb", args, os.Stderr)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}

	logger.Init(logger.Config{Levels: logLevels(cfg)})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, os.Stdout)
	if err != nil {
		logger.Errorf("initialize app: %v", err)
		return 1
	}

	runErr := application.Run(ctx)
	if err := application.Close(); err != nil {
		logger.Warnf("close index: %v", err)
	}
	if runErr != nil {
		logger.Errorf("run: %v", runErr)
		return 1
	}
	return 0
}

func logLevels(cfg config.Config) []logger.Level {
	if cfg.Verbose && cfg.Format != report.FormatJSON {
		return logger.AllLevels()
	}
	return []logger.Level{logger.WarnLevel, logger.ErrorLevel}
}
