// Command colocate pairs ozonesonde launches with satellite ozone soundings and
// records their profile and tropospheric column differences.
package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"github.com/couchcryptid/sonde-colocation/internal/config"
	"github.com/couchcryptid/sonde-colocation/internal/observability"
)

type cli struct {
	Run     runCmd     `cmd:"" help:"Colocate ozonesondes with satellite ozone profiles."`
	Summary summaryCmd `cmd:"" help:"Print the tropospheric column difference series of saved artifacts."`
}

// app carries the process-wide dependencies handed to every command.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics
	out     io.Writer
}

func main() {
	var c cli
	kctx := kong.Parse(&c,
		kong.Name("colocate"),
		kong.Description("Ozonesonde and satellite ozone profile colocation."),
		kong.UsageOnError(),
	)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	a := &app{
		cfg:     cfg,
		logger:  observability.NewLogger(cfg),
		metrics: observability.NewMetrics(),
		out:     os.Stdout,
	}
	if err := kctx.Run(a); err != nil {
		a.logger.Error("colocate failed", "command", kctx.Command(), "error", err)
		os.Exit(1)
	}
}
