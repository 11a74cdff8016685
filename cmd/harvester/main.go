// cmd/harvester/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"procurement-harvester/internal/common/config"
	apperrors "procurement-harvester/internal/common/errors"
	"procurement-harvester/internal/common/logger"
	"procurement-harvester/internal/common/observability"
	runharvest "procurement-harvester/internal/workers/harvest/run-harvest"
	notifyrun "procurement-harvester/internal/workers/communication/notify-run"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet()
	fs.SetOutput(stderr)
	opts, err := parseArgs(fs, args)
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		fmt.Fprintln(stderr, usageLine)
		return exitUsage
	}

	var cfg *config.Config
	if opts.configPath != "" {
		cfg, err = config.LoadFromFile(opts.configPath, fs)
	} else {
		cfg, err = config.Load(fs)
	}
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return exitUsage
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	if opts.yesterday {
		loc, _ := time.LoadLocation(cfg.Harvest.Timezone)
		opts.start = yesterdayIn(time.Now(), loc)
		opts.end = opts.start
	}
	if len(opts.categories) == 0 {
		opts.categories = cfg.Harvest.Categories
	}

	zapLog.Info("starting harvester", zap.String("config", cfg.String()))

	tracingEndpoint := ""
	if cfg.Tracing.Enabled {
		tracingEndpoint = cfg.Tracing.JaegerEndpoint
	}
	obs := observability.New(cfg.Tracing.ServiceName, tracingEndpoint, log)
	defer obs.Shutdown()

	if cfg.Metrics.Enabled {
		srv := &http.Server{Addr: cfg.Metrics.Address, Handler: promhttp.Handler()}
		go func() {
			zapLog.Info("metrics server listening", zap.String("address", cfg.Metrics.Address))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				zapLog.Error("metrics server failed", zap.Error(err))
			}
		}()
		defer srv.Close()
	}

	p, err := buildPipeline(ctx, cfg, obs, log)
	if err != nil {
		zapLog.Error("pipeline setup failed", zap.Error(err))
		return setupExitCode(err)
	}
	defer p.Close()

	out, err := p.handler.Execute(ctx, &runharvest.Input{
		Start:      opts.start,
		End:        opts.end,
		Categories: opts.categories,
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrUsage) {
			fmt.Fprintln(stderr, err.Error())
			return exitUsage
		}
		zapLog.Error("harvest interrupted", zap.Error(err))
		if out != nil {
			fmt.Fprint(stdout, notifyrun.RenderSummary(out.Summary()))
		}
		return exitFailure
	}

	fmt.Fprint(stdout, notifyrun.RenderSummary(out.Summary()))
	if out.Failed() {
		return exitFailure
	}
	return exitOK
}
