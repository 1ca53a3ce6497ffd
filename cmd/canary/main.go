package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/canary/internal/cliconfig"
	"github.com/bft-labs/canary/internal/supervise"
	"github.com/bft-labs/canary/pkg/canary"
	"github.com/bft-labs/canary/pkg/log"
	"github.com/bft-labs/canary/pkg/watchdog"
	"github.com/bft-labs/canary/plugins/filepinger"
	"github.com/bft-labs/canary/plugins/httpping"
	"github.com/bft-labs/canary/plugins/metrics"
)

const helpDescription = `
Run a command under a liveness watchdog.

Every line the command writes to stdout or stderr counts as a sign of life.
Touching a heartbeat file or POSTing to /v1/ping keeps it alive as well.
When no sign of life arrives within the timeout, canary reports it and, with
--terminate, stops the command and exits with status 87.
`

var exampleUsage = strings.TrimSpace(`
  canary --timeout 30s -- ./worker --queue jobs
  canary --heartbeat-file /run/worker.alive --listen 127.0.0.1:9187 -- ./worker
  canary --terminate=false --repeat-report -- ./flaky-job
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	exitCode := 0
	root := newRootCommand(&exitCode)

	if err := root.Execute(); err != nil {
		log.New(os.Stderr, log.FormatConsole, zerolog.ErrorLevel).Error("canary", log.Err(err))
		os.Exit(1)
	}
	os.Exit(exitCode)
}

// newRootCommand builds the CLI. The supervised command's exit status is
// stored in exitCode once it has been reaped.
func newRootCommand(exitCode *int) *cobra.Command {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string

	root := &cobra.Command{
		Use:           "canary [flags] -- command [args...]",
		Short:         "Run a command under a liveness watchdog",
		Long:          strings.TrimSpace(helpDescription),
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = cliconfig.DefaultConfigPath()
			}

			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			if cfgFile != "" && cliconfig.FileExists(cfgFile) {
				fc, err := cliconfig.LoadFileConfig(cfgFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				if err := cliconfig.ApplyFileConfig(&cfg, fc, changed); err != nil {
					return err
				}
			}

			// CANARY_* override the file but not explicit flags.
			if err := cliconfig.ApplyEnvConfig(&cfg, changed); err != nil {
				return err
			}

			if err := cfg.Validate(); err != nil {
				return err
			}

			code, err := run(cmd, cfg, args)
			if err != nil {
				return err
			}
			*exitCode = code
			return nil
		},
	}

	root.Flags().StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.canary/config.toml)")
	root.Flags().DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "longest tolerated gap between signs of life")
	root.Flags().BoolVar(&cfg.Terminate, "terminate", cfg.Terminate, "stop the command and exit 87 when the watchdog triggers")
	root.Flags().BoolVar(&cfg.Report, "report", cfg.Report, "write a diagnostic line to stderr when the watchdog triggers")
	root.Flags().BoolVar(&cfg.RepeatReport, "repeat-report", cfg.RepeatReport, "repeat the diagnostic line on every check while timed out")
	root.Flags().DurationVar(&cfg.WakeInterval, "wake-interval", cfg.WakeInterval, "upper bound on the watchdog's sleep between checks")
	root.Flags().DurationVar(&cfg.Grace, "grace", cfg.Grace, "delay between SIGTERM and SIGKILL when stopping the command")
	root.Flags().StringVar(&cfg.HeartbeatFile, "heartbeat-file", cfg.HeartbeatFile, "file whose writes count as signs of life (created if missing)")
	root.Flags().StringVar(&cfg.Listen, "listen", cfg.Listen, "address for the HTTP ping, status and metrics endpoints")
	root.Flags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	root.Flags().StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format (console, json)")

	return root
}

// run supervises args[0] until it exits and returns its exit status.
func run(cmd *cobra.Command, cfg cliconfig.Config, args []string) (int, error) {
	logger, err := cfg.NewLogger(cmd.ErrOrStderr())
	if err != nil {
		return 0, err
	}
	logger.Info("configuration",
		log.Millis("timeout_ms", cfg.Timeout),
		log.Bool("terminate", cfg.Terminate),
		log.Bool("report", cfg.Report),
		log.String("heartbeat_file", cfg.HeartbeatFile),
		log.String("listen", cfg.Listen),
	)

	sup, err := supervise.New(supervise.Config{
		Command: args[0],
		Args:    args[1:],
		Stdout:  cmd.OutOrStdout(),
		Stderr:  cmd.ErrOrStderr(),
		Grace:   cfg.Grace,
		Logger:  logger,
	})
	if err != nil {
		return 0, err
	}

	wdCfg := cfg.WatchdogConfig()
	wdCfg.Output = cmd.ErrOrStderr()
	if cfg.Terminate {
		wdCfg.Action = sup.TriggerAction(watchdog.TerminateProcess())
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	opts := []canary.Option{
		canary.WithLogger(logger),
		metrics.WithMetrics(metrics.Config{Registerer: registry}),
	}
	if cfg.Listen != "" {
		opts = append(opts, httpping.WithHTTPPing(httpping.Config{Addr: cfg.Listen, Gatherer: registry}))
	}
	if cfg.HeartbeatFile != "" {
		opts = append(opts, filepinger.WithFilePinger(filepinger.Config{Path: cfg.HeartbeatFile, Create: true}))
	}

	c, err := canary.New(wdCfg, opts...)
	if err != nil {
		return 0, fmt.Errorf("create canary: %w", err)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if err := c.Start(ctx); err != nil {
		return 0, fmt.Errorf("start canary: %w", err)
	}

	if err := sup.Start(c); err != nil {
		if _, stopErr := c.Stop(); stopErr != nil {
			logger.Error("stop canary", log.Err(stopErr))
		}
		return 0, err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received signal, stopping command", log.String("signal", sig.String()))
			sup.Terminate()
		case <-sup.Done():
		}
	}()

	code, waitErr := sup.Wait(ctx)

	triggered, err := c.Stop()
	if err != nil {
		return 0, fmt.Errorf("stop canary: %w", err)
	}
	if triggered {
		logger.Warn("watchdog triggered while the command was running")
	}
	if waitErr != nil {
		return 0, waitErr
	}
	return code, nil
}
