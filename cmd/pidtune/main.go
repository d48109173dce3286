package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/san-kum/pidtune/internal/config"
	"github.com/san-kum/pidtune/internal/experiment"
)

var (
	dataDir     string
	configFile  string
	preset      string
	logLevel    string
	metricsAddr string

	target    string
	maxTrials int
	tolerance float64
	episodes  int
	kp        float64
	ki        float64
	kd        float64
	points    int
	outFile   string
	noRecord  bool
)

// main registers commands and flags and executes the root command. It exits
// with status 1 if the command returns an error.
func main() {
	rootCmd := &cobra.Command{
		Use:           "pidtune",
		Short:         "PID auto-tuning lab for a simulated car",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".pidtune", "data directory")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (yaml)")
	rootCmd.PersistentFlags().StringVar(&preset, "preset", "", "use preset configuration")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address")

	driveCmd := &cobra.Command{
		Use:   "drive",
		Short: "run episodes with fixed gains",
		RunE:  runDrive,
	}
	driveCmd.Flags().IntVar(&episodes, "episodes", 1, "number of episodes")
	driveCmd.Flags().Float64Var(&kp, "kp", 0, "steer kp")
	driveCmd.Flags().Float64Var(&ki, "ki", 0, "steer ki")
	driveCmd.Flags().Float64Var(&kd, "kd", 0, "steer kd")

	twiddleCmd := &cobra.Command{
		Use:   "twiddle",
		Short: "tune gains with coordinate search",
		RunE:  runTwiddle,
	}

	goldenCmd := &cobra.Command{
		Use:   "golden",
		Short: "tune gains with a golden-section sweep",
		RunE:  runGolden,
	}

	liveCmd := &cobra.Command{
		Use:       "live [twiddle|golden]",
		Short:     "tune with a live dashboard",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"twiddle", "golden"},
		RunE:      runLive,
	}

	for _, c := range []*cobra.Command{twiddleCmd, goldenCmd, liveCmd} {
		c.Flags().StringVar(&target, "target", "steer", "controller to tune (steer, throttle)")
		c.Flags().IntVar(&maxTrials, "max-trials", 0, "give up after this many episodes (0 = config value)")
		c.Flags().Float64Var(&tolerance, "tolerance", 0, "stopping tolerance (0 = config value)")
		c.Flags().BoolVar(&noRecord, "no-record", false, "do not write trial history")
	}

	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "grid scan kp and kd to pick search ranges",
		RunE:  runScan,
	}
	scanCmd.Flags().StringVar(&target, "target", "steer", "controller to scan (steer, throttle)")
	scanCmd.Flags().IntVar(&points, "points", 5, "grid points per gain")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list tuning sessions",
		RunE:  listSessions,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [session_id]",
		Short: "plot trial errors of a session",
		Args:  cobra.ExactArgs(1),
		RunE:  plotSession,
	}

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [session_id]",
		Short: "export a session and its trials to JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}
	exportJSONCmd.Flags().StringVarP(&outFile, "out", "o", "", "output file (default stdout)")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("presets:")
			for _, p := range config.ListPresets() {
				fmt.Printf("  %s\n", p)
			}
			return nil
		},
	}

	rootCmd.AddCommand(driveCmd, twiddleCmd, goldenCmd, liveCmd, scanCmd, newBatchCmd(), newRobustCmd(), listCmd, plotCmd, exportJSONCmd, presetsCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newLogger() (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(logLevel))); err != nil {
		return nil, fmt.Errorf("invalid log level %q", logLevel)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})), nil
}

// loadConfig starts from the preset (or defaults) and lets a config file
// override it.
func loadConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	}
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}
	return cfg, nil
}

// setup is shared by every command that drives the car: it loads config,
// builds the experiment, wires logging and signal handling, and starts the
// metrics endpoint when asked.
func setup(cmd *cobra.Command) (context.Context, *experiment.Experiment, *slog.Logger, func(), error) {
	logger, err := newLogger()
	if err != nil {
		return nil, nil, nil, nil, err
	}
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, nil, err
	}
	if cmd.Flags().Lookup("max-trials") != nil && cmd.Flags().Changed("max-trials") {
		cfg.Twiddle.MaxTrials = maxTrials
		cfg.Golden.MaxTrials = maxTrials
	}
	if cmd.Flags().Lookup("tolerance") != nil && cmd.Flags().Changed("tolerance") {
		cfg.Twiddle.Tolerance = tolerance
		cfg.Golden.SweepTolerance = tolerance
	}

	exp, err := experiment.New(cfg, experiment.NewRegistry())
	if err != nil {
		return nil, nil, nil, nil, err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	shutdown := serveMetrics(logger)
	cleanup := func() {
		shutdown()
		stop()
	}
	return ctx, exp, logger, cleanup, nil
}

func serveMetrics(logger *slog.Logger) func() {
	if metricsAddr == "" {
		return func() {}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("serving metrics", "addr", metricsAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn("metrics server shutdown", "error", err)
		}
	}
}
