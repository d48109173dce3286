package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"text/tabwriter"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/san-kum/pidtune/internal/config"
	"github.com/san-kum/pidtune/internal/dynamo"
	"github.com/san-kum/pidtune/internal/optim"
	"github.com/san-kum/pidtune/internal/storage"
	"github.com/san-kum/pidtune/internal/tuner"
	"github.com/san-kum/pidtune/internal/viz"
)

func runDrive(cmd *cobra.Command, args []string) error {
	ctx, exp, logger, cleanup, err := setup(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	steer := exp.Steer()
	gains := steer.Gains()
	if cmd.Flags().Changed("kp") {
		gains[0] = kp
	}
	if cmd.Flags().Changed("ki") {
		gains[1] = ki
	}
	if cmd.Flags().Changed("kd") {
		gains[2] = kd
	}
	if err := steer.SetGains(gains); err != nil {
		return err
	}
	logger.Info("driving", "episodes", episodes, "steer", steer.Gains().String())

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "EPISODE\tSTEPS\tDISTANCE\tREASON\tSTEER ERR\tTHROTTLE ERR\tMETRICS")
	for i := 1; i <= episodes; i++ {
		res, err := exp.Run(ctx)
		if err != nil {
			w.Flush()
			return err
		}
		steerErr := optim.DistanceNormalized(res.SteerError, res.Distance, res.SteerWarmup, res.Steps)
		throttleErr := optim.DistanceNormalized(res.ThrottleError, res.Distance, res.ThrottleWarmup, res.Steps)
		fmt.Fprintf(w, "%d\t%d\t%.3f mi\t%s\t%.6f\t%.6f\t%s\n",
			i, res.Steps, res.Distance, res.Reason, steerErr, throttleErr, formatMetrics(res.Metrics))
	}
	return w.Flush()
}

func formatMetrics(m map[string]float64) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	s := ""
	for i, k := range keys {
		if i > 0 {
			s += " "
		}
		s += fmt.Sprintf("%s=%.3f", k, m[k])
	}
	return s
}

func runTwiddle(cmd *cobra.Command, args []string) error {
	return runSearch(cmd, tuner.Twiddle, nil)
}

func runGolden(cmd *cobra.Command, args []string) error {
	return runSearch(cmd, tuner.Golden, nil)
}

func runLive(cmd *cobra.Command, args []string) error {
	strategy := tuner.Strategy(args[0])
	if strategy != tuner.Twiddle && strategy != tuner.Golden {
		return fmt.Errorf("unknown strategy: %s", args[0])
	}

	feed := viz.NewFeed()
	return runSearch(cmd, strategy, feed)
}

// runSearch builds a session for the chosen strategy and target and runs it,
// either printing the outcome or, with a feed, behind the live dashboard.
func runSearch(cmd *cobra.Command, strategy tuner.Strategy, feed *viz.Feed) error {
	tgt, err := tuner.ParseTarget(target)
	if err != nil {
		return err
	}

	ctx, exp, logger, cleanup, err := setup(cmd)
	if err != nil {
		return err
	}
	defer cleanup()
	cfg := exp.Config()

	cc, err := cfg.ControllerFor(string(tgt))
	if err != nil {
		return err
	}
	if tgt == tuner.Throttle && !cfg.Throttle.Enabled {
		return fmt.Errorf("throttle controller is disabled in config")
	}

	opts := tuner.Options{Target: tgt, Logger: logger}
	if strategy == tuner.Twiddle {
		opts.MaxTrials = cfg.Twiddle.MaxTrials
	} else {
		opts.MaxTrials = cfg.Golden.MaxTrials
	}

	var sess *storage.Session
	if !noRecord {
		st := storage.New(dataDir)
		if err := st.Init(); err != nil {
			return err
		}
		sess, err = st.Create(storage.Metadata{
			Strategy:     string(strategy),
			Target:       string(tgt),
			Preset:       preset,
			InitialGains: cc.Gains,
			Params:       searchParams(cfg, strategy),
		})
		if err != nil {
			return err
		}
		defer sess.Close()
		opts.Recorder = sess
	}

	if feed != nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
		opts.Observers = append(opts.Observers, feed)
	}

	s, err := exp.Session(opts)
	if err != nil {
		return err
	}

	search := func(ctx context.Context) (*tuner.Outcome, error) {
		if strategy == tuner.Twiddle {
			return s.Twiddle(ctx, cc.Steps, cfg.Twiddle.Tolerance)
		}
		return s.Golden(ctx, cc.SearchRanges(), cfg.Golden.Ratio, cfg.Golden.SweepTolerance)
	}

	var out *tuner.Outcome
	if feed == nil {
		out, err = search(ctx)
	} else {
		out, err = runWithDashboard(ctx, feed, search, fmt.Sprintf("%s %s", strategy, tgt))
	}

	if out != nil {
		printOutcome(out, sess)
	}
	if errors.Is(err, tuner.ErrTrialLimit) || errors.Is(err, context.Canceled) {
		logger.Warn("search stopped early", "error", err)
		return nil
	}
	return err
}

func runWithDashboard(ctx context.Context, feed *viz.Feed, search func(context.Context) (*tuner.Outcome, error), title string) (*tuner.Outcome, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		out *tuner.Outcome
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := search(ctx)
		feed.Finish(out, err)
		done <- result{out, err}
	}()

	p := tea.NewProgram(viz.NewModel(feed, title, cancel))
	if _, err := p.Run(); err != nil {
		cancel()
		feed.Close()
		<-done
		return nil, err
	}
	feed.Close()
	r := <-done
	return r.out, r.err
}

func searchParams(cfg *config.Config, strategy tuner.Strategy) map[string]float64 {
	if strategy == tuner.Twiddle {
		return map[string]float64{"tolerance": cfg.Twiddle.Tolerance, "max_trials": float64(cfg.Twiddle.MaxTrials)}
	}
	return map[string]float64{
		"ratio":           cfg.Golden.Ratio,
		"sweep_tolerance": cfg.Golden.SweepTolerance,
		"max_trials":      float64(cfg.Golden.MaxTrials),
	}
}

func printOutcome(out *tuner.Outcome, sess *storage.Session) {
	if sess != nil {
		fmt.Printf("session: %s\n", sess.ID())
	}
	fmt.Printf("strategy: %s\n", out.Strategy)
	fmt.Printf("target: %s\n", out.Target)
	fmt.Printf("trials: %d\n", out.Trials)
	fmt.Printf("converged: %t\n", out.Converged)
	fmt.Printf("elapsed: %v\n", out.Elapsed)
	fmt.Printf("best error: %.6g\n", out.BestError)
	fmt.Printf("gains: kp=%.6g ki=%.6g kd=%.6g\n", out.Gains[0], out.Gains[1], out.Gains[2])
}

// runScan evaluates a kp x kd grid with ki held at its configured value and
// reports the best cell and a range around it for the golden sweep.
func runScan(cmd *cobra.Command, args []string) error {
	tgt, err := tuner.ParseTarget(target)
	if err != nil {
		return err
	}
	ctx, exp, logger, cleanup, err := setup(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	cc, err := exp.Config().ControllerFor(string(tgt))
	if err != nil {
		return err
	}
	pid := exp.Steer()
	if tgt == tuner.Throttle {
		if pid = exp.Throttle(); pid == nil {
			return fmt.Errorf("throttle controller is disabled in config")
		}
	}

	ranges := cc.SearchRanges()
	kpVals := optim.Linspace(ranges[0].Lo, ranges[0].Hi, points)
	kdVals := optim.Linspace(ranges[2].Lo, ranges[2].Hi, points)
	grid, err := optim.NewGridSearch([]string{"kp", "kd"}, [][]float64{kpVals, kdVals})
	if err != nil {
		return err
	}
	logger.Info("scanning", "target", string(tgt), "cells", grid.Size())

	base := pid.Gains()
	eval := func(ctx context.Context, p map[string]float64) (float64, error) {
		if err := pid.SetGains(dynamo.Vector{p["kp"], base[1], p["kd"]}); err != nil {
			return 0, err
		}
		res, err := exp.Run(ctx)
		if err != nil {
			logger.Debug("scan cell failed", "kp", p["kp"], "kd", p["kd"], "error", err)
			return 0, err
		}
		raw, warmup := res.SteerError, res.SteerWarmup
		if tgt == tuner.Throttle {
			raw, warmup = res.ThrottleError, res.ThrottleWarmup
		}
		e := optim.DistanceNormalized(raw, res.Distance, warmup, res.Steps)
		logger.Debug("scan cell", "kp", p["kp"], "kd", p["kd"], "error", e, "reason", string(res.Reason))
		return e, nil
	}

	best, score, err := grid.Search(ctx, eval)
	if err != nil {
		return err
	}
	if err := pid.SetGains(base); err != nil {
		return err
	}

	kpStep := (ranges[0].Hi - ranges[0].Lo) / float64(max(points-1, 1))
	kdStep := (ranges[2].Hi - ranges[2].Lo) / float64(max(points-1, 1))
	fmt.Printf("best: kp=%.6g kd=%.6g error=%.6g\n", best["kp"], best["kd"], score)
	fmt.Printf("suggested ranges:\n  kp: [%.6g, %.6g]\n  kd: [%.6g, %.6g]\n",
		max(ranges[0].Lo, best["kp"]-kpStep), min(ranges[0].Hi, best["kp"]+kpStep),
		max(ranges[2].Lo, best["kd"]-kdStep), min(ranges[2].Hi, best["kd"]+kdStep))
	return nil
}
