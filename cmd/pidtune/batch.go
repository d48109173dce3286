package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/san-kum/pidtune/internal/automation"
	"github.com/san-kum/pidtune/internal/config"
	"github.com/san-kum/pidtune/internal/experiment"
	"github.com/san-kum/pidtune/internal/storage"
)

var (
	fromSession  string
	mcTrials     int
	offsetSpread float64
	speedSpread  float64
	seed         int64
)

func newBatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch [scenario.yaml]",
		Short: "run a scenario of tuning jobs",
		Args:  cobra.ExactArgs(1),
		RunE:  runBatch,
	}
	cmd.Flags().BoolVar(&noRecord, "no-record", false, "do not write trial history")
	return cmd
}

func newRobustCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "robust",
		Short: "check gains against perturbed starting conditions",
		RunE:  runRobust,
	}
	cmd.Flags().StringVar(&fromSession, "session", "", "use the final gains of a stored session")
	cmd.Flags().IntVar(&mcTrials, "trials", 20, "number of perturbed episodes")
	cmd.Flags().Float64Var(&offsetSpread, "offset-spread", 0.5, "start offset spread, m")
	cmd.Flags().Float64Var(&speedSpread, "speed-spread", 0, "start speed spread, m/s")
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed (0 = time based)")
	return cmd
}

func runBatch(cmd *cobra.Command, args []string) error {
	scenario, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}

	ctx, _, logger, cleanup, err := setup(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	var store *storage.Store
	if !noRecord {
		store = storage.New(dataDir)
	}

	results, runErr := automation.RunScenario(ctx, scenario, experiment.NewRegistry(), store, logger)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "JOB\tSESSION\tTRIALS\tCONVERGED\tBEST\tGAINS\tNOTE")
	for _, r := range results {
		note := ""
		if r.Err != nil {
			note = r.Err.Error()
		}
		if r.Outcome == nil {
			fmt.Fprintf(w, "%s\t%s\t-\t-\t-\t-\t%s\n", r.Job, r.Session, note)
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%t\t%.6g\t%s\t%s\n",
			r.Job, r.Session, r.Outcome.Trials, r.Outcome.Converged, r.Outcome.BestError, r.Outcome.Gains, note)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return runErr
}

func runRobust(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if fromSession != "" {
		meta, err := storage.New(dataDir).Load(fromSession)
		if err != nil {
			return err
		}
		if len(meta.FinalGains) == 0 {
			return fmt.Errorf("session %s has no final gains", meta.ID)
		}
		if meta.Target == config.Throttle {
			cfg.Throttle.Gains = meta.FinalGains
		} else {
			cfg.Steer.Gains = meta.FinalGains
		}
	}

	ctx, _, logger, cleanup, err := setup(cmd)
	if err != nil {
		return err
	}
	defer cleanup()
	logger.Info("robustness check", "trials", mcTrials, "steer", fmt.Sprint(cfg.Steer.Gains))

	results, err := automation.RunMonteCarlo(ctx, cfg, experiment.NewRegistry(), &automation.MonteCarloConfig{
		Trials:       mcTrials,
		OffsetSpread: offsetSpread,
		SpeedSpread:  speedSpread,
		Seed:         seed,
	})
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TRIAL\tOFFSET\tSPEED\tREASON\tDISTANCE\tERROR")
	for _, r := range results {
		reason := string(r.Reason)
		if r.Err != nil {
			reason = "failed"
		}
		fmt.Fprintf(w, "%d\t%.3f\t%.2f\t%s\t%.3f mi\t%.6g\n", r.TrialID, r.Offset, r.Speed, reason, r.Distance, r.Error)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	on, off := automation.MonteCarloStats(results)
	fmt.Printf("\non track: %d/%d (%d left the road)\n", on, on+off, off)
	return nil
}
