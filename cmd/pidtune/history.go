package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/san-kum/pidtune/internal/storage"
	"github.com/san-kum/pidtune/internal/viz"
)

func listSessions(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	sessions, err := st.List()
	if err != nil {
		return err
	}

	if len(sessions) == 0 {
		fmt.Println("no sessions found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTRATEGY\tTARGET\tSTARTED\tTRIALS\tCONVERGED\tBEST\tGAINS")

	for _, s := range sessions {
		best := "-"
		if s.BestError != nil {
			best = fmt.Sprintf("%.6g", *s.BestError)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%t\t%s\t%v\n",
			s.ID,
			s.Strategy,
			s.Target,
			s.StartedAt.Format("2006-01-02 15:04:05"),
			s.Trials,
			s.Converged,
			best,
			s.FinalGains,
		)
	}

	return w.Flush()
}

func plotSession(cmd *cobra.Command, args []string) error {
	id := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(id)
	if err != nil {
		return err
	}
	trials, err := st.LoadTrials(id)
	if err != nil {
		return err
	}
	if len(trials) == 0 {
		return fmt.Errorf("no trials to plot")
	}

	fmt.Printf("session: %s\n", meta.ID)
	fmt.Printf("strategy: %s (%s)\n", meta.Strategy, meta.Target)
	fmt.Printf("trials: %d\n\n", len(trials))
	fmt.Println(viz.PlotErrors(trials, 80, 12, "log10 error per trial"))
	return nil
}

func exportJSON(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)

	if outFile == "" {
		return st.ExportJSON(os.Stdout, args[0])
	}

	f, err := os.Create(outFile)
	if err != nil {
		return err
	}
	if err := st.ExportJSON(f, args[0]); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Printf("exported to %s\n", outFile)
	return nil
}
