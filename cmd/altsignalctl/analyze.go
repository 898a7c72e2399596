package main

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"altsignal/internal/config"
	"altsignal/internal/stats"
)

// runAnalyze classifies every run directory under the given data dirs as
// finished or dead and lists the seeds of dead runs.
func runAnalyze(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "emit run statuses as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	dataDirs := fs.Args()
	if len(dataDirs) == 0 {
		dataDirs = []string{config.Default().DataCollection.OutputDir}
	}

	statuses, err := stats.ScanRuns(dataDirs)
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(statuses)
	}

	var dead []string
	finished := 0
	for _, s := range statuses {
		fmt.Printf("dir=%s seed=%s update=%d/%d solution=%t finished=%t\n",
			s.Dir, s.Seed, s.FinalUpdate, s.ExpectedGenerations, s.Solution, s.Finished)
		if s.Finished {
			finished++
		} else {
			dead = append(dead, s.Seed)
		}
	}
	fmt.Printf("runs=%d finished=%d dead=%d\n", len(statuses), finished, len(dead))
	if len(dead) > 0 {
		fmt.Printf("dead_seeds=%s\n", strings.Join(dead, " "))
	}
	return nil
}
