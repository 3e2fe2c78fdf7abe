package main

import (
	"fmt"
	"runtime"

	"github.com/birdayz/kstorm/ktopology"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <path>...",
		Short: "Decode and validate encoded topologies",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			topologies := make([]*ktopology.Topology, len(args))
			errs := make([]error, len(args))

			var g errgroup.Group
			g.SetLimit(runtime.GOMAXPROCS(0))
			for i, path := range args {
				g.Go(func() error {
					topologies[i], errs[i] = ktopology.ReadFile(path)
					return nil
				})
			}
			// Failures are kept per path so every file gets reported.
			if err := g.Wait(); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			var err error
			for i, path := range args {
				if errs[i] != nil {
					fmt.Fprintf(out, "FAIL %s: %v\n", path, errs[i])
					err = multierr.Append(err, fmt.Errorf("%s: %w", path, errs[i]))
					continue
				}
				t := topologies[i]
				fmt.Fprintf(out, "ok   %s (%d spouts, %d bolts, %d state spouts)\n",
					path, len(t.Spouts()), len(t.Bolts()), len(t.StateSpouts()))
			}
			return err
		},
	}
}
