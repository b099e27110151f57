package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/GanizaniSitara/controls-ux/internal/application/dto"
)

type fitnessOutput struct {
	Source  string                  `json:"source"`
	Results []*dto.FitnessResultDTO `json:"results"`
}

func newFitnessCmd(opts *rootOptions) *cobra.Command {
	var (
		jsonOutput bool
		minPassing float64
	)

	cmd := &cobra.Command{
		Use:   "fitness",
		Short: "Run one refresh cycle and score the fitness functions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := opts.load(cmd)
			if err != nil {
				return err
			}
			a, err := buildApp(cmd.Context(), cfg, log, modeOneShot)
			if err != nil {
				return err
			}
			defer a.close(context.WithoutCancel(cmd.Context()))

			view, err := runCycle(cmd.Context(), a)
			if err != nil {
				return err
			}
			results := a.fitness.Execute(view.Snapshot)

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(fitnessOutput{Source: string(view.Source), Results: results}); err != nil {
					return err
				}
			} else {
				fmt.Fprint(cmd.OutOrStdout(), RenderFitnessReport(string(view.Source), view.Snapshot.Metadata(), results))
			}

			return checkMinimum(results, minPassing)
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print results as JSON")
	cmd.Flags().Float64Var(&minPassing, "min", 0, "fail when a function with data passes fewer than this percentage of applications")
	return cmd
}

// checkMinimum fails for functions scoring below threshold. Functions without any
// scored application are skipped.
func checkMinimum(results []*dto.FitnessResultDTO, threshold float64) error {
	if threshold <= 0 {
		return nil
	}
	var below []string
	for _, r := range results {
		if r.TotalCount > 0 && r.PassingPercentage < threshold {
			below = append(below, fmt.Sprintf("%s (%.1f%%)", r.FunctionID, r.PassingPercentage))
		}
	}
	if len(below) > 0 {
		return fmt.Errorf("fitness below %.1f%%: %s", threshold, strings.Join(below, ", "))
	}
	return nil
}
