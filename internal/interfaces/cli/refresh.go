package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GanizaniSitara/controls-ux/internal/application/aggregation"
	"github.com/GanizaniSitara/controls-ux/internal/application/dto"
)

func newRefreshCmd(opts *rootOptions) *cobra.Command {
	var compact bool

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Run one refresh cycle and print the snapshot as JSON",
		Long: "Loads every provider once, evaluates the rules and writes the snapshot to stdout. " +
			"When the cycle yields no data the fallback store is read instead.",
		Args: cobra.NoArgs,
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

			enc := json.NewEncoder(cmd.OutOrStdout())
			if !compact {
				enc.SetIndent("", "  ")
			}
			return enc.Encode(dto.NewSnapshotDTO(view.Snapshot, string(view.Source), "ok"))
		},
	}
	cmd.Flags().BoolVar(&compact, "compact", false, "print the snapshot on one line")
	return cmd
}

// runCycle refreshes once and reads the result the way an API client would.
// A failed cycle is logged; only the absence of any data is an error.
func runCycle(ctx context.Context, a *app) (*aggregation.View, error) {
	if err := a.cache.Refresh(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		a.log.Error("Refresh cycle failed", err)
	}

	view, err := a.cache.GetSnapshot(ctx)
	if errors.Is(err, aggregation.ErrCacheUnavailable) {
		meta := a.cache.Metadata()
		if meta.LastError != "" {
			return nil, fmt.Errorf("%w: %s", err, meta.LastError)
		}
	}
	if err != nil {
		return nil, err
	}
	return view, nil
}
