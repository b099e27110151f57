package cli

import (
	"github.com/spf13/cobra"

	"github.com/GanizaniSitara/controls-ux/pkg/config"
	"github.com/GanizaniSitara/controls-ux/pkg/logger"
)

var (
	version = "dev"
	commit  = "none"
)

// rootOptions are the persistent flags. Empty values keep the environment setting.
type rootOptions struct {
	providersFile string
	rulesFile     string
	logLevel      string
	appFilter     []string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "controls-ux",
		Short: "Aggregate application control data and score it",
		Long: "controls-ux loads per-application records from the configured providers, " +
			"evaluates compliance rules against them and serves the resulting snapshot.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.providersFile, "providers", "", "providers file (default $PROVIDERS_FILE or providers.yaml)")
	flags.StringVar(&opts.rulesFile, "rules", "", "expression rules file (default $RULES_FILE or rules.yaml)")
	flags.StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error (default $LOG_LEVEL or info)")
	flags.StringSliceVar(&opts.appFilter, "app", nil, "restrict loads to these application ids")

	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newRefreshCmd(opts))
	cmd.AddCommand(newFitnessCmd(opts))
	cmd.AddCommand(newVersionCmd())
	return cmd
}

// load reads the configuration and applies flag overrides. Logs go to the
// command's error stream so stdout stays machine readable.
func (o *rootOptions) load(cmd *cobra.Command) (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if o.providersFile != "" {
		cfg.Aggregator.ProvidersFile = o.providersFile
	}
	if o.rulesFile != "" {
		cfg.Aggregator.RulesFile = o.rulesFile
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	if len(o.appFilter) > 0 {
		cfg.Aggregator.AppFilter = o.appFilter
	}
	return cfg, logger.NewWithWriter(cfg.LogLevel, cmd.ErrOrStderr()), nil
}

// NewRootCmdForTest returns the root command for testing.
func NewRootCmdForTest() *cobra.Command {
	return newRootCmd()
}

func Execute() error {
	return newRootCmd().Execute()
}
