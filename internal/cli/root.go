package cli

import (
	"github.com/spf13/cobra"

	logx "github.com/retail-analyst/server/pkg/logger"
)

type rootOptions struct {
	envFile string
	dataset string
	cfg     *AppConfig
}

func NewRootCommand(version string) *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "retail-analyst",
		Short: "Answer retail business questions over a transactions dataset",
		Long: `retail-analyst loads a retail transactions file (CSV or XLSX) and answers
business questions with a language model that calls deterministic analysis
tools: segmentation, seasonality, lifetime value, product, store and
promotion performance.

Configuration is read from the environment and an optional .env file.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := LoadConfig(opts.envFile)
			if err != nil {
				return err
			}
			if opts.dataset != "" {
				cfg.DatasetPath = opts.dataset
			}
			logx.Init(logx.LoggerOpts{
				Environment: cfg.Environment,
				Level:       cfg.LogLevel,
				Output:      cmd.ErrOrStderr(),
			})
			opts.cfg = cfg
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "Environment file loaded before the process environment")
	rootCmd.PersistentFlags().StringVar(&opts.dataset, "dataset", "", "Transactions file (overrides DATASET_PATH)")

	// Serve
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE:  func(cmd *cobra.Command, _ []string) error { return runServe(cmd, opts) },
	}

	// Ask Commands
	askCmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a free-form business question",
		Args:  cobra.MinimumNArgs(1),
		RunE:  func(cmd *cobra.Command, args []string) error { return runAsk(cmd, opts, args) },
	}
	askCmd.Flags().String("conversation", "", "Conversation ID to keep history under (bypasses the cache)")

	runCmd := &cobra.Command{
		Use:   "run <analysis_type>",
		Short: "Run a canned analysis",
		Args:  cobra.ExactArgs(1),
		RunE:  func(cmd *cobra.Command, args []string) error { return runAnalysis(cmd, opts, args) },
	}
	runCmd.Flags().String("question", "", "Question for the custom analysis type")

	analysesCmd := &cobra.Command{
		Use:   "analyses",
		Short: "List the canned analysis types",
		Args:  cobra.NoArgs,
		RunE:  func(cmd *cobra.Command, _ []string) error { return runAnalyses(cmd) },
	}
	analysesCmd.Flags().Bool("json", false, "Print machine-readable output")

	// Tool Commands
	toolsCmd := &cobra.Command{
		Use:   "tools",
		Short: "List the analysis tools",
		Args:  cobra.NoArgs,
		RunE:  func(cmd *cobra.Command, _ []string) error { return runTools(cmd, opts) },
	}

	toolCmd := &cobra.Command{
		Use:   "tool <name> [arguments-json]",
		Short: "Run one analysis tool directly, without the language model",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  func(cmd *cobra.Command, args []string) error { return runTool(cmd, opts, args) },
	}
	toolCmd.Flags().String("variant", "", "Variant of the tool (e.g. anomaly, correlation, top per location)")
	toolCmd.Flags().String("dimension", "", "Dimension for sales_breakdown")
	toolCmd.Flags().String("granularity", "", "Granularity for sales_over_time")

	rootCmd.AddCommand(serveCmd, askCmd, runCmd, analysesCmd, toolsCmd, toolCmd)
	return rootCmd
}
