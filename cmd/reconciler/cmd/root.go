package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"rolling-pnl-reconciler/pkg/logger"
)

var (
	cfgFile string
	verbose bool
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "reconciler",
	Short: "Rolling P&L account reconciliation tool",
	Long: `Reconciler carries the current month of one or more P&L workbooks into a
rolling P&L workbook. It finds the target month column of each source sheet,
maps source accounts onto rolling accounts by fuzzy label matching, sums the
amounts per rolling account and accumulates them into the matching month
column of the rolling sheet.

Projects are described in a TOML manifest; each project's mappings are kept in
a JSON file beside it and can be reviewed and edited between runs.

Examples:
  reconciler inspect --file pnl.xlsx --sheet Ops
  reconciler mapping generate --manifest projects.toml
  reconciler mapping edit --manifest projects.toml --project Ops --source "7350 Domain / Website" --rolling "Website Expense"
  reconciler reconcile --manifest projects.toml --dry-run
  reconciler reconcile --manifest projects.toml --output reconciled.xlsx --output-format json
  reconciler reset --manifest projects.toml --project Ops`,
	Version:       getVersionString(),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initLogger()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (optional)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().String("log-level", "warn", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "text", "log format: text, json")
	rootCmd.PersistentFlags().String("log-file", "", "write logs to this file instead of stderr")

	bindRootFlags()
}

// bindRootFlags binds the global flags to viper
func bindRootFlags() {
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
	viper.BindPFlag("log.file", rootCmd.PersistentFlags().Lookup("log-file"))
}

// initConfig reads in config file and ENV variables.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)

		// If a config file is specified, read it in.
		if err := viper.ReadInConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "Error reading config file: %s\n", err)
			os.Exit(4)
		}

		if viper.GetBool("verbose") {
			fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
		}
	}

	// Read environment variables that match, e.g. RECONCILER_MATCHER_ALGORITHM
	viper.SetEnvPrefix("RECONCILER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
}

// initLogger installs the global logger from the log settings. --verbose
// raises the level to at least info.
func initLogger() error {
	config := logger.DefaultConfig()
	config.Level = logger.WarnLevel
	if name := viper.GetString("log.level"); name != "" {
		level, err := logger.ParseLevel(name)
		if err != nil {
			return err
		}
		config.Level = level
	}
	if format := viper.GetString("log.format"); format != "" {
		config.Format = logger.Format(format)
	}
	if file := viper.GetString("log.file"); file != "" {
		config.Output = logger.FileOutput
		config.File = file
	}
	if viper.GetBool("verbose") && (config.Level == logger.WarnLevel || config.Level == logger.ErrorLevel) {
		config.Level = logger.InfoLevel
	}

	log, err := logger.NewLogger(config)
	if err != nil {
		return fmt.Errorf("invalid log settings: %w", err)
	}
	logger.SetGlobalLogger(log)
	return nil
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = getVersionString()
}

func getVersionString() string {
	if version == "dev" {
		return fmt.Sprintf("%s (commit %s, built %s)", version, commit, date)
	}
	return version
}
