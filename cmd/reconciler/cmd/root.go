package cmd

import (
	"fmt"
	"os"
	"strings"

	"po-reconciliation-service/pkg/errors"
	"po-reconciliation-service/pkg/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile   string
	envFile   string
	verbose   bool
	logFormat string
	version   = "dev"
	commit    = "unknown"
	date      = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "reconciler",
	Short: "Purchase order reconciliation tool",
	Long: `Reconciler checks purchase order lines against supply records and
stock on hand. It reports how much of each PO line was supplied and, for
lines that are still open, whether warehouse stock can cover them.

Examples:
  reconciler reconcile --po po.xlsx --soh soh.xlsx --master master.xlsx --sr sr.xlsx
  reconciler reconcile --po po.csv --soh soh.csv --master master.csv --sr sr.csv --output-format json
  reconciler reconcile ... --output-format xlsx --output-file out/report.xlsx
  reconciler cities Surat Noida
  reconciler --version`,
	Version:           getVersionString(),
	SilenceErrors:     true,
	SilenceUsage:      true,
	PersistentPreRunE: setupLogger,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (optional)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file with RECONCILER_* settings (ignored when missing)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format: text, json")

	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("log-format", rootCmd.PersistentFlags().Lookup("log-format"))
}

// initConfig reads in the dotenv file, config file and ENV variables.
func initConfig() {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Error reading env file %s: %s\n", envFile, err)
			os.Exit(errors.ConfigurationError(errors.CodeInvalidConfig, "env-file", envFile, err).GetExitCode())
		}
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)

		if err := viper.ReadInConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "Error reading config file: %s\n", err)
			os.Exit(errors.ConfigurationError(errors.CodeInvalidConfig, "config", cfgFile, err).GetExitCode())
		}

		if viper.GetBool("verbose") {
			fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
		}
	}

	// RECONCILER_OUTPUT_FORMAT overrides --output-format and so on
	viper.SetEnvPrefix("RECONCILER")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()
}

// setupLogger installs the global logger. Logs go to stderr so report output
// on stdout stays machine readable.
func setupLogger(cmd *cobra.Command, args []string) error {
	level := logger.WarnLevel
	if viper.GetBool("verbose") {
		level = logger.DebugLevel
	}

	log, err := logger.NewLogger(&logger.Config{
		Level:  level,
		Format: logger.Format(strings.ToLower(viper.GetString("log-format"))),
		Output: logger.StderrOutput,
		Writer: cmd.ErrOrStderr(),
	})
	if err != nil {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "log-format", viper.GetString("log-format"), err).
			WithSuggestion("use --log-format text or --log-format json")
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
