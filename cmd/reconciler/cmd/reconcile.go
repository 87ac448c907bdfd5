package cmd

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"po-reconciliation-service/cmd/reconciler/config"
	"po-reconciliation-service/internal/models"
	"po-reconciliation-service/internal/reconciler"
	"po-reconciliation-service/internal/reporter"
	"po-reconciliation-service/pkg/errors"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
)

// appFs is the filesystem the CLI reads inputs from and writes reports to
var appFs afero.Fs = afero.NewOsFs()

// Flags for the reconcile command
var (
	poFile          string
	sohFile         string
	masterFile      string
	srFile          string
	outputFormat    string
	outputFile      string
	outputTable     string
	asOf            string
	cityAliasesFile string
	showProgress    bool
	noColor         bool
)

// reconcileCmd represents the reconcile command
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Reconcile PO lines with supply records and stock on hand",
	Long: `Reconcile matches every PO line to its supply records through the item
master, classifies it as Fully Serviced, Partially Serviced, Over Supplied or
Not Found, and checks warehouse stock for the lines that are still open.

This command requires four files (CSV, XLSX or XLSM):
- the PO list (--po)
- stock on hand (--soh)
- the item master (--master)
- supply records (--sr)

Examples:
  # Console report
  reconciler reconcile --po po.xlsx --soh soh.xlsx --master master.xlsx --sr sr.xlsx

  # Both tables as a workbook
  reconciler reconcile --po po.xlsx --soh soh.xlsx --master master.xlsx --sr sr.xlsx \
    --output-format xlsx --output-file out/reconciliation.xlsx

  # Stock check table as CSV, pinned to a date
  reconciler reconcile --po po.csv --soh soh.csv --master master.csv --sr sr.csv \
    --output-format csv --table stock --as-of 2025-06-01

  # Extra city aliases
  reconciler reconcile ... --city-aliases cities.yaml`,

	PreRunE: validateReconcileFlags,
	RunE:    runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)

	// Input flags
	reconcileCmd.Flags().StringVar(&poFile, "po", "", "path to the PO list (required)")
	reconcileCmd.Flags().StringVar(&sohFile, "soh", "", "path to the stock on hand file (required)")
	reconcileCmd.Flags().StringVar(&masterFile, "master", "", "path to the item master file (required)")
	reconcileCmd.Flags().StringVar(&srFile, "sr", "", "path to the supply records file (required)")

	// Output flags
	reconcileCmd.Flags().StringVarP(&outputFormat, "output-format", "f", "console", "output format: console, json, csv, xlsx")
	reconcileCmd.Flags().StringVarP(&outputFile, "output-file", "o", "", "output file path (default: stdout)")
	reconcileCmd.Flags().StringVar(&outputTable, "table", reconciler.TableReconciliation, "table written by csv output: reconciliation, stock")

	// Processing flags
	reconcileCmd.Flags().StringVar(&asOf, "as-of", "", "date the stock check compares expiry dates against (YYYY-MM-DD, default today)")
	reconcileCmd.Flags().StringVar(&cityAliasesFile, "city-aliases", "", "YAML file with extra city aliases")

	// UI flags
	reconcileCmd.Flags().BoolVar(&showProgress, "progress", false, "show progress indicators")
	reconcileCmd.Flags().BoolVar(&noColor, "no-color", false, "disable styled console output")

	for _, name := range []string{
		"po", "soh", "master", "sr",
		"output-format", "output-file", "table",
		"as-of", "city-aliases", "progress", "no-color",
	} {
		viper.BindPFlag(name, reconcileCmd.Flags().Lookup(name))
	}
}

func validateReconcileFlags(cmd *cobra.Command, args []string) error {
	// Get values from viper (allows override from config file and environment)
	poFile = viper.GetString("po")
	sohFile = viper.GetString("soh")
	masterFile = viper.GetString("master")
	srFile = viper.GetString("sr")
	outputFormat = viper.GetString("output-format")
	outputFile = viper.GetString("output-file")
	outputTable = viper.GetString("table")
	asOf = viper.GetString("as-of")
	cityAliasesFile = viper.GetString("city-aliases")
	showProgress = viper.GetBool("progress")
	noColor = viper.GetBool("no-color")

	var errs error
	for _, input := range []struct{ flag, path, description string }{
		{"po", poFile, "PO list"},
		{"soh", sohFile, "stock on hand file"},
		{"master", masterFile, "item master file"},
		{"sr", srFile, "supply records file"},
	} {
		if input.path == "" {
			errs = multierr.Append(errs, errors.ConfigurationError(errors.CodeMissingConfig, input.flag, nil, nil).
				WithSuggestion(fmt.Sprintf("pass the %s with --%s", input.description, input.flag)))
			continue
		}
		errs = multierr.Append(errs, validateFileExists(input.path, input.description))
	}
	if cityAliasesFile != "" {
		errs = multierr.Append(errs, validateFileExists(cityAliasesFile, "city alias file"))
	}
	if errs != nil {
		return errs
	}

	format := reporter.OutputFormat(outputFormat)
	if !format.IsValid() {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "output-format", outputFormat,
			fmt.Errorf("valid formats: console, json, csv, xlsx"))
	}
	if format.IsBinary() && outputFile == "" {
		return errors.ConfigurationError(errors.CodeMissingConfig, "output-file", nil, nil).
			WithSuggestion(fmt.Sprintf("%s output cannot go to the terminal; pass --output-file", format))
	}

	if outputTable != reconciler.TableReconciliation && outputTable != reconciler.TableStockCheck {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "table", outputTable,
			fmt.Errorf("valid tables: %s, %s", reconciler.TableReconciliation, reconciler.TableStockCheck))
	}

	if _, err := config.ParseAsOf(asOf); err != nil {
		return err
	}

	// Validate output file directory exists if specified
	if outputFile != "" {
		dir := filepath.Dir(outputFile)
		if dir != "." {
			if _, err := appFs.Stat(dir); err != nil {
				return errors.FileError(errors.CodeFileNotFound, dir, err).
					WithSuggestion("create the output directory first")
			}
		}
	}

	return nil
}

func validateFileExists(filePath, description string) error {
	info, err := appFs.Stat(filePath)
	if err != nil {
		return errors.FileError(errors.CodeFileNotFound, filePath, err).
			WithContext("input", description)
	}

	if info.IsDir() {
		return errors.FileError(errors.CodeUnsupportedFile, filePath,
			fmt.Errorf("%s is a directory, expected a file", description))
	}

	file, err := appFs.Open(filePath)
	if err != nil {
		return errors.FileError(errors.CodeFilePermission, filePath, err).
			WithContext("input", description)
	}
	file.Close()

	return nil
}

func runReconcile(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	stderr := cmd.ErrOrStderr()

	if viper.GetBool("verbose") {
		fmt.Fprintf(stderr, "Starting reconciliation...\n")
		fmt.Fprintf(stderr, "PO list: %s\n", poFile)
		fmt.Fprintf(stderr, "Stock on hand: %s\n", sohFile)
		fmt.Fprintf(stderr, "Item master: %s\n", masterFile)
		fmt.Fprintf(stderr, "Supply records: %s\n", srFile)
		fmt.Fprintf(stderr, "Output format: %s\n", outputFormat)
		if outputFile != "" {
			fmt.Fprintf(stderr, "Output file: %s\n", outputFile)
		}
	}

	// Create configurations
	tableConfigs, err := config.CreateTableConfigs(viper.GetViper())
	if err != nil {
		return err
	}

	aliases, err := config.ResolveCityAliases(appFs, viper.GetViper(), cityAliasesFile)
	if err != nil {
		return err
	}

	asOfDate, err := config.ParseAsOf(asOf)
	if err != nil {
		return err
	}

	engineConfig, err := config.CreateEngineConfig(asOfDate, aliases, showProgress)
	if err != nil {
		return err
	}

	reportConfig, err := config.CreateReportConfig(outputFormat, outputTable, outputFile == "" && !noColor)
	if err != nil {
		return err
	}

	service, err := reconciler.NewReconciliationService(appFs, engineConfig)
	if err != nil {
		return err
	}

	if showProgress {
		service.AddProgressCallback(func(p reconciler.Progress) {
			fmt.Fprintf(stderr, "\r[%d/%d] %s (%.1f%% complete)",
				p.CompletedSteps, p.TotalSteps, p.CurrentStep, p.PercentComplete)
			if p.CompletedSteps == p.TotalSteps {
				fmt.Fprintln(stderr)
			}
		})
	}

	request := &reconciler.ReconciliationRequest{
		POFile:       poFile,
		SOHFile:      sohFile,
		MasterFile:   masterFile,
		SRFile:       srFile,
		TableConfigs: tableConfigs,
	}

	result, err := service.ProcessReconciliation(ctx, request)
	if err != nil {
		return err
	}

	generator, err := reporter.NewSafeReportGenerator(reportConfig, nil)
	if err != nil {
		return err
	}

	if outputFile != "" {
		written, err := generator.WriteReportFile(appFs, outputFile, result)
		if err != nil {
			return err
		}
		if written != outputFile {
			fmt.Fprintf(stderr, "Could not write %s; report saved to %s\n", outputFile, written)
		}
	} else if err := generator.GenerateReportSafely(result, cmd.OutOrStdout()); err != nil {
		return err
	}

	if viper.GetBool("verbose") {
		printRunSummary(stderr, result)
	}

	return nil
}

func printRunSummary(w io.Writer, result *reconciler.ReconciliationResult) {
	summary := result.Summary

	fmt.Fprintf(w, "\nReconciliation %s completed successfully.\n", result.RunID)
	fmt.Fprintf(w, "Processed %d PO lines (PO qty %s, supplied %s).\n",
		summary.TotalLines, summary.TotalPOQty, summary.TotalSuppliedQty)
	for _, status := range models.AllStatuses() {
		fmt.Fprintf(w, "  %-20s %d\n", status, summary.StatusCounts[status])
	}
	fmt.Fprintf(w, "Stock check rows: %d\n", summary.StockCheckRows)
	for _, outcome := range models.AllOutcomes() {
		fmt.Fprintf(w, "  %-20s %d\n", outcome, summary.OutcomeCounts[outcome])
	}
	if len(result.Warnings) > 0 {
		fmt.Fprintf(w, "Warnings: %d\n", len(result.Warnings))
	}
	fmt.Fprintf(w, "Processing time: %v\n", result.Duration)
}
