package cmd

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"syscall"

	"po-reconciliation-service/pkg/errors"
	"po-reconciliation-service/pkg/logger"

	"github.com/spf13/viper"
	"go.uber.org/multierr"
)

// maxListedErrors caps how many errors of a combined failure are printed
const maxListedErrors = 10

// CLIErrorHandler provides user-friendly error handling for CLI operations
type CLIErrorHandler struct {
	logger  logger.Logger
	out     io.Writer
	verbose bool
}

// NewCLIErrorHandler creates a new CLI error handler writing to out
func NewCLIErrorHandler(out io.Writer) *CLIErrorHandler {
	return &CLIErrorHandler{
		logger:  logger.GetGlobalLogger().WithComponent("cli"),
		out:     out,
		verbose: viper.GetBool("verbose"),
	}
}

// HandleError prints err and returns the process exit code for it
func (h *CLIErrorHandler) HandleError(err error) int {
	if err == nil {
		return 0
	}

	h.logger.WithError(err).Debug("Command failed")

	if len(multierr.Errors(err)) > 1 {
		return h.handleCombinedError(err)
	}

	if reconcilerErr, ok := errors.AsReconcilerError(err); ok {
		return h.handleReconcilerError(reconcilerErr)
	}

	return h.handleGenericError(err)
}

// handleCombinedError reports every error of a multierr chain, e.g. all the
// missing columns of a run, and exits with the most severe code
func (h *CLIErrorHandler) handleCombinedError(err error) int {
	summary := errors.SummarizeCombined(err)

	fmt.Fprintf(h.out, "Error: %d problems found\n", summary.Total)
	for i, e := range summary.Errors {
		if i == maxListedErrors {
			fmt.Fprintf(h.out, "  ... and %d more\n", summary.Total-maxListedErrors)
			break
		}
		fmt.Fprintf(h.out, "  %d. %s\n", i+1, e.Message)
		if h.verbose && e.Suggestion != "" {
			fmt.Fprintf(h.out, "     Suggestion: %s\n", e.Suggestion)
		}
	}

	for _, category := range summary.Categories() {
		fmt.Fprintf(h.out, "\n%s\n", h.getCategoryHelp(category))
	}

	return summary.GetExitCode()
}

// handleReconcilerError handles ReconcilerError with detailed context
func (h *CLIErrorHandler) handleReconcilerError(err *errors.ReconcilerError) int {
	fmt.Fprintf(h.out, "Error: %s\n", err.Message)

	if len(err.Context) > 0 {
		keys := make([]string, 0, len(err.Context))
		for key := range err.Context {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		fmt.Fprintf(h.out, "\nContext:\n")
		for _, key := range keys {
			fmt.Fprintf(h.out, "  %s: %v\n", key, err.Context[key])
		}
	}

	if err.Suggestion != "" {
		fmt.Fprintf(h.out, "\nSuggestion: %s\n", err.Suggestion)
	}

	fmt.Fprintf(h.out, "\n%s\n", h.getCategoryHelp(err.Category))

	if h.verbose && err.Cause != nil {
		fmt.Fprintf(h.out, "\nUnderlying error: %v\n", err.Cause)
	}

	return err.GetExitCode()
}

// handleGenericError handles non-ReconcilerError types
func (h *CLIErrorHandler) handleGenericError(err error) int {
	if h.isFileNotFoundError(err) {
		fmt.Fprintf(h.out, "Error: File not found\n")
		fmt.Fprintf(h.out, "Suggestion: Check if the file path is correct and the file exists\n")
		return 2
	}

	if h.isPermissionError(err) {
		fmt.Fprintf(h.out, "Error: Permission denied\n")
		fmt.Fprintf(h.out, "Suggestion: Check file permissions and ensure you have read access\n")
		return 2
	}

	if h.isDiskFullError(err) {
		fmt.Fprintf(h.out, "Error: Insufficient disk space\n")
		fmt.Fprintf(h.out, "Suggestion: Free up disk space and try again\n")
		return 2
	}

	// Usage errors from cobra, such as unknown flags
	fmt.Fprintf(h.out, "Error: %v\n", err)
	fmt.Fprintf(h.out, "Run 'reconciler --help' for usage.\n")

	return 1
}

// getCategoryHelp returns category-specific help text
func (h *CLIErrorHandler) getCategoryHelp(category errors.ErrorCategory) string {
	switch category {
	case errors.CategoryFile:
		return `File error help:
• Check that the --po, --soh, --master and --sr paths exist and are readable
• Inputs must be .csv, .xlsx or .xlsm files
• For the output file, make sure the directory exists and is writable`

	case errors.CategoryParse:
		return `Parse error help:
• Check the header row of each input for the required columns
• PO: po_number, item_id, po_qty, city, po_expiry_date
• Master: item_id, material_code and the product name in column B
• SR: po_number, material_code, quantity
• SOH: city, material_code, total_qty
• Rename columns with tables.<name>.column_aliases in the config file`

	case errors.CategoryValidation:
		return `Validation error help:
• Quantities must be numbers without units or currency symbols
• Dates should use YYYY-MM-DD or an Excel date cell`

	case errors.CategoryConfiguration:
		return `Configuration error help:
• Check your command-line flags and arguments
• Verify configuration file syntax if using --config
• City alias files map names to warehouse cities, e.g. 'surat: ahmedabad'
• Use 'reconciler reconcile --help' to see all available options`

	case errors.CategoryReconciliation:
		return `Reconciliation error help:
• Make sure all four inputs were provided
• Run with --verbose to see the processing log`

	default:
		return `For more help:
• Use 'reconciler --help' for general help
• Use 'reconciler reconcile --help' for command-specific help
• Run with --verbose and report the output if the problem persists`
	}
}

// Error detection helpers

func (h *CLIErrorHandler) isFileNotFoundError(err error) bool {
	return os.IsNotExist(err) || strings.Contains(err.Error(), "no such file or directory")
}

func (h *CLIErrorHandler) isPermissionError(err error) bool {
	return os.IsPermission(err) ||
		strings.Contains(err.Error(), "permission denied") ||
		strings.Contains(err.Error(), "access denied")
}

func (h *CLIErrorHandler) isDiskFullError(err error) bool {
	if err == syscall.ENOSPC {
		return true
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "no space left") ||
		strings.Contains(errStr, "disk full") ||
		strings.Contains(errStr, "device full")
}
