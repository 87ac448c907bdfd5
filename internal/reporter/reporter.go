// Package reporter renders reconciliation results.
//
// Supported output formats:
//   - Console: a markdown document with the summary and both tables, styled for
//     the terminal with glamour when colors are enabled
//   - JSON: summary and both tables as ordered column and row arrays
//   - CSV: one table, selected by ReportConfig.Table
//   - XLSX: a workbook with a Reconciliation sheet and a Stock Check sheet
//
// Rendering never reorders columns or rows; tables are written in the order the
// engine produced them.
//
// Example usage:
//
//	config := reporter.DefaultReportConfig()
//	config.Format = reporter.FormatCSV
//	config.Table = reconciler.TableStockCheck
//	generator, err := reporter.NewReportGenerator(config)
//	err = generator.GenerateReport(result, os.Stdout)
package reporter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"po-reconciliation-service/internal/models"
	"po-reconciliation-service/internal/parsers"
	"po-reconciliation-service/internal/reconciler"

	"github.com/charmbracelet/glamour"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// OutputFormat represents the supported report output formats
type OutputFormat string

const (
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
	FormatCSV     OutputFormat = "csv"
	FormatXLSX    OutputFormat = "xlsx"
)

// IsValid checks if the output format is supported
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatConsole, FormatJSON, FormatCSV, FormatXLSX:
		return true
	default:
		return false
	}
}

// IsBinary reports whether the format cannot be mixed with text output
func (f OutputFormat) IsBinary() bool {
	return f == FormatXLSX
}

// Workbook sheet names
const (
	SheetReconciliation = "Reconciliation"
	SheetStockCheck     = "Stock Check"
)

// ReportConfig holds configuration options for report generation
type ReportConfig struct {
	// Output format
	Format OutputFormat `json:"format"`

	// Table selects the table written by single-table formats (CSV)
	Table string `json:"table"`

	// Detail level options
	IncludeSummary   bool `json:"include_summary"`
	IncludeWarnings  bool `json:"include_warnings"`
	IncludeLoadStats bool `json:"include_load_stats"`

	// Console formatting options
	UseColors      bool `json:"use_colors"`
	TableMaxWidth  int  `json:"table_max_width"`
	MaxConsoleRows int  `json:"max_console_rows"`

	// CSV options
	CSVDelimiter rune `json:"csv_delimiter"`
	CSVHeaders   bool `json:"csv_headers"`
}

// DefaultReportConfig returns a default report configuration
func DefaultReportConfig() *ReportConfig {
	return &ReportConfig{
		Format:           FormatConsole,
		Table:            reconciler.TableReconciliation,
		IncludeSummary:   true,
		IncludeWarnings:  true,
		IncludeLoadStats: true,
		UseColors:        true,
		TableMaxWidth:    120,
		MaxConsoleRows:   50,
		CSVDelimiter:     ',',
		CSVHeaders:       true,
	}
}

// Validate validates the report configuration
func (c *ReportConfig) Validate() error {
	if !c.Format.IsValid() {
		return fmt.Errorf("invalid output format: %s", c.Format)
	}

	if c.Table != reconciler.TableReconciliation && c.Table != reconciler.TableStockCheck {
		return fmt.Errorf("invalid table %q, expected %s or %s", c.Table, reconciler.TableReconciliation, reconciler.TableStockCheck)
	}

	if c.TableMaxWidth < 50 {
		return fmt.Errorf("table max width must be at least 50 characters, got %d", c.TableMaxWidth)
	}

	if c.MaxConsoleRows < 0 {
		return fmt.Errorf("max console rows cannot be negative, got %d", c.MaxConsoleRows)
	}

	if c.CSVDelimiter == '\n' || c.CSVDelimiter == '\r' || c.CSVDelimiter == '"' {
		return fmt.Errorf("invalid CSV delimiter %q", c.CSVDelimiter)
	}

	return nil
}

// ReportGenerator generates reconciliation reports in various formats
type ReportGenerator struct {
	config *ReportConfig
}

// NewReportGenerator creates a new report generator with the specified configuration
func NewReportGenerator(config *ReportConfig) (*ReportGenerator, error) {
	if config == nil {
		config = DefaultReportConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid report configuration: %w", err)
	}

	return &ReportGenerator{
		config: config,
	}, nil
}

// GenerateReport generates a report from reconciliation results and writes it to the provided writer
func (rg *ReportGenerator) GenerateReport(result *reconciler.ReconciliationResult, writer io.Writer) error {
	if result == nil || result.Result == nil {
		return fmt.Errorf("reconciliation result cannot be nil")
	}

	switch rg.config.Format {
	case FormatConsole:
		return rg.generateConsoleReport(result, writer)
	case FormatJSON:
		return rg.generateJSONReport(result, writer)
	case FormatCSV:
		return rg.generateCSVReport(result, writer)
	case FormatXLSX:
		return rg.generateXLSXReport(result, writer)
	default:
		return fmt.Errorf("unsupported output format: %s", rg.config.Format)
	}
}

// generateConsoleReport renders the markdown report, styled when colors are enabled
func (rg *ReportGenerator) generateConsoleReport(result *reconciler.ReconciliationResult, writer io.Writer) error {
	var doc bytes.Buffer
	rg.writeMarkdown(result, &doc)

	if !rg.config.UseColors {
		_, err := writer.Write(doc.Bytes())
		return err
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(rg.config.TableMaxWidth),
	)
	if err != nil {
		return fmt.Errorf("failed to create console renderer: %w", err)
	}

	out, err := renderer.Render(doc.String())
	if err != nil {
		return fmt.Errorf("failed to render console report: %w", err)
	}
	_, err = io.WriteString(writer, out)
	return err
}

func (rg *ReportGenerator) writeMarkdown(result *reconciler.ReconciliationResult, w io.Writer) {
	fmt.Fprintf(w, "# PO Reconciliation Report\n\n")
	if result.RunID != "" {
		fmt.Fprintf(w, "- Run: `%s`\n", result.RunID)
	}
	if !result.ProcessedAt.IsZero() {
		fmt.Fprintf(w, "- Generated: %s\n", result.ProcessedAt.Format(time.RFC3339))
	}
	if result.Summary != nil {
		fmt.Fprintf(w, "- As of: %s\n", result.Summary.AsOf)
	}
	fmt.Fprintf(w, "\n")

	if rg.config.IncludeSummary && result.Summary != nil {
		fmt.Fprintf(w, "## Summary\n\n")
		rg.printSummary(result.Summary, w)
	}

	if rg.config.IncludeLoadStats && len(result.LoadStats) > 0 {
		fmt.Fprintf(w, "## Inputs\n\n")
		rg.printLoadStats(result.LoadStats, w)
	}

	fmt.Fprintf(w, "## Reconciliation\n\n")
	rg.printTable(result.Reconciliation, w)

	fmt.Fprintf(w, "## Stock Check\n\n")
	rg.printTable(result.Stock, w)

	if rg.config.IncludeWarnings && len(result.Warnings) > 0 {
		fmt.Fprintf(w, "## Warnings\n\n")
		for _, warning := range result.Warnings {
			fmt.Fprintf(w, "- %s\n", warning)
		}
		fmt.Fprintf(w, "\n")
	}
}

func (rg *ReportGenerator) printSummary(summary *reconciler.Summary, w io.Writer) {
	fmt.Fprintf(w, "| Status | Lines | Share |\n|---|---:|---:|\n")
	for _, status := range models.AllStatuses() {
		count := summary.StatusCounts[status]
		fmt.Fprintf(w, "| %s | %d | %.1f%% |\n", status, count, rg.calculatePercentage(count, summary.TotalLines))
	}
	fmt.Fprintf(w, "| **Total** | **%d** | |\n\n", summary.TotalLines)

	fmt.Fprintf(w, "| Stock outcome | Rows |\n|---|---:|\n")
	for _, outcome := range models.AllOutcomes() {
		fmt.Fprintf(w, "| %s | %d |\n", outcome, summary.OutcomeCounts[outcome])
	}
	fmt.Fprintf(w, "| **Total** | **%d** |\n\n", summary.StockCheckRows)

	fmt.Fprintf(w, "- Total PO quantity: %s\n", summary.TotalPOQty)
	fmt.Fprintf(w, "- Total supplied quantity: %s\n", summary.TotalSuppliedQty)
	if summary.ExpiryInvalid > 0 {
		fmt.Fprintf(w, "- Lines skipped for unreadable expiry: %d\n", summary.ExpiryInvalid)
	}
	if summary.InvalidQuantities > 0 {
		fmt.Fprintf(w, "- Quantities counted as zero: %d\n", summary.InvalidQuantities)
	}
	fmt.Fprintf(w, "\n")
}

func (rg *ReportGenerator) printLoadStats(stats []*parsers.LoadStats, w io.Writer) {
	fmt.Fprintf(w, "| Table | File | Rows | Skipped |\n|---|---|---:|---:|\n")
	for _, s := range stats {
		if s == nil {
			continue
		}
		fmt.Fprintf(w, "| %s | %s | %d | %d |\n", s.Table, escapeCell(s.Path), s.Rows, s.SkippedRows)
	}
	fmt.Fprintf(w, "\n")
}

func (rg *ReportGenerator) printTable(table *models.Table, w io.Writer) {
	if table == nil || table.Len() == 0 {
		fmt.Fprintf(w, "_No rows._\n\n")
		return
	}

	records := table.Records()
	writeMarkdownRow(w, records[0])
	separator := make([]string, len(records[0]))
	for i := range separator {
		separator[i] = "---"
	}
	writeMarkdownRow(w, separator)

	rows := records[1:]
	limit := len(rows)
	if rg.config.MaxConsoleRows > 0 && limit > rg.config.MaxConsoleRows {
		limit = rg.config.MaxConsoleRows
	}
	for _, record := range rows[:limit] {
		writeMarkdownRow(w, record)
	}
	fmt.Fprintf(w, "\n")

	if limit < len(rows) {
		fmt.Fprintf(w, "_... and %d more rows_\n\n", len(rows)-limit)
	}
}

func writeMarkdownRow(w io.Writer, cells []string) {
	escaped := make([]string, len(cells))
	for i, cell := range cells {
		escaped[i] = escapeCell(cell)
	}
	fmt.Fprintf(w, "| %s |\n", strings.Join(escaped, " | "))
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.ReplaceAll(s, "\n", " ")
}

// jsonTable is a table with its column order preserved
type jsonTable struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

func newJSONTable(table *models.Table) *jsonTable {
	if table == nil {
		return &jsonTable{Columns: []string{}, Rows: [][]string{}}
	}
	records := table.Records()
	return &jsonTable{Columns: records[0], Rows: records[1:]}
}

// jsonReport is the JSON document layout
type jsonReport struct {
	RunID          string               `json:"run_id,omitempty"`
	ProcessedAt    *time.Time           `json:"processed_at,omitempty"`
	Summary        *reconciler.Summary  `json:"summary,omitempty"`
	LoadStats      []*parsers.LoadStats `json:"load_stats,omitempty"`
	Reconciliation *jsonTable           `json:"reconciliation"`
	Stock          *jsonTable           `json:"stock"`
	Warnings       []string             `json:"warnings,omitempty"`
}

// generateJSONReport generates a structured JSON report
func (rg *ReportGenerator) generateJSONReport(result *reconciler.ReconciliationResult, writer io.Writer) error {
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")

	return encoder.Encode(rg.filterResultForOutput(result))
}

func (rg *ReportGenerator) filterResultForOutput(result *reconciler.ReconciliationResult) *jsonReport {
	report := &jsonReport{
		RunID:          result.RunID,
		Reconciliation: newJSONTable(result.Reconciliation),
		Stock:          newJSONTable(result.Stock),
	}

	if !result.ProcessedAt.IsZero() {
		processedAt := result.ProcessedAt
		report.ProcessedAt = &processedAt
	}
	if rg.config.IncludeSummary {
		report.Summary = result.Summary
	}
	if rg.config.IncludeLoadStats {
		report.LoadStats = result.LoadStats
	}
	if rg.config.IncludeWarnings {
		report.Warnings = result.Warnings
	}

	return report
}

// generateCSVReport writes the configured table as CSV
func (rg *ReportGenerator) generateCSVReport(result *reconciler.ReconciliationResult, writer io.Writer) error {
	table := rg.selectTable(result)
	if table == nil {
		return fmt.Errorf("%s table is not available", rg.config.Table)
	}

	csvWriter := csv.NewWriter(writer)
	csvWriter.Comma = rg.config.CSVDelimiter

	records := table.Records()
	if !rg.config.CSVHeaders {
		records = records[1:]
	}

	if err := csvWriter.WriteAll(records); err != nil {
		return fmt.Errorf("failed to write %s table: %w", table.Name, err)
	}
	return nil
}

func (rg *ReportGenerator) selectTable(result *reconciler.ReconciliationResult) *models.Table {
	if rg.config.Table == reconciler.TableStockCheck {
		return result.Stock
	}
	return result.Reconciliation
}

// generateXLSXReport writes both tables to a workbook
func (rg *ReportGenerator) generateXLSXReport(result *reconciler.ReconciliationResult, writer io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetReconciliation); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	if _, err := f.NewSheet(SheetStockCheck); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}

	if err := writeSheet(f, SheetReconciliation, result.Reconciliation); err != nil {
		return err
	}
	if err := writeSheet(f, SheetStockCheck, result.Stock); err != nil {
		return err
	}

	f.SetActiveSheet(0)
	if err := f.Write(writer); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, table *models.Table) error {
	if table == nil {
		return nil
	}

	header := make([]interface{}, len(table.Columns))
	for i, col := range table.Columns {
		header[i] = col
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write %s header: %w", sheet, err)
	}

	for r, row := range table.Rows {
		values := make([]interface{}, len(table.Columns))
		for i, col := range table.Columns {
			values[i] = cellValue(row[col])
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, r+1, err)
		}
	}
	return nil
}

// cellValue keeps numbers and dates typed in the workbook
func cellValue(v interface{}) interface{} {
	switch val := v.(type) {
	case nil:
		return nil
	case decimal.Decimal:
		return val.InexactFloat64()
	case time.Time, float64, int, int64, bool:
		return val
	default:
		return models.FormatValue(v)
	}
}

// Helper methods

func (rg *ReportGenerator) calculatePercentage(part, total int) float64 {
	if total == 0 {
		return 0.0
	}
	return float64(part) / float64(total) * 100.0
}

// UpdateConfiguration updates the report generator configuration
func (rg *ReportGenerator) UpdateConfiguration(config *ReportConfig) error {
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid report configuration: %w", err)
	}

	rg.config = config
	return nil
}

// GetConfiguration returns the current configuration
func (rg *ReportGenerator) GetConfiguration() *ReportConfig {
	return rg.config
}
