// Package parsers loads the reconciliation inputs from CSV and spreadsheet files.
//
// Every input is read fully into a models.Table. Header cells are normalized the
// same way for every format (trimmed, lowercased, spaces replaced by underscores)
// and then renamed through the table's column aliases, so the engine only ever
// sees canonical column names such as po_number or material_code.
//
// Supported formats:
//   - .csv with a configurable delimiter
//   - .xlsx and .xlsm, first worksheet unless a sheet name is configured
//
// Blank cells become nil and fully blank rows are skipped. Values are otherwise
// kept as read; identifier and quantity coercion is left to the engine.
//
// Example usage:
//
//	loader := parsers.NewLoader(afero.NewOsFs())
//	table, stats, err := loader.Load(ctx, "fresh_fr.xlsx", parsers.DefaultTableConfig(parsers.TablePO))
package parsers

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"po-reconciliation-service/internal/models"
	"po-reconciliation-service/pkg/errors"
	"po-reconciliation-service/pkg/logger"

	"github.com/spf13/afero"
)

// Format identifies an input file format
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// cancelCheckInterval is how many rows are read between context checks
const cancelCheckInterval = 1000

// DetectFormat picks the input format from a file extension
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		return FormatCSV, nil
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	default:
		return "", errors.FileError(errors.CodeUnsupportedFile, path, nil)
	}
}

// LoadStats holds statistics about a load operation
type LoadStats struct {
	Table       string        `json:"table"`
	Path        string        `json:"path"`
	Format      Format        `json:"format"`
	Sheet       string        `json:"sheet,omitempty"`
	Columns     int           `json:"columns"`
	Rows        int           `json:"rows"`
	SkippedRows int           `json:"skipped_rows"`
	Duration    time.Duration `json:"duration"`
}

// String returns a human-readable summary of load statistics
func (ls *LoadStats) String() string {
	return fmt.Sprintf("Loaded %s from %s: %d rows, %d columns (%d blank rows skipped)",
		ls.Table, ls.Path, ls.Rows, ls.Columns, ls.SkippedRows)
}

// Loader reads input files into tables
type Loader struct {
	fs     afero.Fs
	logger logger.Logger
}

// NewLoader creates a Loader reading from the given file system. A nil fs uses the OS.
func NewLoader(fs afero.Fs) *Loader {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Loader{
		fs:     fs,
		logger: logger.GetGlobalLogger().WithComponent("parsers"),
	}
}

// Load reads the file at path into a table described by config
func (l *Loader) Load(ctx context.Context, path string, config *TableConfig) (*models.Table, *LoadStats, error) {
	if config == nil {
		return nil, nil, errors.ConfigurationError(errors.CodeMissingConfig, "table_config", path, nil)
	}
	if err := config.Validate(); err != nil {
		return nil, nil, errors.ConfigurationError(errors.CodeInvalidConfig, "table_config", config.Name, err)
	}

	format, err := DetectFormat(path)
	if err != nil {
		return nil, nil, err
	}

	log := l.logger.WithFields(logger.Fields{
		"table":     config.Name,
		"file_path": path,
		"format":    format,
	})
	log.Debug("Opening input file")

	file, err := l.fs.Open(path)
	if err != nil {
		log.WithError(err).Error("Failed to open input file")
		if os.IsNotExist(err) {
			return nil, nil, errors.FileError(errors.CodeFileNotFound, path, err)
		}
		if os.IsPermission(err) {
			return nil, nil, errors.FileError(errors.CodeFilePermission, path, err)
		}
		return nil, nil, errors.FileError(errors.CodeFileCorrupted, path, err)
	}
	defer file.Close()

	table, stats, err := l.LoadReader(ctx, file, format, config)
	if err != nil {
		if rerr, ok := errors.AsReconcilerError(err); ok {
			rerr.WithContext("file_path", path)
		}
		return nil, nil, err
	}
	stats.Path = path

	log.WithFields(logger.Fields{
		"rows":         stats.Rows,
		"columns":      stats.Columns,
		"skipped_rows": stats.SkippedRows,
		"duration":     stats.Duration.String(),
	}).Info("Loaded input table")

	return table, stats, nil
}

// LoadReader reads a table of the given format from r
func (l *Loader) LoadReader(ctx context.Context, r io.Reader, format Format, config *TableConfig) (*models.Table, *LoadStats, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()

	var (
		rows  [][]string
		sheet string
		err   error
	)
	switch format {
	case FormatCSV:
		rows, err = readCSV(r, config)
	case FormatXLSX:
		rows, sheet, err = readXLSX(r, config)
	default:
		return nil, nil, errors.ParseError(errors.CodeInvalidFormat, config.Name, "", fmt.Errorf("unknown format %q", format))
	}
	if err != nil {
		return nil, nil, err
	}

	table, stats, err := l.buildTable(ctx, rows, config)
	if err != nil {
		return nil, nil, err
	}
	stats.Format = format
	stats.Sheet = sheet
	stats.Duration = time.Since(start)
	return table, stats, nil
}

// buildTable turns raw rows (header first) into a table
func (l *Loader) buildTable(ctx context.Context, rows [][]string, config *TableConfig) (*models.Table, *LoadStats, error) {
	headerAt := -1
	for i, row := range rows {
		if !isEmptyRecord(row) {
			headerAt = i
			break
		}
	}
	if headerAt < 0 {
		return nil, nil, errors.ParseError(errors.CodeEmptyTable, config.Name, "", nil)
	}

	columns := normalizeHeaders(rows[headerAt], config)
	table := models.NewTable(config.Name, columns)
	stats := &LoadStats{Table: config.Name, Columns: len(columns)}

	for i, record := range rows[headerAt+1:] {
		if i%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, nil, errors.InternalError(errors.CodeUnexpectedError, "load_"+config.Name, err)
			}
		}

		if config.SkipEmptyRows && isEmptyRecord(record) {
			stats.SkippedRows++
			continue
		}

		if len(record) > len(columns) {
			l.logger.WithFields(logger.Fields{
				"table": config.Name,
				"line":  headerAt + i + 2,
				"cells": len(record),
			}).Debug("Ignoring cells beyond the header width")
		}

		table.Append(buildRow(columns, record, config))
	}

	stats.Rows = table.Len()
	return table, stats, nil
}

// normalizeHeaders normalizes and aliases header cells. Blank headers become
// unnamed_N and repeated names get a .N suffix.
func normalizeHeaders(headers []string, config *TableConfig) []string {
	columns := make([]string, len(headers))
	seen := make(map[string]int, len(headers))

	for i, header := range headers {
		name := NormalizeColumnName(strings.TrimPrefix(header, "\ufeff"))
		if name == "" {
			name = fmt.Sprintf("unnamed_%d", i)
		}
		name = config.CanonicalColumn(name)

		if n, dup := seen[name]; dup {
			seen[name] = n + 1
			name = fmt.Sprintf("%s.%d", name, n+1)
		} else {
			seen[name] = 0
		}
		columns[i] = name
	}
	return columns
}

func buildRow(columns []string, record []string, config *TableConfig) models.Row {
	row := make(models.Row, len(columns))
	for i, col := range columns {
		if i >= len(record) || strings.TrimSpace(record[i]) == "" {
			row[col] = nil
			continue
		}

		value := record[i]
		if config.IsDateColumn(col) {
			if t, err := models.ParseDate(value); err == nil {
				row[col] = t
				continue
			}
		}
		row[col] = value
	}
	return row
}

// isEmptyRecord checks if all fields in a record are empty or whitespace
func isEmptyRecord(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}
