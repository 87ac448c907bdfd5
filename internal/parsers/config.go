package parsers

import (
	"fmt"
	"strings"

	"po-reconciliation-service/internal/models"
)

// Input table names
const (
	TablePO     = "po"
	TableSOH    = "soh"
	TableMaster = "master"
	TableSR     = "sr"
)

// TableNames returns the input table names in load order
func TableNames() []string {
	return []string{TablePO, TableSOH, TableMaster, TableSR}
}

// TableConfig describes how one input file is turned into a table
type TableConfig struct {
	Name string `json:"name" mapstructure:"name"`

	// Sheet selects the worksheet of a spreadsheet input. Empty means the first sheet.
	Sheet string `json:"sheet,omitempty" mapstructure:"sheet"`

	// Delimiter is the field separator for CSV input
	Delimiter rune `json:"delimiter" mapstructure:"delimiter"`

	// ColumnAliases renames normalized source headers to the names the engine expects
	ColumnAliases map[string]string `json:"column_aliases,omitempty" mapstructure:"column_aliases"`

	// DateColumns are converted to dates on load when the cell parses as one
	DateColumns []string `json:"date_columns,omitempty" mapstructure:"date_columns"`

	SkipEmptyRows bool `json:"skip_empty_rows" mapstructure:"skip_empty_rows"`
}

// Validate checks if the table configuration is valid
func (tc *TableConfig) Validate() error {
	if strings.TrimSpace(tc.Name) == "" {
		return fmt.Errorf("table name cannot be empty")
	}

	if tc.Delimiter == '\n' || tc.Delimiter == '\r' || tc.Delimiter == '"' {
		return fmt.Errorf("invalid delimiter %q for table %s", tc.Delimiter, tc.Name)
	}

	for source, target := range tc.ColumnAliases {
		if NormalizeColumnName(source) == "" || NormalizeColumnName(target) == "" {
			return fmt.Errorf("column alias %q -> %q for table %s must name both columns", source, target, tc.Name)
		}
	}

	return nil
}

// CanonicalColumn returns the engine column name for a normalized source header
func (tc *TableConfig) CanonicalColumn(normalized string) string {
	for source, target := range tc.ColumnAliases {
		if NormalizeColumnName(source) == normalized {
			return NormalizeColumnName(target)
		}
	}
	return normalized
}

// IsDateColumn reports whether a canonical column holds dates
func (tc *TableConfig) IsDateColumn(column string) bool {
	for _, c := range tc.DateColumns {
		if c == column {
			return true
		}
	}
	return false
}

// NormalizeColumnName strips, lowercases and replaces spaces with underscores
func NormalizeColumnName(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
}

// DefaultTableConfig returns the default configuration for a named input table
func DefaultTableConfig(name string) *TableConfig {
	config := &TableConfig{
		Name:          name,
		Delimiter:     ',',
		ColumnAliases: make(map[string]string),
		SkipEmptyRows: true,
	}

	switch name {
	case TablePO:
		config.DateColumns = []string{models.ColPOExpiryDate}
	case TableMaster:
		config.ColumnAliases = map[string]string{
			"b":                   models.ColProductName,
			"name_of_the_product": models.ColProductName,
			"product":             models.ColProductName,
			"material_code_2":     models.ColMaterialCode2,
		}
	}

	return config
}

// DefaultTableConfigs returns default configurations for all input tables
func DefaultTableConfigs() map[string]*TableConfig {
	configs := make(map[string]*TableConfig)
	for _, name := range TableNames() {
		configs[name] = DefaultTableConfig(name)
	}
	return configs
}
