package parsers

import (
	"bytes"
	"context"
	"reflect"
	"testing"
	"time"

	"po-reconciliation-service/internal/models"
	"po-reconciliation-service/pkg/errors"

	"github.com/spf13/afero"
	"github.com/xuri/excelize/v2"
)

// Helper function to write a file into an in-memory file system
func writeTestFile(t *testing.T, fs afero.Fs, path string, content []byte) {
	t.Helper()
	if err := afero.WriteFile(fs, path, content, 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}
}

// Helper function to build an xlsx workbook in memory
func buildWorkbook(t *testing.T, sheet string, rows [][]interface{}) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	if sheet != "Sheet1" {
		if _, err := f.NewSheet(sheet); err != nil {
			t.Fatalf("Failed to create sheet: %v", err)
		}
		if err := f.DeleteSheet("Sheet1"); err != nil {
			t.Fatalf("Failed to delete default sheet: %v", err)
		}
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("Failed to name cell: %v", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("Failed to write row: %v", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("Failed to write workbook: %v", err)
	}
	return buf.Bytes()
}

func TestNormalizeColumnName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"PO Number", "po_number"},
		{"  Material Code ", "material_code"},
		{"po_qty", "po_qty"},
		{"PO Expiry Date", "po_expiry_date"},
		{"Bill-To Street", "bill-to_street"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := NormalizeColumnName(tt.input); got != tt.expected {
				t.Errorf("NormalizeColumnName(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		path      string
		expected  Format
		wantError bool
	}{
		{"po.csv", FormatCSV, false},
		{"PO.XLSX", FormatXLSX, false},
		{"sr.xlsm", FormatXLSX, false},
		{"old.xls", "", true},
		{"notes.pdf", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := DetectFormat(tt.path)
			if (err != nil) != tt.wantError {
				t.Fatalf("DetectFormat() error = %v, wantError %v", err, tt.wantError)
			}
			if got != tt.expected {
				t.Errorf("DetectFormat() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestDefaultTableConfigs(t *testing.T) {
	configs := DefaultTableConfigs()

	for _, name := range TableNames() {
		config, ok := configs[name]
		if !ok {
			t.Fatalf("missing default config for %s", name)
		}
		if err := config.Validate(); err != nil {
			t.Errorf("default config for %s is invalid: %v", name, err)
		}
	}

	master := configs[TableMaster]
	for _, alias := range []string{"b", "Name of the Product", "product"} {
		if got := master.CanonicalColumn(NormalizeColumnName(alias)); got != models.ColProductName {
			t.Errorf("alias %q resolved to %q", alias, got)
		}
	}
	if !configs[TablePO].IsDateColumn(models.ColPOExpiryDate) {
		t.Error("po_expiry_date should be a date column of the po table")
	}
}

func TestTableConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		config    *TableConfig
		wantError bool
	}{
		{"valid", DefaultTableConfig(TableSR), false},
		{"empty name", &TableConfig{Delimiter: ','}, true},
		{"quote delimiter", &TableConfig{Name: "po", Delimiter: '"'}, true},
		{"blank alias target", &TableConfig{Name: "po", ColumnAliases: map[string]string{"qty": " "}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantError {
				t.Errorf("Validate() error = %v, wantError %v", err, tt.wantError)
			}
		})
	}
}

func TestLoadCSV(t *testing.T) {
	fs := afero.NewMemMapFs()
	content := "\ufeffPO Number,Item ID,PO Qty,City,PO Expiry Date\n" +
		"1001,A1,10,Surat,2026-12-31\n" +
		"\n" +
		" , , , , \n" +
		"1002,A2,,Noida,not a date\n" +
		"1003,A3,5\n"
	writeTestFile(t, fs, "/data/po.csv", []byte(content))

	loader := NewLoader(fs)
	table, stats, err := loader.Load(context.Background(), "/data/po.csv", DefaultTableConfig(TablePO))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	expectedColumns := []string{"po_number", "item_id", "po_qty", "city", "po_expiry_date"}
	if !reflect.DeepEqual(table.Columns, expectedColumns) {
		t.Errorf("Columns = %v, want %v", table.Columns, expectedColumns)
	}
	if table.Len() != 3 {
		t.Fatalf("expected 3 rows, got %d", table.Len())
	}
	if stats.SkippedRows != 1 {
		t.Errorf("expected 1 skipped blank row, got %d", stats.SkippedRows)
	}
	if stats.Format != FormatCSV || stats.Path != "/data/po.csv" {
		t.Errorf("unexpected stats %+v", stats)
	}

	first := table.Rows[0]
	if first["po_number"] != "1001" || first["city"] != "Surat" {
		t.Errorf("unexpected first row %v", first)
	}
	expiry, ok := first["po_expiry_date"].(time.Time)
	if !ok || !expiry.Equal(time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("expiry should be parsed to a date, got %#v", first["po_expiry_date"])
	}

	second := table.Rows[1]
	if second["po_qty"] != nil {
		t.Errorf("blank cell should be nil, got %#v", second["po_qty"])
	}
	if second["po_expiry_date"] != "not a date" {
		t.Errorf("unparseable date should be kept as read, got %#v", second["po_expiry_date"])
	}

	third := table.Rows[2]
	if third["city"] != nil || third["po_expiry_date"] != nil {
		t.Errorf("short record should pad with nil, got %v", third)
	}
}

func TestLoadCSVAliasesAndDuplicates(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeTestFile(t, fs, "master.csv", []byte("Item ID,B,Material Code,Material Code,\n1,Soap,500,501,x\n"))

	table, _, err := NewLoader(fs).Load(context.Background(), "master.csv", DefaultTableConfig(TableMaster))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	expected := []string{"item_id", "product_name", "material_code", "material_code.1", "unnamed_4"}
	if !reflect.DeepEqual(table.Columns, expected) {
		t.Errorf("Columns = %v, want %v", table.Columns, expected)
	}
	if table.Rows[0]["product_name"] != "Soap" {
		t.Errorf("aliased column lost its value: %v", table.Rows[0])
	}
}

func TestLoadXLSX(t *testing.T) {
	fs := afero.NewMemMapFs()
	workbook := buildWorkbook(t, "SOH", [][]interface{}{
		{"City", "Material Code", "Total Qty"},
		{"Mumbai", 500, 20},
		{nil, nil, nil},
		{"Pune", "600", 7.5},
	})
	writeTestFile(t, fs, "soh.xlsx", workbook)

	config := DefaultTableConfig(TableSOH)
	table, stats, err := NewLoader(fs).Load(context.Background(), "soh.xlsx", config)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if stats.Sheet != "SOH" {
		t.Errorf("expected first sheet SOH, got %q", stats.Sheet)
	}
	if !reflect.DeepEqual(table.Columns, []string{"city", "material_code", "total_qty"}) {
		t.Errorf("unexpected columns %v", table.Columns)
	}
	if table.Len() != 2 {
		t.Fatalf("expected 2 rows, got %d", table.Len())
	}
	if table.Rows[0]["material_code"] != "500" || table.Rows[1]["total_qty"] != "7.5" {
		t.Errorf("unexpected rows %v", table.Rows)
	}
}

func TestLoadXLSXDateSerial(t *testing.T) {
	fs := afero.NewMemMapFs()
	workbook := buildWorkbook(t, "Sheet1", [][]interface{}{
		{"po_number", "item_id", "po_qty", "city", "po_expiry_date"},
		{1001, 1, 10, "Surat", 46022},
	})
	writeTestFile(t, fs, "po.xlsx", workbook)

	table, _, err := NewLoader(fs).Load(context.Background(), "po.xlsx", DefaultTableConfig(TablePO))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	expiry, ok := table.Rows[0]["po_expiry_date"].(time.Time)
	if !ok {
		t.Fatalf("expected date, got %#v", table.Rows[0]["po_expiry_date"])
	}
	if !expiry.Equal(time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("expected 2025-12-31, got %v", expiry)
	}
}

func TestLoadErrors(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeTestFile(t, fs, "empty.csv", []byte("\n\n"))
	writeTestFile(t, fs, "broken.xlsx", []byte("this is not a zip archive"))
	writeTestFile(t, fs, "sheet.xlsx", buildWorkbook(t, "Sheet1", [][]interface{}{{"a"}, {"1"}}))

	missingSheet := DefaultTableConfig(TableSR)
	missingSheet.Sheet = "Supplies"

	tests := []struct {
		name         string
		path         string
		config       *TableConfig
		expectedCode errors.ErrorCode
	}{
		{"missing file", "nope.csv", DefaultTableConfig(TablePO), errors.CodeFileNotFound},
		{"unsupported extension", "po.json", DefaultTableConfig(TablePO), errors.CodeUnsupportedFile},
		{"no header", "empty.csv", DefaultTableConfig(TablePO), errors.CodeEmptyTable},
		{"corrupt workbook", "broken.xlsx", DefaultTableConfig(TableSOH), errors.CodeInvalidFormat},
		{"missing sheet", "sheet.xlsx", missingSheet, errors.CodeMissingSheet},
		{"nil config", "empty.csv", nil, errors.CodeMissingConfig},
	}

	loader := NewLoader(fs)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := loader.Load(context.Background(), tt.path, tt.config)
			if err == nil {
				t.Fatal("expected an error")
			}
			rerr, ok := errors.AsReconcilerError(err)
			if !ok {
				t.Fatalf("expected ReconcilerError, got %T", err)
			}
			if rerr.Code != tt.expectedCode {
				t.Errorf("expected code %s, got %s", tt.expectedCode, rerr.Code)
			}
		})
	}
}

func TestLoadReaderCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := NewLoader(nil).LoadReader(ctx, bytes.NewBufferString("a,b\n1,2\n"), FormatCSV, DefaultTableConfig(TableSR))
	if err == nil {
		t.Fatal("expected cancellation error")
	}
}

func TestConcurrentLoader(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeTestFile(t, fs, "po.csv", []byte("po_number,item_id,po_qty,city,po_expiry_date\n1,1,1,x,2026-01-01\n"))
	writeTestFile(t, fs, "sr.csv", []byte("po_number,material_code,quantity\n1,5,1\n"))

	requests := []LoadRequest{
		{Path: "po.csv", Config: DefaultTableConfig(TablePO)},
		{Path: "missing_soh.csv", Config: DefaultTableConfig(TableSOH)},
		{Path: "sr.csv", Config: DefaultTableConfig(TableSR)},
		{Path: "missing_master.csv", Config: DefaultTableConfig(TableMaster)},
	}

	results, err := NewConcurrentLoader(NewLoader(fs), 2).LoadAll(context.Background(), requests)
	if err == nil {
		t.Fatal("expected combined error for missing files")
	}

	summary := errors.SummarizeCombined(err)
	if summary.Total != 2 || summary.ByCode[errors.CodeFileNotFound] != 2 {
		t.Errorf("expected two file_not_found errors, got %s", summary.Error())
	}
	if summary.Errors[0].Context["file_path"] != "missing_soh.csv" {
		t.Errorf("errors should follow request order, got %v", summary.Errors[0].Context["file_path"])
	}

	if len(results) != 4 || results[0].Request.Path != "po.csv" || results[2].Table == nil {
		t.Fatalf("results should follow request order")
	}

	tables, err := Tables(results)
	if err != nil {
		t.Fatalf("Tables() error = %v", err)
	}
	if len(tables) != 2 || tables[TableSR].Len() != 1 {
		t.Errorf("unexpected tables %v", tables)
	}
}
