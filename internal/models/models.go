package models

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
	"github.com/xuri/excelize/v2"
)

// Column names shared by the loaders, the engine and the result tables.
const (
	ColPONumber      = "po_number"
	ColItemID        = "item_id"
	ColPOQty         = "po_qty"
	ColCity          = "city"
	ColPOExpiryDate  = "po_expiry_date"
	ColProductName   = "product_name"
	ColMaterialCode  = "material_code"
	ColMaterialCode2 = "material_code2"
	ColQuantity      = "quantity"
	ColTotalQty      = "total_qty"

	ColSuppliedQty   = "supplied_qty"
	ColStatus        = "status"
	ColCityMapped    = "city_mapped"
	ColMaterialCodes = "material_codes"
	ColSOHStock      = "soh_stock"
	ColSupplyStatus  = "supply_status"
)

// Row is one record of a table keyed by normalized column name.
// A nil value means the cell was blank.
type Row map[string]interface{}

// Table is an in-memory tabular dataset with an explicit column order.
type Table struct {
	Name    string
	Columns []string
	Rows    []Row
}

// NewTable creates an empty table with the given columns
func NewTable(name string, columns []string) *Table {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Table{
		Name:    name,
		Columns: cols,
		Rows:    make([]Row, 0),
	}
}

// Append adds a row to the table
func (t *Table) Append(row Row) {
	t.Rows = append(t.Rows, row)
}

// Len returns the number of rows
func (t *Table) Len() int {
	return len(t.Rows)
}

// HasColumn reports whether the table declares the column
func (t *Table) HasColumn(name string) bool {
	return t.ColumnIndex(name) >= 0
}

// ColumnIndex returns the position of a column or -1
func (t *Table) ColumnIndex(name string) int {
	for i, col := range t.Columns {
		if col == name {
			return i
		}
	}
	return -1
}

// MissingColumns returns the required columns the table does not declare, in the given order
func (t *Table) MissingColumns(required []string) []string {
	var missing []string
	for _, col := range required {
		if !t.HasColumn(col) {
			missing = append(missing, col)
		}
	}
	return missing
}

// Records renders the table as string records, header first.
func (t *Table) Records() [][]string {
	records := make([][]string, 0, len(t.Rows)+1)
	header := make([]string, len(t.Columns))
	copy(header, t.Columns)
	records = append(records, header)

	for _, row := range t.Rows {
		record := make([]string, len(t.Columns))
		for i, col := range t.Columns {
			record[i] = FormatValue(row[col])
		}
		records = append(records, record)
	}
	return records
}

// Status is the fulfillment classification of a PO line
type Status string

const (
	StatusNotFound          Status = "Not Found"
	StatusFullyServiced     Status = "Fully Serviced"
	StatusPartiallyServiced Status = "Partially Serviced"
	StatusOverSupplied      Status = "Over Supplied"
)

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// AllStatuses lists statuses in report order
func AllStatuses() []Status {
	return []Status{StatusFullyServiced, StatusPartiallyServiced, StatusOverSupplied, StatusNotFound}
}

// SupplyOutcome is the result of checking stock on hand for an unserviced PO line
type SupplyOutcome string

const (
	OutcomeFromStock   SupplyOutcome = "from_stock"
	OutcomeNotEnough   SupplyOutcome = "not_enough_stock"
	OutcomeNoStockInfo SupplyOutcome = "no_stock_info"
)

// AllOutcomes lists supply outcomes in report order
func AllOutcomes() []SupplyOutcome {
	return []SupplyOutcome{OutcomeFromStock, OutcomeNotEnough, OutcomeNoStockInfo}
}

// POLine is one purchase order demand line
type POLine struct {
	Index      int
	PONumber   interface{}
	ItemID     interface{}
	POQty      decimal.Decimal
	City       interface{}
	ExpiryDate interface{}
	Fields     Row
}

// MappingEntry is one row of the item to material master table
type MappingEntry struct {
	Index         int
	ItemID        interface{}
	ProductName   interface{}
	MaterialCode  interface{}
	MaterialCode2 interface{}
}

// SupplyRecord is quantity shipped against a PO and material code
type SupplyRecord struct {
	Index        int
	PONumber     interface{}
	MaterialCode interface{}
	Quantity     decimal.Decimal
	Fields       Row
}

// StockRecord is stock on hand for a material at a city
type StockRecord struct {
	Index        int
	City         interface{}
	MaterialCode interface{}
	TotalQty     decimal.Decimal
}

// NewPOLine builds a POLine from a row. The line is always returned; a non-nil
// error reports an unusable po_qty, which is then treated as zero.
func NewPOLine(index int, row Row) (*POLine, error) {
	qty, err := ParseQuantity(row[ColPOQty])
	line := &POLine{
		Index:      index,
		PONumber:   row[ColPONumber],
		ItemID:     row[ColItemID],
		POQty:      qty,
		City:       row[ColCity],
		ExpiryDate: row[ColPOExpiryDate],
		Fields:     row,
	}
	if err != nil {
		return line, fmt.Errorf("%s: %w", ColPOQty, err)
	}
	return line, nil
}

// NewMappingEntry builds a MappingEntry from a master table row
func NewMappingEntry(index int, row Row) *MappingEntry {
	return &MappingEntry{
		Index:         index,
		ItemID:        row[ColItemID],
		ProductName:   row[ColProductName],
		MaterialCode:  row[ColMaterialCode],
		MaterialCode2: row[ColMaterialCode2],
	}
}

// NewSupplyRecord builds a SupplyRecord from a row. See NewPOLine for the error contract.
func NewSupplyRecord(index int, row Row) (*SupplyRecord, error) {
	qty, err := ParseQuantity(row[ColQuantity])
	record := &SupplyRecord{
		Index:        index,
		PONumber:     row[ColPONumber],
		MaterialCode: row[ColMaterialCode],
		Quantity:     qty,
		Fields:       row,
	}
	if err != nil {
		return record, fmt.Errorf("%s: %w", ColQuantity, err)
	}
	return record, nil
}

// NewStockRecord builds a StockRecord from a row. See NewPOLine for the error contract.
func NewStockRecord(index int, row Row) (*StockRecord, error) {
	qty, err := ParseQuantity(row[ColTotalQty])
	record := &StockRecord{
		Index:        index,
		City:         row[ColCity],
		MaterialCode: row[ColMaterialCode],
		TotalQty:     qty,
	}
	if err != nil {
		return record, fmt.Errorf("%s: %w", ColTotalQty, err)
	}
	return record, nil
}

// ParseQuantity converts a cell value to a decimal quantity.
// Blank cells are zero without error.
func ParseQuantity(v interface{}) (decimal.Decimal, error) {
	switch val := v.(type) {
	case nil:
		return decimal.Zero, nil
	case decimal.Decimal:
		return val, nil
	case float64:
		if math.IsNaN(val) {
			return decimal.Zero, nil
		}
		if math.IsInf(val, 0) {
			return decimal.Zero, fmt.Errorf("quantity is infinite")
		}
		return decimal.NewFromFloat(val), nil
	case float32:
		return ParseQuantity(float64(val))
	case string:
		s := strings.TrimSpace(val)
		if s == "" || strings.EqualFold(s, "nan") {
			return decimal.Zero, nil
		}
		s = strings.ReplaceAll(s, ",", "")
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero, fmt.Errorf("invalid quantity '%s': %w", val, err)
		}
		return d, nil
	}

	i, err := cast.ToInt64E(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid quantity %v: %w", v, err)
	}
	return decimal.NewFromInt(i), nil
}

// dateLayouts are tried in order by ParseDate
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"01/02/2006 15:04:05",
	"01/02/2006",
	"02-01-2006",
	"2006/01/02",
	"02-Jan-2006",
	"Jan 2, 2006",
	"January 2, 2006",
}

// ParseDate converts a cell value to a date. Numbers (and numeric strings) are read
// as spreadsheet date serials.
func ParseDate(v interface{}) (time.Time, error) {
	switch val := v.(type) {
	case nil:
		return time.Time{}, fmt.Errorf("date is blank")
	case time.Time:
		return val, nil
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return time.Time{}, fmt.Errorf("date is blank")
		}
		if serial, err := strconv.ParseFloat(s, 64); err == nil {
			return excelSerialToTime(serial)
		}
		var lastErr error
		for _, layout := range dateLayouts {
			t, err := time.Parse(layout, s)
			if err == nil {
				return t, nil
			}
			lastErr = err
		}
		return time.Time{}, fmt.Errorf("unable to parse date '%s': %w", s, lastErr)
	}

	serial, err := cast.ToFloat64E(v)
	if err != nil {
		return time.Time{}, fmt.Errorf("unsupported date value %v: %w", v, err)
	}
	return excelSerialToTime(serial)
}

func excelSerialToTime(serial float64) (time.Time, error) {
	if math.IsNaN(serial) || serial <= 0 {
		return time.Time{}, fmt.Errorf("invalid date serial %v", serial)
	}
	return excelize.ExcelDateToTime(serial, false)
}

// DayUTC truncates a time to midnight UTC of its calendar day
func DayUTC(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// FormatValue renders a cell value for output. Blank values render as "".
func FormatValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case decimal.Decimal:
		return val.String()
	case time.Time:
		if val.Hour() == 0 && val.Minute() == 0 && val.Second() == 0 {
			return val.Format("2006-01-02")
		}
		return val.Format("2006-01-02 15:04:05")
	case float64:
		if math.IsNaN(val) {
			return ""
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	case Status:
		return string(val)
	}
	return cast.ToString(v)
}
