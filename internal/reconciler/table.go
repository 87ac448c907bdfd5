package reconciler

import (
	"po-reconciliation-service/internal/matcher"
	"po-reconciliation-service/internal/models"
)

// Output table names
const (
	TableReconciliation = "reconciliation"
	TableStockCheck     = "stock"
)

// srColumnPrefix marks supply record columns whose name is already taken
const srColumnPrefix = "sr_"

// columnLayout is the column plan shared by both output tables
type columnLayout struct {
	columns []string

	// srColumns maps a supply table column to its output column
	srColumns []columnMapping
}

type columnMapping struct {
	source string
	target string
}

// planColumns lays out PO columns with product_name after item_id, then supply
// record columns, then the derived quantity and status.
func planColumns(po, sr *models.Table) *columnLayout {
	layout := &columnLayout{}

	derived := map[string]bool{
		models.ColProductName: true,
		models.ColSuppliedQty: true,
		models.ColStatus:      true,
	}

	var poColumns []string
	if po != nil {
		for _, col := range po.Columns {
			if !derived[col] {
				poColumns = append(poColumns, col)
			}
		}
	}
	layout.columns = InsertAfter(poColumns, models.ColItemID, models.ColProductName)

	taken := make(map[string]bool, len(layout.columns)+3)
	for _, col := range layout.columns {
		taken[col] = true
	}
	for col := range derived {
		taken[col] = true
	}

	if sr != nil {
		for _, col := range sr.Columns {
			target := col
			for taken[target] {
				target = srColumnPrefix + target
			}
			taken[target] = true
			layout.srColumns = append(layout.srColumns, columnMapping{source: col, target: target})
			layout.columns = append(layout.columns, target)
		}
	}

	layout.columns = append(layout.columns, models.ColSuppliedQty, models.ColStatus)
	return layout
}

// InsertAfter returns columns with name placed right after anchor, or at
// position 1 when anchor is absent.
func InsertAfter(columns []string, anchor, name string) []string {
	out := make([]string, 0, len(columns)+1)
	for _, col := range columns {
		if col != name {
			out = append(out, col)
		}
	}

	at := 1
	for i, col := range out {
		if col == anchor {
			at = i + 1
			break
		}
	}
	if at > len(out) {
		at = len(out)
	}

	out = append(out, "")
	copy(out[at+1:], out[at:])
	out[at] = name
	return out
}

// row builds the reconciliation row for one line result
func (cl *columnLayout) row(result *LineResult) models.Row {
	row := make(models.Row, len(cl.columns))
	for col, value := range result.Line.Fields {
		row[col] = value
	}

	row[models.ColProductName] = result.ProductName
	for _, m := range cl.srColumns {
		if result.Supply != nil && result.Status != models.StatusNotFound {
			row[m.target] = result.Supply.Fields[m.source]
		} else {
			row[m.target] = nil
		}
	}
	row[models.ColSuppliedQty] = result.SuppliedQty
	row[models.ColStatus] = string(result.Status)
	return row
}

// BuildReconciliationTable assembles the per line reconciliation table in PO order
func BuildReconciliationTable(po, sr *models.Table, lines []*LineResult) *models.Table {
	layout := planColumns(po, sr)
	table := models.NewTable(TableReconciliation, layout.columns)
	for _, line := range lines {
		table.Append(layout.row(line))
	}
	return table
}

// BuildStockTable assembles the stock check table. It has the reconciliation
// columns followed by the stock columns.
func BuildStockTable(po, sr *models.Table, checks []*StockCheck) *models.Table {
	layout := planColumns(po, sr)

	columns := append([]string{}, layout.columns...)
	for _, col := range []string{models.ColCityMapped, models.ColMaterialCodes, models.ColSOHStock, models.ColSupplyStatus} {
		if !containsColumn(columns, col) {
			columns = append(columns, col)
		}
	}

	table := models.NewTable(TableStockCheck, columns)
	for _, check := range checks {
		row := layout.row(check.Result)
		if check.Result.Status == models.StatusNotFound {
			for _, m := range layout.srColumns {
				row[m.target] = nil
			}
		}
		row[models.ColCityMapped] = check.CityMapped
		row[models.ColMaterialCodes] = matcher.JoinCodes(check.MaterialCodes)
		row[models.ColSOHStock] = check.SOHStock
		row[models.ColSupplyStatus] = check.Message
		table.Append(row)
	}
	return table
}

func containsColumn(columns []string, name string) bool {
	for _, col := range columns {
		if col == name {
			return true
		}
	}
	return false
}
