package reconciler

import (
	"fmt"

	"po-reconciliation-service/internal/models"
	"po-reconciliation-service/internal/parsers"
	"po-reconciliation-service/pkg/errors"
	"po-reconciliation-service/pkg/logger"

	"go.uber.org/multierr"
)

// RequiredColumns returns the columns an input table must declare
func RequiredColumns(table string) []string {
	switch table {
	case parsers.TablePO:
		return []string{models.ColPONumber, models.ColItemID, models.ColPOQty, models.ColCity, models.ColPOExpiryDate}
	case parsers.TableMaster:
		return []string{models.ColItemID, models.ColMaterialCode, models.ColProductName}
	case parsers.TableSR:
		return []string{models.ColPONumber, models.ColMaterialCode, models.ColQuantity}
	case parsers.TableSOH:
		return []string{models.ColCity, models.ColMaterialCode, models.ColTotalQty}
	default:
		return nil
	}
}

// Inputs holds the four loaded tables
type Inputs struct {
	PO     *models.Table
	SOH    *models.Table
	Master *models.Table
	SR     *models.Table
}

// InputsFromTables picks the four inputs out of tables keyed by name
func InputsFromTables(tables map[string]*models.Table) *Inputs {
	return &Inputs{
		PO:     tables[parsers.TablePO],
		SOH:    tables[parsers.TableSOH],
		Master: tables[parsers.TableMaster],
		SR:     tables[parsers.TableSR],
	}
}

type namedTable struct {
	name  string
	table *models.Table
}

func (in *Inputs) byName() []namedTable {
	return []namedTable{
		{parsers.TablePO, in.PO},
		{parsers.TableSOH, in.SOH},
		{parsers.TableMaster, in.Master},
		{parsers.TableSR, in.SR},
	}
}

// preparedInputs holds the typed records built from the input tables
type preparedInputs struct {
	Lines             []*models.POLine
	Mapping           []*models.MappingEntry
	Supply            []*models.SupplyRecord
	Stock             []*models.StockRecord
	InvalidQuantities int
	Warnings          []string
}

// DataPreprocessor validates input tables and converts their rows to typed records
type DataPreprocessor struct {
	logger logger.Logger
}

// NewDataPreprocessor creates a new data preprocessor
func NewDataPreprocessor(log logger.Logger) *DataPreprocessor {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &DataPreprocessor{logger: log.WithComponent("preprocessing")}
}

// ValidateInputs checks that every table is present and declares its required
// columns. All problems are reported together.
func (dp *DataPreprocessor) ValidateInputs(inputs *Inputs) error {
	if inputs == nil {
		return errors.ReconciliationError(errors.CodeMissingInput, "reconcile", nil)
	}

	var combined error
	for _, in := range inputs.byName() {
		if in.table == nil {
			combined = multierr.Append(combined,
				errors.ReconciliationError(errors.CodeMissingInput, "reconcile", fmt.Errorf("%s table not provided", in.name)).
					WithContext("table", in.name))
			continue
		}
		for _, column := range in.table.MissingColumns(RequiredColumns(in.name)) {
			combined = multierr.Append(combined, errors.MissingColumnError(in.name, column))
		}
	}

	if combined != nil {
		dp.logger.WithField("error_count", len(multierr.Errors(combined))).Error("Input validation failed")
	}
	return combined
}

// Prepare validates the inputs and builds typed records. Unusable quantities are
// counted as zero and reported as warnings.
func (dp *DataPreprocessor) Prepare(inputs *Inputs) (*preparedInputs, error) {
	if err := dp.ValidateInputs(inputs); err != nil {
		return nil, err
	}

	prepared := &preparedInputs{
		Lines:   make([]*models.POLine, 0, inputs.PO.Len()),
		Mapping: make([]*models.MappingEntry, 0, inputs.Master.Len()),
		Supply:  make([]*models.SupplyRecord, 0, inputs.SR.Len()),
		Stock:   make([]*models.StockRecord, 0, inputs.SOH.Len()),
	}

	for i, row := range inputs.PO.Rows {
		line, err := models.NewPOLine(i, row)
		dp.warnQuantity(prepared, parsers.TablePO, i, err)
		prepared.Lines = append(prepared.Lines, line)
	}

	for i, row := range inputs.Master.Rows {
		prepared.Mapping = append(prepared.Mapping, models.NewMappingEntry(i, row))
	}

	for i, row := range inputs.SR.Rows {
		record, err := models.NewSupplyRecord(i, row)
		dp.warnQuantity(prepared, parsers.TableSR, i, err)
		prepared.Supply = append(prepared.Supply, record)
	}

	for i, row := range inputs.SOH.Rows {
		record, err := models.NewStockRecord(i, row)
		dp.warnQuantity(prepared, parsers.TableSOH, i, err)
		prepared.Stock = append(prepared.Stock, record)
	}

	return prepared, nil
}

func (dp *DataPreprocessor) warnQuantity(prepared *preparedInputs, table string, row int, err error) {
	if err == nil {
		return
	}
	prepared.InvalidQuantities++
	message := fmt.Sprintf("%s row %d: %v; counted as 0", table, row+1, err)
	prepared.Warnings = append(prepared.Warnings, message)
	dp.logger.WithFields(logger.Fields{
		"table": table,
		"row":   row + 1,
	}).WithError(err).Warn("Invalid quantity counted as zero")
}
