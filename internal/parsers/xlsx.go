package parsers

import (
	"io"

	"po-reconciliation-service/pkg/errors"

	"github.com/xuri/excelize/v2"
)

// readXLSX reads every row of the configured worksheet, or the first one.
// Cells are read raw so numbers and date serials are not display formatted.
func readXLSX(r io.Reader, config *TableConfig) ([][]string, string, error) {
	f, err := excelize.OpenReader(r, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, "", errors.ParseError(errors.CodeInvalidFormat, config.Name, "", err).
			WithSuggestion("check the file is a valid .xlsx workbook")
	}
	defer f.Close()

	sheet := config.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, "", errors.ParseError(errors.CodeEmptyTable, config.Name, "", nil)
		}
		sheet = sheets[0]
	} else if index, err := f.GetSheetIndex(sheet); err != nil || index < 0 {
		return nil, "", errors.ParseError(errors.CodeMissingSheet, config.Name, sheet, err)
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, "", errors.ParseError(errors.CodeInvalidFormat, config.Name, "", err)
	}
	return rows, sheet, nil
}
