package parsers

import (
	"encoding/csv"
	"io"

	"po-reconciliation-service/pkg/errors"
)

// readCSV reads every record of a CSV stream
func readCSV(r io.Reader, config *TableConfig) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.Comma = config.Delimiter
	if reader.Comma == 0 {
		reader.Comma = ','
	}
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1 // Variable number of fields
	reader.LazyQuotes = true

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.ParseError(errors.CodeInvalidFormat, config.Name, "", err)
		}
		rows = append(rows, record)
	}
	return rows, nil
}
