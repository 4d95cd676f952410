package service

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// ParseCSVRows reads header-driven CSV into import rows. The first record is
// the header; unrecognized columns are carried through and ignored later.
// Line numbers are 1-based over data rows.
func ParseCSVRows(r io.Reader) ([]ImportRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty input: a header row is required")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	for i := range header {
		header[i] = strings.ToLower(strings.TrimSpace(header[i]))
	}

	var rows []ImportRow
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", line+1, err)
		}
		line++

		fields := make(map[string]string, len(header))
		for i, col := range header {
			if col == "" || i >= len(record) {
				continue
			}
			fields[col] = record[i]
		}
		rows = append(rows, ImportRow{Line: line, Fields: fields})
	}
	return rows, nil
}
