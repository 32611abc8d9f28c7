package textract

import (
	"encoding/csv"
	"fmt"
	"io"
)

// CSVExtractor emits every non-empty cell as its own block.
type CSVExtractor struct {
	// SkipHeader drops the first row.
	SkipHeader bool
}

func (e *CSVExtractor) Extract(r io.Reader, filename string) (string, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return "", fmt.Errorf("parse csv: %w", err)
	}
	if e.SkipHeader && len(records) > 0 {
		records = records[1:]
	}

	var out blocks
	for _, row := range records {
		for _, cell := range row {
			out.add(cell)
		}
	}
	return out.String(), nil
}
