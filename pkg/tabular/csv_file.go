package tabular

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
)

// FileSource reads a worksheet from a CSV file on disk. Used for local
// development and fixtures.
type FileSource struct {
	path string
}

// NewFileSource returns a source backed by the given CSV file path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Read parses the file into a Table. The first record is the header row.
func (s *FileSource) Read(ctx context.Context) (*Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	file, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open csv source: %w", err)
	}
	defer file.Close() //nolint:errcheck

	return parseCSV(file)
}

func parseCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err == io.EOF {
		return &Table{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	table := &Table{Headers: headers}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv record: %w", err)
		}
		row := make(map[string]string, len(headers))
		for i, header := range headers {
			if i < len(record) {
				row[header] = record[i]
			}
		}
		table.Rows = append(table.Rows, row)
	}

	return table, nil
}
