package gtfs

import (
	"encoding/csv"
	"fmt"
	"io"
	"reflect"
	"strings"
)

// RawTable is a table as read from a source: a header plus string rows.
type RawTable struct {
	Header []string
	Rows   [][]string
}

// ReadCSV reads a whole CSV stream into a RawTable.
func ReadCSV(r io.Reader) (*RawTable, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("read header: empty file")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	// Strip BOM from first field if present
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\xef\xbb\xbf")
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	t := &RawTable{Header: header}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read record %d: %w", len(t.Rows)+1, err)
		}
		t.Rows = append(t.Rows, record)
	}
	return t, nil
}

// missing returns the given columns that are absent from the header.
func (t *RawTable) missing(cols ...string) []string {
	have := make(map[string]bool, len(t.Header))
	for _, h := range t.Header {
		have[h] = true
	}
	var out []string
	for _, c := range cols {
		if !have[c] {
			out = append(out, c)
		}
	}
	return out
}

// decodeTable decodes every row of t into a T using its csv struct tags.
func decodeTable[T any](t *RawTable) []T {
	fieldMap := buildFieldMap[T](t.Header)
	out := make([]T, 0, len(t.Rows))
	for _, record := range t.Rows {
		out = append(out, decodeRecord[T](record, fieldMap))
	}
	return out
}

type fieldMapping struct {
	csvIndex   int
	fieldIndex int
}

// buildFieldMap creates a mapping from CSV column positions to struct field positions.
func buildFieldMap[T any](header []string) []fieldMapping {
	var t T
	typ := reflect.TypeOf(t)

	tagToField := make(map[string]int)
	for i := 0; i < typ.NumField(); i++ {
		tag := typ.Field(i).Tag.Get("csv")
		if tag != "" {
			tagToField[tag] = i
		}
	}

	var mappings []fieldMapping
	for csvIdx, colName := range header {
		if fieldIdx, ok := tagToField[strings.TrimSpace(colName)]; ok {
			mappings = append(mappings, fieldMapping{csvIndex: csvIdx, fieldIndex: fieldIdx})
		}
	}
	return mappings
}

// decodeRecord fills a struct T from a CSV record using the field mapping.
func decodeRecord[T any](record []string, fieldMap []fieldMapping) T {
	var t T
	v := reflect.ValueOf(&t).Elem()
	for _, fm := range fieldMap {
		if fm.csvIndex < len(record) {
			v.Field(fm.fieldIndex).SetString(strings.TrimSpace(record[fm.csvIndex]))
		}
	}
	return t
}
