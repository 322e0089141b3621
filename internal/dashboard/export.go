package dashboard

import (
	"context"
	"fmt"
	"io"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/xuri/excelize/v2"

	"transitrisk/internal/disruption"
)

// ExportFileName is the suggested download name for the CSV export.
const ExportFileName = "service_removed_data.csv"

// ExportColumns is the column order of the preview and both exports.
var ExportColumns = []string{"service_id", "date", "exception_type", "service_removed", "month"}

// Table is a small tabular result with a header.
type Table struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// frame lays out exception records as a DataFrame.
func frame(subset []disruption.Exception) dataframe.DataFrame {
	ids := make([]string, 0, len(subset))
	dates := make([]string, 0, len(subset))
	codes := make([]string, 0, len(subset))
	removed := make([]int, 0, len(subset))
	months := make([]int, 0, len(subset))
	for _, e := range subset {
		ids = append(ids, e.ServiceID)
		dates = append(dates, e.Date.Format("2006-01-02"))
		codes = append(codes, e.ExceptionType)
		removed = append(removed, e.Removed)
		months = append(months, e.Month)
	}
	return dataframe.New(
		series.New(ids, series.String, "service_id"),
		series.New(dates, series.String, "date"),
		series.New(codes, series.String, "exception_type"),
		series.New(removed, series.Int, "service_removed"),
		series.New(months, series.Int, "month"),
	)
}

func (s *Session) monthFrame(ctx context.Context, month int) (dataframe.DataFrame, error) {
	subset, err := s.month(ctx, month)
	if err != nil {
		return dataframe.DataFrame{}, err
	}
	df := frame(subset)
	if df.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("build frame: %w", df.Err)
	}
	return df, nil
}

// Preview returns the first rows of month's exceptions.
func (s *Session) Preview(ctx context.Context, month int) (Table, error) {
	df, err := s.monthFrame(ctx, month)
	if err != nil {
		return Table{}, err
	}
	if n := df.Nrow(); n > s.previewRows {
		idx := make([]int, s.previewRows)
		for i := range idx {
			idx[i] = i
		}
		df = df.Subset(idx)
		if df.Err != nil {
			return Table{}, fmt.Errorf("subset frame: %w", df.Err)
		}
	}
	rec := df.Records()
	return Table{Columns: rec[0], Rows: rec[1:]}, nil
}

// ExportCSV writes all of month's exceptions as CSV with a header row.
func (s *Session) ExportCSV(ctx context.Context, month int, w io.Writer) error {
	df, err := s.monthFrame(ctx, month)
	if err != nil {
		return err
	}
	if err := df.WriteCSV(w); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

// ExportXLSX writes all of month's exceptions as a single-sheet workbook.
func (s *Session) ExportXLSX(ctx context.Context, month int, w io.Writer) error {
	df, err := s.monthFrame(ctx, month)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()
	sheet := fmt.Sprintf("Month %02d", month)
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}

	if err := writeSheet(f, sheet, df); err != nil {
		return err
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

// writeSheet writes the header in row 1 and one row per record below it.
func writeSheet(f *excelize.File, sheet string, df dataframe.DataFrame) error {
	names := df.Names()
	for i, name := range names {
		if err := setCell(f, sheet, i+1, 1, name); err != nil {
			return err
		}
	}
	for row := 0; row < df.Nrow(); row++ {
		for col, name := range names {
			if err := setCell(f, sheet, col+1, row+2, df.Col(name).Val(row)); err != nil {
				return err
			}
		}
	}
	return nil
}

func setCell(f *excelize.File, sheet string, col, row int, v any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return fmt.Errorf("write cell: %w", err)
	}
	if err := f.SetCellValue(sheet, cell, v); err != nil {
		return fmt.Errorf("write cell: %w", err)
	}
	return nil
}
