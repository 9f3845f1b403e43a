// Package export serializes result tables as spreadsheets.
package export

import (
	"errors"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"audio-analyzer/pkg/models"
)

const (
	// SheetName is the only sheet of an exported workbook.
	SheetName = "Sheet1"

	// DownloadName is the file name offered to browsers.
	DownloadName = "analysis_results.xlsx"

	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// FileName is the storage name of the export for an analysis.
func FileName(analysisID string) string {
	if analysisID == "" {
		return DownloadName
	}
	return fmt.Sprintf("analysis_results_%s.xlsx", analysisID)
}

// WriteXLSX writes the table as a single-sheet workbook: the header row
// followed by one row per segment.
func WriteXLSX(w io.Writer, table *models.ResultTable) (err error) {
	if table == nil {
		return errors.New("export: nil result table")
	}

	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	header := make([]any, len(models.Columns))
	for i, c := range models.Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("export: write header: %w", err)
	}

	for i, row := range table.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("export: row %d: %w", i, err)
		}
		values := row.Values()
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return fmt.Errorf("export: write row %d: %w", i, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("export: write workbook: %w", err)
	}
	return nil
}
