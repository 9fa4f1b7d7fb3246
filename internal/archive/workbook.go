package archive

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/Tajbar-789/FeastMetrics-Restaurant-Sales-Insight/internal/reports"
)

// excel limits sheet names to 31 characters
const maxSheetName = 31

// SheetName returns the worksheet name used for a report
func SheetName(report string) string {
	if len(report) > maxSheetName {
		return report[:maxSheetName]
	}
	return report
}

// WriteWorkbook saves one sheet per report, header row in bold
func WriteWorkbook(path string, tables []*reports.Table) error {
	f := excelize.NewFile()
	defer f.Close()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	for i, table := range tables {
		sheet := SheetName(table.Name)
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sheet); err != nil {
				return fmt.Errorf("failed to rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("failed to add sheet %s: %w", sheet, err)
		}

		header := make([]any, len(table.Columns))
		for j, name := range table.ColumnNames() {
			header[j] = name
		}
		if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
			return fmt.Errorf("failed to write header of %s: %w", sheet, err)
		}
		last, err := excelize.CoordinatesToCellName(len(table.Columns), 1)
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, "A1", last, bold); err != nil {
			return fmt.Errorf("failed to style header of %s: %w", sheet, err)
		}

		for r, row := range table.Rows {
			cell, err := excelize.CoordinatesToCellName(1, r+2)
			if err != nil {
				return err
			}
			values := row
			if err := f.SetSheetRow(sheet, cell, &values); err != nil {
				return fmt.Errorf("failed to write row %d of %s: %w", r, sheet, err)
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}
