package attendance

import (
	"fmt"
	"io"

	"github.com/360EntSecGroup-Skylar/excelize/v2"
	"github.com/pkg/errors"
)

const reportSheet = "Attendance Report"

// WriteReportXLSX writes the report rows as an xlsx workbook.
func WriteReportXLSX(w io.Writer, rows []StudentReport) error {
	f := excelize.NewFile()
	f.SetSheetName(f.GetSheetName(f.GetActiveSheetIndex()), reportSheet)

	headers := []string{"Student ID", "Student Name", "Total Sessions", "Attended Sessions", "Attendance %"}
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return errors.Wrap(err, "resolving header cell")
		}
		if err := f.SetCellValue(reportSheet, cell, h); err != nil {
			return errors.Wrap(err, "writing header cell")
		}
	}

	for r, row := range rows {
		values := []interface{}{row.StudentID, row.StudentName, row.TotalSessions, row.AttendedSessions, row.AttendancePercentage}
		for c, v := range values {
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return errors.Wrap(err, "resolving cell")
			}
			if err := f.SetCellValue(reportSheet, cell, v); err != nil {
				return errors.Wrapf(err, "writing row %d", r+1)
			}
		}
	}

	if err := f.Write(w); err != nil {
		return errors.Wrap(err, "writing workbook")
	}
	return nil
}

// ReportFilename names the downloadable workbook for the given filter.
func ReportFilename(filter ReportFilter) string {
	name := "attendance-report"
	if filter.StudentID != "" {
		name += "-" + filter.StudentID
	}
	if !filter.StartDate.IsZero() {
		name += "-" + filter.StartDate.Format("2006-01-02")
	}
	if !filter.EndDate.IsZero() {
		name += "-" + filter.EndDate.Format("2006-01-02")
	}
	return fmt.Sprintf("%s.xlsx", name)
}
