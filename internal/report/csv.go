// Package report renders aggregated attendance rows into downloadable
// artifacts.
package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/your-org/timeclock/internal/attendance"
)

var columns = []string{"Date", "Weekday", "Name", "Role", "Entry 1", "Exit 1", "Entry 2", "Exit 2"}

// WriteCSV renders the monthly report. The first two records carry the
// period and generation time so the exported file is self-describing
// when it lands in a spreadsheet.
func WriteCSV(w io.Writer, rows []attendance.Row, month time.Month, year int, generatedAt time.Time) error {
	cw := csv.NewWriter(w)

	header := [][]string{
		{"Attendance report", fmt.Sprintf("%02d/%d", int(month), year)},
		{"Generated at", generatedAt.Format("02/01/2006 15:04")},
		{},
		columns,
	}
	for _, rec := range header {
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write csv header: %w", err)
		}
	}

	for _, row := range rows {
		rec := []string{
			row.Date, row.Weekday, row.Name, row.Role,
			row.EntryFirst, row.ExitFirst, row.EntrySecond, row.ExitSecond,
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// RenderCSV is WriteCSV into a byte slice, for storing the artifact.
func RenderCSV(rows []attendance.Row, month time.Month, year int, generatedAt time.Time) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, rows, month, year, generatedAt); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Filename is the canonical object key / download name for a period.
func Filename(month time.Month, year int) string {
	return fmt.Sprintf("attendance_%d_%02d.csv", year, int(month))
}
