package report

import (
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/your-org/timeclock/internal/attendance"
)

func TestWriteCSV(t *testing.T) {
	rows := []attendance.Row{
		{
			Date: "03/08/2026", Weekday: "Monday", Name: "Ana Souza", Role: "Analyst",
			EntryFirst: "08:01", ExitFirst: "12:00", EntrySecond: "13:02", ExitSecond: "17:58",
		},
		{
			Date: "03/08/2026", Weekday: "Monday", Name: "Bruno Lima", Role: "Operator",
			EntryFirst: "-", ExitFirst: "09:15", EntrySecond: "-", ExitSecond: "-",
		},
	}

	generated := time.Date(2026, 9, 1, 10, 30, 0, 0, time.UTC)
	data, err := RenderCSV(rows, time.August, 2026, generated)
	if err != nil {
		t.Fatalf("RenderCSV: %v", err)
	}

	reader := csv.NewReader(strings.NewReader(string(data)))
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		t.Fatalf("parse output: %v", err)
	}

	// 2 title records, blank line is skipped by the reader, header, 2 rows.
	if len(records) != 5 {
		t.Fatalf("got %d records, want 5", len(records))
	}

	if records[0][0] != "Attendance report" || records[0][1] != "08/2026" {
		t.Errorf("title record = %v", records[0])
	}
	if records[1][1] != "01/09/2026 10:30" {
		t.Errorf("generated-at = %q", records[1][1])
	}
	if records[2][4] != "Entry 1" {
		t.Errorf("column header = %v", records[2])
	}
	if records[3][2] != "Ana Souza" || records[3][7] != "17:58" {
		t.Errorf("first data row = %v", records[3])
	}
	if records[4][4] != "-" {
		t.Errorf("blank slot not preserved: %v", records[4])
	}
}

func TestFilename(t *testing.T) {
	if got := Filename(time.March, 2026); got != "attendance_2026_03.csv" {
		t.Errorf("Filename = %q", got)
	}
}
