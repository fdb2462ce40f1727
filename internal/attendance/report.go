package attendance

import (
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/timeclock/internal/models"
)

// ErrEmptyPeriod signals a reporting period with no attendance events, so
// callers can short-circuit with a message instead of rendering an empty
// table.
var ErrEmptyPeriod = errors.New("no attendance events in period")

// Row is one line of the attendance report: one employee on one calendar
// date, with up to two entry/exit pairs. Blank slots hold "-".
type Row struct {
	Date        string // DD/MM/YYYY
	Weekday     string // weekday label of the date
	Name        string
	Role        string
	EntryFirst  string
	ExitFirst   string
	EntrySecond string
	ExitSecond  string
}

// BlankSlot marks an unfilled time slot in a report row.
const BlankSlot = "-"

// Aggregate reconciles the event log for one calendar month into report
// rows. Events are filtered to the month in the reporting timezone,
// grouped by date and then by employee in first-seen order, and each
// group's chronological sequence is packed into at most two entry/exit
// pairs. Pure function of its arguments: running it twice on the same
// inputs yields identical rows.
//
// Malformed sequences degrade gracefully: a day opening with a dangling
// EXIT fills the first exit slot, and events beyond the four slots are not
// represented in the row (documented limitation). Events referencing an
// employee that no longer exists are skipped.
func Aggregate(employees []models.Employee, events []models.AttendanceEvent, month time.Month, year int, loc *time.Location) ([]Row, error) {
	if loc == nil {
		loc = time.UTC
	}

	byID := make(map[uuid.UUID]*models.Employee, len(employees))
	for i := range employees {
		byID[employees[i].ID] = &employees[i]
	}

	// Group by calendar date, then by employee in insertion order.
	type dayGroup struct {
		date  time.Time
		order []uuid.UUID
		byEmp map[uuid.UUID][]models.AttendanceEvent
	}
	days := make(map[string]*dayGroup)
	var dayKeys []string

	for _, ev := range events {
		local := ev.Timestamp.In(loc)
		if local.Month() != month || local.Year() != year {
			continue
		}
		key := local.Format("2006-01-02")
		g, ok := days[key]
		if !ok {
			g = &dayGroup{
				date:  time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc),
				byEmp: make(map[uuid.UUID][]models.AttendanceEvent),
			}
			days[key] = g
			dayKeys = append(dayKeys, key)
		}
		if _, seen := g.byEmp[ev.EmployeeID]; !seen {
			g.order = append(g.order, ev.EmployeeID)
		}
		g.byEmp[ev.EmployeeID] = append(g.byEmp[ev.EmployeeID], ev)
	}

	if len(dayKeys) == 0 {
		return nil, ErrEmptyPeriod
	}

	// Calendar order; the ISO key sorts chronologically.
	sort.Strings(dayKeys)

	var rows []Row
	for _, key := range dayKeys {
		g := days[key]
		for _, empID := range g.order {
			emp, ok := byID[empID]
			if !ok {
				continue
			}
			evs := g.byEmp[empID]
			sort.SliceStable(evs, func(i, j int) bool {
				return evs[i].Timestamp.Before(evs[j].Timestamp)
			})

			row := Row{
				Date:        g.date.Format("02/01/2006"),
				Weekday:     g.date.Weekday().String(),
				Name:        emp.DisplayName(),
				Role:        emp.Role,
				EntryFirst:  BlankSlot,
				ExitFirst:   BlankSlot,
				EntrySecond: BlankSlot,
				ExitSecond:  BlankSlot,
			}
			assignSlots(&row, evs, loc)
			rows = append(rows, row)
		}
	}

	if len(rows) == 0 {
		return nil, ErrEmptyPeriod
	}
	return rows, nil
}

// assignSlots packs one day's chronological events into the four slots.
func assignSlots(row *Row, evs []models.AttendanceEvent, loc *time.Location) {
	next := 0
	if len(evs) > 0 && evs[0].Kind == models.KindEntry {
		row.EntryFirst = clock(evs[0], loc)
		next = 1
		if len(evs) > 1 && evs[1].Kind == models.KindExit {
			row.ExitFirst = clock(evs[1], loc)
			next = 2
		}
	}

	if next < len(evs) {
		switch evs[next].Kind {
		case models.KindEntry:
			row.EntrySecond = clock(evs[next], loc)
			if next+1 < len(evs) && evs[next+1].Kind == models.KindExit {
				row.ExitSecond = clock(evs[next+1], loc)
			}
		case models.KindExit:
			// Dangling exit (day without a recorded entry): land it in
			// the first exit slot rather than dropping it.
			if row.ExitFirst == BlankSlot {
				row.ExitFirst = clock(evs[next], loc)
			}
		}
	}
}

func clock(ev models.AttendanceEvent, loc *time.Location) string {
	return ev.Timestamp.In(loc).Format("15:04")
}
