package attendance

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/timeclock/internal/models"
)

var reportLoc = time.FixedZone("report", -3*60*60)

func employee(first, last, role string) models.Employee {
	return models.Employee{
		ID:        uuid.New(),
		FirstName: first,
		LastName:  last,
		Role:      role,
	}
}

func punch(empID uuid.UUID, day int, hour, minute int, kind models.Kind) models.AttendanceEvent {
	return models.AttendanceEvent{
		ID:         uuid.New(),
		EmployeeID: empID,
		Timestamp:  time.Date(2025, time.March, day, hour, minute, 0, 0, reportLoc),
		Kind:       kind,
	}
}

func TestAggregateFullDay(t *testing.T) {
	emp := employee("Ana", "Souza", "Analyst")
	events := []models.AttendanceEvent{
		punch(emp.ID, 10, 8, 0, models.KindEntry),
		punch(emp.ID, 10, 12, 0, models.KindExit),
		punch(emp.ID, 10, 13, 0, models.KindEntry),
		punch(emp.ID, 10, 17, 0, models.KindExit),
	}

	rows, err := Aggregate([]models.Employee{emp}, events, time.March, 2025, reportLoc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows; want 1", len(rows))
	}

	row := rows[0]
	if row.Date != "10/03/2025" {
		t.Errorf("date = %q; want 10/03/2025", row.Date)
	}
	if row.Weekday != "Monday" {
		t.Errorf("weekday = %q; want Monday", row.Weekday)
	}
	if row.Name != "Ana Souza" || row.Role != "Analyst" {
		t.Errorf("identity columns = %q/%q", row.Name, row.Role)
	}
	want := [4]string{"08:00", "12:00", "13:00", "17:00"}
	got := [4]string{row.EntryFirst, row.ExitFirst, row.EntrySecond, row.ExitSecond}
	if got != want {
		t.Errorf("slots = %v; want %v", got, want)
	}
}

func TestAggregateDanglingExit(t *testing.T) {
	emp := employee("Bruno", "Lima", "Guard")
	events := []models.AttendanceEvent{
		punch(emp.ID, 12, 8, 0, models.KindExit),
	}

	rows, err := Aggregate([]models.Employee{emp}, events, time.March, 2025, reportLoc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	row := rows[0]
	got := [4]string{row.EntryFirst, row.ExitFirst, row.EntrySecond, row.ExitSecond}
	want := [4]string{BlankSlot, "08:00", BlankSlot, BlankSlot}
	if got != want {
		t.Errorf("slots = %v; want %v", got, want)
	}
}

func TestAggregateEmptyPeriod(t *testing.T) {
	emp := employee("Carla", "Dias", "Manager")
	events := []models.AttendanceEvent{
		punch(emp.ID, 10, 9, 0, models.KindEntry), // March; we ask for April
	}

	_, err := Aggregate([]models.Employee{emp}, events, time.April, 2025, reportLoc)
	if !errors.Is(err, ErrEmptyPeriod) {
		t.Fatalf("err = %v; want ErrEmptyPeriod", err)
	}

	_, err = Aggregate([]models.Employee{emp}, nil, time.March, 2025, reportLoc)
	if !errors.Is(err, ErrEmptyPeriod) {
		t.Fatalf("err with no events = %v; want ErrEmptyPeriod", err)
	}
}

func TestAggregateIdempotent(t *testing.T) {
	a := employee("Ana", "Souza", "Analyst")
	b := employee("Bruno", "Lima", "Guard")
	events := []models.AttendanceEvent{
		punch(a.ID, 10, 8, 0, models.KindEntry),
		punch(b.ID, 10, 8, 30, models.KindEntry),
		punch(a.ID, 10, 12, 0, models.KindExit),
		punch(b.ID, 11, 17, 0, models.KindExit),
	}
	emps := []models.Employee{a, b}

	first, err := Aggregate(emps, events, time.March, 2025, reportLoc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := Aggregate(emps, events, time.March, 2025, reportLoc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("aggregate is not idempotent over identical inputs")
	}
}

func TestAggregateDateAndEmployeeOrdering(t *testing.T) {
	a := employee("Ana", "Souza", "Analyst")
	b := employee("Bruno", "Lima", "Guard")
	// Events arrive out of calendar order; dates must come out
	// chronologically and employees in first-seen order within a date.
	events := []models.AttendanceEvent{
		punch(b.ID, 20, 9, 0, models.KindEntry),
		punch(a.ID, 2, 9, 0, models.KindEntry),
		punch(b.ID, 2, 9, 30, models.KindEntry),
	}

	rows, err := Aggregate([]models.Employee{a, b}, events, time.March, 2025, reportLoc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows; want 3", len(rows))
	}
	if rows[0].Date != "02/03/2025" || rows[0].Name != "Ana Souza" {
		t.Errorf("row 0 = %s %s; want 02/03/2025 Ana Souza", rows[0].Date, rows[0].Name)
	}
	if rows[1].Date != "02/03/2025" || rows[1].Name != "Bruno Lima" {
		t.Errorf("row 1 = %s %s; want 02/03/2025 Bruno Lima", rows[1].Date, rows[1].Name)
	}
	if rows[2].Date != "20/03/2025" {
		t.Errorf("row 2 date = %s; want 20/03/2025", rows[2].Date)
	}
}

func TestAggregateMoreThanTwoPairs(t *testing.T) {
	emp := employee("Davi", "Rocha", "Clerk")
	events := []models.AttendanceEvent{
		punch(emp.ID, 10, 8, 0, models.KindEntry),
		punch(emp.ID, 10, 10, 0, models.KindExit),
		punch(emp.ID, 10, 11, 0, models.KindEntry),
		punch(emp.ID, 10, 12, 0, models.KindExit),
		punch(emp.ID, 10, 14, 0, models.KindEntry), // beyond the four slots
		punch(emp.ID, 10, 18, 0, models.KindExit),
	}

	rows, err := Aggregate([]models.Employee{emp}, events, time.March, 2025, reportLoc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	row := rows[0]
	got := [4]string{row.EntryFirst, row.ExitFirst, row.EntrySecond, row.ExitSecond}
	want := [4]string{"08:00", "10:00", "11:00", "12:00"}
	if got != want {
		t.Errorf("slots = %v; want %v (extra events dropped)", got, want)
	}
}

func TestAggregateSkipsUnknownEmployee(t *testing.T) {
	emp := employee("Eva", "Melo", "Analyst")
	ghost := uuid.New() // event whose employee record no longer exists
	events := []models.AttendanceEvent{
		punch(emp.ID, 10, 8, 0, models.KindEntry),
		punch(ghost, 10, 9, 0, models.KindEntry),
	}

	rows, err := Aggregate([]models.Employee{emp}, events, time.March, 2025, reportLoc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 1 || rows[0].Name != "Eva Melo" {
		t.Errorf("rows = %+v; want only the known employee", rows)
	}
}

func TestAggregateUsesReportingTimezone(t *testing.T) {
	emp := employee("Gil", "Nunes", "Night Guard")
	// 01:30 UTC on April 1st is 22:30 March 31st at UTC-3: the event
	// belongs to March in the reporting timezone.
	ev := models.AttendanceEvent{
		ID:         uuid.New(),
		EmployeeID: emp.ID,
		Timestamp:  time.Date(2025, time.April, 1, 1, 30, 0, 0, time.UTC),
		Kind:       models.KindEntry,
	}

	rows, err := Aggregate([]models.Employee{emp}, []models.AttendanceEvent{ev}, time.March, 2025, reportLoc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rows[0].Date != "31/03/2025" || rows[0].EntryFirst != "22:30" {
		t.Errorf("row = %+v; want 31/03/2025 entry 22:30", rows[0])
	}
}
