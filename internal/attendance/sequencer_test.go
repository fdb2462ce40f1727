package attendance

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/timeclock/internal/models"
)

func eventAt(ts time.Time, kind models.Kind) *models.AttendanceEvent {
	return &models.AttendanceEvent{
		ID:           uuid.New(),
		EmployeeID:   uuid.New(),
		Timestamp:    ts,
		Kind:         kind,
		Verification: models.VerificationSuccess,
	}
}

func TestNextKind(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name string
		last *models.AttendanceEvent
		want models.Kind
	}{
		{"empty history", nil, models.KindEntry},
		{"after exit", eventAt(now, models.KindExit), models.KindEntry},
		{"after entry", eventAt(now, models.KindEntry), models.KindExit},
		{"after entry days ago, no auto clock-out", eventAt(now.Add(-72*time.Hour), models.KindEntry), models.KindExit},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := NextKind(tc.last); got != tc.want {
				t.Errorf("NextKind = %s; want %s", got, tc.want)
			}
		})
	}
}

func TestNextKindAlternatesOverHistory(t *testing.T) {
	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	var last *models.AttendanceEvent
	for i := 0; i < 10; i++ {
		kind := NextKind(last)
		want := models.KindEntry
		if i%2 == 1 {
			want = models.KindExit
		}
		if kind != want {
			t.Fatalf("punch %d: kind = %s; want %s", i, kind, want)
		}
		last = eventAt(start.Add(time.Duration(i)*time.Hour), kind)
	}
}

func TestCheckCooldown(t *testing.T) {
	const interval = 60 * time.Second
	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	last := eventAt(base, models.KindEntry)

	tests := []struct {
		name    string
		last    *models.AttendanceEvent
		now     time.Time
		allowed bool
	}{
		{"no prior event", nil, base, true},
		{"one millisecond before boundary", last, base.Add(interval - time.Millisecond), false},
		{"exactly at boundary", last, base.Add(interval), true},
		{"after boundary", last, base.Add(interval + time.Second), true},
		{"thirty seconds later", last, base.Add(30 * time.Second), false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := CheckCooldown(tc.last, tc.now, interval)
			if tc.allowed && err != nil {
				t.Errorf("expected allowed, got %v", err)
			}
			if !tc.allowed {
				var cd *CooldownError
				if !errors.As(err, &cd) {
					t.Fatalf("expected CooldownError, got %v", err)
				}
				if cd.Remaining <= 0 || cd.Remaining > interval {
					t.Errorf("remaining = %v; want within (0, %v]", cd.Remaining, interval)
				}
			}
		})
	}
}

// History [ENTRY@09:00, EXIT@12:00], next punch at 13:00: an ENTRY and
// past the cooldown.
func TestPunchAfterClosedPair(t *testing.T) {
	exit := eventAt(time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC), models.KindExit)
	now := time.Date(2025, 3, 10, 13, 0, 0, 0, time.UTC)

	if err := CheckCooldown(exit, now, DefaultCooldown); err != nil {
		t.Fatalf("punch one hour later rejected: %v", err)
	}
	if kind := NextKind(exit); kind != models.KindEntry {
		t.Errorf("kind = %s; want ENTRY", kind)
	}
}
