package attendance

import (
	"fmt"
	"time"

	"github.com/your-org/timeclock/internal/models"
)

// DefaultCooldown is the minimum interval between two accepted punches for
// the same employee. Repeated camera frames matching the same presence
// within this window are rejected instead of producing duplicate events.
const DefaultCooldown = 60 * time.Second

// CooldownError reports a punch attempt inside the cooldown window. It is
// informational, not a failure: no event is created for the attempt.
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("too soon: wait %d seconds", int(e.Remaining.Seconds()+0.999))
}

// NextKind decides the direction of the next event from the most recent
// one. Empty history or a closing EXIT yields ENTRY; an open ENTRY yields
// EXIT. The alternation is strict regardless of elapsed time: a forgotten
// clock-out is not auto-corrected, the next punch closes it.
func NextKind(last *models.AttendanceEvent) models.Kind {
	if last == nil || last.Kind == models.KindExit {
		return models.KindEntry
	}
	return models.KindExit
}

// CheckCooldown rejects a new punch earlier than minInterval after the
// last event. An attempt at exactly last+minInterval is allowed. The check
// runs before event creation; a rejection produces no new event.
func CheckCooldown(last *models.AttendanceEvent, now time.Time, minInterval time.Duration) error {
	if last == nil {
		return nil
	}
	elapsed := now.Sub(last.Timestamp)
	if elapsed < minInterval {
		return &CooldownError{Remaining: minInterval - elapsed}
	}
	return nil
}
