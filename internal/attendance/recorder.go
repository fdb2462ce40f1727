package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/timeclock/internal/match"
	"github.com/your-org/timeclock/internal/models"
	"github.com/your-org/timeclock/internal/observability"
)

// ErrIncompleteEnrollment marks an employee without a usable descriptor.
// Unlike an unrecognized face this is a configuration problem: the
// employee must be re-enrolled, retrying the camera will not help.
var ErrIncompleteEnrollment = errors.New("employee has no enrolled biometrics")

// ErrEmployeeNotFound is returned for punches against an unknown
// employee id.
var ErrEmployeeNotFound = errors.New("employee not found")

// Store is the slice of persistence the recorder needs: gallery reads
// and append-only event writes. Both collections are owned elsewhere;
// the recorder never updates or deletes.
type Store interface {
	EnrolledGallery(ctx context.Context) ([]match.GalleryEntry, error)
	GetEmployee(ctx context.Context, id uuid.UUID) (*models.Employee, error)
	LastEvent(ctx context.Context, employeeID uuid.UUID) (*models.AttendanceEvent, error)
	AppendEvent(ctx context.Context, ev *models.AttendanceEvent) error
}

// Recorder turns verified matches into attendance events: match the live
// descriptor, decide entry versus exit, enforce the cooldown, append.
// Writes are serialized by the single active kiosk flow; a multi-terminal
// deployment would need an optimistic last-event check at write time.
type Recorder struct {
	store    Store
	matcher  *match.Matcher
	cooldown time.Duration
	now      func() time.Time
}

func NewRecorder(store Store, matcher *match.Matcher, cooldown time.Duration) *Recorder {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Recorder{
		store:    store,
		matcher:  matcher,
		cooldown: cooldown,
		now:      time.Now,
	}
}

// RecordDescriptor processes one live descriptor end to end. Unmatched
// faces and cooldown rejections are informational outcomes, returned in
// the result with Accepted=false, not as errors; the scanning loop keeps
// going. Only infrastructure problems surface as errors.
func (r *Recorder) RecordDescriptor(ctx context.Context, descriptor []float32, snapshotKey string) (models.PunchResult, error) {
	gallery, err := r.store.EnrolledGallery(ctx)
	if err != nil {
		return models.PunchResult{}, fmt.Errorf("load gallery: %w", err)
	}

	res, err := r.matcher.Match(descriptor, gallery)
	if err != nil {
		return models.PunchResult{}, fmt.Errorf("match descriptor: %w", err)
	}
	if !res.Verified {
		observability.PunchesRejected.WithLabelValues("unknown_face").Inc()
		return models.PunchResult{
			Timestamp: r.now(),
			Accepted:  false,
			Message:   res.Message,
		}, nil
	}

	return r.append(ctx, res.EmployeeID, models.VerificationSuccess, &res.Confidence, snapshotKey)
}

// RecordDescriptorFor is the 1:1 variant for the kiosk flow where the
// employee picked themselves first: the live descriptor is verified
// against that employee's stored descriptor only. An employee without a
// usable descriptor yields ErrIncompleteEnrollment.
func (r *Recorder) RecordDescriptorFor(ctx context.Context, employeeID uuid.UUID, descriptor []float32, snapshotKey string) (models.PunchResult, error) {
	emp, err := r.store.GetEmployee(ctx, employeeID)
	if err != nil {
		return models.PunchResult{}, fmt.Errorf("load employee: %w", err)
	}
	if emp == nil {
		return models.PunchResult{}, ErrEmployeeNotFound
	}
	if !emp.Enrolled() {
		return models.PunchResult{}, fmt.Errorf("%w: %s", ErrIncompleteEnrollment, emp.DisplayName())
	}

	res, err := r.matcher.Match(descriptor, []match.GalleryEntry{{EmployeeID: emp.ID, Descriptor: emp.Descriptor}})
	if err != nil {
		return models.PunchResult{}, fmt.Errorf("match descriptor: %w", err)
	}
	if !res.Verified {
		observability.PunchesRejected.WithLabelValues("unknown_face").Inc()
		return models.PunchResult{
			EmployeeID:   &employeeID,
			EmployeeName: emp.DisplayName(),
			Timestamp:    r.now(),
			Accepted:     false,
			Message:      res.Message,
		}, nil
	}

	return r.append(ctx, employeeID, models.VerificationSuccess, &res.Confidence, snapshotKey)
}

// RecordManual appends an HR-entered punch with verification=MANUAL. It
// goes through the same alternation and cooldown rules as a biometric
// punch.
func (r *Recorder) RecordManual(ctx context.Context, employeeID uuid.UUID) (models.PunchResult, error) {
	return r.append(ctx, employeeID, models.VerificationManual, nil, "")
}

func (r *Recorder) append(ctx context.Context, employeeID uuid.UUID, verification models.Verification, similarity *float64, snapshotKey string) (models.PunchResult, error) {
	emp, err := r.store.GetEmployee(ctx, employeeID)
	if err != nil {
		return models.PunchResult{}, fmt.Errorf("load employee: %w", err)
	}
	if emp == nil {
		return models.PunchResult{}, ErrEmployeeNotFound
	}

	last, err := r.store.LastEvent(ctx, employeeID)
	if err != nil {
		return models.PunchResult{}, fmt.Errorf("load last event: %w", err)
	}

	now := r.now()
	if err := CheckCooldown(last, now, r.cooldown); err != nil {
		observability.PunchesRejected.WithLabelValues("cooldown").Inc()
		return models.PunchResult{
			EmployeeID:   &employeeID,
			EmployeeName: emp.DisplayName(),
			Timestamp:    now,
			Accepted:     false,
			Message:      err.Error(),
		}, nil
	}

	ev := &models.AttendanceEvent{
		ID:           uuid.New(),
		EmployeeID:   employeeID,
		Timestamp:    now,
		Kind:         NextKind(last),
		Verification: verification,
		Similarity:   similarity,
		SnapshotKey:  snapshotKey,
	}
	if err := r.store.AppendEvent(ctx, ev); err != nil {
		return models.PunchResult{}, fmt.Errorf("append event: %w", err)
	}

	observability.PunchesAccepted.WithLabelValues(string(ev.Kind)).Inc()

	result := models.PunchResult{
		EventID:      &ev.ID,
		EmployeeID:   &employeeID,
		EmployeeName: emp.DisplayName(),
		Timestamp:    now,
		Kind:         ev.Kind,
		Verification: verification,
		Accepted:     true,
		Message:      "recorded",
	}
	if similarity != nil {
		result.Confidence = *similarity
	}
	return result, nil
}
