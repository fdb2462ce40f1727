package main

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/timeclock/internal/attendance"
	"github.com/your-org/timeclock/internal/match"
	"github.com/your-org/timeclock/internal/models"
	"github.com/your-org/timeclock/internal/vision"
)

type memObjectStore struct {
	objects map[string][]byte
}

func newMemObjectStore() *memObjectStore {
	return &memObjectStore{objects: make(map[string][]byte)}
}

func (s *memObjectStore) GetObject(_ context.Context, key string) ([]byte, error) {
	data, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("no object %q", key)
	}
	return data, nil
}

func (s *memObjectStore) PutObject(_ context.Context, key string, data []byte, _ string) error {
	s.objects[key] = data
	return nil
}

func (s *memObjectStore) DeleteObject(_ context.Context, key string) error {
	delete(s.objects, key)
	return nil
}

func (s *memObjectStore) snapshotCount() int {
	n := 0
	for key := range s.objects {
		if strings.HasPrefix(key, "snapshots/") {
			n++
		}
	}
	return n
}

type stubExtractor struct {
	descriptor []float32
	err        error
}

func (e *stubExtractor) ExtractDescriptor(_ context.Context, _ []byte) ([]float32, float32, error) {
	if e.err != nil {
		return nil, 0, e.err
	}
	return e.descriptor, 1, nil
}

type memAttendanceStore struct {
	employees map[uuid.UUID]*models.Employee
	events    []models.AttendanceEvent
}

func newMemAttendanceStore(emps ...*models.Employee) *memAttendanceStore {
	s := &memAttendanceStore{employees: make(map[uuid.UUID]*models.Employee)}
	for _, e := range emps {
		s.employees[e.ID] = e
	}
	return s
}

func (s *memAttendanceStore) EnrolledGallery(_ context.Context) ([]match.GalleryEntry, error) {
	var gallery []match.GalleryEntry
	for _, e := range s.employees {
		if e.Enrolled() {
			gallery = append(gallery, match.GalleryEntry{EmployeeID: e.ID, Descriptor: e.Descriptor})
		}
	}
	return gallery, nil
}

func (s *memAttendanceStore) GetEmployee(_ context.Context, id uuid.UUID) (*models.Employee, error) {
	return s.employees[id], nil
}

func (s *memAttendanceStore) LastEvent(_ context.Context, employeeID uuid.UUID) (*models.AttendanceEvent, error) {
	var last *models.AttendanceEvent
	for i := range s.events {
		ev := &s.events[i]
		if ev.EmployeeID == employeeID && (last == nil || ev.Timestamp.After(last.Timestamp)) {
			last = ev
		}
	}
	return last, nil
}

func (s *memAttendanceStore) AppendEvent(_ context.Context, ev *models.AttendanceEvent) error {
	s.events = append(s.events, *ev)
	return nil
}

func descriptorWithUnit(axis int) []float32 {
	d := make([]float32, models.DescriptorDim)
	d[axis] = 1
	return d
}

func enrolledEmployee() *models.Employee {
	return &models.Employee{
		ID:         uuid.New(),
		FirstName:  "Ana",
		LastName:   "Souza",
		Role:       "Analyst",
		Descriptor: descriptorWithUnit(0),
	}
}

func frameFixture(store *memObjectStore) models.FrameTask {
	task := models.FrameTask{
		KioskID:   "lobby-1",
		FrameID:   uuid.New(),
		Timestamp: time.Now(),
	}
	task.FrameRef = "frames/" + task.KioskID + "/" + task.FrameID.String() + ".jpg"
	store.objects[task.FrameRef] = []byte("jpeg-bytes")
	return task
}

func TestProcessFrameAcceptedKeepsSnapshot(t *testing.T) {
	emp := enrolledEmployee()
	store := newMemObjectStore()
	db := newMemAttendanceStore(emp)
	recorder := attendance.NewRecorder(db, match.New(0.55), attendance.DefaultCooldown)
	extractor := &stubExtractor{descriptor: emp.Descriptor}
	task := frameFixture(store)

	var published []models.PunchResult
	publish := func(_ context.Context, r models.PunchResult) error {
		published = append(published, r)
		return nil
	}

	if err := processFrame(context.Background(), task, extractor, recorder, store, publish); err != nil {
		t.Fatalf("processFrame: %v", err)
	}
	if len(published) != 1 || !published[0].Accepted {
		t.Fatalf("expected one accepted result, got %+v", published)
	}
	if published[0].KioskID != task.KioskID {
		t.Errorf("kiosk id = %q, want %q", published[0].KioskID, task.KioskID)
	}
	if len(db.events) != 1 {
		t.Fatalf("expected one appended event, got %d", len(db.events))
	}
	if store.snapshotCount() != 1 {
		t.Errorf("expected the snapshot to survive, have %d", store.snapshotCount())
	}
	if _, ok := store.objects[db.events[0].SnapshotKey]; !ok {
		t.Errorf("event snapshot key %q has no object", db.events[0].SnapshotKey)
	}
}

func TestProcessFrameUnmatchedDiscardsSnapshot(t *testing.T) {
	store := newMemObjectStore()
	db := newMemAttendanceStore(enrolledEmployee())
	recorder := attendance.NewRecorder(db, match.New(0.55), attendance.DefaultCooldown)
	// Orthogonal descriptor, distance well past the threshold.
	extractor := &stubExtractor{descriptor: descriptorWithUnit(1)}
	task := frameFixture(store)

	var published []models.PunchResult
	publish := func(_ context.Context, r models.PunchResult) error {
		published = append(published, r)
		return nil
	}

	if err := processFrame(context.Background(), task, extractor, recorder, store, publish); err != nil {
		t.Fatalf("processFrame: %v", err)
	}
	if len(published) != 1 || published[0].Accepted {
		t.Fatalf("expected one rejected result, got %+v", published)
	}
	if len(db.events) != 0 {
		t.Fatalf("rejected punch appended %d events", len(db.events))
	}
	if store.snapshotCount() != 0 {
		t.Errorf("rejected punch left %d snapshots behind", store.snapshotCount())
	}
}

func TestProcessFrameCooldownDiscardsSnapshot(t *testing.T) {
	emp := enrolledEmployee()
	store := newMemObjectStore()
	db := newMemAttendanceStore(emp)
	db.events = append(db.events, models.AttendanceEvent{
		ID:           uuid.New(),
		EmployeeID:   emp.ID,
		Timestamp:    time.Now(),
		Kind:         models.KindEntry,
		Verification: models.VerificationSuccess,
	})
	recorder := attendance.NewRecorder(db, match.New(0.55), attendance.DefaultCooldown)
	extractor := &stubExtractor{descriptor: emp.Descriptor}
	task := frameFixture(store)

	var published []models.PunchResult
	publish := func(_ context.Context, r models.PunchResult) error {
		published = append(published, r)
		return nil
	}

	if err := processFrame(context.Background(), task, extractor, recorder, store, publish); err != nil {
		t.Fatalf("processFrame: %v", err)
	}
	if len(published) != 1 || published[0].Accepted {
		t.Fatalf("expected one rejected result, got %+v", published)
	}
	if len(db.events) != 1 {
		t.Fatalf("cooldown rejection appended an event, have %d", len(db.events))
	}
	if store.snapshotCount() != 0 {
		t.Errorf("cooldown rejection left %d snapshots behind", store.snapshotCount())
	}
}

func TestProcessFrameNoFaceWritesNothing(t *testing.T) {
	store := newMemObjectStore()
	db := newMemAttendanceStore(enrolledEmployee())
	recorder := attendance.NewRecorder(db, match.New(0.55), attendance.DefaultCooldown)
	extractor := &stubExtractor{err: vision.ErrNoFace}
	task := frameFixture(store)

	published := 0
	publish := func(_ context.Context, _ models.PunchResult) error {
		published++
		return nil
	}

	if err := processFrame(context.Background(), task, extractor, recorder, store, publish); err != nil {
		t.Fatalf("processFrame: %v", err)
	}
	if published != 0 {
		t.Errorf("empty frame published %d results", published)
	}
	if store.snapshotCount() != 0 {
		t.Errorf("empty frame wrote %d snapshots", store.snapshotCount())
	}
}
