package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/your-org/timeclock/internal/config"
	"github.com/your-org/timeclock/internal/match"
	"github.com/your-org/timeclock/internal/models"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(cfg config.DatabaseConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// EnsureSchema creates the two collections if they don't exist. Both are
// append-only from the application's point of view: no update or delete
// statements exist in this store.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS employees (
			id UUID PRIMARY KEY,
			first_name TEXT NOT NULL,
			last_name TEXT NOT NULL,
			role TEXT NOT NULL,
			photo_key TEXT NOT NULL DEFAULT '',
			descriptor vector(%d),
			enrolled_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, models.DescriptorDim),
		`CREATE TABLE IF NOT EXISTS attendance_events (
			id UUID PRIMARY KEY,
			employee_id UUID NOT NULL,
			timestamp TIMESTAMPTZ NOT NULL,
			kind TEXT NOT NULL,
			verification TEXT NOT NULL,
			similarity DOUBLE PRECISION,
			snapshot_key TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS attendance_events_employee_ts
			ON attendance_events (employee_id, timestamp)`,
		`CREATE INDEX IF NOT EXISTS attendance_events_ts
			ON attendance_events (timestamp)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// --- Employees ---

func (s *PostgresStore) CreateEmployee(ctx context.Context, emp *models.Employee) error {
	var vec *pgvector.Vector
	if len(emp.Descriptor) > 0 {
		v := pgvector.NewVector(emp.Descriptor)
		vec = &v
	}
	return s.pool.QueryRow(ctx,
		`INSERT INTO employees (id, first_name, last_name, role, photo_key, descriptor)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING enrolled_at`,
		emp.ID, emp.FirstName, emp.LastName, emp.Role, emp.PhotoKey, vec,
	).Scan(&emp.EnrolledAt)
}

func (s *PostgresStore) GetEmployee(ctx context.Context, id uuid.UUID) (*models.Employee, error) {
	emp := &models.Employee{}
	var vec *pgvector.Vector
	err := s.pool.QueryRow(ctx,
		`SELECT id, first_name, last_name, role, photo_key, descriptor, enrolled_at
		 FROM employees WHERE id = $1`, id,
	).Scan(&emp.ID, &emp.FirstName, &emp.LastName, &emp.Role, &emp.PhotoKey, &vec, &emp.EnrolledAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get employee: %w", err)
	}
	if vec != nil {
		emp.Descriptor = vec.Slice()
	}
	return emp, nil
}

func (s *PostgresStore) ListEmployees(ctx context.Context) ([]models.Employee, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, first_name, last_name, role, photo_key, descriptor, enrolled_at
		 FROM employees ORDER BY enrolled_at`)
	if err != nil {
		return nil, fmt.Errorf("list employees: %w", err)
	}
	defer rows.Close()

	var employees []models.Employee
	for rows.Next() {
		var emp models.Employee
		var vec *pgvector.Vector
		if err := rows.Scan(&emp.ID, &emp.FirstName, &emp.LastName, &emp.Role,
			&emp.PhotoKey, &vec, &emp.EnrolledAt); err != nil {
			return nil, fmt.Errorf("scan employee: %w", err)
		}
		if vec != nil {
			emp.Descriptor = vec.Slice()
		}
		employees = append(employees, emp)
	}
	return employees, nil
}

// EnrolledGallery returns the (employee, descriptor) pairs usable for
// matching, in a stable enrollment order. Employees without a stored
// descriptor are enrollment-incomplete and excluded.
func (s *PostgresStore) EnrolledGallery(ctx context.Context) ([]match.GalleryEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, descriptor FROM employees
		 WHERE descriptor IS NOT NULL ORDER BY enrolled_at`)
	if err != nil {
		return nil, fmt.Errorf("load gallery: %w", err)
	}
	defer rows.Close()

	var gallery []match.GalleryEntry
	for rows.Next() {
		var entry match.GalleryEntry
		var vec pgvector.Vector
		if err := rows.Scan(&entry.EmployeeID, &vec); err != nil {
			return nil, fmt.Errorf("scan gallery entry: %w", err)
		}
		entry.Descriptor = vec.Slice()
		if len(entry.Descriptor) != models.DescriptorDim {
			continue
		}
		gallery = append(gallery, entry)
	}
	return gallery, nil
}

// --- Attendance events ---

// AppendEvent persists one punch. Append is the only write this store
// performs on the event log.
func (s *PostgresStore) AppendEvent(ctx context.Context, ev *models.AttendanceEvent) error {
	ev.CreatedAt = time.Now()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO attendance_events (id, employee_id, timestamp, kind, verification, similarity, snapshot_key, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		ev.ID, ev.EmployeeID, ev.Timestamp, ev.Kind, ev.Verification,
		ev.Similarity, ev.SnapshotKey, ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetEvent(ctx context.Context, id uuid.UUID) (*models.AttendanceEvent, error) {
	ev := &models.AttendanceEvent{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, employee_id, timestamp, kind, verification, similarity, snapshot_key, created_at
		 FROM attendance_events WHERE id = $1`, id,
	).Scan(&ev.ID, &ev.EmployeeID, &ev.Timestamp, &ev.Kind, &ev.Verification,
		&ev.Similarity, &ev.SnapshotKey, &ev.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return ev, nil
}

// LastEvent returns the most recent event for one employee, or nil when
// the employee has no history.
func (s *PostgresStore) LastEvent(ctx context.Context, employeeID uuid.UUID) (*models.AttendanceEvent, error) {
	ev := &models.AttendanceEvent{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, employee_id, timestamp, kind, verification, similarity, snapshot_key, created_at
		 FROM attendance_events WHERE employee_id = $1
		 ORDER BY timestamp DESC LIMIT 1`, employeeID,
	).Scan(&ev.ID, &ev.EmployeeID, &ev.Timestamp, &ev.Kind, &ev.Verification,
		&ev.Similarity, &ev.SnapshotKey, &ev.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("last event: %w", err)
	}
	return ev, nil
}

// EventsBetween returns all events in [from, to] ordered by timestamp.
func (s *PostgresStore) EventsBetween(ctx context.Context, from, to time.Time) ([]models.AttendanceEvent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, employee_id, timestamp, kind, verification, similarity, snapshot_key, created_at
		 FROM attendance_events
		 WHERE timestamp >= $1 AND timestamp <= $2
		 ORDER BY timestamp`, from, to)
	if err != nil {
		return nil, fmt.Errorf("events between: %w", err)
	}
	defer rows.Close()

	var events []models.AttendanceEvent
	for rows.Next() {
		var ev models.AttendanceEvent
		if err := rows.Scan(&ev.ID, &ev.EmployeeID, &ev.Timestamp, &ev.Kind,
			&ev.Verification, &ev.Similarity, &ev.SnapshotKey, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, ev)
	}
	return events, nil
}

// EventsForEmployee returns one employee's history, oldest first, capped
// at limit (0 means no cap beyond the hard ceiling).
func (s *PostgresStore) EventsForEmployee(ctx context.Context, employeeID uuid.UUID, limit int) ([]models.AttendanceEvent, error) {
	if limit <= 0 || limit > 1000 {
		limit = 1000
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, employee_id, timestamp, kind, verification, similarity, snapshot_key, created_at
		 FROM attendance_events WHERE employee_id = $1
		 ORDER BY timestamp DESC LIMIT $2`, employeeID, limit)
	if err != nil {
		return nil, fmt.Errorf("events for employee: %w", err)
	}
	defer rows.Close()

	var events []models.AttendanceEvent
	for rows.Next() {
		var ev models.AttendanceEvent
		if err := rows.Scan(&ev.ID, &ev.EmployeeID, &ev.Timestamp, &ev.Kind,
			&ev.Verification, &ev.Similarity, &ev.SnapshotKey, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, ev)
	}

	// Oldest first for display.
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
	return events, nil
}
