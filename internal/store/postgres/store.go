// Package postgres persists the pending-job table so in-flight check-ins
// survive a service restart. The memory store remains the default; this
// backend is enabled by configuring a database URL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/hakambing/GuardianCare/internal/domain"
	"github.com/hakambing/GuardianCare/internal/pending"
)

// Store implements pending.Store on PostgreSQL. Take maps onto a single
// DELETE ... RETURNING, so the consume is atomic across replicas too.
type Store struct {
	db        *sql.DB
	opTimeout time.Duration
}

// Open connects, verifies the connection and ensures the schema exists.
func Open(ctx context.Context, databaseURL string, opTimeout time.Duration) (*Store, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	s := &Store{db: db, opTimeout: opTimeout}
	if err := s.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	if _, err := s.db.ExecContext(ctx, createTableQuery); err != nil {
		return fmt.Errorf("ensuring pending_jobs schema: %w", err)
	}
	return nil
}

func (s *Store) Create(ctx context.Context, job domain.PendingJob) error {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx, insertJobQuery,
		job.ID, job.ElderlyID, job.Token, string(job.Stage), job.Transcript,
		job.CreatedAt, job.ExpiresAt)
	if err != nil {
		return fmt.Errorf("inserting pending job: %w", err)
	}
	return nil
}

func (s *Store) Take(ctx context.Context, id uuid.UUID, stage domain.Stage) (domain.PendingJob, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	var job domain.PendingJob
	var stageStr string
	err := s.db.QueryRowContext(ctx, takeJobQuery, id, string(stage), time.Now()).Scan(
		&job.ID, &job.ElderlyID, &job.Token, &stageStr, &job.Transcript,
		&job.CreatedAt, &job.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.PendingJob{}, pending.ErrNotFound
	}
	if err != nil {
		return domain.PendingJob{}, fmt.Errorf("taking pending job: %w", err)
	}
	job.Stage = domain.Stage(stageStr)
	return job, nil
}

func (s *Store) DeleteExpired(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx, deleteExpiredQuery, cutoff, limit)
	if err != nil {
		return 0, fmt.Errorf("deleting expired jobs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting deleted jobs: %w", err)
	}
	return int(n), nil
}

// Ping reports whether the database is reachable. Used by the verbose
// health check.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	return s.db.PingContext(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}
