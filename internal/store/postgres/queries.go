package postgres

const (
	createTableQuery = `
CREATE TABLE IF NOT EXISTS pending_jobs (
	id          UUID PRIMARY KEY,
	elderly_id  TEXT        NOT NULL,
	token       TEXT        NOT NULL,
	stage       TEXT        NOT NULL,
	transcript  TEXT        NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL,
	expires_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS pending_jobs_expires_at_idx ON pending_jobs (expires_at);`

	insertJobQuery = `
INSERT INTO pending_jobs (id, elderly_id, token, stage, transcript, created_at, expires_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

	takeJobQuery = `
DELETE FROM pending_jobs
WHERE id = $1 AND stage = $2 AND expires_at > $3
RETURNING id, elderly_id, token, stage, transcript, created_at, expires_at`

	deleteExpiredQuery = `
DELETE FROM pending_jobs
WHERE id IN (
	SELECT id FROM pending_jobs WHERE expires_at <= $1 LIMIT $2
)`
)
