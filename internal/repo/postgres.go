/* Copyright (c) 2025 Alexandre Maciel
 * SPDX-License-Identifier: BSD-3-Clause */
package repo

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/alexandremaciel-ai/DashProductJira/internal/config"
	"github.com/alexandremaciel-ai/DashProductJira/internal/domain"
)

type DB struct {
	Pool *pgxpool.Pool
	log  zerolog.Logger
}

func MustOpen(ctx context.Context, cfg config.Config, log zerolog.Logger) *DB {
	pool, err := pgxpool.New(ctx, cfg.DBDSN)
	if err != nil { log.Fatal().Err(err).Msg("db connect failed") }
	ctx2, cancel := context.WithTimeout(ctx, 10*time.Second); defer cancel()
	if err := pool.Ping(ctx2); err != nil { log.Fatal().Err(err).Msg("db ping failed") }
	return &DB{Pool: pool, log: log}
}

func (d *DB) Close() { d.Pool.Close() }

// EnsureSchema creates the two tables this service owns. Everything
// else lives in Jira; only saved filters and the report audit trail
// are persisted here.
func (d *DB) EnsureSchema(ctx context.Context) error {
	// one statement per Exec; the extended protocol rejects batches
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS dashboard_filters(
			user_id     TEXT NOT NULL,
			project_key TEXT NOT NULL,
			filters     JSONB NOT NULL,
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (user_id, project_key)
		)`,
		`CREATE TABLE IF NOT EXISTS report_audit(
			id           BIGSERIAL PRIMARY KEY,
			user_id      TEXT NOT NULL,
			project_key  TEXT NOT NULL,
			time_period  TEXT NOT NULL,
			delivered    INT NOT NULL,
			velocity     DOUBLE PRECISION NOT NULL,
			cycle_time   DOUBLE PRECISION NOT NULL,
			bug_rate     DOUBLE PRECISION NOT NULL,
			generated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS report_audit_generated_at ON report_audit(generated_at)`,
	}
	for _, stmt := range stmts {
		if _, err := d.Pool.Exec(ctx, stmt); err != nil { return err }
	}
	return nil
}

type Repository struct {
	db  *DB
	log zerolog.Logger
}

func NewRepository(d *DB, log zerolog.Logger) *Repository { return &Repository{db: d, log: log} }

var ErrNotFound = errors.New("repo: not found")

// UpsertFilter saves a user's dashboard filter preset for one project.
func (r *Repository) UpsertFilter(ctx context.Context, userID, projectKey string, filters domain.Filters) error {
	b, err := json.Marshal(filters)
	if err != nil { return err }
	const q = `
		INSERT INTO dashboard_filters(user_id, project_key, filters, updated_at)
		VALUES($1,$2,$3,now())
		ON CONFLICT(user_id, project_key) DO UPDATE SET
			filters=EXCLUDED.filters,
			updated_at=now()`
	_, err = r.db.Pool.Exec(ctx, q, userID, projectKey, b)
	return err
}

func (r *Repository) GetFilter(ctx context.Context, userID, projectKey string) (domain.Filters, error) {
	var b []byte
	err := r.db.Pool.QueryRow(ctx,
		`SELECT filters FROM dashboard_filters WHERE user_id=$1 AND project_key=$2`,
		userID, projectKey).Scan(&b)
	if errors.Is(err, pgx.ErrNoRows) { return domain.Filters{}, ErrNotFound }
	if err != nil { return domain.Filters{}, err }
	var filters domain.Filters
	if err := json.Unmarshal(b, &filters); err != nil { return domain.Filters{}, err }
	return filters, nil
}

// AuditEntry is one generated-report record. It keeps the headline
// numbers, never the issue data or any credential.
type AuditEntry struct {
	ID          int64     `json:"id"`
	UserID      string    `json:"userId"`
	ProjectKey  string    `json:"projectKey"`
	TimePeriod  string    `json:"timePeriod"`
	Delivered   int       `json:"delivered"`
	Velocity    float64   `json:"velocity"`
	CycleTime   float64   `json:"cycleTime"`
	BugRate     float64   `json:"bugRate"`
	GeneratedAt time.Time `json:"generatedAt"`
}

func (r *Repository) InsertAudit(ctx context.Context, e AuditEntry) error {
	const q = `
		INSERT INTO report_audit(user_id, project_key, time_period, delivered, velocity, cycle_time, bug_rate, generated_at)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8)`
	at := e.GeneratedAt
	if at.IsZero() { at = time.Now() }
	_, err := r.db.Pool.Exec(ctx, q, e.UserID, e.ProjectKey, e.TimePeriod, e.Delivered, e.Velocity, e.CycleTime, e.BugRate, at)
	return err
}

func (r *Repository) ListAudit(ctx context.Context, userID, projectKey string, limit int) ([]AuditEntry, error) {
	if limit <= 0 { limit = 50 }
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, user_id, project_key, time_period, delivered, velocity, cycle_time, bug_rate, generated_at
		FROM report_audit WHERE user_id=$1 AND project_key=$2
		ORDER BY generated_at DESC LIMIT $3`, userID, projectKey, limit)
	if err != nil { return nil, err }
	defer rows.Close()
	var out []AuditEntry
	for rows.Next() {
		var e AuditEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.ProjectKey, &e.TimePeriod, &e.Delivered, &e.Velocity, &e.CycleTime, &e.BugRate, &e.GeneratedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// PruneAudit deletes audit rows older than the cutoff and reports how
// many went away.
func (r *Repository) PruneAudit(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM report_audit WHERE generated_at < $1`, cutoff)
	if err != nil { return 0, err }
	return tag.RowsAffected(), nil
}

func (r *Repository) TryAdvisoryLock(ctx context.Context, key int64) (bool, error) {
	var ok bool
	err := r.db.Pool.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", key).Scan(&ok)
	return ok, err
}

func (r *Repository) AdvisoryUnlock(ctx context.Context, key int64) error {
	var ok bool
	err := r.db.Pool.QueryRow(ctx, "SELECT pg_advisory_unlock($1)", key).Scan(&ok)
	if !ok && err == nil { return errors.New("advisory unlock returned false") }
	return err
}
