package database

import (
	"context"
	"fmt"
	"time"

	"go-seek-scraper/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS scraped_jobs (
	run_id           TEXT        NOT NULL,
	job_url          TEXT        NOT NULL,
	external_id      TEXT        NOT NULL DEFAULT '',
	status           TEXT        NOT NULL,
	title            TEXT        NOT NULL,
	company          TEXT        NOT NULL,
	location         TEXT        NOT NULL,
	salary           TEXT        NOT NULL,
	responsibilities TEXT        NOT NULL,
	skills           TEXT        NOT NULL,
	date_posted      TEXT        NOT NULL,
	job_type         TEXT        NOT NULL,
	phone            TEXT        NOT NULL,
	email            TEXT        NOT NULL,
	description      TEXT        NOT NULL,
	scraped_at       TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (run_id, job_url)
)`

const upsertJob = `
	INSERT INTO scraped_jobs (run_id, job_url, external_id, status, title, company, location, salary,
		responsibilities, skills, date_posted, job_type, phone, email, description, scraped_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	ON CONFLICT (run_id, job_url)
	DO UPDATE SET status = EXCLUDED.status, title = EXCLUDED.title, company = EXCLUDED.company,
		location = EXCLUDED.location, salary = EXCLUDED.salary, responsibilities = EXCLUDED.responsibilities,
		skills = EXCLUDED.skills, date_posted = EXCLUDED.date_posted, job_type = EXCLUDED.job_type,
		phone = EXCLUDED.phone, email = EXCLUDED.email, description = EXCLUDED.description,
		scraped_at = EXCLUDED.scraped_at`

type Repository struct {
	db *pgxpool.Pool
}

func ConnectDB(ctx context.Context, connString string) (*Repository, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database url: %w", err)
	}

	config.MaxConns = 4
	config.MinConns = 1
	config.MaxConnLifetime = time.Hour

	// PgBouncer in transaction mode does not support prepared statements.
	config.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeExec

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}

	return &Repository{db: pool}, nil
}

func (r *Repository) Close() {
	if r.db != nil {
		r.db.Close()
	}
}

// EnsureSchema creates the scraped_jobs table when missing.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create scraped_jobs table: %w", err)
	}
	return nil
}

// SaveJobs upserts all rows in one transaction.
func (r *Repository) SaveJobs(ctx context.Context, jobs []models.ScrapedJob) error {
	if len(jobs) == 0 {
		return nil
	}
	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, j := range jobs {
			batch.Queue(upsertJob, jobArgs(j)...)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to save scraped jobs: %w", err)
		}
		return nil
	})
}

// CountRun returns how many rows a run stored.
func (r *Repository) CountRun(ctx context.Context, runID string) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, "SELECT count(*) FROM scraped_jobs WHERE run_id = $1", runID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count run %s: %w", runID, err)
	}
	return n, nil
}

func jobArgs(j models.ScrapedJob) []any {
	return []any{
		j.RunID, j.JobURL, j.ExternalID, string(j.Status), j.Title, j.Company, j.Location, j.Salary,
		j.Responsibilities, j.Skills, j.DatePosted, j.JobType, j.Phone, j.Email, j.Description, j.ScrapedAt,
	}
}
