package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/tdhoang/escrow-be/internal/escrow/domain"
)

// Postgres is the durable Registry used in multi-node deployments.
type Postgres struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewPostgres creates a Postgres-backed registry.
func NewPostgres(db *sqlx.DB, logger *slog.Logger) *Postgres {
	return &Postgres{
		db:     db,
		logger: logger,
	}
}

const jobColumns = `
	job_id, client, contractor, deposit_amount, asset, status,
	title, description, metadata_uri, deadline, delivered_at,
	submission_uri, created_at, updated_at
`

func (p *Postgres) Create(ctx context.Context, job *domain.Job) (int64, error) {
	query := `
		INSERT INTO jobs (
			client, contractor, deposit_amount, asset, status,
			title, description, metadata_uri, deadline, delivered_at,
			submission_uri, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10,
			$11, $12, $13
		)
		RETURNING job_id
	`

	var id int64
	err := p.db.QueryRowContext(
		ctx,
		query,
		string(job.Client),
		nullIdentity(job.Contractor),
		int64(job.DepositAmount),
		string(job.Asset),
		string(job.Status),
		job.Title,
		job.Description,
		job.MetadataURI,
		job.Deadline,
		nullTime(job.DeliveredAt),
		job.SubmissionURI,
		job.CreatedAt,
		job.UpdatedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create job: %w", err)
	}

	job.ID = id
	return id, nil
}

func (p *Postgres) Get(ctx context.Context, id int64) (*domain.Job, error) {
	if id <= 0 {
		return nil, domain.ErrInvalidJobID
	}

	query := `SELECT ` + jobColumns + ` FROM jobs WHERE job_id = $1`

	row := p.db.QueryRowContext(ctx, query, id)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrInvalidJobID
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

func (p *Postgres) Update(ctx context.Context, job *domain.Job) error {
	query := `
		UPDATE jobs
		SET contractor = $1,
		    deposit_amount = $2,
		    status = $3,
		    delivered_at = $4,
		    submission_uri = $5,
		    updated_at = $6
		WHERE job_id = $7
	`

	res, err := p.db.ExecContext(
		ctx,
		query,
		nullIdentity(job.Contractor),
		int64(job.DepositAmount),
		string(job.Status),
		nullTime(job.DeliveredAt),
		job.SubmissionURI,
		job.UpdatedAt,
		job.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrInvalidJobID
	}
	return nil
}

func (p *Postgres) List(ctx context.Context, f Filter) ([]domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	if f.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, string(f.Status))
		argIdx++
	}
	if f.Client != "" {
		query += fmt.Sprintf(" AND client = $%d", argIdx)
		args = append(args, string(f.Client))
		argIdx++
	}
	if f.Contractor != "" {
		query += fmt.Sprintf(" AND contractor = $%d", argIdx)
		args = append(args, string(f.Contractor))
		argIdx++
	}

	query += " ORDER BY job_id DESC"

	if f.PageSize > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, f.PageSize)
	}

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

func (p *Postgres) ListDue(ctx context.Context, now time.Time, grace time.Duration, limit int) ([]domain.Job, error) {
	// DELIVERED jobs are due once delivered_at + grace has been reached;
	// the cutoff is precomputed so the comparison stays index-friendly.
	deliveredCutoff := now.Add(-grace)

	query := `
		SELECT ` + jobColumns + `
		FROM jobs
		WHERE (status = $1 AND deadline < $2)
		   OR (status = $3 AND delivered_at <= $4)
		ORDER BY job_id ASC
		LIMIT $5
	`

	rows, err := p.db.QueryContext(
		ctx,
		query,
		string(domain.StatusInProgress),
		now,
		string(domain.StatusDelivered),
		deliveredCutoff,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list due jobs: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

func (p *Postgres) Resolver(ctx context.Context) (domain.Identity, error) {
	return p.setting(ctx, "dispute_resolver")
}

func (p *Postgres) SetResolver(ctx context.Context, id domain.Identity) error {
	return p.setSetting(ctx, "dispute_resolver", id)
}

func (p *Postgres) Admin(ctx context.Context) (domain.Identity, error) {
	return p.setting(ctx, "administrator")
}

func (p *Postgres) SetAdmin(ctx context.Context, id domain.Identity) error {
	return p.setSetting(ctx, "administrator", id)
}

func (p *Postgres) setting(ctx context.Context, key string) (domain.Identity, error) {
	var value string
	err := p.db.GetContext(ctx, &value, `SELECT value FROM marketplace_settings WHERE key = $1`, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("failed to get setting %s: %w", key, err)
	}
	return domain.Identity(value), nil
}

func (p *Postgres) setSetting(ctx context.Context, key string, id domain.Identity) error {
	query := `
		INSERT INTO marketplace_settings (key, value)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
	`

	if _, err := p.db.ExecContext(ctx, query, key, string(id)); err != nil {
		return fmt.Errorf("failed to set setting %s: %w", key, err)
	}

	p.logger.Info("Marketplace setting updated",
		slog.String("key", key),
	)
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (*domain.Job, error) {
	var (
		job         domain.Job
		contractor  sql.NullString
		deposit     int64
		deliveredAt sql.NullTime
	)

	err := row.Scan(
		&job.ID,
		&job.Client,
		&contractor,
		&deposit,
		&job.Asset,
		&job.Status,
		&job.Title,
		&job.Description,
		&job.MetadataURI,
		&job.Deadline,
		&deliveredAt,
		&job.SubmissionURI,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if contractor.Valid {
		job.Contractor = domain.Identity(contractor.String)
	}
	job.DepositAmount = uint64(deposit)
	if deliveredAt.Valid {
		job.DeliveredAt = deliveredAt.Time
	}
	return &job, nil
}

func collectJobs(rows *sql.Rows) ([]domain.Job, error) {
	jobs := make([]domain.Job, 0)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate jobs: %w", err)
	}
	return jobs, nil
}

func nullIdentity(id domain.Identity) sql.NullString {
	return sql.NullString{String: string(id), Valid: id != ""}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
