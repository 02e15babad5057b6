package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/YelzhanWeb/waiter/internal/domain"
)

type printJobRepository struct {
	q Querier
}

const printJobColumns = `id, printer_id, status, payload, encoding, error_message, created_at, updated_at`

func (r *printJobRepository) Create(ctx context.Context, job *domain.PrintJob) error {
	query := `
		INSERT INTO print_jobs (printer_id, status, payload, encoding, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	err := r.q.QueryRow(ctx, query,
		job.PrinterID, job.Status, job.Payload, job.Encoding, job.CreatedAt, job.UpdatedAt,
	).Scan(&job.ID)
	if err != nil {
		return fmt.Errorf("failed to create print job: %w", err)
	}
	return nil
}

func (r *printJobRepository) FindByID(ctx context.Context, id int64) (*domain.PrintJob, error) {
	query := `SELECT ` + printJobColumns + ` FROM print_jobs WHERE id = $1`

	job, err := scanPrintJob(r.q.QueryRow(ctx, query, id))
	if err != nil {
		return nil, scanErr(err, "print job", id)
	}
	return job, nil
}

func (r *printJobRepository) FindPending(ctx context.Context) ([]*domain.PrintJob, error) {
	query := `
		SELECT ` + printJobColumns + `
		FROM print_jobs
		WHERE status = $1
		ORDER BY created_at, id
	`

	rows, err := r.q.Query(ctx, query, domain.PrintJobPending)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending print jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*domain.PrintJob
	for rows.Next() {
		job, err := scanPrintJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan print job: %w", err)
		}
		jobs = append(jobs, job)
	}

	return jobs, rows.Err()
}

// Claim is the only way into printing. Two workers racing for the same job
// both run this UPDATE; exactly one sees a row affected.
func (r *printJobRepository) Claim(ctx context.Context, id int64) (bool, error) {
	query := `
		UPDATE print_jobs
		SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4
	`
	tag, err := r.q.Exec(ctx, query, domain.PrintJobPrinting, time.Now().UTC(), id, domain.PrintJobPending)
	if err != nil {
		return false, fmt.Errorf("failed to claim print job %d: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *printJobRepository) MarkPrinted(ctx context.Context, id int64) error {
	query := `
		UPDATE print_jobs
		SET status = $1, error_message = NULL, updated_at = $2
		WHERE id = $3 AND status = $4
	`
	_, err := r.q.Exec(ctx, query, domain.PrintJobPrinted, time.Now().UTC(), id, domain.PrintJobPrinting)
	if err != nil {
		return fmt.Errorf("failed to mark print job %d printed: %w", id, err)
	}
	return nil
}

func (r *printJobRepository) MarkFailed(ctx context.Context, id int64, reason string) error {
	query := `
		UPDATE print_jobs
		SET status = $1, error_message = $2, updated_at = $3
		WHERE id = $4 AND status = $5
	`
	_, err := r.q.Exec(ctx, query, domain.PrintJobPending, reason, time.Now().UTC(), id, domain.PrintJobPrinting)
	if err != nil {
		return fmt.Errorf("failed to record failure of print job %d: %w", id, err)
	}
	return nil
}

func (r *printJobRepository) CancelPending(ctx context.Context) (int, error) {
	return r.move(ctx, domain.PrintJobPending, domain.PrintJobCancelled)
}

func (r *printJobRepository) RequeuePrinting(ctx context.Context) (int, error) {
	return r.move(ctx, domain.PrintJobPrinting, domain.PrintJobPending)
}

func (r *printJobRepository) move(ctx context.Context, from, to domain.PrintJobStatus) (int, error) {
	query := `UPDATE print_jobs SET status = $1, updated_at = $2 WHERE status = $3`
	tag, err := r.q.Exec(ctx, query, to, time.Now().UTC(), from)
	if err != nil {
		return 0, fmt.Errorf("failed to move print jobs from %s to %s: %w", from, to, err)
	}
	return int(tag.RowsAffected()), nil
}

func scanPrintJob(row Row) (*domain.PrintJob, error) {
	var job domain.PrintJob
	err := row.Scan(
		&job.ID, &job.PrinterID, &job.Status, &job.Payload, &job.Encoding,
		&job.ErrorMessage, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &job, nil
}
