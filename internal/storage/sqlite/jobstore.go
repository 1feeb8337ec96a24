package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/bobmcallan/replay/internal/common"
	"github.com/bobmcallan/replay/internal/interfaces"
	"github.com/bobmcallan/replay/internal/models"
)

// JobStore implements interfaces.JobStore.
type JobStore struct {
	db     *DB
	logger *common.Logger
}

// NewJobStore creates a new JobStore.
func NewJobStore(db *DB, logger *common.Logger) *JobStore {
	return &JobStore{db: db, logger: logger}
}

const jobColumns = `id, status, start_date, end_date, models, created_at, started_at, completed_at, total_duration_seconds, error, warnings`

func (s *JobStore) CreateJob(ctx context.Context, job *models.Job, details []models.JobDetail) error {
	modelsJSON, err := json.Marshal(job.Models)
	if err != nil {
		return fmt.Errorf("failed to encode models: %w", err)
	}
	warningsJSON, err := json.Marshal(job.Warnings)
	if err != nil {
		return fmt.Errorf("failed to encode warnings: %w", err)
	}

	return s.db.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO jobs (id, status, start_date, end_date, models, created_at, total_duration_seconds, error, warnings)
			 VALUES (?, ?, ?, ?, ?, ?, 0, '', ?)`,
			job.ID, job.Status, job.StartDate, job.EndDate, string(modelsJSON),
			timeToDB(job.CreatedAt), string(warningsJSON))
		if err != nil {
			return fmt.Errorf("failed to insert job: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO job_details (job_id, date, model, status, duration_seconds, error)
			 VALUES (?, ?, ?, ?, 0, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare detail insert: %w", err)
		}
		defer stmt.Close()

		for _, d := range details {
			if _, err := stmt.ExecContext(ctx, job.ID, d.Date, d.Model, d.Status, d.Error); err != nil {
				return fmt.Errorf("failed to insert job detail (%s, %s): %w", d.Date, d.Model, err)
			}
		}
		return nil
	})
}

func (s *JobStore) GetJob(ctx context.Context, jobID string) (*models.Job, error) {
	row := s.db.conn.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = ?`, jobID)
	return scanJob(row)
}

func (s *JobStore) GetCurrentJob(ctx context.Context) (*models.Job, error) {
	row := s.db.conn.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM jobs
		 WHERE status IN (?, ?, ?)
		 ORDER BY created_at DESC LIMIT 1`,
		models.JobStatusPending, models.JobStatusDownloadingData, models.JobStatusRunning)
	return scanJob(row)
}

func (s *JobStore) FindJobByDateRange(ctx context.Context, startDate, endDate string) (*models.Job, error) {
	row := s.db.conn.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM jobs
		 WHERE start_date = ? AND end_date = ?
		 ORDER BY created_at DESC LIMIT 1`,
		startDate, endDate)
	return scanJob(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*models.Job, error) {
	var job models.Job
	var modelsJSON, warningsJSON sql.NullString
	var startedAt, completedAt, createdAt sql.NullString
	var errMsg sql.NullString

	err := row.Scan(&job.ID, &job.Status, &job.StartDate, &job.EndDate, &modelsJSON,
		&createdAt, &startedAt, &completedAt, &job.TotalDurationSeconds, &errMsg, &warningsJSON)
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan job: %w", err)
	}

	job.CreatedAt = timeFromDB(createdAt)
	job.StartedAt = timeFromDB(startedAt)
	job.CompletedAt = timeFromDB(completedAt)
	job.Error = errMsg.String
	if modelsJSON.Valid && modelsJSON.String != "" {
		json.Unmarshal([]byte(modelsJSON.String), &job.Models)
	}
	if warningsJSON.Valid && warningsJSON.String != "" {
		json.Unmarshal([]byte(warningsJSON.String), &job.Warnings)
	}
	return &job, nil
}

func (s *JobStore) UpdateJobStatus(ctx context.Context, jobID, status, errMsg string) error {
	return s.db.withTx(ctx, func(tx *sql.Tx) error {
		return updateJobStatusTx(ctx, tx, jobID, status, errMsg)
	})
}

// updateJobStatusTx applies a job status transition, stamping started_at on
// the first move to running and completed_at plus duration on any terminal
// move.
func updateJobStatusTx(ctx context.Context, tx *sql.Tx, jobID, status, errMsg string) error {
	now := time.Now()

	if status == models.JobStatusRunning {
		if _, err := tx.ExecContext(ctx,
			`UPDATE jobs SET status = ?, error = ?, started_at = COALESCE(started_at, ?) WHERE id = ?`,
			status, errMsg, timeToDB(now), jobID); err != nil {
			return fmt.Errorf("failed to update job status: %w", err)
		}
		return nil
	}

	if models.IsTerminalJobStatus(status) {
		var createdAt, startedAt sql.NullString
		err := tx.QueryRowContext(ctx,
			`SELECT created_at, started_at FROM jobs WHERE id = ?`, jobID).
			Scan(&createdAt, &startedAt)
		if err == sql.ErrNoRows {
			return models.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to read job timestamps: %w", err)
		}

		since := timeFromDB(startedAt)
		if since.IsZero() {
			since = timeFromDB(createdAt)
		}
		duration := 0.0
		if !since.IsZero() {
			duration = now.Sub(since).Seconds()
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE jobs SET status = ?, error = ?, completed_at = ?, total_duration_seconds = ? WHERE id = ?`,
			status, errMsg, timeToDB(now), duration, jobID); err != nil {
			return fmt.Errorf("failed to update job status: %w", err)
		}
		return nil
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE jobs SET status = ?, error = ? WHERE id = ?`,
		status, errMsg, jobID); err != nil {
		return fmt.Errorf("failed to update job status: %w", err)
	}
	return nil
}

func (s *JobStore) UpdateJobDetailStatus(ctx context.Context, jobID, date, model, status, errMsg string) error {
	return s.db.withTx(ctx, func(tx *sql.Tx) error {
		now := time.Now()

		if status == models.DetailStatusRunning {
			if _, err := tx.ExecContext(ctx,
				`UPDATE job_details SET status = ?, error = ?, started_at = ?
				 WHERE job_id = ? AND date = ? AND model = ?`,
				status, errMsg, timeToDB(now), jobID, date, model); err != nil {
				return fmt.Errorf("failed to update job detail: %w", err)
			}
			return nil
		}

		if models.IsTerminalDetailStatus(status) {
			var startedAt sql.NullString
			err := tx.QueryRowContext(ctx,
				`SELECT started_at FROM job_details WHERE job_id = ? AND date = ? AND model = ?`,
				jobID, date, model).Scan(&startedAt)
			if err == sql.ErrNoRows {
				return models.ErrNotFound
			}
			if err != nil {
				return fmt.Errorf("failed to read job detail: %w", err)
			}

			duration := 0.0
			if since := timeFromDB(startedAt); !since.IsZero() {
				duration = now.Sub(since).Seconds()
			}

			if _, err := tx.ExecContext(ctx,
				`UPDATE job_details SET status = ?, error = ?, completed_at = ?, duration_seconds = ?
				 WHERE job_id = ? AND date = ? AND model = ?`,
				status, errMsg, timeToDB(now), duration, jobID, date, model); err != nil {
				return fmt.Errorf("failed to update job detail: %w", err)
			}

			return resolveJobIfDone(ctx, tx, jobID)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE job_details SET status = ?, error = ?
			 WHERE job_id = ? AND date = ? AND model = ?`,
			status, errMsg, jobID, date, model); err != nil {
			return fmt.Errorf("failed to update job detail: %w", err)
		}
		return nil
	})
}

// resolveJobIfDone recomputes the terminal job status once every detail is
// terminal: completed when none failed, failed when none completed, partial
// otherwise.
func resolveJobIfDone(ctx context.Context, tx *sql.Tx, jobID string) error {
	var total, completed, failed, terminal int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        SUM(CASE WHEN status = ? THEN 1 ELSE 0 END),
		        SUM(CASE WHEN status = ? THEN 1 ELSE 0 END),
		        SUM(CASE WHEN status IN (?, ?, ?) THEN 1 ELSE 0 END)
		 FROM job_details WHERE job_id = ?`,
		models.DetailStatusCompleted, models.DetailStatusFailed,
		models.DetailStatusCompleted, models.DetailStatusFailed, models.DetailStatusSkipped,
		jobID).Scan(&total, &completed, &failed, &terminal)
	if err != nil {
		return fmt.Errorf("failed to count job details: %w", err)
	}

	if total == 0 || terminal < total {
		return nil
	}

	status := models.JobStatusCompleted
	switch {
	case failed == 0:
		status = models.JobStatusCompleted
	case completed == 0:
		status = models.JobStatusFailed
	default:
		status = models.JobStatusPartial
	}
	return updateJobStatusTx(ctx, tx, jobID, status, "")
}

func (s *JobStore) AddJobWarnings(ctx context.Context, jobID string, warnings []string) error {
	if len(warnings) == 0 {
		return nil
	}
	return s.db.withTx(ctx, func(tx *sql.Tx) error {
		var existing sql.NullString
		err := tx.QueryRowContext(ctx, `SELECT warnings FROM jobs WHERE id = ?`, jobID).Scan(&existing)
		if err == sql.ErrNoRows {
			return models.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to read job warnings: %w", err)
		}

		var all []string
		if existing.Valid && existing.String != "" {
			json.Unmarshal([]byte(existing.String), &all)
		}
		all = append(all, warnings...)

		encoded, err := json.Marshal(all)
		if err != nil {
			return fmt.Errorf("failed to encode warnings: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE jobs SET warnings = ? WHERE id = ?`, string(encoded), jobID); err != nil {
			return fmt.Errorf("failed to update job warnings: %w", err)
		}
		return nil
	})
}

func (s *JobStore) GetJobProgress(ctx context.Context, jobID string) (*models.JobProgress, error) {
	rows, err := s.db.conn.QueryContext(ctx,
		`SELECT date, model, status, started_at, completed_at, duration_seconds, error
		 FROM job_details WHERE job_id = ? ORDER BY date, model`, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to query job details: %w", err)
	}
	defer rows.Close()

	progress := &models.JobProgress{}
	for rows.Next() {
		var d models.JobDetail
		var startedAt, completedAt, errMsg sql.NullString
		if err := rows.Scan(&d.Date, &d.Model, &d.Status, &startedAt, &completedAt, &d.DurationSeconds, &errMsg); err != nil {
			return nil, fmt.Errorf("failed to scan job detail: %w", err)
		}
		d.JobID = jobID
		d.StartedAt = timeFromDB(startedAt)
		d.CompletedAt = timeFromDB(completedAt)
		d.Error = errMsg.String

		progress.Total++
		switch d.Status {
		case models.DetailStatusCompleted:
			progress.Completed++
		case models.DetailStatusFailed:
			progress.Failed++
		case models.DetailStatusSkipped:
			progress.Skipped++
		case models.DetailStatusRunning:
			progress.Pending++
			progress.CurrentRunning = append(progress.CurrentRunning, d.Model+"@"+d.Date)
		default:
			progress.Pending++
		}
		progress.Details = append(progress.Details, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate job details: %w", err)
	}
	return progress, nil
}

func (s *JobStore) GetJobDetailStatus(ctx context.Context, jobID, date, model string) (string, error) {
	var status string
	err := s.db.conn.QueryRowContext(ctx,
		`SELECT status FROM job_details WHERE job_id = ? AND date = ? AND model = ?`,
		jobID, date, model).Scan(&status)
	if err == sql.ErrNoRows {
		return "", models.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to query job detail status: %w", err)
	}
	return status, nil
}

func (s *JobStore) GetCompletedModelDates(ctx context.Context, modelSigs []string, startDate, endDate string) (map[string]map[string]bool, error) {
	result := make(map[string]map[string]bool, len(modelSigs))
	for _, m := range modelSigs {
		result[m] = make(map[string]bool)
	}
	if len(modelSigs) == 0 {
		return result, nil
	}

	placeholders := strings.Repeat("?,", len(modelSigs))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, 0, len(modelSigs)+3)
	args = append(args, models.DetailStatusCompleted)
	for _, m := range modelSigs {
		args = append(args, m)
	}
	args = append(args, startDate, endDate)

	rows, err := s.db.conn.QueryContext(ctx,
		`SELECT DISTINCT model, date FROM job_details
		 WHERE status = ? AND model IN (`+placeholders+`) AND date BETWEEN ? AND ?`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query completed model dates: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var model, date string
		if err := rows.Scan(&model, &date); err != nil {
			return nil, fmt.Errorf("failed to scan completed model date: %w", err)
		}
		result[model][date] = true
	}
	return result, rows.Err()
}

func (s *JobStore) GetLastCompletedDateForModel(ctx context.Context, model string) (string, error) {
	var date sql.NullString
	err := s.db.conn.QueryRowContext(ctx,
		`SELECT MAX(date) FROM job_details WHERE model = ? AND status = ?`,
		model, models.DetailStatusCompleted).Scan(&date)
	if err != nil {
		return "", fmt.Errorf("failed to query last completed date: %w", err)
	}
	return date.String, nil
}

// DeleteJob removes a job; details, trading days, holdings and actions go
// with it via cascade. Used by DEV reinitialisation and tests.
func (s *JobStore) DeleteJob(ctx context.Context, jobID string) error {
	_, err := s.db.conn.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, jobID)
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	return nil
}

// Compile-time check
var _ interfaces.JobStore = (*JobStore)(nil)
