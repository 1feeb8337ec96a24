// Package simulation orchestrates backtest jobs: creation with duplicate
// skipping, price preparation, and date-sequential model-parallel execution.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bobmcallan/replay/internal/common"
	"github.com/bobmcallan/replay/internal/interfaces"
	"github.com/bobmcallan/replay/internal/models"
)

// Manager implements interfaces.JobManager.
type Manager struct {
	storage interfaces.StorageManager
	config  *common.Config
	logger  *common.Logger

	// createMu serializes the active-job check with the job insert so two
	// concurrent triggers cannot both pass the guard.
	createMu sync.Mutex
}

// NewManager creates a job manager.
func NewManager(storage interfaces.StorageManager, config *common.Config, logger *common.Logger) *Manager {
	return &Manager{storage: storage, config: config, logger: logger}
}

func (m *Manager) CanStartNewJob(ctx context.Context) (bool, error) {
	_, err := m.storage.Jobs().GetCurrentJob(ctx)
	if errors.Is(err, models.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return false, nil
}

// CreateJob validates the request, enforces the single-active-job guard, and
// persists the job with one detail per (date, model). Pairs already completed
// by an earlier job are recorded as skipped up front when the request asks
// for it; if nothing at all is left to run, no job is created.
func (m *Manager) CreateJob(ctx context.Context, req models.CreateJobRequest) (*models.Job, error) {
	if len(req.Models) == 0 {
		return nil, models.Validationf("at least one model is required")
	}

	start, err := time.Parse(models.DateFormat, req.StartDate)
	if err != nil {
		return nil, models.Validationf("invalid start_date %q, want YYYY-MM-DD", req.StartDate)
	}
	end, err := time.Parse(models.DateFormat, req.EndDate)
	if err != nil {
		return nil, models.Validationf("invalid end_date %q, want YYYY-MM-DD", req.EndDate)
	}
	if end.Before(start) {
		return nil, models.Validationf("end_date %s precedes start_date %s", req.EndDate, req.StartDate)
	}
	if today := time.Now().Format(models.DateFormat); req.EndDate > today {
		return nil, models.Validationf("end_date %s is in the future", req.EndDate)
	}

	dates := models.TradingDates(start, end)
	if len(dates) == 0 {
		return nil, models.Validationf("range %s..%s contains no weekdays", req.StartDate, req.EndDate)
	}
	// The cap bounds the requested range itself, weekends included.
	if span, max := int(end.Sub(start).Hours()/24)+1, m.config.Simulation.MaxSimulationDays; span > max {
		return nil, models.Validationf("range spans %d calendar days, maximum is %d", span, max)
	}

	m.createMu.Lock()
	defer m.createMu.Unlock()

	ok, err := m.CanStartNewJob(ctx)
	if err != nil {
		return nil, fmt.Errorf("checking active jobs: %w", err)
	}
	if !ok {
		return nil, models.ErrJobConflict
	}

	completed := map[string]map[string]bool{}
	if req.SkipCompleted {
		completed, err = m.storage.Jobs().GetCompletedModelDates(ctx, req.Models, req.StartDate, req.EndDate)
		if err != nil {
			return nil, fmt.Errorf("checking completed pairs: %w", err)
		}
	}

	var details []models.JobDetail
	var warnings []string
	runnable := 0
	for _, date := range dates {
		for _, model := range req.Models {
			// A per-model resume start trims dates the model ran past.
			if from, ok := req.PerModelStart[model]; ok && date < from {
				continue
			}

			detail := models.JobDetail{Date: date, Model: model, Status: models.DetailStatusPending}
			if completed[model][date] {
				detail.Status = models.DetailStatusSkipped
				detail.Error = models.SkipReasonAlreadyCompleted
				warnings = append(warnings, fmt.Sprintf("skipping already-completed %s on %s", model, date))
			} else {
				runnable++
			}
			details = append(details, detail)
		}
	}

	if len(details) == 0 {
		return nil, models.Validationf("no (model, date) pairs to run in %s..%s", req.StartDate, req.EndDate)
	}
	if runnable == 0 {
		return nil, models.ErrNothingToDo
	}

	job := &models.Job{
		ID:        uuid.New().String(),
		Status:    models.JobStatusPending,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		Models:    req.Models,
		CreatedAt: time.Now(),
		Warnings:  warnings,
	}
	if err := m.storage.Jobs().CreateJob(ctx, job, details); err != nil {
		return nil, fmt.Errorf("persisting job: %w", err)
	}

	m.logger.Info().
		Str("job_id", job.ID).
		Str("range", req.StartDate+".."+req.EndDate).
		Int("details", len(details)).
		Int("runnable", runnable).
		Msg("Simulation job created")
	return job, nil
}

func (m *Manager) GetJob(ctx context.Context, jobID string) (*models.Job, error) {
	return m.storage.Jobs().GetJob(ctx, jobID)
}

func (m *Manager) GetProgress(ctx context.Context, jobID string) (*models.JobProgress, error) {
	return m.storage.Jobs().GetJobProgress(ctx, jobID)
}

// Compile-time check
var _ interfaces.JobManager = (*Manager)(nil)
