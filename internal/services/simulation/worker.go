package simulation

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bobmcallan/replay/internal/common"
	"github.com/bobmcallan/replay/internal/interfaces"
	"github.com/bobmcallan/replay/internal/models"
)

// Worker executes one job end to end: price preparation, then the requested
// dates in order with the job's models fanned out in parallel per date.
type Worker struct {
	storage  interfaces.StorageManager
	prices   interfaces.PriceCache
	executor *Executor
	config   *common.Config
	logger   *common.Logger
}

// NewWorker creates a job worker.
func NewWorker(storage interfaces.StorageManager, prices interfaces.PriceCache, executor *Executor, config *common.Config, logger *common.Logger) *Worker {
	return &Worker{
		storage:  storage,
		prices:   prices,
		executor: executor,
		config:   config,
		logger:   logger,
	}
}

// Run drives the job to a terminal state. Individual session failures are
// absorbed into the per-detail record; only infrastructure failures fail the
// job as a whole.
func (w *Worker) Run(ctx context.Context, jobID string) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error().
				Str("job_id", jobID).
				Interface("panic", r).
				Str("stack", string(debug.Stack())).
				Msg("job worker panicked")
			w.failJob(jobID, fmt.Sprintf("internal panic: %v", r))
		}
	}()

	if err := w.run(ctx, jobID); err != nil {
		w.logger.Error().Err(err).Str("job_id", jobID).Msg("job failed")
		w.failJob(jobID, err.Error())
	}
}

func (w *Worker) run(ctx context.Context, jobID string) error {
	jobs := w.storage.Jobs()

	job, err := jobs.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("loading job: %w", err)
	}

	w.logger.Info().Str("job_id", jobID).Str("range", job.StartDate+".."+job.EndDate).Msg("job started")

	if err := w.prepareData(ctx, job); err != nil {
		return err
	}

	if err := jobs.UpdateJobStatus(ctx, jobID, models.JobStatusRunning, ""); err != nil {
		return fmt.Errorf("marking job running: %w", err)
	}

	availableList, err := w.prices.AvailableTradingDates(ctx, job.StartDate, job.EndDate)
	if err != nil {
		return fmt.Errorf("checking price availability: %w", err)
	}
	available := make(map[string]bool, len(availableList))
	for _, d := range availableList {
		available[d] = true
	}

	progress, err := jobs.GetJobProgress(ctx, jobID)
	if err != nil {
		return fmt.Errorf("loading job details: %w", err)
	}

	byDate := make(map[string][]string)
	for _, d := range progress.Details {
		if d.Status == models.DetailStatusPending {
			byDate[d.Date] = append(byDate[d.Date], d.Model)
		}
	}
	dates := make([]string, 0, len(byDate))
	for date := range byDate {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	// Dates run strictly in order so each session sees its model's prior
	// days; models within a date are independent and run in parallel.
	for _, date := range dates {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("job interrupted: %w", err)
		}

		if !available[date] {
			for _, model := range byDate[date] {
				if err := jobs.UpdateJobDetailStatus(ctx, jobID, date, model, models.DetailStatusSkipped, models.SkipReasonIncompleteData); err != nil {
					return fmt.Errorf("skipping uncovered date: %w", err)
				}
			}
			continue
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(w.config.Simulation.MaxConcurrency)
		for _, model := range byDate[date] {
			model := model
			g.Go(func() error {
				defer func() {
					if r := recover(); r != nil {
						w.logger.Error().
							Str("model", model).
							Str("date", date).
							Interface("panic", r).
							Msg("session panicked")
						jobs.UpdateJobDetailStatus(ctx, jobID, date, model, models.DetailStatusFailed, fmt.Sprintf("internal panic: %v", r))
					}
				}()
				// Session outcomes land on the detail row; a failure here
				// must not cancel sibling sessions.
				w.executor.ExecuteSession(gctx, jobID, model, date)
				return nil
			})
		}
		g.Wait()
	}

	final, err := jobs.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("reloading job: %w", err)
	}
	w.logger.Info().
		Str("job_id", jobID).
		Str("status", final.Status).
		Float64("duration_seconds", final.TotalDurationSeconds).
		Msg("job finished")
	return nil
}

// prepareData downloads whatever slice of the universe is missing for the
// job's range and records acquisition problems as job warnings.
func (w *Worker) prepareData(ctx context.Context, job *models.Job) error {
	jobs := w.storage.Jobs()

	if err := jobs.UpdateJobStatus(ctx, job.ID, models.JobStatusDownloadingData, ""); err != nil {
		return fmt.Errorf("marking job downloading: %w", err)
	}

	missing, err := w.prices.MissingCoverage(ctx, job.StartDate, job.EndDate)
	if err != nil {
		return fmt.Errorf("checking price coverage: %w", err)
	}
	if len(missing) == 0 {
		return nil
	}

	start, _ := time.Parse(models.DateFormat, job.StartDate)
	end, _ := time.Parse(models.DateFormat, job.EndDate)
	requested := models.TradingDates(start, end)

	result, err := w.prices.DownloadMissing(ctx, missing, requested)
	if err != nil {
		return fmt.Errorf("downloading prices: %w", err)
	}

	var warnings []string
	if result.RateLimited {
		warnings = append(warnings, "price download halted by provider rate limit; dates without full coverage will be skipped")
	}
	for _, symbol := range result.Failed {
		warnings = append(warnings, fmt.Sprintf("price download failed for %s", symbol))
	}
	if len(warnings) > 0 {
		if err := jobs.AddJobWarnings(ctx, job.ID, warnings); err != nil {
			return fmt.Errorf("recording warnings: %w", err)
		}
	}
	return nil
}

func (w *Worker) failJob(jobID, msg string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := w.storage.Jobs().UpdateJobStatus(ctx, jobID, models.JobStatusFailed, msg); err != nil {
		w.logger.Error().Err(err).Str("job_id", jobID).Msg("failed to mark job failed")
	}
}

// Compile-time check
var _ interfaces.JobWorker = (*Worker)(nil)
