package app

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/bobmcallan/replay/internal/models"
)

// StartScheduler launches the auto-resume cron when enabled: on each tick it
// brings every configured model up to date through the last weekday.
func (a *App) StartScheduler() error {
	if !a.Config.Scheduler.Enabled {
		return nil
	}

	c := cron.New()
	_, err := c.AddFunc(a.Config.Scheduler.Cron, a.runScheduledResume)
	if err != nil {
		return err
	}
	c.Start()
	a.schedulerStop = func() { c.Stop() }

	a.Logger.Info().Str("cron", a.Config.Scheduler.Cron).Msg("auto-resume scheduler started")
	return nil
}

func (a *App) runScheduledResume() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	modelSigs := a.Config.Simulation.Models
	if len(modelSigs) == 0 {
		a.Logger.Warn().Msg("scheduler tick skipped: no models configured")
		return
	}

	req, err := a.JobManager.ResumeRequest(ctx, modelSigs, models.LastWeekday(time.Now()))
	if err != nil {
		a.Logger.Error().Err(err).Msg("scheduler failed to build resume request")
		return
	}

	job, err := a.JobManager.CreateJob(ctx, req)
	switch {
	case errors.Is(err, models.ErrNothingToDo):
		a.Logger.Info().Msg("scheduler tick: all models up to date")
		return
	case errors.Is(err, models.ErrJobConflict):
		a.Logger.Warn().Msg("scheduler tick skipped: a job is already active")
		return
	case err != nil:
		a.Logger.Error().Err(err).Msg("scheduler failed to create job")
		return
	}

	a.Logger.Info().Str("job_id", job.ID).Str("range", job.StartDate+".."+job.EndDate).Msg("scheduled resume job created")
	a.LaunchJob(job.ID)
}
