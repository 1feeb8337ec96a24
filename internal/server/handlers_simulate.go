package server

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bobmcallan/replay/internal/models"
)

// triggerRequest is the POST /api/simulate/trigger body. end_date is
// required; models default to the configured set, and a missing start_date
// requests per-model resumption.
type triggerRequest struct {
	StartDate       string   `json:"start_date"`
	EndDate         string   `json:"end_date"`
	Models          []string `json:"models"`
	SkipCompleted   *bool    `json:"skip_completed"`
	ReplaceExisting bool     `json:"replace_existing"` // reserved
}

// handleSimulateTrigger creates a job and launches it in the background.
func (s *Server) handleSimulateTrigger(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var body triggerRequest
	if !DecodeJSON(w, r, &body) {
		return
	}

	modelSigs := body.Models
	if len(modelSigs) == 0 {
		modelSigs = s.app.Config.Simulation.Models
	}
	if body.EndDate == "" {
		WriteDomainError(w, models.Validationf("end_date is required"))
		return
	}

	var req models.CreateJobRequest
	if body.StartDate == "" {
		resumeReq, err := s.app.JobManager.ResumeRequest(r.Context(), modelSigs, body.EndDate)
		if err != nil {
			WriteDomainError(w, err)
			return
		}
		req = resumeReq
	} else {
		req = models.CreateJobRequest{
			StartDate:     body.StartDate,
			EndDate:       body.EndDate,
			Models:        modelSigs,
			SkipCompleted: true,
		}
	}
	if body.SkipCompleted != nil {
		req.SkipCompleted = *body.SkipCompleted
	}

	job, err := s.app.JobManager.CreateJob(r.Context(), req)
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	progress, err := s.app.JobManager.GetProgress(r.Context(), job.ID)
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	s.app.LaunchJob(job.ID)
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"job_id":           job.ID,
		"status":           job.Status,
		"total_model_days": progress.Total,
		"message":          fmt.Sprintf("simulation %s..%s started for %d model(s)", job.StartDate, job.EndDate, len(job.Models)),
		"warnings":         job.Warnings,
	})
}

// handleSimulateStatus reports a job's state and per-detail progress. The path
// form /api/simulate/status/{job_id} addresses any job; the bare path reports
// the currently active one.
func (s *Server) handleSimulateStatus(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	ctx := r.Context()
	jobID := r.PathValue("job_id")
	if jobID == "" {
		jobID = r.URL.Query().Get("job_id")
	}

	var job *models.Job
	var err error
	if jobID != "" {
		job, err = s.app.JobManager.GetJob(ctx, jobID)
	} else {
		job, err = s.app.Storage.Jobs().GetCurrentJob(ctx)
		if errors.Is(err, models.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "no active job; pass a job id for a finished one")
			return
		}
	}
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	progress, err := s.app.JobManager.GetProgress(ctx, job.ID)
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, statusResponse(job, progress))
}

// statusResponse flattens a job and its progress; absent timestamps are null.
func statusResponse(job *models.Job, progress *models.JobProgress) map[string]interface{} {
	resp := map[string]interface{}{
		"job_id":     job.ID,
		"status":     job.Status,
		"date_range": []string{job.StartDate, job.EndDate},
		"models":     job.Models,
		"created_at": job.CreatedAt,
		"progress": map[string]int{
			"total":     progress.Total,
			"completed": progress.Completed,
			"failed":    progress.Failed,
			"pending":   progress.Pending,
			"skipped":   progress.Skipped,
		},
		"details":                progress.Details,
		"started_at":             nullableTime(job.StartedAt),
		"completed_at":           nullableTime(job.CompletedAt),
		"total_duration_seconds": nil,
		"error":                  nil,
		"warnings":               nil,
	}
	if models.IsTerminalJobStatus(job.Status) {
		resp["total_duration_seconds"] = job.TotalDurationSeconds
	}
	if job.Error != "" {
		resp["error"] = job.Error
	}
	if len(job.Warnings) > 0 {
		resp["warnings"] = job.Warnings
	}
	if len(progress.CurrentRunning) > 0 {
		resp["current_running"] = progress.CurrentRunning
	}
	return resp
}

func nullableTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}
