package simulation

import (
	"context"
	"fmt"
	"time"

	"github.com/bobmcallan/replay/internal/models"
)

// ResumeRequest builds the job request used when no explicit start date is
// given: each model picks up the day after its last completed date, and a
// model with no history runs only the end date. The overall range starts at
// the earliest per-model start.
func (m *Manager) ResumeRequest(ctx context.Context, modelSigs []string, endDate string) (models.CreateJobRequest, error) {
	req := models.CreateJobRequest{
		EndDate:       endDate,
		Models:        modelSigs,
		PerModelStart: make(map[string]string, len(modelSigs)),
		SkipCompleted: true,
	}
	if len(modelSigs) == 0 {
		return req, models.Validationf("at least one model is required")
	}
	end, err := time.Parse(models.DateFormat, endDate)
	if err != nil {
		return req, models.Validationf("invalid end_date %q, want YYYY-MM-DD", endDate)
	}

	earliest := ""
	for _, model := range modelSigs {
		last, err := m.storage.Jobs().GetLastCompletedDateForModel(ctx, model)
		if err != nil {
			return req, fmt.Errorf("resume lookup for %s: %w", model, err)
		}

		start := endDate
		if last != "" {
			lastDay, err := time.Parse(models.DateFormat, last)
			if err != nil {
				return req, fmt.Errorf("bad stored date %q for %s", last, model)
			}
			next := lastDay.AddDate(0, 0, 1)
			if next.After(end) {
				// Already caught up; the skip pass leaves nothing to run.
				next = end
			}
			start = next.Format(models.DateFormat)
		}

		req.PerModelStart[model] = start
		if earliest == "" || start < earliest {
			earliest = start
		}
	}

	req.StartDate = earliest
	return req, nil
}
