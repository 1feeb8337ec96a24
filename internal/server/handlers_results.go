package server

import (
	"net/http"
	"time"

	"github.com/bobmcallan/replay/internal/models"
)

// handleResults serves trading results. Query: job_id, model, start_date,
// end_date, reasoning (none|summary|full).
//
// Date semantics: both dates present is a range query (per-model period
// metrics and equity curves); exactly one date is a single-date query
// (per-(model, date) breakdowns); neither date covers the last 30 calendar
// days as a range. Empty result sets are 404.
func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	q := r.URL.Query()
	start, end := q.Get("start_date"), q.Get("end_date")

	for _, d := range []string{start, end} {
		if d == "" {
			continue
		}
		if _, err := time.Parse(models.DateFormat, d); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid date, want YYYY-MM-DD")
			return
		}
	}

	switch {
	case start != "" && end != "":
		if end < start {
			WriteError(w, http.StatusBadRequest, "end_date precedes start_date")
			return
		}
		s.writeRangeResults(w, r, start, end)
	case start != "":
		s.writeDailyResults(w, r, start)
	case end != "":
		s.writeDailyResults(w, r, end)
	default:
		now := time.Now()
		s.writeRangeResults(w, r,
			now.AddDate(0, 0, -29).Format(models.DateFormat),
			now.Format(models.DateFormat))
	}
}

// writeDailyResults serves the single-date breakdown for every matching
// (model, date).
func (s *Server) writeDailyResults(w http.ResponseWriter, r *http.Request, date string) {
	q := r.URL.Query()

	reasoning := q.Get("reasoning")
	switch reasoning {
	case "", models.ReasoningNone:
		reasoning = models.ReasoningNone
	case models.ReasoningSummary, models.ReasoningFull:
	default:
		WriteError(w, http.StatusBadRequest, "reasoning must be none, summary or full")
		return
	}

	filter := models.ResultFilter{
		JobID:     q.Get("job_id"),
		Model:     q.Get("model"),
		StartDate: date,
		EndDate:   date,
	}
	results, err := s.app.ResultsService.DailyResults(r.Context(), filter, reasoning)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	if len(results) == 0 {
		WriteError(w, http.StatusNotFound, "no results for "+date)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"date":    date,
		"results": results,
	})
}

// writeRangeResults serves per-model range metrics and equity curves.
func (s *Server) writeRangeResults(w http.ResponseWriter, r *http.Request, start, end string) {
	results, err := s.app.ResultsService.RangeResults(r.Context(), start, end, r.URL.Query().Get("model"))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	if len(results) == 0 {
		WriteError(w, http.StatusNotFound, "no results in "+start+".."+end)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"start_date": start,
		"end_date":   end,
		"results":    results,
	})
}

// handleResultsChart serves a PNG equity-curve comparison.
// Query: start_date, end_date (required), model.
func (s *Server) handleResultsChart(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	q := r.URL.Query()
	start, end := q.Get("start_date"), q.Get("end_date")
	if start == "" || end == "" {
		WriteError(w, http.StatusBadRequest, "start_date and end_date are required")
		return
	}
	st, err1 := time.Parse(models.DateFormat, start)
	en, err2 := time.Parse(models.DateFormat, end)
	if err1 != nil || err2 != nil {
		WriteError(w, http.StatusBadRequest, "invalid date, want YYYY-MM-DD")
		return
	}
	if en.Before(st) {
		WriteError(w, http.StatusBadRequest, "end_date precedes start_date")
		return
	}

	png, err := s.app.ResultsService.RenderChart(r.Context(), start, end, q.Get("model"))
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}
