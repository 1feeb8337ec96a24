package models

// SessionContext scopes one agent session to a (job, model, date). It is
// immutable and threaded explicitly through every tool invocation so that
// parallel sessions never collide on shared state.
type SessionContext struct {
	JobID        string
	Model        string
	Date         string
	TradingDayID int64
}

// SessionResult is what the agent runtime returns for one session.
type SessionResult struct {
	Transcript []AgentMessage
	Steps      int
	ToolCalls  int
}

// CreateJobRequest is the input to JobManager.CreateJob.
type CreateJobRequest struct {
	StartDate     string   // overall range start, YYYY-MM-DD
	EndDate       string   // overall range end, YYYY-MM-DD
	Models        []string // model signatures to replay
	PerModelStart map[string]string // optional resume start per model
	SkipCompleted bool
}
