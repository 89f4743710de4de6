package model

import "time"

// RunState is a step of the pipeline state machine.
type RunState string

const (
	RunStateIdle              RunState = "idle"
	RunStateLoadingRegistry   RunState = "loading_registry"
	RunStateGeneratingQueries RunState = "generating_queries"
	RunStateSearching         RunState = "searching"
	RunStateFiltering         RunState = "filtering"
	RunStateTransforming      RunState = "transforming"
	RunStatePersisting        RunState = "persisting"
	RunStateDone              RunState = "done"
	RunStateAborted           RunState = "aborted"
	RunStatePartialFailure    RunState = "partial_failure"
)

// Terminal reports whether no further transitions follow this state.
func (s RunState) Terminal() bool {
	switch s {
	case RunStateDone, RunStateAborted, RunStatePartialFailure:
		return true
	default:
		return false
	}
}

// RunCounters are the summary counters of a single pipeline run.
type RunCounters struct {
	QueriesIssued     int `json:"queries_issued"`
	QueriesFailed     int `json:"queries_failed"`
	RawResults        int `json:"raw_results"`
	FilteredOut       int `json:"filtered_out"`
	BelowScore        int `json:"below_score"`
	DuplicatesSkipped int `json:"duplicates_skipped"`
	Accepted          int `json:"accepted"`
}

// Consistent reports whether the rejection and acceptance counters add up to
// no more than the raw results seen.
func (c RunCounters) Consistent() bool {
	return c.Accepted+c.FilteredOut+c.BelowScore+c.DuplicatesSkipped <= c.RawResults
}

// RunSummary is the persisted outcome of a pipeline run.
type RunSummary struct {
	ID          string      `json:"id" db:"id"`
	State       RunState    `json:"state" db:"state"`
	Premium     bool        `json:"premium" db:"premium"`
	Counters    RunCounters `json:"counters" db:"counters"`
	CostUSD     float64     `json:"cost_usd" db:"cost_usd"`
	Error       string      `json:"error,omitempty" db:"error"`
	StartedAt   time.Time   `json:"started_at" db:"started_at"`
	CompletedAt *time.Time  `json:"completed_at,omitempty" db:"completed_at"`
}

// Draft is a generated outreach text for a lead. Drafts are never sent by
// this tool.
type Draft struct {
	ID        string    `json:"id" db:"id"`
	PlaceID   string    `json:"place_id" db:"place_id"`
	Channel   string    `json:"channel" db:"channel"`
	Subject   string    `json:"subject,omitempty" db:"subject"`
	Body      string    `json:"body" db:"body"`
	Generator string    `json:"generator" db:"generator"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Draft channels.
const (
	ChannelEmail   = "email"
	ChannelMessage = "message"
)
