package reporting

import "time"

// Common filtering inputs.

type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// CallsSummaryRequest requests aggregated call-session metrics.
// Sessions are selected by started_at within [From, To).
type CallsSummaryRequest struct {
	Range      TimeRange `json:"range"`
	CampaignID string    `json:"campaign_id,omitempty"`
	OperatorID string    `json:"operator_id,omitempty"`
}

type CallsSummary struct {
	CampaignID string `json:"campaign_id,omitempty"`
	OperatorID string `json:"operator_id,omitempty"`

	TotalCalls                int `json:"total_calls"`
	ActiveCalls               int `json:"active_calls"`
	CompletedCalls            int `json:"completed_calls"`
	AppointmentScheduledCalls int `json:"appointment_scheduled_calls"`
	NoAnswerCalls             int `json:"no_answer_calls"`
	MissedCalls               int `json:"missed_calls"`

	TotalDurationSeconds   int `json:"total_duration_seconds"`
	AverageDurationSeconds int `json:"average_duration_seconds"`

	// AppointmentRate is appointments over ended calls.
	AppointmentRate float64 `json:"appointment_rate"`
	// ReachRate is calls answered (completed or appointment) over ended calls.
	ReachRate float64 `json:"reach_rate"`
}

// OperatorStats is one row of the per-operator leaderboard.
type OperatorStats struct {
	OperatorID   string  `json:"operator_id"`
	Calls        int     `json:"calls"`
	Appointments int     `json:"appointments"`
	Rate         float64 `json:"appointment_rate"`
}
