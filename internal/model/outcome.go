package model

import "time"

// OutcomeStatus is the three-valued result of one module run.
type OutcomeStatus string

const (
	OutcomeSuccess  OutcomeStatus = "success"
	OutcomeFailed   OutcomeStatus = "failed"
	OutcomeTimedOut OutcomeStatus = "timed_out"
)

// ModuleOutcome is one module's contribution to a scan. Data is set only on
// success, Error only on failure or timeout.
type ModuleOutcome struct {
	Module    string        `json:"module"`
	Status    OutcomeStatus `json:"status"`
	Data      any           `json:"data,omitempty"`
	Error     string        `json:"error,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration_ns"`
}

func SuccessOutcome(module string, data any, started time.Time, d time.Duration) ModuleOutcome {
	return ModuleOutcome{Module: module, Status: OutcomeSuccess, Data: data, StartedAt: started, Duration: d}
}

func FailedOutcome(module string, cause string, started time.Time, d time.Duration) ModuleOutcome {
	return ModuleOutcome{Module: module, Status: OutcomeFailed, Error: cause, StartedAt: started, Duration: d}
}

func TimedOutOutcome(module string, cause string, started time.Time, d time.Duration) ModuleOutcome {
	return ModuleOutcome{Module: module, Status: OutcomeTimedOut, Error: cause, StartedAt: started, Duration: d}
}
