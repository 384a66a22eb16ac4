package model

import "time"

// Outcome classifies a completed run.
type Outcome string

const (
	OutcomeSuccess        Outcome = "success"
	OutcomePartialFailure Outcome = "partial_failure"
	OutcomeFailed         Outcome = "failed"
)

// ExecutionRecord is the metadata for one scheduled or manual run.
type ExecutionRecord struct {
	Date        Date           `json:"date"`
	StartedAt   time.Time      `json:"started_at"`
	FinishedAt  time.Time      `json:"finished_at"`
	Fetched     int            `json:"fetched"`
	Matched     int            `json:"matched"`
	Excluded    int            `json:"excluded"`
	Skipped     int            `json:"skipped,omitempty"`
	RuleMatches map[string]int `json:"rule_matches,omitempty"`
	Warnings    []string       `json:"warnings,omitempty"`
	Errors      []string       `json:"errors,omitempty"`
	Outcome     Outcome        `json:"outcome"`
}

// DailyResult is the persisted artifact for one calendar date: the matched
// publications plus the record of the run that produced them. Rerunning for
// the same date replaces the whole artifact.
type DailyResult struct {
	Date         Date            `json:"date"`
	Execution    ExecutionRecord `json:"execution"`
	Publications []Publication   `json:"publications"`
}
