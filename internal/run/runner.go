// Package run orchestrates one fetch-and-match cycle: snapshot the rules,
// pull the date range from the upstream API, evaluate the rules, and persist
// the dated result artifact.
package run

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/legallex/djenwatch/internal/fetch"
	"github.com/legallex/djenwatch/internal/match"
	"github.com/legallex/djenwatch/internal/model"
)

// Fetcher pulls publications for a date range. Satisfied by *fetch.Client.
type Fetcher interface {
	FetchRange(ctx context.Context, from, to model.Date) (*fetch.Outcome, error)
}

// RuleSource provides the immutable rule snapshot a run evaluates against.
// Satisfied by *rules.Store.
type RuleSource interface {
	Snapshot() ([]model.SearchRule, error)
}

// ResultSink persists the dated artifact. Satisfied by *results.Store.
type ResultSink interface {
	Write(result *model.DailyResult) error
}

// Runner executes runs. It owns no persistent state; everything durable lives
// in the rule and result stores.
type Runner struct {
	rules   RuleSource
	fetcher Fetcher
	results ResultSink
	logger  *log.Logger
	now     func() time.Time
}

// New creates a Runner.
func New(ruleSource RuleSource, fetcher Fetcher, sink ResultSink, logger *log.Logger) *Runner {
	return &Runner{
		rules:   ruleSource,
		fetcher: fetcher,
		results: sink,
		logger:  logger,
		now:     time.Now,
	}
}

// Execute runs one cycle for the inclusive date range and returns its record.
// The artifact is keyed by the range's end date. The returned error is
// non-nil exactly when the record's outcome is Failed; in that case no
// artifact is written, so a prior successful result for the date survives.
func (r *Runner) Execute(ctx context.Context, from, to model.Date) (record *model.ExecutionRecord, err error) {
	record = &model.ExecutionRecord{
		Date:      to,
		StartedAt: r.now(),
	}
	defer func() {
		if record.FinishedAt.IsZero() {
			record.FinishedAt = r.now()
		}
		if p := recover(); p != nil {
			err = fmt.Errorf("run panicked: %v", p)
			record.Outcome = model.OutcomeFailed
			record.Errors = append(record.Errors, err.Error())
			r.logger.Error("run panicked", "date", to, "panic", p)
		}
	}()

	r.logger.Info("run started", "from", from, "to", to)

	snapshot, err := r.rules.Snapshot()
	if err != nil {
		record.Outcome = model.OutcomeFailed
		record.Errors = append(record.Errors, err.Error())
		return record, fmt.Errorf("load rule snapshot: %w", err)
	}

	outcome, err := r.fetcher.FetchRange(ctx, from, to)
	if err != nil {
		record.Outcome = model.OutcomeFailed
		record.Errors = append(record.Errors, err.Error())
		if outcome != nil {
			record.Fetched = len(outcome.Publications)
		}
		return record, fmt.Errorf("fetch %s..%s: %w", from, to, err)
	}

	// Every page lost to exhausted retries is a total fetch failure, not
	// partial data: the run fails and a prior artifact for the date is
	// left untouched.
	if outcome.Pages == 0 && len(outcome.PageErrors) > 0 {
		err := &fetch.FatalError{Err: fmt.Errorf("total fetch failure: all %d pages lost", len(outcome.PageErrors))}
		record.Outcome = model.OutcomeFailed
		record.Errors = append(record.Errors, err.Error())
		for _, pe := range outcome.PageErrors {
			record.Errors = append(record.Errors, fmt.Sprintf("page %d lost: %s", pe.Page, pe.Err))
		}
		return record, fmt.Errorf("fetch %s..%s: %w", from, to, err)
	}

	matched, stats := match.Evaluate(snapshot, outcome.Publications)

	record.Fetched = len(outcome.Publications)
	record.Matched = len(matched)
	record.Excluded = stats.Excluded
	record.Skipped = outcome.Skipped
	record.RuleMatches = stats.RuleMatches
	record.Warnings = append(record.Warnings, outcome.Warnings...)
	for _, pe := range outcome.PageErrors {
		record.Warnings = append(record.Warnings, fmt.Sprintf("page %d lost: %s", pe.Page, pe.Err))
	}
	if stats.ConfigWarning {
		record.Warnings = append(record.Warnings, "no include rules configured; matched set is empty")
	}

	// Lost pages and skipped records mean the data is incomplete; retries
	// that eventually succeeded do not degrade the outcome.
	if len(outcome.PageErrors) > 0 || outcome.Skipped > 0 {
		record.Outcome = model.OutcomePartialFailure
	} else {
		record.Outcome = model.OutcomeSuccess
	}

	result := &model.DailyResult{
		Date:         to,
		Publications: matched,
	}

	record.FinishedAt = r.now()
	result.Execution = *record

	if err := r.results.Write(result); err != nil {
		record.Outcome = model.OutcomeFailed
		record.Errors = append(record.Errors, err.Error())
		return record, fmt.Errorf("persist result: %w", err)
	}

	r.logger.Info("run finished",
		"date", to,
		"outcome", record.Outcome,
		"fetched", record.Fetched,
		"matched", record.Matched,
		"excluded", record.Excluded,
		"warnings", len(record.Warnings),
	)
	return record, nil
}
