package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/sales-tracker/internal/jobs"
	"github.com/dvloznov/sales-tracker/internal/logger"
)

// ErrInvalidRange is returned for a run whose end date precedes its start date.
var ErrInvalidRange = errors.New("invalid date range")

// Runner executes queued pipeline runs. Its Handle method is a jobs.JobHandler.
type Runner struct {
	Deps Deps

	// StartDate is the first day fetched when a job gives no start.
	StartDate    civil.Date
	ReferenceURI string
	DatasetURI   string

	// LegacyURI is imported when a legacy job gives no workbook.
	LegacyURI string

	// Now defaults to time.Now.
	Now func() time.Time

	// OnSuccess is called after a run persisted its dataset.
	OnSuccess func(ctx context.Context, sum Summary)
}

// Handle runs the pipeline requested by job and records the outcome on it.
// Bad job parameters and configuration errors are marked permanent.
func (r *Runner) Handle(ctx context.Context, job *jobs.RunPipelineJob) error {
	state, p, err := r.plan(job)
	if err != nil {
		return jobs.Permanent(err)
	}

	log := logger.FromContext(ctx).With().
		Str("job_id", job.JobID).
		Str("source", string(job.Source)).
		Logger()
	ctx = logger.WithContext(ctx, log)

	err = p.Execute(ctx, state)
	job.RunID = state.RunID
	if err != nil {
		if IsConfigurationError(err) || errors.Is(err, ErrNoSource) {
			return jobs.Permanent(err)
		}
		return err
	}

	sum := state.Summary()
	job.Rows = sum.Rows
	job.InvalidDates = sum.InvalidDates
	job.MissingAmounts = sum.MissingAmounts

	log.Info().
		Str("run_id", sum.RunID).
		Int("rows", sum.Rows).
		Int("unmatched_supply_sources", sum.Unmatched).
		Msg("Pipeline run finished")

	if r.OnSuccess != nil {
		r.OnSuccess(ctx, sum)
	}
	return nil
}

func (r *Runner) plan(job *jobs.RunPipelineJob) (*PipelineState, *Pipeline, error) {
	state := &PipelineState{
		ReferenceURI: orDefault(r.ReferenceURI, DefaultReferenceURI),
		DatasetURI:   orDefault(r.DatasetURI, DefaultDatasetURI),
	}

	switch job.Source {
	case jobs.SourceLegacy:
		state.SourceURI = orDefault(job.SourceURI, orDefault(r.LegacyURI, DefaultLegacyWorkbookURI))
		return state, NewLegacyImportPipeline(r.Deps), nil

	case jobs.SourceAPI, "":
		if r.Deps.Fetcher == nil {
			return nil, nil, fmt.Errorf("%w: no sales API configured", ErrNoSource)
		}
		now := time.Now
		if r.Now != nil {
			now = r.Now
		}
		start, end := DailyRange(r.StartDate, now())
		var err error
		if job.Start != "" {
			if start, err = civil.ParseDate(job.Start); err != nil {
				return nil, nil, fmt.Errorf("start date: %w", err)
			}
		}
		if job.End != "" {
			if end, err = civil.ParseDate(job.End); err != nil {
				return nil, nil, fmt.Errorf("end date: %w", err)
			}
		}
		if end.Before(start) {
			return nil, nil, fmt.Errorf("%w: %s after %s", ErrInvalidRange, start, end)
		}
		state.Start, state.End = start, end
		return state, NewDailyPipeline(r.Deps), nil

	default:
		return nil, nil, fmt.Errorf("unknown job source %q", job.Source)
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
