package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/sales-tracker/internal/domain"
	"github.com/dvloznov/sales-tracker/internal/jobs"
)

func TestRunner_HandleAPIJob(t *testing.T) {
	var gotStart, gotEnd civil.Date
	fetcher := &mockFetcher{
		FetchRangeFunc: func(ctx context.Context, start, end civil.Date, monthly bool) ([]domain.RawTransaction, error) {
			gotStart, gotEnd = start, end
			return apiBatch(), nil
		},
	}
	var finished *Summary
	r := &Runner{
		Deps:      Deps{Store: newStoreWithTargets(t), Fetcher: fetcher},
		StartDate: civil.Date{Year: 2021, Month: time.January, Day: 1},
		Now:       func() time.Time { return time.Date(2024, time.May, 10, 9, 0, 0, 0, time.UTC) },
		OnSuccess: func(ctx context.Context, sum Summary) { finished = &sum },
	}

	job := &jobs.RunPipelineJob{JobID: "j1", Source: jobs.SourceAPI}
	if err := r.Handle(context.Background(), job); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if gotStart != r.StartDate || gotEnd != (civil.Date{Year: 2024, Month: time.May, Day: 9}) {
		t.Errorf("fetched %v..%v", gotStart, gotEnd)
	}
	if job.RunID == "" || job.Rows != 3 || job.InvalidDates != 1 {
		t.Errorf("job = %+v", job)
	}
	if finished == nil || finished.RunID != job.RunID {
		t.Errorf("OnSuccess summary = %+v", finished)
	}
}

func TestRunner_ExplicitRange(t *testing.T) {
	var gotStart, gotEnd civil.Date
	fetcher := &mockFetcher{
		FetchRangeFunc: func(ctx context.Context, start, end civil.Date, monthly bool) ([]domain.RawTransaction, error) {
			gotStart, gotEnd = start, end
			return apiBatch(), nil
		},
	}
	r := &Runner{Deps: Deps{Store: newStoreWithTargets(t), Fetcher: fetcher}}

	job := &jobs.RunPipelineJob{Start: "2024-01-01", End: "2024-01-31"}
	if err := r.Handle(context.Background(), job); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if gotStart.String() != "2024-01-01" || gotEnd.String() != "2024-01-31" {
		t.Errorf("fetched %v..%v", gotStart, gotEnd)
	}
}

func TestRunner_PermanentFailures(t *testing.T) {
	fetcher := &mockFetcher{
		FetchRangeFunc: func(ctx context.Context, start, end civil.Date, monthly bool) ([]domain.RawTransaction, error) {
			return apiBatch(), nil
		},
	}

	tests := []struct {
		name   string
		runner *Runner
		job    *jobs.RunPipelineJob
	}{
		{
			name:   "bad start date",
			runner: &Runner{Deps: Deps{Store: newStoreWithTargets(t), Fetcher: fetcher}},
			job:    &jobs.RunPipelineJob{Start: "2024-13-01"},
		},
		{
			name:   "end before start",
			runner: &Runner{Deps: Deps{Store: newStoreWithTargets(t), Fetcher: fetcher}},
			job:    &jobs.RunPipelineJob{Start: "2024-02-01", End: "2024-01-01"},
		},
		{
			name:   "missing reference table",
			runner: &Runner{Deps: Deps{Store: &fakeStore{files: map[string][]byte{}}, Fetcher: fetcher}},
			job:    &jobs.RunPipelineJob{},
		},
		{
			name:   "no sales api",
			runner: &Runner{Deps: Deps{Store: newStoreWithTargets(t)}},
			job:    &jobs.RunPipelineJob{Source: jobs.SourceAPI},
		},
		{
			name:   "unknown source",
			runner: &Runner{Deps: Deps{Store: newStoreWithTargets(t), Fetcher: fetcher}},
			job:    &jobs.RunPipelineJob{Source: "ftp"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.runner.Handle(context.Background(), tt.job)
			if !errors.Is(err, jobs.ErrPermanent) {
				t.Errorf("Handle() error = %v, want permanent", err)
			}
		})
	}
}

func TestRunner_TransientFailureIsRetryable(t *testing.T) {
	fetchErr := errors.New("connection reset")
	fetcher := &mockFetcher{
		FetchRangeFunc: func(ctx context.Context, start, end civil.Date, monthly bool) ([]domain.RawTransaction, error) {
			return nil, fetchErr
		},
	}
	r := &Runner{Deps: Deps{Store: newStoreWithTargets(t), Fetcher: fetcher}}

	job := &jobs.RunPipelineJob{JobID: "j2"}
	err := r.Handle(context.Background(), job)
	if !errors.Is(err, fetchErr) || errors.Is(err, jobs.ErrPermanent) {
		t.Fatalf("Handle() error = %v, want retryable fetch error", err)
	}
	if job.RunID == "" {
		t.Error("run id should be recorded even for failed runs")
	}
}
