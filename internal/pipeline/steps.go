package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/sales-tracker/internal/artifacts"
	"github.com/dvloznov/sales-tracker/internal/dataset"
	"github.com/dvloznov/sales-tracker/internal/domain"
	"github.com/dvloznov/sales-tracker/internal/logger"
	"github.com/dvloznov/sales-tracker/internal/spreadsheet"
	"github.com/google/uuid"
)

// ErrNoSource is returned when a run has neither fetched records nor a workbook to read.
var ErrNoSource = errors.New("no source records")

// PipelineStep represents a single step in a sales run.
type PipelineStep interface {
	Name() string
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	RunID  string
	Format SourceFormat

	// Start and End bound the API fetch.
	Start civil.Date
	End   civil.Date

	// SourceURI is the legacy workbook read by a legacy import.
	SourceURI    string
	ReferenceURI string
	DatasetURI   string

	// Header is the source column list when the source has one.
	Header     []string
	Raw        []domain.RawTransaction
	Normalized *NormalizeResult
	Reference  *ReferenceTable
	Enriched   []domain.EnrichedTransaction
}

// Summary reports what a completed run produced.
type Summary struct {
	RunID          string    `json:"run_id"`
	Format         string    `json:"format"`
	Rows           int       `json:"rows"`
	InvalidDates   int       `json:"invalid_dates"`
	MissingAmounts int       `json:"missing_amounts"`
	Unmatched      int       `json:"unmatched_supply_sources"`
	DatasetURI     string    `json:"dataset_uri"`
	FinishedAt     time.Time `json:"finished_at"`
}

// Summary builds the run summary from the state.
func (s *PipelineState) Summary() Summary {
	sum := Summary{
		RunID:      s.RunID,
		Format:     s.Format.String(),
		Rows:       len(s.Enriched),
		DatasetURI: s.DatasetURI,
		FinishedAt: time.Now().UTC(),
	}
	if s.Normalized != nil {
		sum.InvalidDates = s.Normalized.InvalidDates
		sum.MissingAmounts = s.Normalized.MissingAmounts
	}
	if s.Reference != nil {
		for i := range s.Enriched {
			if _, ok := s.Reference.Entries[s.Enriched[i].SupplySourceName]; !ok {
				sum.Unmatched++
			}
		}
	}
	return sum
}

// FetchSalesStep fetches API-format records for [Start, End].
type FetchSalesStep struct {
	Fetcher SalesFetcher
	Monthly bool
}

func (s *FetchSalesStep) Name() string { return "fetch_sales" }

func (s *FetchSalesStep) Execute(ctx context.Context, state *PipelineState) error {
	raw, err := s.Fetcher.FetchRange(ctx, state.Start, state.End, s.Monthly)
	if err != nil {
		return err
	}
	state.Raw = raw
	state.Format = FormatAPI
	return nil
}

// ReadLegacyWorkbookStep reads the historical multi-sheet export.
type ReadLegacyWorkbookStep struct {
	Store artifacts.Store
}

func (s *ReadLegacyWorkbookStep) Name() string { return "read_legacy_workbook" }

func (s *ReadLegacyWorkbookStep) Execute(ctx context.Context, state *PipelineState) error {
	data, err := s.Store.Read(ctx, state.SourceURI)
	if err != nil {
		return fmt.Errorf("reading %s: %w", state.SourceURI, err)
	}
	header, raw, err := spreadsheet.ReadLegacyWorkbook(bytes.NewReader(data))
	if err != nil {
		return err
	}
	state.Header = header
	state.Raw = raw
	state.Format = FormatLegacySpreadsheet
	return nil
}

// NormalizeStep maps raw records to the canonical schema. Data-quality
// problems are logged as warnings and never stop the run.
type NormalizeStep struct{}

func (s *NormalizeStep) Name() string { return "normalize" }

func (s *NormalizeStep) Execute(ctx context.Context, state *PipelineState) error {
	if state.Format == 0 {
		return ErrNoSource
	}
	res, err := NormalizeWithHeader(state.Format, state.Header, state.Raw)
	if err != nil {
		return err
	}
	state.Normalized = res
	state.Raw = nil

	log := logger.FromContext(ctx)
	if res.InvalidDates > 0 {
		log.Warn().
			Int("rows", res.InvalidDates).
			Int("total", len(res.Transactions)).
			Msg("Rows with missing or unparseable dates")
	}
	if res.MissingAmounts > 0 {
		log.Warn().
			Int("rows", res.MissingAmounts).
			Int("total", len(res.Transactions)).
			Msg("Rows with missing amount fields, classified as sale")
	}
	return nil
}

// LoadReferenceStep reads the targets table.
type LoadReferenceStep struct {
	Store artifacts.Store
}

func (s *LoadReferenceStep) Name() string { return "load_reference" }

func (s *LoadReferenceStep) Execute(ctx context.Context, state *PipelineState) error {
	ref, err := LoadReferenceTable(ctx, s.Store, state.ReferenceURI)
	if err != nil {
		return err
	}
	state.Reference = ref
	return nil
}

// EnrichStep joins the normalized transactions with the targets table.
type EnrichStep struct{}

func (s *EnrichStep) Name() string { return "enrich" }

func (s *EnrichStep) Execute(ctx context.Context, state *PipelineState) error {
	enriched, err := Enrich(state.Normalized, state.Reference)
	if err != nil {
		return err
	}
	state.Enriched = enriched
	return nil
}

// PersistDatasetStep replaces the persisted dataset.
type PersistDatasetStep struct {
	Store artifacts.Store
}

func (s *PersistDatasetStep) Name() string { return "persist_dataset" }

func (s *PersistDatasetStep) Execute(ctx context.Context, state *PipelineState) error {
	return dataset.Save(ctx, s.Store, state.DatasetURI, state.Enriched)
}

// LoadDestinationStep replaces a downstream table with the enriched rows.
type LoadDestinationStep struct {
	Loader SalesLoader
}

func (s *LoadDestinationStep) Name() string { return "load_" + s.Loader.Destination() }

func (s *LoadDestinationStep) Execute(ctx context.Context, state *PipelineState) error {
	return s.Loader.ReplaceSales(ctx, state.Enriched)
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Steps returns the step names in execution order.
func (p *Pipeline) Steps() []string {
	names := make([]string, len(p.steps))
	for i, s := range p.steps {
		names[i] = s.Name()
	}
	return names
}

// Execute runs all steps in the pipeline sequentially. The first failing step
// stops the run.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	if state.RunID == "" {
		state.RunID = uuid.New().String()
	}
	log := logger.WithFields(logger.FromContext(ctx), map[string]interface{}{"run_id": state.RunID})
	ctx = logger.WithContext(ctx, log)

	for i, step := range p.steps {
		started := time.Now()
		if err := step.Execute(ctx, state); err != nil {
			log.Error().
				Err(err).
				Str("step", step.Name()).
				Bool("configuration_error", IsConfigurationError(err)).
				Msg("Pipeline step failed")
			return fmt.Errorf("pipeline step %d (%s) failed: %w", i+1, step.Name(), err)
		}
		log.Debug().
			Str("step", step.Name()).
			Dur("duration", time.Since(started)).
			Msg("Pipeline step completed")
	}
	return nil
}

// Deps are the collaborators of a sales run.
type Deps struct {
	Store   artifacts.Store
	Fetcher SalesFetcher
	Loaders []SalesLoader

	// MonthlyChunks splits the API fetch into calendar months.
	MonthlyChunks bool
}

// NewDailyPipeline fetches from the sales API, normalizes, enriches and
// persists, then loads every configured destination.
func NewDailyPipeline(deps Deps) *Pipeline {
	steps := []PipelineStep{
		&FetchSalesStep{Fetcher: deps.Fetcher, Monthly: deps.MonthlyChunks},
	}
	return NewPipeline(append(steps, commonSteps(deps)...)...)
}

// NewLegacyImportPipeline reads the historical workbook instead of the API.
func NewLegacyImportPipeline(deps Deps) *Pipeline {
	steps := []PipelineStep{
		&ReadLegacyWorkbookStep{Store: deps.Store},
	}
	return NewPipeline(append(steps, commonSteps(deps)...)...)
}

func commonSteps(deps Deps) []PipelineStep {
	steps := []PipelineStep{
		&NormalizeStep{},
		&LoadReferenceStep{Store: deps.Store},
		&EnrichStep{},
		&PersistDatasetStep{Store: deps.Store},
	}
	for _, l := range deps.Loaders {
		steps = append(steps, &LoadDestinationStep{Loader: l})
	}
	return steps
}

// DailyRange returns the range fetched by the daily run: from start through
// yesterday relative to now.
func DailyRange(start civil.Date, now time.Time) (civil.Date, civil.Date) {
	return start, civil.DateOf(now).AddDays(-1)
}
