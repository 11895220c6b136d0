package handlers

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dvloznov/sales-tracker/internal/analytics"
	"github.com/dvloznov/sales-tracker/internal/domain"
	"github.com/dvloznov/sales-tracker/internal/logger"
)

// ErrNotLoaded is returned by Snapshot.Current before the first successful load.
var ErrNotLoaded = errors.New("dataset not loaded")

// DatasetLoader reads the persisted enriched dataset.
type DatasetLoader func(ctx context.Context) ([]domain.EnrichedTransaction, error)

// Snapshot holds the dataset served by the dashboard. Reload swaps it
// atomically; requests in flight keep the snapshot they started with.
type Snapshot struct {
	mu   sync.RWMutex
	ds   *analytics.Dataset
	load DatasetLoader
}

// NewSnapshot creates an empty snapshot backed by load.
func NewSnapshot(load DatasetLoader) *Snapshot {
	return &Snapshot{load: load}
}

// Reload reads the dataset and replaces the current snapshot. On error the
// previous snapshot stays in place.
func (s *Snapshot) Reload(ctx context.Context) error {
	rows, err := s.load(ctx)
	if err != nil {
		return err
	}
	ds := analytics.NewDataset(rows, time.Now().UTC())

	s.mu.Lock()
	s.ds = ds
	s.mu.Unlock()

	log := logger.FromContext(ctx)

	log.Info().Int("rows", ds.Len()).Msg("Dashboard dataset loaded")
	return nil
}

// Current returns the dataset being served.
func (s *Snapshot) Current() (*analytics.Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.ds == nil {
		return nil, ErrNotLoaded
	}
	return s.ds, nil
}
