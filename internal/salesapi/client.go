// Package salesapi fetches raw sales transactions from the upstream sales API.
package salesapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/sales-tracker/internal/domain"
	"github.com/dvloznov/sales-tracker/internal/logger"
	"github.com/sethvargo/go-retry"
)

const (
	// DefaultMaxAttempts is the number of fetch attempts before a run fails.
	DefaultMaxAttempts = 5

	// DefaultBackoff is the fixed wait between attempts.
	DefaultBackoff = 2 * time.Second

	dateParamFormat = "20060102"
)

var (
	// ErrEmptyBatch is returned by Fetch when the API answered with no records.
	ErrEmptyBatch = errors.New("sales API returned no records")

	// ErrFetchExhausted is returned when every attempt failed or came back empty.
	ErrFetchExhausted = errors.New("sales API fetch failed after all attempts")
)

// Config holds the sales API client settings.
type Config struct {
	BaseURL     string
	AuthToken   string
	Timeout     time.Duration
	MaxAttempts int
	Backoff     time.Duration
}

// Client is an HTTP client for the sales-for-date endpoint.
type Client struct {
	baseURL     string
	authToken   string
	maxAttempts int
	backoff     time.Duration
	httpClient  *http.Client
}

// NewClient creates a Client. Zero values in cfg fall back to the package defaults.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Backoff < 0 {
		cfg.Backoff = DefaultBackoff
	}
	return &Client{
		baseURL:     cfg.BaseURL,
		authToken:   cfg.AuthToken,
		maxAttempts: cfg.MaxAttempts,
		backoff:     cfg.Backoff,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
	}
}

type salesResponse struct {
	Data json.RawMessage `json:"data"`
}

// Fetch performs a single request for the inclusive date range. An empty batch is
// reported as ErrEmptyBatch so callers can treat it like a failed request.
func (c *Client) Fetch(ctx context.Context, start, end civil.Date) ([]domain.RawTransaction, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("Fetch: parse base URL: %w", err)
	}
	q := u.Query()
	q.Set("Date1", formatDate(start))
	q.Set("Date2", formatDate(end))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("Fetch: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("Fetch: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("Fetch: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload salesResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("Fetch: decode response: %w", err)
	}

	records, err := decodeRecords(payload.Data)
	if err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Msg("Unexpected sales API response: 'data' is not a list")
		return nil, ErrEmptyBatch
	}
	if len(records) == 0 {
		return nil, ErrEmptyBatch
	}
	return records, nil
}

// FetchWithRetry calls Fetch until it returns records, waiting a fixed backoff
// between attempts. Request errors and empty batches are retried alike.
func (c *Client) FetchWithRetry(ctx context.Context, start, end civil.Date) ([]domain.RawTransaction, error) {
	log := logger.FromContext(ctx)

	var records []domain.RawTransaction
	attempt := 0
	b := retry.WithMaxRetries(uint64(c.maxAttempts-1), retry.NewConstant(c.backoffOrMin()))

	err := retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		got, err := c.Fetch(ctx, start, end)
		if err != nil {
			log.Warn().
				Err(err).
				Int("attempt", attempt).
				Int("max_attempts", c.maxAttempts).
				Str("start_date", start.String()).
				Str("end_date", end.String()).
				Msg("Sales fetch attempt failed, retrying")
			return retry.RetryableError(err)
		}
		records = got
		return nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("FetchWithRetry: %w", ctxErr)
		}
		return nil, fmt.Errorf("FetchWithRetry: %w after %d attempts: %w", ErrFetchExhausted, attempt, err)
	}

	log.Info().
		Int("records", len(records)).
		Int("attempts", attempt).
		Str("start_date", start.String()).
		Str("end_date", end.String()).
		Msg("Sales data fetched")
	return records, nil
}

// FetchRange fetches [start, end]. When monthly is set the range is split into
// calendar-month chunks, each fetched with retry, and the results concatenated.
func (c *Client) FetchRange(ctx context.Context, start, end civil.Date, monthly bool) ([]domain.RawTransaction, error) {
	if end.Before(start) {
		return nil, fmt.Errorf("FetchRange: end %s is before start %s", end, start)
	}
	if !monthly {
		return c.FetchWithRetry(ctx, start, end)
	}

	var all []domain.RawTransaction
	for _, chunk := range MonthlyChunks(start, end) {
		records, err := c.FetchWithRetry(ctx, chunk.Start, chunk.End)
		if err != nil {
			return nil, fmt.Errorf("FetchRange: chunk %s..%s: %w", chunk.Start, chunk.End, err)
		}
		all = append(all, records...)
	}
	return all, nil
}

// Chunk is an inclusive date range.
type Chunk struct {
	Start civil.Date
	End   civil.Date
}

// MonthlyChunks splits [start, end] at month boundaries. The first chunk starts at
// start and the last one is clamped to end.
func MonthlyChunks(start, end civil.Date) []Chunk {
	var chunks []Chunk
	for cur := start; !end.Before(cur); {
		last := domain.LastDayOfMonth(cur)
		if end.Before(last) {
			last = end
		}
		chunks = append(chunks, Chunk{Start: cur, End: last})
		cur = last.AddDays(1)
	}
	return chunks
}

// backoffOrMin keeps retry.NewConstant from panicking on a zero duration.
func (c *Client) backoffOrMin() time.Duration {
	if c.backoff <= 0 {
		return time.Nanosecond
	}
	return c.backoff
}

func formatDate(d civil.Date) string {
	return d.In(time.UTC).Format(dateParamFormat)
}
