package salesapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"cloud.google.com/go/civil"
)

func date(y, m, d int) civil.Date {
	return civil.Date{Year: y, Month: time.Month(m), Day: d}
}

func newTestClient(url string, attempts int) *Client {
	return NewClient(Config{BaseURL: url, MaxAttempts: attempts, Backoff: 0})
}

func TestFetch_DecodesRecordsAndParams(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("Date1"); got != "20250101" {
			t.Errorf("Date1 = %q", got)
		}
		if got := r.URL.Query().Get("Date2"); got != "20250223" {
			t.Errorf("Date2 = %q", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Authorization = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"data":[{"dateDocument":"2025-01-15T00:00:00","rucClient":20100047218,"amountUSD":-12.50,"nameSupply":"ACME","codeSeller":null}]}`)
	}))
	defer server.Close()

	c := NewClient(Config{BaseURL: server.URL, AuthToken: "secret"})
	records, err := c.Fetch(context.Background(), date(2025, 1, 1), date(2025, 2, 23))
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	rec := records[0]
	if rec["rucClient"] != "20100047218" {
		t.Errorf("rucClient = %q, want exact digits", rec["rucClient"])
	}
	if rec["amountUSD"] != "-12.50" {
		t.Errorf("amountUSD = %q, want literal -12.50", rec["amountUSD"])
	}
	if _, ok := rec["codeSeller"]; ok {
		t.Error("null fields should be absent")
	}
}

func TestFetch_EmptyAndNonListData(t *testing.T) {
	bodies := []string{`{"data":[]}`, `{"data":{"error":"x"}}`, `{}`}
	for _, body := range bodies {
		t.Run(body, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, body)
			}))
			defer server.Close()

			_, err := newTestClient(server.URL, 1).Fetch(context.Background(), date(2025, 1, 1), date(2025, 1, 2))
			if !errors.Is(err, ErrEmptyBatch) {
				t.Errorf("Fetch() error = %v, want ErrEmptyBatch", err)
			}
		})
	}
}

func TestFetchWithRetry_RecoversAfterFailures(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		switch n {
		case 1:
			w.WriteHeader(http.StatusBadGateway)
		case 2:
			fmt.Fprint(w, `{"data":[]}`)
		default:
			fmt.Fprint(w, `{"data":[{"document":"F001-1"}]}`)
		}
	}))
	defer server.Close()

	records, err := newTestClient(server.URL, 5).FetchWithRetry(context.Background(), date(2025, 1, 1), date(2025, 1, 2))
	if err != nil {
		t.Fatalf("FetchWithRetry() error = %v", err)
	}
	if len(records) != 1 || atomic.LoadInt32(&calls) != 3 {
		t.Errorf("records = %d, calls = %d; want 1 record after 3 calls", len(records), calls)
	}
}

func TestFetchWithRetry_ExhaustsBound(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		fmt.Fprint(w, `{"data":[]}`)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL, 5).FetchWithRetry(context.Background(), date(2025, 1, 1), date(2025, 1, 2))
	if !errors.Is(err, ErrFetchExhausted) {
		t.Fatalf("FetchWithRetry() error = %v, want ErrFetchExhausted", err)
	}
	if got := atomic.LoadInt32(&calls); got != 5 {
		t.Errorf("calls = %d, want 5", got)
	}
}

func TestMonthlyChunks(t *testing.T) {
	chunks := MonthlyChunks(date(2024, 1, 15), date(2024, 3, 10))
	want := []Chunk{
		{date(2024, 1, 15), date(2024, 1, 31)},
		{date(2024, 2, 1), date(2024, 2, 29)},
		{date(2024, 3, 1), date(2024, 3, 10)},
	}
	if len(chunks) != len(want) {
		t.Fatalf("got %d chunks, want %d: %v", len(chunks), len(want), chunks)
	}
	for i := range want {
		if chunks[i] != want[i] {
			t.Errorf("chunk %d = %v, want %v", i, chunks[i], want[i])
		}
	}
}

func TestFetchRange_Monthly(t *testing.T) {
	var seen []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.URL.Query().Get("Date1")+"-"+r.URL.Query().Get("Date2"))
		fmt.Fprintf(w, `{"data":[{"document":"%s"}]}`, r.URL.Query().Get("Date1"))
	}))
	defer server.Close()

	records, err := newTestClient(server.URL, 1).FetchRange(context.Background(), date(2024, 12, 20), date(2025, 1, 5), true)
	if err != nil {
		t.Fatalf("FetchRange() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if len(seen) != 2 || seen[0] != "20241220-20241231" || seen[1] != "20250101-20250105" {
		t.Errorf("requests = %v", seen)
	}
}
