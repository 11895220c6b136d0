package artifacts

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func TestParseGCSURI(t *testing.T) {
	tests := []struct {
		uri        string
		wantBucket string
		wantObject string
		wantErr    bool
	}{
		{"gs://sales/raw/metas.xlsx", "sales", "raw/metas.xlsx", false},
		{"gs://sales/file.csv", "sales", "file.csv", false},
		{"gs://sales", "", "", true},
		{"gs://sales/", "", "", true},
		{"/tmp/file.csv", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			bucket, object, err := ParseGCSURI(tt.uri)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseGCSURI() error = %v, wantErr %v", err, tt.wantErr)
			}
			if bucket != tt.wantBucket || object != tt.wantObject {
				t.Errorf("ParseGCSURI() = %q, %q; want %q, %q", bucket, object, tt.wantBucket, tt.wantObject)
			}
		})
	}
}

func TestFilenameFromURI(t *testing.T) {
	tests := map[string]string{
		"gs://bucket/folder/metas.xlsx": "metas.xlsx",
		"/data/process/sales.csv":       "sales.csv",
		"file:///data/sales.csv":        "sales.csv",
	}
	for in, want := range tests {
		if got := FilenameFromURI(in); got != want {
			t.Errorf("FilenameFromURI(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLocalStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewLocalStore()
	path := filepath.Join(t.TempDir(), "process", "sales.csv")

	if err := store.Write(ctx, path, []byte("a,b\n1,2\n"), "text/csv"); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	data, err := store.Read(ctx, "file://"+path)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if string(data) != "a,b\n1,2\n" {
		t.Errorf("Read() = %q", data)
	}
}

func TestLocalStore_NotFound(t *testing.T) {
	_, err := NewLocalStore().Read(context.Background(), filepath.Join(t.TempDir(), "missing.xlsx"))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Read() error = %v, want ErrNotFound", err)
	}
}

type recordingStore struct {
	reads []string
}

func (s *recordingStore) Read(ctx context.Context, uri string) ([]byte, error) {
	s.reads = append(s.reads, uri)
	return nil, nil
}

func (s *recordingStore) Write(ctx context.Context, uri string, data []byte, contentType string) error {
	return nil
}

func TestRouter_Dispatch(t *testing.T) {
	local, gcs := &recordingStore{}, &recordingStore{}
	r := &Router{Local: local, GCS: gcs}

	_, _ = r.Read(context.Background(), "gs://bucket/metas.xlsx")
	_, _ = r.Read(context.Background(), "/data/metas.xlsx")

	if len(gcs.reads) != 1 || gcs.reads[0] != "gs://bucket/metas.xlsx" {
		t.Errorf("gcs reads = %v", gcs.reads)
	}
	if len(local.reads) != 1 || local.reads[0] != "/data/metas.xlsx" {
		t.Errorf("local reads = %v", local.reads)
	}
}
