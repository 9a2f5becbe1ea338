package writer

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"google.golang.org/api/googleapi"

	"github.com/streampass/streampass-backend/internal/analytics/types"
)

type fakeInserter struct {
	calls  int
	errs   []error
	tables []string
	rows   [][]any
}

func (f *fakeInserter) InsertRows(ctx context.Context, table string, rows []any) error {
	f.calls++
	f.tables = append(f.tables, table)
	f.rows = append(f.rows, rows)
	if len(f.errs) == 0 {
		return nil
	}
	err := f.errs[0]
	f.errs = f.errs[1:]
	return err
}

func sampleRow() types.PlaybackFactRow {
	now := time.Now().UTC()
	return types.PlaybackFactRow{
		EventID:       uuid.NewString(),
		OccurredAt:    now,
		SessionID:     uuid.NewString(),
		EntitlementID: uuid.NewString(),
		StartedAt:     now.Add(-2 * time.Minute),
		EndedAt:       now,
		TotalWatchMs:  120_000,
		TotalBufferMs: 900,
		BufferEvents:  3,
	}
}

func newTestWriter(t *testing.T, client tableInserter, cfg Config) *BigQueryWriter {
	t.Helper()
	if cfg.PlaybackFactsTable == "" {
		cfg.PlaybackFactsTable = "playback_facts"
	}
	if cfg.RetryPolicy.InitialBackoff == 0 {
		cfg.RetryPolicy.InitialBackoff = time.Millisecond
		cfg.RetryPolicy.MaximumBackoff = 2 * time.Millisecond
	}
	w, err := newWithInserter(client, cfg)
	if err != nil {
		t.Fatalf("construct writer: %v", err)
	}
	return w
}

func TestWriterFlushesAtBatchSize(t *testing.T) {
	client := &fakeInserter{}
	w := newTestWriter(t, client, Config{BatchSize: 2})

	if err := w.InsertPlaybackFact(context.Background(), sampleRow()); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if client.calls != 0 {
		t.Fatalf("expected buffered row, insert called %d times", client.calls)
	}
	if err := w.InsertPlaybackFact(context.Background(), sampleRow()); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if client.calls != 1 {
		t.Fatalf("expected one flush, got %d", client.calls)
	}
	if len(client.rows[0]) != 2 {
		t.Fatalf("expected 2 rows in flush, got %d", len(client.rows[0]))
	}
	if client.tables[0] != "playback_facts" {
		t.Fatalf("wrote to table %q", client.tables[0])
	}
}

func TestWriterRetriesTransientErrors(t *testing.T) {
	client := &fakeInserter{
		errs: []error{
			&googleapi.Error{Code: http.StatusServiceUnavailable},
			nil,
		},
	}
	w := newTestWriter(t, client, Config{RetryPolicy: RetryPolicy{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaximumBackoff: 2 * time.Millisecond,
	}})

	if err := w.InsertPlaybackFact(context.Background(), sampleRow()); err != nil {
		t.Fatalf("expected retry to succeed: %v", err)
	}
	if client.calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", client.calls)
	}
}

func TestWriterDoesNotRetryPermanentErrors(t *testing.T) {
	client := &fakeInserter{
		errs: []error{
			&googleapi.Error{Code: http.StatusBadRequest},
			nil,
		},
	}
	w := newTestWriter(t, client, Config{RetryPolicy: RetryPolicy{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaximumBackoff: 2 * time.Millisecond,
	}})

	err := w.InsertPlaybackFact(context.Background(), sampleRow())
	if err == nil {
		t.Fatal("expected permanent error to surface")
	}
	if client.calls != 1 {
		t.Fatalf("expected single attempt, got %d", client.calls)
	}
}

func TestWriterKeepsBufferOnFailure(t *testing.T) {
	client := &fakeInserter{
		errs: []error{errors.New("opaque failure")},
	}
	w := newTestWriter(t, client, Config{})

	if err := w.InsertPlaybackFact(context.Background(), sampleRow()); err == nil {
		t.Fatal("expected insert error")
	}
	client.errs = nil
	if err := w.Flush(context.Background()); err != nil {
		t.Fatalf("expected flush to retry buffered row: %v", err)
	}
	if client.calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", client.calls)
	}
}
