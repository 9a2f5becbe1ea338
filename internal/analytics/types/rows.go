package types

import (
	"time"
)

// PlaybackFactRow mirrors the playback_facts BigQuery schema. One row
// per closed playback session.
type PlaybackFactRow struct {
	EventID          string    `bigquery:"event_id"`
	OccurredAt       time.Time `bigquery:"occurred_at"`
	SessionID        string    `bigquery:"session_id"`
	EntitlementID    string    `bigquery:"entitlement_id"`
	StartedAt        time.Time `bigquery:"started_at"`
	EndedAt          time.Time `bigquery:"ended_at"`
	TotalWatchMs     int64     `bigquery:"total_watch_ms"`
	TotalBufferMs    int64     `bigquery:"total_buffer_ms"`
	BufferEvents     int64     `bigquery:"buffer_events"`
	FatalErrors      int64     `bigquery:"fatal_errors"`
	StartupLatencyMs *int64    `bigquery:"startup_latency_ms"`
}
