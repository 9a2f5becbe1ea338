package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/streampass/streampass-backend/pkg/enums"
)

// PlaybackSession is one viewing interval opened against an entitlement,
// closed exactly once with aggregated telemetry.
type PlaybackSession struct {
	ID               uuid.UUID                  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	EntitlementID    uuid.UUID                  `gorm:"column:entitlement_id;type:uuid;not null;index"`
	State            enums.PlaybackSessionState `gorm:"column:state;type:playback_session_state_enum;not null;default:'active'"`
	StartedAt        time.Time                  `gorm:"column:started_at;not null"`
	EndedAt          *time.Time                 `gorm:"column:ended_at"`
	TotalWatchMs     int64                      `gorm:"column:total_watch_ms;not null;default:0"`
	TotalBufferMs    int64                      `gorm:"column:total_buffer_ms;not null;default:0"`
	BufferEvents     int                        `gorm:"column:buffer_events;not null;default:0"`
	FatalErrors      int                        `gorm:"column:fatal_errors;not null;default:0"`
	StartupLatencyMs *int64                     `gorm:"column:startup_latency_ms"`
	CreatedAt        time.Time                  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time                  `gorm:"column:updated_at;autoUpdateTime"`
}
