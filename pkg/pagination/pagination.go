// Package pagination implements the opaque keyset cursors used by list
// endpoints. Listings run newest first on (created_at, id); the cursor
// pins the last row a caller has seen so the next page resumes strictly
// after it, stable under concurrent inserts.
package pagination

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultLimit is the page size when the caller does not ask for one.
	DefaultLimit = 25
	// MaxLimit caps how many rows any single page can request.
	MaxLimit = 100
)

// Params carries the raw pagination inputs off a list request.
type Params struct {
	Limit  int
	Cursor string
}

// Cursor identifies the last row of the previous page. LastID breaks
// ties between rows sharing a creation timestamp.
type Cursor struct {
	LastSeenAt time.Time
	LastID     uuid.UUID
}

// NormalizeLimit clamps a requested page size into [1, MaxLimit],
// substituting the default for absent or non-positive values.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// LimitWithBuffer returns the clamped limit plus one sentinel row, used
// to detect whether another page exists without a count query.
func LimitWithBuffer(limit int) int {
	return NormalizeLimit(limit) + 1
}

// EncodeCursor renders a cursor as an opaque URL-safe token.
func EncodeCursor(cursor Cursor) string {
	payload := cursor.LastID.String() + "@" + strconv.FormatInt(cursor.LastSeenAt.UTC().UnixNano(), 10)
	return base64.RawURLEncoding.EncodeToString([]byte(payload))
}

// ParseCursor decodes a token produced by EncodeCursor. An empty token
// means the first page and yields a nil cursor.
func ParseCursor(value string) (*Cursor, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}

	decoded, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}
	id, nanos, found := strings.Cut(string(decoded), "@")
	if !found {
		return nil, fmt.Errorf("malformed cursor")
	}
	lastID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor id: %w", err)
	}
	unixNanos, err := strconv.ParseInt(nanos, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor timestamp: %w", err)
	}
	return &Cursor{
		LastSeenAt: time.Unix(0, unixNanos).UTC(),
		LastID:     lastID,
	}, nil
}
