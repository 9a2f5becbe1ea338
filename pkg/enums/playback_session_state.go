package enums

import "fmt"

// PlaybackSessionState maps to the playback_session_state_enum enum in Postgres.
type PlaybackSessionState string

const (
	PlaybackSessionActive PlaybackSessionState = "active"
	PlaybackSessionEnded  PlaybackSessionState = "ended"
)

var validPlaybackSessionStates = []PlaybackSessionState{
	PlaybackSessionActive,
	PlaybackSessionEnded,
}

// IsValid reports whether the value matches the canonical session state enum.
func (s PlaybackSessionState) IsValid() bool {
	for _, candidate := range validPlaybackSessionStates {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParsePlaybackSessionState converts raw input into PlaybackSessionState.
func ParsePlaybackSessionState(value string) (PlaybackSessionState, error) {
	for _, candidate := range validPlaybackSessionStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid playback session state %q", value)
}
