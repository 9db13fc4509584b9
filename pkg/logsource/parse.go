package logsource

import (
	"strings"
	"time"

	"github.com/cuemby/fleetctl/pkg/coretypes"
)

// splitTimestamp pulls a leading RFC3339(Nano) timestamp off a raw engine
// log line, as produced when the caller asked for timestamps. Docker
// separates the timestamp from the message with a single space.
func splitTimestamp(line string) (time.Time, string, bool) {
	sp := strings.IndexByte(line, ' ')
	if sp < 0 {
		return time.Time{}, line, false
	}
	ts, err := time.Parse(time.RFC3339Nano, line[:sp])
	if err != nil {
		return time.Time{}, line, false
	}
	return ts, line[sp+1:], true
}

// detectLevel does a case-insensitive keyword scan of a message for the
// level it implies. Unmatched lines default to info.
func detectLevel(message string) coretypes.LogLevel {
	lower := strings.ToLower(message)
	switch {
	case containsAny(lower, "critical", "fatal", "panic"):
		return coretypes.LevelCritical
	case containsAny(lower, "error", "err ", "fail"):
		return coretypes.LevelError
	case strings.HasPrefix(lower, "err:") || strings.Contains(lower, " err:"):
		return coretypes.LevelError
	case containsAny(lower, "warn"):
		return coretypes.LevelWarning
	case containsAny(lower, "debug", "trace"):
		return coretypes.LevelDebug
	case containsAny(lower, "info", "notice"):
		return coretypes.LevelInfo
	default:
		return coretypes.LevelInfo
	}
}

func containsAny(s string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

// sinceString and untilString format StreamOptions' time bounds for the
// Docker API as RFC3339Nano timestamp strings, empty when unset.
func sinceString(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339Nano)
}

func untilString(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339Nano)
}

// normalizeLine turns one raw engine log line into a LogEntry, parsing a
// leading timestamp if present and defaulting to now otherwise.
func normalizeLine(line string, source coretypes.SourceType, sourceID, hostID string, metadata map[string]string) coretypes.LogEntry {
	ts, rest, hasTS := splitTimestamp(line)
	if !hasTS {
		ts = time.Now()
		rest = line
	}
	rest = strings.TrimRight(rest, "\r\n")

	return coretypes.LogEntry{
		Timestamp: ts,
		Source:    source,
		SourceID:  sourceID,
		HostID:    hostID,
		Level:     detectLevel(rest),
		Message:   rest,
		Metadata:  metadata,
		Raw:       line,
	}
}
