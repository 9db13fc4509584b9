package logsource

import (
	"testing"
	"time"

	"github.com/cuemby/fleetctl/pkg/coretypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectLevel_KeywordTable(t *testing.T) {
	cases := []struct {
		message string
		want    coretypes.LogLevel
	}{
		{"process exited: panic: runtime error", coretypes.LevelCritical},
		{"fatal: could not connect", coretypes.LevelCritical},
		{"CRITICAL disk usage at 99%", coretypes.LevelCritical},
		{"Error: connection refused", coretypes.LevelError},
		{"task failed: exit 1", coretypes.LevelError},
		{"err: unexpected EOF", coretypes.LevelError},
		{"request err 500", coretypes.LevelError},
		{"WARN: deprecated flag in use", coretypes.LevelWarning},
		{"debug: entering handler", coretypes.LevelDebug},
		{"trace: request id abc123", coretypes.LevelDebug},
		{"notice: starting up", coretypes.LevelInfo},
		{"listening on :8080", coretypes.LevelInfo},
	}

	for _, c := range cases {
		t.Run(c.message, func(t *testing.T) {
			assert.Equal(t, c.want, detectLevel(c.message))
		})
	}
}

func TestSplitTimestamp_ParsesLeadingRFC3339Nano(t *testing.T) {
	ts, rest, ok := splitTimestamp("2024-01-02T03:04:05.123456789Z container started")
	require.True(t, ok)
	assert.Equal(t, "container started", rest)
	assert.Equal(t, 2024, ts.Year())
}

func TestSplitTimestamp_NoTimestampReturnsFalse(t *testing.T) {
	_, rest, ok := splitTimestamp("container started with no timestamp")
	assert.False(t, ok)
	assert.Equal(t, "container started with no timestamp", rest)
}

func TestNormalizeLine_UsesParsedTimestampAndDetectedLevel(t *testing.T) {
	entry := normalizeLine("2024-01-02T03:04:05Z task failed: exit 1\n", coretypes.SourceContainer, "c1", "host-1", nil)
	assert.Equal(t, coretypes.LevelError, entry.Level)
	assert.Equal(t, "task failed: exit 1", entry.Message)
	assert.Equal(t, 2024, entry.Timestamp.Year())
}

func TestNormalizeLine_DefaultsTimestampWhenAbsent(t *testing.T) {
	before := time.Now()
	entry := normalizeLine("no timestamp here", coretypes.SourceContainer, "c1", "host-1", nil)
	assert.False(t, entry.Timestamp.Before(before))
	assert.Equal(t, coretypes.LevelInfo, entry.Level)
}

func TestSinceUntilString_FormatsOrEmptyForZero(t *testing.T) {
	assert.Equal(t, "", sinceString(time.Time{}))
	assert.Equal(t, "", untilString(time.Time{}))

	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	assert.NotEmpty(t, sinceString(ts))
	assert.NotEmpty(t, untilString(ts))
}
