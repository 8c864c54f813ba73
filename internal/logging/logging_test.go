package logging

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFormatRFC3339Millis(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("BRT", -3*60*60)
	ts := time.Date(2024, 3, 1, 9, 4, 5, 123_456_789, loc)
	require.Equal(t, "2024-03-01T12:04:05.123Z", FormatRFC3339Millis(ts))
	require.Equal(t, "2024-03-01T12:04:05.000Z", FormatRFC3339Millis(ts.Truncate(time.Second)))
}

func TestNew_LevelsAndEmptyAttrs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := New(&buf, false)
	log.Debug("hidden")
	log.Info("staged", "table", "pnad_staging_raw", "note", "")

	out := buf.String()
	require.NotContains(t, out, "hidden")
	require.Contains(t, out, "staged")
	require.Contains(t, out, "table=pnad_staging_raw")
	require.NotContains(t, out, "note=")
	require.NotContains(t, out, "\x1b[", "non-terminal writers get no color")

	buf.Reset()
	New(&buf, true).Debug("shown")
	require.Contains(t, buf.String(), "shown")
}
