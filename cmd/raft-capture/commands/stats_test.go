package commands

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robdobsn/raftgo/pkg/protolog"
)

func TestRunStats(t *testing.T) {
	path := writeCapture(t)

	var buf bytes.Buffer
	require.NoError(t, RunStats(path, &buf))

	out := buf.String()
	assert.Contains(t, out, "Total Events: 4")
	assert.Contains(t, out, "FRAME:")
	assert.Contains(t, out, "RECORD:")
	assert.Contains(t, out, "LIFECYCLE:")
	assert.Contains(t, out, "Devices: 1")
	assert.Contains(t, out, "[0_10] 2 events, 3 samples")
	assert.Contains(t, out, "Last state: pending-deletion")
	assert.Contains(t, out, "Errors: 1")
}

func TestRunStatsEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.rcap")
	logger, err := protolog.NewFileLogger(path)
	require.NoError(t, err)
	require.NoError(t, logger.Close())

	var buf bytes.Buffer
	require.NoError(t, RunStats(path, &buf))
	assert.Contains(t, buf.String(), "Total Events: 0")
}

func TestRunStatsMissingFile(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, RunStats(filepath.Join(t.TempDir(), "missing.rcap"), &buf))
}
