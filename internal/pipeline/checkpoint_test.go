package pipeline

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.yaml")

	want := State{
		WatermarkUTC: time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC),
		LastRunUTC:   time.Date(2026, 3, 2, 6, 4, 12, 0, time.UTC),
		LastLoaded:   8812,
	}
	require.NoError(t, SaveState(path, want))

	got, err := LoadState(path)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, want.WatermarkUTC.Equal(got.WatermarkUTC))
	assert.True(t, want.LastRunUTC.Equal(got.LastRunUTC))
	assert.Equal(t, want.LastLoaded, got.LastLoaded)
}

func TestLoadStateMissingFile(t *testing.T) {
	st, err := LoadState(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Nil(t, st, "a missing state file is a fresh start")
}

func TestLoadStateCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{not yaml: ["), 0o644))

	_, err := LoadState(path)
	assert.Error(t, err)
}
