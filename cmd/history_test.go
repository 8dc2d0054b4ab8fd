package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendToHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")

	require.NoError(t, AppendToHistory(path, ExecutionMetric{NewRecords: 3}))
	require.NoError(t, AppendToHistory(path, ExecutionMetric{NewRecords: 5}))

	historyFile, err := os.ReadFile(path)
	require.NoError(t, err)

	var history []ExecutionMetric
	require.NoError(t, json.Unmarshal(historyFile, &history))
	require.Len(t, history, 2)
	assert.Equal(t, uint64(3), history[0].NewRecords)
	assert.Equal(t, uint64(5), history[1].NewRecords)
}

func TestAppendToHistoryRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0644))

	assert.Error(t, AppendToHistory(path, ExecutionMetric{}))
}
