package cmd

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/5amCurfew/tap-pagerduty/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJSONResponse(w http.ResponseWriter, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

// fakePagerDuty serves a single page for every listing
func fakePagerDuty(t *testing.T, requests *int32) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(requests, 1)
		path := strings.TrimPrefix(r.URL.Path, "/")
		parts := strings.Split(path, "/")

		switch {
		case len(parts) == 3:
			writeJSONResponse(w, map[string]interface{}{parts[2]: []interface{}{}, "more": false})
		case path == "incidents":
			var items []interface{}
			if r.URL.Query().Get("since") == "2024-01-01T00:00:00Z" {
				items = append(items, map[string]interface{}{
					"id":              "PINC1",
					"created_at":      "2024-01-02T10:00:00Z",
					"incident_number": 7,
				})
			}
			writeJSONResponse(w, map[string]interface{}{"incidents": items, "more": false})
		case path == "oncalls":
			writeJSONResponse(w, map[string]interface{}{"oncalls": []interface{}{
				map[string]interface{}{
					"schedule": map[string]interface{}{"id": "PS1"},
					"start":    "2024-01-03T00:00:00Z",
					"end":      "2024-01-04T00:00:00Z",
				},
			}, "more": false})
		default:
			writeJSONResponse(w, map[string]interface{}{path: []interface{}{map[string]interface{}{"id": "X1"}}, "more": false})
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func readMessages(t *testing.T, out *bytes.Buffer) []models.Message {
	t.Helper()
	var messages []models.Message
	scanner := bufio.NewScanner(out)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	for scanner.Scan() {
		var m models.Message
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &m))
		messages = append(messages, m)
	}
	return messages
}

func extractConfig(baseURL string) *models.Config {
	return &models.Config{
		Token:   "t",
		Email:   "e@example.com",
		Since:   "2024-01-01T00:00:00Z",
		Until:   "2024-01-06T00:00:00Z",
		BaseURL: baseURL,
	}
}

func fixedNow() time.Time {
	return time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
}

func TestExtractAllStreams(t *testing.T) {
	var requests int32
	server := fakePagerDuty(t, &requests)
	statePath := filepath.Join(t.TempDir(), "state.json")
	metricsPath := filepath.Join(t.TempDir(), "tap.prom")

	historyPath := filepath.Join(t.TempDir(), "history.json")

	cfg := extractConfig(server.URL)
	cfg.MetricsFile = metricsPath
	cfg.HistoryFile = historyPath
	cfg.Records = map[string]models.RecordConfig{
		"services": {DropFieldPaths: [][]string{{"name"}}},
	}

	var out bytes.Buffer
	execution, err := Extract(context.Background(), Options{
		Config:    cfg,
		StatePath: statePath,
		Out:       &out,
		Now:       fixedNow,
	})
	require.NoError(t, err)

	messages := readMessages(t, &out)
	var schemas, records, states []string
	for _, m := range messages {
		switch m.Type {
		case "SCHEMA":
			schemas = append(schemas, m.Stream)
		case "RECORD":
			records = append(records, m.Stream)
		case "STATE":
			states = append(states, m.Type)
		}
	}

	assert.Equal(t, []string{"incidents", "services", "notifications", "escalation_policies", "schedules", "oncalls", "users"}, schemas)
	assert.Len(t, states, 7)
	assert.Equal(t, []string{"incidents", "services", "escalation_policies", "schedules", "oncalls", "users"}, records)
	assert.Equal(t, uint64(6), execution.NewRecords)
	assert.Zero(t, execution.Retries)

	stateFile, err := os.ReadFile(statePath)
	require.NoError(t, err)
	state := models.NewState()
	require.NoError(t, json.Unmarshal(stateFile, state))
	assert.Equal(t, map[string]map[string]string{
		"incidents": {"created_at": "2024-01-02T10:00:00Z"},
		"oncalls":   {"start": "2024-01-03T00:00:00Z"},
	}, state.Snapshot())

	historyFile, err := os.ReadFile(historyPath)
	require.NoError(t, err)
	var history []ExecutionMetric
	require.NoError(t, json.Unmarshal(historyFile, &history))
	require.Len(t, history, 1)
	assert.Equal(t, uint64(6), history[0].NewRecords)
	assert.True(t, fixedNow().Equal(history[0].ExecutionStart))
	assert.True(t, fixedNow().Equal(history[0].ExecutionEnd))
	assert.Zero(t, history[0].ExecutionDuration)

	metricsFile, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(metricsFile), "tap_pagerduty_records_emitted_total")
}

func TestExtractResumesFromState(t *testing.T) {
	var requests int32
	server := fakePagerDuty(t, &requests)
	statePath := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(statePath, []byte(`{"bookmarks":{"incidents":{"created_at":"2024-01-05T00:00:00Z"}}}`), 0644))

	catalogPath := filepath.Join(t.TempDir(), "catalog.json")
	catalog, err := BuildCatalog()
	require.NoError(t, err)
	for i := range catalog.Streams {
		catalog.Streams[i].Metadata[0].Metadata["selected"] = catalog.Streams[i].TapStreamID == "incidents"
	}
	catalogJson, err := json.Marshal(catalog)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(catalogPath, catalogJson, 0644))

	var out bytes.Buffer
	execution, err := Extract(context.Background(), Options{
		Config:      extractConfig(server.URL),
		StatePath:   statePath,
		CatalogPath: catalogPath,
		Out:         &out,
		Now:         fixedNow,
	})
	require.NoError(t, err)
	assert.Zero(t, execution.NewRecords)
	require.Len(t, execution.Streams, 1)
	assert.Equal(t, "2024-01-05T00:00:00Z", execution.Streams[0].Bookmark)

	messages := readMessages(t, &out)
	require.Len(t, messages, 2)
	assert.Equal(t, "SCHEMA", messages[0].Type)
	assert.Equal(t, []string{"created_at"}, messages[0].BookmarkProperties)
	assert.Equal(t, "STATE", messages[1].Type)
}

func TestExtractConfigErrorMakesNoRequests(t *testing.T) {
	var requests int32
	server := fakePagerDuty(t, &requests)

	cfg := extractConfig(server.URL)
	cfg.Streams = map[string]map[string]interface{}{
		"users": {"statuses[]": []interface{}{"triggered"}},
	}

	var out bytes.Buffer
	_, err := Extract(context.Background(), Options{Config: cfg, Out: &out, Now: fixedNow})

	var configErr *models.ConfigError
	require.True(t, errors.As(err, &configErr))
	assert.Equal(t, int32(0), atomic.LoadInt32(&requests))
	assert.Zero(t, out.Len())
}

func TestExtractClientErrorStopsRun(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Unauthorized"}}`))
	}))
	defer server.Close()

	statePath := filepath.Join(t.TempDir(), "state.json")
	var out bytes.Buffer
	_, err := Extract(context.Background(), Options{
		Config:    extractConfig(server.URL),
		StatePath: statePath,
		Out:       &out,
		Now:       fixedNow,
	})
	require.Error(t, err)
	assert.True(t, models.IsFetchKind(err, models.FetchClient))

	_, statErr := os.Stat(statePath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestDiscover(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, Discover(&out))

	var catalog models.Catalog
	require.NoError(t, json.Unmarshal(out.Bytes(), &catalog))
	require.Len(t, catalog.Streams, 7)

	incidents := catalog.Streams[0]
	assert.Equal(t, "incidents", incidents.TapStreamID)
	assert.Equal(t, []string{"id"}, incidents.KeyProperties)
	assert.True(t, incidents.IsSelected())
	assert.Equal(t, "INCREMENTAL", incidents.Metadata[0].Metadata["forced-replication-method"])
}
