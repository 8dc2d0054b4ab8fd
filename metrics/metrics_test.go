package metrics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteTextfile(t *testing.T) {
	RecordsEmitted.WithLabelValues("metrics_test").Add(3)
	assert.Equal(t, float64(3), testutil.ToFloat64(RecordsEmitted.WithLabelValues("metrics_test")))

	path := filepath.Join(t.TempDir(), "tap.prom")
	require.NoError(t, WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `tap_pagerduty_records_emitted_total{stream="metrics_test"} 3`)
}
