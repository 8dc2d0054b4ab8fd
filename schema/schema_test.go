package schema

import (
	"errors"
	"testing"

	"github.com/5amCurfew/tap-pagerduty/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var streams = []string{"incidents", "notifications", "oncalls", "services", "escalation_policies", "schedules", "users"}

func TestLoadEveryStream(t *testing.T) {
	for _, stream := range streams {
		s, err := Load(stream)
		require.NoError(t, err, stream)

		properties, ok := s.Definition["properties"].(map[string]interface{})
		require.True(t, ok, stream)
		assert.Contains(t, properties, "id", stream)
	}

	_, err := Load("widgets")
	assert.Error(t, err)
}

func TestTransformNormalisesTypes(t *testing.T) {
	definition := map[string]interface{}{
		"type": []interface{}{"null", "object"},
		"properties": map[string]interface{}{
			"created_at": map[string]interface{}{"type": []interface{}{"null", "string"}, "format": "date-time"},
			"count":      map[string]interface{}{"type": []interface{}{"null", "integer"}},
			"ratio":      map[string]interface{}{"type": "number"},
			"nested": map[string]interface{}{
				"type": "array",
				"items": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"at": map[string]interface{}{"type": "string", "format": "date-time"},
					},
				},
			},
		},
	}

	record := map[string]interface{}{
		"created_at": "2024-01-02T10:00:00+02:00",
		"count":      float64(3),
		"ratio":      float64(1),
		"nested":     []interface{}{map[string]interface{}{"at": "2024-01-02 08:00:00"}},
		"extra":      "kept",
	}

	out, err := Transform(record, definition)
	require.NoError(t, err)

	got := out.(map[string]interface{})
	assert.Equal(t, "2024-01-02T08:00:00Z", got["created_at"])
	assert.Equal(t, int64(3), got["count"])
	assert.Equal(t, float64(1), got["ratio"])
	assert.Equal(t, "2024-01-02T08:00:00Z", got["nested"].([]interface{})[0].(map[string]interface{})["at"])
	assert.Equal(t, "kept", got["extra"])

	// the input is left alone
	assert.Equal(t, float64(3), record["count"])
}

func TestTransformRejectsBadTimestamp(t *testing.T) {
	definition := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"start": map[string]interface{}{"type": "string", "format": "date-time"},
		},
	}

	_, err := Transform(map[string]interface{}{"start": "tomorrow"}, definition)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start")
}

func TestApplyOncall(t *testing.T) {
	s, err := Load("oncalls")
	require.NoError(t, err)

	record := models.Record{
		"id":               "PS12024-01-01T00:00:00Z2024-01-02T00:00:00Z",
		"escalation_level": float64(1),
		"start":            "2024-01-01T00:00:00Z",
		"end":              "2024-01-02T00:00:00Z",
		"schedule":         map[string]interface{}{"id": "PS1", "type": "schedule_reference"},
	}

	out, err := s.Apply(record)
	require.NoError(t, err)
	assert.Equal(t, int64(1), out["escalation_level"])
}

func TestApplyRejectsSchemaViolation(t *testing.T) {
	s, err := Load("users")
	require.NoError(t, err)

	_, err = s.Apply(models.Record{"id": "U1", "teams": "not-a-list"})
	var validationErr *ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.Equal(t, "users", validationErr.Stream)
	assert.NotEmpty(t, validationErr.Errors)
}

func TestRegistryCachesSchemas(t *testing.T) {
	registry := NewRegistry()

	first, err := registry.Get("services")
	require.NoError(t, err)
	second, err := registry.Get("services")
	require.NoError(t, err)
	assert.Same(t, first, second)

	out, err := registry.Apply("services", models.Record{"id": "S1", "name": "api"})
	require.NoError(t, err)
	assert.Equal(t, "api", out["name"])

	_, err = registry.Apply("widgets", models.Record{})
	assert.Error(t, err)
}
