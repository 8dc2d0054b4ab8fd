// Package schema holds the JSON schema of every stream and the
// transform-then-validate step records pass through before emission.
package schema

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/5amCurfew/tap-pagerduty/models"
	"github.com/xeipuuv/gojsonschema"
)

//go:embed schemas/*.json
var files embed.FS

// Schema is one stream's JSON schema, compiled for validation
type Schema struct {
	Stream     string
	Definition map[string]interface{}
	compiled   *gojsonschema.Schema
}

// Load reads and compiles the schema of stream
func Load(stream string) (*Schema, error) {
	raw, err := files.ReadFile("schemas/" + stream + ".json")
	if err != nil {
		return nil, fmt.Errorf("no schema for stream %s: %w", stream, err)
	}

	var definition map[string]interface{}
	if err := json.Unmarshal(raw, &definition); err != nil {
		return nil, fmt.Errorf("error parsing schema for stream %s: %w", stream, err)
	}

	compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(definition))
	if err != nil {
		return nil, fmt.Errorf("error compiling schema for stream %s: %w", stream, err)
	}

	return &Schema{Stream: stream, Definition: definition, compiled: compiled}, nil
}

// Apply transforms record to the schema's types and validates the result
func (s *Schema) Apply(record models.Record) (models.Record, error) {
	transformed, err := Transform(record, s.Definition)
	if err != nil {
		return nil, &ValidationError{Stream: s.Stream, Errors: []string{err.Error()}}
	}

	out, ok := transformed.(map[string]interface{})
	if !ok {
		return nil, &ValidationError{Stream: s.Stream, Errors: []string{"record is not an object"}}
	}

	if err := s.Validate(out); err != nil {
		return nil, err
	}
	return out, nil
}

// Validate checks record against the schema without transforming it
func (s *Schema) Validate(record models.Record) error {
	result, err := s.compiled.Validate(gojsonschema.NewGoLoader(record))
	if err != nil {
		return fmt.Errorf("error validating %s record: %w", s.Stream, err)
	}
	if result.Valid() {
		return nil
	}

	var messages []string
	for _, e := range result.Errors() {
		messages = append(messages, e.String())
	}
	return &ValidationError{Stream: s.Stream, Errors: messages}
}

// ValidationError lists every schema violation of one record
type ValidationError struct {
	Stream string
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s record does not match schema: %s", e.Stream, strings.Join(e.Errors, "; "))
}

// Registry caches loaded schemas by stream
type Registry struct {
	mu      sync.Mutex
	schemas map[string]*Schema
}

func NewRegistry() *Registry {
	return &Registry{schemas: map[string]*Schema{}}
}

func (r *Registry) Get(stream string) (*Schema, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.schemas[stream]; ok {
		return s, nil
	}

	s, err := Load(stream)
	if err != nil {
		return nil, err
	}
	r.schemas[stream] = s
	return s, nil
}

// Apply has the signature of the syncer's validation hook
func (r *Registry) Apply(stream string, record models.Record) (models.Record, error) {
	s, err := r.Get(stream)
	if err != nil {
		return nil, err
	}
	return s.Apply(record)
}
