package models

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

type Catalog struct {
	Streams []CatalogEntry `json:"streams"`
}

type CatalogEntry struct {
	TapStreamID   string                 `json:"tap_stream_id"`
	Stream        string                 `json:"stream"`
	KeyProperties []string               `json:"key_properties"`
	Schema        map[string]interface{} `json:"schema"`
	Metadata      []Metadata             `json:"metadata"`
}

// Metadata is one Singer metadata entry; an empty breadcrumb describes the stream itself
type Metadata struct {
	Breadcrumb []string               `json:"breadcrumb"`
	Metadata   map[string]interface{} `json:"metadata"`
}

// NewCatalogEntry builds the standard Singer metadata for a stream
func NewCatalogEntry(d Descriptor, schema map[string]interface{}) CatalogEntry {
	streamMeta := map[string]interface{}{
		"inclusion":                 "available",
		"selected-by-default":       true,
		"table-key-properties":      d.KeyProperties,
		"forced-replication-method": string(d.ReplicationMethod),
	}
	if len(d.ValidReplicationKeys) > 0 {
		streamMeta["valid-replication-keys"] = d.ValidReplicationKeys
	}

	metadata := []Metadata{{Breadcrumb: []string{}, Metadata: streamMeta}}

	properties, _ := schema["properties"].(map[string]interface{})
	names := make([]string, 0, len(properties))
	for name := range properties {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		inclusion := "available"
		if contains(d.KeyProperties, name) || name == d.ReplicationKey {
			inclusion = "automatic"
		}
		metadata = append(metadata, Metadata{
			Breadcrumb: []string{"properties", name},
			Metadata:   map[string]interface{}{"inclusion": inclusion},
		})
	}

	return CatalogEntry{
		TapStreamID:   d.ID,
		Stream:        d.ID,
		KeyProperties: d.KeyProperties,
		Schema:        schema,
		Metadata:      metadata,
	}
}

// IsSelected reads the stream-level "selected" flag, falling back to selected-by-default
func (e CatalogEntry) IsSelected() bool {
	for _, m := range e.Metadata {
		if len(m.Breadcrumb) != 0 {
			continue
		}
		if selected, ok := m.Metadata["selected"].(bool); ok {
			return selected
		}
		if selected, ok := m.Metadata["selected-by-default"].(bool); ok {
			return selected
		}
	}
	return false
}

// Selected returns the ids of selected streams in catalog order
func (c *Catalog) Selected() []string {
	var ids []string
	for _, entry := range c.Streams {
		if entry.IsSelected() {
			ids = append(ids, entry.TapStreamID)
		}
	}
	return ids
}

// ReadCatalog reads a catalog JSON file
func ReadCatalog(path string) (*Catalog, error) {
	catalogFile, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading catalog file: %w", err)
	}

	var catalog Catalog
	if err := json.Unmarshal(catalogFile, &catalog); err != nil {
		return nil, fmt.Errorf("error unmarshaling catalog json: %w", err)
	}
	return &catalog, nil
}
