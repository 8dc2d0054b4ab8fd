package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/5amCurfew/tap-pagerduty/models"
	"github.com/5amCurfew/tap-pagerduty/schema"
	"github.com/5amCurfew/tap-pagerduty/sources"
)

// BuildCatalog describes every available stream
func BuildCatalog() (*models.Catalog, error) {
	catalog := &models.Catalog{}
	for _, d := range sources.AvailableStreams {
		s, err := schema.Load(d.ID)
		if err != nil {
			return nil, err
		}
		catalog.Streams = append(catalog.Streams, models.NewCatalogEntry(d, s.Definition))
	}
	return catalog, nil
}

// Discover writes the catalog to w
func Discover(w io.Writer) error {
	catalog, err := BuildCatalog()
	if err != nil {
		return fmt.Errorf("error building catalog: %w", err)
	}

	catalogJson, err := json.MarshalIndent(catalog, "", "  ")
	if err != nil {
		return fmt.Errorf("error marshalling catalog: %w", err)
	}

	if _, err := w.Write(append(catalogJson, '\n')); err != nil {
		return fmt.Errorf("error writing catalog: %w", err)
	}
	return nil
}
