package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/5amCurfew/tap-pagerduty/bookmark"
	"github.com/5amCurfew/tap-pagerduty/metrics"
	"github.com/5amCurfew/tap-pagerduty/models"
	"github.com/5amCurfew/tap-pagerduty/schema"
	"github.com/5amCurfew/tap-pagerduty/sources"
	log "github.com/sirupsen/logrus"
)

type ExecutionMetric struct {
	ExecutionStart    time.Time            `json:"execution_start,omitempty"`
	ExecutionEnd      time.Time            `json:"execution_end,omitempty"`
	ExecutionDuration time.Duration        `json:"execution_duration,omitempty"`
	NewRecords        uint64               `json:"new_records"`
	Retries           int                  `json:"retries"`
	Streams           []sources.SyncResult `json:"streams,omitempty"`
}

// Options for one extract run
type Options struct {
	Config      *models.Config
	StatePath   string
	CatalogPath string
	Refresh     bool
	Out         io.Writer

	// Fetcher replaces the PagerDuty client built from Config
	Fetcher sources.Fetcher
	Now     func() time.Time
}

// Extract syncs every selected stream, writing Singer messages to opts.Out
// and checkpointing state after each stream.
func Extract(ctx context.Context, opts Options) (*ExecutionMetric, error) {
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}

	var execution ExecutionMetric
	execution.ExecutionStart = now().UTC()

	ids, err := selectedStreams(opts.CatalogPath)
	if err != nil {
		return nil, err
	}

	// every stream is validated before the first request
	streams, err := sources.BuildStreams(ids, opts.Config, now().UTC())
	if err != nil {
		return nil, err
	}

	transforms, err := sources.BuildTransforms(streams, opts.Config)
	if err != nil {
		return nil, err
	}

	registry := schema.NewRegistry()
	for _, stream := range streams {
		if _, err := registry.Get(stream.Descriptor.ID); err != nil {
			return nil, err
		}
	}

	store, err := bookmark.Open(ctx, opts.Config, opts.StatePath)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	state, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("error loading state: %w", err)
	}

	if opts.Config.MetricsFile != "" {
		defer func() {
			if err := metrics.WriteTextfile(opts.Config.MetricsFile); err != nil {
				log.WithFields(log.Fields{"error": err}).Warn("failed to write metrics")
			}
		}()
	}

	fetcher := opts.Fetcher
	var client *sources.Client
	if fetcher == nil {
		client = sources.NewClientFromConfig(opts.Config)
		fetcher = client
	}

	writer := models.NewMessageWriter(opts.Out)
	validate := func(stream string, record models.Record) (models.Record, error) {
		if t, ok := transforms[stream]; ok {
			record = t.Apply(record)
		}
		return registry.Apply(stream, record)
	}
	syncer := sources.NewSyncer(fetcher, state, validate, writer.WriteRecord)
	syncer.Refresh = opts.Refresh

	for _, stream := range streams {
		d := stream.Descriptor
		s, _ := registry.Get(d.ID)

		var bookmarkProperties []string
		if d.IsIncremental() {
			bookmarkProperties = []string{d.ReplicationKey}
		}
		if err := writer.WriteSchema(d.ID, s.Definition, d.KeyProperties, bookmarkProperties); err != nil {
			return nil, err
		}

		log.WithFields(log.Fields{"stream": d.ID, "replication_method": d.ReplicationMethod}).Info("syncing stream")
		result, err := syncer.Sync(ctx, stream)
		if err != nil {
			return nil, err
		}
		execution.Streams = append(execution.Streams, result)
		execution.NewRecords += uint64(result.Records)

		if err := writer.WriteState(state); err != nil {
			return nil, err
		}
		if err := store.Save(ctx, state); err != nil {
			return nil, err
		}
	}

	if client != nil {
		execution.Retries = client.Retries()
	}
	execution.ExecutionEnd = now().UTC()
	execution.ExecutionDuration = execution.ExecutionEnd.Sub(execution.ExecutionStart)
	log.WithFields(log.Fields{"metrics": execution}).Info("execution metrics")

	if opts.Config.HistoryFile != "" {
		if err := AppendToHistory(opts.Config.HistoryFile, execution); err != nil {
			log.WithFields(log.Fields{"error": err}).Warn("failed to append execution history")
		}
	}
	return &execution, nil
}

// selectedStreams returns the streams to sync in sync order. Without a
// catalog every stream is selected.
func selectedStreams(catalogPath string) ([]string, error) {
	if catalogPath == "" {
		return sources.StreamIDs(), nil
	}

	catalog, err := models.ReadCatalog(catalogPath)
	if err != nil {
		return nil, err
	}

	selected := map[string]bool{}
	for _, id := range catalog.Selected() {
		if _, ok := sources.LookupStream(id); !ok {
			return nil, &models.ConfigError{Stream: id, Message: "catalog selects an unknown stream"}
		}
		selected[id] = true
	}

	var ids []string
	for _, id := range sources.StreamIDs() {
		if selected[id] {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
