package sources

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/5amCurfew/tap-pagerduty/metrics"
	"github.com/5amCurfew/tap-pagerduty/models"
	log "github.com/sirupsen/logrus"
)

const subResourceLimit = 100

// ValidateFunc transforms and validates a record against its stream schema
type ValidateFunc func(stream string, record models.Record) (models.Record, error)

// SinkFunc receives every record the syncer emits
type SinkFunc func(stream string, emittedAt time.Time, record models.Record) error

// SyncResult summarises one stream sync
type SyncResult struct {
	Stream   string
	Records  int
	Skipped  int
	Windows  int
	Pages    int
	Bookmark string
}

// Syncer drives one stream at a time through windows, pages, filtering,
// enrichment and emission. Behaviour per stream comes from its Descriptor.
type Syncer struct {
	Fetcher   Fetcher
	Bookmarks models.BookmarkStore
	Validate  ValidateFunc
	Sink      SinkFunc

	// Refresh ignores stored bookmarks when choosing what to fetch. The
	// bookmark written afterwards still never moves backwards.
	Refresh bool

	now func() time.Time
}

func NewSyncer(fetcher Fetcher, bookmarks models.BookmarkStore, validate ValidateFunc, sink SinkFunc) *Syncer {
	return &Syncer{
		Fetcher:   fetcher,
		Bookmarks: bookmarks,
		Validate:  validate,
		Sink:      sink,
		now:       time.Now,
	}
}

// Sync extracts one stream
func (s *Syncer) Sync(ctx context.Context, stream *Stream) (SyncResult, error) {
	d := stream.Descriptor
	start := s.now()

	var (
		result SyncResult
		err    error
	)
	if d.IsIncremental() {
		result, err = s.syncIncremental(ctx, stream)
	} else {
		result, err = s.syncFullTable(ctx, stream)
	}
	result.Stream = d.ID

	duration := s.now().Sub(start)
	metrics.SyncDuration.WithLabelValues(d.ID).Observe(duration.Seconds())

	status := "succeeded"
	if err != nil {
		status = "failed"
	}
	log.WithFields(log.Fields{
		"type":   "timer",
		"metric": "job_duration",
		"value":  duration.Seconds(),
		"tags":   log.Fields{"endpoint": d.ID, "status": status},
	}).Info("METRIC")
	log.WithFields(log.Fields{
		"type":   "counter",
		"metric": "record_count",
		"value":  result.Records,
		"tags":   log.Fields{"endpoint": d.ID},
	}).Info("METRIC")

	if err != nil {
		return result, fmt.Errorf("error syncing stream %s: %w", d.ID, err)
	}
	return result, nil
}

func (s *Syncer) syncFullTable(ctx context.Context, stream *Stream) (SyncResult, error) {
	d := stream.Descriptor
	var result SyncResult

	pager, err := ListResource(ctx, s.Fetcher, "/"+d.ID, d.ID, stream.Params)
	if err != nil {
		return result, err
	}

	for page, ok := pager.Next(ctx); ok; page, ok = pager.Next(ctx) {
		result.Pages++
		for _, record := range page.Records {
			o, err := s.process(ctx, d, record, nil, nil)
			if err != nil {
				return result, err
			}
			result.count(o)
		}
	}
	if err := pager.Err(); err != nil {
		return result, err
	}

	log.WithFields(log.Fields{"stream": d.ID, "records": result.Records, "pages": result.Pages}).Info("full table sync complete")
	return result, nil
}

func (s *Syncer) syncIncremental(ctx context.Context, stream *Stream) (SyncResult, error) {
	d := stream.Descriptor
	var result SyncResult

	stored, hasStored := s.Bookmarks.GetBookmark(d.ID, d.ReplicationKey)

	var watermark *time.Time
	if hasStored {
		w, err := models.ParseTimestamp(stored)
		if err != nil {
			return result, fmt.Errorf("stored bookmark %s.%s is not a timestamp: %w", d.ID, d.ReplicationKey, err)
		}
		watermark = &w
	}

	since, err := models.ParseTimestamp(stream.Params.Get("since"))
	if err != nil {
		return result, &models.ConfigError{Stream: d.ID, Param: "since", Message: err.Error()}
	}
	until, err := models.ParseTimestamp(stream.Params.Get("until"))
	if err != nil {
		return result, &models.ConfigError{Stream: d.ID, Param: "until", Message: err.Error()}
	}

	// filter is the lower bound records are compared against
	filter := watermark
	if s.Refresh {
		filter = nil
	}
	if filter != nil {
		since = *filter
	}

	log.WithFields(log.Fields{
		"stream":   d.ID,
		"since":    models.FormatTimestamp(since),
		"until":    models.FormatTimestamp(until),
		"bookmark": stored,
		"refresh":  s.Refresh,
	}).Info("starting incremental sync")

	var running *time.Time
	planner := NewWindowPlanner(since, until, d.MaxWindow)
	for window, ok := planner.Next(); ok; window, ok = planner.Next() {
		result.Windows++
		params := stream.Params.
			With("since", models.FormatTimestamp(window.Since)).
			With("until", models.FormatTimestamp(window.Until)).
			With("offset", "0")

		pager, err := ListResource(ctx, s.Fetcher, "/"+d.ID, d.ID, params)
		if err != nil {
			return result, err
		}

		for page, ok := pager.Next(ctx); ok; page, ok = pager.Next(ctx) {
			result.Pages++
			for _, record := range page.Records {
				o, err := s.process(ctx, d, record, filter, &running)
				if err != nil {
					return result, err
				}
				result.count(o)
			}
		}
		if err := pager.Err(); err != nil {
			return result, err
		}

		log.WithFields(log.Fields{
			"stream":  d.ID,
			"since":   models.FormatTimestamp(window.Since),
			"until":   models.FormatTimestamp(window.Until),
			"records": result.Records,
		}).Debug("window complete")
	}

	result.Bookmark = stored
	if running == nil {
		log.WithFields(log.Fields{"stream": d.ID, "bookmark": stored}).Info("no records emitted, bookmark unchanged")
		return result, nil
	}

	next := *running
	if watermark != nil && watermark.After(next) {
		next = *watermark
	}
	result.Bookmark = models.FormatTimestamp(next)
	s.Bookmarks.SetBookmark(d.ID, d.ReplicationKey, result.Bookmark)

	log.WithFields(log.Fields{"stream": d.ID, "bookmark": result.Bookmark, "records": result.Records}).Info("incremental sync complete")
	return result, nil
}

type outcome int

const (
	failed outcome = iota
	emitted
	filtered
	skipped
)

func (r *SyncResult) count(o outcome) {
	switch o {
	case emitted:
		r.Records++
	case skipped:
		r.Skipped++
	}
}

// process runs one raw record through prepare, filter, enrich, validate and sink
func (s *Syncer) process(ctx context.Context, d models.Descriptor, record models.Record, filter *time.Time, running **time.Time) (outcome, error) {
	if d.Prepare != nil {
		if err := d.Prepare(record); err != nil {
			return skipped, s.skip(d, err)
		}
	}

	var key time.Time
	if d.IsIncremental() {
		raw, ok := d.Accessor(d.ReplicationKey)(record)
		if !ok {
			return skipped, s.skip(d, &models.DataError{Stream: d.ID, Message: fmt.Sprintf("record has no %s", d.ReplicationKey)})
		}

		var err error
		key, err = models.ParseTimestamp(raw)
		if err != nil {
			return failed, fmt.Errorf("replication key %s of %s record: %w", d.ReplicationKey, d.ID, err)
		}
		if filter != nil && key.Before(*filter) {
			return filtered, nil
		}
	}

	if err := s.enrich(ctx, d, record); err != nil {
		return failed, err
	}

	transformed, err := s.Validate(d.ID, record)
	if err != nil {
		return failed, err
	}

	if err := s.Sink(d.ID, s.now(), transformed); err != nil {
		return failed, err
	}
	metrics.RecordsEmitted.WithLabelValues(d.ID).Inc()

	if d.IsIncremental() && (*running == nil || key.After(**running)) {
		*running = &key
	}
	return emitted, nil
}

func (s *Syncer) skip(d models.Descriptor, err error) error {
	var dataErr *models.DataError
	if !errors.As(err, &dataErr) {
		return err
	}
	metrics.RecordsSkipped.WithLabelValues(d.ID).Inc()
	log.WithFields(log.Fields{"stream": d.ID, "reason": dataErr.Message}).Warn("skipping record")
	return nil
}

func (s *Syncer) enrich(ctx context.Context, d models.Descriptor, record models.Record) error {
	if len(d.SubResources) == 0 {
		return nil
	}

	id, ok := d.Accessor("id")(record)
	if !ok {
		return fmt.Errorf("%s record has no id to enrich", d.ID)
	}

	params := models.NewParams().
		With("limit", strconv.Itoa(subResourceLimit)).
		With("offset", "0").
		With("time_zone", "UTC")

	for _, sub := range d.SubResources {
		children, err := CollectAll(ctx, s.Fetcher, sub.Path(id), sub.Field, params)
		if err != nil {
			return fmt.Errorf("error fetching %s for %s %s: %w", sub.Field, d.ID, id, err)
		}

		items := make([]interface{}, 0, len(children))
		for _, child := range children {
			items = append(items, child)
		}
		record[sub.Field] = items
	}
	return nil
}
