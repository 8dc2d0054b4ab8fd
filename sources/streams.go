package sources

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/5amCurfew/tap-pagerduty/models"
)

const day = 24 * time.Hour

var Incidents = models.Descriptor{
	ID:                   "incidents",
	KeyProperties:        []string{"id"},
	ReplicationMethod:    models.Incremental,
	ReplicationKey:       "created_at",
	ValidReplicationKeys: []string{"created_at"},
	ValidParams: []string{
		"since",
		"until",
		"date_range",
		"statuses[]",
		"incident_key",
		"service_ids[]",
		"team_ids[]",
		"user_ids[]",
		"urgencies[]",
		"time_zone",
		"sort_by",
		"include[]",
	},
	RequiredParams: []string{"since", "until"},
	MaxWindow:      7 * day,
	Accessors: map[string]models.FieldAccessor{
		"id":         models.Field("id"),
		"created_at": models.Field("created_at"),
	},
	SubResources: []models.SubResource{
		{Field: "log_entries", Path: func(id string) string { return "/incidents/" + id + "/log_entries" }},
		{Field: "alerts", Path: func(id string) string { return "/incidents/" + id + "/alerts" }},
	},
}

var Notifications = models.Descriptor{
	ID:                   "notifications",
	KeyProperties:        []string{"id"},
	ReplicationMethod:    models.Incremental,
	ReplicationKey:       "started_at",
	ValidReplicationKeys: []string{"started_at"},
	ValidParams:          []string{"time_zone", "since", "until", "filter", "include"},
	RequiredParams:       []string{"since", "until"},
	MaxWindow:            89 * day,
	Accessors: map[string]models.FieldAccessor{
		"id":         models.Field("id"),
		"started_at": models.Field("started_at"),
	},
}

// On-call entries have no id of their own; one is derived from the schedule
// and the shift bounds. Entries without a start are permanent assignments
// and cannot be ordered, so they are skipped.
var Oncalls = models.Descriptor{
	ID:                   "oncalls",
	KeyProperties:        []string{"id"},
	ReplicationMethod:    models.Incremental,
	ReplicationKey:       "start",
	ValidReplicationKeys: []string{"start"},
	ValidParams: []string{
		"since",
		"until",
		"time_zone",
		"earliest",
		"user_ids[]",
		"schedule_ids[]",
		"escalation_policy_ids[]",
	},
	RequiredParams: []string{"since", "until"},
	MaxWindow:      89 * day,
	Accessors: map[string]models.FieldAccessor{
		"id":          models.Field("id"),
		"start":       oncallStart,
		"end":         oncallEnd,
		"schedule_id": oncallScheduleID,
	},
	Prepare: prepareOncall,
}

var Services = models.Descriptor{
	ID:                "services",
	KeyProperties:     []string{"id"},
	ReplicationMethod: models.FullTable,
	ValidParams:       []string{"team_ids[]", "time_zone", "sort_by", "query", "include[]"},
}

var EscalationPolicies = models.Descriptor{
	ID:                "escalation_policies",
	KeyProperties:     []string{"id"},
	ReplicationMethod: models.FullTable,
	ValidParams:       []string{"user_ids[]", "team_ids[]", "sort_by", "query", "include[]"},
}

var Schedules = models.Descriptor{
	ID:                "schedules",
	KeyProperties:     []string{"id"},
	ReplicationMethod: models.FullTable,
	ValidParams:       []string{"include[]", "query"},
}

var Users = models.Descriptor{
	ID:                "users",
	KeyProperties:     []string{"id"},
	ReplicationMethod: models.FullTable,
	ValidParams:       []string{"include[]", "team_ids[]", "query"},
}

// AvailableStreams in sync order
var AvailableStreams = []models.Descriptor{
	Incidents,
	Services,
	Notifications,
	EscalationPolicies,
	Schedules,
	Oncalls,
	Users,
}

// LookupStream finds a descriptor by stream id
func LookupStream(id string) (models.Descriptor, bool) {
	for _, d := range AvailableStreams {
		if d.ID == id {
			return d, true
		}
	}
	return models.Descriptor{}, false
}

var (
	oncallStart      = models.Field("start")
	oncallEnd        = models.Field("end")
	oncallScheduleID = models.Field("schedule", "id")
)

func prepareOncall(record models.Record) error {
	start, ok := oncallStart(record)
	if !ok {
		return &models.DataError{Stream: "oncalls", Message: "on-call entry has no start"}
	}
	scheduleID, ok := oncallScheduleID(record)
	if !ok {
		return &models.DataError{Stream: "oncalls", Message: "on-call entry has no schedule id"}
	}
	end, _ := oncallEnd(record)

	record["id"] = scheduleID + start + end
	return nil
}

// Stream is a descriptor bound to the query parameters of one run
type Stream struct {
	Descriptor models.Descriptor
	Params     models.Params
}

// NewStream validates the per-stream overrides in cfg and builds the base
// query parameters. Nothing here touches the network.
func NewStream(d models.Descriptor, cfg *models.Config, now time.Time) (*Stream, error) {
	if err := d.Validate(); err != nil {
		return nil, &models.ConfigError{Stream: d.ID, Message: err.Error()}
	}

	params := models.NewParams().
		With("limit", strconv.Itoa(cfg.PageLimit())).
		With("offset", "0").
		With("time_zone", "UTC")
	if cfg.Since != "" && d.AcceptsParam("since") {
		params = params.With("since", cfg.Since)
	}
	if cfg.Until != "" && d.AcceptsParam("until") {
		params = params.With("until", cfg.Until)
	}

	overrides := cfg.Streams[d.ID]
	keys := make([]string, 0, len(overrides))
	for key := range overrides {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if !d.AcceptsParam(key) {
			return nil, &models.ConfigError{Stream: d.ID, Param: key, Message: "endpoint does not support this parameter"}
		}
		params = params.WithAny(key, overrides[key])
	}

	for _, param := range d.RequiredParams {
		if params.Has(param) {
			continue
		}
		if param == "until" {
			params = params.With("until", models.FormatTimestamp(now))
			continue
		}
		return nil, &models.ConfigError{Stream: d.ID, Param: param, Message: "required but not supplied"}
	}

	for _, param := range []string{"since", "until"} {
		if !params.Has(param) {
			continue
		}
		if _, err := models.ParseTimestamp(params.Get(param)); err != nil {
			return nil, &models.ConfigError{Stream: d.ID, Param: param, Message: err.Error()}
		}
	}

	return &Stream{Descriptor: d, Params: params}, nil
}

// BuildStreams constructs every requested stream up front so that a bad
// override fails the run before any request is made.
func BuildStreams(ids []string, cfg *models.Config, now time.Time) ([]*Stream, error) {
	streams := make([]*Stream, 0, len(ids))
	for _, id := range ids {
		d, ok := LookupStream(id)
		if !ok {
			return nil, &models.ConfigError{Stream: id, Message: "unknown stream"}
		}
		stream, err := NewStream(d, cfg, now)
		if err != nil {
			return nil, err
		}
		streams = append(streams, stream)
	}

	for id := range cfg.Streams {
		if _, ok := LookupStream(id); !ok {
			return nil, &models.ConfigError{Stream: id, Message: "unknown stream in config"}
		}
	}
	return streams, nil
}

// StreamIDs lists the ids of AvailableStreams
func StreamIDs() []string {
	ids := make([]string, 0, len(AvailableStreams))
	for _, d := range AvailableStreams {
		ids = append(ids, d.ID)
	}
	return ids
}

func (s *Stream) String() string {
	return fmt.Sprintf("%s(%s)", s.Descriptor.ID, s.Descriptor.ReplicationMethod)
}
