package models

import (
	"fmt"
	"time"

	util "github.com/5amCurfew/tap-pagerduty/util"
)

type Record = map[string]interface{}

type ReplicationMethod string

const (
	FullTable   ReplicationMethod = "FULL_TABLE"
	Incremental ReplicationMethod = "INCREMENTAL"
)

// FieldAccessor reads one logical field from a raw record
type FieldAccessor func(record Record) (string, bool)

// Field builds an accessor for the string value at path
func Field(path ...string) FieldAccessor {
	return func(record Record) (string, bool) {
		value := util.GetValueAtPath(path, record)
		if util.IsEmpty(value) {
			return "", false
		}
		return util.ToString(value), true
	}
}

// SubResource is a child collection fetched per record and merged as a list field
type SubResource struct {
	// Field is the key the collection is stored under on the parent record,
	// and the key of the array in each child response page.
	Field string
	// Path builds the child endpoint from the parent id.
	Path func(parentID string) string
}

// Descriptor is the static description of one PagerDuty resource
type Descriptor struct {
	ID                   string
	KeyProperties        []string
	ReplicationMethod    ReplicationMethod
	ReplicationKey       string
	ValidReplicationKeys []string
	ValidParams          []string
	RequiredParams       []string
	MaxWindow            time.Duration

	// Accessors maps logical field names ("id", the replication key) to readers.
	Accessors map[string]FieldAccessor

	SubResources []SubResource

	// Prepare runs on each raw record before filtering. Returning a
	// *DataError skips the record.
	Prepare func(record Record) error
}

// Validate checks the descriptor invariants
func (d Descriptor) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("descriptor has no id")
	}

	switch d.ReplicationMethod {
	case FullTable:
		return nil
	case Incremental:
	default:
		return fmt.Errorf("stream %s: unknown replication method %q", d.ID, d.ReplicationMethod)
	}

	if d.ReplicationKey == "" {
		return fmt.Errorf("stream %s: INCREMENTAL replication requires a replication key", d.ID)
	}
	if !contains(d.ValidReplicationKeys, d.ReplicationKey) {
		return fmt.Errorf("stream %s: replication key %s not in valid replication keys %v", d.ID, d.ReplicationKey, d.ValidReplicationKeys)
	}
	if _, ok := d.Accessors[d.ReplicationKey]; !ok {
		return fmt.Errorf("stream %s: no accessor for replication key %s", d.ID, d.ReplicationKey)
	}
	if d.MaxWindow <= 0 {
		return fmt.Errorf("stream %s: INCREMENTAL replication requires a positive window", d.ID)
	}
	return nil
}

// Accessor returns the accessor for name, defaulting to a top-level lookup
func (d Descriptor) Accessor(name string) FieldAccessor {
	if a, ok := d.Accessors[name]; ok {
		return a
	}
	return Field(name)
}

func (d Descriptor) AcceptsParam(name string) bool {
	return contains(d.ValidParams, name)
}

func (d Descriptor) IsIncremental() bool {
	return d.ReplicationMethod == Incremental
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
