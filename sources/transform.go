package sources

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/5amCurfew/tap-pagerduty/models"
	util "github.com/5amCurfew/tap-pagerduty/util"
	log "github.com/sirupsen/logrus"
)

// RecordTransform drops and hashes configured fields of a stream's records
type RecordTransform struct {
	stream    string
	drop      [][]string
	sensitive [][]string
}

// NewRecordTransform checks rules against d. Key properties and the
// replication key can be neither dropped nor hashed.
func NewRecordTransform(d models.Descriptor, rules models.RecordConfig) (*RecordTransform, error) {
	protected := append([]string{}, d.KeyProperties...)
	if d.ReplicationKey != "" {
		protected = append(protected, d.ReplicationKey)
	}

	check := func(kind string, paths [][]string) error {
		for _, path := range paths {
			if len(path) == 0 {
				return &models.ConfigError{Stream: d.ID, Param: kind, Message: "empty field path"}
			}
			for _, p := range protected {
				if len(path) == 1 && path[0] == p {
					return &models.ConfigError{Stream: d.ID, Param: kind, Message: fmt.Sprintf("%s is a key field", p)}
				}
			}
		}
		return nil
	}
	if err := check("drop_field_paths", rules.DropFieldPaths); err != nil {
		return nil, err
	}
	if err := check("sensitive_field_paths", rules.SensitiveFieldPaths); err != nil {
		return nil, err
	}

	return &RecordTransform{stream: d.ID, drop: rules.DropFieldPaths, sensitive: rules.SensitiveFieldPaths}, nil
}

// Apply modifies record in place and returns it
func (t *RecordTransform) Apply(record models.Record) models.Record {
	for _, path := range t.drop {
		util.DropFieldAtPath(path, record)
	}

	for _, path := range t.sensitive {
		value := util.GetValueAtPath(path, record)
		if value == nil {
			log.WithFields(log.Fields{
				"stream":               t.stream,
				"sensitive_field_path": strings.Join(path, "."),
			}).Debug("field path not found in record for hashing")
			continue
		}
		hash := sha256.Sum256([]byte(util.ToString(value)))
		util.SetValueAtPath(path, record, hex.EncodeToString(hash[:]))
	}
	return record
}

// BuildTransforms validates the records section of cfg for the given streams
func BuildTransforms(streams []*Stream, cfg *models.Config) (map[string]*RecordTransform, error) {
	for id := range cfg.Records {
		if _, ok := LookupStream(id); !ok {
			return nil, &models.ConfigError{Stream: id, Message: "unknown stream in records config"}
		}
	}

	transforms := map[string]*RecordTransform{}
	for _, stream := range streams {
		rules, ok := cfg.Records[stream.Descriptor.ID]
		if !ok {
			continue
		}
		t, err := NewRecordTransform(stream.Descriptor, rules)
		if err != nil {
			return nil, err
		}
		transforms[stream.Descriptor.ID] = t
	}
	return transforms, nil
}
