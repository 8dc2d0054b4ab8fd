package models

import (
	"net/url"
	"sort"
	"strconv"

	util "github.com/5amCurfew/tap-pagerduty/util"
)

// Params are the query parameters sent with a request. Methods never mutate
// the receiver, so a Params value handed to a request cannot change under it.
type Params struct {
	values url.Values
}

func NewParams() Params {
	return Params{values: url.Values{}}
}

// With returns a copy of p with key set to the given values
func (p Params) With(key string, values ...string) Params {
	out := p.Clone()
	out.values[key] = append([]string(nil), values...)
	return out
}

// WithAny returns a copy of p with key set from a decoded JSON config value.
// Arrays become repeated parameters (statuses[]=a&statuses[]=b).
func (p Params) WithAny(key string, value interface{}) Params {
	switch v := value.(type) {
	case []interface{}:
		values := make([]string, 0, len(v))
		for _, item := range v {
			values = append(values, util.ToString(item))
		}
		return p.With(key, values...)
	case []string:
		return p.With(key, v...)
	default:
		return p.With(key, util.ToString(v))
	}
}

func (p Params) Clone() Params {
	out := url.Values{}
	for k, v := range p.values {
		out[k] = append([]string(nil), v...)
	}
	return Params{values: out}
}

func (p Params) Get(key string) string {
	return p.values.Get(key)
}

func (p Params) Has(key string) bool {
	v, ok := p.values[key]
	return ok && len(v) > 0 && v[0] != ""
}

// Int reads key as an integer, returning def when absent or malformed
func (p Params) Int(key string, def int) int {
	n, err := strconv.Atoi(p.values.Get(key))
	if err != nil {
		return def
	}
	return n
}

func (p Params) Keys() []string {
	keys := make([]string, 0, len(p.values))
	for k := range p.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Values returns a copy suitable for url.URL.RawQuery
func (p Params) Values() url.Values {
	return p.Clone().values
}

func (p Params) Encode() string {
	return p.values.Encode()
}
