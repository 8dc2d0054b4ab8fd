package sources

import (
	"context"
	"fmt"
	"sync"

	"github.com/5amCurfew/tap-pagerduty/models"
)

type fetchCall struct {
	Path   string
	Params models.Params
}

// stubFetcher answers requests from an in-memory handler and records them
type stubFetcher struct {
	mu      sync.Mutex
	calls   []fetchCall
	handler func(path string, params models.Params) (models.Record, error)
}

func (f *stubFetcher) Fetch(_ context.Context, path string, params models.Params) (models.Record, error) {
	f.mu.Lock()
	f.calls = append(f.calls, fetchCall{Path: path, Params: params})
	f.mu.Unlock()
	return f.handler(path, params)
}

func (f *stubFetcher) Calls() []fetchCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]fetchCall(nil), f.calls...)
}

func (f *stubFetcher) CallsTo(path string) []fetchCall {
	var out []fetchCall
	for _, c := range f.Calls() {
		if c.Path == path {
			out = append(out, c)
		}
	}
	return out
}

// pagedResponse serves records[offset:offset+limit] under collection
func pagedResponse(collection string, records []models.Record, params models.Params) models.Record {
	offset := params.Int("offset", 0)
	limit := params.Int("limit", models.DefaultLimit)

	items := []interface{}{}
	for i := offset; i < len(records) && i < offset+limit; i++ {
		items = append(items, copyRecord(records[i]))
	}

	return models.Record{
		collection: items,
		"limit":    limit,
		"offset":   offset,
		"more":     offset+limit < len(records),
	}
}

func copyRecord(r models.Record) map[string]interface{} {
	out := make(map[string]interface{}, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

func makeRecords(n int) []models.Record {
	records := make([]models.Record, 0, n)
	for i := 0; i < n; i++ {
		records = append(records, models.Record{"id": fmt.Sprintf("P%03d", i)})
	}
	return records
}
