package sources

import (
	"context"
	"fmt"
	"strconv"

	"github.com/5amCurfew/tap-pagerduty/models"
)

// Page is one response of a paginated listing. It is never modified after
// the pager hands it out.
type Page struct {
	Records []models.Record
	More    bool
	Offset  int
	Params  models.Params
}

// Pager walks the pages of one listing using the offset/limit/more protocol.
// It is forward-only and cannot be restarted.
type Pager struct {
	fetcher    Fetcher
	path       string
	collection string

	initial *Page
	last    Page
	done    bool
	err     error
}

// ListResource fetches the first page of path and returns a pager positioned
// before it. Records are read from the response array named collection.
func ListResource(ctx context.Context, fetcher Fetcher, path, collection string, params models.Params) (*Pager, error) {
	response, err := fetcher.Fetch(ctx, path, params)
	if err != nil {
		return nil, err
	}

	page, err := newPage(response, collection, params)
	if err != nil {
		return nil, fmt.Errorf("error reading %s: %w", path, err)
	}

	return &Pager{
		fetcher:    fetcher,
		path:       path,
		collection: collection,
		initial:    &page,
	}, nil
}

// Next returns the next page. The first call returns the page fetched by
// ListResource; later calls fetch offset+limit while the last page said more.
func (p *Pager) Next(ctx context.Context) (Page, bool) {
	if p.done || p.err != nil {
		return Page{}, false
	}

	if p.initial != nil {
		p.last, p.initial = *p.initial, nil
		return p.last, true
	}

	if !p.last.More {
		p.done = true
		return Page{}, false
	}

	limit := p.last.Params.Int("limit", models.DefaultLimit)
	params := p.last.Params.With("offset", strconv.Itoa(p.last.Offset+limit))

	response, err := p.fetcher.Fetch(ctx, p.path, params)
	if err != nil {
		p.err = err
		return Page{}, false
	}

	page, err := newPage(response, p.collection, params)
	if err != nil {
		p.err = fmt.Errorf("error reading %s: %w", p.path, err)
		return Page{}, false
	}

	p.last = page
	return page, true
}

// Err returns the error that ended the sequence, if any
func (p *Pager) Err() error {
	return p.err
}

// CollectAll drains every page of a listing into one slice
func CollectAll(ctx context.Context, fetcher Fetcher, path, collection string, params models.Params) ([]models.Record, error) {
	pager, err := ListResource(ctx, fetcher, path, collection, params)
	if err != nil {
		return nil, err
	}

	records := []models.Record{}
	for page, ok := pager.Next(ctx); ok; page, ok = pager.Next(ctx) {
		records = append(records, page.Records...)
	}
	if err := pager.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func newPage(response models.Record, collection string, params models.Params) (Page, error) {
	raw, ok := response[collection]
	if !ok {
		return Page{}, fmt.Errorf("response has no %q array", collection)
	}

	items, ok := raw.([]interface{})
	if !ok && raw != nil {
		return Page{}, fmt.Errorf("response field %q is not an array", collection)
	}

	records := make([]models.Record, 0, len(items))
	for _, item := range items {
		record, ok := item.(map[string]interface{})
		if !ok {
			return Page{}, fmt.Errorf("non-object element in %q array", collection)
		}
		records = append(records, record)
	}

	more, _ := response["more"].(bool)

	return Page{
		Records: records,
		More:    more,
		Offset:  params.Int("offset", 0),
		Params:  params,
	}, nil
}
