package fetch

import (
	"context"
	"errors"

	"github.com/danielolaszy/weave/internal/logging"
)

// Request identifies one page of a remote collection.
type Request struct {
	// Index is the zero-based page number
	Index int

	// Offset is the zero-based index of the first record on the page
	Offset int

	// Size is the requested page size
	Size int
}

// Page is one response of a remote collection.
type Page[T any] struct {
	Items []T

	// Last is set when the remote signals there is no next page
	Last bool

	// Total is the collection size when HasTotal is set
	Total    int
	HasTotal bool

	// Rate is the budget reported with the response, if any
	Rate *RateLimit
}

// PageFunc fetches one page. Rate should be filled even when err is non-nil.
type PageFunc[T any] func(ctx context.Context, req Request) (Page[T], error)

// WalkStats summarizes a finished walk.
type WalkStats struct {
	Pages       int
	Items       int
	FailedPages []int
	NotFound    bool
}

// Pager walks a remote collection page by page. Page N+1 is never
// requested before page N has been returned to the caller.
type Pager[T any] struct {
	name  string
	gate  *Gate
	fetch PageFunc[T]

	index    int
	offset   int
	total    int
	hasTotal bool
	failures int
	done     bool

	items []T
	stats WalkStats
	err   error
}

// NewPager creates a pager over fetch, using gate for budget and retries.
func NewPager[T any](name string, gate *Gate, fetch PageFunc[T]) *Pager[T] {
	return &Pager[T]{
		name:  name,
		gate:  gate,
		fetch: fetch,
	}
}

// Next advances to the next non-empty page. It returns false once the
// collection is exhausted, the resource is missing or ctx is done.
func (p *Pager[T]) Next(ctx context.Context) bool {
	p.items = nil
	opts := p.gate.Options()

	for !p.done {
		if err := ctx.Err(); err != nil {
			p.err = err
			p.done = true
			return false
		}
		if p.index >= opts.MaxPages {
			logging.Warn("Page limit reached, stopping walk", "source", p.name, "max_pages", opts.MaxPages)
			p.done = true
			return false
		}
		if p.hasTotal && p.offset >= p.total {
			p.done = true
			return false
		}

		req := Request{Index: p.index, Offset: p.offset, Size: opts.PageSize}
		p.index++
		p.offset += opts.PageSize

		var page Page[T]
		err := p.gate.Do(ctx, func(ctx context.Context) (*RateLimit, error) {
			var err error
			page, err = p.fetch(ctx, req)
			return page.Rate, err
		})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				p.err = ctxErr
				p.done = true
				return false
			}
			if errors.Is(err, ErrNotFound) {
				logging.Info("Resource not found, nothing to fetch", "source", p.name, "page", req.Index+1)
				p.stats.NotFound = true
				p.done = true
				return false
			}

			p.failures++
			p.stats.FailedPages = append(p.stats.FailedPages, req.Index)
			logging.Error("Abandoning page",
				"source", p.name,
				"page", req.Index+1,
				"offset", req.Offset,
				"error", err)
			if p.failures >= opts.MaxConsecutiveFailures {
				logging.Error("Too many consecutive page failures, stopping walk",
					"source", p.name,
					"failures", p.failures)
				p.done = true
				return false
			}
			continue
		}

		p.failures = 0
		if page.HasTotal {
			p.total = page.Total
			p.hasTotal = true
		}

		n := len(page.Items)
		if page.Last || n < opts.PageSize {
			p.done = true
		}
		if n == 0 {
			p.done = true
			return false
		}

		p.stats.Pages++
		p.stats.Items += n
		p.items = page.Items
		return true
	}
	return false
}

// Items returns the records of the current page.
func (p *Pager[T]) Items() []T {
	return p.items
}

// Err returns the context error that stopped the walk, if any. Abandoned
// pages are reported through Stats, not Err.
func (p *Pager[T]) Err() error {
	return p.err
}

// Stats returns the walk summary so far.
func (p *Pager[T]) Stats() WalkStats {
	return p.stats
}

// Collect walks the whole collection and returns every record.
func Collect[T any](ctx context.Context, p *Pager[T]) ([]T, WalkStats, error) {
	var all []T
	for p.Next(ctx) {
		all = append(all, p.Items()...)
	}
	return all, p.Stats(), p.Err()
}
