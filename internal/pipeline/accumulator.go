package pipeline

import (
	"context"

	"github.com/ppiankov/geotag/internal/model"
)

// FlushFunc persists the records accumulated for one page id
type FlushFunc func(ctx context.Context, pageID int, records []model.TokenRecord) error

// PageAccumulator groups a stream of token records by page id. It flushes
// whenever a record's page id differs from the one being accumulated and on
// Close. Input is expected in non-decreasing page order; a page id that
// reappears after another one is flushed again as a separate unit.
type PageAccumulator struct {
	flush   FlushFunc
	pageID  int
	records []model.TokenRecord
	active  bool
}

// NewPageAccumulator creates an accumulator that hands complete groups to flush
func NewPageAccumulator(flush FlushFunc) *PageAccumulator {
	return &PageAccumulator{flush: flush}
}

// Add appends a record, flushing the previous group first if the page id changed
func (a *PageAccumulator) Add(ctx context.Context, rec model.TokenRecord) error {
	if a.active && rec.PageID != a.pageID {
		if err := a.flushPending(ctx); err != nil {
			return err
		}
	}

	if !a.active {
		a.pageID = rec.PageID
		a.active = true
	}
	a.records = append(a.records, rec)
	return nil
}

// Close flushes the remaining group, if any
func (a *PageAccumulator) Close(ctx context.Context) error {
	if !a.active {
		return nil
	}
	return a.flushPending(ctx)
}

// Discard drops the pending group without flushing it
func (a *PageAccumulator) Discard() {
	a.records = nil
	a.active = false
}

// Pending returns the number of records waiting to be flushed
func (a *PageAccumulator) Pending() int {
	return len(a.records)
}

func (a *PageAccumulator) flushPending(ctx context.Context) error {
	records := a.records
	pageID := a.pageID
	a.Discard()
	return a.flush(ctx, pageID, records)
}
