package client

import (
	"context"
	"fmt"
	"time"

	"github.com/skyhookdb/skyhook-go/pkg/object"
	"github.com/skyhookdb/skyhook-go/pkg/query"
)

// iterationPageSize is how many records Each pulls per round trip.
const iterationPageSize = 1000

// reservedCursorFields are owned by the iterator; a query that filters on
// them cannot be paged safely and is rejected up front.
var reservedCursorFields = []string{"created_at", "createdAt", "updated_at", "updatedAt"}

// Each walks every record matching the query, calling fn for each one.
// Iteration pages by creation time rather than skip/limit, so records created
// or deleted mid-walk cannot shift the window. fn returning an error stops
// the walk and surfaces that error.
func (c *Client) Each(ctx context.Context, q *query.Query, fn func(*object.Record) error) error {
	if q.FiltersAnyField(reservedCursorFields...) {
		return fmt.Errorf("%w: created_at/updated_at are reserved as iteration cursors", query.ErrInvalidArgument)
	}

	var cursor time.Time
	seenAtCursor := make(map[string]struct{})

	for {
		page := q.Clone().Reorder("createdAt").Limit(iterationPageSize).NoCache()
		if !cursor.IsZero() {
			page.Where(query.F("createdAt").OnOrAfter(cursor))
		}

		records, err := c.Find(ctx, page)
		if err != nil {
			return err
		}

		progressed := false
		for _, r := range records {
			if r.CreatedAt().Equal(cursor) {
				if _, seen := seenAtCursor[r.ID()]; seen {
					continue
				}
			}
			if err := fn(r); err != nil {
				return err
			}
			progressed = true

			if r.CreatedAt().After(cursor) {
				cursor = r.CreatedAt()
				seenAtCursor = make(map[string]struct{})
			}
			seenAtCursor[r.ID()] = struct{}{}
		}

		if len(records) < iterationPageSize {
			return nil
		}
		// a full page of already-seen records means the cursor cannot
		// advance; bail out rather than spin
		if !progressed {
			return fmt.Errorf("iteration stalled at cursor %s", cursor.Format(object.DateFormat))
		}
	}
}
