package quake

import (
	"context"
	"iter"
)

// PageFetcher retrieves raw markup for a source page.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// PageParser turns source markup into periods and event candidates.
type PageParser interface {
	ListYears(markup []byte) ([]string, error)
	ListMonths(markup []byte) ([]Period, error)
	// ParseMonth returns a single-use sequence over the month table. Rows that
	// cannot become events are yielded with a non-nil error and a zero Event.
	ParseMonth(markup []byte) (iter.Seq2[Event, error], error)
}

// Inserter stores an event unless one with the same identity already exists.
// A duplicate is reported as OutcomeDuplicate with a nil error; any other
// failure wraps ErrStorageUnavailable.
type Inserter interface {
	InsertIfAbsent(ctx context.Context, e Event) (Outcome, error)
}

// VolcanoStore is the contract for the reference dataset table.
type VolcanoStore interface {
	ListVolcanoes(ctx context.Context) ([]Volcano, error)
	ReplaceVolcanoes(ctx context.Context, volcanoes []Volcano) error
}
