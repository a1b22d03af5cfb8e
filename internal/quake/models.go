package quake

import (
	"time"
)

// DateTimeLayout is the canonical, second-precision form of Event.OccurredAt.
const DateTimeLayout = "2006-01-02 15:04:05"

// Event is one seismic occurrence as stored and served.
// (OccurredAt, Latitude, Longitude) identifies an event; depth and magnitude
// are not part of its identity.
type Event struct {
	OccurredAt string  `json:"Date-time"` // DateTimeLayout, no timezone
	Latitude   float64 `json:"Latitude"`
	Longitude  float64 `json:"Longitude"`
	DepthKm    float64 `json:"Depth"`
	Magnitude  float64 `json:"Mw_mean"`
}

// Period addresses one month page on the remote source.
type Period struct {
	Year  string `json:"year"`
	Month string `json:"month"`
}

// Key returns the YYYY-MM form of the period.
func (p Period) Key() string {
	return p.Year + "-" + p.Month
}

// Path returns the month page path relative to the source root.
func (p Period) Path() string {
	return p.Year + "/" + p.Key() + ".html"
}

// Outcome reports what an insert attempt did to the store.
type Outcome int

const (
	OutcomeNew Outcome = iota + 1
	OutcomeDuplicate
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNew:
		return "new"
	case OutcomeDuplicate:
		return "duplicate"
	default:
		return "unknown"
	}
}

// Volcano is an entry of the static reference dataset.
type Volcano struct {
	Name         string  `json:"name" yaml:"name"`
	Description  string  `json:"description" yaml:"description"`
	ElevationM   float64 `json:"elevation_m" yaml:"elevation_m"`
	ElevationFt  float64 `json:"elevation_ft" yaml:"elevation_ft"`
	Latitude     float64 `json:"latitude" yaml:"latitude"`
	Longitude    float64 `json:"longitude" yaml:"longitude"`
	LastEruption string  `json:"last_eruption" yaml:"last_eruption"`
}

// RunStats summarizes one ingestion run. Rows that were skipped, filtered or
// found to be duplicates never abort a run, so they are tallied here instead.
type RunStats struct {
	RunID     string        `json:"runId"`
	StartedAt time.Time     `json:"startedAt"` // always UTC
	Duration  time.Duration `json:"durationNs"`

	Periods     int `json:"periods"`
	Inserted    int `json:"inserted"`
	Duplicates  int `json:"duplicates"`
	Skipped     int `json:"skipped"`  // malformed rows
	Filtered    int `json:"filtered"` // below the magnitude floor
	FailedPages int `json:"failedPages"`
}
