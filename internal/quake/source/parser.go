package source

import (
	"bytes"
	"errors"
	"fmt"
	"iter"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/i474232898/quake-monitor/internal/quake"
)

// DefaultMinMagnitude is the inclusive quality floor for stored events.
const DefaultMinMagnitude = 3.0

// Column layout of the source month table.
const (
	colDateTime  = 0
	colLatitude  = 1
	colLongitude = 2
	colDepth     = 3
	// The published table carries the mean moment magnitude in column 6,
	// not next to depth.
	colMagnitude = 6

	minColumns = 8
)

// dateTimeLayouts are tried in order; the fractional-second form comes first.
var dateTimeLayouts = []string{
	"2006-01-02 15:04:05.999999999",
	quake.DateTimeLayout,
}

var (
	errEmptyCell = errors.New("empty cell")
	errNotFinite = errors.New("not a finite number")
)

// Parser reads source pages. It is stateless and safe for concurrent use.
type Parser struct {
	minMagnitude float64
}

// NewParser creates a Parser that drops events below minMagnitude.
func NewParser(minMagnitude float64) *Parser {
	return &Parser{minMagnitude: minMagnitude}
}

// ParseMonth locates the data table of a month page and returns a sequence
// over its rows. A page without a table yields nothing.
func (p *Parser) ParseMonth(markup []byte) (iter.Seq2[quake.Event, error], error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	table := doc.Find("table.dataframe").First()
	if table.Length() == 0 {
		table = doc.Find("table").First()
	}
	rows := table.Find("tbody tr")

	return func(yield func(quake.Event, error) bool) {
		for i := range rows.Nodes {
			cells := rows.Eq(i).Children().Filter("td")
			if cells.Length() < minColumns {
				continue
			}
			text := make([]string, cells.Length())
			cells.Each(func(j int, td *goquery.Selection) {
				text[j] = strings.TrimSpace(td.Text())
			})

			if !yield(p.parseRow(i, text)) {
				return
			}
		}
	}, nil
}

func (p *Parser) parseRow(row int, cells []string) (quake.Event, error) {
	for _, col := range []int{colLatitude, colLongitude, colDepth, colMagnitude} {
		if cells[col] == "" {
			return quake.Event{}, &quake.ParseError{Row: row, Column: columnName(col), Err: errEmptyCell}
		}
	}

	mag, err := parseFinite(cells[colMagnitude])
	if err != nil {
		return quake.Event{}, &quake.ParseError{Row: row, Column: "magnitude", Value: cells[colMagnitude], Err: err}
	}
	if mag < p.minMagnitude {
		return quake.Event{}, quake.ErrBelowMagnitudeFloor
	}

	occurredAt, err := NormalizeDateTime(cells[colDateTime])
	if err != nil {
		return quake.Event{}, &quake.ParseError{Row: row, Column: "date-time", Value: cells[colDateTime], Err: err}
	}

	var coords [3]float64
	for i, col := range []int{colLatitude, colLongitude, colDepth} {
		v, err := parseFinite(cells[col])
		if err != nil {
			return quake.Event{}, &quake.ParseError{Row: row, Column: columnName(col), Value: cells[col], Err: err}
		}
		coords[i] = v
	}

	return quake.Event{
		OccurredAt: occurredAt,
		Latitude:   coords[0],
		Longitude:  coords[1],
		DepthKm:    coords[2],
		Magnitude:  mag,
	}, nil
}

// parseFinite parses a numeric cell. NaN and infinities are rejected; the
// source renders missing values as "NaN".
func parseFinite(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errNotFinite
	}
	return v, nil
}

// NormalizeDateTime converts a source timestamp, with or without a fractional
// second, to quake.DateTimeLayout. The fraction is truncated.
func NormalizeDateTime(s string) (string, error) {
	var lastErr error
	for _, layout := range dateTimeLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t.Format(quake.DateTimeLayout), nil
		}
		lastErr = err
	}
	return "", lastErr
}

func columnName(col int) string {
	switch col {
	case colDateTime:
		return "date-time"
	case colLatitude:
		return "latitude"
	case colLongitude:
		return "longitude"
	case colDepth:
		return "depth"
	case colMagnitude:
		return "magnitude"
	default:
		return "column " + strconv.Itoa(col)
	}
}
