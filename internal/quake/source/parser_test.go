package source

import (
	"errors"
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/quake-monitor/internal/quake"
)

func readFixture(t *testing.T, name string) []byte {
	t.Helper()
	b, err := os.ReadFile("testdata/" + name)
	require.NoError(t, err)
	return b
}

type parsedMonth struct {
	events   []quake.Event
	filtered int
	errs     []error
}

func collect(t *testing.T, p *Parser, markup []byte) parsedMonth {
	t.Helper()
	rows, err := p.ParseMonth(markup)
	require.NoError(t, err)

	var out parsedMonth
	for ev, err := range rows {
		switch {
		case errors.Is(err, quake.ErrBelowMagnitudeFloor):
			out.filtered++
		case err != nil:
			out.errs = append(out.errs, err)
		default:
			out.events = append(out.events, ev)
		}
	}
	return out
}

func TestParseMonth_Fixture(t *testing.T) {
	got := collect(t, NewParser(DefaultMinMagnitude), readFixture(t, "month.html"))

	want := []quake.Event{
		{OccurredAt: "2025-03-14 08:02:11", Latitude: 63.932, Longitude: -22.271, DepthKm: 5.1, Magnitude: 3.4},
		{OccurredAt: "2025-03-12 23:41:05", Latitude: 64.622, Longitude: -17.441, DepthKm: 7.4, Magnitude: 3.0},
		{OccurredAt: "2025-03-07 18:15:42", Latitude: 64.021, Longitude: -16.653, DepthKm: 26.0, Magnitude: 3.6},
	}
	if diff := cmp.Diff(want, got.events); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 1, got.filtered)
	require.Len(t, got.errs, 2)

	var pe *quake.ParseError
	require.ErrorAs(t, got.errs[0], &pe)
	assert.Equal(t, "latitude", pe.Column)
	require.ErrorAs(t, got.errs[1], &pe)
	assert.Equal(t, "magnitude", pe.Column)
	assert.Equal(t, "n/a", pe.Value)
}

func monthPage(rows ...string) []byte {
	html := `<html><body><table class="dataframe"><thead><tr><th>h</th></tr></thead><tbody>`
	for _, r := range rows {
		html += r
	}
	return []byte(html + `</tbody></table></body></html>`)
}

func row(dateTime, lat, lon, depth, mag string) string {
	return "<tr><td>" + dateTime + "</td><td>" + lat + "</td><td>" + lon + "</td><td>" + depth +
		"</td><td>x</td><td>x</td><td>" + mag + "</td><td>x</td></tr>"
}

func TestParseMonth_MagnitudeFloorIsInclusive(t *testing.T) {
	got := collect(t, NewParser(3.0), monthPage(
		row("2024-05-01 12:00:00", "64.0", "-21.0", "5.0", "2.9"),
		row("2024-05-01 12:00:01", "64.0", "-21.0", "5.0", "3.0"),
	))

	require.Len(t, got.events, 1)
	assert.Equal(t, 3.0, got.events[0].Magnitude)
	assert.Equal(t, 1, got.filtered)
	assert.Empty(t, got.errs)
}

func TestParseMonth_MalformedRowDoesNotStopTable(t *testing.T) {
	got := collect(t, NewParser(3.0), monthPage(
		row("2024-05-01 12:00:00", "", "-21.0", "5.0", "3.5"),
		row("2024-05-01 13:00:00", "64.1", "-21.1", "6.0", "3.6"),
		row("not a date", "64.2", "-21.2", "7.0", "3.7"),
		row("2024-05-01 14:00:00", "64.3", "abc", "8.0", "3.8"),
		row("2024-05-01 15:00:00", "64.4", "-21.4", "9.0", "3.9"),
	))

	require.Len(t, got.events, 2)
	assert.Equal(t, "2024-05-01 13:00:00", got.events[0].OccurredAt)
	assert.Equal(t, "2024-05-01 15:00:00", got.events[1].OccurredAt)
	assert.Len(t, got.errs, 3)
}

func TestParseMonth_NonFiniteValuesAreRowErrors(t *testing.T) {
	tests := []struct {
		name                 string
		lat, lon, depth, mag string
		column               string
	}{
		{name: "NaN magnitude", lat: "64.0", lon: "-21.0", depth: "5.0", mag: "NaN", column: "magnitude"},
		{name: "inf magnitude", lat: "64.0", lon: "-21.0", depth: "5.0", mag: "inf", column: "magnitude"},
		{name: "NaN latitude", lat: "NaN", lon: "-21.0", depth: "5.0", mag: "3.5", column: "latitude"},
		{name: "infinite longitude", lat: "64.0", lon: "-Infinity", depth: "5.0", mag: "3.5", column: "longitude"},
		{name: "inf depth", lat: "64.0", lon: "-21.0", depth: "+Inf", mag: "3.5", column: "depth"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := collect(t, NewParser(3.0), monthPage(
				row("2024-05-01 12:00:00", tt.lat, tt.lon, tt.depth, tt.mag),
				row("2024-05-01 13:00:00", "64.1", "-21.1", "6.0", "3.6"),
			))

			require.Len(t, got.events, 1)
			assert.Equal(t, "2024-05-01 13:00:00", got.events[0].OccurredAt)
			assert.Zero(t, got.filtered)
			require.Len(t, got.errs, 1)

			var pe *quake.ParseError
			require.ErrorAs(t, got.errs[0], &pe)
			assert.Equal(t, tt.column, pe.Column)
		})
	}
}

func TestParseMonth_NoTable(t *testing.T) {
	got := collect(t, NewParser(3.0), []byte(`<html><body><p>No data yet</p></body></html>`))
	assert.Empty(t, got.events)
	assert.Empty(t, got.errs)
	assert.Zero(t, got.filtered)
}

func TestParseMonth_FallsBackToFirstTable(t *testing.T) {
	page := []byte(`<table><tr>` +
		`<td>2024-05-01 12:00:00</td><td>64</td><td>-21</td><td>5</td><td></td><td></td><td>4.0</td><td></td>` +
		`</tr></table>`)
	got := collect(t, NewParser(3.0), page)
	require.Len(t, got.events, 1)
	assert.Equal(t, 4.0, got.events[0].Magnitude)
}

func TestParseMonth_StopsWhenConsumerStops(t *testing.T) {
	rows, err := NewParser(3.0).ParseMonth(monthPage(
		row("2024-05-01 12:00:00", "64.0", "-21.0", "5.0", "3.1"),
		row("2024-05-01 12:00:01", "64.0", "-21.0", "5.0", "3.2"),
	))
	require.NoError(t, err)

	n := 0
	for range rows {
		n++
		break
	}
	assert.Equal(t, 1, n)
}

func TestNormalizeDateTime(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "2024-05-01 12:00:00.500", want: "2024-05-01 12:00:00"},
		{in: "2024-05-01 12:00:00", want: "2024-05-01 12:00:00"},
		{in: "2024-05-01 12:00:59.999999", want: "2024-05-01 12:00:59"},
		{in: "2024-05-01 12:00:00.1", want: "2024-05-01 12:00:00"},
		{in: "2024-05-01", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		got, err := NormalizeDateTime(tt.in)
		if tt.wantErr {
			assert.Error(t, err, "input %q", tt.in)
			continue
		}
		require.NoError(t, err, "input %q", tt.in)
		assert.Equal(t, tt.want, got, "input %q", tt.in)
	}
}
