package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/quake-monitor/internal/quake"
)

func TestListYears(t *testing.T) {
	years, err := NewParser(3.0).ListYears(readFixture(t, "index.html"))
	require.NoError(t, err)
	assert.Equal(t, []string{"2025", "2024", "2023"}, years)
}

func TestListMonths(t *testing.T) {
	months, err := NewParser(3.0).ListMonths(readFixture(t, "year.html"))
	require.NoError(t, err)
	assert.Equal(t, []quake.Period{
		{Year: "2025", Month: "03"},
		{Year: "2025", Month: "02"},
		{Year: "2025", Month: "01"},
	}, months)
}

func TestDiscovery_NoMatchingLinksIsEmpty(t *testing.T) {
	p := NewParser(3.0)
	page := []byte(`<html><body><a href="other/">other</a><a href="notes.txt">notes</a></body></html>`)

	years, err := p.ListYears(page)
	require.NoError(t, err)
	assert.Empty(t, years)

	months, err := p.ListMonths(page)
	require.NoError(t, err)
	assert.Empty(t, months)
}

func TestPeriodPath(t *testing.T) {
	p := quake.Period{Year: "2024", Month: "05"}
	assert.Equal(t, "2024-05", p.Key())
	assert.Equal(t, "2024/2024-05.html", p.Path())
}
