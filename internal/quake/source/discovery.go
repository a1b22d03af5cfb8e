package source

import (
	"bytes"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/i474232898/quake-monitor/internal/quake"
)

var (
	// yearLinkRegexp matches a year directory link, e.g. "2024/".
	yearLinkRegexp = regexp.MustCompile(`^(\d{4})/$`)
	// monthLinkRegexp matches a month page link, e.g. "2024-05.html".
	monthLinkRegexp = regexp.MustCompile(`^(\d{4})-(\d{2})\.html$`)
)

// ListYears returns the year directories linked from the index page, most
// recent first. Links of any other shape are ignored.
func (p *Parser) ListYears(markup []byte) ([]string, error) {
	seen := make(map[string]struct{})
	err := eachHref(markup, func(href string) {
		if m := yearLinkRegexp.FindStringSubmatch(href); m != nil {
			seen[m[1]] = struct{}{}
		}
	})
	if err != nil {
		return nil, err
	}

	years := make([]string, 0, len(seen))
	for y := range seen {
		years = append(years, y)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(years)))
	return years, nil
}

// ListMonths returns the month pages linked from a year page, most recent first.
func (p *Parser) ListMonths(markup []byte) ([]quake.Period, error) {
	seen := make(map[string]quake.Period)
	err := eachHref(markup, func(href string) {
		if m := monthLinkRegexp.FindStringSubmatch(href); m != nil {
			period := quake.Period{Year: m[1], Month: m[2]}
			seen[period.Key()] = period
		}
	})
	if err != nil {
		return nil, err
	}

	periods := make([]quake.Period, 0, len(seen))
	for _, period := range seen {
		periods = append(periods, period)
	}
	sort.Slice(periods, func(i, j int) bool {
		return periods[i].Key() > periods[j].Key()
	})
	return periods, nil
}

func eachHref(markup []byte, fn func(href string)) error {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(markup))
	if err != nil {
		return fmt.Errorf("parse document: %w", err)
	}
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		fn(strings.TrimSpace(href))
	})
	return nil
}
