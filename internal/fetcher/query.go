package fetcher

import (
	"net/url"
	"strconv"
	"strings"
)

// QueryOptions parameterise the upstream report query.
type QueryOptions struct {
	BaseURL       string
	WindowMinutes int
	ReportLimit   int
	AppContact    string
}

// BuildQueryURL returns the report query for one anchor grid. Parameter order
// is fixed so that identical queries map to the same cache entry.
func BuildQueryURL(opts QueryOptions, anchor string) string {
	params := [][2]string{
		{"callsign", anchor},
		{"modify", "grid"},
		{"flowStartSeconds", strconv.Itoa(-opts.WindowMinutes * 60)},
		{"rronly", "1"},
		{"rptlimit", strconv.Itoa(opts.ReportLimit)},
	}
	if contact := strings.TrimSpace(opts.AppContact); contact != "" {
		params = append(params, [2]string{"appcontact", contact})
	}

	parts := make([]string, 0, len(params))
	for _, p := range params {
		parts = append(parts, url.QueryEscape(p[0])+"="+url.QueryEscape(p[1]))
	}
	return strings.TrimRight(opts.BaseURL, "?") + "?" + strings.Join(parts, "&")
}
