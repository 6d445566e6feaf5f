package app

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/HaPhanBaoMinh/upmon/internal/domain"
)

// clamp clamps v into [min, max].
func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// compute dynamic widths for the services table based on available total width
func colWidths(total int) (wStatus, wName, wURL, wUptime, wChecked, wTrend int) {
	// fixed minimums (labels and numbers)
	minStatus, minName, minUptime, minChecked, minTrend := 6, 18, 8, 16, 12

	base := minStatus + minName + minUptime + minChecked + minTrend
	remain := total - base
	if remain < 16 {
		remain = 16
	}

	// url takes most of the flexible space, the name the rest
	wURL = remain * 2 / 3
	extra := remain - wURL

	wStatus = minStatus
	wName = minName + extra
	wUptime = minUptime
	wChecked = minChecked
	wTrend = minTrend

	// sanity clamps
	wName = clamp(wName, 12, 40)
	wURL = clamp(wURL, 16, 60)
	return
}

// ParseTags splits a comma separated list, trimming blanks and dropping
// repeats while keeping the first-seen order.
func ParseTags(s string) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, part := range strings.Split(s, ",") {
		tag := strings.TrimSpace(part)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

var (
	errNameRequired = errors.New("name is required")
	errURLRequired  = errors.New("url is required")
)

// newDraft validates the add form input and fills the registration defaults.
func newDraft(name, rawURL, tags string, now time.Time) (domain.ServiceDraft, error) {
	name = strings.TrimSpace(name)
	rawURL = strings.TrimSpace(rawURL)

	if name == "" {
		return domain.ServiceDraft{}, errNameRequired
	}
	if rawURL == "" {
		return domain.ServiceDraft{}, errURLRequired
	}

	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return domain.ServiceDraft{}, fmt.Errorf("invalid url %q: expected http(s)://host", rawURL)
	}

	return domain.ServiceDraft{
		Name:                 name,
		URL:                  rawURL,
		CheckIntervalSeconds: domain.DefaultCheckIntervalSeconds,
		ExpectedStatusCode:   domain.DefaultExpectedStatusCode,
		Tags:                 ParseTags(tags),
		LastChecked:          now.UTC(),
		CreatedAt:            now.UTC(),
		IsHealthy:            true,
	}, nil
}
