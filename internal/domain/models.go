package domain

import (
	"slices"
	"time"
)

type LatencyPoint struct {
	Value float64 // milliseconds
	At    time.Time
	// Estimated is set when the source sent no timestamp and At was filled in locally.
	Estimated bool
}

// Service is one monitored endpoint as held by the dashboard. Values handed
// to the view are never mutated; a changed service is a new *Service.
type Service struct {
	ID            string
	Name          string
	URL           string
	Healthy       bool
	LastChecked   time.Time
	UptimePercent float64  // 0..100
	Tags          []string // sorted, deduplicated
	Latency       Window
}

// SameMeta reports whether every observable field except latency history matches.
func (s *Service) SameMeta(o *Service) bool {
	return s.ID == o.ID &&
		s.Name == o.Name &&
		s.URL == o.URL &&
		s.Healthy == o.Healthy &&
		s.LastChecked.Equal(o.LastChecked) &&
		s.UptimePercent == o.UptimePercent &&
		slices.Equal(s.Tags, o.Tags)
}

// Equal compares all observable fields, history included.
func (s *Service) Equal(o *Service) bool {
	return s.SameMeta(o) && s.Latency.Equal(o.Latency)
}

func (s *Service) Status() string {
	if s.Healthy {
		return "Up"
	}
	return "Down"
}

// Snapshot is one service record exactly as decoded from the status API.
// Fields stay loosely typed until normalization so that wrong types can be
// reported instead of silently zeroed.
type Snapshot struct {
	ID          any        `json:"id"`
	Name        any        `json:"name"`
	URL         any        `json:"url"`
	IsHealthy   any        `json:"isHealthy"`
	LastChecked any        `json:"lastChecked"`
	Uptime      any        `json:"uptime"`
	Tags        any        `json:"tags"`
	LatencyData []RawPoint `json:"latencyData"`
}

type RawPoint struct {
	Value     any `json:"value"`
	Timestamp any `json:"timestamp"`
}

// ServiceDraft is the payload for registering a new service.
type ServiceDraft struct {
	Name                 string    `json:"name"`
	URL                  string    `json:"url"`
	CheckIntervalSeconds int       `json:"checkIntervalSeconds"`
	ExpectedStatusCode   int       `json:"expectedStatusCode"`
	Tags                 []string  `json:"tags"`
	LastChecked          time.Time `json:"lastChecked"`
	CreatedAt            time.Time `json:"createdAt"`
	IsHealthy            bool      `json:"isHealthy"`
	LastErrorMessage     string    `json:"lastErrorMessage"`
}

const (
	DefaultCheckIntervalSeconds = 60
	DefaultExpectedStatusCode   = 200
)
