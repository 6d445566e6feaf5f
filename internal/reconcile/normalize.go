package reconcile

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cast"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/HaPhanBaoMinh/upmon/internal/domain"
)

// Epoch numbers at or above this are milliseconds, below it seconds.
// 1e11 seconds is far beyond any realistic date.
const epochMillisThreshold = 1e11

// Normalize maps a raw snapshot to a Service. Missing optional fields get
// their zero form; only id, name and url are mandatory.
//
// A latency point without its own timestamp is stamped with the record's
// lastChecked, or with now when that is missing too, and marked Estimated.
func Normalize(raw domain.Snapshot, now time.Time) (*domain.Service, error) {
	id, err := requiredString(raw.ID, "id", "")
	if err != nil {
		return nil, err
	}

	name, err := requiredString(raw.Name, "name", id)
	if err != nil {
		return nil, err
	}

	url, err := requiredString(raw.URL, "url", id)
	if err != nil {
		return nil, err
	}

	s := &domain.Service{
		ID:            id,
		Name:          name,
		URL:           url,
		Healthy:       cast.ToBool(raw.IsHealthy),
		UptimePercent: clampPercent(toNumber(raw.Uptime)),
		Tags:          normalizeTags(raw.Tags),
	}

	if ts, ok := ParseInstant(raw.LastChecked); ok {
		s.LastChecked = ts
	}

	fallback := now
	if !s.LastChecked.IsZero() {
		fallback = s.LastChecked
	}

	pts := make([]domain.LatencyPoint, 0, len(raw.LatencyData))
	for _, rp := range raw.LatencyData {
		v, ok := number(rp.Value)
		if !ok {
			continue
		}

		pt := domain.LatencyPoint{Value: v}
		pt.At, ok = ParseInstant(rp.Timestamp)
		if !ok {
			pt.At, pt.Estimated = fallback, true
		}

		pts = append(pts, pt)
	}

	slices.SortStableFunc(pts, func(a, b domain.LatencyPoint) int {
		return a.At.Compare(b.At)
	})

	s.Latency = domain.NewWindow(pts...)

	return s, nil
}

// ParseInstant accepts ISO-8601 strings, numeric strings and numbers
// (epoch seconds or milliseconds).
func ParseInstant(v any) (time.Time, bool) {
	switch t := v.(type) {
	case nil, bool:
		return time.Time{}, false
	case time.Time:
		return t.UTC(), !t.IsZero()
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return time.Time{}, false
		}

		if f, err := cast.ToFloat64E(s); err == nil {
			return fromEpoch(f)
		}

		ts, err := cast.StringToDate(s)
		if err != nil {
			return time.Time{}, false
		}

		return ts.UTC(), true
	default:
		f, ok := number(v)
		if !ok {
			return time.Time{}, false
		}

		return fromEpoch(f)
	}
}

func fromEpoch(f float64) (time.Time, bool) {
	if f <= 0 {
		return time.Time{}, false
	}

	unit := time.Second
	if f >= epochMillisThreshold {
		unit = time.Millisecond
	}

	whole, frac := math.Modf(f)
	ts := time.Unix(0, 0).Add(time.Duration(whole) * unit).Add(time.Duration(frac * float64(unit)))

	return ts.UTC(), true
}

func requiredString(v any, field, id string) (string, error) {
	s, ok := v.(string)
	if !ok {
		reason := "is missing"
		if v != nil {
			reason = fmt.Sprintf("is %T, want string", v)
		}

		return "", &MalformedEntityError{ID: id, Field: field, Reason: reason}
	}

	s = strings.TrimSpace(s)
	if s == "" {
		return "", &MalformedEntityError{ID: id, Field: field, Reason: "is empty"}
	}

	return s, nil
}

func number(v any) (float64, bool) {
	if v == nil {
		return 0, false
	}

	if _, isBool := v.(bool); isBool {
		return 0, false
	}

	f, err := cast.ToFloat64E(v)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}

	return f, true
}

func toNumber(v any) float64 {
	f, _ := number(v)
	return f
}

func clampPercent(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 100 {
		return 100
	}
	return f
}

func normalizeTags(v any) []string {
	raw, err := cast.ToStringSliceE(v)
	if err != nil {
		return []string{}
	}

	set := sets.New[string]()
	for _, t := range raw {
		if t = strings.TrimSpace(t); t != "" {
			set.Insert(t)
		}
	}

	return sets.List(set)
}
