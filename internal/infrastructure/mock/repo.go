package mock

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/HaPhanBaoMinh/upmon/internal/domain"
)

var ErrNotFound = errors.New("service not found")

const (
	historySize = domain.WindowSize
	sampleEvery = 10 * time.Second
	resendRatio = 0.2
	flipRatio   = 0.03
)

type service struct {
	id, name, url string
	healthy       bool
	checks, ups   int
	tags          []string
	lastChecked   time.Time
	points        []domain.LatencyPoint
}

// Repo is an in-memory status backend that makes up plausible latency
// samples. Each list call produces one new sample per service, except that
// now and then the previous sample is sent again unchanged.
type Repo struct {
	mu       sync.Mutex
	clock    clockwork.Clock
	rnd      *rand.Rand
	services []*service
}

func New(clock clockwork.Clock, seed int64) *Repo {
	r := &Repo{clock: clock, rnd: rand.New(rand.NewSource(seed))}

	now := clock.Now()
	for _, d := range demo {
		svc := &service{
			id:      d.id,
			name:    d.name,
			url:     d.url,
			healthy: d.healthy,
			checks:  10000,
			ups:     int(math.Round(d.uptime * 100)),
			tags:    d.tags,
		}
		for i, v := range d.latency {
			at := now.Add(-time.Duration(len(d.latency)-i) * sampleEvery)
			svc.points = append(svc.points, domain.LatencyPoint{Value: v, At: at})
		}
		svc.lastChecked = svc.points[len(svc.points)-1].At
		r.services = append(r.services, svc)
	}

	return r
}

func (r *Repo) ListServices(ctx context.Context) ([]domain.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.Snapshot, 0, len(r.services))
	for _, svc := range r.services {
		if len(svc.points) == 0 || r.rnd.Float64() >= resendRatio {
			r.sample(svc)
		}
		out = append(out, svc.snapshot())
	}

	return out, nil
}

func (r *Repo) GetService(ctx context.Context, id string) (domain.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	svc := r.find(id)
	if svc == nil {
		return domain.Snapshot{}, ErrNotFound
	}

	return svc.snapshot(), nil
}

func (r *Repo) AddService(ctx context.Context, d domain.ServiceDraft) (domain.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	svc := &service{
		id:          uuid.NewString(),
		name:        d.Name,
		url:         d.URL,
		healthy:     d.IsHealthy,
		tags:        slices.Clone(d.Tags),
		lastChecked: d.LastChecked,
	}
	r.services = append(r.services, svc)

	return svc.snapshot(), nil
}

func (r *Repo) DeleteService(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := slices.IndexFunc(r.services, func(s *service) bool { return s.id == id })
	if i < 0 {
		return ErrNotFound
	}

	r.services = slices.Delete(r.services, i, i+1)

	return nil
}

func (r *Repo) CheckService(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	svc := r.find(id)
	if svc == nil {
		return ErrNotFound
	}

	r.sample(svc)

	return nil
}

func (r *Repo) CheckAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, svc := range r.services {
		r.sample(svc)
	}

	return nil
}

func (r *Repo) find(id string) *service {
	for _, svc := range r.services {
		if svc.id == id {
			return svc
		}
	}
	return nil
}

// sample records one check result. Timestamps strictly increase even when
// the clock has not moved.
func (r *Repo) sample(svc *service) {
	at := r.clock.Now()

	base := 100.0
	if n := len(svc.points); n > 0 {
		last := svc.points[n-1]
		base = last.Value
		if !at.After(last.At) {
			at = last.At.Add(time.Millisecond)
		}
	}

	if r.rnd.Float64() < flipRatio {
		svc.healthy = !svc.healthy
	}

	svc.checks++
	if svc.healthy {
		svc.ups++
	}
	svc.lastChecked = at

	svc.points = append(svc.points, domain.LatencyPoint{Value: walk(base, r.rnd), At: at})
	if len(svc.points) > historySize {
		svc.points = slices.Delete(svc.points, 0, len(svc.points)-historySize)
	}
}

func (svc *service) snapshot() domain.Snapshot {
	points := make([]domain.RawPoint, 0, len(svc.points))
	for _, p := range svc.points {
		points = append(points, domain.RawPoint{Value: p.Value, Timestamp: p.At.UTC().Format(time.RFC3339Nano)})
	}

	uptime := 100.0
	if svc.checks > 0 {
		uptime = math.Round(float64(svc.ups)/float64(svc.checks)*10000) / 100
	}

	var lastChecked any
	if !svc.lastChecked.IsZero() {
		lastChecked = svc.lastChecked.UTC().Format(time.RFC3339Nano)
	}

	return domain.Snapshot{
		ID:          svc.id,
		Name:        svc.name,
		URL:         svc.url,
		IsHealthy:   svc.healthy,
		LastChecked: lastChecked,
		Uptime:      uptime,
		Tags:        slices.Clone(svc.tags),
		LatencyData: points,
	}
}

// walk moves v by up to ±8% and keeps it within a sane latency range.
func walk(v float64, r *rand.Rand) float64 {
	v += (r.Float64() - 0.5) * 0.16 * v
	return math.Round(clamp(v, 1, 5000))
}

func clamp(f, lo, hi float64) float64 {
	if f < lo {
		return lo
	}
	if f > hi {
		return hi
	}
	return f
}
