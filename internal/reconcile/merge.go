package reconcile

import (
	"fmt"
	"slices"
	"sort"
	"time"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/HaPhanBaoMinh/upmon/internal/domain"
)

// EmptyBatchPolicy decides what an empty snapshot list means.
type EmptyBatchPolicy string

const (
	// EmptyBatchRetain keeps the previous services; an empty list is more
	// often a backend glitch than a deliberate wipe.
	EmptyBatchRetain EmptyBatchPolicy = "retain"
	// EmptyBatchDelete treats an empty list like any other batch: every
	// service absent from it is removed.
	EmptyBatchDelete EmptyBatchPolicy = "delete"
)

func ParseEmptyBatchPolicy(s string) (EmptyBatchPolicy, error) {
	switch p := EmptyBatchPolicy(s); p {
	case EmptyBatchRetain, EmptyBatchDelete:
		return p, nil
	case "":
		return EmptyBatchRetain, nil
	default:
		return "", fmt.Errorf("unexpected empty batch policy %q", s)
	}
}

type Options struct {
	EmptyBatch EmptyBatchPolicy
	// Authoritative marks a batch known to be complete, e.g. the re-poll
	// right after a delete. An empty authoritative batch always deletes.
	Authoritative bool
	// Now stamps latency points that carry no timestamp at all.
	Now time.Time
}

type Result struct {
	Services map[string]*domain.Service
	// Order lists ids in batch order. When Retained it is the previous ids sorted.
	// A batch with no valid record is retained like an empty one.
	Order     []string
	Malformed []error
	Changed   int // new or replaced services
	Removed   int
	Retained  bool
}

// Err aggregates the malformed records of the batch, nil when there were none.
func (r Result) Err() error {
	return utilerrors.NewAggregate(r.Malformed)
}

// Merge reconciles the previous services with a freshly fetched batch.
//
// A service whose history did not advance and whose metadata is unchanged
// keeps its previous pointer. Services absent from the batch are dropped.
// When an id repeats within the batch, its last record wins.
// prev is never modified.
func Merge(prev map[string]*domain.Service, incoming []domain.Snapshot, opts Options) Result {
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}

	if len(incoming) == 0 && !opts.Authoritative && opts.EmptyBatch != EmptyBatchDelete {
		return retained(prev)
	}

	candidates := make([]*domain.Service, 0, len(incoming))
	last := make(map[string]int, len(incoming))
	var malformed []error

	for _, raw := range incoming {
		c, err := Normalize(raw, opts.Now)
		if err != nil {
			malformed = append(malformed, err)
			continue
		}

		last[c.ID] = len(candidates)
		candidates = append(candidates, c)
	}

	if len(candidates) == 0 && !opts.Authoritative && opts.EmptyBatch != EmptyBatchDelete {
		res := retained(prev)
		res.Malformed = malformed

		return res
	}

	res := Result{
		Services:  make(map[string]*domain.Service, len(last)),
		Order:     make([]string, 0, len(last)),
		Malformed: malformed,
	}

	for i, c := range candidates {
		if last[c.ID] != i {
			continue
		}

		p := prev[c.ID]
		next := mergeOne(p, c)
		if next != p {
			res.Changed++
		}

		res.Services[c.ID] = next
		res.Order = append(res.Order, c.ID)
	}

	for id := range prev {
		if _, ok := res.Services[id]; !ok {
			res.Removed++
		}
	}

	return res
}

func retained(prev map[string]*domain.Service) Result {
	res := Result{
		Services: make(map[string]*domain.Service, len(prev)),
		Order:    make([]string, 0, len(prev)),
		Retained: true,
	}

	for id, s := range prev {
		res.Services[id] = s
		res.Order = append(res.Order, id)
	}

	sort.Strings(res.Order)

	return res
}

func mergeOne(p, c *domain.Service) *domain.Service {
	if p == nil {
		return c
	}

	fresh := newPoints(p.Latency, c.Latency)
	if len(fresh) == 0 && p.SameMeta(c) {
		return p
	}

	next := *c
	next.Latency = p.Latency
	for _, pt := range fresh {
		next.Latency.Push(pt)
	}

	return &next
}

// newPoints returns the candidate points not yet held.
//
// Points with their own timestamp are new when strictly newer than the last
// timestamped point held. Estimated points have no reliable time, so a leading
// run of them that repeats the tail of the held values is taken as re-sent.
func newPoints(held, candidate domain.Window) []domain.LatencyPoint {
	if held.Len() == 0 {
		return candidate.Points()
	}

	var (
		lastAt    time.Time
		estimated []float64
	)

	for _, pt := range held.Points() {
		if !pt.Estimated {
			lastAt = pt.At
		}
	}

	pts := candidate.Points()
	for _, pt := range pts {
		if pt.Estimated {
			estimated = append(estimated, pt.Value)
		}
	}

	skip := overlap(held.Values(), estimated)

	var out []domain.LatencyPoint
	for _, pt := range pts {
		switch {
		case pt.Estimated && skip > 0:
			skip--
		case pt.Estimated, pt.At.After(lastAt):
			out = append(out, pt)
		}
	}

	return out
}

// overlap returns the largest k such that the last k values of held equal
// the first k values of next.
func overlap(held, next []float64) int {
	for k := min(len(held), len(next)); k > 0; k-- {
		if slices.Equal(held[len(held)-k:], next[:k]) {
			return k
		}
	}

	return 0
}
