package poller

import (
	"time"

	"github.com/HaPhanBaoMinh/upmon/internal/domain"
)

// State is what the rendering layer sees. A published State is never
// modified; each change produces a new one.
type State struct {
	Services []*domain.Service // in backend order
	ByID     map[string]*domain.Service

	// Loading is true until the first poll settles.
	Loading bool
	// Err holds the failure of the last poll, nil once a poll succeeds.
	Err error
	// Malformed aggregates records the last successful poll had to skip.
	Malformed error

	Seq       uint64 // last applied poll
	CheckedAt time.Time
}

func initialState() *State {
	return &State{
		ByID:    map[string]*domain.Service{},
		Loading: true,
	}
}

func (s *State) Service(id string) (*domain.Service, bool) {
	svc, ok := s.ByID[id]
	return svc, ok
}

func (s *State) ErrMessage() string {
	if s.Err == nil {
		return ""
	}
	return s.Err.Error()
}
