package poller

import (
	"context"
	"fmt"

	"github.com/HaPhanBaoMinh/upmon/internal/domain"
)

// Commands are passed to the backend as-is; the scheduler only re-polls
// after they succeed so the view catches up without waiting a full interval.

func (s *Scheduler) Create(ctx context.Context, d domain.ServiceDraft) error {
	_, err := s.repo.AddService(ctx, d)
	if err != nil {
		return fmt.Errorf("create service %q: %w", d.Name, err)
	}

	s.logger.V(1).Info("Service created", "name", d.Name, "url", d.URL)
	s.request(false)

	return nil
}

// Delete removes a service. The poll that follows is authoritative: an empty
// list after deleting the last service is taken at face value.
func (s *Scheduler) Delete(ctx context.Context, id string) error {
	err := s.repo.DeleteService(ctx, id)
	if err != nil {
		return fmt.Errorf("delete service %s: %w", id, err)
	}

	s.logger.V(1).Info("Service deleted", "id", id)
	s.request(true)

	return nil
}

func (s *Scheduler) Check(ctx context.Context, id string) error {
	err := s.repo.CheckService(ctx, id)
	if err != nil {
		return fmt.Errorf("check service %s: %w", id, err)
	}

	s.request(false)

	return nil
}

func (s *Scheduler) CheckAll(ctx context.Context) error {
	err := s.repo.CheckAll(ctx)
	if err != nil {
		return fmt.Errorf("check all services: %w", err)
	}

	s.request(false)

	return nil
}
