package domain

import "context"

//go:generate mockgen -source=ports.go -destination=mock/ports.go -package=mock

// StatusRepo is the transport to the status backend. Health checks run
// server side; the dashboard only reads results and forwards commands.
type StatusRepo interface {
	ListServices(ctx context.Context) ([]Snapshot, error)
	GetService(ctx context.Context, id string) (Snapshot, error)
	AddService(ctx context.Context, d ServiceDraft) (Snapshot, error)
	DeleteService(ctx context.Context, id string) error
	CheckService(ctx context.Context, id string) error
	CheckAll(ctx context.Context) error
}
