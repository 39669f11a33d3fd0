package events

import "context"

// Repository persists events. Implementations return ErrNotFound when the
// addressed event does not exist.
type Repository interface {
	Create(ctx context.Context, fields Fields) (*Event, error)
	GetByID(ctx context.Context, id string) (*Event, error)
	Exists(ctx context.Context, id string) (bool, error)
	Replace(ctx context.Context, id string, fields Fields) (*Event, error)
	// DeleteCascade removes the event and every application referencing it
	// as one unit. When the second step fails it returns ErrCascadeIncomplete.
	DeleteCascade(ctx context.Context, id string) (CascadeResult, error)
	Count(ctx context.Context) (int64, error)
	ListPage(ctx context.Context, offset, limit int64) ([]Event, error)
	ListWithApplicantCounts(ctx context.Context) ([]WithApplicants, error)
	// ReconcileCascades finishes cascades left pending by earlier failures
	// and returns how many were completed.
	ReconcileCascades(ctx context.Context) (int, error)
}
