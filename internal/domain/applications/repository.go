package applications

import "context"

// Repository persists event applications. Create must return
// ErrAlreadyApplied when the (user, event) pair is already taken; lookups
// return ErrNotFound for absent records.
type Repository interface {
	Create(ctx context.Context, app Application) (*Application, error)
	GetJoined(ctx context.Context, id string, mode JoinMode) (*Joined, error)
	Amend(ctx context.Context, id string, amendment Amendment) (*Application, error)
	Delete(ctx context.Context, id string) error
	ListJoined(ctx context.Context, filter Filter, mode JoinMode) ([]Joined, error)
	ListByEvent(ctx context.Context, eventID string) ([]Application, error)
	GetForEvent(ctx context.Context, eventID, id string) (*Application, error)
}

// EventLookup answers whether a parent event exists.
type EventLookup interface {
	Exists(ctx context.Context, id string) (bool, error)
}
