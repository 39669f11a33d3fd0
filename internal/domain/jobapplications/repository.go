package jobapplications

import "context"

// Repository persists job applications. Create returns ErrAlreadyApplied
// when the user already holds one.
type Repository interface {
	Create(ctx context.Context, app JobApplication) (*JobApplication, error)
	GetByID(ctx context.Context, id string) (*JobApplication, error)
	Amend(ctx context.Context, id string, amendment Amendment) (*JobApplication, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, userID string) ([]JobApplication, error)
}
