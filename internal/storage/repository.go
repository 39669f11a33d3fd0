package storage

import (
	"context"

	"github.com/jobhouse/server/internal/domain/applications"
	"github.com/jobhouse/server/internal/domain/events"
	"github.com/jobhouse/server/internal/domain/jobapplications"
	"github.com/jobhouse/server/internal/domain/users"
)

// Repository groups data access by domain.
type Repository interface {
	Events() events.Repository
	Applications() applications.Repository
	JobApplications() jobapplications.Repository
	Users() users.Repository

	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
