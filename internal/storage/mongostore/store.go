// Package mongostore implements the domain repositories on MongoDB.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jobhouse/server/internal/config"
	"github.com/jobhouse/server/internal/domain/applications"
	"github.com/jobhouse/server/internal/domain/events"
	"github.com/jobhouse/server/internal/domain/jobapplications"
	"github.com/jobhouse/server/internal/domain/users"
	"github.com/jobhouse/server/internal/metrics"
	"github.com/jobhouse/server/internal/storage"
)

// Collection names.
const (
	CollectionUsers             = "users"
	CollectionUserTokens        = "usertokens"
	CollectionEvents            = "events"
	CollectionEventApplications = "eventapplications"
	CollectionJobApplications   = "jobapplications"
	CollectionCascades          = "cascades"
	CollectionSchemaMigrations  = "schema_migrations"
)

var tracer = otel.Tracer("github.com/jobhouse/server/internal/storage/mongostore")

// Store implements storage.Repository on one MongoDB database.
type Store struct {
	client       *mongo.Client
	db           *mongo.Database
	transactions bool
	logger       zerolog.Logger

	events          *EventRepository
	applications    *ApplicationRepository
	jobApplications *JobApplicationRepository
	users           *UserRepository
}

var _ storage.Repository = (*Store)(nil)

// Connect dials MongoDB and verifies the primary is reachable.
func Connect(ctx context.Context, cfg config.DatabaseConfig, logger zerolog.Logger) (*Store, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("mongostore: URI is empty")
	}

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetAppName("jobhouse-server").
		SetPoolMonitor(metrics.PoolMonitor(cfg.MaxPoolSize))
	if cfg.MaxPoolSize > 0 {
		opts.SetMaxPoolSize(cfg.MaxPoolSize)
	}
	if cfg.Timeout > 0 {
		opts.SetServerSelectionTimeout(cfg.Timeout).SetConnectTimeout(cfg.Timeout)
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout(cfg.Timeout))
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	return New(client, cfg.Name, cfg.Transactions, logger), nil
}

// New wraps an connected client.
func New(client *mongo.Client, database string, transactions bool, logger zerolog.Logger) *Store {
	s := &Store{
		client:       client,
		db:           client.Database(database),
		transactions: transactions,
		logger:       logger.With().Str("component", "mongostore").Logger(),
	}
	s.events = &EventRepository{store: s}
	s.applications = &ApplicationRepository{store: s}
	s.jobApplications = &JobApplicationRepository{store: s}
	s.users = &UserRepository{store: s}
	return s
}

func (s *Store) Events() events.Repository                   { return s.events }
func (s *Store) Applications() applications.Repository       { return s.applications }
func (s *Store) JobApplications() jobapplications.Repository { return s.jobApplications }
func (s *Store) Users() users.Repository                     { return s.users }

// Database exposes the underlying database for health checks and tests.
func (s *Store) Database() *mongo.Database {
	return s.db
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) collection(name string) *mongo.Collection {
	return s.db.Collection(name)
}

// expected errors are outcomes, not faults, and are not counted as errors.
var expected = []error{
	mongo.ErrNoDocuments,
	events.ErrNotFound,
	applications.ErrNotFound,
	applications.ErrAlreadyApplied,
	jobapplications.ErrNotFound,
	jobapplications.ErrAlreadyApplied,
	users.ErrUserNotFound,
	users.ErrEmailTaken,
	users.ErrInvalidToken,
}

// begin opens a client span for op. The returned func records the outcome
// and must be called exactly once.
func (s *Store) begin(ctx context.Context, op string) (context.Context, func(error)) {
	ctx, span := tracer.Start(ctx, "mongo."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "mongodb"),
			attribute.String("db.name", s.db.Name()),
			attribute.String("db.operation", op),
		),
	)
	start := time.Now()
	return ctx, func(err error) {
		for _, e := range expected {
			if errors.Is(err, e) {
				err = nil
				break
			}
		}
		metrics.RecordQuery(op, start, err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

func pingTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return 10 * time.Second
	}
	return d
}
