package events

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/jobhouse/server/internal/domain/ids"
	"github.com/jobhouse/server/internal/domain/listing"
	"github.com/jobhouse/server/internal/metrics"
	"github.com/jobhouse/server/internal/notify"
)

type Service struct {
	repo      Repository
	publisher notify.Publisher
	logger    zerolog.Logger
}

func NewService(repo Repository, publisher notify.Publisher, logger zerolog.Logger) *Service {
	if publisher == nil {
		publisher = notify.Nop{}
	}
	return &Service{
		repo:      repo,
		publisher: publisher,
		logger:    logger.With().Str("component", "events").Logger(),
	}
}

// Register stores a new event from the full input payload.
func (s *Service) Register(ctx context.Context, in Input) (*Event, error) {
	event, err := s.repo.Create(ctx, in.fields())
	if err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	return event, nil
}

// Edit overwrites every mutable field of the event with r.
func (s *Service) Edit(ctx context.Context, id string, r Replacement) (*Event, error) {
	id, err := validID(id)
	if err != nil {
		return nil, err
	}

	var fields Fields
	r.applyTo(&fields)

	event, err := s.repo.Replace(ctx, id, sanitizeFields(fields))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("replace event: %w", err)
	}
	return event, nil
}

// Delete removes the event and every application referencing it.
func (s *Service) Delete(ctx context.Context, id string) (CascadeResult, error) {
	id, err := validID(id)
	if err != nil {
		return CascadeResult{}, err
	}

	result, err := s.repo.DeleteCascade(ctx, id)
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		return CascadeResult{}, ErrNotFound
	case errors.Is(err, ErrCascadeIncomplete):
		metrics.EventDeletions.WithLabelValues("incomplete").Inc()
		s.logger.Error().Err(err).Str("event_id", id).Msg("event cascade left pending")
		return result, err
	default:
		metrics.EventDeletions.WithLabelValues("error").Inc()
		return CascadeResult{}, fmt.Errorf("delete event: %w", err)
	}

	metrics.EventDeletions.WithLabelValues("success").Inc()
	metrics.CascadedApplications.Add(float64(result.ApplicationsRemoved))

	notify.Emit(ctx, s.publisher, s.logger, notify.New(notify.EventDeleted, id, map[string]string{
		"applications_removed": strconv.FormatInt(result.ApplicationsRemoved, 10),
	}))
	return result, nil
}

// Get returns one event.
func (s *Service) Get(ctx context.Context, id string) (*Event, error) {
	id, err := validID(id)
	if err != nil {
		return nil, err
	}
	event, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return event, nil
}

// Exists reports whether an event with a well-formed id is stored. Malformed
// ids simply do not exist.
func (s *Service) Exists(ctx context.Context, id string) (bool, error) {
	id, err := validID(id)
	if err != nil {
		return false, nil
	}
	return s.repo.Exists(ctx, id)
}

// List returns one page of the public listing. The count and the page are
// fetched concurrently.
func (s *Service) List(ctx context.Context, req PageRequest) (PageResult, error) {
	if req.Page < 1 {
		req.Page = 1
	}
	if req.PerPage < 1 {
		req.PerPage = DefaultPagination.DefaultPerPage
	}
	offset, ok := req.offset()
	if !ok {
		return PageResult{Kind: listing.Exhausted}, nil
	}

	var (
		total int64
		page  []Event
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.repo.Count(gctx)
		if err != nil {
			return fmt.Errorf("count events: %w", err)
		}
		total = n
		return nil
	})
	g.Go(func() error {
		items, err := s.repo.ListPage(gctx, offset, req.PerPage)
		if err != nil {
			return fmt.Errorf("list events: %w", err)
		}
		page = items
		return nil
	})
	if err := g.Wait(); err != nil {
		return PageResult{}, err
	}

	if offset >= total {
		return PageResult{Kind: listing.Exhausted}, nil
	}
	// The count can race ahead of a concurrent delete.
	if len(page) == 0 {
		return PageResult{Kind: listing.Empty}, nil
	}

	return PageResult{
		Kind: listing.Found,
		Page: Page{
			CurrentPage:   req.Page,
			EventsPerPage: req.PerPage,
			TotalEvents:   total,
			Events:        page,
		},
	}, nil
}

// ListForAdmin returns every event with its live applicant count.
func (s *Service) ListForAdmin(ctx context.Context) (listing.Result[WithApplicants], error) {
	items, err := s.repo.ListWithApplicantCounts(ctx)
	if err != nil {
		return listing.Result[WithApplicants]{}, fmt.Errorf("list events with applicants: %w", err)
	}
	return listing.Of(items), nil
}

// ReconcileCascades finishes interrupted event deletions.
func (s *Service) ReconcileCascades(ctx context.Context) (int, error) {
	n, err := s.repo.ReconcileCascades(ctx)
	if err != nil {
		return n, fmt.Errorf("reconcile cascades: %w", err)
	}
	if n > 0 {
		s.logger.Info().Int("completed", n).Msg("reconciled pending event cascades")
	}
	return n, nil
}

func validID(id string) (string, error) {
	normalized, err := ids.Normalize(id)
	if err != nil {
		return "", fmt.Errorf("event id %q: %w", id, err)
	}
	return normalized, nil
}
