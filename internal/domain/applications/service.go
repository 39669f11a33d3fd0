package applications

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/jobhouse/server/internal/domain/ids"
	"github.com/jobhouse/server/internal/domain/listing"
	"github.com/jobhouse/server/internal/metrics"
	"github.com/jobhouse/server/internal/notify"
	"github.com/jobhouse/server/internal/sanitize"
)

type Service struct {
	repo      Repository
	events    EventLookup
	publisher notify.Publisher
	logger    zerolog.Logger
}

func NewService(repo Repository, events EventLookup, publisher notify.Publisher, logger zerolog.Logger) *Service {
	if publisher == nil {
		publisher = notify.Nop{}
	}
	return &Service{
		repo:      repo,
		events:    events,
		publisher: publisher,
		logger:    logger.With().Str("component", "applications").Logger(),
	}
}

// Submit records the caller's application to an event. The one per user and
// event rule is enforced by the repository, not by a prior lookup.
func (s *Service) Submit(ctx context.Context, sub Submission) (*Application, error) {
	eventID, err := ids.Normalize(sub.EventID)
	if err != nil {
		return nil, ErrEventNotFound
	}
	exists, err := s.events.Exists(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("lookup event: %w", err)
	}
	if !exists {
		return nil, ErrEventNotFound
	}

	app, err := s.repo.Create(ctx, Application{
		UserID:      sub.UserID,
		EventID:     eventID,
		Name:        sanitize.Text(sub.Name),
		PhoneNumber: sanitize.Text(sub.PhoneNumber),
		Email:       sanitize.Text(sub.Email),
		Message:     sanitize.Text(sub.Message),
		Status:      StatusPending,
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyApplied) {
			metrics.ApplicationConflicts.WithLabelValues("event").Inc()
			return nil, ErrAlreadyApplied
		}
		return nil, fmt.Errorf("create application: %w", err)
	}

	metrics.ApplicationsSubmitted.WithLabelValues("event").Inc()
	notify.Emit(ctx, s.publisher, s.logger, notify.New(notify.ApplicationSubmitted, app.ID, map[string]string{
		"event_id": app.EventID,
		"user_id":  app.UserID,
	}))
	return app, nil
}

// Amend applies an admin partial update.
func (s *Service) Amend(ctx context.Context, id string, amendment Amendment) (*Application, error) {
	id, err := validID(id)
	if err != nil {
		return nil, err
	}
	if amendment.Status != nil && !ValidStatus(*amendment.Status) {
		return nil, ErrInvalidStatus
	}

	app, err := s.repo.Amend(ctx, id, sanitizeAmendment(amendment))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("amend application: %w", err)
	}

	notify.Emit(ctx, s.publisher, s.logger, notify.New(notify.ApplicationAmended, app.ID, map[string]string{
		"event_id": app.EventID,
		"status":   app.Status,
	}))
	return app, nil
}

// Remove deletes exactly one application.
func (s *Service) Remove(ctx context.Context, id string) error {
	id, err := validID(id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete application: %w", err)
	}

	notify.Emit(ctx, s.publisher, s.logger, notify.New(notify.ApplicationRemoved, id, nil))
	return nil
}

// ListAll returns every application with the parent event's introduction.
func (s *Service) ListAll(ctx context.Context) (listing.Result[Joined], error) {
	items, err := s.repo.ListJoined(ctx, Filter{}, JoinIntroduction)
	if err != nil {
		return listing.Result[Joined]{}, fmt.Errorf("list applications: %w", err)
	}
	return listing.Of(items), nil
}

// ListMine returns the caller's applications with their full events.
func (s *Service) ListMine(ctx context.Context, userID string) (listing.Result[Joined], error) {
	items, err := s.repo.ListJoined(ctx, Filter{UserID: userID}, JoinFull)
	if err != nil {
		return listing.Result[Joined]{}, fmt.Errorf("list applications of user: %w", err)
	}
	return listing.Of(items), nil
}

// Get returns one application with its full event. Callers other than the
// owner or an admin see ErrNotFound, as do malformed ids.
func (s *Service) Get(ctx context.Context, id, userID string, isAdmin bool) (*Joined, error) {
	id, err := ids.Normalize(id)
	if err != nil {
		return nil, ErrNotFound
	}
	joined, err := s.repo.GetJoined(ctx, id, JoinFull)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get application: %w", err)
	}
	if !isAdmin && joined.UserID != userID {
		return nil, ErrNotFound
	}
	return joined, nil
}

// ListOfEvent returns the applications of one event. An existing event with
// no applications yields an empty slice, not an error.
func (s *Service) ListOfEvent(ctx context.Context, eventID string) ([]Application, error) {
	eventID, err := s.existingEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("list applications of event: %w", err)
	}
	if items == nil {
		items = []Application{}
	}
	return items, nil
}

// GetOfEvent returns one application only if it belongs to the event.
func (s *Service) GetOfEvent(ctx context.Context, eventID, id string) (*Application, error) {
	eventID, err := s.existingEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	id, err = ids.Normalize(id)
	if err != nil {
		return nil, ErrNotFound
	}
	app, err := s.repo.GetForEvent(ctx, eventID, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get application of event: %w", err)
	}
	return app, nil
}

func (s *Service) existingEvent(ctx context.Context, eventID string) (string, error) {
	eventID, err := ids.Normalize(eventID)
	if err != nil {
		return "", ErrEventNotFound
	}
	exists, err := s.events.Exists(ctx, eventID)
	if err != nil {
		return "", fmt.Errorf("lookup event: %w", err)
	}
	if !exists {
		return "", ErrEventNotFound
	}
	return eventID, nil
}

func sanitizeAmendment(a Amendment) Amendment {
	a.Name = sanitize.TextPtr(a.Name)
	a.PhoneNumber = sanitize.TextPtr(a.PhoneNumber)
	a.Email = sanitize.TextPtr(a.Email)
	a.Message = sanitize.TextPtr(a.Message)
	a.AdminNote = sanitize.TextPtr(a.AdminNote)
	return a
}

func validID(id string) (string, error) {
	normalized, err := ids.Normalize(id)
	if err != nil {
		return "", fmt.Errorf("application id %q: %w", id, err)
	}
	return normalized, nil
}
