package jobapplications

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
		logger:    logger.With().Str("component", "jobapplications").Logger(),
	}
}

func (s *Service) Create(ctx context.Context, sub Submission) (*JobApplication, error) {
	app, err := s.repo.Create(ctx, JobApplication{
		UserID:      sub.UserID,
		FullName:    sanitize.Text(sub.FullName),
		Email:       sanitize.Text(sub.Email),
		PhoneNumber: sanitize.Text(sub.PhoneNumber),
		Position:    sanitize.Text(sub.Position),
		ResumeURL:   sanitize.Text(sub.ResumeURL),
		CoverLetter: sanitize.Text(sub.CoverLetter),
		Status:      StatusPending,
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyApplied) {
			metrics.ApplicationConflicts.WithLabelValues("job").Inc()
			return nil, ErrAlreadyApplied
		}
		return nil, fmt.Errorf("create job application: %w", err)
	}

	metrics.ApplicationsSubmitted.WithLabelValues("job").Inc()
	notify.Emit(ctx, s.publisher, s.logger, notify.New(notify.JobApplicationSubmitted, app.ID, map[string]string{
		"user_id":  app.UserID,
		"position": app.Position,
	}))
	return app, nil
}

func (s *Service) Update(ctx context.Context, id string, amendment Amendment) (*JobApplication, error) {
	id, err := validID(id)
	if err != nil {
		return nil, err
	}
	if amendment.Status != nil && !ValidStatus(*amendment.Status) {
		return nil, ErrInvalidStatus
	}

	amendment.FullName = sanitize.TextPtr(amendment.FullName)
	amendment.Email = sanitize.TextPtr(amendment.Email)
	amendment.PhoneNumber = sanitize.TextPtr(amendment.PhoneNumber)
	amendment.Position = sanitize.TextPtr(amendment.Position)
	amendment.ResumeURL = sanitize.TextPtr(amendment.ResumeURL)
	amendment.CoverLetter = sanitize.TextPtr(amendment.CoverLetter)
	amendment.AdminNote = sanitize.TextPtr(amendment.AdminNote)

	app, err := s.repo.Amend(ctx, id, amendment)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update job application: %w", err)
	}
	return app, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	id, err := validID(id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete job application: %w", err)
	}
	return nil
}

func (s *Service) ListAll(ctx context.Context) (listing.Result[JobApplication], error) {
	items, err := s.repo.List(ctx, "")
	if err != nil {
		return listing.Result[JobApplication]{}, fmt.Errorf("list job applications: %w", err)
	}
	return listing.Of(items), nil
}

func (s *Service) ListMine(ctx context.Context, userID string) (listing.Result[JobApplication], error) {
	items, err := s.repo.List(ctx, userID)
	if err != nil {
		return listing.Result[JobApplication]{}, fmt.Errorf("list job applications of user: %w", err)
	}
	return listing.Of(items), nil
}

// Get returns one job application to its owner or an admin.
func (s *Service) Get(ctx context.Context, id, userID string, isAdmin bool) (*JobApplication, error) {
	id, err := ids.Normalize(id)
	if err != nil {
		return nil, ErrNotFound
	}
	app, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get job application: %w", err)
	}
	if !isAdmin && app.UserID != userID {
		return nil, ErrNotFound
	}
	return app, nil
}

func validID(id string) (string, error) {
	normalized, err := ids.Normalize(id)
	if err != nil {
		return "", fmt.Errorf("job application id %q: %w", id, err)
	}
	return normalized, nil
}
