// Package jobapplications handles applications to work at the job house.
// Each user may hold at most one.
package jobapplications

import (
	"errors"
	"time"
)

// Review states.
const (
	StatusPending     = "pending"
	StatusShortlisted = "shortlisted"
	StatusHired       = "hired"
	StatusRejected    = "rejected"
)

func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusShortlisted, StatusHired, StatusRejected:
		return true
	}
	return false
}

var (
	ErrNotFound       = errors.New("job application not found")
	ErrAlreadyApplied = errors.New("already submitted a job application")
	ErrInvalidStatus  = errors.New("status must be one of pending, shortlisted, hired, rejected")
)

type JobApplication struct {
	ID          string
	UserID      string
	FullName    string
	Email       string
	PhoneNumber string
	Position    string
	ResumeURL   string
	CoverLetter string
	Status      string
	AdminNote   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Submission struct {
	UserID      string
	FullName    string
	Email       string
	PhoneNumber string
	Position    string
	ResumeURL   string
	CoverLetter string
}

// Amendment is an admin partial update. Nil fields are left unchanged.
type Amendment struct {
	FullName    *string
	Email       *string
	PhoneNumber *string
	Position    *string
	ResumeURL   *string
	CoverLetter *string
	Status      *string
	AdminNote   *string
}

// ApplyTo overwrites only the fields present in a.
func (a Amendment) ApplyTo(app *JobApplication) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&app.FullName, a.FullName)
	set(&app.Email, a.Email)
	set(&app.PhoneNumber, a.PhoneNumber)
	set(&app.Position, a.Position)
	set(&app.ResumeURL, a.ResumeURL)
	set(&app.CoverLetter, a.CoverLetter)
	set(&app.Status, a.Status)
	set(&app.AdminNote, a.AdminNote)
}
