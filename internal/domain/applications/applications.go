package applications

import (
	"time"

	"github.com/jobhouse/server/internal/domain/events"
)

// Review states an admin can move an application through.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// ValidStatus reports whether s is a known review state.
func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Application is a user's registration against one event. UserID and
// EventID are fixed at creation.
type Application struct {
	ID          string
	UserID      string
	EventID     string
	Name        string
	PhoneNumber string
	Email       string
	Message     string
	Status      string
	AdminNote   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Submission is what an applicant sends.
type Submission struct {
	EventID     string
	UserID      string
	Name        string
	PhoneNumber string
	Email       string
	Message     string
}

// Amendment is an admin partial update. Nil fields are left unchanged.
type Amendment struct {
	Name        *string
	PhoneNumber *string
	Email       *string
	Message     *string
	Status      *string
	AdminNote   *string
}

// IsEmpty reports whether the amendment changes nothing.
func (a Amendment) IsEmpty() bool {
	return a.Name == nil && a.PhoneNumber == nil && a.Email == nil &&
		a.Message == nil && a.Status == nil && a.AdminNote == nil
}

// ApplyTo overwrites only the fields present in a.
func (a Amendment) ApplyTo(app *Application) {
	if a.Name != nil {
		app.Name = *a.Name
	}
	if a.PhoneNumber != nil {
		app.PhoneNumber = *a.PhoneNumber
	}
	if a.Email != nil {
		app.Email = *a.Email
	}
	if a.Message != nil {
		app.Message = *a.Message
	}
	if a.Status != nil {
		app.Status = *a.Status
	}
	if a.AdminNote != nil {
		app.AdminNote = *a.AdminNote
	}
}

// JoinMode selects how much of the parent event is attached on read.
type JoinMode int

const (
	// JoinIntroduction attaches only the event's id and introduction.
	JoinIntroduction JoinMode = iota
	// JoinFull attaches the whole event.
	JoinFull
)

// Joined is an application with its parent event. Event is nil when the
// event no longer exists.
type Joined struct {
	Application
	Event *events.Event
}

// Filter narrows a joined listing. The zero value matches everything.
type Filter struct {
	UserID string
}
