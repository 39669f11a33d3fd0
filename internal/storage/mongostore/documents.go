package mongostore

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/jobhouse/server/internal/auth"
	"github.com/jobhouse/server/internal/domain/applications"
	"github.com/jobhouse/server/internal/domain/events"
	"github.com/jobhouse/server/internal/domain/jobapplications"
	"github.com/jobhouse/server/internal/domain/users"
)

type scheduleDoc struct {
	Title       string `bson:"title"`
	Description string `bson:"description"`
	Time        string `bson:"time"`
}

type eventDoc struct {
	ID                  primitive.ObjectID `bson:"_id,omitempty"`
	Price               float64            `bson:"price"`
	Deadline            *time.Time         `bson:"deadline"`
	ProductIntroduction string             `bson:"productIntroduction"`
	ProductDescription  string             `bson:"productDescription"`
	EventImages         []string           `bson:"eventImages"`
	Departure           string             `bson:"departure"`
	Arrival             string             `bson:"arrival"`
	Traffic             string             `bson:"traffic"`
	ProductInformation  bson.M             `bson:"productInformation"`
	Schedules           []scheduleDoc      `bson:"schedules"`
	CreatedAt           time.Time          `bson:"createdAt"`
	UpdatedAt           time.Time          `bson:"updatedAt"`
}

type eventWithCountDoc struct {
	eventDoc           `bson:",inline"`
	NumberOfApplicants int64 `bson:"numberOfApplicants"`
}

// eventFields returns the $set document for every mutable field. Absent
// values are written as null.
func eventFields(f events.Fields) bson.M {
	var schedules []scheduleDoc
	if f.Schedules != nil {
		schedules = make([]scheduleDoc, len(f.Schedules))
		for i, s := range f.Schedules {
			schedules[i] = scheduleDoc{Title: s.Title, Description: s.Description, Time: s.Time}
		}
	}
	var info bson.M
	if f.ProductInformation != nil {
		info = bson.M(f.ProductInformation)
	}
	var deadline any
	if f.Deadline != nil {
		deadline = f.Deadline.UTC()
	}
	return bson.M{
		"price":               f.Price,
		"deadline":            deadline,
		"productIntroduction": f.ProductIntroduction,
		"productDescription":  f.ProductDescription,
		"eventImages":         f.EventImages,
		"departure":           f.Departure,
		"arrival":             f.Arrival,
		"traffic":             f.Traffic,
		"productInformation":  info,
		"schedules":           schedules,
	}
}

func (d eventDoc) toDomain() events.Event {
	var schedules []events.Schedule
	if d.Schedules != nil {
		schedules = make([]events.Schedule, len(d.Schedules))
		for i, s := range d.Schedules {
			schedules[i] = events.Schedule{Title: s.Title, Description: s.Description, Time: s.Time}
		}
	}
	var info map[string]any
	if d.ProductInformation != nil {
		info = plainMap(d.ProductInformation)
	}
	var deadline *time.Time
	if d.Deadline != nil {
		t := d.Deadline.UTC()
		deadline = &t
	}
	return events.Event{
		ID: d.ID.Hex(),
		Fields: events.Fields{
			Price:               d.Price,
			Deadline:            deadline,
			ProductIntroduction: d.ProductIntroduction,
			ProductDescription:  d.ProductDescription,
			EventImages:         d.EventImages,
			Departure:           d.Departure,
			Arrival:             d.Arrival,
			Traffic:             d.Traffic,
			ProductInformation:  info,
			Schedules:           schedules,
		},
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

// plainMap converts decoded BSON containers into plain maps and slices so
// free-form documents encode as ordinary JSON.
func plainMap(m bson.M) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = plainValue(v)
	}
	return out
}

func plainValue(v any) any {
	switch t := v.(type) {
	case bson.M:
		return plainMap(t)
	case bson.D:
		out := make(map[string]any, len(t))
		for _, e := range t {
			out[e.Key] = plainValue(e.Value)
		}
		return out
	case bson.A:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = plainValue(e)
		}
		return out
	case primitive.ObjectID:
		return t.Hex()
	case primitive.DateTime:
		return t.Time().UTC()
	default:
		return v
	}
}

type applicationDoc struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	User        primitive.ObjectID `bson:"user"`
	Event       primitive.ObjectID `bson:"event"`
	Name        string             `bson:"name"`
	PhoneNumber string             `bson:"phoneNumber"`
	Email       string             `bson:"email"`
	Message     string             `bson:"message"`
	Status      string             `bson:"status"`
	AdminNote   string             `bson:"adminNote"`
	CreatedAt   time.Time          `bson:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt"`
	EventDoc    *eventDoc          `bson:"eventDoc,omitempty"`
}

func (d applicationDoc) toDomain() applications.Application {
	return applications.Application{
		ID:          d.ID.Hex(),
		UserID:      d.User.Hex(),
		EventID:     d.Event.Hex(),
		Name:        d.Name,
		PhoneNumber: d.PhoneNumber,
		Email:       d.Email,
		Message:     d.Message,
		Status:      d.Status,
		AdminNote:   d.AdminNote,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

func (d applicationDoc) toJoined() applications.Joined {
	joined := applications.Joined{Application: d.toDomain()}
	if d.EventDoc != nil && !d.EventDoc.ID.IsZero() {
		event := d.EventDoc.toDomain()
		joined.Event = &event
	}
	return joined
}

type jobApplicationDoc struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	User        primitive.ObjectID `bson:"user"`
	FullName    string             `bson:"fullName"`
	Email       string             `bson:"email"`
	PhoneNumber string             `bson:"phoneNumber"`
	Position    string             `bson:"position"`
	ResumeURL   string             `bson:"resumeUrl"`
	CoverLetter string             `bson:"coverLetter"`
	Status      string             `bson:"status"`
	AdminNote   string             `bson:"adminNote"`
	CreatedAt   time.Time          `bson:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt"`
}

func (d jobApplicationDoc) toDomain() jobapplications.JobApplication {
	return jobapplications.JobApplication{
		ID:          d.ID.Hex(),
		UserID:      d.User.Hex(),
		FullName:    d.FullName,
		Email:       d.Email,
		PhoneNumber: d.PhoneNumber,
		Position:    d.Position,
		ResumeURL:   d.ResumeURL,
		CoverLetter: d.CoverLetter,
		Status:      d.Status,
		AdminNote:   d.AdminNote,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

type userDoc struct {
	ID             primitive.ObjectID `bson:"_id,omitempty"`
	Name           string             `bson:"name"`
	Email          string             `bson:"email"`
	PasswordHash   string             `bson:"passwordHash"`
	Role           string             `bson:"role"`
	EmailConfirmed bool               `bson:"emailConfirmed"`
	CreatedAt      time.Time          `bson:"createdAt"`
	UpdatedAt      time.Time          `bson:"updatedAt"`
}

func (d userDoc) toDomain() users.User {
	return users.User{
		ID:             d.ID.Hex(),
		Name:           d.Name,
		Email:          d.Email,
		PasswordHash:   d.PasswordHash,
		Role:           auth.NormalizeRole(d.Role),
		EmailConfirmed: d.EmailConfirmed,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}

type tokenDoc struct {
	Hash      string             `bson:"tokenHash"`
	User      primitive.ObjectID `bson:"user"`
	Purpose   string             `bson:"purpose"`
	ExpiresAt time.Time          `bson:"expiresAt"`
}

type cascadeDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Event     primitive.ObjectID `bson:"event"`
	CreatedAt time.Time          `bson:"createdAt"`
}

// now truncates to millisecond precision, the resolution BSON dates keep.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
