package events

import "time"

// Schedule is one entry of an event's itinerary.
type Schedule struct {
	Title       string
	Description string
	Time        string
}

// Fields holds every mutable attribute of an event.
type Fields struct {
	Price               float64
	Deadline            *time.Time
	ProductIntroduction string
	ProductDescription  string
	EventImages         []string
	Departure           string
	Arrival             string
	Traffic             string
	ProductInformation  map[string]any
	Schedules           []Schedule
}

// Event is a bookable offering administered by admins.
type Event struct {
	ID string
	Fields
	CreatedAt time.Time
	UpdatedAt time.Time
}

// WithApplicants annotates an event with the number of applications referencing it.
type WithApplicants struct {
	Event
	NumberOfApplicants int64
}

// CascadeResult reports what an event deletion removed.
type CascadeResult struct {
	EventID             string
	ApplicationsRemoved int64
}

// Input is the payload of an event registration.
type Input Fields

func (in Input) fields() Fields {
	return sanitizeFields(Fields(in))
}

// Replacement is the payload of an event edit. Every field is written, so
// anything the caller leaves out is cleared on the stored event.
type Replacement struct {
	Price               float64
	Deadline            *time.Time
	ProductIntroduction string
	ProductDescription  string
	EventImages         []string
	Departure           string
	Arrival             string
	Traffic             string
	ProductInformation  map[string]any
	Schedules           []Schedule
}

// applyTo overwrites every mutable field of f.
func (r Replacement) applyTo(f *Fields) {
	f.Price = r.Price
	f.Deadline = r.Deadline
	f.ProductIntroduction = r.ProductIntroduction
	f.ProductDescription = r.ProductDescription
	f.EventImages = r.EventImages
	f.Departure = r.Departure
	f.Arrival = r.Arrival
	f.Traffic = r.Traffic
	f.ProductInformation = r.ProductInformation
	f.Schedules = r.Schedules
}
