package events

import "github.com/jobhouse/server/internal/sanitize"

func sanitizeFields(f Fields) Fields {
	f.ProductIntroduction = sanitize.HTML(f.ProductIntroduction)
	f.ProductDescription = sanitize.HTML(f.ProductDescription)
	f.Departure = sanitize.Text(f.Departure)
	f.Arrival = sanitize.Text(f.Arrival)
	f.Traffic = sanitize.Text(f.Traffic)
	if f.Schedules != nil {
		schedules := make([]Schedule, len(f.Schedules))
		for i, s := range f.Schedules {
			schedules[i] = Schedule{
				Title:       sanitize.Text(s.Title),
				Description: sanitize.Text(s.Description),
				Time:        sanitize.Text(s.Time),
			}
		}
		f.Schedules = schedules
	}
	return f
}
