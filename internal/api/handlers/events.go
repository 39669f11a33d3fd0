package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/jobhouse/server/internal/api/render"
	"github.com/jobhouse/server/internal/domain/events"
	"github.com/jobhouse/server/internal/domain/ids"
	"github.com/jobhouse/server/internal/domain/listing"
)

type EventsHandler struct {
	Service    *events.Service
	Pagination events.PaginationConfig
}

func NewEventsHandler(service *events.Service, pagination events.PaginationConfig) *EventsHandler {
	return &EventsHandler{Service: service, Pagination: pagination}
}

type schedulePayload struct {
	Title       string `json:"title" validate:"max=200"`
	Description string `json:"description" validate:"max=5000"`
	Time        string `json:"time" validate:"max=100"`
}

// eventPayload is shared by registration and edit. On edit every field is
// applied, so a missing key clears the stored value.
type eventPayload struct {
	Price               float64           `json:"price" validate:"gte=0"`
	Deadline            json.RawMessage   `json:"deadline"`
	ProductIntroduction string            `json:"productIntroduction" validate:"max=20000"`
	ProductDescription  string            `json:"productDescription" validate:"max=100000"`
	EventImages         []string          `json:"eventImages" validate:"omitempty,dive,max=2048"`
	Departure           string            `json:"departure" validate:"max=500"`
	Arrival             string            `json:"arrival" validate:"max=500"`
	Traffic             string            `json:"traffic" validate:"max=500"`
	ProductInformation  map[string]any    `json:"productInformation"`
	Schedules           []schedulePayload `json:"schedules" validate:"omitempty,dive"`
}

func (p eventPayload) schedules() []events.Schedule {
	if p.Schedules == nil {
		return nil
	}
	out := make([]events.Schedule, len(p.Schedules))
	for i, s := range p.Schedules {
		out[i] = events.Schedule{Title: s.Title, Description: s.Description, Time: s.Time}
	}
	return out
}

func (p eventPayload) input(deadline *time.Time) events.Input {
	return events.Input{
		Price:               p.Price,
		Deadline:            deadline,
		ProductIntroduction: p.ProductIntroduction,
		ProductDescription:  p.ProductDescription,
		EventImages:         p.EventImages,
		Departure:           p.Departure,
		Arrival:             p.Arrival,
		Traffic:             p.Traffic,
		ProductInformation:  p.ProductInformation,
		Schedules:           p.schedules(),
	}
}

func (p eventPayload) replacement(deadline *time.Time) events.Replacement {
	return events.Replacement{
		Price:               p.Price,
		Deadline:            deadline,
		ProductIntroduction: p.ProductIntroduction,
		ProductDescription:  p.ProductDescription,
		EventImages:         p.EventImages,
		Departure:           p.Departure,
		Arrival:             p.Arrival,
		Traffic:             p.Traffic,
		ProductInformation:  p.ProductInformation,
		Schedules:           p.schedules(),
	}
}

type scheduleResponse struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Time        string `json:"time"`
}

type eventResponse struct {
	ID                  string             `json:"_id"`
	Price               float64            `json:"price"`
	Deadline            *time.Time         `json:"deadline"`
	ProductIntroduction string             `json:"productIntroduction"`
	ProductDescription  string             `json:"productDescription"`
	EventImages         []string           `json:"eventImages"`
	Departure           string             `json:"departure"`
	Arrival             string             `json:"arrival"`
	Traffic             string             `json:"traffic"`
	ProductInformation  map[string]any     `json:"productInformation"`
	Schedules           []scheduleResponse `json:"schedules"`
	CreatedAt           time.Time          `json:"createdAt"`
	UpdatedAt           time.Time          `json:"updatedAt"`
}

func newEventResponse(e events.Event) eventResponse {
	schedules := make([]scheduleResponse, 0, len(e.Schedules))
	for _, s := range e.Schedules {
		schedules = append(schedules, scheduleResponse{Title: s.Title, Description: s.Description, Time: s.Time})
	}
	images := e.EventImages
	if images == nil {
		images = []string{}
	}
	return eventResponse{
		ID:                  e.ID,
		Price:               e.Price,
		Deadline:            e.Deadline,
		ProductIntroduction: e.ProductIntroduction,
		ProductDescription:  e.ProductDescription,
		EventImages:         images,
		Departure:           e.Departure,
		Arrival:             e.Arrival,
		Traffic:             e.Traffic,
		ProductInformation:  e.ProductInformation,
		Schedules:           schedules,
		CreatedAt:           e.CreatedAt,
		UpdatedAt:           e.UpdatedAt,
	}
}

type adminEventResponse struct {
	eventResponse
	NumberOfApplicants int64 `json:"numberOfApplicants"`
}

type pageResponse struct {
	CurrentPage   int64           `json:"currentPage"`
	EventsPerPage int64           `json:"eventsPerPage"`
	TotalEvents   int64           `json:"totalEvents"`
	Events        []eventResponse `json:"events"`
}

func (h *EventsHandler) decode(w http.ResponseWriter, r *http.Request) (eventPayload, *time.Time, bool) {
	var payload eventPayload
	if !decodeBody(w, r, &payload) {
		return payload, nil, false
	}
	deadline, err := events.ParseDeadline(payload.Deadline)
	if err != nil {
		var fe events.FieldError
		if errors.As(err, &fe) {
			render.Validation(w, r, "Validation failed", map[string]string{fe.Field: fe.Message})
			return payload, nil, false
		}
		render.Error(w, r, http.StatusBadRequest, render.MsgInvalidBody, err)
		return payload, nil, false
	}
	return payload, deadline, true
}

func (h *EventsHandler) Register(w http.ResponseWriter, r *http.Request) {
	payload, deadline, ok := h.decode(w, r)
	if !ok {
		return
	}
	event, err := h.Service.Register(r.Context(), payload.input(deadline))
	if err != nil {
		render.Internal(w, r, err)
		return
	}
	render.Success(w, http.StatusCreated, "Event registration successful", newEventResponse(*event))
}

func (h *EventsHandler) Edit(w http.ResponseWriter, r *http.Request) {
	if !ids.IsValid(r.PathValue("eventId")) {
		render.Error(w, r, http.StatusNotFound, "Invalid Event Id", nil)
		return
	}
	payload, deadline, ok := h.decode(w, r)
	if !ok {
		return
	}
	event, err := h.Service.Edit(r.Context(), r.PathValue("eventId"), payload.replacement(deadline))
	switch {
	case err == nil:
		render.Success(w, http.StatusOK, "Event registration updated successfully", newEventResponse(*event))
	case errors.Is(err, ids.ErrInvalidID):
		render.Error(w, r, http.StatusNotFound, "Invalid Event Id", err)
	case errors.Is(err, events.ErrNotFound):
		render.Error(w, r, http.StatusNotFound, "Event not found", err)
	default:
		render.Internal(w, r, err)
	}
}

func (h *EventsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	result, err := h.Service.Delete(r.Context(), r.PathValue("eventId"))
	switch {
	case err == nil:
		render.Success(w, http.StatusOK, "Event deleted successfully!", map[string]any{
			"applicationsRemoved": result.ApplicationsRemoved,
		})
	case errors.Is(err, ids.ErrInvalidID):
		render.Error(w, r, http.StatusNotFound, "Invalid Event Id", err)
	case errors.Is(err, events.ErrNotFound):
		render.Error(w, r, http.StatusNotFound, render.MsgNoRecord, err)
	default:
		render.Internal(w, r, err)
	}
}

func (h *EventsHandler) List(w http.ResponseWriter, r *http.Request) {
	req := events.ParsePagination(r.URL.Query(), h.Pagination)
	result, err := h.Service.List(r.Context(), req)
	if err != nil {
		render.Internal(w, r, err)
		return
	}
	switch result.Kind {
	case listing.Exhausted:
		render.Soft(w, render.MsgNoMore)
	case listing.Empty:
		render.Soft(w, render.MsgNoRecord)
	default:
		out := make([]eventResponse, 0, len(result.Page.Events))
		for _, e := range result.Page.Events {
			out = append(out, newEventResponse(e))
		}
		render.Success(w, http.StatusOK, "Events fetched successfully", pageResponse{
			CurrentPage:   result.Page.CurrentPage,
			EventsPerPage: result.Page.EventsPerPage,
			TotalEvents:   result.Page.TotalEvents,
			Events:        out,
		})
	}
}

func (h *EventsHandler) ListAdmin(w http.ResponseWriter, r *http.Request) {
	result, err := h.Service.ListForAdmin(r.Context())
	if err != nil {
		render.Internal(w, r, err)
		return
	}
	writeList(w, result, "Events fetched successfully", func(e events.WithApplicants) adminEventResponse {
		return adminEventResponse{eventResponse: newEventResponse(e.Event), NumberOfApplicants: e.NumberOfApplicants}
	})
}

func (h *EventsHandler) Get(w http.ResponseWriter, r *http.Request) {
	event, err := h.Service.Get(r.Context(), r.PathValue("eventId"))
	switch {
	case err == nil:
		render.Success(w, http.StatusOK, "Event fetched successfully", newEventResponse(*event))
	case errors.Is(err, ids.ErrInvalidID):
		render.Error(w, r, http.StatusBadRequest, "Invalid event ID", err)
	case errors.Is(err, events.ErrNotFound):
		render.Error(w, r, http.StatusNotFound, "Event not found", err)
	default:
		render.Internal(w, r, err)
	}
}
