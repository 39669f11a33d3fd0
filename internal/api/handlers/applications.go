package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/jobhouse/server/internal/api/render"
	"github.com/jobhouse/server/internal/domain/applications"
	"github.com/jobhouse/server/internal/domain/ids"
)

type ApplicationsHandler struct {
	Service *applications.Service
}

func NewApplicationsHandler(service *applications.Service) *ApplicationsHandler {
	return &ApplicationsHandler{Service: service}
}

type submissionPayload struct {
	Name        string `json:"name" validate:"required,max=200"`
	PhoneNumber string `json:"phoneNumber" validate:"required,max=50"`
	Email       string `json:"email" validate:"required,email,max=254"`
	Message     string `json:"message" validate:"max=5000"`
}

// amendmentPayload distinguishes absent keys (nil) from empty values.
type amendmentPayload struct {
	Name        *string `json:"name" validate:"omitempty,max=200"`
	PhoneNumber *string `json:"phoneNumber" validate:"omitempty,max=50"`
	Email       *string `json:"email" validate:"omitempty,email,max=254"`
	Message     *string `json:"message" validate:"omitempty,max=5000"`
	Status      *string `json:"status" validate:"omitempty,oneof=pending approved rejected"`
	AdminNote   *string `json:"adminNote" validate:"omitempty,max=5000"`
}

func (p amendmentPayload) amendment() applications.Amendment {
	return applications.Amendment{
		Name:        p.Name,
		PhoneNumber: p.PhoneNumber,
		Email:       p.Email,
		Message:     p.Message,
		Status:      p.Status,
		AdminNote:   p.AdminNote,
	}
}

type applicationResponse struct {
	ID          string    `json:"_id"`
	User        string    `json:"user"`
	Event       any       `json:"event"`
	Name        string    `json:"name"`
	PhoneNumber string    `json:"phoneNumber"`
	Email       string    `json:"email"`
	Message     string    `json:"message"`
	Status      string    `json:"status"`
	AdminNote   string    `json:"adminNote,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// eventIntroduction is the narrow event projection of the admin listing.
type eventIntroduction struct {
	ID                  string `json:"_id"`
	ProductIntroduction string `json:"productIntroduction"`
}

func newApplicationResponse(app applications.Application) applicationResponse {
	return applicationResponse{
		ID:          app.ID,
		User:        app.UserID,
		Event:       app.EventID,
		Name:        app.Name,
		PhoneNumber: app.PhoneNumber,
		Email:       app.Email,
		Message:     app.Message,
		Status:      app.Status,
		AdminNote:   app.AdminNote,
		CreatedAt:   app.CreatedAt,
		UpdatedAt:   app.UpdatedAt,
	}
}

// newJoinedResponse replaces the event reference with the attached event,
// or null when the event no longer exists.
func newJoinedResponse(j applications.Joined, mode applications.JoinMode) applicationResponse {
	resp := newApplicationResponse(j.Application)
	switch {
	case j.Event == nil:
		resp.Event = nil
	case mode == applications.JoinIntroduction:
		resp.Event = eventIntroduction{ID: j.Event.ID, ProductIntroduction: j.Event.ProductIntroduction}
	default:
		resp.Event = newEventResponse(*j.Event)
	}
	return resp
}

func (h *ApplicationsHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var payload submissionPayload
	if !decodeBody(w, r, &payload) {
		return
	}
	app, err := h.Service.Submit(r.Context(), applications.Submission{
		EventID:     r.PathValue("eventId"),
		UserID:      caller(r).UserID,
		Name:        payload.Name,
		PhoneNumber: payload.PhoneNumber,
		Email:       payload.Email,
		Message:     payload.Message,
	})
	switch {
	case err == nil:
		render.Success(w, http.StatusOK, "Event application submitted", newApplicationResponse(*app))
	case errors.Is(err, applications.ErrEventNotFound):
		render.Error(w, r, http.StatusBadRequest, "Event not found", err)
	case errors.Is(err, applications.ErrAlreadyApplied):
		render.Error(w, r, http.StatusBadRequest, "You have already applied to this event", err)
	default:
		render.Internal(w, r, err)
	}
}

func (h *ApplicationsHandler) Amend(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("applicationId")
	if !ids.IsValid(id) {
		render.Error(w, r, http.StatusNotFound, "Invalid Application Id", nil)
		return
	}
	var payload amendmentPayload
	if !decodeBody(w, r, &payload) {
		return
	}
	app, err := h.Service.Amend(r.Context(), id, payload.amendment())
	switch {
	case err == nil:
		render.Success(w, http.StatusOK, "Application updated successfully!", newApplicationResponse(*app))
	case errors.Is(err, ids.ErrInvalidID):
		render.Error(w, r, http.StatusNotFound, "Invalid Application Id", err)
	case errors.Is(err, applications.ErrNotFound):
		render.Error(w, r, http.StatusNotFound, "No Application Found", err)
	case errors.Is(err, applications.ErrInvalidStatus):
		render.Error(w, r, http.StatusBadRequest, err.Error(), err)
	default:
		render.Internal(w, r, err)
	}
}

func (h *ApplicationsHandler) Remove(w http.ResponseWriter, r *http.Request) {
	err := h.Service.Remove(r.Context(), r.PathValue("applicationId"))
	switch {
	case err == nil:
		render.Success(w, http.StatusOK, "Event Application deleted successfully!", nil)
	case errors.Is(err, ids.ErrInvalidID):
		render.Error(w, r, http.StatusNotFound, "Invalid Application Id", err)
	case errors.Is(err, applications.ErrNotFound):
		render.Error(w, r, http.StatusNotFound, "No Application Found", err)
	default:
		render.Internal(w, r, err)
	}
}

func (h *ApplicationsHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	result, err := h.Service.ListAll(r.Context())
	if err != nil {
		render.Internal(w, r, err)
		return
	}
	writeList(w, result, "Applications fetched successfully", func(j applications.Joined) applicationResponse {
		return newJoinedResponse(j, applications.JoinIntroduction)
	})
}

func (h *ApplicationsHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	result, err := h.Service.ListMine(r.Context(), caller(r).UserID)
	if err != nil {
		render.Internal(w, r, err)
		return
	}
	writeList(w, result, "Applications fetched successfully", func(j applications.Joined) applicationResponse {
		return newJoinedResponse(j, applications.JoinFull)
	})
}

func (h *ApplicationsHandler) Get(w http.ResponseWriter, r *http.Request) {
	c := caller(r)
	joined, err := h.Service.Get(r.Context(), r.PathValue("applicationId"), c.UserID, c.IsAdmin)
	switch {
	case err == nil:
		render.Success(w, http.StatusOK, "Application fetched successfully", newJoinedResponse(*joined, applications.JoinFull))
	case errors.Is(err, applications.ErrNotFound):
		render.Error(w, r, http.StatusNotFound, "Application not found", err)
	default:
		render.Internal(w, r, err)
	}
}

func (h *ApplicationsHandler) ListOfEvent(w http.ResponseWriter, r *http.Request) {
	items, err := h.Service.ListOfEvent(r.Context(), r.PathValue("eventId"))
	switch {
	case err == nil:
		out := make([]applicationResponse, 0, len(items))
		for _, app := range items {
			out = append(out, newApplicationResponse(app))
		}
		render.Success(w, http.StatusOK, "Applications fetched successfully", out)
	case errors.Is(err, applications.ErrEventNotFound):
		render.Error(w, r, http.StatusNotFound, "Event not found", err)
	default:
		render.Internal(w, r, err)
	}
}

func (h *ApplicationsHandler) GetOfEvent(w http.ResponseWriter, r *http.Request) {
	app, err := h.Service.GetOfEvent(r.Context(), r.PathValue("eventId"), r.PathValue("applicationId"))
	switch {
	case err == nil:
		render.Success(w, http.StatusOK, "Application fetched successfully", newApplicationResponse(*app))
	case errors.Is(err, applications.ErrEventNotFound):
		render.Error(w, r, http.StatusNotFound, "Event not found", err)
	case errors.Is(err, applications.ErrNotFound):
		render.Error(w, r, http.StatusNotFound, "Application not found for the specified event", err)
	default:
		render.Internal(w, r, err)
	}
}
