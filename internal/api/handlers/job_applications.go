package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/jobhouse/server/internal/api/render"
	"github.com/jobhouse/server/internal/domain/ids"
	"github.com/jobhouse/server/internal/domain/jobapplications"
)

type JobApplicationsHandler struct {
	Service *jobapplications.Service
}

func NewJobApplicationsHandler(service *jobapplications.Service) *JobApplicationsHandler {
	return &JobApplicationsHandler{Service: service}
}

type jobSubmissionPayload struct {
	FullName    string `json:"fullName" validate:"required,max=200"`
	Email       string `json:"email" validate:"required,email,max=254"`
	PhoneNumber string `json:"phoneNumber" validate:"required,max=50"`
	Position    string `json:"position" validate:"required,max=200"`
	ResumeURL   string `json:"resumeUrl" validate:"omitempty,http_url,max=2048"`
	CoverLetter string `json:"coverLetter" validate:"max=10000"`
}

type jobAmendmentPayload struct {
	FullName    *string `json:"fullName" validate:"omitempty,max=200"`
	Email       *string `json:"email" validate:"omitempty,email,max=254"`
	PhoneNumber *string `json:"phoneNumber" validate:"omitempty,max=50"`
	Position    *string `json:"position" validate:"omitempty,max=200"`
	ResumeURL   *string `json:"resumeUrl" validate:"omitempty,http_url,max=2048"`
	CoverLetter *string `json:"coverLetter" validate:"omitempty,max=10000"`
	Status      *string `json:"status" validate:"omitempty,oneof=pending shortlisted hired rejected"`
	AdminNote   *string `json:"adminNote" validate:"omitempty,max=5000"`
}

type jobApplicationResponse struct {
	ID          string    `json:"_id"`
	User        string    `json:"user"`
	FullName    string    `json:"fullName"`
	Email       string    `json:"email"`
	PhoneNumber string    `json:"phoneNumber"`
	Position    string    `json:"position"`
	ResumeURL   string    `json:"resumeUrl,omitempty"`
	CoverLetter string    `json:"coverLetter,omitempty"`
	Status      string    `json:"status"`
	AdminNote   string    `json:"adminNote,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func newJobApplicationResponse(app jobapplications.JobApplication) jobApplicationResponse {
	return jobApplicationResponse{
		ID:          app.ID,
		User:        app.UserID,
		FullName:    app.FullName,
		Email:       app.Email,
		PhoneNumber: app.PhoneNumber,
		Position:    app.Position,
		ResumeURL:   app.ResumeURL,
		CoverLetter: app.CoverLetter,
		Status:      app.Status,
		AdminNote:   app.AdminNote,
		CreatedAt:   app.CreatedAt,
		UpdatedAt:   app.UpdatedAt,
	}
}

func (h *JobApplicationsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var p jobSubmissionPayload
	if !decodeBody(w, r, &p) {
		return
	}
	app, err := h.Service.Create(r.Context(), jobapplications.Submission{
		UserID:      caller(r).UserID,
		FullName:    p.FullName,
		Email:       p.Email,
		PhoneNumber: p.PhoneNumber,
		Position:    p.Position,
		ResumeURL:   p.ResumeURL,
		CoverLetter: p.CoverLetter,
	})
	switch {
	case err == nil:
		render.Success(w, http.StatusCreated, "Job application submitted", newJobApplicationResponse(*app))
	case errors.Is(err, jobapplications.ErrAlreadyApplied):
		render.Error(w, r, http.StatusBadRequest, "You have already submitted a job application", err)
	default:
		render.Internal(w, r, err)
	}
}

func (h *JobApplicationsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("applicationId")
	if !ids.IsValid(id) {
		render.Error(w, r, http.StatusNotFound, "Invalid Application Id", nil)
		return
	}
	var p jobAmendmentPayload
	if !decodeBody(w, r, &p) {
		return
	}
	app, err := h.Service.Update(r.Context(), id, jobapplications.Amendment{
		FullName:    p.FullName,
		Email:       p.Email,
		PhoneNumber: p.PhoneNumber,
		Position:    p.Position,
		ResumeURL:   p.ResumeURL,
		CoverLetter: p.CoverLetter,
		Status:      p.Status,
		AdminNote:   p.AdminNote,
	})
	switch {
	case err == nil:
		render.Success(w, http.StatusOK, "Job application updated successfully", newJobApplicationResponse(*app))
	case errors.Is(err, ids.ErrInvalidID):
		render.Error(w, r, http.StatusNotFound, "Invalid Application Id", err)
	case errors.Is(err, jobapplications.ErrNotFound):
		render.Error(w, r, http.StatusNotFound, "No Application Found", err)
	case errors.Is(err, jobapplications.ErrInvalidStatus):
		render.Error(w, r, http.StatusBadRequest, err.Error(), err)
	default:
		render.Internal(w, r, err)
	}
}

func (h *JobApplicationsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	err := h.Service.Delete(r.Context(), r.URL.Query().Get("applicationId"))
	switch {
	case err == nil:
		render.Success(w, http.StatusOK, "Job application deleted successfully", nil)
	case errors.Is(err, ids.ErrInvalidID):
		render.Error(w, r, http.StatusNotFound, "Invalid Application Id", err)
	case errors.Is(err, jobapplications.ErrNotFound):
		render.Error(w, r, http.StatusNotFound, "No Application Found", err)
	default:
		render.Internal(w, r, err)
	}
}

func (h *JobApplicationsHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	result, err := h.Service.ListAll(r.Context())
	if err != nil {
		render.Internal(w, r, err)
		return
	}
	writeList(w, result, "Job applications fetched successfully", newJobApplicationResponse)
}

func (h *JobApplicationsHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	result, err := h.Service.ListMine(r.Context(), caller(r).UserID)
	if err != nil {
		render.Internal(w, r, err)
		return
	}
	writeList(w, result, "Job applications fetched successfully", newJobApplicationResponse)
}

func (h *JobApplicationsHandler) Get(w http.ResponseWriter, r *http.Request) {
	c := caller(r)
	app, err := h.Service.Get(r.Context(), r.URL.Query().Get("applicationId"), c.UserID, c.IsAdmin)
	switch {
	case err == nil:
		render.Success(w, http.StatusOK, "Job application fetched successfully", newJobApplicationResponse(*app))
	case errors.Is(err, jobapplications.ErrNotFound):
		render.Error(w, r, http.StatusNotFound, "Application not found", err)
	default:
		render.Internal(w, r, err)
	}
}
