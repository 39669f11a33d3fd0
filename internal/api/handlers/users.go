package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jobhouse/server/internal/api/render"
	"github.com/jobhouse/server/internal/domain/ids"
	"github.com/jobhouse/server/internal/domain/users"
)

type UsersHandler struct {
	Service *users.Service
}

func NewUsersHandler(service *users.Service) *UsersHandler {
	return &UsersHandler{Service: service}
}

type registrationPayload struct {
	Name     string `json:"name" validate:"required,max=200"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

type loginPayload struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type userUpdatePayload struct {
	Name  *string `json:"name" validate:"omitempty,max=200"`
	Email *string `json:"email" validate:"omitempty,email,max=254"`
	Role  *string `json:"role" validate:"omitempty,oneof=user admin"`
}

type forgotPasswordPayload struct {
	Email string `json:"email" validate:"required,email"`
}

type resetPasswordPayload struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

type confirmEmailPayload struct {
	Token string `json:"token"`
}

type userResponse struct {
	ID             string    `json:"_id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	Role           string    `json:"role"`
	EmailConfirmed bool      `json:"emailConfirmed"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

func newUserResponse(u users.User) userResponse {
	return userResponse{
		ID:             u.ID,
		Name:           u.Name,
		Email:          u.Email,
		Role:           string(u.Role),
		EmailConfirmed: u.EmailConfirmed,
		CreatedAt:      u.CreatedAt,
		UpdatedAt:      u.UpdatedAt,
	}
}

type sessionResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      userResponse `json:"user"`
}

func (h *UsersHandler) Register(w http.ResponseWriter, r *http.Request) {
	var p registrationPayload
	if !decodeBody(w, r, &p) {
		return
	}
	user, err := h.Service.Register(r.Context(), users.Registration{Name: p.Name, Email: p.Email, Password: p.Password})
	switch {
	case err == nil:
		render.Success(w, http.StatusCreated, "User created successfully", newUserResponse(*user))
	case errors.Is(err, users.ErrEmailTaken):
		render.Error(w, r, http.StatusBadRequest, "User with this email already exists", err)
	case errors.Is(err, users.ErrWeakPassword):
		render.Error(w, r, http.StatusBadRequest, err.Error(), err)
	default:
		render.Internal(w, r, err)
	}
}

func (h *UsersHandler) Login(w http.ResponseWriter, r *http.Request) {
	h.login(w, r, h.Service.Login)
}

func (h *UsersHandler) AdminLogin(w http.ResponseWriter, r *http.Request) {
	h.login(w, r, h.Service.AdminLogin)
}

func (h *UsersHandler) login(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, email, password string) (users.Session, error)) {
	var p loginPayload
	if !decodeBody(w, r, &p) {
		return
	}
	session, err := fn(r.Context(), p.Email, p.Password)
	switch {
	case err == nil:
		render.Success(w, http.StatusOK, "Login successful", sessionResponse{
			Token:     session.Token,
			ExpiresAt: session.ExpiresAt,
			User:      newUserResponse(session.User),
		})
	case errors.Is(err, users.ErrInvalidCredentials):
		render.Error(w, r, http.StatusUnauthorized, "Invalid email or password", err)
	case errors.Is(err, users.ErrNotAdmin):
		render.Error(w, r, http.StatusForbidden, render.MsgForbidden, err)
	default:
		render.Internal(w, r, err)
	}
}

// Me returns the authenticated caller's account.
func (h *UsersHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.Service.Get(r.Context(), caller(r).UserID)
	switch {
	case err == nil:
		render.Success(w, http.StatusOK, "User fetched successfully", newUserResponse(*user))
	case errors.Is(err, users.ErrUserNotFound):
		render.Error(w, r, http.StatusNotFound, "User not found", err)
	default:
		render.Internal(w, r, err)
	}
}

func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	result, err := h.Service.List(r.Context())
	if err != nil {
		render.Internal(w, r, err)
		return
	}
	writeList(w, result, "Users fetched successfully", newUserResponse)
}

func (h *UsersHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("userId")
	if !ids.IsValid(id) {
		render.Error(w, r, http.StatusNotFound, "Invalid User Id", nil)
		return
	}
	var p userUpdatePayload
	if !decodeBody(w, r, &p) {
		return
	}
	user, err := h.Service.Update(r.Context(), id, users.Update{Name: p.Name, Email: p.Email, Role: p.Role}, caller(r).UserID)
	switch {
	case err == nil:
		render.Success(w, http.StatusOK, "User updated successfully", newUserResponse(*user))
	case errors.Is(err, ids.ErrInvalidID):
		render.Error(w, r, http.StatusNotFound, "Invalid User Id", err)
	case errors.Is(err, users.ErrUserNotFound):
		render.Error(w, r, http.StatusNotFound, "User not found", err)
	case errors.Is(err, users.ErrEmailTaken):
		render.Error(w, r, http.StatusBadRequest, "User with this email already exists", err)
	case errors.Is(err, users.ErrInvalidRole):
		render.Error(w, r, http.StatusBadRequest, err.Error(), err)
	default:
		render.Internal(w, r, err)
	}
}

func (h *UsersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	err := h.Service.Delete(r.Context(), r.URL.Query().Get("userId"), caller(r).UserID)
	switch {
	case err == nil:
		render.Success(w, http.StatusOK, "User deleted successfully", nil)
	case errors.Is(err, ids.ErrInvalidID):
		render.Error(w, r, http.StatusNotFound, "Invalid User Id", err)
	case errors.Is(err, users.ErrUserNotFound):
		render.Error(w, r, http.StatusNotFound, "User not found", err)
	default:
		render.Internal(w, r, err)
	}
}

// ConfirmEmail accepts the token in the body or, for emailed links, the query.
func (h *UsersHandler) ConfirmEmail(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		var p confirmEmailPayload
		if !decodeBody(w, r, &p) {
			return
		}
		token = p.Token
	}
	if token == "" {
		render.Validation(w, r, "Validation failed", map[string]string{"token": "is required"})
		return
	}
	err := h.Service.ConfirmEmail(r.Context(), token)
	switch {
	case err == nil:
		render.Success(w, http.StatusOK, "Email confirmed successfully", nil)
	case errors.Is(err, users.ErrInvalidToken):
		render.Error(w, r, http.StatusBadRequest, "Invalid or expired token", err)
	default:
		render.Internal(w, r, err)
	}
}

func (h *UsersHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var p forgotPasswordPayload
	if !decodeBody(w, r, &p) {
		return
	}
	if err := h.Service.ForgotPassword(r.Context(), p.Email); err != nil {
		render.Internal(w, r, err)
		return
	}
	render.Success(w, http.StatusOK, "If an account exists for that email, a reset link has been sent", nil)
}

func (h *UsersHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var p resetPasswordPayload
	if !decodeBody(w, r, &p) {
		return
	}
	err := h.Service.ResetPassword(r.Context(), p.Token, p.Password)
	switch {
	case err == nil:
		render.Success(w, http.StatusOK, "Password reset successfully", nil)
	case errors.Is(err, users.ErrInvalidToken):
		render.Error(w, r, http.StatusBadRequest, "Invalid or expired token", err)
	case errors.Is(err, users.ErrWeakPassword):
		render.Error(w, r, http.StatusBadRequest, err.Error(), err)
	default:
		render.Internal(w, r, err)
	}
}
