package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/jobhouse/server/internal/api/middleware"
	"github.com/jobhouse/server/internal/api/render"
	"github.com/jobhouse/server/internal/auth"
	"github.com/jobhouse/server/internal/domain/listing"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeBody decodes a JSON body into dst and validates it. On failure it
// writes the response and returns false.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		switch {
		case middleware.IsBodyTooLarge(err):
			render.Error(w, r, http.StatusRequestEntityTooLarge, "Request body too large", err)
		case errors.Is(err, io.EOF):
			render.Error(w, r, http.StatusBadRequest, "Request body is required", err)
		default:
			render.Error(w, r, http.StatusBadRequest, render.MsgInvalidBody, err)
		}
		return false
	}

	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			render.Validation(w, r, "Validation failed", fieldErrors(verrs))
			return false
		}
		render.Error(w, r, http.StatusBadRequest, render.MsgInvalidBody, err)
		return false
	}
	return true
}

func fieldErrors(errs validator.ValidationErrors) map[string]string {
	out := make(map[string]string, len(errs))
	for _, fe := range errs {
		out[fe.Field()] = fieldMessage(fe)
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "url", "http_url":
		return "must be a valid URL"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "oneof":
		return "must be one of: " + fe.Param()
	default:
		return "is invalid"
	}
}

// caller returns the authenticated caller. Routes that reach it are always
// behind Authenticate.
func caller(r *http.Request) auth.Caller {
	c, _ := auth.CallerFrom(r.Context())
	return c
}

// writeList renders a list outcome: soft-empty for Empty and Exhausted,
// converted items otherwise.
func writeList[T, R any](w http.ResponseWriter, result listing.Result[T], message string, convert func(T) R) {
	switch result.Kind {
	case listing.Exhausted:
		render.Soft(w, render.MsgNoMore)
	case listing.Empty:
		render.Soft(w, render.MsgNoRecord)
	default:
		out := make([]R, 0, len(result.Items))
		for _, item := range result.Items {
			out = append(out, convert(item))
		}
		render.Success(w, http.StatusOK, message, out)
	}
}
