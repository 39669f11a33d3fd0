package middleware

import (
	"errors"
	"net/http"
)

const (
	PublicMaxBodySize int64 = 1 << 20
	AdminMaxBodySize  int64 = 5 << 20
)

// RequestSize caps request bodies at maxBytes. Reads past the cap fail
// with *http.MaxBytesError, which handlers report as 413.
func RequestSize(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				w.Header().Set("Connection", "close")
				w.WriteHeader(http.StatusRequestEntityTooLarge)
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

// IsBodyTooLarge reports whether err came from an oversized body.
func IsBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}
