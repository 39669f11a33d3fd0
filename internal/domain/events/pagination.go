package events

import (
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/jobhouse/server/internal/domain/listing"
)

// PaginationConfig bounds the page size of the public event listing.
type PaginationConfig struct {
	DefaultPerPage int64
	MaxPerPage     int64
}

// DefaultPagination matches the page size clients have always received.
var DefaultPagination = PaginationConfig{DefaultPerPage: 8, MaxPerPage: 100}

// PageRequest is a 1-based page of the public listing.
type PageRequest struct {
	Page    int64
	PerPage int64
}

// offset reports false when the skip does not fit in an int64; such a page
// lies past any collection.
func (p PageRequest) offset() (int64, bool) {
	if p.Page-1 > math.MaxInt64/p.PerPage {
		return 0, false
	}
	return (p.Page - 1) * p.PerPage, true
}

// Page is one slice of the public listing with its metadata.
type Page struct {
	CurrentPage   int64
	EventsPerPage int64
	TotalEvents   int64
	Events        []Event
}

// PageResult pairs a page with how the listing ended. Page is only set when
// Kind is listing.Found.
type PageResult struct {
	Kind listing.Kind
	Page Page
}

// ParsePagination reads page and eventsPerPage. Missing, non-numeric or
// non-positive values fall back to defaults; eventsPerPage is capped.
func ParsePagination(values url.Values, cfg PaginationConfig) PageRequest {
	if cfg.DefaultPerPage < 1 {
		cfg.DefaultPerPage = DefaultPagination.DefaultPerPage
	}
	if cfg.MaxPerPage < cfg.DefaultPerPage {
		cfg.MaxPerPage = cfg.DefaultPerPage
	}

	req := PageRequest{
		Page:    positiveOr(values.Get("page"), 1),
		PerPage: positiveOr(values.Get("eventsPerPage"), cfg.DefaultPerPage),
	}
	if req.PerPage > cfg.MaxPerPage {
		req.PerPage = cfg.MaxPerPage
	}
	return req
}

func positiveOr(raw string, fallback int64) int64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
