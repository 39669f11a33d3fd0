package audit

import (
	"net"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/jobhouse/server/internal/auth"
)

// Entry represents a single audit log entry with structured fields
type Entry struct {
	Action       string
	AdminUser    string
	ResourceType string
	ResourceID   string
	IPAddress    string
	Status       string // "success" or "failure"
	Details      map[string]string
}

// Logger records admin mutations as structured log entries tagged audit=true.
type Logger struct {
	logger zerolog.Logger
}

func NewLogger(logger zerolog.Logger) *Logger {
	return &Logger{logger: logger.With().Bool("audit", true).Logger()}
}

func (l *Logger) Log(entry Entry) {
	if l == nil {
		return
	}
	evt := l.logger.Info()
	if entry.Status == "failure" {
		evt = l.logger.Warn()
	}
	evt = evt.
		Str("action", entry.Action).
		Str("admin_user", entry.AdminUser).
		Str("status", entry.Status)
	if entry.ResourceType != "" {
		evt = evt.Str("resource_type", entry.ResourceType)
	}
	if entry.ResourceID != "" {
		evt = evt.Str("resource_id", entry.ResourceID)
	}
	if entry.IPAddress != "" {
		evt = evt.Str("ip_address", entry.IPAddress)
	}
	if len(entry.Details) > 0 {
		details := zerolog.Dict()
		for k, v := range entry.Details {
			details = details.Str(k, v)
		}
		evt = evt.Dict("details", details)
	}
	evt.Msg("audit")
}

// LogSuccess logs a successful admin operation
func (l *Logger) LogSuccess(action, adminUser, resourceType, resourceID, ipAddress string, details map[string]string) {
	l.Log(Entry{
		Action:       action,
		AdminUser:    adminUser,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		IPAddress:    ipAddress,
		Status:       "success",
		Details:      details,
	})
}

// LogFailure logs a failed admin operation
func (l *Logger) LogFailure(action, adminUser, ipAddress string, details map[string]string) {
	l.Log(Entry{
		Action:    action,
		AdminUser: adminUser,
		IPAddress: ipAddress,
		Status:    "failure",
		Details:   details,
	})
}

// LogFromRequest logs an action taken by the authenticated caller of r.
func (l *Logger) LogFromRequest(r *http.Request, action, resourceType, resourceID, status string, details map[string]string) {
	adminUser := "unknown"
	if caller, ok := auth.CallerFrom(r.Context()); ok {
		adminUser = caller.UserID
	}

	l.Log(Entry{
		Action:       action,
		AdminUser:    adminUser,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		IPAddress:    ClientIP(r),
		Status:       status,
		Details:      details,
	})
}

// ClientIP gets the client IP from proxy headers or RemoteAddr.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
