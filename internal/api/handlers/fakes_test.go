package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/jobhouse/server/internal/audit"
	"github.com/jobhouse/server/internal/auth"
	"github.com/jobhouse/server/internal/domain/applications"
	"github.com/jobhouse/server/internal/domain/events"
	"github.com/jobhouse/server/internal/domain/ids"
	"github.com/jobhouse/server/internal/domain/jobapplications"
	"github.com/jobhouse/server/internal/domain/users"
)

// memDB backs the in-memory repositories shared by the handler tests.
type memDB struct {
	mu      sync.Mutex
	events  map[string]events.Event
	order   []string
	apps    map[string]applications.Application
	jobs    map[string]jobapplications.JobApplication
	users   map[string]users.User
	tokens  map[string]users.Token
	failing error
}

func newMemDB() *memDB {
	return &memDB{
		events: map[string]events.Event{},
		apps:   map[string]applications.Application{},
		jobs:   map[string]jobapplications.JobApplication{},
		users:  map[string]users.User{},
		tokens: map[string]users.Token{},
	}
}

type memEvents struct{ db *memDB }

func (m memEvents) Create(_ context.Context, fields events.Fields) (*events.Event, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if m.db.failing != nil {
		return nil, m.db.failing
	}
	now := time.Now().UTC()
	e := events.Event{ID: ids.New(), Fields: fields, CreatedAt: now, UpdatedAt: now}
	m.db.events[e.ID] = e
	m.db.order = append(m.db.order, e.ID)
	return &e, nil
}

func (m memEvents) GetByID(_ context.Context, id string) (*events.Event, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	e, ok := m.db.events[id]
	if !ok {
		return nil, events.ErrNotFound
	}
	return &e, nil
}

func (m memEvents) Exists(_ context.Context, id string) (bool, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	_, ok := m.db.events[id]
	return ok, nil
}

func (m memEvents) Replace(_ context.Context, id string, fields events.Fields) (*events.Event, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	e, ok := m.db.events[id]
	if !ok {
		return nil, events.ErrNotFound
	}
	e.Fields = fields
	e.UpdatedAt = time.Now().UTC()
	m.db.events[id] = e
	return &e, nil
}

func (m memEvents) DeleteCascade(_ context.Context, id string) (events.CascadeResult, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if _, ok := m.db.events[id]; !ok {
		return events.CascadeResult{}, events.ErrNotFound
	}
	delete(m.db.events, id)
	for i, v := range m.db.order {
		if v == id {
			m.db.order = append(m.db.order[:i], m.db.order[i+1:]...)
			break
		}
	}
	var removed int64
	for appID, app := range m.db.apps {
		if app.EventID == id {
			delete(m.db.apps, appID)
			removed++
		}
	}
	return events.CascadeResult{EventID: id, ApplicationsRemoved: removed}, nil
}

func (m memEvents) Count(context.Context) (int64, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	return int64(len(m.db.order)), nil
}

func (m memEvents) ListPage(_ context.Context, offset, limit int64) ([]events.Event, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var out []events.Event
	for i := offset; i < int64(len(m.db.order)) && i < offset+limit; i++ {
		out = append(out, m.db.events[m.db.order[i]])
	}
	return out, nil
}

func (m memEvents) ListWithApplicantCounts(context.Context) ([]events.WithApplicants, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	out := make([]events.WithApplicants, 0, len(m.db.order))
	for _, id := range m.db.order {
		var n int64
		for _, app := range m.db.apps {
			if app.EventID == id {
				n++
			}
		}
		out = append(out, events.WithApplicants{Event: m.db.events[id], NumberOfApplicants: n})
	}
	return out, nil
}

func (m memEvents) ReconcileCascades(context.Context) (int, error) { return 0, nil }

type memApplications struct{ db *memDB }

func (m memApplications) Create(_ context.Context, app applications.Application) (*applications.Application, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, existing := range m.db.apps {
		if existing.UserID == app.UserID && existing.EventID == app.EventID {
			return nil, applications.ErrAlreadyApplied
		}
	}
	now := time.Now().UTC()
	app.ID = ids.New()
	app.CreatedAt, app.UpdatedAt = now, now
	m.db.apps[app.ID] = app
	return &app, nil
}

func (m memApplications) join(app applications.Application) applications.Joined {
	j := applications.Joined{Application: app}
	if e, ok := m.db.events[app.EventID]; ok {
		j.Event = &e
	}
	return j
}

func (m memApplications) GetJoined(_ context.Context, id string, _ applications.JoinMode) (*applications.Joined, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	app, ok := m.db.apps[id]
	if !ok {
		return nil, applications.ErrNotFound
	}
	j := m.join(app)
	return &j, nil
}

func (m memApplications) Amend(_ context.Context, id string, amendment applications.Amendment) (*applications.Application, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	app, ok := m.db.apps[id]
	if !ok {
		return nil, applications.ErrNotFound
	}
	amendment.ApplyTo(&app)
	m.db.apps[id] = app
	return &app, nil
}

func (m memApplications) Delete(_ context.Context, id string) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if _, ok := m.db.apps[id]; !ok {
		return applications.ErrNotFound
	}
	delete(m.db.apps, id)
	return nil
}

func (m memApplications) sorted() []applications.Application {
	out := make([]applications.Application, 0, len(m.db.apps))
	for _, app := range m.db.apps {
		out = append(out, app)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m memApplications) ListJoined(_ context.Context, filter applications.Filter, _ applications.JoinMode) ([]applications.Joined, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var out []applications.Joined
	for _, app := range m.sorted() {
		if filter.UserID == "" || app.UserID == filter.UserID {
			out = append(out, m.join(app))
		}
	}
	return out, nil
}

func (m memApplications) ListByEvent(_ context.Context, eventID string) ([]applications.Application, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var out []applications.Application
	for _, app := range m.sorted() {
		if app.EventID == eventID {
			out = append(out, app)
		}
	}
	return out, nil
}

func (m memApplications) GetForEvent(_ context.Context, eventID, id string) (*applications.Application, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	app, ok := m.db.apps[id]
	if !ok || app.EventID != eventID {
		return nil, applications.ErrNotFound
	}
	return &app, nil
}

type memJobs struct{ db *memDB }

func (m memJobs) Create(_ context.Context, app jobapplications.JobApplication) (*jobapplications.JobApplication, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, existing := range m.db.jobs {
		if existing.UserID == app.UserID {
			return nil, jobapplications.ErrAlreadyApplied
		}
	}
	now := time.Now().UTC()
	app.ID = ids.New()
	app.CreatedAt, app.UpdatedAt = now, now
	m.db.jobs[app.ID] = app
	return &app, nil
}

func (m memJobs) GetByID(_ context.Context, id string) (*jobapplications.JobApplication, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	app, ok := m.db.jobs[id]
	if !ok {
		return nil, jobapplications.ErrNotFound
	}
	return &app, nil
}

func (m memJobs) Amend(_ context.Context, id string, amendment jobapplications.Amendment) (*jobapplications.JobApplication, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	app, ok := m.db.jobs[id]
	if !ok {
		return nil, jobapplications.ErrNotFound
	}
	amendment.ApplyTo(&app)
	m.db.jobs[id] = app
	return &app, nil
}

func (m memJobs) Delete(_ context.Context, id string) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if _, ok := m.db.jobs[id]; !ok {
		return jobapplications.ErrNotFound
	}
	delete(m.db.jobs, id)
	return nil
}

func (m memJobs) List(_ context.Context, userID string) ([]jobapplications.JobApplication, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var out []jobapplications.JobApplication
	for _, app := range m.db.jobs {
		if userID == "" || app.UserID == userID {
			out = append(out, app)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type memUsers struct{ db *memDB }

func (m memUsers) Create(_ context.Context, user users.User) (*users.User, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, existing := range m.db.users {
		if existing.Email == user.Email {
			return nil, users.ErrEmailTaken
		}
	}
	now := time.Now().UTC()
	user.ID = ids.New()
	user.CreatedAt, user.UpdatedAt = now, now
	m.db.users[user.ID] = user
	return &user, nil
}

func (m memUsers) GetByID(_ context.Context, id string) (*users.User, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	u, ok := m.db.users[id]
	if !ok {
		return nil, users.ErrUserNotFound
	}
	return &u, nil
}

func (m memUsers) GetByEmail(_ context.Context, email string) (*users.User, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, u := range m.db.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, users.ErrUserNotFound
}

func (m memUsers) List(context.Context) ([]users.User, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var out []users.User
	for _, u := range m.db.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m memUsers) Update(_ context.Context, id string, update users.Update) (*users.User, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	u, ok := m.db.users[id]
	if !ok {
		return nil, users.ErrUserNotFound
	}
	if update.Email != nil {
		for otherID, other := range m.db.users {
			if otherID != id && other.Email == *update.Email {
				return nil, users.ErrEmailTaken
			}
		}
		u.Email = *update.Email
	}
	if update.Name != nil {
		u.Name = *update.Name
	}
	if update.Role != nil {
		u.Role = auth.Role(*update.Role)
	}
	m.db.users[id] = u
	return &u, nil
}

func (m memUsers) Delete(_ context.Context, id string) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if _, ok := m.db.users[id]; !ok {
		return users.ErrUserNotFound
	}
	delete(m.db.users, id)
	return nil
}

func (m memUsers) SetPassword(_ context.Context, id, hash string) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	u, ok := m.db.users[id]
	if !ok {
		return users.ErrUserNotFound
	}
	u.PasswordHash = hash
	m.db.users[id] = u
	return nil
}

func (m memUsers) MarkEmailConfirmed(_ context.Context, id string) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	u, ok := m.db.users[id]
	if !ok {
		return users.ErrUserNotFound
	}
	u.EmailConfirmed = true
	m.db.users[id] = u
	return nil
}

func (m memUsers) SaveToken(_ context.Context, token users.Token) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	m.db.tokens[token.Hash] = token
	return nil
}

func (m memUsers) ConsumeToken(_ context.Context, hash string, purpose users.TokenPurpose, now time.Time) (*users.Token, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	t, ok := m.db.tokens[hash]
	if !ok || t.Purpose != purpose || !t.ExpiresAt.After(now) {
		return nil, users.ErrInvalidToken
	}
	delete(m.db.tokens, hash)
	return &t, nil
}

// recordingMailer keeps the last link sent.
type recordingMailer struct {
	mu   sync.Mutex
	link string
}

func (m *recordingMailer) SendEmailConfirmation(_ context.Context, _, _, link string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.link = link
	return nil
}

func (m *recordingMailer) SendPasswordReset(_ context.Context, _, _, link string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.link = link
	return nil
}

func (m *recordingMailer) token(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	_, token, ok := strings.Cut(m.link, "token=")
	if !ok {
		t.Fatalf("no token in link %q", m.link)
	}
	return token
}

type fixture struct {
	db           *memDB
	mailer       *recordingMailer
	jwt          *auth.JWTManager
	events       *EventsHandler
	applications *ApplicationsHandler
	jobs         *JobApplicationsHandler
	users        *UsersHandler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	users.BcryptCost = 4

	db := newMemDB()
	logger := zerolog.Nop()
	mailer := &recordingMailer{}
	jwt := auth.NewJWTManager("test-secret-test-secret-test-secret", time.Hour, "jobhouse-test")

	eventService := events.NewService(memEvents{db}, nil, logger)
	return &fixture{
		db:           db,
		mailer:       mailer,
		jwt:          jwt,
		events:       NewEventsHandler(eventService, events.DefaultPagination),
		applications: NewApplicationsHandler(applications.NewService(memApplications{db}, eventService, nil, logger)),
		jobs:         NewJobApplicationsHandler(jobapplications.NewService(memJobs{db}, nil, logger)),
		users: NewUsersHandler(users.NewService(
			memUsers{db}, jwt, mailer, audit.NewLogger(logger), "http://frontend.test", logger,
		)),
	}
}

// seedEvent stores an event directly and returns its id.
func (f *fixture) seedEvent(t *testing.T, intro string) string {
	t.Helper()
	e, err := memEvents{f.db}.Create(context.Background(), events.Fields{ProductIntroduction: intro, Price: 10})
	if err != nil {
		t.Fatalf("seed event: %v", err)
	}
	return e.ID
}

// as attaches a caller the way the authentication middleware does.
func as(r *http.Request, userID string, admin bool) *http.Request {
	role := auth.RoleUser
	if admin {
		role = auth.RoleAdmin
	}
	return r.WithContext(auth.WithCaller(r.Context(), auth.Caller{UserID: userID, Role: role, IsAdmin: admin}))
}

func serve(h http.HandlerFunc, pattern string, r *http.Request) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	mux.HandleFunc(pattern, h)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, r)
	return rec
}
