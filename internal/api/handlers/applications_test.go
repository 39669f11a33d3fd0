package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jobhouse/server/internal/domain/applications"
	"github.com/jobhouse/server/internal/domain/ids"
)

const submissionBody = `{"name":"Ada","phoneNumber":"+1 555 0100","email":"ada@example.com","message":"hello"}`

func submit(t *testing.T, f *fixture, userID, eventID string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/create-event-application/"+eventID, strings.NewReader(submissionBody))
	return serve(f.applications.Submit, "POST /api/create-event-application/{eventId}", as(req, userID, false))
}

func TestSubmitApplication(t *testing.T) {
	f := newFixture(t)
	eventID := f.seedEvent(t, "Trip")
	userID := ids.New()

	rec := submit(t, f, userID, eventID)
	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	require.True(t, env.Status)
	require.Equal(t, "Event application submitted", env.Message)

	var got applicationResponse
	require.NoError(t, json.Unmarshal(env.Data, &got))
	require.Equal(t, userID, got.User)
	require.Equal(t, eventID, got.Event)
	require.Equal(t, applications.StatusPending, got.Status)

	rec = submit(t, f, userID, eventID)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "You have already applied to this event", decodeEnvelope(t, rec).Message)
	require.Len(t, f.db.apps, 1)
}

func TestSubmitApplicationUnknownEvent(t *testing.T) {
	f := newFixture(t)

	for _, eventID := range []string{ids.New(), "not-an-id"} {
		rec := submit(t, f, ids.New(), eventID)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Equal(t, "Event not found", decodeEnvelope(t, rec).Message)
	}
	require.Empty(t, f.db.apps)
}

func TestSubmitApplicationValidation(t *testing.T) {
	f := newFixture(t)
	eventID := f.seedEvent(t, "Trip")
	req := httptest.NewRequest(http.MethodPost, "/api/create-event-application/"+eventID,
		strings.NewReader(`{"name":"Ada","email":"nope"}`))

	rec := serve(f.applications.Submit, "POST /api/create-event-application/{eventId}", as(req, ids.New(), false))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeEnvelope(t, rec)
	require.Equal(t, "must be a valid email address", env.Errors["email"])
	require.Equal(t, "is required", env.Errors["phoneNumber"])
}

func TestAmendApplication(t *testing.T) {
	f := newFixture(t)
	eventID := f.seedEvent(t, "Trip")
	userID := ids.New()
	require.Equal(t, http.StatusOK, submit(t, f, userID, eventID).Code)
	var appID string
	for id := range f.db.apps {
		appID = id
	}

	req := httptest.NewRequest(http.MethodPut, "/api/edit-event-application/"+appID,
		strings.NewReader(`{"status":"approved","adminNote":"welcome"}`))
	rec := serve(f.applications.Amend, "PUT /api/edit-event-application/{applicationId}", as(req, ids.New(), true))

	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	require.Equal(t, "Application updated successfully!", env.Message)
	var got applicationResponse
	require.NoError(t, json.Unmarshal(env.Data, &got))
	require.Equal(t, applications.StatusApproved, got.Status)
	require.Equal(t, "Ada", got.Name, "absent fields are left unchanged")
	require.Equal(t, userID, got.User)

	tests := []struct {
		name    string
		id      string
		body    string
		code    int
		message string
	}{
		{name: "malformed id", id: "123", body: `{}`, code: http.StatusNotFound, message: "Invalid Application Id"},
		{name: "missing", id: ids.New(), body: `{"name":"x"}`, code: http.StatusNotFound, message: "No Application Found"},
		{name: "bad status", id: appID, body: `{"status":"maybe"}`, code: http.StatusBadRequest, message: "Validation failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPut, "/api/edit-event-application/"+tt.id, strings.NewReader(tt.body))
			rec := serve(f.applications.Amend, "PUT /api/edit-event-application/{applicationId}", req)
			require.Equal(t, tt.code, rec.Code)
			require.Equal(t, tt.message, decodeEnvelope(t, rec).Message)
		})
	}
}

func TestRemoveApplication(t *testing.T) {
	f := newFixture(t)
	eventID := f.seedEvent(t, "Trip")
	require.Equal(t, http.StatusOK, submit(t, f, ids.New(), eventID).Code)
	var appID string
	for id := range f.db.apps {
		appID = id
	}

	rec := serve(f.applications.Remove, "DELETE /api/delete-event-application/{applicationId}",
		httptest.NewRequest(http.MethodDelete, "/api/delete-event-application/"+appID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Event Application deleted successfully!", decodeEnvelope(t, rec).Message)

	rec = serve(f.applications.Remove, "DELETE /api/delete-event-application/{applicationId}",
		httptest.NewRequest(http.MethodDelete, "/api/delete-event-application/"+appID, nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListApplicationsJoinsEvents(t *testing.T) {
	f := newFixture(t)

	rec := serve(f.applications.ListAll, "GET /api/all-applications", httptest.NewRequest(http.MethodGet, "/api/all-applications", nil))
	env := decodeEnvelope(t, rec)
	require.Equal(t, http.StatusOK, rec.Code)
	require.False(t, env.Status)
	require.Equal(t, "No Record Found", env.Message)

	eventID := f.seedEvent(t, "Intro text")
	userID := ids.New()
	require.Equal(t, http.StatusOK, submit(t, f, userID, eventID).Code)
	require.Equal(t, http.StatusOK, submit(t, f, ids.New(), eventID).Code)

	rec = serve(f.applications.ListAll, "GET /api/all-applications", httptest.NewRequest(http.MethodGet, "/api/all-applications", nil))
	env = decodeEnvelope(t, rec)
	require.True(t, env.Status)
	var all []struct {
		Event map[string]any `json:"event"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &all))
	require.Len(t, all, 2)
	require.Equal(t, map[string]any{"_id": eventID, "productIntroduction": "Intro text"}, all[0].Event)

	req := as(httptest.NewRequest(http.MethodGet, "/api/my-applications", nil), userID, false)
	rec = serve(f.applications.ListMine, "GET /api/my-applications", req)
	env = decodeEnvelope(t, rec)
	var mine []struct {
		User  string         `json:"user"`
		Event map[string]any `json:"event"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &mine))
	require.Len(t, mine, 1)
	require.Equal(t, userID, mine[0].User)
	require.Equal(t, float64(10), mine[0].Event["price"])
}

func TestListApplicationsAfterEventDeleted(t *testing.T) {
	f := newFixture(t)
	eventID := f.seedEvent(t, "Gone")
	require.Equal(t, http.StatusOK, submit(t, f, ids.New(), eventID).Code)
	delete(f.db.events, eventID)

	rec := serve(f.applications.ListAll, "GET /api/all-applications", httptest.NewRequest(http.MethodGet, "/api/all-applications", nil))
	var all []struct {
		Event any `json:"event"`
	}
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &all))
	require.Len(t, all, 1)
	require.Nil(t, all[0].Event)
}

func TestGetApplicationVisibility(t *testing.T) {
	f := newFixture(t)
	eventID := f.seedEvent(t, "Trip")
	owner := ids.New()
	require.Equal(t, http.StatusOK, submit(t, f, owner, eventID).Code)
	var appID string
	for id := range f.db.apps {
		appID = id
	}
	get := func(userID string, admin bool) *httptest.ResponseRecorder {
		req := as(httptest.NewRequest(http.MethodGet, "/api/single-application/"+appID, nil), userID, admin)
		return serve(f.applications.Get, "GET /api/single-application/{applicationId}", req)
	}

	require.Equal(t, http.StatusOK, get(owner, false).Code)
	require.Equal(t, http.StatusOK, get(ids.New(), true).Code)

	rec := get(ids.New(), false)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "Application not found", decodeEnvelope(t, rec).Message)
}

func TestApplicationsOfEvent(t *testing.T) {
	f := newFixture(t)
	eventID := f.seedEvent(t, "Trip")
	otherEvent := f.seedEvent(t, "Other")

	rec := serve(f.applications.ListOfEvent, "GET /api/applications-of-event/{eventId}",
		httptest.NewRequest(http.MethodGet, "/api/applications-of-event/"+eventID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	require.True(t, env.Status)
	require.JSONEq(t, `[]`, string(env.Data))

	require.Equal(t, http.StatusOK, submit(t, f, ids.New(), eventID).Code)
	require.Equal(t, http.StatusOK, submit(t, f, ids.New(), otherEvent).Code)

	rec = serve(f.applications.ListOfEvent, "GET /api/applications-of-event/{eventId}",
		httptest.NewRequest(http.MethodGet, "/api/applications-of-event/"+eventID, nil))
	var got []applicationResponse
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &got))
	require.Len(t, got, 1)
	require.Equal(t, eventID, got[0].Event)

	rec = serve(f.applications.ListOfEvent, "GET /api/applications-of-event/{eventId}",
		httptest.NewRequest(http.MethodGet, "/api/applications-of-event/"+ids.New(), nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "Event not found", decodeEnvelope(t, rec).Message)

	// An application is only visible under its own event.
	getOf := func(event, app string) *httptest.ResponseRecorder {
		return serve(f.applications.GetOfEvent, "GET /api/event/{eventId}/application/{applicationId}",
			httptest.NewRequest(http.MethodGet, "/api/event/"+event+"/application/"+app, nil))
	}
	rec = getOf(eventID, got[0].ID)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = getOf(otherEvent, got[0].ID)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "Application not found for the specified event", decodeEnvelope(t, rec).Message)
}
