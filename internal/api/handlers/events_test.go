package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jobhouse/server/internal/domain/applications"
	"github.com/jobhouse/server/internal/domain/ids"
)

type testEnvelope struct {
	Status  bool              `json:"status"`
	Message string            `json:"message"`
	Data    json.RawMessage   `json:"data"`
	Errors  map[string]string `json:"errors"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) testEnvelope {
	t.Helper()
	var env testEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func TestRegisterEvent(t *testing.T) {
	f := newFixture(t)
	body := `{"price":120,"deadline":1767225600000,"productIntroduction":"<b>Trip</b><script>x</script>",
		"eventImages":["a.jpg"],"productInformation":{"days":3},"schedules":[{"title":"Day 1","time":"09:00"}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/event-registration", strings.NewReader(body))

	rec := serve(f.events.Register, "POST /api/event-registration", req)

	require.Equal(t, http.StatusCreated, rec.Code)
	env := decodeEnvelope(t, rec)
	require.True(t, env.Status)
	require.Equal(t, "Event registration successful", env.Message)

	var got eventResponse
	require.NoError(t, json.Unmarshal(env.Data, &got))
	require.True(t, ids.IsValid(got.ID))
	require.NotContains(t, got.ProductIntroduction, "<script>")
	require.NotNil(t, got.Deadline)
	require.Len(t, got.Schedules, 1)
	require.Equal(t, float64(3), got.ProductInformation["days"])
}

func TestRegisterEventRejectsBadInput(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{name: "negative price", body: `{"price":-1}`, field: "price"},
		{name: "garbage deadline", body: `{"deadline":"zzqx wvvk"}`, field: "deadline"},
		{name: "boolean deadline", body: `{"deadline":true}`, field: "deadline"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			req := httptest.NewRequest(http.MethodPost, "/api/event-registration", strings.NewReader(tt.body))
			rec := serve(f.events.Register, "POST /api/event-registration", req)

			require.Equal(t, http.StatusBadRequest, rec.Code)
			env := decodeEnvelope(t, rec)
			require.False(t, env.Status)
			require.Contains(t, env.Errors, tt.field)
		})
	}
}

func TestRegisterEventMalformedJSON(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodPost, "/api/event-registration", strings.NewReader(`{"price":`))
	rec := serve(f.events.Register, "POST /api/event-registration", req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegisterEventStoreFailure(t *testing.T) {
	f := newFixture(t)
	f.db.failing = errors.New("connection reset")
	req := httptest.NewRequest(http.MethodPost, "/api/event-registration", strings.NewReader(`{"price":1}`))

	rec := serve(f.events.Register, "POST /api/event-registration", req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, decodeEnvelope(t, rec).Message, "connection reset")
}

func TestEditEventReplacesEveryField(t *testing.T) {
	f := newFixture(t)
	id := f.seedEvent(t, "Original")
	req := httptest.NewRequest(http.MethodPut, "/api/edit-event/"+id, strings.NewReader(`{"price":5}`))

	rec := serve(f.events.Edit, "PUT /api/edit-event/{eventId}", req)

	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	require.Equal(t, "Event registration updated successfully", env.Message)
	var got eventResponse
	require.NoError(t, json.Unmarshal(env.Data, &got))
	require.Equal(t, float64(5), got.Price)
	require.Empty(t, got.ProductIntroduction)
}

func TestEditEventErrors(t *testing.T) {
	f := newFixture(t)

	rec := serve(f.events.Edit, "PUT /api/edit-event/{eventId}",
		httptest.NewRequest(http.MethodPut, "/api/edit-event/nope", strings.NewReader(`{}`)))
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "Invalid Event Id", decodeEnvelope(t, rec).Message)

	rec = serve(f.events.Edit, "PUT /api/edit-event/{eventId}",
		httptest.NewRequest(http.MethodPut, "/api/edit-event/"+ids.New(), strings.NewReader(`{}`)))
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "Event not found", decodeEnvelope(t, rec).Message)
}

func TestDeleteEventCascades(t *testing.T) {
	f := newFixture(t)
	id := f.seedEvent(t, "Doomed")
	other := f.seedEvent(t, "Kept")
	for _, pair := range [][2]string{{"u1", id}, {"u2", id}, {"u1", other}} {
		_, err := memApplications{f.db}.Create(t.Context(), applications.Application{UserID: pair[0], EventID: pair[1]})
		require.NoError(t, err)
	}

	rec := serve(f.events.Delete, "DELETE /api/delete-event/{eventId}",
		httptest.NewRequest(http.MethodDelete, "/api/delete-event/"+id, nil))

	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	require.Equal(t, "Event deleted successfully!", env.Message)
	require.JSONEq(t, `{"applicationsRemoved":2}`, string(env.Data))
	require.Len(t, f.db.apps, 1)

	rec = serve(f.events.Delete, "DELETE /api/delete-event/{eventId}",
		httptest.NewRequest(http.MethodDelete, "/api/delete-event/"+id, nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "No Record Found", decodeEnvelope(t, rec).Message)

	rec = serve(f.events.Delete, "DELETE /api/delete-event/{eventId}",
		httptest.NewRequest(http.MethodDelete, "/api/delete-event/xyz", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "Invalid Event Id", decodeEnvelope(t, rec).Message)
}

func TestListEventsPagination(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 10; i++ {
		f.seedEvent(t, "event")
	}

	rec := serve(f.events.List, "GET /api/events",
		httptest.NewRequest(http.MethodGet, "/api/events?page=2&eventsPerPage=4", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	require.True(t, env.Status)
	var page pageResponse
	require.NoError(t, json.Unmarshal(env.Data, &page))
	require.Equal(t, int64(2), page.CurrentPage)
	require.Equal(t, int64(4), page.EventsPerPage)
	require.Equal(t, int64(10), page.TotalEvents)
	require.Len(t, page.Events, 4)

	rec = serve(f.events.List, "GET /api/events",
		httptest.NewRequest(http.MethodGet, "/api/events?page=3&eventsPerPage=4", nil))
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &page))
	require.Len(t, page.Events, 2)

	rec = serve(f.events.List, "GET /api/events",
		httptest.NewRequest(http.MethodGet, "/api/events?page=4&eventsPerPage=4", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	env = decodeEnvelope(t, rec)
	require.False(t, env.Status)
	require.Equal(t, "No more records", env.Message)
}

func TestListEventsHugePage(t *testing.T) {
	f := newFixture(t)
	f.seedEvent(t, "event")

	rec := serve(f.events.List, "GET /api/events",
		httptest.NewRequest(http.MethodGet, "/api/events?page=4611686018427387904&eventsPerPage=8", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	require.False(t, env.Status)
	require.Equal(t, "No more records", env.Message)
}

func TestListEventsDefaultsAndCap(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 10; i++ {
		f.seedEvent(t, "event")
	}

	var page pageResponse
	rec := serve(f.events.List, "GET /api/events", httptest.NewRequest(http.MethodGet, "/api/events?page=abc", nil))
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &page))
	require.Equal(t, int64(1), page.CurrentPage)
	require.Equal(t, int64(8), page.EventsPerPage)

	rec = serve(f.events.List, "GET /api/events", httptest.NewRequest(http.MethodGet, "/api/events?eventsPerPage=100000", nil))
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &page))
	require.Equal(t, int64(100), page.EventsPerPage)
	require.Len(t, page.Events, 10)
}

func TestListEventsEmpty(t *testing.T) {
	f := newFixture(t)
	rec := serve(f.events.List, "GET /api/events", httptest.NewRequest(http.MethodGet, "/api/events", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.False(t, decodeEnvelope(t, rec).Status)
}

func TestListAdminEventsCountsApplicants(t *testing.T) {
	f := newFixture(t)

	rec := serve(f.events.ListAdmin, "GET /api/admin/events", httptest.NewRequest(http.MethodGet, "/api/admin/events", nil))
	env := decodeEnvelope(t, rec)
	require.False(t, env.Status)
	require.Equal(t, "No Record Found", env.Message)

	id := f.seedEvent(t, "Busy")
	f.seedEvent(t, "Quiet")
	_, err := memApplications{f.db}.Create(t.Context(), applications.Application{UserID: "u1", EventID: id})
	require.NoError(t, err)

	rec = serve(f.events.ListAdmin, "GET /api/admin/events", httptest.NewRequest(http.MethodGet, "/api/admin/events", nil))
	env = decodeEnvelope(t, rec)
	require.True(t, env.Status)
	var got []adminEventResponse
	require.NoError(t, json.Unmarshal(env.Data, &got))
	require.Len(t, got, 2)
	require.Equal(t, int64(1), got[0].NumberOfApplicants)
	require.Equal(t, int64(0), got[1].NumberOfApplicants)
}

func TestGetEvent(t *testing.T) {
	f := newFixture(t)
	id := f.seedEvent(t, "Single")

	rec := serve(f.events.Get, "GET /api/single-event/{eventId}", httptest.NewRequest(http.MethodGet, "/api/single-event/"+id, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var got eventResponse
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &got))
	require.Equal(t, id, got.ID)
	require.NotNil(t, got.EventImages)

	rec = serve(f.events.Get, "GET /api/single-event/{eventId}", httptest.NewRequest(http.MethodGet, "/api/single-event/bad", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(f.events.Get, "GET /api/single-event/{eventId}", httptest.NewRequest(http.MethodGet, "/api/single-event/"+ids.New(), nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "Event not found", decodeEnvelope(t, rec).Message)
}
