package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"funnel-api/core/config"
	"funnel-api/core/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGoogle struct {
	mux          *http.ServeMux
	server       *httptest.Server
	tokenServer  *httptest.Server
	tokensMinted int
}

func newFakeGoogle(t *testing.T) *fakeGoogle {
	t.Helper()
	f := &fakeGoogle{mux: http.NewServeMux()}

	f.tokenServer = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.tokensMinted++
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":"token-%d","token_type":"Bearer","expires_in":3600}`, f.tokensMinted)
	}))
	f.server = httptest.NewServer(f.mux)
	t.Cleanup(func() {
		f.server.Close()
		f.tokenServer.Close()
	})
	return f
}

func (f *fakeGoogle) gateway() *GoogleGateway {
	return NewGoogleGatewayWithEndpoints(config.GoogleAPIConfig{
		ClientID:     "client",
		ClientSecret: "secret",
		RefreshToken: "refresh",
		CalendarID:   "primary",
		Timeout:      2 * time.Second,
	}, f.server.URL, f.tokenServer.URL)
}

func TestIsAvailable(t *testing.T) {
	f := newFakeGoogle(t)
	f.mux.HandleFunc("GET /calendars/primary", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"primary"}`))
	})

	assert.True(t, f.gateway().IsAvailable(context.Background()))
}

func TestIsAvailableFalseWithoutCredentials(t *testing.T) {
	gw := NewGoogleGateway(config.GoogleAPIConfig{})
	assert.False(t, gw.IsAvailable(context.Background()))
}

func TestExpiredTokenIsRefreshedAndRetriedOnce(t *testing.T) {
	f := newFakeGoogle(t)
	calls := 0
	f.mux.HandleFunc("GET /calendars/primary/events", func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.Header.Get("Authorization") == "Bearer token-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"items":[]}`))
	})

	gw := f.gateway()
	from := time.Date(2025, 8, 22, 0, 0, 0, 0, time.UTC)
	events, err := gw.ListEvents(context.Background(), from, from.AddDate(0, 0, 1))
	require.NoError(t, err)

	assert.Empty(t, events)
	assert.Equal(t, 2, calls, "one retry after the refresh")
	assert.Equal(t, 2, f.tokensMinted)
}

func TestPersistentUnauthorizedSurfacesProviderError(t *testing.T) {
	f := newFakeGoogle(t)
	f.mux.HandleFunc("GET /calendars/primary/events", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	from := time.Date(2025, 8, 22, 0, 0, 0, 0, time.UTC)
	_, err := f.gateway().ListEvents(context.Background(), from, from.AddDate(0, 0, 1))
	require.Error(t, err)
	assert.Equal(t, errors.ErrProvider, errors.CodeOf(err))
}

func TestListEventsParsesAndSkipsCancelled(t *testing.T) {
	f := newFakeGoogle(t)
	f.mux.HandleFunc("GET /calendars/primary/events", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "true", r.URL.Query().Get("singleEvents"))
		w.Write([]byte(`{"items":[
			{"id":"ev1","summary":"Consultation with Alice",
			 "start":{"dateTime":"2025-08-22T10:00:00Z"},"end":{"dateTime":"2025-08-22T11:00:00Z"}},
			{"id":"ev2","status":"cancelled",
			 "start":{"dateTime":"2025-08-22T12:00:00Z"},"end":{"dateTime":"2025-08-22T13:00:00Z"}},
			{"id":"ev3","start":{},"end":{}}
		]}`))
	})

	from := time.Date(2025, 8, 22, 0, 0, 0, 0, time.UTC)
	events, err := f.gateway().ListEvents(context.Background(), from, from.AddDate(0, 0, 1))
	require.NoError(t, err)

	require.Len(t, events, 1)
	assert.Equal(t, "ev1", events[0].ID)
	assert.Equal(t, time.Date(2025, 8, 22, 10, 0, 0, 0, time.UTC), events[0].Start.UTC())
}

func TestCreateEventReturnsIDAndLink(t *testing.T) {
	f := newFakeGoogle(t)
	f.mux.HandleFunc("POST /calendars/primary/events", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "none", r.URL.Query().Get("sendUpdates"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Consultation with Alice", body["summary"])
		reminders, ok := body["reminders"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, false, reminders["useDefault"])

		w.Write([]byte(`{"id":"ev-new","htmlLink":"https://calendar.google.com/event?eid=abc"}`))
	})

	start := time.Date(2025, 8, 22, 10, 0, 0, 0, time.UTC)
	created, err := f.gateway().CreateEvent(context.Background(), EventInput{
		Summary:       "Consultation with Alice",
		Start:         start,
		End:           start.Add(time.Hour),
		Timezone:      "UTC",
		AttendeeEmail: "alice@example.com",
	})
	require.NoError(t, err)

	assert.Equal(t, "ev-new", created.EventID)
	assert.Equal(t, "https://calendar.google.com/event?eid=abc", created.HTMLLink)
}

func TestUpdateEventGoneMapsToEventNotFound(t *testing.T) {
	f := newFakeGoogle(t)
	f.mux.HandleFunc("PUT /calendars/primary/events/ev1", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	start := time.Date(2025, 8, 22, 10, 0, 0, 0, time.UTC)
	err := f.gateway().UpdateEvent(context.Background(), "ev1", EventInput{
		Start: start, End: start.Add(time.Hour), Timezone: "UTC",
	})
	require.Error(t, err)
	assert.Equal(t, errors.ErrEventNotFound, errors.CodeOf(err))
}

func TestDeleteEventTreatsGoneAsSuccess(t *testing.T) {
	f := newFakeGoogle(t)
	f.mux.HandleFunc("DELETE /calendars/primary/events/ev1", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
	})
	f.mux.HandleFunc("DELETE /calendars/primary/events/ev2", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	gw := f.gateway()
	assert.NoError(t, gw.DeleteEvent(context.Background(), "ev1"))
	assert.NoError(t, gw.DeleteEvent(context.Background(), "ev2"))
}

func TestDeleteEventProviderFailure(t *testing.T) {
	f := newFakeGoogle(t)
	f.mux.HandleFunc("DELETE /calendars/primary/events/ev1", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	err := f.gateway().DeleteEvent(context.Background(), "ev1")
	require.Error(t, err)
	assert.Equal(t, errors.ErrProvider, errors.CodeOf(err))
}
