package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"funnel-api/core/config"
	"funnel-api/core/errors"
	"funnel-api/core/logger"

	"golang.org/x/oauth2"
)

const (
	defaultAPIBase  = "https://www.googleapis.com/calendar/v3"
	defaultTokenURL = "https://oauth2.googleapis.com/token"
)

// GoogleGateway talks to the Calendar v3 REST API with a pre-authorized
// refresh token. Access tokens are minted and reused transparently; a 401
// forces one refresh and one retry before the error surfaces.
type GoogleGateway struct {
	cfg      config.GoogleAPIConfig
	apiBase  string
	tokenURL string
	client   *http.Client

	mu sync.Mutex
	ts oauth2.TokenSource
}

func NewGoogleGateway(cfg config.GoogleAPIConfig) *GoogleGateway {
	return NewGoogleGatewayWithEndpoints(cfg, defaultAPIBase, defaultTokenURL)
}

// NewGoogleGatewayWithEndpoints exists for tests pointing at a fake server.
func NewGoogleGatewayWithEndpoints(cfg config.GoogleAPIConfig, apiBase, tokenURL string) *GoogleGateway {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	g := &GoogleGateway{
		cfg:      cfg,
		apiBase:  apiBase,
		tokenURL: tokenURL,
		client:   &http.Client{Timeout: timeout},
	}
	g.ts = g.newTokenSource()
	return g
}

func (g *GoogleGateway) newTokenSource() oauth2.TokenSource {
	conf := &oauth2.Config{
		ClientID:     g.cfg.ClientID,
		ClientSecret: g.cfg.ClientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: g.tokenURL},
	}
	return conf.TokenSource(context.Background(), &oauth2.Token{RefreshToken: g.cfg.RefreshToken})
}

func (g *GoogleGateway) accessToken() (string, error) {
	g.mu.Lock()
	ts := g.ts
	g.mu.Unlock()

	tok, err := ts.Token()
	if err != nil {
		return "", errors.NewAppError(errors.ErrProvider, "Failed to obtain calendar access token", err)
	}
	return tok.AccessToken, nil
}

// forceRefresh drops the cached access token so the next call mints a new one.
func (g *GoogleGateway) forceRefresh() {
	g.mu.Lock()
	g.ts = g.newTokenSource()
	g.mu.Unlock()
}

func (g *GoogleGateway) calendarID() string {
	if g.cfg.CalendarID == "" {
		return "primary"
	}
	return g.cfg.CalendarID
}

// doJSON performs one authorized request, refreshing the token and retrying
// exactly once on 401.
func (g *GoogleGateway) doJSON(ctx context.Context, method, rawURL string, payload []byte) (*http.Response, error) {
	resp, err := g.doOnce(ctx, method, rawURL, payload)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		resp.Body.Close()
		logger.Warn("GoogleGateway: access token rejected, refreshing", "method", method)
		g.forceRefresh()
		return g.doOnce(ctx, method, rawURL, payload)
	}
	return resp, nil
}

func (g *GoogleGateway) doOnce(ctx context.Context, method, rawURL string, payload []byte) (*http.Response, error) {
	token, err := g.accessToken()
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrProvider, "Failed to build calendar request", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrProvider, "Calendar provider unreachable", err)
	}
	return resp, nil
}

func (g *GoogleGateway) IsAvailable(ctx context.Context) bool {
	if g.cfg.RefreshToken == "" {
		return false
	}
	u := fmt.Sprintf("%s/calendars/%s", g.apiBase, url.PathEscape(g.calendarID()))
	resp, err := g.doJSON(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (g *GoogleGateway) ListEvents(ctx context.Context, from, to time.Time) ([]Event, error) {
	q := url.Values{}
	q.Set("timeMin", from.Format(time.RFC3339))
	q.Set("timeMax", to.Format(time.RFC3339))
	q.Set("singleEvents", "true")
	q.Set("orderBy", "startTime")
	u := fmt.Sprintf("%s/calendars/%s/events?%s", g.apiBase, url.PathEscape(g.calendarID()), q.Encode())

	resp, err := g.doJSON(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, g.apiError("ListEvents", resp)
	}

	var parsed struct {
		Items []struct {
			ID      string `json:"id"`
			Summary string `json:"summary"`
			Status  string `json:"status"`
			Start   struct {
				DateTime time.Time `json:"dateTime"`
			} `json:"start"`
			End struct {
				DateTime time.Time `json:"dateTime"`
			} `json:"end"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, errors.NewAppError(errors.ErrProvider, "Failed to decode calendar events", err)
	}

	events := make([]Event, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if item.Status == "cancelled" || item.Start.DateTime.IsZero() {
			continue
		}
		events = append(events, Event{
			ID:      item.ID,
			Summary: item.Summary,
			Start:   item.Start.DateTime,
			End:     item.End.DateTime,
		})
	}
	return events, nil
}

func (g *GoogleGateway) CreateEvent(ctx context.Context, in EventInput) (*CreatedEvent, error) {
	payload, err := json.Marshal(g.eventBody(in))
	if err != nil {
		return nil, errors.NewAppError(errors.ErrProvider, "Failed to encode calendar event", err)
	}

	u := fmt.Sprintf("%s/calendars/%s/events?sendUpdates=none", g.apiBase, url.PathEscape(g.calendarID()))
	resp, err := g.doJSON(ctx, http.MethodPost, u, payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, g.apiError("CreateEvent", resp)
	}

	var created struct {
		ID       string `json:"id"`
		HTMLLink string `json:"htmlLink"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, errors.NewAppError(errors.ErrProvider, "Failed to decode created event", err)
	}
	return &CreatedEvent{EventID: created.ID, HTMLLink: created.HTMLLink}, nil
}

func (g *GoogleGateway) UpdateEvent(ctx context.Context, eventID string, in EventInput) error {
	payload, err := json.Marshal(g.eventBody(in))
	if err != nil {
		return errors.NewAppError(errors.ErrProvider, "Failed to encode calendar event", err)
	}

	u := fmt.Sprintf("%s/calendars/%s/events/%s?sendUpdates=none",
		g.apiBase, url.PathEscape(g.calendarID()), url.PathEscape(eventID))
	resp, err := g.doJSON(ctx, http.MethodPut, u, payload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return errors.NewAppError(errors.ErrEventNotFound, "Calendar event no longer exists", nil)
	default:
		return g.apiError("UpdateEvent", resp)
	}
}

func (g *GoogleGateway) DeleteEvent(ctx context.Context, eventID string) error {
	u := fmt.Sprintf("%s/calendars/%s/events/%s?sendUpdates=none",
		g.apiBase, url.PathEscape(g.calendarID()), url.PathEscape(eventID))
	resp, err := g.doJSON(ctx, http.MethodDelete, u, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		// already gone upstream, nothing left to delete
		return nil
	default:
		return g.apiError("DeleteEvent", resp)
	}
}

func (g *GoogleGateway) eventBody(in EventInput) map[string]any {
	description := in.Description
	if in.MeetLink != "" {
		description += "\n\nJoin Meeting:\n" + in.MeetLink
	}

	body := map[string]any{
		"summary":     in.Summary,
		"description": description,
		"start": map[string]string{
			"dateTime": in.Start.Format(time.RFC3339),
			"timeZone": in.Timezone,
		},
		"end": map[string]string{
			"dateTime": in.End.Format(time.RFC3339),
			"timeZone": in.Timezone,
		},
		"reminders": map[string]any{
			"useDefault": false,
			"overrides": []map[string]any{
				{"method": "email", "minutes": 24 * 60},
				{"method": "popup", "minutes": 30},
			},
		},
	}
	if in.AttendeeEmail != "" {
		body["attendees"] = []map[string]string{{"email": in.AttendeeEmail}}
	}
	return body
}

func (g *GoogleGateway) apiError(op string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	logger.Error("GoogleGateway:"+op+":Error", "status", resp.StatusCode, "body", string(raw))
	return errors.NewAppError(errors.ErrProvider,
		fmt.Sprintf("Calendar provider returned status %d", resp.StatusCode), nil)
}
