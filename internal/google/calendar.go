package google

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"calassist/internal/ics"
	"calassist/internal/models"
)

const (
	credentialsFile = "credentials.json"
)

// CalendarClient is a calendar store backed by one Google calendar.
type CalendarClient struct {
	service    *calendar.Service
	logger     *slog.Logger
	calendarID string
	timeZone   string
	prodID     string
	now        func() time.Time
}

// NewClient creates a Google Calendar store for accountName. The token is read
// from token-<accountName>.json in tokenDir, written by the auth command.
func NewClient(ctx context.Context, logger *slog.Logger, clientID, clientSecret, tokenDir, accountName, calendarID, timeZone string) (*CalendarClient, error) {
	config, err := getOAuthConfig(clientID, clientSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to get OAuth config: %w", err)
	}

	tokenFile := TokenPath(tokenDir, accountName)
	token, err := tokenFromFile(tokenFile)
	if err != nil {
		return nil, fmt.Errorf("could not load token for account %s: %w. Please run the 'auth' command first", accountName, err)
	}

	service, err := calendar.NewService(ctx, option.WithHTTPClient(config.Client(ctx, token)))
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}
	return NewWithService(logger, service, calendarID, timeZone), nil
}

// NewWithService wraps an existing calendar service.
func NewWithService(logger *slog.Logger, service *calendar.Service, calendarID, timeZone string) *CalendarClient {
	if calendarID == "" {
		calendarID = "primary"
	}
	if timeZone == "" {
		timeZone = "UTC"
	}
	return &CalendarClient{
		service:    service,
		logger:     logger,
		calendarID: calendarID,
		timeZone:   timeZone,
		prodID:     ics.DefaultProdID,
		now:        time.Now,
	}
}

// Name identifies the store in logs and results.
func (c *CalendarClient) Name() string {
	return "google:" + c.calendarID
}

// QueryRange fetches the events of the whole days start..end, expanded to
// single instances, each rendered as its own calendar object. The href of an
// object is the Google event ID.
func (c *CalendarClient) QueryRange(ctx context.Context, start, end time.Time) ([]models.RawObject, error) {
	c.logger.Debug("Fetching events", "calendarID", c.calendarID, "start", start.Format(models.DateLayout), "end", end.Format(models.DateLayout))

	events, err := c.service.Events.List(c.calendarID).
		ShowDeleted(false).
		SingleEvents(true).
		TimeMin(start.UTC().Format(time.RFC3339)).
		TimeMax(end.UTC().AddDate(0, 0, 1).Format(time.RFC3339)).
		OrderBy("startTime").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve events: %w", err)
	}

	out := make([]models.RawObject, 0, len(events.Items))
	for _, item := range events.Items {
		cal, err := toICal(item, c.prodID, c.now())
		if err != nil {
			c.logger.Warn("Skipping event", "id", item.Id, "error", err)
			continue
		}
		data, err := ics.Encode(cal)
		if err != nil {
			c.logger.Warn("Skipping event", "id", item.Id, "error", err)
			continue
		}
		out = append(out, models.RawObject{Href: item.Id, Data: data})
	}
	c.logger.Info("Fetched events from Google Calendar", "count", len(out), "calendarID", c.calendarID)
	return out, nil
}

// Put imports a standalone calendar document, keeping its UID as the
// event's iCalUID.
func (c *CalendarClient) Put(ctx context.Context, uid, document string) error {
	cal, err := ics.Decode(document, c.now())
	if err != nil {
		return err
	}
	events := cal.Events()
	if len(events) == 0 {
		return fmt.Errorf("calendar document has no event")
	}

	ev := c.toGoogle(events[0].Component)
	if uid != "" {
		ev.ICalUID = uid
	}
	if ev.ICalUID == "" {
		return fmt.Errorf("calendar document has no UID")
	}

	if _, err := c.service.Events.Import(c.calendarID, ev).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to import event: %w", err)
	}
	c.logger.Info("Imported event", "uid", ev.ICalUID, "calendarID", c.calendarID)
	return nil
}

// Delete removes ev. The href from QueryRange is the event ID; without one
// the events carrying ev's UID are looked up first.
func (c *CalendarClient) Delete(ctx context.Context, ev models.ParsedEvent) error {
	ids := []string{}
	if ev.Href != "" {
		ids = append(ids, ev.Href)
	} else {
		if ev.UID == "" {
			return fmt.Errorf("event %q has neither href nor UID", ev.Summary)
		}
		found, err := c.service.Events.List(c.calendarID).ICalUID(ev.UID).Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("failed to look up event %s: %w", ev.UID, err)
		}
		for _, item := range found.Items {
			ids = append(ids, item.Id)
		}
		if len(ids) == 0 {
			return fmt.Errorf("no event with UID %s", ev.UID)
		}
	}

	for _, id := range ids {
		if err := c.service.Events.Delete(c.calendarID, id).Context(ctx).Do(); err != nil {
			return fmt.Errorf("failed to delete event %s: %w", id, err)
		}
		c.logger.Info("Deleted event", "id", id, "uid", ev.UID)
	}
	return nil
}

// toICal converts a Google event into a single-event calendar. Timed events
// keep the wall-clock time of their own offset.
func toICal(item *calendar.Event, prodID string, stamp time.Time) (*ical.Calendar, error) {
	if item.Start == nil {
		return nil, fmt.Errorf("event has no start")
	}
	uid := item.ICalUID
	if uid == "" {
		uid = item.Id
	}

	vevent := ical.NewEvent()
	vevent.Props.SetText(ical.PropUID, uid)
	vevent.Props.SetText(ical.PropSummary, item.Summary)
	vevent.Props.SetDateTime(ical.PropDateTimeStamp, stamp.UTC())

	dtstart, err := dateProp(ical.PropDateTimeStart, item.Start)
	if err != nil {
		return nil, err
	}
	vevent.Props.Set(dtstart)
	if item.End != nil {
		if dtend, err := dateProp(ical.PropDateTimeEnd, item.End); err == nil {
			vevent.Props.Set(dtend)
		}
	}

	cal := ics.NewCalendar(prodID)
	cal.Children = append(cal.Children, vevent.Component)
	return cal, nil
}

func dateProp(name string, dt *calendar.EventDateTime) (*ical.Prop, error) {
	prop := ical.NewProp(name)
	switch {
	case dt.DateTime != "":
		t, err := time.Parse(time.RFC3339, dt.DateTime)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", name, dt.DateTime, err)
		}
		prop.Value = t.Format("20060102T150405")
	case dt.Date != "":
		t, err := time.Parse(models.DateLayout, dt.Date)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", name, dt.Date, err)
		}
		prop.SetDate(t)
	default:
		return nil, fmt.Errorf("%s has neither date nor time", name)
	}
	return prop, nil
}

// toGoogle converts a VEVENT into an importable Google event. Floating times
// are placed in the client's time zone.
func (c *CalendarClient) toGoogle(vevent *ical.Component) *calendar.Event {
	ev := &calendar.Event{}
	if p := vevent.Props.Get(ical.PropUID); p != nil {
		ev.ICalUID = p.Value
	}
	if p := vevent.Props.Get(ical.PropSummary); p != nil {
		if text, err := p.Text(); err == nil {
			ev.Summary = text
		}
	}

	start := datePoint(vevent, ical.PropDateTimeStart)
	if start.Date == "" {
		return ev
	}
	end := datePoint(vevent, ical.PropDateTimeEnd)

	if start.AllDay {
		// DTEND of an all-day event is exclusive, like Google's end date.
		endDate := end.Date
		if endDate <= start.Date {
			day, _ := time.Parse(models.DateLayout, start.Date)
			endDate = day.AddDate(0, 0, 1).Format(models.DateLayout)
		}
		ev.Start = &calendar.EventDateTime{Date: start.Date}
		ev.End = &calendar.EventDateTime{Date: endDate}
		return ev
	}

	from := start.Date + "T" + start.StartTime + ":00"
	to := from
	if end.Date != "" && end.StartTime != "" {
		if t := end.Date + "T" + end.StartTime + ":00"; t > from {
			to = t
		}
	}
	ev.Start = &calendar.EventDateTime{DateTime: from, TimeZone: c.timeZone}
	ev.End = &calendar.EventDateTime{DateTime: to, TimeZone: c.timeZone}
	return ev
}

// datePoint reads one date property through ParseBlock, which reports its
// date and time as the event's start.
func datePoint(vevent *ical.Component, name string) models.ParsedEvent {
	p := vevent.Props.Get(name)
	if p == nil {
		return models.ParsedEvent{}
	}
	return ics.ParseBlock("BEGIN:VEVENT\nDTSTART:" + p.Value + "\nEND:VEVENT")
}

// GetOAuthConfigForAuthFlow is used by the auth command to get the config for the web flow.
func GetOAuthConfigForAuthFlow(clientID, clientSecret string) (*oauth2.Config, error) {
	return getOAuthConfig(clientID, clientSecret)
}

// getOAuthConfig reads credentials and returns an OAuth2 config.
// It prioritizes environment variables over a local credentials.json file.
func getOAuthConfig(clientID, clientSecret string) (*oauth2.Config, error) {
	if clientID != "" && clientSecret != "" {
		return &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  "urn:ietf:wg:oauth:2.0:oob",
			Scopes:       []string{calendar.CalendarEventsScope},
			Endpoint:     google.Endpoint,
		}, nil
	}

	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		if _, ok := err.(*fs.PathError); ok {
			return nil, fmt.Errorf("credentials.json not found. Please provide GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET env vars or place credentials.json in the working directory")
		}
		return nil, fmt.Errorf("unable to read client secret file: %w", err)
	}

	config, err := google.ConfigFromJSON(b, calendar.CalendarEventsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secret file to config: %w", err)
	}
	config.RedirectURL = "urn:ietf:wg:oauth:2.0:oob"
	return config, nil
}

// TokenFromWeb is called by the auth flow to retrieve a token.
func TokenFromWeb(ctx context.Context, config *oauth2.Config, authCode string) (*oauth2.Token, error) {
	return config.Exchange(ctx, authCode)
}

// TokenPath is where the token for accountName lives.
func TokenPath(dir, accountName string) string {
	return filepath.Join(dir, fmt.Sprintf("token-%s.json", accountName))
}

// SaveToken saves a token to a file path.
func SaveToken(path string, token *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("unable to create token file: %w", err)
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(token)
}

// tokenFromFile retrieves a token from a local file.
func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(tok)
	return tok, err
}

// GetTokenAccounts lists the accounts that have a saved token in dir.
func GetTokenAccounts(dir string) ([]string, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var accounts []string
	for _, file := range files {
		if strings.HasPrefix(file.Name(), "token-") && strings.HasSuffix(file.Name(), ".json") {
			accountName := strings.TrimSuffix(strings.TrimPrefix(file.Name(), "token-"), ".json")
			accounts = append(accounts, accountName)
		}
	}
	return accounts, nil
}
