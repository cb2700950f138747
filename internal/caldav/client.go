package caldav

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/emersion/go-webdav"
	davcal "github.com/emersion/go-webdav/caldav"

	"calassist/internal/ics"
	"calassist/internal/models"
)

// ErrNoCalendarURL is returned when the client is built without an endpoint.
var ErrNoCalendarURL = errors.New("caldav: calendar URL is not set")

// customTransport adds Basic Auth and the user agent to every request.
type customTransport struct {
	Username  string
	Password  string
	Transport http.RoundTripper
}

// RoundTrip adds required headers and authentication to each request.
func (t *customTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.SetBasicAuth(t.Username, t.Password)
	req.Header.Set("User-Agent", "calassist/1.0")
	return t.Transport.RoundTrip(req)
}

// Options configures a Client.
type Options struct {
	URL          string // server endpoint, or the calendar collection itself when CalendarName is empty
	Username     string
	Password     string
	CalendarName string // display name to discover under the user's calendar home
	Transport    http.RoundTripper
	Now          func() time.Time
}

// Client is a calendar store backed by a CalDAV collection.
type Client struct {
	caldavClient *davcal.Client
	webdavClient *webdav.Client
	logger       *slog.Logger
	calendarPath string
	now          func() time.Time
}

// NewClient connects to the CalDAV server. When a calendar name is given the
// collection is discovered through the principal and calendar home set;
// otherwise the URL path is used as the collection.
func NewClient(ctx context.Context, logger *slog.Logger, opts Options) (*Client, error) {
	if opts.URL == "" {
		return nil, ErrNoCalendarURL
	}
	endpoint, err := url.Parse(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid calendar URL: %w", err)
	}

	base := opts.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	httpClient := &http.Client{Transport: &customTransport{
		Username:  opts.Username,
		Password:  opts.Password,
		Transport: base,
	}}

	caldavClient, err := davcal.NewClient(httpClient, opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to create caldav client: %w", err)
	}
	webdavClient, err := webdav.NewClient(httpClient, opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to create webdav client: %w", err)
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}
	c := &Client{
		caldavClient: caldavClient,
		webdavClient: webdavClient,
		logger:       logger,
		calendarPath: endpoint.Path,
		now:          now,
	}

	if opts.CalendarName != "" {
		logger.Info("Finding calendar", "calendarName", opts.CalendarName)
		calendarPath, err := c.findCalendar(ctx, opts.CalendarName)
		if err != nil {
			return nil, fmt.Errorf("could not find calendar '%s': %w", opts.CalendarName, err)
		}
		c.calendarPath = calendarPath
	}
	logger.Debug("Using calendar collection", "path", c.calendarPath)
	return c, nil
}

// Name identifies the store in logs and results.
func (c *Client) Name() string {
	return "caldav"
}

// QueryRange returns every calendar object with an event overlapping the
// whole days start..end.
func (c *Client) QueryRange(ctx context.Context, start, end time.Time) ([]models.RawObject, error) {
	query := &davcal.CalendarQuery{
		CompRequest: davcal.CalendarCompRequest{
			Name:     "VCALENDAR",
			AllProps: true,
			AllComps: true,
		},
		CompFilter: davcal.CompFilter{
			Name: "VCALENDAR",
			Comps: []davcal.CompFilter{{
				Name:  "VEVENT",
				Start: start.UTC(),
				End:   end.UTC().AddDate(0, 0, 1),
			}},
		},
	}

	c.logger.Debug("Querying calendar", "path", c.calendarPath, "start", start.Format(models.DateLayout), "end", end.Format(models.DateLayout))
	objects, err := c.caldavClient.QueryCalendar(ctx, c.calendarPath, query)
	if err != nil {
		return nil, fmt.Errorf("calendar query failed: %w", err)
	}

	out := make([]models.RawObject, 0, len(objects))
	for _, obj := range objects {
		if obj.Data == nil {
			continue
		}
		data, err := ics.Encode(obj.Data)
		if err != nil {
			c.logger.Warn("Skipping unreadable calendar object", "href", obj.Path, "error", err)
			continue
		}
		out = append(out, models.RawObject{Href: obj.Path, Data: data})
	}
	c.logger.Info("Fetched calendar objects", "count", len(out))
	return out, nil
}

// Put stores a standalone calendar document as <collection>/<uid>.ics.
func (c *Client) Put(ctx context.Context, uid, document string) error {
	cal, err := ics.Decode(document, c.now())
	if err != nil {
		return err
	}
	if uid == "" {
		uid = ics.EventUID(cal)
	}
	if uid == "" {
		return fmt.Errorf("calendar document has no UID")
	}

	objectPath := c.objectPath(uid)
	if _, err := c.caldavClient.PutCalendarObject(ctx, objectPath, cal); err != nil {
		return fmt.Errorf("failed to put event on CalDAV server: %w", err)
	}
	c.logger.Info("Stored event", "uid", uid, "path", objectPath)
	return nil
}

// Delete removes the object holding ev: its href when the query returned
// one, <collection>/<uid>.ics otherwise.
func (c *Client) Delete(ctx context.Context, ev models.ParsedEvent) error {
	target := ev.Href
	if target == "" {
		if ev.UID == "" {
			return fmt.Errorf("event %q has neither href nor UID", ev.Summary)
		}
		target = c.objectPath(ev.UID)
	}
	if err := c.webdavClient.RemoveAll(ctx, target); err != nil {
		return fmt.Errorf("failed to delete %s: %w", target, err)
	}
	c.logger.Info("Deleted event", "uid", ev.UID, "path", target)
	return nil
}

func (c *Client) objectPath(uid string) string {
	return path.Join(c.calendarPath, url.PathEscape(uid)+".ics")
}

// findCalendar discovers the user's calendars and returns the path of the one
// with the matching display name.
func (c *Client) findCalendar(ctx context.Context, name string) (string, error) {
	principalPath, err := c.caldavClient.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to find principal path: %w", err)
	}

	homeSetPath, err := c.caldavClient.FindCalendarHomeSet(ctx, principalPath)
	if err != nil {
		return "", fmt.Errorf("failed to find calendar home set: %w", err)
	}

	calendars, err := c.caldavClient.FindCalendars(ctx, homeSetPath)
	if err != nil {
		return "", fmt.Errorf("failed to find calendars: %w", err)
	}

	for _, cal := range calendars {
		if strings.EqualFold(cal.Name, name) {
			return cal.Path, nil
		}
	}
	return "", fmt.Errorf("no calendar found with name '%s'", name)
}
