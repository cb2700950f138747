// Package pipeline runs classified requests against the configured calendar
// stores: listing a range, finding deletion candidates, adding generated
// events and deleting confirmed ones.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"calassist/internal/ics"
	"calassist/internal/matcher"
	"calassist/internal/models"
)

var (
	// ErrNoStores is returned when the assistant is built without a store.
	ErrNoStores = errors.New("no calendar store configured")
	// ErrNoEvents is returned by Add when the markup holds no VEVENT.
	ErrNoEvents = errors.New("no events found in calendar markup")
	// ErrUnknownStore is returned when an event names a store that is not configured.
	ErrUnknownStore = errors.New("unknown calendar store")
)

// Store is a calendar server reachable through queries and commands.
type Store interface {
	Name() string
	QueryRange(ctx context.Context, start, end time.Time) ([]models.RawObject, error)
	Put(ctx context.Context, uid, document string) error
	Delete(ctx context.Context, ev models.ParsedEvent) error
}

// Assistant orchestrates the stores. The first store receives added events;
// queries fan out over all of them.
type Assistant struct {
	logger   *slog.Logger
	stores   []Store
	splitter *ics.Splitter
	dryRun   bool
}

// NewAssistant creates a new Assistant.
func NewAssistant(logger *slog.Logger, splitter *ics.Splitter, dryRun bool, stores ...Store) (*Assistant, error) {
	if len(stores) == 0 {
		return nil, ErrNoStores
	}
	if splitter == nil {
		splitter = ics.NewSplitter("")
	}
	return &Assistant{
		logger:   logger,
		stores:   stores,
		splitter: splitter,
		dryRun:   dryRun,
	}, nil
}

// Fetch returns the events of every store in the whole-day range start..end.
// Stores are queried concurrently; the result lists the stores' events in
// configuration order.
func (a *Assistant) Fetch(ctx context.Context, start, end time.Time) ([]models.ParsedEvent, error) {
	perStore := make([][]models.ParsedEvent, len(a.stores))

	g, ctx := errgroup.WithContext(ctx)
	for i, store := range a.stores {
		i, store := i, store
		g.Go(func() error {
			objects, err := store.QueryRange(ctx, start, end)
			if err != nil {
				return fmt.Errorf("%s: %w", store.Name(), err)
			}
			events := ics.ParseObjects(objects)
			for j := range events {
				events[j].Source = store.Name()
			}
			perStore[i] = events
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []models.ParsedEvent
	for _, events := range perStore {
		all = append(all, events...)
	}
	a.logger.Debug("Fetched events", "count", len(all), "stores", len(a.stores))
	return all, nil
}

// FindDeletionCandidates looks up the events of the request's start date and
// filters them with the request's search fields. A store failure is reported
// in the result's Error with no matches.
func (a *Assistant) FindDeletionCandidates(ctx context.Context, req models.ClassificationResult) models.MatchResult {
	day, err := time.Parse(models.DateLayout, req.StartDate)
	if err != nil {
		return failed(fmt.Errorf("invalid start date %q: %w", req.StartDate, err))
	}

	events, err := a.Fetch(ctx, day, day)
	if err != nil {
		a.logger.Error("Calendar query failed", "date", req.StartDate, "error", err)
		return failed(fmt.Errorf("calendar query failed: %w", err))
	}

	res := matcher.Result(events, req.Criteria())
	a.logger.Info("Found deletion candidates", "date", req.StartDate, "matches", res.MatchCount, "onDay", res.AllEventsOnDay)
	return res
}

func failed(err error) models.MatchResult {
	return models.MatchResult{Matches: []models.ParsedEvent{}, Error: err.Error()}
}

// Query lists the events in the request's range ordered by date, then start
// time. All-day events come first on their day.
func (a *Assistant) Query(ctx context.Context, req models.ClassificationResult) ([]models.ParsedEvent, error) {
	start, err := time.Parse(models.DateLayout, req.StartDate)
	if err != nil {
		return nil, fmt.Errorf("invalid start date %q: %w", req.StartDate, err)
	}
	end, err := time.Parse(models.DateLayout, req.EndDate)
	if err != nil {
		return nil, fmt.Errorf("invalid end date %q: %w", req.EndDate, err)
	}

	events, err := a.Fetch(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("calendar query failed: %w", err)
	}
	SortEvents(events)
	return events, nil
}

// SortEvents orders events by date, then start time, keeping the order of
// equal events.
func SortEvents(events []models.ParsedEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Date != events[j].Date {
			return events[i].Date < events[j].Date
		}
		return events[i].StartTime < events[j].StartTime
	})
}

// Add splits generated markup and stores each event in the primary store.
// Every record is returned, including those that failed to store; the
// first failure is returned as the error.
func (a *Assistant) Add(ctx context.Context, markup string) ([]models.SplitEvent, error) {
	records := a.splitter.Split(markup)
	if len(records) == 1 && records[0].PassThrough {
		return records, ErrNoEvents
	}

	primary := a.stores[0]
	var firstErr error
	for _, rec := range records {
		if a.dryRun {
			a.logger.Info("[DRY RUN] Would store event", "uid", rec.UID, "summary", rec.Summary, "store", primary.Name())
			continue
		}
		if err := primary.Put(ctx, rec.UID, rec.CalendarDocument); err != nil {
			a.logger.Error("Failed to store event", "uid", rec.UID, "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("failed to store %s: %w", rec.UID, err)
			}
		}
	}
	return records, firstErr
}

// Delete removes events from the store each one was read from.
func (a *Assistant) Delete(ctx context.Context, events ...models.ParsedEvent) error {
	for _, ev := range events {
		store, err := a.storeFor(ev)
		if err != nil {
			return err
		}
		if a.dryRun {
			a.logger.Info("[DRY RUN] Would delete event", "uid", ev.UID, "summary", ev.Summary, "store", store.Name())
			continue
		}
		if err := store.Delete(ctx, ev); err != nil {
			return fmt.Errorf("failed to delete %q: %w", ev.Summary, err)
		}
	}
	return nil
}

func (a *Assistant) storeFor(ev models.ParsedEvent) (Store, error) {
	if ev.Source == "" {
		return a.stores[0], nil
	}
	for _, s := range a.stores {
		if s.Name() == ev.Source {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownStore, ev.Source)
}
