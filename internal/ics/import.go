package ics

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	appLog "meetcal/internal/log"
	"meetcal/internal/metrics"
	"meetcal/internal/model"
	"meetcal/internal/store"
)

// ImportOptions configure an Importer. Zero days fall back to 30 days back
// and 180 days ahead.
type ImportOptions struct {
	BackfillDays int
	HorizonDays  int
	Now          func() time.Time
	Metrics      *metrics.Metrics
}

// ImportStats summarizes one feed reconciliation.
type ImportStats struct {
	Feed      string
	Created   int
	Updated   int
	Deleted   int
	Unchanged int
	// Skipped counts instances the store rejected as invalid.
	Skipped   int
	FromCache bool
}

// Importer mirrors ICS feeds into a MeetingStore. Imported meetings are
// keyed by (Source, ExternalID); local meetings are never touched.
type Importer struct {
	store   store.MeetingStore
	fetcher *Fetcher
	opts    ImportOptions
	log     *appLog.Logger
}

// NewImporter returns an Importer writing to s. fetcher may be nil when only
// ImportBody is used.
func NewImporter(s store.MeetingStore, fetcher *Fetcher, opts ImportOptions) *Importer {
	if opts.BackfillDays <= 0 {
		opts.BackfillDays = 30
	}
	if opts.HorizonDays <= 0 {
		opts.HorizonDays = 180
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Importer{store: s, fetcher: fetcher, opts: opts, log: appLog.Component("import")}
}

// ImportAll imports every feed. One failing feed does not stop the others;
// their errors are joined.
func (im *Importer) ImportAll(ctx context.Context, feeds []Feed) ([]ImportStats, error) {
	var (
		stats []ImportStats
		errs  []error
	)
	for _, f := range feeds {
		st, err := im.ImportFeed(ctx, f)
		if err != nil {
			errs = append(errs, fmt.Errorf("feed %s: %w", f.ID, err))
			continue
		}
		stats = append(stats, st)
	}
	return stats, errors.Join(errs...)
}

// ImportFeed fetches one feed and reconciles it.
func (im *Importer) ImportFeed(ctx context.Context, f Feed) (ImportStats, error) {
	if im.fetcher == nil {
		return ImportStats{Feed: f.ID}, errors.New("importer has no fetcher")
	}
	p, err := im.fetcher.Fetch(ctx, f)
	if err != nil {
		im.opts.Metrics.ObserveImport(f.ID, metrics.ResultError)
		return ImportStats{Feed: f.ID}, err
	}
	st, err := im.ImportBody(ctx, f.ID, p.Body)
	st.FromCache = p.FromCache
	return st, err
}

// ImportBody parses an ICS document and reconciles it as feed feedID.
func (im *Importer) ImportBody(ctx context.Context, feedID string, body []byte) (ImportStats, error) {
	st := ImportStats{Feed: feedID}
	events, err := Parse(feedID, body)
	if err != nil {
		im.opts.Metrics.ObserveImport(feedID, metrics.ResultError)
		return st, err
	}
	w := WindowAround(im.opts.Now(), im.opts.BackfillDays, im.opts.HorizonDays)
	drafts, err := Expand(events, w)
	if err != nil {
		im.opts.Metrics.ObserveImport(feedID, metrics.ResultError)
		return st, err
	}
	st, err = im.Reconcile(ctx, feedID, drafts, w)
	if err != nil {
		im.opts.Metrics.ObserveImport(feedID, metrics.ResultError)
		return st, err
	}
	im.opts.Metrics.ObserveImport(feedID, metrics.ResultOK)
	im.log.Info("feed imported", "feed", feedID,
		"created", st.Created, "updated", st.Updated, "deleted", st.Deleted, "unchanged", st.Unchanged, "skipped", st.Skipped)
	return st, nil
}

// Reconcile makes the feed's stored meetings inside w equal drafts: new
// instances are created, changed ones updated under their current version
// and vanished ones deleted. Meetings of the feed outside w are left alone.
func (im *Importer) Reconcile(ctx context.Context, feedID string, drafts []model.Draft, w Window) (ImportStats, error) {
	st := ImportStats{Feed: feedID}

	res, err := im.store.ListByRange(ctx, store.All())
	if err != nil {
		return st, err
	}
	existing := make(map[string]model.Meeting)
	for _, m := range res.Items {
		if m.Source == feedID && m.ExternalID != "" {
			existing[m.ExternalID] = m
		}
	}

	seen := make(map[string]bool, len(drafts))
	for _, d := range drafts {
		d.Source = feedID
		if seen[d.ExternalID] {
			continue
		}
		seen[d.ExternalID] = true

		cur, ok := existing[d.ExternalID]
		if !ok {
			if _, err := im.store.Create(ctx, d); err != nil {
				if errors.Is(err, store.ErrValidation) {
					im.skip(&st, d, err)
					continue
				}
				return st, fmt.Errorf("create %s: %w", d.ExternalID, err)
			}
			st.Created++
			continue
		}
		if sameContent(cur, d) {
			st.Unchanged++
			continue
		}
		if _, err := im.store.Update(ctx, cur.ID, patchFor(d, cur.Version)); err != nil {
			if errors.Is(err, store.ErrValidation) {
				im.skip(&st, d, err)
				continue
			}
			return st, fmt.Errorf("update %s: %w", d.ExternalID, err)
		}
		st.Updated++
	}

	for key, m := range existing {
		if seen[key] || !overlaps(m.Start, m.End, w) {
			continue
		}
		err := im.store.Delete(ctx, m.ID, store.DeleteOptions{IfMatch: store.Version(m.Version)})
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return st, fmt.Errorf("delete %s: %w", key, err)
		}
		st.Deleted++
	}
	return st, nil
}

// skip records an instance the store refused; the rest of the feed still
// applies.
func (im *Importer) skip(st *ImportStats, d model.Draft, err error) {
	st.Skipped++
	im.log.Warn("skipping feed instance", "feed", st.Feed, "external_id", d.ExternalID, "err", err)
}

func sameContent(m model.Meeting, d model.Draft) bool {
	return m.Title == strings.TrimSpace(d.Title) &&
		m.Description == d.Description &&
		m.Location == d.Location &&
		m.Start.Equal(d.Start) &&
		m.End.Equal(d.End) &&
		m.AllDay == d.AllDay &&
		m.Status == d.Status &&
		slices.Equal(m.Teams, model.NormalizeTeams(d.Teams))
}

func patchFor(d model.Draft, version int64) model.Patch {
	teams := d.Teams
	return model.Patch{
		Title:       &d.Title,
		Description: &d.Description,
		Location:    &d.Location,
		Start:       &d.Start,
		End:         &d.End,
		AllDay:      &d.AllDay,
		Teams:       &teams,
		Status:      &d.Status,
		IfMatch:     store.Version(version),
	}
}
