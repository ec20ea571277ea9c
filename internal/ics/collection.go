package ics

import (
	"context"

	appLog "github.com/reedts/jackal-core/internal/log"
	"github.com/reedts/jackal-core/internal/model"
	"github.com/reedts/jackal-core/internal/tz"
)

// Loader turns configured sources into loaded events. A source that fails
// to fetch or parse is reported but does not abort the others.
type Loader struct {
	fetcher     *Fetcher
	defaultZone tz.Tz
}

// NewLoader creates a Loader caching HTTP sources under cacheDir.
// defaultZone interprets floating and date-only values.
func NewLoader(cacheDir string, defaultZone tz.Tz) *Loader {
	return &Loader{fetcher: NewFetcher(cacheDir), defaultZone: defaultZone}
}

// LoadAll fetches and parses every source, concatenating the loaded
// events. Per-source failures come back in the error slice.
func (l *Loader) LoadAll(ctx context.Context, sources []Source) ([]*model.Event, []error) {
	events := make([]*model.Event, 0)
	var errs []error

	for _, src := range sources {
		res, err := l.fetcher.Fetch(ctx, src)
		if err != nil {
			appLog.Error("source fetch failed", err, "id", src.ID)
			errs = append(errs, err)
			continue
		}
		evs, err := ParseICS(src, res.Body, l.defaultZone)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		events = append(events, evs...)
	}

	appLog.Info("sources loaded", "source_count", len(sources), "event_count", len(events), "failed", len(errs))
	return events, errs
}
