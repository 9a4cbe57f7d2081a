package anthology

import (
	"bytes"
	"context"
	"fmt"
	"net/url"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/calderlab/harvester/internal/fetcher"
)

// Getter is the slice of the HTTP client the pipeline consumes. All network
// access funnels through it.
type Getter interface {
	Get(ctx context.Context, rawURL string) (fetcher.Result, error)
}

// StageFailure records a non-fatal failure of one discovery stage. The run
// continues; the session folds these into the report counters.
type StageFailure struct {
	Stage string
	URL   string
	Err   error
}

// Discovery enumerates the conference listings for a year by walking the
// volumes and events indexes. Both strategies are always attempted; one
// failing never blocks the other.
type Discovery struct {
	base       *url.URL
	client     Getter
	classifier *Classifier
	logger     *zap.Logger
}

// NewDiscovery builds a Discovery rooted at the archive base URL.
func NewDiscovery(base *url.URL, client Getter, classifier *Classifier, logger *zap.Logger) *Discovery {
	return &Discovery{
		base:       base,
		client:     client,
		classifier: classifier,
		logger:     logger,
	}
}

// Discover walks the volumes and events indexes for the target year and
// returns the unique conference listings found, capped at limit when
// limit > 0. Index fetch failures are returned as stage failures, not errors;
// the error is non-nil only when the context is done.
func (d *Discovery) Discover(ctx context.Context, year, limit int) ([]Conference, []StageFailure, error) {
	acc := newAccumulator(limit)
	var failures []StageFailure

	volumesURL := d.base.JoinPath("volumes").String() + "/"
	if err := d.scanIndex(ctx, volumesURL, year, acc, nil); err != nil {
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		d.logger.Warn("Volumes index failed", zap.Int("year", year), zap.Error(err))
		failures = append(failures, StageFailure{Stage: "volumes_index", URL: volumesURL, Err: err})
	}

	var events []Conference
	eventsURL := d.base.JoinPath("events").String() + "/"
	if err := d.scanIndex(ctx, eventsURL, year, acc, &events); err != nil {
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		d.logger.Warn("Events index failed", zap.Int("year", year), zap.Error(err))
		failures = append(failures, StageFailure{Stage: "events_index", URL: eventsURL, Err: err})
	}

	// Event pages are followed exactly one hop: the event page is re-scanned
	// for nested volume links, never for further events.
	for _, ev := range events {
		if acc.full() {
			break
		}
		if err := d.followEvent(ctx, ev, year, acc); err != nil {
			if ctx.Err() != nil {
				return nil, nil, ctx.Err()
			}
			d.logger.Warn("Event page failed",
				zap.Int("year", year),
				zap.String("url", ev.ListingURL),
				zap.Error(err),
			)
			failures = append(failures, StageFailure{Stage: "events_follow", URL: ev.ListingURL, Err: err})
		}
	}

	conferences := acc.conferences
	conferencesDiscovered.Add(float64(len(conferences)))
	d.logger.Info("Discovery complete",
		zap.Int("year", year),
		zap.Int("conferences", len(conferences)),
		zap.Int("stage_failures", len(failures)),
	)
	return conferences, failures, nil
}

// scanIndex fetches one index page and classifies every href on it. Direct
// volume matches land in the accumulator; event matches are collected into
// events for the one-hop follow when it is non-nil, and skipped otherwise.
func (d *Discovery) scanIndex(ctx context.Context, pageURL string, year int, acc *accumulator, events *[]Conference) error {
	res, err := d.client.Get(ctx, pageURL)
	if err != nil {
		return err
	}
	base, err := url.Parse(res.URL)
	if err != nil {
		return fmt.Errorf("parse index url: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body))
	if err != nil {
		return fmt.Errorf("parse index html: %w", err)
	}

	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, ok := s.Attr("href")
		if !ok {
			return true
		}
		conf := d.classifier.Classify(href, base, year)
		if conf == nil {
			return true
		}
		if conf.Strategy == StrategyEvent {
			if events != nil {
				*events = append(*events, *conf)
			}
			return true
		}
		return acc.add(*conf)
	})
	return nil
}

// followEvent fetches a yearly event page and re-scans it for the per-track
// volume links it references.
func (d *Discovery) followEvent(ctx context.Context, ev Conference, year int, acc *accumulator) error {
	res, err := d.client.Get(ctx, ev.ListingURL)
	if err != nil {
		return err
	}
	base, err := url.Parse(res.URL)
	if err != nil {
		return fmt.Errorf("parse event url: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body))
	if err != nil {
		return fmt.Errorf("parse event html: %w", err)
	}

	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, ok := s.Attr("href")
		if !ok {
			return true
		}
		conf := d.classifier.Classify(href, base, year)
		if conf == nil || conf.Strategy == StrategyEvent {
			return true
		}
		return acc.add(*conf)
	})
	return nil
}

// accumulator collects unique conferences by listing URL up to a cap.
type accumulator struct {
	limit       int
	seen        map[string]struct{}
	conferences []Conference
}

func newAccumulator(limit int) *accumulator {
	return &accumulator{
		limit: limit,
		seen:  make(map[string]struct{}),
	}
}

// add stores the conference if unseen and returns false once the cap is hit.
func (a *accumulator) add(conf Conference) bool {
	if a.full() {
		return false
	}
	if _, ok := a.seen[conf.ListingURL]; ok {
		return true
	}
	a.seen[conf.ListingURL] = struct{}{}
	a.conferences = append(a.conferences, conf)
	return !a.full()
}

func (a *accumulator) full() bool {
	return a.limit > 0 && len(a.conferences) >= a.limit
}
