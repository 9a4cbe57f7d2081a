package anthology

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"iter"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// ErrListingUnavailable tags a failure to fetch or parse a conference's
// listing page. The conference is recorded as failed; the run continues.
var ErrListingUnavailable = errors.New("listing unavailable")

// paperLinkPatterns match individual paper pages within a listing, in both
// the modern and the legacy id scheme.
var paperLinkPatterns = []*regexp.Regexp{
	regexp.MustCompile(`/\d{4}\.[^/]+\.\d+/?$`),
	regexp.MustCompile(`/[A-Z]\d{2}-\d+/?$`),
}

// Walker enumerates the papers of one discovered conference.
type Walker struct {
	client Getter
	logger *zap.Logger
}

// NewWalker builds a Walker.
func NewWalker(client Getter, logger *zap.Logger) *Walker {
	return &Walker{client: client, logger: logger}
}

// Papers returns a lazy, finite, non-restartable sequence of the papers in
// the conference listing, in document order, capped at limit when limit > 0.
// Stopping consumption stops all further page fetches. A listing failure
// yields a single ErrListingUnavailable and ends the sequence; a paper-page
// failure yields a per-paper error and continues.
func (w *Walker) Papers(ctx context.Context, conf Conference, limit int) iter.Seq2[Paper, error] {
	return func(yield func(Paper, error) bool) {
		links, err := w.paperLinks(ctx, conf)
		if err != nil {
			yield(Paper{Conference: &conf}, fmt.Errorf("%w: %s: %w", ErrListingUnavailable, conf.ListingURL, err))
			return
		}
		w.logger.Info("Listing scanned",
			zap.String("conference", conf.Venue),
			zap.Int("year", conf.Year),
			zap.Int("papers", len(links)),
		)

		yielded := 0
		for _, link := range links {
			if limit > 0 && yielded >= limit {
				return
			}
			paper, err := w.resolvePaper(ctx, conf, link)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				if !yield(Paper{Conference: &conf, PageURL: link}, err) {
					return
				}
				continue
			}
			if paper.PDFURL == "" {
				w.logger.Debug("Paper page has no PDF link", zap.String("url", link))
				continue
			}
			papersWalked.Inc()
			yielded++
			if !yield(paper, nil) {
				return
			}
		}
	}
}

// paperLinks fetches the listing page and returns the paper page URLs it
// references, deduplicated, in document order.
func (w *Walker) paperLinks(ctx context.Context, conf Conference) ([]string, error) {
	res, err := w.client.Get(ctx, conf.ListingURL)
	if err != nil {
		return nil, err
	}
	base, err := url.Parse(res.URL)
	if err != nil {
		return nil, fmt.Errorf("parse listing url: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body))
	if err != nil {
		return nil, fmt.Errorf("parse listing html: %w", err)
	}

	var links []string
	seen := make(map[string]struct{})
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		resolved := resolveHref(href, base)
		if resolved == nil {
			return
		}
		resolved.Fragment = ""
		clean := strings.TrimSuffix(resolved.Path, "/")
		for _, pattern := range paperLinkPatterns {
			if !pattern.MatchString(clean) {
				continue
			}
			resolved.Path = clean + "/"
			link := resolved.String()
			if _, dup := seen[link]; !dup {
				seen[link] = struct{}{}
				links = append(links, link)
			}
			break
		}
	})
	return links, nil
}

// resolvePaper visits the individual paper page to find the title, the
// listed author names, and the first PDF link.
func (w *Walker) resolvePaper(ctx context.Context, conf Conference, pageURL string) (Paper, error) {
	res, err := w.client.Get(ctx, pageURL)
	if err != nil {
		return Paper{}, fmt.Errorf("paper page %s: %w", pageURL, err)
	}
	base, err := url.Parse(res.URL)
	if err != nil {
		return Paper{}, fmt.Errorf("parse paper url: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body))
	if err != nil {
		return Paper{}, fmt.Errorf("parse paper html %s: %w", pageURL, err)
	}

	title := strings.TrimSpace(doc.Find("h2#title").First().Text())
	if title == "" {
		title = strings.TrimSpace(doc.Find("title").First().Text())
	}

	var authors []string
	doc.Find(`a[href*="/people/"]`).Each(func(_ int, s *goquery.Selection) {
		if name := strings.TrimSpace(s.Text()); name != "" {
			authors = append(authors, name)
		}
	})

	pdfURL := ""
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, ok := s.Attr("href")
		if !ok {
			return true
		}
		if !strings.HasSuffix(strings.ToLower(href), ".pdf") {
			return true
		}
		if resolved := resolveHref(href, base); resolved != nil {
			pdfURL = resolved.String()
		}
		return false
	})

	return Paper{
		Conference: &conf,
		ID:         paperID(pageURL),
		Title:      title,
		PageURL:    pageURL,
		PDFURL:     pdfURL,
		Authors:    authors,
	}, nil
}

func paperID(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return pageURL
	}
	trimmed := strings.TrimSuffix(u.Path, "/")
	if idx := strings.LastIndex(trimmed, "/"); idx >= 0 {
		return trimmed[idx+1:]
	}
	return trimmed
}
