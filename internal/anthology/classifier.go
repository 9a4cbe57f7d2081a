package anthology

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// legacyVenues maps the single-letter codes of the older positional URL
// scheme onto venue codes.
var legacyVenues = map[string]string{
	"P": "acl",
	"N": "naacl",
	"E": "eacl",
	"D": "emnlp",
	"C": "coling",
	"W": "workshop",
}

// paperSuffix matches individual paper ids (a trailing numeric segment such
// as 2023.acl-long.123) so indexes never misclassify papers as volumes.
var paperSuffix = regexp.MustCompile(`\.\d+$`)

// rule pairs a link-shape pattern with its descriptor extractor. The rule set
// is ordered data: most-specific first, first match wins, and a new archive
// format is a new entry, not new control flow.
type rule struct {
	strategy Strategy
	pattern  *regexp.Regexp
	extract  func(m []string, year int) *Conference
}

// Classifier decides which archive-layout strategy applies to a raw href and
// extracts structured identifiers from it. Pure: no network I/O, no state.
type Classifier struct {
	rules []rule
}

// NewClassifier builds the default rule set.
func NewClassifier() *Classifier {
	return &Classifier{rules: []rule{
		{
			// Modern volume path with an explicit track: /volumes/2023.acl-long/
			strategy: StrategyModern,
			pattern:  regexp.MustCompile(`/volumes/(\d{4})\.([^-/.]+)-([^/.]+)/?$`),
			extract: func(m []string, year int) *Conference {
				y, _ := strconv.Atoi(m[1])
				if y != year {
					return nil
				}
				return &Conference{
					Year:     y,
					Venue:    strings.ToLower(m[2]),
					Track:    titleCase(m[3]),
					Strategy: StrategyModern,
				}
			},
		},
		{
			// Modern volume path without a track segment: /volumes/2019.iwslt/
			strategy: StrategyModern,
			pattern:  regexp.MustCompile(`/volumes/(\d{4})\.([^-/.]+)/?$`),
			extract: func(m []string, year int) *Conference {
				y, _ := strconv.Atoi(m[1])
				if y != year {
					return nil
				}
				return &Conference{
					Year:     y,
					Venue:    strings.ToLower(m[2]),
					Track:    "Main",
					Strategy: StrategyModern,
				}
			},
		},
		{
			// Legacy positional scheme: /P23/, /W00-13/. The letter encodes
			// the venue, two digits the year, an optional suffix the track.
			// Track suffixes are 1-2 digits or word-like; longer numeric
			// suffixes are individual papers (P23-1001) and are not volumes.
			strategy: StrategyLegacy,
			pattern:  regexp.MustCompile(`/([A-Z])(\d{2})(?:-(\d{1,2}|[A-Za-z]\w*))?/?$`),
			extract: func(m []string, year int) *Conference {
				y := expandTwoDigitYear(m[2])
				if y != year {
					return nil
				}
				venue, ok := legacyVenues[m[1]]
				if !ok {
					venue = fmt.Sprintf("conference-%s", strings.ToLower(m[1]))
				}
				track := "Main"
				if m[3] != "" {
					track = titleCase(m[3])
				}
				return &Conference{
					Year:     y,
					Venue:    venue,
					Track:    track,
					Strategy: StrategyLegacy,
				}
			},
		},
		{
			// Event page: /events/acl-2023/. Classified but unresolved; the
			// discovery engine follows it one hop to the per-track volumes.
			strategy: StrategyEvent,
			pattern:  regexp.MustCompile(`/events/([a-z0-9]+)-(\d{4})/?$`),
			extract: func(m []string, year int) *Conference {
				y, _ := strconv.Atoi(m[2])
				if y != year {
					return nil
				}
				return &Conference{
					Year:     y,
					Venue:    strings.ToLower(m[1]),
					Track:    "Event",
					Strategy: StrategyEvent,
				}
			},
		},
	}}
}

// Classify resolves href against base and runs it through the rule set for
// the target year. A nil return is a classification miss: the link is simply
// not a conference listing for that year, which is expected, not an error.
func (c *Classifier) Classify(href string, base *url.URL, year int) *Conference {
	resolved := resolveHref(href, base)
	if resolved == nil {
		return nil
	}
	cleanPath := strings.TrimSuffix(resolved.Path, "/")
	if paperSuffix.MatchString(cleanPath) {
		return nil
	}
	for _, r := range c.rules {
		m := r.pattern.FindStringSubmatch(cleanPath)
		if m == nil {
			continue
		}
		conf := r.extract(m, year)
		if conf == nil {
			continue
		}
		resolved.Path = cleanPath + "/"
		resolved.Fragment = ""
		resolved.RawQuery = ""
		conf.ListingURL = resolved.String()
		return conf
	}
	return nil
}

func resolveHref(href string, base *url.URL) *url.URL {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return nil
	}
	if base == nil {
		return ref
	}
	return base.ResolveReference(ref)
}

// expandTwoDigitYear pivots two-digit years at 60: the archive reaches back
// to the 1960s, so 60..99 map to the 1900s.
func expandTwoDigitYear(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	if n >= 60 {
		return 1900 + n
	}
	return 2000 + n
}

// titleCase capitalizes each dash-separated segment of a track name.
func titleCase(s string) string {
	parts := strings.Split(strings.ToLower(s), "-")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, "-")
}
