// Package anthology defines core types shared across the pipeline.
package anthology

import (
	"fmt"
	"time"
)

// Strategy identifies which archive-layout handling applies to a link.
type Strategy string

// Known archive layouts. Modern volume paths, the older positional letter
// scheme, and yearly event pages that must be followed to reach volumes.
const (
	StrategyModern Strategy = "modern"
	StrategyLegacy Strategy = "legacy"
	StrategyEvent  Strategy = "event"
)

// Status is the terminal state of a single paper's extraction.
type Status string

// Extraction status values recorded in the run report.
const (
	StatusOK            Status = "ok"
	StatusFetchFailed   Status = "fetch_failed"
	StatusParseFailed   Status = "parse_failed"
	StatusNoEmailFound  Status = "no_email_found"
	StatusListingFailed Status = "listing_failed"
)

// ScrapeConfig captures the per-run knobs requested by the user.
// Zero means unlimited for both caps. Immutable for the duration of a run.
type ScrapeConfig struct {
	StartYear              int
	EndYear                int
	MaxConferencesPerYear  int
	MaxPapersPerConference int
}

// Validate checks the year range before any scraping begins.
func (c ScrapeConfig) Validate() error {
	if c.StartYear <= 0 || c.EndYear <= 0 {
		return fmt.Errorf("years must be positive, got %d..%d", c.StartYear, c.EndYear)
	}
	if c.StartYear > c.EndYear {
		return fmt.Errorf("start year %d is after end year %d", c.StartYear, c.EndYear)
	}
	if c.MaxConferencesPerYear < 0 {
		return fmt.Errorf("max conferences per year must be >= 0, got %d", c.MaxConferencesPerYear)
	}
	if c.MaxPapersPerConference < 0 {
		return fmt.Errorf("max papers per conference must be >= 0, got %d", c.MaxPapersPerConference)
	}
	return nil
}

// Conference describes one discovered conference/volume listing.
// Uniquely identified by ListingURL; never mutated after discovery.
type Conference struct {
	Year       int
	Venue      string
	Track      string
	ListingURL string
	Strategy   Strategy
}

// Paper describes one paper entry within a conference listing.
// Uniquely identified by PDFURL within its conference. PageURL points at the
// individual paper page that was walked to resolve the PDF link. Authors are
// the author names listed on that page, in page order.
type Paper struct {
	Conference *Conference
	ID         string
	Title      string
	PageURL    string
	PDFURL     string
	Authors    []string
}

// Extraction is the terminal record for one paper. Emails are lowercase and
// deduplicated; the slice is empty for every status except StatusOK.
type Extraction struct {
	Paper  Paper
	Emails []string
	Status Status
}

// Row is one flat output record: one row per extracted email, or one status
// row for a paper that yielded none. The external CSV writer emits one line
// per Row without further logic.
type Row struct {
	RunID      string
	Year       int
	Conference string
	Track      string
	PaperTitle string
	PaperURL   string
	PDFURL     string
	Email      string
	Author     string
	Status     Status
}

// Report is the run-scoped aggregate of every extraction plus counters.
// Only the session appends to it; nothing else mutates it.
type Report struct {
	RunID               string
	StartedAt           time.Time
	FinishedAt          time.Time
	Extractions         []Extraction
	ConferencesVisited  int
	PapersVisited       int
	FailuresByStage     map[string]int
	listingFailureNotes []Row
}

// NewReport creates an empty report for a run.
func NewReport(runID string, startedAt time.Time) *Report {
	return &Report{
		RunID:           runID,
		StartedAt:       startedAt,
		FailuresByStage: make(map[string]int),
	}
}

// Append records one extraction, regardless of its status.
func (r *Report) Append(ex Extraction) {
	r.Extractions = append(r.Extractions, ex)
	if ex.Status != StatusOK {
		r.FailuresByStage[string(ex.Status)]++
	}
}

// RecordStageFailure bumps the counter for a non-paper failure such as a
// broken index page or a listing fetch error.
func (r *Report) RecordStageFailure(stage string) {
	r.FailuresByStage[stage]++
}

// RecordListingFailure adds a conference-level status row so a conference
// whose listing could not be fetched still surfaces in the output.
func (r *Report) RecordListingFailure(conf Conference) {
	r.FailuresByStage[string(StatusListingFailed)]++
	r.listingFailureNotes = append(r.listingFailureNotes, Row{
		RunID:      r.RunID,
		Year:       conf.Year,
		Conference: conf.Venue,
		Track:      conf.Track,
		PaperURL:   conf.ListingURL,
		Status:     StatusListingFailed,
	})
}

// EmailsFound returns the total number of emails across all extractions.
func (r *Report) EmailsFound() int {
	n := 0
	for _, ex := range r.Extractions {
		n += len(ex.Emails)
	}
	return n
}

// Rows flattens the report into output records, preserving the deterministic
// year, conference, paper ordering the run produced them in.
func (r *Report) Rows() []Row {
	rows := make([]Row, 0, len(r.Extractions)+len(r.listingFailureNotes))
	for _, ex := range r.Extractions {
		base := Row{
			RunID:      r.RunID,
			Year:       ex.Paper.Conference.Year,
			Conference: ex.Paper.Conference.Venue,
			Track:      ex.Paper.Conference.Track,
			PaperTitle: ex.Paper.Title,
			PaperURL:   ex.Paper.PageURL,
			PDFURL:     ex.Paper.PDFURL,
			Status:     ex.Status,
		}
		if len(ex.Emails) == 0 {
			rows = append(rows, base)
			continue
		}
		for i, email := range ex.Emails {
			row := base
			row.Email = email
			row.Author = authorFor(ex.Paper.Authors, i)
			rows = append(rows, row)
		}
	}
	rows = append(rows, r.listingFailureNotes...)
	return rows
}

// authorFor pairs the i-th email with the i-th listed author. Positional
// pairing is a heuristic; extra emails fall back to the first author.
func authorFor(authors []string, i int) string {
	if len(authors) == 0 {
		return ""
	}
	if i < len(authors) {
		return authors[i]
	}
	return authors[0]
}
