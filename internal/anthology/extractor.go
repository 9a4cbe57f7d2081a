package anthology

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"
)

// emailPattern requires a local part, an @, and a domain with at least one
// dot. PDF text extraction is lossy, so matches are further filtered below.
var emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

// boilerplateTokens mark addresses sitting inside copyright and licensing
// boilerplate. A heuristic filter, not a guarantee.
var boilerplateTokens = []string{
	"license",
	"doi.org",
	"creativecommons",
	"copyright",
	"permissions@",
}

// contextWindow is how many bytes around a match are inspected for
// boilerplate tokens. Extracted PDF text rarely keeps line breaks, so a byte
// window stands in for "the surrounding line".
const contextWindow = 80

// TextExtractor turns PDF bytes into plain text. Behind an interface so the
// email scan is testable without crafting PDFs.
type TextExtractor interface {
	Text(data []byte) (string, error)
}

// PDFText implements TextExtractor using the ledongthuc/pdf reader.
type PDFText struct{}

// Text extracts the plain text of every page. The underlying reader panics
// on malformed files, so the panic is converted to an error at this boundary.
func (PDFText) Text(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf reader panic: %v", r)
		}
	}()
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return buf.String(), nil
}

// Extractor fetches a paper's PDF and scans it for author contact emails.
type Extractor struct {
	client Getter
	text   TextExtractor
	logger *zap.Logger
}

// NewExtractor builds an Extractor. A nil text extractor defaults to PDFText.
func NewExtractor(client Getter, text TextExtractor, logger *zap.Logger) *Extractor {
	if text == nil {
		text = PDFText{}
	}
	return &Extractor{client: client, text: text, logger: logger}
}

// Extract downloads the paper's PDF and returns its terminal record. Every
// outcome is a status, never an error: absence of an email is an expected
// result, and fetch or parse failures mark only this paper as failed.
func (e *Extractor) Extract(ctx context.Context, paper Paper) Extraction {
	res, err := e.client.Get(ctx, paper.PDFURL)
	if err != nil {
		e.logger.Warn("PDF fetch failed", zap.String("url", paper.PDFURL), zap.Error(err))
		return Extraction{Paper: paper, Status: StatusFetchFailed}
	}

	text, err := e.text.Text(res.Body)
	if err != nil || strings.TrimSpace(text) == "" {
		if err != nil {
			e.logger.Warn("PDF parse failed", zap.String("url", paper.PDFURL), zap.Error(err))
		}
		return Extraction{Paper: paper, Status: StatusParseFailed}
	}
	pdfsParsed.Inc()

	emails := ScanEmails(text)
	if len(emails) == 0 {
		return Extraction{Paper: paper, Status: StatusNoEmailFound}
	}
	emailsExtracted.Add(float64(len(emails)))
	e.logger.Info("Emails extracted",
		zap.String("paper", paper.ID),
		zap.Int("count", len(emails)),
	)
	return Extraction{Paper: paper, Emails: emails, Status: StatusOK}
}

// ScanEmails finds candidate addresses in extracted PDF text, drops matches
// adjacent to boilerplate tokens, and returns them lowercased, deduplicated,
// and sorted.
func ScanEmails(text string) []string {
	lower := strings.ToLower(text)
	seen := make(map[string]struct{})
	for _, loc := range emailPattern.FindAllStringIndex(lower, -1) {
		if boilerplateContext(lower, loc[0], loc[1]) {
			continue
		}
		seen[lower[loc[0]:loc[1]]] = struct{}{}
	}
	emails := make([]string, 0, len(seen))
	for email := range seen {
		emails = append(emails, email)
	}
	sort.Strings(emails)
	return emails
}

func boilerplateContext(lower string, start, end int) bool {
	from := start - contextWindow
	if from < 0 {
		from = 0
	}
	to := end + contextWindow
	if to > len(lower) {
		to = len(lower)
	}
	window := lower[from:to]
	for _, token := range boilerplateTokens {
		if strings.Contains(window, token) {
			return true
		}
	}
	return false
}
