package anthology

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const aclListing = `<html><body>
<a href="/2023.acl-long.1/">First Paper</a>
<a href="/2023.acl-long.2/">Second Paper</a>
<a href="/2023.acl-long.1/">duplicate link</a>
<a href="/2023.acl-long.3/">Third Paper</a>
<a href="/volumes/2023.acl-long/">self link, not a paper</a>
</body></html>`

func paperPage(title, pdfHref string, authors ...string) string {
	var b strings.Builder
	b.WriteString(`<html><head><title>fallback</title></head><body>
<h2 id="title"><a href="#">` + title + `</a></h2>`)
	for _, a := range authors {
		b.WriteString(`
<a href="/people/` + strings.ToLower(strings.ReplaceAll(a, " ", "-")) + `/">` + a + `</a>`)
	}
	b.WriteString(`
<a href="` + pdfHref + `">PDF</a>
</body></html>`)
	return b.String()
}

func testConference() Conference {
	return Conference{
		Year:       2023,
		Venue:      "acl",
		Track:      "Long",
		ListingURL: "https://aclanthology.org/volumes/2023.acl-long/",
		Strategy:   StrategyModern,
	}
}

func collectPapers(t *testing.T, w *Walker, conf Conference, limit int) ([]Paper, []error) {
	t.Helper()
	var papers []Paper
	var errs []error
	for paper, err := range w.Papers(context.Background(), conf, limit) {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		papers = append(papers, paper)
	}
	return papers, errs
}

func TestPapersDocumentOrder(t *testing.T) {
	t.Parallel()

	g := &stubGetter{pages: map[string]string{
		"https://aclanthology.org/volumes/2023.acl-long/": aclListing,
		"https://aclanthology.org/2023.acl-long.1/":       paperPage("First Paper", "/2023.acl-long.1.pdf", "Jane Doe", "Bob Roe"),
		"https://aclanthology.org/2023.acl-long.2/":       paperPage("Second Paper", "/2023.acl-long.2.pdf"),
		"https://aclanthology.org/2023.acl-long.3/":       paperPage("Third Paper", "/2023.acl-long.3.pdf"),
	}}
	w := NewWalker(g, zap.NewNop())

	papers, errs := collectPapers(t, w, testConference(), 0)
	require.Empty(t, errs)
	require.Len(t, papers, 3)

	require.Equal(t, "2023.acl-long.1", papers[0].ID)
	require.Equal(t, "First Paper", papers[0].Title)
	require.Equal(t, "https://aclanthology.org/2023.acl-long.1.pdf", papers[0].PDFURL)
	require.Equal(t, []string{"Jane Doe", "Bob Roe"}, papers[0].Authors)
	require.Equal(t, "2023.acl-long.2", papers[1].ID)
	require.Empty(t, papers[1].Authors)
	require.Equal(t, "2023.acl-long.3", papers[2].ID)
}

func TestPapersCapStopsFetching(t *testing.T) {
	t.Parallel()

	g := &stubGetter{pages: map[string]string{
		"https://aclanthology.org/volumes/2023.acl-long/": aclListing,
		"https://aclanthology.org/2023.acl-long.1/":       paperPage("First Paper", "/2023.acl-long.1.pdf"),
		"https://aclanthology.org/2023.acl-long.2/":       paperPage("Second Paper", "/2023.acl-long.2.pdf"),
		"https://aclanthology.org/2023.acl-long.3/":       paperPage("Third Paper", "/2023.acl-long.3.pdf"),
	}}
	w := NewWalker(g, zap.NewNop())

	papers, errs := collectPapers(t, w, testConference(), 1)
	require.Empty(t, errs)
	require.Len(t, papers, 1)
	require.Equal(t, "2023.acl-long.1", papers[0].ID)

	// One listing fetch plus exactly one paper-page fetch: the cap prevents
	// any traversal past the consumed prefix.
	require.Equal(t, []string{
		"https://aclanthology.org/volumes/2023.acl-long/",
		"https://aclanthology.org/2023.acl-long.1/",
	}, g.fetches)
}

func TestPapersEarlyBreakStopsFetching(t *testing.T) {
	t.Parallel()

	g := &stubGetter{pages: map[string]string{
		"https://aclanthology.org/volumes/2023.acl-long/": aclListing,
		"https://aclanthology.org/2023.acl-long.1/":       paperPage("First Paper", "/2023.acl-long.1.pdf"),
	}}
	w := NewWalker(g, zap.NewNop())

	for range w.Papers(context.Background(), testConference(), 0) {
		break
	}
	require.Len(t, g.fetches, 2)
}

func TestPapersListingFailure(t *testing.T) {
	t.Parallel()

	g := &stubGetter{pages: map[string]string{}}
	w := NewWalker(g, zap.NewNop())

	papers, errs := collectPapers(t, w, testConference(), 0)
	require.Empty(t, papers)
	require.Len(t, errs, 1)
	require.True(t, errors.Is(errs[0], ErrListingUnavailable))
}

func TestPapersPaperPageFailureContinues(t *testing.T) {
	t.Parallel()

	g := &stubGetter{pages: map[string]string{
		"https://aclanthology.org/volumes/2023.acl-long/": aclListing,
		// paper 1 missing: 404
		"https://aclanthology.org/2023.acl-long.2/": paperPage("Second Paper", "/2023.acl-long.2.pdf"),
		"https://aclanthology.org/2023.acl-long.3/": paperPage("Third Paper", "/2023.acl-long.3.pdf"),
	}}
	w := NewWalker(g, zap.NewNop())

	papers, errs := collectPapers(t, w, testConference(), 0)
	require.Len(t, errs, 1)
	require.NotErrorIs(t, errs[0], ErrListingUnavailable)
	require.Len(t, papers, 2)
	require.Equal(t, "2023.acl-long.2", papers[0].ID)
}

func TestPapersWithoutPDFAreSkipped(t *testing.T) {
	t.Parallel()

	g := &stubGetter{pages: map[string]string{
		"https://aclanthology.org/volumes/2023.acl-long/": aclListing,
		"https://aclanthology.org/2023.acl-long.1/":       `<html><body><h2 id="title">No PDF Here</h2></body></html>`,
		"https://aclanthology.org/2023.acl-long.2/":       paperPage("Second Paper", "/2023.acl-long.2.pdf"),
		"https://aclanthology.org/2023.acl-long.3/":       paperPage("Third Paper", "/2023.acl-long.3.pdf"),
	}}
	w := NewWalker(g, zap.NewNop())

	papers, errs := collectPapers(t, w, testConference(), 0)
	require.Empty(t, errs)
	require.Len(t, papers, 2)
	require.Equal(t, "2023.acl-long.2", papers[0].ID)
	require.Equal(t, "2023.acl-long.3", papers[1].ID)
}
