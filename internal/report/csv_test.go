package report

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/calderlab/harvester/internal/anthology"
)

func sampleReport() *anthology.Report {
	rep := anthology.NewReport("run-1", time.Unix(1700000000, 0).UTC())
	conf := anthology.Conference{
		Year:       2023,
		Venue:      "acl",
		Track:      "Long",
		ListingURL: "https://aclanthology.org/volumes/2023.acl-long/",
		Strategy:   anthology.StrategyModern,
	}
	rep.Append(anthology.Extraction{
		Paper: anthology.Paper{
			Conference: &conf,
			ID:         "2023.acl-long.1",
			Title:      "First Paper",
			PageURL:    "https://aclanthology.org/2023.acl-long.1/",
			PDFURL:     "https://aclanthology.org/2023.acl-long.1.pdf",
			Authors:    []string{"Jane Doe", "Bob Roe"},
		},
		Emails: []string{"a@b.edu", "c@d.org"},
		Status: anthology.StatusOK,
	})
	rep.Append(anthology.Extraction{
		Paper: anthology.Paper{
			Conference: &conf,
			ID:         "2023.acl-long.2",
			Title:      "Second Paper",
			PageURL:    "https://aclanthology.org/2023.acl-long.2/",
			PDFURL:     "https://aclanthology.org/2023.acl-long.2.pdf",
		},
		Status: anthology.StatusParseFailed,
	})
	return rep
}

func TestWriteCSV(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "results.csv")
	require.NoError(t, WriteCSV(path, sampleReport()))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4) // header + two email rows + one status row

	require.Equal(t, header, records[0])
	require.Equal(t, []string{
		"run-1", "2023", "acl", "Long", "First Paper",
		"https://aclanthology.org/2023.acl-long.1/",
		"https://aclanthology.org/2023.acl-long.1.pdf",
		"a@b.edu", "Jane Doe", "ok",
	}, records[1])
	require.Equal(t, "c@d.org", records[2][7])
	require.Equal(t, "Bob Roe", records[2][8])
	require.Equal(t, "parse_failed", records[3][9])
	require.Empty(t, records[3][7])
	require.Empty(t, records[3][8])
}

func TestWriteCSVOverwritesPrevious(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "results.csv")
	require.NoError(t, os.WriteFile(path, []byte("stale contents\n"), 0o644))

	require.NoError(t, WriteCSV(path, sampleReport()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotContains(t, string(data), "stale contents")
}

func TestWriteCSVBadPath(t *testing.T) {
	t.Parallel()

	err := WriteCSV(filepath.Join(t.TempDir(), "missing", "results.csv"), sampleReport())
	require.Error(t, err)
}
