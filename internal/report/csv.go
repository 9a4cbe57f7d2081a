// Package report persists run reports as flat CSV files.
package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/calderlab/harvester/internal/anthology"
)

// header is the CSV column layout: one line per extracted email, or one
// status line per paper that yielded none.
var header = []string{
	"run_id",
	"year",
	"conference",
	"track",
	"paper_title",
	"paper_url",
	"pdf_url",
	"email",
	"author",
	"status",
}

// WriteCSV writes the report's rows to path, overwriting any previous file.
func WriteCSV(path string, rep *anthology.Report) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range rep.Rows() {
		record := []string{
			row.RunID,
			strconv.Itoa(row.Year),
			row.Conference,
			row.Track,
			row.PaperTitle,
			row.PaperURL,
			row.PDFURL,
			row.Email,
			row.Author,
			string(row.Status),
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
