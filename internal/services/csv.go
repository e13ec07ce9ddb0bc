package services

import (
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"
)

const (
	CSVDelimiter = ';'
	utf8BOM      = "\xef\xbb\xbf"
)

var CSVHeader = []string{"Date", "Campagne", "Manager", "Utilisateur", "Humeur", "Commentaire"}

// WriteCSV writes rows as a semicolon separated file prefixed with a UTF-8
// BOM so spreadsheet tools pick the right encoding. Fields holding the
// delimiter, a quote or a line break are quoted with doubled quotes.
func WriteCSV(w io.Writer, rows []ExportRow) error {
	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	cw.Comma = CSVDelimiter

	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write([]string{r.Date, r.Campaign, r.Manager, r.User, r.Mood, r.Comment}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV parses a file produced by WriteCSV, header excluded.
func ReadCSV(r io.Reader) ([]ExportRow, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	cr := csv.NewReader(strings.NewReader(strings.TrimPrefix(string(data), utf8BOM)))
	cr.Comma = CSVDelimiter
	cr.FieldsPerRecord = len(CSVHeader)

	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("missing header")
	}

	rows := make([]ExportRow, 0, len(records)-1)
	for _, rec := range records[1:] {
		rows = append(rows, ExportRow{
			Date:     rec[0],
			Campaign: rec[1],
			Manager:  rec[2],
			User:     rec[3],
			Mood:     rec[4],
			Comment:  rec[5],
		})
	}
	return rows, nil
}

var unsafeFilename = regexp.MustCompile(`[^\p{L}\p{N}_-]+`)

// ExportFilename builds resultats_<campagne>_<yyyy-MM-dd_HH-mm>.csv.
func ExportFilename(campaignName string, now time.Time) string {
	name := strings.Trim(unsafeFilename.ReplaceAllString(campaignName, "_"), "_")
	if name == "" {
		name = "campagne"
	}
	return fmt.Sprintf("resultats_%s_%s.csv", name, now.Format("2006-01-02_15-04"))
}
