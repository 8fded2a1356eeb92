package mirror

import (
	"encoding/csv"
	"io"

	"github.com/pkordes/visitor-logbook/internal/domain"
)

// CSVEncoder writes the artifact as RFC 4180 CSV with a plain header row.
// Output is a pure function of the rows, so rebuilding the same input is
// byte-for-byte identical.
type CSVEncoder struct{}

func (CSVEncoder) Format() domain.ExportFormat { return domain.FormatCSV }

func (CSVEncoder) ContentType() string { return "text/csv; charset=utf-8" }

func (CSVEncoder) Encode(w io.Writer, rows []domain.ExportRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Headers); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write(r.Record()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
