package micron

import (
	"encoding/csv"
	"io"

	"github.com/banshee-data/sonar.report/internal/sonar"
)

// LogReader streams slices out of a sonar CSV log. Each slice has its return
// selected with the reader's pick parameters before it is handed back, so
// callers can aggregate it directly.
type LogReader struct {
	csv       *csv.Reader
	params    sonar.PickParams
	records   int
	sawHeader bool
}

// NewLogReader wraps an open log. The reader does not close the underlying
// stream.
func NewLogReader(r io.Reader, params sonar.PickParams) *LogReader {
	cr := csv.NewReader(r)
	// Rows vary in width with num_bins, so per-record field counting is the
	// parser's job rather than the csv layer's.
	cr.FieldsPerRecord = -1
	// Only the field slice is reused between reads, never the string data.
	cr.ReuseRecord = true
	return &LogReader{csv: cr, params: params}
}

// Next returns the next slice in the log. It returns io.EOF at the end of
// the stream and a *ParseError for a malformed row; after a parse error the
// reader is still positioned to continue with the following row.
func (r *LogReader) Next() (*sonar.Slice, error) {
	for {
		fields, err := r.csv.Read()
		if err != nil {
			return nil, err
		}
		if !r.sawHeader {
			// The first line of every log names the columns.
			r.sawHeader = true
			continue
		}

		r.records++
		s, err := ParseRecord(fields)
		if err != nil {
			return nil, err
		}
		s.SelectReturn(r.params)
		return s, nil
	}
}

// Records reports how many data rows have been consumed, counting rows that
// failed to parse and excluding the header.
func (r *LogReader) Records() int {
	return r.records
}
