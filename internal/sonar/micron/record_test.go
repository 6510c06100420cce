package micron

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

// validRow returns a well-formed log row: a continuous clockwise sweep at 30m
// range with five bins. Tests mutate copies of it to break specific fields.
func validRow() []string {
	return []string{
		"@",               // sof
		"12:34:56.789012", // timestamp
		"2",               // node
		"128",             // status
		"1949",            // hdctrl, bit 2 set
		"300",             // range, decimeters
		"84",              // gain
		"125",             // slope
		"13",              // ad_low
		"81",              // ad_span
		"3199",            // left_limit
		"3201",            // right_limit
		"32",              // steps
		"1600",            // heading
		"5",               // num_bins
		"10", "60", "5", "80", "40",
	}
}

func TestParseRecord(t *testing.T) {
	s, err := ParseRecord(validRow())
	if err != nil {
		t.Fatalf("ParseRecord failed on a valid row: %v", err)
	}

	if s.SOF != "@" {
		t.Errorf("SOF = %q, want %q", s.SOF, "@")
	}
	wantTime := time.Date(0, time.January, 1, 12, 34, 56, 789012000, time.UTC)
	if !s.Timestamp.Equal(wantTime) {
		t.Errorf("Timestamp = %v, want %v", s.Timestamp, wantTime)
	}
	if s.Node != 2 || s.Status != 128 || s.HDCtrl != 1949 {
		t.Errorf("head fields = node %d status %d hdctrl %d, want 2 128 1949",
			s.Node, s.Status, s.HDCtrl)
	}
	if s.Gain != 84 || s.Slope != 125 || s.ADLow != 13 || s.ADSpan != 81 {
		t.Errorf("gain fields = %d %d %d %d, want 84 125 13 81",
			s.Gain, s.Slope, s.ADLow, s.ADSpan)
	}
	if s.Range != 30 {
		t.Errorf("Range = %v meters, want 30", s.Range)
	}
	if s.LeftLimit != 3199 || s.RightLimit != 3201 {
		t.Errorf("limits = %d..%d, want 3199..3201", s.LeftLimit, s.RightLimit)
	}
	if s.Steps != 32 || s.Heading != 1600 || s.NumBins != 5 {
		t.Errorf("steps %d heading %d num_bins %d, want 32 1600 5", s.Steps, s.Heading, s.NumBins)
	}
	if !s.Clockwise {
		t.Error("Clockwise = false, want true for hdctrl bit 2 set")
	}
	if diff := cmp.Diff([]int{10, 60, 5, 80, 40}, s.Bins); diff != "" {
		t.Errorf("Bins mismatch (-want +got):\n%s", diff)
	}
	if s.ChosenRange != 0 || s.ChosenIntensity != 0 {
		t.Errorf("parse should not select a return, got range=%v intensity=%v",
			s.ChosenRange, s.ChosenIntensity)
	}
}

func TestParseRecordSweepDirection(t *testing.T) {
	row := validRow()
	row[FIELD_HDCTRL] = "1945" // bit 2 clear
	s, err := ParseRecord(row)
	if err != nil {
		t.Fatalf("ParseRecord failed: %v", err)
	}
	if s.Clockwise {
		t.Error("Clockwise = true, want false for hdctrl bit 2 clear")
	}
}

func TestParseRecordErrors(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(row []string) []string
		wantField string
	}{
		{
			name:      "truncated row",
			mutate:    func(row []string) []string { return row[:10] },
			wantField: "record",
		},
		{
			name: "timestamp without fraction",
			mutate: func(row []string) []string {
				row[FIELD_TIMESTAMP] = "12:34:56"
				return row
			},
			wantField: "timestamp",
		},
		{
			name: "timestamp garbage",
			mutate: func(row []string) []string {
				row[FIELD_TIMESTAMP] = "yesterday"
				return row
			},
			wantField: "timestamp",
		},
		{
			name: "non-numeric node",
			mutate: func(row []string) []string {
				row[FIELD_NODE] = "two"
				return row
			},
			wantField: "node",
		},
		{
			name: "non-numeric heading",
			mutate: func(row []string) []string {
				row[FIELD_HEADING] = "?"
				return row
			},
			wantField: "heading",
		},
		{
			name: "zero range",
			mutate: func(row []string) []string {
				row[FIELD_RANGE] = "0"
				return row
			},
			wantField: "range",
		},
		{
			name: "zero steps",
			mutate: func(row []string) []string {
				row[FIELD_STEPS] = "0"
				return row
			},
			wantField: "steps",
		},
		{
			name: "zero bins",
			mutate: func(row []string) []string {
				row[FIELD_NUM_BINS] = "0"
				return row[:FIELD_BINS_START]
			},
			wantField: "num_bins",
		},
		{
			name: "bin count disagrees with num_bins",
			mutate: func(row []string) []string {
				return row[:len(row)-1]
			},
			wantField: "num_bins",
		},
		{
			name: "non-numeric bin",
			mutate: func(row []string) []string {
				row[FIELD_BINS_START+2] = "x"
				return row
			},
			wantField: "bin 3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRecord(tt.mutate(validRow()))
			if err == nil {
				t.Fatal("ParseRecord accepted a malformed row")
			}

			var parseErr *ParseError
			if !errors.As(err, &parseErr) {
				t.Fatalf("error type = %T, want *ParseError", err)
			}
			if parseErr.Field != tt.wantField {
				t.Errorf("ParseError.Field = %q, want %q", parseErr.Field, tt.wantField)
			}
		})
	}
}
