package micron

import (
	"fmt"
	"strconv"
	"time"

	"github.com/banshee-data/sonar.report/internal/sonar"
	"github.com/banshee-data/sonar.report/internal/units"
)

/*
Tritech Micron Scanning Sonar CSV Log Format

Each log is a single CSV file: one header line, then one row per ping. A row
carries the head configuration echoed back by the sonar followed by the
intensity samples recorded along that bearing:

	sof, timestamp, node, status, hdctrl, range, gain, slope, ad_low,
	ad_span, left_limit, right_limit, steps, heading, num_bins, bin 1 .. bin N

Angles are in Tritech heading units (1/16 gradian, 6400 per full turn) and
range is logged in decimeters. The timestamp is a time of day with
microsecond precision; log files carry no date. The number of trailing bin
columns varies with the head's configured num_bins, so rows in one file can
have different widths after a reconfiguration.
*/

// Column positions of the fixed fields preceding the intensity bins.
const (
	FIELD_SOF         = 0  // start-of-frame marker, recorded verbatim
	FIELD_TIMESTAMP   = 1  // time of day, HH:MM:SS.ffffff
	FIELD_NODE        = 2  // sonar head node number
	FIELD_STATUS      = 3  // device status byte
	FIELD_HDCTRL      = 4  // head control bitmask
	FIELD_RANGE       = 5  // configured range in decimeters
	FIELD_GAIN        = 6  // receiver gain setting
	FIELD_SLOPE       = 7  // time-variable-gain slope
	FIELD_AD_LOW      = 8  // A/D converter low bound
	FIELD_AD_SPAN     = 9  // A/D converter span
	FIELD_LEFT_LIMIT  = 10 // sweep bound, heading units
	FIELD_RIGHT_LIMIT = 11 // sweep bound, heading units
	FIELD_STEPS       = 12 // heading units advanced between pings
	FIELD_HEADING     = 13 // transducer bearing, heading units
	FIELD_NUM_BINS    = 14 // count of intensity columns that follow
	FIELD_BINS_START  = 15 // first intensity column
)

// TIMESTAMP_LAYOUT is the capture time of day as the logger writes it,
// always with six fractional digits.
const TIMESTAMP_LAYOUT = "15:04:05.000000"

// HDCTRL_CLOCKWISE_MASK selects the hdctrl bit that reports sweep direction.
const HDCTRL_CLOCKWISE_MASK = 0b100

// ParseError reports a malformed log row. Field names the column that failed
// so a replay can log which part of the record was bad before skipping it.
type ParseError struct {
	Field string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("sonar record: bad %s: %v", e.Field, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func intField(fields []string, index int, name string) (int, error) {
	v, err := strconv.Atoi(fields[index])
	if err != nil {
		return 0, &ParseError{Field: name, Err: err}
	}
	return v, nil
}

// ParseRecord converts one CSV row into a slice. It validates the fixed
// column count, every numeric field, and that the trailing intensity columns
// agree with num_bins. The caller still needs to select a return before the
// slice carries a chosen range.
func ParseRecord(fields []string) (*sonar.Slice, error) {
	if len(fields) < FIELD_BINS_START {
		return nil, &ParseError{
			Field: "record",
			Err:   fmt.Errorf("got %d columns, need at least %d", len(fields), FIELD_BINS_START),
		}
	}

	timestamp, err := time.Parse(TIMESTAMP_LAYOUT, fields[FIELD_TIMESTAMP])
	if err != nil {
		return nil, &ParseError{Field: "timestamp", Err: err}
	}

	node, err := intField(fields, FIELD_NODE, "node")
	if err != nil {
		return nil, err
	}
	status, err := intField(fields, FIELD_STATUS, "status")
	if err != nil {
		return nil, err
	}
	hdctrl, err := intField(fields, FIELD_HDCTRL, "hdctrl")
	if err != nil {
		return nil, err
	}
	rangeDm, err := strconv.ParseFloat(fields[FIELD_RANGE], 64)
	if err != nil {
		return nil, &ParseError{Field: "range", Err: err}
	}
	gain, err := intField(fields, FIELD_GAIN, "gain")
	if err != nil {
		return nil, err
	}
	slope, err := intField(fields, FIELD_SLOPE, "slope")
	if err != nil {
		return nil, err
	}
	adLow, err := intField(fields, FIELD_AD_LOW, "ad_low")
	if err != nil {
		return nil, err
	}
	adSpan, err := intField(fields, FIELD_AD_SPAN, "ad_span")
	if err != nil {
		return nil, err
	}
	leftLimit, err := intField(fields, FIELD_LEFT_LIMIT, "left_limit")
	if err != nil {
		return nil, err
	}
	rightLimit, err := intField(fields, FIELD_RIGHT_LIMIT, "right_limit")
	if err != nil {
		return nil, err
	}
	steps, err := intField(fields, FIELD_STEPS, "steps")
	if err != nil {
		return nil, err
	}
	heading, err := intField(fields, FIELD_HEADING, "heading")
	if err != nil {
		return nil, err
	}
	numBins, err := intField(fields, FIELD_NUM_BINS, "num_bins")
	if err != nil {
		return nil, err
	}

	if rangeDm <= 0 {
		return nil, &ParseError{Field: "range", Err: fmt.Errorf("must be positive, got %v", rangeDm)}
	}
	if steps <= 0 {
		return nil, &ParseError{Field: "steps", Err: fmt.Errorf("must be positive, got %d", steps)}
	}
	if numBins <= 0 {
		return nil, &ParseError{Field: "num_bins", Err: fmt.Errorf("must be positive, got %d", numBins)}
	}
	if got := len(fields) - FIELD_BINS_START; got != numBins {
		return nil, &ParseError{
			Field: "num_bins",
			Err:   fmt.Errorf("row has %d intensity columns, num_bins says %d", got, numBins),
		}
	}

	bins := make([]int, numBins)
	for i := range bins {
		v, err := strconv.Atoi(fields[FIELD_BINS_START+i])
		if err != nil {
			return nil, &ParseError{Field: fmt.Sprintf("bin %d", i+1), Err: err}
		}
		bins[i] = v
	}

	return &sonar.Slice{
		SOF:        fields[FIELD_SOF],
		Node:       node,
		Status:     status,
		HDCtrl:     hdctrl,
		Gain:       gain,
		Slope:      slope,
		ADLow:      adLow,
		ADSpan:     adSpan,
		Heading:    heading,
		Range:      units.DecimetersToMeters(rangeDm),
		NumBins:    numBins,
		Steps:      steps,
		LeftLimit:  leftLimit,
		RightLimit: rightLimit,
		Clockwise:  hdctrl&HDCTRL_CLOCKWISE_MASK != 0,
		Timestamp:  timestamp,
		Bins:       bins,
	}, nil
}
