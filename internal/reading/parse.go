package reading

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

var (
	// ErrUndecodable marks a line that is not valid UTF-8.
	ErrUndecodable = errors.New("line is not valid UTF-8")
	// ErrMalformed marks a line that does not match the expected layout or
	// carries a non-numeric field.
	ErrMalformed = errors.New("malformed line")
)

// LineError describes why a line was rejected. It wraps ErrUndecodable or
// ErrMalformed.
type LineError struct {
	Line  string
	Field string
	Err   error
}

func (e *LineError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%v: field %s in %q", e.Err, e.Field, e.Line)
	}
	return fmt.Sprintf("%v: %q", e.Err, e.Line)
}

func (e *LineError) Unwrap() error { return e.Err }

func decode(raw []byte) (string, error) {
	if !utf8.Valid(raw) {
		return "", &LineError{Line: fmt.Sprintf("%x", raw), Err: ErrUndecodable}
	}
	return string(raw), nil
}

// ParseMillis parses a line holding a single base-10 integer, surrounding
// whitespace allowed. Digit-group underscores and values outside int64 are
// malformed.
func ParseMillis(raw []byte) (int64, error) {
	line, err := decode(raw)
	if err != nil {
		return 0, err
	}
	s := strings.TrimSpace(line)
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, &LineError{Line: s, Field: "millis", Err: ErrMalformed}
	}
	return v, nil
}

// Field labels of a weight line, in the order the sketch prints them.
const (
	labelReading   = "Reading:"
	labelWeight    = "Weight:"
	labelAvgWeight = "AvgWeight:"
)

// ParseWeight parses a line of the form
//
//	Reading: <index> Weight: <float> AvgWeight: <float>
//
// Labels and values are separated by any whitespace, and a value may also
// follow its label directly ("Reading:10"). Nothing else may appear on the
// line.
func ParseWeight(raw []byte) (SensorReading, error) {
	line, err := decode(raw)
	if err != nil {
		return SensorReading{}, err
	}
	line = strings.TrimSpace(line)

	tokens := strings.Fields(line)
	var values [3]string
	for i, label := range []string{labelReading, labelWeight, labelAvgWeight} {
		if len(tokens) == 0 || !strings.HasPrefix(tokens[0], label) {
			return SensorReading{}, &LineError{Line: line, Field: label, Err: ErrMalformed}
		}
		if rest := tokens[0][len(label):]; rest != "" {
			values[i] = rest
			tokens = tokens[1:]
			continue
		}
		if len(tokens) < 2 {
			return SensorReading{}, &LineError{Line: line, Field: label, Err: ErrMalformed}
		}
		values[i] = tokens[1]
		tokens = tokens[2:]
	}
	if len(tokens) != 0 {
		return SensorReading{}, &LineError{Line: line, Err: ErrMalformed}
	}

	index, ok := parseIndex(values[0])
	if !ok {
		return SensorReading{}, &LineError{Line: line, Field: labelReading, Err: ErrMalformed}
	}
	weight, ok := parseDecimal(values[1])
	if !ok {
		return SensorReading{}, &LineError{Line: line, Field: labelWeight, Err: ErrMalformed}
	}
	avg, ok := parseDecimal(values[2])
	if !ok {
		return SensorReading{}, &LineError{Line: line, Field: labelAvgWeight, Err: ErrMalformed}
	}

	return SensorReading{ReadingIndex: index, CurrentWeight: weight, AvgWeight: avg}, nil
}

// parseIndex accepts unsigned decimal digits only.
func parseIndex(s string) (int64, bool) {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, false
		}
	}
	v, err := strconv.ParseInt(s, 10, 64)
	return v, err == nil
}

// parseDecimal accepts an optional sign followed by digits with at most one
// decimal point. strconv alone would also take NaN, Inf, exponents and hex.
func parseDecimal(s string) (float64, bool) {
	body := strings.TrimLeft(s, "+-")
	if len(s)-len(body) > 1 {
		return 0, false
	}
	digits, dots := 0, 0
	for i := 0; i < len(body); i++ {
		switch c := body[i]; {
		case c >= '0' && c <= '9':
			digits++
		case c == '.':
			dots++
		default:
			return 0, false
		}
	}
	if digits == 0 || dots > 1 {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	return v, err == nil
}
