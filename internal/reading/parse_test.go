package reading

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseMillis(t *testing.T) {
	tests := []struct {
		name    string
		input   []byte
		want    int64
		wantErr error
	}{
		{"plain", []byte("123"), 123, nil},
		{"surrounding whitespace", []byte("  4567\t\r"), 4567, nil},
		{"zero", []byte("0"), 0, nil},
		{"signed", []byte("-5"), -5, nil},
		{"large", []byte("4294967295"), 4294967295, nil},
		{"empty", []byte(""), 0, ErrMalformed},
		{"blank", []byte("   "), 0, ErrMalformed},
		{"letters", []byte("abc"), 0, ErrMalformed},
		{"float", []byte("12.5"), 0, ErrMalformed},
		{"trailing junk", []byte("12ms"), 0, ErrMalformed},
		{"underscore", []byte("1_000"), 0, ErrMalformed},
		{"wider than int64", []byte("9223372036854775808"), 0, ErrMalformed},
		{"invalid utf8", []byte{0xff, 0xfe, '1'}, 0, ErrUndecodable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMillis(tt.input)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ParseMillis(%q) error = %v, want %v", tt.input, err, tt.wantErr)
				}
				var lineErr *LineError
				if !errors.As(err, &lineErr) {
					t.Errorf("expected *LineError, got %T", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseMillis(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseMillis(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseWeight_Valid(t *testing.T) {
	want := SensorReading{ReadingIndex: 10, CurrentWeight: 5.125, AvgWeight: 5}

	inputs := []string{
		"Reading: 10\tWeight: 5.125\tAvgWeight: 5.000",
		"Reading: 10 Weight: 5.125 AvgWeight: 5.000",
		"  Reading:   10    Weight:\t5.125  AvgWeight:  5.000  \r",
		"Reading:10 Weight:5.125 AvgWeight:5.000",
		"Reading: 10 Weight: +5.125 AvgWeight: 5.",
	}
	for _, in := range inputs {
		got, err := ParseWeight([]byte(in))
		if err != nil {
			t.Errorf("ParseWeight(%q) unexpected error: %v", in, err)
			continue
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("ParseWeight(%q) mismatch (-want +got):\n%s", in, diff)
		}
	}
}

func TestParseWeight_Negative(t *testing.T) {
	got, err := ParseWeight([]byte("Reading: 3 Weight: -0.42 AvgWeight: -.5"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := SensorReading{ReadingIndex: 3, CurrentWeight: -0.42, AvgWeight: -0.5}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestParseWeight_Rejected(t *testing.T) {
	tests := []struct {
		name    string
		input   []byte
		wantErr error
	}{
		{"empty", []byte(""), ErrMalformed},
		{"plain integer", []byte("123"), ErrMalformed},
		{"missing avg", []byte("Reading: 1 Weight: 2.0"), ErrMalformed},
		{"missing value", []byte("Reading: 1 Weight: AvgWeight: 2.0"), ErrMalformed},
		{"out of order", []byte("Weight: 2.0 Reading: 1 AvgWeight: 2.0"), ErrMalformed},
		{"trailing tokens", []byte("Reading: 1 Weight: 2.0 AvgWeight: 2.0 extra"), ErrMalformed},
		{"leading text", []byte("HX711 Reading: 1 Weight: 2.0 AvgWeight: 2.0"), ErrMalformed},
		{"wrong label case", []byte("reading: 1 Weight: 2.0 AvgWeight: 2.0"), ErrMalformed},
		{"non numeric index", []byte("Reading: one Weight: 2.0 AvgWeight: 2.0"), ErrMalformed},
		{"signed index", []byte("Reading: -1 Weight: 2.0 AvgWeight: 2.0"), ErrMalformed},
		{"non numeric weight", []byte("Reading: 1 Weight: abc AvgWeight: 2.0"), ErrMalformed},
		{"nan weight", []byte("Reading: 1 Weight: NaN AvgWeight: 2.0"), ErrMalformed},
		{"inf avg", []byte("Reading: 1 Weight: 2.0 AvgWeight: Inf"), ErrMalformed},
		{"exponent", []byte("Reading: 1 Weight: 1e3 AvgWeight: 2.0"), ErrMalformed},
		{"two dots", []byte("Reading: 1 Weight: 1.2.3 AvgWeight: 2.0"), ErrMalformed},
		{"double sign", []byte("Reading: 1 Weight: --1 AvgWeight: 2.0"), ErrMalformed},
		{"lone dot", []byte("Reading: 1 Weight: . AvgWeight: 2.0"), ErrMalformed},
		{"invalid utf8", []byte("Reading: 1 Weight: \xff AvgWeight: 2.0"), ErrUndecodable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseWeight(tt.input)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ParseWeight(%q) error = %v, want %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestLineError_NamesField(t *testing.T) {
	_, err := ParseWeight([]byte("Reading: 1 Weight: x AvgWeight: 2"))
	var lineErr *LineError
	if !errors.As(err, &lineErr) {
		t.Fatalf("expected *LineError, got %T", err)
	}
	if lineErr.Field != "Weight:" {
		t.Errorf("Field = %q, want %q", lineErr.Field, "Weight:")
	}
	want := `malformed line: field Weight: in "Reading: 1 Weight: x AvgWeight: 2"`
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
