package codec

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

// TimeLayout is the timestamp format used in every snapshot file.
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

var textReplacer = strings.NewReplacer(Delimiter, " ", "\r", " ", "\n", " ")

// CleanText normalizes free text so it can be stored in a field: NFC form,
// no delimiter or line breaks, no surrounding space.
func CleanText(s string) string {
	return strings.TrimSpace(textReplacer.Replace(norm.NFC.String(s)))
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// maxCommaDecimals bounds the digits after a decimal comma. Three digits
// would read a thousands-grouped "1,234" as 1.234.
const maxCommaDecimals = 2

// parseFloat accepts '.' and, for files written by older locale dependent
// exports, a single ',' followed by at most two digits as the decimal
// separator.
func parseFloat(name, s string) (float64, error) {
	if s == "" {
		return 0, nil
	}

	num := s
	if i := strings.IndexByte(s, ','); i >= 0 {
		frac := s[i+1:]
		if strings.ContainsAny(frac, ",.") || strings.Contains(s[:i], ".") ||
			frac == "" || len(frac) > maxCommaDecimals {
			return 0, fmt.Errorf("%s: ambiguous decimal comma in %q", name, s)
		}

		num = s[:i] + "." + frac
	}

	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid number %q", name, s)
	}

	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%s: non-finite number %q", name, s)
	}

	return v, nil
}

func parseInt(name, s string) (int, error) {
	if s == "" {
		return 0, nil
	}

	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q", name, s)
	}

	return v, nil
}

func formatBool(v bool) string {
	return strconv.FormatBool(v)
}

func parseBool(name, s string) (bool, error) {
	switch strings.ToLower(s) {
	case "true", "1":
		return true, nil
	case "false", "0", "":
		return false, nil
	}

	return false, fmt.Errorf("%s: invalid boolean %q", name, s)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	return t.UTC().Format(TimeLayout)
}

func parseTime(name, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}

	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: invalid timestamp %q", name, s)
	}

	return t.UTC(), nil
}

func parseUUID(name, s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s: invalid identifier %q", name, s)
	}

	return id, nil
}

// fieldReader decodes consecutive fields and keeps the first error, so
// entity decoders read like a column list.
type fieldReader struct {
	fields []string
	pos    int
	err    error
}

func (r *fieldReader) next() string {
	s := r.fields[r.pos]
	r.pos++

	return s
}

func (r *fieldReader) uuid(name string) uuid.UUID {
	s := r.next()
	if r.err != nil {
		return uuid.Nil
	}

	v, err := parseUUID(name, s)
	r.err = err

	return v
}

func (r *fieldReader) text() string {
	return r.next()
}

func (r *fieldReader) float(name string) float64 {
	s := r.next()
	if r.err != nil {
		return 0
	}

	v, err := parseFloat(name, s)
	r.err = err

	return v
}

func (r *fieldReader) int(name string) int {
	s := r.next()
	if r.err != nil {
		return 0
	}

	v, err := parseInt(name, s)
	r.err = err

	return v
}

func (r *fieldReader) bool(name string) bool {
	s := r.next()
	if r.err != nil {
		return false
	}

	v, err := parseBool(name, s)
	r.err = err

	return v
}

func (r *fieldReader) time(name string) time.Time {
	s := r.next()
	if r.err != nil {
		return time.Time{}
	}

	v, err := parseTime(name, s)
	r.err = err

	return v
}

func (r *fieldReader) remaining() int {
	return len(r.fields) - r.pos
}
