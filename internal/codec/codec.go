// Package codec converts synchronized records to and from semicolon
// delimited snapshot files: one header row followed by one row per record.
//
// Encoding is locale independent. Numbers always use '.' as the decimal
// separator, booleans are written as true/false and timestamps as RFC 3339
// UTC with millisecond precision. A malformed row is reported as a RowError
// and skipped; a header that does not match the collection's columns
// rejects the whole file with a FileFormatError.
package codec

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Delimiter separates fields within a row.
const Delimiter = ";"

// maxLineSize bounds a single row. Meal rows grow with their entry count.
const maxLineSize = 1 << 20

// RowError describes a row that could not be decoded. Line is 1-based and
// counts the header.
type RowError struct {
	Line int
	Err  error
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e RowError) Unwrap() error {
	return e.Err
}

// FileFormatError rejects a whole snapshot file.
type FileFormatError struct {
	Want string
	Got  string
}

func (e *FileFormatError) Error() string {
	if e.Got == "" {
		return "snapshot file has no header"
	}

	return fmt.Sprintf("snapshot header mismatch: want %q, got %q", e.Want, e.Got)
}

// Result holds the records decoded from a file and the rows that failed.
type Result[T any] struct {
	Records []T
	Errors  []RowError
}

// Codec encodes and decodes one record type. Fixed is the number of
// leading columns every row has; Repeat is the width of a child block
// that may follow any number of times (0 when rows have no children).
type Codec[T any] struct {
	Header []string
	Fixed  int
	Repeat int

	encode func(T) []string
	decode func([]string) (T, error)
}

// HeaderLine returns the header row without a line terminator.
func (c Codec[T]) HeaderLine() string {
	return strings.Join(c.Header, Delimiter)
}

// EncodeRow returns the row for rec without a line terminator.
func (c Codec[T]) EncodeRow(rec T) string {
	return strings.Join(c.encode(rec), Delimiter)
}

// DecodeRow parses a single data row.
func (c Codec[T]) DecodeRow(line string) (T, error) {
	fields := strings.Split(line, Delimiter)

	if err := c.checkWidth(len(fields)); err != nil {
		var zero T
		return zero, err
	}

	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	return c.decode(fields)
}

func (c Codec[T]) checkWidth(n int) error {
	if c.Repeat == 0 {
		if n != c.Fixed {
			return fmt.Errorf("expected %d fields, got %d", c.Fixed, n)
		}

		return nil
	}

	if n < c.Fixed || (n-c.Fixed)%c.Repeat != 0 {
		return fmt.Errorf("expected %d fields plus blocks of %d, got %d", c.Fixed, c.Repeat, n)
	}

	return nil
}

// Encode writes the header and one row per record.
func (c Codec[T]) Encode(w io.Writer, records []T) error {
	bw := bufio.NewWriter(w)

	if _, err := bw.WriteString(c.HeaderLine() + "\n"); err != nil {
		return err
	}

	for _, rec := range records {
		if _, err := bw.WriteString(c.EncodeRow(rec) + "\n"); err != nil {
			return err
		}
	}

	return bw.Flush()
}

// Decode reads a complete snapshot. Row failures are collected in the
// result; only a bad header or a read failure returns an error.
func (c Codec[T]) Decode(r io.Reader) (Result[T], error) {
	var res Result[T]

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	line := 0
	headerSeen := false

	for scanner.Scan() {
		line++
		text := strings.TrimRight(scanner.Text(), "\r")

		if !headerSeen {
			text = strings.TrimPrefix(text, "\ufeff")
			if strings.TrimSpace(text) == "" {
				continue
			}

			if !c.headerMatches(text) {
				return res, &FileFormatError{Want: c.HeaderLine(), Got: text}
			}

			headerSeen = true

			continue
		}

		if strings.TrimSpace(text) == "" {
			continue
		}

		rec, err := c.DecodeRow(text)
		if err != nil {
			res.Errors = append(res.Errors, RowError{Line: line, Err: err})
			continue
		}

		res.Records = append(res.Records, rec)
	}

	if err := scanner.Err(); err != nil {
		return res, fmt.Errorf("reading snapshot: %w", err)
	}

	if !headerSeen {
		return res, &FileFormatError{Want: c.HeaderLine()}
	}

	return res, nil
}

func (c Codec[T]) headerMatches(text string) bool {
	got := strings.Split(text, Delimiter)
	if len(got) != len(c.Header) {
		return false
	}

	for i, name := range got {
		if strings.TrimSpace(name) != c.Header[i] {
			return false
		}
	}

	return true
}
