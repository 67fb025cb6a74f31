package importer

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"iter"
	"strings"
)

const (
	// Delimiter separates the three fields of a row.
	Delimiter = ";"

	// FieldsPerRow is the fixed column count: data;origin;nameFromCSV.
	FieldsPerRow = 3

	// DefaultMaxLineBytes bounds a single line.
	DefaultMaxLineBytes = 1 << 20
)

// Row is one decoded record, fields kept verbatim.
type Row struct {
	Data        string `json:"data" yaml:"data" toml:"data"`
	Origin      string `json:"origin" yaml:"origin" toml:"origin"`
	NameFromCSV string `json:"nameFromCSV" yaml:"nameFromCSV" toml:"nameFromCSV"`
}

// Fields returns the raw fields in column order.
func (r Row) Fields() []string {
	return []string{r.Data, r.Origin, r.NameFromCSV}
}

// Rows decodes r lazily into rows, one per line. Quotes are not interpreted
// because the data column carries display names such as `"Jane" <j@x.com>`.
//
// Empty lines are skipped and a trailing '\r' is dropped. A line without
// exactly three fields yields a *csv.ParseError wrapping csv.ErrFieldCount
// and ends the sequence, as does any read error. The sequence cannot be
// restarted.
func Rows(r io.Reader, maxLineBytes int) iter.Seq2[Row, error] {
	if maxLineBytes <= 0 {
		maxLineBytes = DefaultMaxLineBytes
	}

	return func(yield func(Row, error) bool) {
		// The scanner's limit is the larger of max and cap(buf).
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, min(64*1024, maxLineBytes)), maxLineBytes)

		line := 0
		for scanner.Scan() {
			line++
			text := strings.TrimSuffix(scanner.Text(), "\r")
			if text == "" {
				continue
			}

			fields := strings.Split(text, Delimiter)
			if len(fields) != FieldsPerRow {
				yield(Row{}, &csv.ParseError{
					StartLine: line,
					Line:      line,
					Column:    1,
					Err:       fmt.Errorf("%w: got %d, want %d", csv.ErrFieldCount, len(fields), FieldsPerRow),
				})
				return
			}

			if !yield(Row{Data: fields[0], Origin: fields[1], NameFromCSV: fields[2]}, nil) {
				return
			}
		}

		if err := scanner.Err(); err != nil {
			yield(Row{}, &csv.ParseError{StartLine: line + 1, Line: line + 1, Err: err})
		}
	}
}
