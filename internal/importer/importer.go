// Package importer turns a semicolon-delimited stream of raw contact rows
// into a deduplicated contact list.
//
// Each line carries three fields, data;origin;nameFromCSV. The data field is
// free text such as `"Jane Doe" <jane@example.com>`; the email address and
// display name are pulled out of it with regular expressions. Rows are merged
// by email in arrival order:
//
//	res, err := importer.New().Run(ctx, file)
//	if err != nil {
//	    // the stream itself failed; there is no partial result
//	}
//	fmt.Println(len(res.Contacts), len(res.Duplicated), len(res.Invalid))
//
// Rows without an address are not errors. They are collected in
// Result.Invalid and the run continues.
package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// DefaultContextCheckInterval is how many rows pass between context checks.
const DefaultContextCheckInterval = 100

// Observer is notified of every row outcome. It is called synchronously from
// the goroutine running the import.
type Observer interface {
	ObserveRow(Outcome)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Outcome)

// ObserveRow implements Observer.
func (f ObserverFunc) ObserveRow(o Outcome) { f(o) }

// StreamError reports a failure of the input stream itself. The run that hit
// it produced no result. Line is the input line the failure was detected
// on, or 0 when it is not tied to a line.
type StreamError struct {
	Line int
	Err  error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("import stream failed: %v", e.Err)
}

func (e *StreamError) Unwrap() error { return e.Err }

// Importer runs imports. Its settings are fixed at construction; one
// Importer may run many imports concurrently, each with its own State.
type Importer struct {
	logger        *slog.Logger
	observer      Observer
	maxLineBytes  int
	checkInterval int
}

// Option configures an Importer.
type Option func(*Importer)

// WithLogger sets the logger used for run summaries.
func WithLogger(l *slog.Logger) Option {
	return func(im *Importer) { im.logger = l }
}

// WithObserver registers a per-row observer.
func WithObserver(o Observer) Option {
	return func(im *Importer) { im.observer = o }
}

// WithMaxLineBytes bounds the length of a single input line.
func WithMaxLineBytes(n int) Option {
	return func(im *Importer) { im.maxLineBytes = n }
}

// WithContextCheckInterval sets how many rows pass between context checks.
func WithContextCheckInterval(n int) Option {
	return func(im *Importer) { im.checkInterval = n }
}

// New returns an Importer with the given options applied.
func New(opts ...Option) *Importer {
	im := &Importer{
		logger:        slog.Default(),
		maxLineBytes:  DefaultMaxLineBytes,
		checkInterval: DefaultContextCheckInterval,
	}
	for _, opt := range opts {
		opt(im)
	}
	if im.checkInterval <= 0 {
		im.checkInterval = DefaultContextCheckInterval
	}
	if im.maxLineBytes <= 0 {
		im.maxLineBytes = DefaultMaxLineBytes
	}
	return im
}

// Run reads input to the end and returns the merged result. Input may be
// anything Open accepts. The result is only returned once end-of-input has
// been reached; any stream failure, including ctx being done, returns a
// *StreamError and no result.
func (im *Importer) Run(ctx context.Context, input any) (*Result, error) {
	start := time.Now()

	stream, err := Open(input)
	if err != nil {
		return nil, &StreamError{Err: err}
	}
	defer stream.Close()

	state := NewState()
	var rows, invalid, duplicates int

	for row, err := range Rows(stream, im.maxLineBytes) {
		if err != nil {
			return nil, &StreamError{Line: lineOf(err), Err: err}
		}
		rows++

		if rows%im.checkInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, &StreamError{Err: err}
			}
		}

		outcome := state.Apply(row)
		switch outcome {
		case OutcomeInvalid:
			invalid++
		case OutcomeDuplicate:
			duplicates++
		}
		if im.observer != nil {
			im.observer.ObserveRow(outcome)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, &StreamError{Err: err}
	}

	res := state.Result()
	im.logger.Debug("import finished",
		"rows", rows,
		"contacts", len(res.Contacts),
		"duplicates", duplicates,
		"invalid", invalid,
		"tags", len(res.Tags),
		"bytes_read", stream.BytesRead(),
		"mime", stream.MIMEType,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

func lineOf(err error) int {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return pe.Line
	}
	return 0
}
