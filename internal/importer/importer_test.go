package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_MergesRows(t *testing.T) {
	res, err := New().Run(context.Background(), sample)
	require.NoError(t, err)

	require.Len(t, res.Contacts, 1)
	c := res.Contacts[0]
	assert.Equal(t, "jane@x.com", c.Email)
	require.NotNil(t, c.Name)
	assert.Equal(t, "Jane Doe", *c.Name)
	assert.Equal(t, []string{"Jane D"}, c.AlternateNames)
	assert.Equal(t, []string{"newsletter", "promo"}, c.Tags)
	assert.Equal(t, []DuplicateRecord{{Email: "jane@x.com", Occurrences: 1}}, res.Duplicated)
	assert.Equal(t, []string{"newsletter", "promo"}, res.Tags)
}

func TestRun_InvalidRowsDoNotStopTheRun(t *testing.T) {
	input := "not-an-email;origin1;Someone\n;origin1;\nbob@x.com;origin2;bob\n"

	res, err := New().Run(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, []Row{
		{Data: "not-an-email", Origin: "origin1", NameFromCSV: "Someone"},
		{Data: "", Origin: "origin1", NameFromCSV: ""},
	}, res.Invalid)
	require.Len(t, res.Contacts, 1)
	assert.Equal(t, []string{"origin2"}, res.Tags)
}

func TestRun_EmptyInput(t *testing.T) {
	res, err := New().Run(context.Background(), "")
	require.NoError(t, err)

	assert.NotNil(t, res.Contacts)
	assert.Empty(t, res.Contacts)
	assert.Empty(t, res.Emails)
	assert.Empty(t, res.Duplicated)
	assert.Empty(t, res.Invalid)
	assert.Empty(t, res.Tags)
}

func TestRun_ManyDuplicates(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 1000; i++ {
		fmt.Fprintf(&b, "user%d@x.com;batch%d;\n", i%10, i%3)
	}

	var created, duplicates int
	obs := ObserverFunc(func(o Outcome) {
		switch o {
		case OutcomeCreated:
			created++
		case OutcomeDuplicate:
			duplicates++
		}
	})

	res, err := New(WithObserver(obs), WithContextCheckInterval(7)).Run(context.Background(), []byte(b.String()))
	require.NoError(t, err)

	assert.Len(t, res.Contacts, 10)
	assert.Len(t, res.Duplicated, 10)
	for _, d := range res.Duplicated {
		assert.Equal(t, 99, d.Occurrences, d.Email)
	}
	assert.Equal(t, []string{"batch0", "batch1", "batch2"}, res.Tags)
	assert.Equal(t, 10, created)
	assert.Equal(t, 990, duplicates)
}

func TestRun_StreamFailures(t *testing.T) {
	boom := errors.New("disk gone")

	tests := []struct {
		name   string
		input  any
		target error
		line   int
	}{
		{name: "field count", input: "a@x.com;t;A\nb@x.com;t\n", target: csv.ErrFieldCount, line: 2},
		{name: "read error", input: iotest.ErrReader(boom), target: boom},
		{name: "error after data", input: io.MultiReader(strings.NewReader("a@x.com;t;A\n"), iotest.ErrReader(boom)), target: boom},
		{name: "unsupported input", input: 3.14, target: ErrUnsupportedInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := New().Run(context.Background(), tt.input)
			assert.Nil(t, res)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.target)

			var se *StreamError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.line, se.Line)
		})
	}
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := New().Run(ctx, sample)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_LineLimit(t *testing.T) {
	input := "a@x.com;t;" + strings.Repeat("n", 500) + "\n"

	_, err := New(WithMaxLineBytes(128)).Run(context.Background(), input)
	require.Error(t, err)

	var se *StreamError
	assert.ErrorAs(t, err, &se)
}
