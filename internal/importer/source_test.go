package importer

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = "\"Jane Doe\" <jane@x.com>;newsletter;\njane@x.com;promo;Jane D\n"

type trackingCloser struct {
	io.Reader
	closed bool
}

func (c *trackingCloser) Close() error {
	c.closed = true
	return nil
}

type sizedBlob struct {
	data   string
	opened *trackingCloser
}

func (b *sizedBlob) Open() (io.ReadCloser, error) {
	b.opened = &trackingCloser{Reader: strings.NewReader(b.data)}
	return b.opened, nil
}

func (b *sizedBlob) Size() int64 { return int64(len(b.data)) }

func TestOpen_AcceptedInputs(t *testing.T) {
	tests := []struct {
		name  string
		input func() any
	}{
		{name: "string", input: func() any { return sample }},
		{name: "bytes", input: func() any { return []byte(sample) }},
		{name: "buffer", input: func() any { return bytes.NewBufferString(sample) }},
		{name: "reader", input: func() any { return strings.NewReader(sample) }},
		{name: "blob func", input: func() any {
			return BlobFunc(func() (io.ReadCloser, error) {
				return io.NopCloser(strings.NewReader(sample)), nil
			})
		}},
		{name: "with BOM", input: func() any { return "\xEF\xBB\xBF" + sample }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Open(tt.input())
			require.NoError(t, err)
			defer s.Close()

			got, err := io.ReadAll(s)
			require.NoError(t, err)
			assert.Equal(t, sample, string(got))
			assert.Contains(t, s.MIMEType, "text/")
		})
	}
}

func TestOpen_BlobIsClosedAndSized(t *testing.T) {
	blob := &sizedBlob{data: sample}

	s, err := Open(blob)
	require.NoError(t, err)

	_, err = io.ReadAll(s)
	require.NoError(t, err)
	assert.Equal(t, 100, s.Progress())
	assert.Equal(t, int64(len(sample)), s.BytesRead())

	require.NoError(t, s.Close())
	assert.True(t, blob.opened.closed)
}

func TestOpen_Rejects(t *testing.T) {
	png := append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 64)...)

	_, err := Open(png)
	assert.ErrorIs(t, err, ErrNotText)

	_, err = Open(42)
	assert.ErrorIs(t, err, ErrUnsupportedInput)

	openErr := errors.New("gone")
	_, err = Open(BlobFunc(func() (io.ReadCloser, error) { return nil, openErr }))
	assert.ErrorIs(t, err, openErr)
}

func TestOpen_EmptyInput(t *testing.T) {
	s, err := Open("")
	require.NoError(t, err)

	got, err := io.ReadAll(s)
	require.NoError(t, err)
	assert.Empty(t, got)
}
