package importer

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// sniffLen matches mimetype's default read limit.
const sniffLen = 3072

var (
	// ErrUnsupportedInput is returned by Open for input types it cannot read.
	ErrUnsupportedInput = errors.New("unsupported import input")

	// ErrNotText is returned when the input does not look like a text file.
	ErrNotText = errors.New("import input is not a text file")
)

// Blob is a binary large object that can be opened for reading, such as an
// uploaded file. Open is called once per import.
type Blob interface {
	Open() (io.ReadCloser, error)
}

// BlobFunc adapts a plain function to Blob.
//
//	importer.BlobFunc(func() (io.ReadCloser, error) { return fh.Open() })
type BlobFunc func() (io.ReadCloser, error)

// Open implements Blob.
func (f BlobFunc) Open() (io.ReadCloser, error) { return f() }

// Stream is the uniform byte source every import reads from, whatever the
// caller handed in. It strips a BOM, sanitizes UTF-8, and counts bytes.
type Stream struct {
	counter  *countingReader
	closer   io.Closer
	MIMEType string
}

// Open exposes input as a Stream. Accepted inputs are string, []byte,
// *bytes.Buffer, Blob and io.Reader. Readers passed in by the caller are not
// closed by Stream.Close; readers opened from a Blob are.
func Open(input any) (*Stream, error) {
	var (
		src    io.Reader
		closer io.Closer
		total  int64
	)

	switch v := input.(type) {
	case string:
		src, total = strings.NewReader(v), int64(len(v))
	case []byte:
		src, total = bytes.NewReader(v), int64(len(v))
	case *bytes.Buffer:
		src, total = v, int64(v.Len())
	case Blob:
		rc, err := v.Open()
		if err != nil {
			return nil, fmt.Errorf("open blob: %w", err)
		}
		src, closer = rc, rc
		if sized, ok := v.(interface{ Size() int64 }); ok {
			total = sized.Size()
		}
	case io.Reader:
		src = v
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedInput, input)
	}

	buffered := bufio.NewReaderSize(src, sniffLen)
	head, err := buffered.Peek(sniffLen)
	if err != nil && err != io.EOF && !errors.Is(err, bufio.ErrBufferFull) {
		closeQuietly(closer)
		return nil, fmt.Errorf("read input: %w", err)
	}

	detected := "text/plain"
	if len(head) > 0 {
		mtype := mimetype.Detect(head)
		if !isText(mtype) {
			closeQuietly(closer)
			return nil, fmt.Errorf("%w: detected %s", ErrNotText, mtype.String())
		}
		detected = mtype.String()
	}

	return &Stream{
		counter: &countingReader{
			r:     newUTF8Sanitizer(newBOMSkipper(buffered)),
			total: total,
		},
		closer:   closer,
		MIMEType: detected,
	}, nil
}

func isText(m *mimetype.MIME) bool {
	for ; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}

func closeQuietly(c io.Closer) {
	if c != nil {
		_ = c.Close()
	}
}

// Read implements io.Reader.
func (s *Stream) Read(p []byte) (int, error) {
	return s.counter.Read(p)
}

// Close releases the underlying blob reader, if Open created one.
func (s *Stream) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// BytesRead returns how many bytes have been handed to the tokenizer.
func (s *Stream) BytesRead() int64 {
	return s.counter.n
}

// Progress returns percent of the input consumed, 0 when the size is unknown.
func (s *Stream) Progress() int {
	return s.counter.progress()
}
