package importer

// streaming.go holds the reader wrappers every import stream passes through.
//
// They work on the fly with O(buffer) memory:
//
//   - bomSkipper drops a leading UTF-8 BOM (0xEF 0xBB 0xBF) written by Excel.
//   - utf8Sanitizer replaces invalid UTF-8 bytes with '?'.
//   - countingReader tracks bytes consumed for progress and logging.

import (
	"io"
	"unicode/utf8"
)

var utf8BOM = [3]byte{0xEF, 0xBB, 0xBF}

// bomSkipper removes a UTF-8 BOM from the start of the wrapped reader.
type bomSkipper struct {
	r       io.Reader
	checked bool
	head    []byte
}

func newBOMSkipper(r io.Reader) *bomSkipper {
	return &bomSkipper{r: r}
}

func (b *bomSkipper) Read(p []byte) (int, error) {
	if !b.checked {
		b.checked = true

		var buf [3]byte
		n, err := io.ReadFull(b.r, buf[:])
		if err == io.ErrUnexpectedEOF {
			err = io.EOF
		}
		if err != nil && err != io.EOF {
			return 0, err
		}
		if n < 3 || buf != utf8BOM {
			b.head = append([]byte(nil), buf[:n]...)
		}
		if err == io.EOF && len(b.head) == 0 {
			return 0, io.EOF
		}
	}

	if len(b.head) > 0 {
		n := copy(p, b.head)
		b.head = b.head[n:]
		return n, nil
	}

	return b.r.Read(p)
}

// utf8Sanitizer replaces invalid UTF-8 bytes with '?' so the tokenizer and
// the regular expressions only ever see valid text. A multi-byte sequence
// split across two reads is held back until the next call.
type utf8Sanitizer struct {
	r       io.Reader
	pending []byte
}

func newUTF8Sanitizer(r io.Reader) *utf8Sanitizer {
	return &utf8Sanitizer{r: r, pending: make([]byte, 0, utf8.UTFMax)}
}

func (s *utf8Sanitizer) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	offset := copy(p, s.pending)
	s.pending = s.pending[:0]

	n, err := s.r.Read(p[offset:])
	n += offset
	if n == 0 {
		return 0, err
	}

	if isASCII(p[:n]) {
		return n, err
	}

	return s.sanitize(p[:n], err == io.EOF), err
}

func isASCII(data []byte) bool {
	for _, b := range data {
		if b >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// sanitize rewrites data in place and returns the number of bytes to hand
// to the caller. Unless atEOF, a trailing incomplete rune moves to pending.
func (s *utf8Sanitizer) sanitize(data []byte, atEOF bool) int {
	write := 0
	for read := 0; read < len(data); {
		if !atEOF && !utf8.FullRune(data[read:]) {
			s.pending = append(s.pending, data[read:]...)
			return write
		}

		r, size := utf8.DecodeRune(data[read:])
		if r == utf8.RuneError && size == 1 {
			// '?' keeps the rewrite in place; U+FFFD would need three bytes.
			data[write] = '?'
			write++
			read++
			continue
		}

		copy(data[write:], data[read:read+size])
		write += size
		read += size
	}
	return write
}

// countingReader tracks how many bytes were handed to the tokenizer.
type countingReader struct {
	r     io.Reader
	n     int64
	total int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// progress returns percent consumed, or 0 when the total size is unknown.
func (c *countingReader) progress() int {
	if c.total <= 0 {
		return 0
	}
	return int(c.n * 100 / c.total)
}
