package importer

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"
)

func TestBOMSkipper(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected string
	}{
		{
			name:     "file with BOM",
			input:    append([]byte{0xEF, 0xBB, 0xBF}, []byte("a@x.com;t;")...),
			expected: "a@x.com;t;",
		},
		{
			name:     "file without BOM",
			input:    []byte("a@x.com;t;"),
			expected: "a@x.com;t;",
		},
		{
			name:     "empty file",
			input:    []byte{},
			expected: "",
		},
		{
			name:     "only BOM",
			input:    []byte{0xEF, 0xBB, 0xBF},
			expected: "",
		},
		{
			name:     "short input",
			input:    []byte("ab"),
			expected: "ab",
		},
		{
			name:     "partial BOM at start",
			input:    []byte{0xEF, 0xBB, 'a', 'b', 'c'},
			expected: string([]byte{0xEF, 0xBB, 'a', 'b', 'c'}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := io.ReadAll(newBOMSkipper(bytes.NewReader(tt.input)))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(result) != tt.expected {
				t.Errorf("got %q, want %q", string(result), tt.expected)
			}
		})
	}
}

func TestBOMSkipper_PropagatesReadError(t *testing.T) {
	boom := errors.New("boom")
	_, err := io.ReadAll(newBOMSkipper(iotest.ErrReader(boom)))
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
}

func TestUTF8Sanitizer(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected string
	}{
		{name: "valid ASCII", input: []byte("hello;world"), expected: "hello;world"},
		{name: "valid multibyte", input: []byte("José;Zoë"), expected: "José;Zoë"},
		{name: "invalid byte replaced", input: []byte{'h', 'e', 0x80, 'l', 'o'}, expected: "he?lo"},
		{name: "latin-1 byte replaced", input: []byte{'J', 'o', 's', 0xE9}, expected: "Jos?"},
		{name: "empty input", input: []byte{}, expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := io.ReadAll(newUTF8Sanitizer(bytes.NewReader(tt.input)))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(result) != tt.expected {
				t.Errorf("got %q, want %q", string(result), tt.expected)
			}
		})
	}
}

func TestUTF8Sanitizer_RuneSplitAcrossReads(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "complete runes", input: "Zoë Ångström", expected: "Zoë Ångström"},
		{name: "truncated rune at EOF", input: "ab\xC3", expected: "ab?"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newUTF8Sanitizer(iotest.OneByteReader(strings.NewReader(tt.input)))
			result, err := io.ReadAll(r)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(result) != tt.expected {
				t.Errorf("got %q, want %q", string(result), tt.expected)
			}
		})
	}
}

func TestCountingReader(t *testing.T) {
	input := strings.Repeat("x", 1000)
	reader := &countingReader{r: strings.NewReader(input), total: int64(len(input))}

	buf := make([]byte, 100)
	for {
		_, err := reader.Read(buf)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if reader.n != int64(len(input)) {
		t.Errorf("n = %d, want %d", reader.n, len(input))
	}
	if reader.progress() != 100 {
		t.Errorf("progress = %d, want 100", reader.progress())
	}

	unknown := &countingReader{r: strings.NewReader(input)}
	_, _ = io.ReadAll(unknown)
	if unknown.progress() != 0 {
		t.Errorf("progress with unknown total = %d, want 0", unknown.progress())
	}
}
