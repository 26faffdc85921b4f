package core

// streaming.go provides the readers CSV input passes through before parsing:
//
//   - skipBOM drops a leading UTF-8 byte order mark (Excel on Windows adds one)
//   - UTF8Sanitizer replaces invalid UTF-8 with U+FFFD
//
// Use WrapForStreaming to apply both in order.

import (
	"bufio"
	"io"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// skipBOM returns a reader positioned after the BOM, if r starts with one.
func skipBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil &&
		head[0] == utf8BOM[0] && head[1] == utf8BOM[1] && head[2] == utf8BOM[2] {
		_, _ = br.Discard(len(utf8BOM))
	}
	return br
}

const sanitizeChunk = 32 * 1024

// UTF8Sanitizer wraps an io.Reader and replaces each invalid byte with the
// Unicode replacement character. Multi-byte sequences split across reads of
// the underlying reader are carried over, not replaced.
type UTF8Sanitizer struct {
	r    io.Reader
	tail []byte // incomplete sequence from the previous chunk
	out  []byte // sanitized bytes not yet returned
	err  error
}

// NewUTF8Sanitizer creates a sanitizer over r.
func NewUTF8Sanitizer(r io.Reader) *UTF8Sanitizer {
	return &UTF8Sanitizer{r: r}
}

// Read implements io.Reader.
func (s *UTF8Sanitizer) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for len(s.out) == 0 {
		if s.err != nil {
			return 0, s.err
		}
		s.fill()
	}
	n := copy(p, s.out)
	s.out = s.out[n:]
	return n, nil
}

func (s *UTF8Sanitizer) fill() {
	chunk := make([]byte, sanitizeChunk)
	n, err := s.r.Read(chunk)
	if err != nil {
		s.err = err
	}

	data := append(s.tail, chunk[:n]...)
	s.tail = nil
	atEOF := s.err != nil

	if utf8.Valid(data) {
		s.out = data
		return
	}

	out := make([]byte, 0, len(data)+8)
	for i := 0; i < len(data); {
		if data[i] < utf8.RuneSelf {
			out = append(out, data[i])
			i++
			continue
		}
		if !atEOF && !utf8.FullRune(data[i:]) {
			s.tail = append([]byte(nil), data[i:]...)
			break
		}
		r, size := utf8.DecodeRune(data[i:])
		if r == utf8.RuneError && size == 1 {
			out = utf8.AppendRune(out, utf8.RuneError)
		} else {
			out = append(out, data[i:i+size]...)
		}
		i += size
	}
	s.out = out
}

// WrapForStreaming strips the BOM, then sanitizes UTF-8.
func WrapForStreaming(r io.Reader) io.Reader {
	return NewUTF8Sanitizer(skipBOM(r))
}
