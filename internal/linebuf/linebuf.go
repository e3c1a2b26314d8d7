// Package linebuf folds a raw terminal byte stream into logical lines.
//
// The model is deliberately small: a newline ends the current line, and a
// carriage return followed by anything other than a newline starts a fresh
// line instead of overwriting the current one in place. No column position,
// escape sequence or attribute state is tracked.
package linebuf

import (
	"errors"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Options configures a Buffer.
type Options struct {
	// Encoding is the character encoding of the incoming bytes.
	// Nil means UTF-8. Malformed input decodes to U+FFFD rather than failing.
	Encoding encoding.Encoding
}

// Buffer accumulates logical lines from a byte stream. It is scoped to a
// single drain and is not safe for concurrent use.
type Buffer struct {
	lines      []*strings.Builder
	sawReturn  bool
	decoder    transform.Transformer
	pending    []byte
	decoded    []byte
	finished   bool
	bytesTotal int
}

// New creates an empty Buffer.
func New(opts Options) *Buffer {
	enc := opts.Encoding
	if enc == nil {
		enc = unicode.UTF8
	}
	return &Buffer{
		decoder: enc.NewDecoder(),
		decoded: make([]byte, 4096),
	}
}

// Feed decodes chunk and applies each character to the line model. A chunk may
// end in the middle of a multi-byte character; the remainder is carried over
// to the next call. Feeding an empty chunk is a no-op.
func (b *Buffer) Feed(chunk []byte) {
	if len(chunk) == 0 || b.finished {
		return
	}
	b.bytesTotal += len(chunk)

	src := chunk
	if len(b.pending) > 0 {
		src = append(b.pending, chunk...)
		b.pending = nil
	}
	b.decode(src, false)
}

// Lines flushes any partially decoded input and returns the accumulated lines.
// A single trailing empty line, produced when the stream ended on a newline, is
// dropped. An empty stream yields no lines. Further Feed calls are ignored.
func (b *Buffer) Lines() []string {
	if !b.finished {
		b.finished = true
		if len(b.pending) > 0 {
			src := b.pending
			b.pending = nil
			b.decode(src, true)
		}
	}

	n := len(b.lines)
	if n > 0 && b.lines[n-1].Len() == 0 {
		n--
	}

	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = b.lines[i].String()
	}
	return out
}

// Len returns the number of line entries, including the current one.
func (b *Buffer) Len() int {
	return len(b.lines)
}

// Bytes returns the number of raw bytes fed so far.
func (b *Buffer) Bytes() int {
	return b.bytesTotal
}

// decode runs src through the decoder and applies the decoded text.
func (b *Buffer) decode(src []byte, atEOF bool) {
	for {
		nDst, nSrc, err := b.decoder.Transform(b.decoded, src, atEOF)
		b.apply(string(b.decoded[:nDst]))
		src = src[nSrc:]

		switch {
		case errors.Is(err, transform.ErrShortDst):
			continue
		case errors.Is(err, transform.ErrShortSrc):
			b.pending = append([]byte(nil), src...)
			return
		case err != nil:
			// Decoders that reject input instead of replacing it: keep the
			// offending byte as an opaque character and move on.
			if len(src) == 0 {
				return
			}
			b.apply(string(rune(src[0])))
			src = src[1:]
			b.decoder.Reset()
			continue
		default:
			return
		}
	}
}

// apply feeds decoded characters through the line model.
func (b *Buffer) apply(text string) {
	for _, c := range text {
		if len(b.lines) == 0 {
			b.lines = append(b.lines, &strings.Builder{})
		}

		switch c {
		case '\n':
			b.lines = append(b.lines, &strings.Builder{})
			b.sawReturn = false
		case '\r':
			b.sawReturn = true
		default:
			if b.sawReturn {
				b.lines = append(b.lines, &strings.Builder{})
			}
			b.lines[len(b.lines)-1].WriteRune(c)
			b.sawReturn = false
		}
	}
}
