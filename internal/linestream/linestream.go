// Package linestream frames newline-delimited text over a byte stream: a
// bounded line reader for inbound messages and a serialized, flush-on-write
// line writer for outbound ones.
package linestream

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"
)

const DefaultMaxLineBytes = 1 << 20

var (
	ErrLineTooLong     = errors.New("linestream: line exceeds limit")
	ErrReadFailed      = errors.New("linestream: read failed")
	ErrWriteFailed     = errors.New("linestream: write failed")
	ErrEmbeddedNewline = errors.New("linestream: line contains a newline")
)

// Reader yields one line per call. It never buffers more than one line past
// the configured limit: oversized lines are drained and reported as
// ErrLineTooLong so the next call starts on a fresh line.
type Reader struct {
	br  *bufio.Reader
	max int
}

func NewReader(r io.Reader, maxLineBytes int) *Reader {
	if maxLineBytes <= 0 {
		maxLineBytes = DefaultMaxLineBytes
	}
	size := 64 * 1024
	if maxLineBytes < size {
		size = maxLineBytes + 2
		if size < 16 {
			size = 16
		}
	}
	return &Reader{br: bufio.NewReaderSize(r, size), max: maxLineBytes}
}

// Next returns the next line without its terminator. It returns io.EOF once
// the input is exhausted. Errors from the underlying reader wrap
// ErrReadFailed; the reader stays usable afterwards.
func (r *Reader) Next() ([]byte, error) {
	var (
		line    []byte
		tooLong bool
	)
	for {
		chunk, err := r.br.ReadSlice('\n')
		if !tooLong {
			line = append(line, chunk...)
			if len(trimEOL(line)) > r.max {
				tooLong = true
				line = nil
			}
		}
		switch {
		case err == nil:
			if tooLong {
				return nil, ErrLineTooLong
			}
			return trimEOL(line), nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF):
			if tooLong {
				return nil, ErrLineTooLong
			}
			if len(line) == 0 {
				return nil, io.EOF
			}
			return trimEOL(line), nil
		default:
			return nil, fmt.Errorf("%w: %w", ErrReadFailed, err)
		}
	}
}

func trimEOL(b []byte) []byte {
	b = bytes.TrimSuffix(b, []byte{'\n'})
	return bytes.TrimSuffix(b, []byte{'\r'})
}

// Writer serializes whole lines onto w. Each WriteLine appends the newline
// and flushes before releasing the lock, so concurrent callers never
// interleave partial lines.
type Writer struct {
	mu sync.Mutex
	bw *bufio.Writer
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{bw: bufio.NewWriter(w)}
}

func (w *Writer) WriteLine(line []byte) error {
	if bytes.IndexByte(line, '\n') >= 0 {
		return ErrEmbeddedNewline
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.bw.Write(line); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	if err := w.bw.WriteByte('\n'); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	if err := w.bw.Flush(); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	return nil
}
