// Package reader tails append-only files, returning only complete lines
// past a given byte offset.
package reader

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrTruncated is returned when the requested offset lies beyond the end
// of the file.
var ErrTruncated = errors.New("offset beyond end of file")

const bufferSize = 256 * 1024

// Line is one complete, non-blank line and the offset it started at.
// Data is only valid until the callback it was passed to returns.
type Line struct {
	Data   []byte
	Offset int64
}

// Increment is the result of reading from From to EOF.
type Increment struct {
	// Lines is the number of non-blank lines delivered.
	Lines int
	// From is where reading started.
	From int64
	// NewOffset is just past the last complete line; a trailing
	// fragment without a newline is not included.
	NewOffset int64
	// EndOffset is the file length observed at EOF.
	EndOffset int64
}

// BytesConsumed is the number of bytes NewOffset advanced past From.
func (inc Increment) BytesConsumed() int64 {
	return inc.NewOffset - inc.From
}

// ReadIncrement reads path from offset from to EOF and calls fn with each
// complete line in order. Lines are not retained, so memory stays bounded
// by the longest line. If fn returns an error reading stops, NewOffset is
// left before that line and the error is returned unwrapped.
func ReadIncrement(path string, from int64, fn func(Line) error) (Increment, error) {
	f, err := os.Open(path)
	if err != nil {
		return Increment{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return Increment{}, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if from > info.Size() {
		return Increment{}, fmt.Errorf("%s at %d of %d: %w", path, from, info.Size(), ErrTruncated)
	}

	if _, err := f.Seek(from, io.SeekStart); err != nil {
		return Increment{}, fmt.Errorf("failed to seek %s: %w", path, err)
	}

	return scan(bufio.NewReaderSize(f, bufferSize), from, fn)
}

func scan(r *bufio.Reader, from int64, fn func(Line) error) (Increment, error) {
	inc := Increment{From: from, NewOffset: from, EndOffset: from}
	pos := from
	// long collects lines that do not fit in the reader's buffer.
	var long []byte

	for {
		chunk, err := r.ReadSlice('\n')
		pos += int64(len(chunk))
		if errors.Is(err, bufio.ErrBufferFull) {
			long = append(long, chunk...)
			continue
		}

		line := chunk
		if len(long) > 0 {
			long = append(long, chunk...)
			line = long
			long = long[:0]
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				// line, if any, is an unterminated fragment.
				inc.EndOffset = pos
				return inc, nil
			}
			return inc, fmt.Errorf("failed to read at offset %d: %w", pos, err)
		}

		start := pos - int64(len(line))
		data := bytes.TrimRight(line, "\r\n")
		if len(bytes.TrimSpace(data)) > 0 {
			if err := fn(Line{Data: data, Offset: start}); err != nil {
				return inc, err
			}
			inc.Lines++
		}
		inc.NewOffset = pos
		inc.EndOffset = pos
	}
}
