package reader

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "log.jsonl")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	return path
}

// readAll reads path from offset from, copying every delivered line.
func readAll(t *testing.T, path string, from int64) (Increment, []Line) {
	t.Helper()
	lines := []Line{}
	inc, err := ReadIncrement(path, from, func(l Line) error {
		lines = append(lines, Line{Data: bytes.Clone(l.Data), Offset: l.Offset})
		return nil
	})
	if err != nil {
		t.Fatalf("ReadIncrement() error = %v", err)
	}
	return inc, lines
}

func lineStrings(lines []Line) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		out = append(out, string(l.Data))
	}
	return out
}

func discard(Line) error { return nil }

func TestReadIncrement(t *testing.T) {
	tests := []struct {
		name       string
		content    string
		from       int64
		wantLines  []string
		wantOffset int64
		wantEnd    int64
	}{
		{
			name:       "CompleteLines",
			content:    "a\nbb\n",
			wantLines:  []string{"a", "bb"},
			wantOffset: 5,
			wantEnd:    5,
		},
		{
			name:       "TrailingFragment",
			content:    "a\n{\"partial\"",
			wantLines:  []string{"a"},
			wantOffset: 2,
			wantEnd:    12,
		},
		{
			name:       "OnlyFragment",
			content:    "no newline",
			wantLines:  []string{},
			wantOffset: 0,
			wantEnd:    10,
		},
		{
			name:       "CRLF",
			content:    "a\r\nb\r\n",
			wantLines:  []string{"a", "b"},
			wantOffset: 6,
			wantEnd:    6,
		},
		{
			name:       "BlankLinesCounted",
			content:    "a\n\n   \nb\n",
			wantLines:  []string{"a", "b"},
			wantOffset: 9,
			wantEnd:    9,
		},
		{
			name:       "FromMiddle",
			content:    "first\nsecond\n",
			from:       6,
			wantLines:  []string{"second"},
			wantOffset: 13,
			wantEnd:    13,
		},
		{
			name:       "AtEOF",
			content:    "first\n",
			from:       6,
			wantLines:  []string{},
			wantOffset: 6,
			wantEnd:    6,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeTemp(t, tt.content)

			inc, lines := readAll(t, path, tt.from)

			got := lineStrings(lines)
			if len(got) != len(tt.wantLines) {
				t.Fatalf("ReadIncrement() lines = %q, want %q", got, tt.wantLines)
			}
			for i := range got {
				if got[i] != tt.wantLines[i] {
					t.Errorf("line %d = %q, want %q", i, got[i], tt.wantLines[i])
				}
			}
			if inc.Lines != len(tt.wantLines) {
				t.Errorf("Lines = %d, want %d", inc.Lines, len(tt.wantLines))
			}
			if inc.NewOffset != tt.wantOffset {
				t.Errorf("NewOffset = %d, want %d", inc.NewOffset, tt.wantOffset)
			}
			if inc.EndOffset != tt.wantEnd {
				t.Errorf("EndOffset = %d, want %d", inc.EndOffset, tt.wantEnd)
			}
			if inc.BytesConsumed() != tt.wantOffset-tt.from {
				t.Errorf("BytesConsumed() = %d, want %d", inc.BytesConsumed(), tt.wantOffset-tt.from)
			}
		})
	}
}

func TestReadIncrement_LineOffsets(t *testing.T) {
	path := writeTemp(t, "aa\n\nbbb\ncc\n")

	_, lines := readAll(t, path, 0)

	want := []int64{0, 4, 8}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines, want %d", len(lines), len(want))
	}
	for i, l := range lines {
		if l.Offset != want[i] {
			t.Errorf("Lines[%d].Offset = %d, want %d", i, l.Offset, want[i])
		}
	}
}

func TestReadIncrement_FragmentCompletedLater(t *testing.T) {
	path := writeTemp(t, "one\ntw")

	inc, lines := readAll(t, path, 0)
	if len(lines) != 1 || inc.NewOffset != 4 {
		t.Fatalf("first read = %q at %d", lineStrings(lines), inc.NewOffset)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		t.Fatalf("OpenFile() error = %v", err)
	}
	_, _ = f.WriteString("o\n")
	_ = f.Close()

	_, lines = readAll(t, path, inc.NewOffset)
	got := lineStrings(lines)
	if len(got) != 1 || got[0] != "two" {
		t.Errorf("second read = %q, want [two]", got)
	}
}

func TestReadIncrement_Truncated(t *testing.T) {
	path := writeTemp(t, "abc\n")

	_, err := ReadIncrement(path, 100, discard)
	if !errors.Is(err, ErrTruncated) {
		t.Errorf("ReadIncrement() error = %v, want ErrTruncated", err)
	}
}

func TestReadIncrement_Missing(t *testing.T) {
	_, err := ReadIncrement(filepath.Join(t.TempDir(), "missing"), 0, discard)
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("ReadIncrement() error = %v, want os.ErrNotExist", err)
	}
}

func TestReadIncrement_StopsOnCallbackError(t *testing.T) {
	path := writeTemp(t, "a\nb\nc\n")
	errStop := errors.New("stop")

	var seen []string
	inc, err := ReadIncrement(path, 0, func(l Line) error {
		if string(l.Data) == "b" {
			return errStop
		}
		seen = append(seen, string(l.Data))
		return nil
	})
	if !errors.Is(err, errStop) {
		t.Fatalf("ReadIncrement() error = %v, want %v", err, errStop)
	}
	if len(seen) != 1 || seen[0] != "a" {
		t.Errorf("delivered = %q, want [a]", seen)
	}
	if inc.NewOffset != 2 || inc.Lines != 1 {
		t.Errorf("NewOffset, Lines = %d, %d, want 2, 1", inc.NewOffset, inc.Lines)
	}
}

func TestReadIncrement_LineLongerThanBuffer(t *testing.T) {
	long := strings.Repeat("x", 2*bufferSize+17)
	content := "a\n" + long + "\nb\n"
	path := writeTemp(t, content)

	inc, lines := readAll(t, path, 0)
	got := lineStrings(lines)
	if len(got) != 3 || got[0] != "a" || got[1] != long || got[2] != "b" {
		t.Fatalf("ReadIncrement() delivered %d lines, want a, long, b", len(got))
	}
	if lines[1].Offset != 2 || lines[2].Offset != int64(3+len(long)) {
		t.Errorf("offsets = %d, %d, want 2, %d", lines[1].Offset, lines[2].Offset, 3+len(long))
	}
	if inc.NewOffset != int64(len(content)) {
		t.Errorf("NewOffset = %d, want %d", inc.NewOffset, len(content))
	}
}

func TestReadIncrement_LongFragmentNotDelivered(t *testing.T) {
	content := "a\n" + strings.Repeat("y", bufferSize+5)
	path := writeTemp(t, content)

	inc, lines := readAll(t, path, 0)
	if len(lines) != 1 || inc.NewOffset != 2 {
		t.Errorf("ReadIncrement() = %d lines to %d, want 1 to 2", len(lines), inc.NewOffset)
	}
	if inc.EndOffset != int64(len(content)) {
		t.Errorf("EndOffset = %d, want %d", inc.EndOffset, len(content))
	}
}
