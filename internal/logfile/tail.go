// Package logfile reads and follows process log files without loading them
// whole into memory.
package logfile

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
)

// MaxWindow is the size of the trailing window read by ReadLastLines.
const MaxWindow int64 = 1 << 20

// ReadLastLines returns at most the last n lines of the file at path, in
// file order. A missing file yields an empty result.
//
// The trailing window of MaxWindow bytes is read first. If it holds fewer
// than n lines and does not cover the whole file, the bytes before it are
// streamed once more, keeping only as many lines as are still needed. A
// line straddling the window start comes back as two lines.
func ReadLastLines(path string, n int) ([]string, error) {
	if n <= 0 {
		return []string{}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	size := info.Size()
	if size == 0 {
		return []string{}, nil
	}

	window := size
	if window > MaxWindow {
		window = MaxWindow
	}
	start := size - window

	buf := make([]byte, window)
	if _, err := f.ReadAt(buf, start); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	tail := newLineRing(n)
	splitLines(buf, tail.push)
	lines := tail.slice()

	if len(lines) >= n || start == 0 {
		return lines, nil
	}

	earlier := newLineRing(n - len(lines))
	if err := scanLines(io.NewSectionReader(f, 0, start), earlier.push); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	return append(earlier.slice(), lines...), nil
}

// splitLines calls emit for every line in buf. A final line without a
// terminating newline is still a line; a trailing newline adds nothing.
func splitLines(buf []byte, emit func(string)) {
	for len(buf) > 0 {
		i := bytes.IndexByte(buf, '\n')
		if i < 0 {
			emit(trimCR(string(buf)))
			return
		}
		emit(trimCR(string(buf[:i])))
		buf = buf[i+1:]
	}
}

// scanLines calls emit for every line read from r. Only the first
// MaxWindow bytes of a line are kept; the rest of it is skipped.
func scanLines(r io.Reader, emit func(string)) error {
	br := bufio.NewReaderSize(r, 64<<10)
	line := make([]byte, 0, 4096)
	for {
		chunk, err := br.ReadSlice('\n')
		if room := int(MaxWindow) - len(line); room > 0 {
			if len(chunk) > room {
				chunk = chunk[:room]
			}
			line = append(line, chunk...)
		}

		switch {
		case err == nil:
			emit(trimCR(strings.TrimSuffix(string(line), "\n")))
			line = line[:0]
		case errors.Is(err, bufio.ErrBufferFull):
		case errors.Is(err, io.EOF):
			if len(line) > 0 {
				emit(trimCR(string(line)))
			}
			return nil
		default:
			return err
		}
	}
}

func trimCR(s string) string {
	return strings.TrimSuffix(s, "\r")
}

// lineRing keeps the most recent max lines pushed into it.
type lineRing struct {
	lines []string
	max   int
	head  int
	full  bool
}

func newLineRing(max int) *lineRing {
	size := max
	if size > 1024 {
		size = 1024
	}
	return &lineRing{lines: make([]string, 0, size), max: max}
}

func (r *lineRing) push(line string) {
	if !r.full {
		r.lines = append(r.lines, line)
		if len(r.lines) == r.max {
			r.full = true
		}
		return
	}
	r.lines[r.head] = line
	r.head = (r.head + 1) % r.max
}

func (r *lineRing) slice() []string {
	if !r.full || r.head == 0 {
		out := make([]string, len(r.lines))
		copy(out, r.lines)
		return out
	}
	out := make([]string, 0, r.max)
	out = append(out, r.lines[r.head:]...)
	out = append(out, r.lines[:r.head]...)
	return out
}
