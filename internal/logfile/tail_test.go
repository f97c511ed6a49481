package logfile

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func writeLines(t *testing.T, path string, count int) []string {
	t.Helper()
	lines := make([]string, count)
	var b strings.Builder
	for i := range lines {
		lines[i] = fmt.Sprintf("line %d", i+1)
		b.WriteString(lines[i])
		b.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	return lines
}

func equalLines(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %d lines, got %d: %q", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("line %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestReadLastLines_NPlusFive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app-out.log")
	const n = 10
	lines := writeLines(t, path, n+5)

	got, err := ReadLastLines(path, n)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	equalLines(t, got, lines[5:])
}

func TestReadLastLines_FewerLinesThanRequested(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.log")
	lines := writeLines(t, path, 3)

	got, err := ReadLastLines(path, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	equalLines(t, got, lines)
}

func TestReadLastLines_MissingFile(t *testing.T) {
	got, err := ReadLastLines(filepath.Join(t.TempDir(), "nope.log"), 10)
	if err != nil {
		t.Fatalf("expected no error for missing file, got %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil result, got %#v", got)
	}
}

func TestReadLastLines_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.log")
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	got, err := ReadLastLines(path, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty result, got %q", got)
	}
}

func TestReadLastLines_NonPositiveCount(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	writeLines(t, path, 5)

	got, err := ReadLastLines(path, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty result, got %q", got)
	}
}

func TestReadLastLines_NoTrailingNewline(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.log")
	if err := os.WriteFile(path, []byte("first\r\nsecond\nthird"), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	got, err := ReadLastLines(path, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	equalLines(t, got, []string{"second", "third"})

	got, err = ReadLastLines(path, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	equalLines(t, got, []string{"first", "second", "third"})
}

func TestReadLastLines_Directory(t *testing.T) {
	if _, err := ReadLastLines(t.TempDir(), 5); err == nil {
		t.Error("expected an error when reading a directory")
	}
}

// Files larger than the window need the second pass over earlier bytes.
func TestReadLastLines_SpansBeyondWindow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.log")

	// 1000 short lines at the head, then one line as large as the window
	// so the window holds almost nothing else.
	var b strings.Builder
	for i := 0; i < 1000; i++ {
		fmt.Fprintf(&b, "early %04d\n", i)
	}
	big := strings.Repeat("x", int(MaxWindow)-1)
	b.WriteString(big)
	b.WriteByte('\n')
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	got, err := ReadLastLines(path, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	equalLines(t, got, []string{"early 0998", "early 0999", big})
}

func TestReadLastLines_LargeFileOnlyTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "large.log")

	var b strings.Builder
	total := 0
	for b.Len() < int(2*MaxWindow) {
		fmt.Fprintf(&b, "entry %08d some padding to make the line longer\n", total)
		total++
	}
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	got, err := ReadLastLines(path, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("expected 5 lines, got %d", len(got))
	}
	want := fmt.Sprintf("entry %08d some padding to make the line longer", total-1)
	if got[4] != want {
		t.Errorf("expected last line %q, got %q", want, got[4])
	}
}

func TestReadLastLines_LongLineBeforeWindow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app-out.log")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create file: %v", err)
	}

	// A newline-free line many windows long, then a short tail.
	const longLine = 24 << 20
	block := bytes.Repeat([]byte("x"), 1<<20)
	if _, err := f.WriteString("first\n"); err != nil {
		t.Fatalf("failed to write: %v", err)
	}
	for written := 0; written < longLine; written += len(block) {
		if _, err := f.Write(block); err != nil {
			t.Fatalf("failed to write: %v", err)
		}
	}
	if _, err := f.WriteString("\na\nb\n"); err != nil {
		t.Fatalf("failed to write: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("failed to close: %v", err)
	}

	var before, after runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&before)

	got, err := ReadLastLines(path, 5)

	runtime.ReadMemStats(&after)
	if err != nil {
		t.Fatalf("ReadLastLines returned error: %v", err)
	}

	// The long line straddles the window start, so it comes back in two parts.
	if len(got) != 5 {
		t.Fatalf("expected 5 lines, got %d", len(got))
	}
	if got[0] != "first" || got[3] != "a" || got[4] != "b" {
		t.Errorf("unexpected lines around the long one: %q %q %q", got[0], got[3], got[4])
	}
	if int64(len(got[1])) > MaxWindow {
		t.Errorf("expected long line capped at %d bytes, got %d", MaxWindow, len(got[1]))
	}
	if allocated := after.TotalAlloc - before.TotalAlloc; allocated > 16<<20 {
		t.Errorf("expected memory bounded by the window, allocated %d bytes", allocated)
	}
}

func TestLineRing(t *testing.T) {
	r := newLineRing(3)
	for _, s := range []string{"a", "b", "c", "d", "e"} {
		r.push(s)
	}
	equalLines(t, r.slice(), []string{"c", "d", "e"})

	r = newLineRing(1)
	r.push("a")
	r.push("b")
	equalLines(t, r.slice(), []string{"b"})
}
