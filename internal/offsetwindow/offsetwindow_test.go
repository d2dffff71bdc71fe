package offsetwindow

import (
	"bytes"
	"io"
	"strings"
	"testing"
)

func TestWindowReadAt(t *testing.T) {
	root := strings.NewReader("0123456789abcdef")

	cases := []struct {
		name   string
		off, n int64
		readAt int64
		bufLen int
		want   string
		wantEOF bool
	}{
		{"whole window from start", 4, 6, 0, 6, "456789", false},
		{"mid window read", 4, 6, 2, 2, "67", false},
		{"read past end truncates with EOF", 4, 6, 4, 4, "89", true},
		{"read at exact end is EOF", 4, 6, 6, 1, "", true},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			v := Window(root, c.off, c.n)
			if got := v.Size(); got != c.n {
				t.Fatalf("Size() = %d, want %d", got, c.n)
			}
			buf := make([]byte, c.bufLen)
			n, err := v.ReadAt(buf, c.readAt)
			if c.wantEOF && err != io.EOF {
				t.Fatalf("err = %v, want io.EOF", err)
			}
			if !bytes.Equal(buf[:n], []byte(c.want)) {
				t.Fatalf("read %q, want %q", buf[:n], c.want)
			}
		})
	}
}

func TestWindowCollapsesNested(t *testing.T) {
	root := strings.NewReader("0123456789abcdef")
	outer := Window(root, 2, 10) // "23456789ab"
	inner := Window(outer, 2, 4) // "4567"

	r, off, n := inner.Outer()
	if r != io.ReaderAt(root) {
		t.Fatalf("inner did not collapse to root reader")
	}
	if off != 4 || n != 4 {
		t.Fatalf("collapsed offset/len = %d/%d, want 4/4", off, n)
	}

	buf := make([]byte, 4)
	if _, err := inner.ReadAt(buf, 0); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if string(buf) != "4567" {
		t.Fatalf("got %q, want 4567", buf)
	}
}
