// Copyright (c) Elliot Nunn
// Licensed under the MIT license

// Package offsetwindow implements a zero-copy offset-window view: a
// ReaderAt translated by a fixed offset, with its own notion of size,
// so a reader of the view never has to know where its bytes sit inside
// the root file. The scan stages do not use it: they hand a parser the
// meta directory's whole reader plus a candidate offset.
package offsetwindow

import (
	"io"
	"math"
)

// Window views r starting at off, n bytes long (or the rest of r if
// n is negative and r.Size() is known; if r has no Size method, a
// window with negative n returns io.EOF on every read). Nested windows
// collapse: a Window of a Window is a single translated ReaderAt,
// matching the io.SectionReader.Outer() collapsing behaviour this is
// grounded on.
func Window(r io.ReaderAt, off int64, n int64) *View {
	if n < 0 {
		if s, ok := r.(interface{ Size() int64 }); ok {
			n = s.Size() - off
		}
	}
	for {
		t, ok := r.(*View)
		if !ok {
			break
		}
		if n >= 0 && off+n > t.n {
			break
		}
		r, off = t.r, off+t.off
	}
	return &View{r: r, off: off, n: n}
}

// View is an offset-translated, size-bounded window onto an underlying
// ReaderAt. It implements io.ReaderAt; Size reports the window's
// length, which is what a parser consults instead of seeking to EOF.
type View struct {
	r      io.ReaderAt
	off, n int64
}

// Outer exposes the underlying reader, offset and length so windows can
// be collapsed when further narrowed, mirroring io.SectionReader.Outer.
func (v *View) Outer() (io.ReaderAt, int64, int64) { return v.r, v.off, v.n }

// Size returns the window's length in bytes.
func (v *View) Size() int64 { return v.n }

// Offset returns where this window begins in the coordinate space of
// the reader it wraps. When Window collapsed nested views, that is the
// innermost non-View reader; a window that extends past its parent
// view is not collapsed and stays relative to that view.
func (v *View) Offset() int64 { return v.off }

func (v *View) ReadAt(p []byte, off int64) (n int, err error) {
	if v.n < 0 || v.off < 0 || off < 0 || v.off+off < 0 || (v.n >= 0 && off >= v.n) {
		return 0, io.EOF
	}

	limit := v.off + v.n
	if v.n < 0 || limit < v.off { // unbounded, or overflow
		limit = math.MaxInt64
	}

	start := off + v.off
	if max := limit - start; v.n >= 0 && int64(len(p)) > max {
		p = p[:max]
		n, err = v.r.ReadAt(p, start)
		if err == nil {
			err = io.EOF
		}
		return n, err
	}
	return v.r.ReadAt(p, start)
}
