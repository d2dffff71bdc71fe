// Package testparsers provides tiny stand-in parsers for exercising
// the engine's dispatch and tiling logic without depending on any
// real format decoder — those are external collaborators, out of
// this module's scope.
package testparsers

import (
	"context"

	"bangscan/internal/metadir"
	"bangscan/internal/parser"
)

// Magic claims a fixed-size block wherever its literal magic bytes
// appear at the candidate offset, adding Label to the winning MD.
// It never produces children; tests that need nested dispatch chain
// several Magic parsers with different literals instead.
type Magic struct {
	Name   string
	Lit    []byte
	Size   int64
	Label  string
	ByExt  string
}

func (m Magic) PrettyName() string { return m.Name }

func (m Magic) Extensions() []string {
	if m.ByExt == "" {
		return nil
	}
	return []string{m.ByExt}
}

func (m Magic) Signatures() []parser.Signature {
	if len(m.Lit) == 0 {
		return nil
	}
	return []parser.Signature{{Literal: m.Lit, EndDifference: int64(len(m.Lit))}}
}

func (Magic) Featureless() bool { return false }

func (m Magic) Parse(_ context.Context, c parser.Candidate) (parser.ParsedFile, error) {
	if len(m.Lit) > 0 {
		buf := make([]byte, len(m.Lit))
		n, err := c.Reader.ReadAt(buf, c.Offset)
		if n < len(m.Lit) || err != nil {
			return parser.ParsedFile{}, errShort
		}
		for i := range m.Lit {
			if buf[i] != m.Lit[i] {
				return parser.ParsedFile{}, errMismatch
			}
		}
	}
	return parser.ParsedFile{UnpackedSize: m.Size}, nil
}

func (m Magic) Labels(parser.ParsedFile) []string {
	if m.Label == "" {
		return nil
	}
	return []string{m.Label}
}

func (Magic) Metadata(parser.ParsedFile) map[string]any { return nil }

func (Magic) Unpack(context.Context, parser.Candidate, parser.ParsedFile, *metadir.MetaDirectory) ([]*metadir.MetaDirectory, error) {
	return nil, nil
}

type testErr struct{ msg string }

func (e *testErr) Error() string { return e.msg }

var (
	errShort    = &testErr{"testparsers: short read"}
	errMismatch = &testErr{"testparsers: magic mismatch"}
)
