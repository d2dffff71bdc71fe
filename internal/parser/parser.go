// Package parser defines the contract every format parser implements,
// plus the three pseudo-parsers the engine itself supplies: padding,
// synthesizing and extracting. Suggested-parser and propagated hints
// are carried in metadir.Info fields, not by a parser.
//
// A real format parser (gzip, zip, a filesystem image — none of which
// live in this module; they are external collaborators per the parser
// contract) implements Parser and registers itself with
// internal/registry. The scan stages in internal/scanstage drive every
// parser the same way: ParseFromOffset (Parse plus its size checks),
// then recording Labels, Metadata and PrettyName on the winning MD,
// then Unpack.
package parser

import (
	"context"
	"fmt"
	"io"

	"bangscan/internal/bangerr"
	"bangscan/internal/metadir"
)

// Candidate is what a scan stage hands to a parser: a byte-range view
// to read from and the offset within the parent's bytes where parsing
// should begin.
type Candidate struct {
	Reader io.ReaderAt
	Offset int64
	// Size is the number of bytes available from Offset onward in
	// the parent (the parent's total size minus Offset), the upper
	// bound a parser's own calculated size must never exceed.
	Size int64
}

// ParsedFile is what a successful Parse call returns: the actual
// number of header bytes consulted is implicit in parser-internal
// state; what the engine needs back is how many bytes this parse
// claims (UnpackedSize) and a handle the same parser instance will
// later use for Unpack/Labels/Metadata/WriteInfo.
type ParsedFile struct {
	// UnpackedSize is the number of bytes, starting at the
	// candidate's Offset, this parse claims as this format's
	// complete artifact. Must be > 0.
	UnpackedSize int64
}

// Parser is the contract every concrete format parser implements.
// pretty_name, extensions() and signatures() are registration-time
// metadata consumed by internal/registry; everything else is called
// per candidate during a scan.
type Parser interface {
	// PrettyName is the stable, human-readable identifier recorded
	// as unpack_parser on a winning MD (e.g. "gzip", "cpio").
	PrettyName() string

	// Extensions lists filename suffixes (".tar.gz", ".zip") this
	// parser wants a first shot at via the extension stage. May be
	// empty.
	Extensions() []string

	// Signatures lists (Literal, EndDifference) pairs this parser
	// wants registered in the signature automaton. EndDifference
	// is how many bytes before the literal's end the candidate
	// parse should begin (e.g. a 4-byte magic at the very start of
	// the format has EndDifference == len(Literal)). May be
	// empty, meaning this parser is only reachable via extension
	// match, explicit suggestion, or the featureless stage.
	Signatures() []Signature

	// Featureless reports whether this parser should be tried, as a
	// last resort, against candidates no other stage claimed (e.g.
	// a raw-text or entropy-based classifier). Most parsers return
	// false.
	Featureless() bool

	// Parse reads from c.Reader starting at c.Offset and decides
	// whether this candidate is a valid instance of this format.
	// It returns bangerr.ParseFailure (via bangerr.Wrap/New) if not.
	Parse(ctx context.Context, c Candidate) (ParsedFile, error)

	// Labels returns the labels this parser contributes to the
	// winning MD's info, given the ParsedFile Parse just produced.
	Labels(pf ParsedFile) []string

	// Metadata returns format-specific structured metadata to merge
	// into the winning MD's info.metadata.
	Metadata(pf ParsedFile) map[string]any

	// Unpack lazily yields this artifact's children into toMD, in
	// the order they should be recorded. A parser that needs no
	// children (e.g. a leaf format) returns a nil/empty sequence.
	Unpack(ctx context.Context, c Candidate, pf ParsedFile, toMD *metadir.MetaDirectory) ([]*metadir.MetaDirectory, error)
}

// Signature is one registered literal and the byte offset, relative to
// the literal's end, where the candidate parse should begin.
type Signature struct {
	Literal      []byte
	EndDifference int64 // candidate offset = matchEndIndex - EndDifference
}

// ParseFromOffset runs Parse and wraps a non-nil error as a
// bangerr.ParseFailure unless it is already a *bangerr.Error: any
// assertion failure during parsing is just a rejected candidate, not
// a crash.
func ParseFromOffset(ctx context.Context, p Parser, c Candidate) (ParsedFile, error) {
	pf, err := p.Parse(ctx, c)
	if err != nil {
		var be *bangerr.Error
		if asBangErr(err, &be) {
			return ParsedFile{}, be.WithContext(p.PrettyName(), "")
		}
		return ParsedFile{}, bangerr.Wrap(bangerr.ParseFailure, err).WithContext(p.PrettyName(), "")
	}
	if pf.UnpackedSize <= 0 {
		return ParsedFile{}, bangerr.New(bangerr.ParseFailure,
			fmt.Sprintf("%s: calculated unpacked size %d is not positive", p.PrettyName(), pf.UnpackedSize)).
			WithContext(p.PrettyName(), "")
	}
	if pf.UnpackedSize > c.Size {
		return ParsedFile{}, bangerr.New(bangerr.ParseFailure,
			fmt.Sprintf("%s: unpacked size %d exceeds available %d", p.PrettyName(), pf.UnpackedSize, c.Size)).
			WithContext(p.PrettyName(), "")
	}
	return pf, nil
}

func asBangErr(err error, out **bangerr.Error) bool {
	if be, ok := err.(*bangerr.Error); ok {
		*out = be
		return true
	}
	return false
}
