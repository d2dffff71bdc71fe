package parser

import (
	"context"

	"bangscan/internal/metadir"
)

// Padding is one of the pseudo-parsers the engine supplies itself: it
// claims a run of a single repeated byte value, used to tile gaps made
// of alignment padding without inventing a real format for them.
type Padding struct{ Byte byte }

func (Padding) PrettyName() string        { return "padding" }
func (Padding) Extensions() []string      { return nil }
func (Padding) Signatures() []Signature   { return nil }
func (Padding) Featureless() bool         { return false }

func (p Padding) Parse(_ context.Context, c Candidate) (ParsedFile, error) {
	buf := make([]byte, 4096)
	var n int64
	for n < c.Size {
		want := int64(len(buf))
		if rem := c.Size - n; rem < want {
			want = rem
		}
		read, err := c.Reader.ReadAt(buf[:want], c.Offset+n)
		for i := 0; i < read; i++ {
			if buf[i] != p.Byte {
				return ParsedFile{}, unclaimedPaddingRun
			}
		}
		n += int64(read)
		if err != nil && int64(read) < want {
			break
		}
	}
	return ParsedFile{UnpackedSize: n}, nil
}

func (Padding) Labels(ParsedFile) []string            { return []string{"padding"} }
func (Padding) Metadata(ParsedFile) map[string]any    { return nil }
func (Padding) Unpack(context.Context, Candidate, ParsedFile, *metadir.MetaDirectory) ([]*metadir.MetaDirectory, error) {
	return nil, nil
}

var unclaimedPaddingRun = &byteMismatch{}

type byteMismatch struct{}

func (*byteMismatch) Error() string { return "padding: byte run interrupted" }

// Synthesizing is the pseudo-parser that claims a residual byte range
// no real parser, signature, or padding run accounted for, exactly the
// size handed to it. Its pretty name and its one label are both
// "synthesized". The scan stages do not run it: their gap synthesis
// writes that same label and unpack_parser name directly onto the
// carved child, and that label is what keeps the child out of
// extension and signature dispatch.
type Synthesizing struct{ Size int64 }

func (Synthesizing) PrettyName() string      { return "synthesized" }
func (Synthesizing) Extensions() []string    { return nil }
func (Synthesizing) Signatures() []Signature { return nil }
func (Synthesizing) Featureless() bool       { return false }

func (s Synthesizing) Parse(context.Context, Candidate) (ParsedFile, error) {
	return ParsedFile{UnpackedSize: s.Size}, nil
}

func (Synthesizing) Labels(ParsedFile) []string         { return []string{"synthesized"} }
func (Synthesizing) Metadata(ParsedFile) map[string]any { return nil }
func (Synthesizing) Unpack(context.Context, Candidate, ParsedFile, *metadir.MetaDirectory) ([]*metadir.MetaDirectory, error) {
	return nil, nil
}

// Extracting is the pseudo-parser used by parsers that want to carve
// out a child range they have already located (e.g. a container
// format handing an embedded member to the registry for re-dispatch)
// without writing a full Parser implementation for the carve step
// itself. It behaves like Synthesizing but does not add the
// "synthesized" label, since the range was explicitly identified by
// a real parser rather than left over from one.
type Extracting struct{ Size int64 }

func (Extracting) PrettyName() string      { return "extracted" }
func (Extracting) Extensions() []string    { return nil }
func (Extracting) Signatures() []Signature { return nil }
func (Extracting) Featureless() bool       { return false }

func (e Extracting) Parse(context.Context, Candidate) (ParsedFile, error) {
	return ParsedFile{UnpackedSize: e.Size}, nil
}

func (Extracting) Labels(ParsedFile) []string         { return nil }
func (Extracting) Metadata(ParsedFile) map[string]any { return nil }
func (Extracting) Unpack(context.Context, Candidate, ParsedFile, *metadir.MetaDirectory) ([]*metadir.MetaDirectory, error) {
	return nil, nil
}
