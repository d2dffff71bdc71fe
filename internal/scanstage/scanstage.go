// Package scanstage implements the concrete scan stages: padding,
// suggested, extension, signature, and featureless.
//
// Each stage is a pipeline.Pipe[*Env] so internal/pipeline's
// combinators can compose them into the default scan pipeline; see
// bangscan's root pipeline.go for the assembly.
package scanstage

import (
	"context"
	"fmt"
	"io"
	"path"

	"bangscan/internal/bangerr"
	"bangscan/internal/metadir"
	"bangscan/internal/parser"
	"bangscan/internal/pipeline"
	"bangscan/internal/registry"
)

// Env is the environment every scan stage runs against: one meta
// directory, its readable bytes, the parser registry, and a sink for
// newly discovered children so the worker pool can enqueue them.
type Env struct {
	Registry *registry.Registry
	MD       *metadir.MetaDirectory
	Reader   io.ReaderAt

	// ChunkSize bounds how much of MD's bytes the signature stage
	// reads into memory per automaton pass.
	ChunkSize int

	// Enqueue is called once for every child MD a stage or a
	// parser's Unpack discovers, so the worker pool can schedule it.
	Enqueue func(*metadir.MetaDirectory)
}

// Pipe is the stage type every function in this package returns.
type Pipe = pipeline.Pipe[*Env]

func (e *Env) size() int64 { return e.MD.Size }

func (e *Env) enqueue(children []*metadir.MetaDirectory) {
	for _, c := range children {
		if e.Enqueue != nil {
			e.Enqueue(c)
		}
	}
}

// tryParser runs one parser at the given candidate offset. On success
// it records labels/metadata/unpack_parser on the MD, runs Unpack, and
// enqueues any children. It returns the number of bytes the winning
// parse claimed and true, or 0/false if the parser rejected the
// candidate (a ParseFailure is not itself an error the caller should
// propagate — see isParseFailure).
func tryParser(ctx context.Context, env *Env, p parser.Parser, offset int64) (claimedSize int64, ok bool, err error) {
	c := parser.Candidate{Reader: env.Reader, Offset: offset, Size: env.size() - offset}
	pf, parseErr := parser.ParseFromOffset(ctx, p, c)
	if parseErr != nil {
		if isParseFailure(parseErr) {
			return 0, false, nil
		}
		return 0, false, parseErr
	}

	children, err := installParse(ctx, p, c, pf, env.MD)
	if err != nil {
		return 0, false, err
	}
	env.enqueue(children)

	return pf.UnpackedSize, true, nil
}

// installParse records p's labels/metadata/unpack_parser on target and
// runs Unpack against it, returning whatever children Unpack produced
// (not yet enqueued — the caller decides what else belongs alongside
// them, e.g. a carved sibling for the leftover tail).
func installParse(ctx context.Context, p parser.Parser, c parser.Candidate, pf parser.ParsedFile, target *metadir.MetaDirectory) ([]*metadir.MetaDirectory, error) {
	info := target.Info()
	for _, l := range p.Labels(pf) {
		info.AddLabel(l)
	}
	for k, v := range p.Metadata(pf) {
		info.Metadata[k] = v
	}
	info.UnpackParser = p.PrettyName()

	children, unpackErr := p.Unpack(ctx, c, pf, target)
	if unpackErr != nil {
		return nil, bangerr.Wrap(bangerr.ExtractionIOFailure, unpackErr).WithContext(p.PrettyName(), target.MDPath)
	}
	return children, nil
}

// tryParserCarving tries p at offset 0 against env.MD's entire
// remaining size. A parse that claims every remaining byte installs
// its result directly on env.MD, same as tryParser. A parse that
// claims only a prefix carves that prefix out as its own extracted
// child — carrying the parser's labels/metadata/unpack_parser, since
// those belong to the artifact actually parsed, not to the container
// holding it — and synthesizes the leftover tail as a second child so
// it gets classified on its own.
func tryParserCarving(ctx context.Context, env *Env, p parser.Parser) (bool, error) {
	size := env.size()
	c := parser.Candidate{Reader: env.Reader, Offset: 0, Size: size}
	pf, parseErr := parser.ParseFromOffset(ctx, p, c)
	if parseErr != nil {
		if isParseFailure(parseErr) {
			return false, nil
		}
		return false, parseErr
	}

	if pf.UnpackedSize == size {
		children, err := installParse(ctx, p, c, pf, env.MD)
		if err != nil {
			return false, err
		}
		env.enqueue(children)
		return true, nil
	}

	head, carveErr := env.MD.AddExtractedFile(0, pf.UnpackedSize)
	if carveErr != nil {
		return false, carveErr
	}
	children, err := installParse(ctx, p, c, pf, head)
	if err != nil {
		return false, err
	}
	env.enqueue(append([]*metadir.MetaDirectory{head}, children...))

	if err := synthesizeGap(env, pf.UnpackedSize, size); err != nil {
		return false, err
	}
	return true, nil
}

func isParseFailure(err error) bool {
	be, ok := err.(*bangerr.Error)
	return ok && be.Kind == bangerr.ParseFailure
}

// attemptRange tries p at a candidate offset inside env.MD's own
// bytes that is NOT the whole MD (the signature stage's case: a
// container may hold several concatenated artifacts, each its own
// extracted child). On success it carves a fresh extracted child MD
// at [offset, offset+size), runs Unpack against that CHILD (not
// env.MD — the winning parser's labels/metadata/unpack_parser belong
// to the artifact it actually parsed, not to the container holding
// it), and enqueues both that child and whatever Unpack produced
// beneath it.
func attemptRange(ctx context.Context, env *Env, p parser.Parser, offset int64) (claimedSize int64, ok bool, err error) {
	c := parser.Candidate{Reader: env.Reader, Offset: offset, Size: env.size() - offset}
	pf, parseErr := parser.ParseFromOffset(ctx, p, c)
	if parseErr != nil {
		if isParseFailure(parseErr) {
			return 0, false, nil
		}
		return 0, false, parseErr
	}

	child, carveErr := env.MD.AddExtractedFile(offset, pf.UnpackedSize)
	if carveErr != nil {
		return 0, false, carveErr
	}

	grandchildren, err := installParse(ctx, p, c, pf, child)
	if err != nil {
		return 0, false, err
	}
	env.enqueue(append([]*metadir.MetaDirectory{child}, grandchildren...))

	return pf.UnpackedSize, true, nil
}

// SuggestedStage consumes info.suggested_parsers (a hint a parent's
// Unpack attached to this specific child) and tries exactly those
// parsers, in order, at offset 0 — bypassing extension and signature
// dispatch entirely. Clears the hint whether or not it finds a
// winner, so it never re-fires on a re-opened MD.
func SuggestedStage() Pipe {
	return func(ctx context.Context, e *Env) (bool, error) {
		names := e.MD.Info().SuggestedParsers
		if len(names) == 0 {
			return false, nil
		}
		e.MD.Info().SuggestedParsers = nil

		for _, name := range names {
			p, found := e.Registry.ByName(name)
			if !found {
				continue
			}
			ok, err := tryParserCarving(ctx, e, p)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	}
}

// PaddingStage tries to claim the meta directory's entire remaining
// bytes as a run of one repeated byte value. It only looks at offset 0
// of the MD's own bytes: padding, by definition, must account for the
// whole artifact, not a sub-range of it.
func PaddingStage(ctx context.Context, e *Env) (bool, error) {
	if e.size() == 0 {
		return false, nil
	}
	first := make([]byte, 1)
	if _, err := e.Reader.ReadAt(first, 0); err != nil {
		return false, nil
	}
	_, ok, err := tryParser(ctx, e, parser.Padding{Byte: first[0]}, 0)
	return ok, err
}

// ExtensionStage derives a filename suffix from the MD's file path and
// tries every parser registered for it, first-match-wins: it stops
// (and returns claimed=true) at the first parser whose Parse succeeds.
// A parser that only claims a prefix of the MD has its result carved
// out as its own child, with the remainder left for further stages.
func ExtensionStage(ctx context.Context, e *Env) (bool, error) {
	ext := longestKnownExtension(e.Registry, e.MD.FilePath)
	if ext == "" {
		return false, nil
	}
	for _, p := range e.Registry.ByExtension(ext) {
		ok, err := tryParserCarving(ctx, e, p)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// longestKnownExtension finds the longest suffix of name for which
// the registry has at least one parser registered, so a ".tar.gz"
// parser is preferred over a coincidental ".gz" match on the same
// file.
func longestKnownExtension(reg *registry.Registry, name string) string {
	base := path.Base(name)
	best := ""
	for i := 0; i < len(base); i++ {
		if base[i] != '.' {
			continue
		}
		candidate := base[i:]
		if len(reg.ByExtension(candidate)) > 0 && len(candidate) > len(best) {
			best = candidate
		}
	}
	return best
}

// FeaturelessStage is the unconditional last resort: every meta
// directory reaches it, synthesized or not, and it tries every parser
// that opted into Featureless(). Same success/partial semantics as
// ExtensionStage — a prefix-only claim carves a child and leaves the
// remainder for whatever comes after.
func FeaturelessStage(ctx context.Context, e *Env) (bool, error) {
	for _, p := range e.Registry.Featureless() {
		ok, err := tryParserCarving(ctx, e, p)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// NotSynthesized reports whether env's meta directory is NOT itself a
// residual range the engine synthesized (as opposed to one a real
// parser Unpack explicitly produced). A synthesized child is eligible
// only for suggested/padding/featureless stages, never extension or
// signature — this checks the "synthesized" label that gap synthesis
// writes. See DESIGN.md for why the label string matters here.
func NotSynthesized(e *Env) bool {
	return !e.MD.Info().HasLabel("synthesized")
}

// SignatureStage streams the MD's bytes through the registry's
// automaton in fixed-size chunks with an overlap of
// longest_signature_length-1 bytes between consecutive chunks, so a
// literal straddling a chunk boundary is never missed. Every hit is
// turned into a candidate offset via hit.EndIndex - entry.EndDifference
// and tried in the order the automaton reports the hits (by where the
// matched literal ends, not by candidate offset); a candidate below
// the end of the last claimed range is skipped. A successful parse
// carves an extracted child for the claimed range and resumes
// scanning past it. Once a candidate has been claimed, any gap left
// uncovered — a leading gap before the first claimed range, gaps
// between claimed ranges, and a trailing gap after the last one — is
// synthesized as its own extracted child; when nothing is claimed, no
// child is created.
func SignatureStage(ctx context.Context, e *Env) (bool, error) {
	if e.Registry.LongestSignatureLength() == 0 || e.size() == 0 {
		return false, nil
	}

	chunkSize := e.ChunkSize
	if chunkSize <= 0 {
		chunkSize = 1 << 20
	}
	overlap := int64(e.Registry.LongestSignatureLength() - 1)

	var cursor int64 // next byte not yet claimed by a parser or gap synthesis
	claimedAny := false

	var chunkStart int64
	for chunkStart < e.size() {
		readLen := int64(chunkSize)
		if chunkStart+readLen > e.size() {
			readLen = e.size() - chunkStart
		}
		buf := make([]byte, readLen)
		n, readErr := e.Reader.ReadAt(buf, chunkStart)
		buf = buf[:n]
		if readErr != nil && readErr != io.EOF && n == 0 {
			return claimedAny, fmt.Errorf("scanstage: reading signature window at %d: %w", chunkStart, readErr)
		}

		for _, hit := range e.Registry.Scan(buf, chunkStart) {
			for _, entry := range hit.Entries {
				offset := hit.EndIndex - entry.EndDifference
				if offset < cursor {
					continue // inside or before a range already claimed
				}
				size, ok, err := attemptRange(ctx, e, entry.Parser, offset)
				if err != nil {
					return claimedAny, err
				}
				if !ok {
					continue
				}
				if offset > cursor {
					if err := synthesizeGap(e, cursor, offset); err != nil {
						return claimedAny, err
					}
				}
				cursor = offset + size
				claimedAny = true
			}
		}

		if readLen < int64(chunkSize) {
			break // reached end of data
		}
		chunkStart += readLen - overlap
		if chunkStart <= 0 {
			break
		}
	}

	if claimedAny && cursor < e.size() {
		if err := synthesizeGap(e, cursor, e.size()); err != nil {
			return claimedAny, err
		}
	}

	return claimedAny, nil
}

func synthesizeGap(e *Env, start, end int64) error {
	if end <= start {
		return nil
	}
	child, err := e.MD.AddExtractedFile(start, end-start)
	if err != nil {
		return err
	}
	child.Info().AddLabel("synthesized")
	child.Info().UnpackParser = "synthesized"
	e.enqueue([]*metadir.MetaDirectory{child})
	return nil
}
