// Package registry implements the parser registry and the signature
// automaton built over every registered parser's literals.
//
// Parsers are indexed by pretty name, extension and signature at
// registration time, and a single Aho-Corasick automaton is built
// once so the signature scan stage can find every candidate offset in
// one streaming pass instead of probing each signature independently.
package registry

import (
	"fmt"
	"sort"

	ahocorasick "github.com/BobuSumisu/aho-corasick"

	"bangscan/internal/bangerr"
	"bangscan/internal/parser"
)

// Hit is what the automaton reports for one matched literal: the byte
// offset one past the match's last byte (matching
// ahocorasick.Trie.Match's End()+1 convention) and which parsers
// registered that literal.
type Hit struct {
	EndIndex int64
	Entries  []SignatureEntry
}

// SignatureEntry pairs a registered parser with the end-difference its
// signature declared, so the signature stage can compute the
// candidate offset = matchEndIndex - EndDifference.
type SignatureEntry struct {
	Parser        parser.Parser
	EndDifference int64
}

// Registry is the built, queryable collection of every registered
// parser.
type Registry struct {
	byName      map[string]parser.Parser
	byExtension map[string][]parser.Parser
	featureless []parser.Parser

	trie                *ahocorasick.Trie
	sigByLiteral        map[string][]SignatureEntry
	longestSignatureLen int
}

// Builder accumulates parsers before Build() freezes them into a
// Registry. Registering two parsers under the same pretty name is a
// configuration error: the registry itself, not just a scan, must
// have no ambiguity about which parser a name refers to.
type Builder struct {
	parsers []parser.Parser
}

func NewBuilder() *Builder { return &Builder{} }

func (b *Builder) Register(p parser.Parser) *Builder {
	b.parsers = append(b.parsers, p)
	return b
}

func (b *Builder) Build() (*Registry, error) {
	r := &Registry{
		byName:       map[string]parser.Parser{},
		byExtension:  map[string][]parser.Parser{},
		sigByLiteral: map[string][]SignatureEntry{},
	}

	var literals []string
	for _, p := range b.parsers {
		name := p.PrettyName()
		if _, dup := r.byName[name]; dup {
			return nil, bangerr.New(bangerr.ConfigurationError,
				fmt.Sprintf("registry: duplicate parser name %q", name))
		}
		r.byName[name] = p

		for _, ext := range p.Extensions() {
			r.byExtension[ext] = append(r.byExtension[ext], p)
		}

		for _, sig := range p.Signatures() {
			if len(sig.Literal) == 0 {
				return nil, bangerr.New(bangerr.ConfigurationError,
					fmt.Sprintf("registry: parser %q registered an empty signature literal", name))
			}
			lit := string(sig.Literal)
			r.sigByLiteral[lit] = append(r.sigByLiteral[lit], SignatureEntry{Parser: p, EndDifference: sig.EndDifference})
			if len(sig.Literal) > r.longestSignatureLen {
				r.longestSignatureLen = len(sig.Literal)
			}
			literals = append(literals, lit)
		}

		if p.Featureless() {
			r.featureless = append(r.featureless, p)
		}
	}

	sort.Strings(literals)
	literals = dedupe(literals)

	if len(literals) == 0 {
		// EmptyAutomaton stub: a signature stage over a registry with
		// no registered signatures should behave like a no-op, not
		// panic building an automaton over zero patterns.
		r.trie = nil
	} else {
		r.trie = ahocorasick.NewTrieBuilder().AddStrings(literals).Build()
	}

	return r, nil
}

func dedupe(sorted []string) []string {
	out := sorted[:0]
	var prev string
	first := true
	for _, s := range sorted {
		if first || s != prev {
			out = append(out, s)
			prev = s
			first = false
		}
	}
	return out
}

// ByName looks up a parser by its exact pretty name, used to resolve
// an info.suggested_parsers hint.
func (r *Registry) ByName(name string) (parser.Parser, bool) {
	p, ok := r.byName[name]
	return p, ok
}

// ByExtension returns every parser registered for ext, in
// registration order, matching extension_stage's first-match-wins
// contract (the stage itself decides to stop at the first success;
// the registry just returns candidates in a stable order).
func (r *Registry) ByExtension(ext string) []parser.Parser {
	return r.byExtension[ext]
}

// Featureless returns every parser that opted into featureless_stage.
func (r *Registry) Featureless() []parser.Parser {
	return r.featureless
}

// LongestSignatureLength is one more than the overlap window the
// signature stage must keep between chunks (overlap =
// LongestSignatureLength-1) so a match straddling a chunk boundary is
// never missed.
func (r *Registry) LongestSignatureLength() int { return r.longestSignatureLen }

// Scan runs the automaton over buf and returns every literal match,
// each end index adjusted by chunkStart so callers scanning a window
// in chunks get absolute offsets back. Returns nil immediately if the
// registry has no signatures at all (the EmptyAutomaton case).
func (r *Registry) Scan(buf []byte, chunkStart int64) []Hit {
	if r.trie == nil || len(buf) == 0 {
		return nil
	}
	matches := r.trie.Match(buf)
	hits := make([]Hit, 0, len(matches))
	for _, m := range matches {
		lit := m.Match()
		entries := r.sigByLiteral[string(lit)]
		if len(entries) == 0 {
			continue
		}
		// Pos() is the literal's starting index in buf; the
		// candidate arithmetic in internal/scanstage wants the
		// index one past the literal's last byte.
		endIndex := int64(m.Pos()) + int64(len(lit))
		hits = append(hits, Hit{
			EndIndex: chunkStart + endIndex,
			Entries:  entries,
		})
	}
	return hits
}
