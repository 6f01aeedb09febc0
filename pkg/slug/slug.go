// Package slug assigns unique, stable, human-readable identifiers to tree
// nodes, scoped to their parent container.
//
// A Pool records every slug ever issued under one parent. It only grows:
// slugs of deleted nodes stay reserved so historical links keep resolving
// across commits. Allocation is deterministic — the same pool state and
// desired title always yield the same slug.
package slug

import (
	"fmt"
	"sort"

	gslug "github.com/gosimple/slug"
)

// reserved are names used for structural files in materialized trees; real
// nodes must never collide with them.
var reserved = []string{"introduction", "conclusion", "manifest"}

// fallback is used when a title folds to nothing (e.g. only punctuation).
const fallback = "section"

// Slugify folds a title to a lowercase, ASCII, hyphen-separated slug.
func Slugify(title string) string {
	s := gslug.Make(title)
	if s == "" {
		return fallback
	}
	return s
}

// Pool tracks issued slugs under one parent.
type Pool struct {
	taken map[string]struct{}
}

// NewPool returns a pool holding only the reserved words.
func NewPool() *Pool {
	p := &Pool{taken: make(map[string]struct{})}
	for _, r := range reserved {
		p.taken[r] = struct{}{}
	}
	return p
}

// NewPoolFrom returns a pool holding the reserved words plus the given
// slugs. Used when rebuilding a pool from a loaded manifest.
func NewPoolFrom(slugs []string) *Pool {
	p := NewPool()
	for _, s := range slugs {
		p.taken[s] = struct{}{}
	}
	return p
}

// Has reports whether s has been issued or is reserved.
func (p *Pool) Has(s string) bool {
	_, ok := p.taken[s]
	return ok
}

// Reserve marks s as taken without deriving it from a title. Used when
// re-attaching nodes whose slug must survive, e.g. on move.
func (p *Pool) Reserve(s string) {
	p.taken[s] = struct{}{}
}

// Allocate issues a slug for the given title: the slugified base if free,
// otherwise the base with the smallest unused numeric suffix appended.
func (p *Pool) Allocate(title string) string {
	base := Slugify(title)
	if !p.Has(base) {
		p.taken[base] = struct{}{}
		return base
	}
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s-%d", base, i)
		if !p.Has(candidate) {
			p.taken[candidate] = struct{}{}
			return candidate
		}
	}
}

// Taken returns the issued slugs in sorted order, excluding the reserved
// words. This is what gets serialized into a manifest.
func (p *Pool) Taken() []string {
	out := make([]string, 0, len(p.taken))
	for s := range p.taken {
		if isReserved(s) {
			continue
		}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func isReserved(s string) bool {
	for _, r := range reserved {
		if s == r {
			return true
		}
	}
	return false
}
