// exclude.go - gitignore-style exclusion matcher
//
// (c) 2024 Sudhi Herle <sudhi@herle.net>
//
// Licensing Terms: GPLv2
//
// If you need a commercial license for this work, please contact
// the author.
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim  is made to its
// suitability for any purpose.

package engine

import (
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// excludePattern is one compiled entry of the exclusion matcher: a
// doublestar glob, whether it negates a prior match, and whether it is
// restricted to directories (trailing '/' in the original pattern).
type excludePattern struct {
	glob    string
	negate  bool
	dirOnly bool
	anyDepth bool // pattern has no '/': match at any depth via basename
}

// Matcher is the Control Plane's exclusion matcher: gitignore-style
// patterns compiled once at construction and evaluated against both
// the entry's source-root-relative path and its basename.
type Matcher struct {
	pats []excludePattern
}

// NewMatcher compiles 'specs' - each a comma-separated list of
// patterns - into a Matcher. A leading '!' negates a pattern; a
// trailing '/' restricts the pattern to directories; patterns with no
// '/' match at any depth against the basename.
func NewMatcher(specs []string) *Matcher {
	m := &Matcher{}
	for _, spec := range specs {
		for _, raw := range strings.Split(spec, ",") {
			p := strings.TrimSpace(raw)
			if p == "" {
				continue
			}

			var ep excludePattern
			if strings.HasPrefix(p, "!") {
				ep.negate = true
				p = p[1:]
			}
			if strings.HasSuffix(p, "/") {
				ep.dirOnly = true
				p = strings.TrimSuffix(p, "/")
			}
			ep.anyDepth = !strings.Contains(p, "/")
			ep.glob = p
			m.pats = append(m.pats, ep)
		}
	}
	return m
}

// Match returns true if relPath (relative to the entry's source root)
// should be excluded. isDir tells the matcher whether relPath names a
// directory, for the trailing-'/' restriction. Patterns are evaluated
// in order; a later pattern's negation can un-exclude an earlier
// match, mirroring gitignore semantics.
func (m *Matcher) Match(relPath string, isDir bool) bool {
	if m == nil {
		return false
	}

	excluded := false
	base := path.Base(relPath)

	for _, ep := range m.pats {
		if ep.dirOnly && !isDir {
			continue
		}

		var ok bool
		if ep.anyDepth {
			ok, _ = doublestar.Match(ep.glob, base)
		} else {
			ok, _ = doublestar.Match(ep.glob, relPath)
		}
		if !ok {
			continue
		}

		excluded = !ep.negate
	}
	return excluded
}
