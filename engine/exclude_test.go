// exclude_test.go -- gitignore-style matcher semantics

package engine

import "testing"

func TestMatcherBasenameAnyDepth(t *testing.T) {
	assert := newAsserter(t)

	m := NewMatcher([]string{"*.log"})
	assert(m.Match("a.log", false), "exp a.log excluded")
	assert(m.Match("sub/dir/b.log", false), "exp nested .log excluded")
	assert(!m.Match("a.txt", false), "exp a.txt kept")
}

func TestMatcherDirOnly(t *testing.T) {
	assert := newAsserter(t)

	m := NewMatcher([]string{"build/"})
	assert(m.Match("build", true), "exp dir build excluded")
	assert(!m.Match("build", false), "exp file named build kept (dir-only pattern)")
}

func TestMatcherNegationUnexcludes(t *testing.T) {
	assert := newAsserter(t)

	m := NewMatcher([]string{"*.log,!keep.log"})
	assert(m.Match("a.log", false), "exp a.log excluded")
	assert(!m.Match("keep.log", false), "exp keep.log un-excluded by negation")
}

func TestMatcherPathPattern(t *testing.T) {
	assert := newAsserter(t)

	m := NewMatcher([]string{"sub/*.tmp"})
	assert(m.Match("sub/a.tmp", false), "exp sub/a.tmp excluded")
	assert(!m.Match("other/a.tmp", false), "exp other/a.tmp kept (path pattern isn't any-depth)")
}

func TestMatcherNilIsNoop(t *testing.T) {
	assert := newAsserter(t)

	var m *Matcher
	assert(!m.Match("anything", false), "nil matcher should never exclude")
}

func TestMatcherCommaSplitMultipleSpecs(t *testing.T) {
	assert := newAsserter(t)

	m := NewMatcher([]string{"*.log", "*.tmp,*.bak"})
	assert(m.Match("a.log", false), "exp a.log excluded")
	assert(m.Match("a.tmp", false), "exp a.tmp excluded")
	assert(m.Match("a.bak", false), "exp a.bak excluded")
	assert(!m.Match("a.txt", false), "exp a.txt kept")
}
