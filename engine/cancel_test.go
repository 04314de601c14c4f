// cancel_test.go -- cooperative cancellation semantics

package engine

import "testing"

func TestCancelTokenIdempotent(t *testing.T) {
	assert := newAsserter(t)

	c := NewCancelToken()
	assert(!c.Cancelled(), "fresh token must not be cancelled")

	c.Cancel(ReasonSigint)
	assert(c.Cancelled(), "exp cancelled after Cancel")
	assert(c.ExitCode() == 130, "exp 130 for sigint, saw %d", c.ExitCode())

	// a second reason must not override the first
	c.Cancel(ReasonSigterm)
	assert(c.ExitCode() == 130, "exp first reason to stick, saw %d", c.ExitCode())
}

func TestCancelTokenExitCodes(t *testing.T) {
	assert := newAsserter(t)

	cases := []struct {
		reason int32
		want   int
	}{
		{ReasonSigterm, 143},
		{ReasonSigint, 130},
		{ReasonQuit, 130},
		{ReasonError, 1},
	}
	for _, c := range cases {
		tok := NewCancelToken()
		tok.Cancel(c.reason)
		assert(tok.ExitCode() == c.want, "reason %d: exp %d, saw %d", c.reason, c.want, tok.ExitCode())
	}
}

func TestCancelTokenNoneExitsZero(t *testing.T) {
	assert := newAsserter(t)

	tok := NewCancelToken()
	assert(tok.ExitCode() == 0, "exp 0 for uncancelled token, saw %d", tok.ExitCode())
}
