package race

import "testing"

// TestReleaseAcquireRoundTrip only checks that the pair is safe to call in
// sequence; the actual happens-before edge it manufactures under -race is
// invisible to a normal test run.
func TestReleaseAcquireRoundTrip(t *testing.T) {
	tok := NewToken()
	tok.Release()
	tok.Acquire()
}

func TestTokensAreIndependent(t *testing.T) {
	a := NewToken()
	b := NewToken()
	a.Release()
	b.Release()
	a.Acquire()
	b.Acquire()
}
