// Package coro provides the execution-context primitive the rest of
// kestrel treats as a black box: a saved machine state plus stack that
// supports symmetric resume(arg) transfer, returning a value when resumed
// back. See coro_linkname.go for the runtime.newcoro-backed variant (built
// with -tags linkname) and coro_nolinkname.go for the portable fallback
// built by default.
package coro

// Context wraps a Coro with the bidirectional transfer slot spec.md's
// resume(arg) -> arg' contract needs: each side leaves its outgoing value in
// xfer immediately before switching, and reads the peer's outgoing value
// from xfer immediately after switching back.
type Context struct {
	co   Coro
	xfer any
}

// New creates a Context whose entry closure runs entry(arg) where arg is
// whatever was passed to the first Resume. The closure must call
// (*Context).Exit instead of returning; returning normally is unreachable.
func New(entry func(arg any)) *Context {
	c := &Context{}
	c.co.Start(func() {
		// Park straight away: entry first runs on the first Resume, with
		// that call's arg in xfer.
		c.co.Yield()
		entry(c.xfer)
		panic("coro: Context entry returned instead of calling Exit")
	})
	return c
}

// Resume switches into the context, passing arg, and returns whatever the
// context passes back on its next Suspend or Exit.
func (c *Context) Resume(arg any) any {
	c.xfer = arg
	c.co.Next()
	return c.xfer
}

// Suspend must be called from inside the context's entry closure. It
// switches back to whoever called Resume, handing them arg, and returns
// whatever they pass on their next Resume.
func (c *Context) Suspend(arg any) any {
	c.xfer = arg
	c.co.Yield()
	return c.xfer
}

// Exit must be called from inside the context's entry closure in place of
// returning. It is equivalent to returning arg from the entry closure.
func (c *Context) Exit(arg any) {
	c.xfer = arg
	c.co.Finish()
}
