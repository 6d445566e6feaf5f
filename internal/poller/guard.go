package poller

import "sync/atomic"

// Token identifies the attachment a poll was started under.
type Token uint64

// Guard tells whether a poll result may still be applied. Every token handed
// out before Detach becomes invalid, so a fetch that resolves after the
// consumer went away cannot touch shared state.
type Guard struct {
	gen      atomic.Uint64
	detached atomic.Bool
}

func (g *Guard) Token() Token {
	return Token(g.gen.Load())
}

func (g *Guard) Detach() {
	g.detached.Store(true)
	g.gen.Add(1)
}

func (g *Guard) Valid(t Token) bool {
	return !g.detached.Load() && Token(g.gen.Load()) == t
}
