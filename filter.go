package modkit

// Filter intercepts a request before its command runs. A filter either
// calls chain.Next to pass the request on, or short-circuits by writing
// the response itself (or returning an error). Filters run in
// registration order; the command controller is the chain tail.
type Filter interface {
	Filter(c *Context, chain *Chain) error
}

// FilterFunc adapts a function to the Filter interface.
type FilterFunc func(c *Context, chain *Chain) error

// Filter calls fn.
func (fn FilterFunc) Filter(c *Context, chain *Chain) error {
	return fn(c, chain)
}

// Chain executes a module's filters in order, ending at the tail. One
// chain instance serves one request.
type Chain struct {
	filters []Filter
	tail    func(c *Context) error
	pos     int
}

func newChain(filters []Filter, tail func(c *Context) error) *Chain {
	return &Chain{filters: filters, tail: tail}
}

// Next advances the chain. A filter that never calls Next ends the
// request at that point.
func (ch *Chain) Next(c *Context) error {
	if ch.pos < len(ch.filters) {
		f := ch.filters[ch.pos]
		ch.pos++
		return f.Filter(c, ch)
	}
	return ch.tail(c)
}
