package modkit

// Command is a handler object with a single execute operation. A fresh
// command is constructed per request by its factory and data-bound from
// request parameters before Execute runs.
//
// Execute may return:
//   - a *ModelAndView, used as-is
//   - a *Model, paired with the endpoint's view name
//   - any other value, wrapped into a completed model
//
// Returning an error aborts the chain; a *StatusError controls the
// response status.
type Command interface {
	Execute(c *Context) (any, error)
}

// CommandFactory constructs a command for one request.
type CommandFactory func() Command

// CommandFunc adapts a plain function to the Command interface. Function
// commands receive no data binding; they read parameters from the context.
type CommandFunc func(c *Context) (any, error)

// Execute calls fn.
func (fn CommandFunc) Execute(c *Context) (any, error) {
	return fn(c)
}

// Cmd wraps a function into a CommandFactory.
func Cmd(fn CommandFunc) CommandFactory {
	return func() Command { return fn }
}
