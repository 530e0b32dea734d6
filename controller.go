package modkit

import "reflect"

// commandController is the chain tail. It constructs the endpoint's
// command, binds request data onto it, executes it, and wraps the result
// into a ModelAndView on the context.
type commandController struct {
	ep *endpoint
}

func (cc *commandController) handle(c *Context) error {
	cmd := cc.ep.factory()
	if cmd == nil {
		return ErrNilCommand
	}

	if bindable(cmd) {
		if err := Bind(cmd, c.params); err != nil {
			return err
		}
	}

	result, err := cmd.Execute(c)
	if err != nil {
		return err
	}

	c.result = cc.wrap(result)
	return nil
}

// wrap normalizes a command result into a ModelAndView.
func (cc *commandController) wrap(result any) *ModelAndView {
	switch v := result.(type) {
	case *ModelAndView:
		if v.Model == nil && !v.IsRedirect() {
			v.Model = ModelOf(nil)
		}
		return v
	case *Model:
		return &ModelAndView{View: cc.ep.view, Model: v}
	case nil:
		return &ModelAndView{View: cc.ep.view, Model: ModelOf(nil)}
	default:
		return &ModelAndView{View: cc.ep.view, Model: ModelOf(result)}
	}
}

// bindable reports whether data binding applies to a command. Function
// commands and non-struct commands read parameters from the context
// instead.
func bindable(cmd Command) bool {
	rv := reflect.ValueOf(cmd)
	return rv.Kind() == reflect.Ptr && !rv.IsNil() && rv.Elem().Kind() == reflect.Struct
}
