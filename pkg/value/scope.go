package value

import "strings"

// Lambda is a closure: its parameter list, an opaque compiled body owned by
// the evaluator, and the scope captured when the closure was built.
type Lambda struct {
	Params []string
	Body   any
	Env    *Scope
}

// Arity returns the number of declared parameters.
func (l *Lambda) Arity() int { return len(l.Params) }

// Scope is an immutable chain of local bindings. Binding returns a new
// scope that shares its parent, so closures captured from a scope never
// observe bindings added afterwards. The nil *Scope is the empty scope.
type Scope struct {
	parent *Scope
	name   string
	val    Value
}

// Bind returns a scope extending s with name bound to v. Names are
// case-insensitive.
func (s *Scope) Bind(name string, v Value) *Scope {
	return &Scope{parent: s, name: strings.ToUpper(name), val: v}
}

// Lookup finds the innermost binding of name.
func (s *Scope) Lookup(name string) (Value, bool) {
	key := strings.ToUpper(name)
	for cur := s; cur != nil; cur = cur.parent {
		if cur.name == key {
			return cur.val, true
		}
	}
	return Value{}, false
}

// Len returns the number of bindings reachable from s, shadowed ones
// included.
func (s *Scope) Len() int {
	n := 0
	for cur := s; cur != nil; cur = cur.parent {
		n++
	}
	return n
}
