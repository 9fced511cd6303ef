package value

import "key-mods/internal/kmerr"

// Env is a lexical scope: identifier → Value, plus a link to its enclosing
// scope (spec §3/§4.A). A closure captures the Env live at its definition
// site; assignment through a captured env mutates the shared binding.
type Env struct {
	vars  map[string]Value
	outer *Env
}

// NewEnv creates a fresh top-level environment (no parent).
func NewEnv() *Env {
	return &Env{vars: make(map[string]Value)}
}

// Child creates a new environment nested within e, for a call frame or a
// block scope.
func (e *Env) Child() *Env {
	return &Env{vars: make(map[string]Value), outer: e}
}

// Get walks outward through enclosing scopes looking for name.
func (e *Env) Get(name string) (Value, bool) {
	for env := e; env != nil; env = env.outer {
		if v, ok := env.vars[name]; ok {
			return v, true
		}
	}
	return Value{}, false
}

// Define introduces a new binding in the current scope, shadowing any
// binding of the same name in an outer scope (spec §4.A: "define in a
// child shadows the parent").
func (e *Env) Define(name string, v Value) {
	e.vars[name] = v
}

// Assign updates the nearest enclosing binding of name. It fails with
// UnboundVariable if no such binding exists anywhere in the chain (spec
// §3: bare assignment "fails... if none exists").
func (e *Env) Assign(name string, v Value) error {
	for env := e; env != nil; env = env.outer {
		if _, ok := env.vars[name]; ok {
			env.vars[name] = v
			return nil
		}
	}
	return kmerr.New(kmerr.KindUnboundVariable, "undefined variable: %s", name)
}
