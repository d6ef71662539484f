package domwire

import (
	"sync"

	"go.uber.org/zap"
)

// Func is a callable registered under a global name. Steps that resolve
// to a named function receive nil; request-step callbacks receive the
// interpreted response (or nil on failure).
type Func func(arg any)

// Funcs is the process-wide table chain steps and request callbacks
// resolve their names against. Resolution is an explicit registry
// lookup, not reflection over a global namespace, with a forgiving
// contract: a name that resolves is called, a name that doesn't is
// skipped and the pipeline continues.
//
// Funcs is safe for concurrent use. Registering an existing name
// rebinds it; chain authors legitimately swap hooks between runs.
type Funcs struct {
	mu    sync.RWMutex
	table map[string]Func
}

// NewFuncs creates an empty function registry.
func NewFuncs() *Funcs {
	return &Funcs{table: make(map[string]Func)}
}

// Register binds name to fn, replacing any previous binding. A nil fn
// removes the binding.
func (f *Funcs) Register(name string, fn Func) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if fn == nil {
		delete(f.table, name)
		return
	}
	f.table[name] = fn
}

// Lookup resolves a name to its callable.
func (f *Funcs) Lookup(name string) (Func, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	fn, ok := f.table[name]
	return fn, ok
}

// call resolves and invokes a named function, recovering panics.
// A resolution miss is logged and reported false; the caller decides
// nothing - per contract the surrounding pipeline always continues.
func (f *Funcs) call(name string, arg any, log *zap.Logger) bool {
	fn, ok := f.Lookup(name)
	if !ok {
		log.Debug("named function not registered, skipping", zap.String("name", name))
		return false
	}
	safeCall(log, "named function "+name, func() { fn(arg) })
	return true
}

// safeCall runs a caller-supplied function, converting a panic into a
// log entry. User code must never abort a batch or a chain.
func safeCall(log *zap.Logger, what string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("recovered panic in "+what, zap.Any("panic", r))
		}
	}()
	fn()
}
