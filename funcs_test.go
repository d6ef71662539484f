package domwire

import (
	"testing"

	"go.uber.org/zap"
)

func TestFuncsRegisterAndLookup(t *testing.T) {
	f := NewFuncs()

	if _, ok := f.Lookup("missing"); ok {
		t.Fatal("Lookup() found an unregistered name")
	}

	var got any
	f.Register("hook", func(arg any) { got = arg })

	fn, ok := f.Lookup("hook")
	if !ok {
		t.Fatal("Lookup() missed a registered name")
	}
	fn("payload")
	if got != "payload" {
		t.Errorf("argument = %v, want payload", got)
	}
}

func TestFuncsRebind(t *testing.T) {
	f := NewFuncs()

	var which string
	f.Register("hook", func(any) { which = "first" })
	f.Register("hook", func(any) { which = "second" })

	fn, _ := f.Lookup("hook")
	fn(nil)
	if which != "second" {
		t.Errorf("rebind did not replace the binding: %q", which)
	}
}

func TestFuncsUnregisterWithNil(t *testing.T) {
	f := NewFuncs()
	f.Register("hook", func(any) {})
	f.Register("hook", nil)

	if _, ok := f.Lookup("hook"); ok {
		t.Fatal("nil Register did not remove the binding")
	}
}

func TestFuncsCall(t *testing.T) {
	f := NewFuncs()
	log := zap.NewNop()

	var ran bool
	f.Register("ok", func(any) { ran = true })
	f.Register("boom", func(any) { panic("hook failed") })

	if !f.call("ok", nil, log) {
		t.Error("call() reported a miss for a registered name")
	}
	if !ran {
		t.Error("registered function did not run")
	}

	if f.call("missing", nil, log) {
		t.Error("call() reported success for an unregistered name")
	}

	// A panicking hook is recovered, and still counts as resolved.
	if !f.call("boom", nil, log) {
		t.Error("call() reported a miss for a panicking hook")
	}
}
