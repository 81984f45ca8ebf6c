package rvm

import (
	"github.com/clarete/rembed/rheap"
	"github.com/clarete/rembed/rvalue"
)

// vm_context.go implements rbuiltin.Context, the narrow callback
// surface a native method (Kernel#puts, Array#each, ...) uses to reach
// back into the VM that owns its call, mirroring the inversion the
// teacher uses for its own pluggable ImportLoader.

func (vm *VM) Heap() *rheap.Heap { return vm.heap }

// CallBlock invokes a block Value (a Proc heap reference) with args,
// the callback a native method uses to implement `each`/`map`/`times`
// without the VM exposing its dispatch loop directly.
func (vm *VM) CallBlock(block rvalue.Value, args []rvalue.Value) (rvalue.Value, error) {
	proc, ok := procFromValue(block)
	if !ok {
		return rvalue.Nil, &RuntimeError{Reason: "no block given"}
	}
	return vm.Call(proc, rvalue.Nil, args, rvalue.Nil, rvalue.Nil)
}

// Raise lets a native method signal a language-level exception the
// same way RAISE does from generated bytecode.
func (vm *VM) Raise(v rvalue.Value) error {
	vm.exception, vm.hasExc = v, true
	return &RaisedError{Value: v}
}

func (vm *VM) Write(s string) { vm.writer(s) }
