// Package sandbox runs policy artifacts in isolated wazero instances.
//
// An Engine compiles an artifact once into a Module and evaluates requests
// against it. Every evaluation gets a fresh instance with its own linear
// memory, call stack and fuel budget, and the instance is closed as soon as
// the call returns. Nothing survives from one evaluation to the next.
//
// Evaluations fail closed. Fuel exhaustion, a wall-clock timeout, an out of
// bounds access, a stack overflow, any other trap, or a module that does not
// honour the ABI yields a denied Outcome carrying a Fault. No faulted
// evaluation is ever reported as allowed.
//
// Fuel is injected at compile time by pkg/wasm: each straight-line segment
// of every function charges its instruction count against an exported
// mutable global and traps when the global goes negative.
//
// The guest ABI:
//
//	import "host" "log" (func (param i32 i32))
//	export "memory"           (memory)
//	export "get_input_buffer" (func (result i32))
//	export "evaluate_access"  (func (param i32 i32) (result i32))
//
// evaluate_access returns nonzero to allow and zero to deny.
package sandbox
