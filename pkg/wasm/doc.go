// Package wasm contains the small amount of WebAssembly binary tooling the
// edge connector needs without depending on an external toolchain.
//
// # Overview
//
// The package has three parts:
//
//   - An encoder (Module, Code) used to assemble Rule Programs and test
//     fixtures directly into the binary format.
//   - A section-level parser (Parse, Binary) that splits a module into its
//     sections without interpreting most of them.
//   - A fuel meter (Meter) that rewrites every function body of an untrusted
//     module so that each executed instruction is charged against a mutable
//     i64 global. The sandbox reads that global after a call to tell fuel
//     exhaustion apart from other traps.
//
// # Metering
//
// Function bodies are split into straight-line segments that end at a control
// instruction. Each segment is prefixed with:
//
//	global.get $fuel
//	i64.const  <instructions in segment>
//	i64.sub
//	global.set $fuel
//	global.get $fuel
//	i64.const  0
//	i64.lt_s
//	if
//	  unreachable
//	end
//
// Branch targets in WebAssembly are always the start of a loop body or the
// instruction after an end, and both are segment starts, so a segment is
// charged exactly once per execution. The cost is a pure function of the
// executed path, which makes fuel accounting deterministic.
//
// Proposals beyond bulk memory, reference types, sign extension and
// saturating conversions (SIMD, threads, tail calls, exceptions) are rejected
// by the meter.
package wasm
