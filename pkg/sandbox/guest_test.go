package sandbox

import (
	"github.com/hadijannat/Nano-Wasm-Edge-Connector/pkg/rules"
	"github.com/hadijannat/Nano-Wasm-Edge-Connector/pkg/wasm"
)

// Function indices of test guests: host.log is 0.
const (
	guestInputBuffer uint32 = 1
	guestEvaluate    uint32 = 2
)

type guestSpec struct {
	inputOffset int32
	evaluate    []byte
	memory      *wasm.Limits
	exports     []wasm.Export
	imports     []wasm.Import
	evalType    uint32
	data        []wasm.DataSegment
}

// guest assembles a module implementing the ABI around an evaluate_access
// body. Zero values give a well-formed guest.
func guest(s guestSpec) []byte {
	if s.inputOffset == 0 {
		s.inputOffset = 1024
	}
	if s.memory == nil {
		s.memory = &wasm.Limits{Min: 1, Max: 1, HasMax: true}
	}
	if s.imports == nil {
		s.imports = []wasm.Import{{Module: rules.HostModule, Name: rules.HostLog, TypeIndex: 0}}
	}
	if s.exports == nil {
		s.exports = []wasm.Export{
			{Name: rules.ExportMemory, Kind: wasm.KindMemory, Index: 0},
			{Name: rules.ExportInputBuffer, Kind: wasm.KindFunc, Index: guestInputBuffer},
			{Name: rules.ExportEvaluate, Kind: wasm.KindFunc, Index: guestEvaluate},
		}
	}
	if s.evalType == 0 {
		s.evalType = 2
	}
	m := &wasm.Module{
		Types: []wasm.FuncType{
			{Params: []wasm.ValType{wasm.I32, wasm.I32}},
			{Results: []wasm.ValType{wasm.I32}},
			{Params: []wasm.ValType{wasm.I32, wasm.I32}, Results: []wasm.ValType{wasm.I32}},
			{Params: []wasm.ValType{wasm.I32}, Results: []wasm.ValType{wasm.I32}},
		},
		Imports: s.imports,
		Functions: []wasm.Function{
			{TypeIndex: 1, Body: wasm.NewCode().I32Const(s.inputOffset).End().Bytes()},
			{TypeIndex: s.evalType, Body: s.evaluate},
		},
		Memory:  s.memory,
		Exports: s.exports,
		Data:    s.data,
	}
	return m.Encode()
}

func returns(v int32) []byte {
	return wasm.NewCode().I32Const(v).End().Bytes()
}

var (
	spinBody = wasm.NewCode().Loop().Br(0).End().I32Const(0).End().Bytes()

	outOfBoundsBody = wasm.NewCode().
		I32Const(-16).Mem(wasm.OpI32Load, 2, 0).
		End().Bytes()

	unreachableBody = wasm.NewCode().Unreachable().End().Bytes()

	recurseBody = wasm.NewCode().
		LocalGet(0).LocalGet(1).Call(guestEvaluate).
		End().Bytes()

	// logs "hello" from offset 16, then an out of range pointer, then allows.
	logBody = wasm.NewCode().
		I32Const(16).I32Const(5).Call(0).
		I32Const(0x7fff0000).I32Const(8).Call(0).
		I32Const(1).
		End().Bytes()

	// allows only when the marker byte is still unset, then sets it. A
	// reused instance would deny every call after the first.
	stickyBody = wasm.NewCode().
		I32Const(4096).Mem(wasm.OpI32Load8U, 0, 0).Op(wasm.OpI32Eqz).
		I32Const(4096).I32Const(0x7a).Mem(wasm.OpI32Store8, 0, 0).
		End().Bytes()
)
