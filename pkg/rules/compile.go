package rules

import (
	"fmt"

	"github.com/hadijannat/Nano-Wasm-Edge-Connector/pkg/wasm"
)

// Names of the policy ABI.
const (
	HostModule        = "host"
	HostLog           = "log"
	ExportMemory      = "memory"
	ExportInputBuffer = "get_input_buffer"
	ExportEvaluate    = "evaluate_access"

	// VersionSection is the custom section carrying the rule set version.
	VersionSection = "edge.version"
)

const (
	pageSize   = 65536
	dataOffset = 16
	minInput   = 1024
)

// Function indices; the host import comes first.
const (
	fnLog uint32 = iota
	fnInputBuffer
	fnEvaluate
	fnContains
)

// Local indices of contains(hay, hayLen, needle, needleLen).
const (
	locHay uint32 = iota
	locHayLen
	locNeedle
	locNeedleLen
	locI
	locJ
)

type span struct {
	off, len uint32
}

type layout struct {
	data        []byte
	strings     map[string]span
	inputOffset uint32
}

func (l *layout) intern(s string) span {
	if sp, ok := l.strings[s]; ok {
		return sp
	}
	sp := span{off: dataOffset + uint32(len(l.data)), len: uint32(len(s))}
	l.data = append(l.data, s...)
	l.strings[s] = sp
	return sp
}

func layoutFor(rs *RuleSet) *layout {
	l := &layout{strings: make(map[string]span)}
	l.intern(ReasonInvalidInput)
	for _, r := range rs.Rules {
		l.intern(r.Pattern)
		l.intern(r.Reason)
		for _, ref := range r.Refinements {
			l.intern(ref.Pattern)
			l.intern(ref.Reason)
		}
	}
	l.intern(rs.Default.Reason)

	end := (dataOffset + uint32(len(l.data)) + 15) &^ 15
	l.inputOffset = max(minInput, end)
	return l
}

// InputOffset returns the address compiled programs report from
// get_input_buffer.
func (rs *RuleSet) InputOffset() uint32 {
	return layoutFor(rs).inputOffset
}

// Compile validates the rule set and encodes it as a policy artifact.
func Compile(rs *RuleSet) ([]byte, error) {
	if err := rs.Validate(); err != nil {
		return nil, err
	}
	l := layoutFor(rs)

	m := &wasm.Module{
		Types: []wasm.FuncType{
			{Params: []wasm.ValType{wasm.I32, wasm.I32}},
			{Results: []wasm.ValType{wasm.I32}},
			{Params: []wasm.ValType{wasm.I32, wasm.I32}, Results: []wasm.ValType{wasm.I32}},
			{Params: []wasm.ValType{wasm.I32, wasm.I32, wasm.I32, wasm.I32}, Results: []wasm.ValType{wasm.I32}},
		},
		Imports: []wasm.Import{{Module: HostModule, Name: HostLog, TypeIndex: 0}},
		Functions: []wasm.Function{
			{TypeIndex: 1, Body: wasm.NewCode().I32Const(int32(l.inputOffset)).End().Bytes()},
			{TypeIndex: 2, Body: evaluateBody(rs, l)},
			{TypeIndex: 3, Locals: []wasm.ValType{wasm.I32, wasm.I32}, Body: containsBody()},
		},
		Memory: &wasm.Limits{Min: 1, Max: 1, HasMax: true},
		Exports: []wasm.Export{
			{Name: ExportMemory, Kind: wasm.KindMemory, Index: 0},
			{Name: ExportInputBuffer, Kind: wasm.KindFunc, Index: fnInputBuffer},
			{Name: ExportEvaluate, Kind: wasm.KindFunc, Index: fnEvaluate},
		},
		Data: []wasm.DataSegment{{Offset: dataOffset, Bytes: l.data}},
	}

	bin := m.Encode()
	if rs.Version != "" {
		bin = wasm.AppendCustomSection(bin, VersionSection, []byte(rs.Version))
	}
	return bin, nil
}

// MustCompile is Compile for rule sets known to be valid.
func MustCompile(rs *RuleSet) []byte {
	bin, err := Compile(rs)
	if err != nil {
		panic(fmt.Sprintf("rules: %v", err))
	}
	return bin
}

func decisionValue(d Decision) int32 {
	if d == Allow {
		return 1
	}
	return 0
}

// emitDecide logs reason and returns the decision.
func emitDecide(c *wasm.Code, l *layout, reason string, d Decision) {
	if reason != "" {
		sp := l.strings[reason]
		c.I32Const(int32(sp.off)).I32Const(int32(sp.len)).Call(fnLog)
	}
	c.I32Const(decisionValue(d))
}

// emitContains pushes whether pattern occurs in the input.
func emitContains(c *wasm.Code, l *layout, pattern string) {
	sp := l.strings[pattern]
	c.LocalGet(0).LocalGet(1).I32Const(int32(sp.off)).I32Const(int32(sp.len)).Call(fnContains)
}

// evaluateBody is evaluate_access(ptr, len).
func evaluateBody(rs *RuleSet, l *layout) []byte {
	c := wasm.NewCode()

	c.LocalGet(1).I32Const(0).Op(wasm.OpI32LeS)
	c.LocalGet(1).I32Const(int32(rs.Limit())).Op(wasm.OpI32GtS).Op(wasm.OpI32Or)
	c.LocalGet(0).I32Const(0).Op(wasm.OpI32LtS).Op(wasm.OpI32Or)
	c.If()
	emitDecide(c, l, ReasonInvalidInput, Deny)
	c.Return().End()

	for _, r := range rs.Rules {
		emitContains(c, l, r.Pattern)
		c.If()
		for _, ref := range r.Refinements {
			emitContains(c, l, ref.Pattern)
			c.If()
			emitDecide(c, l, ref.Reason, ref.Decision)
			c.Return().End()
		}
		emitDecide(c, l, r.Reason, r.Decision)
		c.Return().End()
	}

	emitDecide(c, l, rs.Default.Reason, rs.Default.Decision)
	return c.End().Bytes()
}

// containsBody is a naive substring scan over guest memory.
func containsBody() []byte {
	c := wasm.NewCode()

	c.LocalGet(locNeedleLen).LocalGet(locHayLen).Op(wasm.OpI32GtS)
	c.If().I32Const(0).Return().End()
	c.LocalGet(locNeedleLen).Op(wasm.OpI32Eqz)
	c.If().I32Const(1).Return().End()

	c.I32Const(0).LocalSet(locI)
	c.Block().Loop()
	{
		c.LocalGet(locI).LocalGet(locHayLen).LocalGet(locNeedleLen).Op(wasm.OpI32Sub).Op(wasm.OpI32GtS).BrIf(1)

		c.I32Const(0).LocalSet(locJ)
		c.Block().Loop()
		{
			c.LocalGet(locJ).LocalGet(locNeedleLen).Op(wasm.OpI32Eq)
			c.If().I32Const(1).Return().End()

			c.LocalGet(locHay).LocalGet(locI).Op(wasm.OpI32Add).LocalGet(locJ).Op(wasm.OpI32Add).Mem(wasm.OpI32Load8U, 0, 0)
			c.LocalGet(locNeedle).LocalGet(locJ).Op(wasm.OpI32Add).Mem(wasm.OpI32Load8U, 0, 0)
			c.Op(wasm.OpI32Ne).BrIf(1)

			c.LocalGet(locJ).I32Const(1).Op(wasm.OpI32Add).LocalSet(locJ)
			c.Br(0)
		}
		c.End().End()

		c.LocalGet(locI).I32Const(1).Op(wasm.OpI32Add).LocalSet(locI)
		c.Br(0)
	}
	c.End().End()

	c.I32Const(0)
	return c.End().Bytes()
}
