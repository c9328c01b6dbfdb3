package wasm

// Magic and version of the WebAssembly binary format.
var header = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

// ValType is a WebAssembly value type.
type ValType byte

// Value types.
const (
	I32       ValType = 0x7f
	I64       ValType = 0x7e
	F32       ValType = 0x7d
	F64       ValType = 0x7c
	V128      ValType = 0x7b
	FuncRef   ValType = 0x70
	ExternRef ValType = 0x6f
)

// String returns the text-format name of the type.
func (t ValType) String() string {
	switch t {
	case I32:
		return "i32"
	case I64:
		return "i64"
	case F32:
		return "f32"
	case F64:
		return "f64"
	case V128:
		return "v128"
	case FuncRef:
		return "funcref"
	case ExternRef:
		return "externref"
	default:
		return "unknown"
	}
}

// ExternKind identifies what an import or export refers to.
type ExternKind byte

// Extern kinds.
const (
	KindFunc   ExternKind = 0x00
	KindTable  ExternKind = 0x01
	KindMemory ExternKind = 0x02
	KindGlobal ExternKind = 0x03
)

// FuncType is a function signature.
type FuncType struct {
	Params  []ValType
	Results []ValType
}

// Import is a function import. Other import kinds are never emitted by the
// connector's own modules.
type Import struct {
	Module    string
	Name      string
	TypeIndex uint32
}

// Function is a defined function. Body is a complete expression including the
// terminating end opcode, as produced by Code.Bytes.
type Function struct {
	TypeIndex uint32
	Locals    []ValType
	Body      []byte
}

// Limits bounds a memory in 64 KiB pages.
type Limits struct {
	Min    uint32
	Max    uint32
	HasMax bool
}

// Global is a defined global with a constant initializer expression
// (including the end opcode).
type Global struct {
	Type    ValType
	Mutable bool
	Init    []byte
}

// Export exposes an index under a name.
type Export struct {
	Name  string
	Kind  ExternKind
	Index uint32
}

// DataSegment is an active data segment for memory 0.
type DataSegment struct {
	Offset uint32
	Bytes  []byte
}

// Module is an in-memory description of a module that can be encoded into the
// binary format. Function indices start after the imports.
type Module struct {
	Types     []FuncType
	Imports   []Import
	Functions []Function
	Memory    *Limits
	Globals   []Global
	Exports   []Export
	Start     *uint32
	Data      []DataSegment
}

// ConstI32 returns a constant expression producing v.
func ConstI32(v int32) []byte {
	return append(AppendSleb32([]byte{OpI32Const}, v), OpEnd)
}

// ConstI64 returns a constant expression producing v.
func ConstI64(v int64) []byte {
	return append(AppendSleb64([]byte{OpI64Const}, v), OpEnd)
}

// Encode serializes the module.
func (m *Module) Encode() []byte {
	out := append([]byte(nil), header...)

	if len(m.Types) > 0 {
		var p []byte
		p = AppendUleb32(p, uint32(len(m.Types)))
		for _, t := range m.Types {
			p = append(p, 0x60)
			p = appendValTypes(p, t.Params)
			p = appendValTypes(p, t.Results)
		}
		out = appendSection(out, SectionType, p)
	}

	if len(m.Imports) > 0 {
		var p []byte
		p = AppendUleb32(p, uint32(len(m.Imports)))
		for _, imp := range m.Imports {
			p = appendName(p, imp.Module)
			p = appendName(p, imp.Name)
			p = append(p, byte(KindFunc))
			p = AppendUleb32(p, imp.TypeIndex)
		}
		out = appendSection(out, SectionImport, p)
	}

	if len(m.Functions) > 0 {
		var p []byte
		p = AppendUleb32(p, uint32(len(m.Functions)))
		for _, f := range m.Functions {
			p = AppendUleb32(p, f.TypeIndex)
		}
		out = appendSection(out, SectionFunction, p)
	}

	if m.Memory != nil {
		p := AppendUleb32(nil, 1)
		p = appendLimits(p, *m.Memory)
		out = appendSection(out, SectionMemory, p)
	}

	if len(m.Globals) > 0 {
		var p []byte
		p = AppendUleb32(p, uint32(len(m.Globals)))
		for _, g := range m.Globals {
			p = append(p, byte(g.Type))
			if g.Mutable {
				p = append(p, 0x01)
			} else {
				p = append(p, 0x00)
			}
			p = append(p, g.Init...)
		}
		out = appendSection(out, SectionGlobal, p)
	}

	if len(m.Exports) > 0 {
		var p []byte
		p = AppendUleb32(p, uint32(len(m.Exports)))
		for _, e := range m.Exports {
			p = appendExport(p, e)
		}
		out = appendSection(out, SectionExport, p)
	}

	if m.Start != nil {
		out = appendSection(out, SectionStart, AppendUleb32(nil, *m.Start))
	}

	if len(m.Functions) > 0 {
		var p []byte
		p = AppendUleb32(p, uint32(len(m.Functions)))
		for _, f := range m.Functions {
			body := appendLocals(nil, f.Locals)
			body = append(body, f.Body...)
			p = AppendUleb32(p, uint32(len(body)))
			p = append(p, body...)
		}
		out = appendSection(out, SectionCode, p)
	}

	if len(m.Data) > 0 {
		var p []byte
		p = AppendUleb32(p, uint32(len(m.Data)))
		for _, d := range m.Data {
			p = append(p, 0x00) // active, memory 0
			p = append(p, ConstI32(int32(d.Offset))...)
			p = AppendUleb32(p, uint32(len(d.Bytes)))
			p = append(p, d.Bytes...)
		}
		out = appendSection(out, SectionData, p)
	}

	return out
}

func appendSection(out []byte, id SectionID, payload []byte) []byte {
	out = append(out, byte(id))
	out = AppendUleb32(out, uint32(len(payload)))
	return append(out, payload...)
}

func appendValTypes(b []byte, ts []ValType) []byte {
	b = AppendUleb32(b, uint32(len(ts)))
	for _, t := range ts {
		b = append(b, byte(t))
	}
	return b
}

func appendName(b []byte, s string) []byte {
	b = AppendUleb32(b, uint32(len(s)))
	return append(b, s...)
}

func appendLimits(b []byte, l Limits) []byte {
	if l.HasMax {
		b = append(b, 0x01)
		b = AppendUleb32(b, l.Min)
		return AppendUleb32(b, l.Max)
	}
	b = append(b, 0x00)
	return AppendUleb32(b, l.Min)
}

func appendExport(b []byte, e Export) []byte {
	b = appendName(b, e.Name)
	b = append(b, byte(e.Kind))
	return AppendUleb32(b, e.Index)
}

// appendLocals run-length encodes local declarations.
func appendLocals(b []byte, locals []ValType) []byte {
	type group struct {
		n uint32
		t ValType
	}
	var groups []group
	for _, t := range locals {
		if len(groups) > 0 && groups[len(groups)-1].t == t {
			groups[len(groups)-1].n++
			continue
		}
		groups = append(groups, group{n: 1, t: t})
	}
	b = AppendUleb32(b, uint32(len(groups)))
	for _, g := range groups {
		b = AppendUleb32(b, g.n)
		b = append(b, byte(g.t))
	}
	return b
}

// String returns the text-format keyword of the kind.
func (k ExternKind) String() string {
	switch k {
	case KindFunc:
		return "func"
	case KindTable:
		return "table"
	case KindMemory:
		return "memory"
	case KindGlobal:
		return "global"
	default:
		return "unknown"
	}
}
