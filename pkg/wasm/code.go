package wasm

// blockEmpty is the block type of a block without parameters or results.
const blockEmpty byte = 0x40

// Code assembles a function body. Methods append one instruction and return
// the receiver so bodies read top to bottom.
//
//	body := wasm.NewCode().
//		LocalGet(0).I32Const(1).Op(wasm.OpI32Add).
//		End().Bytes()
type Code struct {
	b []byte
}

// NewCode returns an empty body.
func NewCode() *Code { return &Code{} }

// Bytes returns the encoded instructions.
func (c *Code) Bytes() []byte { return c.b }

// Len returns the number of encoded bytes so far.
func (c *Code) Len() int { return len(c.b) }

// Op appends an instruction without immediates.
func (c *Code) Op(op byte) *Code {
	c.b = append(c.b, op)
	return c
}

func (c *Code) u32(op byte, v uint32) *Code {
	c.b = AppendUleb32(append(c.b, op), v)
	return c
}

func (c *Code) Unreachable() *Code { return c.Op(OpUnreachable) }
func (c *Code) Nop() *Code         { return c.Op(OpNop) }
func (c *Code) Else() *Code        { return c.Op(OpElse) }
func (c *Code) End() *Code         { return c.Op(OpEnd) }
func (c *Code) Return() *Code      { return c.Op(OpReturn) }
func (c *Code) Drop() *Code        { return c.Op(OpDrop) }

// Block opens a block without results.
func (c *Code) Block() *Code { return c.Op(OpBlock).Op(blockEmpty) }

// Loop opens a loop without results.
func (c *Code) Loop() *Code { return c.Op(OpLoop).Op(blockEmpty) }

// If opens an if without results.
func (c *Code) If() *Code { return c.Op(OpIf).Op(blockEmpty) }

// IfResult opens an if producing one value of type t.
func (c *Code) IfResult(t ValType) *Code { return c.Op(OpIf).Op(byte(t)) }

func (c *Code) Br(depth uint32) *Code    { return c.u32(OpBr, depth) }
func (c *Code) BrIf(depth uint32) *Code  { return c.u32(OpBrIf, depth) }
func (c *Code) Call(fn uint32) *Code     { return c.u32(OpCall, fn) }
func (c *Code) LocalGet(i uint32) *Code  { return c.u32(OpLocalGet, i) }
func (c *Code) LocalSet(i uint32) *Code  { return c.u32(OpLocalSet, i) }
func (c *Code) LocalTee(i uint32) *Code  { return c.u32(OpLocalTee, i) }
func (c *Code) GlobalGet(i uint32) *Code { return c.u32(OpGlobalGet, i) }
func (c *Code) GlobalSet(i uint32) *Code { return c.u32(OpGlobalSet, i) }
func (c *Code) MemoryGrow() *Code        { return c.u32(OpMemoryGrow, 0) }
func (c *Code) MemorySize() *Code        { return c.u32(OpMemorySize, 0) }

// I32Const pushes an i32 constant.
func (c *Code) I32Const(v int32) *Code {
	c.b = AppendSleb32(append(c.b, OpI32Const), v)
	return c
}

// I64Const pushes an i64 constant.
func (c *Code) I64Const(v int64) *Code {
	c.b = AppendSleb64(append(c.b, OpI64Const), v)
	return c
}

// Mem appends a load or store with its memarg.
func (c *Code) Mem(op byte, align, offset uint32) *Code {
	c.b = append(c.b, op)
	c.b = AppendUleb32(c.b, align)
	c.b = AppendUleb32(c.b, offset)
	return c
}

// BrTable appends br_table with the given targets and default.
func (c *Code) BrTable(targets []uint32, def uint32) *Code {
	c.b = append(c.b, OpBrTable)
	c.b = AppendUleb32(c.b, uint32(len(targets)))
	for _, t := range targets {
		c.b = AppendUleb32(c.b, t)
	}
	c.b = AppendUleb32(c.b, def)
	return c
}
