package wasm

import "fmt"

// Control and variable opcodes.
const (
	OpUnreachable  byte = 0x00
	OpNop          byte = 0x01
	OpBlock        byte = 0x02
	OpLoop         byte = 0x03
	OpIf           byte = 0x04
	OpElse         byte = 0x05
	OpEnd          byte = 0x0b
	OpBr           byte = 0x0c
	OpBrIf         byte = 0x0d
	OpBrTable      byte = 0x0e
	OpReturn       byte = 0x0f
	OpCall         byte = 0x10
	OpCallIndirect byte = 0x11
	OpDrop         byte = 0x1a
	OpSelect       byte = 0x1b
	OpSelectT      byte = 0x1c
	OpLocalGet     byte = 0x20
	OpLocalSet     byte = 0x21
	OpLocalTee     byte = 0x22
	OpGlobalGet    byte = 0x23
	OpGlobalSet    byte = 0x24
	OpTableGet     byte = 0x25
	OpTableSet     byte = 0x26
)

// Memory opcodes.
const (
	OpI32Load    byte = 0x28
	OpI64Load    byte = 0x29
	OpI32Load8S  byte = 0x2c
	OpI32Load8U  byte = 0x2d
	OpI32Store   byte = 0x36
	OpI64Store   byte = 0x37
	OpI32Store8  byte = 0x3a
	OpMemorySize byte = 0x3f
	OpMemoryGrow byte = 0x40
)

// Numeric opcodes used by the connector's own code generation.
const (
	OpI32Const byte = 0x41
	OpI64Const byte = 0x42
	OpF32Const byte = 0x43
	OpF64Const byte = 0x44

	OpI32Eqz byte = 0x45
	OpI32Eq  byte = 0x46
	OpI32Ne  byte = 0x47
	OpI32LtS byte = 0x48
	OpI32LtU byte = 0x49
	OpI32GtS byte = 0x4a
	OpI32GtU byte = 0x4b
	OpI32LeS byte = 0x4c
	OpI32LeU byte = 0x4d
	OpI32GeS byte = 0x4e
	OpI32GeU byte = 0x4f
	OpI64LtS byte = 0x53

	OpI32Add  byte = 0x6a
	OpI32Sub  byte = 0x6b
	OpI32Mul  byte = 0x6c
	OpI32DivU byte = 0x6e
	OpI32And  byte = 0x71
	OpI32Or   byte = 0x72
	OpI64Sub  byte = 0x7d

	lastNumeric byte = 0xc4 // i64.extend32_s

	OpRefNull   byte = 0xd0
	OpRefIsNull byte = 0xd1
	OpRefFunc   byte = 0xd2

	opPrefixMisc   byte = 0xfc
	opPrefixSIMD   byte = 0xfd
	opPrefixAtomic byte = 0xfe
)

// UnsupportedOpcodeError reports an instruction the meter cannot account for.
type UnsupportedOpcodeError struct {
	Opcode byte
	Sub    uint32
	Prefix bool
}

// Error implements the error interface.
func (e *UnsupportedOpcodeError) Error() string {
	if e.Prefix {
		return fmt.Sprintf("unsupported opcode 0x%02x %d", e.Opcode, e.Sub)
	}
	return fmt.Sprintf("unsupported opcode 0x%02x", e.Opcode)
}

// isSegmentEnd reports whether op terminates a metered segment.
func isSegmentEnd(op byte) bool {
	switch op {
	case OpUnreachable, OpBlock, OpLoop, OpIf, OpElse, OpEnd,
		OpBr, OpBrIf, OpBrTable, OpReturn:
		return true
	}
	return false
}

// decodeInstr returns the opcode and encoded length of the instruction at the
// start of code.
func decodeInstr(code []byte) (byte, int, error) {
	if len(code) == 0 {
		return 0, 0, ErrUnexpectedEnd
	}
	op := code[0]
	p := 1

	u32 := func() error {
		_, n, err := readUleb32(code[p:])
		p += n
		return err
	}
	fixed := func(n int) error {
		if p+n > len(code) {
			return ErrUnexpectedEnd
		}
		p += n
		return nil
	}

	var err error
	switch {
	case op == OpUnreachable, op == OpNop, op == OpElse, op == OpEnd,
		op == OpReturn, op == OpDrop, op == OpSelect, op == OpRefIsNull:
		// no immediates

	case op == OpBlock, op == OpLoop, op == OpIf:
		err = skipBlockType(code, &p)

	case op == OpBr, op == OpBrIf, op == OpCall,
		op >= OpLocalGet && op <= OpTableSet,
		op == OpRefFunc:
		err = u32()

	case op == OpBrTable:
		var count uint32
		var n int
		count, n, err = readUleb32(code[p:])
		p += n
		for i := uint32(0); err == nil && i <= count; i++ {
			err = u32()
		}

	case op == OpCallIndirect:
		if err = u32(); err == nil {
			err = u32()
		}

	case op == OpSelectT:
		var count uint32
		var n int
		count, n, err = readUleb32(code[p:])
		p += n
		if err == nil {
			err = fixed(int(count))
		}

	case op >= OpI32Load && op <= 0x3e:
		if err = u32(); err == nil {
			err = u32()
		}

	case op == OpMemorySize, op == OpMemoryGrow:
		err = u32()

	case op == OpI32Const:
		var n int
		_, n, err = readSleb(code[p:], 5)
		p += n

	case op == OpI64Const:
		var n int
		_, n, err = readSleb(code[p:], 10)
		p += n

	case op == OpF32Const:
		err = fixed(4)

	case op == OpF64Const:
		err = fixed(8)

	case op >= OpI32Eqz && op <= lastNumeric:
		// numeric instructions carry no immediates

	case op == OpRefNull:
		err = fixed(1)

	case op == opPrefixMisc:
		var sub uint32
		var n int
		sub, n, err = readUleb32(code[p:])
		p += n
		if err != nil {
			break
		}
		switch {
		case sub <= 7: // saturating truncation
		case sub == 9, sub == 11, sub == 13, sub == 15, sub == 16, sub == 17:
			err = u32()
		case sub == 8, sub == 10, sub == 12, sub == 14:
			if err = u32(); err == nil {
				err = u32()
			}
		default:
			return op, 0, &UnsupportedOpcodeError{Opcode: op, Sub: sub, Prefix: true}
		}

	default:
		return op, 0, &UnsupportedOpcodeError{Opcode: op}
	}

	if err != nil {
		return op, 0, err
	}
	return op, p, nil
}

func skipBlockType(code []byte, p *int) error {
	if *p >= len(code) {
		return ErrUnexpectedEnd
	}
	switch ValType(code[*p]) {
	case 0x40, I32, I64, F32, F64, V128, FuncRef, ExternRef:
		*p++
		return nil
	}
	_, n, err := readSleb(code[*p:], 5)
	*p += n
	return err
}
