package wasm

import (
	"errors"
	"fmt"
)

// DefaultFuelExport is the export name of the injected fuel global.
const DefaultFuelExport = "__edge_fuel"

// ErrFuelExportTaken is returned when the module already exports the fuel
// global's name.
var ErrFuelExportTaken = errors.New("module already exports the fuel global name")

// MeterOptions configures Meter.
type MeterOptions struct {
	// Budget is the initial value of the fuel global. Every instantiation
	// starts from this value.
	Budget int64

	// ExportName is the export name of the fuel global
	// (default DefaultFuelExport).
	ExportName string
}

// MeterReport summarizes an instrumentation pass.
type MeterReport struct {
	Functions    int
	Segments     int
	Instructions int
	FuelGlobal   uint32
}

// MeterError locates a body that could not be instrumented.
type MeterError struct {
	Function int
	Offset   int
	Cause    error
}

// Error implements the error interface.
func (e *MeterError) Error() string {
	return fmt.Sprintf("function %d at offset %d: %v", e.Function, e.Offset, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *MeterError) Unwrap() error {
	return e.Cause
}

// Meter instruments bin with fuel accounting and returns the rewritten binary.
// The input is not modified.
func Meter(bin []byte, opts MeterOptions) ([]byte, *MeterReport, error) {
	if opts.Budget <= 0 {
		return nil, nil, fmt.Errorf("fuel budget must be positive, got %d", opts.Budget)
	}
	if opts.ExportName == "" {
		opts.ExportName = DefaultFuelExport
	}

	mod, err := Parse(bin)
	if err != nil {
		return nil, nil, err
	}

	names, err := mod.ExportNames()
	if err != nil {
		return nil, nil, fmt.Errorf("export section: %w", err)
	}
	for _, n := range names {
		if n == opts.ExportName {
			return nil, nil, ErrFuelExportTaken
		}
	}

	imported, err := mod.ImportedGlobals()
	if err != nil {
		return nil, nil, fmt.Errorf("import section: %w", err)
	}
	defined, err := mod.DefinedGlobals()
	if err != nil {
		return nil, nil, fmt.Errorf("global section: %w", err)
	}
	fuel := imported + defined
	report := &MeterReport{FuelGlobal: fuel}

	// global: mutable i64 = budget
	entry := []byte{byte(I64), 0x01}
	entry = append(entry, ConstI64(opts.Budget)...)
	var payload []byte
	if s := mod.Section(SectionGlobal); s != nil {
		payload = s.Payload
	}
	if payload, err = appendVecEntry(payload, entry); err != nil {
		return nil, nil, fmt.Errorf("global section: %w", err)
	}
	mod.setSection(SectionGlobal, payload)

	payload = nil
	if s := mod.Section(SectionExport); s != nil {
		payload = s.Payload
	}
	exp := appendExport(nil, Export{Name: opts.ExportName, Kind: KindGlobal, Index: fuel})
	if payload, err = appendVecEntry(payload, exp); err != nil {
		return nil, nil, fmt.Errorf("export section: %w", err)
	}
	mod.setSection(SectionExport, payload)

	if s := mod.Section(SectionCode); s != nil {
		code, err := meterCode(s.Payload, fuel, report)
		if err != nil {
			return nil, nil, err
		}
		s.Payload = code
	}

	return mod.Encode(), report, nil
}

func meterCode(payload []byte, fuel uint32, report *MeterReport) ([]byte, error) {
	r := &reader{b: payload}
	count, err := r.u32()
	if err != nil {
		return nil, fmt.Errorf("code section: %w", err)
	}

	out := AppendUleb32(nil, count)
	for i := uint32(0); i < count; i++ {
		size, err := r.u32()
		if err != nil {
			return nil, &MeterError{Function: int(i), Offset: r.p, Cause: err}
		}
		body, err := r.readBytes(size)
		if err != nil {
			return nil, &MeterError{Function: int(i), Offset: r.p, Cause: err}
		}
		metered, err := meterBody(body, fuel, report)
		if err != nil {
			var me *MeterError
			if errors.As(err, &me) {
				me.Function = int(i)
			}
			return nil, err
		}
		out = AppendUleb32(out, uint32(len(metered)))
		out = append(out, metered...)
		report.Functions++
	}
	if r.p != len(payload) {
		return nil, fmt.Errorf("code section: %d trailing bytes", len(payload)-r.p)
	}
	return out, nil
}

func meterBody(body []byte, fuel uint32, report *MeterReport) ([]byte, error) {
	r := &reader{b: body}
	groups, err := r.u32()
	if err != nil {
		return nil, &MeterError{Offset: r.p, Cause: err}
	}
	for g := uint32(0); g < groups; g++ {
		if _, err := r.u32(); err != nil {
			return nil, &MeterError{Offset: r.p, Cause: err}
		}
		if _, err := r.readByte(); err != nil {
			return nil, &MeterError{Offset: r.p, Cause: err}
		}
	}

	out := make([]byte, 0, len(body)+len(body)/2)
	out = append(out, body[:r.p]...)

	p := r.p
	segStart, n := p, 0
	last := byte(OpNop)
	for p < len(body) {
		op, size, err := decodeInstr(body[p:])
		if err != nil {
			return nil, &MeterError{Offset: p, Cause: err}
		}
		p += size
		n++
		last = op
		if isSegmentEnd(op) {
			out = appendCharge(out, fuel, int64(n))
			out = append(out, body[segStart:p]...)
			report.Segments++
			report.Instructions += n
			segStart, n = p, 0
		}
	}
	if n != 0 || last != OpEnd {
		return nil, &MeterError{Offset: p, Cause: errors.New("body does not end with end")}
	}
	return out, nil
}

// appendCharge emits the stack-neutral fuel check for a segment of cost
// instructions.
func appendCharge(out []byte, fuel uint32, cost int64) []byte {
	out = AppendUleb32(append(out, OpGlobalGet), fuel)
	out = AppendSleb64(append(out, OpI64Const), cost)
	out = append(out, OpI64Sub)
	out = AppendUleb32(append(out, OpGlobalSet), fuel)
	out = AppendUleb32(append(out, OpGlobalGet), fuel)
	out = append(out, OpI64Const, 0x00, OpI64LtS)
	out = append(out, OpIf, blockEmpty, OpUnreachable, OpEnd)
	return out
}
