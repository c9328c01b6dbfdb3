package wasm

import (
	"bytes"
	"errors"
	"testing"
)

func sampleModule() *Module {
	return &Module{
		Types: []FuncType{
			{Params: []ValType{I32, I32}},
			{Results: []ValType{I32}},
		},
		Imports:   []Import{{Module: "host", Name: "log", TypeIndex: 0}},
		Functions: []Function{{TypeIndex: 1, Body: NewCode().I32Const(7).End().Bytes()}},
		Memory:    &Limits{Min: 1, Max: 1, HasMax: true},
		Globals:   []Global{{Type: I32, Mutable: true, Init: ConstI32(3)}},
		Exports: []Export{
			{Name: "seven", Kind: KindFunc, Index: 1},
			{Name: "memory", Kind: KindMemory, Index: 0},
		},
		Data: []DataSegment{{Offset: 16, Bytes: []byte("hello")}},
	}
}

func TestParseRoundTrip(t *testing.T) {
	bin := sampleModule().Encode()

	b, err := Parse(bin)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	var ids []SectionID
	for _, s := range b.Sections {
		ids = append(ids, s.ID)
	}
	want := []SectionID{SectionType, SectionImport, SectionFunction, SectionMemory,
		SectionGlobal, SectionExport, SectionCode, SectionData}
	if len(ids) != len(want) {
		t.Fatalf("sections = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("sections = %v, want %v", ids, want)
		}
	}

	if got := b.Encode(); !bytes.Equal(got, bin) {
		t.Errorf("Encode() differs from input")
	}

	names, err := b.ExportNames()
	if err != nil {
		t.Fatalf("ExportNames() error = %v", err)
	}
	if len(names) != 2 || names[0] != "seven" || names[1] != "memory" {
		t.Errorf("ExportNames() = %v", names)
	}

	if n, _ := b.ImportedGlobals(); n != 0 {
		t.Errorf("ImportedGlobals() = %d, want 0", n)
	}
	if n, _ := b.DefinedGlobals(); n != 1 {
		t.Errorf("DefinedGlobals() = %d, want 1", n)
	}
}

func TestParseErrors(t *testing.T) {
	valid := sampleModule().Encode()

	tests := []struct {
		name    string
		bin     []byte
		wantErr error
	}{
		{name: "empty", bin: nil, wantErr: ErrBadHeader},
		{name: "wrong magic", bin: []byte("\x00asn\x01\x00\x00\x00"), wantErr: ErrBadHeader},
		{name: "wrong version", bin: []byte("\x00asm\x02\x00\x00\x00"), wantErr: ErrBadHeader},
		{name: "truncated", bin: valid[:len(valid)-3], wantErr: ErrUnexpectedEnd},
		{
			name:    "out of order",
			bin:     append(append([]byte(nil), header...), 0x03, 0x01, 0x00, 0x01, 0x01, 0x00),
			wantErr: ErrSectionOrder,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.bin)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Parse() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseUnknownSection(t *testing.T) {
	bin := append(append([]byte(nil), header...), 0x2a, 0x00)
	if _, err := Parse(bin); err == nil {
		t.Fatal("Parse() accepted unknown section id")
	}
}

func TestParseKeepsCustomSections(t *testing.T) {
	custom := appendName(nil, "name")
	bin := append(append([]byte(nil), header...), 0x00)
	bin = AppendUleb32(bin, uint32(len(custom)))
	bin = append(bin, custom...)

	b, err := Parse(bin)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(b.Sections) != 1 || b.Sections[0].ID != SectionCustom {
		t.Fatalf("sections = %+v", b.Sections)
	}
}

func TestSetSectionInsertsInOrder(t *testing.T) {
	m := sampleModule()
	m.Globals = nil
	b, err := Parse(m.Encode())
	if err != nil {
		t.Fatal(err)
	}

	b.setSection(SectionGlobal, AppendUleb32(nil, 0))

	var prev int
	for _, s := range b.Sections {
		rank := sectionRank[s.ID]
		if rank <= prev {
			t.Fatalf("section %d out of order after insert", s.ID)
		}
		prev = rank
	}
	if _, err := Parse(b.Encode()); err != nil {
		t.Errorf("re-parse after insert: %v", err)
	}
}

func TestLocalsRunLength(t *testing.T) {
	got := appendLocals(nil, []ValType{I32, I32, I64, I32})
	want := []byte{0x03, 0x02, byte(I32), 0x01, byte(I64), 0x01, byte(I32)}
	if !bytes.Equal(got, want) {
		t.Errorf("appendLocals() = %x, want %x", got, want)
	}
}

func TestCustomSection(t *testing.T) {
	bin := AppendCustomSection(sampleModule().Encode(), "edge.version", []byte("v3"))
	b, err := Parse(bin)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	data, ok := b.Custom("edge.version")
	if !ok || string(data) != "v3" {
		t.Errorf("Custom() = %q, %v, want v3", data, ok)
	}
	if _, ok := b.Custom("missing"); ok {
		t.Error("Custom() found a missing section")
	}
}

func TestImportsWithGlobals(t *testing.T) {
	// (import "env" "g" (global i64)) (import "host" "log" (func (type 0)))
	var p []byte
	p = AppendUleb32(p, 2)
	p = appendName(p, "env")
	p = appendName(p, "g")
	p = append(p, byte(KindGlobal), byte(I64), 0x00)
	p = appendName(p, "host")
	p = appendName(p, "log")
	p = append(p, byte(KindFunc), 0x00)

	bin := append([]byte(nil), header...)
	bin = appendSection(bin, SectionImport, p)

	b, err := Parse(bin)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	imports, err := b.Imports()
	if err != nil {
		t.Fatalf("Imports() error = %v", err)
	}
	if len(imports) != 2 || imports[0].Kind != KindGlobal || imports[1].Name != "log" {
		t.Errorf("Imports() = %+v", imports)
	}
	if n, err := b.ImportedGlobals(); err != nil || n != 1 {
		t.Errorf("ImportedGlobals() = %d, %v, want 1", n, err)
	}
}
