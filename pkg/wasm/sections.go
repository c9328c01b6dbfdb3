package wasm

import (
	"bytes"
	"errors"
	"fmt"
)

// SectionID identifies a module section.
type SectionID byte

// Section ids.
const (
	SectionCustom    SectionID = 0
	SectionType      SectionID = 1
	SectionImport    SectionID = 2
	SectionFunction  SectionID = 3
	SectionTable     SectionID = 4
	SectionMemory    SectionID = 5
	SectionGlobal    SectionID = 6
	SectionExport    SectionID = 7
	SectionStart     SectionID = 8
	SectionElement   SectionID = 9
	SectionCode      SectionID = 10
	SectionData      SectionID = 11
	SectionDataCount SectionID = 12
	SectionTag       SectionID = 13
)

// sectionRank gives the mandatory order of non-custom sections.
var sectionRank = map[SectionID]int{
	SectionType:      1,
	SectionImport:    2,
	SectionFunction:  3,
	SectionTable:     4,
	SectionMemory:    5,
	SectionTag:       6,
	SectionGlobal:    7,
	SectionExport:    8,
	SectionStart:     9,
	SectionElement:   10,
	SectionDataCount: 11,
	SectionCode:      12,
	SectionData:      13,
}

var (
	// ErrBadHeader is returned for binaries without the wasm magic and version 1.
	ErrBadHeader = errors.New("not a WebAssembly version 1 binary")

	// ErrSectionOrder is returned when sections are duplicated or out of order.
	ErrSectionOrder = errors.New("sections out of order or duplicated")
)

// Section is one raw section of a module.
type Section struct {
	ID      SectionID
	Payload []byte
}

// Binary is a module split into raw sections.
type Binary struct {
	Sections []Section
}

// Parse splits bin into sections, checking the header, section framing and
// section ordering. Section contents are not interpreted.
func Parse(bin []byte) (*Binary, error) {
	if len(bin) < len(header) || !bytes.Equal(bin[:len(header)], header) {
		return nil, ErrBadHeader
	}

	b := &Binary{}
	p := len(header)
	lastRank := 0
	for p < len(bin) {
		id := SectionID(bin[p])
		p++
		size, n, err := readUleb32(bin[p:])
		if err != nil {
			return nil, fmt.Errorf("section %d size: %w", id, err)
		}
		p += n
		if uint64(p)+uint64(size) > uint64(len(bin)) {
			return nil, fmt.Errorf("section %d: %w", id, ErrUnexpectedEnd)
		}

		if id != SectionCustom {
			rank, ok := sectionRank[id]
			if !ok {
				return nil, fmt.Errorf("unknown section id %d", id)
			}
			if rank <= lastRank {
				return nil, ErrSectionOrder
			}
			lastRank = rank
		}

		b.Sections = append(b.Sections, Section{ID: id, Payload: bin[p : p+int(size)]})
		p += int(size)
	}
	return b, nil
}

// Encode serializes the sections back into a binary.
func (b *Binary) Encode() []byte {
	out := append([]byte(nil), header...)
	for _, s := range b.Sections {
		out = appendSection(out, s.ID, s.Payload)
	}
	return out
}

// Section returns the first section with id, or nil.
func (b *Binary) Section(id SectionID) *Section {
	for i := range b.Sections {
		if b.Sections[i].ID == id {
			return &b.Sections[i]
		}
	}
	return nil
}

// setSection replaces the payload of section id, inserting the section at its
// ordered position when it does not exist yet.
func (b *Binary) setSection(id SectionID, payload []byte) {
	if s := b.Section(id); s != nil {
		s.Payload = payload
		return
	}
	rank := sectionRank[id]
	at := len(b.Sections)
	for i, s := range b.Sections {
		if s.ID != SectionCustom && sectionRank[s.ID] > rank {
			at = i
			break
		}
	}
	b.Sections = append(b.Sections, Section{})
	copy(b.Sections[at+1:], b.Sections[at:])
	b.Sections[at] = Section{ID: id, Payload: payload}
}

// reader walks a section payload.
type reader struct {
	b []byte
	p int
}

func (r *reader) u32() (uint32, error) {
	v, n, err := readUleb32(r.b[r.p:])
	r.p += n
	return v, err
}

func (r *reader) readByte() (byte, error) {
	if r.p >= len(r.b) {
		return 0, ErrUnexpectedEnd
	}
	c := r.b[r.p]
	r.p++
	return c, nil
}

func (r *reader) readBytes(n uint32) ([]byte, error) {
	if uint64(r.p)+uint64(n) > uint64(len(r.b)) {
		return nil, ErrUnexpectedEnd
	}
	v := r.b[r.p : r.p+int(n)]
	r.p += int(n)
	return v, nil
}

func (r *reader) name() (string, error) {
	n, err := r.u32()
	if err != nil {
		return "", err
	}
	v, err := r.readBytes(n)
	return string(v), err
}

func (r *reader) limits() error {
	flags, err := r.readByte()
	if err != nil {
		return err
	}
	if _, err := r.u32(); err != nil {
		return err
	}
	if flags&0x01 != 0 {
		_, err = r.u32()
	}
	return err
}

// ImportDesc is one entry of the import section.
type ImportDesc struct {
	Module string
	Name   string
	Kind   ExternKind
}

// Imports lists the import section.
func (b *Binary) Imports() ([]ImportDesc, error) {
	s := b.Section(SectionImport)
	if s == nil {
		return nil, nil
	}
	r := &reader{b: s.Payload}
	count, err := r.u32()
	if err != nil {
		return nil, err
	}
	imports := make([]ImportDesc, 0, count)
	for i := uint32(0); i < count; i++ {
		var d ImportDesc
		if d.Module, err = r.name(); err != nil {
			return nil, fmt.Errorf("import %d: %w", i, err)
		}
		if d.Name, err = r.name(); err != nil {
			return nil, fmt.Errorf("import %d: %w", i, err)
		}
		kind, err := r.readByte()
		if err != nil {
			return nil, fmt.Errorf("import %d: %w", i, err)
		}
		d.Kind = ExternKind(kind)
		switch d.Kind {
		case KindFunc:
			_, err = r.u32()
		case KindTable:
			if _, err = r.readByte(); err == nil {
				err = r.limits()
			}
		case KindMemory:
			err = r.limits()
		case KindGlobal:
			if _, err = r.readByte(); err == nil {
				_, err = r.readByte()
			}
		default:
			return nil, fmt.Errorf("import %d: unsupported kind 0x%02x", i, kind)
		}
		if err != nil {
			return nil, fmt.Errorf("import %d: %w", i, err)
		}
		imports = append(imports, d)
	}
	return imports, nil
}

// ImportedGlobals counts global imports; defined globals are numbered after
// them.
func (b *Binary) ImportedGlobals() (uint32, error) {
	imports, err := b.Imports()
	if err != nil {
		return 0, err
	}
	var n uint32
	for _, imp := range imports {
		if imp.Kind == KindGlobal {
			n++
		}
	}
	return n, nil
}

// DefinedGlobals returns the number of globals declared in the global section.
func (b *Binary) DefinedGlobals() (uint32, error) {
	s := b.Section(SectionGlobal)
	if s == nil {
		return 0, nil
	}
	r := &reader{b: s.Payload}
	return r.u32()
}

// ExportNames lists the names in the export section.
func (b *Binary) ExportNames() ([]string, error) {
	s := b.Section(SectionExport)
	if s == nil {
		return nil, nil
	}
	r := &reader{b: s.Payload}
	count, err := r.u32()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, count)
	for i := uint32(0); i < count; i++ {
		name, err := r.name()
		if err != nil {
			return nil, fmt.Errorf("export %d: %w", i, err)
		}
		if _, err := r.readByte(); err != nil {
			return nil, fmt.Errorf("export %d: %w", i, err)
		}
		if _, err := r.u32(); err != nil {
			return nil, fmt.Errorf("export %d: %w", i, err)
		}
		names = append(names, name)
	}
	return names, nil
}

// appendVecEntry rewrites a vector payload with one more entry.
func appendVecEntry(payload, entry []byte) ([]byte, error) {
	var count uint32
	rest := []byte(nil)
	if len(payload) > 0 {
		c, n, err := readUleb32(payload)
		if err != nil {
			return nil, err
		}
		count, rest = c, payload[n:]
	}
	out := AppendUleb32(nil, count+1)
	out = append(out, rest...)
	return append(out, entry...), nil
}

// Custom returns the payload of the first custom section called name.
func (b *Binary) Custom(name string) ([]byte, bool) {
	for _, s := range b.Sections {
		if s.ID != SectionCustom {
			continue
		}
		r := &reader{b: s.Payload}
		n, err := r.name()
		if err == nil && n == name {
			return s.Payload[r.p:], true
		}
	}
	return nil, false
}

// AppendCustomSection appends a custom section to an encoded binary.
func AppendCustomSection(bin []byte, name string, data []byte) []byte {
	payload := appendName(nil, name)
	payload = append(payload, data...)
	return appendSection(bin, SectionCustom, payload)
}
