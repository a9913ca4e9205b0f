package wasm

import (
	"errors"
	"fmt"
	"io"
)

// Import is a single imported item declared by a module.
type Import struct {
	Module string // declaring module, e.g. "wasi_snapshot_preview1"
	Name   string
	Kind   byte
}

// Export is a single exported item declared by a module.
type Export struct {
	Name string
	Kind byte
	Idx  uint32
}

// Info is the structural shape of a core module, reduced to what
// component metadata and analysis need.
type Info struct {
	Imports       []Import
	Exports       []Export
	DeclaredFuncs int // functions defined by the module itself
	MemoryCount   int // memories declared (not imported)
	DataBytes     int // total byte size of the data section payload
}

// FuncImports counts imported functions.
func (i *Info) FuncImports() int {
	n := 0
	for _, imp := range i.Imports {
		if imp.Kind == KindFunc {
			n++
		}
	}
	return n
}

// MemoryImports counts imported memories.
func (i *Info) MemoryImports() int {
	n := 0
	for _, imp := range i.Imports {
		if imp.Kind == KindMemory {
			n++
		}
	}
	return n
}

// FuncExports counts exported functions.
func (i *Info) FuncExports() int {
	n := 0
	for _, exp := range i.Exports {
		if exp.Kind == KindFunc {
			n++
		}
	}
	return n
}

// ImportModules returns the distinct declaring module names in first-seen order.
func (i *Info) ImportModules() []string {
	seen := make(map[string]bool)
	var modules []string
	for _, imp := range i.Imports {
		if !seen[imp.Module] {
			seen[imp.Module] = true
			modules = append(modules, imp.Module)
		}
	}
	return modules
}

// Introspect parses the import, export, function, memory and data
// sections of a core WebAssembly binary. The header must already have
// passed CheckHeader; Introspect re-checks the magic but accepts any
// version.
func Introspect(data []byte) (*Info, error) {
	r := newReader(data)

	magic, err := r.readU32LE()
	if err != nil {
		return nil, r.sectionError("header", err)
	}
	if magic != Magic {
		return nil, r.sectionError("header", fmt.Errorf("invalid magic 0x%08x", magic))
	}
	if _, err := r.readU32LE(); err != nil {
		return nil, r.sectionError("header", err)
	}

	info := &Info{}

	// Track canonical section ordering so garbage past a valid header is
	// rejected instead of misread. Custom sections can appear anywhere.
	var lastOrder int

	for {
		sectionID, err := r.readByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, r.sectionError("section header", err)
		}

		if sectionID != SectionCustom {
			order := sectionOrder(sectionID)
			if order < 0 {
				return nil, r.sectionError("section header", fmt.Errorf("unknown section id %d", sectionID))
			}
			if order <= lastOrder {
				return nil, r.sectionError("section header", fmt.Errorf("section %d appears out of order", sectionID))
			}
			lastOrder = order
		}

		sectionSize, err := r.readU32()
		if err != nil {
			return nil, r.sectionError("section size", err)
		}

		switch sectionID {
		case SectionImport:
			payload, err := r.readBytes(int(sectionSize))
			if err != nil {
				return nil, r.sectionError("import section", err)
			}
			if err := parseImportSection(newReader(payload), info); err != nil {
				return nil, fmt.Errorf("import section: %w", err)
			}
		case SectionFunction:
			payload, err := r.readBytes(int(sectionSize))
			if err != nil {
				return nil, r.sectionError("function section", err)
			}
			count, err := newReader(payload).readU32()
			if err != nil {
				return nil, fmt.Errorf("function section: %w", err)
			}
			info.DeclaredFuncs = int(count)
		case SectionMemory:
			payload, err := r.readBytes(int(sectionSize))
			if err != nil {
				return nil, r.sectionError("memory section", err)
			}
			count, err := newReader(payload).readU32()
			if err != nil {
				return nil, fmt.Errorf("memory section: %w", err)
			}
			info.MemoryCount = int(count)
		case SectionExport:
			payload, err := r.readBytes(int(sectionSize))
			if err != nil {
				return nil, r.sectionError("export section", err)
			}
			if err := parseExportSection(newReader(payload), info); err != nil {
				return nil, fmt.Errorf("export section: %w", err)
			}
		case SectionData:
			info.DataBytes = int(sectionSize)
			if err := r.skip(int(sectionSize)); err != nil {
				return nil, r.sectionError("data section", err)
			}
		default:
			if err := r.skip(int(sectionSize)); err != nil {
				return nil, r.sectionError("section data", err)
			}
		}
	}

	return info, nil
}

// sectionOrder maps section IDs to their canonical position.
// WASM spec order: Type(1), Import(2), Function(3), Table(4), Memory(5),
// Tag(13), Global(6), Export(7), Start(8), Element(9), DataCount(12),
// Code(10), Data(11).
func sectionOrder(id byte) int {
	switch id {
	case SectionType:
		return 1
	case SectionImport:
		return 2
	case SectionFunction:
		return 3
	case SectionTable:
		return 4
	case SectionMemory:
		return 5
	case SectionTag:
		return 6
	case SectionGlobal:
		return 7
	case SectionExport:
		return 8
	case SectionStart:
		return 9
	case SectionElement:
		return 10
	case SectionDataCount:
		return 11
	case SectionCode:
		return 12
	case SectionData:
		return 13
	default:
		return -1
	}
}

func parseImportSection(r *reader, info *Info) error {
	count, err := r.readU32()
	if err != nil {
		return err
	}

	for i := uint32(0); i < count; i++ {
		module, err := r.readName()
		if err != nil {
			return fmt.Errorf("import %d module: %w", i, err)
		}
		name, err := r.readName()
		if err != nil {
			return fmt.Errorf("import %d name: %w", i, err)
		}
		kind, err := r.readByte()
		if err != nil {
			return fmt.Errorf("import %d kind: %w", i, err)
		}

		if err := skipImportDesc(r, kind); err != nil {
			return fmt.Errorf("import %d (%s.%s) descriptor: %w", i, module, name, err)
		}

		info.Imports = append(info.Imports, Import{
			Module: module,
			Name:   name,
			Kind:   kind,
		})
	}

	return nil
}

// skipImportDesc consumes an import descriptor without retaining it.
func skipImportDesc(r *reader, kind byte) error {
	switch kind {
	case KindFunc:
		_, err := r.readU32() // type index
		return err
	case KindTable:
		if _, err := r.readByte(); err != nil { // reference type
			return err
		}
		return skipLimits(r)
	case KindMemory:
		return skipLimits(r)
	case KindGlobal:
		if _, err := r.readByte(); err != nil { // value type
			return err
		}
		_, err := r.readByte() // mutability
		return err
	case KindTag:
		if _, err := r.readByte(); err != nil { // attribute
			return err
		}
		_, err := r.readU32() // type index
		return err
	default:
		return fmt.Errorf("unknown import kind 0x%02x", kind)
	}
}

func skipLimits(r *reader) error {
	flags, err := r.readByte()
	if err != nil {
		return err
	}
	if _, err := r.readU32(); err != nil { // min
		return err
	}
	if flags&0x01 != 0 {
		if _, err := r.readU32(); err != nil { // max
			return err
		}
	}
	return nil
}

func parseExportSection(r *reader, info *Info) error {
	count, err := r.readU32()
	if err != nil {
		return err
	}

	for i := uint32(0); i < count; i++ {
		name, err := r.readName()
		if err != nil {
			return fmt.Errorf("export %d name: %w", i, err)
		}
		kind, err := r.readByte()
		if err != nil {
			return fmt.Errorf("export %d kind: %w", i, err)
		}
		idx, err := r.readU32()
		if err != nil {
			return fmt.Errorf("export %d index: %w", i, err)
		}

		info.Exports = append(info.Exports, Export{
			Name: name,
			Kind: kind,
			Idx:  idx,
		})
	}

	return nil
}
