package vm

import (
	"encoding/binary"
	"os"

	"github.com/pkg/errors"
)

// PublicSymbol is one entry of the bytecode file's public-symbol table
// (spec.md §6.1). The interpreter core never consults it — it exists for
// tooling (a disassembler, a debugger) built on top of this loader, the
// same way the reference's get_public_name/get_public_offset are exported
// from runtime.h unconditionally.
type PublicSymbol struct {
	NameOffset int32
	CodeOffset int32
}

// Image is the unpacked, immutable bytecode file spec.md §6.1 describes:
// little-endian fixed header, a string table addressed by byte offset, a
// public-symbol table, and the code to the end of the file.
type Image struct {
	GlobalAreaSize int32
	Symbols        []PublicSymbol
	strings        []byte
	Code           []byte
}

// String resolves a NUL-terminated string-table entry by byte offset.
func (im *Image) String(offset int32) string {
	if offset < 0 || int(offset) >= len(im.strings) {
		return ""
	}
	end := offset
	for int(end) < len(im.strings) && im.strings[end] != 0 {
		end++
	}
	return string(im.strings[offset:end])
}

// LoadFile reads and unpacks a bytecode file per spec.md §6.1:
//
//	int32  stringtab_size
//	int32  global_area_size
//	int32  public_symbols_number (N)
//	[N x (int32 name_offset, int32 code_offset)]
//	byte[stringtab_size]
//	byte[...] (code, to end of file)
//
// Bytecode correctness is not verified beyond what's needed to slice the
// file into its declared segments (spec.md §1 "Non-goals": malformed
// bytecode yields unspecified behavior, same as the reference).
func LoadFile(path string) (*Image, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, wrapLoadError(err, "reading bytecode file")
	}
	return LoadBytes(raw)
}

// LoadBytes unpacks an in-memory bytecode image; split out from LoadFile so
// tests can build images without touching the filesystem.
func LoadBytes(raw []byte) (*Image, error) {
	const headerWords = 3
	if len(raw) < headerWords*4 {
		return nil, errors.New("bytecode file: truncated header")
	}

	stringtabSize := int32(binary.LittleEndian.Uint32(raw[0:4]))
	globalAreaSize := int32(binary.LittleEndian.Uint32(raw[4:8]))
	numPublic := int32(binary.LittleEndian.Uint32(raw[8:12]))

	if stringtabSize < 0 || globalAreaSize < 0 || numPublic < 0 {
		return nil, errors.New("bytecode file: negative section size")
	}

	pubTableBytes := int64(numPublic) * 8
	need := int64(headerWords*4) + pubTableBytes + int64(stringtabSize)
	if need > int64(len(raw)) {
		return nil, errors.New("bytecode file: truncated public-symbol or string table")
	}

	cursor := int64(headerWords * 4)
	symbols := make([]PublicSymbol, numPublic)
	for i := range symbols {
		nameOff := int32(binary.LittleEndian.Uint32(raw[cursor : cursor+4]))
		codeOff := int32(binary.LittleEndian.Uint32(raw[cursor+4 : cursor+8]))
		symbols[i] = PublicSymbol{NameOffset: nameOff, CodeOffset: codeOff}
		cursor += 8
	}

	strTab := raw[cursor : cursor+int64(stringtabSize)]
	cursor += int64(stringtabSize)

	code := raw[cursor:]

	return &Image{
		GlobalAreaSize: globalAreaSize,
		Symbols:        symbols,
		strings:        strTab,
		Code:           code,
	}, nil
}
