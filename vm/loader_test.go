package vm

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func putI32(buf *bytes.Buffer, v int32) {
	binary.Write(buf, binary.LittleEndian, v)
}

// buildImage assembles a minimal bytecode file per spec.md §6.1's layout,
// so loader tests don't depend on an external assembler (there isn't one —
// compiling source to bytecode is out of scope).
func buildImage(globalArea int32, symbols []PublicSymbol, strtab string, code []byte) []byte {
	var buf bytes.Buffer
	putI32(&buf, int32(len(strtab)))
	putI32(&buf, globalArea)
	putI32(&buf, int32(len(symbols)))
	for _, s := range symbols {
		putI32(&buf, s.NameOffset)
		putI32(&buf, s.CodeOffset)
	}
	buf.WriteString(strtab)
	buf.Write(code)
	return buf.Bytes()
}

func TestLoadBytesRoundTrip(t *testing.T) {
	raw := buildImage(3, []PublicSymbol{{NameOffset: 0, CodeOffset: 7}}, "main\x00", []byte{0xF0})

	img, err := LoadBytes(raw)
	assert(t, err == nil, "unexpected load error: %v", err)
	assert(t, img.GlobalAreaSize == 3, "global area size mismatch: %d", img.GlobalAreaSize)
	assert(t, len(img.Symbols) == 1 && img.Symbols[0].CodeOffset == 7, "public symbol table mismatch: %+v", img.Symbols)
	assert(t, img.String(0) == "main", "string table lookup mismatch: %q", img.String(0))
	assert(t, len(img.Code) == 1 && img.Code[0] == 0xF0, "code segment mismatch: %v", img.Code)
}

func TestLoadBytesRejectsTruncatedHeader(t *testing.T) {
	_, err := LoadBytes([]byte{1, 2, 3})
	assert(t, err != nil, "truncated header should be rejected")
}

func TestLoadBytesRejectsNegativeSizes(t *testing.T) {
	var buf bytes.Buffer
	putI32(&buf, -1)
	putI32(&buf, 0)
	putI32(&buf, 0)
	_, err := LoadBytes(buf.Bytes())
	assert(t, err != nil, "negative stringtab size should be rejected")
}

func TestLoadBytesRejectsTruncatedTables(t *testing.T) {
	raw := buildImage(0, []PublicSymbol{{NameOffset: 0, CodeOffset: 0}}, "", nil)
	// Chop off the symbol table's second word.
	short := raw[:len(raw)-4]
	_, err := LoadBytes(short)
	assert(t, err != nil, "truncated public-symbol table should be rejected")
}
