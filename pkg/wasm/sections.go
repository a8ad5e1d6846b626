package wasm

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"unicode/utf8"
)

const (
	// PreambleSize is the length of the magic number plus version.
	PreambleSize = 8

	// Version is the only binary format version accepted.
	Version = 1

	// CustomSectionID is the section id of named custom sections.
	CustomSectionID = 0

	// ClaimsSectionName is the custom section name reserved for tokens.
	ClaimsSectionName = "jwt"

	// maxVarUint32Len is the longest LEB128 encoding of a u32.
	maxVarUint32Len = 5
)

var magic = []byte{0x00, 0x61, 0x73, 0x6d} // "\0asm"

// Section locates one section inside a module's bytes. Offsets are into
// the buffer passed to Scan.
type Section struct {
	// ID is the section id byte.
	ID byte

	// Start is the offset of the id byte.
	Start int

	// PayloadStart is the offset just past the size prefix.
	PayloadStart int

	// End is the offset just past the section.
	End int

	// Name is the custom section name; empty for other sections.
	Name string

	// DataStart is the offset of the custom section contents after the
	// name. Equal to PayloadStart for other sections.
	DataStart int
}

// Size returns the full encoded length of the section.
func (s Section) Size() int { return s.End - s.Start }

// IsCustom reports whether s is a custom section.
func (s Section) IsCustom() bool { return s.ID == CustomSectionID }

// IsClaims reports whether s is the reserved claims section.
func (s Section) IsClaims() bool { return s.IsCustom() && s.Name == ClaimsSectionName }

// Data returns the section contents within module (after the name for
// custom sections).
func (s Section) Data(module []byte) []byte { return module[s.DataStart:s.End] }

// Scan walks the section table of module. It checks only structure:
// preamble, length prefixes, and custom section names. Section contents
// and ordering are not interpreted, so unknown section ids pass through.
func Scan(module []byte) ([]Section, error) {
	if len(module) < PreambleSize {
		return nil, malformed("module is %d bytes, shorter than the %d-byte preamble", len(module), PreambleSize)
	}
	if !bytes.Equal(module[:4], magic) {
		return nil, malformed("bad magic number % x", module[:4])
	}
	if v := binary.LittleEndian.Uint32(module[4:PreambleSize]); v != Version {
		return nil, malformed("unsupported binary version %d", v)
	}

	var sections []Section
	off := PreambleSize
	for off < len(module) {
		sec := Section{ID: module[off], Start: off}

		size, n, err := readVarUint32(module, off+1)
		if err != nil {
			return nil, malformed("section at offset %d: size: %v", off, err)
		}
		sec.PayloadStart = off + 1 + n
		if uint64(sec.PayloadStart)+uint64(size) > uint64(len(module)) {
			return nil, malformed("section at offset %d: %d-byte payload overruns module (%d bytes)", off, size, len(module))
		}
		sec.End = sec.PayloadStart + int(size)
		sec.DataStart = sec.PayloadStart

		if sec.IsCustom() {
			if err := readCustomName(module[:sec.End], &sec); err != nil {
				return nil, malformed("custom section at offset %d: %v", off, err)
			}
		}

		sections = append(sections, sec)
		off = sec.End
	}
	return sections, nil
}

func readCustomName(module []byte, sec *Section) error {
	nameLen, n, err := readVarUint32(module, sec.PayloadStart)
	if err != nil {
		return fmt.Errorf("name length: %w", err)
	}
	nameStart := sec.PayloadStart + n
	if uint64(nameStart)+uint64(nameLen) > uint64(sec.End) {
		return fmt.Errorf("%d-byte name overruns section", nameLen)
	}
	name := module[nameStart : nameStart+int(nameLen)]
	if !utf8.Valid(name) {
		return fmt.Errorf("name is not valid UTF-8")
	}
	sec.Name = string(name)
	sec.DataStart = nameStart + int(nameLen)
	return nil
}

// readVarUint32 decodes an unsigned LEB128 u32 at buf[off:].
func readVarUint32(buf []byte, off int) (uint32, int, error) {
	var result uint32
	for i := 0; i < maxVarUint32Len; i++ {
		if off+i >= len(buf) {
			return 0, 0, fmt.Errorf("truncated LEB128 at offset %d", off)
		}
		b := buf[off+i]
		if i == maxVarUint32Len-1 && b&0xf0 != 0 {
			return 0, 0, fmt.Errorf("LEB128 at offset %d overflows 32 bits", off)
		}
		result |= uint32(b&0x7f) << (7 * i)
		if b&0x80 == 0 {
			return result, i + 1, nil
		}
	}
	return 0, 0, fmt.Errorf("LEB128 at offset %d longer than %d bytes", off, maxVarUint32Len)
}

// appendVarUint32 appends v as unsigned LEB128. Go's uvarint encoding is
// the same format.
func appendVarUint32(buf []byte, v uint32) []byte {
	return binary.AppendUvarint(buf, uint64(v))
}

// EncodeCustomSection returns a complete custom section named name
// holding data.
func EncodeCustomSection(name string, data []byte) []byte {
	payloadLen := uvarintLen(uint32(len(name))) + len(name) + len(data)

	out := make([]byte, 0, 1+uvarintLen(uint32(payloadLen))+payloadLen)
	out = append(out, CustomSectionID)
	out = appendVarUint32(out, uint32(payloadLen))
	out = appendVarUint32(out, uint32(len(name)))
	out = append(out, name...)
	out = append(out, data...)
	return out
}

func uvarintLen(v uint32) int {
	n := 1
	for v >= 0x80 {
		v >>= 7
		n++
	}
	return n
}
