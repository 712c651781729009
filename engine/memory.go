package engine

import (
	"encoding/binary"

	"github.com/Neopallium/s1vm/isa"
)

// Memory is the linear memory of one Store: plain bytes in 64KiB pages,
// little-endian, bounds-checked on every access. It grows but never
// shrinks. Two caps apply on growth: the module's declared maximum (growth
// beyond it fails softly, memory.grow returns -1 per wasm semantics) and
// the instance resource limit (growth beyond it traps).
type Memory struct {
	data     []byte
	declMax  uint32 // module-declared max pages, 0 = none
	limitMax uint32 // instance limiter cap in pages, 0 = none
}

// NewMemory allocates min pages up front.
func NewMemory(minPages, declMax, limitMax uint32) *Memory {
	return &Memory{
		data:     make([]byte, int(minPages)*isa.PageSize),
		declMax:  declMax,
		limitMax: limitMax,
	}
}

// Size returns the current size in pages.
func (m *Memory) Size() uint32 {
	return uint32(len(m.data) / isa.PageSize)
}

// Bytes exposes the raw memory for host functions. The slice aliases the
// live memory and is invalidated by Grow.
func (m *Memory) Bytes() []byte {
	return m.data
}

// Grow extends memory by delta pages. It returns the previous size in
// pages, or -1 when the module-declared maximum would be exceeded. Growth
// past the instance resource cap traps instead.
func (m *Memory) Grow(delta uint32) (int32, *Trap) {
	old := m.Size()
	next := uint64(old) + uint64(delta)
	if m.limitMax != 0 && next > uint64(m.limitMax) {
		return 0, trapf(TrapMemoryLimit, "%d pages requested, limit %d", next, m.limitMax)
	}
	if m.declMax != 0 && next > uint64(m.declMax) {
		return -1, nil
	}
	if next > uint64(1<<16) { // wasm32 address space: 2^16 pages
		return -1, nil
	}
	m.data = append(m.data, make([]byte, int(delta)*isa.PageSize)...)
	return int32(old), nil
}

func (m *Memory) span(addr uint32, offset uint32, n int) ([]byte, *Trap) {
	ea := uint64(addr) + uint64(offset)
	if ea+uint64(n) > uint64(len(m.data)) {
		return nil, trapf(TrapMemoryOutOfBounds, "access [%d, %d) of %d", ea, ea+uint64(n), len(m.data))
	}
	return m.data[ea : ea+uint64(n)], nil
}

// ReadU8 loads one byte.
func (m *Memory) ReadU8(addr, offset uint32) (byte, *Trap) {
	b, trap := m.span(addr, offset, 1)
	if trap != nil {
		return 0, trap
	}
	return b[0], nil
}

// ReadU16 loads a 16-bit little-endian value.
func (m *Memory) ReadU16(addr, offset uint32) (uint16, *Trap) {
	b, trap := m.span(addr, offset, 2)
	if trap != nil {
		return 0, trap
	}
	return binary.LittleEndian.Uint16(b), nil
}

// ReadU32 loads a 32-bit little-endian value.
func (m *Memory) ReadU32(addr, offset uint32) (uint32, *Trap) {
	b, trap := m.span(addr, offset, 4)
	if trap != nil {
		return 0, trap
	}
	return binary.LittleEndian.Uint32(b), nil
}

// ReadU64 loads a 64-bit little-endian value.
func (m *Memory) ReadU64(addr, offset uint32) (uint64, *Trap) {
	b, trap := m.span(addr, offset, 8)
	if trap != nil {
		return 0, trap
	}
	return binary.LittleEndian.Uint64(b), nil
}

// WriteU8 stores one byte.
func (m *Memory) WriteU8(addr, offset uint32, v byte) *Trap {
	b, trap := m.span(addr, offset, 1)
	if trap != nil {
		return trap
	}
	b[0] = v
	return nil
}

// WriteU16 stores a 16-bit little-endian value.
func (m *Memory) WriteU16(addr, offset uint32, v uint16) *Trap {
	b, trap := m.span(addr, offset, 2)
	if trap != nil {
		return trap
	}
	binary.LittleEndian.PutUint16(b, v)
	return nil
}

// WriteU32 stores a 32-bit little-endian value.
func (m *Memory) WriteU32(addr, offset uint32, v uint32) *Trap {
	b, trap := m.span(addr, offset, 4)
	if trap != nil {
		return trap
	}
	binary.LittleEndian.PutUint32(b, v)
	return nil
}

// WriteU64 stores a 64-bit little-endian value.
func (m *Memory) WriteU64(addr, offset uint32, v uint64) *Trap {
	b, trap := m.span(addr, offset, 8)
	if trap != nil {
		return trap
	}
	binary.LittleEndian.PutUint64(b, v)
	return nil
}
