package wasm

import (
	"bytes"
	"encoding/binary"
	"math"
)

const (
	sectionType   = 1
	sectionFunc   = 3
	sectionMemory = 5
	sectionGlobal = 6
	sectionExport = 7
	sectionCode   = 10

	exportKindFunc = 0x00
	blockTypeEmpty = 0x40
)

var controlCodes = map[Opcode]byte{
	OpBlock:     0x02,
	OpLoop:      0x03,
	OpIf:        0x04,
	OpElse:      0x05,
	OpEnd:       0x0b,
	OpBr:        0x0c,
	OpReturn:    0x0f,
	OpCall:      0x10,
	OpDrop:      0x1a,
	OpGetLocal:  0x20,
	OpSetLocal:  0x21,
	OpTeeLocal:  0x22,
	OpGetGlobal: 0x23,
	OpSetGlobal: 0x24,
}

type funcType struct {
	params, results []ValType
}

// Encode serializes the module to the binary format.
func (m *Module) Encode() []byte {
	var types []funcType
	typeIndex := func(params, results []ValType) uint32 {
		for i, t := range types {
			if sameTypes(t.params, params) && sameTypes(t.results, results) {
				return uint32(i)
			}
		}
		types = append(types, funcType{params: params, results: results})
		return uint32(len(types) - 1)
	}
	funcTypes := make([]uint32, len(m.Functions))
	for i, f := range m.Functions {
		funcTypes[i] = typeIndex(f.Params, f.Result)
	}

	var out bytes.Buffer
	out.Write([]byte{0x00, 0x61, 0x73, 0x6d})
	out.Write([]byte{0x01, 0x00, 0x00, 0x00})

	if len(types) > 0 {
		section := bytes.Buffer{}
		section.Write(encodeU32(uint32(len(types))))
		for _, t := range types {
			section.WriteByte(0x60)
			writeValTypes(&section, t.params)
			writeValTypes(&section, t.results)
		}
		out.Write(emitSection(sectionType, section.Bytes()))
	}

	if len(m.Functions) > 0 {
		section := bytes.Buffer{}
		section.Write(encodeU32(uint32(len(m.Functions))))
		for _, ti := range funcTypes {
			section.Write(encodeU32(ti))
		}
		out.Write(emitSection(sectionFunc, section.Bytes()))
	}

	if m.Memory {
		section := bytes.Buffer{}
		section.Write(encodeU32(1))
		section.WriteByte(0x00)
		section.Write(encodeU32(1))
		out.Write(emitSection(sectionMemory, section.Bytes()))
	}

	if len(m.Globals) > 0 {
		section := bytes.Buffer{}
		section.Write(encodeU32(uint32(len(m.Globals))))
		for _, g := range m.Globals {
			section.WriteByte(byte(g.Type))
			section.WriteByte(0x01)
			encodeInstruction(&section, Const(g.Type, g.Init))
			section.WriteByte(0x0b)
		}
		out.Write(emitSection(sectionGlobal, section.Bytes()))
	}

	if len(m.Functions) > 0 {
		section := bytes.Buffer{}
		section.Write(encodeU32(uint32(len(m.Functions))))
		for i, f := range m.Functions {
			section.Write(encodeString(f.Name))
			section.WriteByte(exportKindFunc)
			section.Write(encodeU32(uint32(i)))
		}
		out.Write(emitSection(sectionExport, section.Bytes()))

		section = bytes.Buffer{}
		section.Write(encodeU32(uint32(len(m.Functions))))
		for _, f := range m.Functions {
			body := bytes.Buffer{}
			body.Write(encodeLocals(f.Locals))
			for _, ins := range f.Body {
				encodeInstruction(&body, ins)
			}
			body.WriteByte(0x0b)
			section.Write(encodeU32(uint32(body.Len())))
			section.Write(body.Bytes())
		}
		out.Write(emitSection(sectionCode, section.Bytes()))
	}

	return out.Bytes()
}

func encodeInstruction(buf *bytes.Buffer, ins Instruction) {
	switch ins.Op {
	case OpConst:
		if ins.Type == F64 {
			buf.WriteByte(0x44)
			var b [8]byte
			binary.LittleEndian.PutUint64(b[:], math.Float64bits(ins.Float))
			buf.Write(b[:])
			return
		}
		buf.WriteByte(0x41)
		buf.Write(encodeS32(ins.Int))
		return

	case OpBlock, OpLoop:
		buf.WriteByte(controlCodes[ins.Op])
		buf.WriteByte(blockTypeEmpty)
		return

	case OpIf:
		buf.WriteByte(controlCodes[OpIf])
		if ins.Type != 0 {
			buf.WriteByte(byte(ins.Type))
		} else {
			buf.WriteByte(blockTypeEmpty)
		}
		return

	case OpBr, OpCall, OpGetLocal, OpSetLocal, OpTeeLocal, OpGetGlobal, OpSetGlobal:
		buf.WriteByte(controlCodes[ins.Op])
		buf.Write(encodeU32(ins.Index))
		return

	case OpLoad, OpStore:
		_, code := numericOps[ins.Op].pick(ins.Type)
		buf.WriteByte(code)
		align := uint32(2)
		if ins.Type == F64 {
			align = 3
		}
		var offset uint32
		if ins.Offset != nil {
			offset = *ins.Offset
		}
		buf.Write(encodeU32(align))
		buf.Write(encodeU32(offset))
		return
	}

	if code, ok := controlCodes[ins.Op]; ok {
		buf.WriteByte(code)
		return
	}
	_, code := numericOps[ins.Op].pick(ins.Type)
	buf.WriteByte(code)
}

func writeValTypes(buf *bytes.Buffer, ts []ValType) {
	buf.Write(encodeU32(uint32(len(ts))))
	for _, t := range ts {
		buf.WriteByte(byte(t))
	}
}

func encodeString(s string) []byte {
	out := encodeU32(uint32(len(s)))
	return append(out, s...)
}

func encodeU32(v uint32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		out = append(out, b)
		if v == 0 {
			return out
		}
	}
}

func encodeS32(v int32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		sign := b&0x40 != 0
		if (v == 0 && !sign) || (v == -1 && sign) {
			return append(out, b)
		}
		out = append(out, b|0x80)
	}
}

func emitSection(id byte, content []byte) []byte {
	out := make([]byte, 0, len(content)+6)
	out = append(out, id)
	out = append(out, encodeU32(uint32(len(content)))...)
	return append(out, content...)
}

// encodeLocals groups runs of equal local types.
func encodeLocals(locals []ValType) []byte {
	type group struct {
		count uint32
		typ   ValType
	}
	var groups []group
	for _, t := range locals {
		if n := len(groups); n > 0 && groups[n-1].typ == t {
			groups[n-1].count++
			continue
		}
		groups = append(groups, group{1, t})
	}
	out := encodeU32(uint32(len(groups)))
	for _, g := range groups {
		out = append(out, encodeU32(g.count)...)
		out = append(out, byte(g.typ))
	}
	return out
}

func sameTypes(a, b []ValType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
