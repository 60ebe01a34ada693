package rpc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrBadFrame means a REMOTE_CALL body could not be parsed. The caller logs
// and drops the packet; the peer is not disconnected.
var ErrBadFrame = errors.New("bad rpc frame")

const (
	metaNodeCompMask = 0x03
	metaNameCompBit  = 0x04
	metaByteOnlyBit  = 0x08
)

// Call is one decoded remote call. The body starts at the meta byte; the
// REMOTE_CALL tag has already been stripped by the transport.
type Call struct {
	NodeTarget uint32
	MethodID   uint16
	ByteOnly   bool
	Args       []Variant
}

type reader struct {
	data []byte
	pos  int
}

func (r *reader) remaining() int {
	return len(r.data) - r.pos
}

func (r *reader) u8() (uint8, error) {
	if r.remaining() < 1 {
		return 0, fmt.Errorf("%w: unexpected end of frame", ErrBadFrame)
	}
	v := r.data[r.pos]
	r.pos++
	return v, nil
}

func (r *reader) u16() (uint16, error) {
	if r.remaining() < 2 {
		return 0, fmt.Errorf("%w: unexpected end of frame", ErrBadFrame)
	}
	v := binary.LittleEndian.Uint16(r.data[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *reader) u32() (uint32, error) {
	if r.remaining() < 4 {
		return 0, fmt.Errorf("%w: unexpected end of frame", ErrBadFrame)
	}
	v := binary.LittleEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *reader) u64() (uint64, error) {
	if r.remaining() < 8 {
		return 0, fmt.Errorf("%w: unexpected end of frame", ErrBadFrame)
	}
	v := binary.LittleEndian.Uint64(r.data[r.pos:])
	r.pos += 8
	return v, nil
}

func (r *reader) f32() (float32, error) {
	v, err := r.u32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

func (r *reader) f64() (float64, error) {
	v, err := r.u64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

func (r *reader) str() (string, error) {
	n, err := r.u32()
	if err != nil {
		return "", fmt.Errorf("%w: string length", ErrBadFrame)
	}
	if uint32(r.remaining()) < n {
		return "", fmt.Errorf("%w: string overruns frame", ErrBadFrame)
	}
	s := string(r.data[r.pos : r.pos+int(n)])
	r.pos += int(n)
	return s, nil
}

// DecodeCall parses a REMOTE_CALL body (meta byte onward).
func DecodeCall(body []byte) (*Call, error) {
	r := &reader{data: body}

	meta, err := r.u8()
	if err != nil {
		return nil, fmt.Errorf("%w: missing meta byte", ErrBadFrame)
	}

	call := &Call{ByteOnly: meta&metaByteOnlyBit != 0}

	switch meta & metaNodeCompMask {
	case 0:
		v, err := r.u8()
		if err != nil {
			return nil, err
		}
		call.NodeTarget = uint32(v)
	case 1:
		v, err := r.u16()
		if err != nil {
			return nil, err
		}
		call.NodeTarget = uint32(v)
	default: // 2 and 3 both carry 4 bytes
		v, err := r.u32()
		if err != nil {
			return nil, err
		}
		call.NodeTarget = v
	}

	if meta&metaNameCompBit == 0 {
		v, err := r.u8()
		if err != nil {
			return nil, err
		}
		call.MethodID = uint16(v)
	} else {
		v, err := r.u16()
		if err != nil {
			return nil, err
		}
		call.MethodID = v
	}

	if call.ByteOnly {
		call.Args = readByteOnlyArgs(r)
		return call, nil
	}

	count, err := r.u8()
	if err != nil {
		return nil, fmt.Errorf("%w: missing arg count", ErrBadFrame)
	}
	call.Args = make([]Variant, 0, count)
	for i := 0; i < int(count); i++ {
		v, err := readVariant(r)
		if err != nil {
			return nil, fmt.Errorf("arg %d: %w", i, err)
		}
		call.Args = append(call.Args, v)
	}

	return call, nil
}

func readVariant(r *reader) (Variant, error) {
	tag, err := r.u8()
	if err != nil {
		return Variant{}, err
	}

	switch Type(tag) {
	case TypeNil:
		return Nil(), nil

	case TypeBool:
		b, err := r.u8()
		if err != nil {
			return Variant{}, err
		}
		return Bool(b != 0), nil

	case TypeInt:
		v, err := r.u64()
		if err != nil {
			return Variant{}, err
		}
		return Int(int64(v)), nil

	case TypeFloat:
		f, err := r.f64()
		if err != nil {
			return Variant{}, err
		}
		return Float(f), nil

	case TypeString:
		s, err := r.str()
		if err != nil {
			return Variant{}, err
		}
		return Str(s), nil

	case TypeVector3:
		x, err := r.f64()
		if err != nil {
			return Variant{}, err
		}
		y, err := r.f64()
		if err != nil {
			return Variant{}, err
		}
		z, err := r.f64()
		if err != nil {
			return Variant{}, err
		}
		return Vec3(x, y, z), nil

	case TypeArray:
		count, err := r.u32()
		if err != nil {
			return Variant{}, err
		}
		items := make([]Variant, 0, minCap(count))
		for i := uint32(0); i < count; i++ {
			item, err := readVariant(r)
			if err != nil {
				return Variant{}, err
			}
			items = append(items, item)
		}
		return Variant{Type: TypeArray, Array: items}, nil

	case TypeDict:
		count, err := r.u32()
		if err != nil {
			return Variant{}, err
		}
		entries := make([]DictEntry, 0, minCap(count))
		for i := uint32(0); i < count; i++ {
			key, err := r.str()
			if err != nil {
				return Variant{}, err
			}
			val, err := readVariant(r)
			if err != nil {
				return Variant{}, err
			}
			entries = append(entries, DictEntry{Key: key, Value: val})
		}
		return Variant{Type: TypeDict, Dict: entries}, nil

	default:
		// Unknown tags decode to NIL rather than failing the frame.
		return Nil(), nil
	}
}

// readByteOnlyArgs parses the compact argument layout: a run of 3 padding
// bytes, a 4-byte little-endian float, then an optional type-tag byte. The
// tag, when present, selects the interpretation; absence implies FLOAT.
// After a typed sample 3 more padding bytes are consumed when the byte past
// them still looks like a type tag. Parsing stops when fewer than 4 bytes
// remain or the tag slot holds a terminator (> 7 and < 0x20). The grammar is
// heuristic but must be preserved byte-for-byte for wire compatibility.
func readByteOnlyArgs(r *reader) []Variant {
	var args []Variant

	if r.remaining() >= 3 {
		r.pos += 3
	}

	for r.remaining() >= 4 {
		f, err := r.f32()
		if err != nil {
			break
		}

		var v Variant
		if r.remaining() > 0 && r.data[r.pos] <= 7 {
			tag := Type(r.data[r.pos])
			r.pos++

			switch tag {
			case TypeFloat:
				v = Float(float64(f))
			case TypeInt:
				v = Int(int64(f))
			case TypeBool:
				v = Bool(f != 0)
			default:
				v = Nil()
			}

			if r.remaining() > 3 && r.data[r.pos+3] <= 7 {
				r.pos += 3
			}
		} else {
			v = Float(float64(f))
		}

		args = append(args, v)

		if r.remaining() == 0 {
			break
		}
		if next := r.data[r.pos]; next > 7 && next < 0x20 {
			break
		}
	}

	return args
}

func minCap(n uint32) int {
	// Length fields are attacker-controlled; do not preallocate more than a
	// small bound before elements are actually read.
	if n > 64 {
		return 64
	}
	return int(n)
}

// EncodeCall produces a REMOTE_CALL body. Without the byte_only flag,
// DecodeCall round-trips it. With byte_only, each argument is written as a
// float32 sample with its type tag: only FLOAT, INT and BOOL values carry
// over, and the decoder's padding lookahead does not recover every such
// frame. The smallest node and method encodings are chosen.
func EncodeCall(call *Call) []byte {
	var meta byte
	var buf []byte

	nodeComp := byte(0)
	switch {
	case call.NodeTarget > 0xFFFF:
		nodeComp = 2
	case call.NodeTarget > 0xFF:
		nodeComp = 1
	}
	meta |= nodeComp

	if call.MethodID > 0xFF {
		meta |= metaNameCompBit
	}
	if call.ByteOnly {
		meta |= metaByteOnlyBit
	}

	buf = append(buf, meta)

	switch nodeComp {
	case 0:
		buf = append(buf, byte(call.NodeTarget))
	case 1:
		buf = binary.LittleEndian.AppendUint16(buf, uint16(call.NodeTarget))
	default:
		buf = binary.LittleEndian.AppendUint32(buf, call.NodeTarget)
	}

	if meta&metaNameCompBit == 0 {
		buf = append(buf, byte(call.MethodID))
	} else {
		buf = binary.LittleEndian.AppendUint16(buf, call.MethodID)
	}

	if call.ByteOnly {
		return appendByteOnlyArgs(buf, call.Args)
	}

	buf = append(buf, byte(len(call.Args)))
	for i := range call.Args {
		buf = appendVariant(buf, call.Args[i])
	}
	return buf
}

func appendVariant(buf []byte, v Variant) []byte {
	buf = append(buf, byte(v.Type))

	switch v.Type {
	case TypeBool:
		if v.Bool {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
	case TypeInt:
		buf = binary.LittleEndian.AppendUint64(buf, uint64(v.Int))
	case TypeFloat:
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(v.Float))
	case TypeString:
		buf = appendString(buf, v.Str)
	case TypeVector3:
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(v.Vec.X))
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(v.Vec.Y))
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(v.Vec.Z))
	case TypeArray:
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(v.Array)))
		for i := range v.Array {
			buf = appendVariant(buf, v.Array[i])
		}
	case TypeDict:
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(v.Dict)))
		for i := range v.Dict {
			buf = appendString(buf, v.Dict[i].Key)
			buf = appendVariant(buf, v.Dict[i].Value)
		}
	}
	return buf
}

func appendString(buf []byte, s string) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(s)))
	return append(buf, s...)
}

func appendByteOnlyArgs(buf []byte, args []Variant) []byte {
	buf = append(buf, 0, 0, 0)
	for i := range args {
		var f float32
		switch args[i].Type {
		case TypeFloat:
			f = float32(args[i].Float)
		case TypeInt:
			f = float32(args[i].Int)
		case TypeBool:
			if args[i].Bool {
				f = 1
			}
		}
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(f))
		buf = append(buf, byte(args[i].Type))
		if i < len(args)-1 {
			buf = append(buf, 0, 0, 0)
		}
	}
	return buf
}
