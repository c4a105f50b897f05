package kipc

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/tickship/tickship/internal/domain"
)

// Encode serializes a value to its q IPC byte representation, without any
// message header. Encoding is big-endian, matching the endianness marker the
// framer writes (see frame.go); servers byte-swap on their side when needed.
func Encode(v Value) ([]byte, error) {
	var e encoder
	if err := e.value(v); err != nil {
		return nil, err
	}
	return e.buf, nil
}

// Decode reads one value from the start of b, which must be a payload with
// the message header already stripped. littleEndian is the frame's endianness
// flag. It returns the value and the number of bytes consumed, or
// domain.ErrMalformedValue on truncated or unrecognized input. A server error
// response (tag -128) decodes into domain.ErrRemote carrying the server's
// message.
func Decode(b []byte, littleEndian bool) (Value, int, error) {
	d := decoder{buf: b, little: littleEndian}
	v, err := d.value()
	if err != nil {
		return nil, d.pos, err
	}
	return v, d.pos, nil
}

type encoder struct {
	buf []byte
}

func (e *encoder) byte(b byte) { e.buf = append(e.buf, b) }

// tag writes a type tag. Atom tags are negative int8 values, so the
// conversion must happen on a non-constant.
func (e *encoder) tag(t int8) { e.buf = append(e.buf, byte(t)) }

func (e *encoder) uint32(u uint32) { e.buf = binary.BigEndian.AppendUint32(e.buf, u) }

func (e *encoder) uint64(u uint64) { e.buf = binary.BigEndian.AppendUint64(e.buf, u) }

func (e *encoder) value(v Value) error {
	switch x := v.(type) {
	case Bool:
		e.tag(tagBool)
		if x {
			e.byte(1)
		} else {
			e.byte(0)
		}
	case Long:
		e.tag(tagLong)
		e.uint64(uint64(x))
	case Float:
		e.tag(tagFloat)
		e.uint64(math.Float64bits(float64(x)))
	case Symbol:
		e.tag(tagSymbol)
		e.buf = append(e.buf, x...)
		e.byte(0)
	case String:
		e.tag(tagCharVec)
		e.byte(0) // attribute byte
		e.uint32(uint32(len(x)))
		e.buf = append(e.buf, x...)
	case List:
		e.tag(tagList)
		e.byte(0)
		e.uint32(uint32(len(x)))
		for _, el := range x {
			if err := e.value(el); err != nil {
				return err
			}
		}
	case Dict:
		if len(x.Keys) != len(x.Vals) {
			return fmt.Errorf("%w: dictionary with %d keys, %d values",
				domain.ErrMalformedValue, len(x.Keys), len(x.Vals))
		}
		e.tag(tagDict)
		if err := e.value(List(x.Keys)); err != nil {
			return err
		}
		return e.value(List(x.Vals))
	case *Dict:
		return e.value(*x)
	case Null:
		e.tag(tagNull)
		e.byte(0)
	default:
		return fmt.Errorf("%w: unsupported value type %T", domain.ErrMalformedValue, v)
	}
	return nil
}

type decoder struct {
	buf    []byte
	pos    int
	little bool
}

func (d *decoder) need(n int) error {
	if d.pos+n > len(d.buf) {
		return fmt.Errorf("%w: truncated at offset %d, need %d more bytes",
			domain.ErrMalformedValue, d.pos, d.pos+n-len(d.buf))
	}
	return nil
}

func (d *decoder) byte() (byte, error) {
	if err := d.need(1); err != nil {
		return 0, err
	}
	b := d.buf[d.pos]
	d.pos++
	return b, nil
}

func (d *decoder) uint16() (uint16, error) {
	if err := d.need(2); err != nil {
		return 0, err
	}
	b := d.buf[d.pos : d.pos+2]
	d.pos += 2
	if d.little {
		return binary.LittleEndian.Uint16(b), nil
	}
	return binary.BigEndian.Uint16(b), nil
}

func (d *decoder) uint32() (uint32, error) {
	if err := d.need(4); err != nil {
		return 0, err
	}
	b := d.buf[d.pos : d.pos+4]
	d.pos += 4
	if d.little {
		return binary.LittleEndian.Uint32(b), nil
	}
	return binary.BigEndian.Uint32(b), nil
}

func (d *decoder) uint64() (uint64, error) {
	if err := d.need(8); err != nil {
		return 0, err
	}
	b := d.buf[d.pos : d.pos+8]
	d.pos += 8
	if d.little {
		return binary.LittleEndian.Uint64(b), nil
	}
	return binary.BigEndian.Uint64(b), nil
}

// symbol reads a null-terminated string.
func (d *decoder) symbol() (string, error) {
	start := d.pos
	for {
		if d.pos >= len(d.buf) {
			return "", fmt.Errorf("%w: unterminated symbol at offset %d",
				domain.ErrMalformedValue, start)
		}
		if d.buf[d.pos] == 0 {
			s := string(d.buf[start:d.pos])
			d.pos++
			return s, nil
		}
		d.pos++
	}
}

// capacity bounds an initial allocation by the bytes left in the buffer, so
// a hostile element count cannot force a huge allocation before the element
// reads fail.
func (d *decoder) capacity(n int) int {
	if rest := len(d.buf) - d.pos; n > rest {
		return rest
	}
	return n
}

// vectorHeader reads the attribute byte and element count shared by all
// vector types.
func (d *decoder) vectorHeader() (int, error) {
	if _, err := d.byte(); err != nil {
		return 0, err
	}
	n, err := d.uint32()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (d *decoder) value() (Value, error) {
	if err := d.need(1); err != nil {
		return nil, err
	}
	t := int8(d.buf[d.pos])
	d.pos++

	switch t {
	case tagBool:
		b, err := d.byte()
		if err != nil {
			return nil, err
		}
		return Bool(b == 1), nil
	case tagShort:
		u, err := d.uint16()
		if err != nil {
			return nil, err
		}
		return Long(int16(u)), nil
	case tagInt:
		u, err := d.uint32()
		if err != nil {
			return nil, err
		}
		return Long(int32(u)), nil
	case tagLong:
		u, err := d.uint64()
		if err != nil {
			return nil, err
		}
		return Long(u), nil
	case tagReal:
		u, err := d.uint32()
		if err != nil {
			return nil, err
		}
		return Float(math.Float32frombits(u)), nil
	case tagFloat:
		u, err := d.uint64()
		if err != nil {
			return nil, err
		}
		return Float(math.Float64frombits(u)), nil
	case tagSymbol:
		s, err := d.symbol()
		if err != nil {
			return nil, err
		}
		return Symbol(s), nil
	case tagError:
		msg, err := d.symbol()
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s", domain.ErrRemote, msg)
	case tagList:
		n, err := d.vectorHeader()
		if err != nil {
			return nil, err
		}
		out := make(List, 0, d.capacity(n))
		for i := 0; i < n; i++ {
			el, err := d.value()
			if err != nil {
				return nil, err
			}
			out = append(out, el)
		}
		return out, nil
	case tagBoolVec:
		n, err := d.vectorHeader()
		if err != nil {
			return nil, err
		}
		out := make(List, 0, d.capacity(n))
		for i := 0; i < n; i++ {
			b, err := d.byte()
			if err != nil {
				return nil, err
			}
			out = append(out, Bool(b == 1))
		}
		return out, nil
	case tagIntVec:
		n, err := d.vectorHeader()
		if err != nil {
			return nil, err
		}
		out := make(List, 0, d.capacity(n))
		for i := 0; i < n; i++ {
			u, err := d.uint32()
			if err != nil {
				return nil, err
			}
			out = append(out, Long(int32(u)))
		}
		return out, nil
	case tagLongVec:
		n, err := d.vectorHeader()
		if err != nil {
			return nil, err
		}
		out := make(List, 0, d.capacity(n))
		for i := 0; i < n; i++ {
			u, err := d.uint64()
			if err != nil {
				return nil, err
			}
			out = append(out, Long(u))
		}
		return out, nil
	case tagRealVec:
		n, err := d.vectorHeader()
		if err != nil {
			return nil, err
		}
		out := make(List, 0, d.capacity(n))
		for i := 0; i < n; i++ {
			u, err := d.uint32()
			if err != nil {
				return nil, err
			}
			out = append(out, Float(math.Float32frombits(u)))
		}
		return out, nil
	case tagFltVec:
		n, err := d.vectorHeader()
		if err != nil {
			return nil, err
		}
		out := make(List, 0, d.capacity(n))
		for i := 0; i < n; i++ {
			u, err := d.uint64()
			if err != nil {
				return nil, err
			}
			out = append(out, Float(math.Float64frombits(u)))
		}
		return out, nil
	case tagCharVec:
		n, err := d.vectorHeader()
		if err != nil {
			return nil, err
		}
		if err := d.need(n); err != nil {
			return nil, err
		}
		s := String(d.buf[d.pos : d.pos+n])
		d.pos += n
		return s, nil
	case tagSymVec:
		n, err := d.vectorHeader()
		if err != nil {
			return nil, err
		}
		out := make(List, 0, d.capacity(n))
		for i := 0; i < n; i++ {
			s, err := d.symbol()
			if err != nil {
				return nil, err
			}
			out = append(out, Symbol(s))
		}
		return out, nil
	case tagDict:
		keys, err := d.value()
		if err != nil {
			return nil, err
		}
		vals, err := d.value()
		if err != nil {
			return nil, err
		}
		kl, ok := keys.(List)
		if !ok {
			return nil, fmt.Errorf("%w: dictionary keys are %T, want list",
				domain.ErrMalformedValue, keys)
		}
		vl, ok := vals.(List)
		if !ok {
			return nil, fmt.Errorf("%w: dictionary values are %T, want list",
				domain.ErrMalformedValue, vals)
		}
		if len(kl) != len(vl) {
			return nil, fmt.Errorf("%w: dictionary with %d keys, %d values",
				domain.ErrMalformedValue, len(kl), len(vl))
		}
		return Dict{Keys: kl, Vals: vl}, nil
	case tagNull:
		if _, err := d.byte(); err != nil {
			return nil, err
		}
		return Null{}, nil
	default:
		return nil, fmt.Errorf("%w: unrecognized type tag %d", domain.ErrMalformedValue, t)
	}
}
