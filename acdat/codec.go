package acdat

import (
	"bytes"
	"context"
	"io"
	"math"
	"time"

	"google.golang.org/protobuf/encoding/protowire"
)

// Value type tags written ahead of every typed payload, mirroring the
// scalar type set a .NET-style value union distinguishes: the null
// and reserved slots are part of the wire format but never produced
// by Save, and are rejected as corrupt input if ever read back.
const (
	tagNull = iota
	tagDBNull
	tagReserved
	tagBool
	tagChar
	tagInt8
	tagUInt8
	tagInt16
	tagUInt16
	tagInt32
	tagUInt32
	tagInt64
	tagUInt64
	tagFloat32
	tagFloat64
	tagDecimal
	tagDateTime
	tagString
	tagObject
)

// Save writes a to w in the automaton wire format: a small properties
// block, the four required integer arrays, the nullable output array,
// and — when saveValues is true — every pattern's value. Save never
// retries on write errors; the first one returned by w aborts the
// operation.
func Save(w io.Writer, a *Automaton, saveValues bool) error {
	return SaveContext(context.Background(), w, a, saveValues)
}

// SaveContext is Save with cancellation checked before each array
// element and each value is written.
func SaveContext(ctx context.Context, w io.Writer, a *Automaton, saveValues bool) error {
	var buf bytes.Buffer

	buf.WriteByte(3)
	if err := writeProp(&buf, "saveValues", saveValues); err != nil {
		return err
	}
	if err := writeProp(&buf, "size", int32(len(a.base)-paddingSlots)); err != nil {
		return err
	}
	if err := writeProp(&buf, "ignoreCase", a.ignoreCase); err != nil {
		return err
	}

	keyLengths32 := make([]int32, len(a.keyLengths))
	for i, v := range a.keyLengths {
		keyLengths32[i] = int32(v)
	}
	if err := writeIntArrayCtx(ctx, &buf, keyLengths32); err != nil {
		return err
	}
	if err := writeIntArrayCtx(ctx, &buf, a.base); err != nil {
		return err
	}
	if err := writeIntArrayCtx(ctx, &buf, a.check); err != nil {
		return err
	}
	if err := writeIntArrayCtx(ctx, &buf, a.fail); err != nil {
		return err
	}

	writeVarint(&buf, uint64(len(a.output)))
	for _, outs := range a.output {
		if err := ctx.Err(); err != nil {
			return ErrCancelled
		}
		if err := writeNullableIntArray(&buf, outs); err != nil {
			return err
		}
	}

	if saveValues {
		writeVarint(&buf, uint64(len(a.values)))
		for _, v := range a.values {
			if err := ctx.Err(); err != nil {
				return ErrCancelled
			}
			if err := writeValue(&buf, v); err != nil {
				return err
			}
		}
	}

	_, err := w.Write(buf.Bytes())
	return err
}

// Load reads an automaton previously written by Save. When the
// stream was saved with saveValues false, restore is consulted once
// per pattern index to reconstruct the values array; restore may be
// nil, in which case ValueAt and Parse report nil values.
func Load(r io.Reader, restore func(index int) any) (*Automaton, error) {
	return LoadContext(context.Background(), r, restore)
}

// LoadContext is Load with cancellation checked before each element
// of the output array and each value is read. The key length, base,
// check and fail arrays are read without a cancellation check.
func LoadContext(ctx context.Context, r io.Reader, restore func(index int) any) (*Automaton, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	c := &cursor{data: data}

	propCount, err := c.readByte()
	if err != nil {
		return nil, err
	}
	props := make(map[string]any, propCount)
	for i := 0; i < int(propCount); i++ {
		name, err := c.readString()
		if err != nil {
			return nil, err
		}
		val, err := c.readValue()
		if err != nil {
			return nil, err
		}
		props[name] = val
	}
	saveValues, _ := props["saveValues"].(bool)
	ignoreCase, _ := props["ignoreCase"].(bool)

	keyLengths32, err := c.readIntArray()
	if err != nil {
		return nil, err
	}
	base, err := c.readIntArray()
	if err != nil {
		return nil, err
	}
	check, err := c.readIntArray()
	if err != nil {
		return nil, err
	}
	fail, err := c.readIntArray()
	if err != nil {
		return nil, err
	}

	outCount, err := c.readVarint()
	if err != nil {
		return nil, err
	}
	output := make([][]int32, outCount)
	for i := range output {
		if err := ctx.Err(); err != nil {
			return nil, ErrCancelled
		}
		output[i], err = c.readNullableIntArray()
		if err != nil {
			return nil, err
		}
	}

	keyLengths := make([]int, len(keyLengths32))
	for i, v := range keyLengths32 {
		keyLengths[i] = int(v)
	}

	var values []any
	hasValues := false
	if saveValues {
		valCount, err := c.readVarint()
		if err != nil {
			return nil, err
		}
		values = make([]any, valCount)
		for i := range values {
			if err := ctx.Err(); err != nil {
				return nil, ErrCancelled
			}
			values[i], err = c.readValue()
			if err != nil {
				return nil, err
			}
		}
		hasValues = true
	} else if restore != nil {
		values = make([]any, len(keyLengths))
		for i := range values {
			values[i] = restore(i)
		}
		hasValues = true
	}

	return &Automaton{
		base:       base,
		check:      check,
		fail:       fail,
		output:     output,
		keyLengths: keyLengths,
		values:     values,
		hasValues:  hasValues,
		ignoreCase: ignoreCase,
	}, nil
}

func writeProp(buf *bytes.Buffer, name string, v any) error {
	writeString(buf, name)
	return writeValue(buf, v)
}

func writeVarint(buf *bytes.Buffer, v uint64) {
	buf.Write(protowire.AppendVarint(nil, v))
}

func writeZigzag(buf *bytes.Buffer, v int64) {
	writeVarint(buf, protowire.EncodeZigZag(v))
}

func writeString(buf *bytes.Buffer, s string) {
	writeVarint(buf, uint64(len(s)))
	buf.WriteString(s)
}

func writeIntArrayCtx(ctx context.Context, buf *bytes.Buffer, arr []int32) error {
	writeVarint(buf, uint64(len(arr)))
	for _, v := range arr {
		if err := ctx.Err(); err != nil {
			return ErrCancelled
		}
		writeZigzag(buf, int64(v))
	}
	return nil
}

func writeNullableIntArray(buf *bytes.Buffer, arr []int32) error {
	if arr == nil {
		writeZigzag(buf, -1)
		return nil
	}
	writeZigzag(buf, int64(len(arr)))
	for _, v := range arr {
		writeZigzag(buf, int64(v))
	}
	return nil
}

// putU16/putU32/putU64 write fixed-width little-endian primitives the
// same way the blockchain key/value store's marshal closures do,
// rather than reaching for encoding/binary's Write reflection path.
func putU16(buf *bytes.Buffer, v uint16) {
	buf.WriteByte(byte(v))
	buf.WriteByte(byte(v >> 8))
}

func putU32(buf *bytes.Buffer, v uint32) {
	for i := 0; i < 4; i++ {
		buf.WriteByte(byte(v >> (8 * i)))
	}
}

func putU64(buf *bytes.Buffer, v uint64) {
	for i := 0; i < 8; i++ {
		buf.WriteByte(byte(v >> (8 * i)))
	}
}

func writeValue(buf *bytes.Buffer, v any) error {
	switch t := v.(type) {
	case nil:
		return ErrNotSupported
	case bool:
		buf.WriteByte(tagBool)
		if t {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	case Char:
		buf.WriteByte(tagChar)
		putU16(buf, uint16(t))
	case int8:
		buf.WriteByte(tagInt8)
		buf.WriteByte(byte(t))
	case uint8:
		buf.WriteByte(tagUInt8)
		buf.WriteByte(t)
	case int16:
		buf.WriteByte(tagInt16)
		putU16(buf, uint16(t))
	case uint16:
		buf.WriteByte(tagUInt16)
		putU16(buf, t)
	case int32:
		buf.WriteByte(tagInt32)
		putU32(buf, uint32(t))
	case uint32:
		buf.WriteByte(tagUInt32)
		putU32(buf, t)
	case int64:
		buf.WriteByte(tagInt64)
		putU64(buf, uint64(t))
	case uint64:
		buf.WriteByte(tagUInt64)
		putU64(buf, t)
	case int:
		buf.WriteByte(tagInt64)
		putU64(buf, uint64(int64(t)))
	case float32:
		buf.WriteByte(tagFloat32)
		putU32(buf, math.Float32bits(t))
	case float64:
		buf.WriteByte(tagFloat64)
		putU64(buf, math.Float64bits(t))
	case Decimal:
		buf.WriteByte(tagDecimal)
		writeString(buf, string(t))
	case time.Time:
		buf.WriteByte(tagDateTime)
		putU64(buf, uint64(t.UnixNano()))
	case string:
		buf.WriteByte(tagString)
		writeString(buf, t)
	default:
		return ErrNotSupported
	}
	return nil
}

// cursor parses the byte slice Load read in full, tracking a read
// offset. Every accessor bounds-checks before advancing.
type cursor struct {
	data []byte
	pos  int
}

func (c *cursor) readByte() (byte, error) {
	if c.pos >= len(c.data) {
		return 0, ErrCorruptInput
	}
	b := c.data[c.pos]
	c.pos++
	return b, nil
}

func (c *cursor) readVarint() (uint64, error) {
	v, n := protowire.ConsumeVarint(c.data[c.pos:])
	if n < 0 {
		return 0, ErrCorruptInput
	}
	c.pos += n
	return v, nil
}

func (c *cursor) readZigzag() (int64, error) {
	v, err := c.readVarint()
	if err != nil {
		return 0, err
	}
	return protowire.DecodeZigZag(v), nil
}

func (c *cursor) readString() (string, error) {
	n, err := c.readVarint()
	if err != nil {
		return "", err
	}
	if n > uint64(len(c.data)-c.pos) {
		return "", ErrCorruptInput
	}
	s := string(c.data[c.pos : c.pos+int(n)])
	c.pos += int(n)
	return s, nil
}

func (c *cursor) readBytes(n int) ([]byte, error) {
	if n < 0 || n > len(c.data)-c.pos {
		return nil, ErrCorruptInput
	}
	b := c.data[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

func (c *cursor) readU16() (uint16, error) {
	b, err := c.readBytes(2)
	if err != nil {
		return 0, err
	}
	return uint16(b[0]) | uint16(b[1])<<8, nil
}

func (c *cursor) readU32() (uint32, error) {
	b, err := c.readBytes(4)
	if err != nil {
		return 0, err
	}
	var v uint32
	for i := 3; i >= 0; i-- {
		v = v<<8 | uint32(b[i])
	}
	return v, nil
}

func (c *cursor) readU64() (uint64, error) {
	b, err := c.readBytes(8)
	if err != nil {
		return 0, err
	}
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v, nil
}

func (c *cursor) readIntArray() ([]int32, error) {
	n, err := c.readVarint()
	if err != nil {
		return nil, err
	}
	out := make([]int32, n)
	for i := range out {
		v, err := c.readZigzag()
		if err != nil {
			return nil, err
		}
		out[i] = int32(v)
	}
	return out, nil
}

func (c *cursor) readNullableIntArray() ([]int32, error) {
	n, err := c.readZigzag()
	if err != nil {
		return nil, err
	}
	if n == -1 {
		return nil, nil
	}
	if n < -1 {
		return nil, ErrCorruptInput
	}
	out := make([]int32, n)
	for i := range out {
		v, err := c.readZigzag()
		if err != nil {
			return nil, err
		}
		out[i] = int32(v)
	}
	return out, nil
}

func (c *cursor) readValue() (any, error) {
	tag, err := c.readByte()
	if err != nil {
		return nil, err
	}
	switch tag {
	case tagBool:
		b, err := c.readByte()
		if err != nil {
			return nil, err
		}
		return b != 0, nil
	case tagChar:
		v, err := c.readU16()
		if err != nil {
			return nil, err
		}
		return Char(v), nil
	case tagInt8:
		b, err := c.readByte()
		if err != nil {
			return nil, err
		}
		return int8(b), nil
	case tagUInt8:
		return c.readByte()
	case tagInt16:
		v, err := c.readU16()
		if err != nil {
			return nil, err
		}
		return int16(v), nil
	case tagUInt16:
		return c.readU16()
	case tagInt32:
		v, err := c.readU32()
		if err != nil {
			return nil, err
		}
		return int32(v), nil
	case tagUInt32:
		return c.readU32()
	case tagInt64:
		v, err := c.readU64()
		if err != nil {
			return nil, err
		}
		return int64(v), nil
	case tagUInt64:
		return c.readU64()
	case tagFloat32:
		v, err := c.readU32()
		if err != nil {
			return nil, err
		}
		return math.Float32frombits(v), nil
	case tagFloat64:
		v, err := c.readU64()
		if err != nil {
			return nil, err
		}
		return math.Float64frombits(v), nil
	case tagDecimal:
		s, err := c.readString()
		if err != nil {
			return nil, err
		}
		return Decimal(s), nil
	case tagDateTime:
		v, err := c.readU64()
		if err != nil {
			return nil, err
		}
		return time.Unix(0, int64(v)).UTC(), nil
	case tagString:
		return c.readString()
	case tagObject:
		return nil, ErrNotSupported
	default:
		return nil, ErrCorruptInput
	}
}
