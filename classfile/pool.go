package classfile

import (
	"fmt"
	"math"
	"strconv"
)

// Constant pool tags.
const (
	TagUtf8        byte = 1
	TagInteger     byte = 3
	TagClass       byte = 7
	TagString      byte = 8
	TagFieldref    byte = 9
	TagMethodref   byte = 10
	TagNameAndType byte = 12
)

type poolEntry struct {
	tag   byte
	text  string
	value int32
	ref1  uint16
	ref2  uint16
}

// ConstantPool interns entries in first-use order, so the same sequence of requests
// always yields the same pool.
type ConstantPool struct {
	entries []poolEntry // entries[0] is the unused slot 0
	index   map[string]uint16
}

func NewConstantPool() *ConstantPool {
	return &ConstantPool{entries: make([]poolEntry, 1), index: map[string]uint16{}}
}

// Count is the constant_pool_count written to the class file.
func (pool *ConstantPool) Count() int {
	return len(pool.entries)
}

func (pool *ConstantPool) add(key string, entry poolEntry) (uint16, error) {
	if index, ok := pool.index[key]; ok {
		return index, nil
	}
	if len(pool.entries) > math.MaxUint16-1 {
		return 0, fmt.Errorf("classfile: constant pool overflow adding %s", key)
	}
	index := uint16(len(pool.entries))
	pool.entries = append(pool.entries, entry)
	pool.index[key] = index
	return index, nil
}

func (pool *ConstantPool) Utf8(text string) (uint16, error) {
	if len(encodeModifiedUTF8(text)) > math.MaxUint16 {
		return 0, fmt.Errorf("classfile: constant %q exceeds 65535 encoded bytes", text)
	}
	return pool.add("utf8:"+text, poolEntry{tag: TagUtf8, text: text})
}

func (pool *ConstantPool) Integer(value int32) (uint16, error) {
	return pool.add("int:"+strconv.Itoa(int(value)), poolEntry{tag: TagInteger, value: value})
}

func (pool *ConstantPool) String(value string) (uint16, error) {
	utf8Index, err := pool.Utf8(value)
	if err != nil {
		return 0, err
	}
	return pool.add("string:"+value, poolEntry{tag: TagString, ref1: utf8Index})
}

func (pool *ConstantPool) Class(name string) (uint16, error) {
	nameIndex, err := pool.Utf8(name)
	if err != nil {
		return 0, err
	}
	return pool.add("class:"+name, poolEntry{tag: TagClass, ref1: nameIndex})
}

func (pool *ConstantPool) NameAndType(name, descriptor string) (uint16, error) {
	nameIndex, err := pool.Utf8(name)
	if err != nil {
		return 0, err
	}
	descriptorIndex, err := pool.Utf8(descriptor)
	if err != nil {
		return 0, err
	}
	return pool.add("nat:"+name+":"+descriptor, poolEntry{tag: TagNameAndType, ref1: nameIndex, ref2: descriptorIndex})
}

func (pool *ConstantPool) Fieldref(owner, name, descriptor string) (uint16, error) {
	return pool.memberRef(TagFieldref, "field:", owner, name, descriptor)
}

func (pool *ConstantPool) Methodref(owner, name, descriptor string) (uint16, error) {
	return pool.memberRef(TagMethodref, "method:", owner, name, descriptor)
}

func (pool *ConstantPool) memberRef(tag byte, prefix, owner, name, descriptor string) (uint16, error) {
	classIndex, err := pool.Class(owner)
	if err != nil {
		return 0, err
	}
	natIndex, err := pool.NameAndType(name, descriptor)
	if err != nil {
		return 0, err
	}
	return pool.add(prefix+owner+"."+name+":"+descriptor, poolEntry{tag: tag, ref1: classIndex, ref2: natIndex})
}

func (pool *ConstantPool) write(out *writer) {
	out.u2(uint16(pool.Count()))
	for _, entry := range pool.entries[1:] {
		out.u1(entry.tag)
		switch entry.tag {
		case TagUtf8:
			encoded := encodeModifiedUTF8(entry.text)
			out.u2(uint16(len(encoded)))
			out.bytes(encoded)
		case TagInteger:
			out.u4(uint32(entry.value))
		case TagClass, TagString:
			out.u2(entry.ref1)
		case TagFieldref, TagMethodref, TagNameAndType:
			out.u2(entry.ref1)
			out.u2(entry.ref2)
		}
	}
}

// encodeModifiedUTF8 is the class file string encoding: NUL takes two bytes and
// characters outside the BMP are written as two three-byte surrogates.
func encodeModifiedUTF8(s string) []byte {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		switch {
		case r != 0 && r < 0x80:
			out = append(out, byte(r))
		case r < 0x800:
			out = append(out, 0xc0|byte(r>>6), 0x80|byte(r&0x3f))
		case r < 0x10000:
			out = appendThreeByte(out, r)
		default:
			r -= 0x10000
			out = appendThreeByte(out, 0xd800+(r>>10))
			out = appendThreeByte(out, 0xdc00+(r&0x3ff))
		}
	}
	return out
}

func appendThreeByte(out []byte, r rune) []byte {
	return append(out, 0xe0|byte(r>>12), 0x80|byte((r>>6)&0x3f), 0x80|byte(r&0x3f))
}

func decodeModifiedUTF8(data []byte) (string, error) {
	units := make([]uint16, 0, len(data))
	for i := 0; i < len(data); {
		b := data[i]
		switch {
		case b&0x80 == 0:
			units = append(units, uint16(b))
			i++
		case b&0xe0 == 0xc0 && i+1 < len(data):
			units = append(units, uint16(b&0x1f)<<6|uint16(data[i+1]&0x3f))
			i += 2
		case b&0xf0 == 0xe0 && i+2 < len(data):
			units = append(units, uint16(b&0x0f)<<12|uint16(data[i+1]&0x3f)<<6|uint16(data[i+2]&0x3f))
			i += 3
		default:
			return "", fmt.Errorf("classfile: malformed modified UTF-8 at byte %d", i)
		}
	}
	runes := make([]rune, 0, len(units))
	for i := 0; i < len(units); i++ {
		u := rune(units[i])
		if u >= 0xd800 && u < 0xdc00 && i+1 < len(units) {
			low := rune(units[i+1])
			if low >= 0xdc00 && low < 0xe000 {
				runes = append(runes, 0x10000+(u-0xd800)<<10+(low-0xdc00))
				i++
				continue
			}
		}
		runes = append(runes, u)
	}
	return string(runes), nil
}
