package classfile

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Constant is a resolved constant pool entry. Fieldref and Methodref entries carry the
// owner class, member name and descriptor directly.
type Constant struct {
	Tag        byte
	Text       string // Utf8 text, String value, Class name
	Int        int32
	Owner      string
	Name       string
	Descriptor string
}

// CodeAttribute is the body of a method.
type CodeAttribute struct {
	MaxStack  int
	MaxLocals int
	Bytecode  []byte
}

type Method struct {
	Access     uint16
	Name       string
	Descriptor string
	Code       *CodeAttribute
}

// ClassFile is the parsed form of a class file.
type ClassFile struct {
	Major     uint16
	Minor     uint16
	Access    uint16
	Name      string
	SuperName string
	Constants []Constant // index 0 unused
	Methods   []*Method
}

// Constant returns the resolved pool entry at index.
func (cf *ClassFile) Constant(index uint16) (Constant, error) {
	if index == 0 || int(index) >= len(cf.Constants) || cf.Constants[index].Tag == 0 {
		return Constant{}, fmt.Errorf("classfile: bad constant pool index %d", index)
	}
	return cf.Constants[index], nil
}

// FindMethod returns the method with the given name and descriptor.
func (cf *ClassFile) FindMethod(name, descriptor string) (*Method, error) {
	for _, method := range cf.Methods {
		if method.Name == name && method.Descriptor == descriptor {
			return method, nil
		}
	}
	return nil, fmt.Errorf("classfile: class %s has no method %s%s", cf.Name, name, descriptor)
}

type rawEntry struct {
	tag   byte
	text  string
	value int32
	ref1  uint16
	ref2  uint16
}

type reader struct {
	data []byte
	pos  int
	err  error
}

func (r *reader) need(n int) bool {
	if r.err != nil {
		return false
	}
	if r.pos+n > len(r.data) {
		r.err = fmt.Errorf("classfile: truncated at byte %d", r.pos)
		return false
	}
	return true
}

func (r *reader) u1() byte {
	if !r.need(1) {
		return 0
	}
	v := r.data[r.pos]
	r.pos++
	return v
}

func (r *reader) u2() uint16 {
	if !r.need(2) {
		return 0
	}
	v := binary.BigEndian.Uint16(r.data[r.pos:])
	r.pos += 2
	return v
}

func (r *reader) u4() uint32 {
	if !r.need(4) {
		return 0
	}
	v := binary.BigEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return v
}

func (r *reader) bytes(n int) []byte {
	if !r.need(n) {
		return nil
	}
	v := r.data[r.pos : r.pos+n]
	r.pos += n
	return v
}

// Parse reads a class file. Constant kinds other than those this package writes are
// rejected.
func Parse(data []byte) (*ClassFile, error) {
	r := &reader{data: data}
	if r.u4() != Magic {
		if r.err != nil {
			return nil, r.err
		}
		return nil, errors.New("classfile: bad magic number")
	}
	cf := &ClassFile{}
	cf.Minor = r.u2()
	cf.Major = r.u2()
	raw, err := parsePool(r)
	if err != nil {
		return nil, err
	}
	cf.Constants, err = resolvePool(raw)
	if err != nil {
		return nil, err
	}
	cf.Access = r.u2()
	thisIndex, superIndex := r.u2(), r.u2()
	if r.err != nil {
		return nil, r.err
	}
	this, err := cf.Constant(thisIndex)
	if err != nil || this.Tag != TagClass {
		return nil, errors.New("classfile: this_class is not a class constant")
	}
	cf.Name = this.Text
	if superIndex != 0 {
		super, err := cf.Constant(superIndex)
		if err != nil || super.Tag != TagClass {
			return nil, errors.New("classfile: super_class is not a class constant")
		}
		cf.SuperName = super.Text
	}
	interfaces := int(r.u2())
	r.bytes(2 * interfaces)
	fields := int(r.u2())
	for i := 0; i < fields && r.err == nil; i++ {
		r.bytes(6)
		skipAttributes(r)
	}
	methods := int(r.u2())
	for i := 0; i < methods && r.err == nil; i++ {
		method, err := parseMethod(r, cf)
		if err != nil {
			return nil, err
		}
		cf.Methods = append(cf.Methods, method)
	}
	skipAttributes(r)
	if r.err != nil {
		return nil, r.err
	}
	if r.pos != len(data) {
		return nil, fmt.Errorf("classfile: %d trailing bytes", len(data)-r.pos)
	}
	return cf, nil
}

func parsePool(r *reader) ([]rawEntry, error) {
	count := int(r.u2())
	if count == 0 {
		return nil, errors.New("classfile: empty constant pool")
	}
	entries := make([]rawEntry, count)
	for i := 1; i < count && r.err == nil; i++ {
		entry := rawEntry{tag: r.u1()}
		switch entry.tag {
		case TagUtf8:
			text, err := decodeModifiedUTF8(r.bytes(int(r.u2())))
			if err != nil {
				return nil, err
			}
			entry.text = text
		case TagInteger:
			entry.value = int32(r.u4())
		case TagClass, TagString:
			entry.ref1 = r.u2()
		case TagFieldref, TagMethodref, TagNameAndType:
			entry.ref1, entry.ref2 = r.u2(), r.u2()
		default:
			if r.err != nil {
				break
			}
			return nil, fmt.Errorf("classfile: unsupported constant tag %d at index %d", entry.tag, i)
		}
		entries[i] = entry
	}
	return entries, r.err
}

func resolvePool(raw []rawEntry) ([]Constant, error) {
	utf8 := func(index uint16) (string, error) {
		if int(index) >= len(raw) || raw[index].tag != TagUtf8 {
			return "", fmt.Errorf("classfile: index %d is not a Utf8 constant", index)
		}
		return raw[index].text, nil
	}
	constants := make([]Constant, len(raw))
	for i := 1; i < len(raw); i++ {
		entry := raw[i]
		constant := Constant{Tag: entry.tag}
		var err error
		switch entry.tag {
		case TagUtf8:
			constant.Text = entry.text
		case TagInteger:
			constant.Int = entry.value
		case TagClass, TagString:
			constant.Text, err = utf8(entry.ref1)
		case TagNameAndType:
			constant.Name, err = utf8(entry.ref1)
			if err == nil {
				constant.Descriptor, err = utf8(entry.ref2)
			}
		case TagFieldref, TagMethodref:
			if int(entry.ref1) >= len(raw) || raw[entry.ref1].tag != TagClass ||
				int(entry.ref2) >= len(raw) || raw[entry.ref2].tag != TagNameAndType {
				return nil, fmt.Errorf("classfile: malformed member reference at index %d", i)
			}
			constant.Owner, err = utf8(raw[entry.ref1].ref1)
			if err == nil {
				constant.Name, err = utf8(raw[entry.ref2].ref1)
			}
			if err == nil {
				constant.Descriptor, err = utf8(raw[entry.ref2].ref2)
			}
		}
		if err != nil {
			return nil, err
		}
		constants[i] = constant
	}
	return constants, nil
}

func parseMethod(r *reader, cf *ClassFile) (*Method, error) {
	method := &Method{Access: r.u2()}
	nameIndex, descriptorIndex := r.u2(), r.u2()
	if r.err != nil {
		return nil, r.err
	}
	name, err := cf.Constant(nameIndex)
	if err != nil {
		return nil, err
	}
	descriptor, err := cf.Constant(descriptorIndex)
	if err != nil {
		return nil, err
	}
	method.Name, method.Descriptor = name.Text, descriptor.Text
	attributes := int(r.u2())
	for i := 0; i < attributes && r.err == nil; i++ {
		attributeName, err := cf.Constant(r.u2())
		if err != nil {
			return nil, err
		}
		body := r.bytes(int(r.u4()))
		if attributeName.Text != codeAttributeName || r.err != nil {
			continue
		}
		method.Code, err = parseCode(body)
		if err != nil {
			return nil, fmt.Errorf("classfile: method %s: %w", method.Name, err)
		}
	}
	return method, r.err
}

func parseCode(body []byte) (*CodeAttribute, error) {
	r := &reader{data: body}
	code := &CodeAttribute{MaxStack: int(r.u2()), MaxLocals: int(r.u2())}
	code.Bytecode = r.bytes(int(r.u4()))
	r.bytes(8 * int(r.u2())) // exception table
	skipAttributes(r)
	if r.err != nil {
		return nil, r.err
	}
	return code, nil
}

func skipAttributes(r *reader) {
	count := int(r.u2())
	for i := 0; i < count && r.err == nil; i++ {
		r.u2()
		r.bytes(int(r.u4()))
	}
}
