// Package classfile serializes a single class with its methods into the JVM class file
// format and reads that subset back.
package classfile

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/Matt-Rice/KnightCode-MJR/assembler"
)

const Magic uint32 = 0xcafebabe

// MajorVersion 49 predates StackMapTable, so the generated methods are checked by the
// type-inferencing verifier and need no frame information.
const (
	MajorVersion uint16 = 49
	MinorVersion uint16 = 0
)

// Access flags.
const (
	AccPublic uint16 = 0x0001
	AccStatic uint16 = 0x0008
	AccSuper  uint16 = 0x0020
)

const (
	ObjectClass       = "java/lang/Object"
	ConstructorName   = "<init>"
	NoArgsDescriptor  = "()V"
	MainName          = "main"
	MainDescriptor    = "([Ljava/lang/String;)V"
	codeAttributeName = "Code"
)

// MethodInfo is a method ready to be serialized.
type MethodInfo struct {
	Access     uint16
	Name       string
	Descriptor string
	Code       *assembler.Method
}

// ClassWriter collects class metadata and methods. Its constant pool is shared with the
// assembler so that instruction operands and method metadata index the same table.
type ClassWriter struct {
	Access     uint16
	Name       string
	SuperName  string
	pool       *ConstantPool
	methods    []*MethodInfo
	thisIndex  uint16
	superIndex uint16
	finished   bool
}

// NewClassWriter starts a public class. The class and superclass entries are interned
// first so they lead the constant pool.
func NewClassWriter(name, superName string) (*ClassWriter, error) {
	cw := &ClassWriter{
		Access:    AccPublic | AccSuper,
		Name:      name,
		SuperName: superName,
		pool:      NewConstantPool(),
	}
	var err error
	cw.thisIndex, err = cw.pool.Class(name)
	if err != nil {
		return nil, err
	}
	cw.superIndex, err = cw.pool.Class(superName)
	if err != nil {
		return nil, err
	}
	return cw, nil
}

func (cw *ClassWriter) Pool() *ConstantPool {
	return cw.pool
}

// AddMethod appends a method. Methods are written in the order they were added.
func (cw *ClassWriter) AddMethod(method *MethodInfo) error {
	if cw.finished {
		return errors.New("classfile: class already serialized")
	}
	if method.Code == nil {
		return fmt.Errorf("classfile: method %s%s has no code", method.Name, method.Descriptor)
	}
	for _, existing := range cw.methods {
		if existing.Name == method.Name && existing.Descriptor == method.Descriptor {
			return fmt.Errorf("classfile: duplicate method %s%s", method.Name, method.Descriptor)
		}
	}
	cw.methods = append(cw.methods, method)
	return nil
}

// DefaultConstructor assembles `aload_0; invokespecial super.<init>()V; return`.
func (cw *ClassWriter) DefaultConstructor() (*MethodInfo, error) {
	code := assembler.NewCode()
	code.Local(assembler.Aload, 0)
	code.Invoke(assembler.Invokespecial, cw.SuperName, ConstructorName, NoArgsDescriptor)
	code.Emit(assembler.Return)
	method, err := assembler.Assemble(code, cw.pool, 1)
	if err != nil {
		return nil, err
	}
	return &MethodInfo{Access: AccPublic, Name: ConstructorName, Descriptor: NoArgsDescriptor, Code: method}, nil
}

// Bytes serializes the class. It may be called once; the writer is finished afterwards.
func (cw *ClassWriter) Bytes() ([]byte, error) {
	if cw.finished {
		return nil, errors.New("classfile: class already serialized")
	}
	// Method and attribute names go into the pool before it is written.
	type methodIndexes struct{ name, descriptor uint16 }
	indexes := make([]methodIndexes, len(cw.methods))
	codeIndex, err := cw.pool.Utf8(codeAttributeName)
	if err != nil {
		return nil, err
	}
	for i, method := range cw.methods {
		indexes[i].name, err = cw.pool.Utf8(method.Name)
		if err != nil {
			return nil, err
		}
		indexes[i].descriptor, err = cw.pool.Utf8(method.Descriptor)
		if err != nil {
			return nil, err
		}
	}

	out := &writer{}
	out.u4(Magic)
	out.u2(MinorVersion)
	out.u2(MajorVersion)
	cw.pool.write(out)
	out.u2(cw.Access)
	out.u2(cw.thisIndex)
	out.u2(cw.superIndex)
	out.u2(0) // interfaces
	out.u2(0) // fields
	out.u2(uint16(len(cw.methods)))
	for i, method := range cw.methods {
		err = writeMethod(out, method, indexes[i].name, indexes[i].descriptor, codeIndex)
		if err != nil {
			return nil, err
		}
	}
	out.u2(0) // class attributes
	cw.finished = true
	return out.buf, nil
}

func writeMethod(out *writer, method *MethodInfo, nameIndex, descriptorIndex, codeIndex uint16) error {
	code := method.Code
	if code.MaxStack > math.MaxUint16 || code.MaxLocals > math.MaxUint16 {
		return fmt.Errorf("classfile: method %s exceeds frame limits", method.Name)
	}
	out.u2(method.Access)
	out.u2(nameIndex)
	out.u2(descriptorIndex)
	out.u2(1) // attributes: Code
	out.u2(codeIndex)
	// max_stack + max_locals + code_length + code + exception table length + attributes count
	out.u4(uint32(2 + 2 + 4 + len(code.Bytecode) + 2 + 2))
	out.u2(uint16(code.MaxStack))
	out.u2(uint16(code.MaxLocals))
	out.u4(uint32(len(code.Bytecode)))
	out.bytes(code.Bytecode)
	out.u2(0) // exception table
	out.u2(0) // code attributes
	return nil
}

type writer struct {
	buf []byte
}

func (w *writer) u1(v byte) {
	w.buf = append(w.buf, v)
}

func (w *writer) u2(v uint16) {
	w.buf = binary.BigEndian.AppendUint16(w.buf, v)
}

func (w *writer) u4(v uint32) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, v)
}

func (w *writer) bytes(v []byte) {
	w.buf = append(w.buf, v...)
}
