// Package vmtranslator executes the entry point of a compiled KnightCode class. It covers
// only the instructions and runtime members the compiler emits.
package vmtranslator

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/Matt-Rice/KnightCode-MJR/assembler"
	"github.com/Matt-Rice/KnightCode-MJR/classfile"
)

// ArithmeticError is raised by idiv with a zero divisor.
type ArithmeticError struct {
	Message string
}

func (e *ArithmeticError) Error() string {
	return "java.lang.ArithmeticException: " + e.Message
}

// Runtime objects reachable from generated code.
type (
	printStream struct{ out io.Writer }
	inputStream struct{ in *bufio.Reader }
)

type machine struct {
	class  *classfile.ClassFile
	code   []byte
	pc     int
	locals []interface{}
	stack  []interface{}
	// maxStack is the declared operand stack bound.
	maxStack int
	stdout   *printStream
	stdin    *inputStream
}

// Run loads the class in classBytes and executes main([Ljava/lang/String;)V with stdin
// and stdout as System.in and System.out. ctx is checked before every instruction.
func Run(ctx context.Context, classBytes []byte, stdin io.Reader, stdout io.Writer) error {
	class, err := classfile.Parse(classBytes)
	if err != nil {
		return err
	}
	main, err := class.FindMethod(classfile.MainName, classfile.MainDescriptor)
	if err != nil {
		return err
	}
	if main.Code == nil {
		return fmt.Errorf("vm: %s.main has no code", class.Name)
	}
	m := &machine{
		class:    class,
		code:     main.Code.Bytecode,
		locals:   make([]interface{}, main.Code.MaxLocals),
		maxStack: main.Code.MaxStack,
		stdout:   &printStream{out: stdout},
		stdin:    &inputStream{in: bufio.NewReader(stdin)},
	}
	if len(m.locals) > 0 {
		m.locals[0] = []string{}
	}
	return m.run(ctx)
}

func (m *machine) run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if m.pc >= len(m.code) {
			return fmt.Errorf("vm: execution fell off the end of the code at %d", m.pc)
		}
		done, err := m.step()
		if err != nil {
			return fmt.Errorf("vm: pc %d: %w", m.pc, err)
		}
		if done {
			return nil
		}
	}
}

// step executes the instruction at pc and advances pc. done is true after return.
func (m *machine) step() (done bool, err error) {
	start := m.pc
	op := assembler.Opcode(m.code[start])
	if generic, slot, ok := assembler.ExpandShortForm(op); ok {
		m.pc++
		return false, m.localAccess(generic, slot)
	}
	switch op {
	case assembler.Nop:
		m.pc++
	case assembler.AconstNull:
		m.pc++
		return false, m.push(nil)
	case assembler.IconstM1, assembler.Iconst0, assembler.Iconst1, assembler.Iconst2,
		assembler.Iconst3, assembler.Iconst4, assembler.Iconst5:
		m.pc++
		return false, m.push(int32(op) - int32(assembler.Iconst0))
	case assembler.Bipush:
		operand, err := m.operand(1)
		if err != nil {
			return false, err
		}
		return false, m.push(int32(int8(operand[0])))
	case assembler.Sipush:
		operand, err := m.operand(2)
		if err != nil {
			return false, err
		}
		return false, m.push(int32(int16(binary.BigEndian.Uint16(operand))))
	case assembler.Ldc:
		operand, err := m.operand(1)
		if err != nil {
			return false, err
		}
		return false, m.ldc(uint16(operand[0]))
	case assembler.LdcW:
		operand, err := m.operand(2)
		if err != nil {
			return false, err
		}
		return false, m.ldc(binary.BigEndian.Uint16(operand))
	case assembler.Iload, assembler.Aload, assembler.Istore, assembler.Astore:
		operand, err := m.operand(1)
		if err != nil {
			return false, err
		}
		return false, m.localAccess(op, int(operand[0]))
	case assembler.Wide:
		operand, err := m.operand(3)
		if err != nil {
			return false, err
		}
		return false, m.localAccess(assembler.Opcode(operand[0]), int(binary.BigEndian.Uint16(operand[1:])))
	case assembler.Pop:
		m.pc++
		_, err = m.pop()
		return false, err
	case assembler.Dup:
		m.pc++
		value, err := m.pop()
		if err != nil {
			return false, err
		}
		if err = m.push(value); err != nil {
			return false, err
		}
		return false, m.push(value)
	case assembler.Iadd, assembler.Isub, assembler.Imul, assembler.Idiv:
		m.pc++
		return false, m.arithmetic(op)
	case assembler.IfIcmpeq, assembler.IfIcmpne, assembler.IfIcmplt, assembler.IfIcmpge,
		assembler.IfIcmpgt, assembler.IfIcmple:
		return false, m.compareAndBranch(op, start)
	case assembler.Goto:
		operand, err := m.operand(2)
		if err != nil {
			return false, err
		}
		return false, m.jump(start, operand)
	case assembler.Return:
		m.pc++
		return true, nil
	case assembler.Getstatic:
		member, err := m.memberOperand(classfile.TagFieldref)
		if err != nil {
			return false, err
		}
		return false, m.getstatic(member)
	case assembler.New:
		operand, err := m.operand(2)
		if err != nil {
			return false, err
		}
		class, err := m.class.Constant(binary.BigEndian.Uint16(operand))
		if err != nil {
			return false, err
		}
		if class.Tag != classfile.TagClass || class.Text != scannerClass {
			return false, fmt.Errorf("cannot instantiate %s", class.Text)
		}
		return false, m.push(&scanner{})
	case assembler.Invokespecial, assembler.Invokevirtual:
		member, err := m.memberOperand(classfile.TagMethodref)
		if err != nil {
			return false, err
		}
		return false, m.invoke(op, member)
	default:
		return false, fmt.Errorf("unsupported instruction %s", op)
	}
	return false, nil
}

// operand returns the n bytes after the opcode and moves pc past them.
func (m *machine) operand(n int) ([]byte, error) {
	if m.pc+1+n > len(m.code) {
		return nil, errors.New("truncated instruction")
	}
	operand := m.code[m.pc+1 : m.pc+1+n]
	m.pc += 1 + n
	return operand, nil
}

func (m *machine) memberOperand(tag byte) (classfile.Constant, error) {
	operand, err := m.operand(2)
	if err != nil {
		return classfile.Constant{}, err
	}
	member, err := m.class.Constant(binary.BigEndian.Uint16(operand))
	if err != nil {
		return classfile.Constant{}, err
	}
	if member.Tag != tag {
		return classfile.Constant{}, fmt.Errorf("constant %d has tag %d, expected %d",
			binary.BigEndian.Uint16(operand), member.Tag, tag)
	}
	return member, nil
}

func (m *machine) push(value interface{}) error {
	if len(m.stack) >= m.maxStack {
		return fmt.Errorf("operand stack overflow, max stack %d", m.maxStack)
	}
	m.stack = append(m.stack, value)
	return nil
}

func (m *machine) pop() (interface{}, error) {
	if len(m.stack) == 0 {
		return nil, errors.New("operand stack underflow")
	}
	value := m.stack[len(m.stack)-1]
	m.stack = m.stack[:len(m.stack)-1]
	return value, nil
}

func (m *machine) popInt() (int32, error) {
	value, err := m.pop()
	if err != nil {
		return 0, err
	}
	i, ok := value.(int32)
	if !ok {
		return 0, fmt.Errorf("expected int on the stack, got %T", value)
	}
	return i, nil
}

func (m *machine) ldc(index uint16) error {
	constant, err := m.class.Constant(index)
	if err != nil {
		return err
	}
	switch constant.Tag {
	case classfile.TagInteger:
		return m.push(constant.Int)
	case classfile.TagString:
		return m.push(constant.Text)
	default:
		return fmt.Errorf("ldc of constant %d with tag %d", index, constant.Tag)
	}
}

func (m *machine) localAccess(op assembler.Opcode, slot int) error {
	if slot >= len(m.locals) {
		return fmt.Errorf("%s %d outside max locals %d", op, slot, len(m.locals))
	}
	switch op {
	case assembler.Iload:
		i, ok := m.locals[slot].(int32)
		if !ok {
			return fmt.Errorf("iload %d: slot holds %T", slot, m.locals[slot])
		}
		return m.push(i)
	case assembler.Aload:
		if _, isInt := m.locals[slot].(int32); isInt {
			return fmt.Errorf("aload %d: slot holds an int", slot)
		}
		return m.push(m.locals[slot])
	case assembler.Istore:
		i, err := m.popInt()
		if err != nil {
			return err
		}
		m.locals[slot] = i
		return nil
	case assembler.Astore:
		value, err := m.pop()
		if err != nil {
			return err
		}
		if _, isInt := value.(int32); isInt {
			return fmt.Errorf("astore %d of an int", slot)
		}
		m.locals[slot] = value
		return nil
	default:
		return fmt.Errorf("%s is not a local variable instruction", op)
	}
}

// arithmetic applies op with int32 wraparound.
func (m *machine) arithmetic(op assembler.Opcode) error {
	right, err := m.popInt()
	if err != nil {
		return err
	}
	left, err := m.popInt()
	if err != nil {
		return err
	}
	var result int32
	switch op {
	case assembler.Iadd:
		result = left + right
	case assembler.Isub:
		result = left - right
	case assembler.Imul:
		result = left * right
	case assembler.Idiv:
		if right == 0 {
			return &ArithmeticError{Message: "/ by zero"}
		}
		result = left / right
	}
	return m.push(result)
}

func (m *machine) compareAndBranch(op assembler.Opcode, start int) error {
	operand, err := m.operand(2)
	if err != nil {
		return err
	}
	right, err := m.popInt()
	if err != nil {
		return err
	}
	left, err := m.popInt()
	if err != nil {
		return err
	}
	var taken bool
	switch op {
	case assembler.IfIcmpeq:
		taken = left == right
	case assembler.IfIcmpne:
		taken = left != right
	case assembler.IfIcmplt:
		taken = left < right
	case assembler.IfIcmpge:
		taken = left >= right
	case assembler.IfIcmpgt:
		taken = left > right
	case assembler.IfIcmple:
		taken = left <= right
	}
	if !taken {
		return nil
	}
	return m.jump(start, operand)
}

// jump sets pc to start plus the signed 16-bit offset.
func (m *machine) jump(start int, operand []byte) error {
	target := start + int(int16(binary.BigEndian.Uint16(operand)))
	if target < 0 || target >= len(m.code) {
		return fmt.Errorf("branch target %d outside code", target)
	}
	m.pc = target
	return nil
}
