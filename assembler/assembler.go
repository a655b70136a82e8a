package assembler

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/tliron/commonlog"
)

// Assembly happens in two passes over an instruction sequence. The first pass interns
// every constant, fixes the size of every instruction and so the byte position of every
// label. The second pass writes the bytes, patching each branch with the distance to
// its label. Labels may therefore be used before they are placed.

var log = commonlog.GetLogger("knightcode.assembler")

// ConstantPool interns the constants an instruction sequence refers to and returns their
// pool indexes.
type ConstantPool interface {
	Integer(value int32) (uint16, error)
	String(value string) (uint16, error)
	Class(name string) (uint16, error)
	Fieldref(owner, name, descriptor string) (uint16, error)
	Methodref(owner, name, descriptor string) (uint16, error)
}

// Method is an assembled method body.
type Method struct {
	Bytecode  []byte
	MaxStack  int
	MaxLocals int
}

type Assembler struct {
	code        *Code
	pool        ConstantPool
	positions   []int
	sizes       []int
	poolIndexes []uint16
	codeLength  int
	maxLocals   int
}

// Assemble seals code and turns it into bytecode. minLocals is the size of the local
// variable area required by the method's parameters.
func Assemble(code *Code, pool ConstantPool, minLocals int) (*Method, error) {
	if code.sealed {
		return nil, errors.New("assembler: instruction sequence already assembled")
	}
	asm := &Assembler{code: code, pool: pool, maxLocals: minLocals}
	err := asm.checkLabels()
	if err != nil {
		return nil, err
	}
	err = asm.layout()
	if err != nil {
		return nil, err
	}
	maxStack, err := asm.analyzeStack()
	if err != nil {
		return nil, err
	}
	bytecode, err := asm.encode()
	if err != nil {
		return nil, err
	}
	code.sealed = true
	log.Debugf("assembled %d instructions into %d bytes, max stack %d, max locals %d",
		len(code.instructions), len(bytecode), maxStack, asm.maxLocals)
	return &Method{Bytecode: bytecode, MaxStack: maxStack, MaxLocals: asm.maxLocals}, nil
}

// checkLabels enforces that every label created on the sequence was placed exactly once.
func (asm *Assembler) checkLabels() error {
	for _, label := range asm.code.labels {
		if !label.placed {
			return fmt.Errorf("assembler: label %s was never placed", label.Name())
		}
	}
	for i, instruction := range asm.code.instructions {
		if instruction.Kind != JumpKind {
			continue
		}
		target := instruction.Target
		if target == nil || target.id >= len(asm.code.labels) || asm.code.labels[target.id] != target {
			return fmt.Errorf("assembler: instruction %d jumps to a foreign label", i)
		}
	}
	return nil
}

// layout is the first pass: constant interning and instruction sizes.
func (asm *Assembler) layout() error {
	n := len(asm.code.instructions)
	asm.positions = make([]int, n)
	asm.sizes = make([]int, n)
	asm.poolIndexes = make([]uint16, n)
	position := 0
	for i, instruction := range asm.code.instructions {
		size, index, err := asm.sizeOf(instruction)
		if err != nil {
			return fmt.Errorf("assembler: instruction %d (%s): %w", i, instruction, err)
		}
		asm.positions[i], asm.sizes[i], asm.poolIndexes[i] = position, size, index
		position += size
	}
	if position == 0 {
		return errors.New("assembler: empty method body")
	}
	if position > math.MaxUint16 {
		return fmt.Errorf("assembler: method body of %d bytes exceeds the 65535 byte limit", position)
	}
	asm.codeLength = position
	return nil
}

func (asm *Assembler) sizeOf(instruction Instruction) (size int, index uint16, err error) {
	switch instruction.Kind {
	case LabelKind:
		return 0, 0, nil
	case SimpleKind:
		if !instruction.Op.Known() {
			return 0, 0, fmt.Errorf("unsupported opcode 0x%02x", byte(instruction.Op))
		}
		return 1, 0, nil
	case IntKind:
		value := instruction.Int
		switch {
		case value >= -1 && value <= 5:
			return 1, 0, nil
		case value >= math.MinInt8 && value <= math.MaxInt8:
			return 2, 0, nil
		case value >= math.MinInt16 && value <= math.MaxInt16:
			return 3, 0, nil
		}
		index, err = asm.pool.Integer(value)
		return ldcSize(index), index, err
	case StringKind:
		index, err = asm.pool.String(instruction.Text)
		return ldcSize(index), index, err
	case LocalKind:
		slot := instruction.Slot
		if slot < 0 || slot > math.MaxUint16 {
			return 0, 0, fmt.Errorf("slot %d out of range", slot)
		}
		if slot+1 > asm.maxLocals {
			asm.maxLocals = slot + 1
		}
		switch {
		case slot <= 3:
			return 1, 0, nil
		case slot <= math.MaxUint8:
			return 2, 0, nil
		}
		return 4, 0, nil
	case JumpKind:
		return 3, 0, nil
	case FieldKind:
		member := instruction.Member
		index, err = asm.pool.Fieldref(member.Owner, member.Name, member.Descriptor)
		return 3, index, err
	case MethodKind:
		member := instruction.Member
		index, err = asm.pool.Methodref(member.Owner, member.Name, member.Descriptor)
		return 3, index, err
	case TypeKind:
		index, err = asm.pool.Class(instruction.Text)
		return 3, index, err
	}
	return 0, 0, fmt.Errorf("unknown instruction kind %d", instruction.Kind)
}

func ldcSize(index uint16) int {
	if index <= math.MaxUint8 {
		return 2
	}
	return 3
}

// stackEffect returns how many words instruction pops and then pushes.
func stackEffect(instruction Instruction) (pop int, push int, err error) {
	switch instruction.Kind {
	case LabelKind:
		return 0, 0, nil
	case IntKind, StringKind, TypeKind:
		return 0, 1, nil
	case FieldKind:
		if instruction.Op != Getstatic {
			return 0, 0, fmt.Errorf("unsupported field instruction %s", instruction.Op)
		}
		size, err := FieldSlots(instruction.Member.Descriptor)
		return 0, size, err
	case MethodKind:
		args, ret, err := DescriptorSlots(instruction.Member.Descriptor)
		if err != nil {
			return 0, 0, err
		}
		if instruction.Op != Invokestatic {
			args++
		}
		return args, ret, nil
	}
	info := instruction.Op.Info()
	return info.Pop, info.Push, nil
}

// analyzeStack walks every reachable path and returns the deepest operand stack. Paths
// that meet at a label must agree on the stack height.
func (asm *Assembler) analyzeStack() (int, error) {
	instructions := asm.code.instructions
	depths := make([]int, len(instructions))
	for i := range depths {
		depths[i] = -1
	}
	depths[0] = 0
	worklist := []int{0}
	maxStack := 0
	for len(worklist) > 0 {
		i := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		instruction := instructions[i]
		pop, push, err := stackEffect(instruction)
		if err != nil {
			return 0, fmt.Errorf("assembler: instruction %d (%s): %w", i, instruction, err)
		}
		in := depths[i]
		if in < pop {
			return 0, fmt.Errorf("assembler: stack underflow at instruction %d (%s)", i, instruction)
		}
		out := in - pop + push
		if out > maxStack {
			maxStack = out
		}
		successors, err := asm.successors(i)
		if err != nil {
			return 0, err
		}
		for _, next := range successors {
			switch depths[next] {
			case -1:
				depths[next] = out
				worklist = append(worklist, next)
			case out:
			default:
				return 0, fmt.Errorf("assembler: inconsistent stack height at instruction %d: %d and %d",
					next, depths[next], out)
			}
		}
	}
	return maxStack, nil
}

func (asm *Assembler) successors(i int) ([]int, error) {
	instruction := asm.code.instructions[i]
	if instruction.Kind == SimpleKind && instruction.Op == Return {
		return nil, nil
	}
	var successors []int
	if instruction.Kind == JumpKind {
		target := instruction.Target.index
		if target >= len(asm.code.instructions) {
			return nil, fmt.Errorf("assembler: label %s marks the end of the method", instruction.Target.Name())
		}
		successors = append(successors, target)
		if instruction.Op == Goto {
			return successors, nil
		}
	}
	if i+1 >= len(asm.code.instructions) {
		return nil, errors.New("assembler: execution falls off the end of the method")
	}
	return append(successors, i+1), nil
}

// encode is the second pass.
func (asm *Assembler) encode() ([]byte, error) {
	out := make([]byte, 0, asm.codeLength)
	for i, instruction := range asm.code.instructions {
		var err error
		out, err = asm.encodeInstruction(out, i, instruction)
		if err != nil {
			return nil, fmt.Errorf("assembler: instruction %d (%s): %w", i, instruction, err)
		}
		if len(out) != asm.positions[i]+asm.sizes[i] {
			return nil, fmt.Errorf("assembler: instruction %d (%s) encoded to an unexpected size", i, instruction)
		}
	}
	return out, nil
}

func (asm *Assembler) encodeInstruction(out []byte, i int, instruction Instruction) ([]byte, error) {
	index := asm.poolIndexes[i]
	switch instruction.Kind {
	case LabelKind:
		return out, nil
	case SimpleKind:
		return append(out, byte(instruction.Op)), nil
	case IntKind:
		value := instruction.Int
		switch asm.sizes[i] {
		case 1:
			return append(out, byte(Iconst0)+byte(value)), nil
		case 2:
			if value >= math.MinInt8 && value <= math.MaxInt8 {
				return append(out, byte(Bipush), byte(int8(value))), nil
			}
		case 3:
			if value >= math.MinInt16 && value <= math.MaxInt16 {
				return appendU16(append(out, byte(Sipush)), uint16(int16(value))), nil
			}
		}
		return appendLdc(out, index), nil
	case StringKind:
		return appendLdc(out, index), nil
	case LocalKind:
		slot := instruction.Slot
		switch {
		case slot <= 3:
			return append(out, byte(shortLoadStore[instruction.Op])+byte(slot)), nil
		case slot <= math.MaxUint8:
			return append(out, byte(instruction.Op), byte(slot)), nil
		}
		return appendU16(append(out, byte(Wide), byte(instruction.Op)), uint16(slot)), nil
	case JumpKind:
		target := asm.positions[instruction.Target.index]
		if target >= asm.codeLength {
			return nil, fmt.Errorf("label %s marks the end of the method", instruction.Target.Name())
		}
		offset := target - asm.positions[i]
		if offset < math.MinInt16 || offset > math.MaxInt16 {
			return nil, fmt.Errorf("branch offset %d out of range", offset)
		}
		return appendU16(append(out, byte(instruction.Op)), uint16(int16(offset))), nil
	case FieldKind, MethodKind, TypeKind:
		return appendU16(append(out, byte(instruction.Op)), index), nil
	}
	return nil, fmt.Errorf("unknown instruction kind %d", instruction.Kind)
}

func appendLdc(out []byte, index uint16) []byte {
	if index <= math.MaxUint8 {
		return append(out, byte(Ldc), byte(index))
	}
	return appendU16(append(out, byte(LdcW)), index)
}

func appendU16(out []byte, value uint16) []byte {
	return binary.BigEndian.AppendUint16(out, value)
}
