package assembler

import "fmt"

// Opcode is a JVM instruction byte. Only the instructions the KnightCode compiler emits,
// and that the vmtranslator interprets, are listed here.
type Opcode byte

const (
	Nop           Opcode = 0x00
	AconstNull    Opcode = 0x01
	IconstM1      Opcode = 0x02
	Iconst0       Opcode = 0x03
	Iconst1       Opcode = 0x04
	Iconst2       Opcode = 0x05
	Iconst3       Opcode = 0x06
	Iconst4       Opcode = 0x07
	Iconst5       Opcode = 0x08
	Bipush        Opcode = 0x10
	Sipush        Opcode = 0x11
	Ldc           Opcode = 0x12
	LdcW          Opcode = 0x13
	Iload         Opcode = 0x15
	Aload         Opcode = 0x19
	Iload0        Opcode = 0x1a
	Iload1        Opcode = 0x1b
	Iload2        Opcode = 0x1c
	Iload3        Opcode = 0x1d
	Aload0        Opcode = 0x2a
	Aload1        Opcode = 0x2b
	Aload2        Opcode = 0x2c
	Aload3        Opcode = 0x2d
	Istore        Opcode = 0x36
	Astore        Opcode = 0x3a
	Istore0       Opcode = 0x3b
	Istore1       Opcode = 0x3c
	Istore2       Opcode = 0x3d
	Istore3       Opcode = 0x3e
	Astore0       Opcode = 0x4b
	Astore1       Opcode = 0x4c
	Astore2       Opcode = 0x4d
	Astore3       Opcode = 0x4e
	Pop           Opcode = 0x57
	Dup           Opcode = 0x59
	Iadd          Opcode = 0x60
	Isub          Opcode = 0x64
	Imul          Opcode = 0x68
	Idiv          Opcode = 0x6c
	IfIcmpeq      Opcode = 0x9f
	IfIcmpne      Opcode = 0xa0
	IfIcmplt      Opcode = 0xa1
	IfIcmpge      Opcode = 0xa2
	IfIcmpgt      Opcode = 0xa3
	IfIcmple      Opcode = 0xa4
	Goto          Opcode = 0xa7
	Return        Opcode = 0xb1
	Getstatic     Opcode = 0xb2
	Invokevirtual Opcode = 0xb6
	Invokespecial Opcode = 0xb7
	Invokestatic  Opcode = 0xb8
	New           Opcode = 0xbb
	Wide          Opcode = 0xc4
)

// OpcodeInfo describes the static shape of an opcode. Pop and Push are only meaningful
// for instructions whose stack effect does not depend on a constant-pool descriptor.
type OpcodeInfo struct {
	Name string
	Pop  int
	Push int
}

var opcodeInfos = map[Opcode]OpcodeInfo{
	Nop:           {"nop", 0, 0},
	AconstNull:    {"aconst_null", 0, 1},
	IconstM1:      {"iconst_m1", 0, 1},
	Iconst0:       {"iconst_0", 0, 1},
	Iconst1:       {"iconst_1", 0, 1},
	Iconst2:       {"iconst_2", 0, 1},
	Iconst3:       {"iconst_3", 0, 1},
	Iconst4:       {"iconst_4", 0, 1},
	Iconst5:       {"iconst_5", 0, 1},
	Bipush:        {"bipush", 0, 1},
	Sipush:        {"sipush", 0, 1},
	Ldc:           {"ldc", 0, 1},
	LdcW:          {"ldc_w", 0, 1},
	Iload:         {"iload", 0, 1},
	Aload:         {"aload", 0, 1},
	Iload0:        {"iload_0", 0, 1},
	Iload1:        {"iload_1", 0, 1},
	Iload2:        {"iload_2", 0, 1},
	Iload3:        {"iload_3", 0, 1},
	Aload0:        {"aload_0", 0, 1},
	Aload1:        {"aload_1", 0, 1},
	Aload2:        {"aload_2", 0, 1},
	Aload3:        {"aload_3", 0, 1},
	Istore:        {"istore", 1, 0},
	Astore:        {"astore", 1, 0},
	Istore0:       {"istore_0", 1, 0},
	Istore1:       {"istore_1", 1, 0},
	Istore2:       {"istore_2", 1, 0},
	Istore3:       {"istore_3", 1, 0},
	Astore0:       {"astore_0", 1, 0},
	Astore1:       {"astore_1", 1, 0},
	Astore2:       {"astore_2", 1, 0},
	Astore3:       {"astore_3", 1, 0},
	Pop:           {"pop", 1, 0},
	Dup:           {"dup", 1, 2},
	Iadd:          {"iadd", 2, 1},
	Isub:          {"isub", 2, 1},
	Imul:          {"imul", 2, 1},
	Idiv:          {"idiv", 2, 1},
	IfIcmpeq:      {"if_icmpeq", 2, 0},
	IfIcmpne:      {"if_icmpne", 2, 0},
	IfIcmplt:      {"if_icmplt", 2, 0},
	IfIcmpge:      {"if_icmpge", 2, 0},
	IfIcmpgt:      {"if_icmpgt", 2, 0},
	IfIcmple:      {"if_icmple", 2, 0},
	Goto:          {"goto", 0, 0},
	Return:        {"return", 0, 0},
	Getstatic:     {"getstatic", 0, 0},
	Invokevirtual: {"invokevirtual", 0, 0},
	Invokespecial: {"invokespecial", 0, 0},
	Invokestatic:  {"invokestatic", 0, 0},
	New:           {"new", 0, 1},
	Wide:          {"wide", 0, 0},
}

// Info returns the descriptor of op. Unknown opcodes report a synthetic name and no
// stack effect.
func (op Opcode) Info() OpcodeInfo {
	info, ok := opcodeInfos[op]
	if !ok {
		return OpcodeInfo{Name: fmt.Sprintf("op_0x%02x", byte(op))}
	}
	return info
}

// Known reports whether op is part of the supported instruction subset.
func (op Opcode) Known() bool {
	_, ok := opcodeInfos[op]
	return ok
}

func (op Opcode) String() string {
	return op.Info().Name
}

// IsConditionalJump reports whether op is a two-operand integer comparison branch.
func (op Opcode) IsConditionalJump() bool {
	return op >= IfIcmpeq && op <= IfIcmple
}

// shortLoadStore maps the generic slot instructions to the base of their _0.._3 forms.
var shortLoadStore = map[Opcode]Opcode{
	Iload:  Iload0,
	Aload:  Aload0,
	Istore: Istore0,
	Astore: Astore0,
}

// ExpandShortForm maps iload_2, astore_0, ... back to the generic opcode and its slot.
// ok is false for anything that is not a short load/store.
func ExpandShortForm(op Opcode) (generic Opcode, slot int, ok bool) {
	for generic, base := range shortLoadStore {
		if op >= base && op <= base+3 {
			return generic, int(op - base), true
		}
	}
	return 0, 0, false
}

// DescriptorSlots returns the operand-stack words consumed by the arguments of a method
// descriptor and produced by its return value.
func DescriptorSlots(descriptor string) (args int, ret int, err error) {
	if len(descriptor) == 0 || descriptor[0] != '(' {
		return 0, 0, fmt.Errorf("assembler: malformed method descriptor %q", descriptor)
	}
	i := 1
	for i < len(descriptor) && descriptor[i] != ')' {
		size, next, err := fieldTypeSize(descriptor, i)
		if err != nil {
			return 0, 0, err
		}
		args += size
		i = next
	}
	if i >= len(descriptor) {
		return 0, 0, fmt.Errorf("assembler: malformed method descriptor %q", descriptor)
	}
	i++
	if i < len(descriptor) && descriptor[i] == 'V' {
		return args, 0, nil
	}
	ret, next, err := fieldTypeSize(descriptor, i)
	if err != nil {
		return 0, 0, err
	}
	if next != len(descriptor) {
		return 0, 0, fmt.Errorf("assembler: malformed method descriptor %q", descriptor)
	}
	return args, ret, nil
}

// FieldSlots returns the operand-stack words of a field descriptor.
func FieldSlots(descriptor string) (int, error) {
	size, next, err := fieldTypeSize(descriptor, 0)
	if err != nil {
		return 0, err
	}
	if next != len(descriptor) {
		return 0, fmt.Errorf("assembler: malformed field descriptor %q", descriptor)
	}
	return size, nil
}

func fieldTypeSize(descriptor string, i int) (size int, next int, err error) {
	if i >= len(descriptor) {
		return 0, 0, fmt.Errorf("assembler: truncated descriptor %q", descriptor)
	}
	switch descriptor[i] {
	case 'B', 'C', 'F', 'I', 'S', 'Z':
		return 1, i + 1, nil
	case 'D', 'J':
		return 2, i + 1, nil
	case 'L':
		for j := i; j < len(descriptor); j++ {
			if descriptor[j] == ';' {
				return 1, j + 1, nil
			}
		}
		return 0, 0, fmt.Errorf("assembler: unterminated class name in %q", descriptor)
	case '[':
		// Arrays are a single reference whatever the component type.
		_, next, err := fieldTypeSize(descriptor, i+1)
		if err != nil {
			return 0, 0, err
		}
		return 1, next, nil
	}
	return 0, 0, fmt.Errorf("assembler: bad type %q in descriptor %q", descriptor[i], descriptor)
}
