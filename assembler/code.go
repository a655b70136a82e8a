package assembler

import (
	"fmt"
	"strconv"
)

// Kind tells the assembler how an Instruction's operands are encoded.
type Kind int

const (
	SimpleKind Kind = iota // opcode only
	IntKind                // integer constant, encoded as iconst/bipush/sipush/ldc
	StringKind             // string constant through ldc/ldc_w
	LocalKind              // iload/aload/istore/astore on a slot
	JumpKind               // branch to a Label
	FieldKind              // getstatic on a field reference
	MethodKind             // invoke* on a method reference
	TypeKind               // new on a class reference
	LabelKind              // placement of a Label, emits no bytes
)

// Member names a field or method in another class.
type Member struct {
	Owner      string
	Name       string
	Descriptor string
}

func (m Member) String() string {
	return m.Owner + "." + m.Name + ":" + m.Descriptor
}

// Instruction is one entry of an instruction sequence. Which fields are set depends on
// Kind.
type Instruction struct {
	Kind   Kind
	Op     Opcode
	Int    int32
	Slot   int
	Text   string
	Member Member
	Target *Label
}

// Label is a forward-reference marker. It is created before the position it marks is
// known and must be placed exactly once before the sequence is assembled.
type Label struct {
	id     int
	placed bool
	index  int // index of the LabelKind instruction in the owning Code
}

// Name is the label's listing name, numbered in creation order.
func (label *Label) Name() string {
	return "L" + strconv.Itoa(label.id)
}

// Placed reports whether the label has been bound to a position.
func (label *Label) Placed() bool {
	return label.placed
}

// Code is an append-only instruction sequence with symbolic labels. It is sealed by
// Assemble; appending after that panics.
type Code struct {
	instructions []Instruction
	labels       []*Label
	sealed       bool
}

func NewCode() *Code {
	return &Code{}
}

// Instructions returns the recorded sequence, label placements included.
func (code *Code) Instructions() []Instruction {
	return code.instructions
}

// Len is the number of recorded entries, label placements included.
func (code *Code) Len() int {
	return len(code.instructions)
}

// Sealed reports whether the sequence has been assembled.
func (code *Code) Sealed() bool {
	return code.sealed
}

func (code *Code) append(instruction Instruction) {
	if code.sealed {
		panic("assembler: append to a sealed instruction sequence")
	}
	code.instructions = append(code.instructions, instruction)
}

// NewLabel creates an unplaced label owned by this sequence.
func (code *Code) NewLabel() *Label {
	label := &Label{id: len(code.labels), index: -1}
	code.labels = append(code.labels, label)
	return label
}

// Place binds label to the current end of the sequence.
func (code *Code) Place(label *Label) error {
	if label.placed {
		return fmt.Errorf("assembler: label %s placed twice", label.Name())
	}
	if label.id >= len(code.labels) || code.labels[label.id] != label {
		return fmt.Errorf("assembler: label %s belongs to another instruction sequence", label.Name())
	}
	label.placed = true
	label.index = len(code.instructions)
	code.append(Instruction{Kind: LabelKind, Target: label})
	return nil
}

// Emit appends an instruction without operands.
func (code *Code) Emit(op Opcode) {
	code.append(Instruction{Kind: SimpleKind, Op: op})
}

// PushInt appends "push constant integer"; the encoding is chosen at assembly time.
func (code *Code) PushInt(value int32) {
	code.append(Instruction{Kind: IntKind, Op: Ldc, Int: value})
}

// PushString appends a string constant load.
func (code *Code) PushString(value string) {
	code.append(Instruction{Kind: StringKind, Op: Ldc, Text: value})
}

// Local appends a load or store on slot. op must be one of Iload, Aload, Istore, Astore.
func (code *Code) Local(op Opcode, slot int) {
	if _, ok := shortLoadStore[op]; !ok {
		panic(fmt.Sprintf("assembler: %s is not a local variable instruction", op))
	}
	code.append(Instruction{Kind: LocalKind, Op: op, Slot: slot})
}

// Jump appends a branch to label. op is Goto or one of the if_icmp* instructions.
func (code *Code) Jump(op Opcode, label *Label) {
	if op != Goto && !op.IsConditionalJump() {
		panic(fmt.Sprintf("assembler: %s is not a jump instruction", op))
	}
	code.append(Instruction{Kind: JumpKind, Op: op, Target: label})
}

// Field appends a field access. Only getstatic is supported.
func (code *Code) Field(op Opcode, owner, name, descriptor string) {
	code.append(Instruction{Kind: FieldKind, Op: op, Member: Member{owner, name, descriptor}})
}

// Invoke appends a method invocation.
func (code *Code) Invoke(op Opcode, owner, name, descriptor string) {
	code.append(Instruction{Kind: MethodKind, Op: op, Member: Member{owner, name, descriptor}})
}

// Type appends an instruction with a class operand (new).
func (code *Code) Type(op Opcode, className string) {
	code.append(Instruction{Kind: TypeKind, Op: op, Text: className})
}

// Listing renders the sequence one instruction per line, labels on their own line.
func (code *Code) Listing() []string {
	lines := make([]string, 0, len(code.instructions))
	for _, instruction := range code.instructions {
		lines = append(lines, instruction.String())
	}
	return lines
}

func (instruction Instruction) String() string {
	switch instruction.Kind {
	case LabelKind:
		return instruction.Target.Name() + ":"
	case IntKind:
		return fmt.Sprintf("\tpush %d", instruction.Int)
	case StringKind:
		return fmt.Sprintf("\tldc %q", instruction.Text)
	case LocalKind:
		return fmt.Sprintf("\t%s %d", instruction.Op, instruction.Slot)
	case JumpKind:
		return fmt.Sprintf("\t%s %s", instruction.Op, instruction.Target.Name())
	case FieldKind, MethodKind:
		return fmt.Sprintf("\t%s %s", instruction.Op, instruction.Member)
	case TypeKind:
		return fmt.Sprintf("\t%s %s", instruction.Op, instruction.Text)
	}
	return "\t" + instruction.Op.String()
}
