package internal

import "fmt"

// Every error below is fatal: compilation stops at the first one and no artifact is written.

type UnsupportedTypeError struct {
	Name string
	Type string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("unsupported type %s for variable %s, expected INTEGER or STRING", e.Type, e.Name)
}

type UndeclaredVariableError struct {
	Name string
}

func (e *UndeclaredVariableError) Error() string {
	return fmt.Sprintf("variable %s is not declared", e.Name)
}

type DuplicateVariableError struct {
	Name string
}

func (e *DuplicateVariableError) Error() string {
	return fmt.Sprintf("variable %s is already declared", e.Name)
}

type MalformedLiteralError struct {
	Literal string
}

func (e *MalformedLiteralError) Error() string {
	return fmt.Sprintf("%s is not a valid integer literal", e.Literal)
}

type UnrecognizedComparisonOperatorError struct {
	Op string
}

func (e *UnrecognizedComparisonOperatorError) Error() string {
	return fmt.Sprintf("unrecognized comparison operator %q", e.Op)
}

type UnrecognizedArithmeticOperatorError struct {
	Op string
}

func (e *UnrecognizedArithmeticOperatorError) Error() string {
	return fmt.Sprintf("unrecognized arithmetic operator %q", e.Op)
}

// TypeMismatchError reports an operand whose type is not the one its context requires.
type TypeMismatchError struct {
	Context string
	Want    VarType
	Got     VarType
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("type mismatch in %s: expected %s, got %s", e.Context, e.Want, e.Got)
}

type UnsupportedPrintOperandError struct {
	Operand string
}

func (e *UnsupportedPrintOperandError) Error() string {
	return fmt.Sprintf("cannot print %s, only a variable or a string literal", e.Operand)
}

// InvalidStateError is returned when the emitter is driven out of order.
type InvalidStateError struct {
	Operation string
	State     EmitterState
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s is not valid in state %s", e.Operation, e.State)
}
