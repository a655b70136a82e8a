package internal

import (
	"strconv"

	"github.com/Matt-Rice/KnightCode-MJR/assembler"
	"github.com/Matt-Rice/KnightCode-MJR/util"
)

var arithOpcodes = map[ArithOp]assembler.Opcode{
	AddOp:      assembler.Iadd,
	SubtractOp: assembler.Isub,
	MultiplyOp: assembler.Imul,
	DivideOp:   assembler.Idiv,
}

// expressionGenerator compiles an expression so that exactly one value is left on the stack.
type expressionGenerator struct {
	ctx *CompilationContext
}

func (gen *expressionGenerator) evaluate(expr Expr) error {
	return expr.Accept(gen)
}

func parseIntLiteral(text string) (int32, error) {
	value, err := strconv.ParseInt(text, 10, 32)
	if err != nil {
		return 0, &MalformedLiteralError{Literal: text}
	}
	return int32(value), nil
}

func (gen *expressionGenerator) VisitIntLiteral(expr *IntLiteral) error {
	value, err := parseIntLiteral(expr.Text)
	if err != nil {
		return err
	}
	gen.ctx.Code.PushInt(value)
	return nil
}

func (gen *expressionGenerator) VisitTextLiteral(expr *TextLiteral) error {
	gen.ctx.Code.PushString(util.StripDelimiters(expr.Raw))
	return nil
}

func (gen *expressionGenerator) VisitIdentifier(expr *Identifier) error {
	variable, err := gen.ctx.Symbols.Lookup(expr.Name)
	if err != nil {
		return err
	}
	gen.ctx.load(variable)
	return nil
}

// VisitBinary evaluates left then right, then applies the operator. Overflow wraps.
func (gen *expressionGenerator) VisitBinary(expr *Binary) error {
	opcode, ok := arithOpcodes[expr.Op]
	if !ok {
		return &UnrecognizedArithmeticOperatorError{Op: string(expr.Op)}
	}
	if err := gen.evaluate(expr.Left); err != nil {
		return err
	}
	if err := gen.evaluate(expr.Right); err != nil {
		return err
	}
	gen.ctx.Code.Emit(opcode)
	return nil
}

func (gen *expressionGenerator) VisitComparison(expr *Comparison) error {
	return gen.ctx.comparisonValue(gen, expr)
}
