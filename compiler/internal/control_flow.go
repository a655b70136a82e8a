package internal

import (
	"github.com/Matt-Rice/KnightCode-MJR/assembler"
	"github.com/Matt-Rice/KnightCode-MJR/util"
)

var compareOpcodes = map[CompareOp]assembler.Opcode{
	GreaterOp:  assembler.IfIcmpgt,
	LessOp:     assembler.IfIcmplt,
	EqualOp:    assembler.IfIcmpeq,
	NotEqualOp: assembler.IfIcmpne,
}

func branchOpcode(op CompareOp) (assembler.Opcode, error) {
	opcode, ok := compareOpcodes[op]
	if !ok {
		return 0, &UnrecognizedComparisonOperatorError{Op: string(op)}
	}
	return opcode, nil
}

// comparisonValue leaves 1 on the stack when the relation holds and 0 otherwise:
//
//	<left> <right> if_icmpXX L_true; push 0; goto L_end; L_true: push 1; L_end:
func (ctx *CompilationContext) comparisonValue(gen *expressionGenerator, expr *Comparison) error {
	opcode, err := branchOpcode(expr.Op)
	if err != nil {
		return err
	}
	if err = gen.evaluate(expr.Left); err != nil {
		return err
	}
	if err = gen.evaluate(expr.Right); err != nil {
		return err
	}
	trueLabel, endLabel := ctx.Code.NewLabel(), ctx.Code.NewLabel()
	ctx.Code.Jump(opcode, trueLabel)
	ctx.Code.PushInt(0)
	ctx.Code.Jump(assembler.Goto, endLabel)
	if err = ctx.Code.Place(trueLabel); err != nil {
		return err
	}
	ctx.Code.PushInt(1)
	return ctx.Code.Place(endLabel)
}

// conditional emits an IF statement. The ELSE list runs on the fall-through path and the
// THEN list at the true label:
//
//	<left> <right> if_icmpXX L_true; <else>; goto L_end; L_true: <then>; L_end:
func (ctx *CompilationContext) conditional(translator *statementTranslator, stmt *IfStmt) error {
	opcode, err := branchOpcode(stmt.Op)
	if err != nil {
		return err
	}
	if err = ctx.loadOperand(stmt.Left); err != nil {
		return err
	}
	if err = ctx.loadOperand(stmt.Right); err != nil {
		return err
	}
	trueLabel, endLabel := ctx.Code.NewLabel(), ctx.Code.NewLabel()
	ctx.Code.Jump(opcode, trueLabel)
	if err = translator.translateAll(stmt.Else); err != nil {
		return err
	}
	ctx.Code.Jump(assembler.Goto, endLabel)
	if err = ctx.Code.Place(trueLabel); err != nil {
		return err
	}
	if err = translator.translateAll(stmt.Then); err != nil {
		return err
	}
	return ctx.Code.Place(endLabel)
}

// loadOperand pushes a conditional operand: a declared variable's value, otherwise the
// operand parsed as an integer literal.
func (ctx *CompilationContext) loadOperand(operand Operand) error {
	variable, err := ctx.Symbols.Lookup(operand.Text)
	if err == nil {
		if variable.Type != IntegerType {
			return &TypeMismatchError{Context: "IF condition", Want: IntegerType, Got: variable.Type}
		}
		ctx.Code.Local(assembler.Iload, variable.Slot)
		return nil
	}
	if util.IsIdentifier(operand.Text) {
		return err
	}
	value, err := parseIntLiteral(operand.Text)
	if err != nil {
		return err
	}
	ctx.Code.PushInt(value)
	return nil
}
