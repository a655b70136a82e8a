package internal

import (
	"fmt"

	"github.com/Matt-Rice/KnightCode-MJR/assembler"
	"github.com/Matt-Rice/KnightCode-MJR/util"
)

// statementTranslator compiles declarations and statements into ctx.Code.
type statementTranslator struct {
	ctx  *CompilationContext
	expr *expressionGenerator
}

func newStatementTranslator(ctx *CompilationContext) *statementTranslator {
	return &statementTranslator{ctx: ctx, expr: &expressionGenerator{ctx: ctx}}
}

// enterDeclarations starts the program's single scope.
func (translator *statementTranslator) enterDeclarations() {
	translator.ctx.Symbols.Reset()
}

func (translator *statementTranslator) declare(decl *Declaration) error {
	variable, err := translator.ctx.Symbols.Declare(decl.Name, decl.Type)
	if err != nil {
		return err
	}
	log.Debugf("declare %s %s at slot %d", variable.Type, variable.Name, variable.Slot)
	return nil
}

// prologue zero-initialises every variable so each slot is assigned on every path, and
// constructs the input reader once when body reads from stdin.
func (translator *statementTranslator) prologue(body []Stmt) {
	ctx := translator.ctx
	for _, variable := range ctx.Symbols.Variables() {
		if variable.Type == IntegerType {
			ctx.Code.PushInt(0)
		} else {
			ctx.Code.PushString("")
		}
		ctx.store(variable)
	}
	if !containsRead(body) {
		return
	}
	ctx.readerSlot = ctx.Symbols.Temp()
	ctx.Code.Type(assembler.New, scannerClass)
	ctx.Code.Emit(assembler.Dup)
	ctx.Code.Field(assembler.Getstatic, systemClass, "in", inputStreamDesc)
	ctx.Code.Invoke(assembler.Invokespecial, scannerClass, "<init>", scannerInitDesc)
	ctx.Code.Local(assembler.Astore, ctx.readerSlot)
	log.Debugf("input reader at slot %d", ctx.readerSlot)
}

func (translator *statementTranslator) translate(stmt Stmt) error {
	return stmt.Accept(translator)
}

func (translator *statementTranslator) translateAll(stmts []Stmt) error {
	for _, stmt := range stmts {
		err := translator.translate(stmt)
		if err != nil {
			return err
		}
	}
	return nil
}

func (translator *statementTranslator) VisitSet(stmt *SetStmt) error {
	target, err := translator.ctx.Symbols.Lookup(stmt.Name)
	if err != nil {
		return err
	}
	log.Debugf("set %s := %s", stmt.Name, stmt.Value)
	if err = translator.expr.evaluate(stmt.Value); err != nil {
		return err
	}
	translator.ctx.store(target)
	return nil
}

func (translator *statementTranslator) VisitPrint(stmt *PrintStmt) error {
	ctx := translator.ctx
	switch operand := stmt.Operand.(type) {
	case *Identifier:
		variable, err := ctx.Symbols.Lookup(operand.Name)
		if err != nil {
			return err
		}
		log.Debugf("print %s", operand.Name)
		ctx.systemOut()
		ctx.load(variable)
		ctx.println(variable.Type)
	case *TextLiteral:
		log.Debugf("print %s", operand.Raw)
		ctx.systemOut()
		ctx.Code.PushString(util.StripDelimiters(operand.Raw))
		ctx.println(TextType)
	default:
		return &UnsupportedPrintOperandError{Operand: fmt.Sprint(stmt.Operand)}
	}
	return nil
}

func readPrompt(variable *Variable) string {
	if variable.Type == IntegerType {
		return fmt.Sprintf("Please enter an integer value for %s: ", variable.Name)
	}
	return fmt.Sprintf("Please enter a String value for %s: ", variable.Name)
}

// VisitRead prints the prompt, then reads one integer token or one whole line.
func (translator *statementTranslator) VisitRead(stmt *ReadStmt) error {
	ctx := translator.ctx
	variable, err := ctx.Symbols.Lookup(stmt.Name)
	if err != nil {
		return err
	}
	if ctx.readerSlot < 0 {
		return &InvalidStateError{Operation: "READ " + stmt.Name + " without an input reader", State: BodyState}
	}
	log.Debugf("read %s", stmt.Name)
	ctx.systemOut()
	ctx.Code.PushString(readPrompt(variable))
	ctx.println(TextType)
	ctx.Code.Local(assembler.Aload, ctx.readerSlot)
	if variable.Type == IntegerType {
		ctx.Code.Invoke(assembler.Invokevirtual, scannerClass, "nextInt", nextIntDesc)
	} else {
		ctx.Code.Invoke(assembler.Invokevirtual, scannerClass, "nextLine", nextLineDesc)
	}
	ctx.store(variable)
	return nil
}

func (translator *statementTranslator) VisitIf(stmt *IfStmt) error {
	log.Debugf("if %s %s %s", stmt.Left, stmt.Op, stmt.Right)
	return translator.ctx.conditional(translator, stmt)
}
