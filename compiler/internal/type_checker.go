package internal

import (
	"fmt"

	"github.com/Matt-Rice/KnightCode-MJR/util"
)

// typeChecker walks the body once before any instruction is emitted. Arithmetic and
// comparisons only take INTEGER operands; SET needs a value of the target's type.
type typeChecker struct {
	symbols *SymbolTable
	// result is the type of the expression visited last.
	result VarType
}

func checkTypes(body []Stmt, symbols *SymbolTable) error {
	checker := &typeChecker{symbols: symbols}
	return checker.checkStatements(body)
}

func (checker *typeChecker) checkStatements(stmts []Stmt) error {
	for _, stmt := range stmts {
		err := stmt.Accept(checker)
		if err != nil {
			return err
		}
	}
	return nil
}

func (checker *typeChecker) typeOf(expr Expr) (VarType, error) {
	err := expr.Accept(checker)
	return checker.result, err
}

func (checker *typeChecker) expectInteger(expr Expr, context string) error {
	tp, err := checker.typeOf(expr)
	if err != nil {
		return err
	}
	if tp != IntegerType {
		return &TypeMismatchError{Context: context, Want: IntegerType, Got: tp}
	}
	return nil
}

func (checker *typeChecker) VisitIntLiteral(expr *IntLiteral) error {
	checker.result = IntegerType
	return nil
}

func (checker *typeChecker) VisitTextLiteral(expr *TextLiteral) error {
	checker.result = TextType
	return nil
}

func (checker *typeChecker) VisitIdentifier(expr *Identifier) error {
	variable, err := checker.symbols.Lookup(expr.Name)
	if err != nil {
		return err
	}
	checker.result = variable.Type
	return nil
}

func (checker *typeChecker) VisitBinary(expr *Binary) error {
	context := expr.String()
	if err := checker.expectInteger(expr.Left, context); err != nil {
		return err
	}
	if err := checker.expectInteger(expr.Right, context); err != nil {
		return err
	}
	checker.result = IntegerType
	return nil
}

func (checker *typeChecker) VisitComparison(expr *Comparison) error {
	context := expr.String()
	if err := checker.expectInteger(expr.Left, context); err != nil {
		return err
	}
	if err := checker.expectInteger(expr.Right, context); err != nil {
		return err
	}
	checker.result = IntegerType
	return nil
}

func (checker *typeChecker) VisitSet(stmt *SetStmt) error {
	target, err := checker.symbols.Lookup(stmt.Name)
	if err != nil {
		return err
	}
	tp, err := checker.typeOf(stmt.Value)
	if err != nil {
		return err
	}
	if tp != target.Type {
		return &TypeMismatchError{Context: "assignment to " + stmt.Name, Want: target.Type, Got: tp}
	}
	return nil
}

func (checker *typeChecker) VisitPrint(stmt *PrintStmt) error {
	switch operand := stmt.Operand.(type) {
	case *Identifier:
		_, err := checker.symbols.Lookup(operand.Name)
		return err
	case *TextLiteral:
		return nil
	default:
		return &UnsupportedPrintOperandError{Operand: fmt.Sprint(stmt.Operand)}
	}
}

func (checker *typeChecker) VisitRead(stmt *ReadStmt) error {
	_, err := checker.symbols.Lookup(stmt.Name)
	return err
}

func (checker *typeChecker) VisitIf(stmt *IfStmt) error {
	for _, operand := range []Operand{stmt.Left, stmt.Right} {
		if !util.IsIdentifier(operand.Text) {
			continue
		}
		variable, err := checker.symbols.Lookup(operand.Text)
		if err != nil {
			return err
		}
		if variable.Type != IntegerType {
			return &TypeMismatchError{Context: "IF condition", Want: IntegerType, Got: variable.Type}
		}
	}
	if err := checker.checkStatements(stmt.Then); err != nil {
		return err
	}
	return checker.checkStatements(stmt.Else)
}
