package internal

import "fmt"

// VarType is the type of a declared variable.
type VarType int

const (
	IntegerType VarType = iota
	TextType
)

func (tp VarType) String() string {
	switch tp {
	case IntegerType:
		return "INTEGER"
	case TextType:
		return "STRING"
	default:
		return fmt.Sprintf("VarType(%d)", int(tp))
	}
}

// varTypeNames is the declaration allow-list, keyed by source spelling.
var varTypeNames = map[string]VarType{
	"INTEGER": IntegerType,
	"STRING":  TextType,
}

type ArithOp string

const (
	AddOp      ArithOp = "+"
	SubtractOp ArithOp = "-"
	MultiplyOp ArithOp = "*"
	DivideOp   ArithOp = "/"
)

type CompareOp string

const (
	GreaterOp  CompareOp = "GT"
	LessOp     CompareOp = "LT"
	EqualOp    CompareOp = "EQ"
	NotEqualOp CompareOp = "NEQ"
)

// Program is the root of a parsed KnightCode file.
type Program struct {
	Name         string
	Declarations []*Declaration
	Body         []Stmt
}

// Declaration keeps the type as written so the allow-list check happens at declaration time.
type Declaration struct {
	Type string
	Name string
}

// Expr is one of IntLiteral, TextLiteral, Identifier, Binary, Comparison.
type Expr interface {
	Accept(visitor ExprVisitor) error
	fmt.Stringer
}

type ExprVisitor interface {
	VisitIntLiteral(expr *IntLiteral) error
	VisitTextLiteral(expr *TextLiteral) error
	VisitIdentifier(expr *Identifier) error
	VisitBinary(expr *Binary) error
	VisitComparison(expr *Comparison) error
}

type IntLiteral struct {
	Text string
}

// TextLiteral holds the literal with its delimiters, e.g. "hello" including the quotes.
type TextLiteral struct {
	Raw string
}

type Identifier struct {
	Name string
}

type Binary struct {
	Op    ArithOp
	Left  Expr
	Right Expr
}

// Comparison evaluates to 1 when the relation holds and 0 otherwise.
type Comparison struct {
	Op    CompareOp
	Left  Expr
	Right Expr
}

func (expr *IntLiteral) Accept(visitor ExprVisitor) error  { return visitor.VisitIntLiteral(expr) }
func (expr *TextLiteral) Accept(visitor ExprVisitor) error { return visitor.VisitTextLiteral(expr) }
func (expr *Identifier) Accept(visitor ExprVisitor) error  { return visitor.VisitIdentifier(expr) }
func (expr *Binary) Accept(visitor ExprVisitor) error      { return visitor.VisitBinary(expr) }
func (expr *Comparison) Accept(visitor ExprVisitor) error  { return visitor.VisitComparison(expr) }

func (expr *IntLiteral) String() string  { return expr.Text }
func (expr *TextLiteral) String() string { return expr.Raw }
func (expr *Identifier) String() string  { return expr.Name }

func (expr *Binary) String() string {
	return fmt.Sprintf("(%s %s %s)", expr.Left, expr.Op, expr.Right)
}

func (expr *Comparison) String() string {
	return fmt.Sprintf("(%s %s %s)", expr.Left, expr.Op, expr.Right)
}

// Stmt is one of SetStmt, PrintStmt, ReadStmt, IfStmt.
type Stmt interface {
	Accept(visitor StmtVisitor) error
}

type StmtVisitor interface {
	VisitSet(stmt *SetStmt) error
	VisitPrint(stmt *PrintStmt) error
	VisitRead(stmt *ReadStmt) error
	VisitIf(stmt *IfStmt) error
}

type SetStmt struct {
	Name  string
	Value Expr
}

// PrintStmt accepts an Identifier or a TextLiteral operand.
type PrintStmt struct {
	Operand Expr
}

type ReadStmt struct {
	Name string
}

// Operand is a bare integer literal or variable name, as allowed in an IF condition.
type Operand struct {
	Text string
}

func (operand Operand) String() string {
	return operand.Text
}

type IfStmt struct {
	Left  Operand
	Op    CompareOp
	Right Operand
	Then  []Stmt
	Else  []Stmt
}

func (stmt *SetStmt) Accept(visitor StmtVisitor) error   { return visitor.VisitSet(stmt) }
func (stmt *PrintStmt) Accept(visitor StmtVisitor) error { return visitor.VisitPrint(stmt) }
func (stmt *ReadStmt) Accept(visitor StmtVisitor) error  { return visitor.VisitRead(stmt) }
func (stmt *IfStmt) Accept(visitor StmtVisitor) error    { return visitor.VisitIf(stmt) }

// containsRead reports whether any statement, including nested IF branches, is a READ.
func containsRead(stmts []Stmt) bool {
	for _, stmt := range stmts {
		switch s := stmt.(type) {
		case *ReadStmt:
			return true
		case *IfStmt:
			if containsRead(s.Then) || containsRead(s.Else) {
				return true
			}
		}
	}
	return false
}
