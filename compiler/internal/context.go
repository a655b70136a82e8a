package internal

import (
	"github.com/Matt-Rice/KnightCode-MJR/assembler"
)

// Runtime classes and members the generated program calls.
const (
	systemClass       = "java/lang/System"
	printStreamClass  = "java/io/PrintStream"
	printStreamDesc   = "Ljava/io/PrintStream;"
	inputStreamDesc   = "Ljava/io/InputStream;"
	scannerClass      = "java/util/Scanner"
	scannerInitDesc   = "(Ljava/io/InputStream;)V"
	printlnIntDesc    = "(I)V"
	printlnStringDesc = "(Ljava/lang/String;)V"
	nextIntDesc       = "()I"
	nextLineDesc      = "()Ljava/lang/String;"
)

// CompilationContext is the state of one compilation: the symbol table and the entry-point
// instruction sequence. It is owned by an Emitter and handed to each translator.
type CompilationContext struct {
	Program string
	Symbols *SymbolTable
	// Code is nil until the body is opened.
	Code *assembler.Code
	// readerSlot holds the input reader, -1 when the body has no READ.
	readerSlot int
}

func newCompilationContext(program string) *CompilationContext {
	return &CompilationContext{Program: program, Symbols: NewSymbolTable(), readerSlot: -1}
}

// load emits the type-directed load of variable.
func (ctx *CompilationContext) load(variable *Variable) {
	if variable.Type == IntegerType {
		ctx.Code.Local(assembler.Iload, variable.Slot)
		return
	}
	ctx.Code.Local(assembler.Aload, variable.Slot)
}

// store emits the type-directed store into variable.
func (ctx *CompilationContext) store(variable *Variable) {
	if variable.Type == IntegerType {
		ctx.Code.Local(assembler.Istore, variable.Slot)
		return
	}
	ctx.Code.Local(assembler.Astore, variable.Slot)
}

// println emits System.out.println with the overload for tp. The value must already be on
// the stack above System.out.
func (ctx *CompilationContext) println(tp VarType) {
	desc := printlnStringDesc
	if tp == IntegerType {
		desc = printlnIntDesc
	}
	ctx.Code.Invoke(assembler.Invokevirtual, printStreamClass, "println", desc)
}

func (ctx *CompilationContext) systemOut() {
	ctx.Code.Field(assembler.Getstatic, systemClass, "out", printStreamDesc)
}
