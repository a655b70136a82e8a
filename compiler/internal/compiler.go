package internal

import (
	"io"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("knightcode.compiler")

// Result is a finished compilation.
type Result struct {
	*Artifact
	Symbols *SymbolTable
}

// CompileFile parses and compiles the KnightCode file at path.
func CompileFile(path string, writer ArtifactWriter) (*Result, error) {
	log.Infof("enter file %s", path)
	parser := &Parser{}
	program, err := parser.ParseFile(path)
	if err != nil {
		return nil, err
	}
	return Compile(program, writer)
}

func CompileSource(rd io.Reader, writer ArtifactWriter) (*Result, error) {
	parser := &Parser{}
	program, err := parser.Parse(rd)
	if err != nil {
		return nil, err
	}
	return Compile(program, writer)
}

// Compile translates program and writes the artifact. Nothing reaches writer unless every
// phase succeeds.
func Compile(program *Program, writer ArtifactWriter) (*Result, error) {
	emitter := NewEmitter(writer)
	if err := emitter.Begin(program.Name); err != nil {
		return nil, err
	}
	ctx := emitter.Context()
	translator := newStatementTranslator(ctx)

	log.Infof("enter declare: %d variables", len(program.Declarations))
	translator.enterDeclarations()
	for _, decl := range program.Declarations {
		if err := translator.declare(decl); err != nil {
			return nil, err
		}
	}
	if err := checkTypes(program.Body, ctx.Symbols); err != nil {
		return nil, err
	}

	log.Infof("enter body: %d statements", len(program.Body))
	if err := emitter.BeginBody(); err != nil {
		return nil, err
	}
	translator.prologue(program.Body)
	if err := translator.translateAll(program.Body); err != nil {
		return nil, err
	}

	log.Infof("close %s", program.Name)
	artifact, err := emitter.Close()
	if err != nil {
		return nil, err
	}
	for _, variable := range ctx.Symbols.Variables() {
		log.Debugf("symbol %s %s slot %d", variable.Name, variable.Type, variable.Slot)
	}
	return &Result{Artifact: artifact, Symbols: ctx.Symbols}, nil
}
