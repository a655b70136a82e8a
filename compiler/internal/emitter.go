package internal

import (
	"fmt"

	"github.com/Matt-Rice/KnightCode-MJR/assembler"
	"github.com/Matt-Rice/KnightCode-MJR/classfile"
)

type EmitterState int

const (
	IdleState EmitterState = iota
	OpenState
	BodyState
	ClosedState
)

func (state EmitterState) String() string {
	switch state {
	case IdleState:
		return "IDLE"
	case OpenState:
		return "OPEN"
	case BodyState:
		return "BODY"
	case ClosedState:
		return "CLOSED"
	default:
		return fmt.Sprintf("EmitterState(%d)", int(state))
	}
}

// ArtifactWriter stores a finished module under the program name and returns where it went.
type ArtifactWriter interface {
	WriteArtifact(name string, data []byte) (string, error)
}

// Emitter owns one output module through IDLE -> OPEN -> BODY -> CLOSED. It compiles one
// program and is not reusable.
type Emitter struct {
	state  EmitterState
	writer ArtifactWriter
	class  *classfile.ClassWriter
	ctx    *CompilationContext
}

// Artifact is what Close produced.
type Artifact struct {
	Program string
	Path    string
	Bytes   []byte
	Listing []string
}

func NewEmitter(writer ArtifactWriter) *Emitter {
	return &Emitter{writer: writer}
}

func (emitter *Emitter) State() EmitterState {
	return emitter.state
}

// Context is nil before Begin.
func (emitter *Emitter) Context() *CompilationContext {
	return emitter.ctx
}

func (emitter *Emitter) expect(state EmitterState, operation string) error {
	if emitter.state != state {
		return &InvalidStateError{Operation: operation, State: emitter.state}
	}
	return nil
}

// Begin opens the module for program with its public no-argument constructor.
func (emitter *Emitter) Begin(program string) error {
	if err := emitter.expect(IdleState, "begin"); err != nil {
		return err
	}
	class, err := classfile.NewClassWriter(program, classfile.ObjectClass)
	if err != nil {
		return err
	}
	constructor, err := class.DefaultConstructor()
	if err != nil {
		return err
	}
	if err = class.AddMethod(constructor); err != nil {
		return err
	}
	emitter.class = class
	emitter.ctx = newCompilationContext(program)
	emitter.state = OpenState
	return nil
}

// BeginBody opens the entry-point method.
func (emitter *Emitter) BeginBody() error {
	if err := emitter.expect(OpenState, "begin body"); err != nil {
		return err
	}
	emitter.ctx.Code = assembler.NewCode()
	emitter.state = BodyState
	return nil
}

// Close terminates the entry point with return, serializes the module and hands it to the
// writer. The emitter is CLOSED afterwards even when this fails.
func (emitter *Emitter) Close() (*Artifact, error) {
	if err := emitter.expect(BodyState, "close"); err != nil {
		return nil, err
	}
	emitter.state = ClosedState
	ctx := emitter.ctx
	ctx.Code.Emit(assembler.Return)
	method, err := assembler.Assemble(ctx.Code, emitter.class.Pool(), ctx.Symbols.MaxLocals())
	if err != nil {
		return nil, fmt.Errorf("assemble %s.%s: %w", ctx.Program, classfile.MainName, err)
	}
	err = emitter.class.AddMethod(&classfile.MethodInfo{
		Access:     classfile.AccPublic | classfile.AccStatic,
		Name:       classfile.MainName,
		Descriptor: classfile.MainDescriptor,
		Code:       method,
	})
	if err != nil {
		return nil, err
	}
	data, err := emitter.class.Bytes()
	if err != nil {
		return nil, err
	}
	path, err := emitter.writer.WriteArtifact(ctx.Program, data)
	if err != nil {
		return nil, fmt.Errorf("write %s: %w", ctx.Program, err)
	}
	return &Artifact{Program: ctx.Program, Path: path, Bytes: data, Listing: ctx.Code.Listing()}, nil
}
