package internal

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/Matt-Rice/KnightCode-MJR/classfile"
	"github.com/Matt-Rice/KnightCode-MJR/vmtranslator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryWriter struct {
	artifacts map[string][]byte
}

func newMemoryWriter() *memoryWriter {
	return &memoryWriter{artifacts: map[string][]byte{}}
}

func (writer *memoryWriter) WriteArtifact(name string, data []byte) (string, error) {
	writer.artifacts[name] = data
	return name + ".class", nil
}

func compileString(t *testing.T, source string) (*Result, *memoryWriter, error) {
	writer := newMemoryWriter()
	result, err := CompileSource(strings.NewReader(source), writer)
	return result, writer, err
}

// compileAndRun compiles source and executes the artifact with stdin.
func compileAndRun(t *testing.T, source string, stdin string) string {
	result, writer, err := compileString(t, source)
	require.NoError(t, err)
	require.Equal(t, result.Bytes, writer.artifacts[result.Program])
	var out bytes.Buffer
	err = vmtranslator.Run(context.Background(), result.Bytes, strings.NewReader(stdin), &out)
	require.NoError(t, err, strings.Join(result.Listing, "\n"))
	return out.String()
}

const scenario = `PROGRAM Scenario
DECLARE
	INTEGER x
	STRING s
BEGIN
	READ x
	SET x := x + 1
	PRINT x
	SET s := "hello"
	PRINT s
END
`

func TestCompile_Scenario(t *testing.T) {
	out := compileAndRun(t, scenario, "10\n")
	assert.Equal(t, "Please enter an integer value for x: \n11\nhello\n", out)
}

func TestCompile_ArtifactShape(t *testing.T) {
	result, _, err := compileString(t, scenario)
	require.NoError(t, err)
	assert.Equal(t, "Scenario", result.Program)
	assert.Equal(t, "Scenario.class", result.Path)

	class, err := classfile.Parse(result.Bytes)
	require.NoError(t, err)
	assert.Equal(t, "Scenario", class.Name)
	assert.Equal(t, classfile.ObjectClass, class.SuperName)
	assert.Equal(t, classfile.AccPublic|classfile.AccSuper, class.Access)
	require.Len(t, class.Methods, 2)
	constructor, err := class.FindMethod(classfile.ConstructorName, classfile.NoArgsDescriptor)
	require.NoError(t, err)
	assert.Equal(t, classfile.AccPublic, constructor.Access)
	main, err := class.FindMethod(classfile.MainName, classfile.MainDescriptor)
	require.NoError(t, err)
	assert.Equal(t, classfile.AccPublic|classfile.AccStatic, main.Access)
	// x, s and the input reader
	assert.Equal(t, 3, main.Code.MaxLocals)
}

func TestCompile_Deterministic(t *testing.T) {
	first, _, err := compileString(t, scenario)
	require.NoError(t, err)
	second, _, err := compileString(t, scenario)
	require.NoError(t, err)
	assert.Equal(t, first.Bytes, second.Bytes)

	firstDump, err := Dump(first.Program, first.Symbols, first.Listing)
	require.NoError(t, err)
	secondDump, err := Dump(second.Program, second.Symbols, second.Listing)
	require.NoError(t, err)
	assert.Equal(t, firstDump, secondDump)
}

func TestCompile_AssignThenPrint(t *testing.T) {
	for _, n := range []int64{0, 1, -1, 5, 6, 127, 128, -129, 32767, 32768, -32769, 2147483647, -2147483647} {
		source := fmt.Sprintf("PROGRAM p DECLARE INTEGER v BEGIN SET v := %d PRINT v END", n)
		if n < 0 {
			// no unary minus: build the value as 0 - |n|
			source = fmt.Sprintf("PROGRAM p DECLARE INTEGER v BEGIN SET v := 0 - %d PRINT v END", -n)
		}
		assert.Equal(t, fmt.Sprintf("%d\n", n), compileAndRun(t, source, ""), source)
	}
}

func TestCompile_Arithmetic(t *testing.T) {
	testData := []struct {
		Expr string
		Want string
	}{
		{Expr: "7 + 3", Want: "10"},
		{Expr: "7 - 3", Want: "4"},
		{Expr: "3 - 7", Want: "-4"},
		{Expr: "7 * 3", Want: "21"},
		{Expr: "7 / 2", Want: "3"},
		{Expr: "(0 - 7) / 2", Want: "-3"},
		{Expr: "2 + 3 * 4", Want: "14"},
		{Expr: "(2 + 3) * 4", Want: "20"},
		{Expr: "20 - 4 - 3", Want: "13"},
		{Expr: "2147483647 + 1", Want: "-2147483648"},
	}
	for _, data := range testData {
		source := fmt.Sprintf("PROGRAM p DECLARE INTEGER r BEGIN SET r := %s PRINT r END", data.Expr)
		assert.Equal(t, data.Want+"\n", compileAndRun(t, source, ""), data.Expr)
	}
}

func TestCompile_DivideByZero(t *testing.T) {
	result, _, err := compileString(t, "PROGRAM p DECLARE INTEGER r BEGIN SET r := 1 / 0 PRINT r END")
	require.NoError(t, err)
	var out bytes.Buffer
	err = vmtranslator.Run(context.Background(), result.Bytes, strings.NewReader(""), &out)
	var arithmeticErr *vmtranslator.ArithmeticError
	require.True(t, errors.As(err, &arithmeticErr))
	assert.Equal(t, "", out.String())
}

func TestCompile_ComparisonValue(t *testing.T) {
	testData := []struct {
		Expr string
		Want string
	}{
		{Expr: "5 GT 3", Want: "1"},
		{Expr: "5 GT 7", Want: "0"},
		{Expr: "3 LT 5", Want: "1"},
		{Expr: "5 < 3", Want: "0"},
		{Expr: "4 EQ 4", Want: "1"},
		{Expr: "4 = 5", Want: "0"},
		{Expr: "4 NEQ 4", Want: "0"},
		{Expr: "4 <> 5", Want: "1"},
		{Expr: "1 + 2 > 2", Want: "1"},
		{Expr: "(5 GT 3) + (2 GT 1)", Want: "2"},
	}
	for _, data := range testData {
		source := fmt.Sprintf("PROGRAM p DECLARE INTEGER r BEGIN SET r := %s PRINT r END", data.Expr)
		assert.Equal(t, data.Want+"\n", compileAndRun(t, source, ""), data.Expr)
	}
}

func TestCompile_ComparisonListing(t *testing.T) {
	result, _, err := compileString(t, "PROGRAM p DECLARE INTEGER r BEGIN SET r := 5 GT 3 END")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"\tpush 0",
		"\tistore 0",
		"\tpush 5",
		"\tpush 3",
		"\tif_icmpgt L0",
		"\tpush 0",
		"\tgoto L1",
		"L0:",
		"\tpush 1",
		"L1:",
		"\tistore 0",
		"\treturn",
	}, result.Listing)
}

func TestCompile_Conditional(t *testing.T) {
	source := `PROGRAM Cond
DECLARE INTEGER x STRING s
BEGIN
	READ x
	IF x > 10 THEN
		SET s := "big"
	ELSE
		SET s := "small"
	ENDIF
	PRINT s
	IF x EQ 10 THEN PRINT "ten" ENDIF
	IF 3 < x THEN
		IF x <> 20 THEN PRINT "not twenty" ELSE PRINT "twenty" ENDIF
	ENDIF
	PRINT "end"
END
`
	prompt := "Please enter an integer value for x: \n"
	testData := []struct {
		Input string
		Want  string
	}{
		{Input: "11", Want: "big\nnot twenty\nend\n"},
		{Input: "10", Want: "small\nten\nnot twenty\nend\n"},
		{Input: "20", Want: "big\ntwenty\nend\n"},
		{Input: "2", Want: "small\nend\n"},
	}
	for _, data := range testData {
		assert.Equal(t, prompt+data.Want, compileAndRun(t, source, data.Input), data.Input)
	}
}

func TestCompile_ConditionalListing(t *testing.T) {
	result, _, err := compileString(t,
		`PROGRAM p DECLARE INTEGER r BEGIN IF r > 1 THEN PRINT "t" ELSE PRINT "f" ENDIF END`)
	require.NoError(t, err)
	out := "\tgetstatic java/lang/System.out:Ljava/io/PrintStream;"
	printString := "\tinvokevirtual java/io/PrintStream.println:(Ljava/lang/String;)V"
	assert.Equal(t, []string{
		"\tpush 0",
		"\tistore 0",
		"\tiload 0",
		"\tpush 1",
		"\tif_icmpgt L0",
		out,
		"\tldc \"f\"",
		printString,
		"\tgoto L1",
		"L0:",
		out,
		"\tldc \"t\"",
		printString,
		"L1:",
		"\treturn",
	}, result.Listing)
}

func TestCompile_ReadText(t *testing.T) {
	source := `PROGRAM Names
DECLARE INTEGER age STRING name
BEGIN
	READ name
	READ age
	PRINT name
	PRINT age
END
`
	out := compileAndRun(t, source, "Ada Lovelace\n36\n")
	assert.Equal(t, "Please enter a String value for name: \nPlease enter an integer value for age: \n"+
		"Ada Lovelace\n36\n", out)
}

func TestCompile_NoReadHasNoReader(t *testing.T) {
	result, _, err := compileString(t, `PROGRAM p DECLARE STRING s BEGIN PRINT s PRINT "x" END`)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Symbols.MaxLocals())
	for _, line := range result.Listing {
		assert.NotContains(t, line, "Scanner")
	}
}

func TestCompile_EmptyProgram(t *testing.T) {
	assert.Equal(t, "", compileAndRun(t, "PROGRAM Empty DECLARE BEGIN END", ""))
}

func TestCompile_ManyVariablesUseWideSlots(t *testing.T) {
	var source strings.Builder
	source.WriteString("PROGRAM Wide DECLARE\n")
	for i := 0; i < 300; i++ {
		fmt.Fprintf(&source, "INTEGER v%d\n", i)
	}
	source.WriteString("BEGIN SET v299 := 7 SET v298 := v299 * 6 PRINT v298 END")
	assert.Equal(t, "42\n", compileAndRun(t, source.String(), ""))
}

func TestCompile_UndeclaredVariable(t *testing.T) {
	testData := []string{
		"SET y := 1",
		"SET x := y + 1",
		"PRINT y",
		"READ y",
		"IF y > 1 THEN ENDIF",
		"IF 1 > y THEN ENDIF",
		"IF x > 1 THEN PRINT y ENDIF",
		"IF x > 1 THEN ELSE READ y ENDIF",
	}
	for _, data := range testData {
		_, writer, err := compileString(t, "PROGRAM p DECLARE INTEGER x BEGIN "+data+" END")
		var undeclared *UndeclaredVariableError
		require.True(t, errors.As(err, &undeclared), data)
		assert.Equal(t, "y", undeclared.Name, data)
		assert.Empty(t, writer.artifacts, data)
	}
}

func TestCompile_SourceErrors(t *testing.T) {
	var unsupported *UnsupportedTypeError
	var duplicate *DuplicateVariableError
	var malformed *MalformedLiteralError
	var mismatch *TypeMismatchError
	testData := []struct {
		Source string
		Target interface{}
	}{
		{Source: "DECLARE FLOAT f BEGIN END", Target: &unsupported},
		{Source: "DECLARE INTEGER x STRING x BEGIN END", Target: &duplicate},
		{Source: "DECLARE INTEGER x BEGIN SET x := 2147483648 END", Target: &malformed},
		{Source: "DECLARE INTEGER x BEGIN IF x > 99999999999 THEN ENDIF END", Target: &malformed},
		{Source: "DECLARE INTEGER x BEGIN SET x := \"text\" END", Target: &mismatch},
		{Source: "DECLARE STRING s BEGIN SET s := 1 END", Target: &mismatch},
		{Source: "DECLARE STRING s INTEGER x BEGIN SET x := s + 1 END", Target: &mismatch},
		{Source: "DECLARE STRING s INTEGER x BEGIN SET x := s GT 1 END", Target: &mismatch},
		{Source: "DECLARE STRING s BEGIN IF s EQ 1 THEN ENDIF END", Target: &mismatch},
	}
	for _, data := range testData {
		_, writer, err := compileString(t, "PROGRAM p "+data.Source)
		require.NotNil(t, err, data.Source)
		assert.True(t, errors.As(err, data.Target), "%s: %v", data.Source, err)
		assert.Empty(t, writer.artifacts, data.Source)
	}
}

func TestCompile_TreeErrors(t *testing.T) {
	declarations := []*Declaration{{Type: "INTEGER", Name: "x"}}
	var arithmetic *UnrecognizedArithmeticOperatorError
	var comparison *UnrecognizedComparisonOperatorError
	var malformed *MalformedLiteralError
	var printOperand *UnsupportedPrintOperandError
	testData := []struct {
		Name   string
		Body   []Stmt
		Target interface{}
	}{
		{
			Name:   "arithmetic",
			Body:   []Stmt{&SetStmt{Name: "x", Value: &Binary{Op: "%", Left: &IntLiteral{Text: "1"}, Right: &IntLiteral{Text: "2"}}}},
			Target: &arithmetic,
		},
		{
			Name:   "comparison",
			Body:   []Stmt{&SetStmt{Name: "x", Value: &Comparison{Op: "GE", Left: &IntLiteral{Text: "1"}, Right: &IntLiteral{Text: "2"}}}},
			Target: &comparison,
		},
		{
			Name:   "conditional",
			Body:   []Stmt{&IfStmt{Left: Operand{Text: "x"}, Op: ">=", Right: Operand{Text: "1"}}},
			Target: &comparison,
		},
		{
			Name:   "operand",
			Body:   []Stmt{&IfStmt{Left: Operand{Text: "1x"}, Op: EqualOp, Right: Operand{Text: "1"}}},
			Target: &malformed,
		},
		{
			Name:   "print",
			Body:   []Stmt{&PrintStmt{Operand: &IntLiteral{Text: "5"}}},
			Target: &printOperand,
		},
	}
	for _, data := range testData {
		writer := newMemoryWriter()
		_, err := Compile(&Program{Name: "p", Declarations: declarations, Body: data.Body}, writer)
		require.NotNil(t, err, data.Name)
		assert.True(t, errors.As(err, data.Target), "%s: %v", data.Name, err)
		assert.Empty(t, writer.artifacts, data.Name)
	}
}

type failingWriter struct{}

func (failingWriter) WriteArtifact(name string, data []byte) (string, error) {
	return "", errors.New("disk full")
}

func TestCompile_WriterFailure(t *testing.T) {
	_, err := CompileSource(strings.NewReader("PROGRAM p DECLARE BEGIN END"), failingWriter{})
	require.NotNil(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestDump(t *testing.T) {
	result, _, err := compileString(t, scenario)
	require.NoError(t, err)
	data, err := Dump(result.Program, result.Symbols, result.Listing)
	require.NoError(t, err)
	record, err := UnmarshalDump(data)
	require.NoError(t, err)
	assert.Equal(t, "Scenario", record.Program)
	assert.Equal(t, []DumpVariable{{Name: "x", Type: "INTEGER", Slot: 0}, {Name: "s", Type: "STRING", Slot: 1}},
		record.Variables)
	assert.Equal(t, result.Listing, record.Instructions)

	_, err = UnmarshalDump([]byte{0xff})
	assert.NotNil(t, err)
}
