package vmtranslator

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"

	"github.com/Matt-Rice/KnightCode-MJR/assembler"
	"github.com/Matt-Rice/KnightCode-MJR/classfile"
)

const (
	systemClass      = "java/lang/System"
	printStreamClass = "java/io/PrintStream"
	scannerClass     = "java/util/Scanner"
)

// InputError is raised by a Scanner read that finds no suitable input.
type InputError struct {
	Exception string
	Message   string
}

func (e *InputError) Error() string {
	if e.Message == "" {
		return "java.util." + e.Exception
	}
	return "java.util." + e.Exception + ": " + e.Message
}

// scanner reads whitespace-separated tokens and lines from System.in. It is usable once
// its constructor has run.
type scanner struct {
	in *inputStream
}

func (m *machine) getstatic(field classfile.Constant) error {
	if field.Owner != systemClass {
		return fmt.Errorf("unsupported field %s.%s", field.Owner, field.Name)
	}
	switch field.Name {
	case "out":
		return m.push(m.stdout)
	case "in":
		return m.push(m.stdin)
	default:
		return fmt.Errorf("unsupported field %s.%s", field.Owner, field.Name)
	}
}

func (m *machine) invoke(op assembler.Opcode, method classfile.Constant) error {
	key := method.Owner + "." + method.Name + method.Descriptor
	switch {
	case op == assembler.Invokespecial && key == scannerClass+".<init>(Ljava/io/InputStream;)V":
		return m.initScanner()
	case op == assembler.Invokevirtual && method.Owner == printStreamClass && method.Name == "println":
		return m.println(method.Descriptor)
	case op == assembler.Invokevirtual && key == scannerClass+".nextInt()I":
		sc, err := m.popScanner()
		if err != nil {
			return err
		}
		value, err := sc.nextInt()
		if err != nil {
			return err
		}
		return m.push(value)
	case op == assembler.Invokevirtual && key == scannerClass+".nextLine()Ljava/lang/String;":
		sc, err := m.popScanner()
		if err != nil {
			return err
		}
		line, err := sc.nextLine()
		if err != nil {
			return err
		}
		return m.push(line)
	default:
		return fmt.Errorf("unsupported call %s %s", op, key)
	}
}

func (m *machine) initScanner() error {
	arg, err := m.pop()
	if err != nil {
		return err
	}
	in, ok := arg.(*inputStream)
	if !ok {
		return fmt.Errorf("Scanner.<init> expects an InputStream, got %T", arg)
	}
	receiver, err := m.pop()
	if err != nil {
		return err
	}
	sc, ok := receiver.(*scanner)
	if !ok {
		return fmt.Errorf("Scanner.<init> on %T", receiver)
	}
	sc.in = in
	return nil
}

func (m *machine) popScanner() (*scanner, error) {
	receiver, err := m.pop()
	if err != nil {
		return nil, err
	}
	sc, ok := receiver.(*scanner)
	if !ok || sc.in == nil {
		return nil, fmt.Errorf("expected an initialized Scanner, got %T", receiver)
	}
	return sc, nil
}

func (m *machine) println(descriptor string) error {
	var text string
	switch descriptor {
	case "(I)V":
		value, err := m.popInt()
		if err != nil {
			return err
		}
		text = strconv.Itoa(int(value))
	case "(Ljava/lang/String;)V":
		value, err := m.pop()
		if err != nil {
			return err
		}
		switch s := value.(type) {
		case string:
			text = s
		case nil:
			text = "null"
		default:
			return fmt.Errorf("println(String) of %T", value)
		}
	default:
		return fmt.Errorf("unsupported println%s", descriptor)
	}
	receiver, err := m.pop()
	if err != nil {
		return err
	}
	out, ok := receiver.(*printStream)
	if !ok {
		return fmt.Errorf("println on %T", receiver)
	}
	_, err = io.WriteString(out.out, text+"\n")
	return err
}

// nextInt skips whitespace, reads one token and parses it. The delimiter after the token
// stays unread.
func (sc *scanner) nextInt() (int32, error) {
	in := sc.in.in
	for {
		r, _, err := in.ReadRune()
		if err == io.EOF {
			return 0, &InputError{Exception: "NoSuchElementException"}
		}
		if err != nil {
			return 0, err
		}
		if !unicode.IsSpace(r) {
			if err = in.UnreadRune(); err != nil {
				return 0, err
			}
			break
		}
	}
	var token strings.Builder
	for {
		r, _, err := in.ReadRune()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, err
		}
		if unicode.IsSpace(r) {
			if err = in.UnreadRune(); err != nil {
				return 0, err
			}
			break
		}
		token.WriteRune(r)
	}
	value, err := strconv.ParseInt(token.String(), 10, 32)
	if err != nil {
		return 0, &InputError{Exception: "InputMismatchException", Message: "For input string: \"" + token.String() + "\""}
	}
	return int32(value), nil
}

// nextLine returns the rest of the current line without its terminator.
func (sc *scanner) nextLine() (string, error) {
	line, err := sc.in.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	if err != nil && line == "" {
		return "", &InputError{Exception: "NoSuchElementException", Message: "No line found"}
	}
	line = strings.TrimSuffix(line, "\n")
	return strings.TrimSuffix(line, "\r"), nil
}
