package internal

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// KnightCode grammar:
// program  : PROGRAM ID DECLARE (vartype ID)* BEGIN stat* END
// vartype  : INTEGER | STRING | ID
// stat     : SET? ID := expr | PRINT (STRING | ID) | READ ID
//          | IF operand comp operand THEN stat* (ELSE stat*)? ENDIF
// operand  : NUMBER | ID

const SourceExtension = ".kc"

type Parser struct {
	currentTokens   []*Token
	currentTokenPos int
}

func isKnightCodeFile(fileName string) bool {
	return strings.HasSuffix(fileName, SourceExtension)
}

// ParseFile parses the program at path.
func (parser *Parser) ParseFile(path string) (*Program, error) {
	if !isKnightCodeFile(filepath.Base(path)) {
		log.Warningf("%s does not have the %s extension", path, SourceExtension)
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return parser.Parse(file)
}

func (parser *Parser) Parse(rd io.Reader) (*Program, error) {
	parser.reset()
	tokenizer := &Tokenizer{}
	tokens, err := tokenizer.Tokenize(rd)
	if err != nil {
		return nil, err
	}
	parser.currentTokens = tokens
	program, err := parser.parseProgram()
	if err != nil {
		return nil, err
	}
	if parser.hasRemainTokens() {
		return nil, parser.makeError(true)
	}
	return program, nil
}

func (parser *Parser) reset() {
	parser.currentTokens = nil
	parser.currentTokenPos = 0
}

func (parser *Parser) parseProgram() (*Program, error) {
	if _, ok := parser.expectToken(ProgramTP, true); !ok {
		return nil, parser.makeError(true)
	}
	name, ok := parser.expectToken(IdentifierTP, true)
	if !ok {
		return nil, parser.makeError(true)
	}
	program := &Program{Name: name.content}
	var err error
	program.Declarations, err = parser.parseDeclare()
	if err != nil {
		return nil, err
	}
	program.Body, err = parser.parseBody()
	if err != nil {
		return nil, err
	}
	return program, nil
}

func (parser *Parser) parseDeclare() (decls []*Declaration, err error) {
	if _, ok := parser.expectToken(DeclareTP, true); !ok {
		return nil, parser.makeError(true)
	}
	for parser.matchVariableDeclaration() {
		vartype := parser.currentTokens[parser.currentTokenPos]
		name := parser.currentTokens[parser.currentTokenPos+1]
		parser.currentTokenPos += 2
		decls = append(decls, &Declaration{Type: vartype.content, Name: name.content})
	}
	return decls, nil
}

// matchVariableDeclaration reports whether the next two tokens are a type followed by a name.
// Any identifier is accepted as a type here; the allow-list is applied on declaration.
func (parser *Parser) matchVariableDeclaration() bool {
	if parser.currentTokenPos+1 >= len(parser.currentTokens) {
		return false
	}
	switch parser.currentTokens[parser.currentTokenPos].tp {
	case IntegerTypeTP, StringTypeTP, IdentifierTP:
	default:
		return false
	}
	return parser.currentTokens[parser.currentTokenPos+1].tp == IdentifierTP
}

func (parser *Parser) parseBody() ([]Stmt, error) {
	if _, ok := parser.expectToken(BeginTP, true); !ok {
		return nil, parser.makeError(true)
	}
	stmts, err := parser.parseStatements(EndTP)
	if err != nil {
		return nil, err
	}
	parser.stepForward()
	return stmts, nil
}

// parseStatements parses until one of the terminators, which is left unconsumed.
func (parser *Parser) parseStatements(terminators ...TokenType) (stmts []Stmt, err error) {
	for {
		token, err := parser.getCurrentToken()
		if err != nil {
			return nil, err
		}
		for _, tp := range terminators {
			if token.tp == tp {
				return stmts, nil
			}
		}
		stmt, err := parser.parseStatement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}
}

func (parser *Parser) parseStatement() (Stmt, error) {
	token, err := parser.getCurrentToken()
	if err != nil {
		return nil, err
	}
	switch token.tp {
	case SetTP:
		parser.stepForward()
		return parser.parseSetStatement()
	case IdentifierTP:
		return parser.parseSetStatement()
	case PrintTP:
		return parser.parsePrintStatement()
	case ReadTP:
		return parser.parseReadStatement()
	case IfTP:
		return parser.parseIfStatement()
	default:
		// WHILE lands here too: loops are reserved words without a statement form.
		return nil, parser.makeError(true)
	}
}

func (parser *Parser) parseSetStatement() (Stmt, error) {
	name, ok := parser.expectToken(IdentifierTP, true)
	if !ok {
		return nil, parser.makeError(true)
	}
	if _, ok = parser.expectToken(AssignTP, true); !ok {
		return nil, parser.makeError(true)
	}
	value, err := parser.parseExpression()
	if err != nil {
		return nil, err
	}
	return &SetStmt{Name: name.content, Value: value}, nil
}

func (parser *Parser) parsePrintStatement() (Stmt, error) {
	parser.stepForward()
	token, err := parser.getCurrentToken()
	if err != nil {
		return nil, err
	}
	switch token.tp {
	case StringTP:
		parser.stepForward()
		return &PrintStmt{Operand: &TextLiteral{Raw: token.content}}, nil
	case IdentifierTP:
		parser.stepForward()
		return &PrintStmt{Operand: &Identifier{Name: token.content}}, nil
	default:
		return nil, parser.makeError(true)
	}
}

func (parser *Parser) parseReadStatement() (Stmt, error) {
	parser.stepForward()
	name, ok := parser.expectToken(IdentifierTP, true)
	if !ok {
		return nil, parser.makeError(true)
	}
	return &ReadStmt{Name: name.content}, nil
}

func (parser *Parser) parseIfStatement() (Stmt, error) {
	parser.stepForward()
	stmt := &IfStmt{}
	var err error
	stmt.Left, err = parser.parseOperand()
	if err != nil {
		return nil, err
	}
	token, err := parser.getCurrentToken()
	if err != nil {
		return nil, err
	}
	op, ok := infixOps[token.tp]
	if !ok || op.compare == "" {
		return nil, parser.makeError(true)
	}
	stmt.Op = op.compare
	parser.stepForward()
	stmt.Right, err = parser.parseOperand()
	if err != nil {
		return nil, err
	}
	if _, ok = parser.expectToken(ThenTP, true); !ok {
		return nil, parser.makeError(true)
	}
	stmt.Then, err = parser.parseStatements(ElseTP, EndIfTP)
	if err != nil {
		return nil, err
	}
	if _, ok = parser.expectToken(ElseTP, true); ok {
		stmt.Else, err = parser.parseStatements(EndIfTP)
		if err != nil {
			return nil, err
		}
	}
	if _, ok = parser.expectToken(EndIfTP, true); !ok {
		return nil, parser.makeError(true)
	}
	return stmt, nil
}

func (parser *Parser) parseOperand() (Operand, error) {
	token, err := parser.getCurrentToken()
	if err != nil {
		return Operand{}, err
	}
	if token.tp != IntegerTP && token.tp != IdentifierTP {
		return Operand{}, parser.makeError(true)
	}
	parser.stepForward()
	return Operand{Text: token.content}, nil
}

func (parser *Parser) getCurrentToken() (*Token, error) {
	if !parser.hasRemainTokens() {
		return nil, errors.New("unexpected token ends")
	}
	return parser.currentTokens[parser.currentTokenPos], nil
}

func (parser *Parser) stepForward() {
	parser.currentTokenPos++
}

func (parser *Parser) hasRemainTokens() bool {
	return parser.currentTokenPos < len(parser.currentTokens)
}

func (parser *Parser) expectToken(expectedTokenTp TokenType, walk bool) (*Token, bool) {
	if parser.currentTokenPos >= len(parser.currentTokens) || parser.currentTokens[parser.currentTokenPos].tp !=
		expectedTokenTp {
		return nil, false
	}
	token := parser.currentTokens[parser.currentTokenPos]
	if walk {
		parser.currentTokenPos++
	}
	return token, true
}

func (parser *Parser) makeError(useCurrentPos bool) error {
	currentPos := parser.currentTokenPos
	if !useCurrentPos {
		currentPos--
	}
	if currentPos < 0 || currentPos >= len(parser.currentTokens) {
		return errors.New("unexpected token ends")
	}
	currentToken := parser.currentTokens[currentPos]
	return fmt.Errorf("syntax error near %s at line %d", currentToken.content, currentToken.line)
}
