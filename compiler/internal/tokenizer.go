package internal

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"unicode"

	"github.com/Matt-Rice/KnightCode-MJR/util"
)

// A simple Tokenizer for KnightCode.

// KnightCode source has those elements:
// * KeyWord: PROGRAM, DECLARE, BEGIN, END, INTEGER, STRING, SET, PRINT, READ, IF, THEN, ELSE,
// 			ENDIF, WHILE, DO, ENDWHILE, GT, LT, EQ, NEQ.
// * Symbol: (, ), +, -, *, /, >, <, =, <>, :=.
// * Constant: integer, string ("xxx"). A string token keeps its quotes.
// * Identifier: letters, digits, underscore, not starting with a digit.
// * Comment: # until the end of the line.

type TokenType int

const (
	ProgramTP           TokenType = iota // PROGRAM
	DeclareTP                            // DECLARE
	BeginTP                              // BEGIN
	EndTP                                // END
	IntegerTypeTP                        // INTEGER
	StringTypeTP                         // STRING
	SetTP                                // SET
	PrintTP                              // PRINT
	ReadTP                               // READ
	IfTP                                 // IF
	ThenTP                               // THEN
	ElseTP                               // ELSE
	EndIfTP                              // ENDIF
	WhileTP                              // WHILE
	DoTP                                 // DO
	EndWhileTP                           // ENDWHILE
	GtKeyWordTP                          // GT
	LtKeyWordTP                          // LT
	EqKeyWordTP                          // EQ
	NeqKeyWordTP                         // NEQ
	LeftParentThesesTP                   // (
	RightParentThesesTP                  // )
	AddTP                                // +
	MinusTP                              // -
	MultiplyTP                           // *
	DivideTP                             // /
	GreaterTP                            // >
	LessTP                               // <
	EqualTP                              // =
	NotEqualTP                           // <>
	AssignTP                             // :=
	IntegerTP                            // 1010
	StringTP                             // "xxx"
	IdentifierTP                         // varA
)

// keyWordTokenTPMap is the mapping from identifier to the corresponding TokenTP.
var keyWordTokenTPMap = map[string]TokenType{
	"PROGRAM":  ProgramTP,
	"DECLARE":  DeclareTP,
	"BEGIN":    BeginTP,
	"END":      EndTP,
	"INTEGER":  IntegerTypeTP,
	"STRING":   StringTypeTP,
	"SET":      SetTP,
	"PRINT":    PrintTP,
	"READ":     ReadTP,
	"IF":       IfTP,
	"THEN":     ThenTP,
	"ELSE":     ElseTP,
	"ENDIF":    EndIfTP,
	"WHILE":    WhileTP,
	"DO":       DoTP,
	"ENDWHILE": EndWhileTP,
	"GT":       GtKeyWordTP,
	"LT":       LtKeyWordTP,
	"EQ":       EqKeyWordTP,
	"NEQ":      NeqKeyWordTP,
}

// simpleSymbolTokenTPMap is the mapping from single character symbols to the corresponding TokenTP.
// '<' and ':' may start a two character symbol and are handled separately.
var simpleSymbolTokenTPMap = map[string]TokenType{
	"(": LeftParentThesesTP,
	")": RightParentThesesTP,
	"+": AddTP,
	"-": MinusTP,
	"*": MultiplyTP,
	"/": DivideTP,
	">": GreaterTP,
	"=": EqualTP,
}

type Token struct {
	content  string
	line     int
	startPos int
	endPos   int
	tp       TokenType
}

func (t *Token) String() string {
	return t.content
}

type Tokenizer struct {
	currentPos  int
	currentLine int
	tokens      []*Token
}

// getNextToken returns the next token from line, or nil when the line is used up.
func (tokenizer *Tokenizer) getNextToken(line []byte) (*Token, error) {
	tokenizer.trimSpace(line)
	if !tokenizer.hasRemainCharacters(line) {
		return nil, nil
	}
	switch line[tokenizer.currentPos] {
	case '(', ')', '+', '-', '*', '/', '>', '=':
		return tokenizer.tokenSimpleSymbol(line)
	case '<':
		return tokenizer.tokenLessOrNotEqual(line)
	case ':':
		return tokenizer.tokenAssign(line)
	case '#':
		tokenizer.currentPos = len(line)
		return nil, nil
	case '"':
		return tokenizer.tokenString(line)
	case '1', '2', '3', '4', '5', '6', '7', '8', '9', '0':
		return tokenizer.tokenNumber(line)
	default:
		return tokenizer.toKeywordOrIdentifier(line)
	}
}

// trimSpace will step forward through line and skip all continuous space.
func (tokenizer *Tokenizer) trimSpace(line []byte) {
	for tokenizer.currentPos < len(line) {
		if unicode.IsSpace(rune(line[tokenizer.currentPos])) {
			tokenizer.currentPos++
			continue
		}
		break
	}
}

func (tokenizer *Tokenizer) hasRemainCharacters(line []byte) bool {
	return tokenizer.currentPos < len(line)
}

func (tokenizer *Tokenizer) makeToken(content string, tp TokenType, startPos int) *Token {
	return &Token{
		content:  content,
		line:     tokenizer.currentLine,
		tp:       tp,
		startPos: startPos,
		endPos:   startPos + len(content),
	}
}

func (tokenizer *Tokenizer) tokenSimpleSymbol(line []byte) (*Token, error) {
	symbol := string(line[tokenizer.currentPos])
	token := tokenizer.makeToken(symbol, simpleSymbolTokenTPMap[symbol], tokenizer.currentPos)
	tokenizer.currentPos++
	return token, nil
}

func (tokenizer *Tokenizer) tokenLessOrNotEqual(line []byte) (*Token, error) {
	startPos := tokenizer.currentPos
	if startPos+1 < len(line) && line[startPos+1] == '>' {
		tokenizer.currentPos += 2
		return tokenizer.makeToken("<>", NotEqualTP, startPos), nil
	}
	tokenizer.currentPos++
	return tokenizer.makeToken("<", LessTP, startPos), nil
}

func (tokenizer *Tokenizer) tokenAssign(line []byte) (*Token, error) {
	startPos := tokenizer.currentPos
	if startPos+1 >= len(line) || line[startPos+1] != '=' {
		return nil, tokenizer.makeError(string(line[startPos:]), tokenizer.currentLine, "expected :=")
	}
	tokenizer.currentPos += 2
	return tokenizer.makeToken(":=", AssignTP, startPos), nil
}

func (tokenizer *Tokenizer) tokenString(line []byte) (*Token, error) {
	// Looking forward through line to find a closing quote.
	startPos := tokenizer.currentPos
	tokenizer.currentPos++
	foundClosingQuote := false
	for tokenizer.currentPos < len(line) {
		if line[tokenizer.currentPos] == '"' {
			tokenizer.currentPos++
			foundClosingQuote = true
			break
		}
		tokenizer.currentPos++
	}
	if !foundClosingQuote {
		return nil, tokenizer.makeError(string(line[startPos:]), tokenizer.currentLine, "incorrect string format")
	}
	return tokenizer.makeToken(string(line[startPos:tokenizer.currentPos]), StringTP, startPos), nil
}

func (tokenizer *Tokenizer) tokenNumber(line []byte) (*Token, error) {
	startPos := tokenizer.currentPos
	tokenizer.currentPos++
	for tokenizer.currentPos < len(line) && util.IsNumber(line[tokenizer.currentPos]) {
		tokenizer.currentPos++
	}
	// The range is not checked here; the code generator rejects literals that do not fit.
	return tokenizer.makeToken(string(line[startPos:tokenizer.currentPos]), IntegerTP, startPos), nil
}

func (tokenizer *Tokenizer) toKeywordOrIdentifier(line []byte) (*Token, error) {
	startPos := tokenizer.currentPos
	for tokenizer.currentPos < len(line) && util.IsLetterOrUnderscoreOrNumber(line[tokenizer.currentPos]) {
		tokenizer.currentPos++
	}
	if tokenizer.currentPos == startPos {
		return nil, tokenizer.makeError(string(line[startPos:]), tokenizer.currentLine, "unexpected character")
	}
	word := string(line[startPos:tokenizer.currentPos])
	keyWordTP, isKeyWord := keyWordTokenTPMap[word]
	if isKeyWord {
		return tokenizer.makeToken(word, keyWordTP, startPos), nil
	}
	if !util.IsIdentifier(word) {
		return nil, tokenizer.makeError(word, tokenizer.currentLine, "incorrect identifier format")
	}
	return tokenizer.makeToken(word, IdentifierTP, startPos), nil
}

func (tokenizer *Tokenizer) makeError(near string, line int, msg string) error {
	return errors.New(fmt.Sprintf("Tokenizer: tokenizer error near %s at line %d, msg: %s", near, line, msg))
}

// Tokenize accepts a source `rd` and tokenizes its content according to KnightCode rules.
func (tokenizer *Tokenizer) Tokenize(rd io.Reader) (tokens []*Token, err error) {
	bfReader := bufio.NewReader(rd)
	tokenizer.currentLine = 0
	for {
		tokenizer.currentLine++
		tokenizer.currentPos = 0
		line, readErr := bfReader.ReadBytes('\n')
		if readErr != nil && readErr != io.EOF {
			return nil, readErr
		}
		for {
			token, err := tokenizer.getNextToken(line)
			if err != nil {
				return nil, err
			}
			if token == nil {
				break
			}
			tokenizer.tokens = append(tokenizer.tokens, token)
		}
		if readErr == io.EOF {
			return tokenizer.tokens, nil
		}
	}
}

func (tokenizer *Tokenizer) Reset() {
	tokenizer.currentPos, tokenizer.currentLine = 0, 0
	tokenizer.tokens = nil
}
