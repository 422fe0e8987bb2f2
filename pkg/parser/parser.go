// Package parser implements the Nominal language parser.
//
// The parser converts a token stream from the lexer into a syntax tree. It is
// a recursive descent parser: each level of the precedence ladder is one
// parsing function, and the functions call each other to handle nesting.
//
// Precedence, loosest to tightest:
//
//	seq        := expr (',' expr)*
//	assign     := logical ((':=' | '=') assign)?
//	logical    := comparison (('and' | 'or') comparison)*
//	comparison := additive (('==' | '!=' | '<' | '>' | '<=' | '>=') additive)*
//	additive   := multiplicative (('+' | '-') multiplicative)*
//	multiplicative := unary (('*' | '/') unary)*
//	unary      := ('-' | 'not') unary | postfix
//	postfix    := primary ('.' IDENT | '[' expr ']' | ':' args?)*
//
// Postfix invocation takes whitespace-separated arguments. An argument is
// itself a postfix expression, and the argument list ends at the first token
// that cannot start one. That is what makes `f: 1 + g: 2` parse as
// `(f: 1) + (g: 2)` and `g := [ f: + 3 ]` give `f:` zero arguments.
// Inside an argument, a '[' preceded by whitespace starts the next argument
// instead of indexing, so `if: c [ a ] [ b ]` passes three arguments; a '['
// written directly after the ':' indexes the result of a call with no
// arguments, as in `f:[1]`.
//
// The parser runs over a fully tokenized slice rather than pulling tokens one
// at a time. Most decisions need only the usual two-token window, but
// distinguishing a parameter list `[ a b | ... ]` from a body that starts
// with identifiers takes an unbounded scan ahead to the pipe.
//
// Errors accumulate in the errors slice with source positions; parsing an
// invalid program returns a tree (possibly incomplete) together with an error
// carrying the first message. Errors returns every message.
package parser

import (
	"fmt"
	"strconv"

	"github.com/nominal-lang/nominal/pkg/ast"
	"github.com/nominal-lang/nominal/pkg/lexer"
)

// Parser represents the Nominal parser
type Parser struct {
	tokens []lexer.Token
	pos    int
	errors []string
}

// New creates a new parser for the given source code
func New(input string) *Parser {
	p := &Parser{}
	tokens, err := lexer.New(input).Tokenize()
	p.tokens = tokens
	if err != nil {
		p.errors = append(p.errors, err.Error())
	}
	return p
}

// cur returns the current token
func (p *Parser) cur() lexer.Token {
	if p.pos >= len(p.tokens) {
		return lexer.Token{Type: lexer.TokenEOF}
	}
	return p.tokens[p.pos]
}

// peek returns the token after the current one
func (p *Parser) peek() lexer.Token {
	if p.pos+1 >= len(p.tokens) {
		return lexer.Token{Type: lexer.TokenEOF}
	}
	return p.tokens[p.pos+1]
}

// next advances to the next token
func (p *Parser) next() {
	p.pos++
}

// errorf records a parse error at the current token
func (p *Parser) errorf(format string, args ...interface{}) {
	tok := p.cur()
	msg := fmt.Sprintf(format, args...)
	p.errors = append(p.errors, fmt.Sprintf("%s at line %d, column %d", msg, tok.Line, tok.Column))
}

// expect consumes the current token if it has the given type, recording an
// error otherwise
func (p *Parser) expect(t lexer.TokenType) bool {
	if p.cur().Type != t {
		p.errorf("Expected %s but found %s", t, p.cur().Type)
		return false
	}
	p.next()
	return true
}

// Errors returns the accumulated parse error messages
func (p *Parser) Errors() []string {
	return p.errors
}

// Parse parses the source as a top-level expression sequence
func (p *Parser) Parse() (*ast.Seq, error) {
	if len(p.errors) > 0 {
		return &ast.Seq{}, fmt.Errorf("%s", p.errors[0])
	}

	seq := p.parseSeq(lexer.TokenEOF)
	if p.cur().Type != lexer.TokenEOF {
		p.errorf("Unexpected %s", p.cur().Type)
	}

	if len(p.errors) > 0 {
		return seq, fmt.Errorf("%s", p.errors[0])
	}
	return seq, nil
}

// parseSeq parses a comma-separated expression sequence ending at the given
// closing token. An empty sequence is allowed for empty function bodies.
func (p *Parser) parseSeq(end lexer.TokenType) *ast.Seq {
	seq := &ast.Seq{}
	if p.cur().Type == end {
		return seq
	}

	seq.Exprs = append(seq.Exprs, p.parseExpr())
	for p.cur().Type == lexer.TokenComma {
		p.next()
		seq.Exprs = append(seq.Exprs, p.parseExpr())
	}
	return seq
}

// parseExpr parses a single expression (the assignment level)
func (p *Parser) parseExpr() ast.Expression {
	return p.parseAssign()
}

// parseAssign parses `target := value`, `target = value` or a plain logical
// expression. Assignment is right-associative.
func (p *Parser) parseAssign() ast.Expression {
	left := p.parseLogical()

	switch p.cur().Type {
	case lexer.TokenLet:
		p.next()
		if !p.validTarget(left) {
			return left
		}
		return &ast.Let{Target: left, Value: p.parseAssign()}
	case lexer.TokenAssign:
		p.next()
		if !p.validTarget(left) {
			return left
		}
		return &ast.Set{Target: left, Value: p.parseAssign()}
	}
	return left
}

// validTarget reports whether an expression may appear on the left of an
// assignment, recording an error if not
func (p *Parser) validTarget(e ast.Expression) bool {
	switch e.(type) {
	case *ast.Identifier, *ast.Member, *ast.Index:
		return true
	}
	p.errorf("Invalid assignment target")
	return false
}

// parseLogical parses short-circuit and/or chains
func (p *Parser) parseLogical() ast.Expression {
	left := p.parseComparison()
	for p.cur().Type == lexer.TokenAnd || p.cur().Type == lexer.TokenOr {
		op := p.cur().Literal
		p.next()
		right := p.parseComparison()
		left = &ast.Logical{Op: op, Left: left, Right: right}
	}
	return left
}

// parseComparison parses equality and ordering chains
func (p *Parser) parseComparison() ast.Expression {
	left := p.parseAdditive()
	for {
		switch p.cur().Type {
		case lexer.TokenEqEq, lexer.TokenNotEq, lexer.TokenLess, lexer.TokenGreater,
			lexer.TokenLessEq, lexer.TokenGreaterEq:
			op := p.cur().Literal
			p.next()
			right := p.parseAdditive()
			left = &ast.Binary{Op: op, Left: left, Right: right}
		default:
			return left
		}
	}
}

// parseAdditive parses + and - chains
func (p *Parser) parseAdditive() ast.Expression {
	left := p.parseMultiplicative()
	for p.cur().Type == lexer.TokenPlus || p.cur().Type == lexer.TokenMinus {
		op := p.cur().Literal
		p.next()
		right := p.parseMultiplicative()
		left = &ast.Binary{Op: op, Left: left, Right: right}
	}
	return left
}

// parseMultiplicative parses * and / chains
func (p *Parser) parseMultiplicative() ast.Expression {
	left := p.parseUnary()
	for p.cur().Type == lexer.TokenStar || p.cur().Type == lexer.TokenSlash {
		op := p.cur().Literal
		p.next()
		right := p.parseUnary()
		left = &ast.Binary{Op: op, Left: left, Right: right}
	}
	return left
}

// parseUnary parses prefix - and not
func (p *Parser) parseUnary() ast.Expression {
	switch p.cur().Type {
	case lexer.TokenMinus:
		p.next()
		return &ast.Unary{Op: "-", Operand: p.parseUnary()}
	case lexer.TokenNot:
		p.next()
		return &ast.Unary{Op: "not", Operand: p.parseUnary()}
	}
	return p.parsePostfix(false)
}

// parsePostfix parses a primary expression followed by any chain of member
// accesses, index expressions and invocations. For an argument (inArg), a
// '[' preceded by whitespace ends the chain.
func (p *Parser) parsePostfix(inArg bool) ast.Expression {
	expr := p.parsePrimary()

	for {
		if inArg && p.cur().Type == lexer.TokenLBracket && !p.adjacent() {
			return expr
		}
		switch p.cur().Type {
		case lexer.TokenPeriod:
			p.next()
			if p.cur().Type != lexer.TokenIdentifier {
				p.errorf("Expected member name after '.'")
				return expr
			}
			expr = &ast.Member{Object: expr, Name: p.cur().Literal}
			p.next()
		case lexer.TokenLBracket:
			p.next()
			key := p.parseExpr()
			p.expect(lexer.TokenRBracket)
			expr = &ast.Index{Object: expr, Key: key}
		case lexer.TokenColon:
			p.next()
			expr = &ast.Invoke{Callee: expr, Args: p.parseArgs()}
		default:
			return expr
		}
	}
}

// parseArgs parses the whitespace-separated argument list of an invocation.
// The list ends at the first token that cannot start a postfix expression.
func (p *Parser) parseArgs() []ast.Expression {
	var args []ast.Expression
	if p.cur().Type == lexer.TokenLBracket && p.adjacent() {
		return args // `f:[k]` indexes the result
	}
	for p.startsPrimary(p.cur().Type) {
		args = append(args, p.parsePostfix(true))
	}
	return args
}

// adjacent reports whether the current token starts on the same line
// directly after the previous token's literal text
func (p *Parser) adjacent() bool {
	if p.pos == 0 || p.pos >= len(p.tokens) {
		return false
	}
	prev, cur := p.tokens[p.pos-1], p.tokens[p.pos]
	return prev.Line == cur.Line && prev.Column+len(prev.Literal) == cur.Column
}

// startsPrimary reports whether a token can begin a primary expression
func (p *Parser) startsPrimary(t lexer.TokenType) bool {
	switch t {
	case lexer.TokenNumber, lexer.TokenString, lexer.TokenIdentifier,
		lexer.TokenNil, lexer.TokenTrue, lexer.TokenFalse,
		lexer.TokenLParen, lexer.TokenLBrace, lexer.TokenLBracket:
		return true
	}
	return false
}

// parsePrimary parses literals, identifiers and parenthesized sequences
func (p *Parser) parsePrimary() ast.Expression {
	switch p.cur().Type {
	case lexer.TokenNumber:
		tok := p.cur()
		p.next()
		value, err := strconv.ParseFloat(tok.Literal, 64)
		if err != nil {
			p.errorf("Invalid number literal '%s'", tok.Literal)
			return &ast.NilLit{}
		}
		return &ast.NumberLit{Value: value, Literal: tok.Literal}

	case lexer.TokenString:
		tok := p.cur()
		p.next()
		return &ast.StringLit{Value: tok.Literal}

	case lexer.TokenNil:
		p.next()
		return &ast.NilLit{}

	case lexer.TokenTrue:
		p.next()
		return &ast.BoolLit{Value: true}

	case lexer.TokenFalse:
		p.next()
		return &ast.BoolLit{Value: false}

	case lexer.TokenIdentifier:
		tok := p.cur()
		p.next()
		return &ast.Identifier{Name: tok.Literal}

	case lexer.TokenLParen:
		p.next()
		seq := p.parseSeq(lexer.TokenRParen)
		p.expect(lexer.TokenRParen)
		if len(seq.Exprs) == 0 {
			p.errorf("Empty parentheses")
			return &ast.NilLit{}
		}
		if len(seq.Exprs) == 1 {
			return seq.Exprs[0]
		}
		return seq

	case lexer.TokenLBrace:
		return p.parseMapLit()

	case lexer.TokenLBracket:
		return p.parseFuncLit()
	}

	p.errorf("Unexpected %s", p.cur().Type)
	p.next()
	return &ast.NilLit{}
}

// parseMapLit parses `{ entry, ... }` where an entry is `key -> value`,
// `name := value` or a bare expression keyed by its position
func (p *Parser) parseMapLit() ast.Expression {
	p.expect(lexer.TokenLBrace)

	lit := &ast.MapLit{}
	for p.cur().Type != lexer.TokenRBrace && p.cur().Type != lexer.TokenEOF {
		lit.Entries = append(lit.Entries, p.parseMapEntry())
		if p.cur().Type != lexer.TokenComma {
			break
		}
		p.next()
	}
	p.expect(lexer.TokenRBrace)
	return lit
}

// parseMapEntry parses a single map literal entry
func (p *Parser) parseMapEntry() ast.MapEntry {
	// `name := value` keys the entry by the identifier's name, not its
	// value as a variable.
	if p.cur().Type == lexer.TokenIdentifier && p.peek().Type == lexer.TokenLet {
		name := p.cur().Literal
		p.next()
		p.next()
		return ast.MapEntry{Name: name, Value: p.parseExpr()}
	}

	first := p.parseExpr()
	if p.cur().Type == lexer.TokenArrow {
		p.next()
		return ast.MapEntry{Key: first, Value: p.parseExpr()}
	}
	return ast.MapEntry{Value: first}
}

// parseFuncLit parses `[ params | body ]` or `[ body ]`
func (p *Parser) parseFuncLit() ast.Expression {
	p.expect(lexer.TokenLBracket)

	lit := &ast.FuncLit{}
	if p.hasParamList() {
		for p.cur().Type == lexer.TokenIdentifier {
			lit.Params = append(lit.Params, p.cur().Literal)
			p.next()
		}
		p.expect(lexer.TokenPipe)
	}

	lit.Body = p.parseSeq(lexer.TokenRBracket)
	p.expect(lexer.TokenRBracket)
	return lit
}

// hasParamList scans ahead from the current position for a run of
// identifiers terminated by a pipe, which distinguishes a parameter list
// from a body that begins with an identifier
func (p *Parser) hasParamList() bool {
	i := p.pos
	for i < len(p.tokens) && p.tokens[i].Type == lexer.TokenIdentifier {
		i++
	}
	return i > p.pos && i < len(p.tokens) && p.tokens[i].Type == lexer.TokenPipe
}
