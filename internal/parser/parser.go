// Package parser turns a lexer.Token stream into an ast.Program (spec §4.C).
package parser

import (
	"fmt"

	"key-mods/internal/ast"
	"key-mods/internal/keys"
	"key-mods/internal/kmerr"
	"key-mods/internal/lexer"
)

// Parser is a recursive-descent parser with one token of lookahead. It
// halts on the first error, matching spec §4.C ("Parser emits ParseError
// on first failure and halts").
type Parser struct {
	lx   *lexer.Lexer
	cur  lexer.Token
	peek lexer.Token
}

func New(lx *lexer.Lexer) (*Parser, error) {
	p := &Parser{lx: lx}
	if err := p.advance(); err != nil {
		return nil, err
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Parser) advance() error {
	p.cur = p.peek
	tok, err := p.lx.Next()
	if err != nil {
		return err
	}
	p.peek = tok
	return nil
}

func (p *Parser) errf(format string, args ...any) error {
	return kmerr.NewAt(kmerr.KindParse, p.cur.Line, p.cur.Col, format, args...)
}

func (p *Parser) expect(k lexer.Kind) (lexer.Token, error) {
	if p.cur.Kind != k {
		return lexer.Token{}, p.errf("expected %s, got %s", k, p.cur.Kind)
	}
	t := p.cur
	if err := p.advance(); err != nil {
		return lexer.Token{}, err
	}
	return t, nil
}

// ParseProgram parses the whole token stream. This is the first call made
// on a fresh Parser; at construction the first two tokens are already
// primed (cur/peek), so on entry we are either looking at an initial real
// token, or at a zero-value Token{} if the very first Next() call has not
// happened — advance() in New() already handles that priming.
func ParseProgram(src string) (*ast.Program, error) {
	p, err := New(lexer.New(src))
	if err != nil {
		return nil, err
	}
	prog := &ast.Program{}
	for p.cur.Kind != lexer.EOF {
		stmt, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		prog.Stmts = append(prog.Stmts, stmt)
	}
	return prog, nil
}

func (p *Parser) loc() ast.Loc { return ast.At(p.cur.Line, p.cur.Col) }

// ---- Statements ----

func (p *Parser) parseStmt() (ast.Stmt, error) {
	switch p.cur.Kind {
	case lexer.KeywordLet:
		return p.parseLet()
	case lexer.KeywordIf:
		return p.parseIf()
	case lexer.KeywordFor:
		return p.parseFor()
	case lexer.KeywordReturn:
		return p.parseReturn()
	case lexer.KeywordBreak:
		loc := p.loc()
		if err := p.advance(); err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.Semi); err != nil {
			return nil, err
		}
		return &ast.BreakStmt{Loc: loc}, nil
	case lexer.KeywordContinue:
		loc := p.loc()
		if err := p.advance(); err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.Semi); err != nil {
			return nil, err
		}
		return &ast.ContinueStmt{Loc: loc}, nil
	case lexer.LBrace:
		return p.parseBlock()
	}
	if p.looksLikeMapping() {
		return p.parseMapping()
	}
	return p.parseExprStmt()
}

func (p *Parser) parseLet() (ast.Stmt, error) {
	loc := p.loc()
	if err := p.advance(); err != nil { // 'let'
		return nil, err
	}
	name, err := p.expect(lexer.Ident)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.Assign); err != nil {
		return nil, err
	}
	val, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.Semi); err != nil {
		return nil, err
	}
	return &ast.LetStmt{Loc: loc, Name: name.Lit, Value: val}, nil
}

func (p *Parser) parseBlock() (*ast.BlockStmt, error) {
	loc := p.loc()
	if _, err := p.expect(lexer.LBrace); err != nil {
		return nil, err
	}
	blk := &ast.BlockStmt{Loc: loc}
	for p.cur.Kind != lexer.RBrace {
		if p.cur.Kind == lexer.EOF {
			return nil, p.errf("unterminated block")
		}
		stmt, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		blk.Stmts = append(blk.Stmts, stmt)
	}
	if _, err := p.expect(lexer.RBrace); err != nil {
		return nil, err
	}
	return blk, nil
}

func (p *Parser) parseIf() (ast.Stmt, error) {
	loc := p.loc()
	if err := p.advance(); err != nil { // 'if'
		return nil, err
	}
	if _, err := p.expect(lexer.LParen); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.RParen); err != nil {
		return nil, err
	}
	then, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	stmt := &ast.IfStmt{Loc: loc, Cond: cond, Then: then}
	if p.cur.Kind == lexer.KeywordElse {
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.cur.Kind == lexer.KeywordIf {
			elseIf, err := p.parseIf()
			if err != nil {
				return nil, err
			}
			stmt.ElseIf = elseIf.(*ast.IfStmt)
		} else {
			els, err := p.parseBlock()
			if err != nil {
				return nil, err
			}
			stmt.Else = els
		}
	}
	return stmt, nil
}

// parseFor parses its first and third clauses with parseSimpleStmt, so
// each becomes an ast.Stmt (a let binding or an expression statement)
// written without a trailing semicolon.
func (p *Parser) parseFor() (ast.Stmt, error) {
	loc := p.loc()
	if err := p.advance(); err != nil { // 'for'
		return nil, err
	}
	if _, err := p.expect(lexer.LParen); err != nil {
		return nil, err
	}
	stmt := &ast.ForStmt{Loc: loc}
	if p.cur.Kind != lexer.Semi {
		init, err := p.parseSimpleStmt()
		if err != nil {
			return nil, err
		}
		stmt.Init = init
	}
	if _, err := p.expect(lexer.Semi); err != nil {
		return nil, err
	}
	if p.cur.Kind != lexer.Semi {
		cond, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		stmt.Cond = cond
	}
	if _, err := p.expect(lexer.Semi); err != nil {
		return nil, err
	}
	if p.cur.Kind != lexer.RParen {
		post, err := p.parseSimpleStmt()
		if err != nil {
			return nil, err
		}
		stmt.Post = post
	}
	if _, err := p.expect(lexer.RParen); err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	stmt.Body = body
	return stmt, nil
}

// parseSimpleStmt parses a let binding, a bare expression or an assignment
// without a trailing semicolon, for use inside a for(...) clause.
func (p *Parser) parseSimpleStmt() (ast.Stmt, error) {
	loc := p.loc()
	if p.cur.Kind == lexer.KeywordLet {
		if err := p.advance(); err != nil {
			return nil, err
		}
		name, err := p.expect(lexer.Ident)
		if err == nil {
			_, err = p.expect(lexer.Assign)
		}
		if err != nil {
			return nil, err
		}
		val, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return &ast.LetStmt{Loc: loc, Name: name.Lit, Value: val}, nil
	}
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return &ast.ExprStmt{Loc: loc, X: expr}, nil
}

func (p *Parser) parseReturn() (ast.Stmt, error) {
	loc := p.loc()
	if err := p.advance(); err != nil { // 'return'
		return nil, err
	}
	var val ast.Expr
	if p.cur.Kind != lexer.Semi {
		v, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		val = v
	}
	if _, err := p.expect(lexer.Semi); err != nil {
		return nil, err
	}
	return &ast.ReturnStmt{Loc: loc, Value: val}, nil
}

func (p *Parser) parseExprStmt() (ast.Stmt, error) {
	loc := p.loc()
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.Semi); err != nil {
		return nil, err
	}
	return &ast.ExprStmt{Loc: loc, X: expr}, nil
}

// looksLikeMapping decides, with one token of lookahead, whether the
// statement at the cursor is a mapping (chord :: ...) rather than an
// expression statement that happens to start with a modifier-flag token or
// a bare identifier. Per spec §4.B this disambiguation is the parser's
// job: a run of Caret/Plus/Bang/Hash tokens always starts a chord; a bare
// identifier starts a chord only if it is immediately followed by `::`.
func (p *Parser) looksLikeMapping() bool {
	switch p.cur.Kind {
	case lexer.Caret, lexer.Plus, lexer.Bang, lexer.Hash:
		return true
	case lexer.Ident:
		return p.peek.Kind == lexer.DColon
	}
	return false
}

// parseChordHead consumes MODFLAGS? keyIdent and returns the resulting
// ModSet/Code pair (spec §4.C `chord := MODFLAGS? keyIdent`).
func (p *Parser) parseChordHead() (keys.ModSet, keys.Code, error) {
	var mods keys.ModSet
loop:
	for {
		switch p.cur.Kind {
		case lexer.Caret:
			mods = mods.With(keys.ModCtrl)
		case lexer.Plus:
			mods = mods.With(keys.ModShift)
		case lexer.Bang:
			mods = mods.With(keys.ModAlt)
		case lexer.Hash:
			mods = mods.With(keys.ModMeta)
		default:
			break loop
		}
		if err := p.advance(); err != nil {
			return 0, 0, err
		}
	}
	name, err := p.expect(lexer.Ident)
	if err != nil {
		return 0, 0, err
	}
	code, ok := keys.Lookup(name.Lit)
	if !ok {
		return 0, 0, kmerr.NewAt(kmerr.KindBadKeyName, name.Line, name.Col, "unknown key name %q", name.Lit)
	}
	return mods, code, nil
}

func (p *Parser) parseMapping() (ast.Stmt, error) {
	loc := p.loc()
	mods, key, err := p.parseChordHead()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.DColon); err != nil {
		return nil, err
	}
	stmt := &ast.MappingStmt{Loc: loc, Mods: mods, Key: key}
	switch {
	case p.cur.Kind == lexer.LBrace:
		blk, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		stmt.RHSBlock = blk
	case p.cur.Kind == lexer.String:
		lit := p.cur
		if err := p.advance(); err != nil {
			return nil, err
		}
		stmt.RHSStr = &ast.StringLit{Loc: ast.At(lit.Line, lit.Col), Value: lit.Lit}
	case isChordStart(p.cur.Kind):
		rloc := p.loc()
		rmods, rkey, err := p.parseChordHead()
		if err != nil {
			return nil, err
		}
		stmt.RHSChord = &ast.ChordLit{Loc: rloc, Mods: rmods, Key: rkey}
	default:
		return nil, p.errf("expected chord, string, or block on right-hand side of mapping")
	}
	if _, err := p.expect(lexer.Semi); err != nil {
		return nil, err
	}
	return stmt, nil
}

func isChordStart(k lexer.Kind) bool {
	return k == lexer.Caret || k == lexer.Plus || k == lexer.Bang || k == lexer.Hash || k == lexer.Ident
}

// ---- Expressions ----
//
// Precedence climbing per spec §4.C, low to high:
// assignment > lambda > ||  > &&  > ==/!=  > </<=/>/>=  > +/-  > */% >
// unary - > call > primary.

func (p *Parser) parseExpr() (ast.Expr, error) {
	if p.cur.Kind == lexer.Pipe || p.cur.Kind == lexer.OrOr {
		return p.parseLambda()
	}
	return p.parseAssignment()
}

func (p *Parser) parseLambda() (ast.Expr, error) {
	loc := p.loc()
	if p.cur.Kind == lexer.OrOr {
		// The lexer reads `||` as one token; as a lambda head it is an
		// empty parameter list.
		if err := p.advance(); err != nil {
			return nil, err
		}
		body, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		return &ast.Lambda{Loc: loc, Body: body}, nil
	}
	if _, err := p.expect(lexer.Pipe); err != nil {
		return nil, err
	}
	var params []string
	for p.cur.Kind != lexer.Pipe {
		name, err := p.expect(lexer.Ident)
		if err != nil {
			return nil, err
		}
		params = append(params, name.Lit)
		if p.cur.Kind == lexer.Comma {
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
	}
	if _, err := p.expect(lexer.Pipe); err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ast.Lambda{Loc: loc, Params: params, Body: body}, nil
}

func (p *Parser) parseAssignment() (ast.Expr, error) {
	left, err := p.parseLogicOr()
	if err != nil {
		return nil, err
	}
	if p.cur.Kind == lexer.Assign {
		ident, ok := left.(*ast.Identifier)
		if !ok {
			return nil, p.errf("left-hand side of assignment must be an identifier")
		}
		loc := p.loc()
		if err := p.advance(); err != nil {
			return nil, err
		}
		val, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return &ast.Assign{Loc: loc, Name: ident.Name, Value: val}, nil
	}
	return left, nil
}

func (p *Parser) parseLogicOr() (ast.Expr, error) {
	left, err := p.parseLogicAnd()
	if err != nil {
		return nil, err
	}
	for p.cur.Kind == lexer.OrOr {
		loc := p.loc()
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseLogicAnd()
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{Loc: loc, Op: "||", Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseLogicAnd() (ast.Expr, error) {
	left, err := p.parseEquality()
	if err != nil {
		return nil, err
	}
	for p.cur.Kind == lexer.AndAnd {
		loc := p.loc()
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseEquality()
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{Loc: loc, Op: "&&", Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseEquality() (ast.Expr, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for p.cur.Kind == lexer.Eq || p.cur.Kind == lexer.Ne {
		op := "=="
		if p.cur.Kind == lexer.Ne {
			op = "!="
		}
		loc := p.loc()
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{Loc: loc, Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseComparison() (ast.Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	ops := map[lexer.Kind]string{lexer.Lt: "<", lexer.Le: "<=", lexer.Gt: ">", lexer.Ge: ">="}
	for {
		op, ok := ops[p.cur.Kind]
		if !ok {
			return left, nil
		}
		loc := p.loc()
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{Loc: loc, Op: op, Left: left, Right: right}
	}
}

func (p *Parser) parseAdditive() (ast.Expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.cur.Kind == lexer.Plus || p.cur.Kind == lexer.Minus {
		op := "+"
		if p.cur.Kind == lexer.Minus {
			op = "-"
		}
		loc := p.loc()
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{Loc: loc, Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseMultiplicative() (ast.Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	ops := map[lexer.Kind]string{lexer.Star: "*", lexer.Slash: "/", lexer.Percent: "%"}
	for {
		op, ok := ops[p.cur.Kind]
		if !ok {
			return left, nil
		}
		loc := p.loc()
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{Loc: loc, Op: op, Left: left, Right: right}
	}
}

func (p *Parser) parseUnary() (ast.Expr, error) {
	if p.cur.Kind == lexer.Minus {
		loc := p.loc()
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.Unary{Loc: loc, Op: "-", Right: right}, nil
	}
	return p.parseCall()
}

func (p *Parser) parseCall() (ast.Expr, error) {
	expr, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for p.cur.Kind == lexer.LParen {
		loc := p.loc()
		if err := p.advance(); err != nil {
			return nil, err
		}
		var args []ast.Expr
		for p.cur.Kind != lexer.RParen {
			arg, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.cur.Kind == lexer.Comma {
				if err := p.advance(); err != nil {
					return nil, err
				}
			}
		}
		if _, err := p.expect(lexer.RParen); err != nil {
			return nil, err
		}
		expr = &ast.Call{Loc: loc, Callee: expr, Args: args}
	}
	return expr, nil
}

func (p *Parser) parsePrimary() (ast.Expr, error) {
	switch p.cur.Kind {
	case lexer.Number:
		tok := p.cur
		if err := p.advance(); err != nil {
			return nil, err
		}
		var f float64
		if _, err := fmt.Sscanf(tok.Lit, "%g", &f); err != nil {
			return nil, kmerr.NewAt(kmerr.KindParse, tok.Line, tok.Col, "bad number literal %q", tok.Lit)
		}
		return &ast.NumberLit{Loc: ast.At(tok.Line, tok.Col), Value: f}, nil
	case lexer.String:
		tok := p.cur
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.StringLit{Loc: ast.At(tok.Line, tok.Col), Value: tok.Lit}, nil
	case lexer.Ident:
		tok := p.cur
		if tok.Lit == "true" || tok.Lit == "false" {
			if err := p.advance(); err != nil {
				return nil, err
			}
			return &ast.BoolLit{Loc: ast.At(tok.Line, tok.Col), Value: tok.Lit == "true"}, nil
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.Identifier{Loc: ast.At(tok.Line, tok.Col), Name: tok.Lit}, nil
	case lexer.Caret, lexer.Plus, lexer.Bang, lexer.Hash:
		loc := p.loc()
		mods, key, err := p.parseChordHead()
		if err != nil {
			return nil, err
		}
		return &ast.ChordLit{Loc: loc, Mods: mods, Key: key}, nil
	case lexer.LParen:
		if err := p.advance(); err != nil {
			return nil, err
		}
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.RParen); err != nil {
			return nil, err
		}
		return expr, nil
	case lexer.Pipe:
		return p.parseLambda()
	}
	return nil, p.errf("unexpected token %s", p.cur.Kind)
}
