package compiler

import "github.com/kristofer/glox/pkg/lexer"

const ruleTableSize = int(lexer.Error) + 1

// initRules builds the static Pratt dispatch table keyed by token kind:
// spec.md §4.3 calls for this to be a lookup table, not cascading
// conditionals.
func (c *Compiler) initRules() {
	set := func(kind lexer.TokenKind, prefix, infix parseFn, prec precedence) {
		c.rules[kind] = parseRule{prefix: prefix, infix: infix, precedence: prec}
	}

	set(lexer.LeftParen, (*Compiler).grouping, (*Compiler).call, precCall)
	set(lexer.RightParen, nil, nil, precNone)
	set(lexer.LeftBrace, nil, nil, precNone)
	set(lexer.RightBrace, nil, nil, precNone)
	set(lexer.Comma, nil, nil, precNone)
	set(lexer.Dot, nil, (*Compiler).dot, precCall)
	set(lexer.Minus, (*Compiler).unary, (*Compiler).binary, precTerm)
	set(lexer.Plus, nil, (*Compiler).binary, precTerm)
	set(lexer.Semicolon, nil, nil, precNone)
	set(lexer.Slash, nil, (*Compiler).binary, precFactor)
	set(lexer.Star, nil, (*Compiler).binary, precFactor)
	set(lexer.Bang, (*Compiler).unary, nil, precNone)
	set(lexer.BangEqual, nil, (*Compiler).binary, precEquality)
	set(lexer.Equal, nil, nil, precNone)
	set(lexer.EqualEqual, nil, (*Compiler).binary, precEquality)
	set(lexer.Greater, nil, (*Compiler).binary, precComparison)
	set(lexer.GreaterEqual, nil, (*Compiler).binary, precComparison)
	set(lexer.Less, nil, (*Compiler).binary, precComparison)
	set(lexer.LessEqual, nil, (*Compiler).binary, precComparison)
	set(lexer.Identifier, (*Compiler).variable, nil, precNone)
	set(lexer.String, (*Compiler).string, nil, precNone)
	set(lexer.Number, (*Compiler).number, nil, precNone)
	set(lexer.And, nil, (*Compiler).and, precAnd)
	set(lexer.Class, nil, nil, precNone)
	set(lexer.Else, nil, nil, precNone)
	set(lexer.False, (*Compiler).literal, nil, precNone)
	set(lexer.For, nil, nil, precNone)
	set(lexer.Fun, nil, nil, precNone)
	set(lexer.If, nil, nil, precNone)
	set(lexer.Nil, (*Compiler).literal, nil, precNone)
	set(lexer.Or, nil, (*Compiler).or, precOr)
	set(lexer.Print, nil, nil, precNone)
	set(lexer.Return, nil, nil, precNone)
	set(lexer.Super, (*Compiler).super, nil, precNone)
	set(lexer.This, (*Compiler).this, nil, precNone)
	set(lexer.True, (*Compiler).literal, nil, precNone)
	set(lexer.Var, nil, nil, precNone)
	set(lexer.While, nil, nil, precNone)
	set(lexer.Eof, nil, nil, precNone)
	set(lexer.Error, nil, nil, precNone)
}

func (c *Compiler) rule(kind lexer.TokenKind) parseRule { return c.rules[kind] }

// parsePrecedence implements spec.md §4.3's parse_precedence(P):
//  1. advance, look up the prefix rule of the just-consumed token
//  2. invoke it with canAssign = P <= Assignment
//  3. while the current token's infix precedence >= P, advance and invoke
//     its infix rule
//  4. if canAssign and '=' is still current, that's an invalid assignment
//     target (prevents `a + b = c`)
func (c *Compiler) parsePrecedence(prec precedence) {
	c.advance()
	prefixRule := c.rule(c.previous.Kind).prefix
	if prefixRule == nil {
		c.errorAtPrevious("Expect expression.")
		return
	}

	canAssign := prec <= precAssignment
	prefixRule(c, canAssign)

	for prec <= c.rule(c.current.Kind).precedence {
		c.advance()
		infixRule := c.rule(c.previous.Kind).infix
		infixRule(c, canAssign)
	}

	if canAssign && c.match(lexer.Equal) {
		c.errorAtPrevious("Invalid assignment target.")
	}
}

func (c *Compiler) expression() { c.parsePrecedence(precAssignment) }
