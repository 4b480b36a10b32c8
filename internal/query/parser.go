package query

import (
	"fmt"
	"strconv"
	"time"
)

// Parser parses query strings into Query ASTs.
type Parser struct {
	input string
	lexer *Lexer
	curr  Token
	peek  Token
}

// Parse parses a fully bound query string and returns a Query AST.
// Placeholders must have been substituted by Bind beforehand.
func Parse(input string) (*Query, error) {
	p := &Parser{input: input, lexer: NewLexer(input)}
	p.advance()
	p.advance()
	return p.parseQuery()
}

func (p *Parser) advance() {
	p.curr = p.peek
	p.peek = p.lexer.NextToken()
}

func (p *Parser) errorf(pos int, format string, args ...interface{}) error {
	return &QueryParseError{Query: p.input, Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *Parser) unexpected(want string) error {
	if p.curr.Type == TokenError {
		return p.errorf(p.curr.Pos, "%s", describeErrorToken(p.curr))
	}
	return p.errorf(p.curr.Pos, "expected %s, got %v", want, p.curr.Type)
}

func (p *Parser) expect(t TokenType) error {
	if p.curr.Type != t {
		return p.unexpected(t.String())
	}
	p.advance()
	return nil
}

func describeErrorToken(t Token) string {
	if t.Value == "unterminated string literal" {
		return t.Value
	}
	return fmt.Sprintf("unexpected character %q", t.Value)
}

// parseQuery parses '/' LocationPath EOF.
func (p *Parser) parseQuery() (*Query, error) {
	if err := p.expect(TokenSlash); err != nil {
		return nil, err
	}

	steps, err := p.parseSteps(true)
	if err != nil {
		return nil, err
	}

	if p.curr.Type != TokenEOF {
		return nil, p.unexpected("'/', '[' or end of query")
	}

	return &Query{Path: &LocationPath{Steps: steps}}, nil
}

// parseSteps parses Step ('/' Step)*. Location-path steps may be wildcards.
func (p *Parser) parseSteps(allowWildcard bool) ([]*Step, error) {
	var steps []*Step
	for {
		step, err := p.parseStep(allowWildcard)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)

		if p.curr.Type != TokenSlash {
			return steps, nil
		}
		p.advance()
	}
}

// parseStep parses Name Predicate*.
func (p *Parser) parseStep(allowWildcard bool) (*Step, error) {
	step := &Step{Pos: p.curr.Pos}
	switch {
	case p.curr.Type == TokenName:
		step.Name = p.curr.Value
	case p.curr.Type == TokenStar && allowWildcard:
		step.Name = "*"
	default:
		return nil, p.unexpected("step name")
	}
	p.advance()

	for p.curr.Type == TokenLBracket {
		p.advance()
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if p.curr.Type != TokenRBracket {
			return nil, p.unexpected("']'")
		}
		p.advance()
		step.Predicates = append(step.Predicates, expr)
	}

	return step, nil
}

// parseExpr parses OR expressions (lowest precedence).
func (p *Parser) parseExpr() (Expr, error) {
	left, err := p.parseAndExpr()
	if err != nil {
		return nil, err
	}

	operands := []Expr{left}
	for p.isKeyword("or") {
		p.advance()
		right, err := p.parseAndExpr()
		if err != nil {
			return nil, err
		}
		operands = append(operands, right)
	}

	if len(operands) == 1 {
		return left, nil
	}
	return &OrExpr{Operands: operands}, nil
}

// parseAndExpr parses AND expressions.
func (p *Parser) parseAndExpr() (Expr, error) {
	left, err := p.parseRelExpr()
	if err != nil {
		return nil, err
	}

	operands := []Expr{left}
	for p.isKeyword("and") {
		p.advance()
		right, err := p.parseRelExpr()
		if err != nil {
			return nil, err
		}
		operands = append(operands, right)
	}

	if len(operands) == 1 {
		return left, nil
	}
	return &AndExpr{Operands: operands}, nil
}

// parseRelExpr parses PrimaryExpr (RelOp PrimaryExpr)?.
func (p *Parser) parseRelExpr() (Expr, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}

	op, ok := compareOpFor(p.curr.Type)
	if !ok {
		return left, nil
	}
	p.advance()

	right, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	return &CompareExpr{Left: left, Op: op, Right: right}, nil
}

func compareOpFor(t TokenType) (CompareOp, bool) {
	switch t {
	case TokenEq:
		return CompareEq, true
	case TokenNeq:
		return CompareNeq, true
	case TokenLt:
		return CompareLt, true
	case TokenLte:
		return CompareLte, true
	case TokenGt:
		return CompareGt, true
	case TokenGte:
		return CompareGte, true
	default:
		return 0, false
	}
}

// parsePrimary parses a property step, the context item, a literal, a function
// call, a parenthesized expression or a relationship path.
func (p *Parser) parsePrimary() (Expr, error) {
	switch p.curr.Type {
	case TokenAt:
		p.advance()
		if p.curr.Type != TokenName {
			return nil, p.unexpected("property name after '@'")
		}
		name := p.curr.Value
		p.advance()
		return &PropertyStep{Name: name}, nil

	case TokenDot:
		p.advance()
		return &ContextItem{}, nil

	case TokenString:
		value := p.curr.Value
		p.advance()
		return &StringLiteral{Value: value}, nil

	case TokenNumber:
		return p.parseNumber()

	case TokenDate, TokenDateTime:
		return p.parseDate()

	case TokenLParen:
		p.advance()
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if p.curr.Type != TokenRParen {
			return nil, p.unexpected("')'")
		}
		p.advance()
		return &ParenExpr{Inner: inner}, nil

	case TokenName:
		if p.peek.Type == TokenLParen || p.peek.Type == TokenColon {
			return p.parseFunctionCall()
		}
		steps, err := p.parseSteps(false)
		if err != nil {
			return nil, err
		}
		return &RelationshipPath{Steps: steps}, nil

	case TokenStar:
		// [*] matches any relationship.
		steps, err := p.parseSteps(true)
		if err != nil {
			return nil, err
		}
		return &RelationshipPath{Steps: steps}, nil

	default:
		return nil, p.unexpected("expression")
	}
}

func (p *Parser) parseNumber() (Expr, error) {
	tok := p.curr
	v, err := strconv.ParseFloat(tok.Value, 64)
	if err != nil {
		return nil, p.errorf(tok.Pos, "invalid number %q", tok.Value)
	}
	p.advance()
	return &NumberLiteral{Text: tok.Value, Value: v}, nil
}

func (p *Parser) parseDate() (Expr, error) {
	tok := p.curr
	lit := &DateLiteral{Text: tok.Value, HasTime: tok.Type == TokenDateTime}

	var err error
	if lit.HasTime {
		lit.Time, err = time.Parse(time.RFC3339Nano, tok.Value)
	} else {
		lit.Time, err = time.Parse("2006-01-02", tok.Value)
	}
	if err != nil {
		return nil, p.errorf(tok.Pos, "invalid date %q", tok.Value)
	}

	p.advance()
	return lit, nil
}

// parseFunctionCall parses (Prefix ':')? Name '(' Argument (',' Argument)* ')'.
func (p *Parser) parseFunctionCall() (Expr, error) {
	call := &FunctionCall{Pos: p.curr.Pos}

	name := p.curr.Value
	p.advance()
	if p.curr.Type == TokenColon {
		p.advance()
		if p.curr.Type != TokenName {
			return nil, p.unexpected("function name after prefix")
		}
		call.Prefix = name
		name = p.curr.Value
		p.advance()
	}
	call.Name = name

	if err := p.expect(TokenLParen); err != nil {
		return nil, err
	}

	if p.curr.Type == TokenRParen {
		p.advance()
		return call, nil
	}

	for {
		arg, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		call.Args = append(call.Args, arg)

		if p.curr.Type == TokenComma {
			p.advance()
			continue
		}
		if p.curr.Type != TokenRParen {
			return nil, p.unexpected("',' or ')'")
		}
		p.advance()
		return call, nil
	}
}

func (p *Parser) isKeyword(word string) bool {
	return p.curr.Type == TokenName && p.curr.Value == word
}
