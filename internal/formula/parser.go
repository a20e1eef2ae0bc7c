package formula

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// 解析限制：拒绝病态输入，保证求值时间有界
const (
	maxFormulaLength = 256
	maxNodes         = 128
)

type tokenKind int

const (
	tokenNumber tokenKind = iota
	tokenIdent
	tokenOp    // + - * / % ^
	tokenLParen
	tokenRParen
	tokenComma
	tokenEOF
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

// tokenize 词法分析
func tokenize(src string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c >= '0' && c <= '9' || c == '.':
			start := i
			for i < len(src) && (src[i] >= '0' && src[i] <= '9' || src[i] == '.') {
				i++
			}
			// 科学计数法：1.5e-3
			if i < len(src) && (src[i] == 'e' || src[i] == 'E') {
				j := i + 1
				if j < len(src) && (src[j] == '+' || src[j] == '-') {
					j++
				}
				if j < len(src) && src[j] >= '0' && src[j] <= '9' {
					i = j
					for i < len(src) && src[i] >= '0' && src[i] <= '9' {
						i++
					}
				}
			}
			tokens = append(tokens, token{tokenNumber, src[start:i], start})
		case isIdentStart(rune(c)):
			start := i
			for i < len(src) && isIdentPart(rune(src[i])) {
				i++
			}
			tokens = append(tokens, token{tokenIdent, src[start:i], start})
		case c == '+' || c == '-' || c == '*' || c == '/' || c == '%' || c == '^':
			tokens = append(tokens, token{tokenOp, string(c), i})
			i++
		case c == '(':
			tokens = append(tokens, token{tokenLParen, "(", i})
			i++
		case c == ')':
			tokens = append(tokens, token{tokenRParen, ")", i})
			i++
		case c == ',':
			tokens = append(tokens, token{tokenComma, ",", i})
			i++
		default:
			return nil, fmt.Errorf("unexpected character %q at position %d", c, i)
		}
	}
	tokens = append(tokens, token{tokenEOF, "", len(src)})
	return tokens, nil
}

func isIdentStart(r rune) bool {
	return unicode.IsLetter(r) || r == '_'
}

func isIdentPart(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

// identifiers 提取表达式中出现的所有标识符（小写），用于安全检查
func identifiers(src string) []string {
	var idents []string
	i := 0
	for i < len(src) {
		if isIdentStart(rune(src[i])) {
			start := i
			for i < len(src) && isIdentPart(rune(src[i])) {
				i++
			}
			idents = append(idents, strings.ToLower(src[start:i]))
			continue
		}
		i++
	}
	return idents
}

type parser struct {
	tokens []token
	pos    int
	nodes  int
}

// Parse 将表达式源文本编译为算子树
// 语法：数值字面量、变量 x、+ - * / % ^、括号和白名单函数调用
func Parse(src string) (*Expr, error) {
	if len(src) > maxFormulaLength {
		return nil, fmt.Errorf("formula exceeds maximum length of %d characters", maxFormulaLength)
	}
	if strings.TrimSpace(src) == "" {
		return nil, fmt.Errorf("formula is empty")
	}

	tokens, err := tokenize(src)
	if err != nil {
		return nil, err
	}

	p := &parser{tokens: tokens}
	root, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.current().kind != tokenEOF {
		return nil, fmt.Errorf("unexpected token %q at position %d", p.current().text, p.current().pos)
	}

	return &Expr{root: root, nodes: p.nodes}, nil
}

func (p *parser) current() token {
	return p.tokens[p.pos]
}

func (p *parser) advance() token {
	t := p.tokens[p.pos]
	if t.kind != tokenEOF {
		p.pos++
	}
	return t
}

func (p *parser) newNode(n node) (node, error) {
	p.nodes++
	if p.nodes > maxNodes {
		return nil, fmt.Errorf("formula exceeds maximum complexity of %d nodes", maxNodes)
	}
	return n, nil
}

// parseExpr := term (('+'|'-') term)*
func (p *parser) parseExpr() (node, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for p.current().kind == tokenOp && (p.current().text == "+" || p.current().text == "-") {
		op := p.advance().text[0]
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left, err = p.newNode(&binaryNode{op: op, left: left, right: right})
		if err != nil {
			return nil, err
		}
	}
	return left, nil
}

// parseTerm := unary (('*'|'/'|'%') unary)*
func (p *parser) parseTerm() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.current().kind == tokenOp &&
		(p.current().text == "*" || p.current().text == "/" || p.current().text == "%") {
		op := p.advance().text[0]
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left, err = p.newNode(&binaryNode{op: op, left: left, right: right})
		if err != nil {
			return nil, err
		}
	}
	return left, nil
}

// parseUnary := '-' unary | power
func (p *parser) parseUnary() (node, error) {
	if p.current().kind == tokenOp && p.current().text == "-" {
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return p.newNode(&unaryNode{operand: operand})
	}
	return p.parsePower()
}

// parsePower := primary ('^' unary)?   （右结合）
func (p *parser) parsePower() (node, error) {
	base, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	if p.current().kind == tokenOp && p.current().text == "^" {
		p.advance()
		exponent, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return p.newNode(&binaryNode{op: '^', left: base, right: exponent})
	}
	return base, nil
}

// parsePrimary := number | 'x' | ident '(' args ')' | '(' expr ')'
func (p *parser) parsePrimary() (node, error) {
	t := p.current()
	switch t.kind {
	case tokenNumber:
		p.advance()
		value, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q at position %d", t.text, t.pos)
		}
		return p.newNode(&numberNode{value: value})

	case tokenIdent:
		p.advance()
		if t.text == "x" {
			return p.newNode(&varNode{})
		}
		fn, ok := functions[strings.ToLower(t.text)]
		if !ok {
			return nil, fmt.Errorf("unknown function or variable %q at position %d", t.text, t.pos)
		}
		if p.current().kind != tokenLParen {
			return nil, fmt.Errorf("expected '(' after function %q at position %d", t.text, t.pos)
		}
		p.advance()

		var args []node
		for {
			arg, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.current().kind == tokenComma {
				p.advance()
				continue
			}
			break
		}
		if p.current().kind != tokenRParen {
			return nil, fmt.Errorf("expected ')' at position %d", p.current().pos)
		}
		p.advance()

		if len(args) != fn.arity {
			return nil, fmt.Errorf("function %q expects %d argument(s), got %d", t.text, fn.arity, len(args))
		}
		return p.newNode(&callNode{fn: fn.fn, name: strings.ToLower(t.text), args: args})

	case tokenLParen:
		p.advance()
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if p.current().kind != tokenRParen {
			return nil, fmt.Errorf("expected ')' at position %d", p.current().pos)
		}
		p.advance()
		return inner, nil

	default:
		return nil, fmt.Errorf("unexpected token %q at position %d", t.text, t.pos)
	}
}
