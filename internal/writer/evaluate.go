package writer

import (
	"strings"

	"github.com/shopspring/decimal"
)

// EvaluateSimple computes formulas made only of numbers, "+", "-" and
// parentheses, such as "=(300+200)+500" or "=1200-50". Anything else,
// including cell references and functions, reports false.
func EvaluateSimple(formula string) (decimal.Decimal, bool) {
	s := strings.TrimSpace(formula)
	s = strings.TrimPrefix(s, "=")
	if strings.TrimSpace(s) == "" {
		return decimal.Zero, false
	}

	p := &arithParser{src: s}
	v, ok := p.expr()
	if !ok {
		return decimal.Zero, false
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return decimal.Zero, false
	}
	return v, true
}

type arithParser struct {
	src string
	pos int
}

func (p *arithParser) skipSpace() {
	for p.pos < len(p.src) && p.src[p.pos] == ' ' {
		p.pos++
	}
}

func (p *arithParser) peek() byte {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *arithParser) expr() (decimal.Decimal, bool) {
	total, ok := p.term()
	if !ok {
		return decimal.Zero, false
	}
	for {
		switch p.peek() {
		case '+':
			p.pos++
			v, ok := p.term()
			if !ok {
				return decimal.Zero, false
			}
			total = total.Add(v)
		case '-':
			p.pos++
			v, ok := p.term()
			if !ok {
				return decimal.Zero, false
			}
			total = total.Sub(v)
		default:
			return total, true
		}
	}
}

func (p *arithParser) term() (decimal.Decimal, bool) {
	switch c := p.peek(); {
	case c == '+':
		p.pos++
		return p.term()
	case c == '-':
		p.pos++
		v, ok := p.term()
		return v.Neg(), ok
	case c == '(':
		p.pos++
		v, ok := p.expr()
		if !ok || p.peek() != ')' {
			return decimal.Zero, false
		}
		p.pos++
		return v, true
	default:
		return p.number()
	}
}

func (p *arithParser) number() (decimal.Decimal, bool) {
	start := p.pos
	for p.pos < len(p.src) && (p.src[p.pos] >= '0' && p.src[p.pos] <= '9' || p.src[p.pos] == '.') {
		p.pos++
	}
	if start == p.pos {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(p.src[start:p.pos])
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}
