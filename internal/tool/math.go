package tool

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"research-chatbot/internal/model"
)

var (
	ErrDivisionByZero  = errors.New("division by zero")
	ErrNoExpression    = errors.New("no arithmetic expression found")
	errUnexpectedToken = errors.New("unexpected token in expression")
)

var (
	// digits joined by an arithmetic operator, e.g. "15 * 20" or "2^10"
	operatorPattern = regexp.MustCompile(`\d[\d\s.,]*[+\-*/^][\s.,]*\d`)
	// "15% of 250000", "15 percent of $250,000"
	percentOfPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:%|percent)\s+of\s+\$?([\d,]+(?:\.\d+)?)`)
	// longest run of expression characters, used to cut the expression out of
	// a sentence like "calculate 15 * 20 + 100 please"
	expressionPattern = regexp.MustCompile(`[\d+\-*/^().,\s]+`)
)

var mathKeywords = []string{"calculate", "compute", "math", "arithmetic", "sum of", "product of"}

// IsArithmetic reports whether the query looks like a calculation request:
// numeric expressions combined with operators, a percentage phrase, or an
// explicit calculation keyword next to digits.
func IsArithmetic(query string) bool {
	q := strings.ToLower(query)
	if percentOfPattern.MatchString(q) {
		return true
	}
	if operatorPattern.MatchString(q) {
		return true
	}
	hasDigit := strings.IndexFunc(q, unicode.IsDigit) >= 0
	if !hasDigit {
		return false
	}
	for _, kw := range mathKeywords {
		if strings.Contains(q, kw) {
			return true
		}
	}
	return false
}

// MathTool evaluates arithmetic deterministically, with no language-model
// call involved in the computation.
type MathTool struct{}

func NewMathTool() *MathTool { return &MathTool{} }

func (t *MathTool) Name() Name { return NameMath }

func (t *MathTool) Execute(ctx context.Context, query string, conv ConvContext) (Result, error) {
	expr, value, err := Evaluate(query)
	if err != nil {
		return Result{}, fmt.Errorf("evaluate expression: %w", err)
	}

	answer := FormatNumber(value)
	citation := model.Citation{
		SourceID:   "calculator",
		Excerpt:    fmt.Sprintf("%s = %s", expr, answer),
		Score:      1.0,
		SourceType: model.SourceTypeComputed,
	}
	return Result{Answer: answer, Citations: []model.Citation{citation}}, nil
}

// Evaluate extracts the arithmetic expression from the query and computes it.
// Returns the normalized expression alongside the value.
func Evaluate(query string) (string, float64, error) {
	q := strings.ToLower(query)

	if m := percentOfPattern.FindStringSubmatch(q); m != nil {
		pct, err1 := strconv.ParseFloat(m[1], 64)
		base, err2 := strconv.ParseFloat(strings.ReplaceAll(m[2], ",", ""), 64)
		if err1 == nil && err2 == nil {
			expr := fmt.Sprintf("%s%% of %s", m[1], strings.ReplaceAll(m[2], ",", ""))
			return expr, pct / 100 * base, nil
		}
	}

	expr := extractExpression(q)
	if expr == "" {
		return "", 0, ErrNoExpression
	}
	value, err := evalExpression(expr)
	if err != nil {
		return expr, 0, err
	}
	return expr, value, nil
}

// FormatNumber renders v without a trailing fractional part when it is whole.
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func extractExpression(q string) string {
	var best string
	for _, candidate := range expressionPattern.FindAllString(q, -1) {
		candidate = strings.TrimSpace(candidate)
		if !strings.ContainsFunc(candidate, unicode.IsDigit) {
			continue
		}
		if len(candidate) > len(best) {
			best = candidate
		}
	}
	return strings.ReplaceAll(best, ",", "")
}

// evalExpression parses and evaluates "+ - * / ^ ( )" with the usual
// precedence; ^ is right-associative exponentiation.
func evalExpression(expr string) (float64, error) {
	p := &exprParser{input: strings.ReplaceAll(expr, " ", "")}
	value, err := p.parseAddSub()
	if err != nil {
		return 0, err
	}
	if p.pos != len(p.input) {
		return 0, fmt.Errorf("%w: %q at position %d", errUnexpectedToken, p.input[p.pos:], p.pos)
	}
	return value, nil
}

type exprParser struct {
	input string
	pos   int
}

func (p *exprParser) peek() byte {
	if p.pos >= len(p.input) {
		return 0
	}
	return p.input[p.pos]
}

func (p *exprParser) parseAddSub() (float64, error) {
	left, err := p.parseMulDiv()
	if err != nil {
		return 0, err
	}
	for {
		switch p.peek() {
		case '+':
			p.pos++
			right, err := p.parseMulDiv()
			if err != nil {
				return 0, err
			}
			left += right
		case '-':
			p.pos++
			right, err := p.parseMulDiv()
			if err != nil {
				return 0, err
			}
			left -= right
		default:
			return left, nil
		}
	}
}

func (p *exprParser) parseMulDiv() (float64, error) {
	left, err := p.parseUnary()
	if err != nil {
		return 0, err
	}
	for {
		switch p.peek() {
		case '*':
			p.pos++
			right, err := p.parseUnary()
			if err != nil {
				return 0, err
			}
			left *= right
		case '/':
			p.pos++
			right, err := p.parseUnary()
			if err != nil {
				return 0, err
			}
			if right == 0 {
				return 0, ErrDivisionByZero
			}
			left /= right
		default:
			return left, nil
		}
	}
}

func (p *exprParser) parseUnary() (float64, error) {
	switch p.peek() {
	case '-':
		p.pos++
		v, err := p.parseUnary()
		return -v, err
	case '+':
		p.pos++
		return p.parseUnary()
	}
	return p.parsePower()
}

func (p *exprParser) parsePower() (float64, error) {
	base, err := p.parsePrimary()
	if err != nil {
		return 0, err
	}
	if p.peek() == '^' {
		p.pos++
		exp, err := p.parseUnary() // right-associative
		if err != nil {
			return 0, err
		}
		return pow(base, exp), nil
	}
	return base, nil
}

func (p *exprParser) parsePrimary() (float64, error) {
	if p.peek() == '(' {
		p.pos++
		v, err := p.parseAddSub()
		if err != nil {
			return 0, err
		}
		if p.peek() != ')' {
			return 0, fmt.Errorf("%w: missing closing parenthesis", errUnexpectedToken)
		}
		p.pos++
		return v, nil
	}

	start := p.pos
	for p.pos < len(p.input) && (isDigitByte(p.input[p.pos]) || p.input[p.pos] == '.') {
		p.pos++
	}
	if start == p.pos {
		return 0, fmt.Errorf("%w: expected number at position %d", errUnexpectedToken, start)
	}
	v, err := strconv.ParseFloat(p.input[start:p.pos], 64)
	if err != nil {
		return 0, fmt.Errorf("parse number %q failed: %w", p.input[start:p.pos], err)
	}
	return v, nil
}

func isDigitByte(b byte) bool { return b >= '0' && b <= '9' }

func pow(base, exp float64) float64 {
	// integer fast path keeps 2^10 exact
	if exp == float64(int64(exp)) && exp >= 0 && exp <= 63 {
		result := 1.0
		for i := int64(0); i < int64(exp); i++ {
			result *= base
		}
		return result
	}
	return math.Pow(base, exp)
}
