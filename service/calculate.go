package service

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
)

var (
	ErrEmptyExpression     = errors.New("expression is empty")
	ErrDisallowedCharacter = errors.New("expression contains disallowed characters")
	ErrDivisionByZero      = errors.New("division by zero")
)

var (
	allowedExpression = regexp.MustCompile(`^[0-9+\-*/().\s]+$`)
	numberLiteral     = regexp.MustCompile(`[0-9.]+`)
)

var calcEnv = sync.OnceValues(func() (*cel.Env, error) {
	return cel.NewEnv()
})

// Calculate evaluates an arithmetic expression over + - * / and parentheses
// with standard precedence. Every number is treated as a double, so 7/2 is 3.5.
// Input containing anything else is rejected before evaluation.
func Calculate(expression string) (string, error) {
	if strings.TrimSpace(expression) == "" {
		return "", ErrEmptyExpression
	}
	if !allowedExpression.MatchString(expression) {
		return "", fmt.Errorf("%w: only digits, whitespace and + - * / ( ) . are allowed", ErrDisallowedCharacter)
	}

	env, err := calcEnv()
	if err != nil {
		return "", fmt.Errorf("create evaluator: %w", err)
	}
	ast, issues := env.Compile(normalizeNumbers(expression))
	if issues != nil && issues.Err() != nil {
		return "", fmt.Errorf("invalid expression %q: %w", expression, issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.DoubleType) {
		return "", fmt.Errorf("invalid expression %q: result is %s, not a number", expression, ast.OutputType())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return "", fmt.Errorf("invalid expression %q: %w", expression, err)
	}
	out, _, err := prg.Eval(cel.NoVars())
	if err != nil {
		return "", fmt.Errorf("evaluate %q: %w", expression, err)
	}
	value, ok := out.Value().(float64)
	if !ok {
		return "", fmt.Errorf("evaluate %q: unexpected result type %T", expression, out.Value())
	}
	if math.IsInf(value, 0) || math.IsNaN(value) {
		return "", ErrDivisionByZero
	}
	return strconv.FormatFloat(value, 'f', -1, 64), nil
}

// normalizeNumbers rewrites every numeric literal as a double literal, since
// CEL has no implicit int/double conversion. Literals with more than one dot
// are left alone so the parser reports them.
func normalizeNumbers(expression string) string {
	return numberLiteral.ReplaceAllStringFunc(expression, func(lit string) string {
		if lit == "." {
			return lit
		}
		switch strings.Count(lit, ".") {
		case 0:
			return lit + ".0"
		case 1:
			if strings.HasPrefix(lit, ".") {
				lit = "0" + lit
			}
			if strings.HasSuffix(lit, ".") {
				lit += "0"
			}
			return lit
		default:
			return lit
		}
	})
}
