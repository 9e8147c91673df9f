package key

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// expr is an affine value expression "a*x + b*d + c" (spec.md §4.1): any
// subset of terms, rational coefficients, evaluated in a float64
// accumulator then clamped and rounded half-away-from-zero to int32.
type expr struct {
	a, b, c float64 // coefficients of x, d, and the constant term
}

func (e expr) eval(x, d int32) int32 {
	f := e.a*float64(x) + e.b*float64(d) + e.c
	return clampRound(f)
}

func clampRound(f float64) int32 {
	r := roundHalfAwayFromZero(f)
	switch {
	case r > math.MaxInt32:
		return math.MaxInt32
	case r < math.MinInt32:
		return math.MinInt32
	default:
		return int32(r)
	}
}

func roundHalfAwayFromZero(f float64) int64 {
	if f >= 0 {
		return int64(math.Floor(f + 0.5))
	}
	return int64(math.Ceil(f - 0.5))
}

// parseExpr parses a whitespace-free affine expression such as "0.5x",
// "-x", "255-x", "d", "0.2d", "x-10", or a bare constant.
func parseExpr(s string) (expr, error) {
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return expr{}, fmt.Errorf("empty expression")
	}

	var e expr
	for _, term := range splitSignedTerms(s) {
		sign := 1.0
		switch {
		case strings.HasPrefix(term, "-"):
			sign = -1
			term = term[1:]
		case strings.HasPrefix(term, "+"):
			term = term[1:]
		}
		if term == "" {
			return expr{}, fmt.Errorf("malformed term in %q", s)
		}

		var variable byte
		switch {
		case strings.HasSuffix(term, "x"):
			variable = 'x'
			term = strings.TrimSuffix(term, "x")
		case strings.HasSuffix(term, "d"):
			variable = 'd'
			term = strings.TrimSuffix(term, "d")
		}
		term = strings.TrimSuffix(term, "*")

		coeff := 1.0
		if term != "" {
			v, err := strconv.ParseFloat(term, 64)
			if err != nil {
				return expr{}, fmt.Errorf("invalid coefficient %q: %w", term, err)
			}
			coeff = v
		}

		switch variable {
		case 'x':
			e.a += sign * coeff
		case 'd':
			e.b += sign * coeff
		default:
			e.c += sign * coeff
		}
	}
	return e, nil
}

// splitSignedTerms splits an expression into terms, keeping each term's
// leading sign (if any) attached, e.g. "255-x" -> ["255", "-x"].
func splitSignedTerms(s string) []string {
	var terms []string
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (r == '+' || r == '-') {
			terms = append(terms, b.String())
			b.Reset()
		}
		b.WriteRune(r)
	}
	terms = append(terms, b.String())
	return terms
}
