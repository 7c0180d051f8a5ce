package practice

import (
	"math/big"
	"strings"
)

// Check grades answer against q and returns the expected answer for display.
func Check(q *Question, answer string) (bool, string) {
	switch q.Type {
	case TypeMCQ:
		expected := strings.ToUpper(strings.TrimSpace(q.MCQAnswer))
		return strings.ToUpper(strings.TrimSpace(answer)) == expected, q.MCQAnswer
	case TypeSPR:
		for _, accepted := range q.SPRAnswers {
			if SPREqual(answer, accepted) {
				return true, strings.Join(q.SPRAnswers, ", ")
			}
		}
		return false, strings.Join(q.SPRAnswers, ", ")
	}
	return false, ""
}

// SPREqual compares grid-in answers. Numeric forms are equal by value,
// so 0.5, .5 and 1/2 match; anything else compares case-insensitively.
func SPREqual(given, accepted string) bool {
	g, a := normalizeSPR(given), normalizeSPR(accepted)
	if g == "" || a == "" {
		return false
	}
	if gr, ok := rational(g); ok {
		if ar, ok := rational(a); ok {
			return gr.Cmp(ar) == 0
		}
	}
	return g == a
}

func normalizeSPR(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), ""))
}

func rational(s string) (*big.Rat, bool) {
	switch {
	case strings.HasPrefix(s, "."):
		s = "0" + s
	case strings.HasPrefix(s, "-."):
		s = "-0" + s[1:]
	}
	if strings.ContainsAny(s, "eE") {
		return nil, false
	}
	r, ok := new(big.Rat).SetString(s)
	return r, ok
}
