package delta

import (
	"fmt"
	"io"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/shopspring/decimal"
)

// DefaultRules is the stock set of earning rules.
func DefaultRules() []EarningRule {
	rule := func(name, description string, amount int64, conditions JSONMap) EarningRule {
		if conditions == nil {
			conditions = JSONMap{}
		}
		return EarningRule{
			Name:        name,
			Description: description,
			Amount:      decimal.NewFromInt(amount),
			IsActive:    true,
			Conditions:  conditions,
		}
	}

	return []EarningRule{
		rule(RuleDailyLogin, "Daily login bonus", 10, nil),
		rule(RuleCompleteSession, "Complete a practice session", 20, nil),
		rule(RuleCorrectAnswer, "Correct answer in practice", 5, nil),
		rule(RulePerfectPractice, "Perfect score in practice session", 50, JSONMap{"min_accuracy": 100}),
		rule(RuleHighAccuracy, "High accuracy (80%+) in practice", 30, JSONMap{"min_accuracy": 80}),
		rule(RuleFirstPractice, "Complete your first practice session", 100, nil),
		rule(RuleWeeklyStreak3, "Practice 3 days in a row", 50, JSONMap{"min_streak": 3}),
		rule(RuleWeeklyStreak7, "Practice 7 days in a row", 100, JSONMap{"min_streak": 7}),
		rule(RuleProfileComplete, "Complete your profile", 25, nil),
		rule(RuleReferFriend, "Refer a friend who signs up", 100, nil),
	}
}

type ruleFile struct {
	Rule []ruleEntry `toml:"rule"`
}

type ruleEntry struct {
	Name        string                 `toml:"name"`
	Description string                 `toml:"description"`
	Amount      interface{}            `toml:"amount"`
	Active      *bool                  `toml:"active"`
	Conditions  map[string]interface{} `toml:"conditions"`
}

// LoadRules parses [[rule]] tables from a TOML document. Rules are active unless
// active = false is given.
func LoadRules(r io.Reader) ([]EarningRule, error) {
	var f ruleFile
	if _, err := toml.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}

	rules := make([]EarningRule, 0, len(f.Rule))
	for i, e := range f.Rule {
		name := strings.TrimSpace(e.Name)
		if name == "" {
			return nil, fmt.Errorf("rule %d: missing name", i+1)
		}
		amount, err := parseAmount(e.Amount)
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", name, err)
		}

		active := true
		if e.Active != nil {
			active = *e.Active
		}
		conditions := JSONMap{}
		for k, v := range e.Conditions {
			conditions[k] = v
		}

		rules = append(rules, EarningRule{
			Name:        name,
			Description: e.Description,
			Amount:      amount,
			IsActive:    active,
			Conditions:  conditions,
		})
	}
	return rules, nil
}

func parseAmount(v interface{}) (decimal.Decimal, error) {
	var d decimal.Decimal
	switch n := v.(type) {
	case int64:
		d = decimal.NewFromInt(n)
	case float64:
		d = decimal.NewFromFloat(n)
	case string:
		parsed, err := decimal.NewFromString(strings.TrimSpace(n))
		if err != nil {
			return decimal.Zero, fmt.Errorf("invalid amount %q", n)
		}
		d = parsed
	case nil:
		return decimal.Zero, fmt.Errorf("missing amount")
	default:
		return decimal.Zero, fmt.Errorf("invalid amount %v", v)
	}
	if d.IsNegative() || !d.Equal(d.Round(2)) {
		return decimal.Zero, fmt.Errorf("amount %s must be non-negative with at most two decimals", d.String())
	}
	return d, nil
}
