package delta

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Rule names referenced by the rest of the application.
const (
	RuleDailyLogin      = "daily_login"
	RuleCompleteSession = "complete_practice_session"
	RuleCorrectAnswer   = "correct_answer"
	RulePerfectPractice = "perfect_practice"
	RuleHighAccuracy    = "high_accuracy_practice"
	RuleFirstPractice   = "first_practice"
	RuleWeeklyStreak3   = "weekly_streak_3"
	RuleWeeklyStreak7   = "weekly_streak_7"
	RuleProfileComplete = "profile_complete"
	RuleReferFriend     = "refer_friend"
)

// AwardContext describes the activity being rewarded.
type AwardContext struct {
	// Values are compared with min_<name> and max_<name> rule conditions. Missing values count as 0.
	Values        map[string]float64
	ReferenceID   string
	ReferenceType string
	Metadata      JSONMap
	// IdempotencyKey overrides the key derived from the reference.
	IdempotencyKey string
}

func (a AwardContext) key(rule string) string {
	if a.IdempotencyKey != "" {
		return a.IdempotencyKey
	}
	if a.ReferenceID == "" {
		return ""
	}
	return fmt.Sprintf("award:%s:%s:%s", rule, a.ReferenceType, a.ReferenceID)
}

// AwardForActivity credits the amount of the named rule when it is active and its
// conditions hold. It returns (nil, nil) when nothing is awarded.
func (s *Service) AwardForActivity(ctx context.Context, userID uuid.UUID, ruleName string, ac AwardContext) (*Transaction, error) {
	rule, err := s.repo.GetRuleByName(ctx, ruleName)
	if err != nil {
		return nil, err
	}
	if rule == nil || !rule.IsActive {
		return nil, nil
	}
	if !ConditionsMet(rule.Conditions, ac.Values) {
		return nil, nil
	}
	if !rule.Amount.IsPositive() {
		return nil, nil
	}

	metadata := JSONMap{"rule": rule.Name}
	for k, v := range ac.Metadata {
		metadata[k] = v
	}

	description := rule.Description
	if description == "" {
		description = "Earned: " + rule.Name
	}

	return s.Add(ctx, userID, rule.Amount, TxEarn, Meta{
		Description:    description,
		ReferenceID:    ac.ReferenceID,
		ReferenceType:  ac.ReferenceType,
		IdempotencyKey: ac.key(rule.Name),
		Metadata:       metadata,
	})
}

// AwardDailyLogin grants the daily login reward at most once per UTC day.
func (s *Service) AwardDailyLogin(ctx context.Context, userID uuid.UUID, day time.Time) error {
	date := day.UTC().Format("2006-01-02")
	_, err := s.AwardForActivity(ctx, userID, RuleDailyLogin, AwardContext{
		ReferenceID:    date,
		ReferenceType:  RuleDailyLogin,
		IdempotencyKey: RuleDailyLogin + ":" + date,
	})
	return err
}

// ConditionsMet evaluates min_<name> and max_<name> thresholds against values.
// Other keys are ignored.
func ConditionsMet(conditions JSONMap, values map[string]float64) bool {
	for key, raw := range conditions {
		var name string
		var isMin bool
		switch {
		case strings.HasPrefix(key, "min_"):
			name, isMin = strings.TrimPrefix(key, "min_"), true
		case strings.HasPrefix(key, "max_"):
			name = strings.TrimPrefix(key, "max_")
		default:
			continue
		}

		threshold, ok := number(raw)
		if !ok {
			return false
		}
		actual := values[name]
		if isMin && actual < threshold {
			return false
		}
		if !isMin && actual > threshold {
			return false
		}
	}
	return true
}

func number(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(n))
		if err != nil {
			return 0, false
		}
		return d.InexactFloat64(), true
	}
	return 0, false
}
