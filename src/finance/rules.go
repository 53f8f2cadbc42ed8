package finance

import (
	"encoding/json"
	"sort"
	"strings"

	"finpilot-server/src/models"
)

// RuleInput is the view of a transaction that rule conditions can inspect.
type RuleInput struct {
	Name         string
	MerchantName string
	Amount       float64
	AccountName  string
}

func InputFor(txn models.Transaction) RuleInput {
	in := RuleInput{
		Name:        txn.Name,
		Amount:      txn.Amount.InexactFloat64(),
		AccountName: txn.AccountName,
	}
	if txn.MerchantName != nil {
		in.MerchantName = *txn.MerchantName
	}
	return in
}

// SortRules orders rules by ascending priority, then by creation time.
func SortRules(rules []models.CategoryRule) {
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].Priority != rules[j].Priority {
			return rules[i].Priority < rules[j].Priority
		}
		return rules[i].CreatedAt.Before(rules[j].CreatedAt)
	})
}

// MatchRule returns the first rule in rules that matches in. Rules must
// already be sorted. Rules with unparseable conditions never match.
func MatchRule(rules []models.CategoryRule, in RuleInput) (models.CategoryRule, bool) {
	for _, rule := range rules {
		if RuleMatches(rule, in) {
			return rule, true
		}
	}
	return models.CategoryRule{}, false
}

func RuleMatches(rule models.CategoryRule, in RuleInput) bool {
	if len(rule.Conditions) > 0 && string(rule.Conditions) != "null" {
		var cond models.Condition
		if err := json.Unmarshal(rule.Conditions, &cond); err != nil {
			return false
		}
		return EvaluateCondition(cond, in)
	}
	if rule.Pattern == "" {
		return false
	}
	pattern := strings.ToLower(rule.Pattern)
	return strings.Contains(strings.ToLower(in.Name), pattern) ||
		strings.Contains(strings.ToLower(in.MerchantName), pattern)
}

// ValidateConditions reports whether raw decodes into a condition tree whose
// leaves use known fields and operators.
func ValidateConditions(raw json.RawMessage) bool {
	var cond models.Condition
	if err := json.Unmarshal(raw, &cond); err != nil {
		return false
	}
	return validNode(cond)
}

func validNode(cond models.Condition) bool {
	if len(cond.And) > 0 || len(cond.Or) > 0 {
		for _, group := range [][]models.Condition{cond.And, cond.Or} {
			for _, c := range group {
				if !validNode(c) {
					return false
				}
			}
		}
		return true
	}
	switch cond.Field {
	case "name", "merchant_name", "amount", "account":
	default:
		return false
	}
	switch cond.Op {
	case "equals", "contains", "starts_with", "gte", "lte", "gt", "lt", "in":
		return true
	default:
		return false
	}
}

func EvaluateCondition(cond models.Condition, in RuleInput) bool {
	// Logical AND
	if len(cond.And) > 0 {
		for _, c := range cond.And {
			if !EvaluateCondition(c, in) {
				return false
			}
		}
		return true
	}
	// Logical OR
	if len(cond.Or) > 0 {
		for _, c := range cond.Or {
			if EvaluateCondition(c, in) {
				return true
			}
		}
		return false
	}

	var fieldValue interface{}
	switch cond.Field {
	case "name":
		fieldValue = in.Name
	case "merchant_name":
		fieldValue = in.MerchantName
	case "amount":
		fieldValue = in.Amount
	case "account":
		fieldValue = in.AccountName
	default:
		return false
	}

	switch cond.Op {
	case "equals":
		switch v := fieldValue.(type) {
		case string:
			val, ok := cond.Value.(string)
			return ok && strings.EqualFold(v, val)
		case float64:
			val, ok := cond.Value.(float64)
			return ok && v == val
		default:
			return false
		}
	case "contains":
		s, ok := fieldValue.(string)
		val, ok2 := cond.Value.(string)
		return ok && ok2 && strings.Contains(strings.ToLower(s), strings.ToLower(val))
	case "starts_with":
		s, ok := fieldValue.(string)
		val, ok2 := cond.Value.(string)
		return ok && ok2 && strings.HasPrefix(strings.ToLower(s), strings.ToLower(val))
	case "gte", "lte", "gt", "lt":
		f, ok := fieldValue.(float64)
		val, ok2 := cond.Value.(float64)
		if !ok || !ok2 {
			return false
		}
		switch cond.Op {
		case "gte":
			return f >= val
		case "lte":
			return f <= val
		case "gt":
			return f > val
		default:
			return f < val
		}
	case "in":
		s, ok := fieldValue.(string)
		arr, ok2 := cond.Value.([]interface{})
		if ok && ok2 {
			for _, v := range arr {
				if str, ok := v.(string); ok && strings.EqualFold(s, str) {
					return true
				}
			}
		}
		return false
	default:
		return false
	}
}
