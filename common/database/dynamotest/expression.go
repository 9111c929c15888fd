package dynamotest

import (
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type keyClause struct {
	attr      string
	value     string
	beginning bool
}

func (c keyClause) match(item map[string]types.AttributeValue, values map[string]types.AttributeValue) bool {
	want, err := lookupValue(c.value, values)
	if err != nil {
		return false
	}
	got, ok := item[c.attr]
	if !ok {
		return false
	}

	if c.beginning {
		gs, ok1 := stringValue(got)
		ws, ok2 := stringValue(want)
		return ok1 && ok2 && strings.HasPrefix(gs, ws)
	}
	return equalValues(got, want)
}

func parseKeyCondition(expr string, names map[string]string) ([]keyClause, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, fmt.Errorf("dynamotest: key condition is required")
	}

	var clauses []keyClause
	for _, part := range strings.Split(expr, " AND ") {
		part = strings.TrimSpace(part)

		if inner, ok := call(part, "begins_with"); ok {
			args := strings.SplitN(inner, ",", 2)
			if len(args) != 2 {
				return nil, fmt.Errorf("dynamotest: bad begins_with: %s", part)
			}
			clauses = append(clauses, keyClause{
				attr:      resolveName(args[0], names),
				value:     strings.TrimSpace(args[1]),
				beginning: true,
			})
			continue
		}

		lhs, rhs, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("dynamotest: unsupported key condition: %s", part)
		}
		clauses = append(clauses, keyClause{attr: resolveName(lhs, names), value: strings.TrimSpace(rhs)})
	}
	return clauses, nil
}

// evalCondition evaluates a condition against the current item (nil when absent).
func evalCondition(expr *string, names map[string]string, values map[string]types.AttributeValue, item map[string]types.AttributeValue) (bool, error) {
	text := strings.TrimSpace(aws.ToString(expr))
	if text == "" {
		return true, nil
	}

	for _, part := range strings.Split(text, " AND ") {
		part = strings.TrimSpace(part)

		if inner, ok := call(part, "attribute_exists"); ok {
			if _, exists := item[resolveName(inner, names)]; !exists {
				return false, nil
			}
			continue
		}
		if inner, ok := call(part, "attribute_not_exists"); ok {
			if _, exists := item[resolveName(inner, names)]; exists {
				return false, nil
			}
			continue
		}

		lhs, rhs, ok := strings.Cut(part, "=")
		if !ok || strings.HasSuffix(lhs, "<") || strings.HasSuffix(lhs, ">") {
			return false, fmt.Errorf("dynamotest: unsupported condition: %s", part)
		}
		want, err := lookupValue(rhs, values)
		if err != nil {
			return false, err
		}
		got, exists := item[resolveName(lhs, names)]
		if !exists || !equalValues(got, want) {
			return false, nil
		}
	}
	return true, nil
}

// applySet applies a "SET a = :x, b = if_not_exists(b, :y)" expression to item.
func applySet(expr string, names map[string]string, values map[string]types.AttributeValue, item map[string]types.AttributeValue) error {
	expr = strings.TrimSpace(expr)
	body, ok := strings.CutPrefix(expr, "SET ")
	if !ok {
		return fmt.Errorf("dynamotest: only SET update expressions are supported: %s", expr)
	}

	for _, assignment := range splitTopLevel(body) {
		lhs, rhs, ok := strings.Cut(assignment, "=")
		if !ok {
			return fmt.Errorf("dynamotest: bad assignment: %s", assignment)
		}
		attr := resolveName(lhs, names)
		rhs = strings.TrimSpace(rhs)

		if inner, ok := call(rhs, "if_not_exists"); ok {
			args := strings.SplitN(inner, ",", 2)
			if len(args) != 2 {
				return fmt.Errorf("dynamotest: bad if_not_exists: %s", rhs)
			}
			if _, exists := item[resolveName(args[0], names)]; exists {
				continue
			}
			rhs = args[1]
		}

		v, err := lookupValue(rhs, values)
		if err != nil {
			return err
		}
		item[attr] = v
	}
	return nil
}

// call matches "name(inner)" and returns inner.
func call(s, name string) (string, bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, name+"(") || !strings.HasSuffix(s, ")") {
		return "", false
	}
	return s[len(name)+1 : len(s)-1], true
}

func splitTopLevel(s string) []string {
	var (
		parts []string
		depth int
		start int
	)
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	return append(parts, strings.TrimSpace(s[start:]))
}
