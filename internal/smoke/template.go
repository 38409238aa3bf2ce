package smoke

import (
	"fmt"
	"os"
	"strings"
)

// ExpandTemplates replaces placeholders in s:
//   - {{env.VARIABLE}} from environment variables
//   - {{variable_name}} from vars
//
// An unknown variable is an error; an unset environment variable expands to "".
// Substituted values are copied as-is and never expanded again.
func ExpandTemplates(s string, vars map[string]string) (string, error) {
	var b strings.Builder
	pos := 0
	for {
		start := strings.Index(s[pos:], "{{")
		if start == -1 {
			break
		}
		start += pos
		end := strings.Index(s[start:], "}}")
		if end == -1 {
			return "", fmt.Errorf("unterminated template expression at position %d", start)
		}
		end += start + 2

		value, err := resolveExpr(strings.TrimSpace(s[start+2:end-2]), vars)
		if err != nil {
			return "", err
		}
		b.WriteString(s[pos:start])
		b.WriteString(value)
		pos = end
	}
	b.WriteString(s[pos:])
	return b.String(), nil
}

func resolveExpr(expr string, vars map[string]string) (string, error) {
	if key, ok := strings.CutPrefix(expr, "env."); ok {
		return os.Getenv(key), nil
	}
	if val, ok := vars[expr]; ok {
		return val, nil
	}
	return "", fmt.Errorf("unresolved template expression: %q", expr)
}

// expandValue returns a copy of a request body built from maps, slices and
// strings with every string expanded. Other values pass through.
func expandValue(v any, vars map[string]string) (any, error) {
	switch t := v.(type) {
	case string:
		return ExpandTemplates(t, vars)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			expanded, err := expandValue(item, vars)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			out[k] = expanded
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			expanded, err := expandValue(item, vars)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = expanded
		}
		return out, nil
	default:
		return v, nil
	}
}
