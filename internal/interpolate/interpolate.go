// Package interpolate implements the pure, side-effect-free placeholder
// substitution grammar (C2): {path.to.var} references into a context
// tree, with type preservation when a template is exactly one
// placeholder. Grounded on
// original_source/src/statemachine_engine/utils/interpolation.py.
package interpolate

import (
	"fmt"
	"regexp"
	"strings"
)

var placeholder = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_.]*)\}`)

// Value substitutes placeholders in template against context. If the
// entire input is exactly one placeholder, the original typed value is
// returned unchanged (P6). Otherwise every placeholder is stringified and
// the result is a string with missing placeholders left literal (P7).
// Non-string inputs and nil pass through unchanged.
func Value(template interface{}, context map[string]interface{}) interface{} {
	s, ok := template.(string)
	if !ok {
		return template
	}
	if context == nil {
		context = map[string]interface{}{}
	}

	if path := fullMatch(s); path != "" {
		if val, found := lookup(path, context); found {
			return val
		}
		return s
	}

	return placeholder.ReplaceAllStringFunc(s, func(match string) string {
		path := placeholder.FindStringSubmatch(match)[1]
		val, found := lookup(path, context)
		if !found {
			return match
		}
		return toDisplayString(val)
	})
}

// fullMatch returns the path name if s is exactly one placeholder, else "".
func fullMatch(s string) string {
	loc := placeholder.FindStringIndex(s)
	if loc == nil || loc[0] != 0 || loc[1] != len(s) {
		return ""
	}
	m := placeholder.FindStringSubmatch(s)
	return m[1]
}

// Lookup walks a dot-separated path through context, requiring a map and
// a present key at each step. Exported for callers (e.g. the bash action's
// `{primary|fallback}` expression) that need raw path resolution without
// the full template-substitution machinery.
func Lookup(path string, context map[string]interface{}) (interface{}, bool) {
	return lookup(path, context)
}

// lookup walks a dot-separated path through context, requiring a map and
// a present key at each step.
func lookup(path string, context map[string]interface{}) (interface{}, bool) {
	parts := strings.Split(path, ".")
	var cur interface{} = context
	for _, part := range parts {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		v, present := m[part]
		if !present {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

func toDisplayString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// Config recurses through maps and lists, interpolating string leaves and
// passing other scalars through untouched (spec §4.2 interpolateConfig).
func Config(config interface{}, context map[string]interface{}) interface{} {
	switch v := config.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, val := range v {
			out[k] = Config(val, context)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, val := range v {
			out[i] = Config(val, context)
		}
		return out
	case string:
		return Value(v, context)
	default:
		return v
	}
}
