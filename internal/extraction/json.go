package extraction

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var fencedBlock = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)```")

// parseObject decodes a JSON object from model output, unwrapping a fenced
// code block when one is present. ok is false for anything but an object.
func parseObject(text string) (map[string]any, bool) {
	text = strings.TrimSpace(text)
	if strings.Contains(text, "```") {
		if m := fencedBlock.FindStringSubmatch(text); m != nil {
			text = strings.TrimSpace(m[1])
		}
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(text), &out); err != nil || out == nil {
		return nil, false
	}
	return out, true
}

// asString renders a scalar JSON value, returning "" for null, arrays and
// objects.
func asString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	}
	return ""
}

// asFloat parses a JSON number or a numeric string. NaN and infinities are
// rejected since they cannot be marshaled back to JSON.
func asFloat(v any) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case string:
		var err error
		if f, err = strconv.ParseFloat(strings.TrimSpace(t), 64); err != nil {
			return 0, false
		}
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func floatPtr(v any) *float64 {
	f, ok := asFloat(v)
	if !ok {
		return nil
	}
	return &f
}

func intPtr(v any) *int {
	f, ok := asFloat(v)
	if !ok || f > math.MaxInt32 || f < math.MinInt32 {
		return nil
	}
	i := int(f)
	return &i
}

// asPhase returns n when v is the number 1, 2 or 3.
func asPhase(v any) (int, bool) {
	f, ok := v.(float64)
	if !ok || f != float64(int(f)) {
		return 0, false
	}
	n := int(f)
	return n, n >= 1 && n <= 3
}

func asObjects(v any) []map[string]any {
	items, _ := v.([]any)
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func asStrings(v any) []string {
	items, _ := v.([]any)
	var out []string
	for _, item := range items {
		if s, ok := item.(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}
